// Copyright (C) 2025, Govmarkets Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package proposal

import (
	"github.com/google/uuid"

	"github.com/govmarkets/futarchy/pkg/ids"
)

// StagedAction is a governance action attached to one outcome before trading
// begins. The market does not interpret the payload; it only tracks which
// outcome the action belongs to and hands the winning outcome's actions to
// the executor.
type StagedAction struct {
	ID       uuid.UUID
	MarketID ids.ID
	Outcome  uint8
	Kind     string
	Payload  []byte
}

// NewStagedAction stamps identity onto an action payload.
func NewStagedAction(marketID ids.ID, outcome uint8, kind string, payload []byte) StagedAction {
	return StagedAction{
		ID:       uuid.New(),
		MarketID: marketID,
		Outcome:  outcome,
		Kind:     kind,
		Payload:  payload,
	}
}

// ActionExecutor applies a winning outcome's staged actions. The market only
// cares whether execution succeeded; action semantics live with the
// governance layer.
type ActionExecutor interface {
	ExecuteActions(actions []StagedAction) error
}

// ActionExecutorFunc adapts a function to ActionExecutor.
type ActionExecutorFunc func(actions []StagedAction) error

func (f ActionExecutorFunc) ExecuteActions(actions []StagedAction) error { return f(actions) }
