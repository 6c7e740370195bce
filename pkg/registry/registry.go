// Copyright (C) 2025, Govmarkets Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package registry resolves conditional coin pairs. It is injected into the
// operations that need it as a read-only lookup table; governance mutates it
// only between proposals.
package registry

import (
	"errors"
	"fmt"
	"sync"
)

var (
	ErrUnknownPair   = errors.New("coin pair not registered")
	ErrDuplicatePair = errors.New("coin pair already registered")
)

// Pair names a conditional asset/stable coin pairing.
type Pair struct {
	Asset  string
	Stable string
}

func (p Pair) String() string { return fmt.Sprintf("%s/%s", p.Asset, p.Stable) }

// Entry carries the metadata resolved for a registered pair. TreasuryCap
// bounds how much conditional supply may ever be minted against the pair;
// zero means uncapped.
type Entry struct {
	Pair        Pair
	TreasuryCap uint64
}

// Registry is a concurrency-safe pair table. Reads dominate; writes happen
// only during setup and between proposals.
type Registry struct {
	mu      sync.RWMutex
	entries map[Pair]Entry
}

// New builds a registry pre-populated with entries.
func New(entries ...Entry) *Registry {
	r := &Registry{entries: make(map[Pair]Entry, len(entries))}
	for _, e := range entries {
		r.entries[e.Pair] = e
	}
	return r
}

// Register adds a pair. Duplicate registration is refused rather than
// overwritten so a governance mistake cannot silently re-cap a live pair.
func (r *Registry) Register(e Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[e.Pair]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicatePair, e.Pair)
	}
	r.entries[e.Pair] = e
	return nil
}

// Lookup resolves a pair or fails with ErrUnknownPair.
func (r *Registry) Lookup(p Pair) (Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[p]
	if !ok {
		return Entry{}, fmt.Errorf("%w: %s", ErrUnknownPair, p)
	}
	return e, nil
}

// Len reports the number of registered pairs.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
