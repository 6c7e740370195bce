// Copyright (C) 2025, Govmarkets Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package store archives resolved proposals and oracle observations. The
// engine's correctness never depends on the archive; a write failure is
// logged and swallowed by the caller.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// ProposalRecord is the finalization archive row for one market.
type ProposalRecord struct {
	MarketID       string
	DAOID          string
	OutcomeCount   uint8
	Winner         uint8
	ForcedTimeout  bool
	FinalizedAt    time.Time
	AssetReturned  uint64
	StableReturned uint64
}

// Observation is one TWAP sample archived for offline auditability.
type Observation struct {
	MarketID   string
	Outcome    uint8
	Price      string
	ObservedAt time.Time
}

// Recorder persists finalized proposals and oracle samples.
type Recorder interface {
	RecordProposal(ctx context.Context, rec ProposalRecord) error
	RecordObservation(ctx context.Context, obs Observation) error
	Proposals(ctx context.Context) ([]ProposalRecord, error)
	Close() error
}

// NoOp discards everything. Used when archiving is disabled.
type NoOp struct{}

func (NoOp) RecordProposal(context.Context, ProposalRecord) error { return nil }
func (NoOp) RecordObservation(context.Context, Observation) error { return nil }
func (NoOp) Proposals(context.Context) ([]ProposalRecord, error)  { return nil, nil }
func (NoOp) Close() error                                         { return nil }

const schema = `
CREATE TABLE IF NOT EXISTS proposals (
	market_id       TEXT PRIMARY KEY,
	dao_id          TEXT NOT NULL,
	outcome_count   INTEGER NOT NULL,
	winner          INTEGER NOT NULL,
	forced_timeout  INTEGER NOT NULL,
	finalized_at    INTEGER NOT NULL,
	asset_returned  INTEGER NOT NULL,
	stable_returned INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS observations (
	market_id   TEXT NOT NULL,
	outcome     INTEGER NOT NULL,
	price       TEXT NOT NULL,
	observed_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS observations_market ON observations (market_id, outcome);
`

// SQLite is a Recorder on a local sqlite database.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (and migrates) the archive at path. Use ":memory:" for
// an ephemeral archive.
func OpenSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate archive: %w", err)
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) RecordProposal(ctx context.Context, rec ProposalRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO proposals
			(market_id, dao_id, outcome_count, winner, forced_timeout, finalized_at, asset_returned, stable_returned)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.MarketID, rec.DAOID, rec.OutcomeCount, rec.Winner,
		rec.ForcedTimeout, rec.FinalizedAt.UnixMilli(),
		rec.AssetReturned, rec.StableReturned,
	)
	if err != nil {
		return fmt.Errorf("record proposal: %w", err)
	}
	return nil
}

func (s *SQLite) RecordObservation(ctx context.Context, obs Observation) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO observations (market_id, outcome, price, observed_at)
		VALUES (?, ?, ?, ?)`,
		obs.MarketID, obs.Outcome, obs.Price, obs.ObservedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("record observation: %w", err)
	}
	return nil
}

func (s *SQLite) Proposals(ctx context.Context) ([]ProposalRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT market_id, dao_id, outcome_count, winner, forced_timeout, finalized_at, asset_returned, stable_returned
		FROM proposals ORDER BY finalized_at`)
	if err != nil {
		return nil, fmt.Errorf("list proposals: %w", err)
	}
	defer rows.Close()

	var out []ProposalRecord
	for rows.Next() {
		var rec ProposalRecord
		var finalizedMs int64
		if err := rows.Scan(
			&rec.MarketID, &rec.DAOID, &rec.OutcomeCount, &rec.Winner,
			&rec.ForcedTimeout, &finalizedMs, &rec.AssetReturned, &rec.StableReturned,
		); err != nil {
			return nil, fmt.Errorf("scan proposal: %w", err)
		}
		rec.FinalizedAt = time.UnixMilli(finalizedMs).UTC()
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *SQLite) Close() error { return s.db.Close() }
