// Package store defines persistence for finished matches.
package store

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotConfigured = errors.New("storage is not configured")
	ErrNoRoom        = errors.New("room is required")
)

type Result struct {
	Participant string
	Name        string
	Slot        int
	Score       int
	Record      float64
}

type Match struct {
	Room    string
	EndedAt time.Time
	Results []Result
}

// ResultStore records finished matches and answers leaderboard queries.
type ResultStore interface {
	RecordMatch(ctx context.Context, m Match) error
	TopRecords(ctx context.Context, limit int) ([]Result, error)
	Close() error
}
