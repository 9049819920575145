// Package postgres archives finished matches in PostgreSQL through gorm.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/DoyleJ11/poipoi-backend/internal/store"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type matchRow struct {
	ID      uint        `gorm:"primaryKey"`
	Room    string      `gorm:"index;not null"`
	EndedAt time.Time   `gorm:"not null"`
	Results []resultRow `gorm:"foreignKey:MatchID;constraint:OnDelete:CASCADE"`
}

func (matchRow) TableName() string { return "matches" }

type resultRow struct {
	ID          uint   `gorm:"primaryKey"`
	MatchID     uint   `gorm:"index;not null"`
	Participant string `gorm:"not null"`
	Name        string
	Slot        int
	Score       int
	Record      float64 `gorm:"index"`
}

func (resultRow) TableName() string { return "results" }

type Store struct {
	db *gorm.DB
}

var _ store.ResultStore = (*Store)(nil)

// Open connects to dsn and migrates the schema.
func Open(dsn string) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: logger.Discard})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.AutoMigrate(&matchRow{}, &resultRow{}); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return New(db), nil
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func toRow(m store.Match) matchRow {
	row := matchRow{Room: m.Room, EndedAt: m.EndedAt.UTC()}
	if row.EndedAt.IsZero() {
		row.EndedAt = time.Now().UTC()
	}
	for _, r := range m.Results {
		row.Results = append(row.Results, resultRow{
			Participant: r.Participant,
			Name:        r.Name,
			Slot:        r.Slot,
			Score:       r.Score,
			Record:      r.Record,
		})
	}
	return row
}

// RecordMatch inserts the match and its results; gorm writes the
// association in the same transaction.
func (s *Store) RecordMatch(ctx context.Context, m store.Match) error {
	if s == nil || s.db == nil {
		return store.ErrNotConfigured
	}
	if m.Room == "" {
		return store.ErrNoRoom
	}
	row := toRow(m)
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("insert match %s: %w", m.Room, err)
	}
	return nil
}

func topRecords(tx *gorm.DB, limit int) *gorm.DB {
	return tx.Model(&resultRow{}).
		Where("record >= ?", 0).
		Order("record DESC").
		Order("score DESC").
		Limit(limit)
}

func (s *Store) TopRecords(ctx context.Context, limit int) ([]store.Result, error) {
	if s == nil || s.db == nil {
		return nil, store.ErrNotConfigured
	}
	if limit <= 0 {
		return nil, nil
	}
	var rows []resultRow
	if err := topRecords(s.db.WithContext(ctx), limit).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	out := make([]store.Result, 0, len(rows))
	for _, r := range rows {
		out = append(out, store.Result{
			Participant: r.Participant,
			Name:        r.Name,
			Slot:        r.Slot,
			Score:       r.Score,
			Record:      r.Record,
		})
	}
	return out, nil
}
