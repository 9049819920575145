package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DoyleJ11/poipoi-backend/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// dryRun builds statements without a server.
func dryRun(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN: "host=localhost user=poipoi dbname=poipoi sslmode=disable",
	}), &gorm.Config{DryRun: true, DisableAutomaticPing: true, Logger: logger.Discard})
	require.NoError(t, err)
	return db
}

func TestTopRecordsQuery(t *testing.T) {
	db := dryRun(t)
	sql := db.ToSQL(func(tx *gorm.DB) *gorm.DB {
		var rows []resultRow
		return topRecords(tx, 5).Find(&rows)
	})
	assert.Contains(t, sql, `FROM "results"`)
	assert.Contains(t, sql, "record >= 0")
	assert.Contains(t, sql, "ORDER BY record DESC,score DESC")
	assert.Contains(t, sql, "LIMIT 5")
}

func TestRecordMatchStatement(t *testing.T) {
	db := dryRun(t)
	row := toRow(store.Match{
		Room:    "ABC123",
		EndedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Results: []store.Result{{Participant: "a", Name: "ann", Slot: 0, Score: 2, Record: 6.5}},
	})
	require.Len(t, row.Results, 1)

	sql := db.ToSQL(func(tx *gorm.DB) *gorm.DB {
		return tx.Omit("Results").Create(&row)
	})
	assert.Contains(t, sql, `INSERT INTO "matches"`)
	assert.Contains(t, sql, "ABC123")

	results := db.ToSQL(func(tx *gorm.DB) *gorm.DB {
		return tx.Create(&row.Results)
	})
	assert.Contains(t, results, `INSERT INTO "results"`)
	assert.Contains(t, results, "ann")
}

func TestRecordMatchValidates(t *testing.T) {
	s := New(dryRun(t))
	assert.ErrorIs(t, s.RecordMatch(context.Background(), store.Match{}), store.ErrNoRoom)

	var nilStore *Store
	assert.ErrorIs(t, nilStore.RecordMatch(context.Background(), store.Match{Room: "X"}), store.ErrNotConfigured)
	_, err := nilStore.TopRecords(context.Background(), 3)
	assert.ErrorIs(t, err, store.ErrNotConfigured)
}

func TestZeroEndedAtDefaultsToNow(t *testing.T) {
	before := time.Now().UTC()
	row := toRow(store.Match{Room: "X"})
	assert.False(t, row.EndedAt.Before(before))
}
