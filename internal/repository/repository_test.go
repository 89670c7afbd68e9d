package repository

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/langchou/ecodrive/internal/models"
)

// fakeRow 按列顺序把值写入 Scan 的目标，nil 表示 NULL
type fakeRow struct {
	values []any
	err    error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	if len(dest) != len(r.values) {
		return fmt.Errorf("scan: %d destinations for %d columns", len(dest), len(r.values))
	}
	for i, d := range dest {
		target := reflect.ValueOf(d).Elem()
		if r.values[i] == nil {
			target.Set(reflect.Zero(target.Type()))
			continue
		}
		target.Set(reflect.ValueOf(r.values[i]))
	}
	return nil
}

var _ pgx.Row = fakeRow{}

func sessionRow(terrain string, seed int64, endCharge *float64, endTime *time.Time) fakeRow {
	start := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	return fakeRow{values: []any{
		int64(7), "genetic", terrain, 2.5, 38.4, 38.4,
		endCharge, 12.75, 4, 60, 3,
		seed, start, endTime, "battery_floor", nil,
	}}
}

func TestSeedRoundTrip(t *testing.T) {
	for _, seed := range []uint64{0, 1, 42, math.MaxInt64, math.MaxInt64 + 1, math.MaxUint64} {
		assert.Equal(t, seed, seedFromDB(seedToDB(seed)), "seed %d", seed)
	}
	assert.Equal(t, int64(-1), seedToDB(math.MaxUint64))
}

func TestScanSession(t *testing.T) {
	endCharge := 3.6
	endTime := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

	session, err := scanSession(sessionRow("uphill", seedToDB(math.MaxUint64), &endCharge, &endTime))
	require.NoError(t, err)
	assert.Equal(t, int64(7), session.ID)
	assert.Equal(t, models.AlgorithmGenetic, session.Algorithm)
	assert.Equal(t, models.Environment{Terrain: models.TerrainUphill, Temperature: 2.5}, session.Environment)
	assert.Equal(t, uint64(math.MaxUint64), session.Seed)
	require.NotNil(t, session.EndChargeKwh)
	assert.Equal(t, 3.6, *session.EndChargeKwh)
	assert.Equal(t, endTime, *session.EndTime)
	assert.Nil(t, session.EndBatteryPercent)
	assert.Equal(t, 60, session.StepsExecuted)
}

func TestScanSession_Unfinished(t *testing.T) {
	session, err := scanSession(sessionRow("flat", 9, nil, nil))
	require.NoError(t, err)
	assert.Nil(t, session.EndChargeKwh)
	assert.Nil(t, session.EndTime)
	assert.Equal(t, uint64(9), session.Seed)
}

func TestScanSession_Errors(t *testing.T) {
	_, err := scanSession(sessionRow("lava", 1, nil, nil))
	assert.Error(t, err)

	_, err = scanSession(fakeRow{err: pgx.ErrNoRows})
	assert.ErrorIs(t, notFound(err), ErrNotFound)
}

func TestScanRun(t *testing.T) {
	sessionID := int64(7)
	created := time.Date(2024, 5, 1, 8, 1, 0, 0, time.UTC)
	params := map[string]any{"algorithm": "dynamic", "seed": "18446744073709551615"}

	run, err := scanRun(fakeRow{values: []any{
		int64(3), &sessionID, 2, "dynamic", "downhill", -5.0, 3.84, 9.5, 3.7, params, created,
	}})
	require.NoError(t, err)
	assert.Equal(t, int64(3), run.ID)
	require.NotNil(t, run.SessionID)
	assert.Equal(t, sessionID, *run.SessionID)
	assert.Equal(t, models.AlgorithmDynamic, run.Algorithm)
	assert.Equal(t, models.TerrainDownhill, run.Terrain)
	assert.Equal(t, params, run.Params)
	assert.Equal(t, created, run.CreatedAt)

	// 单次求解没有会话
	run, err = scanRun(fakeRow{values: []any{
		int64(4), nil, 0, "genetic", "flat", 20.0, 3.84, 9.5, 3.7, nil, created,
	}})
	require.NoError(t, err)
	assert.Nil(t, run.SessionID)
	assert.Nil(t, run.Params)
}

func TestNotFound(t *testing.T) {
	assert.ErrorIs(t, notFound(fmt.Errorf("query: %w", pgx.ErrNoRows)), ErrNotFound)

	other := errors.New("connection reset")
	assert.Equal(t, other, notFound(other))
	assert.NoError(t, notFound(nil))
}
