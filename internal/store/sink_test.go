package store

import (
	"context"
	"testing"
	"time"

	"pxfeed/internal/model"
	"pxfeed/internal/pxdata"
	"pxfeed/pkg/exception"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func dryRunDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(postgres.Open("postgres://px@localhost:5432/bars?sslmode=disable"), &gorm.Config{
		DryRun:                 true,
		DisableAutomaticPing:   true,
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)
	return db
}

func series(epochs ...int64) model.Bars {
	bars := make(model.Bars, 0, len(epochs))
	for _, e := range epochs {
		bars = append(bars, model.Bar{EpochSec: e, Open: 1, High: 2, Low: 0.5, Close: 1.5, Volume: 10, WAP: 1.2, TradeCount: 3})
	}
	return bars
}

var aapl = model.Contract{ConID: 265598, Symbol: "AAPL", SecType: "STK", Exchange: "SMART", Currency: "USD"}

func TestNewSinkNilDB(t *testing.T) {
	_, err := NewSink(nil)
	require.ErrorIs(t, err, exception.ErrNilInstance)
}

func TestSinkUpsertStatement(t *testing.T) {
	db := dryRunDB(t)
	now := time.Unix(1700000100, 0)
	records := []BarRecord{
		newBarRecord(aapl, series(1700000000)[0], now),
		newBarRecord(aapl, series(1700000060)[0], now),
	}

	stmt := db.Session(&gorm.Session{DryRun: true}).
		Clauses(barConflict()).
		Create(&records).Statement

	sql := stmt.SQL.String()
	assert.Contains(t, sql, `INSERT INTO "pxfeed_bars"`)
	assert.Contains(t, sql, `ON CONFLICT ("con_id","epoch_sec") DO UPDATE SET`)
	assert.Contains(t, sql, `"close"="excluded"."close"`)
	assert.Contains(t, stmt.Vars, int64(265598))
	assert.Contains(t, stmt.Vars, int64(1700000060))
}

func TestSinkWatermark(t *testing.T) {
	sink, err := NewSink(dryRunDB(t))
	require.NoError(t, err)
	ctx := context.Background()

	assert.Len(t, sink.pending(aapl.ConID, series(10, 20, 30)), 3)

	require.NoError(t, sink.Save(ctx, aapl, series(10, 20, 30)))
	assert.Equal(t, int64(30), sink.watermark[aapl.ConID])

	pending := sink.pending(aapl.ConID, series(10, 20, 30, 40))
	assert.Equal(t, series(30, 40), pending)

	assert.Empty(t, sink.pending(aapl.ConID, series(10, 20)))
	assert.Len(t, sink.pending(42, series(10, 20)), 2)
}

func TestSinkHandlesEvent(t *testing.T) {
	sink, err := NewSink(dryRunDB(t))
	require.NoError(t, err)

	var h pxdata.HistoricalHandler = sink
	h.OnHistoricalUpdate(context.Background(), pxdata.HistoricalEvent{Contract: aapl, Bars: series(5, 6)})
	assert.Equal(t, int64(6), sink.watermark[aapl.ConID])

	require.NoError(t, sink.Save(context.Background(), aapl, nil))
}

func TestBarRecordRoundTrip(t *testing.T) {
	bar := series(1700000000)[0]
	rec := newBarRecord(aapl, bar, time.Now())
	assert.Equal(t, "AAPL", rec.Symbol)
	assert.Equal(t, bar, rec.Bar())
	assert.Equal(t, "pxfeed_bars", rec.TableName())
}
