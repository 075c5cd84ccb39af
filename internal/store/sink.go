package store

import (
	"context"
	"sync"
	"time"

	"pxfeed/internal/model"
	"pxfeed/internal/pxdata"
	"pxfeed/pkg/exception"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const defaultBatchSize = 200

var _ pxdata.HistoricalHandler = (*Sink)(nil)

// Sink persists dispatched bar series. Only bars at or after the last
// written epoch of a contract are upserted, since earlier ones cannot change.
type Sink struct {
	db        *gorm.DB
	batchSize int
	now       func() time.Time

	mu        sync.Mutex
	watermark map[int64]int64
}

// NewSink creates a sink on top of an open connection.
func NewSink(db *gorm.DB) (*Sink, error) {
	if db == nil {
		return nil, errors.Wrap(exception.ErrNilInstance, "gorm db")
	}
	return &Sink{
		db:        db,
		batchSize: defaultBatchSize,
		now:       time.Now,
		watermark: make(map[int64]int64),
	}, nil
}

// Migrate creates or updates the bar table.
func (s *Sink) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(&BarRecord{}); err != nil {
		return errors.Wrap(err, "migrate bar table")
	}
	return nil
}

func (s *Sink) OnHistoricalUpdate(ctx context.Context, event pxdata.HistoricalEvent) {
	if err := s.Save(ctx, event.Contract, event.Bars); err != nil {
		logs.Errorf("store: save bars of %s, err: %+v", event.Contract, err)
	}
}

// Save upserts the pending part of bars for the contract.
func (s *Sink) Save(ctx context.Context, con model.Contract, bars model.Bars) error {
	pending := s.pending(con.ConID, bars)
	if len(pending) == 0 {
		return nil
	}

	now := s.now()
	records := make([]BarRecord, 0, len(pending))
	for _, bar := range pending {
		records = append(records, newBarRecord(con, bar, now))
	}

	if err := s.upsert(ctx, records).Error; err != nil {
		return errors.Wrap(err, "upsert bars").With("conId", con.ConID).With("count", len(records))
	}

	if last, ok := pending.Last(); ok {
		s.mu.Lock()
		s.watermark[con.ConID] = last.EpochSec
		s.mu.Unlock()
	}
	return nil
}

// Load returns persisted bars of a contract in ascending order.
func (s *Sink) Load(ctx context.Context, conID int64, limit int) (model.Bars, error) {
	var records []BarRecord
	tx := s.db.WithContext(ctx).
		Where("con_id = ?", conID).
		Order("epoch_sec DESC")
	if limit > 0 {
		tx = tx.Limit(limit)
	}
	if err := tx.Find(&records).Error; err != nil {
		return nil, errors.Wrap(err, "load bars").With("conId", conID)
	}

	bars := make(model.Bars, len(records))
	for i, r := range records {
		bars[len(records)-1-i] = r.Bar()
	}
	return bars, nil
}

// barConflict overwrites a bar already stored for the same contract and epoch.
func barConflict() clause.OnConflict {
	return clause.OnConflict{
		Columns: []clause.Column{{Name: "con_id"}, {Name: "epoch_sec"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"symbol", "open", "high", "low", "close", "volume", "wap", "trade_count", "updated_at",
		}),
	}
}

func (s *Sink) upsert(ctx context.Context, records []BarRecord) *gorm.DB {
	return s.db.WithContext(ctx).
		Clauses(barConflict()).
		CreateInBatches(&records, s.batchSize)
}

func (s *Sink) pending(conID int64, bars model.Bars) model.Bars {
	s.mu.Lock()
	mark, ok := s.watermark[conID]
	s.mu.Unlock()
	if !ok {
		return bars
	}
	for i, bar := range bars {
		if bar.EpochSec >= mark {
			return bars[i:]
		}
	}
	return nil
}
