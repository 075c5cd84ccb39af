package store

import (
	"time"

	"pxfeed/internal/model"
)

// BarRecord is the persisted form of a bar. A bar is identified by its
// contract and bar start.
type BarRecord struct {
	ConID      int64     `gorm:"column:con_id;primaryKey;autoIncrement:false"`
	EpochSec   int64     `gorm:"column:epoch_sec;primaryKey;autoIncrement:false"`
	Symbol     string    `gorm:"column:symbol;size:32;index"`
	Open       float64   `gorm:"column:open"`
	High       float64   `gorm:"column:high"`
	Low        float64   `gorm:"column:low"`
	Close      float64   `gorm:"column:close"`
	Volume     float64   `gorm:"column:volume"`
	WAP        float64   `gorm:"column:wap"`
	TradeCount int64     `gorm:"column:trade_count"`
	UpdatedAt  time.Time `gorm:"column:updated_at"`
}

func (BarRecord) TableName() string {
	return "pxfeed_bars"
}

func newBarRecord(con model.Contract, bar model.Bar, now time.Time) BarRecord {
	return BarRecord{
		ConID:      con.ConID,
		EpochSec:   bar.EpochSec,
		Symbol:     con.Symbol,
		Open:       bar.Open,
		High:       bar.High,
		Low:        bar.Low,
		Close:      bar.Close,
		Volume:     bar.Volume,
		WAP:        bar.WAP,
		TradeCount: bar.TradeCount,
		UpdatedAt:  now,
	}
}

// Bar converts the record back to the domain type.
func (r BarRecord) Bar() model.Bar {
	return model.Bar{
		EpochSec:   r.EpochSec,
		Open:       r.Open,
		High:       r.High,
		Low:        r.Low,
		Close:      r.Close,
		Volume:     r.Volume,
		WAP:        r.WAP,
		TradeCount: r.TradeCount,
	}
}
