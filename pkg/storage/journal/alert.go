package journal

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm/clause"

	"spreadwatch/internal/monitor"
)

const DefaultListLimit = 100

var _ monitor.AlertRecorder = (*Client)(nil)

func (c *Client) InsertAlert(ctx context.Context, record *AlertRecord) error {
	tx := c.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "instrument"}, {Name: "fired_at"}},
		DoNothing: true,
	}).Create(record)

	if tx.Error != nil {
		return tx.Error
	}

	if tx.RowsAffected == 0 {
		return fmt.Errorf("duplicate alert skipped: instrument=%s fired_at=%s",
			record.Instrument, record.FiredAt.Format(time.RFC3339Nano))
	}

	return nil
}

// RecordAlert stores a fired alert.
func (c *Client) RecordAlert(ctx context.Context, a monitor.Alert) error {
	return c.InsertAlert(ctx, ToAlertRecord(a))
}

// ListAlerts returns the newest alerts first, optionally filtered by instrument.
func (c *Client) ListAlerts(ctx context.Context, instrument string, limit int) ([]AlertRecord, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	q := c.DB.WithContext(ctx).Order("fired_at DESC").Limit(limit)
	if instrument != "" {
		q = q.Where("instrument = ?", instrument)
	}

	var records []AlertRecord
	if err := q.Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

// DeleteAlertsBefore prunes alerts fired before the cutoff and returns how many were removed.
func (c *Client) DeleteAlertsBefore(ctx context.Context, before time.Time) (int64, error) {
	tx := c.DB.WithContext(ctx).Where("fired_at < ?", before).Delete(&AlertRecord{})
	return tx.RowsAffected, tx.Error
}

// ToAlertRecord converts a fired alert into its database row.
func ToAlertRecord(a monitor.Alert) *AlertRecord {
	return &AlertRecord{
		Instrument:    a.Instrument,
		FiredAt:       a.Timestamp.UTC(),
		SourceA:       a.SourceA,
		SourceB:       a.SourceB,
		PriceA:        a.PriceA,
		PriceB:        a.PriceB,
		SpreadPercent: a.SpreadPercent,
		Threshold:     a.Threshold,
		Direction:     string(a.Direction),
	}
}
