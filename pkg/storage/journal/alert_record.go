package journal

import "time"

// AlertRecord is one fired spread alert.
type AlertRecord struct {
	ID uint `gorm:"primaryKey" json:"id"`

	// unique index
	Instrument string    `gorm:"type:varchar(64);not null;index:idx_alert_instrument;index:idx_alert_instrument_fired,unique" json:"instrument"`
	FiredAt    time.Time `gorm:"not null;index:idx_alert_instrument_fired,unique;index:idx_alert_fired" json:"fired_at"`

	SourceA string `gorm:"type:varchar(32);not null" json:"source_a"`
	SourceB string `gorm:"type:varchar(32);not null" json:"source_b"`

	PriceA        float64 `gorm:"type:numeric;not null" json:"price_a"`
	PriceB        float64 `gorm:"type:numeric;not null" json:"price_b"`
	SpreadPercent float64 `gorm:"type:numeric;not null" json:"spread_percent"`
	Threshold     float64 `gorm:"type:numeric;not null" json:"threshold"`
	Direction     string  `gorm:"type:varchar(16);not null" json:"direction"`

	RecordedAt time.Time `gorm:"autoCreateTime" json:"recorded_at"`
}

func (AlertRecord) TableName() string {
	return "alert_record"
}
