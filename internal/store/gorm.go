package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/i474232898/series-adapter/internal/series"
)

// MeasurementRecord is the measurements table row.
type MeasurementRecord struct {
	ID           string          `gorm:"primaryKey;type:varchar(36)"`
	Value        decimal.Decimal `gorm:"type:decimal(30,10);not null"`
	Date         time.Time       `gorm:"type:date;not null;index"`
	Status       string          `gorm:"type:varchar(16);not null;default:'pending';index"`
	Source       string          `gorm:"type:varchar(50);not null;default:'FRED'"`
	SeriesID     string          `gorm:"type:varchar(200);not null"`
	Units        string          `gorm:"type:varchar(50);not null;default:'Percent Change'"`
	ErrorMessage *string         `gorm:"type:text"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (MeasurementRecord) TableName() string {
	return "measurements"
}

func (r MeasurementRecord) toMeasurement() series.Measurement {
	value, _ := r.Value.Float64()
	m := series.Measurement{
		ID:        r.ID,
		Value:     value,
		Date:      series.MidnightUTC(r.Date),
		SeriesID:  r.SeriesID,
		Units:     r.Units,
		Status:    series.Status(r.Status),
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
	if r.ErrorMessage != nil {
		m.ErrorMessage = *r.ErrorMessage
	}
	return m
}

// GormStore persists measurements through gorm.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore wraps an open gorm handle. The caller owns the handle.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// OpenPostgres connects to PostgreSQL using dsn.
func OpenPostgres(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	return db, nil
}

// OpenSQLite opens a SQLite database at path (":memory:" for an in-memory one).
func OpenSQLite(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// Every new connection to ":memory:" would see an empty database.
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)
	return db, nil
}

// Migrate creates or updates the measurements table.
func (s *GormStore) Migrate() error {
	return s.db.AutoMigrate(&MeasurementRecord{})
}

// Close releases the underlying connection pool.
func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Insert writes m in a single statement and returns its generated id.
func (s *GormStore) Insert(ctx context.Context, m series.Measurement) (string, error) {
	if !m.Status.Valid() {
		return "", ErrInvalidTransition
	}
	units := m.Units
	if units == "" {
		units = series.DefaultUnitsLabel
	}

	rec := MeasurementRecord{
		ID:       uuid.NewString(),
		Value:    decimal.NewFromFloat(m.Value),
		Date:     series.MidnightUTC(m.Date),
		Status:   string(m.Status),
		Source:   "FRED",
		SeriesID: m.SeriesID,
		Units:    units,
	}
	if m.ErrorMessage != "" {
		msg := m.ErrorMessage
		rec.ErrorMessage = &msg
	}

	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return "", fmt.Errorf("insert measurement: %w", err)
	}
	return rec.ID, nil
}

// UpdateStatus moves a pending measurement to status. Rows that already left
// pending are not touched.
func (s *GormStore) UpdateStatus(ctx context.Context, id string, status series.Status, errorMessage string) error {
	if status != series.StatusProcessed && status != series.StatusError {
		return ErrInvalidTransition
	}

	var msg *string
	if errorMessage != "" {
		msg = &errorMessage
	}

	res := s.db.WithContext(ctx).
		Model(&MeasurementRecord{}).
		Where("id = ? AND status = ?", id, string(series.StatusPending)).
		Updates(map[string]interface{}{
			"status":        string(status),
			"error_message": msg,
			"updated_at":    time.Now().UTC(),
		})
	if res.Error != nil {
		return fmt.Errorf("update measurement status: %w", res.Error)
	}
	if res.RowsAffected == 1 {
		return nil
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&MeasurementRecord{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return fmt.Errorf("update measurement status: %w", err)
	}
	if count == 0 {
		return ErrNotFound
	}
	return ErrInvalidTransition
}

// Latest returns the processed measurement with the newest date, or nil.
func (s *GormStore) Latest(ctx context.Context) (*series.Measurement, error) {
	var rec MeasurementRecord
	err := s.db.WithContext(ctx).
		Where("status = ?", string(series.StatusProcessed)).
		Order("date DESC").
		Order("created_at DESC").
		Take(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest measurement: %w", err)
	}
	m := rec.toMeasurement()
	return &m, nil
}

// ByDateRange returns measurements dated within [start, end], newest first.
func (s *GormStore) ByDateRange(ctx context.Context, start, end time.Time) ([]series.Measurement, error) {
	var recs []MeasurementRecord
	err := s.db.WithContext(ctx).
		Where("date BETWEEN ? AND ?", start.UTC(), end.UTC()).
		Order("date DESC").
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("measurements by date range: %w", err)
	}

	out := make([]series.Measurement, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.toMeasurement())
	}
	return out, nil
}

// DeleteOlderThan removes measurements dated strictly before cutoff.
func (s *GormStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res := s.db.WithContext(ctx).Where("date < ?", cutoff.UTC()).Delete(&MeasurementRecord{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete old measurements: %w", res.Error)
	}
	return res.RowsAffected, nil
}
