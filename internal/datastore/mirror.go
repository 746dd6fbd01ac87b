package datastore

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/tphakala/birdnet-listener/internal/errors"
	"github.com/tphakala/birdnet-listener/internal/logger"
)

// slowQueryThreshold marks mirror queries that are logged as slow.
const slowQueryThreshold = 200 * time.Millisecond

// Detection is the row mirrored from the CSV store.
type Detection struct {
	ID         uint      `gorm:"primaryKey"`
	Timestamp  time.Time `gorm:"index;not null"`
	Species    string    `gorm:"index;size:255;not null"`
	Confidence float64   `gorm:"not null"`
}

// SQLMirror copies appended detections into a SQL database for ad-hoc
// querying. It is never read by the pipeline.
type SQLMirror struct {
	db      *gorm.DB
	dialect string
}

// openMirror opens the database behind dialector and migrates the schema.
func openMirror(dialector gorm.Dialector, dialect string, fields map[string]any) (*SQLMirror, error) {
	gormLogger := logger.NewGormAdapter(GetLogger().Module(dialect), slowQueryThreshold)
	db, err := gorm.Open(dialector, &gorm.Config{Logger: gormLogger})
	if err != nil {
		return nil, mirrorError(fmt.Errorf("failed to open %s database: %w", dialect, err), dialect, fields)
	}

	if err := db.AutoMigrate(&Detection{}); err != nil {
		return nil, mirrorError(fmt.Errorf("failed to migrate %s schema: %w", dialect, err), dialect, fields)
	}

	return &SQLMirror{db: db, dialect: dialect}, nil
}

func mirrorError(err error, dialect string, fields map[string]any) error {
	b := errors.New(err).
		Component("datastore").
		Category(errors.CategoryDatabase).
		Context("dialect", dialect)
	for k, v := range fields {
		b = b.Context(k, v)
	}
	return b.Build()
}

// Dialect returns "sqlite" or "mysql".
func (m *SQLMirror) Dialect() string {
	return m.dialect
}

// Append implements Sink.
func (m *SQLMirror) Append(ctx context.Context, rec Record) error {
	row := Detection{
		Timestamp:  rec.Timestamp,
		Species:    rec.Species,
		Confidence: rec.Confidence,
	}
	if err := m.db.WithContext(ctx).Create(&row).Error; err != nil {
		return mirrorError(err, m.dialect, map[string]any{"species": rec.Species})
	}
	return nil
}

// CountSince returns the number of mirrored detections newer than since.
func (m *SQLMirror) CountSince(ctx context.Context, since time.Time) (int64, error) {
	var n int64
	err := m.db.WithContext(ctx).Model(&Detection{}).Where("timestamp > ?", since).Count(&n).Error
	return n, err
}

// Close closes the underlying connection pool.
func (m *SQLMirror) Close() error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
