// Package catalog is the track metadata side-table spec §3 implies but
// leaves unspecified: the index store only ever sees opaque uint32
// track_id values, and something has to map those back to a title,
// artist, and source. This is grounded on the teacher's main/db/db.go
// Song model and its GORM usage (AutoMigrate, Create, First, Delete),
// generalized from a Postgres-only table to a Catalog interface with
// both a Postgres and an embedded SQLite backing.
package catalog

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

// ErrNotFound is returned by Get/GetBySource when no track matches.
var ErrNotFound = errors.New("catalog: track not found")

// Track is one enrolled recording's metadata (spec's "track" concept,
// the teacher's Song generalized beyond a Postgres-only schema).
type Track struct {
	ID         uint32 `gorm:"primaryKey;autoIncrement"`
	Title      string `gorm:"size:255;not null;index"`
	Artist     string `gorm:"size:255;not null;index"`
	SourceURI  string `gorm:"size:1024;uniqueIndex"`
	Duration   float64
	SampleRate int
	CreatedAt  time.Time `gorm:"autoCreateTime"`
}

// Catalog is the metadata contract enroll/identify build on top of the
// index store's bare track_id.
type Catalog interface {
	Register(ctx context.Context, title, artist, sourceURI string, duration float64, sampleRate int) (uint32, error)
	Get(ctx context.Context, id uint32) (Track, error)
	GetBySource(ctx context.Context, sourceURI string) (Track, error)
	List(ctx context.Context) ([]Track, error)
	Delete(ctx context.Context, id uint32) error
	Close() error
}

// GormCatalog backs Catalog with any GORM dialector; OpenPostgres and
// OpenSQLite below construct one for each supported driver.
type GormCatalog struct {
	db *gorm.DB
}

func newGormCatalog(db *gorm.DB) (*GormCatalog, error) {
	if err := db.AutoMigrate(&Track{}); err != nil {
		return nil, err
	}
	return &GormCatalog{db: db}, nil
}

func (c *GormCatalog) Register(ctx context.Context, title, artist, sourceURI string, duration float64, sampleRate int) (uint32, error) {
	track := Track{
		Title:      title,
		Artist:     artist,
		SourceURI:  sourceURI,
		Duration:   duration,
		SampleRate: sampleRate,
	}
	if err := c.db.WithContext(ctx).Create(&track).Error; err != nil {
		return 0, err
	}
	return track.ID, nil
}

func (c *GormCatalog) Get(ctx context.Context, id uint32) (Track, error) {
	var track Track
	err := c.db.WithContext(ctx).First(&track, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Track{}, ErrNotFound
	}
	return track, err
}

func (c *GormCatalog) GetBySource(ctx context.Context, sourceURI string) (Track, error) {
	var track Track
	err := c.db.WithContext(ctx).Where("source_uri = ?", sourceURI).First(&track).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Track{}, ErrNotFound
	}
	return track, err
}

func (c *GormCatalog) List(ctx context.Context) ([]Track, error) {
	var tracks []Track
	err := c.db.WithContext(ctx).Order("id").Find(&tracks).Error
	return tracks, err
}

func (c *GormCatalog) Delete(ctx context.Context, id uint32) error {
	return c.db.WithContext(ctx).Delete(&Track{}, id).Error
}

func (c *GormCatalog) Close() error {
	sqlDB, err := c.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

var _ Catalog = (*GormCatalog)(nil)
