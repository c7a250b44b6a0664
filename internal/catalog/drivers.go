package catalog

import (
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	sqlite "github.com/glebarez/sqlite"
)

// OpenPostgres opens a catalog against a Postgres dsn, mirroring the
// teacher's InitDB (gorm.Open(postgres.Open(dsn)) + AutoMigrate).
func OpenPostgres(dsn string) (*GormCatalog, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}
	return newGormCatalog(db)
}

// OpenSQLite opens a catalog against an embedded SQLite database at
// path (or ":memory:"), using the pure-Go glebarez/sqlite driver so
// catalog lookups don't require cgo, for single-binary deployments
// that don't want a Postgres dependency.
func OpenSQLite(path string) (*GormCatalog, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, err
	}
	return newGormCatalog(db)
}
