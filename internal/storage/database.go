package storage

import (
	"fmt"
	"os"
	"path/filepath"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/necpgame/combat-resolution-go/internal/game"
)

// OpenAndMigrate opens the SQLite database at dataSourceName, creating
// the parent directory when needed, and keeps the schema updated via
// AutoMigrate. Implant stats are never persisted (the catalog config is
// the single source of truth); only identity and progress columns live
// in the database.
func OpenAndMigrate(dataSourceName string) (*gorm.DB, error) {
	if dir := filepath.Dir(dataSourceName); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := gorm.Open(sqlite.Open(dataSourceName), &gorm.Config{})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&game.Character{}, &game.InstalledImplant{}); err != nil {
		return nil, err
	}
	return db, nil
}
