package db

import (
	"fmt"
	"log"
	"os"
	"time"

	_ "github.com/ncruces/go-sqlite3/embed"
	"github.com/ncruces/go-sqlite3/gormlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Open connects to the SQLite database at dbPath and migrates the schema.
func Open(dbPath string) (*gorm.DB, error) {
	// Configure GORM logger
	newLogger := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags), // Use standard log writer (os.Stdout)
		gormlogger.Config{
			SlowThreshold:             time.Second,     // Slow SQL threshold
			LogLevel:                  gormlogger.Warn, // Log level (Warn, Error, Info)
			IgnoreRecordNotFoundError: true,            // Ignore ErrRecordNotFound error
			ParameterizedQueries:      false,           // Log SQL queries with params
			Colorful:                  true,            // Enable color
		},
	)

	// Foreign keys are off by default in SQLite; the mods table relies on
	// the cascade to games.
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(10000)&_pragma=foreign_keys(1)", dbPath)

	gdb, err := gorm.Open(gormlite.Open(dsn), &gorm.Config{
		Logger: newLogger, // Use the configured logger
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}

	// Auto-migrate the Game and Mod schema
	if err := gdb.AutoMigrate(&Game{}, &Mod{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database schema: %w", err)
	}

	return gdb, nil
}

// Close releases the underlying sql connection pool.
func Close(gdb *gorm.DB) error {
	sqlDB, err := gdb.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
