package storage

import (
	"fmt"
	"log/slog"

	sqlite "github.com/glebarez/sqlite" // Pure Go SQLite driver (no CGO required)
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DB wraps the GORM database connection
type DB struct {
	*gorm.DB
}

// Open creates a new database connection and runs auto-migrations
// Supports SQLite, PostgreSQL, and MySQL based on the provided configuration
func Open(config *DatabaseConfig) (*DB, error) {
	if config == nil {
		// Default to SQLite when no configuration is given
		config = DefaultSQLiteConfig("scriptcache.db")
	}

	// Get connection string
	dsn, err := config.ConnectionString()
	if err != nil {
		return nil, err
	}

	// Select appropriate GORM dialector based on database type
	var dialector gorm.Dialector
	switch config.Type {
	case "sqlite":
		dialector = sqlite.Open(dsn)
	case "postgres":
		dialector = postgres.Open(dsn)
	case "mysql":
		dialector = mysql.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database type: %s", config.Type)
	}

	// Open database with GORM
	gormDB, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent), // Reduce log noise
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Get underlying SQL DB for database-specific configuration
	sqlDB, err := gormDB.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying database: %w", err)
	}

	// Configure connection pool based on database type
	if config.Type == "sqlite" {
		// SQLite with single connection (no pool)
		// - SQLite has single-writer architecture (even with WAL mode)
		// - Multiple connections just compete for the same write lock
		// - ":memory:" databases only exist on the connection that created them
		sqlDB.SetMaxOpenConns(1)    // Single connection - no contention
		sqlDB.SetMaxIdleConns(1)    // Keep one connection open
		sqlDB.SetConnMaxLifetime(0) // Reuse connection indefinitely (local file)
	}

	// Network databases (Postgres/MySQL) use Go's defaults:
	// - MaxOpenConns: unlimited (database server handles limits)
	// - MaxIdleConns: 2 (small pool for common case)

	storage := &DB{DB: gormDB}

	// Run auto-migrations (GORM handles all schema changes)
	if err := storage.autoMigrate(); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	slog.Info("Database connected successfully", "type", config.Type)
	return storage, nil
}

// autoMigrate runs GORM's auto-migration for all models
func (db *DB) autoMigrate() error {
	return db.AutoMigrate(&Script{})
}

// Close closes the database connection
func (db *DB) Close() error {
	sqlDB, err := db.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
