// Package gorm provides GORM-based storage for eco profiles, daily and weekly
// logs, trips, activities and the append-only prediction log.
//
// PostgreSQL is used when a DSN is configured; otherwise the store falls back
// to an embedded SQLite file through the pure-Go modernc driver:
//
//	store, err := gorm.NewStore(gorm.Config{
//	    Path:     "/path/to/ecoscore.db",
//	    MaxConns: 4,
//	    LogLevel: logger.Silent,
//	})
//	repos := gorm.NewRepositories(store)
//
// # Testing
//
// Unit tests run against temporary SQLite files. The PostgreSQL tests need
// Docker and the integration build tag:
//
//	go test -tags integration ./internal/db/gorm
package gorm
