// Package storage opens the durable record store and the optional Redis cache.
//
// Two record store backends share one schema: PostgreSQL (lib/pq) for
// deployments, and an in-memory SQLite database (go-sqlite3) for local
// development. Open pings the database and applies the schema before
// returning it.
//
//	db, err := storage.Open(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer db.Close()
//
// Redis is only used as a read-through cache in front of the permission
// records; see permissions.CachedStore.
package storage
