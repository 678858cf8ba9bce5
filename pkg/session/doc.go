// Package session tracks when each player session was last seen.
//
// The HTTP layer calls Service.RecordActivity on every request that carries a
// session cookie. Recording never blocks the request: updates go through a
// bounded queue drained by a background worker, and are dropped (and counted)
// when the queue is full. Timestamps only move forward, so lost or reordered
// updates are harmless.
//
// # Stores
//
// The Store interface has three backends:
//
//	store := session.NewMemoryStore()
//	// or, shared between server instances
//	store := session.NewRedisStore(redisClient)
//	// or, persisted in a database
//	store := session.NewSQLStore(db, session.WithSQLDialect(session.DialectSQLite))
//
// # Service
//
//	svc := session.NewService(store)
//	go svc.Run(ctx)
//	svc.RecordActivity(id)
//	ts, ok, err := svc.GetActivityTimestamp(ctx, id)
package session
