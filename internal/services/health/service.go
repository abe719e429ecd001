package health

import (
	"context"
	"database/sql"
	"time"

	"vendorquery-backend/internal/shared/storage/db"
)

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Service reports whether the API and its job store are reachable.
type Service struct {
	DB      Pinger
	Timeout time.Duration
}

// NewService constructs a health service. A nil db means the in-memory store is in use.
func NewService(db Pinger) *Service {
	return &Service{DB: db, Timeout: 2 * time.Second}
}

// Status returns a health payload and whether every check passed.
func (s *Service) Status(ctx context.Context) (map[string]any, bool) {
	payload := map[string]any{"ok": true, "store": "memory"}
	if s == nil || s.DB == nil {
		return payload, true
	}
	payload["store"] = "postgres"

	pingCtx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()
	if err := s.DB.PingContext(pingCtx); err != nil {
		payload["ok"] = false
		payload["error"] = err.Error()
		return payload, false
	}
	if pool, ok := s.DB.(*sql.DB); ok {
		payload["pool"] = db.PoolFields(pool)
	}
	return payload, true
}
