package health

import (
	"context"
	"errors"
	"testing"
)

type fakePinger struct {
	err error
}

func (f fakePinger) PingContext(context.Context) error { return f.err }

func TestStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		svc       *Service
		wantOK    bool
		wantStore string
	}{
		{name: "memory store", svc: NewService(nil), wantOK: true, wantStore: "memory"},
		{name: "postgres reachable", svc: NewService(fakePinger{}), wantOK: true, wantStore: "postgres"},
		{name: "postgres down", svc: NewService(fakePinger{err: errors.New("connection refused")}), wantOK: false, wantStore: "postgres"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			payload, ok := tt.svc.Status(context.Background())
			if ok != tt.wantOK || payload["ok"] != tt.wantOK {
				t.Fatalf("expected ok=%v, got %v (%v)", tt.wantOK, ok, payload)
			}
			if payload["store"] != tt.wantStore {
				t.Fatalf("expected store %s, got %v", tt.wantStore, payload["store"])
			}
		})
	}
}
