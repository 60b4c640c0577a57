package memoryservice

import (
	"context"
	"testing"

	"github.com/kennyhq/kenny-memory/internal/config"
)

type stubProbe struct{ healthy bool }

func (p stubProbe) IsHealthy() bool { return p.healthy }

func TestCalculateStartupHealthTimeout(t *testing.T) {
	cases := []struct {
		intervalSeconds int
		want            int
	}{
		{10, 60},
		{30, 60},
		{45, 90},
		{120, 240},
	}
	for _, tc := range cases {
		if got := calculateStartupHealthTimeout(tc.intervalSeconds); got != tc.want {
			t.Fatalf("interval %d: want %d, got %d", tc.intervalSeconds, tc.want, got)
		}
	}
}

func TestWaitUntilHealthyReturnsOnceProbeIsHealthy(t *testing.T) {
	cfg := &config.Config{HealthIntervalSeconds: 30}
	if err := waitUntilHealthy(context.Background(), cfg, stubProbe{healthy: true}); err != nil {
		t.Fatalf("waitUntilHealthy with healthy probe: %v", err)
	}
}

func TestWaitUntilHealthyStopsOnContextCancel(t *testing.T) {
	cfg := &config.Config{HealthIntervalSeconds: 30}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := waitUntilHealthy(ctx, cfg, stubProbe{healthy: false})
	if err != context.Canceled {
		t.Fatalf("want context.Canceled, got %v", err)
	}
}
