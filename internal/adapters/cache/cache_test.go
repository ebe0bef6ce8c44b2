package cache

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/dogwifhat6/supplychain-lens/internal/domain"
	"github.com/dogwifhat6/supplychain-lens/internal/ports/output"
)

type countingMetrics struct {
	output.NoOpMetrics
	hits, misses int
}

func (m *countingMetrics) IncCacheLookup(hit bool) {
	if hit {
		m.hits++
	} else {
		m.misses++
	}
}

func newTestBadger(t *testing.T, metrics output.MetricsCollector) *BadgerCache {
	t.Helper()
	c, err := NewBadgerCache(BadgerConfig{InMemory: true}, metrics, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("NewBadgerCache() error = %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestBadgerCacheGetSet(t *testing.T) {
	metrics := &countingMetrics{}
	c := newTestBadger(t, metrics)
	ctx := context.Background()

	val, ok, err := c.Get(ctx, "missing")
	if err != nil || ok || val != nil {
		t.Errorf("Get(missing) = %v, %v, %v", val, ok, err)
	}

	if err := c.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	val, ok, err = c.Get(ctx, "k")
	if err != nil || !ok || string(val) != "v" {
		t.Errorf("Get(k) = %q, %v, %v", val, ok, err)
	}

	if metrics.hits != 1 || metrics.misses != 1 {
		t.Errorf("hits/misses = %d/%d, want 1/1", metrics.hits, metrics.misses)
	}
	if err := c.Ping(ctx); err != nil {
		t.Errorf("Ping() error = %v", err)
	}
}

func TestBadgerCacheExpiry(t *testing.T) {
	c := newTestBadger(t, &output.NoOpMetrics{})
	ctx := context.Background()

	if err := c.Set(ctx, "short", []byte("v"), time.Second); err != nil {
		t.Fatal(err)
	}
	time.Sleep(1100 * time.Millisecond)

	if _, ok, err := c.Get(ctx, "short"); ok || err != nil {
		t.Errorf("expired key: ok=%v err=%v", ok, err)
	}
}

func TestBadgerCacheRequiresPath(t *testing.T) {
	if _, err := NewBadgerCache(BadgerConfig{}, &output.NoOpMetrics{}, slog.Default()); err == nil {
		t.Error("persistent cache without path should fail")
	}
}

func TestRedisCacheUnreachable(t *testing.T) {
	c := NewRedisCache(RedisConfig{Addr: "127.0.0.1:1"}, &output.NoOpMetrics{})
	t.Cleanup(func() { _ = c.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := c.Ping(ctx); err == nil {
		t.Error("Ping() against a closed port should fail")
	}
	if _, ok, err := c.Get(ctx, "k"); err == nil || ok {
		t.Errorf("Get() = ok %v, err %v; want connection error", ok, err)
	}
}

func TestCBORCodecRoundTripsAnalysis(t *testing.T) {
	codec, err := NewCBORCodec()
	if err != nil {
		t.Fatal(err)
	}

	at := time.Date(2024, 3, 1, 12, 30, 15, 123456789, time.UTC)
	in := domain.GeospatialAnalysis{
		Coordinates: domain.Coordinate{Lat: -7.5, Lng: -55},
		AnalyzedAt:  at,
	}
	in.Country.Country = "Brazil"
	in.ProtectedAreas.NearbyCount = 2

	data, err := codec.Marshal(in)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	var out domain.GeospatialAnalysis
	if err := codec.Unmarshal(data, &out); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}

	if !out.AnalyzedAt.Equal(at) {
		t.Errorf("AnalyzedAt = %v, want %v", out.AnalyzedAt, at)
	}
	if out.Country.Country != "Brazil" || out.ProtectedAreas.NearbyCount != 2 || out.Coordinates != in.Coordinates {
		t.Errorf("round trip = %+v", out)
	}

	if err := codec.Unmarshal([]byte{0xff, 0x00}, &out); err == nil {
		t.Error("Unmarshal(garbage) should fail")
	}
}
