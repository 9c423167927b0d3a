package clock

import (
	"context"
	"testing"
	"time"

	"github.com/kiosk404/soulgraph/internal/companion/config"
	"github.com/kiosk404/soulgraph/internal/companion/store/hot"
)

func testConfig() config.ClockConfig {
	return config.ClockConfig{
		CacheTTL: 30 * time.Minute,
		Zone:     config.ZoneConfig{Name: "civil+08:00", OffsetSecs: 8 * 3600},
	}
}

func TestNowFallsBackToOSClockAndWarmsCache(t *testing.T) {
	mem := hot.NewMemory()
	c := New(mem, testConfig())
	fixed := time.Date(2025, 5, 20, 1, 0, 0, 0, time.UTC)
	c.osNow = func() time.Time { return fixed }

	got := c.Now(context.Background())
	if !got.Equal(fixed) {
		t.Errorf("Now() = %v, want %v", got, fixed)
	}
	if _, ok := mem.GetString(context.Background(), hot.KeyBeijingTime()); !ok {
		t.Error("cache miss path must write the cache")
	}
}

func TestNowPrefersCachedValue(t *testing.T) {
	mem := hot.NewMemory()
	c := New(mem, testConfig())
	first := time.Date(2025, 5, 20, 1, 0, 0, 0, time.UTC)
	c.osNow = func() time.Time { return first }
	c.Now(context.Background())

	// The OS clock moves on, but the cached value still governs.
	c.osNow = func() time.Time { return first.Add(5 * time.Minute) }
	got := c.Now(context.Background())
	if !got.Equal(first) {
		t.Errorf("Now() = %v, want cached %v", got, first)
	}
}

func TestNowReturnsConfiguredZone(t *testing.T) {
	mem := hot.NewMemory()
	c := New(mem, testConfig())
	c.osNow = func() time.Time { return time.Date(2025, 5, 20, 1, 0, 0, 0, time.UTC) }

	got := c.Now(context.Background())
	_, offset := got.Zone()
	if offset != 8*3600 {
		t.Errorf("zone offset = %d, want %d", offset, 8*3600)
	}
}

func TestNowRecoversFromUnparsableCacheValue(t *testing.T) {
	mem := hot.NewMemory()
	c := New(mem, testConfig())
	fixed := time.Date(2025, 5, 20, 1, 0, 0, 0, time.UTC)
	c.osNow = func() time.Time { return fixed }

	if err := mem.SetString(context.Background(), hot.KeyBeijingTime(), "garbage", time.Minute); err != nil {
		t.Fatal(err)
	}
	got := c.Now(context.Background())
	if !got.Equal(fixed) {
		t.Errorf("Now() = %v, want OS fallback %v", got, fixed)
	}
}
