package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
)

func TestDefaultCarriesDocumentedTTLs(t *testing.T) {
	cfg := Default()
	require.Equal(t, 30*time.Minute, cfg.Clock.CacheTTL)
	require.Equal(t, 24*time.Hour, cfg.Mood.CacheTTL)
	require.Equal(t, 24*time.Hour, cfg.Dialogue.HotTTL)
	require.Equal(t, 2*time.Hour, cfg.Dialogue.HotExtendTTL)
	require.Equal(t, 10*time.Second, cfg.Model.PlotMoodTimeout)
	require.Equal(t, 8*3600, cfg.Clock.Zone.OffsetSecs)
}

func TestZoneLocationFixedOffset(t *testing.T) {
	z := ZoneConfig{Name: "civil+08:00", OffsetSecs: 8 * 3600}
	at := time.Date(2025, 5, 20, 0, 0, 0, 0, time.UTC).In(z.Location())
	_, offset := at.Zone()
	require.Equal(t, 8*3600, offset)
	require.Equal(t, 8, at.Hour())
}

func TestLoadNilViperReturnsDefaults(t *testing.T) {
	cfg, err := Load(nil)
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)
}

func TestLoadOverlaysViperValues(t *testing.T) {
	v := viper.New()
	v.Set("dialogue.recent-limit", 15)
	v.Set("model.reply.provider", "openai")
	v.Set("store.redis-addr", "10.0.0.1:6379")

	cfg, err := Load(v)
	require.NoError(t, err)
	require.Equal(t, 15, cfg.Dialogue.RecentLimit)
	require.Equal(t, "openai", cfg.Model.Reply.Provider)
	require.Equal(t, "10.0.0.1:6379", cfg.Store.RedisAddr)
	// Untouched knobs keep their defaults.
	require.Equal(t, 30*time.Minute, cfg.Clock.CacheTTL)
}
