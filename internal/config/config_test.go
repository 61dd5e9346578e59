// File: internal/config/config_test.go
package config

import (
	"bytes"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/scrollstate/internal/scrolling"
)

// -- Constructor and Defaults Tests --

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	// Verify a few key defaults to ensure the mechanism works.
	assert.Equal(t, "info", cfg.Logger().Level)
	assert.Equal(t, "scrollstate", cfg.Logger().ServiceName)
	assert.Equal(t, 60.0, cfg.Scrolling().CommitRate)
	assert.Equal(t, 1, cfg.Scrolling().CommitBurst)
	assert.Equal(t, scrolling.PlatformLayerIDRepresentation, cfg.Scrolling().Representation())
	assert.Equal(t, scrolling.IncludeNodeIDs, cfg.Scrolling().Dump())
	assert.False(t, cfg.Metrics().Enabled)
	assert.Equal(t, 1280.0, cfg.Layers().ViewportWidth)
	require.NoError(t, cfg.Validate())
}

// -- Validation Logic Tests --

func TestConfigValidation(t *testing.T) {
	t.Run("Scrolling Validation", func(t *testing.T) {
		cfg := NewDefaultConfig()

		badRate := *cfg
		badRate.ScrollingCfg.CommitRate = 0
		err := badRate.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "commit_rate must be greater than 0")

		badBurst := *cfg
		badBurst.ScrollingCfg.CommitBurst = 0
		err = badBurst.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "commit_burst must be at least 1")

		badRep := *cfg
		badRep.ScrollingCfg.LayerRepresentation = "hologram"
		err = badRep.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "layer_representation")

		badDump := *cfg
		badDump.ScrollingCfg.DumpBehavior = []string{"node-ids", "colors"}
		err = badDump.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "dump_behavior")
	})

	t.Run("Metrics Validation", func(t *testing.T) {
		cfg := NewDefaultConfig()
		cfg.SetMetricsEnabled(true)
		cfg.SetMetricsListenAddr("")

		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "metrics.listen_addr is required")
	})

	t.Run("Layers Validation", func(t *testing.T) {
		cfg := NewDefaultConfig()
		cfg.LayersCfg.ViewportHeight = 0

		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "viewport dimensions must be positive")
	})
}

// -- Setter Tests --

func TestConfigSetters(t *testing.T) {
	var cfg Interface = NewDefaultConfig()

	cfg.SetLoggerLevel("debug")
	cfg.SetScrollingCommitRate(120)
	cfg.SetScrollingLayerRepresentation("graphics-layer")
	cfg.SetScrollingSerializedHandoff(true)
	cfg.SetScrollingDumpBehavior([]string{"all"})
	cfg.SetMetricsEnabled(true)
	cfg.SetMetricsListenAddr(":0")

	assert.Equal(t, "debug", cfg.Logger().Level)
	assert.Equal(t, 120.0, cfg.Scrolling().CommitRate)
	assert.Equal(t, scrolling.GraphicsLayerRepresentation, cfg.Scrolling().Representation())
	assert.True(t, cfg.Scrolling().SerializedHandoff)
	assert.Equal(t, scrolling.DumpVerbose, cfg.Scrolling().Dump())
	assert.True(t, cfg.Metrics().Enabled)
	assert.Equal(t, ":0", cfg.Metrics().ListenAddr)
}

// -- Viper Loading Tests --

func TestNewConfigFromViper(t *testing.T) {
	t.Run("should overlay YAML on defaults", func(t *testing.T) {
		yamlConfig := []byte(`
logger:
  level: debug
scrolling:
  commit_rate: 30
  layer_representation: graphics-layer
  serialized_handoff: true
  dump_behavior: [node-ids, changed-properties]
metrics:
  enabled: true
  listen_addr: ":9999"
`)
		v := viper.New()
		SetDefaults(v)
		v.SetConfigType("yaml")
		require.NoError(t, v.ReadConfig(bytes.NewBuffer(yamlConfig)))

		cfg, err := NewConfigFromViper(v)
		require.NoError(t, err)

		assert.Equal(t, "debug", cfg.Logger().Level)
		assert.Equal(t, 30.0, cfg.Scrolling().CommitRate)
		assert.Equal(t, 1, cfg.Scrolling().CommitBurst, "unset keys keep their defaults")
		assert.Equal(t, scrolling.GraphicsLayerRepresentation, cfg.Scrolling().Representation())
		assert.True(t, cfg.Scrolling().SerializedHandoff)
		assert.Equal(t, scrolling.IncludeNodeIDs|scrolling.IncludeChangedProperties, cfg.Scrolling().Dump())
		assert.Equal(t, ":9999", cfg.Metrics().ListenAddr)
	})

	t.Run("should reject invalid values", func(t *testing.T) {
		v := viper.New()
		SetDefaults(v)
		v.Set("scrolling.commit_rate", -1)

		_, err := NewConfigFromViper(v)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid configuration")
	})
}
