// Package config loads the ambient settings around the index engine:
// where index/relation files live on disk and how many frames the buffer
// pool gets. None of this is part of the index engine's own API; it is
// just how cmd/idxtool and cmd/idxshell get configured.
package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// Config holds the settings read from a YAML file, environment variables
// (BPTREEIDX_ prefix), or both, via viper.
type Config struct {
	Storage struct {
		// Dir is the directory index and relation files are read from
		// and written to.
		Dir string `mapstructure:"dir"`
	} `mapstructure:"storage"`

	BufferPool struct {
		// Capacity is the number of frames each bufferpool.Pool holds.
		Capacity int `mapstructure:"capacity"`
	} `mapstructure:"buffer_pool"`
}

func defaults() Config {
	var c Config
	c.Storage.Dir = "."
	c.BufferPool.Capacity = 128
	return c
}

// Load reads configuration from path (a YAML file) if non-empty, then
// overlays BPTREEIDX_-prefixed environment variables.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("BPTREEIDX")
	v.AutomaticEnv()

	cfg := defaults()
	v.SetDefault("storage.dir", cfg.Storage.Dir)
	v.SetDefault("buffer_pool.capacity", cfg.BufferPool.Capacity)

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	return &cfg, nil
}
