package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/use-agent/tokscrape/models"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("TOKSCRAPE_STORE_DRIVER", "")
	t.Setenv("TOKSCRAPE_DATABASE_URL", "")
	t.Setenv("DATABASE_URL", "")

	cfg := Load()

	assert.Equal(t, 60*time.Second, cfg.Scraper.NavigationTimeout)
	assert.Equal(t, 5*time.Second, cfg.Scraper.SettleDelay)
	assert.Equal(t, 500, cfg.Scraper.ScrollDistance)
	assert.Equal(t, 2*time.Second, cfg.Scraper.ScrollSettle)
	assert.Equal(t, 1280, cfg.Browser.ViewportWidth)
	assert.Equal(t, 800, cfg.Browser.ViewportHeight)
	assert.Equal(t, DefaultUserAgent, cfg.Browser.UserAgent)
	assert.Equal(t, 1, cfg.Pipeline.Concurrency)
	assert.Equal(t, 4, cfg.Browser.MaxPages)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "tokscrape.db", cfg.Store.DSN)
	assert.Equal(t, "tiktok_videos", cfg.Store.Table)
	assert.NoError(t, cfg.Validate())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("TOKSCRAPE_NAV_TIMEOUT", "15s")
	t.Setenv("TOKSCRAPE_BLOCKED_RESOURCES", "Image, Font ,")
	t.Setenv("TOKSCRAPE_CONCURRENCY", "4")
	t.Setenv("API_KEY", "legacy-secret")
	t.Setenv("TOKSCRAPE_API_KEY", "")

	cfg := Load()

	assert.Equal(t, 15*time.Second, cfg.Scraper.NavigationTimeout)
	assert.Equal(t, []string{"Image", "Font"}, cfg.Scraper.BlockedResourceTypes)
	assert.Equal(t, 4, cfg.Pipeline.Concurrency)
	assert.Equal(t, "legacy-secret", cfg.Auth.APIKey)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{
			name:   "sqlite with dsn",
			mutate: func(c *Config) {},
		},
		{
			name: "postgres without dsn",
			mutate: func(c *Config) {
				c.Store.Driver = "postgres"
				c.Store.DSN = ""
			},
			wantErr: true,
		},
		{
			name: "partial imagekit keys",
			mutate: func(c *Config) {
				c.Audit.ImageKit.PrivateKey = "private_x"
			},
			wantErr: true,
		},
		{
			name: "no persistence target at all",
			mutate: func(c *Config) {
				c.Store.Driver = "none"
				c.Audit.LocalDir = ""
			},
			wantErr: true,
		},
		{
			name: "audit only",
			mutate: func(c *Config) {
				c.Store.Driver = "none"
			},
		},
		{
			name: "no browser pages",
			mutate: func(c *Config) {
				c.Browser.MaxPages = 0
			},
			wantErr: true,
		},
		{
			name: "unknown fetch mode",
			mutate: func(c *Config) {
				c.Scraper.FetchMode = "curl"
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Load()
			cfg.Store.Driver = "sqlite"
			cfg.Store.DSN = "test.db"
			cfg.Audit.LocalDir = "output"
			cfg.Audit.ImageKit = ImageKitConfig{}
			tt.mutate(cfg)

			err := cfg.Validate()
			if !tt.wantErr {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, models.ErrCodeConfiguration, models.CodeOf(err))
		})
	}
}
