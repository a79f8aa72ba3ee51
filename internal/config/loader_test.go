package config_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/headhunt/internal/config"
)

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()
		clearEnv()
		convey.Reset(clearEnv)

		convey.Convey("When loading config with defaults only", func() {
			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
				convey.So(cfg.NotifyQueueSize, convey.ShouldEqual, 1024)
				convey.So(cfg.Points["hired"], convey.ShouldEqual, 150)
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			setenv("HEADHUNT_ADDR", ":8080")
			setenv("HEADHUNT_NOTIFY_WORKER_COUNT", "16")
			setenv("HEADHUNT_POINTS__HIRED", "200")
			setenv("HEADHUNT_POSTGRES__MAX_CONNS", "40")
			setenv("HEADHUNT_STREAK_WINDOW", "48h")
			setenv("HEADHUNT_CORS_ALLOWED_ORIGINS", "https://a.io,https://b.io")

			cfg, err := config.Load(ctx)

			convey.Convey("Then flat and nested keys are overridden", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.NotifyWorkerCount, convey.ShouldEqual, 16)
				convey.So(cfg.Points["hired"], convey.ShouldEqual, 200)
				convey.So(cfg.Points["approved"], convey.ShouldEqual, 50)
				convey.So(cfg.Postgres.MaxConns, convey.ShouldEqual, 40)
				convey.So(cfg.Postgres.MinConns, convey.ShouldEqual, 5)
				convey.So(cfg.StreakWindow, convey.ShouldEqual, 48*time.Hour)
				convey.So(cfg.CORSAllowedOrigins, convey.ShouldResemble, []string{"https://a.io", "https://b.io"})
			})
		})

		convey.Convey("When loading config from a YAML file and env", func() {
			path := filepath.Join(t.TempDir(), "headhunt.yaml")
			convey.So(os.WriteFile(path, []byte(`
addr: ":9090"
store: postgres
postgres:
  dsn: postgres://localhost/headhunt
redis:
  addr: localhost:6379
  channel: hh
leaderboard_cache_ttl: 0s
badges:
  catalog_path: /etc/headhunt/badges.yaml
`), 0o600), convey.ShouldBeNil)
			setenv("HEADHUNT_CONFIG", path)
			setenv("HEADHUNT_ADDR", ":7070")

			cfg, err := config.Load(ctx)

			convey.Convey("Then env overrides the file and the file overrides defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":7070")
				convey.So(cfg.Store, convey.ShouldEqual, config.StorePostgres)
				convey.So(cfg.Postgres.DSN, convey.ShouldEqual, "postgres://localhost/headhunt")
				convey.So(cfg.Postgres.MaxConns, convey.ShouldEqual, 25)
				convey.So(cfg.Redis.Channel, convey.ShouldEqual, "hh")
				convey.So(cfg.LeaderboardCacheTTL, convey.ShouldEqual, 0)
				convey.So(cfg.Badges.CatalogPath, convey.ShouldEqual, "/etc/headhunt/badges.yaml")
			})
		})

		convey.Convey("When the file does not exist", func() {
			setenv("HEADHUNT_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))
			_, err := config.Load(ctx)
			convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
		})

		convey.Convey("When a loaded value is invalid", func() {
			setenv("HEADHUNT_STORE", "sqlite")
			_, err := config.Load(ctx)
			convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
		})
	})
}

func setenv(key, value string) {
	_ = os.Setenv(key, value)
}

func clearEnv() {
	for _, kv := range os.Environ() {
		if key, _, ok := strings.Cut(kv, "="); ok && strings.HasPrefix(key, config.EnvPrefix) {
			_ = os.Unsetenv(key)
		}
	}
}
