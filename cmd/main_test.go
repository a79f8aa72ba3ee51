package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/headhunt/internal/adapters/http/api"
	app "github.com/okian/headhunt/internal/app"
	"github.com/okian/headhunt/internal/config"
	"github.com/okian/headhunt/pkg/logger"
)

func TestConfigFromEnvironment(t *testing.T) {
	convey.Convey("Given environment overrides", t, func() {
		_ = os.Setenv("HEADHUNT_ADDR", ":8088")
		_ = os.Setenv("HEADHUNT_NOTIFY_WORKER_COUNT", "2")
		_ = os.Setenv("HEADHUNT_POINTS__HIRED", "200")
		defer func() {
			_ = os.Unsetenv("HEADHUNT_ADDR")
			_ = os.Unsetenv("HEADHUNT_NOTIFY_WORKER_COUNT")
			_ = os.Unsetenv("HEADHUNT_POINTS__HIRED")
		}()

		convey.Convey("Then the loaded config carries them", func() {
			cfg, err := config.Load(context.Background())
			convey.So(err, convey.ShouldBeNil)
			convey.So(cfg.Addr, convey.ShouldEqual, ":8088")
			convey.So(cfg.NotifyWorkerCount, convey.ShouldEqual, 2)
			convey.So(cfg.Points["hired"], convey.ShouldEqual, 200)
			convey.So(cfg.Points["submitted"], convey.ShouldEqual, 10)
		})
	})
}

func TestServiceOptions(t *testing.T) {
	ctx := context.Background()
	log := logger.Get()

	convey.Convey("Given the default config", t, func() {
		cfg := config.New()
		cfg.AdminToken = "tok"

		opts, closers, err := serviceOptions(ctx, cfg, log)
		convey.So(err, convey.ShouldBeNil)
		convey.So(closers, convey.ShouldBeEmpty)

		svc := app.New(opts...)
		convey.So(svc.Start(ctx), convey.ShouldBeNil)
		defer func() { _ = svc.Stop(ctx) }()
		h := newRouter(cfg, svc)

		convey.Convey("Then the API and docs routes are served", func() {
			for _, path := range []string{"/healthz", "/stats", "/openapi.yaml", "/api-docs", "/api/v1/badges", "/api/v1/leaderboard"} {
				w := httptest.NewRecorder()
				h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, http.NoBody))
				convey.So(w.Code, convey.ShouldEqual, http.StatusOK)
			}
		})

		convey.Convey("Then the admin token is enforced", func() {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/recruiters/r@x.io/points", strings.NewReader(`{"delta":1,"reason":"x"}`))
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)
			convey.So(w.Code, convey.ShouldEqual, http.StatusUnauthorized)

			req = httptest.NewRequest(http.MethodPost, "/api/v1/admin/recruiters/r@x.io/points", strings.NewReader(`{"delta":1,"reason":"x"}`))
			req.Header.Set(api.AdminTokenHeader, "tok")
			w = httptest.NewRecorder()
			h.ServeHTTP(w, req)
			convey.So(w.Code, convey.ShouldEqual, http.StatusOK)
		})

		convey.Convey("Then the metrics updaters run without a listener", func() {
			convey.So(updateSystemMetrics, convey.ShouldNotPanic)
			convey.So(func() { updateServiceMetrics(svc) }, convey.ShouldNotPanic)
		})
	})

	convey.Convey("Given an unknown transition kind in the points table", t, func() {
		cfg := config.New()
		cfg.Points = map[string]int64{"interviewed": 5}

		_, _, err := serviceOptions(ctx, cfg, log)
		convey.So(err, convey.ShouldNotBeNil)
		convey.So(err.Error(), convey.ShouldContainSubstring, "points table")
	})

	convey.Convey("Given a catalog override", t, func() {
		cfg := config.New()

		convey.Convey("When the file is missing", func() {
			cfg.Badges.CatalogPath = filepath.Join(t.TempDir(), "missing.yaml")
			_, _, err := serviceOptions(ctx, cfg, log)
			convey.So(err, convey.ShouldNotBeNil)
		})

		convey.Convey("When the file is valid", func() {
			path := filepath.Join(t.TempDir(), "catalog.yaml")
			convey.So(os.WriteFile(path, []byte(`
tier_points: {bronze: 5, silver: 10, gold: 20}
families:
  - family: hires_made
    category: outcome
    metric: hires
    direction: at_least
    thresholds: {bronze: 1, silver: 2, gold: 3}
`), 0o600), convey.ShouldBeNil)
			cfg.Badges.CatalogPath = path

			opts, _, err := serviceOptions(ctx, cfg, log)
			convey.So(err, convey.ShouldBeNil)
			svc := app.New(opts...)
			convey.So(svc.Start(ctx), convey.ShouldBeNil)
			convey.So(svc.Badges(), convey.ShouldHaveLength, 3)
			convey.So(svc.Stop(ctx), convey.ShouldBeNil)
		})
	})
}
