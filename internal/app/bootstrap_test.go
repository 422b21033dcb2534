package service_test

import (
	"context"
	"path/filepath"
	"testing"

	service "github.com/Avasam/Global-speedrunning-leaderboard/internal/app"
	"github.com/Avasam/Global-speedrunning-leaderboard/internal/config"
	"github.com/Avasam/Global-speedrunning-leaderboard/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func TestFromConfig(t *testing.T) {
	Convey("Given default configuration", t, func() {
		ctx := context.Background()
		cfg := config.New()
		cfg.WorkerCount = 1

		Convey("When the memory store is selected", func() {
			cfg.Store = config.StoreMemory
			svc, err := service.FromConfig(ctx, cfg, logger.Nop())

			Convey("Then the service starts and stops", func() {
				So(err, ShouldBeNil)
				So(svc.Start(ctx), ShouldBeNil)
				stats, err := svc.Stats(ctx)
				So(err, ShouldBeNil)
				So(stats.Workers, ShouldEqual, 1)
				So(stats.QueueCapacity, ShouldEqual, cfg.QueueSize)
				So(svc.Stop(ctx), ShouldBeNil)
			})
		})

		Convey("When a SQLite path is configured", func() {
			cfg.DatabasePath = filepath.Join(t.TempDir(), "nested", "leaderboard.db")
			svc, err := service.FromConfig(ctx, cfg, logger.Nop())

			Convey("Then the database is created and migrated", func() {
				So(err, ShouldBeNil)
				stats, err := svc.Stats(ctx)
				So(err, ShouldBeNil)
				So(stats.Profiles, ShouldEqual, 0)
				So(svc.Stop(ctx), ShouldBeNil)
			})
		})

		Convey("When Redis is unreachable", func() {
			cfg.Store = config.StoreMemory
			cfg.RedisAddr = "127.0.0.1:1"
			svc, err := service.FromConfig(ctx, cfg, logger.Nop())

			Convey("Then construction fails", func() {
				So(err, ShouldNotBeNil)
				So(svc, ShouldBeNil)
			})
		})
	})
}
