package config_test

import (
	"context"
	"errors"
	"os"
	"runtime"
	"testing"

	"github.com/Avasam/Global-speedrunning-leaderboard/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New()

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.APIBaseURL, convey.ShouldEqual, "https://www.speedrun.com/api/v1")
			convey.So(cfg.MinLeaderboardSize, convey.ShouldEqual, 3)
			convey.So(cfg.DeviationMultiplier, convey.ShouldEqual, 1.5)
			convey.So(cfg.RetryableStatuses, convey.ShouldContain, 503)
			convey.So(cfg.RetryDelayMS, convey.ShouldEqual, 5000)
			convey.So(cfg.MaxRetryAttempts, convey.ShouldEqual, 0)
			convey.So(cfg.WorkerCount, convey.ShouldEqual, runtime.NumCPU())
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})
	})
}

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()

		convey.Convey("When loading config with defaults only", func() {
			clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
				convey.So(cfg.EntryConcurrency, convey.ShouldEqual, 16)
				convey.So(cfg.KafkaBrokers, convey.ShouldBeEmpty)
				convey.So(cfg.Store, convey.ShouldEqual, config.StoreSQLite)
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("SRLB_ADDR", ":8080")
			_ = os.Setenv("SRLB_MIN_LEADERBOARD_SIZE", "5")
			_ = os.Setenv("SRLB_DEVIATION_MULTIPLIER", "2.25")
			_ = os.Setenv("SRLB_RETRY_DELAY_MS", "250")
			_ = os.Setenv("SRLB_KAFKA_BROKERS", "kafka-1:9092,kafka-2:9092")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.MinLeaderboardSize, convey.ShouldEqual, 5)
				convey.So(cfg.DeviationMultiplier, convey.ShouldEqual, 2.25)
				convey.So(cfg.RetryDelayMS, convey.ShouldEqual, 250)
				convey.So(cfg.KafkaBrokers, convey.ShouldResemble, []string{"kafka-1:9092", "kafka-2:9092"})
			})
		})

		convey.Convey("When loading config with YAML file", func() {
			tmpFile := createTempConfigFile(t, `
addr: ":9090"
retryable_statuses: [502, 503]
max_retry_attempts: 10
entry_concurrency: 4
database_path: /tmp/srlb.db
`)
			_ = os.Setenv("SRLB_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load from YAML file", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.RetryableStatuses, convey.ShouldResemble, []int{502, 503})
				convey.So(cfg.MaxRetryAttempts, convey.ShouldEqual, 10)
				convey.So(cfg.EntryConcurrency, convey.ShouldEqual, 4)
				convey.So(cfg.DatabasePath, convey.ShouldEqual, "/tmp/srlb.db")
				convey.So(cfg.MinLeaderboardSize, convey.ShouldEqual, 3)
			})
		})

		convey.Convey("When loading config with both file and environment variables", func() {
			tmpFile := createTempConfigFile(t, `
addr: ":9090"
worker_count: 24
`)
			_ = os.Setenv("SRLB_CONFIG", tmpFile)
			_ = os.Setenv("SRLB_WORKER_COUNT", "32")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then environment variables should override file values", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 32)
			})
		})

		convey.Convey("When loading config with invalid YAML file", func() {
			tmpFile := createTempConfigFile(t, `invalid: yaml: content: [`)
			_ = os.Setenv("SRLB_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a load error", func() {
				convey.So(cfg, convey.ShouldBeNil)
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When loading config with non-existent file", func() {
			_ = os.Setenv("SRLB_CONFIG", "/non/existent/file.yaml")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with invalid numeric environment variables", func() {
			_ = os.Setenv("SRLB_QUEUE_SIZE", "invalid")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})
	})
}

func TestConfigValidation(t *testing.T) {
	convey.Convey("Given config validation", t, func() {
		ctx := context.Background()

		convey.Convey("When the file empties addr", func() {
			tmpFile := createTempConfigFile(t, `addr: ""`)
			_ = os.Setenv("SRLB_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a validation error", func() {
				convey.So(cfg, convey.ShouldBeNil)
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, "addr must not be empty")
			})
		})

		convey.Convey("When the deviation multiplier does not reward outliers", func() {
			_ = os.Setenv("SRLB_DEVIATION_MULTIPLIER", "1")
			defer clearConfigEnvVars()

			_, err := config.Load(ctx)

			convey.Convey("Then it is rejected", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When the minimum leaderboard size is below two", func() {
			cfg := config.New()
			cfg.MinLeaderboardSize = 1
			convey.So(errors.Is(cfg.Validate(), config.ErrInvalidConfig), convey.ShouldBeTrue)
		})

		convey.Convey("When a retryable status is out of range", func() {
			cfg := config.New()
			cfg.RetryableStatuses = []int{503, 42}
			convey.So(cfg.Validate(), convey.ShouldNotBeNil)
		})

		convey.Convey("When the store backend is unknown", func() {
			_ = os.Setenv("SRLB_STORE", "postgres")
			defer clearConfigEnvVars()

			_, err := config.Load(ctx)
			convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
		})

		convey.Convey("When the memory store needs no database path", func() {
			cfg := config.New()
			cfg.Store = config.StoreMemory
			cfg.DatabasePath = ""
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})

		convey.Convey("When retry attempts are negative", func() {
			cfg := config.New()
			cfg.MaxRetryAttempts = -1
			convey.So(cfg.Validate(), convey.ShouldNotBeNil)
		})
	})
}

// Helper functions.

func clearConfigEnvVars() {
	envVars := []string{
		"SRLB_CONFIG",
		"SRLB_ADDR",
		"SRLB_MIN_LEADERBOARD_SIZE",
		"SRLB_DEVIATION_MULTIPLIER",
		"SRLB_RETRY_DELAY_MS",
		"SRLB_KAFKA_BROKERS",
		"SRLB_WORKER_COUNT",
		"SRLB_QUEUE_SIZE",
		"SRLB_STORE",
	}
	for _, envVar := range envVars {
		_ = os.Unsetenv(envVar)
	}
}

func createTempConfigFile(t *testing.T, content string) string {
	t.Helper()
	tmpFile, err := os.CreateTemp(t.TempDir(), "srlb-config-*.yaml")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := tmpFile.WriteString(content); err != nil {
		t.Fatal(err)
	}
	if err := tmpFile.Close(); err != nil {
		t.Fatal(err)
	}
	return tmpFile.Name()
}
