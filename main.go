package main

import (
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/luka0304sz/weight-ocr-server/pkg/config"
	"github.com/luka0304sz/weight-ocr-server/pkg/gate"
	"github.com/luka0304sz/weight-ocr-server/pkg/history"
	"github.com/luka0304sz/weight-ocr-server/pkg/ocr"
)

func main() {
	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	initLogger(cfg.Logging.Level)

	if err := os.MkdirAll(cfg.Server.UploadDir, 0755); err != nil {
		log.Fatal().Err(err).Str("dir", cfg.Server.UploadDir).Msg("create upload dir")
	}

	engine := ocr.NewEngine(cfg.OCR.Language)
	admission := gate.New(cfg.OCR.MaxConcurrent)
	ring := history.NewRing(cfg.History.Capacity)
	relay := newWebhookRelay(cfg.Webhook.URL, cfg.Webhook.Timeout.Std())
	srv := newServer(cfg, engine, admission, ring, relay)

	// Hot-reload only what is safe to swap mid-flight. The admission limit
	// stays whatever the process started with.
	if _, err := os.Stat(cfgPath); err == nil {
		stop, werr := config.Watch(cfgPath, func(fresh *config.Config) {
			engine.SetLanguage(fresh.OCR.Language)
			relay.SetURL(fresh.Webhook.URL)
		})
		if werr != nil {
			log.Warn().Err(werr).Msg("config watcher unavailable")
		} else {
			defer stop()
		}
	}

	sched := cron.New()
	if _, err := sched.AddFunc("@every 10m", func() {
		if n := ring.PruneOlderThan(cfg.History.Retention.Std()); n > 0 {
			log.Info().Int("removed", n).Msg("pruned stale readings")
		}
	}); err != nil {
		log.Warn().Err(err).Msg("schedule history retention")
	}
	sched.Start()
	defer sched.Stop()

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())
	srv.setupRoutes(r)

	log.Info().Str("addr", cfg.Server.Addr).Int("max_concurrent", cfg.OCR.MaxConcurrent).
		Str("language", cfg.OCR.Language).Msg("weight OCR server listening")
	if err := r.Run(cfg.Server.Addr); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}

func initLogger(level string) {
	zerolog.TimeFieldFormat = time.RFC3339
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	if os.Getenv("LOG_PRETTY") == "1" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
}

// requestLogger logs one line per request with status and latency.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("request")
	}
}
