package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/luka0304sz/weight-ocr-server/pkg/config"
	"github.com/luka0304sz/weight-ocr-server/pkg/gate"
	"github.com/luka0304sz/weight-ocr-server/pkg/history"
	"github.com/luka0304sz/weight-ocr-server/pkg/ocr"
)

const maxUploadBytes = 10 * 1024 * 1024

// Recognizer produces raw text plus engine confidence for an image on disk.
// Satisfied by *ocr.Engine; tests substitute a fake.
type Recognizer interface {
	Recognize(path string) (ocr.RawOutput, error)
}

type server struct {
	cfg       *config.Config
	engine    Recognizer
	admission *gate.Gate
	ring      *history.Ring
	relay     *webhookRelay

	processed atomic.Int64
	rejected  atomic.Int64
	failed    atomic.Int64
	started   time.Time
}

func newServer(cfg *config.Config, engine Recognizer, admission *gate.Gate, ring *history.Ring, relay *webhookRelay) *server {
	return &server{
		cfg:       cfg,
		engine:    engine,
		admission: admission,
		ring:      ring,
		relay:     relay,
		started:   time.Now(),
	}
}

func (s *server) setupRoutes(r *gin.Engine) {
	r.GET("/", s.dashboardHandler)
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	api := r.Group("/api")
	api.POST("/recognize", s.recognizeHandler)
	api.GET("/history", s.historyHandler)
	api.GET("/stats", s.statsHandler)
}

// recognizeGated runs the engine inside the admission gate. The deferred
// Exit releases the slot on every path, engine failure included.
func (s *server) recognizeGated(path string) (ocr.RawOutput, error) {
	if err := s.admission.TryEnter(); err != nil {
		return ocr.RawOutput{}, err
	}
	defer s.admission.Exit()
	return s.engine.Recognize(path)
}

// recognizeHandler accepts a multipart display photo, runs it through the
// gated OCR engine and the extraction heuristic, records the reading and
// relays it to the configured webhook.
func (s *server) recognizeHandler(c *gin.Context) {
	file, err := c.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "image file missing"})
		return
	}
	if file.Size > maxUploadBytes {
		c.JSON(http.StatusBadRequest, gin.H{"error": "image too large (max 10MB)"})
		return
	}
	var meta json.RawMessage
	if raw := c.PostForm("meta"); raw != "" {
		if !json.Valid([]byte(raw)) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "meta must be valid JSON"})
			return
		}
		meta = json.RawMessage(raw)
	}

	id := uuid.NewString()
	dst := filepath.Join(s.cfg.Server.UploadDir, id+filepath.Ext(file.Filename))
	if err := c.SaveUploadedFile(file, dst); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "save upload failed"})
		return
	}
	defer os.Remove(dst)

	start := time.Now()
	raw, err := s.recognizeGated(dst)
	if err != nil {
		var rej *gate.RejectedError
		if errors.As(err, &rej) {
			// backpressure, not an application error
			s.rejected.Add(1)
			log.Debug().Int64("in_flight", rej.InFlight).Int64("limit", rej.Limit).Msg("recognition rejected")
			c.Header("Retry-After", "1")
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":     "too many concurrent recognitions, try again later",
				"in_flight": rej.InFlight,
				"limit":     rej.Limit,
			})
			return
		}
		s.failed.Add(1)
		log.Error().Err(err).Str("id", id).Msg("recognition failed")
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "recognition failed", "id": id})
		return
	}

	extracted := ocr.ExtractWeight(raw.Text)
	reading := history.Reading{
		ID:         id,
		Weight:     extracted.Value,
		Confidence: ocr.MergeConfidence(raw.Confidence, extracted.LocalConfidence),
		RawText:    ocr.NormalizeText(raw.Text),
		Meta:       meta,
		CapturedAt: time.Now(),
	}
	s.ring.Add(reading)
	s.processed.Add(1)

	c.JSON(http.StatusOK, gin.H{
		"id":          reading.ID,
		"weight":      reading.Weight,
		"confidence":  reading.Confidence,
		"raw_text":    reading.RawText,
		"meta":        reading.Meta,
		"duration_ms": time.Since(start).Milliseconds(),
	})

	// response is done; the relay runs on its own and cannot affect it
	s.relay.Dispatch(reading)
}

func (s *server) historyHandler(c *gin.Context) {
	n := 20
	if v := c.Query("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			n = parsed
		}
	}
	c.JSON(http.StatusOK, s.ring.Recent(n))
}

func (s *server) statsHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"processed":      s.processed.Load(),
		"rejected":       s.rejected.Load(),
		"failed":         s.failed.Load(),
		"in_flight":      s.admission.InFlight(),
		"max_concurrent": s.admission.Limit(),
		"history":        s.ring.Len(),
		"uptime_seconds": int64(time.Since(s.started).Seconds()),
	})
}
