package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/luka0304sz/weight-ocr-server/pkg/history"
)

// webhookRelay forwards completed readings to an external endpoint.
// Delivery is fire-and-forget with its own error containment: a dead
// endpoint never affects the admission counter or the HTTP response.
type webhookRelay struct {
	mu     sync.RWMutex
	url    string
	client *http.Client
}

func newWebhookRelay(url string, timeout time.Duration) *webhookRelay {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &webhookRelay{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

// SetURL swaps the target endpoint. An empty URL disables the relay.
func (w *webhookRelay) SetURL(url string) {
	w.mu.Lock()
	w.url = url
	w.mu.Unlock()
}

func (w *webhookRelay) target() string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.url
}

// Dispatch sends the reading to the configured endpoint in the background.
// One retry after a short pause; the final failure is logged and dropped.
func (w *webhookRelay) Dispatch(reading history.Reading) {
	url := w.target()
	if url == "" {
		return
	}
	go func() {
		err := w.deliver(url, reading)
		if err != nil {
			time.Sleep(time.Second)
			err = w.deliver(url, reading)
		}
		if err != nil {
			log.Warn().Err(err).Str("id", reading.ID).Str("url", url).Msg("webhook delivery failed")
		}
	}()
}

func (w *webhookRelay) deliver(url string, reading history.Reading) error {
	body, err := json.Marshal(reading)
	if err != nil {
		return fmt.Errorf("marshal reading: %w", err)
	}
	resp, err := w.client.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook responded %d", resp.StatusCode)
	}
	return nil
}
