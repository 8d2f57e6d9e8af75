package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/luka0304sz/weight-ocr-server/pkg/config"
	"github.com/luka0304sz/weight-ocr-server/pkg/gate"
	"github.com/luka0304sz/weight-ocr-server/pkg/history"
	"github.com/luka0304sz/weight-ocr-server/pkg/ocr"
)

var errFake = errors.New("corrupt image")

// fakeRecognizer stands in for the Tesseract engine. Optional channels let a
// test hold a recognition open to exercise the admission gate.
type fakeRecognizer struct {
	mu      sync.Mutex
	out     ocr.RawOutput
	err     error
	entered chan struct{}
	release chan struct{}
}

func (f *fakeRecognizer) set(out ocr.RawOutput, err error) {
	f.mu.Lock()
	f.out = out
	f.err = err
	f.mu.Unlock()
}

func (f *fakeRecognizer) Recognize(string) (ocr.RawOutput, error) {
	if f.entered != nil {
		f.entered <- struct{}{}
	}
	if f.release != nil {
		<-f.release
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.out, f.err
}

func newTestServer(t *testing.T, rec Recognizer, maxConcurrent int) (*server, *gin.Engine) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	cfg.Server.UploadDir = t.TempDir()
	srv := newServer(cfg, rec, gate.New(maxConcurrent), history.NewRing(cfg.History.Capacity), newWebhookRelay("", time.Second))
	r := gin.New()
	srv.setupRoutes(r)
	return srv, r
}

func performUpload(r http.Handler, meta string) *httptest.ResponseRecorder {
	buf := &bytes.Buffer{}
	mw := multipart.NewWriter(buf)
	w, _ := mw.CreateFormFile("image", "display.png")
	_, _ = w.Write([]byte("not a real png, the fake engine never reads it"))
	if meta != "" {
		_ = mw.WriteField("meta", meta)
	}
	_ = mw.Close()
	req, _ := http.NewRequest(http.MethodPost, "/api/recognize", buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body %q: %v", rec.Body.String(), err)
	}
	return body
}

func TestRecognizeDecimalReading(t *testing.T) {
	rec := &fakeRecognizer{out: ocr.RawOutput{Text: "162,6 kg", Confidence: 88}}
	srv, r := newTestServer(t, rec, 2)

	resp := performUpload(r, `{"station":"dock-3"}`)
	if resp.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", resp.Code, resp.Body.String())
	}
	body := decodeBody(t, resp)
	if body["weight"] != "162.6" {
		t.Fatalf("weight = %v, want 162.6", body["weight"])
	}
	if conf := body["confidence"].(float64); math.Abs(conf-0.836) > 1e-9 {
		t.Fatalf("confidence = %v, want 0.836", conf)
	}
	if body["raw_text"] != "162,6 kg" {
		t.Fatalf("raw_text = %v", body["raw_text"])
	}
	meta, _ := body["meta"].(map[string]any)
	if meta["station"] != "dock-3" {
		t.Fatalf("meta not echoed: %v", body["meta"])
	}
	if srv.ring.Len() != 1 {
		t.Fatalf("history len = %d, want 1", srv.ring.Len())
	}
}

func TestRecognizeWholeNumberReading(t *testing.T) {
	rec := &fakeRecognizer{out: ocr.RawOutput{Text: "1\n1626", Confidence: 90}}
	_, r := newTestServer(t, rec, 2)

	resp := performUpload(r, "")
	if resp.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", resp.Code, resp.Body.String())
	}
	body := decodeBody(t, resp)
	if body["weight"] != "1626" {
		t.Fatalf("weight = %v, want 1626", body["weight"])
	}
	if conf := body["confidence"].(float64); math.Abs(conf-0.81) > 1e-9 {
		t.Fatalf("confidence = %v, want 0.81", conf)
	}
	if body["raw_text"] != "1 1626" {
		t.Fatalf("raw_text = %v, want whitespace-normalized", body["raw_text"])
	}
}

func TestRecognizeNoNumberFallback(t *testing.T) {
	rec := &fakeRecognizer{out: ocr.RawOutput{Text: "ERROR", Confidence: 80}}
	_, r := newTestServer(t, rec, 2)

	resp := performUpload(r, "")
	if resp.Code != http.StatusOK {
		t.Fatalf("status = %d", resp.Code)
	}
	body := decodeBody(t, resp)
	if body["weight"] != "ERROR" {
		t.Fatalf("weight = %v, want raw text passthrough", body["weight"])
	}
	if conf := body["confidence"].(float64); math.Abs(conf-0.4) > 1e-9 {
		t.Fatalf("confidence = %v, want 0.4", conf)
	}
}

func TestRecognizeMissingImage(t *testing.T) {
	_, r := newTestServer(t, &fakeRecognizer{}, 2)
	req, _ := http.NewRequest(http.MethodPost, "/api/recognize", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestRecognizeRejectsBadMeta(t *testing.T) {
	_, r := newTestServer(t, &fakeRecognizer{}, 2)
	resp := performUpload(r, "{not json")
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.Code)
	}
}

func TestAdmissionRejectionAndRecovery(t *testing.T) {
	rec := &fakeRecognizer{
		out:     ocr.RawOutput{Text: "125.5", Confidence: 95},
		entered: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	srv, r := newTestServer(t, rec, 1)

	done := make(chan *httptest.ResponseRecorder, 1)
	go func() { done <- performUpload(r, "") }()
	<-rec.entered // first request is now inside the guarded section

	resp := performUpload(r, "")
	if resp.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", resp.Code)
	}
	body := decodeBody(t, resp)
	if body["in_flight"].(float64) != 1 || body["limit"].(float64) != 1 {
		t.Fatalf("rejection payload: %v", body)
	}

	rec.release <- struct{}{}
	first := <-done
	if first.Code != http.StatusOK {
		t.Fatalf("held request status = %d body=%s", first.Code, first.Body.String())
	}

	// slot free again: next request must be admitted
	go func() { rec.release <- struct{}{} }()
	resp = performUpload(r, "")
	if resp.Code != http.StatusOK {
		t.Fatalf("post-release status = %d", resp.Code)
	}
	if srv.rejected.Load() != 1 {
		t.Fatalf("rejected counter = %d, want 1", srv.rejected.Load())
	}
	if srv.admission.InFlight() != 0 {
		t.Fatalf("in-flight = %d after completion, want 0", srv.admission.InFlight())
	}
}

func TestEngineFailureReleasesSlot(t *testing.T) {
	rec := &fakeRecognizer{err: errFake}
	srv, r := newTestServer(t, rec, 1)

	resp := performUpload(r, "")
	if resp.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", resp.Code)
	}
	if srv.admission.InFlight() != 0 {
		t.Fatalf("gate slot leaked on engine failure: in-flight = %d", srv.admission.InFlight())
	}
	if srv.failed.Load() != 1 {
		t.Fatalf("failed counter = %d, want 1", srv.failed.Load())
	}

	// the gate must grant again after the failure path released the slot
	rec.set(ocr.RawOutput{Text: "88.8", Confidence: 92}, nil)
	resp = performUpload(r, "")
	if resp.Code != http.StatusOK {
		t.Fatalf("status after recovery = %d body=%s", resp.Code, resp.Body.String())
	}
}

func TestHistoryAndStatsEndpoints(t *testing.T) {
	rec := &fakeRecognizer{out: ocr.RawOutput{Text: "42.0", Confidence: 90}}
	_, r := newTestServer(t, rec, 2)
	for i := 0; i < 3; i++ {
		if resp := performUpload(r, ""); resp.Code != http.StatusOK {
			t.Fatalf("upload %d failed: %d", i, resp.Code)
		}
	}

	req, _ := http.NewRequest(http.MethodGet, "/api/history?limit=2", nil)
	recorder := httptest.NewRecorder()
	r.ServeHTTP(recorder, req)
	if recorder.Code != http.StatusOK {
		t.Fatalf("history status = %d", recorder.Code)
	}
	var readings []history.Reading
	if err := json.Unmarshal(recorder.Body.Bytes(), &readings); err != nil {
		t.Fatalf("decode history: %v", err)
	}
	if len(readings) != 2 {
		t.Fatalf("history len = %d, want 2", len(readings))
	}
	if readings[0].Weight != "42.0" {
		t.Fatalf("reading weight = %q", readings[0].Weight)
	}

	req, _ = http.NewRequest(http.MethodGet, "/api/stats", nil)
	recorder = httptest.NewRecorder()
	r.ServeHTTP(recorder, req)
	stats := decodeBody(t, recorder)
	if stats["processed"].(float64) != 3 {
		t.Fatalf("processed = %v, want 3", stats["processed"])
	}
	if stats["max_concurrent"].(float64) != 2 {
		t.Fatalf("max_concurrent = %v, want 2", stats["max_concurrent"])
	}
}

func TestHealthzAndDashboard(t *testing.T) {
	_, r := newTestServer(t, &fakeRecognizer{}, 2)
	req, _ := http.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz status = %d", rec.Code)
	}

	req, _ = http.NewRequest(http.MethodGet, "/", nil)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("dashboard status = %d", rec.Code)
	}
	if !bytes.Contains(rec.Body.Bytes(), []byte("Weight OCR Server")) {
		t.Fatalf("dashboard body missing title")
	}
}
