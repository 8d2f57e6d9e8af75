// Package ocr wraps Tesseract recognition of digital weight-display photos
// and the heuristic that turns the recognized text into a numeric reading.
package ocr

import (
	"fmt"
	"image"
	"os"
	"sync"

	"github.com/disintegration/imaging"
	"github.com/rs/zerolog/log"
)

// RawOutput is the recognition engine's product for one frame: raw text plus
// the engine's own confidence on its native 0-100 scale. Immutable once
// produced.
type RawOutput struct {
	Text       string
	Confidence float64
}

// Engine runs Tesseract over weight-display photos. The language can be
// swapped at runtime (config reload); everything else is fixed per process.
type Engine struct {
	mu   sync.RWMutex
	lang string
}

// NewEngine returns an Engine recognizing in the given Tesseract language
// ("eng" when empty).
func NewEngine(language string) *Engine {
	if language == "" {
		language = "eng"
	}
	return &Engine{lang: language}
}

// SetLanguage swaps the Tesseract language used by subsequent recognitions.
func (e *Engine) SetLanguage(lang string) {
	if lang == "" {
		return
	}
	e.mu.Lock()
	e.lang = lang
	e.mu.Unlock()
}

// Language reports the currently configured Tesseract language.
func (e *Engine) Language() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.lang
}

// Recognize OCRs the image at path and returns the raw text with the
// engine's mean word confidence. The frame is preprocessed for segment
// displays first; if the digit-oriented pass comes back empty a sparse pass
// over the untouched image is tried before giving up. Errors here are engine
// failures and are propagated to the caller as-is (wrapped).
func (e *Engine) Recognize(path string) (RawOutput, error) {
	lang := e.Language()

	frame, err := prepareFrame(path)
	if err != nil {
		return RawOutput{}, fmt.Errorf("prepare frame: %w", err)
	}
	tmp, spooled := spoolFrame(frame, path)
	if spooled {
		defer os.Remove(tmp)
	}

	out, err := runDisplayPass(tmp, lang)
	if err != nil {
		return RawOutput{}, fmt.Errorf("ocr engine: %w", err)
	}
	if !hasDigit(out.Text) {
		// Segment displays photographed at an angle sometimes defeat the
		// binarized single-block pass; a sparse pass over the original
		// frame catches scattered digits.
		sparse, serr := runSparsePass(path, lang)
		if serr == nil && hasDigit(sparse.Text) {
			out = sparse
		}
	}
	log.Debug().Str("path", path).Float64("confidence", out.Confidence).
		Str("text", snippet(NormalizeText(out.Text), 160)).Msg("ocr raw output")
	return out, nil
}

// spoolFrame writes the preprocessed frame to a temp PNG for Tesseract and
// reports whether the caller owns a file to remove. On any failure it falls
// back to the original path, leaving nothing behind on disk.
func spoolFrame(frame image.Image, original string) (string, bool) {
	tmpFile, err := os.CreateTemp("", "weight-ocr-*.png")
	if err != nil {
		log.Debug().Err(err).Msg("temp frame unavailable, recognizing original image")
		return original, false
	}
	tmp := tmpFile.Name()
	_ = tmpFile.Close()
	if err := imaging.Save(frame, tmp); err != nil {
		_ = os.Remove(tmp)
		log.Debug().Err(err).Msg("preprocessed frame not saved, recognizing original image")
		return original, false
	}
	return tmp, true
}

func hasDigit(s string) bool {
	for _, r := range s {
		if r >= '0' && r <= '9' {
			return true
		}
	}
	return false
}
