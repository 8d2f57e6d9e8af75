package ocr

import (
	"github.com/otiai10/gosseract/v2"
)

// displayWhitelist restricts recognition to what a weight panel can show:
// digits, separators, a minus sign and unit letters.
const displayWhitelist = "0123456789.,-kgKG "

// runDisplayPass OCRs a preprocessed frame assuming a single block of large
// display digits.
func runDisplayPass(path, lang string) (RawOutput, error) {
	return runPass(path, lang, displayWhitelist, gosseract.PSM_SINGLE_BLOCK)
}

// runSparsePass OCRs the untouched image with sparse-text segmentation, used
// as a fallback when the display pass finds no digits.
func runSparsePass(path, lang string) (RawOutput, error) {
	return runPass(path, lang, displayWhitelist, gosseract.PSM_SPARSE_TEXT)
}

func runPass(path, lang, whitelist string, mode gosseract.PageSegMode) (RawOutput, error) {
	client := gosseract.NewClient()
	defer client.Close()
	_ = client.SetLanguage(lang)
	_ = client.SetWhitelist(whitelist)
	_ = client.SetPageSegMode(mode)
	if err := client.SetImage(path); err != nil {
		return RawOutput{}, err
	}
	text, err := client.Text()
	if err != nil {
		return RawOutput{}, err
	}
	return RawOutput{Text: text, Confidence: meanWordConfidence(client)}, nil
}

// meanWordConfidence averages Tesseract's per-word confidences (0-100).
// An empty page yields 0.
func meanWordConfidence(client *gosseract.Client) float64 {
	boxes, err := client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil || len(boxes) == 0 {
		return 0
	}
	sum := 0.0
	for _, b := range boxes {
		sum += b.Confidence
	}
	return sum / float64(len(boxes))
}
