// Command recognize runs one display photo through the OCR engine and the
// extraction heuristic without starting the server. Handy for checking how a
// particular scale photo reads.
package main

import (
	"fmt"
	"os"

	"github.com/luka0304sz/weight-ocr-server/pkg/ocr"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: recognize <image> [language]")
		os.Exit(2)
	}
	lang := "eng"
	if len(os.Args) > 2 {
		lang = os.Args[2]
	}
	engine := ocr.NewEngine(lang)
	raw, err := engine.Recognize(os.Args[1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "recognize: %v\n", err)
		os.Exit(1)
	}
	ex := ocr.ExtractWeight(raw.Text)
	fmt.Printf("raw_text=%q engine_conf=%.1f\n", ocr.NormalizeText(raw.Text), raw.Confidence)
	fmt.Printf("weight=%q local_conf=%.2f final_conf=%.3f\n",
		ex.Value, ex.LocalConfidence, ocr.MergeConfidence(raw.Confidence, ex.LocalConfidence))
}
