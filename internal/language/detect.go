// Package language provides best-effort question language detection.
//
// The tag is advisory only: it selects the case-details presentation
// language. Detection failure never aborts a request.
package language

import (
	"strings"

	"github.com/abadojack/whatlanggo"
)

// Supported presentation languages.
const (
	English = "en"
	French  = "fr"
)

// Detect returns "fr" when the text is confidently French, "en" otherwise.
// Short questions defeat statistical detection, so anything unreliable
// falls back to English.
func Detect(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return English
	}

	info := whatlanggo.Detect(text)
	if !info.IsReliable() {
		return English
	}
	if info.Lang == whatlanggo.Fra {
		return French
	}
	return English
}
