package chat

import (
	"iter"
	"strings"

	"github.com/gchcm-gchgc/virtual-assistant-ai-ia-assistant-virtuel/internal/prompt"
)

// splitStream consumes one token stream and feeds two consumers from it:
// everything before the first citation marker goes to emit, chunk by chunk
// and in order; everything after it accumulates as the raw citation trailer.
// The model is invoked exactly once per exchange.
//
// The marker may arrive split across chunk boundaries, so the splitter holds
// back a partial marker prefix until the next chunk resolves it. If emit
// returns an error the stream is abandoned, which cancels the generation.
//
// splitStream returns the full visible text, the cleaned origin, and the
// first error from the stream or from emit. A stream error surfaces after
// any chunks already emitted; the caller decides how to signal it.
func splitStream(stream iter.Seq2[string, error], emit func(string) error) (visible, origin string, err error) {
	var (
		visibleBuf  strings.Builder
		citationBuf strings.Builder
		pending     string
		inCitation  bool
	)

	send := func(s string) bool {
		if s == "" {
			return true
		}
		visibleBuf.WriteString(s)
		if emitErr := emit(s); emitErr != nil {
			err = emitErr
			return false
		}
		return true
	}

	for chunk, streamErr := range stream {
		if streamErr != nil {
			err = streamErr
			break
		}
		if inCitation {
			citationBuf.WriteString(chunk)
			continue
		}

		pending += chunk
		if i := strings.Index(pending, prompt.Marker); i >= 0 {
			before, after := pending[:i], pending[i+len(prompt.Marker):]
			pending = ""
			inCitation = true
			citationBuf.WriteString(after)
			if !send(before) {
				return visibleBuf.String(), "", err
			}
			continue
		}

		// Hold back a trailing partial marker; flush the rest.
		hold := partialMarkerSuffix(pending)
		if flush := pending[:len(pending)-hold]; flush != "" {
			pending = pending[len(pending)-hold:]
			if !send(flush) {
				return visibleBuf.String(), "", err
			}
		}
	}

	// No marker ever completed; the held-back prefix is ordinary text.
	if !inCitation && pending != "" && err == nil {
		send(pending)
	}

	return visibleBuf.String(), CleanOrigin(citationBuf.String()), err
}

// partialMarkerSuffix reports how many trailing bytes of s could still be
// the start of the citation marker.
func partialMarkerSuffix(s string) int {
	for n := len(prompt.Marker) - 1; n > 0; n-- {
		if len(s) >= n && strings.HasPrefix(prompt.Marker, s[len(s)-n:]) {
			return n
		}
	}
	return 0
}

// CleanOrigin normalizes the raw citation trailer the answer model produces
// after its marker. Models decorate the trailer inconsistently; the cleaner
// strips the stop terminator, the origin label, and the closing delimiter,
// returning just the source identifier. An empty trailer cleans to "".
func CleanOrigin(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, prompt.Terminator)
	s = strings.TrimSpace(s)
	if i := strings.Index(s, prompt.OriginLabel); i >= 0 {
		s = s[i+len(prompt.OriginLabel):]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), prompt.Closing)
	return strings.TrimSpace(s)
}
