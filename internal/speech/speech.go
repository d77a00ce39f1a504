// Package speech bridges the app to text-to-speech and speech-recognition
// engines. Engines are injected behind small interfaces so the practice
// logic can run against fakes; capability checks happen once at
// construction, never per request.
package speech

import (
	"context"
	"errors"
	"strings"
)

// ErrUnavailable reports a capability the host has no engine for. Callers
// disable the matching control and show a static message instead.
var ErrUnavailable = errors.New("speech capability unavailable")

// Voice is one synthetic voice with its locale tag.
type Voice struct {
	Name   string
	Locale string
}

// Label renders the voice the way the selector shows it.
func (v Voice) Label() string {
	return v.Name + " (" + v.Locale + ")"
}

// Synthesizer turns text into audio bytes in a single container format.
type Synthesizer interface {
	// Synthesize renders text with the given voice at the given rate and
	// returns encoded audio plus its MIME type.
	Synthesize(ctx context.Context, text string, voice Voice, rate float64) ([]byte, string, error)

	// Voices lists the voices this engine offers.
	Voices() []Voice
}

// Recognizer transcribes a recorded clip, best effort. The app only uses it
// for feedback text; absence is normal and non-fatal.
type Recognizer interface {
	// Recognize returns candidate transcripts for an audio clip.
	Recognize(ctx context.Context, clip []byte, locale string) ([]string, error)
}

// FilterVoices narrows voices to those whose locale starts with the
// practice language's two-letter code. When nothing matches it returns the
// full list unchanged, so the selector is never empty while any voice exists.
func FilterVoices(voices []Voice, lang string) []Voice {
	prefix := strings.ToLower(lang)
	if len(prefix) > 2 {
		prefix = prefix[:2]
	}
	if prefix == "" {
		return voices
	}

	var matching []Voice
	for _, v := range voices {
		if strings.HasPrefix(strings.ToLower(v.Locale), prefix) {
			matching = append(matching, v)
		}
	}
	if len(matching) == 0 {
		return voices
	}
	return matching
}

// VoiceAt selects a voice by index, defaulting to the first voice when the
// index is out of range. Returns false only for an empty list.
func VoiceAt(voices []Voice, index int) (Voice, bool) {
	if len(voices) == 0 {
		return Voice{}, false
	}
	if index < 0 || index >= len(voices) {
		index = 0
	}
	return voices[index], true
}
