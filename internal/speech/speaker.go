package speech

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Utterance is one synthesized clip ready to serve.
type Utterance struct {
	Path     string
	MIME     string
	CacheHit bool
}

// Speaker drives a Synthesizer with a voice list filtered for the practice
// language, an on-disk cache, and single-utterance semantics: starting a new
// utterance cancels whichever one is still rendering.
type Speaker struct {
	synth    Synthesizer
	voices   []Voice
	cacheDir string

	sf singleflight.Group

	mu      sync.Mutex
	current context.CancelFunc
}

// NewSpeaker wires a synthesizer for the given practice language. Returns
// ErrUnavailable when no synthesizer is configured so the caller can disable
// the Listen control up front.
func NewSpeaker(synth Synthesizer, lang, cacheDir string) (*Speaker, error) {
	if synth == nil {
		return nil, ErrUnavailable
	}
	if cacheDir == "" {
		cacheDir = filepath.Join("data", "speech-cache")
	}
	if err := os.MkdirAll(cacheDir, 0755); err != nil {
		return nil, fmt.Errorf("creating speech cache dir: %w", err)
	}
	return &Speaker{
		synth:    synth,
		voices:   FilterVoices(synth.Voices(), lang),
		cacheDir: cacheDir,
	}, nil
}

// Voices returns the filtered voice list backing the selector.
func (s *Speaker) Voices() []Voice {
	return s.voices
}

// Speak renders text with the voice at voiceIndex and the given rate,
// returning a path to the cached audio file. Any in-flight utterance is
// cancelled first, so at most one utterance renders at a time. Concurrent
// requests for the same utterance collapse into one synthesis.
func (s *Speaker) Speak(ctx context.Context, text string, voiceIndex int, rate float64) (Utterance, error) {
	voice, ok := VoiceAt(s.voices, voiceIndex)
	if !ok {
		return Utterance{}, ErrUnavailable
	}
	if rate <= 0 {
		rate = 1.0
	}

	key := s.cacheKey(text, voice, rate)
	finalPath := filepath.Join(s.cacheDir, key)

	if path, mime, ok := cachedUtterance(finalPath); ok {
		return Utterance{Path: path, MIME: mime, CacheHit: true}, nil
	}

	ctx = s.replaceCurrent(ctx)

	v, err, _ := s.sf.Do(key, func() (any, error) {
		if path, mime, ok := cachedUtterance(finalPath); ok {
			return Utterance{Path: path, MIME: mime, CacheHit: true}, nil
		}

		audio, mime, err := s.synth.Synthesize(ctx, text, voice, rate)
		if err != nil {
			return Utterance{}, err
		}

		path := finalPath + extensionFor(mime)
		tmp := path + ".tmp"
		if err := os.WriteFile(tmp, audio, 0644); err != nil {
			return Utterance{}, err
		}
		if err := os.Rename(tmp, path); err != nil {
			_ = os.Remove(tmp)
			return Utterance{}, err
		}
		return Utterance{Path: path, MIME: mime}, nil
	})
	if err != nil {
		return Utterance{}, err
	}
	return v.(Utterance), nil
}

// replaceCurrent cancels the in-flight utterance, if any, and registers a
// cancellable context for the new one.
func (s *Speaker) replaceCurrent(parent context.Context) context.Context {
	ctx, cancel := context.WithCancel(parent)
	s.mu.Lock()
	if s.current != nil {
		s.current()
	}
	s.current = cancel
	s.mu.Unlock()
	return ctx
}

func (s *Speaker) cacheKey(text string, voice Voice, rate float64) string {
	raw := fmt.Sprintf("%s|%s|%.3f|%s", voice.Name, voice.Locale, rate, text)
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// cachedUtterance looks for a previously rendered file under any known
// extension.
func cachedUtterance(base string) (string, string, bool) {
	for ext, mime := range knownFormats {
		path := base + ext
		if st, err := os.Stat(path); err == nil && !st.IsDir() && st.Size() > 0 {
			return path, mime, true
		}
	}
	return "", "", false
}

var knownFormats = map[string]string{
	".mp3": "audio/mpeg",
	".wav": "audio/wav",
	".ogg": "audio/ogg",
}

func extensionFor(mime string) string {
	for ext, m := range knownFormats {
		if m == mime {
			return ext
		}
	}
	return ".mp3"
}
