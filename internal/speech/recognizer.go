package speech

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// NewRecognizer builds the best-effort recognizer: Whisper-backed when an
// API key is available, nil plus ErrUnavailable otherwise. The caller keeps
// working without one and shows a static message instead of a transcript.
func NewRecognizer(apiKey string) (Recognizer, error) {
	if apiKey == "" {
		return nil, ErrUnavailable
	}
	return &whisperRecognizer{client: openai.NewClient(apiKey)}, nil
}

type whisperRecognizer struct {
	client *openai.Client
}

// Recognize transcribes a recorded clip. A single transcript is returned;
// Whisper does not expose alternatives.
func (w *whisperRecognizer) Recognize(ctx context.Context, clip []byte, locale string) ([]string, error) {
	if len(clip) == 0 {
		return nil, fmt.Errorf("empty clip")
	}
	lang := locale
	if i := strings.IndexByte(lang, '-'); i > 0 {
		lang = lang[:i]
	}
	resp, err := w.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    openai.Whisper1,
		FilePath: "recording.webm",
		Reader:   bytes.NewReader(clip),
		Language: lang,
	})
	if err != nil {
		return nil, fmt.Errorf("transcription: %w", err)
	}
	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return nil, nil
	}
	return []string{text}, nil
}
