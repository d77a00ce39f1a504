package speech

import (
	"context"
	"fmt"
	"io"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAISynthesizer renders speech through the OpenAI TTS API. The named
// voices are not locale-bound, so they are all tagged with the practice
// locale and survive the locale filter.
type OpenAISynthesizer struct {
	client *openai.Client
	model  string
	locale string
}

// NewOpenAISynthesizer builds a synthesizer for the given practice locale.
// Returns ErrUnavailable without an API key, which the caller treats as the
// capability being absent.
func NewOpenAISynthesizer(apiKey, model, locale string) (*OpenAISynthesizer, error) {
	if apiKey == "" {
		return nil, ErrUnavailable
	}
	if model == "" {
		model = string(openai.TTSModel1)
	}
	return &OpenAISynthesizer{
		client: openai.NewClient(apiKey),
		model:  model,
		locale: locale,
	}, nil
}

// Voices lists the OpenAI voice names tagged with the practice locale.
func (o *OpenAISynthesizer) Voices() []Voice {
	names := []openai.SpeechVoice{
		openai.VoiceAlloy,
		openai.VoiceEcho,
		openai.VoiceFable,
		openai.VoiceNova,
		openai.VoiceOnyx,
		openai.VoiceShimmer,
	}
	voices := make([]Voice, 0, len(names))
	for _, n := range names {
		voices = append(voices, Voice{Name: string(n), Locale: o.locale})
	}
	return voices
}

// Synthesize renders the text as MP3 at the requested speaking rate.
func (o *OpenAISynthesizer) Synthesize(ctx context.Context, text string, voice Voice, rate float64) ([]byte, string, error) {
	if text == "" {
		return nil, "", fmt.Errorf("empty synthesis text")
	}
	resp, err := o.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.SpeechModel(o.model),
		Input:          text,
		Voice:          openai.SpeechVoice(voice.Name),
		Speed:          rate,
		ResponseFormat: openai.SpeechResponseFormatMp3,
	})
	if err != nil {
		return nil, "", fmt.Errorf("OpenAI TTS: %w", err)
	}
	defer resp.Close()

	audio, err := io.ReadAll(resp)
	if err != nil {
		return nil, "", fmt.Errorf("reading TTS response: %w", err)
	}
	if len(audio) == 0 {
		return nil, "", fmt.Errorf("empty TTS response")
	}
	return audio, "audio/mpeg", nil
}
