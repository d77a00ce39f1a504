// Package scoring is the client for the external pronunciation-scoring
// backend. The backend is the authoritative oracle: no scoring computation
// happens on this side, and no failed call is retried automatically.
package scoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"
)

// Category is one vocabulary category as reported by the backend.
type Category struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	ImageURL    string `json:"image_url"`
	WordCount   int    `json:"word_count"`
}

// Word is one vocabulary record with its stable backend identifier.
type Word struct {
	ID          int64  `json:"id"`
	WordLB      string `json:"word_lb"`
	Translation string `json:"translation"`
	Gender      string `json:"gender"`
	AudioURL    string `json:"audio_url"`
}

// Breakdown is the per-feature acoustic score set, each 0-100.
type Breakdown struct {
	Pitch        float64 `json:"pitch"`
	Formants     float64 `json:"formants"`
	Intensity    float64 `json:"intensity"`
	Duration     float64 `json:"duration"`
	VoiceQuality float64 `json:"voice_quality"`
}

// Result is the backend's verdict for one recorded attempt.
type Result struct {
	Score        float64   `json:"score"`
	Feedback     string    `json:"feedback"`
	Breakdown    Breakdown `json:"breakdown"`
	Improvements []string  `json:"improvements"`
	Suggestions  []string  `json:"suggestions"`
}

// StatusError carries a non-2xx response verbatim so callers can surface the
// backend's own message to the user.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("backend returned %d: %s", e.Code, e.Body)
}

// Config holds client settings. Timeout bounds every call; the upstream
// client had none, which left dead backends hanging the UI.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Client talks to the scoring backend over HTTP. A circuit breaker fails
// calls fast while the backend is down instead of stacking slow requests.
type Client struct {
	base    string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
}

// New builds a Client for the given base URL.
func New(cfg Config) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, fmt.Errorf("scoring backend URL is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "scoring-backend",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
	})

	return &Client{
		base:    base,
		http:    &http.Client{Timeout: cfg.Timeout},
		breaker: breaker,
	}, nil
}

// ListCategories fetches all categories with word counts.
func (c *Client) ListCategories(ctx context.Context) ([]Category, error) {
	var categories []Category
	err := c.getJSON(ctx, c.base+"/api/categories", &categories)
	return categories, err
}

// ListWords fetches the ordered word list for a category, with translations
// in the requested language.
func (c *Client) ListWords(ctx context.Context, category, lang string) ([]Word, error) {
	endpoint := fmt.Sprintf("%s/api/categories/%s/words?lang=%s",
		c.base, url.PathEscape(category), url.QueryEscape(lang))
	var words []Word
	err := c.getJSON(ctx, endpoint, &words)
	return words, err
}

// ReferenceAudioURL builds the URL of a word's reference pronunciation.
func (c *Client) ReferenceAudioURL(wordID int64) string {
	return fmt.Sprintf("%s/api/audio/%d", c.base, wordID)
}

// CheckPronunciation posts a recorded clip for scoring. The multipart form
// carries the word ID as a string field and the clip as a file part named
// recording.webm, matching the backend's contract exactly.
func (c *Client) CheckPronunciation(ctx context.Context, wordID int64, clip []byte) (Result, error) {
	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	if err := form.WriteField("word_id", strconv.FormatInt(wordID, 10)); err != nil {
		return Result{}, err
	}
	part, err := form.CreateFormFile("audio", "recording.webm")
	if err != nil {
		return Result{}, err
	}
	if _, err := part.Write(clip); err != nil {
		return Result{}, err
	}
	if err := form.Close(); err != nil {
		return Result{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.base+"/api/pronunciation/check", &body)
	if err != nil {
		return Result{}, err
	}
	req.Header.Set("Content-Type", form.FormDataContentType())

	var result Result
	if err := c.do(req, &result); err != nil {
		return Result{}, err
	}
	return result, nil
}

func (c *Client) getJSON(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

// do executes a request through the circuit breaker and decodes a 2xx JSON
// body into out. Non-2xx responses become a StatusError with the body verbatim.
func (c *Client) do(req *http.Request, out any) error {
	_, err := c.breaker.Execute(func() (any, error) {
		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(data))}
		}
		if out != nil {
			if err := json.Unmarshal(data, out); err != nil {
				return nil, fmt.Errorf("decoding backend response: %w", err)
			}
		}
		return nil, nil
	})
	return err
}
