package scoring

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestNewRequiresBaseURL(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Error("expected error for empty base URL")
	}
}

func TestNewTrimsTrailingSlash(t *testing.T) {
	c, err := New(Config{BaseURL: "http://backend:8000/"})
	if err != nil {
		t.Fatal(err)
	}
	if got := c.ReferenceAudioURL(7); got != "http://backend:8000/api/audio/7" {
		t.Errorf("audio URL = %q", got)
	}
}

func TestListCategories(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/categories" {
			t.Errorf("path = %q, want /api/categories", r.URL.Path)
		}
		json.NewEncoder(w).Encode([]Category{
			{ID: 1, Name: "animals", DisplayName: "Animals", WordCount: 10},
		})
	}))
	defer srv.Close()

	c, err := New(Config{BaseURL: srv.URL})
	if err != nil {
		t.Fatal(err)
	}
	cats, err := c.ListCategories(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(cats) != 1 || cats[0].Name != "animals" {
		t.Errorf("categories = %+v", cats)
	}
}

func TestListWordsBuildsURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/categories/animals/words" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.URL.Query().Get("lang"); got != "fr" {
			t.Errorf("lang = %q, want fr", got)
		}
		json.NewEncoder(w).Encode([]Word{{ID: 1, WordLB: "Hund", Translation: "Chien"}})
	}))
	defer srv.Close()

	c, err := New(Config{BaseURL: srv.URL})
	if err != nil {
		t.Fatal(err)
	}
	words, err := c.ListWords(context.Background(), "animals", "fr")
	if err != nil {
		t.Fatal(err)
	}
	if len(words) != 1 || words[0].Translation != "Chien" {
		t.Errorf("words = %+v", words)
	}
}

func TestCheckPronunciationMultipartContract(t *testing.T) {
	clip := []byte("webm-bytes")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/pronunciation/check" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("parsing multipart: %v", err)
		}
		if got := r.FormValue("word_id"); got != "42" {
			t.Errorf("word_id = %q, want \"42\" (string field)", got)
		}

		file, header, err := r.FormFile("audio")
		if err != nil {
			t.Fatalf("reading audio part: %v", err)
		}
		defer file.Close()
		if header.Filename != "recording.webm" {
			t.Errorf("file name = %q, want recording.webm", header.Filename)
		}
		data, _ := io.ReadAll(file)
		if string(data) != string(clip) {
			t.Errorf("file payload = %q, want %q", data, clip)
		}

		json.NewEncoder(w).Encode(Result{Score: 91.5, Feedback: "Nice"})
	}))
	defer srv.Close()

	c, err := New(Config{BaseURL: srv.URL})
	if err != nil {
		t.Fatal(err)
	}
	result, err := c.CheckPronunciation(context.Background(), 42, clip)
	if err != nil {
		t.Fatal(err)
	}
	if result.Score != 91.5 || result.Feedback != "Nice" {
		t.Errorf("result = %+v", result)
	}
}

func TestNon2xxBecomesStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no reference audio for word", http.StatusNotFound)
	}))
	defer srv.Close()

	c, err := New(Config{BaseURL: srv.URL})
	if err != nil {
		t.Fatal(err)
	}
	_, err = c.ListCategories(context.Background())
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("error type = %T, want *StatusError", err)
	}
	if statusErr.Code != http.StatusNotFound {
		t.Errorf("code = %d, want 404", statusErr.Code)
	}
	// The backend's own message is carried verbatim.
	if statusErr.Body != "no reference audio for word" {
		t.Errorf("body = %q", statusErr.Body)
	}
}

func TestTimeoutBoundsSlowBackend(t *testing.T) {
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
	}))
	defer slow.Close()

	c, err := New(Config{BaseURL: slow.URL, Timeout: 50 * time.Millisecond})
	if err != nil {
		t.Fatal(err)
	}
	start := time.Now()
	_, err = c.ListCategories(context.Background())
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if elapsed := time.Since(start); elapsed > 400*time.Millisecond {
		t.Errorf("call took %v, timeout did not bound it", elapsed)
	}
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, "down", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c, err := New(Config{BaseURL: srv.URL})
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 5; i++ {
		c.ListCategories(context.Background())
	}
	// After three consecutive failures the breaker opens and later calls
	// fail fast without reaching the backend.
	if calls > 3 {
		t.Errorf("backend saw %d calls, want at most 3 before the breaker opens", calls)
	}
}
