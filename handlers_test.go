package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"speakingbuddy/internal/scoring"
)

// testClient drives the router while carrying cookies between requests, the
// way a browser session would.
type testClient struct {
	t       *testing.T
	router  *gin.Engine
	cookies []*http.Cookie
}

func newTestClient(t *testing.T, app *App) *testClient {
	t.Helper()
	gin.SetMode(gin.TestMode)
	return &testClient{t: t, router: app.buildRouter()}
}

func (tc *testClient) do(method, path string, form url.Values) *httptest.ResponseRecorder {
	tc.t.Helper()
	var req *http.Request
	if form != nil {
		req = httptest.NewRequest(method, path, strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for _, cookie := range tc.cookies {
		req.AddCookie(cookie)
	}

	w := httptest.NewRecorder()
	tc.router.ServeHTTP(w, req)

	for _, cookie := range w.Result().Cookies() {
		tc.cookies = append(tc.cookies, cookie)
	}
	return w
}

// doParallel issues a request without recording response cookies, safe for
// concurrent use once the session cookie is established.
func (tc *testClient) doParallel(method, path string, form url.Values) *httptest.ResponseRecorder {
	var req *http.Request
	if form != nil {
		req = httptest.NewRequest(method, path, strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for _, cookie := range tc.cookies {
		req.AddCookie(cookie)
	}
	w := httptest.NewRecorder()
	tc.router.ServeHTTP(w, req)
	return w
}

func (tc *testClient) sessionID() string {
	for _, cookie := range tc.cookies {
		if cookie.Name == SessionCookieName {
			return cookie.Value
		}
	}
	return ""
}

func (tc *testClient) postRaw(path string, body []byte) *httptest.ResponseRecorder {
	tc.t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(string(body)))
	for _, cookie := range tc.cookies {
		req.AddCookie(cookie)
	}
	w := httptest.NewRecorder()
	tc.router.ServeHTTP(w, req)
	return w
}

func TestHomeHandler(t *testing.T) {
	tc := newTestClient(t, testApp())
	w := tc.do(http.MethodGet, "/", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("home status = %d, want 200", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, "SpeakingBuddy") {
		t.Error("home page missing title")
	}
	if !strings.Contains(body, "Animals") {
		t.Error("home page missing category card")
	}
}

func TestTopicHandler(t *testing.T) {
	tc := newTestClient(t, testApp())
	w := tc.do(http.MethodGet, "/topic/animals", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("topic status = %d, want 200", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, "Hund") {
		t.Error("topic page missing first word")
	}
	if !strings.Contains(body, "1/6") {
		t.Error("topic page missing counter")
	}
}

func TestTopicHandlerUnknownCategory(t *testing.T) {
	tc := newTestClient(t, testApp())
	w := tc.do(http.MethodGet, "/topic/nonsense", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("unknown topic status = %d, want 404", w.Code)
	}
}

func TestNavHandlerClampsAtStart(t *testing.T) {
	tc := newTestClient(t, testApp())
	tc.do(http.MethodGet, "/topic/animals", nil)

	w := tc.do(http.MethodPost, "/practice/nav", url.Values{
		"category": {"animals"},
		"delta":    {"-1"},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("nav status = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), "1/6") {
		t.Error("previous at first card must stay on 1/6")
	}
}

func TestNavHandlerAdvances(t *testing.T) {
	tc := newTestClient(t, testApp())
	tc.do(http.MethodGet, "/topic/animals", nil)

	w := tc.do(http.MethodPost, "/practice/nav", url.Values{
		"category": {"animals"},
		"delta":    {"1"},
	})
	if !strings.Contains(w.Body.String(), "2/6") {
		t.Error("next must advance to 2/6")
	}
	if !strings.Contains(w.Body.String(), "Katze") {
		t.Error("second card must show the second word")
	}
}

func TestRecordingFlow(t *testing.T) {
	tc := newTestClient(t, testApp())
	tc.do(http.MethodGet, "/topic/animals", nil)

	w := tc.do(http.MethodPost, "/practice/record/start", url.Values{"category": {"animals"}})
	if w.Code != http.StatusOK {
		t.Fatalf("record start status = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), MsgRecordingActive) {
		t.Error("recording fragment missing active hint")
	}

	w = tc.postRaw("/practice/record/chunk?category=animals", []byte("webm-data"))
	if w.Code != http.StatusNoContent {
		t.Fatalf("chunk status = %d, want 204", w.Code)
	}

	w = tc.do(http.MethodPost, "/practice/record/stop", url.Values{"category": {"animals"}})
	if w.Code != http.StatusOK {
		t.Fatalf("record stop status = %d, want 200", w.Code)
	}

	w = tc.do(http.MethodGet, "/practice/clip?category=animals", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("clip status = %d, want 200", w.Code)
	}
	if got := w.Header().Get("Content-Type"); !strings.HasPrefix(got, ClipMIMEType) {
		t.Errorf("clip content type = %q, want %q", got, ClipMIMEType)
	}
	if w.Body.String() != "webm-data" {
		t.Errorf("clip body = %q, want the posted chunk", w.Body.String())
	}
}

func TestRecordChunkWhileIdle(t *testing.T) {
	tc := newTestClient(t, testApp())
	tc.do(http.MethodGet, "/topic/animals", nil)

	w := tc.postRaw("/practice/record/chunk?category=animals", []byte("late"))
	if w.Code != http.StatusConflict {
		t.Fatalf("idle chunk status = %d, want 409", w.Code)
	}
}

func TestRecordLevelHandler(t *testing.T) {
	tc := newTestClient(t, testApp())
	tc.do(http.MethodGet, "/topic/animals", nil)

	window := make([]byte, MeterWindowSize)
	for i := range window {
		window[i] = 255
	}
	w := tc.postRaw("/practice/record/level?category=animals", window)
	if w.Code != http.StatusOK {
		t.Fatalf("level status = %d, want 200", w.Code)
	}
	var resp struct {
		Level int `json:"level"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Level != 100 {
		t.Errorf("level = %d, want 100 for full-scale window", resp.Level)
	}
}

func TestRetryHandlerResetsClip(t *testing.T) {
	tc := newTestClient(t, testApp())
	tc.do(http.MethodGet, "/topic/animals", nil)
	tc.do(http.MethodPost, "/practice/record/start", url.Values{"category": {"animals"}})
	tc.postRaw("/practice/record/chunk?category=animals", []byte("take"))
	tc.do(http.MethodPost, "/practice/record/stop", url.Values{"category": {"animals"}})

	w := tc.do(http.MethodPost, "/practice/record/retry", url.Values{"category": {"animals"}})
	if w.Code != http.StatusOK {
		t.Fatalf("retry status = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), MsgRetryFeedback) {
		t.Error("retry fragment missing retry feedback")
	}

	w = tc.do(http.MethodGet, "/practice/clip?category=animals", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("clip after retry status = %d, want 404", w.Code)
	}
}

func TestEvaluateWithoutClip(t *testing.T) {
	tc := newTestClient(t, testApp())
	tc.do(http.MethodGet, "/topic/animals", nil)

	w := tc.do(http.MethodPost, "/practice/evaluate", url.Values{"category": {"animals"}})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("evaluate without clip status = %d, want 400", w.Code)
	}
}

// backendStub builds a scoring backend that serves one category of words and
// answers pronunciation checks with the given handler.
func backendStub(t *testing.T, check http.HandlerFunc) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/categories/animals/words", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]scoring.Word{
			{ID: 1, WordLB: "Hund", Translation: "Dog"},
			{ID: 2, WordLB: "Katze", Translation: "Cat"},
		})
	})
	mux.HandleFunc("/api/pronunciation/check", check)
	return httptest.NewServer(mux)
}

func appWithBackend(t *testing.T, backendURL string) *App {
	t.Helper()
	app := testApp()
	client, err := scoring.New(scoring.Config{BaseURL: backendURL, Timeout: 2 * time.Second})
	if err != nil {
		t.Fatal(err)
	}
	app.Scoring = client
	return app
}

func recordClip(tc *testClient) {
	tc.do(http.MethodGet, "/topic/animals", nil)
	tc.do(http.MethodPost, "/practice/record/start", url.Values{"category": {"animals"}})
	tc.postRaw("/practice/record/chunk?category=animals", []byte("clip"))
	tc.do(http.MethodPost, "/practice/record/stop", url.Values{"category": {"animals"}})
}

func TestEvaluateSuccess(t *testing.T) {
	backend := backendStub(t, func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parsing multipart form: %v", err)
		}
		if got := r.FormValue("word_id"); got != "1" {
			t.Errorf("word_id = %q, want \"1\"", got)
		}
		json.NewEncoder(w).Encode(scoring.Result{Score: 87, Feedback: "Great pronunciation!"})
	})
	defer backend.Close()

	tc := newTestClient(t, appWithBackend(t, backend.URL))
	recordClip(tc)

	w := tc.do(http.MethodPost, "/practice/evaluate", url.Values{"category": {"animals"}})
	if w.Code != http.StatusOK {
		t.Fatalf("evaluate status = %d, want 200", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, "87/100") {
		t.Errorf("feedback missing score, body: %s", body)
	}
	if !strings.Contains(body, "Great pronunciation!") {
		t.Error("feedback missing backend message")
	}
}

func TestEvaluateBackendFailure(t *testing.T) {
	backend := backendStub(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "scoring exploded", http.StatusInternalServerError)
	})
	defer backend.Close()

	tc := newTestClient(t, appWithBackend(t, backend.URL))
	recordClip(tc)

	w := tc.do(http.MethodPost, "/practice/evaluate", url.Values{"category": {"animals"}})
	if w.Code != http.StatusOK {
		t.Fatalf("failed evaluate status = %d, want 200 with inline feedback", w.Code)
	}
	if !strings.Contains(w.Body.String(), MsgEvaluateFailed) {
		t.Error("feedback fragment missing failure message")
	}

	// The clip survives the failure, so the user can evaluate again.
	w = tc.do(http.MethodGet, "/practice/clip?category=animals", nil)
	if w.Code != http.StatusOK {
		t.Error("clip must survive a failed evaluation")
	}
}

func TestQuizRoundOverHTTP(t *testing.T) {
	tc := newTestClient(t, testApp())
	tc.do(http.MethodGet, "/topic/animals", nil)

	w := tc.do(http.MethodPost, "/quiz/start", url.Values{"category": {"animals"}})
	if w.Code != http.StatusOK {
		t.Fatalf("quiz start status = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), "Question 1/") {
		t.Error("quiz fragment missing counter")
	}

	w = tc.do(http.MethodPost, "/quiz/answer", url.Values{
		"category": {"animals"},
		"option":   {"0"},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("quiz answer status = %d, want 200", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, MsgQuizCorrect) && !strings.Contains(body, "Not quite") {
		t.Error("answered quiz fragment missing feedback")
	}

	w = tc.do(http.MethodPost, "/quiz/next", url.Values{"category": {"animals"}})
	if w.Code != http.StatusOK {
		t.Fatalf("quiz next status = %d, want 200", w.Code)
	}
}

// A second evaluate while the first is still waiting on the backend must be
// rejected, not stacked.
func TestEvaluateWhileInFlightConflicts(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	backend := backendStub(t, func(w http.ResponseWriter, r *http.Request) {
		close(entered)
		<-release
		json.NewEncoder(w).Encode(scoring.Result{Score: 90, Feedback: "Solid."})
	})
	defer backend.Close()

	tc := newTestClient(t, appWithBackend(t, backend.URL))
	recordClip(tc)

	form := url.Values{"category": {"animals"}}
	first := make(chan int)
	go func() {
		first <- tc.doParallel(http.MethodPost, "/practice/evaluate", form).Code
	}()
	<-entered

	if w := tc.doParallel(http.MethodPost, "/practice/evaluate", form); w.Code != http.StatusConflict {
		t.Errorf("evaluate during an in-flight evaluate = %d, want 409", w.Code)
	}

	close(release)
	if code := <-first; code != http.StatusOK {
		t.Errorf("in-flight evaluate finished with %d, want 200", code)
	}
}

// Meter posts arrive every 100ms while the learner toggles the recorder;
// interleaving them must leave the state consistent.
func TestLevelPostsInterleaveWithToggles(t *testing.T) {
	tc := newTestClient(t, testApp())
	tc.do(http.MethodGet, "/topic/animals", nil)

	window := make([]byte, MeterWindowSize)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 25; i++ {
			tc.postRaw("/practice/record/level?category=animals", window)
		}
	}()
	form := url.Values{"category": {"animals"}}
	for i := 0; i < 10; i++ {
		if w := tc.doParallel(http.MethodPost, "/practice/record/start", form); w.Code != http.StatusOK {
			t.Fatalf("toggle %d status = %d, want 200", i, w.Code)
		}
	}
	<-done

	// Even toggle count leaves the recorder idle; the meter endpoint still
	// answers with a level.
	w := tc.doParallel(http.MethodPost, "/practice/record/chunk?category=animals", nil)
	if w.Code != http.StatusConflict {
		t.Errorf("chunk after even toggles = %d, want 409 from an idle recorder", w.Code)
	}
}

func TestQuizAnswerWithoutStart(t *testing.T) {
	tc := newTestClient(t, testApp())
	tc.do(http.MethodGet, "/topic/animals", nil)

	w := tc.do(http.MethodPost, "/quiz/answer", url.Values{
		"category": {"animals"},
		"option":   {"0"},
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("answer without start status = %d, want 400", w.Code)
	}
}

func TestQuizNextBeforeAnswer(t *testing.T) {
	tc := newTestClient(t, testApp())
	tc.do(http.MethodGet, "/topic/animals", nil)
	tc.do(http.MethodPost, "/quiz/start", url.Values{"category": {"animals"}})

	w := tc.do(http.MethodPost, "/quiz/next", url.Values{"category": {"animals"}})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("next before answer status = %d, want 400", w.Code)
	}
	if !strings.Contains(w.Body.String(), ErrorQuizNotAnswered) {
		t.Error("response missing the unanswered-question error")
	}
}

func TestQuizMovesAfterFinishRejected(t *testing.T) {
	tc := newTestClient(t, testApp())
	tc.do(http.MethodGet, "/topic/animals", nil)
	tc.do(http.MethodPost, "/quiz/start", url.Values{"category": {"animals"}})

	// Six words in the test catalog, so six answer/next pairs end the round.
	for i := 0; i < 6; i++ {
		tc.do(http.MethodPost, "/quiz/answer", url.Values{
			"category": {"animals"},
			"option":   {"0"},
		})
		tc.do(http.MethodPost, "/quiz/next", url.Values{"category": {"animals"}})
	}

	w := tc.do(http.MethodPost, "/quiz/next", url.Values{"category": {"animals"}})
	if w.Code != http.StatusConflict {
		t.Errorf("next after finish status = %d, want 409", w.Code)
	}
	if !strings.Contains(w.Body.String(), ErrorQuizFinished) {
		t.Error("response missing the finished-round error")
	}

	w = tc.do(http.MethodPost, "/quiz/answer", url.Values{
		"category": {"animals"},
		"option":   {"0"},
	})
	if w.Code != http.StatusConflict {
		t.Errorf("answer after finish status = %d, want 409", w.Code)
	}
}

// Quiz moves are mirrored to disk, so a restart restores the round mid-game.
func TestQuizStateMirroredToDisk(t *testing.T) {
	app := testApp()
	tc := newTestClient(t, app)
	tc.do(http.MethodGet, "/topic/animals", nil)
	tc.do(http.MethodPost, "/quiz/start", url.Values{"category": {"animals"}})
	tc.do(http.MethodPost, "/quiz/answer", url.Values{
		"category": {"animals"},
		"option":   {"0"},
	})

	key := practiceKey(tc.sessionID(), "animals")
	t.Cleanup(func() {
		os.Remove(filepath.Join(sessionDir, sessionFileName(key)))
	})

	loaded, err := app.loadPracticeStateFromFile(key)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Quiz == nil {
		t.Fatal("mirrored state is missing the quiz round")
	}
	if !loaded.Quiz.Answered {
		t.Error("mirrored quiz round must reflect the answered question")
	}
}

func TestSettingsHandlerPersistsPreferences(t *testing.T) {
	tc := newTestClient(t, testApp())

	w := tc.do(http.MethodPost, "/settings", url.Values{
		"lang": {"fr"},
		"mode": {"audio"},
	})
	if w.Code != http.StatusSeeOther {
		t.Fatalf("settings status = %d, want 303", w.Code)
	}

	var lang, mode string
	for _, cookie := range tc.cookies {
		switch cookie.Name {
		case LanguageCookieName:
			lang = cookie.Value
		case DifficultyCookieName:
			mode = cookie.Value
		}
	}
	if lang != "fr" || mode != "audio" {
		t.Errorf("cookies = %q/%q, want fr/audio", lang, mode)
	}
}

func TestQueryOverrideDoesNotPersist(t *testing.T) {
	tc := newTestClient(t, testApp())

	w := tc.do(http.MethodGet, "/topic/animals?lang=de", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("topic status = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), "Deutsch") {
		t.Error("query override must switch the translation target for this load")
	}

	for _, cookie := range tc.cookies {
		if cookie.Name == LanguageCookieName {
			t.Error("query override must not write the language cookie")
		}
	}
}

func TestHealthzHandler(t *testing.T) {
	tc := newTestClient(t, testApp())
	w := tc.do(http.MethodGet, "/healthz", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("healthz status = %d, want 200", w.Code)
	}
	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp["status"] != "ok" {
		t.Errorf("status = %v, want ok", resp["status"])
	}
}
