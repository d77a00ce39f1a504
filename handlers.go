package main

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"

	"speakingbuddy/internal/progress"
	"speakingbuddy/internal/scoring"
	"speakingbuddy/internal/speech"
)

// categoryCard is one tile on the landing page.
type categoryCard struct {
	Name        string
	DisplayName string
	Emoji       string
	WordCount   int
}

// homeHandler renders the landing page: categories, settings, session stats.
func (app *App) homeHandler(c *gin.Context) {
	sessionID := app.getOrCreateSession(c)
	prefs := app.loadPreferences(c)
	cards := app.categoryCards(c)

	var stats progress.Stats
	if app.Progress != nil {
		s, err := app.Progress.SessionStats(sessionID)
		if err != nil {
			logWarn("Failed to load session stats: %v", err)
		} else {
			stats = s
		}
	}

	c.HTML(http.StatusOK, "index.html", gin.H{
		"title":      "SpeakingBuddy - Pronunciation Practice",
		"categories": cards,
		"prefs":      prefs,
		"stats":      stats,
		"languages":  supportedLanguages,
	})
}

// categoryCards lists categories from the backend when available, otherwise
// from the static catalogs.
func (app *App) categoryCards(c *gin.Context) []categoryCard {
	if app.Scoring != nil {
		cats, err := app.Scoring.ListCategories(c.Request.Context())
		if err == nil && len(cats) > 0 {
			return lo.Map(cats, func(cat scoring.Category, _ int) categoryCard {
				card := categoryCard{Name: cat.Name, DisplayName: cat.DisplayName, WordCount: cat.WordCount}
				if local, ok := app.catalogFor(cat.Name); ok {
					card.Emoji = local.Emoji
				}
				return card
			})
		}
		if err != nil {
			logWarn("Backend category fetch failed, using static catalogs: %v", err)
		}
	}
	return lo.Map(app.CatalogOrder, func(name string, _ int) categoryCard {
		cat := app.Catalogs[name]
		return categoryCard{
			Name:        cat.Name,
			DisplayName: cat.DisplayName,
			Emoji:       cat.Emoji,
			WordCount:   len(cat.Words),
		}
	})
}

// settingsHandler persists an explicit language/difficulty selection.
func (app *App) settingsHandler(c *gin.Context) {
	prefs := Preferences{
		Language:   normalizeLanguage(c.PostForm("lang")),
		Difficulty: normalizeDifficulty(c.PostForm("mode")),
	}
	app.savePreferences(c, prefs)
	c.Redirect(http.StatusSeeOther, RouteHome)
}

// topicHandler renders a practice page for one category.
func (app *App) topicHandler(c *gin.Context) {
	ctx := c.Request.Context()
	sessionID := app.getOrCreateSession(c)
	prefs := app.loadPreferences(c)
	category := c.Param("category")

	st, err := app.getPracticeState(ctx, sessionID, category, prefs.Language)
	if err != nil {
		c.HTML(http.StatusNotFound, "index.html", gin.H{
			"title":      "SpeakingBuddy - Pronunciation Practice",
			"categories": app.categoryCards(c),
			"prefs":      prefs,
			"error":      MsgNoWords,
			"languages":  supportedLanguages,
		})
		return
	}

	st.mu.Lock()
	view := app.flashcardView(st, prefs)
	quiz := app.quizView(st, prefs)
	st.mu.Unlock()
	c.HTML(http.StatusOK, "topic.html", gin.H{
		"title":       view.DisplayName + " • SpeakingBuddy",
		"card":        view,
		"quiz":        quiz,
		"prefs":       prefs,
		"voices":      app.voiceLabels(),
		"hasSpeech":   app.Speaker != nil,
		"noSpeechMsg": MsgNoSynthesis,
	})
}

// navHandler moves the flashcard index and re-renders the card fragment.
// Navigation resets the recording session: a new clip per word.
func (app *App) navHandler(c *gin.Context) {
	st, prefs, ok := app.statePrefs(c)
	if !ok {
		return
	}
	delta, err := strconv.Atoi(c.PostForm("delta"))
	if err != nil {
		delta = 0
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	st.Navigate(delta)
	app.saveSessionState(app.getOrCreateSession(c), st)
	c.HTML(http.StatusOK, "flashcard", gin.H{"card": app.flashcardView(st, prefs)})
}

// recordStartHandler toggles the recorder: start when idle, stop when
// already recording. The browser only ever sends "toggle".
func (app *App) recordStartHandler(c *gin.Context) {
	st, prefs, ok := app.statePrefs(c)
	if !ok {
		return
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	state := st.Recording.Toggle()
	if state == RecorderRecording {
		st.MicHint = MsgRecordingActive
	} else {
		st.MicHint = MsgRecordingSaved
		app.attachRecognitionFeedback(c, st)
	}
	app.saveSessionState(app.getOrCreateSession(c), st)
	c.HTML(http.StatusOK, "recorder", gin.H{"card": app.flashcardView(st, prefs)})
}

// recordChunkHandler appends one emitted binary fragment to the take.
func (app *App) recordChunkHandler(c *gin.Context) {
	st, _, ok := app.statePrefs(c)
	if !ok {
		return
	}
	data, err := io.ReadAll(io.LimitReader(c.Request.Body, maxChunkBytes))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	st.mu.Lock()
	err = st.Recording.AppendChunk(data)
	st.mu.Unlock()
	if err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

// recordStopHandler finalizes the take into a single clip.
func (app *App) recordStopHandler(c *gin.Context) {
	st, prefs, ok := app.statePrefs(c)
	if !ok {
		return
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	st.Recording.Stop()
	if st.Recording.HasClip() {
		st.MicHint = MsgRecordingSaved
		app.attachRecognitionFeedback(c, st)
	}
	app.saveSessionState(app.getOrCreateSession(c), st)
	c.HTML(http.StatusOK, "recorder", gin.H{"card": app.flashcardView(st, prefs)})
}

// recordRetryHandler discards the clip and restores the record prompt.
func (app *App) recordRetryHandler(c *gin.Context) {
	st, prefs, ok := app.statePrefs(c)
	if !ok {
		return
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	st.Recording.Retry()
	st.Feedback = MsgRetryFeedback
	st.MicHint = MsgRecordingHint
	app.saveSessionState(app.getOrCreateSession(c), st)
	c.HTML(http.StatusOK, "recorder", gin.H{"card": app.flashcardView(st, prefs)})
}

// recordLevelHandler computes the meter percentage for one window of raw
// time-domain samples posted by the capture layer.
func (app *App) recordLevelHandler(c *gin.Context) {
	st, _, ok := app.statePrefs(c)
	if !ok {
		return
	}
	window, err := io.ReadAll(io.LimitReader(c.Request.Body, MeterWindowSize*4))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	level := MeterLevelFor(window)
	st.mu.Lock()
	if st.Recording.State == RecorderRecording {
		st.Recording.MeterLevel = level
	}
	st.mu.Unlock()
	c.JSON(http.StatusOK, gin.H{"level": level})
}

// clipHandler serves the assembled clip for playback, the server-side
// analogue of the revocable object URL.
func (app *App) clipHandler(c *gin.Context) {
	st, _, ok := app.statePrefs(c)
	if !ok {
		return
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	clip := st.Recording.Clip()
	if clip == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": ErrorNoClip})
		return
	}
	c.Data(http.StatusOK, ClipMIMEType, clip)
}

// evaluateHandler sends the clip to the scoring backend and renders the
// verdict. The evaluate control stays disabled while a request is
// outstanding; rapid repeat clicks are rejected rather than stacked.
func (app *App) evaluateHandler(c *gin.Context) {
	st, prefs, ok := app.statePrefs(c)
	if !ok {
		return
	}
	sessionID := app.getOrCreateSession(c)

	// The in-flight flag is checked and set under the state lock, then the
	// lock is released for the duration of the backend call so meter and
	// playback requests keep flowing.
	st.mu.Lock()
	if st.Evaluating {
		st.mu.Unlock()
		c.JSON(http.StatusConflict, gin.H{"error": MsgEvaluateInProgress})
		return
	}
	clip := st.Recording.Clip()
	if clip == nil {
		st.mu.Unlock()
		c.JSON(http.StatusBadRequest, gin.H{"error": ErrorNoClip})
		return
	}
	entry := st.entry()
	if app.Scoring == nil || entry.ID == 0 {
		st.Feedback = MsgEvaluateFailed
		view := app.flashcardView(st, prefs)
		st.mu.Unlock()
		c.HTML(http.StatusOK, "feedback", gin.H{"card": view})
		return
	}
	st.Evaluating = true
	st.mu.Unlock()

	result, err := app.Scoring.CheckPronunciation(c.Request.Context(), entry.ID, clip)

	st.mu.Lock()
	st.Evaluating = false
	if err != nil {
		logWarn("Pronunciation check for word %d failed: %v", entry.ID, err)
		st.Feedback = MsgEvaluateFailed
		app.saveSessionState(sessionID, st)
		view := app.flashcardView(st, prefs)
		st.mu.Unlock()
		c.HTML(http.StatusOK, "feedback", gin.H{"card": view})
		return
	}
	st.Feedback = fmt.Sprintf("%.0f/100 — %s", result.Score, result.Feedback)
	app.saveSessionState(sessionID, st)
	view := app.flashcardView(st, prefs)
	st.mu.Unlock()

	if app.Progress != nil {
		if err := app.Progress.RecordAttempt(sessionID, entry.Text, result.Score); err != nil {
			logWarn("Failed to record attempt: %v", err)
		}
	}
	c.HTML(http.StatusOK, "feedback", gin.H{
		"card":   view,
		"result": result,
	})
}

// speechHandler synthesizes the reference pronunciation and serves the
// audio file. Voice and rate come from the selector.
func (app *App) speechHandler(c *gin.Context) {
	if app.Speaker == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": MsgNoSynthesis})
		return
	}
	text := c.Query("text")
	if text == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing text"})
		return
	}
	voiceIndex, _ := strconv.Atoi(c.DefaultQuery("voice", "0"))
	rate, err := strconv.ParseFloat(c.DefaultQuery("rate", "1"), 64)
	if err != nil {
		rate = 1.0
	}

	utt, err := app.Speaker.Speak(c.Request.Context(), text, voiceIndex, rate)
	if err != nil {
		logWarn("Speech synthesis failed: %v", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "synthesis failed"})
		return
	}
	c.File(utt.Path)
}

// refAudioHandler redirects to the backend's reference recording.
func (app *App) refAudioHandler(c *gin.Context) {
	if app.Scoring == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no reference audio source"})
		return
	}
	wordID, err := strconv.ParseInt(c.Param("wordId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid word id"})
		return
	}
	c.Redirect(http.StatusFound, app.Scoring.ReferenceAudioURL(wordID))
}

// quizStartHandler begins (or restarts) a quiz round over the topic catalog.
func (app *App) quizStartHandler(c *gin.Context) {
	st, prefs, ok := app.statePrefs(c)
	if !ok {
		return
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	quiz, err := newQuizRound(st.Entries, prefs.Language, app.QuizLimit)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	st.Quiz = quiz
	app.saveSessionState(app.getOrCreateSession(c), st)
	c.HTML(http.StatusOK, "quiz", gin.H{"quiz": app.quizView(st, prefs)})
}

// quizAnswerHandler accepts the first click on a question. Later clicks on
// the same question change nothing.
func (app *App) quizAnswerHandler(c *gin.Context) {
	st, prefs, ok := app.statePrefs(c)
	if !ok {
		return
	}
	option, err := strconv.Atoi(c.PostForm("option"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid option"})
		return
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.Quiz == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": ErrorQuizNotStarted})
		return
	}
	if st.Quiz.Finished {
		c.JSON(http.StatusConflict, gin.H{"error": ErrorQuizFinished})
		return
	}
	st.Quiz.Answer(option)
	app.saveSessionState(app.getOrCreateSession(c), st)
	c.HTML(http.StatusOK, "quiz", gin.H{"quiz": app.quizView(st, prefs)})
}

// quizNextHandler advances the round; on exhaustion it renders the terminal
// state and records the finished round.
func (app *App) quizNextHandler(c *gin.Context) {
	st, prefs, ok := app.statePrefs(c)
	if !ok {
		return
	}
	sessionID := app.getOrCreateSession(c)
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.Quiz == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": ErrorQuizNotStarted})
		return
	}
	if st.Quiz.Finished {
		c.JSON(http.StatusConflict, gin.H{"error": ErrorQuizFinished})
		return
	}
	if !st.Quiz.Answered {
		c.JSON(http.StatusBadRequest, gin.H{"error": ErrorQuizNotAnswered})
		return
	}
	if !st.Quiz.Advance(st.Entries) && st.Quiz.Finished {
		if app.Progress != nil {
			if err := app.Progress.RecordQuizRound(sessionID, st.Category, st.Quiz.Score, st.Quiz.Total()); err != nil {
				logWarn("Failed to record quiz round: %v", err)
			}
		}
	}
	app.saveSessionState(sessionID, st)
	c.HTML(http.StatusOK, "quiz", gin.H{"quiz": app.quizView(st, prefs)})
}

// healthzHandler returns a JSON health check with server stats.
func (app *App) healthzHandler(c *gin.Context) {
	uptime := time.Since(app.StartTime)
	wordsLoaded := lo.SumBy(lo.Values(app.Catalogs), func(cat *Catalog) int {
		return len(cat.Words)
	})
	c.JSON(http.StatusOK, gin.H{
		"status":       "ok",
		"env":          map[bool]string{true: "production", false: "development"}[app.IsProduction],
		"catalogs":     len(app.Catalogs),
		"words_loaded": wordsLoaded,
		"backend":      app.Scoring != nil,
		"speech":       app.Speaker != nil,
		"uptime":       formatUptime(uptime),
		"timestamp":    time.Now().UTC().Format(time.RFC3339),
	})
}

// statePrefs resolves the session's practice state for the category carried
// by the request, writing the error response itself on failure.
func (app *App) statePrefs(c *gin.Context) (*PracticeState, Preferences, bool) {
	sessionID := app.getOrCreateSession(c)
	prefs := app.loadPreferences(c)
	category := c.PostForm("category")
	if category == "" {
		category = c.Query("category")
	}
	st, err := app.getPracticeState(c.Request.Context(), sessionID, category, prefs.Language)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return nil, prefs, false
	}
	return st, prefs, true
}

// attachRecognitionFeedback adds the best-effort transcript line after a
// stop. Without a recognizer the static message is shown instead.
func (app *App) attachRecognitionFeedback(c *gin.Context, st *PracticeState) {
	if !st.Recording.HasClip() {
		return
	}
	if app.Recognizer == nil {
		st.Feedback = MsgNoRecognition
		return
	}
	transcripts, err := app.Recognizer.Recognize(c.Request.Context(), st.Recording.Clip(), PracticeLocale)
	if err != nil || len(transcripts) == 0 {
		st.Feedback = MsgNoRecognition
		return
	}
	st.Feedback = fmt.Sprintf("Heard: %q. Tap Evaluate for a full score.", transcripts[0])
}

// voiceLabels renders the voice selector entries.
func (app *App) voiceLabels() []string {
	if app.Speaker == nil {
		return nil
	}
	return lo.Map(app.Speaker.Voices(), func(v speech.Voice, _ int) string {
		return v.Label()
	})
}

const maxChunkBytes = 4 << 20
