package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/samber/lo"

	"speakingbuddy/internal/scoring"
)

// getOrCreateSession retrieves the session ID from the cookie or creates a new one.
func (app *App) getOrCreateSession(c *gin.Context) string {
	sessionID, err := c.Cookie(SessionCookieName)
	if err != nil || len(sessionID) < 10 {
		sessionID = uuid.NewString()
		c.SetSameSite(http.SameSiteStrictMode)
		secure := app.IsProduction
		c.SetCookie(SessionCookieName, sessionID, int(app.CookieMaxAge.Seconds()), "/", "", secure, true)
		logInfo("Created new session: %s", sessionID)
	}
	return sessionID
}

// loadPreferences resolves language and difficulty for this request: query
// parameters win for the current page load only, then the persisted cookies,
// then the defaults. Query overrides are never written back.
func (app *App) loadPreferences(c *gin.Context) Preferences {
	lang := c.Query("lang")
	if lang == "" {
		lang, _ = c.Cookie(LanguageCookieName)
	}
	mode := c.Query("mode")
	if mode == "" {
		mode, _ = c.Cookie(DifficultyCookieName)
	}
	return Preferences{
		Language:   normalizeLanguage(lang),
		Difficulty: normalizeDifficulty(mode),
	}
}

// savePreferences persists an explicit settings selection.
func (app *App) savePreferences(c *gin.Context, prefs Preferences) {
	secure := app.IsProduction
	maxAge := int(app.CookieMaxAge.Seconds())
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(LanguageCookieName, prefs.Language, maxAge, "/", "", secure, true)
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(DifficultyCookieName, prefs.Difficulty, maxAge, "/", "", secure, true)
}

// normalizeLanguage clamps a language code to the supported set.
func normalizeLanguage(lang string) string {
	if lo.Contains(supportedLanguages, lang) {
		return lang
	}
	return DefaultLanguage
}

// normalizeDifficulty clamps a difficulty mode to text or audio.
func normalizeDifficulty(mode string) string {
	if mode == ModeText || mode == ModeAudio {
		return mode
	}
	return DefaultMode
}

// practiceKey scopes session state per topic: each topic page owns its own
// flashcard position, recording session, and quiz round.
func practiceKey(sessionID, category string) string {
	return sessionID + "/" + category
}

func errUnknownCategory(name string) error {
	return fmt.Errorf("%s: %q", ErrorUnknownCategory, name)
}

// getPracticeState retrieves or creates the PracticeState for a session and
// category. State fetched for a different translation target is rebuilt, so
// a language switch starts the topic over with fresh translations.
func (app *App) getPracticeState(ctx context.Context, sessionID, category, lang string) (*PracticeState, error) {
	key := practiceKey(sessionID, category)

	app.SessionMutex.RLock()
	st, exists := app.Sessions[key]
	app.SessionMutex.RUnlock()
	if exists && st.Language == lang {
		app.SessionMutex.Lock()
		st.LastAccessTime = time.Now()
		app.SessionMutex.Unlock()
		return st, nil
	}

	if loaded, err := app.loadPracticeStateFromFile(key); err == nil && loaded.Language == lang {
		app.SessionMutex.Lock()
		app.Sessions[key] = loaded
		app.SessionMutex.Unlock()
		logInfo("Restored practice state for session %s, topic %q from disk", sessionID, category)
		return loaded, nil
	}

	entries, err := app.catalogEntries(ctx, category, lang)
	if err != nil {
		return nil, err
	}

	logInfo("Creating practice state for session %s, topic %q (%d words, lang %s)",
		sessionID, category, len(entries), lang)
	st = &PracticeState{
		Category:       category,
		Language:       lang,
		Entries:        entries,
		Feedback:       MsgDefaultFeedback,
		MicHint:        MsgRecordingHint,
		Recording:      NewRecordingSession(),
		LastAccessTime: time.Now(),
	}

	app.SessionMutex.Lock()
	app.Sessions[key] = st
	app.SessionMutex.Unlock()
	return st, nil
}

// catalogEntries returns the word sequence for a category: backend words
// when a scoring backend is configured and knows the category, the static
// catalog otherwise.
func (app *App) catalogEntries(ctx context.Context, category, lang string) ([]VocabularyEntry, error) {
	if app.Scoring != nil {
		words, err := app.Scoring.ListWords(ctx, category, lang)
		if err == nil && len(words) > 0 {
			return lo.Map(words, func(w scoring.Word, _ int) VocabularyEntry {
				return VocabularyEntry{
					ID:           w.ID,
					Text:         w.WordLB,
					Translations: map[string]string{lang: w.Translation},
					AudioURL:     w.AudioURL,
				}
			}), nil
		}
		if err != nil {
			logWarn("Backend word fetch for %q failed, falling back to static catalog: %v", category, err)
		}
	}

	cat, ok := app.catalogFor(category)
	if !ok {
		return nil, errUnknownCategory(category)
	}
	return cat.Words, nil
}

// saveSessionState updates the in-memory state, bumps the access time, and
// mirrors the durable parts to disk.
func (app *App) saveSessionState(sessionID string, st *PracticeState) {
	key := practiceKey(sessionID, st.Category)
	app.SessionMutex.Lock()
	app.Sessions[key] = st
	st.LastAccessTime = time.Now()
	app.SessionMutex.Unlock()

	if err := app.savePracticeStateToFile(key, st); err != nil {
		logWarn("Failed to persist practice state for %s: %v", key, err)
	}
}
