package main

import (
	"sync"
	"time"

	"golang.org/x/time/rate"

	"speakingbuddy/internal/progress"
	"speakingbuddy/internal/scoring"
	"speakingbuddy/internal/speech"
)

// VocabularyEntry is one word of a catalog. Immutable once loaded.
type VocabularyEntry struct {
	ID           int64             `json:"id,omitempty"` // stable backend ID, 0 for static entries
	Text         string            `json:"text"`
	Phonetic     string            `json:"phonetic"`
	Translations map[string]string `json:"translations"`
	Accept       []string          `json:"accept,omitempty"`
	AudioURL     string            `json:"audio_url,omitempty"`
}

// Catalog is the ordered word list for one topic.
type Catalog struct {
	Name        string            `json:"name"`
	DisplayName string            `json:"display_name"`
	Emoji       string            `json:"emoji"`
	Words       []VocabularyEntry `json:"words"`
}

// Preferences holds the two persisted user settings.
type Preferences struct {
	Language   string `json:"language"`   // translation target: en, fr, de
	Difficulty string `json:"difficulty"` // text or audio
}

// PracticeState is the per-session, per-topic state: flashcard position,
// recording session, and quiz round. Owned by the App session map. Handlers
// hold mu across every read or mutation of the fields below, so meter posts,
// chunk appends, toggles, and quiz moves serialize per state.
// LastAccessTime is the exception: it is guarded by the App's SessionMutex.
type PracticeState struct {
	mu sync.Mutex

	Category       string            `json:"category"`
	Language       string            `json:"language"`
	Entries        []VocabularyEntry `json:"entries"`
	Index          int               `json:"index"`
	Feedback       string            `json:"feedback"`
	MicHint        string            `json:"micHint"`
	Evaluating     bool              `json:"-"`
	Recording      *RecordingSession `json:"-"`
	Quiz           *QuizState        `json:"quiz,omitempty"`
	LastAccessTime time.Time         `json:"lastAccessTime"`
}

// App holds all application state and configuration.
type App struct {
	Catalogs     map[string]*Catalog
	CatalogOrder []string

	Sessions     map[string]*PracticeState
	SessionMutex sync.RWMutex

	LimiterMap   map[string]*rate.Limiter
	LimiterMutex sync.Mutex

	Speaker    *speech.Speaker
	Recognizer speech.Recognizer
	Scoring    *scoring.Client // nil when no backend is configured
	Progress   *progress.Store // nil when the store is disabled

	IsProduction   bool
	StartTime      time.Time
	CookieMaxAge   time.Duration
	SessionTimeout time.Duration
	StaticCacheAge time.Duration
	RateLimitRPS   int
	RateLimitBurst int
	QuizLimit      int
}

// entry returns the current flashcard entry, or a zero entry when empty.
func (st *PracticeState) entry() VocabularyEntry {
	if len(st.Entries) == 0 || st.Index < 0 || st.Index >= len(st.Entries) {
		return VocabularyEntry{}
	}
	return st.Entries[st.Index]
}
