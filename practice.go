package main

import "fmt"

// FlashcardView is the render model for one flashcard. Hidden marks the
// prompt and translation as visually hidden (audio-only mode); the content
// is still present so playback and evaluation keep working.
type FlashcardView struct {
	Category         string
	DisplayName      string
	Emoji            string
	Prompt           string
	Phonetic         string
	Translation      string
	TranslationLabel string
	Hidden           bool
	Counter          string
	Progress         int
	Index            int
	Total            int
	HasPrev          bool
	HasNext          bool
	WordID           int64
	HasClip          bool
	Recording        bool
	MeterLevel       int
	Feedback         string
	MicHint          string
}

// flashcardView builds the render model for the current entry.
func (app *App) flashcardView(st *PracticeState, prefs Preferences) FlashcardView {
	entry := st.entry()
	total := len(st.Entries)

	view := FlashcardView{
		Category:         st.Category,
		Prompt:           entry.Text,
		Phonetic:         entry.Phonetic,
		Translation:      translationFor(entry, prefs.Language),
		TranslationLabel: targetLanguageLabel(prefs.Language),
		Hidden:           prefs.Difficulty == ModeAudio,
		Index:            st.Index,
		Total:            total,
		HasPrev:          st.Index > 0,
		HasNext:          st.Index < total-1,
		WordID:           entry.ID,
		HasClip:          st.Recording.HasClip(),
		Recording:        st.Recording.State == RecorderRecording,
		MeterLevel:       st.Recording.MeterLevel,
		Feedback:         st.Feedback,
		MicHint:          st.MicHint,
	}
	if cat, ok := app.catalogFor(st.Category); ok {
		view.DisplayName = cat.DisplayName
		view.Emoji = cat.Emoji
	} else {
		view.DisplayName = st.Category
	}
	if total > 0 {
		view.Counter = fmt.Sprintf("%d/%d", st.Index+1, total)
		view.Progress = (st.Index + 1) * 100 / total
	}
	return view
}

// Navigate moves the flashcard index by delta, clamped to the catalog bounds
// with no wraparound. Every navigation discards the recording session and
// restores the default feedback: a new clip is required per word.
func (st *PracticeState) Navigate(delta int) {
	next := st.Index + delta
	if next < 0 {
		next = 0
	}
	if max := len(st.Entries) - 1; next > max {
		next = max
	}
	st.Index = next
	st.resetAttempt()
}

// resetAttempt returns the recording and feedback state to the pre-recording
// baseline for the current word.
func (st *PracticeState) resetAttempt() {
	st.Recording.Retry()
	st.Feedback = MsgDefaultFeedback
	st.MicHint = MsgRecordingHint
	st.Evaluating = false
}

// QuizView is the render model for the quiz panel of a topic page.
type QuizView struct {
	Category  string
	Started   bool
	Finished  bool
	Answered  bool
	Intro     string
	Counter   string
	Prompt    string
	Phonetic  string
	Options   []QuizOption
	Feedback  string
	ScoreLine string
}

// quizView builds the render model for the session's quiz, covering all
// three panel states: not started, mid-round, and finished.
func (app *App) quizView(st *PracticeState, prefs Preferences) QuizView {
	view := QuizView{
		Category: st.Category,
		Intro:    fmt.Sprintf(MsgQuizAnswersIn, targetLanguageLabel(prefs.Language)),
	}
	quiz := st.Quiz
	if quiz == nil {
		return view
	}
	view.Started = true
	view.Counter = quiz.Counter()
	view.ScoreLine = fmt.Sprintf("Score: %d", quiz.Score)

	if quiz.Finished {
		view.Finished = true
		view.ScoreLine = fmt.Sprintf(MsgQuizFinished, quiz.Score, quiz.Total())
		return view
	}

	entry := st.Entries[quiz.Order[quiz.Question]]
	view.Prompt = entry.Text
	view.Phonetic = entry.Phonetic
	view.Options = quiz.Options
	view.Answered = quiz.Answered
	if quiz.Answered {
		if chosen, ok := chosenOption(quiz.Options); ok && chosen.Correct {
			view.Feedback = MsgQuizCorrect
		} else {
			view.Feedback = fmt.Sprintf(MsgQuizWrong, quiz.CorrectLabel())
		}
	}
	return view
}

// chosenOption finds the option the learner clicked, if any.
func chosenOption(options []QuizOption) (QuizOption, bool) {
	for _, opt := range options {
		if opt.Chosen {
			return opt, true
		}
	}
	return QuizOption{}, false
}
