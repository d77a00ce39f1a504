package main

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"

	"github.com/samber/lo"
)

// QuizOption is one answer button of a question.
type QuizOption struct {
	EntryIndex int    `json:"entryIndex"`
	Label      string `json:"label"`
	Correct    bool   `json:"correct"`
	Chosen     bool   `json:"chosen"`
}

// QuizState is one round of multiple-choice translation questions. The
// question order is fixed at start; no further shuffling happens afterwards.
type QuizState struct {
	Order    []int        `json:"order"`
	Question int          `json:"question"`
	Score    int          `json:"score"`
	Answered bool         `json:"answered"`
	Finished bool         `json:"finished"`
	Options  []QuizOption `json:"options"`
	Language string       `json:"language"`
}

// randomIndex returns a uniform random int in [0, n). Falls back to 0 when
// the system randomness source fails, matching how word selection degrades.
func randomIndex(n int) int {
	if n <= 1 {
		return 0
	}
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		logWarn("Error generating random number: %v, using fallback", err)
		return 0
	}
	return int(v.Int64())
}

// shuffledIndices returns a uniformly shuffled permutation of [0, n).
func shuffledIndices(n int) []int {
	order := lo.Times(n, func(i int) int { return i })
	for j := n - 1; j > 0; j-- {
		k := randomIndex(j + 1)
		order[j], order[k] = order[k], order[j]
	}
	return order
}

// translationFor returns the entry's translation in the given language, or
// "" when absent. The empty label is upstream data behaviour; callers decide
// whether to skip or render it.
func translationFor(entry VocabularyEntry, lang string) string {
	if entry.Translations == nil {
		return ""
	}
	return entry.Translations[lang]
}

// newQuizRound builds a round over the catalog entries: a shuffled
// permutation truncated to limit, score zeroed, first question rendered.
func newQuizRound(entries []VocabularyEntry, lang string, limit int) (*QuizState, error) {
	if len(entries) == 0 {
		return nil, errors.New(ErrorEmptyCatalog)
	}
	total := len(entries)
	if limit > 0 && limit < total {
		total = limit
	}
	q := &QuizState{
		Order:    shuffledIndices(len(entries))[:total],
		Language: lang,
	}
	q.renderQuestion(entries)
	return q, nil
}

// renderQuestion prepares the options for the current question and unlocks
// answering. Called exactly once per question.
func (q *QuizState) renderQuestion(entries []VocabularyEntry) {
	q.Answered = false
	q.Options = buildQuizOptions(entries, q.Language, q.Order[q.Question])
	if len(q.Options) == 1 {
		logWarn("Quiz question for %q has a single option; catalog lacks distinct %s translations",
			entries[q.Order[q.Question]].Text, q.Language)
	}
}

// buildQuizOptions assembles up to MaxQuizOptions answer labels: the correct
// translation plus distractors drawn from a shuffled pool of the other
// entries. Labels are unique among the shown options; duplicates are
// skipped, so fewer than four options can result. The final order is
// shuffled again so the correct answer's position is uniform.
func buildQuizOptions(entries []VocabularyEntry, lang string, correctIdx int) []QuizOption {
	options := make([]QuizOption, 0, MaxQuizOptions)
	usedLabels := make(map[string]struct{})

	push := func(idx int, correct bool) {
		label := translationFor(entries[idx], lang)
		if label == "" && !correct {
			return
		}
		if _, dup := usedLabels[label]; dup {
			return
		}
		usedLabels[label] = struct{}{}
		options = append(options, QuizOption{EntryIndex: idx, Label: label, Correct: correct})
	}

	push(correctIdx, true)

	candidates := lo.Filter(shuffledIndices(len(entries)), func(n int, _ int) bool {
		return n != correctIdx
	})
	for _, cand := range candidates {
		if len(options) >= MaxQuizOptions {
			break
		}
		push(cand, false)
	}

	for j := len(options) - 1; j > 0; j-- {
		k := randomIndex(j + 1)
		options[j], options[k] = options[k], options[j]
	}
	return options
}

// Answer accepts the first click on a question: marks the chosen option,
// reveals the correct one, and bumps the score on a correct choice. Any
// later click on the same question is ignored.
func (q *QuizState) Answer(optionIndex int) (correct bool, accepted bool) {
	if q.Answered || q.Finished {
		return false, false
	}
	if optionIndex < 0 || optionIndex >= len(q.Options) {
		return false, false
	}
	q.Answered = true
	q.Options[optionIndex].Chosen = true
	if q.Options[optionIndex].Correct {
		q.Score++
		return true, true
	}
	return false, true
}

// Advance moves to the next question in the precomputed order, or flips the
// round into its terminal state when the order is exhausted. Returns false
// once finished; a finished round rejects further advancement.
func (q *QuizState) Advance(entries []VocabularyEntry) bool {
	if q.Finished {
		return false
	}
	if !q.Answered {
		return false
	}
	if q.Question >= len(q.Order)-1 {
		q.Finished = true
		q.Options = nil
		return false
	}
	q.Question++
	q.renderQuestion(entries)
	return true
}

// CorrectLabel returns the label of the correct option for the current
// question, used by the "not quite" feedback line.
func (q *QuizState) CorrectLabel() string {
	for _, opt := range q.Options {
		if opt.Correct {
			return opt.Label
		}
	}
	return ""
}

// Total returns the round length.
func (q *QuizState) Total() int {
	return len(q.Order)
}

// Counter renders "Question x/y" with x clamped to the round length.
func (q *QuizState) Counter() string {
	n := q.Question + 1
	if n > q.Total() {
		n = q.Total()
	}
	return fmt.Sprintf("Question %d/%d", n, q.Total())
}

// targetLanguageLabel names the translation language shown to the learner.
func targetLanguageLabel(lang string) string {
	switch lang {
	case "fr":
		return "French"
	case "de":
		return "Deutsch"
	default:
		return "English"
	}
}
