package progress

import (
	"path/filepath"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "progress.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStatsEmptySession(t *testing.T) {
	s := openTestStore(t)
	stats, err := s.SessionStats("nobody")
	if err != nil {
		t.Fatal(err)
	}
	if stats.QuizRounds != 0 || stats.Attempts != 0 {
		t.Errorf("empty stats = %+v", stats)
	}
}

func TestRecordQuizRounds(t *testing.T) {
	s := openTestStore(t)

	if err := s.RecordQuizRound("sess-1", "animals", 7, 10); err != nil {
		t.Fatal(err)
	}
	if err := s.RecordQuizRound("sess-1", "food", 9, 10); err != nil {
		t.Fatal(err)
	}
	if err := s.RecordQuizRound("sess-2", "animals", 10, 10); err != nil {
		t.Fatal(err)
	}

	stats, err := s.SessionStats("sess-1")
	if err != nil {
		t.Fatal(err)
	}
	if stats.QuizRounds != 2 {
		t.Errorf("quiz rounds = %d, want 2", stats.QuizRounds)
	}
	if stats.BestQuizScore != 9 {
		t.Errorf("best score = %d, want 9", stats.BestQuizScore)
	}
}

func TestRecordAttempts(t *testing.T) {
	s := openTestStore(t)

	if err := s.RecordAttempt("sess-1", "Hund", 80); err != nil {
		t.Fatal(err)
	}
	if err := s.RecordAttempt("sess-1", "Katze", 90); err != nil {
		t.Fatal(err)
	}

	stats, err := s.SessionStats("sess-1")
	if err != nil {
		t.Fatal(err)
	}
	if stats.Attempts != 2 {
		t.Errorf("attempts = %d, want 2", stats.Attempts)
	}
	if stats.AverageScore != 85 {
		t.Errorf("average = %v, want 85", stats.AverageScore)
	}
}

func TestStatsAreScopedPerSession(t *testing.T) {
	s := openTestStore(t)

	s.RecordAttempt("sess-1", "Hund", 80)
	s.RecordAttempt("sess-2", "Hund", 20)

	stats, err := s.SessionStats("sess-1")
	if err != nil {
		t.Fatal(err)
	}
	if stats.Attempts != 1 || stats.AverageScore != 80 {
		t.Errorf("sess-1 stats = %+v, leaked another session's rows", stats)
	}
}
