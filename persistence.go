package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const sessionDir = "data/sessions"

// sessionFileName flattens the practice key into a file name. The key
// separator would otherwise create a subdirectory per session.
func sessionFileName(key string) string {
	return strings.ReplaceAll(key, "/", "_") + ".json"
}

// savePracticeStateToFile persists a practice state to disk. The recording
// session and the evaluating flag are transient and not serialized.
func (app *App) savePracticeStateToFile(key string, st *PracticeState) error {
	if key == "" || len(key) < 10 {
		logWarn("Skipping save for invalid practice key: %s", key)
		return nil
	}

	if err := os.MkdirAll(sessionDir, 0755); err != nil {
		logWarn("Failed to create sessions directory: %v", err)
		return err
	}

	sessionFile := filepath.Join(sessionDir, sessionFileName(key))

	st.LastAccessTime = time.Now()
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		logWarn("Failed to marshal practice state for %s: %v", key, err)
		return err
	}

	if err := os.WriteFile(sessionFile, data, 0644); err != nil {
		logWarn("Failed to write session file %s: %v", sessionFile, err)
		return err
	}
	return nil
}

// loadPracticeStateFromFile restores a practice state from disk. Stale or
// corrupted files are removed and reported as missing. The restored state
// gets a fresh recording session; clips do not survive a restart.
func (app *App) loadPracticeStateFromFile(key string) (*PracticeState, error) {
	if key == "" || len(key) < 10 {
		return nil, os.ErrNotExist
	}

	sessionFile := filepath.Join(sessionDir, sessionFileName(key))

	info, err := os.Stat(sessionFile)
	if err != nil {
		return nil, err
	}

	if age := time.Since(info.ModTime()); age > app.SessionTimeout {
		logInfo("Session file is too old (%v, max: %v), removing: %s", age, app.SessionTimeout, sessionFile)
		os.Remove(sessionFile)
		return nil, os.ErrNotExist
	}

	data, err := os.ReadFile(sessionFile)
	if err != nil {
		return nil, err
	}

	var st PracticeState
	if err := json.Unmarshal(data, &st); err != nil {
		logWarn("Failed to unmarshal session file %s (corrupted), removing: %v", sessionFile, err)
		os.Remove(sessionFile)
		return nil, os.ErrNotExist
	}

	if st.Category == "" || len(st.Entries) == 0 {
		logWarn("Session file %s has invalid structure, removing", sessionFile)
		os.Remove(sessionFile)
		return nil, os.ErrNotExist
	}

	st.Recording = NewRecordingSession()
	st.MicHint = MsgRecordingHint
	st.LastAccessTime = time.Now()
	return &st, nil
}

// cleanupOldSessions removes session files older than maxAge.
func cleanupOldSessions(maxAge time.Duration) error {
	entries, err := os.ReadDir(sessionDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		logWarn("Failed to read sessions directory: %v", err)
		return err
	}

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			sessionFile := filepath.Join(sessionDir, entry.Name())
			if err := os.Remove(sessionFile); err != nil {
				logWarn("Failed to remove old session file %s: %v", sessionFile, err)
			} else {
				removed++
			}
		}
	}
	if removed > 0 {
		logInfo("Session cleanup removed %d stale files", removed)
	}
	return nil
}
