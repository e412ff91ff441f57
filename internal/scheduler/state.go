// Package scheduler drives periodic ingestion cycles and persists its
// own run state so a restarted daemon resumes polling without operator
// action.
package scheduler

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Config holds the timer intervals. Both are positive minutes/days.
type Config struct {
	DailyIntervalMinutes int `json:"dailyIntervalMinutes"`
	WeeklyIntervalDays   int `json:"weeklyIntervalDays"`
}

// Validate rejects non-positive intervals.
func (c Config) Validate() error {
	if c.DailyIntervalMinutes <= 0 {
		return fmt.Errorf("scheduler: dailyIntervalMinutes must be positive, got %d", c.DailyIntervalMinutes)
	}
	if c.WeeklyIntervalDays <= 0 {
		return fmt.Errorf("scheduler: weeklyIntervalDays must be positive, got %d", c.WeeklyIntervalDays)
	}
	return nil
}

// Executions records when each cycle kind last ran.
type Executions struct {
	Daily      time.Time `json:"daily"`
	FullResync time.Time `json:"fullResync"`
}

// State is the persisted scheduler state. Running survives process
// restarts: a daemon that was polling before a crash polls again after.
type State struct {
	Running        bool       `json:"running"`
	LastExecutions Executions `json:"lastExecutions"`
	Config         Config     `json:"config"`

	path string // not serialized
}

// LoadState reads the state file, falling back to defaults when the
// file does not exist yet. found distinguishes a persisted Stopped
// state from a fresh deployment with no state at all: an explicit
// operator Stop survives restarts, absence of any file does not mean
// Stopped.
func LoadState(path string, defaults Config) (s *State, found bool, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &State{Config: defaults, path: path}, false, nil
		}
		return nil, false, fmt.Errorf("LoadState: read %s: %w", path, err)
	}

	s = &State{}
	if err := json.Unmarshal(data, s); err != nil {
		return nil, false, fmt.Errorf("LoadState: parse %s: %w", path, err)
	}
	if s.Config.Validate() != nil {
		s.Config = defaults
	}
	s.path = path
	return s, true, nil
}

// Save persists the state to disk.
func (s *State) Save() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("State.Save: mkdir: %w", err)
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("State.Save: marshal: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("State.Save: write %s: %w", s.path, err)
	}
	return nil
}
