package main

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

const maxHistory = 1000

// HistoryManager keeps the lines entered in the shell. An empty filename
// keeps history in memory only.
type HistoryManager struct {
	history  []string
	filename string
}

func defaultHistoryPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".pivot_history")
}

func NewHistoryManager(filename string) *HistoryManager {
	return &HistoryManager{filename: filename}
}

func (h *HistoryManager) Add(cmd string) {
	if cmd == "" || (len(h.history) > 0 && h.history[len(h.history)-1] == cmd) {
		return
	}
	h.history = append(h.history, cmd)
	if len(h.history) > maxHistory {
		h.history = h.history[len(h.history)-maxHistory:]
	}
}

func (h *HistoryManager) GetHistory() []string {
	return h.history
}

// Load prepends the saved history. A missing file is not an error.
func (h *HistoryManager) Load() error {
	if h.filename == "" {
		return nil
	}
	data, err := os.ReadFile(h.filename)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	var saved []string
	for _, line := range strings.Split(string(data), "\n") {
		if line != "" {
			saved = append(saved, line)
		}
	}
	h.history = append(saved, h.history...)
	return nil
}

func (h *HistoryManager) Save() error {
	if h.filename == "" {
		return nil
	}
	var sb strings.Builder
	for _, cmd := range h.history {
		sb.WriteString(cmd)
		sb.WriteByte('\n')
	}
	return os.WriteFile(h.filename, []byte(sb.String()), 0o600)
}
