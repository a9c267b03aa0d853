package events

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/killallgit/loom/pkg/logger"
)

// Snapshot is a durable or persisted conversation document: the raw events
// that produced it plus optional backend metadata for completed sessions.
type Snapshot struct {
	Events   []RawEvent     `json:"events"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// ParseEvent decodes a single raw event document.
func ParseEvent(data []byte) (RawEvent, error) {
	var ev RawEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return RawEvent{}, fmt.Errorf("failed to parse event: %w", err)
	}
	return ev, nil
}

// ReadLog reads a session log with one JSON event per line. Undecodable
// and blank lines are skipped so that a truncated or hand-edited log still
// replays; only a read failure surfaces as an error.
func ReadLog(r io.Reader) ([]RawEvent, error) {
	log := logger.WithComponent("event_log")

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var evs []RawEvent
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		ev, err := ParseEvent([]byte(line))
		if err != nil {
			log.Debug("Skipping undecodable log line", "line", lineNo, "error", err)
			continue
		}
		evs = append(evs, ev)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read event log: %w", err)
	}

	log.Debug("Read event log", "events", len(evs), "lines", lineNo)
	return evs, nil
}

// ReadSnapshot decodes a durable/persisted snapshot document
// ({"events": [...]} with optional metadata).
func ReadSnapshot(r io.Reader) (Snapshot, error) {
	var snap Snapshot
	if err := json.NewDecoder(r).Decode(&snap); err != nil {
		return Snapshot{}, fmt.Errorf("failed to parse snapshot: %w", err)
	}
	return snap, nil
}
