package events

import (
	"fmt"
	"strings"
	"time"
)

// Phase is the lifecycle position encoded in an event's type string.
type Phase string

const (
	PhaseCreated Phase = "created"
	PhaseAdded   Phase = "added"
	PhaseDone    Phase = "done"
	PhaseFailed  Phase = "failed"
	PhaseDelta   Phase = "delta"
	PhaseUnknown Phase = ""
)

// RawEvent is a single already-deserialized event from the live feed or a
// recorded session log. Lifecycle events carry an item snapshot or item id;
// delta events carry a text fragment. Delivery order is not guaranteed to
// match sequence number order.
type RawEvent struct {
	Type           string        `json:"type"`
	SequenceNumber int64         `json:"sequence_number"`
	ItemID         string        `json:"item_id,omitempty"`
	Timestamp      string        `json:"timestamp,omitempty"`
	Delta          string        `json:"delta,omitempty"`
	Text           string        `json:"text,omitempty"`
	SummaryIndex   *int          `json:"summary_index,omitempty"`
	Item           *ItemSnapshot `json:"item,omitempty"`
	Error          *ErrorDetail  `json:"error,omitempty"`
}

// ItemSnapshot is the embedded item payload carried by lifecycle events.
// Done events may include the complete text here instead of relying on
// delta reconstruction.
type ItemSnapshot struct {
	ID          string       `json:"id"`
	Role        string       `json:"role,omitempty"`
	Text        string       `json:"text,omitempty"`
	Name        string       `json:"name,omitempty"`
	Arguments   string       `json:"arguments,omitempty"`
	Output      string       `json:"output,omitempty"`
	ServerLabel string       `json:"server_label,omitempty"`
	Tools       []string     `json:"tools,omitempty"`
	Query       string       `json:"query,omitempty"`
	Status      string       `json:"status,omitempty"`
	Summary     []string     `json:"summary,omitempty"`
	Error       *ErrorDetail `json:"error,omitempty"`
}

// ErrorDetail describes a failure attached to an error or failed event.
type ErrorDetail struct {
	Source  string `json:"source,omitempty"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

// Error sources for first-class error events.
const (
	ErrorSourceBackend = "backend"
	ErrorSourceNetwork = "network"
	ErrorSourceMCP     = "mcp"
	ErrorSourceModel   = "model"
)

// Phase extracts the lifecycle phase from the event type. Both dotted
// ("mcp_call.done") and flat ("done", "text-delta") vocabularies resolve.
func (e RawEvent) Phase() Phase {
	t := e.Type
	switch {
	case hasPhaseWord(t, "delta"):
		return PhaseDelta
	case hasPhaseWord(t, "created"):
		return PhaseCreated
	case hasPhaseWord(t, "added"):
		return PhaseAdded
	case hasPhaseWord(t, "done") || hasPhaseWord(t, "completed"):
		return PhaseDone
	case hasPhaseWord(t, "failed"):
		return PhaseFailed
	}
	return PhaseUnknown
}

func hasPhaseWord(eventType, word string) bool {
	if eventType == word {
		return true
	}
	return strings.HasSuffix(eventType, "."+word) ||
		strings.HasSuffix(eventType, "-"+word) ||
		strings.HasSuffix(eventType, "_"+word)
}

func (e RawEvent) IsDelta() bool {
	return e.Phase() == PhaseDelta
}

func (e RawEvent) IsLifecycle() bool {
	switch e.Phase() {
	case PhaseCreated, PhaseAdded, PhaseDone, PhaseFailed:
		return true
	}
	return false
}

// IsError reports whether this is a first-class error event, a category
// independent of lifecycle phase and item classification.
func (e RawEvent) IsError() bool {
	return e.Type == "error"
}

// IsSummaryPart reports whether the event targets one indexed reasoning
// summary part rather than the item as a whole. Part-level done events
// never finalize the owning item.
func (e RawEvent) IsSummaryPart() bool {
	return strings.Contains(e.Type, "summary_part") ||
		strings.Contains(e.Type, "summary_text")
}

// ResolveItemID returns the item id carried directly or via the embedded
// snapshot, empty when neither is present.
func (e RawEvent) ResolveItemID() string {
	if e.ItemID != "" {
		return e.ItemID
	}
	if e.Item != nil {
		return e.Item.ID
	}
	return ""
}

// Key is the dedupe identity of an event for replay suppression.
func (e RawEvent) Key() string {
	return fmt.Sprintf("%s:%s:%d", e.Type, e.ResolveItemID(), e.SequenceNumber)
}

// FinalText returns the authoritative full text a done event may carry,
// preferring the event-level field over the snapshot's.
func (e RawEvent) FinalText() string {
	if e.Text != "" {
		return e.Text
	}
	if e.Item != nil {
		return e.Item.Text
	}
	return ""
}

// ErrorInfo returns the attached error detail from the event or its
// snapshot, nil when absent.
func (e RawEvent) ErrorInfo() *ErrorDetail {
	if e.Error != nil {
		return e.Error
	}
	if e.Item != nil {
		return e.Item.Error
	}
	return nil
}

// Time parses the event timestamp. Unparseable or absent timestamps
// report false; duration math treats them as unobserved.
func (e RawEvent) Time() (time.Time, bool) {
	if e.Timestamp == "" {
		return time.Time{}, false
	}
	ts, err := time.Parse(time.RFC3339Nano, e.Timestamp)
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}
