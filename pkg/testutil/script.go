package testutil

import (
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/killallgit/loom/pkg/events"
)

// BaseTime is the fixed wall clock scripts start from, keeping generated
// timestamps and computed durations deterministic.
const BaseTime = "2026-03-14T09:30:00Z"

// Script builds a deterministic raw event sequence for exercising the
// engine: sequence numbers increment per event and timestamps advance
// only through explicit Advance calls.
type Script struct {
	evs []events.RawEvent
	seq int64
	now time.Time
}

// NewScript creates an empty script positioned at BaseTime
func NewScript() *Script {
	start, _ := time.Parse(time.RFC3339, BaseTime)
	return &Script{now: start}
}

// Advance moves the script clock forward for subsequent events
func (s *Script) Advance(d time.Duration) *Script {
	s.now = s.now.Add(d)
	return s
}

// Events returns a copy of the scripted sequence
func (s *Script) Events() []events.RawEvent {
	return append([]events.RawEvent(nil), s.evs...)
}

// Push appends a hand-built event, assigning the next sequence number
// when the event has none.
func (s *Script) Push(ev events.RawEvent) *Script {
	if ev.SequenceNumber == 0 {
		ev.SequenceNumber = s.next()
	}
	s.evs = append(s.evs, ev)
	return s
}

// MessageAdded scripts a message item entering the stream
func (s *Script) MessageAdded(id, role string) *Script {
	return s.push(events.RawEvent{
		Type:      "response.output_item.added",
		ItemID:    id,
		Timestamp: s.stamp(),
		Item:      &events.ItemSnapshot{ID: id, Role: role},
	})
}

// TextDelta scripts one message text fragment. Deltas deliberately carry
// no timestamp, matching the live feed.
func (s *Script) TextDelta(id, delta string) *Script {
	return s.push(events.RawEvent{
		Type:   "response.output_text.delta",
		ItemID: id,
		Delta:  delta,
	})
}

// MessageDone finalizes a message, optionally with authoritative full text
func (s *Script) MessageDone(id, text string) *Script {
	return s.push(events.RawEvent{
		Type:      "response.output_item.done",
		ItemID:    id,
		Timestamp: s.stamp(),
		Text:      text,
	})
}

// MessageFailed fails a message item with the given error message
func (s *Script) MessageFailed(id, message string) *Script {
	return s.push(events.RawEvent{
		Type:      "response.output_item.failed",
		ItemID:    id,
		Timestamp: s.stamp(),
		Error:     &events.ErrorDetail{Source: events.ErrorSourceBackend, Message: message},
	})
}

// ReasoningAdded scripts a reasoning item entering the stream
func (s *Script) ReasoningAdded(id string) *Script {
	return s.push(events.RawEvent{
		Type:      "response.reasoning.added",
		ItemID:    id,
		Timestamp: s.stamp(),
	})
}

// SummaryDelta scripts a fragment of one indexed reasoning summary part
func (s *Script) SummaryDelta(id string, idx int, delta string) *Script {
	return s.push(events.RawEvent{
		Type:         "response.reasoning_summary_text.delta",
		ItemID:       id,
		SummaryIndex: intPtr(idx),
		Delta:        delta,
	})
}

// SummaryPartDone finalizes one reasoning summary part
func (s *Script) SummaryPartDone(id string, idx int, text string) *Script {
	return s.push(events.RawEvent{
		Type:         "response.reasoning_summary_part.done",
		ItemID:       id,
		SummaryIndex: intPtr(idx),
		Text:         text,
	})
}

// ReasoningDone finalizes a reasoning item
func (s *Script) ReasoningDone(id string) *Script {
	return s.push(events.RawEvent{
		Type:      "response.reasoning.done",
		ItemID:    id,
		Timestamp: s.stamp(),
	})
}

// ToolCallAdded scripts a tool invocation entering the stream
func (s *Script) ToolCallAdded(id, name, arguments, serverLabel string) *Script {
	return s.push(events.RawEvent{
		Type:      "mcp_call.added",
		ItemID:    id,
		Timestamp: s.stamp(),
		Item:      &events.ItemSnapshot{ID: id, Name: name, Arguments: arguments, ServerLabel: serverLabel},
	})
}

// ToolCallDone finalizes a tool invocation with its output
func (s *Script) ToolCallDone(id, output string) *Script {
	return s.push(events.RawEvent{
		Type:      "mcp_call.done",
		ItemID:    id,
		Timestamp: s.stamp(),
		Item:      &events.ItemSnapshot{ID: id, Output: output},
	})
}

// ToolCallFailed fails a tool invocation
func (s *Script) ToolCallFailed(id, message string) *Script {
	return s.push(events.RawEvent{
		Type:      "mcp_call.failed",
		ItemID:    id,
		Timestamp: s.stamp(),
		Error:     &events.ErrorDetail{Source: events.ErrorSourceMCP, Message: message},
	})
}

// ToolListDone scripts a completed tool listing
func (s *Script) ToolListDone(id, serverLabel string, tools []string) *Script {
	return s.push(events.RawEvent{
		Type:      "mcp_list_tools.done",
		ItemID:    id,
		Timestamp: s.stamp(),
		Item:      &events.ItemSnapshot{ID: id, ServerLabel: serverLabel, Tools: tools},
	})
}

// WebSearchAdded scripts a web search entering the stream
func (s *Script) WebSearchAdded(id, query string) *Script {
	return s.push(events.RawEvent{
		Type:      "web_search_call.added",
		ItemID:    id,
		Timestamp: s.stamp(),
		Item:      &events.ItemSnapshot{ID: id, Query: query},
	})
}

// WebSearchDone finalizes a web search
func (s *Script) WebSearchDone(id string) *Script {
	return s.push(events.RawEvent{
		Type:      "web_search_call.done",
		ItemID:    id,
		Timestamp: s.stamp(),
	})
}

// ErrorEvent scripts a first-class stream error
func (s *Script) ErrorEvent(source, code, message string) *Script {
	return s.push(events.RawEvent{
		Type:      "error",
		Timestamp: s.stamp(),
		Error:     &events.ErrorDetail{Source: source, Code: code, Message: message},
	})
}

func (s *Script) push(ev events.RawEvent) *Script {
	ev.SequenceNumber = s.next()
	s.evs = append(s.evs, ev)
	return s
}

func (s *Script) next() int64 {
	s.seq++
	return s.seq
}

func (s *Script) stamp() string {
	return s.now.UTC().Format(time.RFC3339)
}

// Jumble returns a deterministically shuffled copy of the event slice,
// simulating out-of-order network delivery.
func Jumble(evs []events.RawEvent, seed int64) []events.RawEvent {
	out := append([]events.RawEvent(nil), evs...)
	r := rand.New(rand.NewSource(seed))
	r.Shuffle(len(out), func(i, j int) {
		out[i], out[j] = out[j], out[i]
	})
	return out
}

// DuplicateEvery returns a copy where every nth event is delivered twice
// in a row, simulating transport redelivery. n below 1 duplicates nothing.
func DuplicateEvery(evs []events.RawEvent, n int) []events.RawEvent {
	if n < 1 {
		return append([]events.RawEvent(nil), evs...)
	}
	out := make([]events.RawEvent, 0, len(evs)+len(evs)/n)
	for i, ev := range evs {
		out = append(out, ev)
		if (i+1)%n == 0 {
			out = append(out, ev)
		}
	}
	return out
}

// RandomSessionID generates a unique session identity for tests
func RandomSessionID() string {
	return "sess_" + uuid.NewString()[:8]
}

// DemoSession scripts a complete representative turn: tool discovery,
// reasoning with two summary parts, a web search, a tool call and a final
// assistant message assembled from deltas.
func DemoSession() *Script {
	return NewScript().
		ToolListDone("list_1", "weather", []string{"get_weather", "get_forecast"}).
		Advance(time.Second).
		ReasoningAdded("r_1").
		SummaryDelta("r_1", 0, "The user wants the current weather. ").
		SummaryDelta("r_1", 0, "I should call the weather tool.").
		SummaryPartDone("r_1", 0, "").
		SummaryDelta("r_1", 1, "Oslo is the requested city.").
		Advance(2*time.Second).
		ReasoningDone("r_1").
		WebSearchAdded("ws_1", "Oslo weather today").
		Advance(time.Second).
		WebSearchDone("ws_1").
		ToolCallAdded("call_1", "get_weather", `{"city":"Oslo"}`, "weather").
		Advance(2*time.Second).
		ToolCallDone("call_1", "4 degrees, overcast").
		MessageAdded("msg_1", "assistant").
		TextDelta("msg_1", "It is currently ").
		TextDelta("msg_1", "4 degrees and overcast ").
		TextDelta("msg_1", "in Oslo.").
		Advance(time.Second).
		MessageDone("msg_1", "It is currently 4 degrees and overcast in Oslo.")
}

func intPtr(i int) *int {
	return &i
}
