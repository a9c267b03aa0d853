package conversation

import (
	"github.com/killallgit/loom/pkg/events"
)

// MergeItems combines the durable item list with the tracker's live
// overlay into one deduplicated conversation. Durable order is preserved;
// live-only items append at the end in first-seen order. The output is
// built from copies, never aliases of tracker or durable state.
func MergeItems(durable []ConversationItem, tracker *Tracker) []ConversationItem {
	merged := make([]ConversationItem, 0, len(durable)+tracker.Len())
	known := make(map[string]struct{}, len(durable))

	for _, d := range durable {
		known[d.ID] = struct{}{}
		if overlay, ok := tracker.Get(d.ID); ok {
			merged = append(merged, overlayItem(d, overlay))
		} else {
			merged = append(merged, d.Clone())
		}
	}

	for _, live := range tracker.Items() {
		if _, ok := known[live.ID]; ok {
			continue
		}
		merged = append(merged, live)
	}

	return merged
}

// overlayItem merges live-computed fields onto a durable item without
// replacing its identity. Content prefers the overlay's when non-empty;
// timestamps and duration prefer overlay values; streaming state can only
// move towards finished - an item either source considers done stays done.
func overlayItem(durable, overlay ConversationItem) ConversationItem {
	out := durable.Clone()

	mergeMessage(&out, overlay)
	mergeReasoning(&out, overlay)
	mergeToolCall(&out, overlay)
	mergeToolList(&out, overlay)
	mergeWebSearch(&out, overlay)

	if overlay.Approval != nil && out.Approval == nil {
		a := *overlay.Approval
		out.Approval = &a
	}
	if overlay.Error != nil {
		e := *overlay.Error
		out.Error = &e
	}

	out.IsStreaming = overlay.IsStreaming && durable.IsStreaming
	if overlay.Timestamp != "" {
		out.Timestamp = overlay.Timestamp
	}
	if overlay.StartedAt != "" {
		out.StartedAt = overlay.StartedAt
	}
	if overlay.EndedAt != "" {
		out.EndedAt = overlay.EndedAt
	}
	if overlay.DurationSeconds != nil {
		d := *overlay.DurationSeconds
		out.DurationSeconds = &d
	}
	if out.Status == "" {
		out.Status = overlay.Status
	} else if overlay.Status == StatusFailed {
		out.Status = StatusFailed
	}
	out.SourceEvent = overlay.SourceEvent

	return out
}

func mergeMessage(out *ConversationItem, overlay ConversationItem) {
	if overlay.Message == nil {
		return
	}
	if out.Message == nil {
		m := *overlay.Message
		out.Message = &m
		return
	}
	if overlay.Message.Text != "" {
		out.Message.Text = overlay.Message.Text
	}
	if out.Message.Role == "" {
		out.Message.Role = overlay.Message.Role
	}
}

func mergeReasoning(out *ConversationItem, overlay ConversationItem) {
	if overlay.Reasoning == nil {
		return
	}
	if out.Reasoning == nil || hasSummaryText(overlay.Reasoning.Summary) {
		out.Reasoning = &ReasoningPayload{Summary: append([]string(nil), overlay.Reasoning.Summary...)}
	}
}

// hasSummaryText reports whether any summary slot carries actual content.
// Grown-but-unfilled slots do not count as overlay content.
func hasSummaryText(summary []string) bool {
	for _, part := range summary {
		if part != "" {
			return true
		}
	}
	return false
}

func mergeToolCall(out *ConversationItem, overlay ConversationItem) {
	if overlay.ToolCall == nil {
		return
	}
	if out.ToolCall == nil {
		tc := *overlay.ToolCall
		out.ToolCall = &tc
		return
	}
	if overlay.ToolCall.Name != "" {
		out.ToolCall.Name = overlay.ToolCall.Name
	}
	if overlay.ToolCall.Arguments != "" {
		out.ToolCall.Arguments = overlay.ToolCall.Arguments
	}
	if overlay.ToolCall.Output != "" {
		out.ToolCall.Output = overlay.ToolCall.Output
	}
	if overlay.ToolCall.ServerLabel != "" {
		out.ToolCall.ServerLabel = overlay.ToolCall.ServerLabel
	}
}

func mergeToolList(out *ConversationItem, overlay ConversationItem) {
	if overlay.ToolList == nil {
		return
	}
	if out.ToolList == nil {
		out.ToolList = &ToolListPayload{}
	}
	if overlay.ToolList.ServerLabel != "" {
		out.ToolList.ServerLabel = overlay.ToolList.ServerLabel
	}
	if len(overlay.ToolList.Tools) > 0 {
		out.ToolList.Tools = append([]string(nil), overlay.ToolList.Tools...)
	}
}

func mergeWebSearch(out *ConversationItem, overlay ConversationItem) {
	if overlay.WebSearch == nil {
		return
	}
	if out.WebSearch == nil {
		w := *overlay.WebSearch
		out.WebSearch = &w
		return
	}
	if overlay.WebSearch.Query != "" {
		out.WebSearch.Query = overlay.WebSearch.Query
	}
}

// ItemsFromEvents assembles conversation items from a complete event list
// by running it through a fresh tracker. Used to turn a durable or
// persisted snapshot's raw events into its item list.
func ItemsFromEvents(evs []events.RawEvent) []ConversationItem {
	tracker := NewTracker()
	tracker.Apply(evs)
	return tracker.Items()
}

// HistoryItems prepares a persisted snapshot for display: every item is
// forced non-streaming because a completed session has nothing in flight.
func HistoryItems(items []ConversationItem) []ConversationItem {
	out := CloneItems(items)
	for i := range out {
		out[i].IsStreaming = false
	}
	return out
}
