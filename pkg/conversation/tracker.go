package conversation

import (
	"fmt"
	"math"
	"time"

	"github.com/killallgit/loom/pkg/events"
	"github.com/killallgit/loom/pkg/logger"
)

// Tracker maintains the in-flight items of one session, applying lifecycle
// and delta events to build up each item's content, status and timing.
// State per item id moves absent → pending → accumulating → terminal;
// terminal items ignore late added/delta events so streaming never resumes.
// Every processed event is remembered by (type, itemId, sequenceNumber) so
// redelivered events are no-ops and Apply can safely re-run on the full
// live slice at every recomputation.
type Tracker struct {
	items     map[string]*ConversationItem
	order     []string
	processed map[string]struct{}
	buffer    *DeltaBuffer
	log       *logger.ComponentLogger
}

// NewTracker creates an empty tracker
func NewTracker() *Tracker {
	return &Tracker{
		items:     make(map[string]*ConversationItem),
		processed: make(map[string]struct{}),
		buffer:    NewDeltaBuffer(),
		log:       logger.WithComponent("item_tracker"),
	}
}

// Apply feeds a slice of events through the tracker in delivery order.
// Returns true when any event changed tracker state.
func (t *Tracker) Apply(evs []events.RawEvent) bool {
	changed := false
	for _, ev := range evs {
		if t.Process(ev) {
			changed = true
		}
	}
	return changed
}

// Process applies one event. Malformed events are dropped, duplicates are
// no-ops; the return value reports whether item state changed.
func (t *Tracker) Process(ev events.RawEvent) bool {
	if ev.IsError() {
		return t.handleError(ev)
	}
	if ev.IsDelta() {
		return t.handleDelta(ev)
	}

	switch ev.Phase() {
	case events.PhaseCreated, events.PhaseAdded:
		return t.handleAdded(ev)
	case events.PhaseDone:
		return t.handleDone(ev)
	case events.PhaseFailed:
		return t.handleFailed(ev)
	}

	t.log.Debug("Dropping event with unknown phase", "type", ev.Type, "seq", ev.SequenceNumber)
	return false
}

func (t *Tracker) handleAdded(ev events.RawEvent) bool {
	id := ev.ResolveItemID()
	if id == "" {
		t.log.Debug("Dropping lifecycle event with no item id", "type", ev.Type, "seq", ev.SequenceNumber)
		return false
	}
	if !t.markProcessed(ev) {
		return false
	}

	item, existed := t.items[id]
	if !existed {
		item = t.createItem(id, ev)
	} else if !item.IsStreaming {
		// Finished items never resume streaming
		return false
	}

	if ev.IsSummaryPart() && item.Reasoning != nil {
		growSummary(item, summaryIndex(ev))
	}
	applySnapshot(item, ev.Item)
	if item.StartedAt == "" && ev.Timestamp != "" {
		item.StartedAt = ev.Timestamp
	}
	if item.Timestamp == "" {
		item.Timestamp = ev.Timestamp
	}
	item.SourceEvent = &ev
	return true
}

func (t *Tracker) handleDelta(ev events.RawEvent) bool {
	id := ev.ResolveItemID()
	if id == "" {
		t.log.Debug("Dropping delta with no item id", "type", ev.Type, "seq", ev.SequenceNumber)
		return false
	}
	if ev.Delta == "" {
		t.log.Debug("Dropping malformed delta", "item_id", id, "seq", ev.SequenceNumber)
		return false
	}
	if !t.markProcessed(ev) {
		return false
	}

	item, existed := t.items[id]
	if !existed {
		// Deltas can outrun their added event; create the item implicitly
		item = t.createItem(id, ev)
	} else if !item.IsStreaming {
		return false
	}

	switch {
	case item.Reasoning != nil:
		idx := summaryIndex(ev)
		key := summaryKey(id, idx)
		t.buffer.Put(key, ev.SequenceNumber, ev.Delta)
		growSummary(item, idx)
		item.Reasoning.Summary[idx] = t.buffer.Reconstruct(key)
	case item.Message != nil:
		t.buffer.Put(id, ev.SequenceNumber, ev.Delta)
		item.Message.Text = t.buffer.Reconstruct(id)
	default:
		t.log.Debug("Dropping delta for item without text field", "item_id", id, "item_type", item.Type)
		return false
	}

	item.Status = StatusInProgress
	item.SourceEvent = &ev
	return true
}

func (t *Tracker) handleDone(ev events.RawEvent) bool {
	id := ev.ResolveItemID()
	if id == "" {
		t.log.Debug("Dropping lifecycle event with no item id", "type", ev.Type, "seq", ev.SequenceNumber)
		return false
	}
	if !t.markProcessed(ev) {
		return false
	}

	item, existed := t.items[id]
	if !existed {
		item = t.createItem(id, ev)
	}

	if ev.IsSummaryPart() {
		return t.finishSummaryPart(item, ev)
	}

	if item.IsTerminal() && !item.IsStreaming {
		return false
	}

	applySnapshot(item, ev.Item)
	switch {
	case item.Message != nil:
		// A full text on the done event is authoritative over the buffer
		if ev.Text != "" {
			item.Message.Text = ev.Text
		}
		if item.Message.Text == "" {
			item.Message.Text = t.buffer.Reconstruct(item.ID)
		}
	case item.Reasoning != nil:
		if ev.Text != "" && len(item.Reasoning.Summary) == 0 {
			item.Reasoning.Summary = []string{ev.Text}
		}
	}

	item.IsStreaming = false
	item.Status = StatusCompleted
	if ev.Timestamp != "" {
		item.EndedAt = ev.Timestamp
	}
	computeDuration(item)
	t.clearItemBuffers(item)
	item.SourceEvent = &ev

	t.log.Debug("Item completed", "item_id", item.ID, "item_type", item.Type)
	return true
}

// finishSummaryPart finalizes one indexed reasoning summary slot. Only the
// item's own done event ends streaming, never a part-level done.
func (t *Tracker) finishSummaryPart(item *ConversationItem, ev events.RawEvent) bool {
	if item.Reasoning == nil {
		t.log.Debug("Dropping summary part for non-reasoning item", "item_id", item.ID, "item_type", item.Type)
		return false
	}

	idx := summaryIndex(ev)
	key := summaryKey(item.ID, idx)
	growSummary(item, idx)

	text := ev.FinalText()
	if text == "" {
		text = t.buffer.Reconstruct(key)
	}
	if text != "" {
		item.Reasoning.Summary[idx] = text
	}
	t.buffer.Clear(key)
	item.SourceEvent = &ev
	return true
}

func (t *Tracker) handleFailed(ev events.RawEvent) bool {
	id := ev.ResolveItemID()
	if id == "" {
		t.log.Debug("Dropping lifecycle event with no item id", "type", ev.Type, "seq", ev.SequenceNumber)
		return false
	}
	if !t.markProcessed(ev) {
		return false
	}

	// A failed event with no prior added still produces a terminal item
	item, existed := t.items[id]
	if !existed {
		item = t.createItem(id, ev)
	} else if item.IsTerminal() && !item.IsStreaming {
		return false
	}

	applySnapshot(item, ev.Item)
	item.IsStreaming = false
	item.Status = StatusFailed
	if detail := ev.ErrorInfo(); detail != nil {
		item.Error = &ErrorPayload{Source: detail.Source, Code: detail.Code, Message: detail.Message}
	}
	if ev.Timestamp != "" {
		item.EndedAt = ev.Timestamp
	}
	computeDuration(item)
	t.clearItemBuffers(item)
	item.SourceEvent = &ev

	t.log.Debug("Item failed", "item_id", item.ID, "item_type", item.Type)
	return true
}

// handleError turns a first-class error event into a terminal error item.
// Error events without an item id get a deterministic synthesized id so
// replays stay idempotent.
func (t *Tracker) handleError(ev events.RawEvent) bool {
	if !t.markProcessed(ev) {
		return false
	}

	id := ev.ResolveItemID()
	if id == "" {
		id = fmt.Sprintf("error_%d", ev.SequenceNumber)
	}

	item, existed := t.items[id]
	if !existed {
		created := NewErrorItem(id, ev.ErrorInfo())
		created.Timestamp = ev.Timestamp
		item = &created
		t.insert(item)
	} else if detail := ev.ErrorInfo(); detail != nil {
		item.Error = &ErrorPayload{Source: detail.Source, Code: detail.Code, Message: detail.Message}
	}
	item.IsStreaming = false
	item.SourceEvent = &ev
	return true
}

// Get returns a copy of the tracked item for id
func (t *Tracker) Get(id string) (ConversationItem, bool) {
	item, exists := t.items[id]
	if !exists {
		return ConversationItem{}, false
	}
	return item.Clone(), true
}

// Has reports whether an item is tracked under id
func (t *Tracker) Has(id string) bool {
	_, exists := t.items[id]
	return exists
}

// Len returns the number of tracked items
func (t *Tracker) Len() int {
	return len(t.items)
}

// Items returns copies of all tracked items in first-seen order
func (t *Tracker) Items() []ConversationItem {
	items := make([]ConversationItem, 0, len(t.order))
	for _, id := range t.order {
		if item, exists := t.items[id]; exists {
			items = append(items, item.Clone())
		}
	}
	return items
}

// Reset clears all tracker state: items, processed-event set and buffers.
// Called when the session identity changes.
func (t *Tracker) Reset() {
	t.items = make(map[string]*ConversationItem)
	t.order = nil
	t.processed = make(map[string]struct{})
	t.buffer.Reset()
	t.log.Debug("Tracker reset")
}

// TrackerStats provides diagnostics about tracker state
type TrackerStats struct {
	Items             int
	InFlight          int
	Terminal          int
	ProcessedEvents   int
	BufferedFragments int
}

// Stats returns current tracker diagnostics
func (t *Tracker) Stats() TrackerStats {
	stats := TrackerStats{
		Items:             len(t.items),
		ProcessedEvents:   len(t.processed),
		BufferedFragments: t.buffer.Size(),
	}
	for _, item := range t.items {
		if item.IsStreaming {
			stats.InFlight++
		} else {
			stats.Terminal++
		}
	}
	return stats
}

// markProcessed records the event's dedupe key, reporting false for a
// duplicate delivery.
func (t *Tracker) markProcessed(ev events.RawEvent) bool {
	key := ev.Key()
	if _, dup := t.processed[key]; dup {
		return false
	}
	t.processed[key] = struct{}{}
	return true
}

// createItem builds a new tracked item classified from the event type
func (t *Tracker) createItem(id string, ev events.RawEvent) *ConversationItem {
	var created ConversationItem
	switch events.Classify(ev.Type) {
	case events.ItemReasoning:
		created = NewReasoningItem(id)
	case events.ItemToolCall:
		created = NewToolCallItem(id, "", "")
	case events.ItemToolList:
		created = NewToolListItem(id, "", nil)
	case events.ItemApprovalRequest:
		created = NewApprovalItem(id, "", "")
	case events.ItemWebSearch:
		created = NewWebSearchItem(id, "")
	default:
		created = NewMessageItem(id, RoleAssistant, "")
	}
	created.Timestamp = ev.Timestamp
	created.IsStreaming = true
	created.Status = StatusPending

	item := &created
	t.insert(item)
	return item
}

func (t *Tracker) insert(item *ConversationItem) {
	t.items[item.ID] = item
	t.order = append(t.order, item.ID)
}

// clearItemBuffers drops the item's text buffer and any summary part
// buffers once the item is terminal.
func (t *Tracker) clearItemBuffers(item *ConversationItem) {
	t.buffer.Clear(item.ID)
	if item.Reasoning != nil {
		for i := range item.Reasoning.Summary {
			t.buffer.Clear(summaryKey(item.ID, i))
		}
	}
}

// applySnapshot overlays non-empty fields of an embedded item snapshot
// onto the tracked item's payload.
func applySnapshot(item *ConversationItem, snap *events.ItemSnapshot) {
	if snap == nil {
		return
	}
	switch {
	case item.Message != nil:
		if snap.Role != "" {
			item.Message.Role = snap.Role
		}
		if snap.Text != "" {
			item.Message.Text = snap.Text
		}
	case item.Reasoning != nil:
		if len(snap.Summary) > 0 {
			item.Reasoning.Summary = append([]string(nil), snap.Summary...)
		}
	case item.ToolCall != nil:
		if snap.Name != "" {
			item.ToolCall.Name = snap.Name
		}
		if snap.Arguments != "" {
			item.ToolCall.Arguments = snap.Arguments
		}
		if snap.Output != "" {
			item.ToolCall.Output = snap.Output
		}
		if snap.ServerLabel != "" {
			item.ToolCall.ServerLabel = snap.ServerLabel
		}
	case item.ToolList != nil:
		if snap.ServerLabel != "" {
			item.ToolList.ServerLabel = snap.ServerLabel
		}
		if len(snap.Tools) > 0 {
			item.ToolList.Tools = append([]string(nil), snap.Tools...)
		}
	case item.Approval != nil:
		if snap.Name != "" {
			item.Approval.Name = snap.Name
		}
		if snap.Arguments != "" {
			item.Approval.Arguments = snap.Arguments
		}
	case item.WebSearch != nil:
		if snap.Query != "" {
			item.WebSearch.Query = snap.Query
		}
	}
}

func summaryIndex(ev events.RawEvent) int {
	if ev.SummaryIndex != nil && *ev.SummaryIndex >= 0 {
		return *ev.SummaryIndex
	}
	return 0
}

func summaryKey(id string, idx int) string {
	return fmt.Sprintf("%s#%d", id, idx)
}

// growSummary extends the summary slice to cover idx. Slots are only ever
// added, never removed.
func growSummary(item *ConversationItem, idx int) {
	for len(item.Reasoning.Summary) <= idx {
		item.Reasoning.Summary = append(item.Reasoning.Summary, "")
	}
}

func computeDuration(item *ConversationItem) {
	start, okStart := parseTimestamp(item.StartedAt)
	end, okEnd := parseTimestamp(item.EndedAt)
	if !okStart || !okEnd {
		return
	}
	secs := int64(math.Round(end.Sub(start).Seconds()))
	item.DurationSeconds = &secs
}

func parseTimestamp(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	ts, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}
