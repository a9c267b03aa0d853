package conversation

import (
	"strings"

	"github.com/killallgit/loom/pkg/events"
)

// ItemStatus tracks an item's lifecycle position.
type ItemStatus string

const (
	StatusPending    ItemStatus = "pending"
	StatusInProgress ItemStatus = "in_progress"
	StatusCompleted  ItemStatus = "completed"
	StatusFailed     ItemStatus = "failed"
)

// Roles for message payloads.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ConversationItem is the unit of display: one entry in the merged
// conversation. Exactly one payload field matching Type is populated;
// Error additionally carries the failure detail of failed items.
type ConversationItem struct {
	ID        string          `json:"id"`
	Type      events.ItemType `json:"type"`
	Timestamp string          `json:"timestamp,omitempty"`
	Status    ItemStatus      `json:"status,omitempty"`

	Message   *MessagePayload   `json:"message,omitempty"`
	Reasoning *ReasoningPayload `json:"reasoning,omitempty"`
	ToolCall  *ToolCallPayload  `json:"tool_call,omitempty"`
	ToolList  *ToolListPayload  `json:"tool_list,omitempty"`
	Approval  *ApprovalPayload  `json:"approval,omitempty"`
	WebSearch *WebSearchPayload `json:"web_search,omitempty"`
	Error     *ErrorPayload     `json:"error,omitempty"`
	Note      *StatusPayload    `json:"note,omitempty"`

	// IsStreaming is true while the item is still being assembled from
	// delta events. Once false it never flips back for the same id.
	IsStreaming bool `json:"is_streaming"`

	StartedAt       string `json:"started_at,omitempty"`
	EndedAt         string `json:"ended_at,omitempty"`
	DurationSeconds *int64 `json:"duration_seconds,omitempty"`

	// SourceEvent is the last raw event that touched this item.
	// Diagnostic only; excluded from equality.
	SourceEvent *events.RawEvent `json:"-"`
}

type MessagePayload struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

type ReasoningPayload struct {
	Summary []string `json:"summary"`
}

type ToolCallPayload struct {
	Name        string `json:"name,omitempty"`
	Arguments   string `json:"arguments,omitempty"`
	Output      string `json:"output,omitempty"`
	ServerLabel string `json:"server_label,omitempty"`
}

type ToolListPayload struct {
	ServerLabel string   `json:"server_label,omitempty"`
	Tools       []string `json:"tools,omitempty"`
}

type ApprovalPayload struct {
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

type WebSearchPayload struct {
	Query string `json:"query,omitempty"`
}

type ErrorPayload struct {
	Source  string `json:"source,omitempty"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

type StatusPayload struct {
	Text string `json:"text"`
}

func NewMessageItem(id, role, text string) ConversationItem {
	return ConversationItem{
		ID:      id,
		Type:    events.ItemMessage,
		Message: &MessagePayload{Role: role, Text: text},
	}
}

func NewReasoningItem(id string) ConversationItem {
	return ConversationItem{
		ID:        id,
		Type:      events.ItemReasoning,
		Reasoning: &ReasoningPayload{},
	}
}

func NewToolCallItem(id, name, arguments string) ConversationItem {
	return ConversationItem{
		ID:       id,
		Type:     events.ItemToolCall,
		ToolCall: &ToolCallPayload{Name: name, Arguments: arguments},
	}
}

func NewToolListItem(id, serverLabel string, tools []string) ConversationItem {
	return ConversationItem{
		ID:       id,
		Type:     events.ItemToolList,
		ToolList: &ToolListPayload{ServerLabel: serverLabel, Tools: tools},
	}
}

func NewApprovalItem(id, name, arguments string) ConversationItem {
	return ConversationItem{
		ID:       id,
		Type:     events.ItemApprovalRequest,
		Approval: &ApprovalPayload{Name: name, Arguments: arguments},
	}
}

func NewWebSearchItem(id, query string) ConversationItem {
	return ConversationItem{
		ID:        id,
		Type:      events.ItemWebSearch,
		WebSearch: &WebSearchPayload{Query: query},
	}
}

func NewErrorItem(id string, detail *events.ErrorDetail) ConversationItem {
	payload := &ErrorPayload{}
	if detail != nil {
		payload.Source = detail.Source
		payload.Code = detail.Code
		payload.Message = detail.Message
	}
	return ConversationItem{
		ID:     id,
		Type:   events.ItemError,
		Error:  payload,
		Status: StatusFailed,
	}
}

func NewStatusItem(id, text string) ConversationItem {
	return ConversationItem{
		ID:   id,
		Type: events.ItemStatusPlaceholder,
		Note: &StatusPayload{Text: text},
	}
}

func (ci ConversationItem) IsTerminal() bool {
	return ci.Status == StatusCompleted || ci.Status == StatusFailed
}

func (ci ConversationItem) IsMessage() bool {
	return ci.Type == events.ItemMessage
}

func (ci ConversationItem) IsReasoning() bool {
	return ci.Type == events.ItemReasoning
}

func (ci ConversationItem) IsToolCall() bool {
	return ci.Type == events.ItemToolCall
}

func (ci ConversationItem) IsError() bool {
	return ci.Type == events.ItemError
}

// PrimaryText returns the display text for the item's dominant field:
// message body, joined reasoning summary, or tool output.
func (ci ConversationItem) PrimaryText() string {
	switch {
	case ci.Message != nil:
		return ci.Message.Text
	case ci.Reasoning != nil && len(ci.Reasoning.Summary) > 0:
		return strings.Join(ci.Reasoning.Summary, "\n")
	case ci.ToolCall != nil:
		return ci.ToolCall.Output
	case ci.Error != nil:
		return ci.Error.Message
	case ci.Note != nil:
		return ci.Note.Text
	}
	return ""
}

// Clone returns a deep copy. The SourceEvent back-reference is shared;
// everything observable is copied.
func (ci ConversationItem) Clone() ConversationItem {
	out := ci
	if ci.Message != nil {
		m := *ci.Message
		out.Message = &m
	}
	if ci.Reasoning != nil {
		out.Reasoning = &ReasoningPayload{Summary: append([]string(nil), ci.Reasoning.Summary...)}
	}
	if ci.ToolCall != nil {
		tc := *ci.ToolCall
		out.ToolCall = &tc
	}
	if ci.ToolList != nil {
		out.ToolList = &ToolListPayload{
			ServerLabel: ci.ToolList.ServerLabel,
			Tools:       append([]string(nil), ci.ToolList.Tools...),
		}
	}
	if ci.Approval != nil {
		a := *ci.Approval
		out.Approval = &a
	}
	if ci.WebSearch != nil {
		w := *ci.WebSearch
		out.WebSearch = &w
	}
	if ci.Error != nil {
		e := *ci.Error
		out.Error = &e
	}
	if ci.Note != nil {
		n := *ci.Note
		out.Note = &n
	}
	if ci.DurationSeconds != nil {
		d := *ci.DurationSeconds
		out.DurationSeconds = &d
	}
	return out
}

// Equal compares observable fields, ignoring the SourceEvent
// back-reference. Used to suppress redundant publications.
func (ci ConversationItem) Equal(other ConversationItem) bool {
	if ci.ID != other.ID || ci.Type != other.Type || ci.Timestamp != other.Timestamp ||
		ci.Status != other.Status || ci.IsStreaming != other.IsStreaming ||
		ci.StartedAt != other.StartedAt || ci.EndedAt != other.EndedAt {
		return false
	}
	if !equalInt64Ptr(ci.DurationSeconds, other.DurationSeconds) {
		return false
	}
	if !equalMessage(ci.Message, other.Message) ||
		!equalReasoning(ci.Reasoning, other.Reasoning) ||
		!equalToolCall(ci.ToolCall, other.ToolCall) ||
		!equalToolList(ci.ToolList, other.ToolList) ||
		!equalApproval(ci.Approval, other.Approval) ||
		!equalWebSearch(ci.WebSearch, other.WebSearch) ||
		!equalError(ci.Error, other.Error) ||
		!equalNote(ci.Note, other.Note) {
		return false
	}
	return true
}

func equalInt64Ptr(a, b *int64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func equalMessage(a, b *MessagePayload) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func equalReasoning(a, b *ReasoningPayload) bool {
	if a == nil || b == nil {
		return a == b
	}
	return equalStrings(a.Summary, b.Summary)
}

func equalToolCall(a, b *ToolCallPayload) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func equalToolList(a, b *ToolListPayload) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.ServerLabel == b.ServerLabel && equalStrings(a.Tools, b.Tools)
}

func equalApproval(a, b *ApprovalPayload) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func equalWebSearch(a, b *WebSearchPayload) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func equalError(a, b *ErrorPayload) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func equalNote(a, b *StatusPayload) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// ItemsEqual compares two conversation snapshots item by item.
func ItemsEqual(a, b []ConversationItem) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}

// CloneItems deep-copies a conversation snapshot.
func CloneItems(items []ConversationItem) []ConversationItem {
	out := make([]ConversationItem, len(items))
	for i, it := range items {
		out[i] = it.Clone()
	}
	return out
}
