package events

import "strings"

// ItemType is the display category an event resolves to.
type ItemType string

const (
	ItemMessage           ItemType = "message"
	ItemReasoning         ItemType = "reasoning"
	ItemToolCall          ItemType = "tool_call"
	ItemToolList          ItemType = "tool_list"
	ItemApprovalRequest   ItemType = "approval_request"
	ItemWebSearch         ItemType = "web_search"
	ItemError             ItemType = "error"
	ItemStatusPlaceholder ItemType = "status_placeholder"
)

// Classify maps an event type string to the item category it produces.
// Matching is substring-based because upstream vocabularies prefix the
// category ("response.mcp_call.done", "reasoning_summary_text.delta").
// The approval check runs before the generic mcp check so that
// "mcp_approval_request" resolves to an approval item, not a tool call.
func Classify(eventType string) ItemType {
	switch {
	case eventType == "error":
		return ItemError
	case strings.Contains(eventType, "reasoning"):
		return ItemReasoning
	case strings.Contains(eventType, "web_search"):
		return ItemWebSearch
	case strings.Contains(eventType, "mcp_list_tools"):
		return ItemToolList
	case strings.Contains(eventType, "approval"):
		return ItemApprovalRequest
	case strings.Contains(eventType, "mcp"):
		return ItemToolCall
	}
	return ItemMessage
}
