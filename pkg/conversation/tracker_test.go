package conversation_test

import (
	"github.com/killallgit/loom/pkg/conversation"
	"github.com/killallgit/loom/pkg/events"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Tracker", func() {
	var tracker *conversation.Tracker

	BeforeEach(func() {
		tracker = conversation.NewTracker()
	})

	Describe("message lifecycle", func() {
		It("should move an item from pending through accumulating to completed", func() {
			tracker.Process(messageAdded(1, "item_1", startTime))
			item, found := tracker.Get("item_1")
			Expect(found).To(BeTrue())
			Expect(item.IsStreaming).To(BeTrue())
			Expect(item.Status).To(Equal(conversation.StatusPending))

			tracker.Process(textDelta(2, "item_1", "Hel"))
			item, _ = tracker.Get("item_1")
			Expect(item.Status).To(Equal(conversation.StatusInProgress))
			Expect(item.Message.Text).To(Equal("Hel"))

			tracker.Process(textDelta(3, "item_1", "lo"))
			tracker.Process(messageDone(4, "item_1", "", endTime))
			item, _ = tracker.Get("item_1")
			Expect(item.IsStreaming).To(BeFalse())
			Expect(item.Status).To(Equal(conversation.StatusCompleted))
			Expect(item.Message.Text).To(Equal("Hello"))
		})

		It("should record start and end times and compute the duration", func() {
			tracker.Process(messageAdded(1, "item_1", startTime))
			tracker.Process(messageDone(2, "item_1", "Done", endTime))

			item, _ := tracker.Get("item_1")
			Expect(item.StartedAt).To(Equal(startTime))
			Expect(item.EndedAt).To(Equal(endTime))
			Expect(item.DurationSeconds).ToNot(BeNil())
			Expect(*item.DurationSeconds).To(Equal(int64(7)))
		})

		It("should round the duration to the nearest second", func() {
			tracker.Process(messageAdded(1, "item_1", startTime))
			tracker.Process(messageDone(2, "item_1", "Done", "2026-03-14T09:30:03.600Z"))

			item, _ := tracker.Get("item_1")
			Expect(*item.DurationSeconds).To(Equal(int64(4)))
		})

		It("should leave the duration unset when the start was never observed", func() {
			tracker.Process(messageDone(1, "item_1", "Done", endTime))

			item, _ := tracker.Get("item_1")
			Expect(item.DurationSeconds).To(BeNil())
			Expect(item.Status).To(Equal(conversation.StatusCompleted))
		})
	})

	Describe("delta reconstruction", func() {
		It("should assemble text in sequence order regardless of delivery order", func() {
			tracker.Process(messageAdded(1, "item_1", startTime))
			tracker.Process(textDelta(12, "item_1", "d"))
			tracker.Process(textDelta(10, "item_1", "wor"))
			tracker.Process(textDelta(11, "item_1", "l"))

			item, _ := tracker.Get("item_1")
			Expect(item.Message.Text).To(Equal("world"))
		})

		It("should not duplicate text when a delta is redelivered", func() {
			tracker.Process(messageAdded(1, "item_1", startTime))
			delta := textDelta(2, "item_1", "Hello")
			Expect(tracker.Process(delta)).To(BeTrue())
			Expect(tracker.Process(delta)).To(BeFalse())

			item, _ := tracker.Get("item_1")
			Expect(item.Message.Text).To(Equal("Hello"))
		})

		It("should create the item implicitly when a delta arrives before its added event", func() {
			tracker.Process(textDelta(5, "item_1", "early"))

			item, found := tracker.Get("item_1")
			Expect(found).To(BeTrue())
			Expect(item.IsStreaming).To(BeTrue())
			Expect(item.Message.Text).To(Equal("early"))
		})

		It("should backfill the start time when the added event arrives after a delta", func() {
			tracker.Process(textDelta(5, "item_1", "early"))
			tracker.Process(messageAdded(4, "item_1", startTime))
			tracker.Process(messageDone(6, "item_1", "", endTime))

			item, _ := tracker.Get("item_1")
			Expect(item.StartedAt).To(Equal(startTime))
			Expect(*item.DurationSeconds).To(Equal(int64(7)))
		})

		It("should drop deltas with no item id", func() {
			changed := tracker.Process(events.RawEvent{Type: "response.output_text.delta", SequenceNumber: 1, Delta: "orphan"})

			Expect(changed).To(BeFalse())
			Expect(tracker.Len()).To(Equal(0))
		})

		It("should drop deltas with an empty fragment", func() {
			tracker.Process(messageAdded(1, "item_1", startTime))
			changed := tracker.Process(events.RawEvent{Type: "response.output_text.delta", SequenceNumber: 2, ItemID: "item_1"})

			Expect(changed).To(BeFalse())
			item, _ := tracker.Get("item_1")
			Expect(item.Message.Text).To(Equal(""))
		})

		It("should drop deltas for items without a text field", func() {
			tracker.Process(events.RawEvent{
				Type:           "mcp_call.added",
				SequenceNumber: 1,
				ItemID:         "call_1",
				Item:           &events.ItemSnapshot{ID: "call_1", Name: "get_weather"},
			})
			changed := tracker.Process(events.RawEvent{
				Type:           "mcp_call.arguments_delta",
				SequenceNumber: 2,
				ItemID:         "call_1",
				Delta:          `{"city":`,
			})

			Expect(changed).To(BeFalse())
			item, _ := tracker.Get("call_1")
			Expect(item.ToolCall.Arguments).To(Equal(""))
		})
	})

	Describe("done event text authority", func() {
		It("should prefer the done event's full text over the reconstructed buffer", func() {
			tracker.Process(messageAdded(1, "item_1", startTime))
			tracker.Process(textDelta(2, "item_1", "Hel"))
			tracker.Process(textDelta(3, "item_1", "lo"))
			tracker.Process(messageDone(4, "item_1", "Hello there", endTime))

			item, _ := tracker.Get("item_1")
			Expect(item.Message.Text).To(Equal("Hello there"))
		})

		It("should fall back to the buffer when the done event carries no text", func() {
			tracker.Process(messageAdded(1, "item_1", startTime))
			tracker.Process(textDelta(2, "item_1", "buffered"))
			tracker.Process(messageDone(3, "item_1", "", endTime))

			item, _ := tracker.Get("item_1")
			Expect(item.Message.Text).To(Equal("buffered"))
		})

		It("should take the snapshot text when neither deltas nor event text exist", func() {
			tracker.Process(events.RawEvent{
				Type:           "response.output_item.done",
				SequenceNumber: 1,
				ItemID:         "item_1",
				Timestamp:      endTime,
				Item:           &events.ItemSnapshot{ID: "item_1", Role: "assistant", Text: "From snapshot"},
			})

			item, _ := tracker.Get("item_1")
			Expect(item.Message.Text).To(Equal("From snapshot"))
			Expect(item.Message.Role).To(Equal("assistant"))
		})
	})

	Describe("terminal items", func() {
		It("should ignore deltas arriving after the done event", func() {
			tracker.Process(messageAdded(1, "item_1", startTime))
			tracker.Process(messageDone(2, "item_1", "Final", endTime))
			changed := tracker.Process(textDelta(3, "item_1", " extra"))

			Expect(changed).To(BeFalse())
			item, _ := tracker.Get("item_1")
			Expect(item.Message.Text).To(Equal("Final"))
			Expect(item.IsStreaming).To(BeFalse())
		})

		It("should never resume streaming on a late added event", func() {
			tracker.Process(messageAdded(1, "item_1", startTime))
			tracker.Process(messageDone(2, "item_1", "Final", endTime))
			tracker.Process(messageAdded(3, "item_1", startTime))

			item, _ := tracker.Get("item_1")
			Expect(item.IsStreaming).To(BeFalse())
			Expect(item.Status).To(Equal(conversation.StatusCompleted))
		})

		It("should clear the item's delta buffers once terminal", func() {
			tracker.Process(messageAdded(1, "item_1", startTime))
			tracker.Process(textDelta(2, "item_1", "Hel"))
			tracker.Process(textDelta(3, "item_1", "lo"))
			Expect(tracker.Stats().BufferedFragments).To(Equal(2))

			tracker.Process(messageDone(4, "item_1", "", endTime))
			Expect(tracker.Stats().BufferedFragments).To(Equal(0))
		})
	})

	Describe("failed items", func() {
		It("should mark the item failed and keep the error detail", func() {
			tracker.Process(messageAdded(1, "item_1", startTime))
			tracker.Process(events.RawEvent{
				Type:           "response.output_item.failed",
				SequenceNumber: 2,
				ItemID:         "item_1",
				Timestamp:      endTime,
				Error:          &events.ErrorDetail{Source: events.ErrorSourceBackend, Code: "overloaded", Message: "model overloaded"},
			})

			item, _ := tracker.Get("item_1")
			Expect(item.Status).To(Equal(conversation.StatusFailed))
			Expect(item.IsStreaming).To(BeFalse())
			Expect(item.Error).ToNot(BeNil())
			Expect(item.Error.Message).To(Equal("model overloaded"))
			Expect(*item.DurationSeconds).To(Equal(int64(7)))
		})

		It("should create a terminal failed item even without a prior added event", func() {
			tracker.Process(events.RawEvent{
				Type:           "mcp_call.failed",
				SequenceNumber: 1,
				ItemID:         "call_9",
				Timestamp:      endTime,
				Error:          &events.ErrorDetail{Source: events.ErrorSourceMCP, Message: "timeout"},
			})

			item, found := tracker.Get("call_9")
			Expect(found).To(BeTrue())
			Expect(item.Type).To(Equal(events.ItemToolCall))
			Expect(item.Status).To(Equal(conversation.StatusFailed))
			Expect(item.IsStreaming).To(BeFalse())
			Expect(item.Error.Message).To(Equal("timeout"))
		})
	})

	Describe("reasoning summaries", func() {
		It("should accumulate an indexed summary part from deltas", func() {
			tracker.Process(reasoningAdded(1, "r_1", startTime))
			tracker.Process(summaryDelta(2, "r_1", 0, "Thinking "))
			tracker.Process(summaryDelta(3, "r_1", 0, "hard."))

			item, _ := tracker.Get("r_1")
			Expect(item.Reasoning.Summary).To(Equal([]string{"Thinking hard."}))
			Expect(item.IsStreaming).To(BeTrue())
		})

		It("should grow the summary to cover a later index without touching earlier slots", func() {
			tracker.Process(reasoningAdded(1, "r_1", startTime))
			tracker.Process(summaryDelta(2, "r_1", 0, "First."))
			tracker.Process(summaryDelta(3, "r_1", 2, "Third."))

			item, _ := tracker.Get("r_1")
			Expect(item.Reasoning.Summary).To(Equal([]string{"First.", "", "Third."}))
		})

		It("should finalize a part on its done event without ending the item", func() {
			tracker.Process(reasoningAdded(1, "r_1", startTime))
			tracker.Process(summaryDelta(2, "r_1", 0, "Draft"))
			tracker.Process(events.RawEvent{
				Type:           "response.reasoning_summary_part.done",
				SequenceNumber: 3,
				ItemID:         "r_1",
				SummaryIndex:   summaryIdx(0),
				Text:           "Polished first part.",
			})

			item, _ := tracker.Get("r_1")
			Expect(item.Reasoning.Summary).To(Equal([]string{"Polished first part."}))
			Expect(item.IsStreaming).To(BeTrue())
		})

		It("should end streaming only on the item's own done event", func() {
			tracker.Process(reasoningAdded(1, "r_1", startTime))
			tracker.Process(summaryDelta(2, "r_1", 0, "Part one."))
			tracker.Process(summaryDelta(3, "r_1", 1, "Part two."))
			tracker.Process(events.RawEvent{
				Type:           "response.reasoning.done",
				SequenceNumber: 4,
				ItemID:         "r_1",
				Timestamp:      endTime,
			})

			item, _ := tracker.Get("r_1")
			Expect(item.IsStreaming).To(BeFalse())
			Expect(item.Status).To(Equal(conversation.StatusCompleted))
			Expect(item.Reasoning.Summary).To(Equal([]string{"Part one.", "Part two."}))
		})
	})

	Describe("error events", func() {
		It("should surface a first-class error event as a terminal error item", func() {
			tracker.Process(events.RawEvent{
				Type:           "error",
				SequenceNumber: 1,
				Timestamp:      startTime,
				Error:          &events.ErrorDetail{Source: events.ErrorSourceNetwork, Code: "disconnect", Message: "stream closed"},
			})

			items := tracker.Items()
			Expect(items).To(HaveLen(1))
			Expect(items[0].Type).To(Equal(events.ItemError))
			Expect(items[0].ID).To(Equal("error_1"))
			Expect(items[0].Status).To(Equal(conversation.StatusFailed))
			Expect(items[0].Error.Message).To(Equal("stream closed"))
		})

		It("should suppress a redelivered error event", func() {
			ev := events.RawEvent{
				Type:           "error",
				SequenceNumber: 1,
				Error:          &events.ErrorDetail{Message: "boom"},
			}
			Expect(tracker.Process(ev)).To(BeTrue())
			Expect(tracker.Process(ev)).To(BeFalse())
			Expect(tracker.Len()).To(Equal(1))
		})
	})

	Describe("Apply", func() {
		It("should produce identical items when the full event slice is replayed", func() {
			evs := []events.RawEvent{
				messageAdded(1, "item_1", startTime),
				textDelta(2, "item_1", "Hel"),
				textDelta(3, "item_1", "lo"),
				messageDone(4, "item_1", "", endTime),
				reasoningAdded(5, "r_1", endTime),
				summaryDelta(6, "r_1", 0, "Still thinking."),
			}

			Expect(tracker.Apply(evs)).To(BeTrue())
			first := tracker.Items()

			Expect(tracker.Apply(evs)).To(BeFalse())
			second := tracker.Items()

			Expect(conversation.ItemsEqual(first, second)).To(BeTrue())
		})

		It("should keep items in first-seen order", func() {
			tracker.Apply([]events.RawEvent{
				messageAdded(1, "item_b", startTime),
				reasoningAdded(2, "item_a", startTime),
				messageAdded(3, "item_c", startTime),
			})

			items := tracker.Items()
			Expect(items).To(HaveLen(3))
			Expect(items[0].ID).To(Equal("item_b"))
			Expect(items[1].ID).To(Equal("item_a"))
			Expect(items[2].ID).To(Equal("item_c"))
		})
	})

	Describe("classification from event types", func() {
		It("should classify items by their event type vocabulary", func() {
			tracker.Apply([]events.RawEvent{
				{Type: "response.output_item.added", SequenceNumber: 1, ItemID: "m_1"},
				{Type: "response.reasoning.added", SequenceNumber: 2, ItemID: "r_1"},
				{Type: "web_search_call.added", SequenceNumber: 3, ItemID: "w_1"},
				{Type: "mcp_list_tools.added", SequenceNumber: 4, ItemID: "l_1"},
				{Type: "mcp_approval_request.added", SequenceNumber: 5, ItemID: "a_1"},
				{Type: "mcp_call.added", SequenceNumber: 6, ItemID: "c_1"},
			})

			expectType := func(id string, want events.ItemType) {
				item, found := tracker.Get(id)
				Expect(found).To(BeTrue())
				Expect(item.Type).To(Equal(want))
			}
			expectType("m_1", events.ItemMessage)
			expectType("r_1", events.ItemReasoning)
			expectType("w_1", events.ItemWebSearch)
			expectType("l_1", events.ItemToolList)
			expectType("a_1", events.ItemApprovalRequest)
			expectType("c_1", events.ItemToolCall)
		})
	})

	Describe("snapshot overlay", func() {
		It("should fill tool call fields from the embedded snapshot", func() {
			tracker.Process(events.RawEvent{
				Type:           "mcp_call.added",
				SequenceNumber: 1,
				ItemID:         "call_1",
				Item:           &events.ItemSnapshot{ID: "call_1", Name: "get_weather", Arguments: `{"city":"Oslo"}`, ServerLabel: "weather"},
			})
			tracker.Process(events.RawEvent{
				Type:           "mcp_call.done",
				SequenceNumber: 2,
				ItemID:         "call_1",
				Item:           &events.ItemSnapshot{ID: "call_1", Output: "4 degrees"},
			})

			item, _ := tracker.Get("call_1")
			Expect(item.ToolCall.Name).To(Equal("get_weather"))
			Expect(item.ToolCall.Arguments).To(Equal(`{"city":"Oslo"}`))
			Expect(item.ToolCall.ServerLabel).To(Equal("weather"))
			Expect(item.ToolCall.Output).To(Equal("4 degrees"))
			Expect(item.Status).To(Equal(conversation.StatusCompleted))
		})

		It("should fill the tool list from the snapshot", func() {
			tracker.Process(events.RawEvent{
				Type:           "mcp_list_tools.done",
				SequenceNumber: 1,
				ItemID:         "list_1",
				Item:           &events.ItemSnapshot{ID: "list_1", ServerLabel: "weather", Tools: []string{"get_weather", "get_forecast"}},
			})

			item, _ := tracker.Get("list_1")
			Expect(item.ToolList.ServerLabel).To(Equal("weather"))
			Expect(item.ToolList.Tools).To(Equal([]string{"get_weather", "get_forecast"}))
		})
	})

	Describe("Reset", func() {
		It("should drop items, dedupe state and buffers", func() {
			tracker.Process(messageAdded(1, "item_1", startTime))
			tracker.Process(textDelta(2, "item_1", "Hel"))

			tracker.Reset()

			Expect(tracker.Len()).To(Equal(0))
			Expect(tracker.Stats().ProcessedEvents).To(Equal(0))
			Expect(tracker.Stats().BufferedFragments).To(Equal(0))

			// Previously seen events process again after a reset
			Expect(tracker.Process(messageAdded(1, "item_1", startTime))).To(BeTrue())
		})
	})

	Describe("Stats", func() {
		It("should count in-flight and terminal items", func() {
			tracker.Process(messageAdded(1, "item_1", startTime))
			tracker.Process(textDelta(2, "item_1", "Hi"))
			tracker.Process(messageAdded(3, "item_2", startTime))
			tracker.Process(messageDone(4, "item_2", "Done", endTime))

			stats := tracker.Stats()
			Expect(stats.Items).To(Equal(2))
			Expect(stats.InFlight).To(Equal(1))
			Expect(stats.Terminal).To(Equal(1))
			Expect(stats.ProcessedEvents).To(Equal(4))
		})
	})
})

const (
	startTime = "2026-03-14T09:30:00Z"
	endTime   = "2026-03-14T09:30:07Z"
)

func messageAdded(seq int64, id, ts string) events.RawEvent {
	return events.RawEvent{
		Type:           "response.output_item.added",
		SequenceNumber: seq,
		ItemID:         id,
		Timestamp:      ts,
		Item:           &events.ItemSnapshot{ID: id, Role: "assistant"},
	}
}

func textDelta(seq int64, id, delta string) events.RawEvent {
	return events.RawEvent{
		Type:           "response.output_text.delta",
		SequenceNumber: seq,
		ItemID:         id,
		Delta:          delta,
	}
}

func messageDone(seq int64, id, text, ts string) events.RawEvent {
	return events.RawEvent{
		Type:           "response.output_item.done",
		SequenceNumber: seq,
		ItemID:         id,
		Timestamp:      ts,
		Text:           text,
	}
}

func reasoningAdded(seq int64, id, ts string) events.RawEvent {
	return events.RawEvent{
		Type:           "response.reasoning.added",
		SequenceNumber: seq,
		ItemID:         id,
		Timestamp:      ts,
	}
}

func summaryDelta(seq int64, id string, idx int, delta string) events.RawEvent {
	return events.RawEvent{
		Type:           "response.reasoning_summary_text.delta",
		SequenceNumber: seq,
		ItemID:         id,
		SummaryIndex:   summaryIdx(idx),
		Delta:          delta,
	}
}

func summaryIdx(i int) *int {
	return &i
}
