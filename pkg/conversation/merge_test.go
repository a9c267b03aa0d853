package conversation_test

import (
	"github.com/killallgit/loom/pkg/conversation"
	"github.com/killallgit/loom/pkg/events"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("MergeItems", func() {
	var tracker *conversation.Tracker

	BeforeEach(func() {
		tracker = conversation.NewTracker()
	})

	Context("with no live activity", func() {
		It("should return the durable snapshot unchanged", func() {
			durable := []conversation.ConversationItem{
				completedMessage("item_1", "First"),
				completedMessage("item_2", "Second"),
			}

			merged := conversation.MergeItems(durable, tracker)

			Expect(conversation.ItemsEqual(merged, durable)).To(BeTrue())
		})

		It("should return copies, not the durable backing array", func() {
			durable := []conversation.ConversationItem{completedMessage("item_1", "First")}

			merged := conversation.MergeItems(durable, tracker)
			merged[0].Message.Text = "mutated"

			Expect(durable[0].Message.Text).To(Equal("First"))
		})
	})

	Context("with overlapping items", func() {
		It("should prefer the overlay's non-empty content", func() {
			durable := []conversation.ConversationItem{completedMessage("item_1", "")}
			tracker.Apply([]events.RawEvent{
				messageAdded(1, "item_1", startTime),
				textDelta(2, "item_1", "Streamed text"),
			})

			merged := conversation.MergeItems(durable, tracker)

			Expect(merged).To(HaveLen(1))
			Expect(merged[0].Message.Text).To(Equal("Streamed text"))
		})

		It("should keep durable content the overlay does not carry", func() {
			durable := []conversation.ConversationItem{completedMessage("item_1", "Persisted body")}
			tracker.Process(messageAdded(1, "item_1", startTime))

			merged := conversation.MergeItems(durable, tracker)

			Expect(merged[0].Message.Text).To(Equal("Persisted body"))
			Expect(merged[0].Message.Role).To(Equal(conversation.RoleAssistant))
		})

		It("should keep durable reasoning when the overlay slots never filled", func() {
			persisted := conversation.NewReasoningItem("r_1")
			persisted.Reasoning.Summary = []string{"Persisted reasoning."}
			persisted.Status = conversation.StatusCompleted
			durable := []conversation.ConversationItem{persisted}

			// The done outran every summary delta, so the slot grew empty
			tracker.Apply([]events.RawEvent{
				reasoningAdded(1, "r_1", startTime),
				{Type: "response.reasoning_summary_part.done", SequenceNumber: 2, ItemID: "r_1", SummaryIndex: summaryIdx(0)},
			})

			merged := conversation.MergeItems(durable, tracker)

			Expect(merged[0].Reasoning.Summary).To(Equal([]string{"Persisted reasoning."}))
		})

		It("should replace durable reasoning when the overlay carries parts", func() {
			persisted := conversation.NewReasoningItem("r_1")
			persisted.Reasoning.Summary = []string{"Persisted reasoning."}
			persisted.Status = conversation.StatusCompleted
			durable := []conversation.ConversationItem{persisted}

			tracker.Apply([]events.RawEvent{
				reasoningAdded(1, "r_1", startTime),
				summaryDelta(2, "r_1", 0, "Live reasoning."),
			})

			merged := conversation.MergeItems(durable, tracker)

			Expect(merged[0].Reasoning.Summary).To(Equal([]string{"Live reasoning."}))
		})

		It("should prefer the overlay's timing fields", func() {
			durable := []conversation.ConversationItem{completedMessage("item_1", "Body")}
			tracker.Apply([]events.RawEvent{
				messageAdded(1, "item_1", startTime),
				messageDone(2, "item_1", "Body", endTime),
			})

			merged := conversation.MergeItems(durable, tracker)

			Expect(merged[0].StartedAt).To(Equal(startTime))
			Expect(merged[0].EndedAt).To(Equal(endTime))
			Expect(merged[0].DurationSeconds).ToNot(BeNil())
			Expect(*merged[0].DurationSeconds).To(Equal(int64(7)))
		})

		It("should keep an item finished once either source says it finished", func() {
			// Durable already knows the item completed; a stale overlay
			// still mid-stream must not flip it back.
			durable := []conversation.ConversationItem{completedMessage("item_1", "Final")}
			tracker.Apply([]events.RawEvent{
				messageAdded(1, "item_1", startTime),
				textDelta(2, "item_1", "Fin"),
			})

			merged := conversation.MergeItems(durable, tracker)
			Expect(merged[0].IsStreaming).To(BeFalse())
		})

		It("should keep streaming only while both sources consider it live", func() {
			streaming := completedMessage("item_1", "")
			streaming.IsStreaming = true
			streaming.Status = conversation.StatusInProgress
			durable := []conversation.ConversationItem{streaming}
			tracker.Apply([]events.RawEvent{
				messageAdded(1, "item_1", startTime),
				textDelta(2, "item_1", "partial"),
			})

			merged := conversation.MergeItems(durable, tracker)
			Expect(merged[0].IsStreaming).To(BeTrue())

			tracker.Process(messageDone(3, "item_1", "", endTime))
			merged = conversation.MergeItems(durable, tracker)
			Expect(merged[0].IsStreaming).To(BeFalse())
		})

		It("should let an overlay failure override the durable status", func() {
			durable := []conversation.ConversationItem{completedMessage("item_1", "Body")}
			tracker.Process(events.RawEvent{
				Type:           "response.output_item.failed",
				SequenceNumber: 1,
				ItemID:         "item_1",
				Error:          &events.ErrorDetail{Message: "stream aborted"},
			})

			merged := conversation.MergeItems(durable, tracker)

			Expect(merged[0].Status).To(Equal(conversation.StatusFailed))
			Expect(merged[0].Error).ToNot(BeNil())
			Expect(merged[0].Error.Message).To(Equal("stream aborted"))
		})

		It("should keep a durable status patch the overlay does not contradict", func() {
			patched := completedMessage("item_1", "Body")
			patched.Status = conversation.StatusCompleted
			durable := []conversation.ConversationItem{patched}
			tracker.Apply([]events.RawEvent{
				messageAdded(1, "item_1", startTime),
				textDelta(2, "item_1", "Body"),
			})

			merged := conversation.MergeItems(durable, tracker)
			Expect(merged[0].Status).To(Equal(conversation.StatusCompleted))
		})
	})

	Context("with tracker-only items", func() {
		It("should append them after the durable items in first-seen order", func() {
			durable := []conversation.ConversationItem{
				completedMessage("item_1", "First"),
				completedMessage("item_2", "Second"),
			}
			tracker.Apply([]events.RawEvent{
				messageAdded(1, "item_3", startTime),
				reasoningAdded(2, "r_1", startTime),
			})

			merged := conversation.MergeItems(durable, tracker)

			Expect(merged).To(HaveLen(4))
			Expect(merged[0].ID).To(Equal("item_1"))
			Expect(merged[1].ID).To(Equal("item_2"))
			Expect(merged[2].ID).To(Equal("item_3"))
			Expect(merged[3].ID).To(Equal("r_1"))
		})

		It("should preserve durable order when the tracker saw items first", func() {
			durable := []conversation.ConversationItem{
				completedMessage("item_2", "Second"),
				completedMessage("item_1", "First"),
			}
			tracker.Apply([]events.RawEvent{
				messageAdded(1, "item_1", startTime),
				messageAdded(2, "item_2", startTime),
			})

			merged := conversation.MergeItems(durable, tracker)

			Expect(merged).To(HaveLen(2))
			Expect(merged[0].ID).To(Equal("item_2"))
			Expect(merged[1].ID).To(Equal("item_1"))
		})
	})

	Context("with no durable snapshot", func() {
		It("should return only the tracker's items", func() {
			tracker.Apply([]events.RawEvent{
				messageAdded(1, "item_1", startTime),
				textDelta(2, "item_1", "Live only"),
			})

			merged := conversation.MergeItems(nil, tracker)

			Expect(merged).To(HaveLen(1))
			Expect(merged[0].Message.Text).To(Equal("Live only"))
			Expect(merged[0].IsStreaming).To(BeTrue())
		})
	})
})

var _ = Describe("ItemsFromEvents", func() {
	It("should assemble items from a recorded event slice", func() {
		items := conversation.ItemsFromEvents([]events.RawEvent{
			messageAdded(1, "item_1", startTime),
			textDelta(2, "item_1", "Hel"),
			textDelta(3, "item_1", "lo"),
			messageDone(4, "item_1", "", endTime),
		})

		Expect(items).To(HaveLen(1))
		Expect(items[0].Message.Text).To(Equal("Hello"))
		Expect(items[0].Status).To(Equal(conversation.StatusCompleted))
		Expect(items[0].IsStreaming).To(BeFalse())
	})

	It("should return an empty slice for no events", func() {
		Expect(conversation.ItemsFromEvents(nil)).To(BeEmpty())
	})
})

var _ = Describe("HistoryItems", func() {
	It("should mark every item as not streaming", func() {
		stale := completedMessage("item_1", "Old")
		stale.IsStreaming = true
		history := []conversation.ConversationItem{stale, completedMessage("item_2", "Older")}

		items := conversation.HistoryItems(history)

		Expect(items).To(HaveLen(2))
		Expect(items[0].IsStreaming).To(BeFalse())
		Expect(items[1].IsStreaming).To(BeFalse())
		Expect(items[0].Message.Text).To(Equal("Old"))
	})

	It("should not mutate the input", func() {
		stale := completedMessage("item_1", "Old")
		stale.IsStreaming = true
		history := []conversation.ConversationItem{stale}

		conversation.HistoryItems(history)

		Expect(history[0].IsStreaming).To(BeTrue())
	})
})

// completedMessage builds a durable assistant message item the way a
// persisted snapshot would deliver it.
func completedMessage(id, text string) conversation.ConversationItem {
	item := conversation.NewMessageItem(id, conversation.RoleAssistant, text)
	item.Status = conversation.StatusCompleted
	item.Timestamp = startTime
	return item
}
