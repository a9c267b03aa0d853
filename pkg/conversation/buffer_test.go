package conversation_test

import (
	"github.com/killallgit/loom/pkg/conversation"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("DeltaBuffer", func() {
	var buffer *conversation.DeltaBuffer

	BeforeEach(func() {
		buffer = conversation.NewDeltaBuffer()
	})

	Describe("Reconstruct", func() {
		It("should concatenate fragments in sequence order regardless of arrival order", func() {
			buffer.Put("item_1", 2, "lo")
			buffer.Put("item_1", 0, "he")
			buffer.Put("item_1", 1, "l")

			Expect(buffer.Reconstruct("item_1")).To(Equal("hello"))
		})

		It("should join fragments with no separator", func() {
			buffer.Put("item_1", 10, "wor")
			buffer.Put("item_1", 11, "ld")

			Expect(buffer.Reconstruct("item_1")).To(Equal("world"))
		})

		It("should return empty string for an unknown key", func() {
			Expect(buffer.Reconstruct("missing")).To(Equal(""))
		})

		It("should keep the last fragment when a sequence number is redelivered", func() {
			buffer.Put("item_1", 0, "he")
			buffer.Put("item_1", 1, "llo")
			buffer.Put("item_1", 1, "llo")

			Expect(buffer.Reconstruct("item_1")).To(Equal("hello"))
		})
	})

	Describe("key isolation", func() {
		It("should keep fragments of different keys apart", func() {
			buffer.Put("item_1", 0, "one")
			buffer.Put("item_2", 0, "two")
			buffer.Put("item_1#0", 0, "part")

			Expect(buffer.Reconstruct("item_1")).To(Equal("one"))
			Expect(buffer.Reconstruct("item_2")).To(Equal("two"))
			Expect(buffer.Reconstruct("item_1#0")).To(Equal("part"))
		})
	})

	Describe("Clear", func() {
		It("should drop only the named key", func() {
			buffer.Put("item_1", 0, "gone")
			buffer.Put("item_2", 0, "kept")

			buffer.Clear("item_1")

			Expect(buffer.Reconstruct("item_1")).To(Equal(""))
			Expect(buffer.Reconstruct("item_2")).To(Equal("kept"))
			Expect(buffer.Len("item_1")).To(Equal(0))
		})
	})

	Describe("Size", func() {
		It("should count fragments across all keys", func() {
			Expect(buffer.Size()).To(Equal(0))

			buffer.Put("item_1", 0, "a")
			buffer.Put("item_1", 1, "b")
			buffer.Put("item_2", 0, "c")

			Expect(buffer.Size()).To(Equal(3))
			Expect(buffer.Len("item_1")).To(Equal(2))
		})
	})

	Describe("Reset", func() {
		It("should drop everything", func() {
			buffer.Put("item_1", 0, "a")
			buffer.Put("item_2", 0, "b")

			buffer.Reset()

			Expect(buffer.Size()).To(Equal(0))
			Expect(buffer.Reconstruct("item_1")).To(Equal(""))
		})
	})
})
