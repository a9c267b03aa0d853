package conversation

import (
	"sort"
	"strings"
)

// DeltaBuffer accumulates text fragments that may arrive out of order.
// Fragments are keyed by their source-assigned sequence number; the
// reconstructed text sorts by sequence number, not arrival order. Keys
// must be cleared when the owning item reaches a terminal state so a long
// session cannot grow the buffer without bound.
type DeltaBuffer struct {
	fragments map[string]map[int64]string
}

// NewDeltaBuffer creates an empty delta buffer
func NewDeltaBuffer() *DeltaBuffer {
	return &DeltaBuffer{
		fragments: make(map[string]map[int64]string),
	}
}

// Put stores a fragment under (key, seq). A redelivered sequence number
// overwrites, which is a no-op for identical fragments.
func (b *DeltaBuffer) Put(key string, seq int64, fragment string) {
	frags, exists := b.fragments[key]
	if !exists {
		frags = make(map[int64]string)
		b.fragments[key] = frags
	}
	frags[seq] = fragment
}

// Reconstruct returns the fragments for key ordered by ascending sequence
// number, concatenated with no separator.
func (b *DeltaBuffer) Reconstruct(key string) string {
	frags, exists := b.fragments[key]
	if !exists || len(frags) == 0 {
		return ""
	}

	seqs := make([]int64, 0, len(frags))
	for seq := range frags {
		seqs = append(seqs, seq)
	}
	sort.Slice(seqs, func(i, j int) bool { return seqs[i] < seqs[j] })

	var sb strings.Builder
	for _, seq := range seqs {
		sb.WriteString(frags[seq])
	}
	return sb.String()
}

// Clear drops all fragments for key
func (b *DeltaBuffer) Clear(key string) {
	delete(b.fragments, key)
}

// Len returns the number of buffered fragments for key
func (b *DeltaBuffer) Len(key string) int {
	return len(b.fragments[key])
}

// Size returns the total number of buffered fragments across all keys
func (b *DeltaBuffer) Size() int {
	total := 0
	for _, frags := range b.fragments {
		total += len(frags)
	}
	return total
}

// Reset drops every key
func (b *DeltaBuffer) Reset() {
	b.fragments = make(map[string]map[int64]string)
}
