package conversation

import (
	"sync"

	"github.com/google/uuid"
	"github.com/killallgit/loom/pkg/events"
	"github.com/killallgit/loom/pkg/logger"
)

// Store owns the conversation state of one session: the durable snapshot,
// the live event slice, the persisted history fallback and the tracker
// that overlays live progress onto durable items. Every input change
// recomputes the merged conversation; subscribers are notified only when
// the observable output differs from the previous emission. Each view
// gets its own Store so concurrent sessions never share state.
type Store struct {
	mu          sync.RWMutex
	session     string
	tracker     *Tracker
	durable     []ConversationItem
	live        []events.RawEvent
	history     []ConversationItem
	merged      []ConversationItem
	subscribers map[string]func([]ConversationItem)
	closed      bool
	log         *logger.ComponentLogger
}

// NewStore creates a store for one session
func NewStore(sessionID string) *Store {
	return &Store{
		session:     sessionID,
		tracker:     NewTracker(),
		merged:      []ConversationItem{},
		subscribers: make(map[string]func([]ConversationItem)),
		log:         logger.WithComponent("conversation_store"),
	}
}

// Session returns the current session identity
func (s *Store) Session() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session
}

// SetSession switches the session identity. All tracker state, sources
// and the merged output are cleared synchronously before any event of the
// new session can be processed, preventing cross-session bleed.
func (s *Store) SetSession(sessionID string) {
	s.mu.Lock()
	if s.closed || sessionID == s.session {
		s.mu.Unlock()
		return
	}
	s.log.Debug("Session changed, clearing state", "old_session", s.session, "new_session", sessionID)
	s.session = sessionID
	s.tracker.Reset()
	s.durable = nil
	s.live = nil
	s.history = nil
	subs, snapshot := s.refreshLocked()
	s.mu.Unlock()
	s.notify(subs, snapshot)
}

// SetDurableItems replaces the durable snapshot with pre-assembled items
func (s *Store) SetDurableItems(items []ConversationItem) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.durable = CloneItems(items)
	subs, snapshot := s.refreshLocked()
	s.mu.Unlock()
	s.notify(subs, snapshot)
}

// SetDurableEvents replaces the durable snapshot from its raw event form,
// assembling items through a fresh tracker pass.
func (s *Store) SetDurableEvents(evs []events.RawEvent) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.durable = ItemsFromEvents(evs)
	subs, snapshot := s.refreshLocked()
	s.mu.Unlock()
	s.notify(subs, snapshot)
}

// SetLiveEvents replaces the live event slice
func (s *Store) SetLiveEvents(evs []events.RawEvent) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.live = append([]events.RawEvent(nil), evs...)
	subs, snapshot := s.refreshLocked()
	s.mu.Unlock()
	s.notify(subs, snapshot)
}

// AppendLiveEvents adds newly delivered live events
func (s *Store) AppendLiveEvents(evs ...events.RawEvent) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.live = append(s.live, evs...)
	subs, snapshot := s.refreshLocked()
	s.mu.Unlock()
	s.notify(subs, snapshot)
}

// SetHistorySnapshot supplies the persisted snapshot used when neither a
// durable snapshot nor live events exist (completed session archive).
func (s *Store) SetHistorySnapshot(items []ConversationItem) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.history = CloneItems(items)
	subs, snapshot := s.refreshLocked()
	s.mu.Unlock()
	s.notify(subs, snapshot)
}

// Merge replaces both sources at once and returns the merged conversation.
// Feeding the same pair twice yields identical output both times.
func (s *Store) Merge(durable []ConversationItem, live []events.RawEvent) []ConversationItem {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.durable = CloneItems(durable)
	s.live = append([]events.RawEvent(nil), live...)
	subs, snapshot := s.refreshLocked()
	merged := CloneItems(s.merged)
	s.mu.Unlock()
	s.notify(subs, snapshot)
	return merged
}

// UpdateItemStatus patches one durable item's status outside the normal
// event flow (a human approval decision, for example) and republishes.
func (s *Store) UpdateItemStatus(itemID string, status ItemStatus) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	patched := false
	for i := range s.durable {
		if s.durable[i].ID == itemID {
			s.durable[i].Status = status
			patched = true
			break
		}
	}
	if !patched {
		s.log.Debug("Status patch for unknown durable item", "item_id", itemID, "status", status)
	}
	subs, snapshot := s.refreshLocked()
	s.mu.Unlock()
	s.notify(subs, snapshot)
}

// Conversation returns a copy of the current merged conversation
func (s *Store) Conversation() []ConversationItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return CloneItems(s.merged)
}

// Subscribe registers a callback for merged conversation snapshots. The
// latest computed value is replayed immediately; afterwards the callback
// fires only when the observable output changes. The returned function
// removes the subscription.
func (s *Store) Subscribe(fn func([]ConversationItem)) func() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return func() {}
	}
	token := uuid.New().String()
	s.subscribers[token] = fn
	replay := CloneItems(s.merged)
	s.mu.Unlock()

	fn(replay)

	return func() {
		s.mu.Lock()
		delete(s.subscribers, token)
		s.mu.Unlock()
	}
}

// StoreStats provides diagnostics about store and tracker state
type StoreStats struct {
	Session      string
	DurableItems int
	LiveEvents   int
	HistoryItems int
	MergedItems  int
	Subscribers  int
	Tracker      TrackerStats
}

// Stats returns current store diagnostics
func (s *Store) Stats() StoreStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return StoreStats{
		Session:      s.session,
		DurableItems: len(s.durable),
		LiveEvents:   len(s.live),
		HistoryItems: len(s.history),
		MergedItems:  len(s.merged),
		Subscribers:  len(s.subscribers),
		Tracker:      s.tracker.Stats(),
	}
}

// Close tears the store down; subsequent mutations and subscriptions are
// no-ops.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.subscribers = make(map[string]func([]ConversationItem))
}

// refreshLocked recomputes the merged conversation. When the result
// differs from the previous emission it is stored and the current
// subscribers plus the new snapshot are returned for notification outside
// the lock. Bookkeeping-only changes return nothing.
func (s *Store) refreshLocked() ([]func([]ConversationItem), []ConversationItem) {
	next := s.computeLocked()
	if ItemsEqual(s.merged, next) {
		return nil, nil
	}
	s.merged = next

	subs := make([]func([]ConversationItem), 0, len(s.subscribers))
	for _, fn := range s.subscribers {
		subs = append(subs, fn)
	}
	return subs, next
}

// computeLocked applies the fallback policy: durable plus live overlay
// when either exists, otherwise the persisted history marked
// non-streaming. History is only consulted when there is no active live
// state at all.
func (s *Store) computeLocked() []ConversationItem {
	if len(s.durable) == 0 && len(s.live) == 0 && s.tracker.Len() == 0 && len(s.history) > 0 {
		return HistoryItems(s.history)
	}
	s.tracker.Apply(s.live)
	return MergeItems(s.durable, s.tracker)
}

// notify delivers a snapshot copy to each subscriber, outside the lock
func (s *Store) notify(subs []func([]ConversationItem), snapshot []ConversationItem) {
	for _, fn := range subs {
		fn(CloneItems(snapshot))
	}
}
