package testutil

import (
	"fmt"

	"github.com/killallgit/loom/pkg/conversation"
	"github.com/killallgit/loom/pkg/events"
	"github.com/stretchr/testify/mock"
)

// DurableProvider is the backend-side contract for fetching a session's
// durable or persisted event snapshot.
type DurableProvider interface {
	Snapshot(sessionID string) (events.Snapshot, error)
}

// LiveFeed is the transport-side contract for the buffered live events of
// a session, ordered by delivery.
type LiveFeed interface {
	Events(sessionID string) []events.RawEvent
}

// MockDurableProvider is a testify mock of DurableProvider
type MockDurableProvider struct {
	mock.Mock
}

func (m *MockDurableProvider) Snapshot(sessionID string) (events.Snapshot, error) {
	args := m.Called(sessionID)
	return args.Get(0).(events.Snapshot), args.Error(1)
}

// MockLiveFeed is a testify mock of LiveFeed
type MockLiveFeed struct {
	mock.Mock
}

func (m *MockLiveFeed) Events(sessionID string) []events.RawEvent {
	args := m.Called(sessionID)
	if evs, ok := args.Get(0).([]events.RawEvent); ok {
		return evs
	}
	return nil
}

// FakeLiveFeed serves scripted events per session without expectations,
// for tests that only need canned data.
type FakeLiveFeed struct {
	Sessions map[string][]events.RawEvent
}

// NewFakeLiveFeed creates a feed serving the given events for one session
func NewFakeLiveFeed(sessionID string, evs []events.RawEvent) *FakeLiveFeed {
	return &FakeLiveFeed{Sessions: map[string][]events.RawEvent{sessionID: evs}}
}

func (f *FakeLiveFeed) Events(sessionID string) []events.RawEvent {
	return f.Sessions[sessionID]
}

// Feed pulls both sources for a session and pushes them into the store,
// the way the dashboard glue does on view load. Either provider may be
// nil when that source is absent.
func Feed(store *conversation.Store, durable DurableProvider, live LiveFeed, sessionID string) error {
	if durable != nil {
		snap, err := durable.Snapshot(sessionID)
		if err != nil {
			return fmt.Errorf("failed to fetch durable snapshot: %w", err)
		}
		if len(snap.Events) > 0 {
			store.SetDurableEvents(snap.Events)
		}
	}
	if live != nil {
		if evs := live.Events(sessionID); len(evs) > 0 {
			store.SetLiveEvents(evs)
		}
	}
	return nil
}
