package client

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/consogab/server/internal/models"
)

type fakeAPI struct {
	mu            sync.Mutex
	conversations func() ([]*models.Conversation, error)
	messages      func(conv string, page, limit int) ([]*models.Message, error)
	send          func(in SendInput) (*models.Message, error)
	markRead      func(conv string) error
	profile       func(id string) (*models.Profile, error)

	messageCalls int
	profileCalls int
}

func (f *fakeAPI) Conversations(ctx context.Context) ([]*models.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.conversations == nil {
		return nil, nil
	}
	return f.conversations()
}

func (f *fakeAPI) Messages(ctx context.Context, conv string, page, limit int) ([]*models.Message, error) {
	f.mu.Lock()
	f.messageCalls++
	fn := f.messages
	f.mu.Unlock()
	// the stub runs outside the lock so a test can park a refetch in it
	// without stalling the other endpoints
	if fn == nil {
		return nil, nil
	}
	return fn(conv, page, limit)
}

func (f *fakeAPI) Send(ctx context.Context, in SendInput) (*models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.send == nil {
		return nil, errors.New("no send stub")
	}
	return f.send(in)
}

func (f *fakeAPI) MarkRead(ctx context.Context, conv string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.markRead == nil {
		return nil
	}
	return f.markRead(conv)
}

func (f *fakeAPI) Profile(ctx context.Context, id string) (*models.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.profileCalls++
	if f.profile == nil {
		return &models.Profile{ID: id, DisplayName: id}, nil
	}
	return f.profile(id)
}

func (f *fakeAPI) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.messageCalls
}

type fakeStream struct {
	mu     sync.Mutex
	events chan Event
	subs   map[string]bool
}

func newFakeStream() *fakeStream {
	return &fakeStream{events: make(chan Event, 16), subs: map[string]bool{}}
}

func (f *fakeStream) Events() <-chan Event { return f.events }

func (f *fakeStream) Subscribe(conv string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subs[conv] = true
	return nil
}

func (f *fakeStream) Unsubscribe(conv string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.subs, conv)
	return nil
}

func (f *fakeStream) Close() error { return nil }

func (f *fakeStream) subscribed(conv string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.subs[conv]
}

func newTestSyncer(t *testing.T, api *fakeAPI, opts ...func(*Config)) (*Syncer, *fakeStream) {
	t.Helper()
	stream := newFakeStream()
	cfg := Config{Self: "me", PageSize: 50, StaleAfter: time.Minute}
	for _, o := range opts {
		o(&cfg)
	}
	return NewSyncer(api, stream, cfg), stream
}

func TestSendRollbackOnFailure(t *testing.T) {
	history := []*models.Message{msg("m2", "other", "deux"), msg("m1", "me", "un")}
	var toasts []error
	api := &fakeAPI{
		messages: func(conv string, page, limit int) ([]*models.Message, error) {
			return history, nil
		},
		send: func(in SendInput) (*models.Message, error) {
			return nil, errors.New("insert failed")
		},
	}
	s, _ := newTestSyncer(t, api, func(c *Config) {
		c.OnError = func(err error) { toasts = append(toasts, err) }
	})

	require.NoError(t, s.Open(context.Background(), "conv-1"))
	before := s.Cache().Messages("conv-1")

	_, err := s.Send(context.Background(), "conv-1", "ça ne passera pas")
	require.Error(t, err)

	assert.Equal(t, before, s.Cache().Messages("conv-1"),
		"cache after rollback must match the pre-mutation state")
	require.Len(t, toasts, 1)

	_, _, fresh := s.Cache().Conversations("me")
	assert.False(t, fresh)

	// a failed send still revalidates: the insert may have committed
	// server-side with only the response lost
	assert.Eventually(t, func() bool { return api.calls() >= 2 },
		time.Second, 5*time.Millisecond,
		"first-page refetch must run after a failed send")
}

func TestSendSelfMessageReconciliation(t *testing.T) {
	var sentInput SendInput
	var pageMu sync.Mutex
	pageCalls := 0
	api := &fakeAPI{}
	api.messages = func(conv string, page, limit int) ([]*models.Message, error) {
		pageMu.Lock()
		pageCalls++
		n := pageCalls
		pageMu.Unlock()
		if n > 1 {
			// keep the background refetch out of the assertion window
			return nil, errors.New("unavailable")
		}
		return []*models.Message{msg("m1", "other", "bienvenue")}, nil
	}
	api.send = func(in SendInput) (*models.Message, error) {
		sentInput = in
		out := msg("srv-42", "me", in.Content)
		out.ClientID = in.ClientID
		return out, nil
	}
	s, _ := newTestSyncer(t, api)

	require.NoError(t, s.Open(context.Background(), "conv-1"))
	sent, err := s.Send(context.Background(), "conv-1", "Bonjour")
	require.NoError(t, err)
	assert.Equal(t, "srv-42", sent.ID)
	require.NotEmpty(t, sentInput.ClientID)

	// provisional entry rendered immediately, before any confirmation
	all := s.Cache().Messages("conv-1")
	require.Len(t, all, 2)
	assert.True(t, strings.HasPrefix(all[0].ID, "temp-"))
	assert.Equal(t, models.StatusSending, all[0].Status)

	// realtime confirmation from our own send
	confirmed := msg("srv-42", "me", "Bonjour")
	confirmed.ClientID = sentInput.ClientID
	s.handleEvent(context.Background(), Event{
		Type:           eventMessageInserted,
		ConversationID: "conv-1",
		Message:        confirmed,
	})

	all = s.Cache().Messages("conv-1")
	require.Len(t, all, 2, "replacement, not duplication")
	assert.Equal(t, "srv-42", all[0].ID)
	assert.Equal(t, models.StatusSent, all[0].Status)
	for _, m := range all {
		assert.False(t, strings.HasPrefix(m.ID, "temp-"))
	}
}

func TestFinishedRefetchDoesNotDeregisterNewerOne(t *testing.T) {
	ctx := context.Background()
	inFlight := make(chan struct{}, 3)
	releases := [3]chan struct{}{
		make(chan struct{}), make(chan struct{}), make(chan struct{}),
	}
	var pageMu sync.Mutex
	pageCalls := 0
	api := &fakeAPI{}
	api.messages = func(conv string, page, limit int) ([]*models.Message, error) {
		pageMu.Lock()
		pageCalls++
		n := pageCalls
		pageMu.Unlock()
		if n == 1 { // initial page load
			return []*models.Message{msg("m1", "other", "un")}, nil
		}
		inFlight <- struct{}{}
		<-releases[n-2]
		return []*models.Message{msg("m1", "other", "un")}, nil
	}
	api.send = func(in SendInput) (*models.Message, error) {
		out := msg("srv-"+in.ClientID, "me", in.Content)
		out.ClientID = in.ClientID
		return out, nil
	}
	s, _ := newTestSyncer(t, api)
	require.NoError(t, s.Open(ctx, "conv-1"))

	_, err := s.Send(ctx, "conv-1", "un") // registers the first refetch
	require.NoError(t, err)
	<-inFlight

	_, err = s.Send(ctx, "conv-1", "deux") // cancels it, registers a second
	require.NoError(t, err)
	<-inFlight

	close(releases[0]) // the cancelled first refetch finishes
	time.Sleep(20 * time.Millisecond)

	s.mu.Lock()
	_, registered := s.refetch["conv-1"]
	s.mu.Unlock()
	require.True(t, registered,
		"a finished stale refetch must leave the live one registered")

	_, err = s.Send(ctx, "conv-1", "trois") // must find and cancel the second
	require.NoError(t, err)
	<-inFlight

	close(releases[1]) // the second refetch returns, already cancelled
	time.Sleep(20 * time.Millisecond)

	all := s.Cache().Messages("conv-1")
	require.NotEmpty(t, all)
	assert.True(t, strings.HasPrefix(all[0].ID, "temp-"),
		"an in-flight refetch must never wipe a live provisional entry")

	close(releases[2])
}

func TestMergeForeignInsert(t *testing.T) {
	api := &fakeAPI{
		messages: func(conv string, page, limit int) ([]*models.Message, error) {
			return []*models.Message{msg("m1", "me", "un")}, nil
		},
		profile: func(id string) (*models.Profile, error) {
			return &models.Profile{ID: id, DisplayName: "Awa", AvatarURL: "https://cdn/avatar.png"}, nil
		},
	}
	s, _ := newTestSyncer(t, api)
	require.NoError(t, s.Open(context.Background(), "conv-1"))

	incoming := msg("m2", "user-awa", "Bonsoir")
	s.handleEvent(context.Background(), Event{
		Type:           eventMessageInserted,
		ConversationID: "conv-1",
		Message:        incoming,
	})

	all := s.Cache().Messages("conv-1")
	require.Len(t, all, 2)
	assert.Equal(t, "m2", all[0].ID)
	require.NotNil(t, all[0].Sender)
	assert.Equal(t, "Awa", all[0].Sender.DisplayName)
	assert.Equal(t, 1, api.profileCalls)

	// redelivery of an already-cached id is a no-op
	s.handleEvent(context.Background(), Event{
		Type:           eventMessageInserted,
		ConversationID: "conv-1",
		Message:        msg("m2", "user-awa", "Bonsoir"),
	})
	assert.Len(t, s.Cache().Messages("conv-1"), 2)
}

func TestLoadOlderStopsAtShortPage(t *testing.T) {
	total := 120
	pageSize := 50
	store := make([]*models.Message, total)
	for i := range store {
		store[i] = msg(fmt.Sprintf("m-%03d", i), "other", "msg")
	}
	api := &fakeAPI{
		messages: func(conv string, page, limit int) ([]*models.Message, error) {
			start := page * limit
			if start >= total {
				return nil, nil
			}
			end := start + limit
			if end > total {
				end = total
			}
			return store[start:end], nil
		},
	}
	s, _ := newTestSyncer(t, api, func(c *Config) { c.PageSize = pageSize })

	require.NoError(t, s.Open(context.Background(), "conv-1"))

	more, err := s.LoadOlder(context.Background(), "conv-1")
	require.NoError(t, err)
	assert.True(t, more)

	more, err = s.LoadOlder(context.Background(), "conv-1")
	require.NoError(t, err)
	assert.False(t, more, "short page ends pagination")
	assert.Len(t, s.Cache().Messages("conv-1"), total)

	calls := api.calls()
	more, err = s.LoadOlder(context.Background(), "conv-1")
	require.NoError(t, err)
	assert.False(t, more)
	assert.Equal(t, calls, api.calls(), "no request once exhausted")
}

func TestParticipantChangeInvalidatesConversations(t *testing.T) {
	api := &fakeAPI{
		conversations: func() ([]*models.Conversation, error) {
			return []*models.Conversation{{ID: "conv-1"}}, nil
		},
	}
	s, _ := newTestSyncer(t, api)

	_, err := s.Conversations(context.Background())
	require.NoError(t, err)
	_, _, fresh := s.Cache().Conversations("me")
	require.True(t, fresh)

	s.handleEvent(context.Background(), Event{Type: eventParticipantChanged, UserID: "me"})

	_, _, fresh = s.Cache().Conversations("me")
	assert.False(t, fresh, "new-conversation discovery goes through invalidation")
}

func TestConversationsFailSoftPolicy(t *testing.T) {
	calls := 0
	api := &fakeAPI{
		conversations: func() ([]*models.Conversation, error) {
			calls++
			if calls > 1 {
				return nil, errors.New("listing unavailable")
			}
			return []*models.Conversation{{ID: "conv-1"}}, nil
		},
	}

	t.Run("fail soft serves the cached list", func(t *testing.T) {
		calls = 0
		var toasts []error
		s, _ := newTestSyncer(t, api, func(c *Config) {
			c.StaleAfter = time.Nanosecond
			c.FailSoft = true
			c.OnError = func(err error) { toasts = append(toasts, err) }
		})
		list, err := s.Conversations(context.Background())
		require.NoError(t, err)
		require.Len(t, list, 1)

		time.Sleep(time.Millisecond)
		list, err = s.Conversations(context.Background())
		require.NoError(t, err)
		assert.Len(t, list, 1)
		assert.Len(t, toasts, 1)
	})

	t.Run("default propagates the failure", func(t *testing.T) {
		calls = 0
		s, _ := newTestSyncer(t, api, func(c *Config) {
			c.StaleAfter = time.Nanosecond
		})
		_, err := s.Conversations(context.Background())
		require.NoError(t, err)

		time.Sleep(time.Millisecond)
		_, err = s.Conversations(context.Background())
		assert.Error(t, err, "failed is distinguishable from empty")
	})
}

func TestCloseTearsDownSubscription(t *testing.T) {
	api := &fakeAPI{
		messages: func(conv string, page, limit int) ([]*models.Message, error) {
			return nil, nil
		},
	}
	s, stream := newTestSyncer(t, api)

	require.NoError(t, s.Open(context.Background(), "conv-1"))
	assert.True(t, stream.subscribed("conv-1"))

	s.Close("conv-1")
	assert.False(t, stream.subscribed("conv-1"))
}
