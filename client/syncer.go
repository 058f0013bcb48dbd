package client

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/consogab/server/internal/models"
)

const (
	// DefaultPageSize matches the server's message page size.
	DefaultPageSize = 50

	defaultStaleAfter   = 30 * time.Second
	defaultRefreshEvery = 60 * time.Second
)

type Config struct {
	// Self is the authenticated user id; realtime rows from this sender
	// are treated as confirmations of optimistic sends.
	Self     string
	PageSize int
	// StaleAfter bounds how long the conversation list is served without
	// a refetch.
	StaleAfter time.Duration
	// RefreshEvery is the periodic conversation refetch, the safety net
	// against missed realtime events.
	RefreshEvery time.Duration
	// FailSoft, when set, serves the last cached conversation list on a
	// refetch failure instead of surfacing the error. Message reads are
	// never fail-soft.
	FailSoft bool
	// OnError receives asynchronous failures (the toast analogue).
	OnError func(error)
	Log     *zap.SugaredLogger
}

// Syncer drives the messaging cache: optimistic sends with rollback,
// realtime merge with de-duplication, pagination, and the periodic
// conversation refresh.
type Syncer struct {
	api    API
	stream Stream
	cache  *Cache
	cfg    Config

	mu      sync.Mutex
	refetch map[string]*refetchToken // per-conversation in-flight refetch
	open    map[string]bool
}

// refetchToken identifies one scheduled refetch so its cleanup can tell
// whether the registration still belongs to it or to a newer refetch.
type refetchToken struct {
	cancel context.CancelFunc
}

func NewSyncer(api API, stream Stream, cfg Config) *Syncer {
	if cfg.PageSize == 0 {
		cfg.PageSize = DefaultPageSize
	}
	if cfg.StaleAfter == 0 {
		cfg.StaleAfter = defaultStaleAfter
	}
	if cfg.RefreshEvery == 0 {
		cfg.RefreshEvery = defaultRefreshEvery
	}
	if cfg.OnError == nil {
		cfg.OnError = func(error) {}
	}
	if cfg.Log == nil {
		cfg.Log = zap.NewNop().Sugar()
	}
	return &Syncer{
		api:     api,
		stream:  stream,
		cache:   NewCache(cfg.StaleAfter),
		cfg:     cfg,
		refetch: make(map[string]*refetchToken),
		open:    make(map[string]bool),
	}
}

// Cache exposes the underlying cache for rendering.
func (s *Syncer) Cache() *Cache { return s.cache }

// Run consumes the realtime feed and drives the periodic refresh until
// ctx is cancelled.
func (s *Syncer) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RefreshEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-s.stream.Events():
			if !ok {
				return
			}
			s.handleEvent(ctx, ev)
		case <-ticker.C:
			if list, err := s.api.Conversations(ctx); err == nil {
				s.cache.SetConversations(s.cfg.Self, list)
			} else if ctx.Err() == nil {
				s.cfg.Log.Warnw("periodic conversation refresh failed", "err", err)
			}
		}
	}
}

// Conversations serves the cached list while fresh, refetching otherwise.
// A refetch failure propagates unless FailSoft is set and a cached copy
// exists.
func (s *Syncer) Conversations(ctx context.Context) ([]*models.Conversation, error) {
	cached, ok, fresh := s.cache.Conversations(s.cfg.Self)
	if ok && fresh {
		return cached, nil
	}
	list, err := s.api.Conversations(ctx)
	if err != nil {
		if s.cfg.FailSoft && ok {
			s.cfg.OnError(err)
			return cached, nil
		}
		return nil, err
	}
	s.cache.SetConversations(s.cfg.Self, list)
	return list, nil
}

// Open subscribes the conversation's realtime channel and loads the first
// page. Opening a second conversation does not close the first; callers
// close scopes explicitly.
func (s *Syncer) Open(ctx context.Context, conversationID string) error {
	if err := s.stream.Subscribe(conversationID); err != nil {
		return err
	}
	s.mu.Lock()
	s.open[conversationID] = true
	s.mu.Unlock()

	page, err := s.api.Messages(ctx, conversationID, 0, s.cfg.PageSize)
	if err != nil {
		return err
	}
	s.cache.ResetPages(conversationID, page, len(page) < s.cfg.PageSize)
	return nil
}

// Close tears the conversation scope down: unsubscribes the channel and
// cancels any in-flight refetch. Missed events while closed are not
// buffered anywhere.
func (s *Syncer) Close(conversationID string) {
	s.mu.Lock()
	delete(s.open, conversationID)
	if tok, ok := s.refetch[conversationID]; ok {
		tok.cancel()
		delete(s.refetch, conversationID)
	}
	s.mu.Unlock()
	if err := s.stream.Unsubscribe(conversationID); err != nil {
		s.cfg.Log.Warnw("unsubscribe failed", "conversation", conversationID, "err", err)
	}
}

// Send runs the optimistic send protocol: cancel any racing refetch,
// prepend a provisional row, roll back on transport failure, and always
// schedule re-validation of both caches afterward.
func (s *Syncer) Send(ctx context.Context, conversationID, content string, opts ...SendOption) (*models.Message, error) {
	in := SendInput{
		ConversationID: conversationID,
		ClientID:       uuid.NewString(),
		Content:        content,
		Type:           models.MessageText,
	}
	for _, opt := range opts {
		opt(&in)
	}

	s.cancelRefetch(conversationID)

	snap := s.cache.Snapshot(conversationID)
	provisional := &models.Message{
		ID:             "temp-" + in.ClientID,
		ConversationID: conversationID,
		SenderID:       s.cfg.Self,
		ClientID:       in.ClientID,
		Content:        in.Content,
		Type:           in.Type,
		Status:         models.StatusSending,
		CreatedAt:      time.Now().UTC(),
	}
	s.cache.PrependLatest(conversationID, provisional)

	sent, err := s.api.Send(ctx, in)
	if err != nil {
		s.cache.Restore(conversationID, snap)
		s.cfg.OnError(err)
		// revalidate even on failure: the send may have committed
		// server-side with only the response lost
		s.cache.InvalidateConversations(s.cfg.Self)
		s.scheduleRefetch(conversationID)
		return nil, err
	}

	// authoritative state wins eventually: revalidate both caches
	s.cache.InvalidateConversations(s.cfg.Self)
	s.scheduleRefetch(conversationID)
	return sent, nil
}

type SendOption func(*SendInput)

func WithType(t models.MessageType) SendOption {
	return func(in *SendInput) { in.Type = t }
}

func WithAttachment(url, name string) SendOption {
	return func(in *SendInput) {
		in.AttachmentURL = url
		in.AttachmentName = name
	}
}

func WithReplyTo(id string) SendOption {
	return func(in *SendInput) { in.ReplyTo = id }
}

// LoadOlder fetches the next page and appends it to the pagination state.
// It reports whether more pages may remain; a short page ends pagination.
func (s *Syncer) LoadOlder(ctx context.Context, conversationID string) (bool, error) {
	if s.cache.Exhausted(conversationID) {
		return false, nil
	}
	page := s.cache.PageCount(conversationID)
	msgs, err := s.api.Messages(ctx, conversationID, page, s.cfg.PageSize)
	if err != nil {
		return true, err
	}
	exhausted := len(msgs) < s.cfg.PageSize
	s.cache.AppendPage(conversationID, msgs, exhausted)
	return !exhausted, nil
}

// MarkRead is best-effort: a failure is reported asynchronously, never
// returned.
func (s *Syncer) MarkRead(ctx context.Context, conversationID string) {
	if err := s.api.MarkRead(ctx, conversationID); err != nil {
		s.cfg.Log.Warnw("mark read failed", "conversation", conversationID, "err", err)
		s.cfg.OnError(err)
	}
}

func (s *Syncer) handleEvent(ctx context.Context, ev Event) {
	switch ev.Type {
	case eventMessageInserted:
		if ev.Message == nil {
			return
		}
		s.mergeInsert(ctx, ev.ConversationID, ev.Message)
	case eventParticipantChanged:
		// a brand-new conversation is discovered through this feed
		s.cache.InvalidateConversations(s.cfg.Self)
	}
}

// mergeInsert reconciles a realtime row against local state. A row from
// the current user confirms an optimistic send and replaces the
// provisional entry in place; any other sender's row is prepended once,
// with its profile resolved in a single lookup.
func (s *Syncer) mergeInsert(ctx context.Context, conversationID string, m *models.Message) {
	defer s.cache.InvalidateConversations(s.cfg.Self)

	if m.SenderID == s.cfg.Self {
		if s.cache.ReplaceByClientID(conversationID, m.ClientID, m) {
			return
		}
		// send confirmed from another device or tab
		s.cache.PrependIfAbsent(conversationID, m)
		return
	}

	if p, err := s.api.Profile(ctx, m.SenderID); err == nil {
		m.Sender = p
	} else {
		s.cfg.Log.Warnw("sender profile resolve failed", "sender", m.SenderID, "err", err)
	}
	s.cache.PrependIfAbsent(conversationID, m)
}

func (s *Syncer) cancelRefetch(conversationID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if tok, ok := s.refetch[conversationID]; ok {
		tok.cancel()
		delete(s.refetch, conversationID)
	}
}

// scheduleRefetch re-validates the newest page in the background. The
// refetch is cancellable so a subsequent optimistic send cannot race it.
func (s *Syncer) scheduleRefetch(conversationID string) {
	ctx, cancel := context.WithCancel(context.Background())
	tok := &refetchToken{cancel: cancel}
	s.mu.Lock()
	if old, ok := s.refetch[conversationID]; ok {
		old.cancel()
	}
	s.refetch[conversationID] = tok
	s.mu.Unlock()

	go func() {
		defer func() {
			s.mu.Lock()
			// deregister only this refetch; a newer one may own the
			// entry by now and must stay cancellable
			if s.refetch[conversationID] == tok {
				delete(s.refetch, conversationID)
			}
			s.mu.Unlock()
			cancel()
		}()
		page, err := s.api.Messages(ctx, conversationID, 0, s.cfg.PageSize)
		if err != nil || ctx.Err() != nil {
			return
		}
		s.cache.ReplaceFirstPage(conversationID, page)
	}()
}
