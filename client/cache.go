package client

import (
	"sync"
	"time"

	"github.com/consogab/server/internal/models"
)

// Cache is the client-side query cache, keyed by (kind, scope). The
// conversation list is scoped by user and goes stale after a window; the
// message pages are scoped by conversation and are only ever invalidated
// by the realtime merge or an explicit refetch.
//
// Pages run newest-first: pages[0] is the most recent page, and messages
// inside a page are newest-first too.
type Cache struct {
	mu         sync.Mutex
	staleAfter time.Duration

	convs map[string]*conversationsEntry
	msgs  map[string]*messagesEntry
}

type conversationsEntry struct {
	list      []*models.Conversation
	fetchedAt time.Time
	dirty     bool
}

type messagesEntry struct {
	pages     [][]*models.Message
	exhausted bool
}

// MessagesSnapshot is an opaque pre-mutation copy used for rollback.
type MessagesSnapshot struct {
	pages     [][]*models.Message
	exhausted bool
	existed   bool
}

func NewCache(staleAfter time.Duration) *Cache {
	return &Cache{
		staleAfter: staleAfter,
		convs:      make(map[string]*conversationsEntry),
		msgs:       make(map[string]*messagesEntry),
	}
}

// Conversations returns the cached list for the scope. ok reports a cache
// hit; fresh reports whether the hit is inside the staleness window and
// not explicitly invalidated.
func (c *Cache) Conversations(scope string) (list []*models.Conversation, ok, fresh bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, hit := c.convs[scope]
	if !hit {
		return nil, false, false
	}
	fresh = !e.dirty && time.Since(e.fetchedAt) < c.staleAfter
	return e.list, true, fresh
}

func (c *Cache) SetConversations(scope string, list []*models.Conversation) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.convs[scope] = &conversationsEntry{list: list, fetchedAt: time.Now()}
}

// InvalidateConversations marks the scope stale without dropping data; the
// next read triggers a refetch while the old list remains renderable.
func (c *Cache) InvalidateConversations(scope string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.convs[scope]; ok {
		e.dirty = true
	}
}

// ResetPages replaces the pagination state with a single first page.
func (c *Cache) ResetPages(scope string, page []*models.Message, exhausted bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs[scope] = &messagesEntry{pages: [][]*models.Message{page}, exhausted: exhausted}
}

// ReplaceFirstPage swaps the newest page, keeping older pages intact.
func (c *Cache) ReplaceFirstPage(scope string, page []*models.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.msgs[scope]
	if !ok || len(e.pages) == 0 {
		c.msgs[scope] = &messagesEntry{pages: [][]*models.Message{page}}
		return
	}
	e.pages[0] = page
}

// AppendPage adds an older page to the pagination state.
func (c *Cache) AppendPage(scope string, page []*models.Message, exhausted bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.msgs[scope]
	if !ok {
		e = &messagesEntry{}
		c.msgs[scope] = e
	}
	e.pages = append(e.pages, page)
	e.exhausted = exhausted
}

func (c *Cache) PageCount(scope string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.msgs[scope]; ok {
		return len(e.pages)
	}
	return 0
}

func (c *Cache) Exhausted(scope string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.msgs[scope]; ok {
		return e.exhausted
	}
	return false
}

// Messages flattens the cached pages newest-first.
func (c *Cache) Messages(scope string) []*models.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.msgs[scope]
	if !ok {
		return nil
	}
	var out []*models.Message
	for _, p := range e.pages {
		out = append(out, p...)
	}
	return out
}

// Snapshot copies the pagination structure so a failed optimistic
// mutation can restore the exact pre-mutation state.
func (c *Cache) Snapshot(scope string) MessagesSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.msgs[scope]
	if !ok {
		return MessagesSnapshot{}
	}
	pages := make([][]*models.Message, len(e.pages))
	for i, p := range e.pages {
		pages[i] = append([]*models.Message(nil), p...)
	}
	return MessagesSnapshot{pages: pages, exhausted: e.exhausted, existed: true}
}

func (c *Cache) Restore(scope string, snap MessagesSnapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !snap.existed {
		delete(c.msgs, scope)
		return
	}
	c.msgs[scope] = &messagesEntry{pages: snap.pages, exhausted: snap.exhausted}
}

// PrependLatest puts a provisional message at the front of the most
// recent page, creating the page when none exists yet.
func (c *Cache) PrependLatest(scope string, m *models.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.msgs[scope]
	if !ok {
		e = &messagesEntry{pages: [][]*models.Message{nil}}
		c.msgs[scope] = e
	}
	if len(e.pages) == 0 {
		e.pages = [][]*models.Message{nil}
	}
	e.pages[0] = append([]*models.Message{m}, e.pages[0]...)
}

// ReplaceByClientID swaps the provisional entry carrying the correlation
// id for the authoritative row, in place. Reports whether a swap
// happened.
func (c *Cache) ReplaceByClientID(scope, clientID string, authoritative *models.Message) bool {
	if clientID == "" {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.msgs[scope]
	if !ok {
		return false
	}
	for _, page := range e.pages {
		for i, m := range page {
			if m.ClientID == clientID {
				page[i] = authoritative
				return true
			}
		}
	}
	return false
}

// Contains reports whether any cached page holds the message id.
func (c *Cache) Contains(scope, id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.msgs[scope]
	if !ok {
		return false
	}
	for _, page := range e.pages {
		for _, m := range page {
			if m.ID == id {
				return true
			}
		}
	}
	return false
}

// PrependIfAbsent prepends the row to the first page unless its id is
// already cached anywhere. Reports whether it was added.
func (c *Cache) PrependIfAbsent(scope string, m *models.Message) bool {
	if c.Contains(scope, m.ID) {
		return false
	}
	c.PrependLatest(scope, m)
	return true
}

// DropMessages removes a conversation's pagination state entirely.
func (c *Cache) DropMessages(scope string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.msgs, scope)
}
