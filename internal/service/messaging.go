package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/consogab/server/internal/apperr"
	"github.com/consogab/server/internal/directory"
	"github.com/consogab/server/internal/models"
	"github.com/consogab/server/internal/repository"
)

// DefaultPageSize is the message page size when the caller passes none.
const DefaultPageSize = 50

// EventPublisher receives row-level change notifications after a
// successful write. Publish failures never fail the write.
type EventPublisher interface {
	MessageInserted(ctx context.Context, m *models.Message) error
	ParticipantChanged(ctx context.Context, conversationID string, userIDs []string) error
}

type SendMessageInput struct {
	SenderID       string
	ConversationID string
	ClientID       string
	Content        string
	Type           models.MessageType
	AttachmentURL  string
	AttachmentName string
	ReplyTo        string
}

type Messaging struct {
	convs    repository.ConversationRepo
	msgs     repository.MessageRepo
	parts    repository.ParticipantRepo
	profiles directory.Resolver
	events   EventPublisher
	log      *zap.SugaredLogger
}

func NewMessaging(
	convs repository.ConversationRepo,
	msgs repository.MessageRepo,
	parts repository.ParticipantRepo,
	profiles directory.Resolver,
	events EventPublisher,
	log *zap.SugaredLogger,
) *Messaging {
	return &Messaging{convs: convs, msgs: msgs, parts: parts, profiles: profiles, events: events, log: log}
}

// GetConversations returns the aggregated conversation summaries for a
// user, most recent first. Failures propagate; an empty slice means the
// user genuinely has no conversations.
func (s *Messaging) GetConversations(ctx context.Context, userID string) ([]*models.Conversation, error) {
	if userID == "" {
		return nil, fmt.Errorf("get conversations: %w", apperr.ErrUnauthorized)
	}
	convs, err := s.convs.ListForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	s.attachDisplayContext(ctx, userID, convs)
	return convs, nil
}

// attachDisplayContext resolves business and peer profiles for the list in
// one directory batch. Resolution failure degrades to bare rows.
func (s *Messaging) attachDisplayContext(ctx context.Context, userID string, convs []*models.Conversation) {
	seen := map[string]struct{}{}
	var ids []string
	add := func(id string) {
		if id == "" || id == userID {
			return
		}
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	for _, c := range convs {
		add(c.BusinessID)
		for _, m := range c.Members {
			add(m)
		}
	}
	profiles, err := s.profiles.Resolve(ctx, ids)
	if err != nil {
		s.log.Warnw("display context resolve failed", "err", err)
		return
	}
	for _, c := range convs {
		if p, ok := profiles[c.BusinessID]; ok {
			c.BusinessName = p.DisplayName
			c.BusinessLogo = p.AvatarURL
		}
		for _, m := range c.Members {
			if m == userID {
				continue
			}
			if p, ok := profiles[m]; ok {
				c.PeerName = p.DisplayName
				c.PeerAvatar = p.AvatarURL
			}
			break
		}
	}
}

// GetMessages fetches one page, newest first, and attaches sender
// snapshots for all distinct senders in a single directory batch.
func (s *Messaging) GetMessages(ctx context.Context, conversationID string, page, limit int64) ([]*models.Message, error) {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	msgs, err := s.msgs.Page(ctx, conversationID, page, limit)
	if err != nil {
		return nil, err
	}
	s.attachSenders(ctx, msgs)
	return msgs, nil
}

func (s *Messaging) attachSenders(ctx context.Context, msgs []*models.Message) {
	seen := map[string]struct{}{}
	var ids []string
	for _, m := range msgs {
		if _, ok := seen[m.SenderID]; ok {
			continue
		}
		seen[m.SenderID] = struct{}{}
		ids = append(ids, m.SenderID)
	}
	profiles, err := s.profiles.Resolve(ctx, ids)
	if err != nil {
		s.log.Warnw("sender resolve failed", "err", err)
		return
	}
	for _, m := range msgs {
		m.Sender = profiles[m.SenderID]
	}
}

// SendMessage inserts the message with status sent, echoing the client
// correlation id. The parent conversation touch is best-effort and not
// transactional with the insert.
func (s *Messaging) SendMessage(ctx context.Context, in SendMessageInput) (*models.Message, error) {
	if in.SenderID == "" {
		return nil, fmt.Errorf("send message: %w", apperr.ErrUnauthorized)
	}
	if in.ConversationID == "" {
		return nil, fmt.Errorf("send message: missing conversation: %w", apperr.ErrBadRequest)
	}
	msgType := in.Type
	if msgType == "" {
		msgType = models.MessageText
	}
	if in.Content == "" && in.AttachmentURL == "" {
		return nil, fmt.Errorf("send message: empty: %w", apperr.ErrBadRequest)
	}
	clientID := in.ClientID
	if clientID == "" {
		// every row carries a correlation id so replays and realtime
		// echoes always have something to match on
		clientID = uuid.NewString()
	}

	m := &models.Message{
		ConversationID: in.ConversationID,
		SenderID:       in.SenderID,
		ClientID:       clientID,
		Content:        in.Content,
		Type:           msgType,
		Status:         models.StatusSent,
		ReplyTo:        in.ReplyTo,
	}
	if in.AttachmentURL != "" {
		m.Metadata = map[string]string{models.MetaAttachmentURL: in.AttachmentURL}
		if in.AttachmentName != "" {
			m.Metadata[models.MetaAttachmentName] = in.AttachmentName
		}
	}

	inserted, err := s.msgs.Insert(ctx, m)
	if err != nil {
		return nil, err
	}

	if err := s.convs.Touch(ctx, in.ConversationID); err != nil {
		s.log.Warnw("conversation touch failed", "conversation", in.ConversationID, "err", err)
	}
	if err := s.events.MessageInserted(ctx, inserted); err != nil {
		s.log.Warnw("message event publish failed", "message", inserted.ID, "err", err)
	}
	return inserted, nil
}

// GetOrCreateBusinessConversation returns the single conversation for the
// (user, business) pair, creating it and its participant rows on first
// contact. The upsert is atomic, so concurrent first contacts converge on
// one row.
func (s *Messaging) GetOrCreateBusinessConversation(ctx context.Context, businessID, ownerID, userID string) (*models.Conversation, error) {
	if userID == "" {
		return nil, fmt.Errorf("business conversation: %w", apperr.ErrUnauthorized)
	}
	members := []string{userID}
	if ownerID != "" && ownerID != userID {
		members = append(members, ownerID)
	}
	c := &models.Conversation{
		Key:        models.BusinessKey(businessID, userID),
		Type:       models.ConversationSupport,
		BusinessID: businessID,
		Members:    members,
	}
	return s.getOrCreate(ctx, c)
}

// GetOrCreateDirectConversation returns the single conversation for an
// unordered pair of users.
func (s *Messaging) GetOrCreateDirectConversation(ctx context.Context, userID, otherID string) (*models.Conversation, error) {
	if userID == "" {
		return nil, fmt.Errorf("direct conversation: %w", apperr.ErrUnauthorized)
	}
	c := &models.Conversation{
		Key:     models.DirectKey(userID, otherID),
		Type:    models.ConversationDirect,
		Members: []string{userID, otherID},
	}
	return s.getOrCreate(ctx, c)
}

func (s *Messaging) getOrCreate(ctx context.Context, c *models.Conversation) (*models.Conversation, error) {
	out, created, err := s.convs.GetOrCreate(ctx, c)
	if err != nil {
		return nil, err
	}
	// membership upserts are idempotent; running them on every call heals
	// a creation that failed between the conversation insert and the
	// participant rows
	if err := s.parts.EnsureMembers(ctx, out.ID, out.Members); err != nil {
		return nil, err
	}
	if created {
		if err := s.events.ParticipantChanged(ctx, out.ID, out.Members); err != nil {
			s.log.Warnw("participant event publish failed", "conversation", out.ID, "err", err)
		}
	}
	return out, nil
}

// MarkConversationRead moves the participant's last-read timestamp to now.
// Later calls win, so the operation is idempotent.
func (s *Messaging) MarkConversationRead(ctx context.Context, conversationID, userID string) error {
	if userID == "" {
		return fmt.Errorf("mark read: %w", apperr.ErrUnauthorized)
	}
	return s.parts.MarkRead(ctx, conversationID, userID, time.Now().UTC())
}
