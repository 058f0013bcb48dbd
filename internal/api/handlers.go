package api

import (
	"errors"
	"io"

	"github.com/gofiber/fiber/v2"

	"github.com/consogab/server/internal/apperr"
	"github.com/consogab/server/internal/metrics"
	"github.com/consogab/server/internal/models"
	"github.com/consogab/server/internal/service"
)

func status(err error) int {
	switch {
	case errors.Is(err, apperr.ErrUnauthorized):
		return fiber.StatusUnauthorized
	case errors.Is(err, apperr.ErrBadRequest):
		return fiber.StatusBadRequest
	case errors.Is(err, apperr.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, apperr.ErrRateLimited):
		return fiber.StatusTooManyRequests
	default:
		return fiber.StatusInternalServerError
	}
}

func fail(c *fiber.Ctx, err error) error {
	return c.Status(status(err)).JSON(fiber.Map{"error": err.Error()})
}

func (s *Server) listConversations(c *fiber.Ctx) error {
	convs, err := s.svc.GetConversations(c.Context(), userID(c))
	if err != nil {
		// failed is not empty: callers get an error status, never a blank list
		return fail(c, err)
	}
	if convs == nil {
		convs = []*models.Conversation{}
	}
	return c.JSON(fiber.Map{"conversations": convs})
}

type businessConversationReq struct {
	BusinessID string `json:"business_id"`
	OwnerID    string `json:"owner_id"`
}

func (s *Server) businessConversation(c *fiber.Ctx) error {
	var req businessConversationReq
	if err := c.BodyParser(&req); err != nil || req.BusinessID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid payload"})
	}
	conv, err := s.svc.GetOrCreateBusinessConversation(c.Context(), req.BusinessID, req.OwnerID, userID(c))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(conv)
}

type directConversationReq struct {
	OtherID string `json:"other_id"`
}

func (s *Server) directConversation(c *fiber.Ctx) error {
	var req directConversationReq
	if err := c.BodyParser(&req); err != nil || req.OtherID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid payload"})
	}
	conv, err := s.svc.GetOrCreateDirectConversation(c.Context(), userID(c), req.OtherID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(conv)
}

func (s *Server) listMessages(c *fiber.Ctx) error {
	convID := c.Params("id")
	page := int64(c.QueryInt("page", 0))
	limit := int64(c.QueryInt("limit", service.DefaultPageSize))
	if page < 0 || limit < 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid pagination"})
	}
	msgs, err := s.svc.GetMessages(c.Context(), convID, page, limit)
	if err != nil {
		return fail(c, err)
	}
	if msgs == nil {
		msgs = []*models.Message{}
	}
	return c.JSON(fiber.Map{"messages": msgs})
}

type sendMessageReq struct {
	ConversationID string `json:"conversation_id"`
	ClientID       string `json:"client_id"`
	Content        string `json:"content"`
	Type           string `json:"type"`
	AttachmentURL  string `json:"attachment_url"`
	AttachmentName string `json:"attachment_name"`
	ReplyTo        string `json:"reply_to"`
}

func (s *Server) sendMessage(c *fiber.Ctx) error {
	var req sendMessageReq
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid payload"})
	}
	msg, err := s.svc.SendMessage(c.Context(), service.SendMessageInput{
		SenderID:       userID(c),
		ConversationID: req.ConversationID,
		ClientID:       req.ClientID,
		Content:        req.Content,
		Type:           models.MessageType(req.Type),
		AttachmentURL:  req.AttachmentURL,
		AttachmentName: req.AttachmentName,
		ReplyTo:        req.ReplyTo,
	})
	if err != nil {
		return fail(c, err)
	}
	metrics.MessagesSent.Inc()
	return c.Status(fiber.StatusCreated).JSON(msg)
}

func (s *Server) markRead(c *fiber.Ctx) error {
	if err := s.svc.MarkConversationRead(c.Context(), c.Params("id"), userID(c)); err != nil {
		// best-effort on the client side, but the API still reports it
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"status": "ok"})
}

func (s *Server) getProfile(c *fiber.Ctx) error {
	id := c.Params("id")
	profiles, err := s.profiles.Resolve(c.Context(), []string{id})
	if err != nil {
		return fail(c, err)
	}
	p, ok := profiles[id]
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "profile not found"})
	}
	return c.JSON(p)
}

func (s *Server) uploadImage(c *fiber.Ctx) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "missing file"})
	}
	if fh.Size > s.maxUpload {
		return c.Status(fiber.StatusRequestEntityTooLarge).JSON(fiber.Map{"error": "file too large"})
	}
	f, err := fh.Open()
	if err != nil {
		return fail(c, err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return fail(c, err)
	}
	img, err := s.media.UploadImage(c.Context(), userID(c), fh.Filename, fh.Header.Get("Content-Type"), data)
	if err != nil {
		return fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(img)
}
