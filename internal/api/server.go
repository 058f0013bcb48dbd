package api

import (
	"time"

	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/consogab/server/internal/auth"
	"github.com/consogab/server/internal/directory"
	"github.com/consogab/server/internal/media"
	"github.com/consogab/server/internal/service"
	"github.com/consogab/server/internal/ws"
)

type Server struct {
	svc       *service.Messaging
	media     *media.Service
	hub       *ws.Hub
	validator *auth.Validator
	profiles  directory.Resolver
	log       *zap.SugaredLogger
	maxUpload int64
}

type Options struct {
	Messaging    *service.Messaging
	Media        *media.Service
	Hub          *ws.Hub
	Validator    *auth.Validator
	Profiles     directory.Resolver
	Limiter      *RateLimiter
	Log          *zap.SugaredLogger
	MaxUpload    int64
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

func NewServer(opts Options) *fiber.App {
	s := &Server{
		svc:       opts.Messaging,
		media:     opts.Media,
		hub:       opts.Hub,
		validator: opts.Validator,
		profiles:  opts.Profiles,
		log:       opts.Log,
		maxUpload: opts.MaxUpload,
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		BodyLimit:             int(opts.MaxUpload) + 1<<20,
		ReadTimeout:           opts.ReadTimeout,
		WriteTimeout:          opts.WriteTimeout,
	})
	app.Use(recover.New())
	app.Use(fiberlogger.New())

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	// websocket auth happens inside the handler; browsers cannot set the
	// Authorization header on the upgrade request, so the token rides a
	// query param.
	app.Get("/v1/ws", s.upgrade, websocket.New(s.handleWS))

	v1 := app.Group("/v1", JWTAuth(opts.Validator))
	v1.Get("/conversations", s.listConversations)
	v1.Post("/conversations/business", s.businessConversation)
	v1.Post("/conversations/direct", s.directConversation)
	v1.Get("/conversations/:id/messages", s.listMessages)
	v1.Post("/conversations/:id/read", s.markRead)
	if opts.Limiter != nil {
		v1.Post("/messages", opts.Limiter.Middleware(), s.sendMessage)
	} else {
		v1.Post("/messages", s.sendMessage)
	}
	v1.Post("/media/images", s.uploadImage)
	v1.Get("/profiles/:id", s.getProfile)

	return app
}
