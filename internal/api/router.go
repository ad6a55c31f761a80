// Package api exposes the emergency session, contacts and history over HTTP.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"safetour/internal/domain"
)

// Session is the subset of the emergency controller the API drives.
type Session interface {
	Arm(ctx context.Context) error
	Disarm(ctx context.Context) error
	Reset(ctx context.Context) error
	Cancel(ctx context.Context) error
	SendNow(ctx context.Context) error
	SetTriggerWords(ctx context.Context, words []string) error
	SetSilentMode(ctx context.Context, silent bool) error
	Status() domain.Status
}

// Contacts manages the emergency contact list.
type Contacts interface {
	ListContacts(ctx context.Context) ([]domain.Contact, error)
	Get(ctx context.Context, id uint) (domain.Contact, error)
	Create(ctx context.Context, contact domain.Contact) (domain.Contact, error)
	Update(ctx context.Context, contact domain.Contact) (domain.Contact, error)
	Delete(ctx context.Context, id uint) error
}

// History lists recent trigger attempts.
type History interface {
	Recent(ctx context.Context, limit int) ([]domain.TriggerRecord, error)
}

// TranscriptPusher accepts recognition results from clients.
type TranscriptPusher interface {
	Push(text string, isFinal bool) error
}

// EventStream serves server-sent events.
type EventStream interface {
	Serve(c *gin.Context)
}

// Dependencies wires the router. Transcripts, Events and Metrics are
// optional; their routes are omitted when nil.
type Dependencies struct {
	Session     Session
	Contacts    Contacts
	History     History
	Transcripts TranscriptPusher
	Events      EventStream
	Metrics     http.Handler
	Middleware  []gin.HandlerFunc
	Logger      *zap.Logger
}

type handler struct {
	deps   Dependencies
	logger *zap.Logger
}

// NewRouter builds the gin engine with every route registered.
func NewRouter(deps Dependencies) *gin.Engine {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &handler{deps: deps, logger: logger.Named("api")}

	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(h.logger))
	router.Use(deps.Middleware...)

	router.GET("/healthz", h.health)
	if deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(deps.Metrics))
	}

	apiGroup := router.Group("/api")
	apiGroup.GET("/status", h.status)

	session := apiGroup.Group("/session")
	session.POST("/arm", h.sessionAction(deps.Session.Arm))
	session.POST("/disarm", h.sessionAction(deps.Session.Disarm))
	session.POST("/reset", h.sessionAction(deps.Session.Reset))
	session.POST("/cancel", h.sessionAction(deps.Session.Cancel))
	session.POST("/send-now", h.sessionAction(deps.Session.SendNow))
	session.GET("/trigger-words", h.getTriggerWords)
	session.PUT("/trigger-words", h.putTriggerWords)
	session.PUT("/silent-mode", h.putSilentMode)

	if deps.Transcripts != nil {
		apiGroup.POST("/transcripts", h.pushTranscript)
	}

	if deps.Contacts != nil {
		contacts := apiGroup.Group("/contacts")
		contacts.GET("", h.listContacts)
		contacts.POST("", h.createContact)
		contacts.GET("/:id", h.getContact)
		contacts.PUT("/:id", h.updateContact)
		contacts.DELETE("/:id", h.deleteContact)
	}

	if deps.History != nil {
		apiGroup.GET("/history", h.history)
	}
	if deps.Events != nil {
		apiGroup.GET("/events", deps.Events.Serve)
	}
	return router
}

func (h *handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "state": h.deps.Session.Status().State})
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}
		switch {
		case c.Writer.Status() >= http.StatusInternalServerError:
			logger.Error("request failed", fields...)
		case c.Request.URL.Path == "/api/events":
			logger.Debug("event stream closed", fields...)
		default:
			logger.Debug("request", fields...)
		}
	}
}
