package devserver

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"lawlink-chat/internal/domain"
	"lawlink-chat/internal/identity"
	"lawlink-chat/internal/mediatoken"
	pkgerrors "lawlink-chat/pkg/errors"
)

// Config holds the dev server's settings
type Config struct {
	// AuthSecret verifies the client engine's auth tokens
	AuthSecret string
	// MediaSecret signs issued media credentials
	MediaSecret string
	// MediaValidity bounds a credential's lifetime
	MediaValidity time.Duration
}

// Server is the in-repo development harness: it serves the durable store's
// query surface, the media token service and the real-time channel under one
// roof, with the same contracts the production collaborators expose.
type Server struct {
	store  *Store
	hub    *Hub
	issuer *mediatoken.Issuer
	cfg    Config
}

// New creates a dev server over an empty store
func New(cfg Config) *Server {
	if cfg.MediaValidity == 0 {
		cfg.MediaValidity = 5 * time.Minute
	}
	store := NewStore()
	return &Server{
		store:  store,
		hub:    NewHub(store),
		issuer: mediatoken.NewIssuer(cfg.MediaSecret, cfg.MediaValidity),
		cfg:    cfg,
	}
}

// Store exposes the backing store for seeding rooms
func (s *Server) Store() *Store {
	return s.store
}

// Issuer exposes the credential issuer, e.g. to redeem a credential in tests
func (s *Server) Issuer() *mediatoken.Issuer {
	return s.issuer
}

// Router builds the gin engine serving every collaborator endpoint
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	authed := r.Group("/", s.authMiddleware())
	authed.GET("/rooms/:id", s.getRoom)
	authed.GET("/rooms/:id/messages", s.getMessages)
	authed.POST("/rooms/:id/media-token", s.exchangeMediaToken)
	authed.GET("/ws", s.serveWS)

	return r
}

// authMiddleware resolves the caller from a bearer token (header or, for
// websocket dials from browsers, the token query parameter)
func (s *Server) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Query("token")
		if header := c.GetHeader("Authorization"); header != "" {
			token = strings.TrimPrefix(header, "Bearer ")
		}
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing auth token"})
			return
		}

		claims, err := identity.ParseToken(s.cfg.AuthSecret, token)
		if err != nil {
			c.AbortWithStatusJSON(pkgerrors.HTTPStatus(err), gin.H{"error": "invalid auth token"})
			return
		}

		c.Set("user_id", claims.UserID)
		c.Set("display_name", claims.DisplayName)
		c.Next()
	}
}

func (s *Server) getRoom(c *gin.Context) {
	room, ok := s.store.Room(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
		return
	}
	c.JSON(http.StatusOK, room)
}

func (s *Server) getMessages(c *gin.Context) {
	messages, ok := s.store.Messages(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
		return
	}
	if messages == nil {
		messages = []domain.Message{}
	}
	c.JSON(http.StatusOK, messages)
}

type mediaTokenRequest struct {
	Kind string `json:"kind" binding:"required,oneof=audio video"`
}

func (s *Server) exchangeMediaToken(c *gin.Context) {
	roomID := c.Param("id")
	if _, ok := s.store.Room(roomID); !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
		return
	}

	var req mediaTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "kind must be audio or video"})
		return
	}

	token, err := s.issuer.Issue(roomID, c.GetString("user_id"), req.Kind)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to issue credential"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token})
}

func (s *Server) serveWS(c *gin.Context) {
	s.hub.ServeConn(c.Writer, c.Request, c.GetString("user_id"), c.GetString("display_name"))
}
