package http

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"zapclinic/internal/entities"
	"zapclinic/internal/repository"
	"zapclinic/internal/usecases"
)

type Handler struct {
	orchestrator *usecases.Orchestrator
	convRepo     *repository.ConversationRepository
	escRepo      *repository.EscalationRepository
	knowledge    *repository.KnowledgeRepository
	usageRepo    *repository.UsageRepository

	verifyToken string
	appSecret   string
	logger      *slog.Logger
}

func NewHandler(
	orchestrator *usecases.Orchestrator,
	convRepo *repository.ConversationRepository,
	escRepo *repository.EscalationRepository,
	knowledge *repository.KnowledgeRepository,
	usageRepo *repository.UsageRepository,
	verifyToken, appSecret string,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		orchestrator: orchestrator,
		convRepo:     convRepo,
		escRepo:      escRepo,
		knowledge:    knowledge,
		usageRepo:    usageRepo,
		verifyToken:  verifyToken,
		appSecret:    appSecret,
		logger:       logger,
	}
}

func SetupRoutes(r *gin.Engine, h *Handler, auth *usecases.AuthUsecase, middleware *Middleware) {
	// Apply Security Middleware
	r.Use(SecurityHeaders())
	r.Use(RequestSizeLimiter(10 << 20)) // 10MB max request size
	r.Use(middleware.CORSMiddleware())

	// Channel webhook (public: the provider authenticates via token/signature)
	r.GET("/webhook/whatsapp", h.VerifyWebhook)
	r.POST("/webhook/whatsapp", h.HandleWebhook)

	// Public Auth Routes
	r.POST("/api/auth/login", func(c *gin.Context) {
		var loginReq struct {
			Username string `json:"username"`
			Password string `json:"password"`
		}
		if err := c.ShouldBindJSON(&loginReq); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		token, err := auth.Login(loginReq.Username, loginReq.Password)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"token": token})
	})

	// Protected Ops Routes
	api := r.Group("/api")
	api.Use(middleware.AuthRequired())
	api.Use(middleware.RateLimitPerOperator(5, 10))
	{
		api.GET("/conversations", h.ListEscalatedConversations)
		api.POST("/conversations/:sender/release", h.ReleaseConversation)
		api.GET("/escalations", h.ListEscalationEvents)
		api.POST("/knowledge/reload", h.ReloadKnowledge)
		api.GET("/stats", h.GetStats)
	}
}

// VerifyWebhook answers the channel provider's verification handshake:
// echo the challenge on a token match, 403 otherwise.
func (h *Handler) VerifyWebhook(c *gin.Context) {
	mode := c.Query("hub.mode")
	token := c.Query("hub.verify_token")
	challenge := c.Query("hub.challenge")

	if mode == "subscribe" && token == h.verifyToken {
		h.logger.Info("webhook verified")
		c.String(http.StatusOK, "%s", challenge)
		return
	}

	h.logger.Warn("webhook verification failed", "mode", mode)
	c.JSON(http.StatusForbidden, gin.H{"success": false, "message": "verification failed"})
}

// --- WhatsApp webhook payload types ---

type waPayload struct {
	Object string    `json:"object"`
	Entry  []waEntry `json:"entry"`
}

type waEntry struct {
	ID      string     `json:"id"`
	Changes []waChange `json:"changes"`
}

type waChange struct {
	Value waValue `json:"value"`
	Field string  `json:"field"`
}

type waValue struct {
	MessagingProduct string      `json:"messaging_product"`
	Metadata         waMetadata  `json:"metadata"`
	Messages         []waMessage `json:"messages"`
}

type waMetadata struct {
	DisplayPhoneNumber string `json:"display_phone_number"`
	PhoneNumberID      string `json:"phone_number_id"`
}

type waMessage struct {
	From      string  `json:"from"`
	ID        string  `json:"id"`
	Timestamp string  `json:"timestamp"`
	Type      string  `json:"type"`
	Text      *waText `json:"text,omitempty"`
}

type waText struct {
	Body string `json:"body"`
}

// HandleWebhook ingests a batch of inbound message events. The response is
// always 200 except on rate-limit rejection: providers retry non-200
// deliveries indefinitely, which would amplify load.
func (h *Handler) HandleWebhook(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"success": false, "message": "unreadable body"})
		return
	}

	if h.appSecret != "" {
		sig := c.GetHeader("X-Hub-Signature-256")
		if !h.verifySignature(body, sig) {
			h.logger.Warn("webhook signature mismatch")
			c.JSON(http.StatusForbidden, gin.H{"success": false, "message": "invalid signature"})
			return
		}
	}

	var payload waPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		h.logger.Warn("webhook bad payload", "err", err)
		c.JSON(http.StatusOK, gin.H{"success": false, "message": "malformed payload"})
		return
	}

	rateLimited := false
	processed := 0
	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			for _, m := range change.Value.Messages {
				if m.Type != "text" || m.Text == nil {
					continue
				}
				if !ValidSender(m.From) {
					h.logger.Warn("webhook message with bad sender skipped", "sender", m.From)
					continue
				}

				msg := &entities.InboundMessage{
					ExternalID:   m.ID,
					Sender:       m.From,
					DisplayPhone: change.Value.Metadata.DisplayPhoneNumber,
					Body:         SanitizeString(m.Text.Body),
					ReceivedAt:   parseWATimestamp(m.Timestamp),
				}

				_, err := h.orchestrator.HandleInbound(c.Request.Context(), msg)
				if errors.Is(err, usecases.ErrRateLimited) {
					rateLimited = true
					continue
				}
				processed++
			}
		}
	}

	if rateLimited && processed == 0 {
		c.JSON(http.StatusTooManyRequests, gin.H{"success": false, "message": "rate limit exceeded"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *Handler) verifySignature(body []byte, signature string) bool {
	if len(signature) < 8 || signature[:7] != "sha256=" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(h.appSecret))
	mac.Write(body)
	computed := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(signature[7:]), []byte(computed))
}

func parseWATimestamp(ts string) time.Time {
	secs, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return time.Now()
	}
	return time.Unix(secs, 0)
}

// --- Ops API ---

// ListEscalatedConversations returns conversations waiting on a human.
func (h *Handler) ListEscalatedConversations(c *gin.Context) {
	convs, err := h.convRepo.ListEscalated(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversations": convs})
}

// ReleaseConversation clears the escalated flag: the human operator hands
// the conversation back to the bot. This is the only de-escalation path.
func (h *Handler) ReleaseConversation(c *gin.Context) {
	sender := c.Param("sender")
	channel := c.Query("channel")
	if sender == "" || channel == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "sender and channel are required"})
		return
	}

	if err := h.convRepo.Release(c.Request.Context(), sender, channel); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found"})
		return
	}
	h.logger.Info("conversation released to bot", "sender", sender, "channel", channel)
	c.JSON(http.StatusOK, gin.H{"status": "released"})
}

// ListEscalationEvents returns the recent audit trail.
func (h *Handler) ListEscalationEvents(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	events, err := h.escRepo.Recent(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

// ReloadKnowledge drops the in-process knowledge cache.
func (h *Handler) ReloadKnowledge(c *gin.Context) {
	h.knowledge.Invalidate()
	c.JSON(http.StatusOK, gin.H{"status": "cache invalidated"})
}

// GetStats returns recent daily message volume.
func (h *Handler) GetStats(c *gin.Context) {
	usage, err := h.usageRepo.Recent(c.Request.Context(), 7)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"usage": usage})
}
