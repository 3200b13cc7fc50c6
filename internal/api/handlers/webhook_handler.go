package handlers

import (
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/menycars/copiloto/internal/services"
)

// WebhookHandler is the gateway-facing surface: the verification
// handshake and inbound message delivery from Maytapi.
type WebhookHandler struct {
	coalescer services.CoalescerService
	logger    *logrus.Logger
}

func NewWebhookHandler(coalescer services.CoalescerService, logger *logrus.Logger) *WebhookHandler {
	if logger == nil {
		logger = logrus.New()
	}
	return &WebhookHandler{coalescer: coalescer, logger: logger}
}

type webhookMessage struct {
	Type   string `json:"type"`
	Text   string `json:"text"`
	FromMe bool   `json:"fromMe"`
}

type webhookUser struct {
	Phone string `json:"phone"`
	Name  string `json:"name"`
}

type webhookPayload struct {
	Type         string         `json:"type"`
	Message      webhookMessage `json:"message"`
	User         webhookUser    `json:"user"`
	Conversation string         `json:"conversation"`
}

// Verify answers the subscription handshake.
func (h *WebhookHandler) Verify(c *gin.Context) {
	mode := c.Query("hub.mode")
	token := c.Query("hub.verify_token")
	challenge := c.Query("hub.challenge")

	if mode == "subscribe" && token != "" && token == os.Getenv("WHATSAPP_VERIFY_TOKEN") {
		c.String(http.StatusOK, challenge)
		return
	}
	c.Status(http.StatusForbidden)
}

// Receive handles an inbound delivery. The gateway retries on non-2xx,
// which would re-run the whole turn, so this always acks with 200 and
// keeps failures on our side.
func (h *WebhookHandler) Receive(c *gin.Context) {
	var payload webhookPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		h.logger.WithError(err).Warn("webhook payload not parseable, acking anyway")
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
		return
	}

	// only inbound text participates in turns; acks, statuses, media
	// and our own outbound echoes are acked and dropped
	if payload.Type != "message" || payload.Message.Type != "text" || payload.Message.FromMe {
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
		return
	}
	if payload.User.Phone == "" || payload.Message.Text == "" {
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
		return
	}

	origin := payload.Conversation
	if origin == "" {
		origin = "whatsapp"
	}

	// synchronous on purpose: the quiet-period wait lives inside and the
	// instance must stay alive until the turn settles
	if err := h.coalescer.HandleInbound(c.Request.Context(), payload.User.Phone, payload.Message.Text, origin); err != nil {
		h.logger.WithError(err).WithField("phone", payload.User.Phone).Error("inbound handling failed")
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
