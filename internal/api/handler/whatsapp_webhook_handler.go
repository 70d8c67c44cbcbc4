package handler

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/open-replykit/replykit/internal/pkg/queue"
	"github.com/open-replykit/replykit/internal/storage"
)

// WhatsAppWebhookHandler é a porta de entrada dos webhooks da Meta. O POST só
// enfileira e responde 200 imediatamente; quem interpreta é o pool de
// reconciliação. Demorar aqui faz a Meta reentregar e eventualmente
// desinscrever o webhook.
type WhatsAppWebhookHandler struct {
	channels storage.ChannelRepository
	queue    queue.Queue
	log      *zap.Logger
}

func NewWhatsAppWebhookHandler(channels storage.ChannelRepository, q queue.Queue, log *zap.Logger) *WhatsAppWebhookHandler {
	return &WhatsAppWebhookHandler{channels: channels, queue: q, log: log}
}

func (h *WhatsAppWebhookHandler) Register(r *gin.RouterGroup) {
	r.GET("/webhooks/whatsapp/:phoneNumberId", h.verify)
	r.POST("/webhooks/whatsapp/:phoneNumberId", h.receive)
}

// verify responde ao handshake de inscrição da Meta (hub.challenge).
func (h *WhatsAppWebhookHandler) verify(c *gin.Context) {
	mode := c.Query("hub.mode")
	token := c.Query("hub.verify_token")
	challenge := c.Query("hub.challenge")

	ch, err := h.channels.GetByPhoneNumberID(c.Request.Context(), c.Param("phoneNumberId"))
	if err != nil {
		c.String(http.StatusNotFound, "canal desconhecido")
		return
	}

	if mode != "subscribe" || token == "" || token != ch.WebhookVerifyToken {
		h.log.Warn("webhook: verificação recusada",
			zap.String("phone_number_id", ch.PhoneNumberID),
			zap.String("mode", mode),
		)
		c.String(http.StatusForbidden, "token de verificação inválido")
		return
	}

	c.String(http.StatusOK, challenge)
}

func (h *WhatsAppWebhookHandler) receive(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.Status(http.StatusBadRequest)
		return
	}

	var envelope struct {
		Object string `json:"object"`
	}
	// Payload ilegível ainda recebe 200: a Meta reentrega em caso de erro e
	// um corpo quebrado nunca vai melhorar.
	if err := json.Unmarshal(body, &envelope); err != nil {
		h.log.Warn("webhook: payload ilegível, descartando", zap.Error(err))
		c.Status(http.StatusOK)
		return
	}

	event := queue.Event{
		ID:         uuid.New().String(),
		Object:     envelope.Object,
		Payload:    body,
		ReceivedAt: time.Now(),
	}

	if err := h.queue.Enqueue(c.Request.Context(), event); err != nil {
		h.log.Error("webhook: erro ao enfileirar evento", zap.Error(err))
		// 500 para a Meta reentregar depois.
		c.Status(http.StatusInternalServerError)
		return
	}

	c.Status(http.StatusOK)
}
