package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/open-replykit/replykit/internal/pkg/response"
	channelSvc "github.com/open-replykit/replykit/internal/service/channel"
	"github.com/open-replykit/replykit/internal/storage"
)

// ChannelHandler administra os canais WhatsApp Cloud API da conta. O access
// token nunca volta nas respostas (campo não serializado no modelo).
type ChannelHandler struct {
	service *channelSvc.Service
	log     *zap.Logger
}

func NewChannelHandler(service *channelSvc.Service, log *zap.Logger) *ChannelHandler {
	return &ChannelHandler{service: service, log: log}
}

func (h *ChannelHandler) Register(r *gin.RouterGroup) {
	r.GET("/channels", h.list)
	r.GET("/channels/:id", h.get)
	r.POST("/channels", h.create)
	r.DELETE("/channels/:id", h.delete)
}

type createChannelRequest struct {
	BusinessAccountID  string `json:"business_account_id" binding:"required"`
	PhoneNumberID      string `json:"phone_number_id" binding:"required"`
	Code               string `json:"code"`
	AccessToken        string `json:"access_token"`
	PhoneNumber        string `json:"phone_number"`
	Pin                string `json:"pin"`
	WebhookVerifyToken string `json:"webhook_verify_token"`
}

func (h *ChannelHandler) create(c *gin.Context) {
	var req createChannelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, err)
		return
	}

	ch, err := h.service.Create(c.Request.Context(), channelSvc.CreateInput{
		AccountID:          c.GetString("accountID"),
		BusinessAccountID:  req.BusinessAccountID,
		PhoneNumberID:      req.PhoneNumberID,
		Code:               req.Code,
		AccessToken:        req.AccessToken,
		PhoneNumber:        req.PhoneNumber,
		Pin:                req.Pin,
		WebhookVerifyToken: req.WebhookVerifyToken,
	})
	if err != nil {
		if errors.Is(err, channelSvc.ErrChannelExists) {
			response.Error(c, http.StatusConflict, err)
			return
		}
		h.log.Error("channel handler: erro ao criar canal", zap.Error(err))
		response.Error(c, http.StatusBadRequest, err)
		return
	}

	response.Success(c, http.StatusCreated, ch)
}

func (h *ChannelHandler) list(c *gin.Context) {
	channels, err := h.service.List(c.Request.Context(), c.GetString("accountID"))
	if err != nil {
		response.Error(c, http.StatusInternalServerError, err)
		return
	}
	response.Success(c, http.StatusOK, channels)
}

func (h *ChannelHandler) get(c *gin.Context) {
	ch, err := h.service.Get(c.Request.Context(), c.GetString("accountID"), c.Param("id"))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			response.ErrorWithMessage(c, http.StatusNotFound, "canal não encontrado")
			return
		}
		response.Error(c, http.StatusInternalServerError, err)
		return
	}
	response.Success(c, http.StatusOK, ch)
}

func (h *ChannelHandler) delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.GetString("accountID"), c.Param("id")); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			response.ErrorWithMessage(c, http.StatusNotFound, "canal não encontrado")
			return
		}
		response.Error(c, http.StatusInternalServerError, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}
