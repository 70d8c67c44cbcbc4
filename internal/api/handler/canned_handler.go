package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/open-replykit/replykit/internal/pkg/response"
	cannedSvc "github.com/open-replykit/replykit/internal/service/canned"
	"github.com/open-replykit/replykit/internal/service/template"
	"github.com/open-replykit/replykit/internal/storage"
	"github.com/open-replykit/replykit/internal/storage/model"
)

type CannedHandler struct {
	service *cannedSvc.Service
	log     *zap.Logger
}

func NewCannedHandler(service *cannedSvc.Service, log *zap.Logger) *CannedHandler {
	return &CannedHandler{service: service, log: log}
}

func (h *CannedHandler) Register(r *gin.RouterGroup) {
	r.GET("/canned-responses", h.list)
	r.GET("/canned-responses/:id", h.get)
	r.POST("/canned-responses", h.create)
	r.PUT("/canned-responses/:id", h.update)
	r.DELETE("/canned-responses/:id", h.delete)
}

type createCannedRequest struct {
	ShortCode  string `json:"short_code" binding:"required"`
	Content    string `json:"content" binding:"required"`
	Category   string `json:"category"`
	InboxID    string `json:"inbox_id"`
	CannedType string `json:"canned_type"`
}

type updateCannedRequest struct {
	ShortCode string `json:"short_code" binding:"required"`
	Content   string `json:"content" binding:"required"`
	Category  string `json:"category"`
	InboxID   string `json:"inbox_id"`
	Status    string `json:"status"`
}

func (h *CannedHandler) create(c *gin.Context) {
	var req createCannedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, err)
		return
	}

	cr, err := h.service.Create(c.Request.Context(), cannedSvc.CreateInput{
		AccountID:  c.GetString("accountID"),
		ShortCode:  req.ShortCode,
		Content:    req.Content,
		Category:   req.Category,
		InboxID:    req.InboxID,
		CannedType: model.CannedType(req.CannedType),
	})
	if err != nil {
		h.writeError(c, err)
		return
	}

	response.Success(c, http.StatusCreated, cr)
}

func (h *CannedHandler) list(c *gin.Context) {
	accountID := c.GetString("accountID")

	// Com ?q= a listagem vira busca ordenada por relevância.
	var (
		items []model.CannedResponse
		err   error
	)
	if term := c.Query("q"); term != "" {
		items, err = h.service.Search(c.Request.Context(), accountID, term)
	} else {
		items, err = h.service.List(c.Request.Context(), accountID)
	}
	if err != nil {
		response.Error(c, http.StatusInternalServerError, err)
		return
	}

	if items == nil {
		items = []model.CannedResponse{}
	}
	response.Success(c, http.StatusOK, items)
}

func (h *CannedHandler) get(c *gin.Context) {
	cr, err := h.service.Get(c.Request.Context(), c.GetString("accountID"), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, cr)
}

func (h *CannedHandler) update(c *gin.Context) {
	var req updateCannedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, err)
		return
	}

	cr, err := h.service.Update(c.Request.Context(), c.GetString("accountID"), c.Param("id"), cannedSvc.UpdateInput{
		ShortCode: req.ShortCode,
		Content:   req.Content,
		Category:  req.Category,
		InboxID:   req.InboxID,
		Status:    model.Status(req.Status),
	}, cannedSvc.UpdateOptions{})
	if err != nil {
		h.writeError(c, err)
		return
	}

	response.Success(c, http.StatusOK, cr)
}

func (h *CannedHandler) delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.GetString("accountID"), c.Param("id")); err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}

// writeError traduz os erros do serviço para status HTTP: não encontrado 404,
// validação 422, rejeição da Meta 400 com a mensagem voltada ao usuário.
func (h *CannedHandler) writeError(c *gin.Context, err error) {
	var verr *cannedSvc.ValidationError
	var rej *template.RemoteRejection

	switch {
	case errors.Is(err, storage.ErrNotFound):
		response.ErrorWithMessage(c, http.StatusNotFound, "resposta pronta não encontrada")
	case errors.As(err, &verr):
		response.Error(c, http.StatusUnprocessableEntity, verr)
	case errors.As(err, &rej):
		response.ErrorWithMessage(c, http.StatusBadRequest, rej.Message)
	default:
		h.log.Error("canned handler: erro interno", zap.Error(err))
		response.Error(c, http.StatusInternalServerError, err)
	}
}
