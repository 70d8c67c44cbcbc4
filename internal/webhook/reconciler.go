// Package webhook consome os eventos de revisão de template que a Meta
// entrega por webhook e reconcilia o status local das respostas prontas.
// O trabalho aqui é só escrita local: nenhuma chamada remota sai deste
// pacote, então uma escrita de status nunca dispara nova mutação na Meta.
package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/open-replykit/replykit/internal/shortcode"
	"github.com/open-replykit/replykit/internal/storage"
	"github.com/open-replykit/replykit/internal/storage/model"
)

// Payload é o envelope que a Meta posta no webhook.
type Payload struct {
	Object string  `json:"object"`
	Entry  []Entry `json:"entry"`
}

type Entry struct {
	ID      string   `json:"id"`
	Changes []Change `json:"changes"`
}

type Change struct {
	Field string `json:"field"`
	Value Value  `json:"value"`
}

type Value struct {
	Event                   string      `json:"event"`
	MessageTemplateName     string      `json:"message_template_name"`
	MessageTemplateID       json.Number `json:"message_template_id"`
	MessageTemplateLanguage string      `json:"message_template_language"`
	Reason                  string      `json:"reason"`
}

// ErrUnknownEvent marca um tipo de evento que o mapeamento não reconhece.
// É rejeição explícita, não fallthrough silencioso: o change falha, os
// irmãos continuam.
var ErrUnknownEvent = errors.New("webhook: evento desconhecido")

// Store é o recorte do repositório que a reconciliação usa: resolução por
// id remoto ou nome normalizado, e escrita de status. Nada além disso.
type Store interface {
	GetByTemplateID(ctx context.Context, templateID string) (model.CannedResponse, error)
	GetByNormalizedShortCode(ctx context.Context, normalized string) (model.CannedResponse, error)
	UpdateStatus(ctx context.Context, id string, status model.Status) error
}

type Reconciler struct {
	repo Store
	log  *zap.Logger
}

func NewReconciler(repo Store, log *zap.Logger) *Reconciler {
	return &Reconciler{repo: repo, log: log}
}

// Process aplica um payload inteiro. Falha de um change não aborta os
// demais; só payload indecodificável devolve erro (e o worker descarta,
// sem retry infinito sobre lixo).
func (r *Reconciler) Process(ctx context.Context, raw []byte) error {
	var payload Payload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return fmt.Errorf("webhook: payload malformado: %w", err)
	}

	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			if change.Value.Event == "" {
				continue
			}
			if err := r.applyChange(ctx, change.Value); err != nil {
				r.log.Error("webhook: falha ao aplicar change",
					zap.String("entry_id", entry.ID),
					zap.String("event", change.Value.Event),
					zap.String("template_name", change.Value.MessageTemplateName),
					zap.Error(err),
				)
			}
		}
	}
	return nil
}

func (r *Reconciler) applyChange(ctx context.Context, v Value) error {
	status, err := mapEvent(v.Event)
	if err != nil {
		return err
	}

	cr, err := r.resolve(ctx, v)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			// Pode ser um template anterior ao esquema atual ou de outro
			// registro; não é erro do job.
			r.log.Warn("webhook: nenhuma resposta encontrada para o template",
				zap.String("template_name", v.MessageTemplateName),
				zap.String("template_id", v.MessageTemplateID.String()),
			)
			return nil
		}
		return err
	}

	if err := r.repo.UpdateStatus(ctx, cr.ID, status); err != nil {
		return fmt.Errorf("webhook: gravar status: %w", err)
	}

	r.log.Info("webhook: status reconciliado",
		zap.String("canned_response_id", cr.ID),
		zap.String("template_name", v.MessageTemplateName),
		zap.String("status", string(status)),
	)
	return nil
}

// resolve localiza a resposta primeiro pelo id remoto; na ausência, pela
// forma normalizada do short code contra o nome vindo do evento.
func (r *Reconciler) resolve(ctx context.Context, v Value) (model.CannedResponse, error) {
	if id := v.MessageTemplateID.String(); id != "" && id != "0" {
		cr, err := r.repo.GetByTemplateID(ctx, id)
		if err == nil {
			return cr, nil
		}
		if !errors.Is(err, storage.ErrNotFound) {
			return model.CannedResponse{}, err
		}
	}

	normalized := shortcode.Normalize(v.MessageTemplateName)
	if normalized == "" {
		return model.CannedResponse{}, storage.ErrNotFound
	}
	return r.repo.GetByNormalizedShortCode(ctx, normalized)
}

func mapEvent(event string) (model.Status, error) {
	switch event {
	case "APPROVED":
		return model.StatusApproved, nil
	case "REJECTED":
		return model.StatusRejected, nil
	case "PENDING":
		return model.StatusPending, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownEvent, event)
	}
}
