package template

import (
	"context"

	"go.uber.org/zap"

	"github.com/open-replykit/replykit/internal/meta"
	"github.com/open-replykit/replykit/internal/shortcode"
	"github.com/open-replykit/replykit/internal/storage/model"
)

type DeletionService struct {
	api API
	log *zap.Logger
}

func NewDeletionService(api API, log *zap.Logger) *DeletionService {
	return &DeletionService{api: api, log: log}
}

// Call remove o template remoto pelo nome. overrideName serve para apagar o
// template do short code ANTIGO durante uma renomeação, antes do código novo
// valer. Deleção nunca propaga erro: é limpeza de melhor esforço e não pode
// travar o ciclo de vida local da resposta. Retorna a resposta crua da Meta
// (nil em falha de transporte) para inspeção opcional.
func (s *DeletionService) Call(ctx context.Context, ch model.WhatsAppChannel, cr model.CannedResponse, overrideName string) *meta.DeleteTemplateResponse {
	name := overrideName
	if name == "" {
		name = shortcode.Normalize(cr.ShortCode)
	}

	resp, err := s.api.DeleteTemplate(ctx, credentials(ch), name)
	if err != nil {
		s.log.Error("template: erro ao deletar na Meta",
			zap.String("name", name),
			zap.String("canned_response_id", cr.ID),
			zap.Error(err),
		)
		return nil
	}

	if resp.Success {
		s.log.Info("template: deletado na Meta", zap.String("name", name))
	} else {
		s.log.Warn("template: Meta recusou a deleção",
			zap.String("name", name),
			zap.String("canned_response_id", cr.ID),
		)
	}
	return &resp
}
