package storage

import (
	"context"

	"github.com/open-replykit/replykit/internal/storage/model"
)

// ErrNotFound é o sentinela devolvido por todos os drivers; definido em model
// para que os drivers o devolvam sem importar este pacote.
var ErrNotFound = model.ErrNotFound

type CannedResponseRepository interface {
	Create(ctx context.Context, cr model.CannedResponse) (model.CannedResponse, error)
	GetByID(ctx context.Context, accountID, id string) (model.CannedResponse, error)
	// GetByTemplateID localiza pelo id remoto atribuído pela Meta.
	GetByTemplateID(ctx context.Context, templateID string) (model.CannedResponse, error)
	// GetByNormalizedShortCode compara a forma normalizada do short_code
	// com o nome vindo do webhook (separadores já colapsados).
	GetByNormalizedShortCode(ctx context.Context, normalized string) (model.CannedResponse, error)
	GetByShortCode(ctx context.Context, accountID, shortCode string) (model.CannedResponse, error)
	GetByBaseShortCode(ctx context.Context, accountID, baseShortCode string) (model.CannedResponse, error)
	List(ctx context.Context, accountID string) ([]model.CannedResponse, error)
	// Search ordena por relevância: prefixo de short_code > short_code
	// contém > conteúdo contém.
	Search(ctx context.Context, accountID, term string) ([]model.CannedResponse, error)
	Update(ctx context.Context, cr model.CannedResponse) (model.CannedResponse, error)
	// UpdateStatus escreve somente o campo status, sem tocar updated_at dos
	// demais campos; usado pelo reconciliador e pelos orquestradores.
	UpdateStatus(ctx context.Context, id string, status model.Status) error
	// SetRemoteTemplate grava o id remoto atribuído pela Meta junto com o
	// novo status, numa única escrita.
	SetRemoteTemplate(ctx context.Context, id, templateID string, status model.Status) error
	Delete(ctx context.Context, accountID, id string) error
}

type ChannelRepository interface {
	Create(ctx context.Context, ch model.WhatsAppChannel) (model.WhatsAppChannel, error)
	GetByID(ctx context.Context, id string) (model.WhatsAppChannel, error)
	GetByAccount(ctx context.Context, accountID string) (model.WhatsAppChannel, error)
	GetByPhoneNumberID(ctx context.Context, phoneNumberID string) (model.WhatsAppChannel, error)
	List(ctx context.Context) ([]model.WhatsAppChannel, error)
	Delete(ctx context.Context, id string) error
}
