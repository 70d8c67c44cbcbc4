// Package canned é o serviço de respostas prontas. Ele valida e persiste as
// mutações locais e decide, de forma explícita (sem hook de commit), qual
// operação remota cada mutação exige: criar, recriar ou deletar o template
// espelhado na Meta.
package canned

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/open-replykit/replykit/internal/service/template"
	"github.com/open-replykit/replykit/internal/shortcode"
	"github.com/open-replykit/replykit/internal/storage"
	"github.com/open-replykit/replykit/internal/storage/model"
)

// ValidationError é violação de forma ou unicidade, detectada antes de
// qualquer chamada remota e devolvida ao chamador da mutação.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

type Service struct {
	repo     storage.CannedResponseRepository
	channels storage.ChannelRepository
	creation *template.CreationService
	deletion *template.DeletionService
	log      *zap.Logger
}

func NewService(
	repo storage.CannedResponseRepository,
	channels storage.ChannelRepository,
	creation *template.CreationService,
	deletion *template.DeletionService,
	log *zap.Logger,
) *Service {
	return &Service{repo: repo, channels: channels, creation: creation, deletion: deletion, log: log}
}

type CreateInput struct {
	AccountID  string
	ShortCode  string
	Content    string
	Category   string
	InboxID    string
	CannedType model.CannedType
}

type UpdateInput struct {
	ShortCode string
	Content   string
	Category  string
	InboxID   string
	// Status opcional; quando é a única mudança, nenhuma sincronização
	// remota é disparada.
	Status model.Status
}

// UpdateOptions carrega a decisão de pular a sincronização. Parâmetro
// explícito, e não flag transiente na entidade: o efeito não vaza entre
// chamadas concorrentes sobre o mesmo registro.
type UpdateOptions struct {
	SkipSync bool
}

// Create valida, persiste e, para respostas whatsapp, dispara a criação do
// template na Meta ainda dentro da requisição. Erros do orquestrador sobem
// para o chamador; a entidade fica gravada com status rejected.
func (s *Service) Create(ctx context.Context, input CreateInput) (model.CannedResponse, error) {
	if strings.TrimSpace(input.Content) == "" {
		return model.CannedResponse{}, &ValidationError{Field: "content", Message: "não pode ficar em branco"}
	}
	if strings.TrimSpace(input.ShortCode) == "" {
		return model.CannedResponse{}, &ValidationError{Field: "short_code", Message: "não pode ficar em branco"}
	}
	if input.CannedType == "" {
		input.CannedType = model.CannedTypeGeneric
	}
	if !input.CannedType.Valid() {
		return model.CannedResponse{}, &ValidationError{Field: "canned_type", Message: "tipo desconhecido"}
	}
	if input.Category == "" {
		input.Category = "general"
	}

	cr := model.CannedResponse{
		ID:         uuid.NewString(),
		AccountID:  input.AccountID,
		ShortCode:  strings.TrimSpace(input.ShortCode),
		Content:    input.Content,
		Category:   input.Category,
		InboxID:    input.InboxID,
		CannedType: input.CannedType,
		Status:     model.StatusActive,
	}

	if cr.ProviderBacked() {
		// O código digitado vira o nome lógico; o físico ganha sufixo de
		// timestamp porque a Meta não permite reutilizar nomes deletados.
		cr.BaseShortCode = cr.ShortCode
		cr.ShortCode = shortcode.WithTimestamp(cr.BaseShortCode, time.Now())

		if err := s.ensureBaseShortCodeFree(ctx, cr.AccountID, cr.BaseShortCode, ""); err != nil {
			return model.CannedResponse{}, err
		}
	}
	if err := s.ensureShortCodeFree(ctx, cr.AccountID, cr.ShortCode, ""); err != nil {
		return model.CannedResponse{}, err
	}

	created, err := s.repo.Create(ctx, cr)
	if err != nil {
		return model.CannedResponse{}, err
	}

	if !created.ProviderBacked() {
		return created, nil
	}

	ch, ok := s.channel(ctx, created.AccountID)
	if !ok {
		return created, nil
	}

	if err := s.repo.UpdateStatus(ctx, created.ID, model.StatusPending); err != nil {
		return model.CannedResponse{}, err
	}
	syncErr := s.creation.Call(ctx, ch, created, false)

	// Recarrega para refletir status/template_id escritos pelo orquestrador.
	fresh, err := s.repo.GetByID(ctx, created.AccountID, created.ID)
	if err != nil {
		return created, syncErr
	}
	return fresh, syncErr
}

// syncKind classifica o diff de uma atualização persistida.
type syncKind int

const (
	syncNone syncKind = iota
	syncRename
	syncContent
)

func classifyChange(before, after model.CannedResponse) syncKind {
	renamed := before.InboxID != after.InboxID || before.BaseShortCode != after.BaseShortCode
	contentChanged := before.Content != after.Content

	switch {
	case renamed:
		return syncRename
	case contentChanged:
		return syncContent
	default:
		// Inclui o caso status-only: a escrita de status vinda do webhook
		// não pode reentrar no detector e disparar nova mutação remota.
		return syncNone
	}
}

// Update aplica a mutação e roda o detector de mudanças: renomeação deleta o
// template antigo e recria sob o nome novo; mudança só de conteúdo recria
// apenas se o template remoto está aprovado (a Meta não permite editar
// template aprovado no lugar); mudança só de status não sincroniza nada.
func (s *Service) Update(ctx context.Context, accountID, id string, input UpdateInput, opts UpdateOptions) (model.CannedResponse, error) {
	before, err := s.repo.GetByID(ctx, accountID, id)
	if err != nil {
		return model.CannedResponse{}, err
	}

	if strings.TrimSpace(input.Content) == "" {
		return model.CannedResponse{}, &ValidationError{Field: "content", Message: "não pode ficar em branco"}
	}
	if strings.TrimSpace(input.ShortCode) == "" {
		return model.CannedResponse{}, &ValidationError{Field: "short_code", Message: "não pode ficar em branco"}
	}
	if input.Status != "" && !input.Status.Valid() {
		return model.CannedResponse{}, &ValidationError{Field: "status", Message: "status desconhecido"}
	}

	after := before
	after.Content = input.Content
	after.InboxID = input.InboxID
	if input.Category != "" {
		after.Category = input.Category
	}
	if input.Status != "" {
		after.Status = input.Status
	}

	oldShortCode := before.ShortCode
	newCode := strings.TrimSpace(input.ShortCode)

	if after.ProviderBacked() {
		if newCode != before.BaseShortCode {
			after.BaseShortCode = newCode
			after.ShortCode = shortcode.WithTimestamp(newCode, time.Now())
			if err := s.ensureBaseShortCodeFree(ctx, accountID, newCode, id); err != nil {
				return model.CannedResponse{}, err
			}
			if err := s.ensureShortCodeFree(ctx, accountID, after.ShortCode, id); err != nil {
				return model.CannedResponse{}, err
			}
		}
	} else if newCode != before.ShortCode {
		after.ShortCode = newCode
		if err := s.ensureShortCodeFree(ctx, accountID, newCode, id); err != nil {
			return model.CannedResponse{}, err
		}
	}

	updated, err := s.repo.Update(ctx, after)
	if err != nil {
		return model.CannedResponse{}, err
	}

	if opts.SkipSync || !updated.ProviderBacked() {
		return updated, nil
	}

	kind := classifyChange(before, updated)
	if kind == syncNone {
		return updated, nil
	}

	ch, ok := s.channel(ctx, accountID)
	if !ok {
		return updated, nil
	}

	var syncErr error
	switch kind {
	case syncRename:
		syncErr = s.handleRename(ctx, ch, updated, oldShortCode)
	case syncContent:
		syncErr = s.handleContentChange(ctx, ch, updated)
	}

	fresh, err := s.repo.GetByID(ctx, accountID, id)
	if err != nil {
		return updated, syncErr
	}
	return fresh, syncErr
}

// handleRename apaga o template sob o nome ANTIGO e recria sob o novo.
// A deleção usa o short code anterior à mutação; o nome derivado da entidade
// já aponta para o código novo.
func (s *Service) handleRename(ctx context.Context, ch model.WhatsAppChannel, cr model.CannedResponse, oldShortCode string) error {
	if oldShortCode != "" {
		s.deletion.Call(ctx, ch, cr, shortcode.Normalize(oldShortCode))
	}
	if err := s.repo.UpdateStatus(ctx, cr.ID, model.StatusPending); err != nil {
		return err
	}
	return s.creation.Call(ctx, ch, cr, true)
}

// handleContentChange recria o template só quando o remoto está exatamente
// APPROVED. Pendente ou ausente: pula, para não atropelar uma revisão em
// andamento. Rejeitado também não recria (comportamento herdado do produto).
func (s *Service) handleContentChange(ctx context.Context, ch model.WhatsAppChannel, cr model.CannedResponse) error {
	name := shortcode.Normalize(cr.ShortCode)
	tpl, found, err := s.creation.Lookup(ctx, ch, name)
	if err != nil {
		s.log.Warn("canned: erro ao consultar template remoto, pulando atualização de conteúdo",
			zap.String("canned_response_id", cr.ID),
			zap.Error(err),
		)
		return nil
	}
	if !found || tpl.Status != model.RemoteStatusApproved {
		s.log.Info("canned: template não aprovado ou inexistente, pulando atualização de conteúdo",
			zap.String("canned_response_id", cr.ID),
			zap.String("name", name),
		)
		return nil
	}

	s.deletion.Call(ctx, ch, cr, "")
	if err := s.repo.UpdateStatus(ctx, cr.ID, model.StatusPending); err != nil {
		return err
	}
	// Resubmissão do mesmo nome: o template recém-deletado ainda aparece na
	// listagem como em deleção, o que não deve contar como colisão.
	return s.creation.Call(ctx, ch, cr, true)
}

// Delete remove a resposta localmente, com limpeza de melhor esforço do
// template remoto: a falha da chamada à Meta nunca impede o destroy local.
func (s *Service) Delete(ctx context.Context, accountID, id string) error {
	cr, err := s.repo.GetByID(ctx, accountID, id)
	if err != nil {
		return err
	}

	if cr.ProviderBacked() {
		if ch, ok := s.channel(ctx, accountID); ok {
			s.deletion.Call(ctx, ch, cr, "")
		}
	}

	return s.repo.Delete(ctx, accountID, id)
}

func (s *Service) Get(ctx context.Context, accountID, id string) (model.CannedResponse, error) {
	return s.repo.GetByID(ctx, accountID, id)
}

func (s *Service) List(ctx context.Context, accountID string) ([]model.CannedResponse, error) {
	return s.repo.List(ctx, accountID)
}

// Search delega ao repositório a ordenação por relevância (prefixo de
// short_code > short_code contém > conteúdo contém).
func (s *Service) Search(ctx context.Context, accountID, term string) ([]model.CannedResponse, error) {
	if strings.TrimSpace(term) == "" {
		return s.repo.List(ctx, accountID)
	}
	return s.repo.Search(ctx, accountID, term)
}

func (s *Service) ensureBaseShortCodeFree(ctx context.Context, accountID, base, selfID string) error {
	existing, err := s.repo.GetByBaseShortCode(ctx, accountID, base)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}
		return err
	}
	if existing.ID != selfID {
		return &ValidationError{Field: "short_code", Message: "já existe uma resposta whatsapp com esse código na conta"}
	}
	return nil
}

func (s *Service) ensureShortCodeFree(ctx context.Context, accountID, code, selfID string) error {
	existing, err := s.repo.GetByShortCode(ctx, accountID, code)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}
		return err
	}
	if existing.ID != selfID {
		return &ValidationError{Field: "short_code", Message: "já existe uma resposta com esse código na conta"}
	}
	return nil
}

func (s *Service) channel(ctx context.Context, accountID string) (model.WhatsAppChannel, bool) {
	ch, err := s.channels.GetByAccount(ctx, accountID)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			s.log.Error("canned: erro ao resolver canal whatsapp", zap.String("account_id", accountID), zap.Error(err))
		} else {
			s.log.Warn("canned: conta sem canal whatsapp, sincronização pulada", zap.String("account_id", accountID))
		}
		return model.WhatsAppChannel{}, false
	}
	return ch, true
}
