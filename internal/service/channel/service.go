// Package channel faz o onboarding dos canais WhatsApp Cloud API: troca o
// code do embedded signup por token, resolve o número na conta business,
// registra o telefone e inscreve o webhook de templates.
package channel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/open-replykit/replykit/internal/meta"
	"github.com/open-replykit/replykit/internal/storage"
	"github.com/open-replykit/replykit/internal/storage/model"
)

var ErrChannelExists = errors.New("conta já possui um canal whatsapp")

// API é o recorte do cliente da Graph API usado no onboarding.
type API interface {
	ExchangeCodeForToken(ctx context.Context, code string) (meta.TokenResponse, error)
	DebugToken(ctx context.Context, inputToken string) (json.RawMessage, error)
	FetchPhoneNumbers(ctx context.Context, creds meta.Credentials) (meta.PhoneNumberList, error)
	RegisterPhone(ctx context.Context, token, phoneNumberID, pin string) error
	PhoneVerified(ctx context.Context, token, phoneNumberID string) (bool, error)
	SubscribeWebhook(ctx context.Context, creds meta.Credentials, callbackURL, verifyToken string) error
	UnsubscribeWebhook(ctx context.Context, creds meta.Credentials) error
}

type Service struct {
	repo    storage.ChannelRepository
	api     API
	baseURL string
	log     *zap.Logger
}

func NewService(repo storage.ChannelRepository, api API, baseURL string, log *zap.Logger) *Service {
	return &Service{repo: repo, api: api, baseURL: baseURL, log: log}
}

type CreateInput struct {
	AccountID         string
	BusinessAccountID string
	PhoneNumberID     string
	// Code vem do embedded signup; quando presente, é trocado por um token.
	// AccessToken direto é o caminho para quem já tem um token de sistema.
	Code        string
	AccessToken string
	PhoneNumber string
	// Pin registra o número na Cloud API; vazio pula o registro (número já
	// registrado em outro lugar).
	Pin                string
	WebhookVerifyToken string
}

func (s *Service) Create(ctx context.Context, input CreateInput) (model.WhatsAppChannel, error) {
	if _, err := s.repo.GetByAccount(ctx, input.AccountID); err == nil {
		return model.WhatsAppChannel{}, ErrChannelExists
	} else if !errors.Is(err, storage.ErrNotFound) {
		return model.WhatsAppChannel{}, err
	}

	token := input.AccessToken
	if input.Code != "" {
		resp, err := s.api.ExchangeCodeForToken(ctx, input.Code)
		if err != nil {
			return model.WhatsAppChannel{}, fmt.Errorf("channel: troca de code por token: %w", err)
		}
		token = resp.AccessToken
	}
	if token == "" {
		return model.WhatsAppChannel{}, errors.New("channel: nem code nem access token informados")
	}

	// Sanidade do token antes de seguir; falha aqui é só aviso, a listagem
	// de números logo abaixo é quem rejeita token inválido de verdade.
	if _, err := s.api.DebugToken(ctx, token); err != nil {
		s.log.Warn("channel: debug_token falhou", zap.Error(err))
	}

	creds := meta.Credentials{AccessToken: token, WABAID: input.BusinessAccountID}

	// O número precisa pertencer à conta business; de quebra resolve o
	// display number quando o chamador não informou.
	numbers, err := s.api.FetchPhoneNumbers(ctx, creds)
	if err != nil {
		return model.WhatsAppChannel{}, fmt.Errorf("channel: listar números: %w", err)
	}
	phoneNumber := input.PhoneNumber
	found := false
	for _, n := range numbers.Data {
		if n.ID == input.PhoneNumberID {
			found = true
			if phoneNumber == "" {
				phoneNumber = n.DisplayPhoneNumber
			}
			break
		}
	}
	if !found {
		return model.WhatsAppChannel{}, fmt.Errorf("channel: número %s não pertence à conta business %s", input.PhoneNumberID, input.BusinessAccountID)
	}

	if input.Pin != "" {
		if err := s.api.RegisterPhone(ctx, token, input.PhoneNumberID, input.Pin); err != nil {
			return model.WhatsAppChannel{}, fmt.Errorf("channel: registrar número: %w", err)
		}
	}

	verified, err := s.api.PhoneVerified(ctx, token, input.PhoneNumberID)
	if err != nil {
		s.log.Warn("channel: erro ao consultar verificação do número", zap.Error(err))
	} else if !verified {
		s.log.Warn("channel: número ainda não verificado na Meta",
			zap.String("phone_number_id", input.PhoneNumberID),
		)
	}

	verifyToken := input.WebhookVerifyToken
	if verifyToken == "" {
		verifyToken = uuid.New().String()
	}

	ch, err := s.repo.Create(ctx, model.WhatsAppChannel{
		AccountID:          input.AccountID,
		PhoneNumber:        phoneNumber,
		PhoneNumberID:      input.PhoneNumberID,
		BusinessAccountID:  input.BusinessAccountID,
		AccessToken:        token,
		WebhookVerifyToken: verifyToken,
	})
	if err != nil {
		return model.WhatsAppChannel{}, err
	}

	// A inscrição do webhook é tentada depois de persistir: se falhar, o
	// canal existe e a inscrição pode ser refeita, o inverso não.
	callback := fmt.Sprintf("%s/api/webhooks/whatsapp/%s", s.baseURL, ch.PhoneNumberID)
	if err := s.api.SubscribeWebhook(ctx, creds, callback, verifyToken); err != nil {
		s.log.Error("channel: falha ao inscrever webhook",
			zap.String("channel_id", ch.ID),
			zap.String("callback", callback),
			zap.Error(err),
		)
	}

	return ch, nil
}

func (s *Service) Get(ctx context.Context, accountID, id string) (model.WhatsAppChannel, error) {
	ch, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return model.WhatsAppChannel{}, err
	}
	if ch.AccountID != accountID {
		return model.WhatsAppChannel{}, storage.ErrNotFound
	}
	return ch, nil
}

func (s *Service) List(ctx context.Context, accountID string) ([]model.WhatsAppChannel, error) {
	all, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	out := []model.WhatsAppChannel{}
	for _, ch := range all {
		if ch.AccountID == accountID {
			out = append(out, ch)
		}
	}
	return out, nil
}

// Delete desfaz a inscrição do webhook (melhor esforço) e remove o canal.
func (s *Service) Delete(ctx context.Context, accountID, id string) error {
	ch, err := s.Get(ctx, accountID, id)
	if err != nil {
		return err
	}

	creds := meta.Credentials{AccessToken: ch.AccessToken, WABAID: ch.BusinessAccountID}
	if err := s.api.UnsubscribeWebhook(ctx, creds); err != nil {
		s.log.Warn("channel: falha ao desinscrever webhook",
			zap.String("channel_id", ch.ID),
			zap.Error(err),
		)
	}

	return s.repo.Delete(ctx, ch.ID)
}
