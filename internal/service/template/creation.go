// Package template orquestra as mutações remotas de templates da Meta
// disparadas pelo ciclo de vida das respostas prontas. A criação é visível
// ao usuário (erros sobem); a deleção é limpeza de melhor esforço.
package template

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/open-replykit/replykit/internal/meta"
	"github.com/open-replykit/replykit/internal/shortcode"
	"github.com/open-replykit/replykit/internal/storage/model"
)

// Categoria e idioma fixos na submissão; a Meta exige ambos e o produto
// só usa templates de marketing em espanhol.
const (
	templateCategory = "MARKETING"
	templateLanguage = "es"
)

// API é o recorte do cliente da Graph API que os orquestradores usam.
type API interface {
	GetTemplates(ctx context.Context, creds meta.Credentials) (meta.TemplateList, error)
	CreateTemplate(ctx context.Context, creds meta.Credentials, input meta.CreateTemplateInput) (meta.CreateTemplateResponse, error)
	DeleteTemplate(ctx context.Context, creds meta.Credentials, name string) (meta.DeleteTemplateResponse, error)
}

// Store é o recorte do repositório que os orquestradores escrevem.
type Store interface {
	UpdateStatus(ctx context.Context, id string, status model.Status) error
	SetRemoteTemplate(ctx context.Context, id, templateID string, status model.Status) error
}

// RemoteRejection indica que a Meta devolveu um objeto de erro para a
// submissão; o status local já foi forçado para rejected.
type RemoteRejection struct {
	Name    string
	Message string
}

func (e *RemoteRejection) Error() string {
	return fmt.Sprintf("template %s rejeitado pela Meta: %s", e.Name, e.Message)
}

type CreationService struct {
	api   API
	store Store
	log   *zap.Logger
}

func NewCreationService(api API, store Store, log *zap.Logger) *CreationService {
	return &CreationService{api: api, store: store, log: log}
}

func credentials(ch model.WhatsAppChannel) meta.Credentials {
	return meta.Credentials{AccessToken: ch.AccessToken, WABAID: ch.BusinessAccountID}
}

// Call submete o template da resposta para revisão da Meta.
//
// Com isUpdate=false, um template remoto com o mesmo nome em status
// bloqueante é colisão: marca rejected localmente sem gastar chamada de
// criação. Com isUpdate=true a resubmissão do mesmo nome é tratada pela
// Meta como atualização, então segue direto para o create.
func (s *CreationService) Call(ctx context.Context, ch model.WhatsAppChannel, cr model.CannedResponse, isUpdate bool) error {
	if !cr.ProviderBacked() {
		return nil
	}

	creds := credentials(ch)
	name := shortcode.Normalize(cr.ShortCode)

	if s.remoteBlocking(ctx, creds, name) {
		if !isUpdate {
			s.log.Warn("template: nome já existe ou está em deleção na Meta, marcando como rejeitado",
				zap.String("name", name),
				zap.String("canned_response_id", cr.ID),
			)
			if err := s.store.UpdateStatus(ctx, cr.ID, model.StatusRejected); err != nil {
				return fmt.Errorf("template: marcar rejeitado: %w", err)
			}
			return nil
		}
		s.log.Info("template: nome existe na Meta, resubmissão será tratada como atualização",
			zap.String("name", name),
		)
	}

	resp, err := s.api.CreateTemplate(ctx, creds, meta.CreateTemplateInput{
		Name:     name,
		Category: templateCategory,
		Language: templateLanguage,
		Components: []meta.Component{
			{Type: "BODY", Text: cr.Content},
		},
	})
	if err != nil {
		// Falha de transporte: força rejected e devolve o erro estruturado
		// em vez de deixar a mutação local pela metade.
		if uerr := s.store.UpdateStatus(ctx, cr.ID, model.StatusRejected); uerr != nil {
			s.log.Error("template: falha ao marcar rejeitado após erro de transporte", zap.Error(uerr))
		}
		return fmt.Errorf("template: criação de %s: %w", name, err)
	}

	if resp.Error != nil {
		if uerr := s.store.UpdateStatus(ctx, cr.ID, model.StatusRejected); uerr != nil {
			s.log.Error("template: falha ao marcar rejeitado", zap.Error(uerr))
		}
		return &RemoteRejection{Name: name, Message: resp.Error.UserFacingMessage()}
	}

	if err := s.store.SetRemoteTemplate(ctx, cr.ID, resp.ID, model.StatusPending); err != nil {
		return fmt.Errorf("template: gravar template_id: %w", err)
	}

	s.log.Info("template: submetido para revisão",
		zap.String("name", name),
		zap.String("template_id", resp.ID),
	)
	return nil
}

// Lookup busca o template remoto com o nome físico dado no escopo do canal.
func (s *CreationService) Lookup(ctx context.Context, ch model.WhatsAppChannel, name string) (meta.Template, bool, error) {
	list, err := s.api.GetTemplates(ctx, credentials(ch))
	if err != nil {
		return meta.Template{}, false, err
	}
	tpl, ok := list.FindByName(name)
	return tpl, ok, nil
}

// remoteBlocking consulta a listagem de templates e diz se já existe um com
// esse nome em status que impede recriação. Erros de consulta contam como
// "não bloqueado": a criação em si ainda vai validar do lado da Meta.
func (s *CreationService) remoteBlocking(ctx context.Context, creds meta.Credentials, name string) bool {
	list, err := s.api.GetTemplates(ctx, creds)
	if err != nil {
		s.log.Warn("template: erro ao verificar templates existentes", zap.Error(err))
		return false
	}
	tpl, ok := list.FindByName(name)
	if !ok {
		return false
	}
	return tpl.Status.Blocking()
}
