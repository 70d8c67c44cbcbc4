package canned

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/open-replykit/replykit/internal/meta"
	"github.com/open-replykit/replykit/internal/service/template"
	"github.com/open-replykit/replykit/internal/shortcode"
	"github.com/open-replykit/replykit/internal/storage"
	"github.com/open-replykit/replykit/internal/storage/model"
)

// memRepo implementa o repositório em memória para os testes do serviço.
type memRepo struct {
	mu    sync.Mutex
	items map[string]model.CannedResponse
}

func newMemRepo() *memRepo {
	return &memRepo{items: map[string]model.CannedResponse{}}
}

func (m *memRepo) Create(ctx context.Context, cr model.CannedResponse) (model.CannedResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[cr.ID] = cr
	return cr, nil
}

func (m *memRepo) GetByID(ctx context.Context, accountID, id string) (model.CannedResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cr, ok := m.items[id]
	if !ok || cr.AccountID != accountID {
		return model.CannedResponse{}, storage.ErrNotFound
	}
	return cr, nil
}

func (m *memRepo) GetByTemplateID(ctx context.Context, templateID string) (model.CannedResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, cr := range m.items {
		if cr.TemplateID == templateID && templateID != "" {
			return cr, nil
		}
	}
	return model.CannedResponse{}, storage.ErrNotFound
}

func (m *memRepo) GetByNormalizedShortCode(ctx context.Context, normalized string) (model.CannedResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, cr := range m.items {
		if shortcode.Normalize(cr.ShortCode) == normalized {
			return cr, nil
		}
	}
	return model.CannedResponse{}, storage.ErrNotFound
}

func (m *memRepo) GetByShortCode(ctx context.Context, accountID, code string) (model.CannedResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, cr := range m.items {
		if cr.AccountID == accountID && cr.ShortCode == code {
			return cr, nil
		}
	}
	return model.CannedResponse{}, storage.ErrNotFound
}

func (m *memRepo) GetByBaseShortCode(ctx context.Context, accountID, base string) (model.CannedResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, cr := range m.items {
		if cr.AccountID == accountID && cr.BaseShortCode == base && base != "" {
			return cr, nil
		}
	}
	return model.CannedResponse{}, storage.ErrNotFound
}

func (m *memRepo) List(ctx context.Context, accountID string) ([]model.CannedResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.CannedResponse
	for _, cr := range m.items {
		if cr.AccountID == accountID {
			out = append(out, cr)
		}
	}
	return out, nil
}

func (m *memRepo) Search(ctx context.Context, accountID, term string) ([]model.CannedResponse, error) {
	all, _ := m.List(ctx, accountID)
	var out []model.CannedResponse
	for _, cr := range all {
		if strings.Contains(cr.ShortCode, term) || strings.Contains(cr.Content, term) {
			out = append(out, cr)
		}
	}
	return out, nil
}

func (m *memRepo) Update(ctx context.Context, cr model.CannedResponse) (model.CannedResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[cr.ID]; !ok {
		return model.CannedResponse{}, storage.ErrNotFound
	}
	m.items[cr.ID] = cr
	return cr, nil
}

func (m *memRepo) UpdateStatus(ctx context.Context, id string, status model.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cr, ok := m.items[id]
	if !ok {
		return storage.ErrNotFound
	}
	cr.Status = status
	m.items[id] = cr
	return nil
}

func (m *memRepo) SetRemoteTemplate(ctx context.Context, id, templateID string, status model.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cr, ok := m.items[id]
	if !ok {
		return storage.ErrNotFound
	}
	cr.TemplateID = templateID
	cr.Status = status
	m.items[id] = cr
	return nil
}

func (m *memRepo) Delete(ctx context.Context, accountID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cr, ok := m.items[id]
	if !ok || cr.AccountID != accountID {
		return storage.ErrNotFound
	}
	delete(m.items, id)
	return nil
}

type memChannels struct {
	channels map[string]model.WhatsAppChannel
}

func (m *memChannels) Create(ctx context.Context, ch model.WhatsAppChannel) (model.WhatsAppChannel, error) {
	m.channels[ch.AccountID] = ch
	return ch, nil
}

func (m *memChannels) GetByID(ctx context.Context, id string) (model.WhatsAppChannel, error) {
	for _, ch := range m.channels {
		if ch.ID == id {
			return ch, nil
		}
	}
	return model.WhatsAppChannel{}, storage.ErrNotFound
}

func (m *memChannels) GetByAccount(ctx context.Context, accountID string) (model.WhatsAppChannel, error) {
	ch, ok := m.channels[accountID]
	if !ok {
		return model.WhatsAppChannel{}, storage.ErrNotFound
	}
	return ch, nil
}

func (m *memChannels) GetByPhoneNumberID(ctx context.Context, phoneNumberID string) (model.WhatsAppChannel, error) {
	for _, ch := range m.channels {
		if ch.PhoneNumberID == phoneNumberID {
			return ch, nil
		}
	}
	return model.WhatsAppChannel{}, storage.ErrNotFound
}

func (m *memChannels) List(ctx context.Context) ([]model.WhatsAppChannel, error) { return nil, nil }
func (m *memChannels) Delete(ctx context.Context, id string) error               { return nil }

type fakeAPI struct {
	templates   meta.TemplateList
	listErr     error
	createResp  meta.CreateTemplateResponse
	createErr   error
	deleteResp  meta.DeleteTemplateResponse
	deleteErr   error
	createCalls []meta.CreateTemplateInput
	deleteCalls []string
}

func (f *fakeAPI) GetTemplates(ctx context.Context, creds meta.Credentials) (meta.TemplateList, error) {
	return f.templates, f.listErr
}

func (f *fakeAPI) CreateTemplate(ctx context.Context, creds meta.Credentials, input meta.CreateTemplateInput) (meta.CreateTemplateResponse, error) {
	f.createCalls = append(f.createCalls, input)
	return f.createResp, f.createErr
}

func (f *fakeAPI) DeleteTemplate(ctx context.Context, creds meta.Credentials, name string) (meta.DeleteTemplateResponse, error) {
	f.deleteCalls = append(f.deleteCalls, name)
	return f.deleteResp, f.deleteErr
}

func newTestService(api *fakeAPI, withChannel bool) (*Service, *memRepo) {
	repo := newMemRepo()
	log := zap.NewNop()
	channels := &memChannels{channels: map[string]model.WhatsAppChannel{}}
	if withChannel {
		channels.channels["acc-1"] = model.WhatsAppChannel{
			ID: "ch-1", AccountID: "acc-1",
			AccessToken: "tok", BusinessAccountID: "waba-1",
		}
	}
	creation := template.NewCreationService(api, repo, log)
	deletion := template.NewDeletionService(api, log)
	return NewService(repo, channels, creation, deletion, log), repo
}

func whatsappInput() CreateInput {
	return CreateInput{
		AccountID:  "acc-1",
		ShortCode:  "Hello World",
		Content:    "Olá! Como podemos ajudar?",
		CannedType: model.CannedTypeWhatsApp,
	}
}

func TestCreateGenericaNaoSincroniza(t *testing.T) {
	api := &fakeAPI{}
	svc, _ := newTestService(api, true)

	cr, err := svc.Create(context.Background(), CreateInput{
		AccountID: "acc-1", ShortCode: "oi", Content: "olá",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if cr.Status != model.StatusActive {
		t.Errorf("status: %s", cr.Status)
	}
	if cr.BaseShortCode != "" || cr.TemplateID != "" {
		t.Errorf("resposta genérica não deve ter base_short_code/template_id: %+v", cr)
	}
	if len(api.createCalls) != 0 {
		t.Error("nenhuma chamada remota esperada")
	}
}

// Cenário A: criação whatsapp gera nome físico com timestamp, chama a Meta
// e termina pending com template_id preenchido.
func TestCreateWhatsapp(t *testing.T) {
	api := &fakeAPI{createResp: meta.CreateTemplateResponse{ID: "tpl-1", Status: "PENDING"}}
	svc, _ := newTestService(api, true)

	cr, err := svc.Create(context.Background(), whatsappInput())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if cr.BaseShortCode != "Hello World" {
		t.Errorf("base_short_code: %q", cr.BaseShortCode)
	}
	if !regexp.MustCompile(`^HelloWorld-\d+$`).MatchString(cr.ShortCode) {
		t.Errorf("short_code físico: %q", cr.ShortCode)
	}
	if cr.DisplayShortCode() != "Hello World" {
		t.Errorf("display: %q", cr.DisplayShortCode())
	}

	if len(api.createCalls) != 1 {
		t.Fatalf("chamadas de criação: %d", len(api.createCalls))
	}
	if !regexp.MustCompile(`^helloworld_\d+$`).MatchString(api.createCalls[0].Name) {
		t.Errorf("nome remoto: %q", api.createCalls[0].Name)
	}

	if cr.Status != model.StatusPending {
		t.Errorf("status: %s", cr.Status)
	}
	if cr.TemplateID != "tpl-1" {
		t.Errorf("template_id: %q", cr.TemplateID)
	}
}

func TestCreateBaseShortCodeDuplicado(t *testing.T) {
	api := &fakeAPI{createResp: meta.CreateTemplateResponse{ID: "tpl-1"}}
	svc, _ := newTestService(api, true)

	if _, err := svc.Create(context.Background(), whatsappInput()); err != nil {
		t.Fatalf("primeiro Create: %v", err)
	}

	_, err := svc.Create(context.Background(), whatsappInput())
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("esperado ValidationError, veio %v", err)
	}
}

// Cenário B: erro no corpo da resposta → rejected e a mensagem da Meta
// chega ao chamador.
func TestCreateWhatsappRejeitadoPelaMeta(t *testing.T) {
	api := &fakeAPI{createResp: meta.CreateTemplateResponse{
		Error: &meta.APIError{Message: "dup"},
	}}
	svc, _ := newTestService(api, true)

	cr, err := svc.Create(context.Background(), whatsappInput())
	if err == nil || !strings.Contains(err.Error(), "dup") {
		t.Fatalf("erro esperado contendo 'dup', veio %v", err)
	}
	if cr.Status != model.StatusRejected {
		t.Errorf("status: %s", cr.Status)
	}
}

func TestCreateWhatsappSemCanal(t *testing.T) {
	api := &fakeAPI{}
	svc, _ := newTestService(api, false)

	cr, err := svc.Create(context.Background(), whatsappInput())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if len(api.createCalls) != 0 {
		t.Error("sem canal não há chamada remota")
	}
	if cr.Status != model.StatusActive {
		t.Errorf("status: %s", cr.Status)
	}
}

func createApproved(t *testing.T, svc *Service, repo *memRepo, api *fakeAPI) model.CannedResponse {
	t.Helper()
	api.createResp = meta.CreateTemplateResponse{ID: "tpl-1", Status: "PENDING"}
	cr, err := svc.Create(context.Background(), whatsappInput())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	// Aprovação chega por webhook; aqui simulamos a escrita do reconciliador.
	if err := repo.UpdateStatus(context.Background(), cr.ID, model.StatusApproved); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	cr, err = repo.GetByID(context.Background(), cr.AccountID, cr.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	api.createCalls = nil
	api.deleteCalls = nil
	return cr
}

// Cenário D: conteúdo muda com template aprovado → exatamente um delete e
// um create, status final pending.
func TestUpdateConteudoComTemplateAprovado(t *testing.T) {
	api := &fakeAPI{}
	svc, repo := newTestService(api, true)
	cr := createApproved(t, svc, repo, api)

	api.templates = meta.TemplateList{Data: []meta.Template{
		{ID: "tpl-1", Name: shortcode.Normalize(cr.ShortCode), Status: model.RemoteStatusApproved},
	}}
	api.deleteResp = meta.DeleteTemplateResponse{Success: true}

	updated, err := svc.Update(context.Background(), "acc-1", cr.ID, UpdateInput{
		ShortCode: cr.BaseShortCode,
		Content:   "conteúdo novo",
	}, UpdateOptions{})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}

	if len(api.deleteCalls) != 1 {
		t.Fatalf("deleções: %v", api.deleteCalls)
	}
	if len(api.createCalls) != 1 {
		t.Fatalf("criações: %d", len(api.createCalls))
	}
	if api.createCalls[0].Components[0].Text != "conteúdo novo" {
		t.Errorf("corpo enviado: %q", api.createCalls[0].Components[0].Text)
	}
	if updated.Status != model.StatusPending {
		t.Errorf("status: %s", updated.Status)
	}
}

// Cenário E: conteúdo muda com template ainda pendente → nenhuma chamada
// remota, para não atropelar a revisão em andamento.
func TestUpdateConteudoComTemplatePendente(t *testing.T) {
	api := &fakeAPI{}
	svc, repo := newTestService(api, true)
	cr := createApproved(t, svc, repo, api)
	if err := repo.UpdateStatus(context.Background(), cr.ID, model.StatusPending); err != nil {
		t.Fatal(err)
	}

	api.templates = meta.TemplateList{Data: []meta.Template{
		{ID: "tpl-1", Name: shortcode.Normalize(cr.ShortCode), Status: model.RemoteStatusPending},
	}}

	if _, err := svc.Update(context.Background(), "acc-1", cr.ID, UpdateInput{
		ShortCode: cr.BaseShortCode,
		Content:   "outro conteúdo",
	}, UpdateOptions{}); err != nil {
		t.Fatalf("Update: %v", err)
	}

	if len(api.deleteCalls) != 0 || len(api.createCalls) != 0 {
		t.Fatalf("nenhuma chamada esperada: del=%v create=%d", api.deleteCalls, len(api.createCalls))
	}
}

// Renomear deleta o template sob o nome antigo e recria sob o novo.
func TestUpdateRenomeia(t *testing.T) {
	api := &fakeAPI{}
	svc, repo := newTestService(api, true)
	cr := createApproved(t, svc, repo, api)
	oldNormalized := shortcode.Normalize(cr.ShortCode)

	api.createResp = meta.CreateTemplateResponse{ID: "tpl-2", Status: "PENDING"}
	api.deleteResp = meta.DeleteTemplateResponse{Success: true}

	updated, err := svc.Update(context.Background(), "acc-1", cr.ID, UpdateInput{
		ShortCode: "Despedida",
		Content:   cr.Content,
	}, UpdateOptions{})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}

	if len(api.deleteCalls) != 1 || api.deleteCalls[0] != oldNormalized {
		t.Fatalf("deleções: %v, esperado [%s]", api.deleteCalls, oldNormalized)
	}
	if len(api.createCalls) != 1 {
		t.Fatalf("criações: %d", len(api.createCalls))
	}
	if !regexp.MustCompile(`^despedida_\d+$`).MatchString(api.createCalls[0].Name) {
		t.Errorf("nome novo: %q", api.createCalls[0].Name)
	}

	if updated.BaseShortCode != "Despedida" {
		t.Errorf("base_short_code: %q", updated.BaseShortCode)
	}
	if !regexp.MustCompile(`^Despedida-\d+$`).MatchString(updated.ShortCode) {
		t.Errorf("short_code: %q", updated.ShortCode)
	}
	if updated.Status != model.StatusPending {
		t.Errorf("status: %s", updated.Status)
	}
	if updated.TemplateID != "tpl-2" {
		t.Errorf("template_id: %q", updated.TemplateID)
	}
}

// Mudança só de status não reentra no detector: a escrita vinda do webhook
// não pode disparar nova mutação remota.
func TestUpdateSomenteStatusNaoSincroniza(t *testing.T) {
	api := &fakeAPI{}
	svc, repo := newTestService(api, true)
	cr := createApproved(t, svc, repo, api)

	if _, err := svc.Update(context.Background(), "acc-1", cr.ID, UpdateInput{
		ShortCode: cr.BaseShortCode,
		Content:   cr.Content,
		Status:    model.StatusRejected,
	}, UpdateOptions{}); err != nil {
		t.Fatalf("Update: %v", err)
	}

	if len(api.deleteCalls) != 0 || len(api.createCalls) != 0 {
		t.Fatal("mudança só de status não deve chamar a Meta")
	}
}

func TestUpdateComSkipSync(t *testing.T) {
	api := &fakeAPI{}
	svc, repo := newTestService(api, true)
	cr := createApproved(t, svc, repo, api)

	if _, err := svc.Update(context.Background(), "acc-1", cr.ID, UpdateInput{
		ShortCode: cr.BaseShortCode,
		Content:   "mudou mas não sincroniza",
	}, UpdateOptions{SkipSync: true}); err != nil {
		t.Fatalf("Update: %v", err)
	}

	if len(api.deleteCalls) != 0 || len(api.createCalls) != 0 {
		t.Fatal("SkipSync deve suprimir chamadas remotas")
	}
}

func TestDeleteLimpaTemplateRemoto(t *testing.T) {
	api := &fakeAPI{}
	svc, repo := newTestService(api, true)
	cr := createApproved(t, svc, repo, api)
	api.deleteResp = meta.DeleteTemplateResponse{Success: true}

	if err := svc.Delete(context.Background(), "acc-1", cr.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if len(api.deleteCalls) != 1 {
		t.Fatalf("deleções: %v", api.deleteCalls)
	}
	if _, err := repo.GetByID(context.Background(), "acc-1", cr.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("registro local deveria ter sumido: %v", err)
	}
}

// A falha da limpeza remota nunca impede o destroy local.
func TestDeleteProssegueComFalhaRemota(t *testing.T) {
	api := &fakeAPI{}
	svc, repo := newTestService(api, true)
	cr := createApproved(t, svc, repo, api)
	api.deleteErr = errors.New("network down")

	if err := svc.Delete(context.Background(), "acc-1", cr.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := repo.GetByID(context.Background(), "acc-1", cr.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("registro local deveria ter sumido: %v", err)
	}
}

func TestClassifyChange(t *testing.T) {
	base := model.CannedResponse{BaseShortCode: "a", InboxID: "i1", Content: "c", Status: model.StatusPending}

	renamed := base
	renamed.BaseShortCode = "b"
	if classifyChange(base, renamed) != syncRename {
		t.Error("mudança de base_short_code deveria ser rename")
	}

	moved := base
	moved.InboxID = "i2"
	if classifyChange(base, moved) != syncRename {
		t.Error("mudança de inbox deveria ser rename")
	}

	edited := base
	edited.Content = "novo"
	if classifyChange(base, edited) != syncContent {
		t.Error("mudança de conteúdo deveria ser content")
	}

	statusOnly := base
	statusOnly.Status = model.StatusApproved
	if classifyChange(base, statusOnly) != syncNone {
		t.Error("mudança só de status deveria ser none")
	}
}
