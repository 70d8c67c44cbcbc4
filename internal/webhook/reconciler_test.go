package webhook

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/open-replykit/replykit/internal/shortcode"
	"github.com/open-replykit/replykit/internal/storage"
	"github.com/open-replykit/replykit/internal/storage/model"
)

type fakeStore struct {
	byTemplateID map[string]model.CannedResponse
	byNormalized map[string]model.CannedResponse
	statuses     map[string]model.Status
}

func newFakeStore(responses ...model.CannedResponse) *fakeStore {
	f := &fakeStore{
		byTemplateID: map[string]model.CannedResponse{},
		byNormalized: map[string]model.CannedResponse{},
		statuses:     map[string]model.Status{},
	}
	for _, cr := range responses {
		if cr.TemplateID != "" {
			f.byTemplateID[cr.TemplateID] = cr
		}
		f.byNormalized[shortcode.Normalize(cr.ShortCode)] = cr
	}
	return f
}

func (f *fakeStore) GetByTemplateID(ctx context.Context, templateID string) (model.CannedResponse, error) {
	cr, ok := f.byTemplateID[templateID]
	if !ok {
		return model.CannedResponse{}, storage.ErrNotFound
	}
	return cr, nil
}

func (f *fakeStore) GetByNormalizedShortCode(ctx context.Context, normalized string) (model.CannedResponse, error) {
	cr, ok := f.byNormalized[normalized]
	if !ok {
		return model.CannedResponse{}, storage.ErrNotFound
	}
	return cr, nil
}

func (f *fakeStore) UpdateStatus(ctx context.Context, id string, status model.Status) error {
	f.statuses[id] = status
	return nil
}

func pendingResponse() model.CannedResponse {
	return model.CannedResponse{
		ID:            "cr-1",
		AccountID:     "acc-1",
		BaseShortCode: "boas_vindas",
		ShortCode:     "boas_vindas-1712345678",
		CannedType:    model.CannedTypeWhatsApp,
		Status:        model.StatusPending,
		TemplateID:    "987654",
	}
}

func TestProcessAprovadoPorTemplateID(t *testing.T) {
	store := newFakeStore(pendingResponse())
	r := NewReconciler(store, zap.NewNop())

	payload := []byte(`{
		"object": "whatsapp_business_account",
		"entry": [{
			"id": "waba-1",
			"changes": [{
				"field": "message_template_status_update",
				"value": {
					"event": "APPROVED",
					"message_template_id": 987654,
					"message_template_name": "boas_vindas_1712345678"
				}
			}]
		}]
	}`)

	if err := r.Process(context.Background(), payload); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if store.statuses["cr-1"] != model.StatusApproved {
		t.Fatalf("status: %s, esperado approved", store.statuses["cr-1"])
	}
}

func TestProcessCasaPorNomeNormalizado(t *testing.T) {
	cr := pendingResponse()
	cr.TemplateID = "" // registro anterior ao template_id
	store := newFakeStore(cr)
	r := NewReconciler(store, zap.NewNop())

	payload := []byte(`{
		"entry": [{
			"id": "waba-1",
			"changes": [{
				"value": {
					"event": "REJECTED",
					"message_template_name": "boas_vindas_1712345678"
				}
			}]
		}]
	}`)

	if err := r.Process(context.Background(), payload); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if store.statuses["cr-1"] != model.StatusRejected {
		t.Fatalf("status: %s, esperado rejected", store.statuses["cr-1"])
	}
}

func TestProcessSemCorrespondenciaNaoFalha(t *testing.T) {
	store := newFakeStore()
	r := NewReconciler(store, zap.NewNop())

	payload := []byte(`{
		"entry": [{
			"changes": [{
				"value": {"event": "APPROVED", "message_template_name": "nao_existe_1"}
			}]
		}]
	}`)

	if err := r.Process(context.Background(), payload); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(store.statuses) != 0 {
		t.Fatalf("nenhuma escrita esperada, houve %v", store.statuses)
	}
}

// Evento desconhecido é rejeitado explicitamente e não escreve status,
// mas os changes irmãos do mesmo payload continuam sendo aplicados.
func TestProcessEventoDesconhecidoNaoAbortaIrmaos(t *testing.T) {
	store := newFakeStore(pendingResponse())
	r := NewReconciler(store, zap.NewNop())

	payload := []byte(`{
		"entry": [{
			"changes": [
				{"value": {"event": "FLAGGED", "message_template_id": 987654}},
				{"value": {"event": "APPROVED", "message_template_id": 987654}}
			]
		}]
	}`)

	if err := r.Process(context.Background(), payload); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if store.statuses["cr-1"] != model.StatusApproved {
		t.Fatalf("status: %s, esperado approved", store.statuses["cr-1"])
	}
}

func TestProcessChangeSemEventoIgnorado(t *testing.T) {
	store := newFakeStore(pendingResponse())
	r := NewReconciler(store, zap.NewNop())

	payload := []byte(`{
		"entry": [{
			"changes": [{"value": {"message_template_name": "boas_vindas_1712345678"}}]
		}]
	}`)

	if err := r.Process(context.Background(), payload); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(store.statuses) != 0 {
		t.Fatalf("nenhuma escrita esperada, houve %v", store.statuses)
	}
}

func TestProcessPayloadMalformado(t *testing.T) {
	r := NewReconciler(newFakeStore(), zap.NewNop())
	if err := r.Process(context.Background(), []byte(`{invalido`)); err == nil {
		t.Fatal("esperado erro para payload malformado")
	}
}

func TestMapEvent(t *testing.T) {
	cases := []struct {
		event string
		want  model.Status
		ok    bool
	}{
		{"APPROVED", model.StatusApproved, true},
		{"REJECTED", model.StatusRejected, true},
		{"PENDING", model.StatusPending, true},
		{"DISABLED", "", false},
		{"approved", "", false},
	}
	for _, c := range cases {
		got, err := mapEvent(c.event)
		if c.ok && (err != nil || got != c.want) {
			t.Errorf("mapEvent(%q) = %v, %v", c.event, got, err)
		}
		if !c.ok && err == nil {
			t.Errorf("mapEvent(%q) deveria falhar", c.event)
		}
	}
}
