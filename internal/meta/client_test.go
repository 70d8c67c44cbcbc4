package meta

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/open-replykit/replykit/internal/config"
)

func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(config.MetaConfig{
		BaseURL:        srv.URL,
		APIVersion:     "v22.0",
		AppID:          "app",
		AppSecret:      "secret",
		TimeoutSeconds: 5,
	}, zap.NewNop())
}

var creds = Credentials{AccessToken: "tok-123", WABAID: "waba-1"}

func TestGetTemplates(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v22.0/waba-1/message_templates" {
			t.Errorf("path inesperado: %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok-123" {
			t.Errorf("authorization inesperado: %q", got)
		}
		w.Write([]byte(`{"data":[{"id":"1","name":"boas_vindas_17","status":"APPROVED","category":"MARKETING","language":"es"}]}`))
	})

	list, err := c.GetTemplates(context.Background(), creds)
	if err != nil {
		t.Fatalf("GetTemplates: %v", err)
	}
	if len(list.Data) != 1 {
		t.Fatalf("esperado 1 template, veio %d", len(list.Data))
	}
	tpl, ok := list.FindByName("boas_vindas_17")
	if !ok || tpl.ID != "1" {
		t.Fatalf("FindByName: %+v ok=%v", tpl, ok)
	}
	if _, ok := list.FindByName("outro"); ok {
		t.Fatal("FindByName devia falhar para nome inexistente")
	}
}

func TestGetTemplatesNon2xx(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`boom`))
	})

	_, err := c.GetTemplates(context.Background(), creds)
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("esperado StatusError, veio %v", err)
	}
	if se.StatusCode != 500 || se.Body != "boom" {
		t.Fatalf("StatusError inesperado: %+v", se)
	}
}

func TestCreateTemplate(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("método inesperado: %s", r.Method)
		}
		w.Write([]byte(`{"id":"tpl-9","status":"PENDING"}`))
	})

	resp, err := c.CreateTemplate(context.Background(), creds, CreateTemplateInput{
		Name:       "boas_vindas_17",
		Category:   "MARKETING",
		Language:   "es",
		Components: []Component{{Type: "BODY", Text: "olá"}},
	})
	if err != nil {
		t.Fatalf("CreateTemplate: %v", err)
	}
	if resp.ID != "tpl-9" || resp.Error != nil {
		t.Fatalf("resposta inesperada: %+v", resp)
	}
}

// Em não-2xx com objeto de erro no corpo, o objeto volta para o chamador
// em vez de virar erro de transporte.
func TestCreateTemplateErroNoCorpo(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"message":"dup","error_user_msg":"nome já em uso"}}`))
	})

	resp, err := c.CreateTemplate(context.Background(), creds, CreateTemplateInput{Name: "x"})
	if err != nil {
		t.Fatalf("CreateTemplate: %v", err)
	}
	if resp.Error == nil {
		t.Fatal("esperado objeto de erro na resposta")
	}
	if got := resp.Error.UserFacingMessage(); got != "nome já em uso" {
		t.Fatalf("UserFacingMessage: %q", got)
	}
}

func TestDeleteTemplate(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			t.Errorf("método inesperado: %s", r.Method)
		}
		if got := r.URL.Query().Get("name"); got != "boas_vindas_17" {
			t.Errorf("query name inesperada: %q", got)
		}
		w.Write([]byte(`{"success":true}`))
	})

	resp, err := c.DeleteTemplate(context.Background(), creds, "boas_vindas_17")
	if err != nil {
		t.Fatalf("DeleteTemplate: %v", err)
	}
	if !resp.Success {
		t.Fatal("esperado success=true")
	}
}

func TestUpdateTemplate(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v22.0/waba-1/message_templates/tpl-9" {
			t.Errorf("path inesperado: %s", r.URL.Path)
		}
		w.Write([]byte(`{"id":"tpl-9","status":"PENDING"}`))
	})

	resp, err := c.UpdateTemplate(context.Background(), creds, "tpl-9", []Component{{Type: "BODY", Text: "novo"}})
	if err != nil {
		t.Fatalf("UpdateTemplate: %v", err)
	}
	if resp.ID != "tpl-9" || resp.Error != nil {
		t.Fatalf("resposta inesperada: %+v", resp)
	}
}

func TestExchangeCodeForToken(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v22.0/oauth/access_token" {
			t.Errorf("path inesperado: %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("client_id") != "app" || q.Get("client_secret") != "secret" || q.Get("code") != "abc" {
			t.Errorf("query inesperada: %v", q)
		}
		w.Write([]byte(`{"access_token":"tok-novo","token_type":"bearer","expires_in":5184000}`))
	})

	resp, err := c.ExchangeCodeForToken(context.Background(), "abc")
	if err != nil {
		t.Fatalf("ExchangeCodeForToken: %v", err)
	}
	if resp.AccessToken != "tok-novo" {
		t.Fatalf("token inesperado: %+v", resp)
	}
}

func TestPhoneVerified(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v22.0/pn-1" {
			t.Errorf("path inesperado: %s", r.URL.Path)
		}
		w.Write([]byte(`{"id":"pn-1","code_verification_status":"VERIFIED"}`))
	})

	ok, err := c.PhoneVerified(context.Background(), "tok", "pn-1")
	if err != nil {
		t.Fatalf("PhoneVerified: %v", err)
	}
	if !ok {
		t.Fatal("esperado verificado")
	}
}

func TestSubscribeWebhook(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v22.0/waba-1/subscribed_apps" {
			t.Errorf("path inesperado: %s", r.URL.Path)
		}
		w.Write([]byte(`{"success":true}`))
	})

	if err := c.SubscribeWebhook(context.Background(), creds, "https://example.com/cb", "vt"); err != nil {
		t.Fatalf("SubscribeWebhook: %v", err)
	}
}

func TestUserFacingMessageFallbacks(t *testing.T) {
	cases := []struct {
		err  *APIError
		want string
	}{
		{&APIError{UserMessage: "msg amigável", Message: "interno"}, "msg amigável"},
		{&APIError{Message: "interno"}, "interno"},
		{&APIError{}, "erro desconhecido ao criar o template na Meta"},
		{nil, ""},
	}
	for _, c := range cases {
		if got := c.err.UserFacingMessage(); got != c.want {
			t.Errorf("UserFacingMessage(%+v) = %q, esperado %q", c.err, got, c.want)
		}
	}
}
