// Package meta é o cliente da Graph API da Meta para gestão de templates
// de mensagem do WhatsApp Business. Sem regra de negócio: cada método é
// uma chamada HTTP síncrona; decisões ficam nos orquestradores.
package meta

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/open-replykit/replykit/internal/config"
)

type Client struct {
	baseURL   string
	version   string
	appID     string
	appSecret string
	http      *http.Client
	log       *zap.Logger
}

func NewClient(cfg config.MetaConfig, log *zap.Logger) *Client {
	return &Client{
		baseURL:   cfg.BaseURL,
		version:   cfg.APIVersion,
		appID:     cfg.AppID,
		appSecret: cfg.AppSecret,
		http: &http.Client{
			Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		},
		log: log,
	}
}

func (c *Client) endpoint(path string) string {
	return fmt.Sprintf("%s/%s/%s", c.baseURL, c.version, path)
}

func (c *Client) do(ctx context.Context, method, rawURL, token string, body any) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, nil, fmt.Errorf("meta: marshal: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("meta: new request: %w", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("meta: request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("meta: read body: %w", err)
	}
	return resp.StatusCode, respBody, nil
}

// doStrict é usado pelas operações em que qualquer não-2xx é falha.
func (c *Client) doStrict(ctx context.Context, op, method, rawURL, token string, body, out any) error {
	status, respBody, err := c.do(ctx, method, rawURL, token, body)
	if err != nil {
		return err
	}
	if status < 200 || status >= 300 {
		return &StatusError{Operation: op, StatusCode: status, Body: string(respBody)}
	}
	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("meta: %s: unmarshal: %w", op, err)
		}
	}
	return nil
}

// GetTemplates lista os templates do escopo da conta business.
func (c *Client) GetTemplates(ctx context.Context, creds Credentials) (TemplateList, error) {
	var list TemplateList
	u := c.endpoint(creds.WABAID + "/message_templates")
	if err := c.doStrict(ctx, "get_templates", http.MethodGet, u, creds.AccessToken, nil, &list); err != nil {
		return TemplateList{}, err
	}
	return list, nil
}

// CreateTemplate submete um template para revisão da Meta. O corpo é
// decodificado mesmo em não-2xx: o objeto de erro volta para inspeção do
// chamador em vez de virar falha de transporte.
func (c *Client) CreateTemplate(ctx context.Context, creds Credentials, input CreateTemplateInput) (CreateTemplateResponse, error) {
	u := c.endpoint(creds.WABAID + "/message_templates")
	status, body, err := c.do(ctx, http.MethodPost, u, creds.AccessToken, input)
	if err != nil {
		return CreateTemplateResponse{}, err
	}

	var out CreateTemplateResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return CreateTemplateResponse{}, &StatusError{Operation: "create_template", StatusCode: status, Body: string(body)}
	}

	if out.Error != nil {
		c.log.Error("meta: falha ao criar template",
			zap.String("name", input.Name),
			zap.Int("status", status),
			zap.String("error", out.Error.Message),
		)
	} else {
		c.log.Info("meta: template criado", zap.String("name", input.Name), zap.String("id", out.ID))
	}
	return out, nil
}

// UpdateTemplate reenvia os componentes de um template existente.
func (c *Client) UpdateTemplate(ctx context.Context, creds Credentials, templateID string, components []Component) (CreateTemplateResponse, error) {
	u := c.endpoint(creds.WABAID + "/message_templates/" + templateID)
	status, body, err := c.do(ctx, http.MethodPost, u, creds.AccessToken, map[string]any{"components": components})
	if err != nil {
		return CreateTemplateResponse{}, err
	}

	var out CreateTemplateResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return CreateTemplateResponse{}, &StatusError{Operation: "update_template", StatusCode: status, Body: string(body)}
	}
	if out.Error != nil {
		c.log.Error("meta: falha ao atualizar template", zap.String("template_id", templateID), zap.String("error", out.Error.Message))
	}
	return out, nil
}

// DeleteTemplate remove o template pelo nome físico.
func (c *Client) DeleteTemplate(ctx context.Context, creds Credentials, name string) (DeleteTemplateResponse, error) {
	u := fmt.Sprintf("%s?name=%s", c.endpoint(creds.WABAID+"/message_templates"), url.QueryEscape(name))
	status, body, err := c.do(ctx, http.MethodDelete, u, creds.AccessToken, nil)
	if err != nil {
		return DeleteTemplateResponse{}, err
	}

	var out DeleteTemplateResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return DeleteTemplateResponse{}, &StatusError{Operation: "delete_template", StatusCode: status, Body: string(body)}
	}
	if out.Success {
		c.log.Info("meta: template deletado", zap.String("name", name))
	} else {
		c.log.Warn("meta: falha ao deletar template", zap.String("name", name), zap.Int("status", status))
	}
	return out, nil
}

// ExchangeCodeForToken troca o code do fluxo embedded signup por um token.
func (c *Client) ExchangeCodeForToken(ctx context.Context, code string) (TokenResponse, error) {
	q := url.Values{}
	q.Set("client_id", c.appID)
	q.Set("client_secret", c.appSecret)
	q.Set("code", code)
	u := c.endpoint("oauth/access_token") + "?" + q.Encode()

	var out TokenResponse
	if err := c.doStrict(ctx, "exchange_code", http.MethodGet, u, "", nil, &out); err != nil {
		return TokenResponse{}, err
	}
	return out, nil
}

// FetchPhoneNumbers lista os números da conta business.
func (c *Client) FetchPhoneNumbers(ctx context.Context, creds Credentials) (PhoneNumberList, error) {
	u := c.endpoint(creds.WABAID + "/phone_numbers")
	var out PhoneNumberList
	if err := c.doStrict(ctx, "phone_numbers", http.MethodGet, u, creds.AccessToken, nil, &out); err != nil {
		return PhoneNumberList{}, err
	}
	return out, nil
}

// DebugToken valida um token usando o app access token (app_id|app_secret).
func (c *Client) DebugToken(ctx context.Context, inputToken string) (json.RawMessage, error) {
	q := url.Values{}
	q.Set("input_token", inputToken)
	q.Set("access_token", c.appID+"|"+c.appSecret)
	u := c.endpoint("debug_token") + "?" + q.Encode()

	var out json.RawMessage
	if err := c.doStrict(ctx, "debug_token", http.MethodGet, u, "", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// RegisterPhone registra o número na Cloud API com o PIN de verificação.
func (c *Client) RegisterPhone(ctx context.Context, token, phoneNumberID, pin string) error {
	u := c.endpoint(phoneNumberID + "/register")
	body := map[string]string{"messaging_product": "whatsapp", "pin": pin}
	return c.doStrict(ctx, "register_phone", http.MethodPost, u, token, body, nil)
}

// PhoneVerified consulta se o número já passou pela verificação de código.
func (c *Client) PhoneVerified(ctx context.Context, token, phoneNumberID string) (bool, error) {
	u := c.endpoint(phoneNumberID)
	var out struct {
		CodeVerificationStatus string `json:"code_verification_status"`
	}
	if err := c.doStrict(ctx, "phone_status", http.MethodGet, u, token, nil, &out); err != nil {
		return false, err
	}
	return out.CodeVerificationStatus == "VERIFIED", nil
}

// SubscribeWebhook aponta os webhooks da conta business para o callback dado.
func (c *Client) SubscribeWebhook(ctx context.Context, creds Credentials, callbackURL, verifyToken string) error {
	u := c.endpoint(creds.WABAID + "/subscribed_apps")
	body := map[string]string{
		"override_callback_uri": callbackURL,
		"verify_token":          verifyToken,
	}
	return c.doStrict(ctx, "subscribe_webhook", http.MethodPost, u, creds.AccessToken, body, nil)
}

// UnsubscribeWebhook remove a inscrição de webhooks da conta business.
func (c *Client) UnsubscribeWebhook(ctx context.Context, creds Credentials) error {
	u := c.endpoint(creds.WABAID + "/subscribed_apps")
	return c.doStrict(ctx, "unsubscribe_webhook", http.MethodDelete, u, creds.AccessToken, nil, nil)
}
