package meta

import (
	"fmt"

	"github.com/open-replykit/replykit/internal/storage/model"
)

// Credentials identifica o escopo de uma conta business na Graph API.
// Derivadas do canal dono da resposta; injetadas a cada chamada.
type Credentials struct {
	AccessToken string
	WABAID      string
}

type Component struct {
	Type   string `json:"type"`
	Text   string `json:"text,omitempty"`
	Format string `json:"format,omitempty"`
}

type Template struct {
	ID         string             `json:"id"`
	Name       string             `json:"name"`
	Status     model.RemoteStatus `json:"status"`
	Category   string             `json:"category"`
	Language   string             `json:"language"`
	Components []Component        `json:"components,omitempty"`
}

type TemplateList struct {
	Data []Template `json:"data"`
}

// FindByName retorna o template com o nome físico dado, se existir.
func (l TemplateList) FindByName(name string) (Template, bool) {
	for _, t := range l.Data {
		if t.Name == name {
			return t, true
		}
	}
	return Template{}, false
}

type CreateTemplateInput struct {
	Name       string      `json:"name"`
	Category   string      `json:"category"`
	Language   string      `json:"language"`
	Components []Component `json:"components"`
}

// APIError é o objeto de erro que a Graph API devolve no corpo da resposta.
type APIError struct {
	Message     string `json:"message"`
	UserMessage string `json:"error_user_msg"`
	Type        string `json:"type"`
	Code        int    `json:"code"`
}

// UserFacingMessage escolhe a mensagem mais apresentável ao usuário:
// error_user_msg, depois message, senão um texto genérico.
func (e *APIError) UserFacingMessage() string {
	if e == nil {
		return ""
	}
	if e.UserMessage != "" {
		return e.UserMessage
	}
	if e.Message != "" {
		return e.Message
	}
	return "erro desconhecido ao criar o template na Meta"
}

type CreateTemplateResponse struct {
	ID     string    `json:"id"`
	Status string    `json:"status"`
	Error  *APIError `json:"error,omitempty"`
}

type DeleteTemplateResponse struct {
	Success bool      `json:"success"`
	Error   *APIError `json:"error,omitempty"`
}

type PhoneNumber struct {
	ID                     string `json:"id"`
	DisplayPhoneNumber     string `json:"display_phone_number"`
	VerifiedName           string `json:"verified_name"`
	CodeVerificationStatus string `json:"code_verification_status"`
}

type PhoneNumberList struct {
	Data []PhoneNumber `json:"data"`
}

type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// StatusError representa uma resposta não-2xx de operações em que o corpo
// não carrega um objeto de erro inspecionável (listagem, telefones, webhook).
type StatusError struct {
	Operation  string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("meta: %s: status %d: %s", e.Operation, e.StatusCode, e.Body)
}
