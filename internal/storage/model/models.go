package model

import (
	"errors"
	"time"
)

// ErrNotFound vive aqui, e não nos pacotes de driver, para que todos os
// drivers devolvam o mesmo sentinela.
var ErrNotFound = errors.New("not found")

// Status é o estado de sincronização local de uma resposta pronta.
// Para respostas do tipo whatsapp, ele espelha o último estado conhecido
// do template na Meta; a fonte da verdade é sempre o provedor.
type Status string

const (
	StatusActive   Status = "active"
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
	StatusDeleted  Status = "deleted"
)

func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusPending, StatusApproved, StatusRejected, StatusDeleted:
		return true
	}
	return false
}

type CannedType string

const (
	CannedTypeGeneric   CannedType = "generic"
	CannedTypeWhatsApp  CannedType = "whatsapp"
	CannedTypeAPI       CannedType = "api"
	CannedTypeTelegram  CannedType = "telegram"
	CannedTypeLine      CannedType = "line"
	CannedTypeMessenger CannedType = "messenger"
	CannedTypeTwitter   CannedType = "twitter"
	CannedTypeEmail     CannedType = "email"
	CannedTypeSMS       CannedType = "sms"
	CannedTypeWebsite   CannedType = "website"
)

func (t CannedType) Valid() bool {
	switch t {
	case CannedTypeGeneric, CannedTypeWhatsApp, CannedTypeAPI, CannedTypeTelegram,
		CannedTypeLine, CannedTypeMessenger, CannedTypeTwitter, CannedTypeEmail,
		CannedTypeSMS, CannedTypeWebsite:
		return true
	}
	return false
}

// RemoteStatus é o status do template do lado da Meta, como retornado
// pela listagem de templates da Graph API.
type RemoteStatus string

const (
	RemoteStatusApproved        RemoteStatus = "APPROVED"
	RemoteStatusPending         RemoteStatus = "PENDING"
	RemoteStatusRejected        RemoteStatus = "REJECTED"
	RemoteStatusDeleting        RemoteStatus = "DELETING"
	RemoteStatusPendingDeletion RemoteStatus = "PENDING_DELETION"
)

// Blocking indica se um template remoto nesse status impede a criação
// de outro template com o mesmo nome.
func (s RemoteStatus) Blocking() bool {
	switch s {
	case RemoteStatusApproved, RemoteStatusPending, RemoteStatusDeleting, RemoteStatusPendingDeletion:
		return true
	}
	return false
}

type CannedResponse struct {
	ID            string     `json:"id"`
	AccountID     string     `json:"accountId"`
	ShortCode     string     `json:"shortCode"`
	BaseShortCode string     `json:"baseShortCode,omitempty"`
	Content       string     `json:"content"`
	Category      string     `json:"category"`
	InboxID       string     `json:"inboxId,omitempty"`
	CannedType    CannedType `json:"cannedType"`
	Status        Status     `json:"status"`
	TemplateID    string     `json:"templateId,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

// ProviderBacked diz se a resposta precisa de um template espelhado na Meta.
func (c CannedResponse) ProviderBacked() bool {
	return c.CannedType == CannedTypeWhatsApp
}

// DisplayShortCode é o código mostrado ao usuário: o nome pretendido
// quando existe, senão o código físico (com sufixo de timestamp).
func (c CannedResponse) DisplayShortCode() string {
	if c.BaseShortCode != "" {
		return c.BaseShortCode
	}
	return c.ShortCode
}

// WhatsAppChannel guarda as credenciais de um canal WhatsApp Cloud API.
// É injetado nos orquestradores; nunca resolvido por lookup global.
type WhatsAppChannel struct {
	ID                 string    `json:"id"`
	AccountID          string    `json:"accountId"`
	PhoneNumber        string    `json:"phoneNumber"`
	PhoneNumberID      string    `json:"phoneNumberId"`
	BusinessAccountID  string    `json:"businessAccountId"`
	AccessToken        string    `json:"-"`
	WebhookVerifyToken string    `json:"-"`
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`
}
