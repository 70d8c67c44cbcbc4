package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/open-replykit/replykit/internal/storage/model"
)

const channelColumns = `
	id, account_id, phone_number, phone_number_id, business_account_id,
	access_token, COALESCE(webhook_verify_token, ''), created_at, updated_at
`

type channelRepo struct {
	db *DB
}

func NewChannelRepository(db *DB) *channelRepo {
	return &channelRepo{db: db}
}

func (r *channelRepo) Create(ctx context.Context, ch model.WhatsAppChannel) (model.WhatsAppChannel, error) {
	if ch.ID == "" {
		ch.ID = uuid.New().String()
	}
	now := time.Now()
	ch.CreatedAt = now
	ch.UpdatedAt = now

	query := `
		INSERT INTO whatsapp_channels (id, account_id, phone_number, phone_number_id, business_account_id, access_token, webhook_verify_token, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.db.Pool.Exec(ctx, query,
		ch.ID, ch.AccountID, ch.PhoneNumber, ch.PhoneNumberID, ch.BusinessAccountID,
		ch.AccessToken, nullIfEmpty(ch.WebhookVerifyToken), ch.CreatedAt, ch.UpdatedAt,
	)
	if err != nil {
		return model.WhatsAppChannel{}, err
	}

	return ch, nil
}

func (r *channelRepo) scanOne(ctx context.Context, query string, args ...any) (model.WhatsAppChannel, error) {
	var ch model.WhatsAppChannel
	err := r.db.Pool.QueryRow(ctx, query, args...).Scan(
		&ch.ID, &ch.AccountID, &ch.PhoneNumber, &ch.PhoneNumberID, &ch.BusinessAccountID,
		&ch.AccessToken, &ch.WebhookVerifyToken, &ch.CreatedAt, &ch.UpdatedAt,
	)
	if err != nil {
		return model.WhatsAppChannel{}, mapError(err)
	}
	return ch, nil
}

func (r *channelRepo) GetByID(ctx context.Context, id string) (model.WhatsAppChannel, error) {
	query := `SELECT ` + channelColumns + ` FROM whatsapp_channels WHERE id = $1`
	return r.scanOne(ctx, query, id)
}

func (r *channelRepo) GetByAccount(ctx context.Context, accountID string) (model.WhatsAppChannel, error) {
	query := `SELECT ` + channelColumns + ` FROM whatsapp_channels WHERE account_id = $1`
	return r.scanOne(ctx, query, accountID)
}

func (r *channelRepo) GetByPhoneNumberID(ctx context.Context, phoneNumberID string) (model.WhatsAppChannel, error) {
	query := `SELECT ` + channelColumns + ` FROM whatsapp_channels WHERE phone_number_id = $1`
	return r.scanOne(ctx, query, phoneNumberID)
}

func (r *channelRepo) List(ctx context.Context) ([]model.WhatsAppChannel, error) {
	query := `SELECT ` + channelColumns + ` FROM whatsapp_channels ORDER BY created_at DESC`

	rows, err := r.db.Pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var channels []model.WhatsAppChannel
	for rows.Next() {
		var ch model.WhatsAppChannel
		if err := rows.Scan(
			&ch.ID, &ch.AccountID, &ch.PhoneNumber, &ch.PhoneNumberID, &ch.BusinessAccountID,
			&ch.AccessToken, &ch.WebhookVerifyToken, &ch.CreatedAt, &ch.UpdatedAt,
		); err != nil {
			return nil, err
		}
		channels = append(channels, ch)
	}

	return channels, rows.Err()
}

func (r *channelRepo) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM whatsapp_channels WHERE id = $1`
	result, err := r.db.Pool.Exec(ctx, query, id)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	return nil
}
