package sqlite

import (
	"context"
	"database/sql"
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
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.Conn.ExecContext(ctx, query,
		ch.ID, ch.AccountID, ch.PhoneNumber, ch.PhoneNumberID, ch.BusinessAccountID,
		ch.AccessToken, nullIfEmpty(ch.WebhookVerifyToken),
		ch.CreatedAt.Format(time.RFC3339), ch.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return model.WhatsAppChannel{}, err
	}

	return ch, nil
}

func (r *channelRepo) scanOne(ctx context.Context, query string, args ...any) (model.WhatsAppChannel, error) {
	var ch model.WhatsAppChannel
	var createdAt, updatedAt string

	err := r.db.Conn.QueryRowContext(ctx, query, args...).Scan(
		&ch.ID, &ch.AccountID, &ch.PhoneNumber, &ch.PhoneNumberID, &ch.BusinessAccountID,
		&ch.AccessToken, &ch.WebhookVerifyToken, &createdAt, &updatedAt,
	)
	if err != nil {
		return model.WhatsAppChannel{}, mapError(err)
	}

	ch.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	ch.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)

	return ch, nil
}

func (r *channelRepo) GetByID(ctx context.Context, id string) (model.WhatsAppChannel, error) {
	query := `SELECT ` + channelColumns + ` FROM whatsapp_channels WHERE id = ?`
	return r.scanOne(ctx, query, id)
}

func (r *channelRepo) GetByAccount(ctx context.Context, accountID string) (model.WhatsAppChannel, error) {
	query := `SELECT ` + channelColumns + ` FROM whatsapp_channels WHERE account_id = ?`
	return r.scanOne(ctx, query, accountID)
}

func (r *channelRepo) GetByPhoneNumberID(ctx context.Context, phoneNumberID string) (model.WhatsAppChannel, error) {
	query := `SELECT ` + channelColumns + ` FROM whatsapp_channels WHERE phone_number_id = ?`
	return r.scanOne(ctx, query, phoneNumberID)
}

func (r *channelRepo) List(ctx context.Context) ([]model.WhatsAppChannel, error) {
	query := `SELECT ` + channelColumns + ` FROM whatsapp_channels ORDER BY created_at DESC`

	rows, err := r.db.Conn.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var channels []model.WhatsAppChannel
	for rows.Next() {
		var ch model.WhatsAppChannel
		var createdAt, updatedAt string

		if err := rows.Scan(
			&ch.ID, &ch.AccountID, &ch.PhoneNumber, &ch.PhoneNumberID, &ch.BusinessAccountID,
			&ch.AccessToken, &ch.WebhookVerifyToken, &createdAt, &updatedAt,
		); err != nil {
			return nil, err
		}

		ch.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		ch.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)

		channels = append(channels, ch)
	}

	return channels, rows.Err()
}

func (r *channelRepo) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM whatsapp_channels WHERE id = ?`
	result, err := r.db.Conn.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return mapError(sql.ErrNoRows)
	}
	return nil
}
