package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/open-replykit/replykit/internal/storage/model"
)

const cannedColumns = `
	id, account_id, short_code, COALESCE(base_short_code, ''), content, category,
	COALESCE(inbox_id, ''), canned_type, status, COALESCE(template_id, ''),
	created_at, updated_at
`

type cannedRepo struct {
	db *DB
}

func NewCannedRepository(db *DB) *cannedRepo {
	return &cannedRepo{db: db}
}

func (r *cannedRepo) Create(ctx context.Context, cr model.CannedResponse) (model.CannedResponse, error) {
	if cr.ID == "" {
		cr.ID = uuid.New().String()
	}
	now := time.Now()
	cr.CreatedAt = now
	cr.UpdatedAt = now

	query := `
		INSERT INTO canned_responses (id, account_id, short_code, base_short_code, content, category, inbox_id, canned_type, status, template_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err := r.db.Pool.Exec(ctx, query,
		cr.ID, cr.AccountID, cr.ShortCode, nullIfEmpty(cr.BaseShortCode), cr.Content, cr.Category,
		nullIfEmpty(cr.InboxID), string(cr.CannedType), string(cr.Status), nullIfEmpty(cr.TemplateID),
		cr.CreatedAt, cr.UpdatedAt,
	)
	if err != nil {
		return model.CannedResponse{}, err
	}

	return cr, nil
}

func (r *cannedRepo) scanOne(ctx context.Context, query string, args ...any) (model.CannedResponse, error) {
	var cr model.CannedResponse
	err := r.db.Pool.QueryRow(ctx, query, args...).Scan(
		&cr.ID, &cr.AccountID, &cr.ShortCode, &cr.BaseShortCode, &cr.Content, &cr.Category,
		&cr.InboxID, &cr.CannedType, &cr.Status, &cr.TemplateID,
		&cr.CreatedAt, &cr.UpdatedAt,
	)
	if err != nil {
		return model.CannedResponse{}, mapError(err)
	}
	return cr, nil
}

func (r *cannedRepo) GetByID(ctx context.Context, accountID, id string) (model.CannedResponse, error) {
	query := `SELECT ` + cannedColumns + ` FROM canned_responses WHERE account_id = $1 AND id = $2`
	return r.scanOne(ctx, query, accountID, id)
}

func (r *cannedRepo) GetByTemplateID(ctx context.Context, templateID string) (model.CannedResponse, error) {
	query := `SELECT ` + cannedColumns + ` FROM canned_responses WHERE template_id = $1`
	return r.scanOne(ctx, query, templateID)
}

// GetByNormalizedShortCode compara a forma normalizada armazenada com o nome
// vindo do webhook. O short_code físico já está restrito a [A-Za-z0-9_-],
// então normalizar em SQL se resume a minúsculas e hífen vira underscore.
func (r *cannedRepo) GetByNormalizedShortCode(ctx context.Context, normalized string) (model.CannedResponse, error) {
	query := `
		SELECT ` + cannedColumns + `
		FROM canned_responses
		WHERE canned_type = 'whatsapp' AND LOWER(REPLACE(short_code, '-', '_')) = $1
	`
	return r.scanOne(ctx, query, normalized)
}

func (r *cannedRepo) GetByShortCode(ctx context.Context, accountID, shortCode string) (model.CannedResponse, error) {
	query := `SELECT ` + cannedColumns + ` FROM canned_responses WHERE account_id = $1 AND short_code = $2`
	return r.scanOne(ctx, query, accountID, shortCode)
}

func (r *cannedRepo) GetByBaseShortCode(ctx context.Context, accountID, baseShortCode string) (model.CannedResponse, error) {
	query := `SELECT ` + cannedColumns + ` FROM canned_responses WHERE account_id = $1 AND base_short_code = $2`
	return r.scanOne(ctx, query, accountID, baseShortCode)
}

func (r *cannedRepo) scanMany(ctx context.Context, query string, args ...any) ([]model.CannedResponse, error) {
	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.CannedResponse
	for rows.Next() {
		var cr model.CannedResponse
		if err := rows.Scan(
			&cr.ID, &cr.AccountID, &cr.ShortCode, &cr.BaseShortCode, &cr.Content, &cr.Category,
			&cr.InboxID, &cr.CannedType, &cr.Status, &cr.TemplateID,
			&cr.CreatedAt, &cr.UpdatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, cr)
	}

	return out, rows.Err()
}

func (r *cannedRepo) List(ctx context.Context, accountID string) ([]model.CannedResponse, error) {
	query := `SELECT ` + cannedColumns + ` FROM canned_responses WHERE account_id = $1 ORDER BY short_code ASC`
	return r.scanMany(ctx, query, accountID)
}

// Search ordena por relevância: prefixo de short_code pesa mais que ocorrência
// no meio do código, que pesa mais que ocorrência no conteúdo.
func (r *cannedRepo) Search(ctx context.Context, accountID, term string) ([]model.CannedResponse, error) {
	query := `
		SELECT ` + cannedColumns + `
		FROM canned_responses
		WHERE account_id = $1
		  AND (short_code ILIKE '%' || $2 || '%' OR content ILIKE '%' || $2 || '%')
		ORDER BY
			CASE
				WHEN short_code ILIKE $2 || '%' THEN 1.0
				WHEN short_code ILIKE '%' || $2 || '%' THEN 0.5
				ELSE 0.2
			END DESC,
			short_code ASC
	`
	return r.scanMany(ctx, query, accountID, term)
}

func (r *cannedRepo) Update(ctx context.Context, cr model.CannedResponse) (model.CannedResponse, error) {
	cr.UpdatedAt = time.Now()

	query := `
		UPDATE canned_responses
		SET short_code = $2, base_short_code = $3, content = $4, category = $5, inbox_id = $6, canned_type = $7, status = $8, template_id = $9, updated_at = $10
		WHERE id = $1
	`

	result, err := r.db.Pool.Exec(ctx, query,
		cr.ID, cr.ShortCode, nullIfEmpty(cr.BaseShortCode), cr.Content, cr.Category,
		nullIfEmpty(cr.InboxID), string(cr.CannedType), string(cr.Status), nullIfEmpty(cr.TemplateID),
		cr.UpdatedAt,
	)
	if err != nil {
		return model.CannedResponse{}, err
	}
	if result.RowsAffected() == 0 {
		return model.CannedResponse{}, model.ErrNotFound
	}

	return cr, nil
}

func (r *cannedRepo) UpdateStatus(ctx context.Context, id string, status model.Status) error {
	query := `UPDATE canned_responses SET status = $2, updated_at = $3 WHERE id = $1`
	result, err := r.db.Pool.Exec(ctx, query, id, string(status), time.Now())
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	return nil
}

func (r *cannedRepo) SetRemoteTemplate(ctx context.Context, id, templateID string, status model.Status) error {
	query := `UPDATE canned_responses SET template_id = $2, status = $3, updated_at = $4 WHERE id = $1`
	result, err := r.db.Pool.Exec(ctx, query, id, nullIfEmpty(templateID), string(status), time.Now())
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	return nil
}

func (r *cannedRepo) Delete(ctx context.Context, accountID, id string) error {
	query := `DELETE FROM canned_responses WHERE account_id = $1 AND id = $2`
	result, err := r.db.Pool.Exec(ctx, query, accountID, id)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	return nil
}

func nullIfEmpty(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
