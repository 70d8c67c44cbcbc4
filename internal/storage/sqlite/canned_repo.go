package sqlite

import (
	"context"
	"database/sql"
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
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.Conn.ExecContext(ctx, query,
		cr.ID, cr.AccountID, cr.ShortCode, nullIfEmpty(cr.BaseShortCode), cr.Content, cr.Category,
		nullIfEmpty(cr.InboxID), string(cr.CannedType), string(cr.Status), nullIfEmpty(cr.TemplateID),
		cr.CreatedAt.Format(time.RFC3339), cr.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return model.CannedResponse{}, err
	}

	return cr, nil
}

func (r *cannedRepo) scanOne(ctx context.Context, query string, args ...any) (model.CannedResponse, error) {
	var cr model.CannedResponse
	var createdAt, updatedAt string

	err := r.db.Conn.QueryRowContext(ctx, query, args...).Scan(
		&cr.ID, &cr.AccountID, &cr.ShortCode, &cr.BaseShortCode, &cr.Content, &cr.Category,
		&cr.InboxID, &cr.CannedType, &cr.Status, &cr.TemplateID,
		&createdAt, &updatedAt,
	)
	if err != nil {
		return model.CannedResponse{}, mapError(err)
	}

	cr.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	cr.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)

	return cr, nil
}

func (r *cannedRepo) GetByID(ctx context.Context, accountID, id string) (model.CannedResponse, error) {
	query := `SELECT ` + cannedColumns + ` FROM canned_responses WHERE account_id = ? AND id = ?`
	return r.scanOne(ctx, query, accountID, id)
}

func (r *cannedRepo) GetByTemplateID(ctx context.Context, templateID string) (model.CannedResponse, error) {
	query := `SELECT ` + cannedColumns + ` FROM canned_responses WHERE template_id = ?`
	return r.scanOne(ctx, query, templateID)
}

// GetByNormalizedShortCode compara a forma normalizada armazenada com o nome
// vindo do webhook. O short_code físico já está restrito a [A-Za-z0-9_-],
// então normalizar em SQL se resume a minúsculas e hífen vira underscore.
func (r *cannedRepo) GetByNormalizedShortCode(ctx context.Context, normalized string) (model.CannedResponse, error) {
	query := `
		SELECT ` + cannedColumns + `
		FROM canned_responses
		WHERE canned_type = 'whatsapp' AND LOWER(REPLACE(short_code, '-', '_')) = ?
	`
	return r.scanOne(ctx, query, normalized)
}

func (r *cannedRepo) GetByShortCode(ctx context.Context, accountID, shortCode string) (model.CannedResponse, error) {
	query := `SELECT ` + cannedColumns + ` FROM canned_responses WHERE account_id = ? AND short_code = ?`
	return r.scanOne(ctx, query, accountID, shortCode)
}

func (r *cannedRepo) GetByBaseShortCode(ctx context.Context, accountID, baseShortCode string) (model.CannedResponse, error) {
	query := `SELECT ` + cannedColumns + ` FROM canned_responses WHERE account_id = ? AND base_short_code = ?`
	return r.scanOne(ctx, query, accountID, baseShortCode)
}

func (r *cannedRepo) scanMany(ctx context.Context, query string, args ...any) ([]model.CannedResponse, error) {
	rows, err := r.db.Conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.CannedResponse
	for rows.Next() {
		var cr model.CannedResponse
		var createdAt, updatedAt string

		if err := rows.Scan(
			&cr.ID, &cr.AccountID, &cr.ShortCode, &cr.BaseShortCode, &cr.Content, &cr.Category,
			&cr.InboxID, &cr.CannedType, &cr.Status, &cr.TemplateID,
			&createdAt, &updatedAt,
		); err != nil {
			return nil, err
		}

		cr.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		cr.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)

		out = append(out, cr)
	}

	return out, rows.Err()
}

func (r *cannedRepo) List(ctx context.Context, accountID string) ([]model.CannedResponse, error) {
	query := `SELECT ` + cannedColumns + ` FROM canned_responses WHERE account_id = ? ORDER BY short_code ASC`
	return r.scanMany(ctx, query, accountID)
}

// Search ordena por relevância: prefixo de short_code pesa mais que ocorrência
// no meio do código, que pesa mais que ocorrência no conteúdo. LIKE no SQLite
// já é case-insensitive para ASCII.
func (r *cannedRepo) Search(ctx context.Context, accountID, term string) ([]model.CannedResponse, error) {
	query := `
		SELECT ` + cannedColumns + `
		FROM canned_responses
		WHERE account_id = ?
		  AND (short_code LIKE '%' || ? || '%' OR content LIKE '%' || ? || '%')
		ORDER BY
			CASE
				WHEN short_code LIKE ? || '%' THEN 1.0
				WHEN short_code LIKE '%' || ? || '%' THEN 0.5
				ELSE 0.2
			END DESC,
			short_code ASC
	`
	return r.scanMany(ctx, query, accountID, term, term, term, term)
}

func (r *cannedRepo) Update(ctx context.Context, cr model.CannedResponse) (model.CannedResponse, error) {
	cr.UpdatedAt = time.Now()

	query := `
		UPDATE canned_responses
		SET short_code = ?, base_short_code = ?, content = ?, category = ?, inbox_id = ?, canned_type = ?, status = ?, template_id = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := r.db.Conn.ExecContext(ctx, query,
		cr.ShortCode, nullIfEmpty(cr.BaseShortCode), cr.Content, cr.Category,
		nullIfEmpty(cr.InboxID), string(cr.CannedType), string(cr.Status), nullIfEmpty(cr.TemplateID),
		cr.UpdatedAt.Format(time.RFC3339), cr.ID,
	)
	if err != nil {
		return model.CannedResponse{}, err
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return model.CannedResponse{}, mapError(sql.ErrNoRows)
	}

	return cr, nil
}

func (r *cannedRepo) UpdateStatus(ctx context.Context, id string, status model.Status) error {
	query := `UPDATE canned_responses SET status = ?, updated_at = ? WHERE id = ?`
	result, err := r.db.Conn.ExecContext(ctx, query, string(status), time.Now().Format(time.RFC3339), id)
	if err != nil {
		return err
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return mapError(sql.ErrNoRows)
	}
	return nil
}

func (r *cannedRepo) SetRemoteTemplate(ctx context.Context, id, templateID string, status model.Status) error {
	query := `UPDATE canned_responses SET template_id = ?, status = ?, updated_at = ? WHERE id = ?`
	result, err := r.db.Conn.ExecContext(ctx, query, nullIfEmpty(templateID), string(status), time.Now().Format(time.RFC3339), id)
	if err != nil {
		return err
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return mapError(sql.ErrNoRows)
	}
	return nil
}

func (r *cannedRepo) Delete(ctx context.Context, accountID, id string) error {
	query := `DELETE FROM canned_responses WHERE account_id = ? AND id = ?`
	result, err := r.db.Conn.ExecContext(ctx, query, accountID, id)
	if err != nil {
		return err
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return mapError(sql.ErrNoRows)
	}
	return nil
}

func nullIfEmpty(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
