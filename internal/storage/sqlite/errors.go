package sqlite

import (
	"database/sql"
	"errors"

	"github.com/open-replykit/replykit/internal/storage/model"
)

func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return model.ErrNotFound
	}
	return err
}
