package postgres

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jhoicas/wms-slotting/internal/domain"
)

// translateErr mapea errores de pgx a errores de dominio.
func translateErr(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrNotFound
	}
	return err
}
