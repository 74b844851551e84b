package postgres

import (
	"context"
	"time"

	"github.com/jhoicas/wms-slotting/internal/domain/entity"
	"github.com/jhoicas/wms-slotting/pkg/logger"
)

// QuantityWriter observador del ledger que refleja cada mutación de cantidades
// en item_locations, manteniendo la forma relacional del sistema CRUD
// circundante. Best-effort: un fallo de escritura se registra y no aborta la
// operación del motor (el ledger en memoria sigue siendo la fuente de verdad
// de current/reserved durante la vida del proceso).
type QuantityWriter struct {
	q   Querier
	log *logger.Logger
}

// NewQuantityWriter construye el observador de persistencia.
func NewQuantityWriter(q Querier, log *logger.Logger) *QuantityWriter {
	return &QuantityWriter{q: q, log: log}
}

// OnMutation persiste la foto post-mutación de la clave.
func (w *QuantityWriter) OnMutation(ev entity.LedgerMutation) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	const query = `
		UPDATE item_locations
		SET current_quantity = $3,
		    reserved_quantity = $4,
		    last_picked_at = CASE WHEN $5 THEN $7 ELSE last_picked_at END,
		    last_replenished_at = CASE WHEN $6 THEN $7 ELSE last_replenished_at END,
		    updated_at = now()
		WHERE item_id = $1 AND location_id = $2`

	_, err := w.q.Exec(ctx, query,
		ev.Key.ItemID, ev.Key.LocationID,
		ev.Current, ev.Reserved,
		ev.Type == entity.MutationPick,
		ev.Type == entity.MutationPutaway,
		ev.At,
	)
	if err != nil {
		w.log.Error().Err(err).Str("item_id", ev.Key.ItemID).
			Str("location_id", ev.Key.LocationID).Str("type", ev.Type).
			Msg("no se pudo reflejar la mutación en item_locations")
	}
}
