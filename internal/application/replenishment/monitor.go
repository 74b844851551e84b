package replenishment

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/jhoicas/wms-slotting/internal/domain/entity"
	"github.com/jhoicas/wms-slotting/pkg/logger"
)

// FulfilmentNotifier colaborador externo que recibe las solicitudes de
// reposición. El motor no sabe cómo se atienden (compras, putaway interno...).
type FulfilmentNotifier interface {
	ReplenishmentRequested(ctx context.Context, req entity.ReplenishmentRequest)
	ThresholdMisconfigured(ctx context.Context, key entity.AssignmentKey, minQty decimal.Decimal)
}

// Monitor observa las mutaciones del ledger y dispara una solicitud de
// reposición cuando el disponible de una asignación cae bajo su min_quantity.
// Un marcador en vuelo por clave evita solicitudes duplicadas hasta que el
// siguiente putaway sobre esa clave lo limpia.
type Monitor struct {
	notifier FulfilmentNotifier
	log      *logger.Logger

	mu       sync.Mutex
	inflight map[entity.AssignmentKey]bool
}

// NewMonitor construye el monitor.
func NewMonitor(notifier FulfilmentNotifier, log *logger.Logger) *Monitor {
	return &Monitor{
		notifier: notifier,
		log:      log,
		inflight: make(map[entity.AssignmentKey]bool),
	}
}

// OnMutation implementa el observador del ledger.
func (m *Monitor) OnMutation(ev entity.LedgerMutation) {
	ctx := context.Background()

	// Una entrada de stock cierra el ciclo: la próxima caída vuelve a evaluar.
	if ev.Type == entity.MutationPutaway {
		m.mu.Lock()
		delete(m.inflight, ev.Key)
		m.mu.Unlock()
		return
	}

	if !ev.DecreasesStock() {
		return
	}
	if !ev.MinQuantity.GreaterThan(decimal.Zero) {
		return
	}
	if ev.Available.GreaterThanOrEqual(ev.MinQuantity) {
		return
	}

	// Umbral configurado sin cantidad de reposición: problema de datos del
	// Catalog Store; se advierte en vez de emitir una solicitud vacía.
	if !ev.ReplenishmentQuantity.GreaterThan(decimal.Zero) {
		m.log.Warn().Str("item_id", ev.Key.ItemID).Str("location_id", ev.Key.LocationID).
			Str("min_quantity", ev.MinQuantity.String()).
			Msg("min_quantity definido sin replenishment_quantity; no se emite solicitud")
		m.notifier.ThresholdMisconfigured(ctx, ev.Key, ev.MinQuantity)
		return
	}

	m.mu.Lock()
	if m.inflight[ev.Key] {
		m.mu.Unlock()
		return
	}
	m.inflight[ev.Key] = true
	m.mu.Unlock()

	req := entity.ReplenishmentRequest{
		ID:         uuid.New().String(),
		TenantID:   ev.TenantID,
		ItemID:     ev.Key.ItemID,
		LocationID: ev.Key.LocationID,
		Quantity:   ev.ReplenishmentQuantity,
		Available:  ev.Available,
		MinQty:     ev.MinQuantity,
		RaisedAt:   ev.At,
	}
	m.log.Info().Str("item_id", req.ItemID).Str("location_id", req.LocationID).
		Str("quantity", req.Quantity.String()).Msg("solicitud de reposición emitida")
	m.notifier.ReplenishmentRequested(ctx, req)
}

// Pending indica si hay una solicitud en vuelo para la clave (visible para tests
// y para el endpoint de diagnóstico).
func (m *Monitor) Pending(key entity.AssignmentKey) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.inflight[key]
}
