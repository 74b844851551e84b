package notify

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/jhoicas/wms-slotting/internal/application/replenishment"
	"github.com/jhoicas/wms-slotting/internal/domain/entity"
	"github.com/jhoicas/wms-slotting/pkg/logger"
)

var _ replenishment.FulfilmentNotifier = (*LogNotifier)(nil)

// LogNotifier implementación del colaborador de fulfilment que publica las
// solicitudes como eventos estructurados. El sistema de compras/putaway las
// consume desde la salida de logs (o se reemplaza por un publisher real sin
// tocar el monitor).
type LogNotifier struct {
	log *logger.Logger
}

// NewLogNotifier construye el notificador.
func NewLogNotifier(log *logger.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

// ReplenishmentRequested publica la solicitud de reposición.
func (n *LogNotifier) ReplenishmentRequested(_ context.Context, req entity.ReplenishmentRequest) {
	n.log.Info().
		Str("event", "replenishment_request").
		Str("request_id", req.ID).
		Str("tenant_id", req.TenantID).
		Str("item_id", req.ItemID).
		Str("location_id", req.LocationID).
		Str("quantity", req.Quantity.String()).
		Str("available", req.Available.String()).
		Str("min_quantity", req.MinQty.String()).
		Time("raised_at", req.RaisedAt).
		Msg("solicitud de reposición")
}

// ThresholdMisconfigured publica la advertencia de umbral mal configurado.
func (n *LogNotifier) ThresholdMisconfigured(_ context.Context, key entity.AssignmentKey, minQty decimal.Decimal) {
	n.log.Warn().
		Str("event", "misconfigured_threshold").
		Str("item_id", key.ItemID).
		Str("location_id", key.LocationID).
		Str("min_quantity", minQty.String()).
		Msg("umbral de reposición mal configurado")
}
