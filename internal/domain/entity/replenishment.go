package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// ReplenishmentRequest solicitud de reposición emitida al colaborador de
// fulfilment cuando el disponible de una asignación cae bajo su min_quantity.
type ReplenishmentRequest struct {
	ID         string
	TenantID   string
	ItemID     string
	LocationID string
	Quantity   decimal.Decimal // replenishment_quantity de la asignación
	Available  decimal.Decimal // disponible observado al momento del disparo
	MinQty     decimal.Decimal
	RaisedAt   time.Time
}
