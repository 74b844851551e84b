package allocation

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/jhoicas/wms-slotting/internal/domain/slotting"
)

// Tipos de advertencia no fatal. Viajan adjuntas al plan junto a un resultado
// exitoso o parcial; nunca abortan la operación.
const (
	WarnUnsequencedLocation    = "unsequenced_location"    // regla *_sequence sin picking_sequence
	WarnMisconfiguredThreshold = "misconfigured_threshold" // min_quantity > 0 con replenishment_quantity vacío
	WarnAlreadyCommitted       = "already_committed"       // cancelación sobre una pata ya confirmada
	WarnReservedClamped        = "reserved_clamped"        // cycle count recortó reservas al stock físico
	WarnUnitMismatch           = "unit_mismatch"           // capacidad de zona y ubicación en unidades distintas
)

// Warning advertencia no fatal asociada a una operación del motor.
type Warning struct {
	Kind       string
	LocationID string
	Message    string
}

// Leg una pata del plan: cantidad asignada a una ubicación concreta.
// ReservationID queda vacío en putaway (no hay reserva que confirmar).
type Leg struct {
	LocationID    string
	Quantity      decimal.Decimal
	ReservationID string
}

// Plan resultado de una asignación multi-ubicación. Unmet > 0 es un resultado
// normal y reportable (stock o capacidad total insuficiente), no un error:
// el caller debe revisarlo explícitamente.
type Plan struct {
	ID        string
	TenantID  string
	ItemID    string
	Operation slotting.Operation
	Legs      []Leg
	Unmet     decimal.Decimal
	Warnings  []Warning
	CreatedAt time.Time
}

// Fulfilled cantidad efectivamente cubierta por las patas del plan.
func (p *Plan) Fulfilled() decimal.Decimal {
	total := decimal.Zero
	for _, leg := range p.Legs {
		total = total.Add(leg.Quantity)
	}
	return total
}

func (p *Plan) warn(kind, locationID, msg string) {
	p.Warnings = append(p.Warnings, Warning{Kind: kind, LocationID: locationID, Message: msg})
}
