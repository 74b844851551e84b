package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// AllocationRule estrategia de asignación configurada por slotting
// (enum cerrado; el ranker despacha sobre este tipo, no sobre strings sueltos).
type AllocationRule string

const (
	RuleFIFO             AllocationRule = "fifo"              // stock más antiguo primero
	RuleLIFO             AllocationRule = "lifo"              // stock más reciente primero
	RuleFEFO             AllocationRule = "fefo"              // vence primero, sale primero
	RuleRandom           AllocationRule = "random"            // barajado con semilla (reproducible)
	RuleLocationSequence AllocationRule = "location_sequence" // por picking_sequence ascendente
	RuleZoneSequence     AllocationRule = "zone_sequence"     // variante a nivel de zona
)

// Valid verifica que la regla pertenezca al enum.
func (r AllocationRule) Valid() bool {
	switch r {
	case RuleFIFO, RuleLIFO, RuleFEFO, RuleRandom, RuleLocationSequence, RuleZoneSequence:
		return true
	}
	return false
}

// Order posición estable de la regla dentro del enum. Se usa como desempate
// determinista cuando dos candidatos tienen reglas distintas.
func (r AllocationRule) Order() int {
	switch r {
	case RuleFIFO:
		return 0
	case RuleLIFO:
		return 1
	case RuleFEFO:
		return 2
	case RuleRandom:
		return 3
	case RuleLocationSequence:
		return 4
	case RuleZoneSequence:
		return 5
	}
	return 6
}

// AssignmentKey clave de exclusión mutua del ledger: par (artículo, ubicación).
type AssignmentKey struct {
	ItemID     string
	LocationID string
}

// ItemLocationAssignment asignación artículo↔ubicación (fila de item_locations).
// Una por par (item, location); a lo sumo una con IsPreferred=true por artículo.
type ItemLocationAssignment struct {
	ID         string
	TenantID   string
	ItemID     string
	LocationID string
	ZoneID     string // zona de la ubicación, desnormalizada para el control de capacidad de zona

	AllocationRule AllocationRule
	IsPreferred    bool

	MinQuantity           decimal.Decimal  // >= 0
	MaxQuantity           *decimal.Decimal // opcional; >= MinQuantity cuando está definido
	ReplenishmentQuantity decimal.Decimal  // >= 0
	CurrentQuantity       decimal.Decimal  // >= 0
	ReservedQuantity      decimal.Decimal  // 0 <= reserved <= current

	PickingSequence *int // opcional; nulo ordena al final

	LastPickedAt      *time.Time
	LastReplenishedAt *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Key devuelve la clave (item, location) de la asignación.
func (a *ItemLocationAssignment) Key() AssignmentKey {
	return AssignmentKey{ItemID: a.ItemID, LocationID: a.LocationID}
}

// AvailableQuantity cantidad disponible: current - reserved.
func (a *ItemLocationAssignment) AvailableQuantity() decimal.Decimal {
	return a.CurrentQuantity.Sub(a.ReservedQuantity)
}

// Headroom espacio restante hasta MaxQuantity; nil cuando no hay tope.
func (a *ItemLocationAssignment) Headroom() *decimal.Decimal {
	if a.MaxQuantity == nil {
		return nil
	}
	h := a.MaxQuantity.Sub(a.CurrentQuantity)
	if h.IsNegative() {
		h = decimal.Zero
	}
	return &h
}

// ItemZoneAssignment asignación artículo↔zona (fila de item_zones). Se usa como
// respaldo cuando el artículo no tiene ninguna asignación a nivel de ubicación:
// cada ubicación de la zona hereda esta regla y estos umbrales.
type ItemZoneAssignment struct {
	ID       string
	TenantID string
	ItemID   string
	ZoneID   string

	AllocationRule AllocationRule
	IsPreferred    bool

	MinQuantity           decimal.Decimal
	MaxQuantity           *decimal.Decimal
	ReplenishmentQuantity decimal.Decimal

	PickingSequence *int

	CreatedAt time.Time
	UpdatedAt time.Time
}
