package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// ErrorResponse respuesta de error estándar de la API.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// AllocatePickRequest petición de asignación de picking.
// Expiries inyecta el comparador FEFO: fecha de vencimiento del lote por
// ubicación, aportada por el caller (el esquema de este motor no rastrea lotes).
type AllocatePickRequest struct {
	ItemID     string               `json:"item_id"`
	Quantity   decimal.Decimal      `json:"quantity"`
	RandomSeed int64                `json:"random_seed,omitempty"`
	Expiries   map[string]time.Time `json:"expiries,omitempty"`
}

// AllocatePutawayRequest petición de asignación de putaway.
type AllocatePutawayRequest struct {
	ItemID          string          `json:"item_id"`
	Quantity        decimal.Decimal `json:"quantity"`
	PreferredZoneID string          `json:"preferred_zone_id,omitempty"`
	RandomSeed      int64           `json:"random_seed,omitempty"`
}

// CycleCountRequest sobrescritura administrativa de stock físico.
type CycleCountRequest struct {
	ItemID      string          `json:"item_id"`
	LocationID  string          `json:"location_id"`
	NewQuantity decimal.Decimal `json:"new_quantity"`
}

// LegDTO una pata del plan.
type LegDTO struct {
	LocationID    string          `json:"location_id"`
	Quantity      decimal.Decimal `json:"quantity"`
	ReservationID string          `json:"reservation_id,omitempty"`
}

// WarningDTO advertencia no fatal adjunta al resultado.
type WarningDTO struct {
	Kind       string `json:"kind"`
	LocationID string `json:"location_id,omitempty"`
	Message    string `json:"message"`
}

// PlanResponse resultado de una asignación. Unmet > 0 indica cumplimiento
// parcial: es un resultado válido, el caller decide qué hacer con el faltante.
type PlanResponse struct {
	PlanID    string          `json:"plan_id"`
	ItemID    string          `json:"item_id"`
	Operation string          `json:"operation"`
	Legs      []LegDTO        `json:"legs"`
	Unmet     decimal.Decimal `json:"unmet"`
	Warnings  []WarningDTO    `json:"warnings,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// CancelPlanResponse resultado de la cancelación de un plan.
type CancelPlanResponse struct {
	PlanID   string       `json:"plan_id"`
	Warnings []WarningDTO `json:"warnings,omitempty"`
}

// CycleCountResponse resultado del conteo cíclico.
type CycleCountResponse struct {
	ItemID      string          `json:"item_id"`
	LocationID  string          `json:"location_id"`
	NewQuantity decimal.Decimal `json:"new_quantity"`
	Warnings    []WarningDTO    `json:"warnings,omitempty"`
}
