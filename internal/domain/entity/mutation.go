package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Tipos de mutación del ledger (value object conceptual).
const (
	MutationReserve    = "reserve"
	MutationRelease    = "release"
	MutationPick       = "pick"        // commit de una reserva: baja current y reserved
	MutationPutaway    = "putaway"     // entrada de stock: sube current
	MutationCycleCount = "cycle_count" // sobrescritura administrativa de current
)

// LedgerMutation evento emitido tras cada mutación exitosa del ledger.
// Lleva la foto post-mutación más los umbrales de la asignación, para que el
// monitor de reposición decida sin volver a consultar el Catalog Store.
type LedgerMutation struct {
	Key      AssignmentKey
	TenantID string
	Type     string // reserve, release, pick, putaway, cycle_count

	Previous  decimal.Decimal // current_quantity antes de la mutación
	Current   decimal.Decimal
	Reserved  decimal.Decimal
	Available decimal.Decimal

	MinQuantity           decimal.Decimal
	ReplenishmentQuantity decimal.Decimal

	At time.Time
}

// DecreasesStock indica si la mutación redujo current_quantity
// (las únicas que pueden disparar reposición).
func (m LedgerMutation) DecreasesStock() bool {
	return m.Current.LessThan(m.Previous)
}
