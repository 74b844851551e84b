package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// ReservationState máquina de estados de una reserva:
// Proposed → Reserved → Committed (pick) o Proposed → Reserved → Released (cancelación).
// Committed y Released son terminales; operar sobre ellas falla con ErrStaleReservation.
type ReservationState string

const (
	ReservationProposed  ReservationState = "proposed"
	ReservationReserved  ReservationState = "reserved"
	ReservationCommitted ReservationState = "committed"
	ReservationReleased  ReservationState = "released"
)

// Terminal indica si el estado ya no admite transiciones.
func (s ReservationState) Terminal() bool {
	return s == ReservationCommitted || s == ReservationReleased
}

// Reservation handle opaco devuelto por el ledger al reservar cantidad.
// El estado vive dentro del ledger; esta estructura es una vista inmutable.
type Reservation struct {
	ID        string
	Key       AssignmentKey
	Quantity  decimal.Decimal
	CreatedAt time.Time
}
