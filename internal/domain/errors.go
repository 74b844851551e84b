package domain

import "errors"

// Errores de dominio del motor de slotting (sin dependencias externas).
// Los fatales abortan la operación y se devuelven tal cual al caller;
// las advertencias NO son errores: viajan adjuntas al plan (ver allocation.Warning).
var (
	ErrNotFound              = errors.New("recurso no encontrado")
	ErrInvalidInput          = errors.New("entrada inválida")
	ErrInsufficientAvailable = errors.New("cantidad disponible insuficiente para reservar")
	ErrCapacityExceeded      = errors.New("capacidad de la ubicación o de la zona excedida")
	ErrNoEligibleLocation    = errors.New("el artículo no tiene asignaciones de ubicación ni de zona")
	ErrConstraintViolation   = errors.New("condiciones ambientales de la ubicación incompatibles con el artículo")
	ErrStaleReservation      = errors.New("la reserva ya fue confirmada o liberada")
	ErrContended             = errors.New("clave de asignación en contención; reintentar")
)
