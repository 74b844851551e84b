package allocation

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/jhoicas/wms-slotting/internal/domain/entity"
)

// CatalogStore colaborador externo que aporta los hechos inmutables durante una
// operación: asignaciones artículo↔ubicación/zona, ubicaciones de una zona y
// restricciones de capacidad/ambiente. El motor nunca escribe metadatos aquí;
// el sistema CRUD circundante sigue siendo el dueño de esas tablas.
type CatalogStore interface {
	GetAssignmentsForItem(ctx context.Context, tenantID, itemID string) ([]*entity.ItemLocationAssignment, []*entity.ItemZoneAssignment, error)
	ListZoneLocations(ctx context.Context, tenantID, zoneID string) ([]*entity.Location, error)
	GetLocationConstraints(ctx context.Context, locationID string) (*entity.LocationConstraints, error)
	GetZoneConstraints(ctx context.Context, zoneID string) (*entity.ZoneConstraints, error)
}

// StorageCompatibility predicado inyectado: decide si las condiciones
// ambientales de una ubicación son compatibles con lo que exige el artículo.
// El motor no sabe de termodinámica; solo respeta el veredicto.
type StorageCompatibility interface {
	Compatible(ctx context.Context, itemID, locationID string) (bool, error)
}

// Ledger puerto hacia el Location Ledger: lectura-modificación-escritura
// atómica de current/reserved por clave (item, location).
type Ledger interface {
	Sync(ctx context.Context, a *entity.ItemLocationAssignment) (current, reserved decimal.Decimal, err error)
	RegisterZone(zoneID string, capacity *decimal.Decimal)
	Reserve(ctx context.Context, key entity.AssignmentKey, qty decimal.Decimal) (*entity.Reservation, error)
	CommitPick(ctx context.Context, reservationID string) error
	Release(ctx context.Context, reservationID string) error
	ReservationState(reservationID string) (entity.ReservationState, error)
	Putaway(ctx context.Context, key entity.AssignmentKey, qty decimal.Decimal) error
	CycleCount(ctx context.Context, key entity.AssignmentKey, newQty decimal.Decimal) (clamped decimal.Decimal, err error)
	PutawayHeadroom(ctx context.Context, key entity.AssignmentKey) (*decimal.Decimal, error)
}
