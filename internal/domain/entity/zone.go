package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Zone representa una zona de almacenamiento dentro de una bodega.
// Las restricciones ambientales se heredan a sus ubicaciones; los flags
// *_controlled determinan si el rango se exige o es solo informativo.
type Zone struct {
	ID          string
	TenantID    string
	WarehouseID string
	Name        string

	Capacity     *decimal.Decimal // opcional; suma de current_quantity de sus ubicaciones no debe excederla
	CapacityUnit string

	TemperatureControlled bool
	TemperatureRange      *Range
	HumidityControlled    bool
	HumidityRange         *Range

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Range rango ambiental [Min, Max]. Válido solo si Min <= Max.
type Range struct {
	Min decimal.Decimal
	Max decimal.Decimal
}

// Valid verifica Min <= Max.
func (r Range) Valid() bool {
	return r.Min.LessThanOrEqual(r.Max)
}

// Overlaps indica si ambos rangos comparten al menos un punto.
func (r Range) Overlaps(o Range) bool {
	return !r.Min.GreaterThan(o.Max) && !o.Min.GreaterThan(r.Max)
}

// ZoneConstraints vista de restricciones que el Catalog Store expone al motor.
type ZoneConstraints struct {
	Capacity         *decimal.Decimal
	CapacityUnit     string
	TemperatureRange *Range
	HumidityRange    *Range
}
