package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Location representa una ubicación física de almacenamiento. Pertenece a
// exactamente una zona y hereda de ella las restricciones ambientales.
type Location struct {
	ID       string
	TenantID string
	ZoneID   string
	Code     string // etiqueta física (pasillo-rack-nivel)

	Capacity     *decimal.Decimal // opcional; tope de current_quantity por artículo asignado
	CapacityUnit string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// LocationConstraints vista de restricciones de una ubicación (capacidad propia
// más rangos ambientales heredados de la zona).
type LocationConstraints struct {
	Capacity         *decimal.Decimal
	CapacityUnit     string
	TemperatureRange *Range
	HumidityRange    *Range
}
