package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Item representa un artículo almacenable (SKU). Inmutable durante una operación
// de asignación: el motor lo lee del Catalog Store y nunca lo modifica.
// Los rangos Min/Max expresan las condiciones ambientales que el artículo exige
// para almacenarse (nulos = sin exigencia).
type Item struct {
	ID       string
	TenantID string
	SKU      string
	Name     string
	UOMID    string // unidad de medida de referencia

	MinTemperature *decimal.Decimal
	MaxTemperature *decimal.Decimal
	MinHumidity    *decimal.Decimal
	MaxHumidity    *decimal.Decimal

	CreatedAt time.Time
	UpdatedAt time.Time
}

// TemperatureNeed rango de temperatura exigido; nil si el artículo no lo exige.
func (i *Item) TemperatureNeed() *Range {
	if i.MinTemperature == nil || i.MaxTemperature == nil {
		return nil
	}
	return &Range{Min: *i.MinTemperature, Max: *i.MaxTemperature}
}

// HumidityNeed rango de humedad exigido; nil si el artículo no lo exige.
func (i *Item) HumidityNeed() *Range {
	if i.MinHumidity == nil || i.MaxHumidity == nil {
		return nil
	}
	return &Range{Min: *i.MinHumidity, Max: *i.MaxHumidity}
}
