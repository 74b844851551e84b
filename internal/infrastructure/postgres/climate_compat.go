package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/wms-slotting/internal/application/allocation"
	"github.com/jhoicas/wms-slotting/internal/domain"
	"github.com/jhoicas/wms-slotting/internal/domain/entity"
)

var _ allocation.StorageCompatibility = (*ClimateCompat)(nil)

// ClimateCompat predicado de compatibilidad ambiental: un artículo con
// exigencias de temperatura o humedad solo puede ir a ubicaciones cuya zona
// controla ese rango y lo solapa con el exigido. Sin exigencias, toda
// ubicación es compatible.
type ClimateCompat struct {
	q Querier
}

// NewClimateCompat construye el predicado sobre el pool o una tx.
func NewClimateCompat(q Querier) *ClimateCompat {
	return &ClimateCompat{q: q}
}

// Compatible implementa allocation.StorageCompatibility.
// Un artículo o ubicación desconocidos se tratan como compatibles: el dato
// faltante lo detectan otras capas (el catálogo no habría devuelto la asignación).
func (c *ClimateCompat) Compatible(ctx context.Context, itemID, locationID string) (bool, error) {
	item, err := c.item(ctx, itemID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return true, nil
		}
		return false, err
	}
	tempNeed, humNeed := item.TemperatureNeed(), item.HumidityNeed()
	if tempNeed == nil && humNeed == nil {
		return true, nil
	}

	zone, err := c.zoneOfLocation(ctx, locationID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return true, nil
		}
		return false, err
	}

	if tempNeed != nil {
		if !zone.TemperatureControlled || zone.TemperatureRange == nil {
			return false, nil
		}
		if !tempNeed.Overlaps(*zone.TemperatureRange) {
			return false, nil
		}
	}
	if humNeed != nil {
		if !zone.HumidityControlled || zone.HumidityRange == nil {
			return false, nil
		}
		if !humNeed.Overlaps(*zone.HumidityRange) {
			return false, nil
		}
	}
	return true, nil
}

func (c *ClimateCompat) item(ctx context.Context, itemID string) (*entity.Item, error) {
	const query = `
		SELECT id, tenant_id, sku, name,
		       min_temperature, max_temperature, min_humidity, max_humidity
		FROM items
		WHERE id = $1`

	var it entity.Item
	err := c.q.QueryRow(ctx, query, itemID).Scan(
		&it.ID, &it.TenantID, &it.SKU, &it.Name,
		&it.MinTemperature, &it.MaxTemperature, &it.MinHumidity, &it.MaxHumidity,
	)
	if err != nil {
		return nil, translateErr(fmt.Errorf("artículo %s: %w", itemID, err))
	}
	return &it, nil
}

func (c *ClimateCompat) zoneOfLocation(ctx context.Context, locationID string) (*entity.Zone, error) {
	const query = `
		SELECT z.id, z.tenant_id, z.warehouse_id, z.name,
		       z.temperature_controlled, z.min_temperature, z.max_temperature,
		       z.humidity_controlled, z.min_humidity, z.max_humidity
		FROM zones z
		JOIN locations l ON l.zone_id = z.id
		WHERE l.id = $1`

	var zn entity.Zone
	var tMin, tMax, hMin, hMax *decimal.Decimal
	err := c.q.QueryRow(ctx, query, locationID).Scan(
		&zn.ID, &zn.TenantID, &zn.WarehouseID, &zn.Name,
		&zn.TemperatureControlled, &tMin, &tMax,
		&zn.HumidityControlled, &hMin, &hMax,
	)
	if err != nil {
		return nil, translateErr(fmt.Errorf("zona de %s: %w", locationID, err))
	}
	zn.TemperatureRange = rangeOf(zn.TemperatureControlled, tMin, tMax)
	zn.HumidityRange = rangeOf(zn.HumidityControlled, hMin, hMax)
	return &zn, nil
}
