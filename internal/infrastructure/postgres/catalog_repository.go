package postgres

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/wms-slotting/internal/application/allocation"
	"github.com/jhoicas/wms-slotting/internal/domain/entity"
)

var _ allocation.CatalogStore = (*CatalogRepo)(nil)

// CatalogRepo adaptador de solo-lectura sobre las tablas del sistema CRUD
// (item_locations, item_zones, locations, zones). El CRUD sigue siendo el
// sistema de registro de los metadatos de asignación; el motor solo los lee.
type CatalogRepo struct {
	q Querier
}

// NewCatalogRepository construye el adaptador. Pasar pool o tx (Querier).
func NewCatalogRepository(q Querier) *CatalogRepo {
	return &CatalogRepo{q: q}
}

// GetAssignmentsForItem devuelve las asignaciones de ubicación y de zona del
// artículo. La zona de cada ubicación se trae en la misma consulta para el
// control de capacidad de zona del ledger.
func (r *CatalogRepo) GetAssignmentsForItem(ctx context.Context, tenantID, itemID string) ([]*entity.ItemLocationAssignment, []*entity.ItemZoneAssignment, error) {
	const locQuery = `
		SELECT il.id, il.tenant_id, il.item_id, il.location_id, l.zone_id,
		       il.allocation_rule, il.is_preferred,
		       il.min_quantity, il.max_quantity, il.replenishment_quantity,
		       il.current_quantity, il.reserved_quantity,
		       il.picking_sequence, il.last_picked_at, il.last_replenished_at,
		       il.created_at, il.updated_at
		FROM item_locations il
		JOIN locations l ON l.id = il.location_id
		WHERE il.tenant_id = $1 AND il.item_id = $2
		ORDER BY il.id`

	rows, err := r.q.Query(ctx, locQuery, tenantID, itemID)
	if err != nil {
		return nil, nil, fmt.Errorf("item_locations de %s: %w", itemID, err)
	}
	defer rows.Close()

	var locAssigns []*entity.ItemLocationAssignment
	for rows.Next() {
		var a entity.ItemLocationAssignment
		var rule string
		if err := rows.Scan(
			&a.ID, &a.TenantID, &a.ItemID, &a.LocationID, &a.ZoneID,
			&rule, &a.IsPreferred,
			&a.MinQuantity, &a.MaxQuantity, &a.ReplenishmentQuantity,
			&a.CurrentQuantity, &a.ReservedQuantity,
			&a.PickingSequence, &a.LastPickedAt, &a.LastReplenishedAt,
			&a.CreatedAt, &a.UpdatedAt,
		); err != nil {
			return nil, nil, fmt.Errorf("scan item_locations: %w", err)
		}
		a.AllocationRule = entity.AllocationRule(rule)
		locAssigns = append(locAssigns, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("item_locations de %s: %w", itemID, err)
	}

	const zoneQuery = `
		SELECT id, tenant_id, item_id, zone_id, allocation_rule, is_preferred,
		       min_quantity, max_quantity, replenishment_quantity, picking_sequence,
		       created_at, updated_at
		FROM item_zones
		WHERE tenant_id = $1 AND item_id = $2
		ORDER BY id`

	zrows, err := r.q.Query(ctx, zoneQuery, tenantID, itemID)
	if err != nil {
		return nil, nil, fmt.Errorf("item_zones de %s: %w", itemID, err)
	}
	defer zrows.Close()

	var zoneAssigns []*entity.ItemZoneAssignment
	for zrows.Next() {
		var za entity.ItemZoneAssignment
		var rule string
		if err := zrows.Scan(
			&za.ID, &za.TenantID, &za.ItemID, &za.ZoneID, &rule, &za.IsPreferred,
			&za.MinQuantity, &za.MaxQuantity, &za.ReplenishmentQuantity, &za.PickingSequence,
			&za.CreatedAt, &za.UpdatedAt,
		); err != nil {
			return nil, nil, fmt.Errorf("scan item_zones: %w", err)
		}
		za.AllocationRule = entity.AllocationRule(rule)
		zoneAssigns = append(zoneAssigns, &za)
	}
	if err := zrows.Err(); err != nil {
		return nil, nil, fmt.Errorf("item_zones de %s: %w", itemID, err)
	}

	return locAssigns, zoneAssigns, nil
}

// ListZoneLocations devuelve las ubicaciones físicas de una zona (respaldo de
// las asignaciones a nivel de zona).
func (r *CatalogRepo) ListZoneLocations(ctx context.Context, tenantID, zoneID string) ([]*entity.Location, error) {
	const query = `
		SELECT id, tenant_id, zone_id, code, capacity, capacity_unit, created_at, updated_at
		FROM locations
		WHERE tenant_id = $1 AND zone_id = $2
		ORDER BY id`

	rows, err := r.q.Query(ctx, query, tenantID, zoneID)
	if err != nil {
		return nil, fmt.Errorf("ubicaciones de zona %s: %w", zoneID, err)
	}
	defer rows.Close()

	var locations []*entity.Location
	for rows.Next() {
		var loc entity.Location
		if err := rows.Scan(
			&loc.ID, &loc.TenantID, &loc.ZoneID, &loc.Code,
			&loc.Capacity, &loc.CapacityUnit, &loc.CreatedAt, &loc.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan locations: %w", err)
		}
		locations = append(locations, &loc)
	}
	return locations, rows.Err()
}

// GetLocationConstraints restricciones de una ubicación: capacidad propia más
// rangos ambientales heredados de la zona (solo cuando la zona los controla).
func (r *CatalogRepo) GetLocationConstraints(ctx context.Context, locationID string) (*entity.LocationConstraints, error) {
	const query = `
		SELECT l.capacity, l.capacity_unit,
		       z.temperature_controlled, z.min_temperature, z.max_temperature,
		       z.humidity_controlled, z.min_humidity, z.max_humidity
		FROM locations l
		JOIN zones z ON z.id = l.zone_id
		WHERE l.id = $1`

	var c entity.LocationConstraints
	var tempControlled, humControlled bool
	var tMin, tMax, hMin, hMax *decimal.Decimal
	err := r.q.QueryRow(ctx, query, locationID).Scan(
		&c.Capacity, &c.CapacityUnit,
		&tempControlled, &tMin, &tMax,
		&humControlled, &hMin, &hMax,
	)
	if err != nil {
		return nil, translateErr(fmt.Errorf("restricciones de %s: %w", locationID, err))
	}
	c.TemperatureRange = rangeOf(tempControlled, tMin, tMax)
	c.HumidityRange = rangeOf(humControlled, hMin, hMax)
	return &c, nil
}

// GetZoneConstraints restricciones de una zona.
func (r *CatalogRepo) GetZoneConstraints(ctx context.Context, zoneID string) (*entity.ZoneConstraints, error) {
	const query = `
		SELECT capacity, capacity_unit,
		       temperature_controlled, min_temperature, max_temperature,
		       humidity_controlled, min_humidity, max_humidity
		FROM zones
		WHERE id = $1`

	var c entity.ZoneConstraints
	var tempControlled, humControlled bool
	var tMin, tMax, hMin, hMax *decimal.Decimal
	err := r.q.QueryRow(ctx, query, zoneID).Scan(
		&c.Capacity, &c.CapacityUnit,
		&tempControlled, &tMin, &tMax,
		&humControlled, &hMin, &hMax,
	)
	if err != nil {
		return nil, translateErr(fmt.Errorf("restricciones de zona %s: %w", zoneID, err))
	}
	c.TemperatureRange = rangeOf(tempControlled, tMin, tMax)
	c.HumidityRange = rangeOf(humControlled, hMin, hMax)
	return &c, nil
}

// rangeOf arma el rango solo si la zona lo controla y ambos extremos existen;
// los flags *_controlled deciden si el rango se exige o es informativo.
func rangeOf(controlled bool, min, max *decimal.Decimal) *entity.Range {
	if !controlled || min == nil || max == nil {
		return nil
	}
	return &entity.Range{Min: *min, Max: *max}
}
