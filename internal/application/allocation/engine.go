package allocation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"github.com/shopspring/decimal"
	"github.com/jhoicas/wms-slotting/internal/domain"
	"github.com/jhoicas/wms-slotting/internal/domain/entity"
	"github.com/jhoicas/wms-slotting/internal/domain/slotting"
	"github.com/jhoicas/wms-slotting/pkg/logger"
)

// Config parámetros de reintento interno del motor. La contención por clave se
// reintenta con backoff exponencial un número acotado de veces antes de
// desistir del candidato (nunca un spin interno sin tope).
type Config struct {
	ReserveAttempts uint64        // intentos acotados por candidato (contención y re-verificación de disponible)
	RetryBase       time.Duration // backoff base entre reintentos
}

// Engine orquesta ranking + mutación del ledger para satisfacer una cantidad
// pedida repartida en una o más ubicaciones. Las patas se procesan en el orden
// determinista del ranker, que fija además un orden global de adquisición de
// locks entre planes concurrentes con candidatos solapados.
type Engine struct {
	catalog CatalogStore
	ledger  Ledger
	compat  StorageCompatibility // nil = todo compatible
	cfg     Config
	log     *logger.Logger
}

// NewEngine construye el motor. compat puede ser nil si el tenant no maneja
// condiciones de almacenamiento especiales.
func NewEngine(catalog CatalogStore, ledger Ledger, compat StorageCompatibility, cfg Config, log *logger.Logger) *Engine {
	if cfg.ReserveAttempts == 0 {
		cfg.ReserveAttempts = 3
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = 20 * time.Millisecond
	}
	return &Engine{catalog: catalog, ledger: ledger, compat: compat, cfg: cfg, log: log}
}

// PickOptions opciones por llamada de AllocatePick.
// ExpiryOf inyecta el comparador FEFO (la fecha de vencimiento vive en el
// subsistema de lotes del caller). RandomSeed hace reproducible la regla random.
type PickOptions struct {
	ExpiryOf   func(locationID string) *time.Time
	RandomSeed int64
}

// PutawayOptions opciones por llamada de AllocatePutaway. Si PreferredZoneID
// no es vacío, los candidatos fuera de esa zona solo se consideran después de
// agotar los de la zona preferida.
type PutawayOptions struct {
	PreferredZoneID string
	RandomSeed      int64
}

// AllocatePick reserva qty del artículo repartida entre los candidatos
// rankeados. Nunca sobre-reserva una ubicación; si el stock total no alcanza
// devuelve el plan con Unmet > 0 (resultado parcial válido, no error).
// Falla ErrNoEligibleLocation solo cuando el artículo no tiene ninguna
// asignación ("sin slotting" se distingue de "sin stock").
func (e *Engine) AllocatePick(ctx context.Context, tenantID, itemID string, qty decimal.Decimal, opts PickOptions) (*Plan, error) {
	if !qty.GreaterThan(decimal.Zero) {
		return nil, domain.ErrInvalidInput
	}
	plan := e.newPlan(tenantID, itemID, slotting.OperationPick)

	candidates, err := e.gatherCandidates(ctx, tenantID, itemID, plan)
	if err != nil {
		return nil, err
	}
	ranked, unsequenced := slotting.Rank(slotting.RankRequest{
		Operation:  slotting.OperationPick,
		Candidates: candidates,
		ExpiryOf:   opts.ExpiryOf,
		RandomSeed: opts.RandomSeed,
	})
	for _, locID := range unsequenced {
		plan.warn(WarnUnsequencedLocation, locID, "regla por secuencia sin picking_sequence configurado")
	}

	remaining := qty
	contendedOnly := len(ranked) > 0
	for _, cand := range ranked {
		if !remaining.GreaterThan(decimal.Zero) {
			break
		}
		leg, err := e.reserveLeg(ctx, cand, remaining)
		if err != nil {
			if errors.Is(err, domain.ErrContended) {
				// Candidato en disputa tras los reintentos: seguimos con el próximo.
				e.log.Warn().Str("item_id", itemID).Str("location_id", cand.Assignment.LocationID).
					Msg("candidato en contención, se omite")
				continue
			}
			e.rollbackLegs(ctx, plan)
			return nil, err
		}
		contendedOnly = false
		if leg == nil {
			continue // disponibilidad drenada entre ranking y reserva
		}
		plan.Legs = append(plan.Legs, *leg)
		remaining = remaining.Sub(leg.Quantity)
	}

	// Si ningún candidato pudo siquiera intentarse por contención, el resultado
	// es reintentable, no un faltante real.
	if contendedOnly && len(plan.Legs) == 0 {
		return nil, domain.ErrContended
	}

	plan.Unmet = remaining
	e.log.Info().Str("plan_id", plan.ID).Str("item_id", itemID).
		Int("legs", len(plan.Legs)).Str("unmet", plan.Unmet.String()).
		Msg("plan de picking generado")
	return plan, nil
}

// AllocatePutaway reparte qty de entrada entre candidatos con espacio
// (headroom de max_quantity y capacidad de zona) en lugar de
// disponibilidad. Las patas se aplican de inmediato: no hay reserva que
// confirmar en el camino de putaway.
func (e *Engine) AllocatePutaway(ctx context.Context, tenantID, itemID string, qty decimal.Decimal, opts PutawayOptions) (*Plan, error) {
	if !qty.GreaterThan(decimal.Zero) {
		return nil, domain.ErrInvalidInput
	}
	plan := e.newPlan(tenantID, itemID, slotting.OperationPutaway)

	candidates, err := e.gatherCandidates(ctx, tenantID, itemID, plan)
	if err != nil {
		return nil, err
	}

	// Zona preferida: se rankean por separado y los de afuera van después.
	inZone, outZone := candidates, []slotting.Candidate(nil)
	if opts.PreferredZoneID != "" {
		inZone, outZone = splitByZone(candidates, opts.PreferredZoneID)
	}
	ranked, unsequenced := slotting.Rank(slotting.RankRequest{
		Operation: slotting.OperationPutaway, Candidates: inZone, RandomSeed: opts.RandomSeed,
	})
	rankedOut, unsequencedOut := slotting.Rank(slotting.RankRequest{
		Operation: slotting.OperationPutaway, Candidates: outZone, RandomSeed: opts.RandomSeed,
	})
	ranked = append(ranked, rankedOut...)
	for _, locID := range append(unsequenced, unsequencedOut...) {
		plan.warn(WarnUnsequencedLocation, locID, "regla por secuencia sin picking_sequence configurado")
	}

	remaining := qty
	for _, cand := range ranked {
		if !remaining.GreaterThan(decimal.Zero) {
			break
		}
		leg, err := e.putawayLeg(ctx, cand, remaining)
		if err != nil {
			if errors.Is(err, domain.ErrContended) {
				continue
			}
			return nil, err
		}
		if leg == nil {
			continue
		}
		plan.Legs = append(plan.Legs, *leg)
		remaining = remaining.Sub(leg.Quantity)
	}

	plan.Unmet = remaining
	e.log.Info().Str("plan_id", plan.ID).Str("item_id", itemID).
		Int("legs", len(plan.Legs)).Str("unmet", plan.Unmet.String()).
		Msg("plan de putaway generado")
	return plan, nil
}

// CommitPlan confirma todas las patas reservadas de un plan de picking
// (reserva → committed). Las patas de putaway ya quedaron aplicadas.
func (e *Engine) CommitPlan(ctx context.Context, plan *Plan) error {
	for _, leg := range plan.Legs {
		if leg.ReservationID == "" {
			continue
		}
		if err := e.ledger.CommitPick(ctx, leg.ReservationID); err != nil {
			return fmt.Errorf("commit pata %s: %w", leg.LocationID, err)
		}
	}
	return nil
}

// CancelPlan libera las reservas de cada pata. Idempotente por pata: las ya
// liberadas se omiten; las ya confirmadas se reportan con
// AlreadyCommittedWarning en lugar de tratarse como error (la cancelación
// puede correr concurrente con el commit de otras patas del mismo plan).
func (e *Engine) CancelPlan(ctx context.Context, plan *Plan) ([]Warning, error) {
	var warnings []Warning
	for _, leg := range plan.Legs {
		if leg.ReservationID == "" {
			continue
		}
		state, err := e.ledger.ReservationState(leg.ReservationID)
		if err != nil {
			return warnings, err
		}
		switch state {
		case entity.ReservationCommitted:
			warnings = append(warnings, Warning{Kind: WarnAlreadyCommitted, LocationID: leg.LocationID,
				Message: "la pata ya fue confirmada; no se libera"})
			continue
		case entity.ReservationReleased:
			continue
		}
		if err := e.ledger.Release(ctx, leg.ReservationID); err != nil {
			if errors.Is(err, domain.ErrStaleReservation) {
				// Carrera con el commit de la misma pata: re-consultar y reportar.
				if st, serr := e.ledger.ReservationState(leg.ReservationID); serr == nil && st == entity.ReservationCommitted {
					warnings = append(warnings, Warning{Kind: WarnAlreadyCommitted, LocationID: leg.LocationID,
						Message: "la pata ya fue confirmada; no se libera"})
					continue
				}
				continue
			}
			return warnings, err
		}
	}
	return warnings, nil
}

// CycleCount sobrescritura administrativa del stock físico de una ubicación.
// Devuelve una advertencia si hubo que recortar reservas a la nueva cantidad.
func (e *Engine) CycleCount(ctx context.Context, tenantID, itemID, locationID string, newQty decimal.Decimal) ([]Warning, error) {
	locAssigns, _, err := e.catalog.GetAssignmentsForItem(ctx, tenantID, itemID)
	if err != nil {
		return nil, err
	}
	var target *entity.ItemLocationAssignment
	for _, a := range locAssigns {
		if a.LocationID == locationID {
			target = a
			break
		}
	}
	if target == nil {
		return nil, domain.ErrNoEligibleLocation
	}
	if _, _, err := e.ledger.Sync(ctx, target); err != nil && !errors.Is(err, domain.ErrContended) {
		return nil, err
	}
	clamped, err := e.cycleCountRetry(ctx, target.Key(), newQty)
	if err != nil {
		return nil, err
	}
	var warnings []Warning
	if clamped.GreaterThan(decimal.Zero) {
		warnings = append(warnings, Warning{Kind: WarnReservedClamped, LocationID: locationID,
			Message: fmt.Sprintf("reservas recortadas en %s al nuevo stock físico", clamped.String())})
		e.log.Warn().Str("item_id", itemID).Str("location_id", locationID).
			Str("clamped", clamped.String()).Msg("cycle count recortó reservas")
	}
	return warnings, nil
}

// ── Internos ──────────────────────────────────────────────────────────────────

func (e *Engine) newPlan(tenantID, itemID string, op slotting.Operation) *Plan {
	return &Plan{
		ID:        uuid.New().String(),
		TenantID:  tenantID,
		ItemID:    itemID,
		Operation: op,
		Unmet:     decimal.Zero,
		CreatedAt: time.Now(),
	}
}

// gatherCandidates arma los candidatos del artículo: asignaciones de ubicación
// o, si no existe ninguna, el respaldo a nivel de zona (cada ubicación de la
// zona hereda regla y umbrales). Registra capacidades de zona en el ledger,
// sincroniza cada clave y aplica el predicado de compatibilidad ambiental.
func (e *Engine) gatherCandidates(ctx context.Context, tenantID, itemID string, plan *Plan) ([]slotting.Candidate, error) {
	locAssigns, zoneAssigns, err := e.catalog.GetAssignmentsForItem(ctx, tenantID, itemID)
	if err != nil {
		return nil, fmt.Errorf("asignaciones de %s: %w", itemID, err)
	}
	if len(locAssigns) == 0 && len(zoneAssigns) == 0 {
		return nil, domain.ErrNoEligibleLocation
	}

	// Respaldo de zona: solo cuando no hay ninguna asignación de ubicación.
	fromZone := false
	if len(locAssigns) == 0 {
		fromZone = true
		locAssigns, err = e.expandZoneAssignments(ctx, tenantID, zoneAssigns)
		if err != nil {
			return nil, err
		}
		if len(locAssigns) == 0 {
			return nil, domain.ErrNoEligibleLocation
		}
	}

	e.registerZoneCapacities(ctx, locAssigns, plan)

	candidates := make([]slotting.Candidate, 0, len(locAssigns))
	incompatible := 0
	for _, a := range locAssigns {
		if e.compat != nil {
			ok, cerr := e.compat.Compatible(ctx, itemID, a.LocationID)
			if cerr != nil {
				return nil, fmt.Errorf("compatibilidad %s/%s: %w", itemID, a.LocationID, cerr)
			}
			if !ok {
				incompatible++
				continue
			}
		}
		// Umbral sin cantidad de reposición: el monitor nunca podrá emitir una
		// solicitud para esta clave; se reporta como dato mal configurado.
		if a.MinQuantity.GreaterThan(decimal.Zero) && !a.ReplenishmentQuantity.GreaterThan(decimal.Zero) {
			plan.warn(WarnMisconfiguredThreshold, a.LocationID, "min_quantity definido sin replenishment_quantity")
		}
		current, reserved, serr := e.ledger.Sync(ctx, a)
		if serr != nil {
			if !errors.Is(serr, domain.ErrContended) {
				return nil, serr
			}
			// Clave en disputa: usamos la foto del catálogo; la reserva re-verifica.
			current, reserved = a.CurrentQuantity, a.ReservedQuantity
		}
		candidates = append(candidates, slotting.Candidate{
			Assignment:   a,
			Available:    current.Sub(reserved),
			ZoneFallback: fromZone,
		})
	}
	if len(candidates) == 0 && incompatible > 0 {
		return nil, domain.ErrConstraintViolation
	}
	return candidates, nil
}

// expandZoneAssignments materializa una asignación de zona como candidatos por
// cada ubicación de la zona, heredando regla y umbrales (fila sintética, sin
// cantidades propias hasta que el ledger las siembre en cero).
func (e *Engine) expandZoneAssignments(ctx context.Context, tenantID string, zoneAssigns []*entity.ItemZoneAssignment) ([]*entity.ItemLocationAssignment, error) {
	var out []*entity.ItemLocationAssignment
	for _, za := range zoneAssigns {
		locations, err := e.catalog.ListZoneLocations(ctx, tenantID, za.ZoneID)
		if err != nil {
			return nil, fmt.Errorf("ubicaciones de zona %s: %w", za.ZoneID, err)
		}
		for _, loc := range locations {
			out = append(out, &entity.ItemLocationAssignment{
				ID:                    za.ID + ":" + loc.ID, // determinista para el desempate del ranker
				TenantID:              za.TenantID,
				ItemID:                za.ItemID,
				LocationID:            loc.ID,
				ZoneID:                za.ZoneID,
				AllocationRule:        za.AllocationRule,
				IsPreferred:           za.IsPreferred,
				MinQuantity:           za.MinQuantity,
				MaxQuantity:           za.MaxQuantity,
				ReplenishmentQuantity: za.ReplenishmentQuantity,
				PickingSequence:       za.PickingSequence,
			})
		}
	}
	return out, nil
}

// registerZoneCapacities informa al ledger la capacidad de cada zona candidata
// para el control de capacidad. Unidades no comparables entre zona y ubicación se marcan
// con advertencia y desactivan el control (problema de datos del Catalog Store).
func (e *Engine) registerZoneCapacities(ctx context.Context, assigns []*entity.ItemLocationAssignment, plan *Plan) {
	seen := make(map[string]bool)
	for _, a := range assigns {
		if seen[a.ZoneID] {
			continue
		}
		seen[a.ZoneID] = true
		zc, err := e.catalog.GetZoneConstraints(ctx, a.ZoneID)
		if err != nil || zc == nil || zc.Capacity == nil {
			e.ledger.RegisterZone(a.ZoneID, nil)
			continue
		}
		lc, err := e.catalog.GetLocationConstraints(ctx, a.LocationID)
		if err == nil && lc != nil && lc.CapacityUnit != "" && zc.CapacityUnit != "" && lc.CapacityUnit != zc.CapacityUnit {
			plan.warn(WarnUnitMismatch, a.LocationID,
				fmt.Sprintf("capacidad de zona en %s y de ubicación en %s; control de capacidad desactivado", zc.CapacityUnit, lc.CapacityUnit))
			e.ledger.RegisterZone(a.ZoneID, nil)
			continue
		}
		e.ledger.RegisterZone(a.ZoneID, zc.Capacity)
	}
}

// reserveLeg intenta reservar hasta remaining en el candidato, re-verificando
// la disponibilidad al momento de reservar (la foto del ranking no se confía:
// otro caller pudo drenar la ubicación en el medio). Devuelve nil sin error si
// el candidato quedó sin disponible.
func (e *Engine) reserveLeg(ctx context.Context, cand slotting.Candidate, remaining decimal.Decimal) (*Leg, error) {
	key := cand.Assignment.Key()
	take := decimal.Min(remaining, cand.Available)

	for attempt := uint64(0); attempt < e.cfg.ReserveAttempts; attempt++ {
		if !take.GreaterThan(decimal.Zero) {
			return nil, nil
		}
		res, err := e.reserveWithBackoff(ctx, key, take)
		if err == nil {
			return &Leg{LocationID: key.LocationID, Quantity: take, ReservationID: res.ID}, nil
		}
		if errors.Is(err, domain.ErrInsufficientAvailable) {
			// Conflicto entre ranking y reserva: refrescar y achicar la toma.
			current, reserved, serr := e.ledger.Sync(ctx, cand.Assignment)
			if serr != nil {
				return nil, serr
			}
			take = decimal.Min(remaining, current.Sub(reserved))
			continue
		}
		return nil, err
	}
	return nil, nil
}

// reserveWithBackoff reserva con reintentos acotados ante contención.
func (e *Engine) reserveWithBackoff(ctx context.Context, key entity.AssignmentKey, qty decimal.Decimal) (*entity.Reservation, error) {
	var res *entity.Reservation
	b := retry.WithMaxRetries(e.cfg.ReserveAttempts, retry.NewExponential(e.cfg.RetryBase))
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		r, rerr := e.ledger.Reserve(ctx, key, qty)
		if errors.Is(rerr, domain.ErrContended) {
			return retry.RetryableError(rerr)
		}
		if rerr != nil {
			return rerr
		}
		res = r
		return nil
	})
	return res, err
}

// putawayLeg coloca hasta remaining en el candidato contra su headroom vigente.
func (e *Engine) putawayLeg(ctx context.Context, cand slotting.Candidate, remaining decimal.Decimal) (*Leg, error) {
	key := cand.Assignment.Key()

	for attempt := uint64(0); attempt < e.cfg.ReserveAttempts; attempt++ {
		headroom, err := e.ledger.PutawayHeadroom(ctx, key)
		if err != nil {
			return nil, err
		}
		take := remaining
		if headroom != nil {
			take = decimal.Min(remaining, *headroom)
		}
		if !take.GreaterThan(decimal.Zero) {
			return nil, nil
		}
		perr := e.putawayWithBackoff(ctx, key, take)
		if perr == nil {
			return &Leg{LocationID: key.LocationID, Quantity: take}, nil
		}
		if errors.Is(perr, domain.ErrCapacityExceeded) {
			continue // otro plan ocupó el espacio entre la consulta y la escritura
		}
		return nil, perr
	}
	return nil, nil
}

func (e *Engine) putawayWithBackoff(ctx context.Context, key entity.AssignmentKey, qty decimal.Decimal) error {
	b := retry.WithMaxRetries(e.cfg.ReserveAttempts, retry.NewExponential(e.cfg.RetryBase))
	return retry.Do(ctx, b, func(ctx context.Context) error {
		err := e.ledger.Putaway(ctx, key, qty)
		if errors.Is(err, domain.ErrContended) {
			return retry.RetryableError(err)
		}
		return err
	})
}

func (e *Engine) cycleCountRetry(ctx context.Context, key entity.AssignmentKey, newQty decimal.Decimal) (decimal.Decimal, error) {
	var clamped decimal.Decimal
	b := retry.WithMaxRetries(e.cfg.ReserveAttempts, retry.NewExponential(e.cfg.RetryBase))
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		c, cerr := e.ledger.CycleCount(ctx, key, newQty)
		if errors.Is(cerr, domain.ErrContended) {
			return retry.RetryableError(cerr)
		}
		if cerr != nil {
			return cerr
		}
		clamped = c
		return nil
	})
	return clamped, err
}

// rollbackLegs libera las reservas ya tomadas cuando un error fatal aborta el
// plan a mitad de camino.
func (e *Engine) rollbackLegs(ctx context.Context, plan *Plan) {
	for _, leg := range plan.Legs {
		if leg.ReservationID == "" {
			continue
		}
		if err := e.ledger.Release(ctx, leg.ReservationID); err != nil {
			e.log.Error().Err(err).Str("plan_id", plan.ID).Str("location_id", leg.LocationID).
				Msg("no se pudo liberar la reserva al abortar el plan")
		}
	}
}

func splitByZone(cands []slotting.Candidate, zoneID string) (in, out []slotting.Candidate) {
	for _, c := range cands {
		if c.Assignment.ZoneID == zoneID {
			in = append(in, c)
		} else {
			out = append(out, c)
		}
	}
	return in, out
}
