package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/jhoicas/wms-slotting/internal/domain"
	"github.com/jhoicas/wms-slotting/internal/domain/entity"
)

// Observer recibe los eventos de mutación del ledger (ej. monitor de reposición,
// write-back a item_locations). Se invoca fuera del lock por clave: no debe
// reentrar al ledger sobre la misma clave de forma síncrona bloqueante.
type Observer interface {
	OnMutation(ev entity.LedgerMutation)
}

// Config opciones del ledger.
type Config struct {
	LockWait      time.Duration // espera máxima por el lock de una clave antes de ErrContended
	HoldRetention time.Duration // cuánto se retiene una reserva terminal antes de podarla
}

// Ledger almacenamiento en memoria de current_quantity/reserved_quantity por
// clave (item, location). Arena con clave explícita: cada registro lleva su
// propio lock acotado, y claves distintas no se bloquean entre sí.
// Es el único estado mutable compartido del motor; los metadatos del Catalog
// Store se tratan como solo-lectura durante una llamada.
type Ledger struct {
	mu        sync.RWMutex
	records   map[entity.AssignmentKey]*record
	zones     map[string]*zoneState
	holds     map[string]*reservation
	terminals []terminalHold // reservas terminales en orden de cierre, para la poda
	lockWait  time.Duration
	retention time.Duration
	observers []Observer
}

// terminalHold referencia a una reserva ya confirmada o liberada. Se retiene
// durante la ventana de retención para poder responder ErrStaleReservation a
// operaciones tardías; pasada la ventana se poda y la reserva deja de conocerse.
type terminalHold struct {
	id string
	at time.Time
}

// record estado por clave. Todos los campos se leen/escriben con el semáforo
// sem tomado (capacidad 1: un escritor a la vez por clave).
type record struct {
	sem chan struct{}

	tenantID string
	zoneID   string

	current  decimal.Decimal
	reserved decimal.Decimal

	minQty       decimal.Decimal
	maxQty       *decimal.Decimal
	replenishQty decimal.Decimal

	lastPickedAt      *time.Time
	lastReplenishedAt *time.Time
}

// zoneState capacidad y total corriente por zona. Lock propio; orden de
// adquisición fijo registro→zona para evitar inversión entre planes.
type zoneState struct {
	mu       sync.Mutex
	capacity *decimal.Decimal
	total    decimal.Decimal
}

// reservation estado interno de una reserva. El handle expuesto es inmutable
// (entity.Reservation); las transiciones ocurren bajo el lock del registro.
type reservation struct {
	key       entity.AssignmentKey
	qty       decimal.Decimal
	state     entity.ReservationState
	createdAt time.Time
}

// NewLedger construye el ledger. LockWait <= 0 usa 250ms; HoldRetention <= 0
// usa una hora (mucho mayor que la vida de cualquier plan).
func NewLedger(cfg Config) *Ledger {
	wait := cfg.LockWait
	if wait <= 0 {
		wait = 250 * time.Millisecond
	}
	retention := cfg.HoldRetention
	if retention <= 0 {
		retention = time.Hour
	}
	return &Ledger{
		records:   make(map[entity.AssignmentKey]*record),
		zones:     make(map[string]*zoneState),
		holds:     make(map[string]*reservation),
		lockWait:  wait,
		retention: retention,
	}
}

// AddObserver registra un observador de mutaciones. No concurrente con el uso
// del ledger: llamar durante el wiring, antes de servir tráfico.
func (l *Ledger) AddObserver(o Observer) {
	l.observers = append(l.observers, o)
}

// RegisterZone fija la capacidad de una zona para el control de capacidad. Capacidad nil
// desactiva el control (zona sin tope o unidades no comparables).
func (l *Ledger) RegisterZone(zoneID string, capacity *decimal.Decimal) {
	l.mu.Lock()
	defer l.mu.Unlock()
	z := l.zones[zoneID]
	if z == nil {
		z = &zoneState{}
		l.zones[zoneID] = z
	}
	z.mu.Lock()
	z.capacity = capacity
	z.mu.Unlock()
}

// Sync da de alta la clave si no existe (sembrando cantidades desde la fila del
// catálogo) y refresca sus umbrales. Las cantidades de un registro existente
// NO se tocan: el ledger es el dueño de current/reserved una vez sembradas.
// Devuelve la foto (current, reserved) para el ranking.
func (l *Ledger) Sync(ctx context.Context, a *entity.ItemLocationAssignment) (current, reserved decimal.Decimal, err error) {
	key := a.Key()
	l.mu.Lock()
	r, ok := l.records[key]
	var seeded *zoneState
	if !ok {
		r = &record{
			sem:               make(chan struct{}, 1),
			tenantID:          a.TenantID,
			zoneID:            a.ZoneID,
			current:           a.CurrentQuantity,
			reserved:          a.ReservedQuantity,
			minQty:            a.MinQuantity,
			maxQty:            a.MaxQuantity,
			replenishQty:      a.ReplenishmentQuantity,
			lastPickedAt:      a.LastPickedAt,
			lastReplenishedAt: a.LastReplenishedAt,
		}
		l.records[key] = r
		seeded = l.zones[a.ZoneID]
		if seeded == nil {
			seeded = &zoneState{}
			l.zones[a.ZoneID] = seeded
		}
	}
	l.mu.Unlock()
	if seeded != nil {
		seeded.add(a.CurrentQuantity)
	}

	if err := l.acquire(ctx, r); err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	defer l.release(r)

	// Refresco de metadatos del catálogo (los umbrales pueden cambiar entre llamadas).
	r.minQty = a.MinQuantity
	r.maxQty = a.MaxQuantity
	r.replenishQty = a.ReplenishmentQuantity
	return r.current, r.reserved, nil
}

// Reserve incrementa reserved_quantity en qty si el disponible alcanza.
// Devuelve un handle opaco; la reserva nace en estado Reserved.
func (l *Ledger) Reserve(ctx context.Context, key entity.AssignmentKey, qty decimal.Decimal) (*entity.Reservation, error) {
	if !qty.GreaterThan(decimal.Zero) {
		return nil, domain.ErrInvalidInput
	}
	l.pruneTerminals(time.Now())
	r, err := l.record(key)
	if err != nil {
		return nil, err
	}
	if err := l.acquire(ctx, r); err != nil {
		return nil, err
	}

	available := r.current.Sub(r.reserved)
	if available.LessThan(qty) {
		l.release(r)
		return nil, domain.ErrInsufficientAvailable
	}
	r.reserved = r.reserved.Add(qty)
	now := time.Now()

	hold := &reservation{key: key, qty: qty, state: entity.ReservationReserved, createdAt: now}
	id := uuid.New().String()
	l.mu.Lock()
	l.holds[id] = hold
	l.mu.Unlock()

	ev := l.event(r, key, entity.MutationReserve, r.current, now)
	l.release(r)
	l.emit(ev)

	return &entity.Reservation{ID: id, Key: key, Quantity: qty, CreatedAt: now}, nil
}

// CommitPick consume una reserva: baja current y reserved por la cantidad
// reservada y estampa last_picked_at. Falla ErrStaleReservation si la reserva
// ya fue confirmada o liberada (estado terminal).
func (l *Ledger) CommitPick(ctx context.Context, reservationID string) error {
	hold, r, err := l.hold(reservationID)
	if err != nil {
		return err
	}
	if err := l.acquire(ctx, r); err != nil {
		return err
	}

	if hold.state != entity.ReservationReserved {
		l.release(r)
		return domain.ErrStaleReservation
	}
	previous := r.current
	hold.state = entity.ReservationCommitted
	r.current = r.current.Sub(hold.qty)
	r.reserved = r.reserved.Sub(hold.qty)
	now := time.Now()
	r.lastPickedAt = &now
	l.retire(reservationID, now)
	l.zoneFor(r.zoneID).add(hold.qty.Neg())

	ev := l.event(r, hold.key, entity.MutationPick, previous, now)
	l.release(r)
	l.emit(ev)
	return nil
}

// Release libera una reserva devolviendo la cantidad al pool disponible.
// Una segunda liberación falla ErrStaleReservation, no se ignora en silencio.
func (l *Ledger) Release(ctx context.Context, reservationID string) error {
	hold, r, err := l.hold(reservationID)
	if err != nil {
		return err
	}
	if err := l.acquire(ctx, r); err != nil {
		return err
	}

	if hold.state != entity.ReservationReserved {
		l.release(r)
		return domain.ErrStaleReservation
	}
	hold.state = entity.ReservationReleased
	r.reserved = r.reserved.Sub(hold.qty)
	now := time.Now()
	l.retire(reservationID, now)

	ev := l.event(r, hold.key, entity.MutationRelease, r.current, now)
	l.release(r)
	l.emit(ev)
	return nil
}

// ReservationState estado actual de una reserva (para que el motor distinga
// "ya confirmada" de "ya liberada" al cancelar un plan).
func (l *Ledger) ReservationState(reservationID string) (entity.ReservationState, error) {
	l.mu.RLock()
	hold, ok := l.holds[reservationID]
	l.mu.RUnlock()
	if !ok {
		return "", domain.ErrNotFound
	}
	return hold.state, nil
}

// Putaway incrementa current_quantity y estampa last_replenished_at.
// Rechaza con ErrCapacityExceeded si violaría max_quantity o la capacidad
// de la zona.
func (l *Ledger) Putaway(ctx context.Context, key entity.AssignmentKey, qty decimal.Decimal) error {
	if !qty.GreaterThan(decimal.Zero) {
		return domain.ErrInvalidInput
	}
	r, err := l.record(key)
	if err != nil {
		return err
	}
	if err := l.acquire(ctx, r); err != nil {
		return err
	}

	next := r.current.Add(qty)
	if r.maxQty != nil && next.GreaterThan(*r.maxQty) {
		l.release(r)
		return domain.ErrCapacityExceeded
	}
	z := l.zoneFor(r.zoneID)
	if !z.tryAdd(qty) {
		l.release(r)
		return domain.ErrCapacityExceeded
	}
	previous := r.current
	r.current = next
	now := time.Now()
	r.lastReplenishedAt = &now

	ev := l.event(r, key, entity.MutationPutaway, previous, now)
	l.release(r)
	l.emit(ev)
	return nil
}

// CycleCount sobrescritura administrativa de current_quantity. Si reserved
// supera la nueva cantidad se recorta a ella (las reservas nunca pueden exceder
// el stock físico); clamped devuelve la cantidad recortada para que el caller
// lo reporte como advertencia.
func (l *Ledger) CycleCount(ctx context.Context, key entity.AssignmentKey, newQty decimal.Decimal) (clamped decimal.Decimal, err error) {
	if newQty.IsNegative() {
		return decimal.Zero, domain.ErrInvalidInput
	}
	r, err := l.record(key)
	if err != nil {
		return decimal.Zero, err
	}
	if err := l.acquire(ctx, r); err != nil {
		return decimal.Zero, err
	}

	previous := r.current
	clamped = decimal.Zero
	if r.reserved.GreaterThan(newQty) {
		clamped = r.reserved.Sub(newQty)
		r.reserved = newQty
	}
	r.current = newQty
	l.zoneFor(r.zoneID).add(newQty.Sub(previous))
	now := time.Now()

	ev := l.event(r, key, entity.MutationCycleCount, previous, now)
	l.release(r)
	l.emit(ev)
	return clamped, nil
}

// PutawayHeadroom espacio de entrada restante para la clave: el menor entre el
// headroom de max_quantity y el remanente de capacidad de la zona. nil = sin tope.
func (l *Ledger) PutawayHeadroom(ctx context.Context, key entity.AssignmentKey) (*decimal.Decimal, error) {
	r, err := l.record(key)
	if err != nil {
		return nil, err
	}
	if err := l.acquire(ctx, r); err != nil {
		return nil, err
	}
	defer l.release(r)

	var headroom *decimal.Decimal
	if r.maxQty != nil {
		h := r.maxQty.Sub(r.current)
		if h.IsNegative() {
			h = decimal.Zero
		}
		headroom = &h
	}
	if zh := l.zoneFor(r.zoneID).headroom(); zh != nil {
		if headroom == nil || zh.LessThan(*headroom) {
			headroom = zh
		}
	}
	return headroom, nil
}

// ── Internos ──────────────────────────────────────────────────────────────────

func (l *Ledger) record(key entity.AssignmentKey) (*record, error) {
	l.mu.RLock()
	r, ok := l.records[key]
	l.mu.RUnlock()
	if !ok {
		return nil, domain.ErrNotFound
	}
	return r, nil
}

func (l *Ledger) hold(id string) (*reservation, *record, error) {
	l.mu.RLock()
	hold, ok := l.holds[id]
	l.mu.RUnlock()
	if !ok {
		return nil, nil, domain.ErrStaleReservation
	}
	r, err := l.record(hold.key)
	if err != nil {
		return nil, nil, err
	}
	return hold, r, nil
}

// acquire toma el lock de la clave con espera acotada: pasado lockWait se
// devuelve ErrContended al caller en lugar de esperar indefinidamente.
func (l *Ledger) acquire(ctx context.Context, r *record) error {
	timer := time.NewTimer(l.lockWait)
	defer timer.Stop()
	select {
	case r.sem <- struct{}{}:
		return nil
	case <-timer.C:
		return domain.ErrContended
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *Ledger) release(r *record) {
	<-r.sem
}

// retire encola una reserva recién terminal para la poda diferida.
func (l *Ledger) retire(reservationID string, at time.Time) {
	l.mu.Lock()
	l.terminals = append(l.terminals, terminalHold{id: reservationID, at: at})
	l.mu.Unlock()
}

// pruneTerminals descarta las reservas terminales más viejas que la retención.
// Operar sobre una reserva podada responde igual que sobre una desconocida.
func (l *Ledger) pruneTerminals(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for len(l.terminals) > 0 && now.Sub(l.terminals[0].at) >= l.retention {
		delete(l.holds, l.terminals[0].id)
		l.terminals = l.terminals[1:]
	}
}

func (l *Ledger) zoneFor(zoneID string) *zoneState {
	l.mu.RLock()
	z := l.zones[zoneID]
	l.mu.RUnlock()
	if z != nil {
		return z
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if z = l.zones[zoneID]; z == nil {
		z = &zoneState{}
		l.zones[zoneID] = z
	}
	return z
}

// event arma la foto post-mutación con el lock del registro aún tomado.
func (l *Ledger) event(r *record, key entity.AssignmentKey, mutType string, previous decimal.Decimal, at time.Time) entity.LedgerMutation {
	return entity.LedgerMutation{
		Key:                   key,
		TenantID:              r.tenantID,
		Type:                  mutType,
		Previous:              previous,
		Current:               r.current,
		Reserved:              r.reserved,
		Available:             r.current.Sub(r.reserved),
		MinQuantity:           r.minQty,
		ReplenishmentQuantity: r.replenishQty,
		At:                    at,
	}
}

func (l *Ledger) emit(ev entity.LedgerMutation) {
	for _, o := range l.observers {
		o.OnMutation(ev)
	}
}

func (z *zoneState) add(delta decimal.Decimal) {
	z.mu.Lock()
	z.total = z.total.Add(delta)
	z.mu.Unlock()
}

// tryAdd suma delta al total de la zona solo si no excede la capacidad.
func (z *zoneState) tryAdd(delta decimal.Decimal) bool {
	z.mu.Lock()
	defer z.mu.Unlock()
	next := z.total.Add(delta)
	if z.capacity != nil && next.GreaterThan(*z.capacity) {
		return false
	}
	z.total = next
	return true
}

func (z *zoneState) headroom() *decimal.Decimal {
	z.mu.Lock()
	defer z.mu.Unlock()
	if z.capacity == nil {
		return nil
	}
	h := z.capacity.Sub(z.total)
	if h.IsNegative() {
		h = decimal.Zero
	}
	return &h
}
