package slotting

import (
	"math/rand"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/jhoicas/wms-slotting/internal/domain/entity"
)

// Operation tipo de operación a rankear.
type Operation string

const (
	OperationPick    Operation = "pick"
	OperationPutaway Operation = "putaway"
)

// Candidate una asignación candidata con su foto de cantidades al momento del
// ranking. La foto es orientativa: el motor re-verifica disponibilidad al
// reservar (otro caller pudo drenar la ubicación entre ranking y reserva).
type Candidate struct {
	Assignment   *entity.ItemLocationAssignment
	Available    decimal.Decimal
	ZoneFallback bool // derivado de una asignación de zona (sin fila propia en item_locations)
}

// RankRequest entrada del ranker.
// ExpiryOf es el comparador FEFO inyectado por el caller (la fecha de
// vencimiento vive en el subsistema de lotes, fuera de este esquema);
// puede ser nil, en cuyo caso los candidatos FEFO ordenan por ID.
// RandomSeed alimenta el barajado reproducible de la regla random.
type RankRequest struct {
	Operation  Operation
	Candidates []Candidate
	ExpiryOf   func(locationID string) *time.Time
	RandomSeed int64
}

// Rank filtra los candidatos elegibles para la operación y devuelve un orden
// total y determinista: (a) preferidos primero, (b) clave según la regla de
// asignación de cada candidato, (c) desempate por ID de asignación.
//
// Devuelve además los IDs de ubicación con regla *_sequence sin
// picking_sequence configurado: siguen siendo candidatos (ordenan al final de
// su grupo) pero el motor debe adjuntar UnsequencedLocationWarning al plan.
func Rank(req RankRequest) (ordered []Candidate, unsequenced []string) {
	eligible := make([]Candidate, 0, len(req.Candidates))
	for _, c := range req.Candidates {
		if eligibleFor(req.Operation, c) {
			eligible = append(eligible, c)
		}
	}

	// Config inválida: regla por secuencia sin secuencia definida.
	for _, c := range eligible {
		if isSequenceRule(c.Assignment.AllocationRule) && c.Assignment.PickingSequence == nil {
			unsequenced = append(unsequenced, c.Assignment.LocationID)
		}
	}

	// Posición de barajado reproducible para los candidatos con regla random.
	shufflePos := shufflePositions(eligible, req.RandomSeed)

	sort.SliceStable(eligible, func(i, j int) bool {
		return less(eligible[i], eligible[j], req.ExpiryOf, shufflePos)
	})
	return eligible, unsequenced
}

func eligibleFor(op Operation, c Candidate) bool {
	switch op {
	case OperationPutaway:
		h := c.Assignment.Headroom()
		return h == nil || h.GreaterThan(decimal.Zero)
	default: // pick
		return c.Available.GreaterThan(decimal.Zero)
	}
}

func isSequenceRule(r entity.AllocationRule) bool {
	return r == entity.RuleLocationSequence || r == entity.RuleZoneSequence
}

// shufflePositions asigna a cada candidato con regla random una posición dentro
// de una permutación barajada con la semilla dada (misma semilla, mismo orden).
func shufflePositions(cands []Candidate, seed int64) map[string]int {
	var ids []string
	for _, c := range cands {
		if c.Assignment.AllocationRule == entity.RuleRandom {
			ids = append(ids, c.Assignment.ID)
		}
	}
	if len(ids) == 0 {
		return nil
	}
	sort.Strings(ids) // base estable antes de barajar
	rng := rand.New(rand.NewSource(seed))
	rng.Shuffle(len(ids), func(i, j int) { ids[i], ids[j] = ids[j], ids[i] })
	pos := make(map[string]int, len(ids))
	for i, id := range ids {
		pos[id] = i
	}
	return pos
}

func less(a, b Candidate, expiryOf func(string) *time.Time, shufflePos map[string]int) bool {
	// (a) Preferidos primero (a lo sumo uno por artículo; el orden total
	// no depende de esa unicidad).
	if a.Assignment.IsPreferred != b.Assignment.IsPreferred {
		return a.Assignment.IsPreferred
	}

	ra, rb := a.Assignment.AllocationRule, b.Assignment.AllocationRule
	if ra == rb {
		if c := compareByRule(a, b, expiryOf, shufflePos); c != 0 {
			return c < 0
		}
	} else if ra.Order() != rb.Order() {
		// Reglas distintas: orden estable del enum para mantener orden total.
		return ra.Order() < rb.Order()
	}

	// (c) Desempate final por ID de asignación.
	return a.Assignment.ID < b.Assignment.ID
}

// compareByRule clave específica de la regla compartida por ambos candidatos.
// Devuelve <0, 0 o >0 al estilo de strings.Compare.
func compareByRule(a, b Candidate, expiryOf func(string) *time.Time, shufflePos map[string]int) int {
	switch a.Assignment.AllocationRule {
	case entity.RuleFIFO:
		// Stock más antiguo primero: last_replenished_at ascendente, nulos al final.
		return compareTimePtr(a.Assignment.LastReplenishedAt, b.Assignment.LastReplenishedAt, true)
	case entity.RuleLIFO:
		return compareTimePtr(a.Assignment.LastReplenishedAt, b.Assignment.LastReplenishedAt, false)
	case entity.RuleFEFO:
		var ea, eb *time.Time
		if expiryOf != nil {
			ea = expiryOf(a.Assignment.LocationID)
			eb = expiryOf(b.Assignment.LocationID)
		}
		return compareTimePtr(ea, eb, true)
	case entity.RuleRandom:
		return shufflePos[a.Assignment.ID] - shufflePos[b.Assignment.ID]
	case entity.RuleLocationSequence, entity.RuleZoneSequence:
		return compareIntPtr(a.Assignment.PickingSequence, b.Assignment.PickingSequence)
	}
	return 0
}

// compareTimePtr compara punteros a tiempo; nil siempre ordena al final.
// asc=true ordena ascendente (más antiguo primero).
func compareTimePtr(a, b *time.Time, asc bool) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	case a.Equal(*b):
		return 0
	case a.Before(*b):
		if asc {
			return -1
		}
		return 1
	default:
		if asc {
			return 1
		}
		return -1
	}
}

// compareIntPtr compara punteros a int ascendente; nil ordena al final.
func compareIntPtr(a, b *int) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	default:
		return *a - *b
	}
}
