package http

import (
	"errors"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jhoicas/wms-slotting/internal/application/allocation"
	"github.com/jhoicas/wms-slotting/internal/application/dto"
	"github.com/jhoicas/wms-slotting/internal/domain"
)

// AllocationHandler maneja las peticiones HTTP del motor de asignación.
// Guarda los planes vigentes en memoria para poder confirmarlos o cancelarlos
// por ID; un plan confirmado o cancelado se retira del índice.
type AllocationHandler struct {
	engine *allocation.Engine
	plans  sync.Map // planID -> *allocation.Plan
}

// NewAllocationHandler construye el handler.
func NewAllocationHandler(engine *allocation.Engine) *AllocationHandler {
	return &AllocationHandler{engine: engine}
}

// AllocatePick genera un plan de picking para (item, cantidad).
func (h *AllocationHandler) AllocatePick(c *fiber.Ctx) error {
	tenantID := tenantFrom(c)
	if tenantID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "MISSING_TENANT", Message: "falta el header X-Tenant-ID"})
	}
	var in dto.AllocatePickRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}

	opts := allocation.PickOptions{RandomSeed: in.RandomSeed}
	if len(in.Expiries) > 0 {
		expiries := in.Expiries
		opts.ExpiryOf = func(locationID string) *time.Time {
			if t, ok := expiries[locationID]; ok {
				return &t
			}
			return nil
		}
	}

	plan, err := h.engine.AllocatePick(c.Context(), tenantID, in.ItemID, in.Quantity, opts)
	if err != nil {
		return writeEngineError(c, err)
	}
	h.plans.Store(plan.ID, plan)
	return c.Status(fiber.StatusCreated).JSON(planResponse(plan))
}

// AllocatePutaway genera un plan de putaway; las patas quedan aplicadas.
func (h *AllocationHandler) AllocatePutaway(c *fiber.Ctx) error {
	tenantID := tenantFrom(c)
	if tenantID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "MISSING_TENANT", Message: "falta el header X-Tenant-ID"})
	}
	var in dto.AllocatePutawayRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}

	plan, err := h.engine.AllocatePutaway(c.Context(), tenantID, in.ItemID, in.Quantity, allocation.PutawayOptions{
		PreferredZoneID: in.PreferredZoneID,
		RandomSeed:      in.RandomSeed,
	})
	if err != nil {
		return writeEngineError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(planResponse(plan))
}

// CommitPlan confirma todas las patas reservadas de un plan de picking.
func (h *AllocationHandler) CommitPlan(c *fiber.Ctx) error {
	planID := c.Params("id")
	v, ok := h.plans.Load(planID)
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "NOT_FOUND", Message: "plan no encontrado"})
	}
	plan := v.(*allocation.Plan)
	if err := h.engine.CommitPlan(c.Context(), plan); err != nil {
		return writeEngineError(c, err)
	}
	h.plans.Delete(planID)
	return c.JSON(fiber.Map{"plan_id": planID, "message": "plan confirmado"})
}

// CancelPlan libera las reservas del plan. Idempotente por pata; las ya
// confirmadas se reportan como advertencia.
func (h *AllocationHandler) CancelPlan(c *fiber.Ctx) error {
	planID := c.Params("id")
	v, ok := h.plans.Load(planID)
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "NOT_FOUND", Message: "plan no encontrado"})
	}
	plan := v.(*allocation.Plan)
	warnings, err := h.engine.CancelPlan(c.Context(), plan)
	if err != nil {
		return writeEngineError(c, err)
	}
	h.plans.Delete(planID)
	return c.JSON(dto.CancelPlanResponse{PlanID: planID, Warnings: warningDTOs(warnings)})
}

// CycleCount sobrescribe el stock físico de una ubicación (conteo cíclico).
func (h *AllocationHandler) CycleCount(c *fiber.Ctx) error {
	tenantID := tenantFrom(c)
	if tenantID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "MISSING_TENANT", Message: "falta el header X-Tenant-ID"})
	}
	var in dto.CycleCountRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	warnings, err := h.engine.CycleCount(c.Context(), tenantID, in.ItemID, in.LocationID, in.NewQuantity)
	if err != nil {
		return writeEngineError(c, err)
	}
	return c.JSON(dto.CycleCountResponse{
		ItemID:      in.ItemID,
		LocationID:  in.LocationID,
		NewQuantity: in.NewQuantity,
		Warnings:    warningDTOs(warnings),
	})
}

// tenantFrom extrae el tenant del header. La autenticación real queda en el
// gateway del sistema CRUD; este servicio solo exige el identificador explícito.
func tenantFrom(c *fiber.Ctx) string {
	return c.Get("X-Tenant-ID")
}

// writeEngineError mapea los errores de dominio a códigos HTTP.
func writeEngineError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "datos inválidos"})
	case errors.Is(err, domain.ErrNoEligibleLocation):
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "NO_ELIGIBLE_LOCATION", Message: "el artículo no está sloteado en ninguna ubicación"})
	case errors.Is(err, domain.ErrConstraintViolation):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(dto.ErrorResponse{Code: "CONSTRAINT_VIOLATION", Message: "condiciones de almacenamiento incompatibles"})
	case errors.Is(err, domain.ErrInsufficientAvailable):
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Code: "INSUFFICIENT_AVAILABLE", Message: "disponible insuficiente"})
	case errors.Is(err, domain.ErrCapacityExceeded):
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Code: "CAPACITY_EXCEEDED", Message: "capacidad excedida"})
	case errors.Is(err, domain.ErrStaleReservation):
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Code: "STALE_RESERVATION", Message: "la reserva ya fue confirmada o liberada"})
	case errors.Is(err, domain.ErrContended):
		// Retryable: el caller debe reintentar con backoff propio.
		return c.Status(fiber.StatusServiceUnavailable).JSON(dto.ErrorResponse{Code: "CONTENDED", Message: "clave en contención, reintentar"})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
	}
}

func planResponse(plan *allocation.Plan) dto.PlanResponse {
	legs := make([]dto.LegDTO, 0, len(plan.Legs))
	for _, leg := range plan.Legs {
		legs = append(legs, dto.LegDTO{
			LocationID:    leg.LocationID,
			Quantity:      leg.Quantity,
			ReservationID: leg.ReservationID,
		})
	}
	return dto.PlanResponse{
		PlanID:    plan.ID,
		ItemID:    plan.ItemID,
		Operation: string(plan.Operation),
		Legs:      legs,
		Unmet:     plan.Unmet,
		Warnings:  warningDTOs(plan.Warnings),
		CreatedAt: plan.CreatedAt,
	}
}

func warningDTOs(warnings []allocation.Warning) []dto.WarningDTO {
	if len(warnings) == 0 {
		return nil
	}
	out := make([]dto.WarningDTO, 0, len(warnings))
	for _, w := range warnings {
		out = append(out, dto.WarningDTO{Kind: w.Kind, LocationID: w.LocationID, Message: w.Message})
	}
	return out
}
