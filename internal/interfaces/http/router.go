package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/jhoicas/wms-slotting/internal/application/allocation"
)

// RouterDeps dependencias para el router.
type RouterDeps struct {
	Engine *allocation.Engine
}

// Router registra las rutas de la API del motor de asignación.
func Router(app *fiber.App, deps RouterDeps) {
	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api")

	allocations := api.Group("/allocations")
	handler := NewAllocationHandler(deps.Engine)
	allocations.Post("/pick", handler.AllocatePick)
	allocations.Post("/putaway", handler.AllocatePutaway)
	allocations.Post("/:id/commit", handler.CommitPlan)
	allocations.Post("/:id/cancel", handler.CancelPlan)

	inventory := api.Group("/inventory")
	inventory.Post("/cycle-count", handler.CycleCount)
}
