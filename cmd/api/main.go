package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jhoicas/wms-slotting/internal/application/allocation"
	"github.com/jhoicas/wms-slotting/internal/application/replenishment"
	"github.com/jhoicas/wms-slotting/internal/infrastructure/memory"
	"github.com/jhoicas/wms-slotting/internal/infrastructure/notify"
	"github.com/jhoicas/wms-slotting/internal/infrastructure/postgres"
	httpRouter "github.com/jhoicas/wms-slotting/internal/interfaces/http"
	"github.com/jhoicas/wms-slotting/pkg/config"
	"github.com/jhoicas/wms-slotting/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:   cfg.App.Env,
		Level: "info",
	})
	log.Info().
		Str("env", cfg.App.Env).
		Str("app", cfg.App.Name).
		Msg("iniciando motor de asignación")

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("conexión a PostgreSQL")
	}
	defer pool.Close()

	catalogRepo := postgres.NewCatalogRepository(pool)
	compat := postgres.NewClimateCompat(pool)

	ledger := memory.NewLedger(memory.Config{LockWait: cfg.Engine.LockWait})
	notifier := notify.NewLogNotifier(log.Component("fulfilment"))
	monitor := replenishment.NewMonitor(notifier, log.Component("monitor"))
	ledger.AddObserver(monitor)
	ledger.AddObserver(postgres.NewQuantityWriter(pool, log.Component("quantity-writer")))

	engine := allocation.NewEngine(catalogRepo, ledger, compat, allocation.Config{
		ReserveAttempts: uint64(cfg.Engine.ReserveAttempts),
		RetryBase:       cfg.Engine.RetryBase,
	}, log.Component("engine"))

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  time.Second * 10,
		WriteTimeout: time.Second * 10,
		IdleTimeout:  time.Second * 60,
	})
	app.Use(recover.New())

	httpRouter.Router(app, httpRouter.RouterDeps{Engine: engine})

	go func() {
		if err := app.Listen(cfg.HTTP.Addr()); err != nil {
			log.Fatal().Err(err).Msg("servidor HTTP")
		}
	}()
	log.Info().Str("addr", cfg.HTTP.Addr()).Msg("API escuchando")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("apagando...")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.Error().Err(err).Msg("apagado del servidor HTTP")
	}
}
