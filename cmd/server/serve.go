package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/spf13/cobra"

	"library-backend/internal/admin"
	"library-backend/internal/auth"
	"library-backend/internal/config"
	"library-backend/internal/engine"
	"library-backend/internal/metadata"
	"library-backend/internal/query"
	"library-backend/internal/store"
)

func newServeCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Migrate the database and start the HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts)
		},
	}
}

func runServe(ctx context.Context, opts *rootOptions) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 1. Load config
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log.Printf("Config loaded (port: %d, driver: %s, db: %s)", cfg.Server.Port, cfg.Database.Driver, cfg.Database.Name)

	// 2. Connect to database
	db, err := store.New(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()
	log.Println("Database connected")

	// 3. Apply migrations and seed the admin account
	if err := db.Bootstrap(ctx); err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	log.Println("Schema ready")

	// 4. Entity registry and compiled rules
	reg := metadata.LibraryRegistry()
	rules, err := engine.CompileRules(reg)
	if err != nil {
		return fmt.Errorf("compile rules: %w", err)
	}

	// 5. Query features, applied in order: include, filter, select, sort
	features := query.NewComposer(query.DefaultAppliers()...)
	log.Printf("Query features: %v", features.Names())

	// 6. Create Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: engine.ErrorHandler,
	})
	app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
	}))
	app.Use(requestid.New())
	app.Use(logger.New(logger.Config{
		Format: "${time} ${locals:requestid} ${status} ${method} ${path} ${latency}\n",
	}))

	// 7. Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	// 8. Auth routes
	authMW := auth.AuthMiddleware(cfg.JWTSecret)
	auth.RegisterAuthRoutes(app, auth.NewAuthHandler(db, cfg.JWTSecret), authMW)

	// 9. Schema introspection (admin only), ahead of the /:entity/:id catch-all
	adminHandler := admin.NewHandler(db, reg, features)
	admin.RegisterAdminRoutes(app, adminHandler, authMW, auth.RequireAdmin())

	// 10. Catalog, role and permission routes: reads are public unless guarded, writes are authenticated
	handler := engine.NewHandler(db, reg, features, rules, cfg.Query)
	engine.RegisterRoutes(app, handler, engine.RouteMiddleware{
		Authenticate: authMW,
		Identify:     auth.OptionalAuthMiddleware(cfg.JWTSecret),
		Enum:         []fiber.Handler{auth.RequirePermission(engine.EnumPermission)},
	})

	// 11. Start server, shutting down on SIGINT/SIGTERM
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := app.ShutdownWithContext(shutdownCtx); err != nil {
			log.Printf("ERROR: shutdown: %v", err)
		}
	}()

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	log.Printf("Starting server on %s", addr)
	return app.Listen(addr)
}
