package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"merge-engine/core/loader"
	"merge-engine/core/logger"
	"merge-engine/core/middleware/auth"
	"merge-engine/core/middleware/rayid"
	"merge-engine/core/middleware/readonly"
	"merge-engine/feature/integrity"
	"merge-engine/feature/mergeinfo"
	"merge-engine/feature/repository"

	"github.com/gofiber/fiber/v2"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// startCmd represents the start command
var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the mergeinfo query server",
	Long:  `Starts the HTTP server and initializes all enabled features.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		// 1. Load Configuration and Logger
		cfg, logg, err := loadRuntime(cmd)
		if err != nil {
			return err
		}
		defer logg.Sync()
		zap.ReplaceGlobals(logg)

		// 2. Open Repository (Optional)
		// Without one, the repository features stay disabled.
		var repo *repository.SQLRepository
		if r, err := openRepository(ctx, cfg, logg); err != nil {
			logg.Warn("Optional repository connection failed", zap.Error(err))
		} else {
			repo = r
			logg = logg.With(zap.String("database", cfg.Database.Name))
			logg.Info("Connected to repository database")
		}

		// 3. Initialize Fiber App
		app := fiber.New(fiber.Config{
			DisableStartupMessage: true,
		})

		// 4. Initialize Feature Loader
		mgr := loader.NewManager()
		var index mergeinfo.Index
		if repo != nil {
			index = repo
		}
		mgr.Register(mergeinfo.NewFeature(index, logg))
		mgr.Register(integrity.NewFeature(repo, logg))

		// Middleware Registration
		// 1. RayID (Must be first to trace everything)
		app.Use(rayid.New())

		// 2. Logging Middleware
		app.Use(func(c *fiber.Ctx) error {
			l := logger.WithRayID(logg, c)
			l.Info("Request started",
				zap.String("method", c.Method()),
				zap.String("path", c.Path()),
				zap.String("ip", c.IP()),
			)
			err := c.Next()
			if err != nil {
				l.Error("Request error", zap.Error(err))
			}
			return err
		})

		// 3. Auth and read-only guard
		app.Use(auth.New(auth.Config{ApiKey: cfg.Server.ApiKey}))
		app.Use(readonly.New(cfg.Server.ReadOnly))

		// 5. Load Features
		loaded, err := mgr.LoadAll(app)
		if err != nil {
			return err
		}
		logg.Info("Features loaded", zap.Strings("features", loaded))

		// 6. Start Server
		go func() {
			logg.Info("Starting server", zap.String("address", cfg.Server.Address()))
			if err := app.Listen(cfg.Server.Address()); err != nil {
				logg.Fatal("Server failed to start", zap.Error(err))
			}
		}()

		// 7. Graceful Shutdown
		c := make(chan os.Signal, 1)
		signal.Notify(c, os.Interrupt, syscall.SIGTERM)
		<-c
		logg.Info("Shutting down server...")
		return app.Shutdown()
	},
}

func init() {
	RootCmd.AddCommand(startCmd)
}
