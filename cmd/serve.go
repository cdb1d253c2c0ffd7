package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"history-forwarder/core/checkpoint"
	"history-forwarder/core/loader"
	"history-forwarder/core/server"
	"history-forwarder/feature/checkpoints"
	"history-forwarder/feature/integrity"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve checkpoint state and entity checks over HTTP",
	Long: `Starts an HTTP server reporting watermarks, locks and entity profile health.
Every route but /health requires the configured API key.`,
	RunE: runServe,
}

func init() {
	RootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := bootstrap()
	if err != nil {
		return err
	}
	defer a.close()
	l := a.log

	if a.cfg.Server.ApiKey == "" {
		l.Warn("No API key configured, the API is unprotected")
	}

	app := server.New(a.cfg.Server, l)

	mgr := loader.NewManager(l)
	mgr.Register(checkpoints.NewFeature(checkpoint.NewTracker(a.db), l))
	mgr.Register(integrity.NewFeature(a.db, a.cfg.Entities, l))

	loaded, err := mgr.LoadAll(app)
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		l.Info("Starting server", zap.String("port", a.cfg.Server.Port), zap.Strings("features", loaded))
		errCh <- app.Listen(":" + a.cfg.Server.Port)
	}()

	// Graceful Shutdown
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case <-c:
	}
	l.Info("Shutting down server...")
	return app.Shutdown()
}
