package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/raaihank/grammar-sentinel/internal/checker"
	"github.com/raaihank/grammar-sentinel/internal/config"
	"github.com/raaihank/grammar-sentinel/internal/render"
	"github.com/raaihank/grammar-sentinel/internal/server"
	"github.com/raaihank/grammar-sentinel/internal/websocket"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the live preview server",
	Long: `Serve starts an HTTP server with a browser preview, a JSON API and a
WebSocket feed of check results. Overlay settings are reloaded when the
configuration file changes.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.close()

		if cmd.Flags().Changed("port") {
			a.cfg.Server.Port, _ = cmd.Flags().GetInt("port")
		}
		log := a.log

		m := a.withMetrics()
		sessions, err := a.sessions()
		if err != nil {
			return err
		}

		var (
			hub  *websocket.Hub
			opts []checker.Option
		)
		if a.cfg.WebSocket.Enabled {
			html, err := render.New("html", render.Options{
				HighlightClass: a.cfg.Render.HighlightClass,
				Placeholder:    a.cfg.Render.Placeholder,
			})
			if err != nil {
				return err
			}
			hub = websocket.NewHub(a.cfg.WebSocket, log, websocket.WithRenderer(html), websocket.WithMetrics(m))
			opts = append(opts, checker.WithPublisher(hub))
		}

		chk, store, err := a.checker(sessions, opts...)
		if err != nil {
			return err
		}

		srv, err := server.New(a.cfg, log, server.Deps{
			Checker:  chk,
			Sessions: sessions,
			Document: checker.NewDocument(""),
			Hub:      hub,
			History:  store,
			Metrics:  m,
			Version:  version,
		})
		if err != nil {
			return err
		}

		if a.loader.ConfigFile() != "" {
			a.loader.Watch(func(cfg *config.Config) {
				engine, err := newEngine(cfg.Overlay)
				if err != nil {
					log.Warn("Ignoring invalid overlay settings", zap.Error(err))
					return
				}
				chk.SetEngine(engine)
			}, func(err error) {
				log.Warn("Configuration reload failed", zap.Error(err))
			})
		}

		log.Info("Starting Grammar Sentinel",
			zap.String("version", version),
			zap.String("commit", commit),
			zap.String("build_date", date),
			zap.Int("port", a.cfg.Server.Port),
		)

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		serverErrors := make(chan error, 1)
		go func() {
			serverErrors <- srv.Start(ctx)
		}()

		shutdown := make(chan os.Signal, 1)
		signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

		select {
		case err := <-serverErrors:
			if err != nil {
				log.Error("Server error", zap.Error(err))
			}
			return err
		case sig := <-shutdown:
			log.Info("Shutdown signal received", zap.String("signal", sig.String()))

			stopCtx, stop := context.WithTimeout(context.Background(), 30*time.Second)
			defer stop()

			if err := srv.Stop(stopCtx); err != nil {
				log.Error("Failed to shutdown server gracefully", zap.Error(err))
				return err
			}
			log.Info("Server shutdown complete")
			return nil
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().IntP("port", "p", 8080, "Port to listen on")
}
