package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/invoicer/internal/ingest"
	"github.com/ziadkadry99/invoicer/internal/progress"
	"github.com/ziadkadry99/invoicer/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API and chat websocket",
	Long:  `Starts an HTTP server for processing invoices, querying results, exporting and asking questions over REST or a websocket.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if port, _ := cmd.Flags().GetInt("port"); port > 0 {
			cfg.Server.Port = port
		}
		if host, _ := cmd.Flags().GetString("host"); host != "" {
			cfg.Server.Host = host
		}
		if root, _ := cmd.Flags().GetString("root"); root != "" {
			cfg.Server.Root = root
		}
		if dev, _ := cmd.Flags().GetBool("dev"); dev {
			cfg.Server.AllowAllOrigins = true
		}

		a, err := newApp(cfg, progress.Nop{})
		if err != nil {
			return err
		}
		if dir, _ := cmd.Flags().GetString("index"); dir != "" {
			if err := a.index.Load(dir); err != nil {
				return fmt.Errorf("loading index from %s: %w", dir, err)
			}
		}

		srv := server.New(server.Config{
			Host:     cfg.Server.Host,
			Port:     cfg.Server.Port,
			AllowAll: cfg.Server.AllowAllOrigins,
			Root:     cfg.Server.Root,
			// Leave headroom for multipart framing around the files themselves.
			MaxUploadBytes: 20*cfg.MaxFileSizeBytes() + 1<<20,
			Ingest:         ingest.Config{Dedupe: true},
		}, a.orch, a.logger)

		// Graceful shutdown.
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		go func() {
			<-ctx.Done()
			fmt.Fprintln(os.Stderr, "\nShutting down server...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()

		fmt.Fprintf(os.Stderr, "invoicer server %s starting on %s\n", Version, srv.Addr())
		fmt.Fprintf(os.Stderr, "  Root:  %s\n", srv.Root())
		fmt.Fprintf(os.Stderr, "  Model: %s (%s)\n", cfg.Model, cfg.Provider)

		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().Int("port", 0, "port to listen on (overrides config)")
	serveCmd.Flags().String("host", "", "address to bind (overrides config, default 127.0.0.1)")
	serveCmd.Flags().String("root", "", "directory /api/process may read from (default: working directory)")
	serveCmd.Flags().Bool("dev", false, "allow all CORS and WebSocket origins")
	serveCmd.Flags().String("index", "", "load a saved index at startup")
	rootCmd.AddCommand(serveCmd)
}
