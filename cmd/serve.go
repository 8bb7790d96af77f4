package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/KaramelBytes/reportloom-cli/internal/server"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	srvLoad loadFlags
	srvAddr string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve POST /api/analyze, returning a PDF report per uploaded file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		addr := cfg.ListenAddr
		if srvAddr != "" {
			addr = srvAddr
		}
		p, err := newPipeline(cfg, &srvLoad)
		if err != nil {
			return err
		}
		s := server.New(p, int64(cfg.MaxUploadMB)<<20, logger)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		logger.Info("starting server", zap.String("addr", addr), zap.String("provider", cfg.DefaultProvider), zap.String("output_dir", cfg.OutputDir))
		if err := s.ListenAndServe(ctx, addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	srvLoad.register(serveCmd)
	serveCmd.Flags().StringVar(&srvAddr, "addr", "", "listen address (default from config listen_addr)")
}
