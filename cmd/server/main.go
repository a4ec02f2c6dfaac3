// Command server runs the factorial computation server: it listens on a TCP
// port, answers modular range-product requests, and parallelizes each
// request across a fixed number of worker goroutines.
//
// Example usage:
//
//	server --port 20001 --tnum 4
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dreamware/modfact/internal/server"
)

var (
	port     int
	tnum     int
	logLevel string
)

func init() {
	cmd.Flags().IntVar(&port, "port", 0, "TCP port to listen on (1..65535)")
	cmd.Flags().IntVar(&tnum, "tnum", 0, "worker goroutines per request (>= 1)")
	cmd.Flags().StringVar(&logLevel, "level", "info", "logging level")
	cmd.MarkFlagRequired("port") //nolint:errcheck // flag exists
	cmd.MarkFlagRequired("tnum") //nolint:errcheck // flag exists
}

var cmd = &cobra.Command{
	Use:          "server --port 20001 --tnum 4",
	Short:        "distributed factorial computation server",
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if port < 1 || port > 65535 {
			return fmt.Errorf("invalid port %d: must be between 1 and 65535", port)
		}
		if tnum < 1 {
			return fmt.Errorf("invalid thread count %d: must be >= 1", tnum)
		}
		lvl, err := zap.ParseAtomicLevel(logLevel)
		if err != nil {
			return fmt.Errorf("invalid log level %q: %w", logLevel, err)
		}
		cfg := zap.NewProductionConfig()
		cfg.Level = lvl
		logger, err := cfg.Build()
		if err != nil {
			return err
		}
		defer logger.Sync() //nolint:errcheck // best effort on shutdown

		srv := server.New(tnum, server.WithLogger(logger))
		if err := srv.Listen(fmt.Sprintf(":%d", port)); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		go func() {
			<-ctx.Done()
			srv.Close()
		}()

		if err := srv.Serve(); err != nil && !errors.Is(err, net.ErrClosed) {
			return err
		}
		logger.Info("server stopped")
		return nil
	},
}

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
