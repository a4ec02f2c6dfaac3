// Command client computes k! mod m across a fleet of factorial servers.
//
// The fleet comes from a text file with one host:port entry per line
// (blank lines and '#' comments allowed). The interval [1, k] is split into
// one contiguous range per server; round trips run concurrently and servers
// that fail are skipped with a warning, degrading the result instead of
// aborting the run.
//
// Example usage:
//
//	client --k 1000 --mod 5 --servers servers.txt
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dreamware/modfact/internal/client"
	"github.com/dreamware/modfact/internal/cluster"
)

var (
	k           uint64
	mod         uint64
	serversPath string
	logLevel    string
)

func init() {
	cmd.Flags().Uint64Var(&k, "k", 0, "factorial argument (> 0)")
	cmd.Flags().Uint64Var(&mod, "mod", 0, "modulus (> 0)")
	cmd.Flags().StringVar(&serversPath, "servers", "", "path to the server list file")
	cmd.Flags().StringVar(&logLevel, "level", "info", "logging level")
	cmd.MarkFlagRequired("k")       //nolint:errcheck // flag exists
	cmd.MarkFlagRequired("mod")     //nolint:errcheck // flag exists
	cmd.MarkFlagRequired("servers") //nolint:errcheck // flag exists
}

var cmd = &cobra.Command{
	Use:          "client --k 1000 --mod 5 --servers /path/to/file",
	Short:        "distributed modular factorial client",
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if k == 0 {
			return fmt.Errorf("k must be greater than 0")
		}
		if mod == 0 {
			return fmt.Errorf("mod must be greater than 0")
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

		fleet, err := cluster.LoadEndpoints(serversPath, logger)
		if err != nil {
			return err
		}
		if len(fleet) == 0 {
			return fmt.Errorf("no valid servers found in %s", serversPath)
		}
		logger.Info("fleet loaded", zap.Int("servers", len(fleet)))

		c := client.New(client.WithLogger(logger))
		res, err := c.Compute(context.Background(), k, mod, fleet)
		if err != nil {
			return err
		}

		for _, sr := range res.Servers {
			if sr.Failed() {
				fmt.Fprintf(os.Stderr, "Warning: server %s failed, skipping its result\n", sr.Endpoint)
			}
		}
		fmt.Printf("Final answer: %d! mod %d = %d\n", k, mod, res.Value)
		return nil
	},
}

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
