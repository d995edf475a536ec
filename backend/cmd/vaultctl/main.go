package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"vault-graph-sync/backend/internal/graph"
	"vault-graph-sync/backend/internal/services"
	"vault-graph-sync/backend/pkg/config"
	"vault-graph-sync/backend/pkg/logger"
)

// offline commands only need the vault on disk
const annotationOffline = "offline"

// app carries what the subcommands share
type app struct {
	cfg *config.Config
	log *zap.Logger
	sm  *services.ServiceManager

	// store replaces the Neo4j connection when set
	store graph.Store
}

func main() {
	a := &app{}
	err := newRootCmd(a).Execute()
	a.close(context.Background())
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd(a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "vaultctl",
		Short: "Operate the vault graph sync",
		Long: `vaultctl syncs a markdown vault into the Neo4j graph and inspects the result.

Connection settings come from the environment (and an optional .env file),
the same as the server.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "help" || cmd.Name() == "completion" {
				return nil
			}
			return a.open(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			a.close(cmd.Context())
		},
	}

	rootCmd.PersistentFlags().String("vault", "", "Path to the vault (overrides VAULT_PATH)")
	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON")
	rootCmd.PersistentFlags().Bool("verbose", false, "Log at debug level")

	rootCmd.AddCommand(
		newSyncCmd(a),
		newStatusCmd(a),
		newClearCmd(a),
		newQueryCmd(a),
		newNoteIDCmd(a),
		newRelatedCmd(a),
		newSearchCmd(a),
	)
	return rootCmd
}

func (a *app) open(cmd *cobra.Command) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if vaultPath, _ := cmd.Flags().GetString("vault"); vaultPath != "" {
		cfg.VaultPath = vaultPath
	}
	a.cfg = cfg

	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		if a.log, err = logger.New("development"); err != nil {
			return err
		}
	} else {
		a.log = zap.NewNop()
	}

	if cmd.Annotations[annotationOffline] == "true" {
		return nil
	}

	opts := []services.Option{services.WithoutQueue()}
	if a.store != nil {
		opts = append(opts, services.WithGraphStore(a.store))
	}
	a.sm = services.NewServiceManager(cfg, a.log, opts...)
	return a.sm.StartAll(cmd.Context())
}

// close is safe to call more than once; a failed command skips PersistentPostRun
func (a *app) close(ctx context.Context) {
	if a.sm != nil {
		a.sm.StopAll(ctx)
		a.sm = nil
	}
	logger.Sync(a.log)
}

func jsonOutput(cmd *cobra.Command) bool {
	out, _ := cmd.Flags().GetBool("json")
	return out
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
