package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"vault-graph-sync/backend/internal/graph"
	"vault-graph-sync/backend/internal/identity"
	"vault-graph-sync/backend/internal/vault"
	"vault-graph-sync/backend/internal/vaultsync"
)

func newSyncCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "sync [file]",
		Short: "Sync the whole vault, or a single file",
		Long: `Without arguments every markdown file is upserted and the tag and
semantic relationship passes run over the whole vault.

With a file argument only that note is created, updated or deleted.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc := a.sm.Service()
			ctx := cmd.Context()

			if len(args) == 1 {
				if err := svc.SyncSingleFile(ctx, args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Synced %s\n", args[0])
				return nil
			}

			report, err := svc.InitialSync(ctx)
			if err != nil {
				return err
			}
			if jsonOutput(cmd) {
				return printJSON(cmd, report)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Synced %d notes (%d unreadable) in %s\n",
				report.Notes, report.Unreadable, report.Elapsed.Round(time.Millisecond))
			fmt.Fprintf(cmd.OutOrStdout(), "Relationships: %d tag, %d semantic\n",
				report.TagRelationships, report.SemanticRelationships)
			return nil
		},
	}
}

func newStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show graph connection and counts for the vault",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			snap := a.sm.Hub().Snapshot(cmd.Context())
			if jsonOutput(cmd) {
				return printJSON(cmd, snap)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Vault:         %s\n", snap.VaultID)
			fmt.Fprintf(out, "Connected:     %t\n", snap.Connected)
			fmt.Fprintf(out, "Notes:         %d\n", snap.Counts.Notes)
			fmt.Fprintf(out, "Tags:          %d\n", snap.Counts.Tags)
			fmt.Fprintf(out, "Relationships: %d\n", snap.Counts.Relationships)
			return nil
		},
	}
}

func newClearCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every node, edge, vector and hash of the vault",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if yes, _ := cmd.Flags().GetBool("yes"); !yes {
				return errors.New("refusing to clear without --yes")
			}
			if err := a.sm.Service().ClearVault(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Vault data cleared")
			return nil
		},
	}
	cmd.Flags().Bool("yes", false, "Confirm the clear")
	return cmd
}

func newQueryCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "query <cypher>",
		Short: "Run a Cypher query and print the rows as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rows, err := a.sm.Service().Store().ExecuteQuery(cmd.Context(), args[0], nil)
			if err != nil {
				return err
			}
			return printJSON(cmd, rows)
		},
	}
}

func newNoteIDCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:         "note-id <path>",
		Short:       "Print the note id a vault file maps to",
		Args:        cobra.ExactArgs(1),
		Annotations: map[string]string{annotationOffline: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := vault.NewStore(a.cfg.VaultPath)
			if err != nil {
				return err
			}
			vaultID := a.cfg.VaultID
			if vaultID == "" {
				vaultID = identity.VaultID(v.Root())
			}
			id, err := vaultsync.NewExtractor(v, vaultID).NoteID(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		},
	}
}

func newRelatedCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "related <path|note-id>",
		Short: "List notes related to a note",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc := a.sm.Service()
			id := args[0]
			if vault.IsMarkdown(id) {
				noteID, err := vaultsync.NewExtractor(svc.Vault(), svc.VaultID()).NoteID(id)
				if err != nil {
					return err
				}
				id = noteID
			}

			var relType graph.RelType
			if raw, _ := cmd.Flags().GetString("type"); raw != "" {
				t, err := graph.ParseRelType(strings.ToUpper(raw))
				if err != nil {
					return err
				}
				relType = t
			}
			depth, _ := cmd.Flags().GetInt("depth")

			notes, err := svc.Store().GetRelatedNotes(cmd.Context(), id, relType, depth)
			if err != nil {
				return err
			}
			if jsonOutput(cmd) {
				return printJSON(cmd, notes)
			}
			if len(notes) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No related notes")
				return nil
			}
			for _, n := range notes {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", n.ID, n.Path)
			}
			return nil
		},
	}
	cmd.Flags().String("type", "", "Only follow this relationship type")
	cmd.Flags().Int("depth", 1, "Number of hops")
	return cmd
}

func newSearchCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search notes, semantically when embeddings are configured",
		Long: `Search notes by meaning through the vector index. Without an embedding
model or vector store the graph fulltext index is used instead.

Examples:
  vaultctl search "release checklist"
  vaultctl search kafka -k 5`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc := a.sm.Service()
			k, _ := cmd.Flags().GetInt("limit")

			hits, err := graph.SearchSimilar(cmd.Context(), svc.Store(), svc.VaultID(), args[0], k, a.log)
			if err != nil {
				return err
			}
			if jsonOutput(cmd) {
				return printJSON(cmd, hits)
			}
			if len(hits) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No results found")
				return nil
			}
			for _, h := range hits {
				fmt.Fprintf(cmd.OutOrStdout(), "[%s %.2f] %s\n", h.Method, h.Score, h.Note.Path)
			}
			return nil
		},
	}
	cmd.Flags().IntP("limit", "k", 10, "Maximum number of results")
	return cmd
}
