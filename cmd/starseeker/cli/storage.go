package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/starseeker/starseeker/internal/kvstore"
)

func (c *CLI) storageCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "storage",
		Short:   "Inspect or reset the persistent storage",
		GroupID: "management",
	}

	dump := &cobra.Command{
		Use:   "dump",
		Short: "Print every stored key and value",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			entries := kvstore.Dump(cmd.Context(), c.app.Store, c.logger)
			if entries == nil {
				return errors.New("storage could not be read")
			}

			return c.printer().Print(entries, func(t *table) {
				t.Header("KEY", "VALUE")
				t.Empty("Storage is empty.")
				for _, e := range entries {
					t.Row(e.Key, e.Value)
				}
			})
		},
	}

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every stored favourite and the search history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !kvstore.ClearAll(cmd.Context(), c.app.Store, c.logger) {
				return errors.New("storage could not be cleared")
			}
			c.printer().Message("Storage cleared.")
			return nil
		},
	}

	cmd.AddCommand(dump, clearCmd)
	return cmd
}
