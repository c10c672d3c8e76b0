package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"postgres-rehydrate/internal/archive"
)

// createArchivesCommand creates the archives subcommand for listing the
// backup store contents
func createArchivesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "archives",
		Short: "List the backup archives available in the store",
		Long: `List every backup archive the configured store holds, with size and
modification time. Useful for finding a date to rehydrate from.

Examples:
  postgres-rehydrate archives --archive-root=/var/backups
  postgres-rehydrate archives --config=rehydrate.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var storeConfig archive.StoreConfig
			if err := viper.UnmarshalKey("archive", &storeConfig); err != nil {
				return fmt.Errorf("failed to unmarshal archive configuration: %w", err)
			}
			if storeConfig.Provider == "" {
				storeConfig.Provider = archive.StoreProviderType(archiveProvider)
			}
			if archiveRoot != "" {
				storeConfig.Local = &archive.LocalConfig{Root: archiveRoot}
			}

			ctx := context.Background()
			store, err := archive.NewStore(ctx, storeConfig)
			if err != nil {
				return err
			}

			entries, err := store.List(ctx)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Println("No archives found")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tSIZE\tMODIFIED")
			for _, entry := range entries {
				fmt.Fprintf(w, "%s\t%d\t%s\n",
					entry.Name, entry.Size, entry.LastModified.Format("2006-01-02 15:04:05"))
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&archiveProvider, "archive-provider", "local", "backup store provider (local, s3, gcs, azure)")
	cmd.Flags().StringVar(&archiveRoot, "archive-root", "", "archive directory for the local provider")
	return cmd
}
