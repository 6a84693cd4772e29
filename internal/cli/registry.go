package cli

import (
	"github.com/spf13/cobra"
)

var registryCSV string

var registryCmd = &cobra.Command{
	Use:   "registry",
	Short: "Manage the ticker registry",
}

var registryImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Upsert an exchange listing CSV into the stocks table",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().ImportRegistry(cmd.Context(), registryCSV)
	},
}

var graphCSV string

var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Manage the Neo4j sector graph",
}

var graphIngestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Merge companies and sectors from a CSV listing into Neo4j",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().IngestGraph(cmd.Context(), graphCSV)
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply embedded database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Migrate(cmd.Context())
	},
}

func init() {
	registryImportCmd.Flags().StringVar(&registryCSV, "csv", "", "Listing CSV (defaults to registry.csv_path)")
	registryCmd.AddCommand(registryImportCmd)

	graphIngestCmd.Flags().StringVar(&graphCSV, "csv", "", "Listing CSV with a sector column (defaults to registry.csv_path)")
	graphCmd.AddCommand(graphIngestCmd)
}
