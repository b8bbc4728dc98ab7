package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/music-crawler/internal/aggregate"
)

// newAggregateCmd creates the 'aggregate' subcommand.
func newAggregateCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "aggregate",
		Short: "Export normalized album vectors as CSV",
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			path := output
			if path == "" {
				path = appInstance.Config().Aggregate.Output
			}

			f, err := os.Create(path)
			if err != nil {
				return fmt.Errorf("create output: %w", err)
			}
			exporter := aggregate.NewExporter(appInstance.Store(), appInstance.Logger().Named("aggregate"))
			res, err := exporter.Export(cmd.Context(), f)
			if closeErr := f.Close(); err == nil && closeErr != nil {
				err = fmt.Errorf("close output: %w", closeErr)
			}
			if err != nil {
				return err
			}
			appInstance.Logger().Info("aggregate written",
				zap.String("path", path),
				zap.Int("albums", res.Written),
				zap.Int("skipped", res.Skipped),
			)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "CSV path (defaults to aggregate.output)")
	return cmd
}
