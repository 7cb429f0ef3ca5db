package main

import (
	"fmt"

	"memsys/internal/fixture"

	"github.com/spf13/cobra"
)

func newSnapshotCmd(root *rootOptions) *cobra.Command {
	var (
		start  string
		output string
		format string
	)

	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Write the file system back out as a manifest",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			vfs, err := buildFS(root)
			if err != nil {
				return err
			}
			m, err := fixture.Snapshot(vfs, start)
			if err != nil {
				return err
			}

			if output != "" {
				store, err := fixture.NewStore(output)
				if err != nil {
					return err
				}
				if err := store.Save(m); err != nil {
					return err
				}
				logger.Info("Wrote snapshot to %s", store.Path())
				return nil
			}

			switch format {
			case "yaml":
				return fixture.Encode(cmd.OutOrStdout(), m, fixture.FormatYAML)
			case "json":
				return fixture.Encode(cmd.OutOrStdout(), m, fixture.FormatJSON)
			default:
				return fmt.Errorf("%w: %s", fixture.ErrUnknownFormat, format)
			}
		},
	}
	cmd.Flags().StringVar(&start, "root", "/", "Directory to capture")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Manifest file to write, keeping backups (stdout if empty)")
	cmd.Flags().StringVar(&format, "format", "yaml", "Stdout format: yaml or json")
	return cmd
}
