package main

import (
	"fmt"
	"os"

	"memsys/internal/fixture"
	"memsys/internal/logging"
	"memsys/internal/memfs"

	"github.com/spf13/cobra"
)

var (
	logger = logging.GetLogger()
)

type rootOptions struct {
	fixture  string
	envFiles []string
	verbose  bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "memsys",
		Short: "In-memory file system fixtures",
		Long: `memsys builds an in-memory file system from a fixture manifest
(YAML or JSON, optionally .zst or .gz compressed) and lets you inspect it,
capture it back into a manifest, or mount it over FUSE.`,
		SilenceUsage: true,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			if opts.verbose {
				logger.SetLevel(logging.LevelDebug)
			}
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.fixture, "fixture", "f", "", "Fixture manifest to load")
	cmd.PersistentFlags().StringSliceVar(&opts.envFiles, "env-file", nil, "Dotenv files merged into the environment (repeatable)")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Enable verbose logging")

	cmd.AddCommand(newMountCmd(opts), newTreeCmd(opts), newSnapshotCmd(opts))
	return cmd
}

// buildFS creates the file system described by the root flags. Without a
// fixture the result holds only "/" plus any env-file variables.
func buildFS(opts *rootOptions) (*memfs.FS, error) {
	m := &fixture.Manifest{Version: fixture.Version}
	if opts.fixture != "" {
		loaded, err := fixture.Load(opts.fixture)
		if err != nil {
			return nil, err
		}
		m = loaded
	}

	if len(opts.envFiles) > 0 {
		env, err := fixture.LoadEnvFiles(opts.envFiles...)
		if err != nil {
			return nil, err
		}
		m.MergeEnv(env)
	}

	vfs := memfs.New()
	if err := fixture.Apply(vfs, m); err != nil {
		return nil, fmt.Errorf("failed to apply fixture: %w", err)
	}
	logger.Debug("Built file system with %d fixture entries", len(m.Entries))
	return vfs, nil
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
