package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"memsys/internal/mount"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newMountCmd(root *rootOptions) *cobra.Command {
	var (
		mountPoint string
		mountOpts  mount.Options
	)

	cmd := &cobra.Command{
		Use:   "mount",
		Short: "Serve the file system over FUSE until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if mountPoint == "" {
				return fmt.Errorf("--mount is required")
			}

			vfs, err := buildFS(root)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			srv := mount.New(vfs, mountOpts)
			if err := srv.Mount(filepath.Clean(mountPoint)); err != nil {
				return err
			}
			logger.Info("Filesystem mounted and ready")

			g, ctx := errgroup.WithContext(ctx)
			done := make(chan struct{})
			g.Go(func() error {
				defer close(done)
				return srv.Serve()
			})
			g.Go(func() error {
				select {
				case <-ctx.Done():
					logger.Info("Shutting down")
					return srv.Unmount()
				case <-done:
					return nil
				}
			})

			if err := g.Wait(); err != nil {
				return err
			}
			logger.Info("Clean shutdown complete")
			return nil
		},
	}

	cmd.Flags().StringVarP(&mountPoint, "mount", "m", "", "Mount point")
	cmd.Flags().StringVar(&mountOpts.FSName, "fsname", "memsys", "File system name shown in the mount table")
	cmd.Flags().BoolVar(&mountOpts.AllowOther, "allow-other", false, "Allow other users to access the mount")
	cmd.Flags().BoolVar(&mountOpts.ReadOnly, "read-only", false, "Mount read-only")
	return cmd
}
