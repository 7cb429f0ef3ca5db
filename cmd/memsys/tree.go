package main

import (
	"fmt"
	"io"
	"strings"

	"memsys/internal/memfs"

	"github.com/spf13/cobra"
)

func newTreeCmd(root *rootOptions) *cobra.Command {
	var start string

	cmd := &cobra.Command{
		Use:   "tree",
		Short: "Print the file system tree",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			vfs, err := buildFS(root)
			if err != nil {
				return err
			}
			return printTree(cmd.OutOrStdout(), vfs, start)
		},
	}
	cmd.Flags().StringVar(&start, "root", "/", "Directory to print from")
	return cmd
}

// printTree writes one line per entry, indented by depth. Directories end
// in "/", symlinks show their target and files their size.
func printTree(w io.Writer, vfs *memfs.FS, start string) error {
	start = memfs.Normalize(start)
	return vfs.Walk(start, func(p string, d memfs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if p == start {
			_, err := fmt.Fprintln(w, start)
			return err
		}

		rel := strings.Trim(strings.TrimPrefix(p, start), "/")
		indent := strings.Repeat("  ", strings.Count(rel, "/")+1)

		switch d.FileType() {
		case memfs.TypeDir:
			_, err = fmt.Fprintf(w, "%s%s/\n", indent, d.Name())
		case memfs.TypeSymlink:
			target, lerr := vfs.ReadLink(p)
			if lerr != nil {
				return lerr
			}
			_, err = fmt.Fprintf(w, "%s%s -> %s\n", indent, d.Name(), target)
		default:
			_, err = fmt.Fprintf(w, "%s%s (%d bytes)\n", indent, d.Name(), d.Metadata().Size())
		}
		return err
	})
}
