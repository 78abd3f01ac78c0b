package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/bagtoad/sqlext"
	"github.com/bagtoad/sqlext/internal/resource"
)

func main() {
	var verbose bool
	var pkgName, extName, libPath, tempDir string

	newExtension := func() (*sqlext.Extension, error) {
		var opts []sqlext.Option
		if verbose {
			log, err := zap.NewDevelopment()
			if err != nil {
				return nil, fmt.Errorf("cannot build logger: %w", err)
			}
			opts = append(opts, sqlext.WithLogger(log))
		}
		if tempDir != "" {
			opts = append(opts, sqlext.WithTempDir(tempDir))
		}
		var src resource.Source
		if libPath != "" {
			src = resource.FromBytes(mustRead(libPath))
		}
		return sqlext.New(sqlext.Config{
			Package: pkgName,
			Name:    extName,
			Source:  src,
		}, opts...), nil
	}

	rootCmd := &cobra.Command{
		Use:   "sqlext",
		Short: "Extract and inspect the bundled SQLite extension library",
		Long: `sqlext operates the temp-directory extraction protocol used to make
the bundled SQLite extension loadable by path: it can extract the payload,
sweep stale artifacts left by earlier runs, and print the naming scheme.

Note that artifacts extracted by this tool become stale as soon as the
process exits; the next run (or any consumer) reclaims them.`,
	}

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log protocol steps")
	rootCmd.PersistentFlags().StringVar(&pkgName, "package", "github.com/bagtoad/sqlext", "Identity namespace")
	rootCmd.PersistentFlags().StringVar(&extName, "name", "sqlite_ext", "Extension base name without suffix")
	rootCmd.PersistentFlags().StringVar(&tempDir, "temp-dir", "", "Extraction directory (default: OS temp directory)")

	extractCmd := &cobra.Command{
		Use:   "extract",
		Short: "Extract the payload and print the resulting path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ext, err := newExtension()
			if err != nil {
				return err
			}
			path, err := ext.ExtractedPath()
			if err != nil {
				return err
			}
			fmt.Println(path)
			return nil
		},
	}
	extractCmd.Flags().StringVar(&libPath, "payload", "", "Use the named file as the payload instead of the embedded one")

	cleanCmd := &cobra.Command{
		Use:   "clean",
		Short: "Delete stale artifacts whose lock is no longer held",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ext, err := newExtension()
			if err != nil {
				return err
			}
			res := ext.SweepStale()
			fmt.Printf("removed %d, in use %d, failed %d\n", res.Removed, res.InUse, res.Failed)
			return nil
		},
	}

	infoCmd := &cobra.Command{
		Use:   "info",
		Short: "Print the extension's identity and file naming",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ext, err := newExtension()
			if err != nil {
				return err
			}
			fmt.Printf("identity: %s\n", ext.Identity())
			fmt.Printf("basename: %s\n", ext.Basename())
			fmt.Printf("suffix:   %s\n", sqlext.DLLSuffix())
			return nil
		},
	}

	rootCmd.AddCommand(extractCmd, cleanCmd, infoCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func mustRead(path string) []byte {
	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "cannot read payload: %v\n", err)
		os.Exit(1)
	}
	return data
}
