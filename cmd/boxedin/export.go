package main

import (
	"archive/tar"
	"compress/gzip"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/yaegerbomb42/boxedin/internal/appconfig"
)

// buildExportCmd builds `export`: a tar.gz of <dataDir> and <sandboxDir>
// written to stdout, restorable with `import`.
func buildExportCmd(cfg *appconfig.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "export",
		Short: "Write a tar.gz of the data and sandbox directories to stdout",
		RunE: func(cmd *cobra.Command, args []string) error {
			return exportArchive(cfg.DataDir, cfg.SandboxDir, os.Stdout)
		},
	}
}

func exportArchive(dataDir, sandboxDir string, w io.Writer) error {
	gzw := gzip.NewWriter(w)
	defer gzw.Close()
	tw := tar.NewWriter(gzw)
	defer tw.Close()

	for _, root := range []string{dataDir, sandboxDir} {
		base := filepath.Base(root)
		if _, err := os.Stat(root); os.IsNotExist(err) {
			continue
		}
		if err := addTreeToTar(tw, root, base); err != nil {
			return fmt.Errorf("boxedin: export %s: %w", root, err)
		}
	}
	return nil
}

func addTreeToTar(tw *tar.Writer, root, archiveBase string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		name := archiveBase
		if rel != "." {
			name = filepath.Join(archiveBase, rel)
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		header, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		header.Name = name
		if d.IsDir() {
			header.Name += "/"
		}
		if err := tw.WriteHeader(header); err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = io.Copy(tw, f)
		return err
	})
}
