package main

import (
	"archive/tar"
	"compress/gzip"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/yaegerbomb42/boxedin/internal/appconfig"
)

// buildImportCmd builds `import <file.tgz>`: extract into a scratch
// directory, then move <basename(dataDir)> and <basename(sandboxDir)> over
// the live targets.
func buildImportCmd(cfg *appconfig.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.tgz>",
		Short: "Replace the data and sandbox directories from an export archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return importArchive(args[0], cfg.DataDir, cfg.SandboxDir)
		},
	}
}

func importArchive(archivePath, dataDir, sandboxDir string) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("boxedin: open %s: %w", archivePath, err)
	}
	defer f.Close()

	scratch, err := os.MkdirTemp("", "boxedin-import-*")
	if err != nil {
		return fmt.Errorf("boxedin: create scratch dir: %w", err)
	}
	defer os.RemoveAll(scratch)

	if err := extractTarGz(scratch, f); err != nil {
		return fmt.Errorf("boxedin: extract %s: %w", archivePath, err)
	}

	dataBase := filepath.Base(dataDir)
	sandboxBase := filepath.Base(sandboxDir)

	if err := replaceTree(filepath.Join(scratch, dataBase), dataDir); err != nil {
		return err
	}
	return replaceTree(filepath.Join(scratch, sandboxBase), sandboxDir)
}

// extractTarGz extracts r's tar.gz contents under destDir, skipping any
// entry whose path would escape destDir.
func extractTarGz(destDir string, r io.Reader) error {
	gzr, err := gzip.NewReader(r)
	if err != nil {
		return err
	}
	defer gzr.Close()

	tr := tar.NewReader(gzr)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}

		target := filepath.Join(destDir, filepath.Clean(header.Name))
		if !strings.HasPrefix(target, filepath.Clean(destDir)+string(os.PathSeparator)) && target != filepath.Clean(destDir) {
			continue
		}

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return err
			}
			out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, os.FileMode(header.Mode))
			if err != nil {
				return err
			}
			if _, err := io.Copy(out, tr); err != nil {
				out.Close()
				return err
			}
			out.Close()
		}
	}
	return nil
}

// replaceTree replaces dst with src if src exists: dst is removed first,
// then src is renamed (or, failing that, copied) into its place, so the
// swap is not atomic. A tree absent from the archive, e.g. an export that
// had no sandbox yet, is left untouched rather than deleting a live dst.
func replaceTree(src, dst string) error {
	if _, err := os.Stat(src); os.IsNotExist(err) {
		return nil
	}
	if err := os.RemoveAll(dst); err != nil {
		return fmt.Errorf("boxedin: remove %s: %w", dst, err)
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	// The scratch dir commonly lives on a different filesystem (tmpfs), so
	// rename can fail with EXDEV; fall back to copying the tree.
	if err := copyTree(src, dst); err != nil {
		return fmt.Errorf("boxedin: copy %s into place: %w", dst, err)
	}
	return nil
}

func copyTree(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		in, err := os.Open(path)
		if err != nil {
			return err
		}
		defer in.Close()
		out, err := os.Create(target)
		if err != nil {
			return err
		}
		if _, err := io.Copy(out, in); err != nil {
			out.Close()
			return err
		}
		return out.Close()
	})
}
