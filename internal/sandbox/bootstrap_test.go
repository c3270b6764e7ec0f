package sandbox

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestBootstrapDependenciesNoManifestIsNoop(t *testing.T) {
	toolDir := t.TempDir()
	var log bytes.Buffer
	bootstrapDependencies(context.Background(), Python, toolDir, &log)
	if log.Len() != 0 {
		t.Errorf("expected no log output without a requirements.txt, got %q", log.String())
	}
}

func TestBootstrapPythonFailureIsLoggedNotFatal(t *testing.T) {
	toolDir := t.TempDir()
	if err := os.WriteFile(requirementsPath(toolDir), []byte("this-package-definitely-does-not-exist-xyz\n"), 0o644); err != nil {
		t.Fatalf("write requirements.txt: %v", err)
	}
	var log bytes.Buffer

	done := make(chan struct{})
	go func() {
		bootstrapDependencies(context.Background(), Python, toolDir, &log)
		close(done)
	}()
	<-done
	if log.Len() == 0 {
		t.Error("expected the failed install to be logged")
	}
}

func TestSiteDirPath(t *testing.T) {
	got := siteDir(filepath.Join("tools", "echo"))
	want := filepath.Join("tools", "echo", ".site")
	if got != want {
		t.Errorf("siteDir = %q, want %q", got, want)
	}
}
