package cmd

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"panelbase/config"
)

func TestResolveConfigEditPath(t *testing.T) {
	t.Parallel()

	if got, err := resolveConfigEditPath("/tmp/flag.yaml", "/tmp/used.yaml"); err != nil || got != "/tmp/flag.yaml" {
		t.Fatalf("expected flag path to win, got %q (%v)", got, err)
	}
	if got, err := resolveConfigEditPath("", "/tmp/used.yaml"); err != nil || got != "/tmp/used.yaml" {
		t.Fatalf("expected active config path, got %q (%v)", got, err)
	}

	got, err := resolveConfigEditPath("", "")
	if err != nil {
		t.Fatalf("resolve default path: %v", err)
	}
	if !strings.HasSuffix(got, ".panelbase.yaml") {
		t.Fatalf("expected home default path, got %q", got)
	}
}

func TestEnsureConfigFileWithTemplate(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", ".panelbase.yaml")
	created, err := ensureConfigFileWithTemplate(path)
	if err != nil {
		t.Fatalf("ensure config file: %v", err)
	}
	if !created {
		t.Fatal("expected file created")
	}

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read created config: %v", err)
	}
	if string(content) != config.ExampleYAML() {
		t.Fatal("expected example template written")
	}

	created, err = ensureConfigFileWithTemplate(path)
	if err != nil {
		t.Fatalf("ensure existing config file: %v", err)
	}
	if created {
		t.Fatal("expected existing file left alone")
	}
}

func TestResolveEditorValue(t *testing.T) {
	t.Parallel()

	if got := resolveEditorValue("code --wait", "nano"); got != "code --wait" {
		t.Fatalf("expected VISUAL to win, got %q", got)
	}
	if got := resolveEditorValue("", "nano"); got != "nano" {
		t.Fatalf("expected EDITOR fallback, got %q", got)
	}
	if got := resolveEditorValue("  ", ""); got != "vi" {
		t.Fatalf("expected vi default, got %q", got)
	}
}

func TestBuildEditorCommand(t *testing.T) {
	t.Parallel()

	cmd, err := buildEditorCommand("code --wait", "/tmp/.panelbase.yaml")
	if err != nil {
		t.Fatalf("build editor command: %v", err)
	}
	if len(cmd.Args) != 3 || cmd.Args[1] != "--wait" || cmd.Args[2] != "/tmp/.panelbase.yaml" {
		t.Fatalf("unexpected editor args: %v", cmd.Args)
	}

	if _, err := buildEditorCommand("   ", "/tmp/.panelbase.yaml"); err == nil {
		t.Fatal("expected error for empty editor value")
	}
}
