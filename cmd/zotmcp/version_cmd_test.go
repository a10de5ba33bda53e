package main

import (
	"bytes"
	"context"
	"io"
	"testing"

	"pkt.systems/pslog"
	"pkt.systems/zotmcp/internal/version"
)

func executeRootCommand(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand(pslog.NewStructured(context.Background(), io.Discard))
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestVersionCommandPrintsCurrentVersion(t *testing.T) {
	t.Setenv("ZOTMCP_CONFIG", "")

	stdout, stderr, err := executeRootCommand(t, "version")
	if err != nil {
		t.Fatalf("version command failed: %v", err)
	}
	if stderr != "" {
		t.Fatalf("expected empty stderr, got %q", stderr)
	}
	want := version.Module() + " " + version.Current() + "\n"
	if stdout != want {
		t.Fatalf("unexpected stdout: got %q want %q", stdout, want)
	}
}

func TestRootVersionFlagIsUnknown(t *testing.T) {
	t.Setenv("ZOTMCP_CONFIG", "")

	_, _, err := executeRootCommand(t, "--version")
	if err == nil {
		t.Fatal("expected unknown flag error for root --version")
	}
}
