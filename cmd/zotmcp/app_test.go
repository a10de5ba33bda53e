package main

import (
	"context"
	"io"
	"os"
	"strings"
	"testing"

	"pkt.systems/pslog"
)

func TestInvocationTargetsRootCommand(t *testing.T) {
	root := newRootCommand(pslog.NewStructured(context.Background(), io.Discard))
	cases := []struct {
		name string
		args []string
		want bool
	}{
		{name: "no args", args: nil, want: true},
		{name: "root flag with value", args: []string{"--api-base", "https://example.org"}, want: true},
		{name: "root flag equals form", args: []string{"--api-base=https://example.org"}, want: true},
		{name: "root shorthand with value", args: []string{"-c", "/tmp/cfg.yaml"}, want: true},
		{name: "root bool flag only", args: []string{"--http"}, want: true},
		{name: "subcommand", args: []string{"version"}, want: false},
		{name: "search subcommand", args: []string{"search", "spin glass"}, want: false},
		{name: "subcommand after root flag", args: []string{"--config", "/tmp/cfg.yaml", "collections"}, want: false},
		{name: "subcommand after bool flag", args: []string{"--http", "search", "spin glass"}, want: false},
		{name: "unknown shorthand no subcommand", args: []string{"-z"}, want: true},
		{name: "unknown shorthand before subcommand", args: []string{"-z", "search", "x"}, want: false},
		{name: "unknown long before subcommand", args: []string{"--bogus", "collections"}, want: false},
		{name: "double dash terminates", args: []string{"--", "search"}, want: true},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			got := invocationTargetsRootCommand(root, tc.args)
			if got != tc.want {
				t.Fatalf("invocationTargetsRootCommand(%v)=%v want %v", tc.args, got, tc.want)
			}
		})
	}
}

func TestSubmainInvalidFlagLikeTokenBeforeSubcommand(t *testing.T) {
	origArgs := os.Args
	defer func() { os.Args = origArgs }()
	os.Args = []string{"zotmcp", "-z", "config", "gen"}

	stderr := captureStderr(t, func() {
		exitCode := submain(context.Background())
		if exitCode != 1 {
			t.Fatalf("submain() exitCode=%d want 1", exitCode)
		}
	})
	if !strings.Contains(stderr, `unknown command "gen" for "zotmcp"`) {
		t.Fatalf("expected parser failure routed to stderr, got %q", stderr)
	}
}

func TestRootConnectionFlagsArePersistent(t *testing.T) {
	root := newRootCommand(pslog.NewStructured(context.Background(), io.Discard))
	for _, name := range []string{"config", "api-key", "user-id", "api-base", "http-timeout", "upload-max-bytes", "log-level"} {
		if flag := root.PersistentFlags().Lookup(name); flag == nil {
			t.Fatalf("expected --%s on root persistent flags", name)
		}
	}
	for _, name := range []string{"http", "listen", "mcp-path", "metrics-listen", "pprof-listen", "otlp-endpoint"} {
		if flag := root.PersistentFlags().Lookup(name); flag != nil {
			t.Fatalf("expected --%s to not be persistent, got %#v", name, flag)
		}
		if flag := root.Flags().Lookup(name); flag == nil {
			t.Fatalf("expected --%s on root local flags", name)
		}
	}
}

func TestRootConfigShorthand(t *testing.T) {
	root := newRootCommand(pslog.NewStructured(context.Background(), io.Discard))
	if flag := root.PersistentFlags().ShorthandLookup("c"); flag == nil || flag.Name != "config" {
		t.Fatalf("expected global -c shorthand for --config, got %#v", flag)
	}
}

func TestDirectOpsRegistered(t *testing.T) {
	root := newRootCommand(pslog.NewStructured(context.Background(), io.Discard))
	for _, name := range []string{"version", "config", "search", "get", "collections", "create", "attach"} {
		sub, _, err := root.Find([]string{name})
		if err != nil {
			t.Fatalf("find %s command: %v", name, err)
		}
		if sub == nil || sub.Name() != name {
			t.Fatalf("expected %s command to be registered", name)
		}
	}
}

func captureStderr(t *testing.T, fn func()) string {
	t.Helper()
	orig := os.Stderr
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe: %v", err)
	}
	defer r.Close()
	os.Stderr = w
	defer func() {
		os.Stderr = orig
	}()

	done := make(chan string, 1)
	go func() {
		data, _ := io.ReadAll(r)
		done <- string(data)
	}()

	fn()
	_ = w.Close()
	return <-done
}
