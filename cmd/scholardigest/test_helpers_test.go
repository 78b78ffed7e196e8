package main

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"scholardigest/internal/config"
	"scholardigest/internal/pipeline"
	"scholardigest/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
	baseDir    string
}

func setupCLITestEnv(t *testing.T, opts ...testsupport.ConfigOption) *cliTestEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t, opts...)
	base := testsupport.BaseDir(cfg)
	t.Setenv("HOME", filepath.Join(base, "home"))
	configPath := filepath.Join(base, "config.toml")
	writeTestConfig(t, configPath, cfg)
	return &cliTestEnv{cfg: cfg, configPath: configPath, baseDir: base}
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}

type stubMailbox struct {
	messages  []pipeline.Message
	calls     int
	lastSince *time.Time
}

func (m *stubMailbox) FetchSince(_ context.Context, since *time.Time) ([]pipeline.Message, error) {
	m.calls++
	m.lastSince = since
	out := make([]pipeline.Message, 0, len(m.messages))
	for _, msg := range m.messages {
		if since != nil && msg.Timestamp.Before(*since) {
			continue
		}
		out = append(out, msg)
	}
	return out, nil
}

func stubMail(t *testing.T, messages ...pipeline.Message) *stubMailbox {
	t.Helper()
	box := &stubMailbox{messages: messages}
	prev := newMailSource
	newMailSource = func(context.Context, *config.Config, *slog.Logger) (pipeline.MailSource, error) {
		return box, nil
	}
	t.Cleanup(func() { newMailSource = prev })
	return box
}

// alertBody renders a minimal Scholar alert with one entry per title.
func alertBody(titles ...string) string {
	var b strings.Builder
	b.WriteString("<html><body>")
	for i, title := range titles {
		b.WriteString(`<h3><a class="gse_alrt_title" href="https://example.org/`)
		b.WriteString(strings.ReplaceAll(strings.ToLower(title), " ", "-"))
		b.WriteString(`">`)
		b.WriteString(title)
		b.WriteString(`</a></h3><div class="gse_alrt_sni">Snippet `)
		b.WriteByte(byte('A' + i))
		b.WriteString("</div>")
	}
	b.WriteString("</body></html>")
	return b.String()
}
