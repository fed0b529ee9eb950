package logger

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestNewJSON(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	log := New(&buf, Options{Level: slog.LevelInfo, Format: FormatJSON})
	log.Info("container written", "path", "out.dtk")

	output := buf.String()
	if !strings.Contains(output, `"msg":"container written"`) {
		t.Fatalf("expected message in output, got: %s", output)
	}
	if !strings.Contains(output, `"path":"out.dtk"`) {
		t.Fatalf("expected path attr in JSON output, got: %s", output)
	}
}

func TestNewText(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	log := New(&buf, Options{Level: slog.LevelInfo, Format: FormatText})
	log.Warn("fallback", "engine", "LZ4")

	if !strings.Contains(buf.String(), "level=WARN") || !strings.Contains(buf.String(), "engine=LZ4") {
		t.Fatalf("unexpected text output: %s", buf.String())
	}
}

func TestLevelFiltering(t *testing.T) {
	t.Parallel()
	for _, f := range []Format{FormatPretty, FormatText, FormatJSON} {
		var buf bytes.Buffer
		log := New(&buf, Options{Level: slog.LevelWarn, Format: f})
		log.Info("hidden")
		log.Debug("hidden")
		if buf.Len() > 0 {
			t.Fatalf("%s: expected no output below warn, got: %s", f, buf.String())
		}
		log.Error("shown")
		if !strings.Contains(buf.String(), "shown") {
			t.Fatalf("%s: expected error output, got: %s", f, buf.String())
		}
	}
}

func TestDiscard(t *testing.T) {
	t.Parallel()
	log := Discard()
	log.Error("dropped")
	if log.Slog().Enabled(context.Background(), slog.LevelError) {
		t.Fatal("discard logger should not be enabled")
	}
}

func TestWithAndGroup(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	log := New(&buf, Options{Format: FormatJSON}).With("component", "api").WithGroup("req")
	log.Info("served", "status", 200)

	output := buf.String()
	if !strings.Contains(output, `"component":"api"`) {
		t.Fatalf("expected component attr, got: %s", output)
	}
	if !strings.Contains(output, `"req":{"status":200}`) {
		t.Fatalf("expected grouped attr, got: %s", output)
	}
}

func TestContextRoundTrip(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	log := New(&buf, Options{Format: FormatText})

	ctx := WithContext(context.Background(), log)
	FromContext(ctx).Info("roundtrip")
	if !strings.Contains(buf.String(), "roundtrip") {
		t.Fatalf("expected message via context logger, got: %s", buf.String())
	}
	if FromContext(context.Background()) == nil {
		t.Fatal("FromContext without a logger returned nil")
	}
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input   string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"DEBUG", slog.LevelDebug, false},
		{"info", slog.LevelInfo, false},
		{"", slog.LevelInfo, false},
		{"Warn", slog.LevelWarn, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"loud", slog.LevelInfo, true},
	}
	for _, tc := range tests {
		got, err := ParseLevel(tc.input)
		if (err != nil) != tc.wantErr {
			t.Errorf("ParseLevel(%q): err=%v wantErr=%v", tc.input, err, tc.wantErr)
		}
		if got != tc.want {
			t.Errorf("ParseLevel(%q): got %v want %v", tc.input, got, tc.want)
		}
	}
}

func TestParseFormat(t *testing.T) {
	t.Parallel()

	for in, want := range map[string]Format{"": FormatPretty, "JSON": FormatJSON, "text": FormatText, " pretty ": FormatPretty} {
		got, err := ParseFormat(in)
		if err != nil || got != want {
			t.Errorf("ParseFormat(%q): got %q, %v", in, got, err)
		}
	}
	if _, err := ParseFormat("xml"); err == nil {
		t.Error("ParseFormat(xml) should fail")
	}
}

func TestPrettyWithoutColor(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	slog.New(NewPrettyHandler(&buf, nil, false)).Info("plain", "key", "value")

	output := buf.String()
	if strings.Contains(output, "\033[") {
		t.Fatalf("unexpected escape codes: %q", output)
	}
	if !strings.Contains(output, "INFO  plain key=value") {
		t.Fatalf("unexpected layout: %q", output)
	}
}

func TestPrettyWithColor(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	slog.New(NewPrettyHandler(&buf, nil, true)).Error("boom")

	if !strings.Contains(buf.String(), ansiRed) {
		t.Fatalf("expected red level, got: %q", buf.String())
	}
}

func TestPrettyEnabled(t *testing.T) {
	t.Parallel()
	h := NewPrettyHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelWarn}, false)
	if h.Enabled(context.Background(), slog.LevelInfo) {
		t.Error("info should be disabled at warn level")
	}
	if !h.Enabled(context.Background(), slog.LevelWarn) {
		t.Error("warn should be enabled at warn level")
	}
}

func TestPrettyGroups(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	h := NewPrettyHandler(&buf, nil, false).
		WithAttrs([]slog.Attr{slog.String("service", "dtk")}).
		WithGroup("a").
		WithAttrs([]slog.Attr{slog.Int("chunk", 2)}).
		WithGroup("b")
	slog.New(h).Info("nested", "key", "val")

	output := buf.String()
	for _, want := range []string{"service=dtk", "a.chunk=2", "a.b.key=val"} {
		if !strings.Contains(output, want) {
			t.Fatalf("expected %q in output, got: %s", want, output)
		}
	}
	if strings.Contains(output, "a.a.chunk") {
		t.Fatalf("group prefix applied twice: %s", output)
	}
}

func TestPrettyEmptyGroupIsNoop(t *testing.T) {
	t.Parallel()
	h := NewPrettyHandler(&bytes.Buffer{}, nil, false)
	if h.WithGroup("") != slog.Handler(h) {
		t.Fatal("WithGroup(\"\") should return the same handler")
	}
}

func TestPrettyQuoting(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	slog.New(NewPrettyHandler(&buf, nil, false)).Info("q", "msg", "hello world", "simple", "ok", "empty", "")

	output := buf.String()
	for _, want := range []string{`msg="hello world"`, "simple=ok", `empty=""`} {
		if !strings.Contains(output, want) {
			t.Fatalf("expected %s in output, got: %s", want, output)
		}
	}
}
