package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/Team-Lightning-LLC/Scout-v3-Pulse-onward/internal/config"
)

func TestWith_AttachesContextFields(t *testing.T) {
	var buf bytes.Buffer
	base := NewWithWriter(config.LogConfig{Level: "debug", Format: "json"}, false, &buf)

	ctx := WithJobID(WithTraceID(context.Background(), "tr-1"), "job-1")
	l := With(ctx, Component(base, "test"))
	l.Info().Msg("hello")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("decode log line: %v (%q)", err, buf.String())
	}
	if rec["trace_id"] != "tr-1" || rec["job_id"] != "job-1" || rec["component"] != "test" {
		t.Fatalf("missing fields in %v", rec)
	}
}

func TestRedact(t *testing.T) {
	if got := Redact("short", false); got != "***" {
		t.Fatalf("Redact(short) = %q", got)
	}
	if got := Redact("sk-1234567890", false); got != "sk-1...90" {
		t.Fatalf("Redact(long) = %q", got)
	}
	if got := Redact("sk-1234567890", true); got != "sk-1234567890" {
		t.Fatalf("dev mode must not redact, got %q", got)
	}
}
