package logger

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
)

func TestLoggerErrorIncludesContextFields(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "test", Level: ParseLevel("debug"), Output: buf})

	ctx := context.Background()
	ctx = log.WithRequestID(ctx, "req-123")
	ctx = log.WithResource(ctx, "charge", "chr_test_1")

	log.Error(ctx, "boom", errors.New("boom"))

	for _, field := range []string{"\"request_id\"", "\"gateway_id\":\"chr_test_1\"", "\"stack\""} {
		if !bytes.Contains(buf.Bytes(), []byte(field)) {
			t.Fatalf("expected %s in entry=%s", field, buf.String())
		}
	}
}

func TestLoggerWarnStackToggle(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "test", Level: ParseLevel("debug"), Output: buf, WarnStack: true})
	log.Warn(context.Background(), "warny")
	if !bytes.Contains(buf.Bytes(), []byte("\"stack\"")) {
		t.Fatalf("expected stack when warn stack enabled")
	}

	buf.Reset()
	quiet := New(Options{ServiceName: "test", Output: buf})
	quiet.Warn(context.Background(), "warny")
	if bytes.Contains(buf.Bytes(), []byte("\"stack\"")) {
		t.Fatalf("stack should be omitted when warn stack disabled")
	}
}

func TestLoggerLevelFiltersDebug(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "test", Level: zerolog.InfoLevel, Output: buf})
	log.Debug(context.Background(), "hidden")
	if buf.Len() != 0 {
		t.Fatalf("debug entry should be filtered at info level, got %s", buf.String())
	}
}

func TestParseLevelDefaults(t *testing.T) {
	if lvl := ParseLevel(""); lvl != zerolog.InfoLevel {
		t.Fatalf("expected default info level, got %v", lvl)
	}
	if lvl := ParseLevel("invalid"); lvl != zerolog.InfoLevel {
		t.Fatalf("invalid level should fallback to info, got %v", lvl)
	}
	if lvl := ParseLevel(" WARN "); lvl != zerolog.WarnLevel {
		t.Fatalf("expected warn level, got %v", lvl)
	}
}

func TestGatewayHelpersTagEntries(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "test", Level: ParseLevel("debug"), Output: buf})

	ctx := log.WithGatewayCall(context.Background(), "GET", "/v2/charges/chr_test_1")
	ctx = log.WithTrackingID(ctx, "")
	log.Info(ctx, "no tracking yet")
	if bytes.Contains(buf.Bytes(), []byte("tracking_id")) {
		t.Fatalf("blank tracking id should be skipped, got %s", buf.String())
	}

	buf.Reset()
	ctx = log.WithTrackingID(ctx, "trk-42")
	ctx = log.WithJob(ctx, "subscription-reconcile")
	log.Info(ctx, "tagged")
	for _, field := range []string{
		"\"gateway_method\":\"GET\"",
		"\"gateway_path\":\"/v2/charges/chr_test_1\"",
		"\"tracking_id\":\"trk-42\"",
		"\"job\":\"subscription-reconcile\"",
	} {
		if !bytes.Contains(buf.Bytes(), []byte(field)) {
			t.Fatalf("expected %s in entry=%s", field, buf.String())
		}
	}
}

func TestWithCompensationMarksRepairRecord(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "test", Output: buf})

	ctx := log.WithCompensation(context.Background(), "card", "crd_test_9", map[string]any{"last_four": "1111"}, map[string]string{"pg_code": "23505"})
	log.Error(ctx, "persist failed", errors.New("db down"))

	for _, field := range []string{
		"\"resource\":\"card\"",
		"\"gateway_id\":\"crd_test_9\"",
		"\"compensation\":true",
		"\"last_four\":\"1111\"",
		"\"pg_code\":\"23505\"",
	} {
		if !bytes.Contains(buf.Bytes(), []byte(field)) {
			t.Fatalf("expected %s in entry=%s", field, buf.String())
		}
	}
}
