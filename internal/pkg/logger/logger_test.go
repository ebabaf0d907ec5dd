package logger

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func TestInitWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: "debug", Environment: "production", Service: "admin-console", Output: &buf})

	log.Info().Str("component", "test").Msg("hello")

	out := buf.String()
	if !strings.Contains(out, `"service":"admin-console"`) || !strings.Contains(out, `"message":"hello"`) {
		t.Fatalf("unexpected log line %s", out)
	}
}

func TestFromContext(t *testing.T) {
	var buf bytes.Buffer
	l := zerolog.New(&buf).With().Str("request_id", "r-1").Logger()
	ctx := WithContext(context.Background(), l)

	FromContext(ctx).Info().Msg("scoped")
	if !strings.Contains(buf.String(), `"request_id":"r-1"`) {
		t.Fatalf("expected request id in %s", buf.String())
	}

	if FromContext(context.Background()) != &log.Logger {
		t.Fatal("expected global logger without a scoped one")
	}
}
