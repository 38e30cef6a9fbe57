package logger

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/aws/aws-xray-sdk-go/xray"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlogLogger_LogsJSONWithoutTraceContext(t *testing.T) {
	buf := new(bytes.Buffer)
	l := NewWithWriter(buf, slog.LevelDebug)

	l.Info(context.Background(), "alert acknowledged", "alert_id", "alt_1")

	output := buf.String()
	if !strings.Contains(output, "\"msg\":\"alert acknowledged\"") {
		t.Fatalf("expected message in output: %s", output)
	}
	if !strings.Contains(output, "\"service\":\"smart-factory\"") {
		t.Fatalf("expected service attribute in output: %s", output)
	}
	if strings.Contains(output, "trace_id") {
		t.Fatalf("did not expect trace_id without segment: %s", output)
	}
}

func TestSlogLogger_LogsWithTraceIDWhenSegmentExists(t *testing.T) {
	buf := new(bytes.Buffer)
	l := NewWithWriter(buf, slog.LevelDebug)

	ctx, seg := xray.BeginSegment(context.Background(), "test-segment")
	defer seg.Close(nil)

	l.Warn(ctx, "rule evaluation failed")

	output := buf.String()
	if !strings.Contains(output, "trace_id") {
		t.Fatalf("expected trace_id in output: %s", output)
	}
}

func TestSlogLogger_RespectsLevel(t *testing.T) {
	buf := new(bytes.Buffer)
	l := NewWithWriter(buf, slog.LevelWarn)

	l.Debug(context.Background(), "hidden")
	l.Info(context.Background(), "hidden too")
	assert.Zero(t, buf.Len())

	l.Error(context.Background(), "shown")
	assert.Contains(t, buf.String(), "\"level\":\"ERROR\"")
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{"": slog.LevelInfo, "DEBUG": slog.LevelDebug, "warning": slog.LevelWarn, " error ": slog.LevelError}
	for in, want := range cases {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseLevel("verbose")
	assert.Error(t, err)
}
