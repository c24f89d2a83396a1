package log

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestComponentAttribute(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: slog.LevelDebug, Format: "json", Output: &buf, Component: ComponentInvoice})
	l.WithComponent(ComponentWorker).Info("tick", FieldCount, 2)

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}
	if rec[FieldComponent] != ComponentWorker {
		t.Fatalf("component = %v, want %s", rec[FieldComponent], ComponentWorker)
	}
	if strings.Count(buf.String(), `"component"`) != 1 {
		t.Fatalf("component must appear once: %s", buf.String())
	}
}

func TestFieldsToSliceIsOrdered(t *testing.T) {
	got := NewFields().WithUser("u1").WithCard("c1").WithPeriod(3, 2024).ToSlice()
	want := []any{FieldCardID, "c1", FieldMonth, 3, FieldUserID, "u1", FieldYear, 2024}
	if len(got) != len(want) {
		t.Fatalf("ToSlice() = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("ToSlice()[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestMiddlewareLogsStatus(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Format: "json", Output: &buf})
	h := Middleware(l, func(*http.Request) string { return "req_1" })(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if FromContext(r.Context()).Component() != ComponentHTTP {
			t.Error("request logger should carry the http component")
		}
		w.WriteHeader(http.StatusConflict)
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/x", nil))

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}
	if rec["level"] != "WARN" || rec[FieldStatusCode].(float64) != 409 || rec[FieldRequestID] != "req_1" {
		t.Fatalf("unexpected record %v", rec)
	}
}
