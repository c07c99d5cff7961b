package stdout

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/crimson-sun/machwatch/internal/model"
)

func testOutcome(idx int, label model.Label) model.Outcome {
	return model.Outcome{
		Row:       model.SensorRow{Index: idx, Temperature: 90, RotationalSpeed: 2250, Torque: 39},
		Label:     label,
		Timestamp: time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC),
	}
}

func TestTextStatus(t *testing.T) {
	var buf bytes.Buffer
	out := NewWriter(&buf, false, false)

	out.Write(context.Background(), testOutcome(1, model.Normal))
	out.Write(context.Background(), testOutcome(2, model.Failure))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(lines))
	}
	if lines[0] != "[ OK ] Row 1: Normal operation" {
		t.Errorf("line 0 = %q", lines[0])
	}
	if lines[1] != "[FAIL] Failure detected at row 2 — ALERT!" {
		t.Errorf("line 1 = %q", lines[1])
	}
}

func TestJSONStatus(t *testing.T) {
	var buf bytes.Buffer
	out := NewWriter(&buf, true, false)

	if err := out.Write(context.Background(), testOutcome(4, model.Failure)); err != nil {
		t.Fatalf("Write error: %v", err)
	}

	var s model.Status
	if err := json.Unmarshal(buf.Bytes(), &s); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, buf.String())
	}
	if s.Row != 4 || s.Label != 1 || s.Status != "failure" {
		t.Errorf("status = %+v", s)
	}
	if s.RotationalSpeed != 2250 {
		t.Errorf("rotational_speed = %v, want 2250", s.RotationalSpeed)
	}
}

func TestPrettyJSONIsIndented(t *testing.T) {
	var buf bytes.Buffer
	out := NewWriter(&buf, true, true)
	out.Write(context.Background(), testOutcome(1, model.Normal))

	if !strings.Contains(buf.String(), "\n  \"row\": 1") {
		t.Errorf("expected indented output, got:\n%s", buf.String())
	}
}
