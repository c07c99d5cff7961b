package chart

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/crimson-sun/machwatch/internal/model"
)

var pngMagic = []byte("\x89PNG\r\n\x1a\n")

func outcomes() []model.Outcome {
	return []model.Outcome{
		{Row: model.SensorRow{Index: 1, Temperature: 90, RotationalSpeed: 2250, Torque: 39}, Label: model.Normal},
		{Row: model.SensorRow{Index: 2, Temperature: 71.3, RotationalSpeed: 1408, Torque: 46.3}, Label: model.Normal},
		{Row: model.SensorRow{Index: 3, Temperature: 102.4, RotationalSpeed: 1210, Torque: 68.1}, Label: model.Failure},
	}
}

func TestSeriesSameOrderSameLength(t *testing.T) {
	out, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	for _, o := range outcomes() {
		out.Write(context.Background(), o)
	}

	s := out.Series()
	want := Series{
		Rows:            []float64{1, 2, 3},
		Predictions:     []float64{0, 0, 1},
		Temperature:     []float64{90, 71.3, 102.4},
		RotationalSpeed: []float64{2250, 1408, 1210},
		Torque:          []float64{39, 46.3, 68.1},
	}
	if diff := cmp.Diff(want, s); diff != "" {
		t.Errorf("series mismatch (-want +got):\n%s", diff)
	}
}

func TestCloseRendersBothCharts(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "charts")
	out, err := New(dir)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	for _, o := range outcomes() {
		out.Write(context.Background(), o)
	}
	if err := out.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}

	for _, name := range []string{PredictionsFile, SensorsFile} {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			t.Fatalf("read %s: %v", name, err)
		}
		if !bytes.HasPrefix(data, pngMagic) {
			t.Errorf("%s is not a PNG", name)
		}
	}
}

func TestCloseSkipsSingleRow(t *testing.T) {
	dir := t.TempDir()
	out, _ := New(dir)
	out.Write(context.Background(), outcomes()[0])
	if err := out.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, PredictionsFile)); !os.IsNotExist(err) {
		t.Error("expected no chart for a single row")
	}
}

func TestRenderPredictionsAllSameLabel(t *testing.T) {
	var s Series
	for _, o := range outcomes()[:2] {
		s.Add(o)
	}
	var buf bytes.Buffer
	if err := RenderPredictions(&buf, s); err != nil {
		t.Fatalf("RenderPredictions error: %v", err)
	}
	if !bytes.HasPrefix(buf.Bytes(), pngMagic) {
		t.Error("output is not a PNG")
	}
}

func TestRenderSensorsConstantReadings(t *testing.T) {
	// Every reading defaulted to its bound minimum.
	var s Series
	for i := 1; i <= 3; i++ {
		s.Add(model.Outcome{Row: model.SensorRow{Index: i, Temperature: 60, RotationalSpeed: 1000, Torque: 3}})
	}
	var buf bytes.Buffer
	if err := RenderSensors(&buf, s); err != nil {
		t.Fatalf("RenderSensors error: %v", err)
	}
}

func TestFlatRange(t *testing.T) {
	if r := flatRange([]float64{1, 2}); r != nil {
		t.Errorf("flatRange(varied) = %+v, want nil", r)
	}
	r := flatRange([]float64{5, 5}, []float64{5})
	if r == nil || r.Min != 4 || r.Max != 6 {
		t.Errorf("flatRange(constant) = %+v, want [4, 6]", r)
	}
}
