// Package chart collects per-row results into parallel series and renders
// the dashboard charts as PNG files.
package chart

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	gochart "github.com/wcharczuk/go-chart/v2"

	"github.com/crimson-sun/machwatch/internal/model"
)

// File names written by Close.
const (
	PredictionsFile = "predictions.png"
	SensorsFile     = "sensors.png"
)

// Series holds one entry per processed row, in processing order.
type Series struct {
	Rows            []float64
	Predictions     []float64
	Temperature     []float64
	RotationalSpeed []float64
	Torque          []float64
}

// Len returns the number of rows collected.
func (s *Series) Len() int { return len(s.Rows) }

// Add appends one outcome to every series.
func (s *Series) Add(o model.Outcome) {
	s.Rows = append(s.Rows, float64(o.Row.Index))
	s.Predictions = append(s.Predictions, float64(o.Label))
	s.Temperature = append(s.Temperature, o.Row.Temperature)
	s.RotationalSpeed = append(s.RotationalSpeed, o.Row.RotationalSpeed)
	s.Torque = append(s.Torque, o.Row.Torque)
}

// Output aggregates outcomes and writes the two charts into dir on Close.
type Output struct {
	dir    string
	mu     sync.Mutex
	series Series
}

// New creates a chart Output rendering into dir, created if needed.
func New(dir string) (*Output, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("chart output: %w", err)
	}
	return &Output{dir: dir}, nil
}

func (o *Output) Write(_ context.Context, oc model.Outcome) error {
	o.mu.Lock()
	o.series.Add(oc)
	o.mu.Unlock()
	return nil
}

// Series returns a copy of the collected series.
func (o *Output) Series() Series {
	o.mu.Lock()
	defer o.mu.Unlock()
	s := o.series
	return Series{
		Rows:            append([]float64(nil), s.Rows...),
		Predictions:     append([]float64(nil), s.Predictions...),
		Temperature:     append([]float64(nil), s.Temperature...),
		RotationalSpeed: append([]float64(nil), s.RotationalSpeed...),
		Torque:          append([]float64(nil), s.Torque...),
	}
}

// Close renders both charts. Fewer than two rows cannot form a line, so
// nothing is written in that case.
func (o *Output) Close() error {
	s := o.Series()
	if s.Len() < 2 {
		slog.Debug("chart output: not enough rows to plot", "rows", s.Len())
		return nil
	}
	if err := renderFile(filepath.Join(o.dir, PredictionsFile), s, RenderPredictions); err != nil {
		return err
	}
	return renderFile(filepath.Join(o.dir, SensorsFile), s, RenderSensors)
}

func renderFile(path string, s Series, render func(io.Writer, Series) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("chart output: %w", err)
	}
	if err := render(f, s); err != nil {
		f.Close()
		return fmt.Errorf("chart output: render %s: %w", filepath.Base(path), err)
	}
	return f.Close()
}

// RenderPredictions draws the prediction label over row index.
func RenderPredictions(w io.Writer, s Series) error {
	ch := gochart.Chart{
		Title:  "Prediction over time",
		Width:  900,
		Height: 320,
		Background: gochart.Style{
			Padding: gochart.Box{Top: 40, Left: 16, Right: 16, Bottom: 16},
		},
		XAxis: gochart.XAxis{Name: "Row"},
		YAxis: gochart.YAxis{
			Name:  "Prediction",
			Range: &gochart.ContinuousRange{Min: -0.1, Max: 1.1},
			Ticks: []gochart.Tick{{Value: 0, Label: "Normal"}, {Value: 1, Label: "Failure"}},
		},
		Series: []gochart.Series{
			gochart.ContinuousSeries{
				Name:    "Prediction",
				XValues: s.Rows,
				YValues: s.Predictions,
				Style:   gochart.Style{StrokeColor: gochart.ColorRed, StrokeWidth: 2, DotWidth: 3, DotColor: gochart.ColorRed},
			},
		},
	}
	return ch.Render(gochart.PNG, w)
}

// RenderSensors draws the three raw readings over row index. Rotational
// speed is an order of magnitude larger than the others and goes on the
// secondary axis.
func RenderSensors(w io.Writer, s Series) error {
	ch := gochart.Chart{
		Title:  "Sensor readings",
		Width:  900,
		Height: 400,
		Background: gochart.Style{
			Padding: gochart.Box{Top: 40, Left: 16, Right: 16, Bottom: 16},
		},
		XAxis:          gochart.XAxis{Name: "Row"},
		YAxis:          gochart.YAxis{Name: "rpm", Range: flatRange(s.RotationalSpeed)},
		YAxisSecondary: gochart.YAxis{Name: "°C / Nm", Range: flatRange(s.Temperature, s.Torque)},
		Series: []gochart.Series{
			gochart.ContinuousSeries{
				Name:    "Temperature (°C)",
				XValues: s.Rows,
				YValues: s.Temperature,
				YAxis:   gochart.YAxisSecondary,
				Style:   gochart.Style{StrokeColor: gochart.ColorOrange, StrokeWidth: 2},
			},
			gochart.ContinuousSeries{
				Name:    "Rotational speed [rpm]",
				XValues: s.Rows,
				YValues: s.RotationalSpeed,
				Style:   gochart.Style{StrokeColor: gochart.ColorBlue, StrokeWidth: 2},
			},
			gochart.ContinuousSeries{
				Name:    "Torque [Nm]",
				XValues: s.Rows,
				YValues: s.Torque,
				YAxis:   gochart.YAxisSecondary,
				Style:   gochart.Style{StrokeColor: gochart.ColorGreen, StrokeWidth: 2},
			},
		},
	}
	ch.Elements = []gochart.Renderable{gochart.Legend(&ch)}
	return ch.Render(gochart.PNG, w)
}

// flatRange returns a padded range when every value is identical, which
// go-chart cannot scale on its own. Otherwise nil lets the chart autoscale.
func flatRange(series ...[]float64) *gochart.ContinuousRange {
	first := true
	var lo, hi float64
	for _, vs := range series {
		for _, v := range vs {
			if first {
				lo, hi, first = v, v, false
				continue
			}
			lo, hi = min(lo, v), max(hi, v)
		}
	}
	if first || lo != hi {
		return nil
	}
	return &gochart.ContinuousRange{Min: lo - 1, Max: hi + 1}
}
