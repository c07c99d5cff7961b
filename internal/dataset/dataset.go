package dataset

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"iter"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/unicode/norm"

	"github.com/crimson-sun/machwatch/internal/model"
)

// Recognized column names, matched after trimming and NFKC normalization.
const (
	ColTemperature     = "Temperature (°C)"
	ColRotationalSpeed = "Rotational speed [rpm]"
	ColTorque          = "Torque [Nm]"
)

// ErrNoKnownColumns is returned in strict mode when the header names none of
// the three recognized columns.
var ErrNoKnownColumns = errors.New("dataset: no recognized sensor columns")

// Options controls parsing.
type Options struct {
	Comma  rune // field delimiter; 0 means ','
	Strict bool // fail when every recognized column is absent
}

// Dataset is a fully parsed sensor table. Parsing happens up front so that a
// malformed file is rejected before any row is evaluated.
type Dataset struct {
	Name    string
	Header  []string // cleaned column names
	records [][]string
	cols    [3]int // index per recognized column, -1 when absent
}

// Parse reads a delimited sensor table from r. Input that is not valid UTF-8
// is decoded as Windows-1252, the usual encoding of spreadsheet exports.
func Parse(r io.Reader, opts Options) (*Dataset, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("dataset: read: %w", err)
	}
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if !utf8.Valid(data) {
		data, err = charmap.Windows1252.NewDecoder().Bytes(data)
		if err != nil {
			return nil, fmt.Errorf("dataset: decode: %w", err)
		}
	}

	cr := csv.NewReader(bytes.NewReader(data))
	if opts.Comma != 0 {
		cr.Comma = opts.Comma
	}
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("dataset: no columns to parse from file")
	}
	if err != nil {
		return nil, fmt.Errorf("dataset: header: %w", err)
	}

	ds := &Dataset{Header: make([]string, len(header)), cols: [3]int{-1, -1, -1}}
	for i, h := range header {
		ds.Header[i] = cleanName(h)
	}
	for i, want := range []string{ColTemperature, ColRotationalSpeed, ColTorque} {
		for j, h := range ds.Header {
			if h == want {
				ds.cols[i] = j
				break
			}
		}
	}
	if opts.Strict && len(ds.Missing()) == 3 {
		return nil, fmt.Errorf("%w: header is %q", ErrNoKnownColumns, ds.Header)
	}

	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("dataset: %w", err)
		}
		if len(rec) > len(header) {
			line, _ := cr.FieldPos(0)
			return nil, fmt.Errorf("dataset: line %d: expected %d fields, saw %d", line, len(header), len(rec))
		}
		for _, c := range ds.cols {
			if c < 0 || c >= len(rec) {
				continue
			}
			if _, err := parseCell(rec[c]); err != nil {
				line, _ := cr.FieldPos(c)
				return nil, fmt.Errorf("dataset: line %d, column %q: %w", line, ds.Header[c], err)
			}
		}
		ds.records = append(ds.records, rec)
	}
	return ds, nil
}

// Len returns the number of data rows.
func (d *Dataset) Len() int { return len(d.records) }

// Missing lists the recognized columns absent from the header.
func (d *Dataset) Missing() []string {
	var out []string
	for i, name := range []string{ColTemperature, ColRotationalSpeed, ColTorque} {
		if d.cols[i] < 0 {
			out = append(out, name)
		}
	}
	return out
}

// Row returns the i-th data row (0-based). Cells absent from the record or
// from the header come back as NaN.
func (d *Dataset) Row(i int) model.SensorRow {
	rec := d.records[i]
	return model.SensorRow{
		Index:           i + 1,
		Temperature:     d.value(rec, d.cols[0]),
		RotationalSpeed: d.value(rec, d.cols[1]),
		Torque:          d.value(rec, d.cols[2]),
	}
}

// Record returns the raw cells of the i-th data row (0-based), padded to the
// header width.
func (d *Dataset) Record(i int) []string {
	out := make([]string, len(d.Header))
	copy(out, d.records[i])
	return out
}

// Rows yields every data row in file order.
func (d *Dataset) Rows() iter.Seq2[model.SensorRow, error] {
	return func(yield func(model.SensorRow, error) bool) {
		for i := range d.records {
			if !yield(d.Row(i), nil) {
				return
			}
		}
	}
}

// Head returns up to n leading rows, for previews.
func (d *Dataset) Head(n int) []model.SensorRow {
	n = min(n, len(d.records))
	out := make([]model.SensorRow, n)
	for i := range out {
		out[i] = d.Row(i)
	}
	return out
}

func (d *Dataset) value(rec []string, col int) float64 {
	if col < 0 || col >= len(rec) {
		return math.NaN()
	}
	v, _ := parseCell(rec[col])
	return v
}

func cleanName(s string) string {
	return norm.NFKC.String(strings.TrimSpace(s))
}

// naTokens are the cell values read as missing: the default NA set of
// pandas.read_csv, plus "NAN".
var naTokens = map[string]bool{
	"": true, "#N/A": true, "#N/A N/A": true, "#NA": true,
	"-1.#IND": true, "-1.#QNAN": true, "-NaN": true, "-nan": true,
	"1.#IND": true, "1.#QNAN": true, "<NA>": true, "N/A": true,
	"NA": true, "NULL": true, "NaN": true, "NAN": true, "None": true,
	"n/a": true, "nan": true, "null": true,
}

// parseCell reads one sensor cell. NA tokens are NaN. Infinite values are
// rejected, whether spelled out or overflowing float64, since no reading
// can be normalized or reported from them.
func parseCell(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if naTokens[s] {
		return math.NaN(), nil
	}
	v, err := strconv.ParseFloat(s, 64)
	switch {
	case math.IsInf(v, 0):
		return math.NaN(), fmt.Errorf("not a finite number: %q", s)
	case err != nil:
		return math.NaN(), fmt.Errorf("not a number: %q", s)
	}
	return v, nil
}
