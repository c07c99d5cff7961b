// Package sample embeds a small sensor dataset used across package tests.
package sample

import (
	"bytes"
	_ "embed"
	"io"
)

//go:embed sensors.csv
var sensorsCSV []byte

// Rows is the number of data rows in the sample.
const Rows = 8

// CSV returns a fresh reader over the sample dataset. The header carries
// padded column names, one row is missing temperature (blank), one torque
// (blank) and one temperature (nan).
func CSV() io.Reader {
	return bytes.NewReader(sensorsCSV)
}

// Bytes returns a copy of the raw sample.
func Bytes() []byte {
	return append([]byte(nil), sensorsCSV...)
}
