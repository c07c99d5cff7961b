package file

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/crimson-sun/machwatch/internal/dataset"
	"github.com/crimson-sun/machwatch/internal/engine/sample"
)

func TestLoadLocalFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sensors.csv")
	if err := os.WriteFile(path, sample.Bytes(), 0644); err != nil {
		t.Fatal(err)
	}

	ds, err := dataset.Load(context.Background(), dataset.SourceConfig{}, path, dataset.Options{})
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if ds.Len() != sample.Rows {
		t.Errorf("Len = %d, want %d", ds.Len(), sample.Rows)
	}
	if ds.Name != path {
		t.Errorf("Name = %q, want %q", ds.Name, path)
	}
}

func TestLoadFileURL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sensors.csv")
	os.WriteFile(path, sample.Bytes(), 0644)

	ds, err := dataset.Load(context.Background(), dataset.SourceConfig{}, "file://"+path, dataset.Options{})
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if ds.Len() != sample.Rows {
		t.Errorf("Len = %d, want %d", ds.Len(), sample.Rows)
	}
}

func TestOpenStdin(t *testing.T) {
	s := &Source{Stdin: strings.NewReader("Torque [Nm]\n4\n")}
	rc, err := s.Open(context.Background(), dataset.SourceConfig{}, "-")
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	defer rc.Close()

	ds, err := dataset.Parse(rc, dataset.Options{})
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if ds.Row(0).Torque != 4 {
		t.Errorf("torque = %v, want 4", ds.Row(0).Torque)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := dataset.Load(context.Background(), dataset.SourceConfig{}, filepath.Join(t.TempDir(), "nope.csv"), dataset.Options{})
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadMalformedFileNamesLocation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.csv")
	os.WriteFile(path, []byte("Torque [Nm]\nhigh\n"), 0644)

	_, err := dataset.Load(context.Background(), dataset.SourceConfig{}, path, dataset.Options{})
	if err == nil {
		t.Fatal("expected parse error")
	}
	if !strings.Contains(err.Error(), path) {
		t.Errorf("error %q does not name the file", err)
	}
}
