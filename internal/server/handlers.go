package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/crimson-sun/machwatch/internal/dataset"
	"github.com/crimson-sun/machwatch/internal/output"
	"github.com/crimson-sun/machwatch/internal/output/file"
	"github.com/crimson-sun/machwatch/internal/output/multi"
	"github.com/crimson-sun/machwatch/internal/output/stdout"
	"github.com/crimson-sun/machwatch/internal/pipeline"
)

// Done is the last NDJSON line of a replay stream.
type Done struct {
	Done         bool     `json:"done"`
	Source       string   `json:"source"`
	Rows         int      `json:"rows"`
	Failures     int      `json:"failures"`
	FirstFailure int      `json:"first_failure,omitempty"`
	Missing      []string `json:"missing_columns,omitempty"`
	Error        string   `json:"error,omitempty"`
}

// handleReplay parses the uploaded dataset, then streams one status event
// per row while appending to the shared log.
func (s *Server) handleReplay(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.cfg.MaxUploadBytes)

	fh, err := c.FormFile("file")
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "upload too large"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "file required"})
		return
	}
	f, err := fh.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	defer f.Close()

	ds, err := dataset.Parse(f, s.cfg.Dataset)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	ds.Name = fh.Filename

	c.Header("Content-Type", "application/x-ndjson")
	c.Header("Cache-Control", "no-cache")
	c.Status(http.StatusOK)

	w := &flushWriter{c.Writer}
	out := multi.New(stdout.NewWriter(w, true, false), s.cfg.Log)
	p := pipeline.New(s.cfg.Evaluator, out,
		pipeline.WithDelay(s.cfg.Delay),
		pipeline.WithLogger(s.log),
	)

	sum, err := p.Replay(c.Request.Context(), ds)
	done := Done{
		Done:         true,
		Source:       sum.Source,
		Rows:         sum.Rows,
		Failures:     sum.Failures,
		FirstFailure: sum.FirstFailure,
		Missing:      sum.Missing,
	}
	if err != nil {
		if c.Request.Context().Err() != nil {
			// Client went away; nobody is reading.
			return
		}
		s.log.Error("replay failed", "source", ds.Name, "error", err)
		done.Error = err.Error()
	}
	if err := json.NewEncoder(w).Encode(done); err != nil {
		s.log.Warn("write replay trailer", "error", err)
	}
}

// handleLogs returns the last lines of the log sink.
func (s *Server) handleLogs(c *gin.Context) {
	n := s.cfg.Tail
	if v := c.Query("tail"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "tail must be a positive integer"})
			return
		}
		n = parsed
	}

	lines, err := file.Tail(s.cfg.LogPath, n)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	entries := make([]output.LogRecord, 0, len(lines))
	skipped := 0
	for _, line := range lines {
		rec, err := output.ParseLogLine(line)
		if err != nil {
			skipped++
			continue
		}
		entries = append(entries, rec)
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries, "skipped": skipped})
}

// flushWriter pushes each status line to the client as soon as it is
// written.
type flushWriter struct {
	w gin.ResponseWriter
}

func (f *flushWriter) Write(p []byte) (int, error) {
	n, err := f.w.Write(p)
	f.w.Flush()
	return n, err
}
