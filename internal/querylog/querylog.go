package querylog

import (
	"context"
	"encoding/json"
	"os"
	"sync"
	"time"

	pgutils "github.com/jackmaney/pg-utils"
)

// fileEntry is the NDJSON-serializable form of a query log record.
type fileEntry struct {
	Timestamp  string  `json:"ts"`
	Op         string  `json:"op"`
	SQL        string  `json:"sql"`
	DurationMS int64   `json:"duration_ms"`
	Error      *string `json:"error"`
}

// FileRecorder writes one JSON object per executed statement to a file. It
// implements pgutils.QueryRecorder and is the debugging trail for generated
// SQL.
type FileRecorder struct {
	mu   sync.Mutex
	file *os.File
	enc  *json.Encoder
}

// NewFileRecorder opens (or creates) the file at path for append-only
// writing.
func NewFileRecorder(path string) (*FileRecorder, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}
	return &FileRecorder{
		file: f,
		enc:  json.NewEncoder(f),
	}, nil
}

func (r *FileRecorder) Record(_ context.Context, ev pgutils.QueryEvent) {
	fe := fileEntry{
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		Op:         ev.Op,
		SQL:        ev.SQL,
		DurationMS: ev.DurationMS,
	}
	if ev.Err != nil {
		s := ev.Err.Error()
		fe.Error = &s
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	_ = r.enc.Encode(fe) // best-effort; don't fail the statement for log I/O
}

func (r *FileRecorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.file.Close()
}
