package output

import (
	"encoding/json"
	"os"
	"sync"

	"github.com/tkjaer/gtping/internal/shared"
)

// JSONOutput writes target stats as JSON. On stdout it writes the summary
// array once at the end; to a file it writes one object per line as targets
// complete.
type JSONOutput struct {
	mu       sync.Mutex
	file     *os.File
	enc      *json.Encoder
	toStdout bool
}

func NewJSONOutput(filename string) (*JSONOutput, error) {
	if filename == "" {
		// Output to stdout
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return &JSONOutput{
			file:     os.Stdout,
			enc:      enc,
			toStdout: true,
		}, nil
	}
	f, err := os.Create(filename)
	if err != nil {
		return nil, err
	}
	return &JSONOutput{
		file:     f,
		enc:      json.NewEncoder(f),
		toStdout: false,
	}, nil
}

func (j *JSONOutput) CompleteTarget(stats shared.Stats) {
	if j.toStdout {
		// Only the summary goes to stdout
		return
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	_ = j.enc.Encode(stats)
}

func (j *JSONOutput) Summary(stats []shared.Stats) {
	if !j.toStdout {
		return
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	if stats == nil {
		stats = []shared.Stats{}
	}
	_ = j.enc.Encode(stats)
}

func (j *JSONOutput) Close() error {
	if j.toStdout {
		return nil
	}
	return j.file.Close()
}
