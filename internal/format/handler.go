// Package format implements the serialization boundary for stream
// sources: a small set of explicitly registered handlers that load and
// save record sequences in line-oriented formats.
package format

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/banshee-data/sensor.replay/internal/replay"
)

// Handler reads and writes one on-disk representation of a record
// sequence. Implementations are stateless and safe for concurrent use.
type Handler interface {
	// Ext returns the file extension the handler claims, with leading
	// dot (".jsonl").
	Ext() string
	// Load decodes all records from r. Loading is all-or-nothing: any
	// malformed record fails the whole load.
	Load(r io.Reader) ([]replay.Record, error)
	// Save encodes records to w in the handler's format.
	Save(w io.Writer, records []replay.Record) error
}

// Handlers is the explicit handler set, in dispatch order. There is no
// dynamic discovery; adding a format means adding it here.
var Handlers = []Handler{
	JSONLines{},
	CSV{},
}

// ForPath selects a handler by file extension.
func ForPath(path string) (Handler, error) {
	ext := strings.ToLower(filepath.Ext(path))
	for _, h := range Handlers {
		if h.Ext() == ext {
			return h, nil
		}
	}
	return nil, fmt.Errorf("no handler for extension %q (path %s)", ext, path)
}
