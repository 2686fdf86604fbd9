package persist

import (
	"bufio"
	"compress/gzip"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/projectlens/go-context-cache/config"
	"github.com/projectlens/go-context-cache/model"
)

// FormatVersion identifies the export document layout. Import rejects any
// other version outright; there is no best-effort partial import.
const FormatVersion = "1.0"

// ErrIncompatibleVersion is returned when an import document was produced
// by a different format version.
var ErrIncompatibleVersion = errors.New("incompatible export format version")

// Document is the single versioned unit moved by export and import.
type Document struct {
	Version   string              `json:"version"`
	Timestamp time.Time           `json:"timestamp"`
	Config    *config.Cache       `json:"config,omitempty"`
	Stats     model.StatsSnapshot `json:"stats"`
	Entries   []model.Entry       `json:"entries"`
	Learning  []model.TagUsage    `json:"learning"`
}

// WriteDocument serializes the document to w, gzip-compressed when asked.
func WriteDocument(w io.Writer, doc *Document, gzipOn bool, now time.Time) error {
	doc.Version = FormatVersion
	doc.Timestamp = now

	out := w
	var gw *gzip.Writer
	if gzipOn {
		gw = gzip.NewWriter(w)
		out = gw
	}

	if err := json.NewEncoder(out).Encode(doc); err != nil {
		return fmt.Errorf("encode export document: %w", err)
	}
	if gw != nil {
		if err := gw.Close(); err != nil {
			return fmt.Errorf("flush export document: %w", err)
		}
	}

	log.Info().Int("entries", len(doc.Entries)).Msg("cache exported")
	return nil
}

// ReadDocument decodes and validates a document without applying it, so a
// version mismatch can never leave a store partially imported. Gzip input
// is detected from the stream itself.
func ReadDocument(r io.Reader) (*Document, error) {
	br := bufio.NewReader(r)

	magic, err := br.Peek(2)
	var in io.Reader = br
	if err == nil && magic[0] == 0x1f && magic[1] == 0x8b {
		gr, err := gzip.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("open gzip import stream: %w", err)
		}
		defer gr.Close()
		in = gr
	}

	var doc Document
	if err := json.NewDecoder(in).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode import document: %w", err)
	}
	if doc.Version != FormatVersion {
		return nil, fmt.Errorf("%w: document %q, supported %q", ErrIncompatibleVersion, doc.Version, FormatVersion)
	}

	log.Info().Int("entries", len(doc.Entries)).Msg("import document accepted")
	return &doc, nil
}
