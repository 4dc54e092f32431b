// Package evidence persists raw search payloads with their SHA-256 digests.
package evidence

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path"
	"path/filepath"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/tmirko/flight-price-tracker/internal/model"
)

// Mirror receives a copy of every evidence file under its root-relative key.
type Mirror interface {
	Put(ctx context.Context, key string, body []byte, contentType string) error
}

// Writer stores payloads under <root>/route=<route>/run_date=<date>/outbound_date=<date>.json
// with a sibling .sha256 file.
type Writer struct {
	root   string
	mirror Mirror
}

// NewWriter returns a Writer rooted at root. mirror may be nil.
func NewWriter(root string, mirror Mirror) *Writer {
	return &Writer{root: root, mirror: mirror}
}

// RelativeDir returns the partition directory for a route and run date.
func RelativeDir(route, runDate string) string {
	return path.Join("route="+route, "run_date="+runDate)
}

// Write persists raw and returns a reference carrying the slash-separated path
// and hex digest of exactly the bytes written. Mirror failures are logged only.
func (w *Writer) Write(ctx context.Context, route, runDate, outboundDate string, raw []byte) (model.EvidenceRef, error) {
	rel := RelativeDir(route, runDate)
	dir := filepath.Join(w.root, filepath.FromSlash(rel))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return model.EvidenceRef{}, eris.Wrapf(err, "evidence: create dir %s", dir)
	}

	sum := sha256.Sum256(raw)
	digest := hex.EncodeToString(sum[:])

	base := "outbound_date=" + outboundDate
	jsonPath := filepath.Join(dir, base+".json")
	if err := os.WriteFile(jsonPath, raw, 0o644); err != nil {
		return model.EvidenceRef{}, eris.Wrapf(err, "evidence: write %s", jsonPath)
	}
	if err := os.WriteFile(filepath.Join(dir, base+".sha256"), []byte(digest+"\n"), 0o644); err != nil {
		return model.EvidenceRef{}, eris.Wrapf(err, "evidence: write digest for %s", jsonPath)
	}

	if w.mirror != nil {
		w.mirrorFile(ctx, path.Join(rel, base+".json"), raw, "application/json")
		w.mirrorFile(ctx, path.Join(rel, base+".sha256"), []byte(digest+"\n"), "text/plain")
	}

	return model.EvidenceRef{
		OutboundDate: outboundDate,
		Path:         filepath.ToSlash(jsonPath),
		SHA256:       digest,
	}, nil
}

func (w *Writer) mirrorFile(ctx context.Context, key string, body []byte, contentType string) {
	if err := w.mirror.Put(ctx, key, body, contentType); err != nil {
		zap.L().Warn("evidence: mirror upload failed",
			zap.String("key", key),
			zap.Error(err),
		)
	}
}
