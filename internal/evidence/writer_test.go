package evidence

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingMirror struct {
	keys   []string
	bodies map[string][]byte
	err    error
}

func (m *recordingMirror) Put(_ context.Context, key string, body []byte, _ string) error {
	m.keys = append(m.keys, key)
	if m.bodies == nil {
		m.bodies = map[string][]byte{}
	}
	m.bodies[key] = body
	return m.err
}

func TestWrite(t *testing.T) {
	root := filepath.Join(t.TempDir(), "evidence")
	raw := []byte(`{"best_flights":[{"price":123}]}`)

	ref, err := NewWriter(root, nil).Write(context.Background(), "LHR-JFK", "2026-03-01", "2026-03-10", raw)
	require.NoError(t, err)

	sum := sha256.Sum256(raw)
	want := hex.EncodeToString(sum[:])
	assert.Equal(t, "2026-03-10", ref.OutboundDate)
	assert.Equal(t, want, ref.SHA256)
	assert.Equal(t, filepath.ToSlash(root)+"/route=LHR-JFK/run_date=2026-03-01/outbound_date=2026-03-10.json", ref.Path)

	written, err := os.ReadFile(filepath.FromSlash(ref.Path))
	require.NoError(t, err)
	assert.Equal(t, raw, written)

	digest, err := os.ReadFile(filepath.Join(root, "route=LHR-JFK", "run_date=2026-03-01", "outbound_date=2026-03-10.sha256"))
	require.NoError(t, err)
	assert.Equal(t, want+"\n", string(digest))
}

func TestWrite_OverwritesSameDate(t *testing.T) {
	root := t.TempDir()
	w := NewWriter(root, nil)

	_, err := w.Write(context.Background(), "LHR-JFK", "2026-03-01", "2026-03-10", []byte(`{"a":1}`))
	require.NoError(t, err)
	ref, err := w.Write(context.Background(), "LHR-JFK", "2026-03-01", "2026-03-10", []byte(`{"a":2}`))
	require.NoError(t, err)

	written, err := os.ReadFile(filepath.FromSlash(ref.Path))
	require.NoError(t, err)
	assert.Equal(t, `{"a":2}`, string(written))
}

func TestWrite_Mirror(t *testing.T) {
	m := &recordingMirror{}
	raw := []byte(`{}`)

	ref, err := NewWriter(t.TempDir(), m).Write(context.Background(), "VIE-TGD", "2026-03-01", "2026-03-02", raw)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"route=VIE-TGD/run_date=2026-03-01/outbound_date=2026-03-02.json",
		"route=VIE-TGD/run_date=2026-03-01/outbound_date=2026-03-02.sha256",
	}, m.keys)
	assert.Equal(t, raw, m.bodies[m.keys[0]])
	assert.Equal(t, ref.SHA256+"\n", string(m.bodies[m.keys[1]]))
}

func TestWrite_MirrorFailureIsNotFatal(t *testing.T) {
	m := &recordingMirror{err: errors.New("access denied")}
	_, err := NewWriter(t.TempDir(), m).Write(context.Background(), "VIE-TGD", "2026-03-01", "2026-03-02", []byte(`{}`))
	require.NoError(t, err)
	assert.Len(t, m.keys, 2)
}

func TestWrite_UnwritableRoot(t *testing.T) {
	file := filepath.Join(t.TempDir(), "not-a-dir")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	_, err := NewWriter(file, nil).Write(context.Background(), "LHR-JFK", "2026-03-01", "2026-03-10", []byte(`{}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "evidence: create dir")
}
