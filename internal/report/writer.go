package report

import (
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
)

// LatestName is the file name of the always-overwritten report.
const LatestName = "latest.md"

// Write stores the report as <dir>/latest.md and, when dated is set, also as
// <dir>/<runDate>.md. It returns the paths written.
func Write(dir, runDate, markdown string, dated bool) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "report: create dir %s", dir)
	}

	names := []string{LatestName}
	if dated {
		names = append(names, runDate+".md")
	}

	paths := make([]string, 0, len(names))
	for _, name := range names {
		p := filepath.Join(dir, name)
		if err := os.WriteFile(p, []byte(markdown), 0o644); err != nil {
			return paths, eris.Wrapf(err, "report: write %s", p)
		}
		paths = append(paths, p)
	}
	return paths, nil
}

// ReadLatest returns the most recently written report from dir.
func ReadLatest(dir string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(dir, LatestName))
	if err != nil {
		return nil, eris.Wrap(err, "report: read latest")
	}
	return data, nil
}
