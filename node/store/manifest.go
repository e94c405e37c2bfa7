package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

const SchemaVersionV1 uint32 = 1

// Manifest describes the layout of a datadir. It is written once, when the
// datadir is first opened.
type Manifest struct {
	SchemaVersion uint32 `json:"schema_version"`
	Network       string `json:"network"`
	CreatedUnix   int64  `json:"created_unix"`
}

func manifestPath(datadir string) string {
	return filepath.Join(datadir, "MANIFEST.json")
}

func readManifest(datadir string) (*Manifest, error) {
	b, err := os.ReadFile(manifestPath(datadir)) // #nosec G304 -- datadir is operator-controlled.
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("manifest json: %w", err)
	}
	return &m, nil
}

// writeManifestAtomic writes MANIFEST.json via temp file, fsync and rename.
func writeManifestAtomic(datadir string, m *Manifest) error {
	if m == nil {
		return fmt.Errorf("manifest: nil")
	}
	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("manifest json: %w", err)
	}
	b = append(b, '\n')

	final := manifestPath(datadir)
	tmp := final + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600) // #nosec G304 -- derived from operator-controlled datadir.
	if err != nil {
		return fmt.Errorf("manifest open tmp: %w", err)
	}
	_, werr := f.Write(b)
	serr := f.Sync()
	cerr := f.Close()
	switch {
	case werr != nil:
		return fmt.Errorf("manifest write tmp: %w", werr)
	case serr != nil:
		return fmt.Errorf("manifest fsync tmp: %w", serr)
	case cerr != nil:
		return fmt.Errorf("manifest close tmp: %w", cerr)
	}
	if err := os.Rename(tmp, final); err != nil {
		return fmt.Errorf("manifest rename: %w", err)
	}
	return nil
}
