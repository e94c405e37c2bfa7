package main

import (
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"reserves.dev/verifier/reserves"
)

var psbtMagic = []byte{0x70, 0x73, 0x62, 0x74, 0xff}

func readFileByPath(path string) ([]byte, error) {
	dir := filepath.Dir(path)
	name := filepath.Base(path)
	return readFileFromDir(dir, name)
}

// readFileFromDir reads a single file below dir, capped at twice the proof
// size limit so a base64 rendition still fits.
func readFileFromDir(dir, name string) ([]byte, error) {
	if name == "" || name == "." || name == ".." || filepath.Base(name) != name {
		return nil, fmt.Errorf("invalid file name: %q", name)
	}
	f, err := os.DirFS(dir).Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	limit := int64(reserves.MaxProofBytes) * 2
	b, err := io.ReadAll(io.LimitReader(f, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(b)) > limit {
		return nil, fmt.Errorf("%s: %w", name, fs.ErrInvalid)
	}
	return b, nil
}

// loadProofFile decodes a proof stored either as raw PSBT bytes or as
// base64 text.
func loadProofFile(path string) (*reserves.ProofTx, error) {
	b, err := readFileByPath(path)
	if err != nil {
		return nil, err
	}
	if bytes.HasPrefix(b, psbtMagic) {
		return reserves.DecodeProofBytes(b)
	}
	return reserves.DecodeProof(string(bytes.TrimSpace(b)))
}
