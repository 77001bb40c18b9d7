// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets loads Socrata application tokens from a directory of
// plain-text files. Each file holds one secret: the filename is the key and
// the file contents (trimmed) are the value.
//
// The file socrata-app-token carries the token shared by every source.
// Per-source files named <source-id>-app-token (sf-app-token, nyc-app-token)
// override it for that source. Files outside this naming scheme are ignored,
// so the directory can be shared with other tools.
package secrets

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// GlobalTokenFile names the token file shared by every source.
const GlobalTokenFile = "socrata-app-token"

// tokenSuffix marks per-source token files.
const tokenSuffix = "-app-token"

// Tokens holds the application tokens found in a secrets directory.
type Tokens struct {
	// Global is the token applied to every source without an override.
	Global string

	// PerSource maps source IDs to their override tokens.
	PerSource map[string]string
}

// For returns the token for one source: its override if present, the
// global token otherwise.
func (t Tokens) For(sourceID string) string {
	if tok, ok := t.PerSource[sourceID]; ok {
		return tok
	}
	return t.Global
}

// Load reads token files from dir. A missing directory is not an error;
// Load returns empty Tokens. Unreadable files produce a warning on stderr
// but do not abort.
func Load(dir string) (Tokens, error) {
	tokens := Tokens{PerSource: make(map[string]string)}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return tokens, nil
		}
		return tokens, fmt.Errorf("reading secrets directory %s: %w", dir, err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: could not read secret %s: %v\n", name, err)
			continue
		}
		value := strings.TrimSpace(string(data))
		if value == "" {
			continue
		}

		switch {
		case name == GlobalTokenFile:
			tokens.Global = value
		case strings.HasSuffix(name, tokenSuffix):
			if id := strings.TrimSuffix(name, tokenSuffix); id != "" {
				tokens.PerSource[id] = value
			}
		}
	}

	return tokens, nil
}
