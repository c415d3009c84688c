// Package store provides a tiny embedded JSON key-value layer: cold-load at
// startup, write-through after every update, atomic on disk. This backs
// every persisted collection in the pipeline (case log, bandit, knowledge
// base, entity memory, tool registry, synthesized definitions) per spec §5's
// "Shared-resource policy" (single writer per file, atomic write-to-temp +
// rename, lock-free reads of the latest committed version).
package store

import (
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/moby/sys/atomicwriter"
)

// JSONFile manages one JSON document backed by a file, with a single
// in-process writer lock. Multiple JSONFile instances over different paths
// never contend with each other (per-store locks per spec §5).
type JSONFile struct {
	mu   sync.RWMutex
	path string
}

// NewJSONFile returns a handle for the document at path. It does not touch
// the filesystem until Load or Save is called.
func NewJSONFile(path string) *JSONFile {
	return &JSONFile{path: path}
}

// Load decodes the file into v. If the file does not exist, v is left
// untouched and nil is returned — callers should pre-populate v with a zero
// value representing "no persisted state yet".
func (f *JSONFile) Load(v any) error {
	f.mu.RLock()
	defer f.mu.RUnlock()

	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, v)
}

// Save atomically writes v as indented JSON to the file, creating parent
// directories as needed.
func (f *JSONFile) Save(v any) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(f.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	if err := atomicwriter.WriteFile(f.path, data, 0o644); err != nil {
		log.Printf("[Store] atomic write failed for %s: %v", f.path, err)
		return err
	}
	return nil
}

// Path returns the backing file path, used when constructing default
// locations under RL_CACHE_DIR.
func (f *JSONFile) Path() string { return f.path }
