// Package lockfile implements locasset.lock, a record of the source text
// every machine translation was produced from. When that source text
// changes later, the translations made from the old text show up as
// stale.
//
// The lock file is stored alongside .locasset.yaml as locasset.lock.
package lockfile

import (
	"crypto/md5"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// LockFileName is the default lock file name.
const LockFileName = "locasset.lock"

// Version is the lock file format version.
const Version = 1

// ---------------------------------------------------------------------------
// Types
// ---------------------------------------------------------------------------

// Entry is the provenance of one machine translation.
type Entry struct {
	// Source is the language the text was translated from.
	Source string `yaml:"source"`
	// Hash is the md5 of the source text at translation time.
	Hash string `yaml:"hash"`
}

// Matches reports whether text is the source the entry was made from.
func (e Entry) Matches(text string) bool {
	return e.Hash == Hash(text)
}

// LockFile represents the locasset.lock file structure.
type LockFile struct {
	Version   int                         `yaml:"version"`
	Checksums map[string]map[string]Entry `yaml:"checksums"` // asset ID -> language -> source

	mu   sync.Mutex `yaml:"-"`
	path string     `yaml:"-"`
}

// ---------------------------------------------------------------------------
// Loading and saving
// ---------------------------------------------------------------------------

// Load reads a lock file from the given directory.
// Returns an empty lock file if the file doesn't exist.
func Load(dir string) (*LockFile, error) {
	path := filepath.Join(dir, LockFileName)
	lf := &LockFile{
		Version:   Version,
		Checksums: make(map[string]map[string]Entry),
		path:      path,
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return lf, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, lf); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	lf.path = path

	if lf.Checksums == nil {
		lf.Checksums = make(map[string]map[string]Entry)
	}

	return lf, nil
}

// Save writes the lock file to disk.
func (lf *LockFile) Save() error {
	lf.mu.Lock()
	defer lf.mu.Unlock()

	if lf.path == "" {
		return fmt.Errorf("lock file path not set")
	}

	data, err := yaml.Marshal(lf)
	if err != nil {
		return fmt.Errorf("marshaling lock file: %w", err)
	}

	if err := os.WriteFile(lf.path, data, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", lf.path, err)
	}

	return nil
}

// Path returns the lock file path.
func (lf *LockFile) Path() string {
	return lf.path
}

// ---------------------------------------------------------------------------
// Checksum operations
// ---------------------------------------------------------------------------

// Hash computes the MD5 hex digest of a string.
func Hash(s string) string {
	return fmt.Sprintf("%x", md5.Sum([]byte(s)))
}

// Record notes that lang of assetID was machine-translated from the
// sourceLang item holding source.
func (lf *LockFile) Record(assetID, lang, sourceLang, source string) {
	lf.mu.Lock()
	defer lf.mu.Unlock()

	if lf.Checksums[assetID] == nil {
		lf.Checksums[assetID] = make(map[string]Entry)
	}
	lf.Checksums[assetID][lang] = Entry{Source: sourceLang, Hash: Hash(source)}
}

// Entry returns the record for lang of assetID.
func (lf *LockFile) Entry(assetID, lang string) (Entry, bool) {
	lf.mu.Lock()
	defer lf.mu.Unlock()

	e, ok := lf.Checksums[assetID][lang]
	return e, ok
}

// Forget drops the record for one language, e.g. after a manual edit.
func (lf *LockFile) Forget(assetID, lang string) {
	lf.mu.Lock()
	defer lf.mu.Unlock()

	delete(lf.Checksums[assetID], lang)
	if len(lf.Checksums[assetID]) == 0 {
		delete(lf.Checksums, assetID)
	}
}

// IsStale reports whether lang of assetID was translated from a text
// that is no longer current. current returns the present value of a
// source language; a source language that is gone counts as changed.
// Untracked entries are never stale.
func (lf *LockFile) IsStale(assetID, lang string, current func(sourceLang string) (string, bool)) bool {
	e, ok := lf.Entry(assetID, lang)
	if !ok {
		return false
	}
	text, ok := current(e.Source)
	if !ok {
		return true
	}
	return !e.Matches(text)
}

// Tracked reports whether lang of assetID has a recorded source.
func (lf *LockFile) Tracked(assetID, lang string) bool {
	lf.mu.Lock()
	defer lf.mu.Unlock()

	_, ok := lf.Checksums[assetID][lang]
	return ok
}

// Clean removes records for languages no longer present in the asset.
func (lf *LockFile) Clean(assetID string, currentLangs []string) {
	lf.mu.Lock()
	defer lf.mu.Unlock()

	existing := lf.Checksums[assetID]
	if existing == nil {
		return
	}

	valid := make(map[string]bool, len(currentLangs))
	for _, l := range currentLangs {
		valid[l] = true
	}

	for l := range existing {
		if !valid[l] {
			delete(existing, l)
		}
	}
	if len(existing) == 0 {
		delete(lf.Checksums, assetID)
	}
}

// RemoveAsset removes all records for an asset.
func (lf *LockFile) RemoveAsset(assetID string) {
	lf.mu.Lock()
	defer lf.mu.Unlock()
	delete(lf.Checksums, assetID)
}

// ---------------------------------------------------------------------------
// Stats
// ---------------------------------------------------------------------------

// Stats returns the number of assets and total languages in the lock file.
func (lf *LockFile) Stats() (assets, langs int) {
	lf.mu.Lock()
	defer lf.mu.Unlock()

	assets = len(lf.Checksums)
	for _, m := range lf.Checksums {
		langs += len(m)
	}
	return
}

// Assets returns the sorted list of tracked asset IDs.
func (lf *LockFile) Assets() []string {
	lf.mu.Lock()
	defer lf.mu.Unlock()

	ids := make([]string, 0, len(lf.Checksums))
	for id := range lf.Checksums {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Summary returns a human-readable summary string.
func (lf *LockFile) Summary() string {
	assets, langs := lf.Stats()
	if assets == 0 {
		return "empty"
	}
	var parts []string
	for _, id := range lf.Assets() {
		lf.mu.Lock()
		n := len(lf.Checksums[id])
		lf.mu.Unlock()
		parts = append(parts, fmt.Sprintf("%s: %d", id, n))
	}
	return fmt.Sprintf("%d assets, %d translations (%s)", assets, langs, strings.Join(parts, ", "))
}
