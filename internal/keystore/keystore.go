// Package keystore resolves the AES key (and optional static IV) used to
// decrypt a container's payload, from a built-in table or a sidecar file.
package keystore

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/vaultimg/vaultimg/internal/cryptoutil"
	"github.com/vaultimg/vaultimg/pkg/table"
)

// Entry is a resolved key, with an optional static IV.
type Entry struct {
	Key   [16]byte
	IV    [16]byte
	HasIV bool
}

// builtin holds the compiled-in (id -> Entry) table, indexed by the 3-byte
// OS id or 4-byte game id. It is empty by default; real deployments seed it
// with Register at init time the way the original tool compiles a static
// game_keys array.
var builtin = table.New[Entry]()

// Register adds a compiled-in key table entry. It is meant to be called
// from package init() in a build that embeds real keys; vaultimg ships none
// by default.
func Register(id string, key [16]byte, iv [16]byte, hasIV bool) {
	builtin.Insert([]byte(id), Entry{Key: key, IV: iv, HasIV: hasIV})
}

// Dir resolves sidecar <id>.bin files relative to a fixed directory,
// normally the current working directory.
type Dir struct {
	Path string
}

// NewDir returns a resolver that looks for sidecars under dir.
func NewDir(dir string) *Dir {
	return &Dir{Path: dir}
}

// Resolve looks up id, first in the built-in table, then as a <id>.bin
// sidecar file in d.Path.
func (d *Dir) Resolve(id string) (Entry, error) {
	if e, ok := builtin.Get([]byte(id)); ok {
		return e, nil
	}
	return d.resolveSidecar(id)
}

func (d *Dir) resolveSidecar(id string) (Entry, error) {
	path := filepath.Join(d.Path, id+".bin")
	data, err := os.ReadFile(path)
	if err != nil {
		return Entry{}, fmt.Errorf("keystore: no key for %q (table miss, sidecar %s: %w)", id, path, err)
	}

	var e Entry
	switch len(data) {
	case 16:
		copy(e.Key[:], data)
		e.HasIV = false
	case 32:
		copy(e.Key[:], data[:16])
		trailing := data[16:32]
		if bytes.Equal(trailing, cryptoutil.NTFSHeader[:]) || bytes.Equal(trailing, cryptoutil.ExFATHeader[:]) {
			// The sidecar's second half is a cleartext filesystem header,
			// not a real IV; treat this sidecar as key-only.
			e.HasIV = false
		} else {
			copy(e.IV[:], trailing)
			e.HasIV = true
		}
	default:
		return Entry{}, fmt.Errorf("keystore: sidecar %s has invalid size %d (want 16 or 32)", path, len(data))
	}
	return e, nil
}

// WriteSidecar writes a <id>.bin sidecar file, for the `vaultimg keys add`
// command. iv may be nil for a key-only sidecar.
func (d *Dir) WriteSidecar(id string, key [16]byte, iv *[16]byte) error {
	path := filepath.Join(d.Path, id+".bin")
	data := make([]byte, 0, 32)
	data = append(data, key[:]...)
	if iv != nil {
		data = append(data, iv[:]...)
	}
	return os.WriteFile(path, data, 0o600)
}

// Option returns the fixed key/IV pair used for OPTION containers, which
// bypass the resolver entirely.
func Option() Entry {
	return Entry{Key: cryptoutil.OptionKey, IV: cryptoutil.OptionIV, HasIV: true}
}
