// Package irstore keeps compiled function images on disk so a host program
// can restore them without rebuilding.
package irstore

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/vmihailenco/msgpack/v5"

	"jitkit/internal/engine"
)

// Current schema version - increment when the entry format changes.
const schemaVersion uint16 = 1

const ext = ".mp"

// ErrSchema reports an entry written by an incompatible version.
var ErrSchema = errors.New("irstore: schema mismatch")

// Key identifies a stored image: the sha256 of its encoding.
type Key [sha256.Size]byte

func (k Key) String() string {
	return hex.EncodeToString(k[:])
}

// ParseKey decodes the hex form produced by Key.String.
func ParseKey(s string) (Key, error) {
	var k Key
	b, err := hex.DecodeString(s)
	if err != nil {
		return k, fmt.Errorf("irstore: bad key %q: %w", s, err)
	}
	if len(b) != len(k) {
		return k, fmt.Errorf("irstore: bad key %q: want %d bytes, got %d", s, len(k), len(b))
	}
	copy(k[:], b)
	return k, nil
}

// entry is the on-disk payload.
type entry struct {
	Schema uint16        `msgpack:"schema"`
	Label  string        `msgpack:"label"`
	Image  *engine.Image `msgpack:"image"`
}

// Info describes one stored image.
type Info struct {
	Key    Key
	Label  string
	Name   string
	Target string
	Size   int64
}

// Store is a directory of msgpack-encoded images.
// Thread-safe for concurrent access.
type Store struct {
	mu  sync.RWMutex
	dir string
}

// DefaultDir returns $XDG_CACHE_HOME/jitkit, falling back to ~/.cache/jitkit.
func DefaultDir() (string, error) {
	base := os.Getenv("XDG_CACHE_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".cache")
	}
	return filepath.Join(base, "jitkit"), nil
}

// Open prepares a store rooted at dir; an empty dir selects DefaultDir.
func Open(dir string) (*Store, error) {
	if dir == "" {
		d, err := DefaultDir()
		if err != nil {
			return nil, err
		}
		dir = d
	}
	if err := os.MkdirAll(filepath.Join(dir, "images"), 0o755); err != nil {
		return nil, err
	}
	return &Store{dir: dir}, nil
}

// Dir reports the store root.
func (s *Store) Dir() string {
	return s.dir
}

// KeyOf hashes the msgpack encoding of img.
func KeyOf(img *engine.Image) (Key, error) {
	b, err := msgpack.Marshal(img)
	if err != nil {
		return Key{}, err
	}
	return sha256.Sum256(b), nil
}

func (s *Store) pathFor(key Key) string {
	return filepath.Join(s.dir, "images", key.String()+ext)
}

// Put writes img under its content key and returns the key. label is a
// free-form name shown by List.
func (s *Store) Put(label string, img *engine.Image) (Key, error) {
	if img == nil {
		return Key{}, errors.New("irstore: nil image")
	}
	key, err := KeyOf(img)
	if err != nil {
		return Key{}, err
	}
	var buf bytes.Buffer
	if err := msgpack.NewEncoder(&buf).Encode(&entry{Schema: schemaVersion, Label: label, Image: img}); err != nil {
		return Key{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.pathFor(key)
	f, err := os.CreateTemp(filepath.Dir(p), "tmp-*")
	if err != nil {
		return Key{}, err
	}
	tmp := f.Name()
	if _, err := f.Write(buf.Bytes()); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return Key{}, err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return Key{}, err
	}
	// atomic replace
	if err := os.Rename(tmp, p); err != nil {
		_ = os.Remove(tmp)
		return Key{}, err
	}
	return key, nil
}

func (s *Store) read(p string) (*entry, int64, error) {
	f, err := os.Open(p)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		return nil, 0, err
	}
	var e entry
	if err := msgpack.NewDecoder(f).Decode(&e); err != nil {
		return nil, 0, fmt.Errorf("irstore: decode %s: %w", filepath.Base(p), err)
	}
	if e.Schema != schemaVersion || e.Image == nil {
		return nil, 0, fmt.Errorf("%w: %s has schema %d", ErrSchema, filepath.Base(p), e.Schema)
	}
	return &e, st.Size(), nil
}

// Get loads the image stored under key. A missing entry is (nil, false, nil).
func (s *Store) Get(key Key) (*engine.Image, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, _, err := s.read(s.pathFor(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return e.Image, true, nil
}

// Lookup returns the first entry, in List order, carrying label.
func (s *Store) Lookup(label string) (*engine.Image, Key, bool, error) {
	infos, err := s.List()
	if err != nil {
		return nil, Key{}, false, err
	}
	for _, info := range infos {
		if info.Label != label {
			continue
		}
		img, ok, err := s.Get(info.Key)
		return img, info.Key, ok, err
	}
	return nil, Key{}, false, nil
}

// List describes every readable entry, sorted by label then key. Entries
// from another schema are skipped.
func (s *Store) List() ([]Info, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	dirents, err := os.ReadDir(filepath.Join(s.dir, "images"))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var out []Info
	for _, de := range dirents {
		name := de.Name()
		if de.IsDir() || !strings.HasSuffix(name, ext) {
			continue
		}
		key, err := ParseKey(strings.TrimSuffix(name, ext))
		if err != nil {
			continue
		}
		e, size, err := s.read(filepath.Join(s.dir, "images", name))
		if err != nil {
			if errors.Is(err, ErrSchema) {
				continue
			}
			return nil, err
		}
		out = append(out, Info{Key: key, Label: e.Label, Name: e.Image.Name, Target: e.Image.Target, Size: size})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Label != out[j].Label {
			return out[i].Label < out[j].Label
		}
		return out[i].Key.String() < out[j].Key.String()
	})
	return out, nil
}

// Delete removes one entry; deleting a missing key is not an error.
func (s *Store) Delete(key Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := os.Remove(s.pathFor(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// DropAll removes every stored image.
func (s *Store) DropAll() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.RemoveAll(filepath.Join(s.dir, "images")); err != nil {
		return err
	}
	return os.MkdirAll(filepath.Join(s.dir, "images"), 0o755)
}
