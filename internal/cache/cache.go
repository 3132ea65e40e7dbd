// Package cache stores emitted unit sequences on disk, keyed by a digest of
// everything that can change them.
package cache

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"hbind/internal/diag"
	"hbind/internal/emit"
)

// Current schema version - increment when Payload format changes
const schemaVersion uint16 = 1

// Digest identifies one set of inputs.
type Digest [32]byte

func (d Digest) String() string { return hex.EncodeToString(d[:]) }

// Header is one input header and its bytes.
type Header struct {
	Path    string
	Content []byte
}

// Inputs are the facts a cached sequence depends on.
type Inputs struct {
	Headers []Header
	Args    []string // include paths, defines and front-end flags in order
	Target  string   // target name and bitfield policy
	Filters []string // include/exclude settings in a stable order
	Naming  string   // header name override
	Version string   // tool version
}

// Key hashes in. Every field is length-prefixed so adjacent values cannot
// run together.
func Key(in Inputs) Digest {
	h := sha256.New()
	str := func(s string) {
		var n [8]byte
		binary.LittleEndian.PutUint64(n[:], uint64(len(s)))
		h.Write(n[:])
		h.Write([]byte(s))
	}
	list := func(tag string, xs []string) {
		str(tag)
		for _, x := range xs {
			str(x)
		}
	}
	str("hbind-cache")
	for _, hd := range in.Headers {
		str(hd.Path)
		str(string(hd.Content))
	}
	list("args", in.Args)
	list("filters", in.Filters)
	str(in.Target)
	str(in.Naming)
	str(in.Version)
	var d Digest
	copy(d[:], h.Sum(nil))
	return d
}

// Payload is what one cache entry holds.
type Payload struct {
	// Schema version for safe invalidation when format changes
	Schema uint16

	Sequence    *emit.Sequence
	Diagnostics []diag.Diagnostic
	Created     time.Time
}

// Cache is a directory of msgpack payloads. A nil *Cache is a valid cache
// that never hits. Safe for concurrent use.
type Cache struct {
	mu  sync.RWMutex
	dir string
}

// Open returns the cache rooted at dir; an empty dir selects the user cache
// directory.
func Open(dir string) (*Cache, error) {
	if dir == "" {
		base, err := os.UserCacheDir()
		if err != nil {
			return nil, err
		}
		dir = filepath.Join(base, "hbind")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &Cache{dir: dir}, nil
}

// Dir returns the cache directory.
func (c *Cache) Dir() string {
	if c == nil {
		return ""
	}
	return c.dir
}

func (c *Cache) pathFor(key Digest) string {
	hexKey := key.String()
	// двухсимвольный префикс, чтобы каталог не разрастался
	return filepath.Join(c.dir, "units", hexKey[:2], hexKey+".mp")
}

// Put writes a payload under key, replacing any previous entry atomically.
func (c *Cache) Put(key Digest, seq *emit.Sequence, diags []diag.Diagnostic) (err error) {
	if c == nil || seq == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	p := c.pathFor(key)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(filepath.Dir(p), "tmp-*")
	if err != nil {
		return err
	}
	defer func() {
		if rmErr := os.Remove(f.Name()); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) && err == nil {
			err = rmErr
		}
	}()

	payload := &Payload{Schema: schemaVersion, Sequence: seq, Diagnostics: diags, Created: time.Now().UTC()}
	if err := msgpack.NewEncoder(f).Encode(payload); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	// Атомарная замена
	return os.Rename(f.Name(), p)
}

// Get reads the payload stored under key. A missing entry or one written by
// another schema version is a miss, not an error.
func (c *Cache) Get(key Digest) (*Payload, bool, error) {
	if c == nil {
		return nil, false, nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	f, err := os.Open(c.pathFor(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, err
	}
	defer f.Close()
	var out Payload
	if err := msgpack.NewDecoder(f).Decode(&out); err != nil {
		return nil, false, err
	}
	if out.Schema != schemaVersion || out.Sequence == nil {
		return nil, false, nil
	}
	return &out, true, nil
}

// DropAll removes every entry.
func (c *Cache) DropAll() error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return os.RemoveAll(filepath.Join(c.dir, "units"))
}
