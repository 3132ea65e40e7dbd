package source

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"fortio.org/safecast"
)

var (
	// ErrNotReadable reports a header that does not exist or cannot be opened.
	ErrNotReadable = errors.New("cannot read header file")
	// ErrNotAFile reports a header path that names a directory or device.
	ErrNotAFile = errors.New("not a regular file")
)

// FileSet manages the headers of one invocation.
type FileSet struct {
	files   []File
	index   map[string]FileID // path -> id
	baseDir string
}

// NewFileSet creates a new empty FileSet.
func NewFileSet() *FileSet {
	return &FileSet{
		files: make([]File, 0),
		index: make(map[string]FileID),
	}
}

// NewFileSetWithBase creates a FileSet whose relative paths are formatted against baseDir.
func NewFileSetWithBase(baseDir string) *FileSet {
	fs := NewFileSet()
	fs.baseDir = baseDir
	return fs
}

// BaseDir returns the directory used for relative path formatting.
func (fileSet *FileSet) BaseDir() string {
	if fileSet.baseDir == "" {
		if wd, err := os.Getwd(); err == nil {
			return wd
		}
	}
	return fileSet.baseDir
}

// Add stores a file from normalized bytes, computes LineIdx and Hash, and returns a new FileID.
// It always creates a new FileID even if a file with the same path already exists.
func (fileSet *FileSet) Add(path string, content []byte, flags FileFlags) FileID {
	hash := sha256.Sum256(content)
	lineIdx := buildLineIndex(content)
	normalizedPath := normalizePath(path)

	lenFiles, err := safecast.Conv[uint32](len(fileSet.files))
	if err != nil {
		panic(fmt.Errorf("len files overflow: %w", err))
	}
	id := FileID(lenFiles)
	fileSet.files = append(fileSet.files, File{
		ID:      id,
		Path:    normalizedPath,
		Content: content,
		LineIdx: lineIdx,
		Hash:    hash,
		Flags:   flags,
	})
	fileSet.index[normalizedPath] = id
	return id
}

// CheckHeader validates that path names a readable regular file.
func CheckHeader(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrNotReadable, path)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%w: %s", ErrNotAFile, path)
	}
	return nil
}

// Load validates and reads a header from disk, normalizes CRLF/BOM, and calls Add.
func (fileSet *FileSet) Load(path string) (FileID, error) {
	if err := CheckHeader(path); err != nil {
		return 0, err
	}
	// #nosec G304 -- path is provided by the caller
	content, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %w", ErrNotReadable, path, err)
	}

	content, flags := cleanContent(content)
	return fileSet.Add(path, content, flags), nil
}

// AddVirtual adds a generated file with the FileVirtual flag.
func (fileSet *FileSet) AddVirtual(name string, content []byte) FileID {
	return fileSet.Add(name, content, FileVirtual)
}

// Get returns the file metadata for the given ID.
func (fileSet *FileSet) Get(id FileID) *File {
	return &fileSet.files[id]
}

// Len returns the number of stored files.
func (fileSet *FileSet) Len() int {
	return len(fileSet.files)
}

// GetLatest returns the latest file ID for the given path, if it exists.
func (fileSet *FileSet) GetLatest(path string) (FileID, bool) {
	id, ok := fileSet.index[normalizePath(path)]
	return id, ok
}

// GetByPath returns the latest file stored under path.
func (fileSet *FileSet) GetByPath(path string) (*File, bool) {
	if id, ok := fileSet.index[normalizePath(path)]; ok {
		return &fileSet.files[id], true
	}
	return nil, false
}

// LineOf returns the text of the line a position points at, if the file is loaded.
func (fileSet *FileSet) LineOf(p Pos) (string, bool) {
	if p.IsSynthetic() || p.Line == 0 {
		return "", false
	}
	f, ok := fileSet.GetByPath(p.File)
	if !ok {
		return "", false
	}
	return f.GetLine(p.Line), true
}

// Digest hashes the content of every stored file in insertion order.
func (fileSet *FileSet) Digest() [32]byte {
	h := sha256.New()
	for i := range fileSet.files {
		f := &fileSet.files[i]
		h.Write([]byte(f.Path))
		h.Write(f.Hash[:])
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// GetLine returns the 1-based line lineNum, or "" when it does not exist.
func (f *File) GetLine(lineNum uint32) string {
	if lineNum == 0 {
		return ""
	}

	var start, end, lenLineIdx, lenContent uint32
	var err error
	lenLineIdx, err = safecast.Conv[uint32](len(f.LineIdx))
	if err != nil {
		panic(fmt.Errorf("line index length overflow: %w", err))
	}
	lenContent, err = safecast.Conv[uint32](len(f.Content))
	if err != nil {
		panic(fmt.Errorf("content length overflow: %w", err))
	}

	switch {
	case lineNum == 1:
		start = 0
	case (lineNum - 2) < lenLineIdx:
		start = f.LineIdx[lineNum-2] + 1
	default:
		return ""
	}

	if (lineNum - 1) < lenLineIdx {
		end = f.LineIdx[lineNum-1]
	} else {
		end = lenContent
	}

	if start >= lenContent {
		return ""
	}
	if end > lenContent {
		end = lenContent
	}

	return string(f.Content[start:end])
}

// FormatPath formats a path for display: "absolute", "relative", "basename" or "auto".
func FormatPath(path, mode, baseDir string) string {
	switch mode {
	case "absolute":
		if abs, err := filepath.Abs(path); err == nil {
			return filepath.ToSlash(abs)
		}
		return path
	case "relative":
		if baseDir == "" {
			if wd, err := os.Getwd(); err == nil {
				baseDir = wd
			}
		}
		if rel, err := filepath.Rel(baseDir, path); err == nil {
			return filepath.ToSlash(rel)
		}
		return path
	case "basename":
		return filepath.Base(path)
	case "auto":
		if len(path) < 40 || !filepath.IsAbs(path) {
			return path
		}
		return filepath.Base(path)
	default:
		return path
	}
}
