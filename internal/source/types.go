package source

type (
	// FileID identifies a loaded header within a FileSet.
	FileID uint32
	// FileFlags records how a header was loaded.
	FileFlags uint8
)

const (
	// FileVirtual marks content added from memory rather than read from disk.
	FileVirtual FileFlags = 1 << iota
	FileHadBOM
	FileNormalizedCRLF
)

// File is one header: cleaned content plus a line index for diagnostics.
type File struct {
	ID      FileID
	Path    string
	Content []byte
	LineIdx []uint32 // offsets of '\n'
	Hash    [32]byte
	Flags   FileFlags
}
