package content

import (
	"encoding/hex"
	"sort"

	"github.com/zeebo/blake3"
)

// File is one entry of a FileSet.
type File struct {
	Path   string
	Data   []byte
	Digest string
}

// FileSet is an ordered set of files keyed by path, with a local blake3
// digest per file so identical payloads are uploaded once.
type FileSet struct {
	files map[string]File
}

func NewFileSet() *FileSet {
	return &FileSet{files: make(map[string]File)}
}

// Digest returns the hex blake3 digest of data.
func Digest(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Add stores data at path, replacing any previous file there.
func (s *FileSet) Add(path string, data []byte) {
	s.files[path] = File{Path: path, Data: data, Digest: Digest(data)}
}

func (s *FileSet) Len() int {
	return len(s.files)
}

// Files returns the files sorted by path.
func (s *FileSet) Files() []File {
	out := make([]File, 0, len(s.files))
	for _, file := range s.files {
		out = append(out, file)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// Unique returns one file per distinct digest, in path order.
func (s *FileSet) Unique() []File {
	seen := make(map[string]struct{}, len(s.files))
	var out []File
	for _, file := range s.Files() {
		if _, ok := seen[file.Digest]; ok {
			continue
		}
		seen[file.Digest] = struct{}{}
		out = append(out, file)
	}
	return out
}
