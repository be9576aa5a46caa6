package images

import (
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"github.com/pkg/errors"
)

// File is an encoded image read from a directory.
type File struct {
	// Path is the path to the image file.
	Path string
	// Frame is the trailing number of the file name, or -1 when it has none.
	Frame int
	Image
}

// LoadDir reads every supported image file in dir. Files are ordered by
// frame number, so frame-2.jpg sorts before frame-10.jpg, and then by name.
//
// Arguments:
//   - dir: Directory path containing image files.
//
// Returns:
//   - []File: The encoded files. Decode each with File.Decode.
//   - error: Error if the directory or a file cannot be read.
func LoadDir(dir string) ([]File, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "read image directory %s", dir)
	}

	var files []File
	for _, entry := range entries {
		if entry.IsDir() || !IsSupported(entry.Name()) {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to read image %s", path)
		}
		files = append(files, File{Path: path, Frame: frameNumber(entry.Name()), Image: Image{Data: data}})
	}

	sort.SliceStable(files, func(i, j int) bool {
		if files[i].Frame != files[j].Frame {
			return files[i].Frame < files[j].Frame
		}
		return files[i].Path < files[j].Path
	})
	return files, nil
}

// frameNumber parses the digits at the end of the base name, e.g. 42 for
// "frame-42.png".
func frameNumber(name string) int {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	end := len(base)
	start := strings.LastIndexFunc(base, func(r rune) bool { return !unicode.IsDigit(r) }) + 1
	if start == end {
		return -1
	}
	n, err := strconv.Atoi(base[start:end])
	if err != nil {
		return -1
	}
	return n
}
