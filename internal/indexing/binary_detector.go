package indexing

import (
	"bytes"
	"path/filepath"
	"strings"
)

// BinaryDetector rejects non-text files before they ever reach the
// parser manager. Adapted from the teacher's binary_detector.go,
// trimmed to the two checks the discovery scanner and watcher actually
// call.
type BinaryDetector struct {
	binaryExtensions map[string]bool
}

// NewBinaryDetector builds a detector with the teacher's extension
// database.
func NewBinaryDetector() *BinaryDetector {
	return &BinaryDetector{binaryExtensions: map[string]bool{
		".woff": true, ".woff2": true, ".ttf": true, ".otf": true, ".eot": true,
		".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".bmp": true,
		".ico": true, ".webp": true, ".tiff": true, ".tif": true,
		".zip": true, ".tar": true, ".gz": true, ".bz2": true, ".xz": true,
		".7z": true, ".rar": true, ".jar": true, ".war": true, ".ear": true,
		".exe": true, ".dll": true, ".so": true, ".dylib": true, ".a": true,
		".o": true, ".obj": true, ".bin": true,
		".mp3": true, ".mp4": true, ".avi": true, ".mov": true, ".wmv": true,
		".flv": true, ".wav": true, ".flac": true, ".ogg": true,
		".pdf": true, ".doc": true, ".docx": true, ".xls": true, ".xlsx": true,
		".ppt": true, ".pptx": true,
		".db": true, ".sqlite": true, ".sqlite3": true,
		".pyc": true, ".pyo": true, ".class": true, ".pickle": true, ".pkl": true,
	}}
}

// IsBinaryByExtension checks path's extension against the known-binary
// set. Compound minified-but-text extensions (.min.js, .min.css) are
// never flagged binary.
func (bd *BinaryDetector) IsBinaryByExtension(path string) bool {
	if strings.HasSuffix(path, ".min.js") || strings.HasSuffix(path, ".min.css") {
		return false
	}
	ext := strings.ToLower(filepath.Ext(path))
	if ext == "" {
		return false
	}
	return bd.binaryExtensions[ext]
}

// IsBinaryByMagicNumber sniffs the first 512 bytes of content for known
// binary file signatures — a fallback for files whose extension alone
// doesn't disqualify them (e.g. extension-less build artifacts).
func (bd *BinaryDetector) IsBinaryByMagicNumber(content []byte) bool {
	if len(content) == 0 {
		return false
	}
	checkLen := 512
	if len(content) < checkLen {
		checkLen = len(content)
	}
	sample := content[:checkLen]

	switch {
	case bytes.HasPrefix(sample, []byte{0x1F, 0x8B}):
		return true // gzip
	case bytes.HasPrefix(sample, []byte{0x50, 0x4B, 0x03, 0x04}), bytes.HasPrefix(sample, []byte{0x50, 0x4B, 0x05, 0x06}):
		return true // zip
	case bytes.HasPrefix(sample, []byte{0x89, 0x50, 0x4E, 0x47}):
		return true // png
	case bytes.HasPrefix(sample, []byte{0xFF, 0xD8, 0xFF}):
		return true // jpeg
	}
	return bytes.ContainsRune(sample, 0x00)
}
