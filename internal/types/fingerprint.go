package types

import (
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// base63Alphabet is the same dense alphabet the teacher's dense-object-id
// encoder uses: A-Z, a-z, 0-9, then underscore, for compact human-readable
// ids (~11 characters for a full 64-bit fingerprint vs ~16 for hex).
const base63Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789_"

func encodeBase63(v uint64) string {
	if v == 0 {
		return string(base63Alphabet[0])
	}
	var buf [16]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = base63Alphabet[v%63]
		v /= 63
	}
	return string(buf[i:])
}

// FingerprintSymbol computes the stable opaque id for a symbol. Per the
// data-model invariant, the same (file_path, qualified_name, start_byte,
// kind) always yields the same id, so relationships survive re-indexing of
// unchanged files. Unlike the teacher's dense object id (which encodes a
// transient fileID/localID pair), this hashes the content-derived inputs
// directly so the id is stable across re-parses, not just within one
// indexing run.
func FingerprintSymbol(filePath, qualifiedName string, startByte int, kind SymbolKind) string {
	h := xxhash.New()
	_, _ = h.WriteString(filePath)
	_, _ = h.Write([]byte{0})
	_, _ = h.WriteString(qualifiedName)
	_, _ = h.Write([]byte{0})
	_, _ = h.WriteString(strconv.Itoa(startByte))
	_, _ = h.Write([]byte{0})
	_, _ = h.WriteString(string(kind))
	return encodeBase63(h.Sum64())
}

// FingerprintRelationship computes the stable opaque id for a relationship.
func FingerprintRelationship(fromID, toID string, kind RelationshipKind, filePath string, startByte int) string {
	h := xxhash.New()
	_, _ = h.WriteString(fromID)
	_, _ = h.Write([]byte{0})
	_, _ = h.WriteString(toID)
	_, _ = h.Write([]byte{0})
	_, _ = h.WriteString(string(kind))
	_, _ = h.Write([]byte{0})
	_, _ = h.WriteString(filePath)
	_, _ = h.Write([]byte{0})
	_, _ = h.WriteString(strconv.Itoa(startByte))
	return encodeBase63(h.Sum64())
}

// ContentHash computes the hex digest used as a file's content_hash.
func ContentHash(data []byte) string {
	sum := xxhash.Sum64(data)
	var sb strings.Builder
	sb.Grow(16)
	const hexDigits = "0123456789abcdef"
	for shift := 60; shift >= 0; shift -= 4 {
		sb.WriteByte(hexDigits[(sum>>uint(shift))&0xf])
	}
	return sb.String()
}
