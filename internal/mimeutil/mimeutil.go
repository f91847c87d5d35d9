// Package mimeutil resolves the content type an object should carry at the
// destination. Destinations populated by older tooling often hold a default
// binary type; resolving the correct type here is what lets the engine
// detect and repair those uploads.
package mimeutil

import (
	"mime"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// OctetStream is the generic fallback type.
const OctetStream = "application/octet-stream"

// genericTypes are placeholder types that carry no real information. A
// source object declaring one of these is treated as having no type at all.
var genericTypes = map[string]struct{}{
	OctetStream:           {},
	"binary/octet-stream": {},
}

// Resolve picks the content type for key. The type already recorded on the
// source object wins when it is present and not a generic placeholder;
// otherwise the key's extension decides; otherwise the generic binary type.
func Resolve(key, sourceType string) string {
	if t := normalize(sourceType); t != "" && !isGeneric(t) {
		return t
	}

	if ext := filepath.Ext(key); ext != "" {
		if t := mime.TypeByExtension(ext); t != "" {
			return t
		}
	}

	return OctetStream
}

// Sniff upgrades a generic resolved type by inspecting the object's leading
// bytes. Only the buffered copy path can afford this; streamed objects keep
// the resolved type as-is.
func Sniff(data []byte, resolved string) string {
	if !isGeneric(normalize(resolved)) || len(data) == 0 {
		return resolved
	}
	if mt := mimetype.Detect(data); mt != nil {
		return mt.String()
	}
	return resolved
}

// Equal compares two content types ignoring case and surrounding space.
func Equal(a, b string) bool {
	return normalize(a) == normalize(b)
}

// Matches reports whether the type recorded on a destination copy is
// consistent with the resolved type. A generic resolved type matches any
// recorded type: the resolver could not derive anything better for this
// key, so a sniffed type written by an earlier run must not force a
// re-copy on the next one.
func Matches(resolved, target string) bool {
	if Equal(resolved, target) {
		return true
	}
	return isGeneric(normalize(resolved)) && normalize(target) != ""
}

func normalize(t string) string {
	return strings.ToLower(strings.TrimSpace(t))
}

func isGeneric(t string) bool {
	_, ok := genericTypes[t]
	return ok
}
