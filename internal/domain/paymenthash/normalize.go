// Package paymenthash canonicalizes Lightning payment hashes.
//
// The node reports the same 32-byte hash as raw bytes, standard or URL-safe
// base64, or hex depending on the endpoint. The ledger keys transactions by
// the lowercase hex form returned here.
package paymenthash

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
)

var hexPattern = regexp.MustCompile(`^[0-9a-fA-F]+$`)

var base64Encodings = []*base64.Encoding{
	base64.StdEncoding,
	base64.URLEncoding,
	base64.RawStdEncoding,
	base64.RawURLEncoding,
}

// Normalize returns the canonical lowercase hex form of v.
// Strings and byte slices are handled as described on FromString and FromBytes;
// any other value is formatted with fmt and treated as a string.
func Normalize(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return FromString(val)
	case []byte:
		return FromBytes(val)
	case fmt.Stringer:
		return FromString(val.String())
	default:
		return FromString(fmt.Sprint(val))
	}
}

// FromString canonicalizes a hash received as text. Hex input is lowercased,
// base64 input is decoded and hex-encoded, and anything else is returned unchanged.
func FromString(s string) string {
	if hexPattern.MatchString(s) {
		return strings.ToLower(s)
	}

	for _, enc := range base64Encodings {
		decoded, err := enc.DecodeString(s)
		if err == nil {
			return hex.EncodeToString(decoded)
		}
	}

	return s
}

// FromBytes hex-encodes a raw hash.
func FromBytes(b []byte) string {
	return hex.EncodeToString(b)
}

// IsCanonical reports whether s is already in canonical form.
func IsCanonical(s string) bool {
	return hexPattern.MatchString(s) && s == strings.ToLower(s)
}
