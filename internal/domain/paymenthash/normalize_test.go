package paymenthash

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	raw := sha256.Sum256([]byte("preimage"))
	want := hex.EncodeToString(raw[:])

	tests := []struct {
		name  string
		input any
		want  string
	}{
		{"lowercase hex", want, want},
		{"uppercase hex", strings.ToUpper(want), want},
		{"std base64", base64.StdEncoding.EncodeToString(raw[:]), want},
		{"url base64", base64.URLEncoding.EncodeToString(raw[:]), want},
		{"raw std base64", base64.RawStdEncoding.EncodeToString(raw[:]), want},
		{"bytes", raw[:], want},
		{"nil", nil, ""},
		{"undecodable", "not a hash!", "not a hash!"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.input))
		})
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	for i := 0; i < 50; i++ {
		raw := sha256.Sum256([]byte(fmt.Sprintf("preimage-%d", i)))
		encodings := []any{
			hex.EncodeToString(raw[:]),
			strings.ToUpper(hex.EncodeToString(raw[:])),
			base64.StdEncoding.EncodeToString(raw[:]),
			raw[:],
		}

		canonical := Normalize(encodings[0])
		for _, enc := range encodings {
			once := Normalize(enc)
			assert.Equal(t, canonical, once)
			assert.Equal(t, once, Normalize(once))
			assert.True(t, IsCanonical(once))
		}
	}
}

func TestFromString_NeverPanics(t *testing.T) {
	inputs := []string{"", "=", "====", "ab=cd", "\x00\xff", "zz"}
	for _, in := range inputs {
		assert.NotPanics(t, func() { FromString(in) })
	}
}
