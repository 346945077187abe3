package hashutil

import (
	"crypto/sha256"
	"encoding/hex"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// Digest returns the hex-encoded sha256 of the NFC-normalized input.
// The same logical text must hash identically regardless of the unicode
// composition form it arrived in. Invalid UTF-8 hashes as empty input.
func Digest(text string) string {
	if !utf8.ValidString(text) {
		text = ""
	} else {
		text = norm.NFC.String(text)
	}
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
