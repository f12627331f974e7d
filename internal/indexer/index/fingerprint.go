package index

import (
	"crypto/sha256"
	"encoding/hex"
)

// Fingerprint returns a stable hash of the canonical encoding. It changes
// whenever any table changes, so it doubles as a cache namespace.
func Fingerprint(idx *Index) (string, error) {
	data, err := Marshal(idx)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
