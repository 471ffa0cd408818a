// Package fileid derives stable identifiers for contract files and their contents.
package fileid

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
)

const prefix = "contract:"

// ContractID returns a stable contract ID for the given absolute path.
// Same path always yields the same ID, so re-ingesting a file updates its registry row.
func ContractID(absolutePath string) string {
	normalized := filepath.Clean(absolutePath)
	hash := sha256.Sum256([]byte(normalized))
	return prefix + hex.EncodeToString(hash[:])
}

// ContentHash returns the hex sha256 of content. The indexer compares it with the
// registry to skip files that have not changed.
func ContentHash(content []byte) string {
	hash := sha256.Sum256(content)
	return hex.EncodeToString(hash[:])
}
