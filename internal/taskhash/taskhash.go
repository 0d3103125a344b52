// Package taskhash derives the short filename discriminator used for
// snapshot and metadata files.
package taskhash

import (
	"fmt"
	"hash/fnv"
)

// Sum32Hex returns the low 32 bits of the FNV-1a hash of s rendered as
// lowercase hex without padding. Not a security boundary; it only keeps
// per-task files from colliding in a shared directory.
func Sum32Hex(s string) string {
	h := fnv.New64a()
	h.Write([]byte(s))
	return fmt.Sprintf("%x", h.Sum64()&0xFFFFFFFF)
}
