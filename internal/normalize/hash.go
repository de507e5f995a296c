package normalize

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
)

// ArgsHash computes a stable SHA-256 over a name and its arguments.
// Arguments are sorted by key then concatenated with null separators, so
// the same call always maps to the same key regardless of map order.
func ArgsHash(name string, args map[string]string) string {
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	h := sha256.New()
	h.Write([]byte(name))
	h.Write([]byte{0})
	for _, k := range keys {
		h.Write([]byte(k))
		h.Write([]byte{0})
		h.Write([]byte(args[k]))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
