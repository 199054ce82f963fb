package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"slices"
	"strconv"
	"strings"

	"github.com/hrygo/mintmaths/store"
)

// KeyPrefix marks document cache keys.
const KeyPrefix = "doc:"

// Key derives the cache key of the document built for selection under filter
// by a builder configured as variant (e.g. "solutions=1").
// Filter strings are trimmed and lower-cased and selection IDs are sorted, so
// the key does not depend on spelling case or draw order.
func Key(filter store.Filter, selection store.Selection, variant string) string {
	fields := []string{
		"expr=" + strings.TrimSpace(filter.Expr),
		"paper=" + strings.ToLower(strings.TrimSpace(filter.Paper)),
		"topic=" + strings.ToLower(strings.TrimSpace(filter.Topic)),
		"year=" + strconv.Itoa(filter.Year),
	}
	slices.Sort(fields)

	ids := selection.IDs()
	slices.Sort(ids)

	h := sha256.New()
	for _, f := range fields {
		h.Write([]byte(f))
		h.Write([]byte{0})
	}
	h.Write([]byte{1})
	for _, id := range ids {
		h.Write([]byte(id))
		h.Write([]byte{0})
	}
	h.Write([]byte{1})
	h.Write([]byte(variant))
	return KeyPrefix + hex.EncodeToString(h.Sum(nil))
}
