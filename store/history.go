package store

import (
	"bytes"
	"encoding/json"
	"os"
	"slices"
	"sync"

	"github.com/natefinch/atomic"
	"github.com/pkg/errors"
)

// UsageHistory remembers which questions were already handed out so fresh
// draws can avoid repeats. It is stored as a JSON list of IDs.
type UsageHistory struct {
	path string

	mu   sync.Mutex
	used map[string]struct{}
}

// OpenUsageHistory loads the history at path; a missing file is an empty history.
func OpenUsageHistory(path string) (*UsageHistory, error) {
	h := &UsageHistory{path: path, used: map[string]struct{}{}}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return h, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read usage history %s", path)
	}

	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return nil, errors.Wrapf(err, "malformed usage history %s", path)
	}
	for _, id := range ids {
		h.used[id] = struct{}{}
	}
	return h, nil
}

// Used reports whether id was handed out.
func (h *UsageHistory) Used(id string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.used[id]
	return ok
}

// Len returns the number of remembered questions.
func (h *UsageHistory) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.used)
}

// Record adds ids and saves the history.
func (h *UsageHistory) Record(ids ...string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, id := range ids {
		h.used[id] = struct{}{}
	}
	return h.save()
}

// Reset forgets every question and saves the empty history.
func (h *UsageHistory) Reset() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.used = map[string]struct{}{}
	return h.save()
}

// save must be called with lock held.
func (h *UsageHistory) save() error {
	ids := make([]string, 0, len(h.used))
	for id := range h.used {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	data, err := json.MarshalIndent(ids, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to encode usage history")
	}
	if err := atomic.WriteFile(h.path, bytes.NewReader(data)); err != nil {
		return errors.Wrapf(err, "failed to write usage history %s", h.path)
	}
	return nil
}
