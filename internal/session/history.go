package session

import (
	"slices"
	"strings"
)

// DefaultHistoryCap is the number of records kept when no cap is configured.
const DefaultHistoryCap = 20

// History is a bounded list of records ordered newest first.
type History struct {
	cap     int
	records []Record
}

// NewHistory returns an empty history holding at most limit records.
func NewHistory(limit int) *History {
	if limit < 1 {
		limit = DefaultHistoryCap
	}
	return &History{cap: limit}
}

// Cap returns the maximum length.
func (h *History) Cap() int { return h.cap }

// Len returns the number of records.
func (h *History) Len() int { return len(h.records) }

// Prepend inserts a copy of r as the newest record and evicts the oldest
// beyond the cap. It returns the evicted records.
func (h *History) Prepend(r Record) []Record {
	h.records = append([]Record{r.Clone()}, h.records...)
	if len(h.records) <= h.cap {
		return nil
	}
	evicted := slices.Clone(h.records[h.cap:])
	h.records = h.records[:h.cap:h.cap]
	return evicted
}

// Replace loads records, newest first by id, truncated to the cap.
func (h *History) Replace(records []Record) {
	sorted := slices.Clone(records)
	slices.SortStableFunc(sorted, func(a, b Record) int {
		return strings.Compare(b.ID, a.ID)
	})
	if len(sorted) > h.cap {
		sorted = sorted[:h.cap]
	}
	h.records = sorted
}

// Index returns the position of id, or -1.
func (h *History) Index(id string) int {
	return slices.IndexFunc(h.records, func(r Record) bool { return r.ID == id })
}

// Set overwrites the record at index i.
func (h *History) Set(i int, r Record) {
	h.records[i] = r
}

// At returns a copy of the record at index i.
func (h *History) At(i int) Record {
	return h.records[i].Clone()
}

// Records returns a deep copy of the record list.
func (h *History) Records() []Record {
	out := make([]Record, len(h.records))
	for i, r := range h.records {
		out[i] = r.Clone()
	}
	return out
}

// shared returns the record list without copying samples. Callers must only
// read it.
func (h *History) shared() []Record {
	return slices.Clone(h.records)
}
