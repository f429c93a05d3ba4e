package services

import (
	"groundtransfer/opsdesk/internal/models/dtos"
)

// MergedSet is the deduplicated set of references found across every window of a run
type MergedSet struct {
	order     []string
	seen      map[string]bool
	summaries map[string]dtos.BookingSummary
}

// MergeSummaries dedupes search results by booking reference.
// The first occurrence fixes the position, the latest occurrence supplies the summary.
func MergeSummaries(batches ...[]dtos.BookingSummary) *MergedSet {
	set := &MergedSet{
		seen:      make(map[string]bool),
		summaries: make(map[string]dtos.BookingSummary),
	}
	for _, batch := range batches {
		set.Add(batch...)
	}
	return set
}

// Add merges more summaries into the set
func (m *MergedSet) Add(summaries ...dtos.BookingSummary) {
	for _, s := range summaries {
		ref := s.BookingRef()
		if ref == "" {
			continue
		}
		if !m.has(ref) {
			m.order = append(m.order, ref)
			m.seen[ref] = true
		}
		m.summaries[ref] = s
	}
}

// AddRef registers a reference that has no search summary
func (m *MergedSet) AddRef(ref string) {
	if ref == "" || m.has(ref) {
		return
	}
	m.order = append(m.order, ref)
	m.seen[ref] = true
}

func (m *MergedSet) has(ref string) bool {
	return m.seen[ref]
}

// Refs returns references in first-seen order
func (m *MergedSet) Refs() []string {
	refs := make([]string, len(m.order))
	copy(refs, m.order)
	return refs
}

// Summary returns the latest summary seen for ref
func (m *MergedSet) Summary(ref string) (*dtos.BookingSummary, bool) {
	s, ok := m.summaries[ref]
	if !ok {
		return nil, false
	}
	return &s, true
}

// Len is the number of distinct references
func (m *MergedSet) Len() int {
	return len(m.order)
}
