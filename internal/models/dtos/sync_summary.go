package dtos

import "sync"

// FailureEntry records one reference (or window) the invocation could not process
type FailureEntry struct {
	BookingRef string `json:"booking_ref,omitempty"`
	Stage      string `json:"stage"`
	Message    string `json:"message"`
}

// SyncSummary is returned by every sync and backfill invocation
type SyncSummary struct {
	RunID    string         `json:"run_id"`
	Strategy string         `json:"strategy"`
	Found    int            `json:"found"`
	New      int            `json:"new"`
	Updated  int            `json:"updated"`
	Failed   int            `json:"failed"`
	Errors   []FailureEntry `json:"errors"`

	mu sync.Mutex
}

// NewSyncSummary returns an empty summary for a strategy
func NewSyncSummary(runID string, strategy string) *SyncSummary {
	return &SyncSummary{
		RunID:    runID,
		Strategy: strategy,
		Errors:   []FailureEntry{},
	}
}

// AddNew counts a newly inserted booking
func (s *SyncSummary) AddNew() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.New++
}

// AddUpdated counts an updated booking
func (s *SyncSummary) AddUpdated() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Updated++
}

// AddFailure records a per-reference failure. Window-level errors pass an empty ref
// and do not count towards Failed.
func (s *SyncSummary) AddFailure(ref string, stage string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg := ""
	if err != nil {
		msg = err.Error()
	}
	s.Errors = append(s.Errors, FailureEntry{BookingRef: ref, Stage: stage, Message: msg})
	if ref != "" {
		s.Failed++
	}
}

// FailedRefs lists the references recorded as failed, in order
func (s *SyncSummary) FailedRefs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	refs := make([]string, 0, len(s.Errors))
	for _, e := range s.Errors {
		if e.BookingRef != "" {
			refs = append(refs, e.BookingRef)
		}
	}
	return refs
}
