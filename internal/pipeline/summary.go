package pipeline

import (
	"fmt"
	"log"
	"sync"
	"time"

	"tripetl/internal/trip"
)

// Summary holds the run totals reported at the end of a run. It is also
// returned, partially filled, when a run fails mid-stream.
type Summary struct {
	RunID       string
	Fingerprint string

	Read     int64 // data rows that parsed and entered normalization
	Accepted int64
	Rejected int64
	Inserted int64

	// ParseErrors counts lines the CSV reader could not parse. They are
	// dropped before normalization and not part of Read.
	ParseErrors int64

	Chunks         int
	Batches        int
	VendorsCreated int

	// Reasons tallies rejected rows per reason; a row with several reasons
	// counts once under each.
	Reasons map[trip.Reason]int64

	Elapsed time.Duration
}

// SuccessRate is Inserted as a percentage of Read, or 0 when nothing was read.
func (s Summary) SuccessRate() float64 {
	if s.Read == 0 {
		return 0
	}
	return float64(s.Inserted) / float64(s.Read) * 100
}

func (s *Summary) addReasons(rs trip.ReasonSet) {
	if s.Reasons == nil {
		s.Reasons = make(map[trip.Reason]int64)
	}
	for _, r := range rs.Reasons() {
		s.Reasons[r]++
	}
}

// logSummary prints the final totals and the per-reason breakdown in
// evaluation order.
func logSummary(s Summary, logPath string) {
	log.Printf(
		"summary: run=%s fingerprint=%s read=%d accepted=%d rejected=%d inserted=%d parse_errors=%d chunks=%d batches=%d vendors_created=%d elapsed=%s",
		s.RunID,
		s.Fingerprint,
		s.Read,
		s.Accepted,
		s.Rejected,
		s.Inserted,
		s.ParseErrors,
		s.Chunks,
		s.Batches,
		s.VendorsCreated,
		s.Elapsed.Truncate(time.Millisecond),
	)
	log.Printf("success rate: %s", formatRate(s))
	for _, r := range trip.AllReasons() {
		if n := s.Reasons[r]; n > 0 {
			log.Printf("  %-22s %d", r.String(), n)
		}
	}
	log.Printf("cleaning log: %s", logPath)
}

func formatRate(s Summary) string {
	return fmt.Sprintf("%.1f%% (%d/%d)", s.SuccessRate(), s.Inserted, s.Read)
}

// errAgg counts messages and keeps the first limit of them for the summary.
type errAgg struct {
	mu    sync.Mutex
	limit int
	count int
	first []string
}

func newErrAgg(limit int) *errAgg {
	return &errAgg{limit: limit}
}

func (a *errAgg) add(msg string) {
	a.mu.Lock()
	if a.count < a.limit {
		a.first = append(a.first, msg)
	}
	a.count++
	a.mu.Unlock()
}

func (a *errAgg) log(what string) {
	if a.count == 0 {
		return
	}
	log.Printf("%s: %d (showing first %d)", what, a.count, len(a.first))
	for i, s := range a.first {
		log.Printf("  #%03d: %s", i+1, s)
	}
}
