// Package aggregator folds four independent record feeds into one
// dashboard snapshot. Each feed pushes arbitrary, uncorrelated updates; the
// aggregator keeps the last-known records per feed and recomputes the whole
// snapshot after every update, never waiting for the other feeds.
package aggregator

import (
	"log/slog"
	"math"
	"reflect"
	"sort"
	"strings"
	"sync"
	"time"
)

// Feed names. The Kafka topics carrying them are versioned separately (see
// internal/feed); the aggregator only sees these logical names.
const (
	FeedAppointments = "appointments"
	FeedPayments     = "payments"
	FeedDoctors      = "doctors"
	FeedUsers        = "users"
)

// overrideKey marks a pre-aggregated record: a feed that ships
// {"total": N} supplies the derived count/sum directly and wins over the
// locally computed value.
const overrideKey = "total"

// RecentAppointment is a snapshot projection with safe defaults already
// applied; readers never see a missing field.
type RecentAppointment struct {
	PatientName string  `json:"patientName"`
	DoctorName  string  `json:"doctorName"`
	ServiceName string  `json:"serviceName"`
	Date        string  `json:"date"`
	Time        string  `json:"time"`
	Amount      float64 `json:"amount"`
	Status      string  `json:"status"`
	CreatedAt   string  `json:"createdAt"`
}

// Snapshot is the single public metrics view. Field names are the wire
// contract consumed by the mobile dashboard.
type Snapshot struct {
	TotalUsers         int                 `json:"totalUsers"`
	TotalAppointments  int                 `json:"totalAppointments"`
	TotalRevenue       float64             `json:"totalRevenue"`
	ActiveDoctors      int                 `json:"activeDoctors"`
	TodayAppointments  int                 `json:"todayAppointments"`
	PendingCount       int                 `json:"pendingCount"`
	RecentAppointments []RecentAppointment `json:"recentAppointments"`
}

// Aggregator recomputes the snapshot under one lock: feed callbacks may
// arrive concurrently, but one recomputation completes before the next
// begins. A feed that has never delivered contributes zero; a feed that
// errors keeps its last-good records.
type Aggregator struct {
	mu      sync.Mutex
	feeds   map[string][]Record
	prev    *Snapshot
	subs    []func(Snapshot)
	logger  *slog.Logger
	nowDate func() string
}

func New(logger *slog.Logger) *Aggregator {
	return &Aggregator{
		feeds:  map[string][]Record{},
		logger: logger,
		nowDate: func() string {
			return time.Now().UTC().Format("2006-01-02")
		},
	}
}

// WithDateFunc overrides the current-ISO-date provider for tests and the
// midnight rollover job.
func (a *Aggregator) WithDateFunc(f func() string) *Aggregator {
	a.nowDate = f
	return a
}

// Subscribe registers a callback invoked with each changed snapshot. The
// callback runs on the updating goroutine while the aggregator lock is
// held; subscribers hand off to their own goroutines if they block.
func (a *Aggregator) Subscribe(fn func(Snapshot)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.subs = append(a.subs, fn)
}

// OnFeedUpdate replaces the feed's last-known records and recomputes. The
// new snapshot is compared to the previous one before notifying: an
// identical redelivery produces no downstream churn.
func (a *Aggregator) OnFeedUpdate(feedName string, records []Record) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.feeds[feedName] = records
	a.recomputeLocked()
}

// OnFeedError degrades the failed feed to its last-known value. Nothing is
// recomputed because nothing changed; the failure is observable only in
// logs.
func (a *Aggregator) OnFeedError(feedName string, err error) {
	a.logger.Warn("feed unavailable; keeping last-known records", "feed", feedName, "err", err)
}

// Recompute re-derives the snapshot from current state. The midnight
// rollover job calls this so todayAppointments tracks the calendar even
// when no feed delivers.
func (a *Aggregator) Recompute() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.recomputeLocked()
}

// Snapshot returns the latest computed snapshot.
func (a *Aggregator) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.prev == nil {
		return a.computeLocked()
	}
	return *a.prev
}

func (a *Aggregator) recomputeLocked() {
	next := a.computeLocked()
	if a.prev != nil && reflect.DeepEqual(*a.prev, next) {
		return
	}
	a.prev = &next
	for _, fn := range a.subs {
		fn(next)
	}
}

func (a *Aggregator) computeLocked() Snapshot {
	appts := a.feeds[FeedAppointments]
	payments := a.feeds[FeedPayments]
	doctors := a.feeds[FeedDoctors]
	users := a.feeds[FeedUsers]
	today := a.nowDate()

	snap := Snapshot{
		TotalUsers:        countOrOverride(users),
		TotalAppointments: countOrOverride(appts),
		ActiveDoctors:     countOrOverride(doctors),
	}

	if total, ok := override(payments); ok {
		snap.TotalRevenue = total
	} else {
		var sum float64
		for _, p := range payments {
			sum += p.Number("amount", 0)
		}
		snap.TotalRevenue = sum
	}
	if math.IsNaN(snap.TotalRevenue) || math.IsInf(snap.TotalRevenue, 0) {
		snap.TotalRevenue = 0
	}

	for _, appt := range appts {
		if date := appt.String("date", ""); date != "" && strings.HasPrefix(date, today) {
			snap.TodayAppointments++
		}
		if appt.String("paymentStatus", "") == "pending" {
			snap.PendingCount++
		}
	}

	snap.RecentAppointments = recent(appts, 3)
	return snap
}

// countOrOverride counts the feed's real records, unless a pre-aggregated
// record supplies the total directly. Override records do not count as
// entries themselves.
func countOrOverride(records []Record) int {
	if total, ok := override(records); ok {
		return int(total)
	}
	return len(records)
}

// override returns the first finite numeric "total" in the feed.
func override(records []Record) (float64, bool) {
	for _, r := range records {
		if r.HasNumber(overrideKey) {
			return r.Number(overrideKey, 0), true
		}
	}
	return 0, false
}

func recent(appts []Record, n int) []RecentAppointment {
	sorted := make([]Record, len(appts))
	copy(sorted, appts)
	// createdAt is RFC 3339, so the lexical order is the time order;
	// records without it sort last.
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].String("createdAt", "") > sorted[j].String("createdAt", "")
	})

	out := make([]RecentAppointment, 0, n)
	for _, r := range sorted {
		if len(out) == n {
			break
		}
		if r.HasNumber(overrideKey) {
			continue
		}
		out = append(out, RecentAppointment{
			PatientName: r.String("patientName", "Unknown"),
			DoctorName:  r.String("doctorName", "Unassigned"),
			ServiceName: r.String("serviceName", "General"),
			Date:        r.String("date", ""),
			Time:        r.String("time", ""),
			Amount:      r.Number("amount", 0),
			Status:      r.String("status", "confirmed"),
			CreatedAt:   r.String("createdAt", ""),
		})
	}
	return out
}
