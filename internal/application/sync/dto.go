package sync

import (
	"time"

	"github.com/finsight/backend/internal/domain/platform"
)

// defaultWindowDays is the trailing window used when the caller gives no
// dates.
const defaultWindowDays = 30

// Window is the date range a sync covers, inclusive on both ends.
type Window struct {
	From time.Time
	To   time.Time
}

// Resolve fills in missing bounds: an empty window becomes the trailing
// window of the given length ending now. Non-positive days means the
// 30-day default.
func (w Window) Resolve(now time.Time, days int) Window {
	if days <= 0 {
		days = defaultWindowDays
	}
	if w.To.IsZero() {
		w.To = now
	}
	if w.From.IsZero() {
		w.From = w.To.AddDate(0, 0, -days)
	}
	return w
}

// IsValid reports whether the window is ordered.
func (w Window) IsValid() bool {
	return !w.From.After(w.To)
}

// Report summarizes one platform sync. Failures are carried as messages
// rather than an error return; a sync always produces a report.
type Report struct {
	Platform           platform.Platform `json:"platform"`
	TransactionsSynced int               `json:"transactions_synced"`
	ProductsSynced     int               `json:"products_synced"`
	CampaignsSynced    int               `json:"campaigns_synced"`
	Errors             []string          `json:"errors"`
}

func newReport(p platform.Platform) *Report {
	return &Report{Platform: p, Errors: []string{}}
}

func (r *Report) addError(msg string) {
	r.Errors = append(r.Errors, msg)
}

// CombinedReport aggregates the reports of every connected platform.
type CombinedReport struct {
	UserID            string              `json:"user_id"`
	PlatformsSynced   []platform.Platform `json:"platforms_synced"`
	TotalTransactions int                 `json:"total_transactions"`
	TotalProducts     int                 `json:"total_products"`
	TotalCampaigns    int                 `json:"total_campaigns"`
	Errors            []string            `json:"errors"`
	Reports           []Report            `json:"reports"`
}
