package store

import (
	"time"

	"github.com/shopspring/decimal"
)

type User struct {
	ID           string
	Email        string
	DisplayName  string
	PasswordHash string
	CreatedAt    time.Time
}

// Business is the tenant record. Exactly one per owner is assumed but not
// enforced; lookups take the oldest match.
type Business struct {
	ID        string
	Name      string
	OwnerID   string
	CreatedAt time.Time
}

type Vehicle struct {
	ID         string
	BusinessID string
	Plate      string
	Brand      string
	Model      string
	Year       int
	FuelType   string
	EngineSize *string
	ChassisNo  *string
	OwnerName  string
	OwnerPhone *string
	Notes      *string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// QuickJob is one part-or-service line item on a job.
type QuickJob struct {
	Name      string          `json:"name"`
	Brand     string          `json:"brand"`
	Quantity  int64           `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
}

// LineTotal is quantity x unit price.
func (q QuickJob) LineTotal() decimal.Decimal {
	return q.UnitPrice.Mul(decimal.NewFromInt(q.Quantity))
}

// Job is a service record against a vehicle. Status holds the raw stored
// string; it is normalized only when read (jobstatus.Normalize).
type Job struct {
	ID         string
	BusinessID string
	VehicleID  string
	Title      string
	Status     string
	Mileage    int64
	Notes      *string
	LaborFee   decimal.NullDecimal
	QuickJobs  []QuickJob
	ImageURLs  []string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// PartsTotal sums the line totals of all quick jobs.
func (j Job) PartsTotal() decimal.Decimal {
	total := decimal.Zero
	for _, item := range j.QuickJobs {
		total = total.Add(item.LineTotal())
	}
	return total
}

// GrandTotal is parts plus labor.
func (j Job) GrandTotal() decimal.Decimal {
	total := j.PartsTotal()
	if j.LaborFee.Valid {
		total = total.Add(j.LaborFee.Decimal)
	}
	return total
}

// JobStats is the lightweight count summary shown next to the paginated
// list. It is fetched independently and may lag the loaded pages.
type JobStats struct {
	Total     int
	Active    int
	Completed int
}

// JobCursor is the keyset position after which the next page starts.
type JobCursor struct {
	CreatedAt time.Time
	ID        string
}

// Brand is read-only reference data with an optional logo.
type Brand struct {
	ID      string
	Name    string
	LogoURL *string
}
