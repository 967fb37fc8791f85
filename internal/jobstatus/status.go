// Package jobstatus defines the closed set of service-job states and the
// single normalizing parse applied at every read boundary. Stored status
// strings are never rewritten; legacy aliases ("done", "canceled") and mixed
// casing are folded here instead.
package jobstatus

import "strings"

type Status string

const (
	Active    Status = "active"
	Completed Status = "completed"
	Cancelled Status = "cancelled"
)

// Parse folds casing and known aliases into the closed enum. ok is false for
// anything outside the enum, including the empty string.
func Parse(raw string) (Status, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "active":
		return Active, true
	case "completed", "done":
		return Completed, true
	case "cancelled", "canceled":
		return Cancelled, true
	}
	return "", false
}

// Normalize is the read-boundary form of Parse: unknown or empty raw values
// resolve to Active, matching how unlabeled jobs behave everywhere else.
func Normalize(raw string) Status {
	if status, ok := Parse(raw); ok {
		return status
	}
	return Active
}

// IsTerminal reports whether no further transition is allowed.
func IsTerminal(status Status) bool {
	return status == Completed
}

// allowTransition is the directed graph of legal status changes. Completed is
// terminal: a job observed completed stays completed.
var allowTransition = map[Status][]Status{
	Active:    {Cancelled, Completed},
	Cancelled: {Active, Completed},
	Completed: {},
}

// CanTransition reports whether from -> to is a legal change. Self
// transitions are allowed as no-ops.
func CanTransition(from, to Status) bool {
	if from == to {
		return true
	}
	allowed, ok := allowTransition[from]
	if !ok {
		return false
	}
	for _, next := range allowed {
		if next == to {
			return true
		}
	}
	return false
}
