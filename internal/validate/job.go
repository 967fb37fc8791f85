package validate

import "strings"

// JobForm carries the required fields of the new-job form. Line items,
// labor fee and images are optional and validated where they are handled.
type JobForm struct {
	Title   string
	Mileage int64
}

func (f JobForm) Validate() FieldErrors {
	errs := FieldErrors{}
	if strings.TrimSpace(f.Title) == "" {
		errs["title"] = "title is required"
	}
	if f.Mileage < 0 {
		errs["mileage"] = "mileage must be zero or positive"
	}
	return errs
}
