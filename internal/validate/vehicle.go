// Package validate holds the pure form validators shared by the vehicle and
// job endpoints. Each validator maps a field-value record to a field->message
// error map and performs no I/O; the HTTP layer turns a non-empty map into a
// 422 with the map attached as details.
package validate

import (
	"regexp"
	"strings"
	"time"
	"unicode"
)

type FieldErrors map[string]string

const MinModelYear = 1930

var (
	// Turkish plate: 2 digits, 1-3 letters, 2-4 digits, after whitespace is
	// stripped and the value uppercased.
	platePattern = regexp.MustCompile(`^[0-9]{2}[A-Z]{1,3}[0-9]{2,4}$`)
	// Engine displacement like "1.6", "2.0", "1.33".
	enginePattern = regexp.MustCompile(`^[0-9]\.[0-9]{1,2}$`)
	// Turkish mobile: leading 0 or +90, then a 10 digit number starting with 5.
	phonePattern = regexp.MustCompile(`^(0|\+90)5[0-9]{9}$`)
	yearPattern  = regexp.MustCompile(`^[0-9]{4}$`)
)

// NormalizePlate strips all whitespace and uppercases, the canonical form the
// plate is stored and compared in.
func NormalizePlate(plate string) string {
	var b strings.Builder
	for _, r := range plate {
		if !unicode.IsSpace(r) {
			b.WriteRune(r)
		}
	}
	return strings.ToUpper(b.String())
}

func ValidPlate(plate string) bool {
	return platePattern.MatchString(NormalizePlate(plate))
}

// ValidChassisNo accepts a 17 character alphanumeric VIN that avoids the
// easily confused letters I, O and Q. The empty value is handled by callers;
// this checks a present value only.
func ValidChassisNo(chassisNo string) bool {
	if len(chassisNo) != 17 {
		return false
	}
	for _, r := range chassisNo {
		switch {
		case r >= '0' && r <= '9':
		case r >= 'a' && r <= 'z':
			if r == 'i' || r == 'o' || r == 'q' {
				return false
			}
		case r >= 'A' && r <= 'Z':
			if r == 'I' || r == 'O' || r == 'Q' {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// ValidModelYear accepts 4 digit years from 1930 through next year. The
// lower bound already forces four digits; the pattern is applied by callers
// that receive the year as raw text.
func ValidModelYear(year int, now time.Time) bool {
	return year >= MinModelYear && year <= now.Year()+1
}

// ValidYearText checks the textual form: exactly 4 digits and in range.
func ValidYearText(year string, now time.Time) bool {
	if !yearPattern.MatchString(year) {
		return false
	}
	parsed := 0
	for _, r := range year {
		parsed = parsed*10 + int(r-'0')
	}
	return ValidModelYear(parsed, now)
}

func ValidEngineSize(engineSize string) bool {
	return enginePattern.MatchString(engineSize)
}

func ValidPhone(phone string) bool {
	return phonePattern.MatchString(phone)
}

// VehicleForm carries the creatable field set. Edit flows reuse it with the
// immutable fields (plate, brand, model) pre-filled from the stored record.
type VehicleForm struct {
	Plate      string
	Brand      string
	Model      string
	Year       int
	FuelType   string
	EngineSize string
	ChassisNo  string
	OwnerName  string
	OwnerPhone string
}

// Validate returns the full field error map for the form at time now. An
// empty map means the submission may proceed.
func (f VehicleForm) Validate(now time.Time) FieldErrors {
	errs := FieldErrors{}

	plate := NormalizePlate(f.Plate)
	if plate == "" {
		errs["plate"] = "plate is required"
	} else if !platePattern.MatchString(plate) {
		errs["plate"] = "plate must match the Turkish format, e.g. 34ABC123"
	}

	if strings.TrimSpace(f.Brand) == "" {
		errs["brand"] = "brand is required"
	}
	if strings.TrimSpace(f.Model) == "" {
		errs["model"] = "model is required"
	}

	if !ValidModelYear(f.Year, now) {
		errs["year"] = "year must be a 4 digit value between 1930 and next year"
	}

	if f.FuelType != "electric" {
		engine := strings.TrimSpace(f.EngineSize)
		if engine == "" {
			errs["engineSize"] = "engine size is required"
		} else if !ValidEngineSize(engine) {
			errs["engineSize"] = "engine size must look like 1.6 or 1.33"
		}
	}

	if chassis := strings.TrimSpace(f.ChassisNo); chassis != "" && !ValidChassisNo(chassis) {
		errs["chassisNo"] = "chassis number must be 17 alphanumeric characters without I, O or Q"
	}

	if strings.TrimSpace(f.OwnerName) == "" {
		errs["ownerName"] = "owner name is required"
	}

	if phone := strings.TrimSpace(f.OwnerPhone); phone != "" && !ValidPhone(phone) {
		errs["ownerPhone"] = "phone must be a Turkish mobile number (0 or +90, then 5XXXXXXXXX)"
	}

	return errs
}
