package validate

import (
	"testing"
	"time"
)

var now = time.Date(2026, time.March, 14, 12, 0, 0, 0, time.UTC)

func TestPlateFormat(t *testing.T) {
	cases := []struct {
		plate string
		valid bool
	}{
		{"34ABC123", true},
		{"34 ABC 123", true}, // whitespace stripped before matching
		{"06A12", true},
		{"35TY1234", true},
		{"34abc123", true}, // uppercased before matching
		{"34 ABC 1", false},
		{"3A4BC123", false},
		{"341ABC123", false},
		{"34ABCD123", false},
		{"", false},
	}
	for _, tc := range cases {
		if got := ValidPlate(tc.plate); got != tc.valid {
			t.Fatalf("ValidPlate(%q) = %v, want %v", tc.plate, got, tc.valid)
		}
	}
}

func TestNormalizePlate(t *testing.T) {
	if got := NormalizePlate(" 34 abc 123 "); got != "34ABC123" {
		t.Fatalf("NormalizePlate = %q, want 34ABC123", got)
	}
}

func TestChassisNo(t *testing.T) {
	cases := []struct {
		vin   string
		valid bool
	}{
		{"WVWZZZ1JZXW000001", true},
		{"1hgcm82633a004352", true},
		{"WVWZZZ1JZXW00001", false},   // 16 chars
		{"WVWZZZ1JZXW0000012", false}, // 18 chars
		{"WVWZZZ1JZXWO00001", false},  // contains O
		{"WVWZZZ1JZXWI00001", false},  // contains I
		{"WVWZZZ1JZXWQ00001", false},  // contains Q
		{"WVWZZZ1JZXW00000!", false},
	}
	for _, tc := range cases {
		if got := ValidChassisNo(tc.vin); got != tc.valid {
			t.Fatalf("ValidChassisNo(%q) = %v, want %v", tc.vin, got, tc.valid)
		}
	}
}

func TestModelYearBounds(t *testing.T) {
	if ValidModelYear(1929, now) {
		t.Fatalf("1929 must be invalid")
	}
	if !ValidModelYear(1930, now) {
		t.Fatalf("1930 must be valid")
	}
	if !ValidModelYear(now.Year()+1, now) {
		t.Fatalf("next year must be valid")
	}
	if ValidModelYear(now.Year()+2, now) {
		t.Fatalf("current year + 2 must be invalid")
	}
	if ValidYearText("193", now) || ValidYearText("19300", now) {
		t.Fatalf("year text must be exactly 4 digits")
	}
	if !ValidYearText("1930", now) {
		t.Fatalf("expected 1930 text to be valid")
	}
}

func TestEngineSize(t *testing.T) {
	for _, ok := range []string{"1.6", "2.0", "1.33", "0.9"} {
		if !ValidEngineSize(ok) {
			t.Fatalf("expected %q to be valid", ok)
		}
	}
	for _, bad := range []string{"16", "1.333", "12.0", "1,6", "1.", ".6", ""} {
		if ValidEngineSize(bad) {
			t.Fatalf("expected %q to be invalid", bad)
		}
	}
}

func TestPhoneFormat(t *testing.T) {
	for _, ok := range []string{"05321234567", "+905321234567"} {
		if !ValidPhone(ok) {
			t.Fatalf("expected %q to be valid", ok)
		}
	}
	for _, bad := range []string{"5321234567", "06321234567", "+15321234567", "0532123456", "053212345678"} {
		if ValidPhone(bad) {
			t.Fatalf("expected %q to be invalid", bad)
		}
	}
}

func TestVehicleFormCollectsAllErrors(t *testing.T) {
	errs := VehicleForm{
		Plate:      "bad",
		Year:       1910,
		FuelType:   "gasoline",
		EngineSize: "16",
		ChassisNo:  "SHORT",
		OwnerPhone: "12345",
	}.Validate(now)

	for _, field := range []string{"plate", "brand", "model", "year", "engineSize", "chassisNo", "ownerName", "ownerPhone"} {
		if _, ok := errs[field]; !ok {
			t.Fatalf("expected error for %s, got %v", field, errs)
		}
	}
}

func TestVehicleFormElectricSkipsEngineSize(t *testing.T) {
	errs := VehicleForm{
		Plate:     "34ABC123",
		Brand:     "Renault",
		Model:     "Zoe",
		Year:      2024,
		FuelType:  "electric",
		OwnerName: "Ayşe Demir",
	}.Validate(now)
	if len(errs) != 0 {
		t.Fatalf("expected no errors, got %v", errs)
	}
}

func TestVehicleFormOptionalFieldsMayBeEmpty(t *testing.T) {
	errs := VehicleForm{
		Plate:      "06DY07",
		Brand:      "Fiat",
		Model:      "Egea",
		Year:       2021,
		FuelType:   "diesel",
		EngineSize: "1.6",
		OwnerName:  "Mehmet Kaya",
	}.Validate(now)
	if len(errs) != 0 {
		t.Fatalf("expected no errors, got %v", errs)
	}
}

func TestJobFormRequiresTitle(t *testing.T) {
	errs := JobForm{Title: "  ", Mileage: -1}.Validate()
	if _, ok := errs["title"]; !ok {
		t.Fatalf("expected title error")
	}
	if _, ok := errs["mileage"]; !ok {
		t.Fatalf("expected mileage error")
	}
	if len(JobForm{Title: "Yağ değişimi", Mileage: 154000}.Validate()) != 0 {
		t.Fatalf("expected valid job form")
	}
}
