package app

import (
	"context"
	"net/http"
	"strings"
	"time"

	"atolye/api/internal/store"
	"atolye/api/internal/util"
	"atolye/api/internal/validate"
)

// VehicleInput carries the vehicle form as submitted over the API.
type VehicleInput struct {
	Plate      string `json:"plate"`
	Brand      string `json:"brand"`
	Model      string `json:"model"`
	Year       int    `json:"year"`
	FuelType   string `json:"fuelType"`
	EngineSize string `json:"engineSize"`
	ChassisNo  string `json:"chassisNo"`
	OwnerName  string `json:"ownerName"`
	OwnerPhone string `json:"ownerPhone"`
	Notes      string `json:"notes"`
}

// ListVehicles returns the tenant's fleet, newest first, with brand logos
// joined in. The optional query matches plate, brand, model and owner name,
// case-insensitively, over the whole fleet.
func (s *Service) ListVehicles(ctx context.Context, businessID, query string) ([]map[string]any, error) {
	vehicles, err := s.store.ListVehicles(ctx, businessID)
	if err != nil {
		return nil, err
	}

	logos, err := s.brandLogos(ctx)
	if err != nil {
		return nil, err
	}

	query = strings.ToLower(strings.TrimSpace(query))
	items := make([]map[string]any, 0, len(vehicles))
	for _, vehicle := range vehicles {
		if query != "" && !vehicleMatches(vehicle, query) {
			continue
		}
		items = append(items, vehiclePayload(vehicle, logos))
	}
	return items, nil
}

func vehicleMatches(vehicle store.Vehicle, query string) bool {
	for _, field := range []string{vehicle.Plate, vehicle.Brand, vehicle.Model, vehicle.OwnerName} {
		if strings.Contains(strings.ToLower(field), query) {
			return true
		}
	}
	return false
}

func (s *Service) brandLogos(ctx context.Context) (map[string]string, error) {
	brands, err := s.store.ListBrands(ctx)
	if err != nil {
		return nil, err
	}
	logos := make(map[string]string, len(brands))
	for _, brand := range brands {
		if brand.LogoURL != nil {
			logos[strings.ToLower(brand.Name)] = *brand.LogoURL
		}
	}
	return logos, nil
}

func (s *Service) CreateVehicle(ctx context.Context, businessID string, input VehicleInput) (map[string]any, error) {
	form := validate.VehicleForm{
		Plate:      input.Plate,
		Brand:      input.Brand,
		Model:      input.Model,
		Year:       input.Year,
		FuelType:   input.FuelType,
		EngineSize: input.EngineSize,
		ChassisNo:  input.ChassisNo,
		OwnerName:  input.OwnerName,
		OwnerPhone: input.OwnerPhone,
	}
	if errs := form.Validate(time.Now()); len(errs) > 0 {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Vehicle form is invalid", errs)
	}

	now := time.Now()
	vehicle := store.Vehicle{
		ID:         util.NewID("veh"),
		BusinessID: businessID,
		CreatedAt:  now,
		UpdatedAt:  now,
		Plate:      validate.NormalizePlate(input.Plate),
		Brand:      strings.TrimSpace(input.Brand),
		Model:      strings.TrimSpace(input.Model),
		Year:       input.Year,
		FuelType:   input.FuelType,
		EngineSize: optionalString(input.EngineSize),
		ChassisNo:  optionalString(strings.ToUpper(input.ChassisNo)),
		OwnerName:  strings.TrimSpace(input.OwnerName),
		OwnerPhone: optionalString(input.OwnerPhone),
		Notes:      optionalString(input.Notes),
	}
	if err := s.store.InsertVehicle(ctx, vehicle); err != nil {
		return nil, err
	}

	logos, err := s.brandLogos(ctx)
	if err != nil {
		return nil, err
	}
	return vehiclePayload(vehicle, logos), nil
}

// vehicleForTenant loads a vehicle and enforces tenant ownership. A vehicle
// belonging to another business is forbidden, not hidden.
func (s *Service) vehicleForTenant(ctx context.Context, businessID, vehicleID string) (store.Vehicle, error) {
	vehicle, err := s.store.GetVehicle(ctx, vehicleID)
	if err != nil {
		return store.Vehicle{}, err
	}
	if vehicle.BusinessID != businessID {
		return store.Vehicle{}, domainError(http.StatusForbidden, "FORBIDDEN", "Vehicle belongs to another business", nil)
	}
	return vehicle, nil
}

func (s *Service) GetVehicle(ctx context.Context, businessID, vehicleID string) (map[string]any, error) {
	vehicle, err := s.vehicleForTenant(ctx, businessID, vehicleID)
	if err != nil {
		return nil, err
	}
	logos, err := s.brandLogos(ctx)
	if err != nil {
		return nil, err
	}
	return vehiclePayload(vehicle, logos), nil
}

// UpdateVehicle patches the editable fields. Plate, brand and model are
// fixed after creation; submitted values for them are ignored.
func (s *Service) UpdateVehicle(ctx context.Context, businessID, vehicleID string, input VehicleInput) (map[string]any, error) {
	vehicle, err := s.vehicleForTenant(ctx, businessID, vehicleID)
	if err != nil {
		return nil, err
	}

	form := validate.VehicleForm{
		Plate:      vehicle.Plate,
		Brand:      vehicle.Brand,
		Model:      vehicle.Model,
		Year:       input.Year,
		FuelType:   input.FuelType,
		EngineSize: input.EngineSize,
		ChassisNo:  input.ChassisNo,
		OwnerName:  input.OwnerName,
		OwnerPhone: input.OwnerPhone,
	}
	if errs := form.Validate(time.Now()); len(errs) > 0 {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Vehicle form is invalid", errs)
	}

	vehicle.Year = input.Year
	vehicle.FuelType = input.FuelType
	vehicle.EngineSize = optionalString(input.EngineSize)
	vehicle.ChassisNo = optionalString(strings.ToUpper(input.ChassisNo))
	vehicle.OwnerName = strings.TrimSpace(input.OwnerName)
	vehicle.OwnerPhone = optionalString(input.OwnerPhone)
	vehicle.Notes = optionalString(input.Notes)

	if err := s.store.UpdateVehicle(ctx, vehicle); err != nil {
		return nil, err
	}

	logos, err := s.brandLogos(ctx)
	if err != nil {
		return nil, err
	}
	return vehiclePayload(vehicle, logos), nil
}

func (s *Service) ListBrands(ctx context.Context) ([]map[string]any, error) {
	brands, err := s.store.ListBrands(ctx)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(brands))
	for _, brand := range brands {
		item := map[string]any{
			"id":   brand.ID,
			"name": brand.Name,
		}
		if brand.LogoURL != nil {
			item["logoUrl"] = *brand.LogoURL
		} else {
			item["logoUrl"] = nil
		}
		items = append(items, item)
	}
	return items, nil
}

func (s *Service) ListBrandModels(ctx context.Context, brandID string) ([]string, error) {
	return s.store.ListBrandModels(ctx, brandID)
}

func vehiclePayload(vehicle store.Vehicle, logos map[string]string) map[string]any {
	payload := map[string]any{
		"id":         vehicle.ID,
		"businessId": vehicle.BusinessID,
		"plate":      vehicle.Plate,
		"brand":      vehicle.Brand,
		"model":      vehicle.Model,
		"year":       vehicle.Year,
		"fuelType":   vehicle.FuelType,
		"ownerName":  vehicle.OwnerName,
		"createdAt":  vehicle.CreatedAt.UTC().Format(time.RFC3339),
	}
	payload["engineSize"] = nullableString(vehicle.EngineSize)
	payload["chassisNo"] = nullableString(vehicle.ChassisNo)
	payload["ownerPhone"] = nullableString(vehicle.OwnerPhone)
	payload["notes"] = nullableString(vehicle.Notes)

	if logo, ok := logos[strings.ToLower(vehicle.Brand)]; ok {
		payload["brandLogoUrl"] = logo
	} else {
		payload["brandLogoUrl"] = nil
	}
	return payload
}

func optionalString(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func nullableString(value *string) any {
	if value == nil {
		return nil
	}
	return *value
}
