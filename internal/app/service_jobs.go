package app

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"atolye/api/internal/jobstatus"
	"atolye/api/internal/storage"
	"atolye/api/internal/store"
	"atolye/api/internal/util"
	"atolye/api/internal/validate"
)

const (
	jobPageSize   = 5
	maxJobImages  = 5
	maxImageBytes = 5 << 20
)

// QuickJobInput is one part line as submitted over the API.
type QuickJobInput struct {
	Name      string  `json:"name"`
	Brand     string  `json:"brand"`
	Quantity  int64   `json:"quantity"`
	UnitPrice float64 `json:"unitPrice"`
}

// JobInput carries the job form for create and edit. ImageURLs is only
// honored on edit, and only when present: it lets the client drop images
// already recorded on the job. New images go through the upload endpoint.
type JobInput struct {
	Title     string          `json:"title"`
	Mileage   int64           `json:"mileage"`
	Notes     string          `json:"notes"`
	LaborFee  *float64        `json:"laborFee"`
	QuickJobs []QuickJobInput `json:"quickJobs"`
	Status    string          `json:"status"`
	ImageURLs *[]string       `json:"imageUrls"`
}

// UploadFile is one image in a multipart upload, already size-capped by the
// HTTP layer.
type UploadFile struct {
	Filename    string
	ContentType string
	Size        int64
	Reader      io.Reader
}

// cursorPayload is the opaque page token. The sort order is embedded so a
// "load more" issued under one order cannot silently continue under another;
// a mismatch is rejected as stale.
type cursorPayload struct {
	CreatedAt int64  `json:"t"`
	ID        string `json:"id"`
	Order     string `json:"o"`
}

func encodeCursor(job store.Job, order string) string {
	payload, _ := json.Marshal(cursorPayload{
		CreatedAt: job.CreatedAt.UnixMicro(),
		ID:        job.ID,
		Order:     order,
	})
	return base64.RawURLEncoding.EncodeToString(payload)
}

func decodeCursor(raw, order string) (*store.JobCursor, error) {
	decoded, err := base64.RawURLEncoding.DecodeString(raw)
	if err != nil {
		return nil, domainError(http.StatusUnprocessableEntity, "INVALID_CURSOR", "Cursor is malformed", nil)
	}
	var payload cursorPayload
	if err := json.Unmarshal(decoded, &payload); err != nil || payload.ID == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "INVALID_CURSOR", "Cursor is malformed", nil)
	}
	if payload.Order != order {
		return nil, domainError(http.StatusUnprocessableEntity, "STALE_CURSOR", "Cursor was issued under a different sort order", nil)
	}
	return &store.JobCursor{
		CreatedAt: time.UnixMicro(payload.CreatedAt),
		ID:        payload.ID,
	}, nil
}

// ListJobs returns one page of a vehicle's service history. Changing the
// sort order restarts from the first page; stale cursors are rejected.
func (s *Service) ListJobs(ctx context.Context, businessID, vehicleID, order, rawCursor string) (map[string]any, error) {
	if _, err := s.vehicleForTenant(ctx, businessID, vehicleID); err != nil {
		return nil, err
	}

	if order == "" {
		order = "desc"
	}
	if order != "asc" && order != "desc" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "order must be asc or desc", nil)
	}

	var cursor *store.JobCursor
	if rawCursor != "" {
		decoded, err := decodeCursor(rawCursor, order)
		if err != nil {
			return nil, err
		}
		cursor = decoded
	}

	jobs, err := s.store.ListJobsPage(ctx, vehicleID, order == "desc", cursor, jobPageSize)
	if err != nil {
		return nil, err
	}

	items := make([]map[string]any, 0, len(jobs))
	for _, job := range jobs {
		items = append(items, jobPayload(job))
	}

	// A short page means the history is exhausted. A full page may be the
	// exact end; the next request then comes back empty, which is fine.
	hasMore := len(jobs) == jobPageSize
	var nextCursor any
	if hasMore {
		nextCursor = encodeCursor(jobs[len(jobs)-1], order)
	}

	return map[string]any{
		"jobs":       items,
		"hasMore":    hasMore,
		"nextCursor": nextCursor,
	}, nil
}

// JobStats counts a vehicle's jobs per normalized status. It is computed
// independently of pagination, so it covers the whole history regardless of
// how many pages are loaded.
func (s *Service) JobStats(ctx context.Context, businessID, vehicleID string) (map[string]any, error) {
	if _, err := s.vehicleForTenant(ctx, businessID, vehicleID); err != nil {
		return nil, err
	}
	stats, err := s.store.CountJobsByStatus(ctx, vehicleID)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"total":     stats.Total,
		"active":    stats.Active,
		"completed": stats.Completed,
	}, nil
}

func (s *Service) CreateJob(ctx context.Context, businessID, vehicleID string, input JobInput) (map[string]any, error) {
	if _, err := s.vehicleForTenant(ctx, businessID, vehicleID); err != nil {
		return nil, err
	}

	job, err := jobFromInput(input)
	if err != nil {
		return nil, err
	}
	job.ID = util.NewID("job")
	job.BusinessID = businessID
	job.VehicleID = vehicleID
	job.ImageURLs = []string{}
	job.CreatedAt = time.Now()
	job.UpdatedAt = job.CreatedAt

	status := jobstatus.Active
	if strings.TrimSpace(input.Status) != "" {
		parsed, ok := jobstatus.Parse(input.Status)
		if !ok {
			return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Unknown job status", nil)
		}
		status = parsed
	}
	job.Status = string(status)

	if err := s.store.InsertJob(ctx, job); err != nil {
		return nil, err
	}
	return jobPayload(job), nil
}

// jobFromInput validates the form and builds the job fields shared by
// create and edit.
func jobFromInput(input JobInput) (store.Job, error) {
	form := validate.JobForm{Title: input.Title, Mileage: input.Mileage}
	errs := form.Validate()

	quickJobs := make([]store.QuickJob, 0, len(input.QuickJobs))
	for i, item := range input.QuickJobs {
		if strings.TrimSpace(item.Name) == "" {
			errs[fmt.Sprintf("quickJobs[%d].name", i)] = "part name is required"
			continue
		}
		if item.Quantity < 1 {
			errs[fmt.Sprintf("quickJobs[%d].quantity", i)] = "quantity must be at least 1"
			continue
		}
		if item.UnitPrice < 0 {
			errs[fmt.Sprintf("quickJobs[%d].unitPrice", i)] = "unit price must not be negative"
			continue
		}
		quickJobs = append(quickJobs, store.QuickJob{
			Name:      strings.TrimSpace(item.Name),
			Brand:     strings.TrimSpace(item.Brand),
			Quantity:  item.Quantity,
			UnitPrice: decimal.NewFromFloat(item.UnitPrice),
		})
	}

	var laborFee decimal.NullDecimal
	if input.LaborFee != nil {
		if *input.LaborFee < 0 {
			errs["laborFee"] = "labor fee must not be negative"
		} else {
			laborFee = decimal.NewNullDecimal(decimal.NewFromFloat(*input.LaborFee))
		}
	}

	if len(errs) > 0 {
		return store.Job{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Job form is invalid", errs)
	}

	return store.Job{
		Title:     strings.TrimSpace(input.Title),
		Mileage:   input.Mileage,
		Notes:     optionalString(input.Notes),
		LaborFee:  laborFee,
		QuickJobs: quickJobs,
	}, nil
}

func (s *Service) jobForTenant(ctx context.Context, businessID, jobID string) (store.Job, error) {
	job, err := s.store.GetJob(ctx, jobID)
	if err != nil {
		return store.Job{}, err
	}
	if job.BusinessID != businessID {
		return store.Job{}, domainError(http.StatusForbidden, "FORBIDDEN", "Job belongs to another business", nil)
	}
	return job, nil
}

func (s *Service) GetJob(ctx context.Context, businessID, jobID string) (map[string]any, error) {
	job, err := s.jobForTenant(ctx, businessID, jobID)
	if err != nil {
		return nil, err
	}
	return jobPayload(job), nil
}

// UpdateJob replaces the editable content of a job. Completed jobs are
// frozen.
func (s *Service) UpdateJob(ctx context.Context, businessID, jobID string, input JobInput) (map[string]any, error) {
	job, err := s.jobForTenant(ctx, businessID, jobID)
	if err != nil {
		return nil, err
	}
	if jobstatus.IsTerminal(jobstatus.Normalize(job.Status)) {
		return nil, domainError(http.StatusConflict, "JOB_COMPLETED", "Completed jobs cannot be edited", nil)
	}

	updated, err := jobFromInput(input)
	if err != nil {
		return nil, err
	}
	job.Title = updated.Title
	job.Mileage = updated.Mileage
	job.Notes = updated.Notes
	job.LaborFee = updated.LaborFee
	job.QuickJobs = updated.QuickJobs
	job.UpdatedAt = time.Now()

	if err := s.store.UpdateJobContent(ctx, job, job.UpdatedAt); err != nil {
		return nil, err
	}

	// An edit may drop images the job already holds; it never adds any.
	if input.ImageURLs != nil {
		kept := keptImageURLs(job.ImageURLs, *input.ImageURLs)
		if len(kept) != len(job.ImageURLs) {
			job.ImageURLs = kept
			if err := s.store.UpdateJobImages(ctx, jobID, job.ImageURLs, job.UpdatedAt); err != nil {
				return nil, err
			}
		}
	}
	return jobPayload(job), nil
}

// keptImageURLs filters the stored URL list down to those the client kept,
// preserving stored order and ignoring URLs the job never had.
func keptImageURLs(stored, submitted []string) []string {
	keep := make(map[string]bool, len(submitted))
	for _, url := range submitted {
		keep[url] = true
	}
	kept := make([]string, 0, len(stored))
	for _, url := range stored {
		if keep[url] {
			kept = append(kept, url)
		}
	}
	return kept
}

// SetJobStatus applies one state transition. Completed is terminal; other
// transitions follow the allowed graph.
func (s *Service) SetJobStatus(ctx context.Context, businessID, jobID, rawStatus string) (map[string]any, error) {
	target, ok := jobstatus.Parse(rawStatus)
	if !ok {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Unknown job status", nil)
	}

	job, err := s.jobForTenant(ctx, businessID, jobID)
	if err != nil {
		return nil, err
	}

	current := jobstatus.Normalize(job.Status)
	if !jobstatus.CanTransition(current, target) {
		if jobstatus.IsTerminal(current) {
			return nil, domainError(http.StatusConflict, "JOB_COMPLETED", "Completed jobs cannot change status", nil)
		}
		return nil, domainError(http.StatusConflict, "INVALID_TRANSITION",
			fmt.Sprintf("Cannot move job from %s to %s", current, target), nil)
	}

	job.Status = string(target)
	job.UpdatedAt = time.Now()
	if err := s.store.UpdateJobStatus(ctx, jobID, job.Status, job.UpdatedAt); err != nil {
		return nil, err
	}
	return jobPayload(job), nil
}

// UploadJobImages validates every file before touching storage, then uploads
// sequentially. A mid-batch storage failure aborts without recording any
// URL; objects already written stay behind as orphans rather than being
// compensated.
func (s *Service) UploadJobImages(ctx context.Context, businessID, jobID string, files []UploadFile) (map[string]any, error) {
	job, err := s.jobForTenant(ctx, businessID, jobID)
	if err != nil {
		return nil, err
	}
	if jobstatus.IsTerminal(jobstatus.Normalize(job.Status)) {
		return nil, domainError(http.StatusConflict, "JOB_COMPLETED", "Completed jobs cannot receive images", nil)
	}
	if s.objects == nil {
		return nil, domainError(http.StatusServiceUnavailable, "STORAGE_UNAVAILABLE", "Image storage is not configured", nil)
	}

	if len(files) == 0 {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "No images submitted", nil)
	}
	if len(job.ImageURLs)+len(files) > maxJobImages {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR",
			fmt.Sprintf("A job holds at most %d images", maxJobImages), nil)
	}
	for _, file := range files {
		if file.Size > maxImageBytes {
			return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR",
				fmt.Sprintf("%s exceeds the 5MB image limit", file.Filename), nil)
		}
		if !strings.HasPrefix(file.ContentType, "image/") {
			return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR",
				fmt.Sprintf("%s is not an image", file.Filename), nil)
		}
	}

	urls := make([]string, 0, len(files))
	for _, file := range files {
		key := storage.ObjectKey(businessID, job.VehicleID, jobID, time.Now().UnixMilli(), file.Filename)
		url, err := s.objects.Put(ctx, key, file.Reader, file.Size, file.ContentType)
		if err != nil {
			return nil, domainError(http.StatusBadGateway, "UPLOAD_FAILED", "Image upload failed", nil)
		}
		urls = append(urls, url)
	}

	job.ImageURLs = append(job.ImageURLs, urls...)
	job.UpdatedAt = time.Now()
	if err := s.store.UpdateJobImages(ctx, jobID, job.ImageURLs, job.UpdatedAt); err != nil {
		return nil, err
	}
	return jobPayload(job), nil
}

func jobPayload(job store.Job) map[string]any {
	quickJobs := make([]map[string]any, 0, len(job.QuickJobs))
	for _, item := range job.QuickJobs {
		quickJobs = append(quickJobs, map[string]any{
			"name":      item.Name,
			"brand":     item.Brand,
			"quantity":  item.Quantity,
			"unitPrice": item.UnitPrice.InexactFloat64(),
			"lineTotal": item.LineTotal().InexactFloat64(),
		})
	}

	var laborFee any
	if job.LaborFee.Valid {
		laborFee = job.LaborFee.Decimal.InexactFloat64()
	}

	imageURLs := job.ImageURLs
	if imageURLs == nil {
		imageURLs = []string{}
	}

	return map[string]any{
		"id":         job.ID,
		"businessId": job.BusinessID,
		"vehicleId":  job.VehicleID,
		"title":      job.Title,
		"status":     string(jobstatus.Normalize(job.Status)),
		"mileage":    job.Mileage,
		"notes":      nullableString(job.Notes),
		"laborFee":   laborFee,
		"quickJobs":  quickJobs,
		"partsTotal": job.PartsTotal().InexactFloat64(),
		"grandTotal": job.GrandTotal().InexactFloat64(),
		"imageUrls":  imageURLs,
		"createdAt":  job.CreatedAt.UTC().Format(time.RFC3339),
		"updatedAt":  job.UpdatedAt.UTC().Format(time.RFC3339),
	}
}
