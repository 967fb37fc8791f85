package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// ── Users ──

func (s *PostgresStore) CreateUser(ctx context.Context, user User) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, email, display_name, password_hash)
		VALUES ($1, LOWER($2), $3, $4)
	`, user.ID, user.Email, user.DisplayName, user.PasswordHash)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (User, error) {
	var user User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, email, display_name, password_hash, created_at
		FROM users
		WHERE email = LOWER($1)
	`, email).Scan(&user.ID, &user.Email, &user.DisplayName, &user.PasswordHash, &user.CreatedAt)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

func (s *PostgresStore) GetUserByID(ctx context.Context, userID string) (User, error) {
	var user User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, email, display_name, password_hash, created_at
		FROM users
		WHERE id = $1
	`, userID).Scan(&user.ID, &user.Email, &user.DisplayName, &user.PasswordHash, &user.CreatedAt)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

func (s *PostgresStore) UpdateUserPassword(ctx context.Context, userID, passwordHash string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE users SET password_hash=$2 WHERE id=$1`, userID, passwordHash)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}

func (s *PostgresStore) CreatePasswordReset(ctx context.Context, userID, token string, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO password_resets (token, user_id, expires_at)
		VALUES ($1, $2, $3)
	`, token, userID, expiresAt)
	if err != nil {
		return fmt.Errorf("create password reset: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetPasswordReset(ctx context.Context, token string) (string, error) {
	var userID string
	err := s.db.QueryRowContext(ctx, `
		SELECT user_id FROM password_resets
		WHERE token=$1 AND used_at IS NULL AND expires_at > NOW()
	`, token).Scan(&userID)
	if err != nil {
		return "", err
	}
	return userID, nil
}

func (s *PostgresStore) MarkPasswordResetUsed(ctx context.Context, token string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE password_resets SET used_at=NOW() WHERE token=$1`, token)
	if err != nil {
		return fmt.Errorf("mark password reset used: %w", err)
	}
	return nil
}

// ── Token lifecycle (Postgres fallback when Redis is not configured) ──

func (s *PostgresStore) SaveRefreshSession(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO refresh_sessions (token_hash, user_id, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (token_hash) DO UPDATE SET user_id=EXCLUDED.user_id, expires_at=EXCLUDED.expires_at, revoked_at=NULL
	`, tokenHash, userID, expiresAt)
	if err != nil {
		return fmt.Errorf("save refresh session: %w", err)
	}
	return nil
}

func (s *PostgresStore) LookupRefreshSession(ctx context.Context, tokenHash string) (User, error) {
	const query = `
		SELECT u.id, u.email, u.display_name
		FROM refresh_sessions rs
		JOIN users u ON u.id = rs.user_id
		WHERE rs.token_hash = $1
			AND rs.revoked_at IS NULL
			AND rs.expires_at > NOW()
	`
	var user User
	err := s.db.QueryRowContext(ctx, query, tokenHash).Scan(&user.ID, &user.Email, &user.DisplayName)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

func (s *PostgresStore) RevokeRefreshSession(ctx context.Context, tokenHash string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE refresh_sessions SET revoked_at=NOW() WHERE token_hash=$1`, tokenHash)
	if err != nil {
		return fmt.Errorf("revoke refresh session: %w", err)
	}
	return nil
}

func (s *PostgresStore) RevokeAccessToken(ctx context.Context, jti string, exp time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO revoked_access_tokens (jti, expires_at)
		VALUES ($1, $2)
		ON CONFLICT (jti) DO NOTHING
	`, jti, exp)
	if err != nil {
		return fmt.Errorf("revoke access token: %w", err)
	}
	return nil
}

func (s *PostgresStore) IsAccessTokenRevoked(ctx context.Context, jti string) (bool, error) {
	var revoked bool
	err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM revoked_access_tokens WHERE jti=$1)`, jti).Scan(&revoked)
	if err != nil {
		return false, fmt.Errorf("check revoked token: %w", err)
	}
	return revoked, nil
}

// ── Businesses ──

func (s *PostgresStore) InsertBusiness(ctx context.Context, business Business) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO businesses (id, name, owner_id)
		VALUES ($1, $2, $3)
	`, business.ID, business.Name, business.OwnerID)
	if err != nil {
		return fmt.Errorf("insert business: %w", err)
	}
	return nil
}

// FirstBusinessByOwner returns the oldest business owned by ownerID.
// Duplicate ownership is not prevented anywhere, so "first match wins" is
// part of the contract. sql.ErrNoRows means the owner has no business yet.
func (s *PostgresStore) FirstBusinessByOwner(ctx context.Context, ownerID string) (Business, error) {
	var business Business
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, owner_id, created_at
		FROM businesses
		WHERE owner_id = $1
		ORDER BY created_at ASC
		LIMIT 1
	`, ownerID).Scan(&business.ID, &business.Name, &business.OwnerID, &business.CreatedAt)
	if err != nil {
		return Business{}, err
	}
	return business, nil
}

// ── Vehicles ──

const vehicleColumns = `id, business_id, plate, brand, model, year, fuel_type, engine_size, chassis_no, owner_name, owner_phone, notes, created_at, updated_at`

func scanVehicle(row interface{ Scan(...any) error }) (Vehicle, error) {
	var v Vehicle
	err := row.Scan(&v.ID, &v.BusinessID, &v.Plate, &v.Brand, &v.Model, &v.Year, &v.FuelType,
		&v.EngineSize, &v.ChassisNo, &v.OwnerName, &v.OwnerPhone, &v.Notes, &v.CreatedAt, &v.UpdatedAt)
	return v, err
}

func (s *PostgresStore) InsertVehicle(ctx context.Context, v Vehicle) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO vehicles (id, business_id, plate, brand, model, year, fuel_type, engine_size, chassis_no, owner_name, owner_phone, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $13)
	`, v.ID, v.BusinessID, v.Plate, v.Brand, v.Model, v.Year, v.FuelType, v.EngineSize, v.ChassisNo, v.OwnerName, v.OwnerPhone, v.Notes, v.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert vehicle: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetVehicle(ctx context.Context, vehicleID string) (Vehicle, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+vehicleColumns+` FROM vehicles WHERE id=$1`, vehicleID)
	return scanVehicle(row)
}

func (s *PostgresStore) ListVehicles(ctx context.Context, businessID string) ([]Vehicle, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+vehicleColumns+`
		FROM vehicles
		WHERE business_id=$1
		ORDER BY created_at DESC
	`, businessID)
	if err != nil {
		return nil, fmt.Errorf("list vehicles: %w", err)
	}
	defer rows.Close()

	items := make([]Vehicle, 0)
	for rows.Next() {
		v, err := scanVehicle(rows)
		if err != nil {
			return nil, fmt.Errorf("scan vehicle: %w", err)
		}
		items = append(items, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate vehicles: %w", err)
	}
	return items, nil
}

// UpdateVehicle patches the editable field set only; plate, brand and model
// are fixed after creation.
func (s *PostgresStore) UpdateVehicle(ctx context.Context, v Vehicle) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE vehicles
		SET owner_name=$2, owner_phone=$3, engine_size=$4, chassis_no=$5, year=$6, fuel_type=$7, notes=$8, updated_at=NOW()
		WHERE id=$1
	`, v.ID, v.OwnerName, v.OwnerPhone, v.EngineSize, v.ChassisNo, v.Year, v.FuelType, v.Notes)
	if err != nil {
		return fmt.Errorf("update vehicle: %w", err)
	}
	return nil
}

// ── Jobs ──

const jobColumns = `id, business_id, vehicle_id, title, status, mileage, notes, labor_fee, quick_jobs, image_urls, created_at, updated_at`

func scanJob(row interface{ Scan(...any) error }) (Job, error) {
	var (
		j         Job
		quickJobs []byte
		imageURLs []byte
	)
	err := row.Scan(&j.ID, &j.BusinessID, &j.VehicleID, &j.Title, &j.Status, &j.Mileage,
		&j.Notes, &j.LaborFee, &quickJobs, &imageURLs, &j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		return Job{}, err
	}
	if err := json.Unmarshal(quickJobs, &j.QuickJobs); err != nil {
		return Job{}, fmt.Errorf("decode quick jobs: %w", err)
	}
	if err := json.Unmarshal(imageURLs, &j.ImageURLs); err != nil {
		return Job{}, fmt.Errorf("decode image urls: %w", err)
	}
	return j, nil
}

func (s *PostgresStore) InsertJob(ctx context.Context, j Job) error {
	quickJobs, err := json.Marshal(j.QuickJobs)
	if err != nil {
		return fmt.Errorf("encode quick jobs: %w", err)
	}
	imageURLs, err := json.Marshal(j.ImageURLs)
	if err != nil {
		return fmt.Errorf("encode image urls: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO jobs (id, business_id, vehicle_id, title, status, mileage, notes, labor_fee, quick_jobs, image_urls, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $11)
	`, j.ID, j.BusinessID, j.VehicleID, j.Title, j.Status, j.Mileage, j.Notes, j.LaborFee, quickJobs, imageURLs, j.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetJob(ctx context.Context, jobID string) (Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id=$1`, jobID)
	return scanJob(row)
}

// ListJobsPage fetches one keyset page ordered by (created_at, id). The
// cursor is exclusive: rows strictly after it in the requested direction.
func (s *PostgresStore) ListJobsPage(ctx context.Context, vehicleID string, descending bool, after *JobCursor, limit int) ([]Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE vehicle_id=$1`
	args := []any{vehicleID}
	if after != nil {
		if descending {
			query += ` AND (created_at, id) < ($2, $3)`
		} else {
			query += ` AND (created_at, id) > ($2, $3)`
		}
		args = append(args, after.CreatedAt, after.ID)
	}
	if descending {
		query += ` ORDER BY created_at DESC, id DESC`
	} else {
		query += ` ORDER BY created_at ASC, id ASC`
	}
	query += fmt.Sprintf(` LIMIT %d`, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	items := make([]Job, 0, limit)
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		items = append(items, j)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate jobs: %w", err)
	}
	return items, nil
}

// CountJobsByStatus normalizes status aliases at read time: "done" counts as
// completed, "canceled" as cancelled. Stored values stay untouched.
func (s *PostgresStore) CountJobsByStatus(ctx context.Context, vehicleID string) (JobStats, error) {
	var stats JobStats
	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE LOWER(status) = 'active'),
			COUNT(*) FILTER (WHERE LOWER(status) IN ('completed', 'done'))
		FROM jobs
		WHERE vehicle_id=$1
	`, vehicleID).Scan(&stats.Total, &stats.Active, &stats.Completed)
	if err != nil {
		return JobStats{}, fmt.Errorf("count jobs: %w", err)
	}
	return stats, nil
}

// UpdateJobContent writes the edit snapshot merged by the service layer.
// Image URLs have their own update path since uploads append concurrently
// with edits.
func (s *PostgresStore) UpdateJobContent(ctx context.Context, j Job, updatedAt time.Time) error {
	encodedQuickJobs, err := json.Marshal(j.QuickJobs)
	if err != nil {
		return fmt.Errorf("encode quick jobs: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		UPDATE jobs
		SET title=$2, mileage=$3, notes=$4, labor_fee=$5, quick_jobs=$6, updated_at=$7
		WHERE id=$1
	`, j.ID, j.Title, j.Mileage, j.Notes, j.LaborFee, encodedQuickJobs, updatedAt)
	if err != nil {
		return fmt.Errorf("update job content: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateJobImages(ctx context.Context, jobID string, imageURLs []string, updatedAt time.Time) error {
	encoded, err := json.Marshal(imageURLs)
	if err != nil {
		return fmt.Errorf("encode image urls: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `UPDATE jobs SET image_urls=$2, updated_at=$3 WHERE id=$1`, jobID, encoded, updatedAt)
	if err != nil {
		return fmt.Errorf("update job images: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateJobStatus(ctx context.Context, jobID, status string, updatedAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `UPDATE jobs SET status=$2, updated_at=$3 WHERE id=$1`, jobID, status, updatedAt)
	if err != nil {
		return fmt.Errorf("update job status: %w", err)
	}
	return nil
}

// ── Brands (reference data) ──

func (s *PostgresStore) ListBrands(ctx context.Context) ([]Brand, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, logo_url FROM brands ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("list brands: %w", err)
	}
	defer rows.Close()

	items := make([]Brand, 0)
	for rows.Next() {
		var b Brand
		if err := rows.Scan(&b.ID, &b.Name, &b.LogoURL); err != nil {
			return nil, fmt.Errorf("scan brand: %w", err)
		}
		items = append(items, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate brands: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) ListBrandModels(ctx context.Context, brandID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM brand_models WHERE brand_id=$1 ORDER BY name ASC`, brandID)
	if err != nil {
		return nil, fmt.Errorf("list brand models: %w", err)
	}
	defer rows.Close()

	names := make([]string, 0)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan brand model: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate brand models: %w", err)
	}
	return names, nil
}
