package app

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"atolye/api/internal/auth"
	"atolye/api/internal/authpw"
	"atolye/api/internal/config"
	"atolye/api/internal/store"
	"atolye/api/internal/util"
)

type Session struct {
	Token        string
	RefreshToken string
	UserID       string
	UserName     string
	JTI          string
	ExpiresAt    time.Time
}

// ErrNoBusiness marks an owner that has not registered a business yet. It is
// distinct from a lookup failure: callers surface it as "onboarding", not as
// an error.
var ErrNoBusiness = errors.New("no business for owner")

type dataStore interface {
	GetUserByID(context.Context, string) (store.User, error)
	RevokeAccessToken(context.Context, string, time.Time) error
	IsAccessTokenRevoked(context.Context, string) (bool, error)
	FirstBusinessByOwner(context.Context, string) (store.Business, error)
	InsertBusiness(context.Context, store.Business) error
	ListVehicles(context.Context, string) ([]store.Vehicle, error)
	GetVehicle(context.Context, string) (store.Vehicle, error)
	InsertVehicle(context.Context, store.Vehicle) error
	UpdateVehicle(context.Context, store.Vehicle) error
	InsertJob(context.Context, store.Job) error
	GetJob(context.Context, string) (store.Job, error)
	ListJobsPage(context.Context, string, bool, *store.JobCursor, int) ([]store.Job, error)
	CountJobsByStatus(context.Context, string) (store.JobStats, error)
	UpdateJobContent(context.Context, store.Job, time.Time) error
	UpdateJobStatus(context.Context, string, string, time.Time) error
	UpdateJobImages(context.Context, string, []string, time.Time) error
	ListBrands(context.Context) ([]store.Brand, error)
	ListBrandModels(context.Context, string) ([]string, error)
	Ping(ctx context.Context) error
}

// sessionStore holds refresh tokens. Redis when configured, otherwise the
// Postgres store satisfies the same interface.
type sessionStore interface {
	SaveRefreshSession(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error
	LookupRefreshSession(ctx context.Context, tokenHash string) (store.User, error)
	RevokeRefreshSession(ctx context.Context, tokenHash string) error
}

type objectStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error)
}

type Service struct {
	cfg      config.Config
	store    dataStore
	sessions sessionStore
	objects  objectStore
	authpw   *authpw.Service
}

func New(cfg config.Config, dataStore *store.PostgresStore, sessions sessionStore, objects objectStore, authService *authpw.Service) *Service {
	if sessions == nil {
		sessions = dataStore
	}
	return &Service{
		cfg:      cfg,
		store:    dataStore,
		sessions: sessions,
		objects:  objects,
		authpw:   authService,
	}
}

func (s *Service) AuthPasswordService() *authpw.Service {
	return s.authpw
}

// SignUp registers an account and signs it in immediately.
func (s *Service) SignUp(ctx context.Context, req authpw.SignUpRequest) (Session, error) {
	user, err := s.authpw.SignUp(ctx, req)
	if err != nil {
		if err.Error() == "email already registered" {
			return Session{}, domainError(http.StatusConflict, "EMAIL_EXISTS", "Email already registered", nil)
		}
		return Session{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", err.Error(), nil)
	}
	return s.issueSession(ctx, user)
}

func (s *Service) SignIn(ctx context.Context, req authpw.SignInRequest) (Session, error) {
	user, err := s.authpw.SignIn(ctx, req)
	if err != nil {
		return Session{}, domainError(http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid email or password", nil)
	}
	return s.issueSession(ctx, user)
}

// Refresh rotates a refresh token: the presented token is revoked and a new
// pair is issued.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	tokenHash := auth.HashToken(refreshToken)
	user, err := s.sessions.LookupRefreshSession(ctx, tokenHash)
	if err != nil {
		return Session{}, err
	}
	if err := s.sessions.RevokeRefreshSession(ctx, tokenHash); err != nil {
		return Session{}, err
	}
	// The session backend may hold only the user ID; refetch for the
	// current display name.
	if user.DisplayName == "" {
		fresh, err := s.store.GetUserByID(ctx, user.ID)
		if err != nil {
			return Session{}, err
		}
		user = fresh
	}
	return s.issueSession(ctx, user)
}

func (s *Service) issueSession(ctx context.Context, user store.User) (Session, error) {
	now := time.Now()
	expiresAt := now.Add(s.cfg.AccessTTL)
	jti := util.NewID("jti")

	token, err := auth.IssueToken([]byte(s.cfg.TokenSecret), auth.Claims{
		Sub:  user.ID,
		Name: user.DisplayName,
		JTI:  jti,
		Exp:  expiresAt.Unix(),
	})
	if err != nil {
		return Session{}, err
	}

	refresh := util.NewID("rft") + util.NewID("")
	refreshExpires := now.Add(s.cfg.RefreshTTL)
	if err := s.sessions.SaveRefreshSession(ctx, auth.HashToken(refresh), user.ID, refreshExpires); err != nil {
		return Session{}, err
	}

	return Session{
		Token:        token,
		RefreshToken: refresh,
		UserID:       user.ID,
		UserName:     user.DisplayName,
		JTI:          jti,
		ExpiresAt:    expiresAt,
	}, nil
}

func (s *Service) SessionFromToken(ctx context.Context, token string) (Session, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.TokenSecret), token)
	if err != nil {
		return Session{}, err
	}
	revoked, err := s.store.IsAccessTokenRevoked(ctx, claims.JTI)
	if err != nil {
		return Session{}, err
	}
	if revoked {
		return Session{}, auth.ErrInvalidToken
	}

	user, err := s.store.GetUserByID(ctx, claims.Sub)
	if err != nil {
		return Session{}, err
	}

	return Session{
		Token:     token,
		UserID:    user.ID,
		UserName:  user.DisplayName,
		JTI:       claims.JTI,
		ExpiresAt: time.Unix(claims.Exp, 0),
	}, nil
}

func (s *Service) Logout(ctx context.Context, session Session, refreshToken string) error {
	if session.JTI != "" {
		_ = s.store.RevokeAccessToken(ctx, session.JTI, session.ExpiresAt)
	}
	if refreshToken != "" {
		_ = s.sessions.RevokeRefreshSession(ctx, auth.HashToken(refreshToken))
	}
	return nil
}

// BusinessForOwner resolves the caller's tenant. ErrNoBusiness means the
// owner must register one first; any other error is a genuine lookup
// failure and must not be mistaken for onboarding.
func (s *Service) BusinessForOwner(ctx context.Context, ownerID string) (store.Business, error) {
	business, err := s.store.FirstBusinessByOwner(ctx, ownerID)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Business{}, ErrNoBusiness
	}
	if err != nil {
		return store.Business{}, err
	}
	return business, nil
}

func (s *Service) CreateBusiness(ctx context.Context, session Session, name string) (map[string]any, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Business name is required", nil)
	}

	_, err := s.BusinessForOwner(ctx, session.UserID)
	if err == nil {
		return nil, domainError(http.StatusConflict, "BUSINESS_EXISTS", "Owner already has a business", nil)
	}
	if !errors.Is(err, ErrNoBusiness) {
		return nil, err
	}

	business := store.Business{
		ID:      util.NewID("biz"),
		Name:    name,
		OwnerID: session.UserID,
	}
	if err := s.store.InsertBusiness(ctx, business); err != nil {
		return nil, err
	}

	return businessPayload(business), nil
}

func businessPayload(business store.Business) map[string]any {
	return map[string]any{
		"id":      business.ID,
		"name":    business.Name,
		"ownerId": business.OwnerID,
	}
}

// Ping checks the health of service dependencies (database, etc.)
func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}
