package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"

	"mangalib/internal/apierr"
	"mangalib/internal/credstore"
	"mangalib/internal/validation"
	"mangalib/pkg/models"
)

type AuthService struct {
	api   API
	store credstore.Store
	log   zerolog.Logger
	now   func() time.Time
}

func NewAuthService(api API, store credstore.Store, log zerolog.Logger) *AuthService {
	return &AuthService{
		api:   api,
		store: store,
		log:   log.With().Str("component", "auth_service").Logger(),
		now:   time.Now,
	}
}

// Login validates, authenticates and stores the returned token and
// session for later calls.
func (s *AuthService) Login(ctx context.Context, req models.LoginRequest) (*models.AuthResponse, error) {
	if err := validation.Check(validation.EndpointLogin, req); err != nil {
		return nil, err
	}

	var resp models.AuthResponse
	if err := s.api.Post(ctx, "/auth/login", req, &resp); err != nil {
		logFailure(s.log, err, "AuthService.Login")
		return nil, err
	}

	if resp.Success && resp.Data.Token != "" {
		s.store.SetItem(ctx, credstore.KeyAuthToken, resp.Data.Token)
		if b, err := json.Marshal(resp.Data); err == nil {
			s.store.SetItem(ctx, credstore.KeyUserProfile, string(b))
		}
	}
	return &resp, nil
}

func (s *AuthService) Register(ctx context.Context, req models.RegisterRequest) (*models.AuthResponse, error) {
	if err := validation.Check(validation.EndpointRegister, req); err != nil {
		return nil, err
	}

	var resp models.AuthResponse
	if err := s.api.Post(ctx, "/auth/register", req, &resp); err != nil {
		logFailure(s.log, err, "AuthService.Register")
		return nil, err
	}
	return &resp, nil
}

func (s *AuthService) Profile(ctx context.Context) (*models.UserProfile, error) {
	var resp models.Envelope[models.UserProfile]
	if err := s.api.Get(ctx, "/users/profile", nil, &resp); err != nil {
		logFailure(s.log, err, "AuthService.Profile")
		return nil, err
	}
	return &resp.Data, nil
}

func (s *AuthService) UpdateProfile(ctx context.Context, req models.UpdateProfileRequest) (*models.UserProfile, error) {
	if err := validation.Check(validation.EndpointUpdateProfile, req); err != nil {
		return nil, err
	}

	var resp models.Envelope[models.UserProfile]
	if err := s.api.Put(ctx, "/users/profile", req, &resp); err != nil {
		logFailure(s.log, err, "AuthService.UpdateProfile")
		return nil, err
	}
	return &resp.Data, nil
}

func (s *AuthService) ChangePassword(ctx context.Context, oldPassword, newPassword string) error {
	req := models.ChangePasswordRequest{OldPassword: oldPassword, NewPassword: newPassword}
	if err := validation.Check(validation.EndpointChangePassword, req); err != nil {
		return err
	}
	if err := s.api.Post(ctx, "/users/change-password", req, nil); err != nil {
		logFailure(s.log, err, "AuthService.ChangePassword")
		return err
	}
	return nil
}

// Logout forgets the local session. The server keeps no session state.
func (s *AuthService) Logout(ctx context.Context) {
	s.store.RemoveItem(ctx, credstore.KeyAuthToken)
	s.store.RemoveItem(ctx, credstore.KeyUserProfile)
}

// IsLoggedIn is true when a token is stored and not past its exp claim.
func (s *AuthService) IsLoggedIn(ctx context.Context) bool {
	token, ok := s.store.GetItem(ctx, credstore.KeyAuthToken)
	return ok && !credstore.TokenExpired(token, s.now())
}

func (s *AuthService) Token(ctx context.Context) (string, bool) {
	return s.store.GetItem(ctx, credstore.KeyAuthToken)
}

// StoredProfile returns the last cached profile, or nil.
func (s *AuthService) StoredProfile(ctx context.Context) *models.UserProfile {
	raw, ok := s.store.GetItem(ctx, credstore.KeyUserProfile)
	if !ok || raw == "" {
		return nil
	}
	var p models.UserProfile
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		s.log.Warn().Err(err).Msg("stored profile unreadable")
		return nil
	}
	return &p
}

// RefreshProfile reloads the profile from the server and caches it.
func (s *AuthService) RefreshProfile(ctx context.Context) (*models.UserProfile, error) {
	p, err := s.Profile(ctx)
	if err != nil {
		return nil, apierr.Wrap(err, "Không thể refresh profile")
	}
	if b, err := json.Marshal(p); err == nil {
		s.store.SetItem(ctx, credstore.KeyUserProfile, string(b))
	}
	return p, nil
}
