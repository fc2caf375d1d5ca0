package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"mangalib/internal/validation"
	"mangalib/pkg/models"
)

var userSorts = []string{"createdAt,desc", "createdAt,asc", "username,asc", "username,desc", "email,asc", "email,desc"}

const userNotFound = "User not found"

// AdminService wraps the user-management endpoints. Every 403 comes back
// as apierr.ErrAdminRequired.
type AdminService struct {
	api API
	log zerolog.Logger
}

func NewAdminService(api API, log zerolog.Logger) *AdminService {
	return &AdminService{api: api, log: log.With().Str("component", "admin_service").Logger()}
}

func (s *AdminService) CreateUser(ctx context.Context, req models.CreateUserRequest) (*models.UserProfile, error) {
	if err := validation.Check(validation.EndpointCreateUser, req); err != nil {
		return nil, err
	}

	clean := req
	clean.Username = strings.TrimSpace(req.Username)
	clean.Email = strings.ToLower(strings.TrimSpace(req.Email))
	clean.FullName = strings.TrimSpace(req.FullName)
	if clean.IsActive == nil {
		active := true
		clean.IsActive = &active
	}

	var resp models.Envelope[models.UserProfile]
	if err := s.api.Post(ctx, "/users/manage/create", clean, &resp); err != nil {
		logFailure(s.log, err, "AdminService.CreateUser")
		if rejected := backendRejection(err); rejected != nil {
			return nil, rejected
		}
		return nil, relabel(err, nil)
	}
	return &resp.Data, nil
}

func (s *AdminService) UpdateRole(ctx context.Context, userID int64, req models.UpdateRoleRequest) (*models.UserProfile, error) {
	if err := validation.Check(validation.EndpointUpdateRole, req); err != nil {
		return nil, err
	}

	var resp models.Envelope[models.UserProfile]
	if err := s.api.Post(ctx, fmt.Sprintf("/users/manage/%d/role", userID), req, &resp); err != nil {
		logFailure(s.log, err, "AdminService.UpdateRole")
		if rejected := backendRejection(err); rejected != nil {
			return nil, rejected
		}
		return nil, relabel(err, map[int]string{404: userNotFound})
	}
	return &resp.Data, nil
}

func (s *AdminService) ListUsers(ctx context.Context, page, size int, sort string) (*models.Page[models.UserProfile], error) {
	if sort == "" {
		sort = DefaultSort
	}
	q, err := pageQuery(page, size, sort, userSorts)
	if err != nil {
		return nil, err
	}

	var resp models.Envelope[models.Page[models.UserProfile]]
	if err := s.api.Get(ctx, "/users/manage/list", q, &resp); err != nil {
		logFailure(s.log, err, "AdminService.ListUsers")
		return nil, relabel(err, nil)
	}
	return &resp.Data, nil
}

func (s *AdminService) SearchUsers(ctx context.Context, keyword string, page, size int) (*models.Page[models.UserProfile], error) {
	q, err := searchQuery(keyword, page, size)
	if err != nil {
		return nil, err
	}

	var resp models.Envelope[models.Page[models.UserProfile]]
	if err := s.api.Get(ctx, "/users/manage/search", q, &resp); err != nil {
		logFailure(s.log, err, "AdminService.SearchUsers")
		return nil, relabel(err, nil)
	}
	return &resp.Data, nil
}

func (s *AdminService) UserInfo(ctx context.Context, userID int64) (*models.UserProfile, error) {
	var resp models.Envelope[models.UserProfile]
	if err := s.api.Get(ctx, fmt.Sprintf("/users/manage/%d/info", userID), nil, &resp); err != nil {
		logFailure(s.log, err, "AdminService.UserInfo")
		return nil, relabel(err, map[int]string{404: userNotFound})
	}
	return &resp.Data, nil
}

func (s *AdminService) SetStatus(ctx context.Context, userID int64, active bool) (*models.UserProfile, error) {
	var resp models.Envelope[models.UserProfile]
	body := map[string]bool{"isActive": active}
	if err := s.api.Post(ctx, fmt.Sprintf("/users/manage/%d/status", userID), body, &resp); err != nil {
		logFailure(s.log, err, "AdminService.SetStatus")
		return nil, relabel(err, map[int]string{404: userNotFound})
	}
	return &resp.Data, nil
}

func (s *AdminService) DeleteUser(ctx context.Context, userID int64) error {
	if err := s.api.Delete(ctx, fmt.Sprintf("/users/manage/%d/delete", userID), nil); err != nil {
		logFailure(s.log, err, "AdminService.DeleteUser")
		return relabel(err, map[int]string{
			404: userNotFound,
			409: "Cannot delete user with existing data",
		})
	}
	return nil
}

func (s *AdminService) SystemStatistics(ctx context.Context) (map[string]any, error) {
	var resp models.Envelope[map[string]any]
	if err := s.api.Get(ctx, "/admin/statistics", nil, &resp); err != nil {
		logFailure(s.log, err, "AdminService.SystemStatistics")
		return nil, relabel(err, nil)
	}
	return resp.Data, nil
}
