package models

// Roles known to the backend.
const (
	RoleStandard = "STANDARD"
	RoleVIP      = "VIP"
	RoleAdmin    = "ADMIN"
)

// Envelope is the backend's {success, message, data} response wrapper.
type Envelope[T any] struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    T      `json:"data"`
}

type LoginRequest struct {
	Username string `json:"username" validate:"required,notblank"`
	Password string `json:"password" validate:"required,notblank"`
}

type RegisterRequest struct {
	Username string `json:"username" validate:"required,notblank,min=3,max=50,username"`
	Email    string `json:"email" validate:"required,notblank,emailaddr"`
	Password string `json:"password" validate:"required,notblank,min=6"`
	FullName string `json:"fullName" validate:"required,notblank,min=1,max=100"`
}

type Session struct {
	Token        string  `json:"token"`
	Username     string  `json:"username"`
	Email        string  `json:"email"`
	FullName     string  `json:"fullName"`
	Role         string  `json:"role"`
	IsVIP        bool    `json:"isVip"`
	IsAdmin      bool    `json:"isAdmin"`
	VIPExpiresAt *string `json:"vipExpiresAt"`
}

type AuthResponse = Envelope[Session]

type UserProfile struct {
	ID           int64   `json:"id"`
	Username     string  `json:"username"`
	Email        string  `json:"email"`
	FullName     string  `json:"fullName"`
	Role         string  `json:"role"`
	IsVIP        bool    `json:"isVip"`
	IsActive     bool    `json:"isActive"`
	VIPExpiresAt *string `json:"vipExpiresAt"`
	CreatedAt    string  `json:"createdAt"`
	UpdatedAt    string  `json:"updatedAt"`
}

type UpdateProfileRequest struct {
	FullName string `json:"fullName,omitempty" validate:"omitempty,min=1,max=100"`
	Email    string `json:"email,omitempty" validate:"omitempty,emailaddr"`
}

type ChangePasswordRequest struct {
	OldPassword string `json:"oldPassword" validate:"required,notblank"`
	NewPassword string `json:"newPassword" validate:"required,notblank,min=6"`
}

type CreateUserRequest struct {
	Username     string `json:"username" validate:"required,notblank,min=3,max=50,username"`
	Email        string `json:"email" validate:"required,notblank,emailaddr"`
	Password     string `json:"password" validate:"required,notblank,min=6"`
	FullName     string `json:"fullName" validate:"required,notblank,min=1,max=100"`
	Role         string `json:"role" validate:"required,oneof=STANDARD VIP ADMIN"`
	IsActive     *bool  `json:"isActive,omitempty"`
	VIPExpiresAt string `json:"vipExpiresAt,omitempty" validate:"omitempty,futuredate"`
}

type UpdateRoleRequest struct {
	Role         string `json:"role" validate:"required,oneof=STANDARD VIP ADMIN"`
	VIPExpiresAt string `json:"vipExpiresAt,omitempty" validate:"omitempty,futuredate"`
}

type Page[T any] struct {
	Content          []T  `json:"content"`
	TotalElements    int  `json:"totalElements"`
	TotalPages       int  `json:"totalPages"`
	First            bool `json:"first"`
	Last             bool `json:"last"`
	NumberOfElements int  `json:"numberOfElements"`
	Number           int  `json:"number"`
	Size             int  `json:"size"`
}
