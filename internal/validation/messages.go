package validation

const (
	msgUsername = "Username must be 3-50 characters, alphanumeric and underscore only"
	msgEmail    = "Please enter a valid email address"
	msgPassword = "Password must be at least 6 characters"
	msgFullName = "Full name is required and must be 1-100 characters"
	msgRole     = "Role must be one of: STANDARD, VIP, ADMIN"
)

// messages maps endpoint -> json field -> the single message shown for
// any rule failure on that field.
var messages = map[string]map[string]string{
	EndpointRegister: {
		"username": msgUsername,
		"email":    msgEmail,
		"password": msgPassword,
		"fullName": msgFullName,
	},
	EndpointLogin: {
		"username": "Username or email is required",
		"password": "Password is required",
	},
	EndpointUpdateProfile: {
		"fullName": "Full name must be 1-100 characters if provided",
		"email":    "Please enter a valid email address if provided",
	},
	EndpointChangePassword: {
		"oldPassword": "Current password is required",
		"newPassword": "New password must be at least 6 characters",
	},
	EndpointCreateUser: {
		"username":     "Username must be 3-50 characters, alphanumeric and underscore only, and unique",
		"email":        "Please enter a valid and unique email address",
		"password":     msgPassword,
		"fullName":     msgFullName,
		"role":         msgRole,
		"isActive":     "isActive must be a boolean value",
		"vipExpiresAt": "VIP expiration date is required when role is VIP",
	},
	EndpointUpdateRole: {
		"role":         msgRole,
		"vipExpiresAt": "VIP expiration date is required when role is VIP and must be a future date",
	},
	EndpointUploadBook: {
		"title":       "Book title is required and must be 1-200 characters",
		"author":      "Author name is required and must be 1-100 characters",
		"description": "Book description must not exceed 1000 characters",
	},
	EndpointUpdateBook: {
		"title":       "Title must be 1-200 characters if provided",
		"author":      "Author must be 1-100 characters if provided",
		"description": "Description must not exceed 1000 characters",
	},
}
