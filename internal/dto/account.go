package dto

// Name availability statuses.
const (
	NameStatusError   = "error"
	NameStatusSuccess = "success"
)

// NameCheckRequest asks whether a student name is already on the roster.
type NameCheckRequest struct {
	Name string `json:"name" validate:"required"`
}

// NameCheckResult is a soft duplicate warning, never a constraint.
type NameCheckResult struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// MessageResponse wraps a human readable confirmation.
type MessageResponse struct {
	Message string `json:"message"`
}

// ToggleActivationResult reports the new active flag.
type ToggleActivationResult struct {
	Message  string `json:"message"`
	IsActive bool   `json:"is_active"`
}

// ResetPasswordResult returns the temporary password set by an admin.
type ResetPasswordResult struct {
	Message     string `json:"message"`
	NewPassword string `json:"new_password"`
}
