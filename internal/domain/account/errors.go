package account

import "errors"

var (
	ErrUserNotFound             = errors.New("user not found")
	ErrEmailTaken               = errors.New("a user with this email already exists")
	ErrInvalidCredentials       = errors.New("invalid email or password")
	ErrEmailNotVerified         = errors.New("please verify your email before logging in")
	ErrInvalidVerificationToken = errors.New("invalid or expired verification token")
	ErrAlreadyVerified          = errors.New("email is already verified")
)
