package domain

import "time"

type User struct {
	UserID          string    `json:"id" dynamodbav:"user_id"`
	PhoneNumber     string    `json:"phone_number" dynamodbav:"phone_number"`
	Email           string    `json:"email" dynamodbav:"email"`
	FirstName       string    `json:"first_name" dynamodbav:"first_name"`
	LastName        string    `json:"last_name" dynamodbav:"last_name"`
	PasswordHash    string    `json:"-" dynamodbav:"password_hash"`
	PhoneIsVerified bool      `json:"phone_is_verified" dynamodbav:"phone_is_verified"`
	EmailIsVerified bool      `json:"email_is_verified" dynamodbav:"email_is_verified"`
	IsDeleted       bool      `json:"-" dynamodbav:"is_deleted"`
	CreatedAt       time.Time `json:"-" dynamodbav:"created_at"`
	UpdatedAt       time.Time `json:"-" dynamodbav:"updated_at"`
}

type SignupRequest struct {
	PhoneNumber string `json:"phone_number" validate:"required,max=120,phone"`
	Email       string `json:"email" validate:"omitempty,max=120,email"`
	FirstName   string `json:"first_name" validate:"max=120"`
	LastName    string `json:"last_name" validate:"max=120"`
	Password    string `json:"password" validate:"required,max=120"`
}

type LoginRequest struct {
	PhoneNumber string `json:"phone_number" validate:"required,max=120,phone"`
	Password    string `json:"password" validate:"required,max=120"`
}

// PhoneVerificationRequest carries the signup correlation secret together with
// the code delivered to the phone.
type PhoneVerificationRequest struct {
	UserID        string `json:"user" validate:"required"`
	SecurityToken string `json:"security_token" validate:"required"`
	OTP           string `json:"otp" validate:"required"`
}

type ResendPhoneVerificationRequest struct {
	UserID        string `json:"user" validate:"required"`
	SecurityToken string `json:"security_token" validate:"required"`
}
