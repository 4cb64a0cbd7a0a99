package domain

import "time"

// User is a confirmed account. Only verified registrations and administrator-created
// accounts are ever persisted.
type User struct {
	ID           int64     `json:"id" dynamodbav:"user_id"`
	Username     string    `json:"username" dynamodbav:"username"`
	Email        string    `json:"email" dynamodbav:"email"`
	PasswordHash string    `json:"-" dynamodbav:"password_hash"`
	Address      string    `json:"address" dynamodbav:"address"`
	Role         Role      `json:"role" dynamodbav:"role"`
	Verified     bool      `json:"verified" dynamodbav:"verified"`
	CreatedAt    time.Time `json:"created_at" dynamodbav:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" dynamodbav:"updated_at"`
}

type CreateUserRequest struct {
	Username string `json:"username" validate:"required,min=3"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6,max=72"`
	Role     string `json:"role" validate:"required,oneof=user admin storeowner"`
}

type UpdateProfileRequest struct {
	Username *string `json:"username" validate:"omitempty,min=3"`
	Address  *string `json:"address"`
}
