package domain

import "time"

type Store struct {
	StoreID   int64     `json:"id" dynamodbav:"store_id"`
	Name      string    `json:"name" dynamodbav:"name"`
	Email     string    `json:"email" dynamodbav:"email"`
	Address   string    `json:"address" dynamodbav:"address"`
	Rating    float64   `json:"rating" dynamodbav:"rating"`
	OwnerID   int64     `json:"owner_id" dynamodbav:"owner_id"`
	OwnerName string    `json:"owner_name,omitempty" dynamodbav:"-"`
	CreatedAt time.Time `json:"created_at" dynamodbav:"created_at"`
}

// Rating is one score for a store. Registered users hold at most one rating per
// store (RatingKey "user#<id>"); anonymous ratings each get their own key.
type Rating struct {
	StoreID        int64     `json:"-" dynamodbav:"store_id"`
	RatingKey      string    `json:"id" dynamodbav:"rating_key"`
	UserID         int64     `json:"-" dynamodbav:"user_id"`
	Value          int       `json:"value" dynamodbav:"rating"`
	Comment        string    `json:"comment" dynamodbav:"comment"`
	AnonymousName  string    `json:"-" dynamodbav:"anonymous_name,omitempty"`
	AnonymousEmail string    `json:"-" dynamodbav:"anonymous_email,omitempty"`
	CreatedAt      time.Time `json:"created_at" dynamodbav:"created_at"`
}

// IsAnonymous reports whether the rating was left without an account.
func (r *Rating) IsAnonymous() bool { return r.AnonymousName != "" }

type CreateStoreRequest struct {
	Name    string `json:"name" validate:"required"`
	Email   string `json:"email" validate:"required,email"`
	Address string `json:"address" validate:"required,max=400"`
	OwnerID int64  `json:"owner_id" validate:"required"`
}

type RateStoreRequest struct {
	Rating  int    `json:"rating" validate:"min=1,max=5"`
	Comment string `json:"comment"`
}

type AnonymousRatingRequest struct {
	Rating    int    `json:"rating" validate:"min=1,max=5"`
	Comment   string `json:"comment"`
	UserName  string `json:"user_name"`
	UserEmail string `json:"user_email" validate:"omitempty,email"`
}

// RatingView is a rating as shown alongside its store.
type RatingView struct {
	ID          string    `json:"id"`
	Value       int       `json:"value"`
	Comment     string    `json:"comment"`
	UserName    string    `json:"user_name"`
	UserEmail   string    `json:"user_email"`
	CreatedAt   time.Time `json:"created_at"`
	IsAnonymous bool      `json:"is_anonymous"`
}

// StoreWithRatings is a store plus its ratings, newest first.
type StoreWithRatings struct {
	Store
	Ratings []RatingView `json:"ratings"`
}
