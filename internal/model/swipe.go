package model

import "time"

// Swipe is one user's vote on one recipe within one session
type Swipe struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	UserID    int64     `json:"user_id"`
	RecipeID  int64     `json:"recipe_id"`
	Liked     bool      `json:"like"`
	CreatedAt time.Time `json:"created_at"`
}

// SwipeResult is the outcome of a recorded vote
type SwipeResult struct {
	Swipe   *Swipe
	Recipe  *Recipe
	Likes   int
	Members int
	Matched bool
	// Voters holds every user who has voted on the recipe in this session,
	// including the current one.
	Voters []int64
}
