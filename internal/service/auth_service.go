package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"mealswipe/internal/model"
	"mealswipe/internal/repository"
)

var ErrInvalidToken = errors.New("invalid or expired token")

// AuthService issues and resolves access tokens
type AuthService struct {
	jwtSecret []byte
	ttl       time.Duration
	users     repository.UserRepo
}

// NewAuthService creates a new auth service
func NewAuthService(secret string, ttl time.Duration, users repository.UserRepo) *AuthService {
	return &AuthService{
		jwtSecret: []byte(secret),
		ttl:       ttl,
		users:     users,
	}
}

// IssueToken signs an access token for the user
func (s *AuthService) IssueToken(user *model.User) (*model.TokenResponse, error) {
	now := time.Now()
	claims := &model.AccessClaims{
		Username: user.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(user.ID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return nil, err
	}

	return &model.TokenResponse{
		Token:  tokenString,
		UserID: user.ID,
	}, nil
}

// ValidateToken checks signature and expiry and returns the claims
func (s *AuthService) ValidateToken(tokenString string) (*model.AccessClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &model.AccessClaims{}, func(token *jwt.Token) (interface{}, error) {
		return s.jwtSecret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*model.AccessClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

// Authenticate resolves a token to the principal of an existing user. A
// valid token for a deleted user is rejected like a bad token.
func (s *AuthService) Authenticate(ctx context.Context, tokenString string) (model.Principal, error) {
	claims, err := s.ValidateToken(tokenString)
	if err != nil {
		return model.Principal{}, err
	}

	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return model.Principal{}, ErrInvalidToken
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return model.Principal{}, fmt.Errorf("lookup user: %w", err)
	}
	if user == nil {
		return model.Principal{}, ErrInvalidToken
	}

	return model.NewPrincipal(user), nil
}
