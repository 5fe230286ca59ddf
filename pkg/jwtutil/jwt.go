package jwtutil

import (
	"time"

	"account-service/pkg/config"

	"github.com/golang-jwt/jwt/v4"
)

var (
	signingKey      []byte
	expirationHours = 24
)

// Initialize sets up the JWT utility with configuration
func Initialize(cfg *config.JWTConfig) {
	signingKey = []byte(cfg.SigningKey)
	if cfg.ExpirationHours > 0 {
		expirationHours = cfg.ExpirationHours
	}
}

// UserClaims represents the JWT claims for an authenticated user
type UserClaims struct {
	Email     string `json:"email"`
	UserID    string `json:"user_id"`
	CompanyID string `json:"company_id,omitempty"` // Active company for the session, if one was selected
	Role      string `json:"role,omitempty"`       // User's role within the active company
	jwt.RegisteredClaims
}

// GenerateToken creates a JWT token with user information
func GenerateToken(email, userID string) (string, error) {
	return GenerateTokenWithCompany(email, userID, "", "")
}

// GenerateTokenWithCompany creates a JWT token carrying company context
func GenerateTokenWithCompany(email, userID, companyID, role string) (string, error) {
	claims := UserClaims{
		Email:     email,
		UserID:    userID,
		CompanyID: companyID,
		Role:      role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour * time.Duration(expirationHours))),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(signingKey)
}

// ValidateToken validates and parses the JWT token
func ValidateToken(tokenString string) (*UserClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &UserClaims{}, func(token *jwt.Token) (interface{}, error) {
		return signingKey, nil
	})

	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*UserClaims); ok && token.Valid {
		return claims, nil
	}

	return nil, jwt.ErrSignatureInvalid
}
