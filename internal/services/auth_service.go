package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/prudhvinik1/webradegast/internal/models"
	"github.com/prudhvinik1/webradegast/internal/repositories"
	"github.com/prudhvinik1/webradegast/internal/utils"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailExists        = errors.New("email already exists")
	ErrInvalidToken       = errors.New("invalid token")
)

// AuthService handles operator sign-in for the web front-end. Tokens are
// JWTs whose jti points at a Redis session, so logout revokes them.
type AuthService struct {
	operatorRepo repositories.OperatorRepository
	sessionRepo  repositories.SessionRepository
	jwtSecret    string
	jwtExpiry    time.Duration
}

type LoginResponse struct {
	Token      string    `json:"token"`
	ExpiresAt  time.Time `json:"expires_at"`
	OperatorID uuid.UUID `json:"operator_id"`
}

type TokenClaims struct {
	OperatorID uuid.UUID
	SessionID  string
}

func NewAuthService(
	operatorRepo repositories.OperatorRepository,
	sessionRepo repositories.SessionRepository,
	jwtSecret string,
	jwtExpiry time.Duration,
) *AuthService {
	return &AuthService{
		operatorRepo: operatorRepo,
		sessionRepo:  sessionRepo,
		jwtSecret:    jwtSecret,
		jwtExpiry:    jwtExpiry,
	}
}

func (s *AuthService) Register(ctx context.Context, email, password string) (*models.Operator, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	existing, err := s.operatorRepo.GetByEmail(ctx, email)
	if err == nil && existing != nil {
		return nil, ErrEmailExists
	}
	if err != nil && !errors.Is(err, repositories.ErrNotFound) {
		return nil, fmt.Errorf("failed to check email: %w", err)
	}

	hashedPassword, err := utils.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	operator := &models.Operator{
		Email:        email,
		PasswordHash: hashedPassword,
	}
	if err := s.operatorRepo.Create(ctx, operator); err != nil {
		return nil, fmt.Errorf("failed to create operator: %w", err)
	}

	return operator, nil
}

func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResponse, error) {
	operator, err := s.operatorRepo.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get operator: %w", err)
	}

	if !utils.CheckPassword(operator.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}

	now := time.Now()
	session := &models.Session{
		ID:         uuid.New().String(),
		OperatorID: operator.ID,
		ExpiresAt:  now.Add(s.jwtExpiry),
		CreatedAt:  now,
	}
	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	token, err := s.generateToken(operator.ID, session.ID, now, session.ExpiresAt)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	return &LoginResponse{
		Token:      token,
		ExpiresAt:  session.ExpiresAt,
		OperatorID: operator.ID,
	}, nil
}

func (s *AuthService) generateToken(operatorID uuid.UUID, sessionID string, issuedAt, expiresAt time.Time) (string, error) {
	claims := jwt.RegisteredClaims{
		Subject:   operatorID.String(),
		ID:        sessionID,
		IssuedAt:  jwt.NewNumericDate(issuedAt),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.jwtSecret))
}

// VerifyToken checks the signature and expiry only.
func (s *AuthService) VerifyToken(tokenString string) (*TokenClaims, error) {
	var claims jwt.RegisteredClaims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.jwtSecret), nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	operatorID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, ErrInvalidToken
	}
	if claims.ID == "" {
		return nil, ErrInvalidToken
	}

	return &TokenClaims{
		OperatorID: operatorID,
		SessionID:  claims.ID,
	}, nil
}

// Authenticate verifies the token and that its session has not been revoked.
func (s *AuthService) Authenticate(ctx context.Context, tokenString string) (*TokenClaims, error) {
	claims, err := s.VerifyToken(tokenString)
	if err != nil {
		return nil, err
	}

	session, err := s.sessionRepo.GetByID(ctx, claims.SessionID)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, ErrInvalidToken
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	if session.OperatorID != claims.OperatorID {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

func (s *AuthService) Logout(ctx context.Context, claims *TokenClaims) error {
	if err := s.sessionRepo.Delete(ctx, claims.SessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

func (s *AuthService) LogoutAll(ctx context.Context, claims *TokenClaims) error {
	if err := s.sessionRepo.DeleteAllForOperator(ctx, claims.OperatorID); err != nil {
		return fmt.Errorf("failed to logout all sessions: %w", err)
	}
	return nil
}
