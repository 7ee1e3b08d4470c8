package app

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"sam-assistant/internal/model"
	"sam-assistant/internal/pkg/jwtutil"
	"sam-assistant/internal/repository"
)

var (
	ErrUsernameExists    = errors.New("username already exists")
	ErrEmailExists       = errors.New("email already exists")
	ErrInvalidCredential = errors.New("invalid username or password")
)

const minPasswordLength = 8

// AuthService manages the operators allowed onto the admin surface.
type AuthService struct {
	operators     *repository.OperatorRepository
	secret        string
	tokenTTL      time.Duration
	allowRegister bool
}

type Credentials struct {
	Username string
	Email    string
	Password string
}

type AuthResult struct {
	Token    string          `json:"token"`
	Operator *model.Operator `json:"operator"`
}

func NewAuthService(operators *repository.OperatorRepository, secret string, tokenTTL time.Duration, allowRegister bool) *AuthService {
	return &AuthService{
		operators:     operators,
		secret:        secret,
		tokenTTL:      tokenTTL,
		allowRegister: allowRegister,
	}
}

func (s *AuthService) RegistrationOpen() bool {
	return s.allowRegister
}

// Register creates an operator account. It is refused unless registration is
// enabled in config.
func (s *AuthService) Register(ctx context.Context, in Credentials) (*AuthResult, error) {
	if !s.allowRegister {
		return nil, ErrRegistrationUnavailable
	}
	username, email, err := normalizeRegistration(in)
	if err != nil {
		return nil, err
	}

	taken, err := s.operators.FindConflicting(ctx, username, email)
	if err != nil {
		return nil, err
	}
	for _, op := range taken {
		if op.Username == username {
			return nil, ErrUsernameExists
		}
	}
	if len(taken) > 0 {
		return nil, ErrEmailExists
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password failed: %w", err)
	}
	operator := &model.Operator{Username: username, Email: email, PasswordHash: string(hash)}
	if err := s.operators.Create(ctx, operator); err != nil {
		return nil, err
	}

	log.Info().Uint("operator_id", operator.ID).Str("username", username).Msg("operator registered")
	return s.tokenFor(operator)
}

// Login checks the password and issues a bearer token for the admin routes.
func (s *AuthService) Login(ctx context.Context, in Credentials) (*AuthResult, error) {
	username := strings.TrimSpace(in.Username)
	if username == "" || in.Password == "" {
		return nil, fmt.Errorf("%w: username and password are required", ErrInvalidInput)
	}

	operator, err := s.operators.FindByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if operator == nil || bcrypt.CompareHashAndPassword([]byte(operator.PasswordHash), []byte(in.Password)) != nil {
		log.Warn().Str("username", username).Msg("operator login rejected")
		return nil, ErrInvalidCredential
	}
	return s.tokenFor(operator)
}

// Operator returns nil when the id no longer exists.
func (s *AuthService) Operator(ctx context.Context, id uint) (*model.Operator, error) {
	if id == 0 {
		return nil, fmt.Errorf("%w: operator id is required", ErrInvalidInput)
	}
	return s.operators.FindByID(ctx, id)
}

func (s *AuthService) tokenFor(operator *model.Operator) (*AuthResult, error) {
	token, err := jwtutil.GenerateToken(s.secret, s.tokenTTL, operator.ID, operator.Username)
	if err != nil {
		return nil, err
	}
	return &AuthResult{Token: token, Operator: operator}, nil
}

func normalizeRegistration(in Credentials) (username, email string, err error) {
	username = strings.TrimSpace(in.Username)
	if username == "" {
		return "", "", fmt.Errorf("%w: username is required", ErrInvalidInput)
	}
	addr, parseErr := mail.ParseAddress(strings.TrimSpace(in.Email))
	if parseErr != nil {
		return "", "", fmt.Errorf("%w: email is invalid", ErrInvalidInput)
	}
	if len([]rune(in.Password)) < minPasswordLength {
		return "", "", fmt.Errorf("%w: password must have at least %d characters", ErrInvalidInput, minPasswordLength)
	}
	return username, strings.ToLower(addr.Address), nil
}
