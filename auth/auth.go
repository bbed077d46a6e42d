package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"waterlog/database"
	"waterlog/models"
)

var (
	ErrUserNotFound    = errors.New("user not found")
	ErrInvalidPassword = errors.New("invalid password")
	ErrUsernameTaken   = errors.New("username already taken")
	ErrInvalidRole     = errors.New("invalid role")
	ErrInvalidToken    = errors.New("invalid token")
)

const DefaultTokenTTL = 24 * time.Hour

// Claims is the JWT payload identifying the caller.
type Claims struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

type UserStore interface {
	CreateUser(ctx context.Context, u *models.User) (int64, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
}

// Service registers users, checks passwords and issues tokens.
type Service struct {
	store  UserStore
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewService(store UserStore, secret string, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &Service{store: store, secret: []byte(secret), ttl: ttl, now: time.Now}
}

func (s *Service) Register(ctx context.Context, req models.RegisterRequest) (*models.User, error) {
	role := strings.ToLower(strings.TrimSpace(req.Role))
	if role == "" {
		role = models.RoleCitizen
	}
	if role != models.RoleCitizen && role != models.RoleAuthority {
		return nil, ErrInvalidRole
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	u := &models.User{
		Username:     strings.TrimSpace(req.Username),
		PasswordHash: string(hash),
		Role:         role,
		FullName:     req.FullName,
		AuthorityID:  req.AuthorityID,
	}
	id, err := s.store.CreateUser(ctx, u)
	if errors.Is(err, database.ErrDuplicate) {
		return nil, ErrUsernameTaken
	}
	if err != nil {
		return nil, err
	}
	u.ID = id
	return u, nil
}

func (s *Service) Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	u, err := s.store.GetUserByUsername(ctx, strings.TrimSpace(req.Username))
	if errors.Is(err, database.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrInvalidPassword
	}
	token, err := s.IssueToken(u)
	if err != nil {
		return nil, err
	}
	return &models.LoginResponse{Token: token, User: *u}, nil
}

func (s *Service) IssueToken(u *models.User) (string, error) {
	now := s.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		ID:       u.ID,
		Username: u.Username,
		Role:     u.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	})
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// ParseToken verifies an HS256 token and returns its claims.
func (s *Service) ParseToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return claims, nil
}
