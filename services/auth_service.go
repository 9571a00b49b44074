package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/anjiri1684/tutor_booking/apperror"
	"github.com/anjiri1684/tutor_booking/database/dbctx"
	"github.com/anjiri1684/tutor_booking/logger"
	"github.com/anjiri1684/tutor_booking/models"
	"github.com/anjiri1684/tutor_booking/repository"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var errBadCredentials = apperror.Unauthenticated("Invalid email or password")

type RegisterInput struct {
	Name     string
	Email    string
	Password string
	Role     models.Role
}

// Session is a signed token and the moment it stops being valid.
type Session struct {
	Token     string
	ExpiresAt time.Time
	User      *models.User
}

type AuthService struct {
	users  repository.UserRepo
	secret []byte
	ttl    time.Duration
	clock  Clock
	log    *logger.Logger
}

func NewAuthService(users repository.UserRepo, secret string, ttl time.Duration, clock Clock, log *logger.Logger) *AuthService {
	return &AuthService{
		users:  users,
		secret: []byte(secret),
		ttl:    ttl,
		clock:  clock,
		log:    log.With("service", "AuthService"),
	}
}

// Register creates a student or tutor account. Administrators are only
// seeded from configuration.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	if in.Role != models.RoleStudent && in.Role != models.RoleTutor {
		return nil, apperror.BadRequest("Role must be student or tutor")
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	user := &models.User{
		Role:     in.Role,
		FullName: strings.TrimSpace(in.Name),
		Email:    in.Email,
		Password: string(hashed),
	}
	if err := s.users.Create(dbctx.New(ctx), user); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperror.Conflict("Email already exists")
		}
		return nil, err
	}
	s.log.Info("user registered", "user_id", user.ID, "role", user.Role)
	return user, nil
}

func (s *AuthService) Login(ctx context.Context, email, password string) (Session, error) {
	user, err := s.users.GetByEmail(dbctx.New(ctx), email)
	if isNotFound(err) {
		return Session{}, errBadCredentials
	}
	if err != nil {
		return Session{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return Session{}, errBadCredentials
	}
	return s.Issue(user)
}

// Issue signs an HS256 token carrying the user id and role.
func (s *AuthService) Issue(user *models.User) (Session, error) {
	expires := s.clock.now().Add(s.ttl)
	claims := jwt.MapClaims{
		"user_id": user.ID.String(),
		"role":    string(user.Role),
		"exp":     expires.Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return Session{}, err
	}
	return Session{Token: token, ExpiresAt: expires, User: user}, nil
}

func (s *AuthService) Me(ctx context.Context, caller Caller) (*models.User, error) {
	user, err := s.users.GetByID(dbctx.New(ctx), caller.ID)
	if isNotFound(err) {
		return nil, apperror.Unauthenticated("No user is logged in")
	}
	return user, err
}

// CallerFromClaims turns verified token claims into a Caller.
func CallerFromClaims(claims jwt.MapClaims) (Caller, error) {
	rawID, _ := claims["user_id"].(string)
	id, err := uuid.Parse(rawID)
	if err != nil {
		return Caller{}, apperror.Unauthenticated("No user is logged in")
	}
	rawRole, _ := claims["role"].(string)
	role := models.Role(rawRole)
	if !role.Valid() {
		return Caller{}, apperror.Unauthenticated("No user is logged in")
	}
	return Caller{ID: id, Role: role}, nil
}
