package service

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"offerland/apperr"
	"offerland/auth"
	"offerland/models"
	"offerland/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"
)

const recentPostsOnProfile = 5

// AuthResult is returned by Register and Authenticate.
type AuthResult struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

type Profile struct {
	User        *models.UserSummary `json:"user"`
	RecentPosts []models.Post       `json:"recentPosts"`
}

type UserPage struct {
	Users       []*models.UserSummary `json:"users"`
	Total       int64                 `json:"total"`
	TotalPages  int64                 `json:"totalPages"`
	CurrentPage int                   `json:"currentPage"`
}

// AvatarStore persists an uploaded image and returns its public URL.
type AvatarStore interface {
	UploadAvatar(ctx context.Context, userID primitive.ObjectID, file io.Reader) (string, error)
}

type UserService struct {
	users      repository.UserRepository
	posts      *PostService
	tokens     *auth.TokenManager
	avatars    AvatarStore
	bcryptCost int
	now        func() time.Time
}

func NewUserService(users repository.UserRepository, posts *PostService, tokens *auth.TokenManager) *UserService {
	return &UserService{
		users:      users,
		posts:      posts,
		tokens:     tokens,
		bcryptCost: bcrypt.DefaultCost,
		now:        time.Now,
	}
}

// WithAvatarStore enables UploadAvatar.
func (s *UserService) WithAvatarStore(store AvatarStore) *UserService {
	s.avatars = store
	return s
}

func (s *UserService) AvatarsEnabled() bool {
	return s.avatars != nil
}

func (s *UserService) Register(ctx context.Context, email, username, password string) (*AuthResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	username = strings.TrimSpace(username)

	if !isEmail(email) {
		return nil, apperr.Validation("Please provide a valid email")
	}
	if err := checkLength("Username", username, 3, 20); err != nil {
		return nil, err
	}
	if err := checkLength("Password", password, 6, 0); err != nil {
		return nil, err
	}

	existing, err := s.users.FindByEmailOrUsername(ctx, email, username)
	switch {
	case err == nil && existing.Email == email:
		return nil, apperr.Validation("Email already registered")
	case err == nil:
		return nil, apperr.Validation("Username already taken")
	case !errors.Is(err, repository.ErrNotFound):
		return nil, apperr.Internal("Registration failed", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return nil, apperr.Internal("Registration failed", err)
	}

	now := s.now()
	user := &models.User{
		Email:        email,
		Username:     username,
		PasswordHash: string(hash),
		Avatar:       models.DefaultAvatar,
		JoinDate:     now,
		LastActive:   now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperr.Validation("Email or username already taken")
		}
		return nil, apperr.Internal("Registration failed", err)
	}

	return s.issue(user)
}

// Authenticate answers unknown email and wrong password with the same error.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (*AuthResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.users.FindByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.Unauthenticated("Invalid credentials")
	}
	if err != nil {
		return nil, apperr.Internal("Login failed", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, apperr.Unauthenticated("Invalid credentials")
	}

	user.LastActive = s.now()
	if err := s.users.TouchLastActive(ctx, user.ID, user.LastActive); err != nil {
		return nil, apperr.Internal("Login failed", err)
	}

	return s.issue(user)
}

func (s *UserService) issue(user *models.User) (*AuthResult, error) {
	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, apperr.Internal("Failed to issue token", err)
	}
	return &AuthResult{Token: token, User: user}, nil
}

func (s *UserService) Me(ctx context.Context, userID primitive.ObjectID) (*models.User, error) {
	return s.find(ctx, userID)
}

func (s *UserService) find(ctx context.Context, userID primitive.ObjectID) (*models.User, error) {
	user, err := s.users.FindByID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.NotFound("User not found")
	}
	if err != nil {
		return nil, apperr.Internal("Failed to load user", err)
	}
	return user, nil
}

// Profile returns the public card of a user with their most recent posts.
func (s *UserService) Profile(ctx context.Context, userID primitive.ObjectID) (*Profile, error) {
	user, err := s.find(ctx, userID)
	if err != nil {
		return nil, err
	}

	recent, err := s.posts.RecentByAuthor(ctx, userID, recentPostsOnProfile)
	if err != nil {
		return nil, err
	}
	return &Profile{User: publicCard(user), RecentPosts: recent}, nil
}

func (s *UserService) UpdateProfile(ctx context.Context, userID primitive.ObjectID, update models.ProfileUpdate) (*models.User, error) {
	if update.Username != nil {
		username := strings.TrimSpace(*update.Username)
		if err := checkLength("Username", username, 3, 20); err != nil {
			return nil, err
		}
		taken, err := s.users.UsernameTaken(ctx, username, userID)
		if err != nil {
			return nil, apperr.Internal("Failed to update profile", err)
		}
		if taken {
			return nil, apperr.Validation("Username already taken")
		}
		update.Username = &username
	}
	if update.Bio != nil {
		if err := checkLength("Bio", *update.Bio, 0, 500); err != nil {
			return nil, err
		}
	}
	if update.Avatar != nil && !isURL(*update.Avatar) {
		return nil, apperr.Validation("Avatar must be a valid URL")
	}

	user, err := s.users.UpdateProfile(ctx, userID, update)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return nil, apperr.NotFound("User not found")
	case errors.Is(err, repository.ErrDuplicate):
		return nil, apperr.Validation("Username already taken")
	case err != nil:
		return nil, apperr.Internal("Failed to update profile", err)
	}
	return user, nil
}

func (s *UserService) UploadAvatar(ctx context.Context, userID primitive.ObjectID, file io.Reader) (*models.User, error) {
	if s.avatars == nil {
		return nil, apperr.Internal("Avatar upload is not configured", nil)
	}
	if _, err := s.find(ctx, userID); err != nil {
		return nil, err
	}

	url, err := s.avatars.UploadAvatar(ctx, userID, file)
	if err != nil {
		return nil, apperr.Internal("Failed to upload avatar", err)
	}
	return s.UpdateProfile(ctx, userID, models.ProfileUpdate{Avatar: &url})
}

func (s *UserService) Search(ctx context.Context, text string, page models.Page) (*UserPage, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, apperr.Validation("Search query is required")
	}

	users, total, err := s.users.Search(ctx, text, page)
	if err != nil {
		return nil, apperr.Internal("Search failed", err)
	}

	result := &UserPage{
		Users:       make([]*models.UserSummary, len(users)),
		Total:       total,
		TotalPages:  page.TotalPages(total),
		CurrentPage: page.Number,
	}
	for i := range users {
		result.Users[i] = publicCard(&users[i])
	}
	return result, nil
}

// publicCard is the profile card plus presence.
func publicCard(u *models.User) *models.UserSummary {
	card := u.Card()
	card.LastActive = u.Presence().LastActive
	return card
}
