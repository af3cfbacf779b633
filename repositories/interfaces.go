package repositories

import (
	"context"
	"errors"

	"github.com/upb/jaffa-explorer/models"
	"github.com/upb/jaffa-explorer/session"
)

var (
	// ErrNotFound is returned when a record does not exist
	ErrNotFound = errors.New("not found")

	// ErrDuplicateEmail is returned when an email is already registered
	ErrDuplicateEmail = errors.New("email already registered")
)

// UserRepository handles user data operations
type UserRepository interface {
	// Create assigns an ID and stores a new user
	Create(ctx context.Context, user *models.User) error

	// GetByID retrieves a user by ID
	GetByID(ctx context.Context, id int) (*models.User, error)

	// GetByEmail retrieves a user by email, case-insensitively
	GetByEmail(ctx context.Context, email string) (*models.User, error)

	// List retrieves all users ordered by ID
	List(ctx context.Context) ([]*models.User, error)

	// Update replaces a stored user
	Update(ctx context.Context, user *models.User) error

	// Delete removes a user
	Delete(ctx context.Context, id int) error

	// CountByRole counts users carrying the role flag
	CountByRole(ctx context.Context, role session.Role) (int, error)
}

// PostRepository handles feed post data operations
type PostRepository interface {
	// Create assigns an ID and stores a new post
	Create(ctx context.Context, post *models.Post) error

	// GetByID retrieves a post by ID
	GetByID(ctx context.Context, id int) (*models.Post, error)

	// List retrieves all posts, newest first
	List(ctx context.Context) ([]*models.Post, error)

	// ListByAuthor retrieves a user's posts, newest first
	ListByAuthor(ctx context.Context, authorID int) ([]*models.Post, error)

	// Update replaces a stored post
	Update(ctx context.Context, post *models.Post) error

	// Delete removes a post
	Delete(ctx context.Context, id int) error
}
