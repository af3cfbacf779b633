package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/upb/jaffa-explorer/models"
	"github.com/upb/jaffa-explorer/repositories"
)

// PostRepository implements the repositories.PostRepository interface
type PostRepository struct {
	mu     sync.RWMutex
	posts  map[int]*models.Post
	nextID int
	logger *zap.Logger
}

// NewPostRepository creates a new post repository
func NewPostRepository(logger *zap.Logger) *PostRepository {
	return &PostRepository{
		posts:  make(map[int]*models.Post),
		nextID: 1,
		logger: logger,
	}
}

// Create creates a new post
func (r *PostRepository) Create(_ context.Context, post *models.Post) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	post.ID = r.nextID
	r.nextID++
	if post.CreatedAt.IsZero() {
		post.CreatedAt = time.Now().UTC()
	}
	r.posts[post.ID] = clonePost(post)

	r.logger.Debug("post created", zap.Int("id", post.ID), zap.Int("author_id", post.AuthorID))
	return nil
}

// GetByID retrieves a post by ID
func (r *PostRepository) GetByID(_ context.Context, id int) (*models.Post, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.posts[id]
	if !ok {
		return nil, fmt.Errorf("post %d: %w", id, repositories.ErrNotFound)
	}
	return clonePost(p), nil
}

// List retrieves all posts
func (r *PostRepository) List(_ context.Context) ([]*models.Post, error) {
	return r.filter(func(*models.Post) bool { return true }), nil
}

// ListByAuthor retrieves a user's posts
func (r *PostRepository) ListByAuthor(_ context.Context, authorID int) ([]*models.Post, error) {
	return r.filter(func(p *models.Post) bool { return p.AuthorID == authorID }), nil
}

// Update updates a post
func (r *PostRepository) Update(_ context.Context, post *models.Post) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.posts[post.ID]; !ok {
		return fmt.Errorf("post %d: %w", post.ID, repositories.ErrNotFound)
	}
	r.posts[post.ID] = clonePost(post)
	return nil
}

// Delete deletes a post
func (r *PostRepository) Delete(_ context.Context, id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.posts[id]; !ok {
		return fmt.Errorf("post %d: %w", id, repositories.ErrNotFound)
	}
	delete(r.posts, id)
	return nil
}

func (r *PostRepository) filter(keep func(*models.Post) bool) []*models.Post {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*models.Post, 0, len(r.posts))
	for _, p := range r.posts {
		if keep(p) {
			out = append(out, clonePost(p))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

func clonePost(p *models.Post) *models.Post {
	c := *p
	c.LikedBy = append([]int(nil), p.LikedBy...)
	return &c
}

var _ repositories.PostRepository = (*PostRepository)(nil)
