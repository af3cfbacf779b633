package models

import "time"

// Post is a visitor's feed entry
type Post struct {
	ID        int       `json:"id"`
	AuthorID  int       `json:"-"`
	User      string    `json:"user"`
	Content   string    `json:"content"`
	Image     *string   `json:"image"`
	CreatedAt time.Time `json:"created_at"`
	LikedBy   []int     `json:"-"`
}

// PostView is a Post as rendered for one viewer
type PostView struct {
	*Post
	IsOwner       bool  `json:"is_owner"`
	LikesCount    int   `json:"likes_count"`
	CommentsCount int   `json:"comments_count"`
	Comments      []any `json:"comments"`
}

// View renders the post for viewerID (0 for anonymous)
func (p *Post) View(viewerID int) PostView {
	return PostView{
		Post:       p,
		IsOwner:    viewerID != 0 && viewerID == p.AuthorID,
		LikesCount: len(p.LikedBy),
		Comments:   []any{},
	}
}

// ToggleLike adds or removes userID's like and reports whether it is now liked.
func (p *Post) ToggleLike(userID int) bool {
	for i, id := range p.LikedBy {
		if id == userID {
			p.LikedBy = append(p.LikedBy[:i], p.LikedBy[i+1:]...)
			return false
		}
	}
	p.LikedBy = append(p.LikedBy, userID)
	return true
}
