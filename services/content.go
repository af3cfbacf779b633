package services

import (
	"context"

	"github.com/upb/jaffa-explorer/client"
	"github.com/upb/jaffa-explorer/session"
)

// PostService covers the community feed. Reading is public; writing,
// liking, commenting and reporting need a visitor.
type PostService struct{ base }

// List returns the feed, newest first.
func (s *PostService) List(ctx context.Context) ([]Post, error) {
	var out []Post
	if _, err := s.public(ctx, get("posts/"), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Get loads one post with its comments.
func (s *PostService) Get(ctx context.Context, postID int) (*Post, error) {
	var out Post
	if _, err := s.public(ctx, get("posts/"+id(postID)+"/"), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Create publishes a post. image may be nil.
func (s *PostService) Create(ctx context.Context, content string, image *client.File) (*Post, error) {
	var out Post
	req := withForm(post("posts/", nil), postForm(content, image))
	if _, err := s.as(ctx, session.RoleVisitor, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Update replaces the content of the visitor's own post.
func (s *PostService) Update(ctx context.Context, postID int, content string, image *client.File) (*Post, error) {
	var out Post
	req := withForm(put("posts/"+id(postID)+"/", nil), postForm(content, image))
	if _, err := s.as(ctx, session.RoleVisitor, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Delete removes the visitor's own post.
func (s *PostService) Delete(ctx context.Context, postID int) error {
	_, err := s.as(ctx, session.RoleVisitor, del("posts/"+id(postID)+"/"), nil)
	return err
}

// Like toggles the visitor's like on a post.
func (s *PostService) Like(ctx context.Context, postID int) (*Message, error) {
	var out Message
	if _, err := s.as(ctx, session.RoleVisitor, post("posts/"+id(postID)+"/like/", nil), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Comment adds a comment to a post.
func (s *PostService) Comment(ctx context.Context, postID int, content string) (*Comment, error) {
	body := map[string]string{"content": content}
	var out Comment
	if _, err := s.as(ctx, session.RoleVisitor, post("posts/"+id(postID)+"/comment/", body), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Report flags a post for the admins.
func (s *PostService) Report(ctx context.Context, postID int, reason string) (*Message, error) {
	body := map[string]string{"reason": reason}
	var out Message
	if _, err := s.as(ctx, session.RoleVisitor, post("posts/"+id(postID)+"/report/", body), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func postForm(content string, image *client.File) *client.Form {
	form := client.NewForm().Set("content", content)
	if image != nil {
		img := *image
		img.Field = "image"
		form.Files = append(form.Files, img)
	}
	return form
}

// SaleService covers business promotions and the visitor's favourites.
type SaleService struct{ base }

// SaleInput is the editable part of a sale. Dates are YYYY-MM-DD.
type SaleInput struct {
	Title       string
	Description string
	StartDate   string
	EndDate     string
	Image       *client.File
}

func (in SaleInput) form() *client.Form {
	form := client.NewForm().
		Set("title", in.Title).
		Set("description", in.Description).
		Set("start_date", in.StartDate).
		Set("end_date", in.EndDate)
	if in.Image != nil {
		img := *in.Image
		img.Field = "image"
		form.Files = append(form.Files, img)
	}
	return form
}

// All lists every current sale. Public.
func (s *SaleService) All(ctx context.Context) ([]Sale, error) {
	var out []Sale
	if _, err := s.public(ctx, get("sales/all/"), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Create adds a sale to the signed-in business.
func (s *SaleService) Create(ctx context.Context, in SaleInput) (*Sale, error) {
	var out Sale
	if _, err := s.as(ctx, session.RoleBusiness, withForm(post("sales/", nil), in.form()), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Update replaces one of the business's sales.
func (s *SaleService) Update(ctx context.Context, saleID int, in SaleInput) (*Sale, error) {
	var out Sale
	req := withForm(put("sales/"+id(saleID)+"/", nil), in.form())
	if _, err := s.as(ctx, session.RoleBusiness, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Delete removes one of the business's sales.
func (s *SaleService) Delete(ctx context.Context, saleID int) error {
	_, err := s.as(ctx, session.RoleBusiness, del("sales/"+id(saleID)+"/delete/"), nil)
	return err
}

// Favorites lists the visitor's saved sales.
func (s *SaleService) Favorites(ctx context.Context) ([]FavoriteSale, error) {
	var out []FavoriteSale
	if _, err := s.as(ctx, session.RoleVisitor, get("favorites/sales/"), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// AddFavorite saves a sale for the visitor.
func (s *SaleService) AddFavorite(ctx context.Context, saleID int) (*FavoriteSale, error) {
	body := map[string]int{"sale": saleID}
	var out FavoriteSale
	if _, err := s.as(ctx, session.RoleVisitor, post("favorites/sales/", body), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RemoveFavorite drops a saved sale.
func (s *SaleService) RemoveFavorite(ctx context.Context, saleID int) error {
	_, err := s.as(ctx, session.RoleVisitor, del("favorites/sales/"+id(saleID)+"/delete/"), nil)
	return err
}
