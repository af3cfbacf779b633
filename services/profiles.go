package services

import (
	"context"
	"net/http"
	"net/url"

	"github.com/upb/jaffa-explorer/client"
	"github.com/upb/jaffa-explorer/session"
)

// VisitorService covers the signed-in visitor's own data.
type VisitorService struct{ base }

// Profile loads the visitor profile, including the token balance.
func (s *VisitorService) Profile(ctx context.Context) (*VisitorProfile, error) {
	var out VisitorProfile
	if _, err := s.as(ctx, session.RoleVisitor, get("profile/visitor/"), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// TokenBalance reads the tokens field of the visitor profile.
func (s *VisitorService) TokenBalance(ctx context.Context) (int, error) {
	p, err := s.Profile(ctx)
	if err != nil {
		return 0, err
	}
	return p.Tokens, nil
}

// UpdateProfile changes the phone number and, optionally, the picture.
func (s *VisitorService) UpdateProfile(ctx context.Context, phone string, image *client.File) (*VisitorProfile, error) {
	form := client.NewForm().Set("phone_number", phone)
	if image != nil {
		img := *image
		img.Field = "profile_image"
		form.Files = append(form.Files, img)
	}

	var out VisitorProfile
	if _, err := s.as(ctx, session.RoleVisitor, withForm(put("profile/visitor/", nil), form), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// FavoriteSales lists the sales the visitor saved.
func (s *VisitorService) FavoriteSales(ctx context.Context) ([]FavoriteSale, error) {
	var out []FavoriteSale
	if _, err := s.as(ctx, session.RoleVisitor, get("profile/visitor/favorite-sales/"), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// MyPosts lists posts written by the visitor.
func (s *VisitorService) MyPosts(ctx context.Context) ([]Post, error) {
	var out []Post
	if _, err := s.as(ctx, session.RoleVisitor, get("my-posts/"), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// BusinessService covers the signed-in business's page and gallery.
type BusinessService struct{ base }

type BusinessProfileUpdate struct {
	BusinessName string
	Description  string
	Category     string
	Phone        string
	Location     string
	ProfileImage *client.File
}

// Profile loads the business's own profile. The backend returns a
// one-element list.
func (s *BusinessService) Profile(ctx context.Context) (*BusinessProfile, error) {
	var out []BusinessProfile
	if _, err := s.as(ctx, session.RoleBusiness, get("profile/business/"), &out); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return &out[0], nil
}

// UpdateProfile replaces the editable profile fields.
func (s *BusinessService) UpdateProfile(ctx context.Context, profileID int, u BusinessProfileUpdate) (*BusinessProfile, error) {
	form := client.NewForm().
		Set("business_name", u.BusinessName).
		Set("description", u.Description).
		Set("category", u.Category).
		Set("phone", u.Phone).
		Set("location", u.Location)
	if u.ProfileImage != nil {
		img := *u.ProfileImage
		img.Field = "profile_image"
		form.Files = append(form.Files, img)
	}

	req := withForm(put("profile/business/"+id(profileID)+"/", nil), form)
	var out BusinessProfile
	if _, err := s.as(ctx, session.RoleBusiness, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// PatchProfile updates only the given fields.
func (s *BusinessService) PatchProfile(ctx context.Context, profileID int, fields map[string]any) (*BusinessProfile, error) {
	req := &client.Request{Method: http.MethodPatch, Path: "profile/business/" + id(profileID) + "/", Body: fields}
	var out BusinessProfile
	if _, err := s.as(ctx, session.RoleBusiness, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AddGalleryImage uploads an image to the business gallery.
func (s *BusinessService) AddGalleryImage(ctx context.Context, image client.File) (*GalleryImage, error) {
	image.Field = "image"
	form := client.NewForm()
	form.Files = append(form.Files, image)

	var out GalleryImage
	if _, err := s.as(ctx, session.RoleBusiness, withForm(post("gallery-images/", nil), form), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteGalleryImage removes an image from the gallery.
func (s *BusinessService) DeleteGalleryImage(ctx context.Context, imageID int) error {
	_, err := s.as(ctx, session.RoleBusiness, del("gallery-images/"+id(imageID)+"/delete/"), nil)
	return err
}

// DirectoryFilter narrows businesses/approved/.
type DirectoryFilter struct {
	Category       string
	OpenOnSaturday bool
}

// Approved lists approved businesses. Public.
func (s *BusinessService) Approved(ctx context.Context, f DirectoryFilter) ([]BusinessProfile, error) {
	req := get("businesses/approved/")
	q := url.Values{}
	if f.Category != "" {
		q.Set("category", f.Category)
	}
	if f.OpenOnSaturday {
		q.Set("open_on_saturday", "true")
	}
	req.Query = q

	var out []BusinessProfile
	if _, err := s.public(ctx, req, &out); err != nil {
		return nil, err
	}
	return out, nil
}
