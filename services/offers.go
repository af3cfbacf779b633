package services

import (
	"context"
	"net/http"
	"strconv"

	"github.com/upb/jaffa-explorer/client"
	"github.com/upb/jaffa-explorer/session"
)

// OfferService covers token-priced offers. Visitors redeem them, admins
// publish them.
type OfferService struct{ base }

// OfferInput is what an admin fills in to publish an offer.
type OfferInput struct {
	Title       string
	Description string
	Price       int
	BusinessID  int // 0 for a site-wide offer
	Image       *client.File
}

// Available lists offers open for redemption. Public.
func (s *OfferService) Available(ctx context.Context) ([]Offer, error) {
	var out []Offer
	if _, err := s.public(ctx, get("offers/available/"), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Create publishes an offer.
func (s *OfferService) Create(ctx context.Context, in OfferInput) (*Offer, error) {
	form := client.NewForm().
		Set("title", in.Title).
		Set("description", in.Description).
		Set("price", strconv.Itoa(in.Price))
	if in.BusinessID > 0 {
		form.Set("business", id(in.BusinessID))
	}
	if in.Image != nil {
		img := *in.Image
		img.Field = "image"
		form.Files = append(form.Files, img)
	}

	var out Offer
	if _, err := s.as(ctx, session.RoleAdmin, withForm(post("offers/", nil), form), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Redeem spends the visitor's tokens on an offer and returns the code to
// show at the business.
func (s *OfferService) Redeem(ctx context.Context, offerID int) (*Redemption, error) {
	var out Redemption
	if _, err := s.as(ctx, session.RoleVisitor, post("offers/"+id(offerID)+"/redeem/", nil), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// MyRedemptions lists the visitor's redeemed offers.
func (s *OfferService) MyRedemptions(ctx context.Context) ([]Redemption, error) {
	var out []Redemption
	if _, err := s.as(ctx, session.RoleVisitor, get("offers/my-redemptions/"), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// RatingService covers site ratings. Any signed-in role may rate.
type RatingService struct{ base }

type RatingInput struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment"`
}

// Mine returns the caller's rating, or nil when they have not rated yet.
func (s *RatingService) Mine(ctx context.Context) (*SiteRating, error) {
	var out SiteRating
	resp, err := s.asCurrent(ctx, get("rate-site/my/"), &out)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusNoContent || len(resp.Body) == 0 {
		return nil, nil
	}
	return &out, nil
}

// Submit records a first rating.
func (s *RatingService) Submit(ctx context.Context, in RatingInput) (*SiteRating, error) {
	var out SiteRating
	if _, err := s.asCurrent(ctx, post("rate-site/", in), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Update replaces an existing rating.
func (s *RatingService) Update(ctx context.Context, ratingID int, in RatingInput) (*SiteRating, error) {
	var out SiteRating
	if _, err := s.asCurrent(ctx, put("rate-site/"+id(ratingID)+"/", in), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Public lists ratings shown on the landing page.
func (s *RatingService) Public(ctx context.Context) ([]SiteRating, error) {
	var out []SiteRating
	if _, err := s.public(ctx, get("rate-site/public/"), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Delete removes a rating. Admin only.
func (s *RatingService) Delete(ctx context.Context, ratingID int) error {
	_, err := s.as(ctx, session.RoleAdmin, del("rate-site/"+id(ratingID)+"/delete/"), nil)
	return err
}

// ContactService sends messages to the site admins.
type ContactService struct{ base }

// Send posts a contact message as the signed-in user.
func (s *ContactService) Send(ctx context.Context, subject, message string) (*Message, error) {
	body := map[string]string{"subject": subject, "message": message}
	var out Message
	if _, err := s.asCurrent(ctx, post("contact/", body), &out); err != nil {
		return nil, err
	}
	return &out, nil
}
