package services

import "time"

// VisitorProfile is returned by profile/visitor/.
type VisitorProfile struct {
	Username        string  `json:"username"`
	Email           string  `json:"email"`
	PhoneNumber     string  `json:"phone_number"`
	ProfileImage    *string `json:"profile_image"`
	ProfileImageURL *string `json:"profile_image_url"`
	Tokens          int     `json:"tokens"`
}

// BusinessProfile is a business page with its gallery and sales.
type BusinessProfile struct {
	ID            int            `json:"id"`
	BusinessName  string         `json:"business_name"`
	Description   string         `json:"description"`
	Category      string         `json:"category"`
	Phone         string         `json:"phone"`
	Location      string         `json:"location"`
	InJaffa       bool           `json:"in_jaffa"`
	ProfileImage  *string        `json:"profile_image"`
	GalleryImages []GalleryImage `json:"gallery_images,omitempty"`
	Sales         []Sale         `json:"sales,omitempty"`
}

type GalleryImage struct {
	ID         int       `json:"id"`
	Image      string    `json:"image"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// Sale is a time-boxed business promotion. Dates are YYYY-MM-DD.
type Sale struct {
	ID          int     `json:"id"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	StartDate   string  `json:"start_date"`
	EndDate     string  `json:"end_date"`
	Image       *string `json:"image"`
}

type FavoriteSale struct {
	ID          int  `json:"id"`
	Sale        int  `json:"sale"`
	SaleDetails Sale `json:"sale_details"`
}

type Post struct {
	ID            int       `json:"id"`
	User          string    `json:"user"`
	Content       string    `json:"content"`
	Image         *string   `json:"image"`
	CreatedAt     time.Time `json:"created_at"`
	IsOwner       bool      `json:"is_owner"`
	LikesCount    int       `json:"likes_count"`
	CommentsCount int       `json:"comments_count"`
	Comments      []Comment `json:"comments"`
}

type Comment struct {
	ID        int       `json:"id"`
	User      string    `json:"user"`
	Post      int       `json:"post"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Report is a flagged post as listed for admins.
type Report struct {
	ID            int       `json:"id"`
	Reason        string    `json:"reason"`
	CreatedAt     time.Time `json:"created_at"`
	ReporterEmail string    `json:"reporter_email"`
	Post          Post      `json:"post"`
}

type Offer struct {
	ID           int       `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	Price        int       `json:"price"` // in visitor tokens
	Business     *int      `json:"business"`
	BusinessName string    `json:"business_name"`
	Image        *string   `json:"image"`
	CreatedAt    time.Time `json:"created_at"`
}

type Redemption struct {
	ID         int       `json:"id"`
	Offer      int       `json:"offer"`
	Code       string    `json:"code"`
	RedeemedAt time.Time `json:"redeemed_at"`
}

type SiteRating struct {
	ID        int       `json:"id"`
	User      string    `json:"user,omitempty"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment"`
	CreatedAt time.Time `json:"created_at"`
}

type ContactMessage struct {
	ID        int       `json:"id"`
	User      string    `json:"user"`
	Subject   string    `json:"subject"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// User is an account as listed for admins.
type User struct {
	ID            int        `json:"id"`
	Username      string     `json:"username"`
	Email         string     `json:"email"`
	IsVisitor     bool       `json:"is_visitor"`
	IsBusiness    bool       `json:"is_business"`
	IsAdmin       bool       `json:"is_admin"`
	IsActive      bool       `json:"is_active"`
	IsBannedUntil *time.Time `json:"is_banned_until"`
	IsApproved    bool       `json:"is_approved"`
}

// PendingApproval reports a business account waiting for an admin.
func (u User) PendingApproval() bool {
	return u.IsBusiness && !u.IsApproved
}

type DashboardStats struct {
	TotalUsers      int `json:"total_users"`
	TotalVisitors   int `json:"total_visitors"`
	TotalBusinesses int `json:"total_businesses"`
	TotalSales      int `json:"total_sales"`
	TotalFavorites  int `json:"total_favorites"`
	TotalPosts      int `json:"total_posts"`
}

// Message is the generic {"message": ...} acknowledgement.
type Message struct {
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}
