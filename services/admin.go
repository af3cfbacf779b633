package services

import (
	"context"

	"github.com/upb/jaffa-explorer/client"
	"github.com/upb/jaffa-explorer/session"
)

// AdminService covers moderation. Every call is bound to the admin slot.
type AdminService struct{ base }

// Users lists every account.
func (s *AdminService) Users(ctx context.Context) ([]User, error) {
	var out []User
	if _, err := s.as(ctx, session.RoleAdmin, get("admin/users/"), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Ban suspends an account for 30 days.
func (s *AdminService) Ban(ctx context.Context, userID int) (*Message, error) {
	return s.action(ctx, post("admin/users/"+id(userID)+"/ban/", nil))
}

func (s *AdminService) Unban(ctx context.Context, userID int) (*Message, error) {
	return s.action(ctx, post("admin/users/"+id(userID)+"/unban/", nil))
}

func (s *AdminService) DeleteUser(ctx context.Context, userID int) (*Message, error) {
	return s.action(ctx, del("admin/users/"+id(userID)+"/delete/"))
}

// ApproveBusiness lets a pending business log in.
func (s *AdminService) ApproveBusiness(ctx context.Context, userID int) (*Message, error) {
	return s.action(ctx, post("admin/business/"+id(userID)+"/approve/", nil))
}

// DeclineBusiness rejects and deletes a pending business.
func (s *AdminService) DeclineBusiness(ctx context.Context, userID int) (*Message, error) {
	return s.action(ctx, post("admin/business/"+id(userID)+"/decline/", nil))
}

func (s *AdminService) ContactMessages(ctx context.Context) ([]ContactMessage, error) {
	var out []ContactMessage
	if _, err := s.as(ctx, session.RoleAdmin, get("admin/contact-messages/"), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *AdminService) DeleteContactMessage(ctx context.Context, messageID int) (*Message, error) {
	return s.action(ctx, del("admin/contact-messages/"+id(messageID)+"/delete/"))
}

// ReportedPosts lists open reports with the reported post attached.
func (s *AdminService) ReportedPosts(ctx context.Context) ([]Report, error) {
	var out []Report
	if _, err := s.as(ctx, session.RoleAdmin, get("admin/reported-posts/"), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteReportedPost removes a post together with its reports.
func (s *AdminService) DeleteReportedPost(ctx context.Context, postID int) (*Message, error) {
	return s.action(ctx, del("admin/reported-posts/"+id(postID)+"/delete-post/"))
}

// IgnoreReport dismisses a report and keeps the post.
func (s *AdminService) IgnoreReport(ctx context.Context, reportID int) (*Message, error) {
	return s.action(ctx, del("admin/reported-posts/"+id(reportID)+"/ignore/"))
}

func (s *AdminService) DeletePost(ctx context.Context, postID int) (*Message, error) {
	return s.action(ctx, del("admin/posts/"+id(postID)+"/delete/"))
}

// Dashboard returns site-wide counters.
func (s *AdminService) Dashboard(ctx context.Context) (*DashboardStats, error) {
	var out DashboardStats
	if _, err := s.as(ctx, session.RoleAdmin, get("admin-dashboard/"), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *AdminService) action(ctx context.Context, req *client.Request) (*Message, error) {
	var out Message
	if _, err := s.as(ctx, session.RoleAdmin, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
