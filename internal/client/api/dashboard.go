package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/courseflow/courseflow/internal/models"
)

// UserDashboard returns the learner dashboard snapshot, falling back to an
// empty snapshot when the endpoint is unavailable.
func (c *Client) UserDashboard(ctx context.Context) (*models.DashboardStats, error) {
	var stats models.DashboardStats
	err := c.do(ctx, http.MethodGet, "/dashboard/user", nil, &stats)
	if errors.Is(err, ErrFeatureUnavailable) {
		return &models.DashboardStats{}, nil
	}
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

// AdminDashboard returns the admin dashboard snapshot.
func (c *Client) AdminDashboard(ctx context.Context) (*models.DashboardStats, error) {
	var stats models.DashboardStats
	if err := c.do(ctx, http.MethodGet, "/dashboard/admin", nil, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// ForceLogout terminates another user's active session (admin session
// operation).
func (c *Client) ForceLogout(ctx context.Context, userID string) error {
	return c.do(ctx, http.MethodPost, "/admin/force-logout", map[string]string{"userId": userID}, nil)
}
