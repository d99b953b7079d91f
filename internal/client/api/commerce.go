package api

import (
	"context"
	"net/http"

	"github.com/courseflow/courseflow/internal/models"
)

// Cart returns the server-side cart for the logged in user.
func (c *Client) Cart(ctx context.Context) ([]models.CartItem, error) {
	var items []models.CartItem
	if err := c.do(ctx, http.MethodGet, "/cart", nil, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// AddToCart puts a course in the server-side cart.
func (c *Client) AddToCart(ctx context.Context, courseID string) error {
	return c.do(ctx, http.MethodPost, "/cart", map[string]string{"courseId": courseID}, nil)
}

// RemoveFromCart removes a course from the server-side cart.
func (c *Client) RemoveFromCart(ctx context.Context, courseID string) error {
	return c.do(ctx, http.MethodDelete, "/cart/"+courseID, nil, nil)
}

// ClearCart empties the server-side cart.
func (c *Client) ClearCart(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, "/cart", nil, nil)
}

// Enrollments lists the user's enrollments.
func (c *Client) Enrollments(ctx context.Context) ([]models.Enrollment, error) {
	var enrs []models.Enrollment
	if err := c.do(ctx, http.MethodGet, "/enrollments", nil, &enrs); err != nil {
		return nil, err
	}
	return enrs, nil
}

// Enroll enrolls the user in a course.
func (c *Client) Enroll(ctx context.Context, courseID string) error {
	return c.do(ctx, http.MethodPost, "/enrollments", map[string]string{"courseId": courseID}, nil)
}

// UpdateProgress records a completed lesson on a server-side enrollment.
func (c *Client) UpdateProgress(ctx context.Context, courseID, lessonID string) error {
	payload := map[string]string{"lessonId": lessonID}
	return c.do(ctx, http.MethodPut, "/enrollments/"+courseID+"/progress", payload, nil)
}

// Checkout pays for the current cart and returns the payment record.
func (c *Client) Checkout(ctx context.Context) (*models.Payment, error) {
	var p models.Payment
	if err := c.do(ctx, http.MethodPost, "/payments/checkout", nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Payments lists the user's payment history.
func (c *Client) Payments(ctx context.Context) ([]models.Payment, error) {
	var ps []models.Payment
	if err := c.do(ctx, http.MethodGet, "/payments", nil, &ps); err != nil {
		return nil, err
	}
	return ps, nil
}
