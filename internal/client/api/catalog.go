package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/courseflow/courseflow/internal/models"
)

// sampleCourses backs the catalog when the backend does not serve one, so
// the storefront always shows something.
var sampleCourses = []models.Course{
	{ID: "sample-go", Title: "Go from Scratch", Price: 49, LessonCount: 12, Published: true},
	{ID: "sample-sql", Title: "Practical SQL", Price: 39, LessonCount: 10, Published: true},
	{ID: "sample-web", Title: "Web Fundamentals", Price: 29, LessonCount: 8, Published: true},
}

// Courses lists the catalog. When the endpoint is unavailable the sample
// catalog is returned instead of an error.
func (c *Client) Courses(ctx context.Context) ([]models.Course, error) {
	var courses []models.Course
	err := c.do(ctx, http.MethodGet, "/courses", nil, &courses)
	if errors.Is(err, ErrFeatureUnavailable) {
		return sampleCourses, nil
	}
	if err != nil {
		return nil, err
	}
	return courses, nil
}

// Course fetches a single catalog entry.
func (c *Client) Course(ctx context.Context, id string) (*models.Course, error) {
	var course models.Course
	if err := c.do(ctx, http.MethodGet, "/courses/"+id, nil, &course); err != nil {
		return nil, err
	}
	return &course, nil
}

// CreateCourse adds a catalog entry (admin).
func (c *Client) CreateCourse(ctx context.Context, course models.Course) (*models.Course, error) {
	var created models.Course
	if err := c.do(ctx, http.MethodPost, "/courses", course, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// UpdateCourse replaces a catalog entry (admin).
func (c *Client) UpdateCourse(ctx context.Context, course models.Course) error {
	return c.do(ctx, http.MethodPut, "/courses/"+course.ID, course, nil)
}

// DeleteCourse removes a catalog entry (admin).
func (c *Client) DeleteCourse(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/courses/"+id, nil, nil)
}

// SetCourseExpiry sets the access-expiry date on a course for a user
// (admin session operation).
func (c *Client) SetCourseExpiry(ctx context.Context, courseID, userID string, expiresAt time.Time) error {
	payload := map[string]any{"userId": userID, "expiresAt": expiresAt}
	return c.do(ctx, http.MethodPost, "/courses/"+courseID+"/expiry", payload, nil)
}
