package store

import (
	"time"

	"github.com/courseflow/courseflow/internal/models"
)

// Storage keys for guest commerce state.
const (
	cartKey        = "localCart"
	enrollmentsKey = "localEnrolledCourses"
)

// Commerce is the guest-mode fallback for cart and enrollment state. It lets
// an unauthenticated visitor accumulate a cart and enroll in courses entirely
// client side, degrading gracefully without a backend session.
type Commerce struct {
	store *Store
	now   func() time.Time
}

// NewCommerce wraps the store with guest commerce operations.
func NewCommerce(s *Store) *Commerce {
	return &Commerce{store: s, now: time.Now}
}

// Cart returns the guest cart, empty when no cart exists.
func (c *Commerce) Cart() ([]models.CartItem, error) {
	var items []models.CartItem
	if _, err := c.store.Get(cartKey, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// AddToCart appends the course unless an item with the same id is already
// present.
func (c *Commerce) AddToCart(course models.Course) error {
	return Update(c.store, cartKey, func(items []models.CartItem) ([]models.CartItem, bool) {
		for _, it := range items {
			if it.CourseID == course.ID {
				return items, false
			}
		}
		return append(items, models.CartItem{
			CourseID: course.ID,
			Title:    course.Title,
			Price:    course.Price,
			AddedAt:  c.now(),
		}), false
	})
}

// RemoveFromCart filters out the item with the given course id.
func (c *Commerce) RemoveFromCart(courseID string) error {
	return Update(c.store, cartKey, func(items []models.CartItem) ([]models.CartItem, bool) {
		kept := items[:0]
		for _, it := range items {
			if it.CourseID != courseID {
				kept = append(kept, it)
			}
		}
		return kept, false
	})
}

// ClearCart removes the cart key entirely.
func (c *Commerce) ClearCart() error {
	return c.store.Delete(cartKey)
}

// Enrollments returns the guest enrollments, empty when none exist.
func (c *Commerce) Enrollments() ([]models.Enrollment, error) {
	var enrs []models.Enrollment
	if _, err := c.store.Get(enrollmentsKey, &enrs); err != nil {
		return nil, err
	}
	return enrs, nil
}

// Enroll records a guest enrollment at zero progress unless one already
// exists for the course.
func (c *Commerce) Enroll(course models.Course) error {
	return Update(c.store, enrollmentsKey, func(enrs []models.Enrollment) ([]models.Enrollment, bool) {
		for _, e := range enrs {
			if e.CourseID == course.ID {
				return enrs, false
			}
		}
		return append(enrs, models.Enrollment{
			CourseID:    course.ID,
			Title:       course.Title,
			LessonCount: course.LessonCount,
			Progress:    0,
			EnrolledAt:  c.now(),
		}), false
	})
}

// CompleteLesson marks lessonID finished on the enrollment for courseID and
// recomputes its progress percentage from the completed-lesson set and the
// fixed lesson count. Other enrollments are untouched; completing the same
// lesson twice has no effect.
func (c *Commerce) CompleteLesson(courseID, lessonID string) error {
	return Update(c.store, enrollmentsKey, func(enrs []models.Enrollment) ([]models.Enrollment, bool) {
		for i, e := range enrs {
			if e.CourseID != courseID {
				continue
			}
			for _, done := range e.LessonsCompleted {
				if done == lessonID {
					return enrs, false
				}
			}
			e.LessonsCompleted = append(e.LessonsCompleted, lessonID)
			if e.LessonCount > 0 {
				e.Progress = len(e.LessonsCompleted) * 100 / e.LessonCount
				if e.Progress > 100 {
					e.Progress = 100
				}
			}
			enrs[i] = e
			return enrs, false
		}
		return enrs, false
	})
}

// Checkout converts the guest cart into enrollments: the cart is cleared
// first, then one enrollment per cart item is written at zero progress.
// There is no rollback between the two steps; a crash after the clear loses
// the cart without recording the enrollments.
func (c *Commerce) Checkout(catalog map[string]models.Course) ([]models.Enrollment, error) {
	items, err := c.Cart()
	if err != nil {
		return nil, err
	}
	if err := c.ClearCart(); err != nil {
		return nil, err
	}

	var created []models.Enrollment
	err = Update(c.store, enrollmentsKey, func(enrs []models.Enrollment) ([]models.Enrollment, bool) {
	next:
		for _, it := range items {
			for _, e := range enrs {
				if e.CourseID == it.CourseID {
					continue next
				}
			}
			enr := models.Enrollment{
				CourseID:   it.CourseID,
				Title:      it.Title,
				Progress:   0,
				EnrolledAt: c.now(),
			}
			if course, ok := catalog[it.CourseID]; ok {
				enr.LessonCount = course.LessonCount
			}
			enrs = append(enrs, enr)
			created = append(created, enr)
		}
		return enrs, false
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}
