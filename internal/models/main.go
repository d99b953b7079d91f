// Package models defines the core data structures shared by the API client,
// the local store, and the realtime layer.
package models

import "time"

// DeviceInfo is a best-effort device identity snapshot attached to login and
// session-validation requests. It is a weak secondary signal for the server's
// device policy, not a security boundary.
type DeviceInfo struct {
	// UserAgent identifies the client binary and its version.
	UserAgent string `json:"userAgent"`
	// Platform is the operating system family (linux, darwin, windows).
	Platform string `json:"platform"`
	// Arch is the CPU architecture the client runs on.
	Arch string `json:"arch"`
	// Hostname is the local machine name.
	Hostname string `json:"hostname"`
	// CPUCount is the number of logical CPUs.
	CPUCount string `json:"cpuCount"`
	// Timezone is the local IANA timezone name or offset.
	Timezone string `json:"timezone"`
	// Language is the host locale.
	Language string `json:"language"`
	// MachineID is a hardware/installation identifier when one is readable.
	MachineID string `json:"machineId"`
	// Hash is a SHA-256 digest over all other fields, used to compare
	// devices without inspecting individual signals.
	Hash string `json:"hash"`
}

// SessionInfo mirrors the server-owned session record for the lifetime of a
// login. It is discarded on logout or detected expiry.
type SessionInfo struct {
	// Token is the opaque bearer token issued by the auth endpoint.
	Token string `json:"token"`
	// UserID identifies the logged in account.
	UserID string `json:"userId"`
	// Role is the account role (student, admin).
	Role string `json:"role"`
	// Device is the fingerprint sent with the login request.
	Device DeviceInfo `json:"device"`
	// LoginAt is the client-side login timestamp.
	LoginAt time.Time `json:"loginAt"`
}

// Course is a catalog entry as served by the backend.
type Course struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Description string  `json:"description,omitempty"`
	Price       float64 `json:"price"`
	// LessonCount is the fixed number of lessons used when recomputing
	// enrollment progress percentages.
	LessonCount int       `json:"lessonCount"`
	Published   bool      `json:"published"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// CartItem is a guest-mode mirror of a server cart entry.
type CartItem struct {
	CourseID string    `json:"courseId"`
	Title    string    `json:"title"`
	Price    float64   `json:"price"`
	AddedAt  time.Time `json:"addedAt"`
}

// Enrollment is a guest-mode mirror of a server enrollment, tracking lesson
// completion entirely client side.
type Enrollment struct {
	CourseID string `json:"courseId"`
	Title    string `json:"title"`
	// LessonsCompleted holds ids of lessons the learner finished.
	LessonsCompleted []string `json:"lessonsCompleted"`
	// LessonCount is the course's fixed lesson count; Progress is derived
	// from it.
	LessonCount int `json:"lessonCount"`
	// Progress is the completion percentage, recomputed on every lesson
	// completion.
	Progress   int       `json:"progress"`
	EnrolledAt time.Time `json:"enrolledAt"`
}

// Severity grades a pushed notification; it selects the urgency and display
// duration of the transient notice shown to the user.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeveritySuccess  Severity = "success"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Notification is a server push or locally generated transient notice.
type Notification struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
	// Read marks server-side notifications acknowledged by the user.
	Read      bool      `json:"read,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// DashboardStats is the aggregate snapshot pushed on dashboard-update and
// live-stats events and returned by the dashboard endpoints.
type DashboardStats struct {
	ActiveUsers    int     `json:"activeUsers"`
	TotalCourses   int     `json:"totalCourses"`
	Enrollments    int     `json:"enrollments"`
	Revenue        float64 `json:"revenue"`
	PendingPayouts float64 `json:"pendingPayouts,omitempty"`
}

// Payment is a checkout record as returned by the payments endpoints and the
// payment-success/payment-failed push events.
type Payment struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	CourseIDs []string  `json:"courseIds"`
	Amount    float64   `json:"amount"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}
