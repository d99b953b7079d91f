package realtime

import "encoding/json"

// Client-to-server events.
const (
	EventAuthenticate         = "authenticate"
	EventJoinRoom             = "join-room"
	EventHeartbeat            = "heartbeat"
	EventUpdateProgress       = "update-progress"
	EventMarkNotificationRead = "mark-notification-read"
	EventAdminAction          = "admin-action"
	EventSendUserNotification = "send-user-notification"
	EventSendRoleNotification = "send-role-notification"
	EventBroadcastAnnounce    = "broadcast-announcement"
)

// Server-to-client events.
const (
	EventAuthenticated      = "authenticated"
	EventAuthError          = "auth-error"
	EventNewNotification    = "new-notification"
	EventCourseCreated      = "course-created"
	EventCourseUpdated      = "course-updated"
	EventCourseDeleted      = "course-deleted"
	EventCartUpdated        = "cart-updated"
	EventProgressUpdated    = "progress-updated"
	EventSystemAnnouncement = "system-announcement"
	EventPaymentSuccess     = "payment-success"
	EventPaymentFailed      = "payment-failed"
	EventDashboardUpdate    = "dashboard-update"
	EventLiveStats          = "live-stats"
)

// frame is the wire format: one JSON object per message.
type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// pushTitles names the transient notice raised for each server push.
var pushTitles = map[string]string{
	EventNewNotification:    "New notification",
	EventCourseCreated:      "Course added",
	EventCourseUpdated:      "Course updated",
	EventCourseDeleted:      "Course removed",
	EventCartUpdated:        "Cart updated",
	EventProgressUpdated:    "Progress saved",
	EventSystemAnnouncement: "Announcement",
	EventPaymentSuccess:     "Payment received",
	EventPaymentFailed:      "Payment failed",
	EventDashboardUpdate:    "Dashboard updated",
	EventLiveStats:          "Live stats",
}

// AdminAction is the discriminated payload for management operations
// performed over the socket instead of REST.
type AdminAction struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}
