package routes

import (
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"shift-staffing-client/middleware"
	"shift-staffing-client/models"
)

func (s *MockServer) listNotifications(c *gin.Context) {
	userID := c.GetUint(middleware.ContextUserID)
	unreadOnly := c.Query("unread_only") == "true"
	priority := models.NotificationPriority(c.Query("priority"))
	category := c.Query("category")

	s.mu.Lock()
	out := make([]models.Notification, 0)
	for _, n := range s.notifications {
		switch {
		case n.userID != userID:
			continue
		case unreadOnly && n.IsRead:
			continue
		case priority != "" && n.Priority != priority:
			continue
		case category != "" && n.Category != category:
			continue
		}
		out = append(out, n.Notification)
	}
	s.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].SentAt.After(out[j].SentAt)
	})
	respondPage(c, out)
}

func (s *MockServer) markNotificationRead(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	userID := c.GetUint(middleware.ContextUserID)

	s.mu.Lock()
	var found *ownedNotification
	for _, n := range s.notifications {
		if n.NotificationID == id && n.userID == userID {
			found = n
			break
		}
	}
	if found != nil && !found.IsRead {
		now := s.now().UTC()
		found.IsRead = true
		found.ReadAt = &now
	}
	s.mu.Unlock()

	if found == nil {
		respondError(c, http.StatusNotFound, "Notification not found")
		return
	}
	respondMessage(c, "Notification marked as read")
}

// markAllNotificationsRead marks the caller's notifications read. The
// category "urgent" selects by priority rather than category.
func (s *MockServer) markAllNotificationsRead(c *gin.Context) {
	userID := c.GetUint(middleware.ContextUserID)

	var req models.MarkAllReadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request data", fieldError("body", err.Error()))
		return
	}
	if req.UserID != 0 && req.UserID != userID {
		respondError(c, http.StatusForbidden, "Cannot modify another user's notifications")
		return
	}

	s.mu.Lock()
	now := s.now().UTC()
	marked := 0
	for _, n := range s.notifications {
		if n.userID != userID || n.IsRead {
			continue
		}
		if req.Category != "" && n.Category != req.Category &&
			!(req.Category == string(models.PriorityUrgent) && n.IsUrgent()) {
			continue
		}
		n.IsRead = true
		n.ReadAt = &now
		marked++
	}
	s.mu.Unlock()

	s.logger.Debug("notifications marked read", zap.Uint("user_id", userID), zap.Int("count", marked))
	respondMessage(c, "Notifications marked as read")
}
