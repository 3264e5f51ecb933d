package routes

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"shift-staffing-client/auth"
	"shift-staffing-client/middleware"
	"shift-staffing-client/models"
	ws "shift-staffing-client/websocket"
)

// APIPrefix is where the REST surface is mounted.
const APIPrefix = "/api"

// MockServer is an in-memory stand-in for the remote shift service. It
// implements the same REST surface for tests and local development.
type MockServer struct {
	mu     sync.Mutex
	issuer *auth.TokenIssuer
	hub    *ws.Hub
	logger *zap.Logger
	now    func() time.Time
	router *gin.Engine

	accounts      map[string]account
	departments   map[uint]models.Department
	nurses        map[uint]*models.Nurse
	shifts        []*models.Shift
	bookings      []*models.Booking
	swaps         []*models.SwapRequest
	notifications []*ownedNotification
	availability  map[uint][]models.NurseAvailability
	attendance    []*models.AttendanceRecord
	faults        map[string]*fault

	nextShiftID        uint
	nextAssignmentID   uint
	nextSwapID         uint
	nextNotificationID uint
	nextRecordID       uint

	hubCancel context.CancelFunc
}

type account struct {
	userID       uint
	nurseID      uint
	passwordHash string
}

type fault struct {
	status    int
	remaining int
}

type ownedNotification struct {
	userID uint
	models.Notification
}

type MockOptions struct {
	JWTSecret string
	TokenTTL  time.Duration
	// RateLimit is requests per second per client IP; zero disables it.
	RateLimit float64
	Logger    *zap.Logger
	Now       func() time.Time
}

// NewMockServer builds a seeded server. Call Start before serving push
// connections and Close when done.
func NewMockServer(opts MockOptions) *MockServer {
	if opts.JWTSecret == "" {
		opts.JWTSecret = "mock-staffing-secret"
	}
	if opts.TokenTTL <= 0 {
		opts.TokenTTL = time.Hour
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	s := &MockServer{
		issuer:       auth.NewTokenIssuer(opts.JWTSecret, opts.TokenTTL),
		hub:          ws.NewHub(opts.Logger),
		logger:       opts.Logger.Named("mock_server"),
		now:          opts.Now,
		accounts:     make(map[string]account),
		departments:  make(map[uint]models.Department),
		nurses:       make(map[uint]*models.Nurse),
		availability: make(map[uint][]models.NurseAvailability),
		faults:       make(map[string]*fault),
	}
	s.seed()
	s.router = s.newRouter(opts.RateLimit)
	return s
}

// Handler serves the REST and push endpoints.
func (s *MockServer) Handler() http.Handler {
	return s.router
}

// Issuer signs tokens the server accepts.
func (s *MockServer) Issuer() *auth.TokenIssuer {
	return s.issuer
}

// Hub exposes the push hub, mainly for tests.
func (s *MockServer) Hub() *ws.Hub {
	return s.hub
}

// Start runs the push hub in the background.
func (s *MockServer) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.mu.Lock()
	s.hubCancel = cancel
	s.mu.Unlock()
	go s.hub.Run(ctx)
}

// Close stops the push hub and waits for it to disconnect its clients.
func (s *MockServer) Close() {
	s.mu.Lock()
	cancel := s.hubCancel
	s.hubCancel = nil
	s.mu.Unlock()
	if cancel != nil {
		cancel()
		<-s.hub.Done()
	}
}

// FailNext makes the next n requests to the route answer with status.
// route is "METHOD /path/:param" as registered, without the API prefix.
func (s *MockServer) FailNext(route string, status, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults[route] = &fault{status: status, remaining: n}
}

func (s *MockServer) newRouter(rateLimit float64) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.RedirectTrailingSlash = false
	router.RedirectFixedPath = false

	router.Use(middleware.SecurityHeadersMiddleware())
	if rateLimit > 0 {
		rl := middleware.NewRateLimiter(rate.Limit(rateLimit), int(rateLimit*2)+1)
		router.Use(middleware.RateLimitMiddleware(rl, s.logger))
	}
	router.Use(middleware.CORSMiddleware())
	router.Use(middleware.AuditLogMiddleware(s.logger))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"message": "Mock shift service is running",
			"time":    s.now().UTC(),
		})
	})

	api := router.Group(APIPrefix)
	api.Use(s.faultMiddleware())
	api.POST("/auth/login", s.login)
	api.GET("/ws/notifications", middleware.WebSocketAuthMiddleware(s.issuer), s.serveNotifications)

	protected := api.Group("")
	protected.Use(middleware.AuthMiddleware(s.issuer))
	{
		protected.GET("/shifts", s.listShifts)
		protected.GET("/shifts/:id", s.getShift)
		protected.POST("/shifts/:id/apply", s.applyForShift)

		protected.GET("/bookings", s.listBookings)
		protected.POST("/bookings/:id/cancel", s.cancelBooking)

		protected.GET("/swap-requests", s.listSwapRequests)
		protected.POST("/swap-requests", s.createSwapRequest)
		protected.GET("/swap-requests/opportunities", s.listSwapOpportunities)
		protected.POST("/swap-requests/:id/accept", s.acceptSwapRequest)
		protected.POST("/swap-requests/:id/cancel", s.cancelSwapRequest)

		protected.GET("/notifications", s.listNotifications)
		protected.POST("/notifications/read-all", s.markAllNotificationsRead)
		protected.POST("/notifications/:id/read", s.markNotificationRead)

		protected.GET("/nurses", s.listNurses)
		protected.GET("/nurses/:id", s.getNurse)
		protected.PUT("/nurses/:id", s.updateNurse)
		protected.GET("/nurses/:id/availability", s.getAvailability)
		protected.PUT("/nurses/:id/availability", s.updateAvailability)

		protected.GET("/departments/:id", s.getDepartment)

		protected.POST("/attendance/clock-in", s.clockIn)
		protected.POST("/attendance/clock-out", s.clockOut)
		protected.GET("/attendance", s.listAttendance)
	}
	return router
}

// faultMiddleware answers with an injected failure when one is pending for
// the matched route.
func (s *MockServer) faultMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		route := c.Request.Method + " " + strings.TrimPrefix(c.FullPath(), APIPrefix)

		s.mu.Lock()
		status := 0
		if f, ok := s.faults[route]; ok && f.remaining > 0 {
			f.remaining--
			status = f.status
		}
		s.mu.Unlock()

		if status != 0 {
			respondError(c, status, "injected failure")
			c.Abort()
			return
		}
		c.Next()
	}
}

func (s *MockServer) serveNotifications(c *gin.Context) {
	userID := c.GetUint(middleware.ContextUserID)
	if err := ws.ServeWebSocket(s.hub, c.Writer, c.Request, userID); err != nil {
		s.logger.Debug("push connection not served", zap.Error(err))
	}
}

// PushNotification stores a notification for userID and pushes it to the
// user's open connections.
func (s *MockServer) PushNotification(userID uint, n models.Notification) models.Notification {
	s.mu.Lock()
	n = s.addNotificationLocked(userID, n)
	s.mu.Unlock()

	s.hub.Publish(userID, ws.TypeNotification, n)
	return n
}

func (s *MockServer) addNotificationLocked(userID uint, n models.Notification) models.Notification {
	s.nextNotificationID++
	n.NotificationID = s.nextNotificationID
	if n.SentAt.IsZero() {
		n.SentAt = s.now().UTC()
	}
	if n.Priority == "" {
		n.Priority = models.PriorityMedium
	}
	s.notifications = append(s.notifications, &ownedNotification{userID: userID, Notification: n})
	return n
}

func (s *MockServer) userForNurse(nurseID uint) uint {
	if n, ok := s.nurses[nurseID]; ok {
		return n.User.UserID
	}
	return 0
}
