package mockstore

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Veraticus/online-status/pkg/logging"
	"github.com/Veraticus/online-status/pkg/presence"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// DefaultOnlineTimeout is two missed heartbeats at the client's default interval.
const DefaultOnlineTimeout = 120 * time.Second

// DefaultFlipProbability matches the demo backend.
const DefaultFlipProbability = 0.5

var (
	errMissingStore         = errors.New("store dependency required")
	errInvalidAuthorization = errors.New("authorization header missing or invalid")
)

// Options configures the HTTP handler.
type Options struct {
	// Token is the shared bearer token. Empty disables the check.
	Token string
	// OnlineTimeout marks a user offline once their last heartbeat is older.
	OnlineTimeout time.Duration
	// Mock seeds demo friends that flip state on each fetch.
	Mock bool
	// FlipProbability is the chance, per fetch, that each demo friend flips.
	FlipProbability float64
	// Seed makes flips deterministic. Zero seeds from the clock.
	Seed   int64
	Logger *zap.Logger
	// Clock defaults to time.Now.
	Clock func() time.Time
}

// NewHTTPHandler builds the gin router serving the presence store contract
// and its debug endpoints.
func NewHTTPHandler(store *Store, opts Options) (http.Handler, error) {
	if store == nil {
		return nil, errMissingStore
	}

	handler := newHandler(store, opts)
	if opts.Mock {
		if err := store.SeedMock(context.Background(), handler.now()); err != nil {
			return nil, fmt.Errorf("failed to seed mock friends: %w", err)
		}
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))

	router.GET("/healthz", handler.handleHealth)

	protected := router.Group("/")
	protected.Use(handler.authorizeRequest)
	protected.GET("/online_status/", handler.handleOnlineStatus)
	protected.POST("/heartbeat/", handler.handleHeartbeat)

	debug := protected.Group("/debug")
	debug.GET("/users", handler.handleDebugUsers)
	debug.POST("/clear_users", handler.handleClearUsers)
	debug.POST("/simulate_offline/:uuid", handler.handleSimulate(activityOffline))
	debug.POST("/simulate_idle/:uuid", handler.handleSimulate(string(presence.ActivityIdle)))
	debug.POST("/simulate_active/:uuid", handler.handleSimulate(string(presence.ActivityOnline)))
	debug.POST("/set_mock_mode/:enabled", handler.handleSetMockMode)

	return router, nil
}

type httpHandler struct {
	store   *Store
	token   string
	timeout time.Duration
	flip    float64
	logger  *zap.Logger
	now     func() time.Time

	mu   sync.Mutex
	mock bool
	rng  *rand.Rand
}

func newHandler(store *Store, opts Options) *httpHandler {
	timeout := opts.OnlineTimeout
	if timeout <= 0 {
		timeout = DefaultOnlineTimeout
	}
	flip := opts.FlipProbability
	if flip < 0 {
		flip = 0
	}
	if flip > 1 {
		flip = 1
	}
	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	now := opts.Clock
	if now == nil {
		now = time.Now
	}

	return &httpHandler{
		store:   store,
		token:   strings.TrimSpace(opts.Token),
		timeout: timeout,
		flip:    flip,
		logger:  logging.OrNop(opts.Logger),
		now:     now,
		mock:    opts.Mock,
		// #nosec G404 - demo state flips, not security sensitive
		rng: rand.New(rand.NewSource(seed)),
	}
}

type friendPayload struct {
	Identity string `json:"identity"`
	Name     string `json:"name"`
	State    string `json:"state"`
	LastSeen string `json:"last_seen"`
}

type onlineStatusResponse struct {
	Friends []friendPayload `json:"friends"`
}

type heartbeatPayload struct {
	UUID          string `json:"uuid"`
	Name          string `json:"name"`
	ActivityState string `json:"activity_state"`
}

type debugUserPayload struct {
	UUID           string `json:"uuid"`
	Name           string `json:"name"`
	ActivityState  string `json:"activity_state"`
	EffectiveState string `json:"effective_state"`
	LastSeen       string `json:"last_seen"`
	ElapsedSeconds int64  `json:"elapsed_seconds"`
	Mock           bool   `json:"mock"`
}

type debugUsersResponse struct {
	TotalUsers           int                `json:"total_users"`
	UseMockData          bool               `json:"use_mock_data"`
	OnlineTimeoutSeconds int64              `json:"online_timeout_seconds"`
	Users                []debugUserPayload `json:"users"`
}

func (h *httpHandler) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *httpHandler) handleOnlineStatus(c *gin.Context) {
	h.mu.Lock()
	defer h.mu.Unlock()

	now := h.now()
	if h.mock {
		if err := h.flipMock(c.Request.Context(), now); err != nil {
			h.logger.Error("failed to flip mock friends", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "store_failed"})
			return
		}
	}

	users, err := h.store.Users(c.Request.Context())
	if err != nil {
		h.logger.Error("failed to list users", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "store_failed"})
		return
	}

	response := onlineStatusResponse{Friends: make([]friendPayload, 0, len(users))}
	for _, u := range users {
		response.Friends = append(response.Friends, friendPayload{
			Identity: u.UUID,
			Name:     u.Name,
			State:    string(u.EffectiveState(now, h.timeout)),
			LastSeen: formatTime(u.LastSeen),
		})
	}
	c.JSON(http.StatusOK, response)
}

// flipMock toggles each demo friend between online and offline with
// probability h.flip. Callers hold h.mu.
func (h *httpHandler) flipMock(ctx context.Context, now time.Time) error {
	users, err := h.store.Users(ctx)
	if err != nil {
		return err
	}
	for _, u := range users {
		if !u.Mock || h.rng.Float64() >= h.flip {
			continue
		}
		activity, lastSeen := string(presence.ActivityOnline), now
		if u.EffectiveState(now, h.timeout).Reachable() {
			activity = activityOffline
			lastSeen = now.Add(-time.Duration(1+h.rng.Intn(60)) * time.Minute)
		}
		if err := h.store.SetActivity(ctx, u.UUID, activity, lastSeen); err != nil {
			return err
		}
	}
	return nil
}

func (h *httpHandler) handleHeartbeat(c *gin.Context) {
	var request heartbeatPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "invalid_request"})
		return
	}
	if strings.TrimSpace(request.UUID) == "" || strings.TrimSpace(request.Name) == "" {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "uuid and name are required"})
		return
	}

	activity := presence.ActivityUnknown
	if strings.TrimSpace(request.ActivityState) != "" {
		parsed, ok := presence.ParseActivity(request.ActivityState)
		if !ok {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "invalid activity_state"})
			return
		}
		activity = parsed
	}

	hb := presence.Heartbeat{UUID: request.UUID, Name: request.Name, ActivityState: activity}
	if err := h.store.RecordHeartbeat(c.Request.Context(), hb, h.now()); err != nil {
		h.logger.Error("failed to record heartbeat", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "store_failed"})
		return
	}

	h.logger.Debug("heartbeat recorded", zap.String("uuid", hb.UUID), zap.String("activity", string(activity)))
	c.JSON(http.StatusOK, gin.H{"status": "ok", "uuid": strings.TrimSpace(hb.UUID), "activity_state": string(activity)})
}

func (h *httpHandler) handleDebugUsers(c *gin.Context) {
	users, err := h.store.Users(c.Request.Context())
	if err != nil {
		h.logger.Error("failed to list users", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "store_failed"})
		return
	}

	h.mu.Lock()
	mock := h.mock
	h.mu.Unlock()

	now := h.now()
	response := debugUsersResponse{
		TotalUsers:           len(users),
		UseMockData:          mock,
		OnlineTimeoutSeconds: int64(h.timeout / time.Second),
		Users:                make([]debugUserPayload, 0, len(users)),
	}
	for _, u := range users {
		response.Users = append(response.Users, debugUserPayload{
			UUID:           u.UUID,
			Name:           u.Name,
			ActivityState:  u.ActivityState,
			EffectiveState: string(u.EffectiveState(now, h.timeout)),
			LastSeen:       formatTime(u.LastSeen),
			ElapsedSeconds: int64(now.Sub(u.LastSeen) / time.Second),
			Mock:           u.Mock,
		})
	}
	c.JSON(http.StatusOK, response)
}

func (h *httpHandler) handleClearUsers(c *gin.Context) {
	removed, err := h.store.Clear(c.Request.Context())
	if err != nil {
		h.logger.Error("failed to clear users", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "store_failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": fmt.Sprintf("Cleared %d users", removed)})
}

func (h *httpHandler) handleSimulate(activity string) gin.HandlerFunc {
	return func(c *gin.Context) {
		uuid := c.Param("uuid")
		now := h.now()
		lastSeen := now
		if activity == activityOffline {
			// Push past the timeout so real users read offline too.
			lastSeen = now.Add(-2 * h.timeout)
		}

		err := h.store.SetActivity(c.Request.Context(), uuid, activity, lastSeen)
		if errors.Is(err, ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "user_not_found"})
			return
		}
		if err != nil {
			h.logger.Error("failed to update user", zap.String("uuid", uuid), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "store_failed"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": fmt.Sprintf("User %s is now %s", uuid, activity)})
	}
}

func (h *httpHandler) handleSetMockMode(c *gin.Context) {
	enabled, err := strconv.ParseBool(c.Param("enabled"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if enabled {
		err = h.store.SeedMock(c.Request.Context(), h.now())
	} else {
		err = h.store.RemoveMock(c.Request.Context())
	}
	if err != nil {
		h.logger.Error("failed to switch mock mode", zap.Bool("enabled", enabled), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "store_failed"})
		return
	}
	h.mock = enabled
	c.JSON(http.StatusOK, gin.H{"use_mock_data": enabled})
}

func (h *httpHandler) authorizeRequest(c *gin.Context) {
	if h.token == "" {
		c.Next()
		return
	}
	header := c.GetHeader("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errInvalidAuthorization.Error()})
		return
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if subtle.ConstantTimeCompare([]byte(token), []byte(h.token)) != 1 {
		h.logger.Warn("rejected bearer token", zap.String("path", c.FullPath()))
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	c.Next()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
