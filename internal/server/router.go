package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/terraguardian/core/internal/awards"
	"github.com/terraguardian/core/internal/intake"
	"github.com/terraguardian/core/internal/quests"
	"github.com/terraguardian/core/internal/users"
	"go.uber.org/zap"
)

const userIDContextKey = "terra_user_id"

var (
	errMissingTokenManager  = errors.New("token manager dependency required")
	errMissingIntakeService = errors.New("intake service dependency required")
	errMissingActivityStore = errors.New("activity store dependency required")
	errMissingUserService   = errors.New("user service dependency required")
	errMissingQuestService  = errors.New("quest service dependency required")
	errInvalidAuthorization = errors.New("authorization header missing or invalid")
)

// TokenManager issues and validates bearer tokens for per-user routes.
type TokenManager interface {
	IssueToken(ctx context.Context, subject string) (string, int64, error)
	ValidateToken(token string) (string, error)
}

// Dependencies wires the HTTP layer to the domain services.
type Dependencies struct {
	TokenManager  TokenManager
	IntakeService *intake.Service
	ActivityStore *intake.ActivityStore
	UserService   *users.Service
	QuestService  *quests.Service
	ProvisionKey  string
	Logger        *zap.Logger
}

// NewHTTPHandler builds the API router.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.TokenManager == nil {
		return nil, errMissingTokenManager
	}
	if deps.IntakeService == nil {
		return nil, errMissingIntakeService
	}
	if deps.ActivityStore == nil {
		return nil, errMissingActivityStore
	}
	if deps.UserService == nil {
		return nil, errMissingUserService
	}
	if deps.QuestService == nil {
		return nil, errMissingQuestService
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Provision-Key"},
		MaxAge:       12 * time.Hour,
	}))

	handler := &httpHandler{
		tokens:       deps.TokenManager,
		intake:       deps.IntakeService,
		activity:     deps.ActivityStore,
		users:        deps.UserService,
		quests:       deps.QuestService,
		provisionKey: deps.ProvisionKey,
		logger:       logger,
		badgeTypes:   knownBadgeTypes(),
	}

	router.POST("/auth/token", handler.handleIssueToken)
	router.GET("/quests", handler.handleListQuests)
	router.GET("/leaderboard", handler.handleLeaderboard)

	protected := router.Group("/")
	protected.Use(handler.authorizeRequest)
	protected.POST("/submissions", handler.handleSubmission)
	protected.POST("/actions", handler.handleAction)
	protected.POST("/badges", handler.handleGrantBadge)
	protected.GET("/users/me", handler.handleCurrentUser)
	protected.GET("/users/me/snapshot", handler.handleSnapshot)
	protected.GET("/users/me/badges", handler.handleListBadges)
	protected.GET("/users/me/submissions", handler.handleListSubmissions)

	return router, nil
}

type httpHandler struct {
	tokens       TokenManager
	intake       *intake.Service
	activity     *intake.ActivityStore
	users        *users.Service
	quests       *quests.Service
	provisionKey string
	logger       *zap.Logger
	badgeTypes   map[awards.BadgeType]struct{}
}

func knownBadgeTypes() map[awards.BadgeType]struct{} {
	known := make(map[awards.BadgeType]struct{})
	for _, rule := range awards.DefaultRules() {
		known[rule.Badge] = struct{}{}
	}
	return known
}

func (h *httpHandler) authorizeRequest(c *gin.Context) {
	header := c.GetHeader("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		h.logger.Debug("request missing bearer token", zap.Error(errInvalidAuthorization))
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	subject, err := h.tokens.ValidateToken(strings.TrimPrefix(header, "Bearer "))
	if err != nil {
		h.logger.Debug("bearer token rejected", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	c.Set(userIDContextKey, subject)
	c.Next()
}

func (h *httpHandler) requestUserID(c *gin.Context) (string, bool) {
	value, ok := c.Get(userIDContextKey)
	if !ok {
		return "", false
	}
	subject, ok := value.(string)
	return subject, ok && subject != ""
}

type issueTokenPayload struct {
	UserID string `json:"user_id"`
}

type tokenResponsePayload struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

func (h *httpHandler) handleIssueToken(c *gin.Context) {
	if h.provisionKey == "" || c.GetHeader("X-Provision-Key") != h.provisionKey {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	var request issueTokenPayload
	if err := c.ShouldBindJSON(&request); err != nil || strings.TrimSpace(request.UserID) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	userID := strings.TrimSpace(request.UserID)
	if _, err := h.users.Bootstrap(c.Request.Context(), userID); err != nil {
		h.logger.Error("user bootstrap failed", zap.String("user_id", userID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "bootstrap_failed"})
		return
	}
	token, expiresIn, err := h.tokens.IssueToken(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("token issuance failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token_issue_failed"})
		return
	}
	c.JSON(http.StatusOK, tokenResponsePayload{
		AccessToken: token,
		ExpiresIn:   expiresIn,
		TokenType:   "Bearer",
	})
}

type locationPayload struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type submissionRequestPayload struct {
	ClientSubmissionID string           `json:"client_submission_id"`
	QuestID            string           `json:"quest_id"`
	PhotoRef           string           `json:"photo_ref"`
	Location           *locationPayload `json:"location"`
}

type validationPayload struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	Passed     bool    `json:"passed"`
}

type submissionResponsePayload struct {
	SubmissionID string            `json:"submission_id"`
	Duplicate    bool              `json:"duplicate"`
	Validation   validationPayload `json:"validation"`
	PointsEarned int               `json:"points_earned"`
}

func (h *httpHandler) handleSubmission(c *gin.Context) {
	userID, ok := h.requestUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	var request submissionRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil ||
		strings.TrimSpace(request.ClientSubmissionID) == "" ||
		strings.TrimSpace(request.QuestID) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	intakeRequest := intake.Request{
		SubmissionID: strings.TrimSpace(request.ClientSubmissionID),
		UserID:       userID,
		QuestID:      strings.TrimSpace(request.QuestID),
		PhotoRef:     request.PhotoRef,
	}
	if request.Location != nil {
		lat, lng := request.Location.Lat, request.Location.Lng
		intakeRequest.LocationLat = &lat
		intakeRequest.LocationLng = &lng
	}

	result, err := h.intake.Process(c.Request.Context(), intakeRequest)
	if err != nil {
		if errors.Is(err, intake.ErrQuestNotFound) || errors.Is(err, intake.ErrSubmissionOwnership) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{
				"error":  "validation_rejected",
				"reason": err.Error(),
			})
			return
		}
		h.logger.Error("submission intake failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "intake_failed"})
		return
	}

	c.JSON(http.StatusOK, submissionResponsePayload{
		SubmissionID: intakeRequest.SubmissionID,
		Duplicate:    result.Duplicate,
		Validation: validationPayload{
			Label:      result.Validation.Label,
			Confidence: result.Validation.Confidence,
			Passed:     result.Validation.Passed,
		},
		PointsEarned: result.PointsEarned,
	})
}

type actionRequestPayload struct {
	ActionID string `json:"action_id"`
	Action   string `json:"action"`
	Entity   string `json:"entity"`
	Payload  string `json:"payload"`
}

func (h *httpHandler) handleAction(c *gin.Context) {
	userID, ok := h.requestUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	var request actionRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil || strings.TrimSpace(request.ActionID) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	duplicate, err := h.intake.AcknowledgeAction(c.Request.Context(), intake.ActionRecord{
		ActionID:    strings.TrimSpace(request.ActionID),
		UserID:      userID,
		Action:      request.Action,
		Entity:      request.Entity,
		PayloadJSON: request.Payload,
	})
	if err != nil {
		h.logger.Error("action acknowledgment failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "action_failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"acknowledged": true, "duplicate": duplicate})
}

type badgeGrantPayload struct {
	BadgeType string `json:"badge_type"`
}

func (h *httpHandler) handleGrantBadge(c *gin.Context) {
	userID, ok := h.requestUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	var request badgeGrantPayload
	if err := c.ShouldBindJSON(&request); err != nil || strings.TrimSpace(request.BadgeType) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	badgeType := awards.BadgeType(strings.TrimSpace(request.BadgeType))
	if _, known := h.badgeTypes[badgeType]; !known {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":  "validation_rejected",
			"reason": "unknown badge type",
		})
		return
	}
	granted, err := h.activity.Grant(c.Request.Context(), userID, badgeType)
	if err != nil {
		h.logger.Error("badge grant failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "grant_failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"granted": granted, "already_granted": !granted})
}

func (h *httpHandler) handleCurrentUser(c *gin.Context) {
	userID, ok := h.requestUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	user, err := h.users.Bootstrap(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("user lookup failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "user_lookup_failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"user_id":     user.ID,
		"points":      user.Points,
		"streak_days": user.StreakDays,
	})
}

func (h *httpHandler) handleSnapshot(c *gin.Context) {
	userID, ok := h.requestUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	if _, err := h.users.Bootstrap(c.Request.Context(), userID); err != nil {
		h.logger.Error("user bootstrap failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "snapshot_failed"})
		return
	}
	snapshot, err := h.activity.Snapshot(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("snapshot aggregation failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "snapshot_failed"})
		return
	}
	c.JSON(http.StatusOK, snapshot)
}

func (h *httpHandler) handleListBadges(c *gin.Context) {
	userID, ok := h.requestUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	badges, err := h.activity.ListBadges(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("badge listing failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "badges_failed"})
		return
	}
	payload := make([]gin.H, 0, len(badges))
	for _, badge := range badges {
		payload = append(payload, gin.H{
			"badge_type":  badge.BadgeType,
			"earned_at_s": badge.EarnedAtSeconds,
		})
	}
	c.JSON(http.StatusOK, gin.H{"badges": payload})
}

func (h *httpHandler) handleListSubmissions(c *gin.Context) {
	userID, ok := h.requestUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	records, err := h.intake.ListRecords(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("submission listing failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "submissions_failed"})
		return
	}
	payload := make([]gin.H, 0, len(records))
	for _, record := range records {
		payload = append(payload, gin.H{
			"submission_id":  record.SubmissionID,
			"quest_id":       record.QuestID,
			"submitted_at_s": record.SubmittedAtSeconds,
			"points_earned":  record.PointsEarned,
			"validation": gin.H{
				"label":      record.ValidationLabel,
				"confidence": record.ValidationConfidence,
				"passed":     record.ValidationPassed,
			},
		})
	}
	c.JSON(http.StatusOK, gin.H{"submissions": payload})
}

func (h *httpHandler) handleListQuests(c *gin.Context) {
	catalog, err := h.quests.List(c.Request.Context())
	if err != nil {
		h.logger.Error("quest listing failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "quests_failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"quests": catalog})
}

func (h *httpHandler) handleLeaderboard(c *gin.Context) {
	limit := 10
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 || parsed > 1000 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
			return
		}
		limit = parsed
	}
	top, err := h.users.Leaderboard(c.Request.Context(), limit)
	if err != nil {
		h.logger.Error("leaderboard query failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "leaderboard_failed"})
		return
	}
	entries := make([]gin.H, 0, len(top))
	for rank, user := range top {
		entries = append(entries, gin.H{
			"rank":        rank + 1,
			"user_id":     user.ID,
			"points":      user.Points,
			"streak_days": user.StreakDays,
		})
	}
	c.JSON(http.StatusOK, gin.H{"leaderboard": entries})
}
