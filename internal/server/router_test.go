package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/terraguardian/core/internal/auth"
	"github.com/terraguardian/core/internal/database"
	"github.com/terraguardian/core/internal/intake"
	"github.com/terraguardian/core/internal/quests"
	"github.com/terraguardian/core/internal/users"
	"go.uber.org/zap"
)

const testProvisionKey = "prov-key"

func newTestHandler(t *testing.T) http.Handler {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:terra_router_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := database.OpenServer(dsn, zap.NewNop())
	if err != nil {
		t.Fatalf("failed to open server database: %v", err)
	}

	tokenManager := auth.NewTokenIssuer(auth.TokenIssuerConfig{
		SigningSecret: []byte("test-signing-secret"),
		Issuer:        "terra-auth",
		Audience:      "terra-api",
		TokenTTL:      time.Hour,
	})
	intakeService, err := intake.NewService(intake.ServiceConfig{
		Database:  db,
		Validator: intake.NewStubValidator(),
	})
	if err != nil {
		t.Fatalf("failed to construct intake service: %v", err)
	}
	activityStore, err := intake.NewActivityStore(db, time.Now)
	if err != nil {
		t.Fatalf("failed to construct activity store: %v", err)
	}
	userService, err := users.NewService(users.ServiceConfig{Database: db})
	if err != nil {
		t.Fatalf("failed to construct user service: %v", err)
	}
	questService, err := quests.NewService(db)
	if err != nil {
		t.Fatalf("failed to construct quest service: %v", err)
	}

	handler, err := NewHTTPHandler(Dependencies{
		TokenManager:  tokenManager,
		IntakeService: intakeService,
		ActivityStore: activityStore,
		UserService:   userService,
		QuestService:  questService,
		ProvisionKey:  testProvisionKey,
		Logger:        zap.NewNop(),
	})
	if err != nil {
		t.Fatalf("failed to construct handler: %v", err)
	}
	return handler
}

func performRequest(t *testing.T, handler http.Handler, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()

	var request *http.Request
	if body == "" {
		request = httptest.NewRequest(method, path, http.NoBody)
	} else {
		request = httptest.NewRequest(method, path, strings.NewReader(body))
		request.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		request.Header.Set("Authorization", "Bearer "+token)
	}
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, request)
	return recorder
}

func issueTestToken(t *testing.T, handler http.Handler, userID string) string {
	t.Helper()

	body := fmt.Sprintf(`{"user_id":%q}`, userID)
	request := httptest.NewRequest(http.MethodPost, "/auth/token", strings.NewReader(body))
	request.Header.Set("Content-Type", "application/json")
	request.Header.Set("X-Provision-Key", testProvisionKey)
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, request)
	if recorder.Code != http.StatusOK {
		t.Fatalf("token issuance failed with status %d: %s", recorder.Code, recorder.Body.String())
	}

	var payload struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(recorder.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to decode token response: %v", err)
	}
	if payload.AccessToken == "" {
		t.Fatalf("expected non-empty access token")
	}
	return payload.AccessToken
}

func TestIssueTokenRequiresProvisionKey(t *testing.T) {
	handler := newTestHandler(t)

	request := httptest.NewRequest(http.MethodPost, "/auth/token", strings.NewReader(`{"user_id":"user-1"}`))
	request.Header.Set("Content-Type", "application/json")
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, request)

	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without provision key, got %d", recorder.Code)
	}
}

func TestProtectedRoutesRejectMissingToken(t *testing.T) {
	handler := newTestHandler(t)

	recorder := performRequest(t, handler, http.MethodGet, "/users/me", "", "")
	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without bearer token, got %d", recorder.Code)
	}

	recorder = performRequest(t, handler, http.MethodGet, "/users/me", "not-a-jwt", "")
	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for a malformed token, got %d", recorder.Code)
	}
}

func TestListQuestsReturnsSeededCatalog(t *testing.T) {
	handler := newTestHandler(t)

	recorder := performRequest(t, handler, http.MethodGet, "/quests", "", "")
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", recorder.Code, recorder.Body.String())
	}

	var payload struct {
		Quests []quests.Quest `json:"quests"`
	}
	if err := json.Unmarshal(recorder.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to decode quests: %v", err)
	}
	if len(payload.Quests) != 5 {
		t.Fatalf("expected 5 seeded quests, got %d", len(payload.Quests))
	}
}

func TestSubmissionIntakeIsIdempotent(t *testing.T) {
	handler := newTestHandler(t)
	token := issueTestToken(t, handler, "user-1")

	body := `{"client_submission_id":"sub-1","quest_id":"quest-soil-erosion-survey","photo_ref":"photo://field-7"}`

	first := performRequest(t, handler, http.MethodPost, "/submissions", token, body)
	if first.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", first.Code, first.Body.String())
	}
	var firstPayload struct {
		SubmissionID string `json:"submission_id"`
		Duplicate    bool   `json:"duplicate"`
		PointsEarned int    `json:"points_earned"`
	}
	if err := json.Unmarshal(first.Body.Bytes(), &firstPayload); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if firstPayload.Duplicate {
		t.Fatalf("first submission must not be a duplicate")
	}
	if firstPayload.PointsEarned <= 0 {
		t.Fatalf("expected positive points, got %d", firstPayload.PointsEarned)
	}

	second := performRequest(t, handler, http.MethodPost, "/submissions", token, body)
	if second.Code != http.StatusOK {
		t.Fatalf("expected 200 on replay, got %d: %s", second.Code, second.Body.String())
	}
	var secondPayload struct {
		Duplicate    bool `json:"duplicate"`
		PointsEarned int  `json:"points_earned"`
	}
	if err := json.Unmarshal(second.Body.Bytes(), &secondPayload); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !secondPayload.Duplicate {
		t.Fatalf("replay must be flagged as duplicate")
	}
	if secondPayload.PointsEarned != firstPayload.PointsEarned {
		t.Fatalf("replay must return the original award")
	}

	me := performRequest(t, handler, http.MethodGet, "/users/me", token, "")
	var mePayload struct {
		Points int `json:"points"`
	}
	if err := json.Unmarshal(me.Body.Bytes(), &mePayload); err != nil {
		t.Fatalf("failed to decode user: %v", err)
	}
	if mePayload.Points != firstPayload.PointsEarned {
		t.Fatalf("replay must not double-award points, got %d", mePayload.Points)
	}
}

func TestSubmissionHistoryListsStoredRecords(t *testing.T) {
	handler := newTestHandler(t)
	token := issueTestToken(t, handler, "user-1")

	body := `{"client_submission_id":"sub-1","quest_id":"quest-soil-erosion-survey","photo_ref":"photo://field-7"}`
	if recorder := performRequest(t, handler, http.MethodPost, "/submissions", token, body); recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", recorder.Code, recorder.Body.String())
	}

	recorder := performRequest(t, handler, http.MethodGet, "/users/me/submissions", token, "")
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", recorder.Code, recorder.Body.String())
	}
	var payload struct {
		Submissions []struct {
			SubmissionID string `json:"submission_id"`
			QuestID      string `json:"quest_id"`
			PointsEarned int    `json:"points_earned"`
		} `json:"submissions"`
	}
	if err := json.Unmarshal(recorder.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(payload.Submissions) != 1 {
		t.Fatalf("expected one record, got %d", len(payload.Submissions))
	}
	record := payload.Submissions[0]
	if record.SubmissionID != "sub-1" || record.QuestID != "quest-soil-erosion-survey" {
		t.Fatalf("unexpected record: %+v", record)
	}
	if record.PointsEarned <= 0 {
		t.Fatalf("expected positive points, got %d", record.PointsEarned)
	}
}

func TestSubmissionForUnknownQuestIsTerminal(t *testing.T) {
	handler := newTestHandler(t)
	token := issueTestToken(t, handler, "user-1")

	body := `{"client_submission_id":"sub-1","quest_id":"quest-unknown","photo_ref":"photo://x"}`
	recorder := performRequest(t, handler, http.MethodPost, "/submissions", token, body)
	if recorder.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", recorder.Code, recorder.Body.String())
	}

	var payload struct {
		Error  string `json:"error"`
		Reason string `json:"reason"`
	}
	if err := json.Unmarshal(recorder.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if payload.Error != "validation_rejected" || payload.Reason == "" {
		t.Fatalf("unexpected rejection payload: %+v", payload)
	}
}

func TestBadgeGrantIsIdempotent(t *testing.T) {
	handler := newTestHandler(t)
	token := issueTestToken(t, handler, "user-1")

	body := `{"badge_type":"land_guardian"}`
	first := performRequest(t, handler, http.MethodPost, "/badges", token, body)
	if first.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", first.Code, first.Body.String())
	}
	var firstPayload struct {
		Granted        bool `json:"granted"`
		AlreadyGranted bool `json:"already_granted"`
	}
	if err := json.Unmarshal(first.Body.Bytes(), &firstPayload); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !firstPayload.Granted || firstPayload.AlreadyGranted {
		t.Fatalf("unexpected first grant payload: %+v", firstPayload)
	}

	second := performRequest(t, handler, http.MethodPost, "/badges", token, body)
	var secondPayload struct {
		Granted        bool `json:"granted"`
		AlreadyGranted bool `json:"already_granted"`
	}
	if err := json.Unmarshal(second.Body.Bytes(), &secondPayload); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if secondPayload.Granted || !secondPayload.AlreadyGranted {
		t.Fatalf("duplicate grant must be a no-op: %+v", secondPayload)
	}

	unknown := performRequest(t, handler, http.MethodPost, "/badges", token, `{"badge_type":"time_traveler"}`)
	if unknown.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for unknown badge, got %d", unknown.Code)
	}
}

func TestSnapshotReflectsIntakeImmediately(t *testing.T) {
	handler := newTestHandler(t)
	token := issueTestToken(t, handler, "user-1")

	body := `{"client_submission_id":"sub-1","quest_id":"quest-crop-health-check","photo_ref":"photo://leaf"}`
	if recorder := performRequest(t, handler, http.MethodPost, "/submissions", token, body); recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", recorder.Code, recorder.Body.String())
	}

	recorder := performRequest(t, handler, http.MethodGet, "/users/me/snapshot", token, "")
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", recorder.Code, recorder.Body.String())
	}
	var snapshot struct {
		QuestsCompleted     int `json:"quests_completed"`
		QuestTypesCompleted int `json:"quest_types_completed"`
		Points              int `json:"points"`
		StreakDays          int `json:"streak_days"`
		UserRank            int `json:"user_rank"`
	}
	if err := json.Unmarshal(recorder.Body.Bytes(), &snapshot); err != nil {
		t.Fatalf("failed to decode snapshot: %v", err)
	}
	if snapshot.QuestsCompleted != 1 || snapshot.QuestTypesCompleted != 1 {
		t.Fatalf("snapshot must reflect the submission: %+v", snapshot)
	}
	if snapshot.Points <= 0 || snapshot.StreakDays != 1 {
		t.Fatalf("snapshot must reflect the award: %+v", snapshot)
	}
	if snapshot.UserRank != 1 {
		t.Fatalf("expected the only user to rank first, got %d", snapshot.UserRank)
	}
}

func TestActionAcknowledgmentFlagsReplays(t *testing.T) {
	handler := newTestHandler(t)
	token := issueTestToken(t, handler, "user-1")

	body := `{"action_id":"action-1","action":"delete","entity":"submission","payload":"{}"}`
	first := performRequest(t, handler, http.MethodPost, "/actions", token, body)
	if first.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", first.Code, first.Body.String())
	}
	var firstPayload struct {
		Acknowledged bool `json:"acknowledged"`
		Duplicate    bool `json:"duplicate"`
	}
	if err := json.Unmarshal(first.Body.Bytes(), &firstPayload); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !firstPayload.Acknowledged || firstPayload.Duplicate {
		t.Fatalf("unexpected first acknowledgment: %+v", firstPayload)
	}

	second := performRequest(t, handler, http.MethodPost, "/actions", token, body)
	var secondPayload struct {
		Duplicate bool `json:"duplicate"`
	}
	if err := json.Unmarshal(second.Body.Bytes(), &secondPayload); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !secondPayload.Duplicate {
		t.Fatalf("replayed action must be flagged as duplicate")
	}
}

func TestLeaderboardValidatesLimit(t *testing.T) {
	handler := newTestHandler(t)

	recorder := performRequest(t, handler, http.MethodGet, "/leaderboard?limit=0", "", "")
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for a non-positive limit, got %d", recorder.Code)
	}

	recorder = performRequest(t, handler, http.MethodGet, "/leaderboard?limit=5", "", "")
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", recorder.Code, recorder.Body.String())
	}
}
