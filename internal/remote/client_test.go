package remote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/terraguardian/core/internal/syncer"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(ClientConfig{BaseURL: server.URL, Token: "test-token"})
	if err != nil {
		t.Fatalf("failed to construct client: %v", err)
	}
	return client, server
}

func submitProbe(t *testing.T, client *Client) error {
	t.Helper()
	_, err := client.SubmitSubmission(context.Background(), syncer.SubmissionRequest{
		SubmissionID: "sub-1",
		UserID:       "user-1",
		QuestID:      "quest-1",
		PhotoRef:     "photo://x",
	})
	return err
}

func TestSubmitSubmissionDecodesSuccessResponse(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/submissions" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-token" {
			t.Fatalf("missing bearer token")
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("failed to decode request: %v", err)
		}
		if body["client_submission_id"] != "sub-1" {
			t.Fatalf("unexpected request body: %v", body)
		}
		w.Header().Set("Content-Type", "application/json")
		if _, err := w.Write([]byte(`{"submission_id":"sub-1","duplicate":false,"validation":{"label":"soil_erosion_visible","confidence":0.85,"passed":true},"points_earned":92}`)); err != nil {
			t.Fatalf("failed to write response: %v", err)
		}
	})

	result, err := client.SubmitSubmission(context.Background(), syncer.SubmissionRequest{
		SubmissionID: "sub-1",
		UserID:       "user-1",
		QuestID:      "quest-1",
		PhotoRef:     "photo://x",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.PointsEarned != 92 || !result.Validation.Passed {
		t.Fatalf("unexpected result: %+v", result)
	}
	if result.Validation.Label != "soil_erosion_visible" {
		t.Fatalf("unexpected validation label %q", result.Validation.Label)
	}
}

func TestServerErrorsClassifyAsTransient(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	err := submitProbe(t, client)
	if !syncer.IsNetworkError(err) {
		t.Fatalf("expected transient classification for 500, got %v", err)
	}
}

func TestTransportFailuresClassifyAsTransient(t *testing.T) {
	client, server := newTestClient(t, func(_ http.ResponseWriter, _ *http.Request) {})
	server.Close()

	err := submitProbe(t, client)
	if !syncer.IsNetworkError(err) {
		t.Fatalf("expected transient classification for transport failure, got %v", err)
	}
}

func TestRejectionCarriesServerReason(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		if _, err := w.Write([]byte(`{"error":"validation_rejected","reason":"photo does not match quest"}`)); err != nil {
			t.Fatalf("failed to write response: %v", err)
		}
	})

	err := submitProbe(t, client)
	if !syncer.IsValidationRejected(err) {
		t.Fatalf("expected terminal classification for 422, got %v", err)
	}
	if err.Error() != "submission rejected: photo does not match quest" {
		t.Fatalf("expected server reason to be preserved, got %q", err.Error())
	}
}

func TestUnexpectedClientErrorsClassifyAsTerminal(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	err := submitProbe(t, client)
	if !syncer.IsValidationRejected(err) {
		t.Fatalf("expected terminal classification for 404, got %v", err)
	}
}

func TestMalformedSuccessBodyClassifiesAsTransient(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		if _, err := w.Write([]byte(`{"points_earned":`)); err != nil {
			t.Fatalf("failed to write response: %v", err)
		}
	})

	err := submitProbe(t, client)
	if !syncer.IsNetworkError(err) {
		t.Fatalf("expected transient classification for truncated body, got %v", err)
	}
}

func TestGrantReportsDuplicateAsNotGranted(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/badges" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		if _, err := w.Write([]byte(`{"granted":false,"already_granted":true}`)); err != nil {
			t.Fatalf("failed to write response: %v", err)
		}
	})

	granted, err := client.Grant(context.Background(), "user-1", "land_guardian")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if granted {
		t.Fatalf("duplicate grant must report granted=false")
	}
}

func TestSnapshotDecodesAggregate(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/users/me/snapshot" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		if _, err := w.Write([]byte(`{"user_id":"user-1","points":350,"streak_days":4,"quests_completed":7,"quest_types_completed":3,"perfect_validations":2,"community_rank":5,"user_rank":12}`)); err != nil {
			t.Fatalf("failed to write response: %v", err)
		}
	})

	snapshot, err := client.Snapshot(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snapshot.Points != 350 || snapshot.QuestsCompleted != 7 || snapshot.CommunityRank != 5 {
		t.Fatalf("unexpected snapshot: %+v", snapshot)
	}
}
