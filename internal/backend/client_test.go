package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mezmer90/youtube-commenting-automation/internal/types"
)

func TestGetNextVideo(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/videos/next" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("category_id"); got != "3" {
			t.Errorf("category_id = %q, want 3", got)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": true,
			"video": map[string]interface{}{
				"video_id":      "abc",
				"url":           "https://www.youtube.com/watch?v=abc",
				"title":         "Test",
				"channel_name":  "Chan",
				"category_id":   3,
				"category_name": "Tech",
			},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	video, err := c.GetNextVideo(context.Background(), 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if video == nil || video.VideoID != "abc" || video.CategoryName != "Tech" {
		t.Errorf("unexpected video: %+v", video)
	}
}

func TestGetNextVideoEmptyQueue(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"success": false, "error": "no pending videos"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	video, err := c.GetNextVideo(context.Background(), 1)
	if err != nil {
		t.Fatalf("empty queue must not be an error: %v", err)
	}
	if video != nil {
		t.Errorf("expected nil video, got %+v", video)
	}
}

func TestUpdateVideoStatus(t *testing.T) {
	var received types.StatusUpdate
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/videos/update-status" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&received)
		json.NewEncoder(w).Encode(map[string]interface{}{"success": true})
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	err := c.UpdateVideoStatus(context.Background(), types.StatusUpdate{
		VideoID:         "abc",
		CategoryID:      3,
		SummaryStatus:   types.StatusCompleted,
		CommentedStatus: types.StatusCompleted,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if received.VideoID != "abc" || received.SummaryStatus != types.StatusCompleted {
		t.Errorf("backend received %+v", received)
	}
}

func TestUpdateVideoStatusRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"success": false, "error": "unknown video"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	err := c.UpdateVideoStatus(context.Background(), types.StatusUpdate{VideoID: "nope"})
	if err == nil {
		t.Fatal("expected error when the backend rejects the update")
	}
}

func TestBackendHTTPErrorSurfacesMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":"database unavailable"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	_, err := c.GetCategories(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if got := err.Error(); !strings.Contains(got, "database unavailable") {
		t.Errorf("error should carry the backend message, got %q", got)
	}
}

func TestGetCategories(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": true,
			"categories": []map[string]interface{}{
				{"id": 1, "name": "Tech"},
				{"id": 2, "name": "Cooking"},
			},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	cats, err := c.GetCategories(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cats) != 2 || cats[0].Name != "Tech" {
		t.Errorf("unexpected categories: %+v", cats)
	}
}
