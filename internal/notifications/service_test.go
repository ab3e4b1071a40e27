package notifications_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"curator/internal/notifications"
	"curator/internal/testsupport"
)

type recordedRequest struct {
	title    string
	priority string
	body     string
}

func newRecordingService(t *testing.T) (notifications.Service, *[]recordedRequest) {
	t.Helper()

	var mu sync.Mutex
	var requests []recordedRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		requests = append(requests, recordedRequest{
			title:    r.Header.Get("Title"),
			priority: r.Header.Get("Priority"),
			body:     string(body),
		})
		mu.Unlock()
	}))
	t.Cleanup(server.Close)

	cfg := testsupport.NewConfig(t)
	cfg.Notifications.NtfyTopic = server.URL
	return notifications.NewService(cfg), &requests
}

func TestNoopServiceWhenTopicEmpty(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	service := notifications.NewService(cfg)
	if err := service.TestNotification(context.Background()); err != nil {
		t.Fatalf("noop notification errored: %v", err)
	}
}

func TestBatchCompletedNotification(t *testing.T) {
	service, requests := newRecordingService(t)
	if err := service.NotifyBatchCompleted(context.Background(), 3, 4, 90*time.Second); err != nil {
		t.Fatalf("NotifyBatchCompleted: %v", err)
	}
	if len(*requests) != 1 {
		t.Fatalf("recorded %d requests", len(*requests))
	}
	got := (*requests)[0]
	if got.title != "Curator - Batch Complete" {
		t.Errorf("title = %q", got.title)
	}
	if got.body != "Batch complete: 3 of 4 items processed in 1m30s" {
		t.Errorf("body = %q", got.body)
	}
}

func TestErrorNotificationHasHighPriority(t *testing.T) {
	service, requests := newRecordingService(t)
	if err := service.NotifyError(context.Background(), errors.New("boom"), "batch"); err != nil {
		t.Fatalf("NotifyError: %v", err)
	}
	got := (*requests)[0]
	if got.priority != "high" {
		t.Errorf("priority = %q", got.priority)
	}
	if got.body != "Error with batch: boom" {
		t.Errorf("body = %q", got.body)
	}
}

func TestServerErrorSurfaces(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "denied", http.StatusForbidden)
	}))
	t.Cleanup(server.Close)

	cfg := testsupport.NewConfig(t)
	cfg.Notifications.NtfyTopic = server.URL
	service := notifications.NewService(cfg)
	if err := service.TestNotification(context.Background()); err == nil {
		t.Fatal("expected error from ntfy failure")
	}
}
