package jobqueue

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestEnqueue_PublishesToQStash(t *testing.T) {
	var gotPath, gotDelay, gotDedup, gotForward, gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotDelay = r.Header.Get("Upstash-Delay")
		gotDedup = r.Header.Get("Upstash-Deduplication-Id")
		gotForward = r.Header.Get("Upstash-Forward-X-Internal-Job-Token")
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	p := NewQStashPublisher(QStashPublisherConfig{
		BaseURL:          server.URL,
		Token:            "qstash-token",
		TargetBaseURL:    "https://backoffice.stagepass.id",
		Retries:          3,
		InternalJobToken: "job-secret",
	}, testLogger())

	err := p.Enqueue(t.Context(),
		"/v1/internal/jobs/convocations/batch-1/dispatch",
		map[string]any{"batch_id": "batch-1"},
		90*time.Second,
		"convocation-dispatch-batch-1",
	)
	if err != nil {
		t.Fatalf("Enqueue returned error: %v", err)
	}

	wantPath := "/v2/publish/https://backoffice.stagepass.id/v1/internal/jobs/convocations/batch-1/dispatch"
	if gotPath != wantPath {
		t.Fatalf("publish path = %q, want %q", gotPath, wantPath)
	}
	if gotDelay != "90s" {
		t.Fatalf("delay header = %q, want 90s", gotDelay)
	}
	if gotDedup != "convocation-dispatch-batch-1" {
		t.Fatalf("deduplication header = %q", gotDedup)
	}
	if gotForward != "job-secret" {
		t.Fatalf("forwarded job token = %q", gotForward)
	}
	if gotAuth != "Bearer qstash-token" {
		t.Fatalf("authorization = %q", gotAuth)
	}
}

func TestEnqueue_Failures(t *testing.T) {
	t.Run("non-2xx response", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte("quota exceeded"))
		}))
		defer server.Close()

		p := NewQStashPublisher(QStashPublisherConfig{
			BaseURL:       server.URL,
			Token:         "qstash-token",
			TargetBaseURL: "https://backoffice.stagepass.id",
		}, testLogger())

		err := p.Enqueue(t.Context(), "/v1/internal/jobs/convocations/batch-1/dispatch", nil, 0, "")
		if err == nil || !strings.Contains(err.Error(), "status=429") {
			t.Fatalf("expected status error, got %v", err)
		}
	})

	t.Run("blank path", func(t *testing.T) {
		p := NewQStashPublisher(QStashPublisherConfig{
			BaseURL:       "https://qstash.upstash.io",
			TargetBaseURL: "https://backoffice.stagepass.id",
		}, testLogger())
		if err := p.Enqueue(t.Context(), "  ", nil, 0, ""); err == nil {
			t.Fatalf("expected error for blank path")
		}
	})

	t.Run("invalid target base url", func(t *testing.T) {
		p := NewQStashPublisher(QStashPublisherConfig{
			BaseURL:       "https://qstash.upstash.io",
			TargetBaseURL: "backoffice.stagepass.id",
		}, testLogger())
		err := p.Enqueue(t.Context(), "/v1/internal/jobs/convocations/batch-1/dispatch", nil, 0, "")
		if err == nil || !strings.Contains(err.Error(), "QSTASH_TARGET_BASE_URL") {
			t.Fatalf("expected target base url error, got %v", err)
		}
	})
}

func TestNormalizeDelay(t *testing.T) {
	cases := []struct {
		delay time.Duration
		want  string
	}{
		{0, "0s"},
		{-time.Second, "0s"},
		{90 * time.Second, "90s"},
		{1500 * time.Millisecond, "2s"},
	}
	for _, tc := range cases {
		if got := normalizeDelay(tc.delay); got != tc.want {
			t.Fatalf("normalizeDelay(%s) = %q, want %q", tc.delay, got, tc.want)
		}
	}
}
