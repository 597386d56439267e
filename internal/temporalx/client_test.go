package temporalx

import (
	"context"
	"errors"
	"testing"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestClampBackoff(t *testing.T) {
	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 250 * time.Millisecond},
		{2, 500 * time.Millisecond},
		{3, time.Second},
		{10, 2 * time.Second},
	}
	for _, tc := range cases {
		if got := clampBackoff(250*time.Millisecond, 2*time.Second, tc.attempt); got != tc.want {
			t.Fatalf("attempt %d: want=%s got=%s", tc.attempt, tc.want, got)
		}
	}
}

func TestIsRetryableRPC(t *testing.T) {
	if !isRetryableRPC(status.Error(codes.Unavailable, "down")) {
		t.Fatalf("Unavailable: want retryable")
	}
	if isRetryableRPC(status.Error(codes.PermissionDenied, "no")) {
		t.Fatalf("PermissionDenied: want not retryable")
	}
	if !isRetryableRPC(context.DeadlineExceeded) {
		t.Fatalf("DeadlineExceeded: want retryable")
	}
	if isRetryableRPC(errors.New("other")) || isRetryableRPC(nil) {
		t.Fatalf("plain errors: want not retryable")
	}
}

func TestNewClientDisabledWithoutAddress(t *testing.T) {
	c, err := NewClient(Config{}, nil)
	if c != nil || err != nil {
		t.Fatalf("NewClient: want (nil, nil) got (%v, %v)", c, err)
	}
}

func TestLoadTLSConfigRequiresPair(t *testing.T) {
	if _, err := loadTLSConfig(Config{ClientCAPath: "/tmp/ca.pem"}); err == nil {
		t.Fatalf("loadTLSConfig: want error without cert/key")
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("TEMPORAL_ADDRESS", "")
	t.Setenv("TEMPORAL_NAMESPACE", "")
	cfg := LoadConfig(nil)
	if cfg.Namespace != "classroom" || cfg.TaskQueue != "classroom" {
		t.Fatalf("defaults: got namespace=%s task_queue=%s", cfg.Namespace, cfg.TaskQueue)
	}
	if cfg.Enabled() {
		t.Fatalf("Enabled: want false without address")
	}
}
