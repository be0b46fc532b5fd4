package remote

import (
	"context"
	"testing"
	"time"

	"matai/internal/config"
)

func TestKey(t *testing.T) {
	tests := []struct {
		prefix, path, want string
	}{
		{"matai:", "hebrewGregorianMonths", "matai:hebrewGregorianMonths"},
		{"matai:", "userPreferences/dev-1/theme", "matai:userPreferences:dev-1:theme"},
		{"matai:", "/leading/and/trailing/", "matai:leading:and:trailing"},
		{"", "a/b", "a:b"},
	}
	for _, tt := range tests {
		if got := Key(tt.prefix, tt.path); got != tt.want {
			t.Errorf("Key(%q, %q) = %q, want %q", tt.prefix, tt.path, got, tt.want)
		}
	}
}

func TestNewRedisDisabledWithoutAddress(t *testing.T) {
	r, err := NewRedis(context.Background(), config.RemoteConfig{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r != nil {
		t.Fatal("expected nil store when no address is configured")
	}
}

func TestNewRedisUnreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	r, err := NewRedis(ctx, config.RemoteConfig{RedisAddr: "127.0.0.1:1"})
	if err == nil {
		r.Close()
		t.Fatal("expected connection error")
	}
	if r != nil {
		t.Error("store should be nil on error")
	}
}
