package logger

import (
	"context"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestMasking(t *testing.T) {
	cases := []struct {
		name string
		got  string
		want string
	}{
		{"email", MaskEmail("alice.smith@school.test"), "ali***@school.test"},
		{"email empty", MaskEmail(""), ""},
		{"ipv4", MaskIP("10.0.0.1"), "10.0.*.*"},
		{"ipv6", MaskIP("2001:0db8:85a3:0000:0000:8a2e:0370:7334"), "2001:0db8:85a3:0000:*:*:*:*"},
		{"client key ip", MaskClientKey("10.0.0.1"), "10.0.*.*"},
		{"client key email", MaskClientKey("password_reset:alice@school.test"), "password_reset:ali***@school.test"},
		{"string", MaskString("secret123"), "se***23"},
		{"short string", MaskString("abc"), "***"},
	}

	for _, tc := range cases {
		if tc.got != tc.want {
			t.Fatalf("%s: expected %q, got %q", tc.name, tc.want, tc.got)
		}
	}
}

func TestWithContextAddsRequestID(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	base := zap.New(core)

	ctx := WithRequestID(context.Background(), "req-42")
	WithContext(ctx, base).Info("hello")

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected one entry, got %d", len(entries))
	}
	if got := entries[0].ContextMap()["request_id"]; got != "req-42" {
		t.Fatalf("expected request_id req-42, got %v", got)
	}
}

func TestWithContextWithoutRequestID(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	WithContext(context.Background(), zap.New(core)).Info("hello")

	if _, ok := logs.All()[0].ContextMap()["request_id"]; ok {
		t.Fatalf("did not expect request_id field")
	}
}
