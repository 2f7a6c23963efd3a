package redis

import (
	"context"
	"strconv"
	"strings"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"go.uber.org/zap/zaptest"

	"github.com/Meliksahcaliskan/Learning-Management-System-sub000/internal/infra/config"
)

func TestNewClient_ConnectsToServer(t *testing.T) {
	server := miniredis.RunT(t)
	host, portStr, _ := strings.Cut(server.Addr(), ":")
	port, err := strconv.Atoi(portStr)
	if err != nil {
		t.Fatalf("parse port: %v", err)
	}

	client, err := NewClient(context.Background(), config.RedisSettings{Host: host, Port: port}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}
	defer func() { _ = client.Close() }()

	if err := client.Client().Set(context.Background(), "k", "v", 0).Err(); err != nil {
		t.Fatalf("set through client: %v", err)
	}
	if got, _ := server.Get("k"); got != "v" {
		t.Fatalf("expected value v, got %q", got)
	}
}
