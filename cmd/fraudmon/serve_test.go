package main

import (
	"context"
	"net"
	"testing"
	"time"
)

func TestRunServe_ReturnsListenError(t *testing.T) {
	busy, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen failed: %v", err)
	}
	defer busy.Close()

	t.Setenv("HTTP_ADDR", busy.Addr().String())
	t.Setenv("STORAGE_DRIVER", "memory")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("REDIS_URL", "")
	t.Setenv("KAFKA_BROKERS", "")
	t.Setenv("RABBITMQ_URL", "")
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("METRICS_ENABLED", "false")
	t.Setenv("LOG_LEVEL", "error")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err = runServe(ctx, "")

	if err == nil {
		t.Fatal("expected an error when the address is already in use")
	}
	if ctx.Err() != nil {
		t.Fatalf("runServe waited for the context instead of failing fast: %v", err)
	}
}
