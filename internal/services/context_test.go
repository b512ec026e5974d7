package services_test

import (
	"context"
	"testing"

	"pixora/internal/services"
)

func TestStageKeepsRequestID(t *testing.T) {
	ctx := services.WithRequestID(context.Background(), "req-7")
	ctx = services.WithStage(ctx, "encode")

	id, ok := services.RequestIDFromContext(ctx)
	if !ok || id != "req-7" {
		t.Fatalf("request id = %q, %v", id, ok)
	}
	stage, ok := services.StageFromContext(ctx)
	if !ok || stage != "encode" {
		t.Fatalf("stage = %q, %v", stage, ok)
	}
}

func TestInnerStageShadowsOuter(t *testing.T) {
	outer := services.WithStage(context.Background(), "decode")
	inner := services.WithStage(outer, "remove_background")

	if stage, _ := services.StageFromContext(inner); stage != "remove_background" {
		t.Fatalf("inner stage = %q", stage)
	}
	if stage, _ := services.StageFromContext(outer); stage != "decode" {
		t.Fatalf("outer stage changed to %q", stage)
	}
}

func TestBlankValuesAreIgnored(t *testing.T) {
	base := context.Background()
	if services.WithStage(base, "") != base {
		t.Fatal("blank stage should return the same context")
	}
	if services.WithRequestID(base, "") != base {
		t.Fatal("blank request id should return the same context")
	}
	if _, ok := services.RequestIDFromContext(base); ok {
		t.Fatal("unexpected request id on empty context")
	}
}
