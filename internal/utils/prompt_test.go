package utils

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
)

func TestWaitForEnter(t *testing.T) {
	SetColor(false)
	defer SetColor(true)

	var out bytes.Buffer
	if err := WaitForEnter(context.Background(), strings.NewReader("\n"), &out, "Rate limit exceeded."); err != nil {
		t.Fatalf("WaitForEnter failed: %v", err)
	}
	if out.String() != "Rate limit exceeded. " {
		t.Fatalf("unexpected prompt: %q", out.String())
	}
}

func TestWaitForEnterClosedInput(t *testing.T) {
	if err := WaitForEnter(context.Background(), strings.NewReader(""), io.Discard, "wait"); err == nil {
		t.Fatalf("expected error when input is closed")
	}
}

func TestWaitForEnterCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r, w := io.Pipe()
	defer w.Close()
	if err := WaitForEnter(ctx, r, io.Discard, "wait"); err != context.Canceled {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestColorize(t *testing.T) {
	if got := Green("ok"); got != "\033[32mok\033[0m" {
		t.Fatalf("unexpected color output: %q", got)
	}
	SetColor(false)
	defer SetColor(true)
	if got := Green("ok"); got != "ok" {
		t.Fatalf("color should be disabled: %q", got)
	}
}
