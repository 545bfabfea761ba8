package storage

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/minio/minio-go/v7"
)

func TestDetectContentType_KeepsFullBody(t *testing.T) {
	body := "%PDF-1.4\n" + strings.Repeat("x", 5000)
	ct, r, err := DetectContentType(strings.NewReader(body))
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	if ct != "application/pdf" {
		t.Fatalf("content type = %q", ct)
	}
	got, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(got) != body {
		t.Fatalf("body truncated: %d bytes, want %d", len(got), len(body))
	}
}

func TestDetectContentType_ShortInput(t *testing.T) {
	ct, r, err := DetectContentType(strings.NewReader("hi"))
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	if !strings.HasPrefix(ct, "text/plain") {
		t.Fatalf("content type = %q", ct)
	}
	got, _ := io.ReadAll(r)
	if string(got) != "hi" {
		t.Fatalf("body = %q", got)
	}
}

func TestIsNoSuchKey(t *testing.T) {
	if IsNoSuchKey(nil) {
		t.Fatalf("nil is not a missing key")
	}
	if !IsNoSuchKey(minio.ErrorResponse{Code: "NoSuchKey"}) {
		t.Fatalf("expected NoSuchKey response to match")
	}
	if !IsNoSuchKey(fmt.Errorf("wrap: %w", minio.ErrorResponse{Code: "NotFound"})) {
		t.Fatalf("expected wrapped NotFound to match")
	}
	if IsNoSuchKey(errors.New("connection refused")) {
		t.Fatalf("unrelated error matched")
	}
}

func TestIsNoSuchBucket(t *testing.T) {
	if !IsNoSuchBucket(minio.ErrorResponse{Code: "NoSuchBucket"}) {
		t.Fatalf("expected NoSuchBucket response to match")
	}
	if IsNoSuchBucket(minio.ErrorResponse{Code: "NoSuchKey"}) {
		t.Fatalf("NoSuchKey must not match bucket check")
	}
}
