package storage

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestNewS3Publisher(t *testing.T) {
	cfg := S3Config{
		Bucket:          "test-bucket",
		Region:          "us-east-1",
		Endpoint:        "http://localhost:4566",
		AccessKeyID:     "test-access-key",
		SecretAccessKey: "test-secret-key",
	}

	p, err := NewS3Publisher(cfg)
	if err != nil {
		t.Fatalf("NewS3Publisher() error = %v", err)
	}

	if p.bucket != cfg.Bucket {
		t.Errorf("bucket = %v, want %v", p.bucket, cfg.Bucket)
	}
	if p.region != cfg.Region {
		t.Errorf("region = %v, want %v", p.region, cfg.Region)
	}
}

func TestS3Publisher_Publish_MockServer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			t.Errorf("expected PUT method, got %s", r.Method)
		}
		if !strings.Contains(r.URL.Path, "/job-1-abcd.mp4") {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Errorf("failed to read body: %v", err)
		}
		if string(body) != "mp4 content" {
			t.Errorf("unexpected body: %s", string(body))
		}

		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	cfg := S3Config{
		Bucket:          "test-bucket",
		Region:          "us-east-1",
		Endpoint:        server.URL,
		AccessKeyID:     "test-access-key",
		SecretAccessKey: "test-secret-key",
	}

	p, err := NewS3Publisher(cfg)
	if err != nil {
		t.Fatalf("NewS3Publisher() error = %v", err)
	}

	url, err := p.Publish(context.Background(), "job-1-abcd.mp4", bytes.NewReader([]byte("mp4 content")))
	if err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	expectedURL := "https://test-bucket.s3.us-east-1.amazonaws.com/job-1-abcd.mp4"
	if url != expectedURL {
		t.Errorf("url = %v, want %v", url, expectedURL)
	}
}
