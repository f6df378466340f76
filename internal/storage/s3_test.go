package storage

import (
	"context"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

func newTestService(bucket string) *S3Service {
	client := s3.New(s3.Options{
		Region:       "us-east-1",
		Credentials:  credentials.NewStaticCredentialsProvider("AKID", "SECRET", ""),
		BaseEndpoint: aws.String("http://localhost:9000"),
		UsePathStyle: true,
	})
	return NewS3Service(client, bucket, 5*time.Minute)
}

func TestObjectURL_Presigns(t *testing.T) {
	svc := newTestService("rocket-images")

	raw, err := svc.ObjectURL(context.Background(), "profiles/alice.png")
	if err != nil {
		t.Fatalf("ObjectURL: %v", err)
	}
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}
	if u.Path != "/rocket-images/profiles/alice.png" {
		t.Fatalf("unexpected path %q", u.Path)
	}
	q := u.Query()
	if q.Get("X-Amz-Expires") != "300" {
		t.Fatalf("expected 300s expiry, got %q", q.Get("X-Amz-Expires"))
	}
	if q.Get("X-Amz-Signature") == "" {
		t.Fatalf("missing signature in %s", raw)
	}
}

func TestObjectURL_RequiresBucket(t *testing.T) {
	svc := newTestService("")
	if _, err := svc.ObjectURL(context.Background(), "k"); err == nil {
		t.Fatalf("expected error without bucket")
	}
	if err := svc.UploadFile(context.Background(), "k", strings.NewReader("x"), ""); err == nil {
		t.Fatalf("expected upload error without bucket")
	}
}

func TestUploadDirectory_RejectsFile(t *testing.T) {
	svc := newTestService("rocket-images")
	if _, err := svc.UploadDirectory(context.Background(), "s3_test.go", UploadOptions{}); err == nil {
		t.Fatalf("expected error for non-directory path")
	}
}

func TestObjectKey(t *testing.T) {
	cases := map[[2]string]string{
		{"", "a.png"}:             "a.png",
		{"profiles", "a.png"}:     "profiles/a.png",
		{"/profiles/", "x/a.png"}: "profiles/x/a.png",
	}
	for in, want := range cases {
		if got := objectKey(in[0], in[1]); got != want {
			t.Errorf("objectKey(%q, %q) = %q, want %q", in[0], in[1], got, want)
		}
	}
}
