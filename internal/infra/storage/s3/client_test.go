package s3

import (
	"errors"
	"net/http"
	"testing"

	"github.com/minio/minio-go/v7"

	"autoparc/internal/app/policies"
)

func TestClassifyMapsAccessDenied(t *testing.T) {
	denied := minio.ErrorResponse{Code: "AccessDenied", StatusCode: http.StatusForbidden, Message: "Access Denied."}
	if err := classify("put object", denied); !errors.Is(err, policies.ErrStorageRejected) {
		t.Fatalf("expected ErrStorageRejected, got %v", err)
	}
	other := minio.ErrorResponse{Code: "SlowDown", StatusCode: http.StatusServiceUnavailable}
	if err := classify("put object", other); errors.Is(err, policies.ErrStorageRejected) {
		t.Fatalf("expected plain error, got %v", err)
	}
}

func TestParseEndpointStripsScheme(t *testing.T) {
	cases := map[string]string{
		"http://localhost:9000": "localhost:9000",
		"minio:9000":            "minio:9000",
		"https://s3.example.io": "s3.example.io",
	}
	for in, want := range cases {
		if got := parseEndpoint(in); got != want {
			t.Fatalf("parseEndpoint(%q): expected %q, got %q", in, want, got)
		}
	}
}

func TestObjectURLJoinsBucketAndKey(t *testing.T) {
	c := &Client{bucket: "listing-images", publicBaseURL: "http://cdn.local"}
	if got := c.objectURL("/listings/l1/a.jpg"); got != "http://cdn.local/listing-images/listings/l1/a.jpg" {
		t.Fatalf("unexpected url %s", got)
	}
}
