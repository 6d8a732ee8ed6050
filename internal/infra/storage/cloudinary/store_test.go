package cloudinary

import "testing"

func TestPublicIDDropsExtensionAndPrefixesFolder(t *testing.T) {
	s := &Store{folder: "autoparc"}
	if got := s.publicID("/listings/l1/abc.webp"); got != "autoparc/listings/l1/abc" {
		t.Fatalf("unexpected public id %q", got)
	}
	bare := &Store{}
	if got := bare.publicID("listings/l1/abc.jpg"); got != "listings/l1/abc" {
		t.Fatalf("unexpected public id %q", got)
	}
}

func TestRejectionMessages(t *testing.T) {
	if !isRejection("File size too large. Got 20000000. Maximum is 10485760.") {
		t.Fatalf("expected size limit to be a rejection")
	}
	if isRejection("Server error") {
		t.Fatalf("expected server error to be retriable")
	}
}
