package policies

import (
	"context"
	"errors"
	"io"

	domainexpertise "autoparc/internal/domain/expertise"
	domainlistings "autoparc/internal/domain/listings"
)

// ErrStorageRejected is returned when object storage refuses a write, for
// example because of a bucket policy.
var ErrStorageRejected = errors.New("storage: upload rejected by bucket policy")

// ObjectStore keeps binary objects and returns their public URL.
type ObjectStore interface {
	Upload(ctx context.Context, key string, reader io.Reader, contentType string) (publicURL string, err error)
	Delete(ctx context.Context, key string) error
}

// ReportRenderer writes an expertise report as a PDF document.
type ReportRenderer interface {
	Render(w io.Writer, report *domainexpertise.Report, listing *domainlistings.Listing) error
}
