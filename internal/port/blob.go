package port

import (
	"context"
	"io"
)

// BlobWriter uploads documents such as payout statements.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
}
