// Package blob stages rendered assets in temporary object storage and serves
// them at a public URL until the sweep reclaims them.
package blob

import (
	"context"
)

// Store is the narrow contract the worker and sweep consume. Upload returns
// the public URL of the stored object; Delete failures are non-fatal to
// callers and never block a status transition.
type Store interface {
	Upload(ctx context.Context, key, localPath, contentType string) (string, error)
	Delete(ctx context.Context, publicURL string) error
}
