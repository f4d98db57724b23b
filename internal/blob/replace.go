package blob

import (
	"context"
	"fmt"
	"io"
)

// Replace writes r at key, overwriting any existing object in one step. A
// failed write leaves the previous object in place, and concurrent writers of
// one key, in this process or another, resolve to the last writer.
func Replace(ctx context.Context, s Store, key string, r io.Reader, opts PutOptions) (Info, error) {
	opts.Overwrite = true
	info, err := s.Put(ctx, key, r, opts)
	if err != nil {
		return Info{}, fmt.Errorf("write %s: %w", key, err)
	}
	return info, nil
}
