package psylib

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/afero"
)

// fileFetcher serves file:// and scheme-less locations from an afero
// filesystem, so sessions can run against packaged local assets and
// tests against an in-memory one.
type fileFetcher struct {
	fs afero.Fs
}

func (f *fileFetcher) Fetch(ctx context.Context, location string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p := location
	if strings.HasPrefix(strings.ToLower(p), "file://") {
		parsed, err := url.Parse(p)
		if err != nil {
			return nil, err
		}
		p = parsed.Path
	}
	data, err := afero.ReadFile(f.fs, p)
	if err != nil {
		return nil, fmt.Errorf("reading %q: %w", p, err)
	}
	return data, nil
}
