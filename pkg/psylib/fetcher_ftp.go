package psylib

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/jlaffaye/ftp"
)

// ftpFetcher fetches ftp:// and ftps:// locations with a single
// control connection per fetch. Credentials come from the URL userinfo
// and default to anonymous; they are never persisted.
type ftpFetcher struct {
	// DialTimeout bounds the control-connection dial. Zero means the
	// library default.
	DialTimeout time.Duration
}

func (f *ftpFetcher) Fetch(ctx context.Context, location string) ([]byte, error) {
	parsed, err := url.Parse(location)
	if err != nil {
		return nil, err
	}
	host := parsed.Host
	if !strings.Contains(host, ":") {
		host += ":21"
	}
	filePath := parsed.Path
	if filePath == "" || filePath == "/" {
		return nil, fmt.Errorf("ftp location %q has no file path", location)
	}

	user, pass := "anonymous", "anonymous"
	if parsed.User != nil {
		user = parsed.User.Username()
		if p, ok := parsed.User.Password(); ok {
			pass = p
		}
	}

	opts := []ftp.DialOption{ftp.DialWithContext(ctx)}
	if f.DialTimeout > 0 {
		opts = append(opts, ftp.DialWithTimeout(f.DialTimeout))
	}
	conn, err := ftp.Dial(host, opts...)
	if err != nil {
		return nil, fmt.Errorf("ftp dial %s: %w", host, err)
	}
	defer conn.Quit()

	if err := conn.Login(user, pass); err != nil {
		return nil, fmt.Errorf("ftp login: %w", err)
	}
	resp, err := conn.Retr(filePath)
	if err != nil {
		return nil, fmt.Errorf("ftp retr %q: %w", filePath, err)
	}
	defer resp.Close()

	data, err := io.ReadAll(resp)
	if err != nil {
		return nil, fmt.Errorf("ftp read %q: %w", filePath, err)
	}
	return data, nil
}
