package psylib

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
)

// sftpFetcher fetches sftp:// locations over an SSH session opened per
// fetch. Credentials come from the URL userinfo.
type sftpFetcher struct {
	// HostKeyCallback verifies the server host key. The default
	// accepts any key; sessions fetching from untrusted hosts should
	// install a known-hosts callback instead.
	HostKeyCallback ssh.HostKeyCallback
}

func newSFTPFetcher() *sftpFetcher {
	return &sftpFetcher{
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
	}
}

func (f *sftpFetcher) Fetch(ctx context.Context, location string) ([]byte, error) {
	parsed, err := url.Parse(location)
	if err != nil {
		return nil, err
	}
	host := parsed.Host
	if !strings.Contains(host, ":") {
		host += ":22"
	}
	filePath := parsed.Path
	if filePath == "" || filePath == "/" {
		return nil, fmt.Errorf("sftp location %q has no file path", location)
	}

	config := &ssh.ClientConfig{
		HostKeyCallback: f.HostKeyCallback,
	}
	if parsed.User != nil {
		config.User = parsed.User.Username()
		if pass, ok := parsed.User.Password(); ok {
			config.Auth = []ssh.AuthMethod{ssh.Password(pass)}
		}
	}

	sshConn, err := ssh.Dial("tcp", host, config)
	if err != nil {
		return nil, fmt.Errorf("sftp dial %s: %w", host, err)
	}
	defer sshConn.Close()

	client, err := sftp.NewClient(sshConn)
	if err != nil {
		return nil, fmt.Errorf("sftp session: %w", err)
	}
	defer client.Close()

	file, err := client.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("sftp open %q: %w", filePath, err)
	}
	defer file.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			sshConn.Close()
		case <-done:
		}
	}()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("sftp read %q: %w", filePath, err)
	}
	return data, nil
}
