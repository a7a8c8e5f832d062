package opener

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/url"
	"time"

	"github.com/jlaffaye/ftp"
	"go.uber.org/multierr"
)

const anonymousFTPUser = "anonymous"

// FTPOpener retrieves ftp:// URLs, anonymously unless the URL carries
// credentials.
type FTPOpener struct {
	timeout time.Duration
}

// NewFTPOpener creates an FTPOpener.
func NewFTPOpener(timeout time.Duration) *FTPOpener {
	if timeout <= 0 {
		timeout = defaultDialTimeout
	}
	return &FTPOpener{timeout: timeout}
}

func (o *FTPOpener) Open(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}
	host := u.Host
	if u.Port() == "" {
		host = net.JoinHostPort(u.Hostname(), "21")
	}

	conn, err := ftp.Dial(host, ftp.DialWithContext(ctx), ftp.DialWithTimeout(o.timeout))
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", host, err)
	}

	user, pass := anonymousFTPUser, anonymousFTPUser
	if u.User != nil {
		user = u.User.Username()
		if p, ok := u.User.Password(); ok {
			pass = p
		}
	}
	if err := conn.Login(user, pass); err != nil {
		_ = conn.Quit()
		return nil, fmt.Errorf("login %s: %w", host, err)
	}

	resp, err := conn.Retr(u.Path)
	if err != nil {
		_ = conn.Quit()
		return nil, fmt.Errorf("retr %s: %w", u.Path, err)
	}
	return &ftpStream{resp: resp, conn: conn}, nil
}

type ftpStream struct {
	resp *ftp.Response
	conn *ftp.ServerConn
}

func (s *ftpStream) Read(p []byte) (int, error) {
	return s.resp.Read(p)
}

func (s *ftpStream) Close() error {
	return multierr.Append(s.resp.Close(), s.conn.Quit())
}
