package ingest

import (
	"fmt"
	"io"
	"time"

	"github.com/jlaffaye/ftp"

	"github.com/airwatch-io/airwatch/internal/metrics"
)

// FTPSource fetches a CSV drop from a remote FTP server. Monitoring agencies
// commonly publish bulk exports this way rather than pushing over HTTP.
type FTPSource struct {
	host     string
	path     string
	user     string
	password string
}

func NewFTPSource(host, path, user, password string) *FTPSource {
	if user == "" {
		user = "anonymous"
		password = "anonymous"
	}
	return &FTPSource{host: host, path: path, user: user, password: password}
}

// Fetch retrieves the configured remote file and returns its raw bytes,
// ready to hand to the ingestion pipeline.
func (f *FTPSource) Fetch() ([]byte, error) {
	conn, err := ftp.Dial(f.host, ftp.DialWithTimeout(30*time.Second))
	if err != nil {
		metrics.FTPFetches.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("ftp dial: %w", err)
	}
	defer conn.Quit()

	if err := conn.Login(f.user, f.password); err != nil {
		metrics.FTPFetches.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("ftp login: %w", err)
	}

	resp, err := conn.Retr(f.path)
	if err != nil {
		metrics.FTPFetches.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("ftp retr %s: %w", f.path, err)
	}
	defer resp.Close()

	body, err := io.ReadAll(resp)
	if err != nil {
		metrics.FTPFetches.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("read %s: %w", f.path, err)
	}

	metrics.FTPFetches.WithLabelValues("ok").Inc()
	return body, nil
}
