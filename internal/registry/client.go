package registry

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/net/proxy"

	"jackdaw/internal/app/version"
	"jackdaw/internal/support"
)

const (
	maxLedgerBytes   = 64 << 20 // 64 MiB safety cap
	bodyExcerptBytes = 2048
	dialTimeout      = 30 * time.Second
	fetchTimeout     = 2 * time.Minute

	envSocksProxy = "JACKDAW_SOCKS_PROXY"
)

// Client downloads delegated-statistics ledgers into a local cache directory.
// Unchanged upstream files are detected with If-Modified-Since so a daily
// refresh against an unchanged mirror costs one conditional request.
type Client struct {
	httpClient *http.Client
	cacheDir   string
}

func NewClient(cacheDir string) (*Client, error) {
	transport, err := buildTransport()
	if err != nil {
		return nil, err
	}

	return &Client{
		httpClient: &http.Client{Timeout: fetchTimeout, Transport: transport},
		cacheDir:   cacheDir,
	}, nil
}

// buildTransport honors JACKDAW_SOCKS_PROXY for deployments that reach the
// registry mirrors through a SOCKS5 hop.
func buildTransport() (*http.Transport, error) {
	transport := &http.Transport{}

	socksAddr := support.GetEnv(envSocksProxy, "")
	if socksAddr == "" {
		return transport, nil
	}

	dialer, err := proxy.SOCKS5("tcp", socksAddr, nil, &net.Dialer{Timeout: dialTimeout})
	if err != nil {
		return nil, fmt.Errorf("registry: socks proxy %q: %w", socksAddr, err)
	}
	transport.DialContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
		return dialer.Dial(network, addr)
	}
	return transport, nil
}

// CachePath returns where the ledger of a registry lands after a fetch.
func (c *Client) CachePath(registry string) string {
	return filepath.Join(c.cacheDir, "delegated-"+registry+"-latest")
}

// Fetch downloads one ledger. It returns the cached file path and whether the
// upstream reported the file unchanged. On any error the previously cached
// file is left untouched.
func (c *Client) Fetch(ctx context.Context, registry, url string) (string, bool, error) {
	destPath := c.CachePath(registry)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", false, fmt.Errorf("registry %s: build request: %w", registry, err)
	}
	req.Header.Set("User-Agent", "jackdaw/"+version.Get().BuildVersion)

	if info, err := os.Stat(destPath); err == nil {
		req.Header.Set("If-Modified-Since", info.ModTime().UTC().Format(http.TimeFormat))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", false, fmt.Errorf("registry %s: execute request: %w", registry, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotModified {
		return destPath, true, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, bodyExcerptBytes))
		return "", false, fmt.Errorf("registry %s: unexpected status %d: %s", registry, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := c.writeLedger(destPath, resp.Body); err != nil {
		return "", false, fmt.Errorf("registry %s: %w", registry, err)
	}

	// Future conditional requests compare against the server's own timestamp.
	if modified, err := http.ParseTime(resp.Header.Get("Last-Modified")); err == nil {
		_ = os.Chtimes(destPath, modified, modified)
	}

	return destPath, false, nil
}

func (c *Client) writeLedger(destPath string, body io.Reader) error {
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}

	tmpFile, err := os.CreateTemp(filepath.Dir(destPath), "ledger-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		_ = os.Remove(tmpFile.Name())
	}()

	// One byte past the cap distinguishes an oversized body from an exact fit.
	written, err := io.Copy(tmpFile, io.LimitReader(body, maxLedgerBytes+1))
	if err != nil {
		tmpFile.Close()
		return fmt.Errorf("copy ledger: %w", err)
	}
	if written > maxLedgerBytes {
		tmpFile.Close()
		return fmt.Errorf("ledger exceeds %d byte cap", maxLedgerBytes)
	}

	if err := tmpFile.Sync(); err != nil {
		tmpFile.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmpFile.Name(), destPath); err != nil {
		return fmt.Errorf("replace ledger: %w", err)
	}
	return nil
}
