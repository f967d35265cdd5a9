package satrain

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
)

// indexPath is the dataset index document below the server base URL.
const indexPath = "files.json"

// serverClient handles HTTP communication with the dataset server.
type serverClient struct {
	// baseURL is the base URL of the server, without trailing slash.
	baseURL string

	// httpClient is used for all HTTP requests.
	httpClient HTTPClient

	// logger receives diagnostic messages. May be nil.
	logger Logger
}

// newServerClient creates a client for the given base URL. The URL is
// normalized by removing any trailing slashes.
func newServerClient(baseURL string, client HTTPClient, logger Logger) *serverClient {
	return &serverClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: client,
		logger:     logger,
	}
}

// fetchIndex fetches and parses the dataset index.
func (c *serverClient) fetchIndex(ctx context.Context) ([]indexEntry, error) {
	url := c.baseURL + "/" + indexPath

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching dataset index: %w", ErrNetwork)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching dataset index: status %d: %w", resp.StatusCode, ErrServer)
	}

	var entries []indexEntry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return nil, fmt.Errorf("parsing dataset index: %w", ErrServer)
	}

	if c.logger != nil {
		c.logger.Debug("dataset index fetched", "files", len(entries))
	}
	return entries, nil
}

// fetchFile streams the remote file at relPath into dest, which must be a
// temporary path on the destination filesystem; the caller renames it into
// place after a successful return. The onProgress callback, if non-nil,
// receives byte deltas as they arrive from the network. Returns the number
// of bytes written. On any error dest is removed.
func (c *serverClient) fetchFile(ctx context.Context, relPath, dest string, onProgress func(delta int64)) (int64, error) {
	url := c.baseURL + "/" + relPath

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("fetching %s: %w", relPath, ErrNetwork)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("fetching %s: status %d: %w", relPath, resp.StatusCode, ErrNetwork)
	}

	out, err := os.Create(dest)
	if err != nil {
		return 0, fmt.Errorf("%w: creating %s: %v", ErrStorage, dest, err)
	}

	var reader io.Reader = resp.Body
	if onProgress != nil {
		reader = &progressReader{reader: resp.Body, onProgress: onProgress}
	}

	n, err := io.Copy(out, reader)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(dest)
		return n, fmt.Errorf("reading %s: %w", relPath, ErrNetwork)
	}
	return n, nil
}

// progressReader wraps an io.Reader and reports progress as bytes are
// read.
type progressReader struct {
	reader     io.Reader
	onProgress func(delta int64)
}

func (pr *progressReader) Read(p []byte) (n int, err error) {
	n, err = pr.reader.Read(p)
	if n > 0 && pr.onProgress != nil {
		pr.onProgress(int64(n))
	}
	return
}
