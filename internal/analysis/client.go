package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/formlab/squatview/internal/types"
)

// SourceRemote and SourceLocal tag where a document came from.
const (
	SourceRemote = "remote"
	SourceLocal  = "local"
)

// Video containers the analyzer accepts.
var allowedExtensions = map[string]bool{
	".mp4":  true,
	".webm": true,
	".avi":  true,
}

// Analyzer produces an analysis document for a recorded video. The remote
// client and the local generator implement the same interface so the
// rendering pipeline never knows which one fed it.
type Analyzer interface {
	AnalyzeVideo(ctx context.Context, video io.Reader, filename string) (*types.Document, error)
}

// Client talks to the remote pose-analysis service.
type Client struct {
	baseURL string
	httpc   *http.Client
}

// NewClient creates a remote analyzer client. Analysis of a full video can
// take tens of seconds on a cold host, so the timeout should be generous.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpc:   &http.Client{Timeout: timeout},
	}
}

// AnalyzeVideo uploads the video as a multipart form and decodes the
// per-frame analysis document from the response.
func (c *Client) AnalyzeVideo(ctx context.Context, video io.Reader, filename string) (*types.Document, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if !allowedExtensions[ext] {
		return nil, fmt.Errorf("unsupported video format %q (want mp4, webm, or avi)", ext)
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("video", filepath.Base(filename))
	if err != nil {
		return nil, fmt.Errorf("failed to build upload form: %w", err)
	}
	size, err := io.Copy(part, video)
	if err != nil {
		return nil, fmt.Errorf("failed to read video: %w", err)
	}
	if size == 0 {
		return nil, fmt.Errorf("video file is empty")
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize upload form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/analyze", &body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	started := time.Now()
	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("analysis request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("analysis service returned %d: %s",
			resp.StatusCode, readServiceError(resp.Body))
	}

	doc, err := Decode(resp.Body)
	if err != nil {
		return nil, err
	}
	doc.Source = SourceRemote

	slog.Info("video analyzed remotely",
		"filename", filepath.Base(filename),
		"upload_bytes", size,
		"frames", len(doc.Frames),
		"elapsed", time.Since(started).Round(time.Millisecond),
	)
	return doc, nil
}

// readServiceError extracts the analyzer's error message, falling back to a
// body excerpt when it is not the usual JSON shape.
func readServiceError(r io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(r, 4096))
	if err != nil || len(raw) == 0 {
		return "no error detail"
	}
	var payload struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(raw, &payload) == nil && payload.Error != "" {
		return payload.Error
	}
	return string(raw)
}
