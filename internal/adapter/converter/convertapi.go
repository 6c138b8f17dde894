package converter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// RemoteError is a structured error returned by the conversion service. Its
// Message field is human-readable and is preferred over generic wording when
// reporting failures to clients.
type RemoteError struct {
	Code    int    `json:"Code"`
	Message string `json:"Message"`
}

func (e *RemoteError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("conversion service error (code %d)", e.Code)
}

type conversionResult struct {
	Files []struct {
		FileName string `json:"FileName"`
		FileSize int64  `json:"FileSize"`
		FileData []byte `json:"FileData"`
	} `json:"Files"`
}

// Client calls a ConvertAPI-compatible rendering service: it uploads a staged
// file and receives the rendered artifact inline, base64-encoded.
type Client struct {
	baseURL    string
	secret     string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient builds a Client. httpClient may be nil, in which case a client
// with a 90s timeout is used.
func NewClient(baseURL, secret string, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 90 * time.Second}
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		secret:     secret,
		httpClient: httpClient,
		logger:     logger.With("component", "convertapi"),
	}
}

// Convert uploads the staged input file and returns the rendered bytes in
// targetFormat. The source format is taken from the file extension.
func (c *Client) Convert(ctx context.Context, inputPath, targetFormat string) ([]byte, error) {
	sourceFormat := strings.TrimPrefix(filepath.Ext(inputPath), ".")
	if sourceFormat == "" {
		sourceFormat = "docx"
	}

	body, contentType, err := c.multipartFile(inputPath)
	if err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/convert/%s/to/%s?%s", c.baseURL, sourceFormat, targetFormat,
		url.Values{"Secret": {c.secret}, "StoreFile": {"false"}}.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("build conversion request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call conversion service: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read conversion response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		remoteErr := &RemoteError{}
		if jsonErr := json.Unmarshal(raw, remoteErr); jsonErr == nil && remoteErr.Message != "" {
			c.logger.Warn("conversion service rejected request", "status", resp.StatusCode, "message", remoteErr.Message)
			return nil, remoteErr
		}
		return nil, fmt.Errorf("conversion service returned status %d", resp.StatusCode)
	}

	var result conversionResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("decode conversion response: %w", err)
	}
	if len(result.Files) == 0 {
		return nil, fmt.Errorf("conversion service returned no files")
	}

	c.logger.Info("document converted",
		"source", sourceFormat,
		"target", targetFormat,
		"bytes", len(result.Files[0].FileData),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return result.Files[0].FileData, nil
}

func (c *Client) multipartFile(path string) (*bytes.Buffer, string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, "", fmt.Errorf("open staged file: %w", err)
	}
	defer file.Close()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("File", filepath.Base(path))
	if err != nil {
		return nil, "", fmt.Errorf("build multipart body: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, "", fmt.Errorf("copy staged file into request: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("finalize multipart body: %w", err)
	}
	return body, writer.FormDataContentType(), nil
}
