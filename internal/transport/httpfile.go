package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// ErrFileTooLarge is returned when a stream exceeds the configured cap.
var ErrFileTooLarge = errors.New("media exceeds maximum file size")

// streamToFile downloads the response body for req into destPath, enforcing
// maxBytes. On failure whatever landed stays on disk so an operator can
// inspect what actually arrived.
func streamToFile(ctx context.Context, client *http.Client, req *http.Request, destPath string, maxBytes int64) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return 0, fmt.Errorf("creating download dir: %w", err)
	}

	resp, err := client.Do(req.WithContext(ctx))
	if err != nil {
		return 0, fmt.Errorf("fetching media: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		return 0, fmt.Errorf("media fetch returned status %d", resp.StatusCode)
	}
	if maxBytes > 0 && resp.ContentLength > maxBytes {
		return 0, ErrFileTooLarge
	}

	out, err := os.Create(destPath)
	if err != nil {
		return 0, fmt.Errorf("creating media file: %w", err)
	}

	var reader io.Reader = resp.Body
	if maxBytes > 0 {
		reader = io.LimitReader(resp.Body, maxBytes+1)
	}

	written, err := io.Copy(out, reader)
	closeErr := out.Close()
	if err == nil {
		err = closeErr
	}
	if err == nil && maxBytes > 0 && written > maxBytes {
		err = ErrFileTooLarge
	}
	if err != nil {
		return 0, err
	}

	return written, nil
}

// uploadFileField streams a multipart POST with a single file field plus
// string fields. Returns the raw response for the caller to decode.
func uploadFileField(ctx context.Context, client *http.Client, endpoint, fieldName, path string, fields map[string]string, headers map[string]string) (*http.Response, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening media file: %w", err)
	}

	pr, pw := io.Pipe()
	writer := multipart.NewWriter(pw)

	go func() {
		defer file.Close()
		for key, value := range fields {
			if err := writer.WriteField(key, value); err != nil {
				_ = pw.CloseWithError(err)
				return
			}
		}
		part, err := writer.CreateFormFile(fieldName, filepath.Base(path))
		if err != nil {
			_ = pw.CloseWithError(err)
			return
		}
		if _, err := io.Copy(part, file); err != nil {
			_ = pw.CloseWithError(err)
			return
		}
		if err := writer.Close(); err != nil {
			_ = pw.CloseWithError(err)
			return
		}
		_ = pw.Close()
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, pr)
	if err != nil {
		return nil, fmt.Errorf("building upload request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("uploading media: %w", err)
	}
	return resp, nil
}

func readErrorBody(resp *http.Response) string {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	return strings.TrimSpace(string(body))
}
