// Package netx holds small HTTP client helpers.
package netx

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// ErrUploadFailed is returned when object storage rejects a presigned PUT.
var ErrUploadFailed = errors.New("upload failed")

// UploadToPresignedURL PUTs body to a presigned object-storage URL. The
// content type is sniffed from the body.
func UploadToPresignedURL(ctx context.Context, client *http.Client, url string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", http.DetectContentType(body))

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%w: %s; body: %s", ErrUploadFailed, resp.Status, string(b))
	}
	return nil
}
