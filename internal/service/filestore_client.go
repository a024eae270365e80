package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"
)

// FileStoreClient talks to the file-storage service. Uploads return an
// opaque ref that daily updates carry in photo_refs; this service never
// stores blobs itself.
type FileStoreClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewFileStoreClient(baseURL string) *FileStoreClient {
	return &FileStoreClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 15 * time.Second, // uploads can be slow
		},
	}
}

type uploadResponse struct {
	Ref string `json:"ref"`
}

// Upload sends one file and returns its ref.
func (c *FileStoreClient) Upload(ctx context.Context, filename string, r io.Reader) (string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(part, r); err != nil {
		return "", err
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/files", &buf)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		// 可重试错误
		return "", fmt.Errorf("file storage 5xx: %d", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("file storage error: %d", resp.StatusCode)
	}

	var out uploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	return out.Ref, nil
}

// Exists checks whether a ref resolves to a stored file.
func (c *FileStoreClient) Exists(ctx context.Context, ref string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.baseURL+"/files/"+ref, nil)
	if err != nil {
		return false, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		return true, nil
	case resp.StatusCode == http.StatusNotFound:
		return false, nil
	case resp.StatusCode >= 500:
		return false, fmt.Errorf("file storage 5xx: %d", resp.StatusCode)
	default:
		return false, fmt.Errorf("file storage error: %d", resp.StatusCode)
	}
}
