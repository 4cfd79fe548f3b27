package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"
)

// Client talks to the pipeline API. File bytes never pass through the API:
// uploads go straight to the presigned put URL and downloads come straight
// from the presigned get URL.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func New(baseURL string) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 10 * time.Minute},
	}
}

// Progress mirrors the API's progress payload.
type Progress struct {
	JobID        string `json:"job_id"`
	Status       string `json:"status"`
	Percent      int    `json:"percent"`
	Done         bool   `json:"done"`
	TotalChunks  int    `json:"total_chunks"`
	Watermarked  int    `json:"watermarked_chunks"`
	Thumbnailed  int    `json:"thumbnailed_chunks"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// Failed reports a terminal failure.
func (p Progress) Failed() bool { return p.Status == "FAILED" }

type uploadURLResponse struct {
	PutURL string `json:"put_url"`
	GetURL string `json:"get_url"`
	Object string `json:"object"`
}

// UploadFile pushes a local file into the uploads bucket and returns the
// readable URL the pipeline can fetch it from.
func (c *Client) UploadFile(ctx context.Context, path string) (string, error) {
	var urls uploadURLResponse
	query := url.Values{"name": {filepath.Base(path)}}
	if err := c.getJSON(ctx, "/upload-url?"+query.Encode(), &urls); err != nil {
		return "", err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, urls.PutURL, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("build upload request: %w", err)
	}
	req.ContentLength = int64(len(data))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("upload %s: unexpected status %d", path, resp.StatusCode)
	}
	return urls.GetURL, nil
}

// RunPipeline starts a job and returns its id.
func (c *Client) RunPipeline(ctx context.Context, videoRef, imageRef string, chunkSize int) (string, error) {
	body, err := json.Marshal(map[string]any{
		"video_ref":  videoRef,
		"image_ref":  imageRef,
		"chunk_size": chunkSize,
	})
	if err != nil {
		return "", err
	}

	var resp struct {
		JobID string `json:"job_id"`
	}
	if err := c.postJSON(ctx, "/run-pipeline", body, &resp); err != nil {
		return "", err
	}
	return resp.JobID, nil
}

// Progress fetches the job's current progress.
func (c *Client) Progress(ctx context.Context, jobID string) (Progress, error) {
	var p Progress
	err := c.getJSON(ctx, "/progress?job_id="+url.QueryEscape(jobID), &p)
	return p, err
}

// WaitForCompletion polls progress at the given interval until the job is
// done, fails, or the context ends.
func (c *Client) WaitForCompletion(ctx context.Context, jobID string, interval time.Duration, onUpdate func(Progress)) (Progress, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		p, err := c.Progress(ctx, jobID)
		if err != nil {
			return Progress{}, err
		}
		if onUpdate != nil {
			onUpdate(p)
		}
		if p.Done {
			return p, nil
		}
		if p.Failed() {
			return p, fmt.Errorf("job %s failed: %s", jobID, p.ErrorMessage)
		}

		select {
		case <-ctx.Done():
			return p, ctx.Err()
		case <-ticker.C:
		}
	}
}

// Download fetches a final artifact ("output_video" or "output_thumbnail")
// into destPath.
func (c *Client) Download(ctx context.Context, jobID, artifactType, destPath string) error {
	var resp struct {
		URL string `json:"url"`
	}
	query := url.Values{"job_id": {jobID}, "type": {artifactType}}
	if err := c.getJSON(ctx, "/download-url?"+query.Encode(), &resp); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, resp.URL, nil)
	if err != nil {
		return fmt.Errorf("build download request: %w", err)
	}
	blob, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("download %s: %w", artifactType, err)
	}
	defer blob.Body.Close()
	if blob.StatusCode != http.StatusOK {
		return fmt.Errorf("download %s: unexpected status %d", artifactType, blob.StatusCode)
	}

	out, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("create %s: %w", destPath, err)
	}
	defer out.Close()
	if _, err := io.Copy(out, blob.Body); err != nil {
		return fmt.Errorf("save %s: %w", destPath, err)
	}
	return nil
}

// Cleanup deletes the job's stored blobs and returns how many were removed.
func (c *Client) Cleanup(ctx context.Context, jobID string) (int, error) {
	var resp struct {
		Deleted int `json:"deleted"`
	}
	err := c.getJSON(ctx, "/cleanup?job_id="+url.QueryEscape(jobID), &resp)
	return resp.Deleted, err
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	return c.doJSON(req, out)
}

func (c *Client) postJSON(ctx context.Context, path string, body []byte, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.doJSON(req, out)
}

func (c *Client) doJSON(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.NewDecoder(resp.Body).Decode(&apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%s %s: %s (status %d)", req.Method, req.URL.Path, apiErr.Error, resp.StatusCode)
		}
		return fmt.Errorf("%s %s: unexpected status %d", req.Method, req.URL.Path, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
