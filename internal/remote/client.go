// Package remote talks to folder-configured HTTP endpoints: the pending
// task list, the per-task callback and the record upload hook.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/reex/reexd/internal/models"
)

const requestTimeout = 30 * time.Second

type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
}

func NewClient(logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: requestTimeout},
		logger:     logger.With("component", "remote"),
	}
}

// FetchTasks retrieves the pending task list for a folder. Network errors,
// non-2xx statuses and decode failures are logged and yield nil; the poll
// loop simply tries again next tick.
func (c *Client) FetchTasks(ctx context.Context, url string) []models.RemoteTask {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		c.logger.Warn("invalid remote task url", "url", url, "error", err)
		return nil
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("fetch remote tasks failed", "url", url, "error", err)
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Warn("fetch remote tasks failed", "url", url, "status", resp.StatusCode)
		return nil
	}

	var envelope models.RemoteTaskList
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		c.logger.Warn("decode remote tasks failed", "url", url, "error", err)
		return nil
	}

	return envelope.List
}

// PostCallback reports an execution's output to a task's callback URL.
// Fire-and-forget; failures are logged only.
func (c *Client) PostCallback(ctx context.Context, url, output string) {
	body := map[string]string{"output": output}
	if err := c.postJSON(ctx, url, body); err != nil {
		c.logger.Warn("callback post failed", "url", url, "error", err)
	}
}

// UploadRecord posts a finished record to a folder's upload hook.
// Fire-and-forget; failures are logged only.
func (c *Client) UploadRecord(ctx context.Context, url string, record models.ExecutionRecord) {
	taskID := ""
	if record.RemoteCommandID != nil {
		taskID = strconv.Itoa(*record.RemoteCommandID)
	}

	body := map[string]interface{}{
		"id":        taskID,
		"output":    record.Output,
		"exitCode":  record.ExitCode,
		"timestamp": record.Timestamp.UTC().Format(time.RFC3339),
	}
	if err := c.postJSON(ctx, url, body); err != nil {
		c.logger.Warn("record upload failed", "url", url, "error", err)
	}
}

func (c *Client) postJSON(ctx context.Context, url string, body interface{}) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	return nil
}
