// Package session talks to the remote TTS/alignment pipeline: it uploads
// source material, follows the job's server-sent progress stream, and
// fetches the finished project payload and audio.
package session

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/bookkaraoke/kara/internal/timing"
)

// ErrPipelineFailed wraps an error reported by the pipeline itself via
// its SSE error event.
var ErrPipelineFailed = errors.New("pipeline failed")

// ProgressEvent is one named `progress` event from the job stream.
type ProgressEvent struct {
	Step     string  `json:"step"`
	Progress float64 `json:"progress"`
	Message  string  `json:"message"`
}

// Client is an HTTP client for the pipeline service.
type Client struct {
	base string
	http *http.Client
}

// NewClient creates a client for the pipeline at base (scheme://host).
func NewClient(base string) *Client {
	return &Client{
		base: strings.TrimRight(base, "/"),
		http: &http.Client{Timeout: 0}, // SSE streams are long-lived
	}
}

// Upload posts a source file and returns the job ID the pipeline
// assigned.
func (c *Client) Upload(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening upload: %w", err)
	}
	defer f.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return "", fmt.Errorf("building upload form: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return "", fmt.Errorf("reading upload: %w", err)
	}
	mw.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/api/upload", &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("uploading: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("uploading: server returned %s", resp.Status)
	}

	var out struct {
		JobID string `json:"job_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decoding upload response: %w", err)
	}
	return out.JobID, nil
}

// Follow consumes the job's SSE progress stream until a `complete` or
// `error` event arrives. Progress events are forwarded to onProgress
// (nil is fine) and logged at debug level. The returned payload is the
// finished project.
func (c *Client) Follow(ctx context.Context, jobID string, onProgress func(ProgressEvent)) (*timing.Payload, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/api/progress/"+jobID, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("opening progress stream: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("progress stream: server returned %s", resp.Status)
	}

	var (
		event string
		data  strings.Builder
	)
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event:"):
			event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data.WriteString(strings.TrimSpace(strings.TrimPrefix(line, "data:")))
		case line == "":
			// Dispatch on blank line, per the SSE framing.
			payload, done, err := c.dispatch(event, data.String(), onProgress)
			if err != nil {
				return nil, err
			}
			if done {
				return payload, nil
			}
			event = ""
			data.Reset()
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading progress stream: %w", err)
	}
	return nil, fmt.Errorf("progress stream ended without completion")
}

// dispatch handles one framed SSE event.
func (c *Client) dispatch(event, data string, onProgress func(ProgressEvent)) (*timing.Payload, bool, error) {
	switch event {
	case "progress":
		var p ProgressEvent
		if err := json.Unmarshal([]byte(data), &p); err != nil {
			log.Debug("skipping malformed progress event", "err", err)
			return nil, false, nil
		}
		log.Debug("pipeline progress", "step", p.Step, "progress", p.Progress, "message", p.Message)
		if onProgress != nil {
			onProgress(p)
		}
		return nil, false, nil

	case "complete":
		payload, err := timing.DecodePayload(strings.NewReader(data))
		if err != nil {
			return nil, false, fmt.Errorf("decoding completed project: %w", err)
		}
		return payload, true, nil

	case "error":
		var e struct {
			Error string `json:"error"`
		}
		if err := json.Unmarshal([]byte(data), &e); err != nil || e.Error == "" {
			return nil, false, fmt.Errorf("%w: %s", ErrPipelineFailed, data)
		}
		return nil, false, fmt.Errorf("%w: %s", ErrPipelineFailed, e.Error)

	default:
		// Unknown named events and keep-alive comments are ignored.
		return nil, false, nil
	}
}

// DownloadAudio fetches the narration audio to destDir and returns the
// local path.
func (c *Client) DownloadAudio(ctx context.Context, audioURL, destDir string) (string, error) {
	url := audioURL
	if strings.HasPrefix(url, "/") {
		url = c.base + url
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("downloading audio: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("downloading audio: server returned %s", resp.Status)
	}

	dest := filepath.Join(destDir, filepath.Base(url))
	tmp := dest + ".part"
	f, err := os.Create(tmp)
	if err != nil {
		return "", fmt.Errorf("creating audio file: %w", err)
	}
	start := time.Now()
	n, err := io.Copy(f, resp.Body)
	closeErr := f.Close()
	if err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("writing audio file: %w", err)
	}
	if closeErr != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("writing audio file: %w", closeErr)
	}
	if err := os.Rename(tmp, dest); err != nil {
		return "", err
	}
	log.Debug("downloaded audio", "bytes", n, "elapsed", time.Since(start))
	return dest, nil
}
