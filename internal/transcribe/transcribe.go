// Package transcribe turns audio into text through a speech-to-text provider.
package transcribe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// Audio is one recording to transcribe.
type Audio struct {
	Name        string
	ContentType string
	Data        []byte
}

// Transcriber converts audio to text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio Audio) (string, error)
}

var (
	// ErrDownload means the audio could not be fetched from its retrieval URL.
	ErrDownload = errors.New("could not download audio")
	// ErrNotConfigured is returned when no provider credentials are set.
	ErrNotConfigured = errors.New("transcription provider not configured")
)

// UpstreamError carries a non-2xx provider response.
type UpstreamError struct {
	Status int
	Detail string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("transcription upstream status %d: %s", e.Status, e.Detail)
}

// maxDownloadBytes caps audio fetched from a retrieval URL.
var maxDownloadBytes int64 = 100 << 20

// Download fetches audio from a retrieval URL. Transport failures, non-2xx
// statuses and bodies over the size cap are reported as ErrDownload.
func Download(ctx context.Context, client *http.Client, url string) (Audio, error) {
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Audio{}, fmt.Errorf("%w: %v", ErrDownload, err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return Audio{}, fmt.Errorf("%w: %v", ErrDownload, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Audio{}, fmt.Errorf("%w: status %d", ErrDownload, resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDownloadBytes+1))
	if err != nil {
		return Audio{}, fmt.Errorf("%w: %v", ErrDownload, err)
	}
	if int64(len(data)) > maxDownloadBytes {
		return Audio{}, fmt.Errorf("%w: body exceeds %d bytes", ErrDownload, maxDownloadBytes)
	}
	return Audio{ContentType: resp.Header.Get("Content-Type"), Data: data}, nil
}

// Disabled is the Transcriber used when no provider is configured.
type Disabled struct{}

// Transcribe returns ErrNotConfigured.
func (Disabled) Transcribe(context.Context, Audio) (string, error) {
	return "", ErrNotConfigured
}
