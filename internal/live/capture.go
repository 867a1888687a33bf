package live

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"os/exec"
	"strings"
	"time"
)

// FFmpegCapturer records fixed-duration audio chunks from a live stream by
// shelling out to ffmpeg. Output is mono 16 kHz WAV, the format speech
// recognizers expect.
type FFmpegCapturer struct {
	binary string
}

func NewFFmpegCapturer() *FFmpegCapturer {
	return &FFmpegCapturer{binary: "ffmpeg"}
}

func (f *FFmpegCapturer) CaptureChunk(ctx context.Context, streamURL string, duration time.Duration) ([]byte, error) {
	cmd := exec.CommandContext(ctx, f.binary,
		"-loglevel", "error",
		"-i", streamURL,
		"-t", fmt.Sprintf("%d", int(duration.Seconds())),
		"-vn",
		"-ac", "1",
		"-ar", "16000",
		"-f", "wav",
		"pipe:1",
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		detail := strings.TrimSpace(stderr.String())
		if detail != "" {
			return nil, fmt.Errorf("ffmpeg capture failed: %w: %s", err, detail)
		}
		return nil, fmt.Errorf("ffmpeg capture failed: %w", err)
	}
	if stdout.Len() == 0 {
		return nil, fmt.Errorf("ffmpeg produced no audio for %s", streamURL)
	}
	return stdout.Bytes(), nil
}

// WhisperTranscriber sends audio chunks to a whisper.cpp server inference
// endpoint and returns the recognized text.
type WhisperTranscriber struct {
	endpoint string
	client   *http.Client
}

func NewWhisperTranscriber(endpoint string) *WhisperTranscriber {
	return &WhisperTranscriber{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 5 * time.Minute},
	}
}

func (w *WhisperTranscriber) Transcribe(ctx context.Context, audio []byte) (string, error) {
	var body bytes.Buffer
	form := multipart.NewWriter(&body)

	part, err := form.CreateFormFile("file", "chunk.wav")
	if err != nil {
		return "", fmt.Errorf("failed to build transcription request: %w", err)
	}
	if _, err := part.Write(audio); err != nil {
		return "", fmt.Errorf("failed to build transcription request: %w", err)
	}
	if err := form.Close(); err != nil {
		return "", fmt.Errorf("failed to build transcription request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.endpoint, &body)
	if err != nil {
		return "", fmt.Errorf("failed to build transcription request: %w", err)
	}
	req.Header.Set("Content-Type", form.FormDataContentType())

	resp, err := w.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("transcription request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("transcription server returned %s", resp.Status)
	}

	var result struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode transcription response: %w", err)
	}
	return strings.TrimSpace(result.Text), nil
}
