package utils

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"strings"
	"time"
)

// ImageAnalyzer calls the external vision collaborator that turns an uploaded
// image into a text description. The backend only persists the returned
// description; everything else about the pipeline is the collaborator's
// problem.
type ImageAnalyzer struct {
	baseURL string
	http    *http.Client
}

func NewImageAnalyzer() *ImageAnalyzer {
	baseURL := strings.TrimSpace(os.Getenv("IMAGE_ANALYZER_URL"))
	return &ImageAnalyzer{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

func (a *ImageAnalyzer) Enabled() bool {
	return a.baseURL != ""
}

type analyzeResponse struct {
	Description string `json:"description"`
}

// Analyze posts the image bytes and returns the collaborator's description.
func (a *ImageAnalyzer) Analyze(ctx context.Context, filename string, content []byte, itemHint string) (string, error) {
	if !a.Enabled() {
		return "", fmt.Errorf("image analyzer is not configured")
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return "", err
	}
	if _, err := fw.Write(content); err != nil {
		return "", err
	}
	if itemHint != "" {
		if err := mw.WriteField("item_type", itemHint); err != nil {
			return "", err
		}
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/analyze", &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := a.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("image analyzer error %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var parsed analyzeResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", err
	}
	return parsed.Description, nil
}
