// Package encoder connects gallery builds to a face-embedding sidecar and
// to the on-disk photo library.
package encoder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/BrandonDHaskell/busroll/internal/busroll/identity"
)

const (
	defaultBaseURL = "http://localhost:8000"
	faceEndpoint   = "/embed/face"
)

// Client computes face embeddings using the embedding server.
type Client struct {
	baseURL string
	client  *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// FaceDetection is a single detected face.
type FaceDetection struct {
	FaceIndex int       `json:"face_index"`
	Dim       int       `json:"dim"`
	Embedding []float32 `json:"embedding"`
	BBox      []float64 `json:"bbox"` // [x1, y1, x2, y2]
	DetScore  float64   `json:"det_score"`
}

// FaceResponse is the body returned by the face endpoint.
type FaceResponse struct {
	FacesCount int             `json:"faces_count"`
	Faces      []FaceDetection `json:"faces"`
	Model      string          `json:"model"`
}

// Extract returns the embedding of the most confidently detected face, or
// identity.ErrNoFaceDetected when the image holds none.
func (c *Client) Extract(ctx context.Context, img []byte) ([]float32, error) {
	resp, err := c.ComputeFaceEmbeddings(ctx, img)
	if err != nil {
		return nil, err
	}

	best := -1
	for i, f := range resp.Faces {
		if len(f.Embedding) == 0 {
			continue
		}
		if best < 0 || f.DetScore > resp.Faces[best].DetScore {
			best = i
		}
	}
	if best < 0 {
		return nil, identity.ErrNoFaceDetected
	}
	return resp.Faces[best].Embedding, nil
}

// ComputeFaceEmbeddings detects faces and computes their embeddings.
func (c *Client) ComputeFaceEmbeddings(ctx context.Context, img []byte) (*FaceResponse, error) {
	body, err := c.postMultipartImage(ctx, faceEndpoint, img)
	if err != nil {
		return nil, err
	}

	var faceResp FaceResponse
	if err := json.Unmarshal(body, &faceResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return &faceResp, nil
}

func (c *Client) postMultipartImage(ctx context.Context, endpoint string, img []byte) ([]byte, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="image.jpg"`)
	h.Set("Content-Type", http.DetectContentType(img))
	part, err := writer.CreatePart(h)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(img); err != nil {
		return nil, fmt.Errorf("failed to write image data: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}
	return body, nil
}
