// Package ocr 对接外部 OCR 服务并计算识别质量信号
package ocr

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"rag-chat-api/internal/application/ingestion"
	"rag-chat-api/internal/config"
)

// Word OCR 识别出的单词框，Confidence 为 0-100，-1 表示无效框
type Word struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	Left       int     `json:"left"`
	Top        int     `json:"top"`
	Width      int     `json:"width"`
	Height     int     `json:"height"`
}

type recognizeRequest struct {
	Image    string `json:"image"`
	MIME     string `json:"mime"`
	Language string `json:"language,omitempty"`
}

type recognizeResponse struct {
	Text   string `json:"text"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Words  []Word `json:"words"`
}

// Client OCR HTTP 客户端
type Client struct {
	endpoint   string
	language   string
	httpClient *http.Client
}

var _ ingestion.OCREngine = (*Client)(nil)

func NewClient(cfg *config.OCRConfig) (*Client, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("ocr endpoint is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		endpoint:   endpoint,
		language:   cfg.Language,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

func (c *Client) Recognize(ctx context.Context, image []byte, mime string) (*ingestion.OCRResult, error) {
	body, err := json.Marshal(&recognizeRequest{
		Image:    base64.StdEncoding.EncodeToString(image),
		MIME:     mime,
		Language: c.language,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal ocr request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create ocr request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ocr request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("ocr request failed: status=%d", resp.StatusCode)
	}

	var out recognizeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode ocr response: %w", err)
	}

	text := strings.TrimSpace(out.Text)
	if text == "" {
		text = JoinWords(out.Words)
	}
	return &ingestion.OCRResult{
		Text:    text,
		Signals: Signals(out.Words, out.Width, out.Height),
	}, nil
}
