package gemini

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	RoleUser  = "user"
	RoleModel = "model"
)

// Part is one unit of content inside a turn: either text or inline data.
type Part struct {
	Text       string `json:"text,omitempty"`
	InlineData *Blob  `json:"inlineData,omitempty"`
}

// Blob carries raw file bytes; encoding/json base64-encodes Data on the wire,
// which is exactly what the inlineData field expects.
type Blob struct {
	MimeType string `json:"mimeType"`
	Data     []byte `json:"data"`
}

type Content struct {
	Role  string `json:"role"`
	Parts []Part `json:"parts"`
}

func TextPart(text string) Part { return Part{Text: text} }

func BlobPart(mimeType string, data []byte) Part {
	return Part{InlineData: &Blob{MimeType: mimeType, Data: data}}
}

type SafetySetting struct {
	Category  string `json:"category"`
	Threshold string `json:"threshold"`
}

const (
	HarmCategoryHarassment       = "HARM_CATEGORY_HARASSMENT"
	HarmCategoryHateSpeech       = "HARM_CATEGORY_HATE_SPEECH"
	HarmCategorySexuallyExplicit = "HARM_CATEGORY_SEXUALLY_EXPLICIT"
	HarmCategoryDangerousContent = "HARM_CATEGORY_DANGEROUS_CONTENT"

	HarmBlockNone = "BLOCK_NONE"
)

type GenerateRequest struct {
	Contents       []Content       `json:"contents"`
	SafetySettings []SafetySetting `json:"safetySettings,omitempty"`
}

// TextRequest builds a streaming request for a plain text conversation.
// All four harm categories are disabled, matching the permissive chat
// configuration.
func TextRequest(contents []Content) GenerateRequest {
	return GenerateRequest{
		Contents: contents,
		SafetySettings: []SafetySetting{
			{Category: HarmCategoryHarassment, Threshold: HarmBlockNone},
			{Category: HarmCategoryHateSpeech, Threshold: HarmBlockNone},
			{Category: HarmCategorySexuallyExplicit, Threshold: HarmBlockNone},
			{Category: HarmCategoryDangerousContent, Threshold: HarmBlockNone},
		},
	}
}

// MultimodalRequest builds a streaming request for contents that carry
// inline data. Safety thresholds stay at provider defaults.
func MultimodalRequest(contents []Content) GenerateRequest {
	return GenerateRequest{Contents: contents}
}

type Client struct {
	BaseURL string
	APIKey  string
	Model   string
	HTTP    *http.Client
}

func New(baseURL, apiKey, model string) *Client {
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com"
	}
	if model == "" {
		model = "gemini-1.5-flash"
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  apiKey,
		Model:   model,
		HTTP:    &http.Client{Timeout: 5 * time.Minute},
	}
}

type apiErrorResponse struct {
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error,omitempty"`
}

// StreamGenerateContent issues a streaming generation request and returns
// the open stream. The caller owns the stream and must Close it.
func (c *Client) StreamGenerateContent(ctx context.Context, req GenerateRequest) (*Stream, error) {
	b, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:streamGenerateContent?alt=sse", c.BaseURL, c.Model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.APIKey != "" {
		httpReq.Header.Set("x-goog-api-key", c.APIKey)
	}

	resp, err := c.HTTP.Do(httpReq)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
		_ = resp.Body.Close()
		var out apiErrorResponse
		_ = json.Unmarshal(raw, &out)
		if out.Error != nil && out.Error.Message != "" {
			return nil, fmt.Errorf("gemini http %d: %s", resp.StatusCode, out.Error.Message)
		}
		return nil, fmt.Errorf("gemini http %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	sc := bufio.NewScanner(resp.Body)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	return &Stream{body: resp.Body, sc: sc}, nil
}

// Stream is a lazy, ordered, non-restartable sequence of text chunks read
// off a server-sent-events response body.
type Stream struct {
	body io.ReadCloser
	sc   *bufio.Scanner
	done bool
}

type streamChunk struct {
	Candidates []struct {
		Content Content `json:"content"`
	} `json:"candidates"`
}

// Recv returns the text of the next chunk, or io.EOF at the natural end of
// the stream. Chunks that carry no text are skipped.
func (s *Stream) Recv() (string, error) {
	if s.done {
		return "", io.EOF
	}
	for s.sc.Scan() {
		line := strings.TrimSpace(s.sc.Text())
		if line == "" {
			continue
		}
		data, ok := strings.CutPrefix(line, "data:")
		if !ok {
			continue
		}
		data = strings.TrimSpace(data)
		if data == "" || data == "[DONE]" {
			continue
		}
		var chunk streamChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			s.done = true
			return "", fmt.Errorf("gemini stream: decode chunk: %w", err)
		}
		text := chunkText(chunk)
		if text == "" {
			continue
		}
		return text, nil
	}
	s.done = true
	if err := s.sc.Err(); err != nil {
		return "", fmt.Errorf("gemini stream: %w", err)
	}
	return "", io.EOF
}

func (s *Stream) Close() error {
	s.done = true
	return s.body.Close()
}

func chunkText(chunk streamChunk) string {
	var b strings.Builder
	for _, cand := range chunk.Candidates {
		for _, part := range cand.Content.Parts {
			b.WriteString(part.Text)
		}
	}
	return b.String()
}
