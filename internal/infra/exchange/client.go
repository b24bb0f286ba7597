package exchange

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"voice-call/internal/domain"
	"voice-call/internal/infra"
)

const (
	headerUserText = "X-User-Text"
	headerAIText   = "X-AI-Text"

	maxReplyBytes = 32 * 1024 * 1024
)

// Client posts utterances to the conversation backend and returns the spoken
// reply. The reply body is audio; the transcript travels in percent-encoded
// response headers.
type Client struct {
	baseURL    string
	httpClient *http.Client
	retry      infra.RetryConfig
}

func NewClient(baseURL string, timeout time.Duration, maxAttempts int) *Client {
	retry := infra.DefaultRetryConfig()
	retry.MaxAttempts = max(maxAttempts, 1)
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		retry:      retry,
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

// Exchange uploads u and waits for the reply. Every failure is wrapped in
// domain.ErrExchangeFailure.
func (c *Client) Exchange(ctx context.Context, u *domain.Utterance) (*domain.Reply, error) {
	var reply *domain.Reply

	retryErr := infra.WithRetry(ctx, c.retry, func() error {
		body, contentType, err := buildUpload(u)
		if err != nil {
			return infra.Permanent(err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", body)
		if err != nil {
			return infra.Permanent(fmt.Errorf("creating request: %w", err))
		}
		req.Header.Set("Content-Type", contentType)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("sending request: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			err := fmt.Errorf("chat API error %d: %s", resp.StatusCode, readError(resp.Body))
			if infra.IsRetryableHTTPStatus(resp.StatusCode) {
				return err
			}
			return infra.Permanent(err)
		}

		r, err := decodeReply(resp)
		if err != nil {
			return infra.Permanent(err)
		}
		reply = r
		return nil
	})

	if retryErr != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrExchangeFailure, retryErr)
	}
	return reply, nil
}

// Ping checks that the backend answers on its root endpoint.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/", nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("backend health %s", resp.Status)
	}
	return nil
}

func buildUpload(u *domain.Utterance) (io.Reader, string, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="audio"; filename="%s"`, uploadName(u.MediaType)))
	h.Set("Content-Type", u.MediaType)
	part, err := writer.CreatePart(h)
	if err != nil {
		return nil, "", fmt.Errorf("creating form file: %w", err)
	}
	if _, err := part.Write(u.Data); err != nil {
		return nil, "", fmt.Errorf("writing audio: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("closing writer: %w", err)
	}
	return body, writer.FormDataContentType(), nil
}

func uploadName(mediaType string) string {
	switch mediaType {
	case "audio/wav":
		return "user_speech.wav"
	case "audio/ogg":
		return "user_speech.ogg"
	default:
		return "user_speech.webm"
	}
}

func decodeReply(resp *http.Response) (*domain.Reply, error) {
	audio, err := io.ReadAll(io.LimitReader(resp.Body, maxReplyBytes))
	if err != nil {
		return nil, fmt.Errorf("reading reply audio: %w", err)
	}

	userText, err := url.PathUnescape(resp.Header.Get(headerUserText))
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", headerUserText, err)
	}
	aiText, err := url.PathUnescape(resp.Header.Get(headerAIText))
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", headerAIText, err)
	}

	return &domain.Reply{
		Audio:     audio,
		MediaType: resp.Header.Get("Content-Type"),
		UserText:  userText,
		AIText:    aiText,
	}, nil
}

func readError(r io.Reader) string {
	body, _ := io.ReadAll(io.LimitReader(r, 4096))
	var er errorResponse
	if err := json.Unmarshal(body, &er); err == nil && er.Error != "" {
		return er.Error
	}
	if len(body) == 0 {
		return "empty response"
	}
	return strings.TrimSpace(string(body))
}
