package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	// DefaultAPIURL is the hosted captioning endpoint used when no
	// override is configured.
	DefaultAPIURL = "https://api-inference.huggingface.co/models/Salesforce/blip-image-captioning-base"

	apiTimeout    = 30 * time.Second
	apiConfidence = 0.8
)

// Opener reads media files, retrying transient storage errors on the way.
type Opener interface {
	Open(path string) (io.ReadCloser, error)
}

// API calls a hosted image captioning endpoint. Without a token the
// backend reports itself unavailable so the chain moves on.
type API struct {
	url    string
	token  string
	files  Opener
	client *http.Client
}

func NewAPI(url, token string, files Opener) *API {
	if url == "" {
		url = DefaultAPIURL
	}
	return &API{
		url:    url,
		token:  token,
		files:  files,
		client: &http.Client{Timeout: apiTimeout},
	}
}

func (a *API) Name() string { return "api" }

func (a *API) Analyze(ctx context.Context, path string) (*Result, error) {
	if a.token == "" {
		return nil, fmt.Errorf("%w: no API token configured", ErrBackendUnavailable)
	}

	rc, err := a.files.Open(path)
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.url, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+a.token)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("captioning API request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("captioning API returned %s", resp.Status)
	}

	description, err := parseCaption(resp.Body)
	if err != nil {
		return nil, err
	}
	if description == "" {
		return nil, fmt.Errorf("captioning API returned an empty caption")
	}

	return &Result{
		Description: description,
		Tags:        ExtractTags(description),
		Confidence:  apiConfidence,
	}, nil
}

// parseCaption accepts both response shapes the endpoint produces: a
// list of generations or a single object.
func parseCaption(body io.Reader) (string, error) {
	var raw json.RawMessage
	if err := json.NewDecoder(body).Decode(&raw); err != nil {
		return "", fmt.Errorf("decode captioning response: %w", err)
	}

	type generation struct {
		GeneratedText string `json:"generated_text"`
	}

	var list []generation
	if err := json.Unmarshal(raw, &list); err == nil {
		if len(list) == 0 {
			return "", nil
		}
		return list[0].GeneratedText, nil
	}

	var single generation
	if err := json.Unmarshal(raw, &single); err != nil {
		return "", fmt.Errorf("decode captioning response: %w", err)
	}
	return single.GeneratedText, nil
}
