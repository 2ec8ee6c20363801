package client

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"unicode/utf8"
)

// apiError is the server's error envelope.
type apiError struct {
	Error string `json:"error"`
}

func getJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	return doJSON(req, out)
}

func postJSON(ctx context.Context, url string, body any, out any) error {
	b, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return doJSON(req, out)
}

func doDelete(ctx context.Context, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, url, nil)
	if err != nil {
		return err
	}
	return doJSON(req, nil)
}

func doJSON(req *http.Request, out any) error {
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode >= 300 {
		var envelope apiError
		if json.NewDecoder(resp.Body).Decode(&envelope) == nil && envelope.Error != "" {
			return fmt.Errorf("%s: %s", resp.Status, envelope.Error)
		}
		return fmt.Errorf("http error: %s", resp.Status)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// decodedUpdate returns a map with the sequence and one of payload_json,
// payload_text, or payload_b64, whichever renders the payload best.
func decodedUpdate(seq uint64, payload []byte) map[string]any {
	out := map[string]any{"sequence": seq}
	// Try JSON first if it looks like JSON
	if len(payload) > 0 && (payload[0] == '{' || payload[0] == '[') {
		var v any
		if json.Unmarshal(payload, &v) == nil {
			out["payload_json"] = v
			return out
		}
	}
	// Then UTF-8 text if valid
	if utf8.Valid(payload) {
		out["payload_text"] = string(payload)
		return out
	}
	// Fallback to base64
	out["payload_b64"] = base64.StdEncoding.EncodeToString(payload)
	return out
}
