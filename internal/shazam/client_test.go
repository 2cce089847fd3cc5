package shazam

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Numenorean/ShazamAPI/internal/signature"
	"github.com/Numenorean/ShazamAPI/pkg/resilience"
)

func testSignature() *signature.Signature {
	sig := &signature.Signature{SampleRate: 16000, NumSamples: 192000}
	sig.Peaks[signature.Band520To1450] = []signature.Peak{
		{Pass: 10, Magnitude: 6500, Bin: 8192},
	}
	return sig
}

func fastClient(baseURL string) *Client {
	return NewClient(Config{
		BaseURL: baseURL,
		Retry: &resilience.RetryConfig{
			MaxAttempts:     3,
			InitialInterval: time.Millisecond,
			MaxInterval:     time.Millisecond,
			Multiplier:      1,
		},
	})
}

var tagPathRe = regexp.MustCompile(
	`^/discovery/v5/ru/RU/iphone/-/tag/[0-9A-F-]{36}/[0-9A-F-]{36}$`)

func TestRecognize_RequestShape(t *testing.T) {
	var gotPath string
	var gotHeaders http.Header
	var gotBody map[string]json.RawMessage

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotHeaders = r.Header.Clone()
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		w.Write([]byte(`{"matches":[],"timestamp":1}`))
	}))
	defer server.Close()

	client := fastClient(server.URL)

	resp, err := client.Recognize(context.Background(), testSignature())
	require.NoError(t, err)
	assert.False(t, resp.Matched())

	assert.Regexp(t, tagPathRe, gotPath)
	assert.Equal(t, "IPHONE", gotHeaders.Get("X-Shazam-Platform"))
	assert.Equal(t, "14.1.0", gotHeaders.Get("X-Shazam-AppVersion"))
	assert.Equal(t, "Shazam/3685 CFNetwork/1197 Darwin/20.0.0", gotHeaders.Get("User-Agent"))
	assert.Equal(t, "ru", gotHeaders.Get("Accept-Language"))

	var sigPayload struct {
		URI      string `json:"uri"`
		SampleMS int    `json:"samplems"`
	}
	require.NoError(t, json.Unmarshal(gotBody["signature"], &sigPayload))
	assert.True(t, strings.HasPrefix(sigPayload.URI, signature.DataURIPrefix))
	assert.Equal(t, 12000, sigPayload.SampleMS)

	var timezone string
	require.NoError(t, json.Unmarshal(gotBody["timezone"], &timezone))
	assert.Equal(t, "Europe/Moscow", timezone)

	// The URI in the request must decode back to the submitted signature.
	decoded, err := signature.DecodeFromURI(sigPayload.URI)
	require.NoError(t, err)
	assert.Equal(t, testSignature().Peaks, decoded.Peaks)
}

func TestRecognize_ParsesMatchedResponse(t *testing.T) {
	payload := `{
		"matches": [{"id": "123", "offset": 30.5}],
		"track": {"key": "t1", "title": "Song", "subtitle": "Artist"},
		"timestamp": 1700000000000,
		"tagid": "ABC"
	}`

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(payload))
	}))
	defer server.Close()

	client := fastClient(server.URL)

	resp, err := client.Recognize(context.Background(), testSignature())
	require.NoError(t, err)

	assert.True(t, resp.Matched())
	require.NotNil(t, resp.Track)
	assert.Equal(t, "Song", resp.Track.Title)
	assert.Equal(t, "Artist", resp.Track.Subtitle)
	assert.Equal(t, "ABC", resp.TagID)
	assert.InDelta(t, 30.5, resp.Matches[0].Offset, 1e-9)
	assert.JSONEq(t, payload, string(resp.Raw))
}

func TestRecognize_ServiceErrorIsNotRetried(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := fastClient(server.URL)

	_, err := client.Recognize(context.Background(), testSignature())

	var serviceErr *ServiceError
	require.ErrorAs(t, err, &serviceErr)
	assert.Equal(t, http.StatusTooManyRequests, serviceErr.Status)
	assert.Equal(t, 1, calls, "service errors must not be retried")
}

func TestRecognize_MalformedPayloadIsServiceError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>not json</html>"))
	}))
	defer server.Close()

	client := fastClient(server.URL)

	_, err := client.Recognize(context.Background(), testSignature())

	var serviceErr *ServiceError
	assert.ErrorAs(t, err, &serviceErr)
}

func TestRecognize_TransportErrorIsRetried(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			// Drop the connection mid-response.
			hj, ok := w.(http.Hijacker)
			require.True(t, ok)
			conn, _, err := hj.Hijack()
			require.NoError(t, err)
			conn.Close()
			return
		}
		w.Write([]byte(`{"matches":[]}`))
	}))
	defer server.Close()

	client := fastClient(server.URL)

	resp, err := client.Recognize(context.Background(), testSignature())
	require.NoError(t, err)
	assert.False(t, resp.Matched())
	assert.Equal(t, 3, calls)
}

func TestRecognize_RateLimiterPacesRequests(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Write([]byte(`{"matches":[]}`))
	}))
	defer server.Close()

	const refill = 40 * time.Millisecond

	client := fastClient(server.URL)
	client.cfg.Limiter = resilience.NewRateLimiter(1, refill)

	start := time.Now()
	_, err := client.Recognize(context.Background(), testSignature())
	require.NoError(t, err)

	// The bucket is empty now, so the second request must wait a refill.
	_, err = client.Recognize(context.Background(), testSignature())
	require.NoError(t, err)

	assert.Equal(t, 2, calls)
	assert.GreaterOrEqual(t, time.Since(start), refill)
}

func TestRecognize_RateLimiterWaitHonorsContext(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Write([]byte(`{"matches":[]}`))
	}))
	defer server.Close()

	client := fastClient(server.URL)
	client.cfg.Limiter = resilience.NewRateLimiter(1, time.Hour)

	_, err := client.Recognize(context.Background(), testSignature())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = client.Recognize(ctx, testSignature())

	var transportErr *TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, calls, "a request blocked on the limiter must not reach the service")
}

func TestRecognize_TransportErrorAfterExhaustedRetries(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // nothing listens anymore

	client := fastClient(server.URL)

	_, err := client.Recognize(context.Background(), testSignature())

	var transportErr *TransportError
	assert.ErrorAs(t, err, &transportErr)
}
