package partner

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/prudhvinik1/numberwatch/internal/ratelimit"
)

func TestClient_ListResources_FollowsPagination(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/waba-1/phone_numbers", r.URL.Path)
		assert.Equal(t, "Bearer plain-token", r.Header.Get("Authorization"))
		if r.URL.Query().Get("after") == "" {
			fmt.Fprint(w, `{"data":[{"id":"111","display_phone_number":"+1 555 0100"}],
				"paging":{"cursors":{"after":"c1"},"next":"https://next"}}`)
			return
		}
		fmt.Fprint(w, `{"data":[{"id":"222","display_phone_number":"+1 555 0200"}],"paging":{"cursors":{"after":"c2"}}}`)
	}))
	defer server.Close()
	client := newTestClient(server.URL, ratelimit.NewMemoryLimiter(10, time.Minute))

	resources, err := client.ListResources(context.Background(), "acct-1", "waba-1", "plain-token")

	require.NoError(t, err)
	require.Len(t, resources, 2)
	assert.Equal(t, "111", resources[0].ID)
	assert.Equal(t, "+1 555 0200", resources[1].DisplayID)
}

func TestClient_ListResources_Malformed(t *testing.T) {
	for name, body := range map[string]string{
		"not json":      `<html>gateway</html>`,
		"missing data":  `{"items":[]}`,
		"null envelope": `null`,
	} {
		t.Run(name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, body)
			}))
			defer server.Close()
			client := newTestClient(server.URL, ratelimit.NewMemoryLimiter(10, time.Minute))

			_, err := client.ListResources(context.Background(), "acct-1", "waba-1", "tok")

			require.Error(t, err)
			assert.Equal(t, KindMalformedResponse, KindOf(err))
		})
	}
}

func TestClient_FetchResourceDetail_KeepsRawPayload(t *testing.T) {
	payload := `{"id":"111","display_phone_number":"+1 555 0100","verified_name":"Acme",
		"quality_rating":"GREEN","messaging_limit_tier":"TIER_10K","status":"CONNECTED","name_status":"APPROVED"}`
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/111", r.URL.Path)
		assert.Contains(t, r.URL.Query().Get("fields"), "quality_rating")
		fmt.Fprint(w, payload)
	}))
	defer server.Close()
	client := newTestClient(server.URL, ratelimit.NewMemoryLimiter(10, time.Minute))

	detail, err := client.FetchResourceDetail(context.Background(), "acct-1", "111", "tok")

	require.NoError(t, err)
	assert.Equal(t, "Acme", detail.VerifiedName)
	assert.Equal(t, "TIER_10K", detail.ThroughputTier)
	assert.JSONEq(t, payload, string(detail.Raw))
}

func TestClient_FetchResourceDetail_MissingID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"quality_rating":"GREEN"}`)
	}))
	defer server.Close()
	client := newTestClient(server.URL, ratelimit.NewMemoryLimiter(10, time.Minute))

	_, err := client.FetchResourceDetail(context.Background(), "acct-1", "111", "tok")

	assert.Equal(t, KindMalformedResponse, KindOf(err))
}

func TestClient_ClassifiesStatusErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		kind   ErrorKind
		reauth bool
	}{
		{"expired token code", http.StatusBadRequest, `{"error":{"message":"Error validating access token","type":"OAuthException","code":190}}`, KindAuthInvalid, true},
		{"unauthorized status", http.StatusUnauthorized, `{}`, KindAuthInvalid, true},
		{"session expired code", http.StatusBadRequest, `{"error":{"message":"Session has expired","code":463}}`, KindAuthInvalid, true},
		{"partner throttling", http.StatusBadRequest, `{"error":{"message":"Rate limit hit","code":80007}}`, KindRateLimited, false},
		{"too many requests", http.StatusTooManyRequests, ``, KindRateLimited, false},
		{"server error", http.StatusInternalServerError, `oops`, KindUnknown, false},
		{"other vendor error", http.StatusBadRequest, `{"error":{"message":"Invalid parameter","code":100}}`, KindUnknown, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			}))
			defer server.Close()
			client := newTestClient(server.URL, ratelimit.NewMemoryLimiter(10, time.Minute))

			_, err := client.FetchResourceDetail(context.Background(), "acct-1", "111", "tok")

			var perr *Error
			require.True(t, errors.As(err, &perr))
			assert.Equal(t, tt.kind, perr.Kind)
			assert.Equal(t, tt.status, perr.StatusCode)
			assert.Equal(t, tt.reauth, perr.NeedsReauth())
		})
	}
}

func TestClient_Timeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()
	defer close(release)

	client := NewClient(server.URL, 50*time.Millisecond, ratelimit.NewMemoryLimiter(10, time.Minute), zap.NewNop())

	_, err := client.FetchResourceDetail(context.Background(), "acct-1", "111", "tok")

	assert.Equal(t, KindTimeout, KindOf(err))
}

func TestClient_TransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()
	client := newTestClient(url, ratelimit.NewMemoryLimiter(10, time.Minute))

	_, err := client.ListResources(context.Background(), "acct-1", "waba-1", "tok")

	assert.Equal(t, KindTransport, KindOf(err))
}

func TestClient_RateLimitedSkipsNetwork(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		fmt.Fprint(w, `{"id":"111"}`)
	}))
	defer server.Close()
	client := newTestClient(server.URL, ratelimit.NewMemoryLimiter(1, time.Minute))

	_, err := client.FetchResourceDetail(context.Background(), "acct-1", "111", "tok")
	require.NoError(t, err)

	_, err = client.FetchResourceDetail(context.Background(), "acct-1", "111", "tok")

	assert.ErrorIs(t, err, ErrRateLimited)
	assert.Equal(t, KindRateLimited, KindOf(err))
	assert.Equal(t, int32(1), hits.Load(), "denied call must not reach the partner")
}

// Helper functions

func newTestClient(baseURL string, limiter ratelimit.Limiter) *Client {
	return NewClient(baseURL, time.Second, limiter, zap.NewNop())
}
