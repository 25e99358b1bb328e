package lwa

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bucs445fall2025/project-stackoverflowed/internal/config"
	"github.com/bucs445fall2025/project-stackoverflowed/internal/domain/spapi"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*HTTPTokenClient, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := config.Config{
		TokenEndpoint:      srv.URL,
		AmazonClientID:     "amzn1.application-oa2-client.test",
		AmazonClientSecret: "secret",
		RedirectURI:        "https://gateway.example.com/auth/callback",
		UpstreamTimeout:    5 * time.Second,
	}
	return NewHTTPTokenClient(srv.Client(), cfg), srv
}

func TestExchangeAuthorizationCode(t *testing.T) {
	var form url.Values
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		form = r.PostForm
		require.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"Atza|abc","refresh_token":"Atzr|def","token_type":"bearer","expires_in":3600}`))
	})

	resp, err := client.ExchangeAuthorizationCode(context.Background(), "ANDMxqpCeSWzVVCT")
	require.NoError(t, err)
	require.Equal(t, "Atza|abc", resp.AccessToken)
	require.Equal(t, "Atzr|def", resp.RefreshToken)
	require.Equal(t, int64(3600), resp.ExpiresIn)

	require.Equal(t, "authorization_code", form.Get("grant_type"))
	require.Equal(t, "ANDMxqpCeSWzVVCT", form.Get("code"))
	require.Equal(t, "amzn1.application-oa2-client.test", form.Get("client_id"))
	require.Equal(t, "secret", form.Get("client_secret"))
	require.Equal(t, "https://gateway.example.com/auth/callback", form.Get("redirect_uri"))
}

func TestExchangeAuthorizationCode_EmptyCode(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected")
	})

	_, err := client.ExchangeAuthorizationCode(context.Background(), "  ")
	require.Error(t, err)
}

func TestExchangeAuthorizationCode_OAuthError(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"invalid_request","error_description":"code has expired"}`))
	})

	_, err := client.ExchangeAuthorizationCode(context.Background(), "stale-code")
	var tokenErr *spapi.TokenError
	require.ErrorAs(t, err, &tokenErr)
	require.Equal(t, "authorization_code", tokenErr.GrantType)
	require.Equal(t, http.StatusBadRequest, tokenErr.StatusCode)
	require.Equal(t, "invalid_request", tokenErr.Code)
	require.Equal(t, "code has expired", tokenErr.Description)
	require.False(t, tokenErr.ReauthorizeRequired())
}

func TestRefreshAccessToken(t *testing.T) {
	var form url.Values
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		form = r.PostForm
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"Atza|fresh","token_type":"bearer","expires_in":3600}`))
	})

	resp, err := client.RefreshAccessToken(context.Background(), "Atzr|def")
	require.NoError(t, err)
	require.Equal(t, "Atza|fresh", resp.AccessToken)
	// LWA does not rotate refresh tokens; the response omits it.
	require.Empty(t, resp.RefreshToken)

	require.Equal(t, "refresh_token", form.Get("grant_type"))
	require.Equal(t, "Atzr|def", form.Get("refresh_token"))
	require.Empty(t, form.Get("redirect_uri"))
}

func TestRefreshAccessToken_EmptyToken(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected")
	})

	_, err := client.RefreshAccessToken(context.Background(), "")
	require.ErrorIs(t, err, spapi.ErrUnauthenticated)
}

func TestRefreshAccessToken_InvalidGrant(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"invalid_grant","error_description":"The request has an invalid grant parameter"}`))
	})

	_, err := client.RefreshAccessToken(context.Background(), "Atzr|revoked")
	var tokenErr *spapi.TokenError
	require.ErrorAs(t, err, &tokenErr)
	require.Equal(t, "refresh_token", tokenErr.GrantType)
	require.Equal(t, "invalid_grant", tokenErr.Code)
	require.True(t, tokenErr.ReauthorizeRequired())
}

func TestTokenClient_NonJSONErrorBody(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("<html>upstream unavailable</html>"))
	})

	_, err := client.RefreshAccessToken(context.Background(), "Atzr|def")
	var tokenErr *spapi.TokenError
	require.ErrorAs(t, err, &tokenErr)
	require.Equal(t, http.StatusBadGateway, tokenErr.StatusCode)
	require.Contains(t, tokenErr.Description, "upstream unavailable")
}

func TestTokenClient_MissingAccessToken(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"token_type":"bearer","expires_in":3600}`))
	})

	_, err := client.RefreshAccessToken(context.Background(), "Atzr|def")
	require.Error(t, err)
	require.Contains(t, err.Error(), "missing access_token")
}
