package handler_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/bucs445fall2025/project-stackoverflowed/internal/adapter/lwa"
	spapiadapter "github.com/bucs445fall2025/project-stackoverflowed/internal/adapter/spapi"
	"github.com/bucs445fall2025/project-stackoverflowed/internal/config"
	"github.com/bucs445fall2025/project-stackoverflowed/internal/domain/spapi"
	httptransport "github.com/bucs445fall2025/project-stackoverflowed/internal/http"
	"github.com/bucs445fall2025/project-stackoverflowed/internal/http/handler"
	"github.com/bucs445fall2025/project-stackoverflowed/internal/service"
	"github.com/bucs445fall2025/project-stackoverflowed/internal/session"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	m.Run()
}

type gatewayHarness struct {
	router   *gin.Engine
	sessions *session.Cache

	lwaCalls   *int32
	spapiCalls *int32
}

// newGatewayHarness assembles the full request path with fake upstreams:
// a token endpoint and an SP-API host, both local.
func newGatewayHarness(t *testing.T, spapiHandler http.HandlerFunc) *gatewayHarness {
	t.Helper()

	var lwaCalls, spapiCalls int32
	lwaSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&lwaCalls, 1)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"Atza|abc","refresh_token":"Atzr|def","token_type":"bearer","expires_in":3600}`))
	}))
	t.Cleanup(lwaSrv.Close)

	if spapiHandler == nil {
		spapiHandler = func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"payload":[]}`))
		}
	}
	spapiSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&spapiCalls, 1)
		spapiHandler(w, r)
	}))
	t.Cleanup(spapiSrv.Close)

	cfg := config.Config{
		ServiceName:        "spapi-gateway",
		AmazonClientID:     "amzn1.application-oa2-client.test",
		AmazonClientSecret: "secret",
		SPAppID:            "amzn1.sp.solution.test",
		RedirectURI:        "https://gateway.example.com/auth/callback",
		ConsentURL:         "https://sellercentral.amazon.com/apps/authorize/consent",
		FrontendURL:        "https://dashboard.example.com/",
		TokenEndpoint:      lwaSrv.URL,
		SPAPIEnv:           config.EnvSandbox,
		AWSRegion:          "us-east-1",
		AWSAccessKeyID:     "AKIDEXAMPLE",
		AWSSecretAccessKey: "wJalrXUtnFEMI/K7MDENG+bPxRfiCYEXAMPLEKEY",
		UserAgent:          "StackOverflowed-App/0.1 (Language=Go)",
		TokenSafetyBuffer:  time.Minute,
		StateTTL:           10 * time.Minute,
		UpstreamTimeout:    5 * time.Second,
	}

	logger := zap.NewNop()
	states := newMemoryStateStore()
	tokens := lwa.NewHTTPTokenClient(lwaSrv.Client(), cfg)
	sessions := session.NewCache(tokens, &discardSessionStore{}, cfg.TokenSafetyBuffer, logger)
	api := spapiadapter.NewClient(cfg, sessions, logger,
		spapiadapter.WithHTTPClient(spapiSrv.Client()),
		spapiadapter.WithEndpoint("http", strings.TrimPrefix(spapiSrv.URL, "http://")),
	)

	authSvc := service.NewAuthService(cfg, states, tokens, sessions, logger)
	marketplaceSvc := service.NewMarketplaceService(api, sessions, logger)

	router := httptransport.NewRouter(cfg,
		handler.NewAuthHandler(authSvc, cfg, logger),
		handler.NewMarketplaceHandler(marketplaceSvc, logger),
		nil,
	)

	return &gatewayHarness{
		router:     router,
		sessions:   sessions,
		lwaCalls:   &lwaCalls,
		spapiCalls: &spapiCalls,
	}
}

func (h *gatewayHarness) do(method, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(method, target, nil)
	h.router.ServeHTTP(rec, req)
	return rec
}

func (h *gatewayHarness) authenticate(t *testing.T) {
	t.Helper()
	h.sessions.SetSession(context.Background(), &spapi.TokenResponse{
		AccessToken:  "Atza|abc",
		RefreshToken: "Atzr|def",
		ExpiresIn:    3600,
	})
}

func TestHealth(t *testing.T) {
	h := newGatewayHarness(t, nil)

	rec := h.do(http.MethodGet, "/")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "sandbox")
}

func TestLogin_RedirectsToConsent(t *testing.T) {
	h := newGatewayHarness(t, nil)

	rec := h.do(http.MethodGet, "/auth/login")
	require.Equal(t, http.StatusFound, rec.Code)

	location, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	require.Equal(t, "sellercentral.amazon.com", location.Host)
	require.Equal(t, "amzn1.sp.solution.test", location.Query().Get("application_id"))
	require.Equal(t, "beta", location.Query().Get("version"))
	require.NotEmpty(t, location.Query().Get("state"))
}

func TestCallback_HappyPath(t *testing.T) {
	h := newGatewayHarness(t, nil)

	login := h.do(http.MethodGet, "/auth/login")
	location, err := url.Parse(login.Header().Get("Location"))
	require.NoError(t, err)
	state := location.Query().Get("state")

	rec := h.do(http.MethodGet, "/auth/callback?spapi_oauth_code=ANDMxqpCeSWzVVCT&state="+url.QueryEscape(state))
	require.Equal(t, http.StatusFound, rec.Code)
	require.Equal(t, "https://dashboard.example.com/", rec.Header().Get("Location"))
	require.Equal(t, int32(1), atomic.LoadInt32(h.lwaCalls))
	require.True(t, h.sessions.Session().Authenticated())
}

func TestCallback_MissingCode(t *testing.T) {
	h := newGatewayHarness(t, nil)

	rec := h.do(http.MethodGet, "/auth/callback?state=s")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "No authorization code provided")
	require.Equal(t, int32(0), atomic.LoadInt32(h.lwaCalls))
}

func TestCallback_ProviderError(t *testing.T) {
	h := newGatewayHarness(t, nil)

	rec := h.do(http.MethodGet, "/auth/callback?error=access_denied&error_description=declined")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "Amazon error: access_denied")
	require.Equal(t, int32(0), atomic.LoadInt32(h.lwaCalls))
}

func TestCallback_UnknownState(t *testing.T) {
	h := newGatewayHarness(t, nil)

	rec := h.do(http.MethodGet, "/auth/callback?spapi_oauth_code=c&state=never-issued")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "restart the login flow")
	require.Equal(t, int32(0), atomic.LoadInt32(h.lwaCalls))
}

func TestParticipations(t *testing.T) {
	h := newGatewayHarness(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"payload":[{"sellerId":"A1","marketplace":{"id":"ATVPDKIKX0DER"}}]}`))
	})
	h.authenticate(t)

	rec := h.do(http.MethodGet, "/marketplace/participations")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"sellerId":"A1"`)
	require.Contains(t, rec.Body.String(), `"marketplaceId":"ATVPDKIKX0DER"`)
}

func TestParticipations_Unauthenticated(t *testing.T) {
	h := newGatewayHarness(t, nil)

	rec := h.do(http.MethodGet, "/marketplace/participations")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Contains(t, rec.Body.String(), `"error":"unauthenticated"`)
	require.Equal(t, int32(0), atomic.LoadInt32(h.spapiCalls))
}

func TestItems_MissingSellerContext(t *testing.T) {
	h := newGatewayHarness(t, nil)
	h.authenticate(t)

	rec := h.do(http.MethodGet, "/marketplace/items/A1")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), `"error":"missing_seller_context"`)
	require.Equal(t, int32(0), atomic.LoadInt32(h.spapiCalls))
}

func TestItems(t *testing.T) {
	h := newGatewayHarness(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"items":[]}`))
	})
	h.authenticate(t)
	h.sessions.UpdateSellerContext(spapi.SellerContext{SellerID: "A1", MarketplaceID: "ATVPDKIKX0DER"})

	rec := h.do(http.MethodGet, "/marketplace/items")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"items":[]}`, rec.Body.String())
}

func TestItems_UpstreamError(t *testing.T) {
	h := newGatewayHarness(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"errors":[{"code":"ServiceUnavailable"}]}`))
	})
	h.authenticate(t)
	h.sessions.UpdateSellerContext(spapi.SellerContext{SellerID: "A1", MarketplaceID: "ATVPDKIKX0DER"})

	rec := h.do(http.MethodGet, "/marketplace/items")
	require.Equal(t, http.StatusBadGateway, rec.Code)
	require.Contains(t, rec.Body.String(), `"error":"upstream_error"`)
}

// ---- fakes ----

type memoryStateStore struct {
	mu     sync.Mutex
	states map[string]spapi.AuthState
}

func newMemoryStateStore() *memoryStateStore {
	return &memoryStateStore{states: make(map[string]spapi.AuthState)}
}

func (m *memoryStateStore) SaveState(_ context.Context, key string, state spapi.AuthState, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[key] = state
	return nil
}

func (m *memoryStateStore) GetState(_ context.Context, key string) (*spapi.AuthState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	state, ok := m.states[key]
	if !ok {
		return nil, nil
	}
	copied := state
	return &copied, nil
}

func (m *memoryStateStore) DeleteState(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.states, key)
	return nil
}

type discardSessionStore struct{}

func (discardSessionStore) Load(context.Context) (*spapi.OAuthSession, error) { return nil, nil }
func (discardSessionStore) Save(context.Context, spapi.OAuthSession) error    { return nil }
func (discardSessionStore) Clear(context.Context) error                       { return nil }
