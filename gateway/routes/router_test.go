package routes

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"partnerledger/core/nodetest"
	"partnerledger/gateway/middleware"
	"partnerledger/native/access"
	"partnerledger/native/attribution"
	"partnerledger/native/claims"
	nativecommon "partnerledger/native/common"
	"partnerledger/native/system/pauses"
	"partnerledger/observability"
)

type harness struct {
	t       *testing.T
	fixture *nodetest.Fixture
	handler http.Handler
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	f := nodetest.New(t)
	log := observability.NewEventLog(nil, 64)
	f.Node.SetEmitter(log)
	handler, err := New(Config{Node: f.Node, Events: log})
	require.NoError(t, err)
	return &harness{t: t, fixture: f, handler: handler}
}

func (h *harness) do(method, path string, as common.Address, body interface{}) *httptest.ResponseRecorder {
	h.t.Helper()
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		require.NoError(h.t, err)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	if as != (common.Address{}) {
		req.Header.Set("X-Ledger-Caller", as.Hex())
	}
	res := httptest.NewRecorder()
	h.handler.ServeHTTP(res, req)
	return res
}

func TestHealthz(t *testing.T) {
	h := newHarness(t)
	res := h.do(http.MethodGet, "/healthz", common.Address{}, nil)
	require.Equal(t, http.StatusOK, res.Code)
}

func TestDepositAttributeClaimFlow(t *testing.T) {
	h := newHarness(t)
	h.fixture.Mint(nodetest.ProjectAdmin, nodetest.Fungible, 10_000)
	project := nodetest.ProjectA.Hex()
	token := nodetest.Fungible.Hex()

	res := h.do(http.MethodPost, "/v1/projects/"+project+"/deposits", nodetest.ProjectAdmin, map[string]string{
		"currency": token,
		"amount":   "10000",
	})
	require.Equal(t, http.StatusNoContent, res.Code, res.Body.String())

	res = h.do(http.MethodPost, "/v1/attributions", nodetest.Attributor, map[string]interface{}{
		"requests": []map[string]interface{}{{
			"project": project,
			"entries": []map[string]interface{}{{
				"conversionId": "order-1",
				"currency":     token,
				"partner":      nodetest.Partner.Hex(),
				"endUser":      nodetest.EndUser.Hex(),
				"toPartner":    map[string]string{"amount": "500"},
				"toEndUser":    map[string]string{"amount": "500"},
			}},
		}},
	})
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())
	var attributed attributeResponse
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &attributed))
	require.Equal(t, 1, attributed.Entries)
	require.NotEmpty(t, attributed.BatchID)

	res = h.do(http.MethodGet, fmt.Sprintf("/v1/projects/%s/claimable/%s/%s", project, nodetest.Partner.Hex(), token), common.Address{}, nil)
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())
	var claimable assetJSON
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &claimable))
	require.Equal(t, "482", claimable.Amount)

	res = h.do(http.MethodPost, "/v1/claims", nodetest.Partner, map[string]interface{}{
		"checks": []map[string]string{{"project": project, "currency": token}},
	})
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())
	var claimed claimResponse
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &claimed))
	require.Len(t, claimed.Payouts, 1)
	require.Equal(t, "482", claimed.Payouts[0].Asset.Amount)
	require.Equal(t, int64(482), h.fixture.Balance(nodetest.Partner, nodetest.Fungible).Int64())

	res = h.do(http.MethodPost, "/v1/claims", nodetest.Partner, map[string]interface{}{
		"checks": []map[string]string{{"project": project, "currency": token}},
	})
	require.Equal(t, http.StatusUnprocessableEntity, res.Code, res.Body.String())

	res = h.do(http.MethodGet, "/v1/events", common.Address{}, nil)
	require.Equal(t, http.StatusOK, res.Code)
	require.Contains(t, res.Body.String(), "claims.claimed")
}

func TestWriteRoutesRequireCaller(t *testing.T) {
	h := newHarness(t)
	res := h.do(http.MethodPost, "/v1/claims", common.Address{}, map[string]interface{}{"checks": []interface{}{}})
	require.Equal(t, http.StatusUnauthorized, res.Code)
}

func TestAttributeRejectsNonAttributor(t *testing.T) {
	h := newHarness(t)
	res := h.do(http.MethodPost, "/v1/attributions", nodetest.Partner, map[string]interface{}{
		"requests": []map[string]interface{}{{
			"project": nodetest.ProjectA.Hex(),
			"entries": []map[string]interface{}{{
				"conversionId": "order-1",
				"currency":     nodetest.Fungible.Hex(),
				"partner":      nodetest.Partner.Hex(),
				"endUser":      nodetest.EndUser.Hex(),
				"toPartner":    map[string]string{"amount": "1"},
			}},
		}},
	})
	require.Equal(t, http.StatusForbidden, res.Code, res.Body.String())
}

func TestMalformedBodyIsBadRequest(t *testing.T) {
	h := newHarness(t)
	res := h.do(http.MethodPost, "/v1/claims", nodetest.Partner, map[string]interface{}{"unexpected": true})
	require.Equal(t, http.StatusBadRequest, res.Code)
}

func TestPauseBlocksClaims(t *testing.T) {
	h := newHarness(t)
	res := h.do(http.MethodPut, "/v1/pauses/claims", nodetest.Pauser, map[string]bool{"paused": true})
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())
	var status pauseJSON
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &status))
	require.True(t, status.Paused)

	res = h.do(http.MethodPost, "/v1/claims", nodetest.Partner, map[string]interface{}{
		"checks": []map[string]string{{"project": nodetest.ProjectA.Hex(), "currency": nodetest.Fungible.Hex()}},
	})
	require.Equal(t, http.StatusServiceUnavailable, res.Code, res.Body.String())

	res = h.do(http.MethodPut, "/v1/pauses/unknown", nodetest.Pauser, map[string]bool{"paused": true})
	require.Equal(t, http.StatusNotFound, res.Code, res.Body.String())
}

func TestCurrencyRoutes(t *testing.T) {
	h := newHarness(t)
	res := h.do(http.MethodGet, "/v1/currencies/native", common.Address{}, nil)
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())
	var view currencyJSON
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &view))
	require.True(t, view.Active)

	res = h.do(http.MethodPut, "/v1/currencies/"+nodetest.Fungible.Hex()+"/limit", nodetest.Admin, map[string]string{"limit": "100"})
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())

	res = h.do(http.MethodDelete, "/v1/currencies/"+nodetest.Fungible.Hex(), nodetest.Partner, nil)
	require.Equal(t, http.StatusForbidden, res.Code, res.Body.String())
}

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{access.ErrUnauthorized, http.StatusForbidden},
		{fmt.Errorf("wrapped: %w", nativecommon.ErrModulePaused), http.StatusServiceUnavailable},
		{claims.ErrOverTheLimit, http.StatusTooManyRequests},
		{attribution.ErrProofAlreadyUsed, http.StatusConflict},
		{pauses.ErrUnknownModule, http.StatusNotFound},
		{claims.ErrEmptyBatch, http.StatusBadRequest},
		{errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, statusFor(tc.err), tc.err.Error())
	}
}

func newCORSHandler(t *testing.T, cors middleware.CORSConfig) http.Handler {
	t.Helper()
	f := nodetest.New(t)
	handler, err := New(Config{Node: f.Node, Events: observability.NewEventLog(nil, 8), CORS: cors})
	require.NoError(t, err)
	return handler
}

func preflight(handler http.Handler, origin, method, headers string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodOptions, "/v1/claims", nil)
	req.Header.Set("Origin", origin)
	req.Header.Set("Access-Control-Request-Method", method)
	req.Header.Set("Access-Control-Request-Headers", headers)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	return res
}

func TestPreflightAllowsCallerHeaders(t *testing.T) {
	handler := newCORSHandler(t, middleware.CORSConfig{
		AllowedOrigins:   []string{"https://dashboard.example"},
		AllowedHeaders:   []string{"x-request-id"},
		AllowCredentials: true,
		MaxAge:           10 * time.Minute,
	})

	res := preflight(handler, "https://dashboard.example", http.MethodPost, "authorization, x-ledger-caller")
	require.Equal(t, http.StatusNoContent, res.Code)
	require.Equal(t, "https://dashboard.example", res.Header().Get("Access-Control-Allow-Origin"))
	require.Equal(t, "true", res.Header().Get("Access-Control-Allow-Credentials"))
	require.Equal(t, "600", res.Header().Get("Access-Control-Max-Age"))
	allowed := res.Header().Get("Access-Control-Allow-Headers")
	for _, name := range []string{"Authorization", middleware.CallerHeader, "Content-Type", "X-Request-Id"} {
		require.Contains(t, allowed, name)
	}
	require.Contains(t, res.Header().Get("Access-Control-Allow-Methods"), http.MethodPost)
	exposed := res.Header().Get("Access-Control-Expose-Headers")
	require.Contains(t, exposed, middleware.CallerHeader)
	require.Contains(t, exposed, "Authorization")
	require.Contains(t, res.Header().Values("Vary"), "Origin")

	res = preflight(handler, "https://elsewhere.example", http.MethodPost, "authorization")
	require.Equal(t, http.StatusForbidden, res.Code)
	require.Empty(t, res.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSWildcardOnSimpleRequest(t *testing.T) {
	handler := newCORSHandler(t, middleware.CORSConfig{AllowedOrigins: []string{"*"}})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Origin", "https://any.example")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	require.Equal(t, http.StatusOK, res.Code)
	require.Equal(t, "*", res.Header().Get("Access-Control-Allow-Origin"))
	require.Contains(t, res.Header().Get("Access-Control-Expose-Headers"), middleware.CallerHeader)
	require.Empty(t, res.Header().Get("Access-Control-Allow-Credentials"))
}
