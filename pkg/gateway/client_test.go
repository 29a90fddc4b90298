package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/gatewaysync/pkg/config"
	pkgerrors "github.com/angelmondragon/gatewaysync/pkg/errors"
	"github.com/angelmondragon/gatewaysync/pkg/logger"
	"github.com/angelmondragon/gatewaysync/pkg/metrics"
)

func newTestClient(t *testing.T, srv *httptest.Server, opts ...Option) *Client {
	t.Helper()
	logg := logger.New(logger.Options{ServiceName: "gateway-test", Output: io.Discard})
	c, err := NewClient(config.GatewayConfig{
		BaseURL:        srv.URL,
		SecretKey:      "sk_test_secret",
		PublicKey:      "pk_test_public",
		Timeout:        2 * time.Second,
		MaxRetries:     1,
		RetryBackoff:   time.Millisecond,
		TrackingHeader: "X-Tracking-Id",
	}, logg, opts...)
	require.NoError(t, err)
	return c
}

func TestNewClientValidatesConfig(t *testing.T) {
	logg := logger.New(logger.Options{Output: io.Discard})
	_, err := NewClient(config.GatewayConfig{SecretKey: "s", PublicKey: "p"}, logg)
	require.Error(t, err)
	_, err = NewClient(config.GatewayConfig{BaseURL: "http://x", PublicKey: "p"}, logg)
	require.Error(t, err)
	_, err = NewClient(config.GatewayConfig{BaseURL: "http://x", SecretKey: "s"}, logg)
	require.Error(t, err)
	_, err = NewClient(config.GatewayConfig{BaseURL: "http://x", SecretKey: "s", PublicKey: "p"}, nil)
	require.Error(t, err)
}

func TestCallSelectsCredentialAndBody(t *testing.T) {
	var gotAuth, gotContentType string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotContentType = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		w.Header().Set("X-Tracking-Id", "trk-42")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"id":"tkn_test_abcdef1234567890","active":true}`))
	}))
	defer srv.Close()
	c := newTestClient(t, srv)

	resp, err := c.Call(context.Background(), Request{Method: http.MethodGet, Path: "/tokens/tkn_x", Body: map[string]any{"ignored": true}, Scope: ScopePublic})
	require.NoError(t, err)
	assert.Equal(t, "Bearer pk_test_public", gotAuth)
	assert.Empty(t, gotBody, "GET must not carry a body")
	assert.Empty(t, gotContentType)
	assert.Equal(t, "trk-42", resp.TrackingID)
	assert.Equal(t, http.StatusOK, resp.Status)

	_, err = c.Call(context.Background(), Request{Method: http.MethodPatch, Path: "/customers/cus_1", Body: map[string]any{"email": "a@b.co"}})
	require.NoError(t, err)
	assert.Equal(t, "Bearer sk_test_secret", gotAuth)
	assert.Equal(t, "application/json", gotContentType)
	assert.JSONEq(t, `{"email":"a@b.co"}`, string(gotBody))
}

func TestCallMapsStatusToCode(t *testing.T) {
	cases := []struct {
		status int
		code   pkgerrors.Code
	}{
		{http.StatusBadRequest, pkgerrors.CodeInvalidRequest},
		{http.StatusUnauthorized, pkgerrors.CodeAuthMisconfigured},
		{http.StatusPaymentRequired, pkgerrors.CodePaymentDeclined},
		{http.StatusNotFound, pkgerrors.CodeNotFound},
		{http.StatusUnprocessableEntity, pkgerrors.CodeUnprocessable},
		{http.StatusTooManyRequests, pkgerrors.CodeRateLimited},
		{http.StatusInternalServerError, pkgerrors.CodeGatewayUnavailable},
		{http.StatusServiceUnavailable, pkgerrors.CodeGatewayUnavailable},
		{http.StatusConflict, pkgerrors.CodeUnknownGateway},
		{http.StatusBadGateway, pkgerrors.CodeUnknownGateway},
	}
	for _, tc := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Tracking-Id", "trk-err")
			w.WriteHeader(tc.status)
			_, _ = w.Write([]byte(`{"object":"error","merchant_message":"boom"}`))
		}))
		c := newTestClient(t, srv)
		_, err := c.Call(context.Background(), Request{Method: http.MethodPost, Path: "/charges"})
		srv.Close()

		typed := pkgerrors.As(err)
		require.NotNil(t, typed, "status %d", tc.status)
		assert.Equal(t, tc.code, typed.Code(), "status %d", tc.status)
		assert.Equal(t, "trk-err", typed.TrackingID(), "status %d", tc.status)
	}
}

func TestDeclineCarriesGatewayFields(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Tracking-Id", "trk-402")
		w.WriteHeader(http.StatusPaymentRequired)
		_, _ = w.Write([]byte(`{"object":"error","type":"card_error","charge_id":"chr_test_partial","code":"card_declined","decline_code":"insufficient_funds","merchant_message":"La tarjeta no tiene fondos","user_message":"Tu tarjeta no tiene fondos suficientes."}`))
	}))
	defer srv.Close()
	c := newTestClient(t, srv)

	_, err := c.CreateCharge(context.Background(), ChargeCreateParams{Amount: 1000, CurrencyCode: "PEN", SourceID: "tkn_test_abcdef1234567890"})
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, pkgerrors.CodePaymentDeclined, typed.Code())
	g := typed.Gateway()
	require.NotNil(t, g)
	assert.Equal(t, "insufficient_funds", g.DeclineCode)
	assert.Equal(t, "Tu tarjeta no tiene fondos suficientes.", g.UserMessage)
	assert.Equal(t, "chr_test_partial", g.ChargeID)
	assert.Equal(t, "card_error", g.Type)
	assert.Equal(t, "La tarjeta no tiene fondos", typed.Message())
}

func TestUnprocessableCarriesParamAndToleratesBadBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "broken") {
			w.WriteHeader(http.StatusUnprocessableEntity)
			_, _ = w.Write([]byte(`<html>oops`))
			return
		}
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"param":"email","merchant_message":"email invalido"}`))
	}))
	defer srv.Close()
	c := newTestClient(t, srv)

	_, err := c.Call(context.Background(), Request{Method: http.MethodPost, Path: "/customers"})
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, "email", typed.Gateway().Param)

	_, err = c.Call(context.Background(), Request{Method: http.MethodPost, Path: "/customers/broken"})
	typed = pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeUnprocessable, typed.Code())
	assert.Contains(t, typed.Message(), "422")
}

func TestAuthMisconfiguredRaisesAlertMetric(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	reg := prometheus.NewRegistry()
	m := metrics.NewGatewayMetrics(reg)
	c := newTestClient(t, srv, WithMetrics(m))

	_, err := c.GetCustomer(context.Background(), "cus_test_1")
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeAuthMisconfigured))

	expected := `
# HELP gatewaysync_gateway_auth_misconfigured_total Gateway responses rejecting the configured credentials.
# TYPE gatewaysync_gateway_auth_misconfigured_total counter
gatewaysync_gateway_auth_misconfigured_total 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "gatewaysync_gateway_auth_misconfigured_total"))
}

func TestCreateDiscriminatesOnStatus(t *testing.T) {
	status := http.StatusCreated
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Tracking-Id", "trk-create")
		w.WriteHeader(status)
		switch status {
		case http.StatusCreated:
			_, _ = w.Write([]byte(`{"object":"card","id":"crd_test_1","customer_id":"cus_test_1","source":{"id":"tkn_test_abcdef1234567890","last_four":"1111","iin":{"card_brand":"Visa","card_type":"credito"}},"active":true}`))
		default:
			_, _ = w.Write([]byte(`{"user_message":"Autentica tu tarjeta","action_code":"REVIEW"}`))
		}
	}))
	defer srv.Close()
	c := newTestClient(t, srv)
	params := CardCreateParams{CustomerID: "cus_test_1", TokenID: "tkn_test_abcdef1234567890"}

	created, err := c.CreateCard(context.Background(), params)
	require.NoError(t, err)
	assert.True(t, created.Created())
	require.NotNil(t, created.Resource)
	assert.Nil(t, created.Challenge)
	assert.Equal(t, "1111", created.Resource.Source.LastFour)
	assert.Equal(t, "Visa", created.Resource.Source.IIN.CardBrand)

	status = http.StatusOK
	challenged, err := c.CreateCard(context.Background(), params)
	require.NoError(t, err)
	assert.True(t, challenged.Challenged())
	assert.Nil(t, challenged.Resource)
	assert.Equal(t, &Challenge{UserMessage: "Autentica tu tarjeta", ActionCode: "REVIEW"}, challenged.Challenge)
	assert.Equal(t, "trk-create", challenged.TrackingID)

	status = http.StatusAccepted
	_, err = c.CreateCard(context.Background(), params)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnknownGateway))
}

func TestRetryPolicy(t *testing.T) {
	cases := []struct {
		name      string
		method    string
		statuses  []int
		wantCalls int32
		wantErr   bool
	}{
		{name: "get retried once on 503", method: http.MethodGet, statuses: []int{503, 200}, wantCalls: 2},
		{name: "delete retried once on 500", method: http.MethodDelete, statuses: []int{500, 200}, wantCalls: 2},
		{name: "post not retried on 503", method: http.MethodPost, statuses: []int{503, 200}, wantCalls: 1, wantErr: true},
		{name: "patch not retried on 500", method: http.MethodPatch, statuses: []int{500, 200}, wantCalls: 1, wantErr: true},
		{name: "post retried on 429", method: http.MethodPost, statuses: []int{429, 200}, wantCalls: 2},
		{name: "bounded to one retry", method: http.MethodGet, statuses: []int{503, 503, 200}, wantCalls: 2, wantErr: true},
		{name: "no retry on 4xx", method: http.MethodGet, statuses: []int{404, 200}, wantCalls: 1, wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var calls int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				n := atomic.AddInt32(&calls, 1)
				w.WriteHeader(tc.statuses[n-1])
				_, _ = w.Write([]byte(`{}`))
			}))
			defer srv.Close()
			c := newTestClient(t, srv)

			_, err := c.Call(context.Background(), Request{Method: tc.method, Path: "/customers/cus_1", Body: map[string]any{}})
			assert.Equal(t, tc.wantCalls, atomic.LoadInt32(&calls))
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

type failingDoer struct{ calls int }

func (f *failingDoer) Do(*http.Request) (*http.Response, error) {
	f.calls++
	return nil, io.ErrUnexpectedEOF
}

func TestNetworkErrorIsGatewayUnavailable(t *testing.T) {
	doer := &failingDoer{}
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()
	c := newTestClient(t, srv, WithHTTPClient(doer))

	_, err := c.GetCharge(context.Background(), "chr_test_1")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeGatewayUnavailable))
	assert.Equal(t, 2, doer.calls)

	doer.calls = 0
	_, err = c.CreateCharge(context.Background(), ChargeCreateParams{Amount: 100})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeGatewayUnavailable))
	assert.Equal(t, 1, doer.calls, "charge creation must not be replayed")
}

func TestTypedCallsUseExpectedRoutes(t *testing.T) {
	var seen []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, r.Method+" "+r.URL.Path)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"id":"x","deleted":true}`))
	}))
	defer srv.Close()
	c := newTestClient(t, srv)
	ctx := context.Background()

	_, _ = c.CaptureCharge(ctx, "chr_1")
	_, _ = c.CreatePlan(ctx, PlanCreateParams{Name: "Gold"})
	_, _ = c.DeletePlan(ctx, "pln_1")
	_, _ = c.CancelSubscription(ctx, "sxn_1")
	_, _ = c.UpdateSubscription(ctx, "sxn_1", SubscriptionUpdateParams{})

	assert.Equal(t, []string{
		"POST /charges/chr_1/capture",
		"POST /recurrent/plans/create",
		"DELETE /recurrent/plans/pln_1",
		"DELETE /recurrent/subscriptions/sxn_1",
		"PATCH /recurrent/subscriptions/sxn_1",
	}, seen)
}

func TestUnixTimeDecoding(t *testing.T) {
	var payload struct {
		A UnixTime `json:"a"`
		B UnixTime `json:"b"`
		C UnixTime `json:"c"`
	}
	require.NoError(t, json.NewDecoder(bytes.NewBufferString(`{"a":1767225600,"b":"1767225600","c":null}`)).Decode(&payload))
	require.NotNil(t, payload.A.Time())
	assert.Equal(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), *payload.A.Time())
	assert.Equal(t, payload.A, payload.B)
	assert.Nil(t, payload.C.Time())
}

func TestResourceLabel(t *testing.T) {
	assert.Equal(t, "plans", resourceLabel("/recurrent/plans/pln_1"))
	assert.Equal(t, "charges", resourceLabel("/charges/chr_1/capture"))
	assert.Equal(t, "unknown", resourceLabel("/"))
}
