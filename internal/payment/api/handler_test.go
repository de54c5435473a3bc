package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"ms-storefront/internal/logger"
	"ms-storefront/internal/models"
	"ms-storefront/internal/payment"
	"ms-storefront/internal/payment/api"
	"ms-storefront/internal/payment/token"
)

type MockPaymentService struct {
	mock.Mock
}

func (m *MockPaymentService) Issue(ctx context.Context, orderID string) (*models.PaymentToken, error) {
	args := m.Called(orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PaymentToken), args.Error(1)
}

func (m *MockPaymentService) Reconcile(ctx context.Context, tok string, params models.PaymentRedirectParams) (*models.ReconciliationResult, error) {
	args := m.Called(tok, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ReconciliationResult), args.Error(1)
}

func newRouter(svc *MockPaymentService) http.Handler {
	h := &api.Handler{Service: svc, Logger: logger.Nop(), PublicBaseURL: "https://shop.example"}
	r := chi.NewRouter()
	r.Post("/payments/tokens", h.IssueToken)
	r.Get("/payments/tokens/{token}/qr", h.QRCode)
	r.Post("/payments/verify-token", h.VerifyToken)
	r.Get("/payments/verify/{token}", h.Verify)
	return r
}

type envelope struct {
	Success bool            `json:"success"`
	Error   string          `json:"error"`
	Data    json.RawMessage `json:"data"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) (envelope, api.VerificationResponse) {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	var data api.VerificationResponse
	if len(env.Data) > 0 {
		require.NoError(t, json.Unmarshal(env.Data, &data))
	}
	return env, data
}

func newToken(t *testing.T) string {
	tok, err := token.Generate()
	require.NoError(t, err)
	return tok
}

func TestIssueToken(t *testing.T) {
	tok := newToken(t)
	svc := new(MockPaymentService)
	svc.On("Issue", "o1").Return(&models.PaymentToken{Token: tok, OrderID: "o1", State: models.TokenIssued}, nil)
	svc.On("Issue", "nope").Return(nil, payment.ErrOrderNotFound)
	router := newRouter(svc)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/payments/tokens", strings.NewReader(`{"order_id":"o1"}`)))
	require.Equal(t, http.StatusCreated, rec.Code)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	var issued api.IssueTokenResponse
	require.NoError(t, json.Unmarshal(env.Data, &issued))
	assert.Equal(t, tok, issued.Token)
	assert.Equal(t, "https://shop.example/payment/verify/success/"+tok, issued.SuccessURL)
	assert.Equal(t, "https://shop.example/payment/verify/failed/"+tok, issued.FailureURL)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/payments/tokens", strings.NewReader(`{"order_id":"nope"}`)))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/payments/tokens", strings.NewReader(`{}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestQRCode(t *testing.T) {
	router := newRouter(new(MockPaymentService))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/payments/tokens/"+newToken(t)+"/qr", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("\x89PNG")))

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/payments/tokens/not-a-token/qr", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestVerify_ParsesRedirectQuery(t *testing.T) {
	tok := newToken(t)
	svc := new(MockPaymentService)
	svc.On("Reconcile", tok, mock.MatchedBy(func(p models.PaymentRedirectParams) bool {
		return p.IsValid && p.Status == "failed" && p.TransactionID == "T1" && p.PaymentMethod == "card" && *p.PaymentAmount == 10
	})).Return(&models.ReconciliationResult{
		OrderID: "o1", PaymentStatus: models.PaymentFailed, OrderStatus: models.OrderPending, Outcome: models.OutcomeFailed,
	}, nil)

	rec := httptest.NewRecorder()
	newRouter(svc).ServeHTTP(rec, httptest.NewRequest(http.MethodGet,
		"/payments/verify/"+tok+"?status=failed&transactionId=T1&paymentMethod=card&paymentAmount=10", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	_, data := decode(t, rec)
	assert.Equal(t, models.PaymentFailed, data.Result.PaymentStatus)
	assert.Equal(t, models.OrderPending, data.Result.OrderStatus)
	assert.Equal(t, "Payment Verification Failed", data.View.Title)
	assert.Equal(t, "try_again", data.View.Action)
	svc.AssertExpectations(t)
}

func TestVerifyToken_Views(t *testing.T) {
	tok := newToken(t)

	tests := []struct {
		name   string
		result *models.ReconciliationResult
		err    error
		status int
		title  string
	}{
		{"success", &models.ReconciliationResult{Outcome: models.OutcomeSuccess}, nil, http.StatusOK, "Payment Successful!"},
		{"already reconciled", &models.ReconciliationResult{Outcome: models.OutcomeSuccess, AlreadyReconciled: true}, nil, http.StatusOK, "Payment Successful!"},
		{"pending", &models.ReconciliationResult{Outcome: models.OutcomePending}, nil, http.StatusOK, "Payment Processing"},
		{"invalid token", nil, payment.ErrInvalidToken, http.StatusBadRequest, "Payment Verification Failed"},
		{"storage", nil, errors.New("db down"), http.StatusInternalServerError, "Payment Verification Failed"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc := new(MockPaymentService)
			svc.On("Reconcile", tok, mock.Anything).Return(tc.result, tc.err)

			body := `{"token":"` + tok + `","paymentData":{"paymentMethod":"bkash","transactionId":"TX","paymentAmount":5,"status":"completed"}}`
			rec := httptest.NewRecorder()
			newRouter(svc).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/payments/verify-token", strings.NewReader(body)))

			assert.Equal(t, tc.status, rec.Code)
			env, data := decode(t, rec)
			assert.Equal(t, tc.err == nil, env.Success)
			assert.Equal(t, tc.title, data.View.Title)
			assert.NotContains(t, rec.Body.String(), "db down")
		})
	}
}
