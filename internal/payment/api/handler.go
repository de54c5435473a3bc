package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	qrcode "github.com/skip2/go-qrcode"

	"ms-storefront/internal/logger"
	"ms-storefront/internal/models"
	"ms-storefront/internal/payment"
	"ms-storefront/internal/payment/token"
	"ms-storefront/internal/utils"
)

type PaymentService interface {
	Issue(ctx context.Context, orderID string) (*models.PaymentToken, error)
	Reconcile(ctx context.Context, tok string, params models.PaymentRedirectParams) (*models.ReconciliationResult, error)
}

type Handler struct {
	Service       PaymentService
	Logger        *logger.Logger
	PublicBaseURL string
}

type IssueTokenResponse struct {
	Token      string `json:"token"`
	OrderID    string `json:"order_id"`
	PaymentURL string `json:"payment_url"`
	SuccessURL string `json:"success_url"`
	FailureURL string `json:"failure_url"`
	QRCodeURL  string `json:"qr_code_url"`
}

type VerificationResponse struct {
	Result *models.ReconciliationResult `json:"result,omitempty"`
	View   models.VerificationView      `json:"view"`
}

func (h *Handler) paymentURL(tok string) string {
	return fmt.Sprintf("%s/payment/%s", h.PublicBaseURL, tok)
}

// IssueToken binds a new payment token to an order.
func (h *Handler) IssueToken(w http.ResponseWriter, r *http.Request) {
	var req models.IssueTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.OrderID) == "" {
		utils.WriteError(w, http.StatusBadRequest, "Invalid request body", "order_id is required")
		return
	}

	binding, err := h.Service.Issue(r.Context(), req.OrderID)
	if err != nil {
		switch {
		case errors.Is(err, payment.ErrOrderNotFound):
			utils.WriteError(w, http.StatusNotFound, "Could not issue payment token", "Order not found")
		case errors.Is(err, payment.ErrOrderNotPayable):
			utils.WriteError(w, http.StatusBadRequest, "Could not issue payment token", "Order payment already settled")
		default:
			h.Logger.Error("API", "Failed to issue payment token: "+err.Error())
			utils.WriteError(w, http.StatusInternalServerError, "Could not issue payment token", "Internal server error")
		}
		return
	}

	resp := IssueTokenResponse{
		Token:      binding.Token,
		OrderID:    binding.OrderID,
		PaymentURL: h.paymentURL(binding.Token),
		SuccessURL: fmt.Sprintf("%s/payment/verify/success/%s", h.PublicBaseURL, binding.Token),
		FailureURL: fmt.Sprintf("%s/payment/verify/failed/%s", h.PublicBaseURL, binding.Token),
		QRCodeURL:  fmt.Sprintf("/payments/tokens/%s/qr", binding.Token),
	}
	utils.WriteJSON(w, http.StatusCreated, utils.SuccessResponse("Payment token issued", resp))
}

// QRCode renders the payment link for a token as a PNG.
func (h *Handler) QRCode(w http.ResponseWriter, r *http.Request) {
	tok := chi.URLParam(r, "token")
	if err := token.Validate(tok); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid payment token", "Invalid payment token")
		return
	}

	png, err := qrcode.Encode(h.paymentURL(tok), qrcode.Medium, 256)
	if err != nil {
		h.Logger.Error("API", "Failed to render QR code: "+err.Error())
		utils.WriteError(w, http.StatusInternalServerError, "Could not render QR code", "Internal server error")
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	w.Write(png)
}

// VerifyToken reconciles a redirect relayed by the browser as JSON.
func (h *Handler) VerifyToken(w http.ResponseWriter, r *http.Request) {
	var req models.VerifyTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeVerification(w, nil, fmt.Errorf("%w: malformed body", payment.ErrInvalidToken))
		return
	}

	result, err := h.Service.Reconcile(r.Context(), req.Token, req.PaymentData)
	h.writeVerification(w, result, err)
}

// Verify reconciles a provider redirect directly from its query string.
func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	tok := chi.URLParam(r, "token")
	params := token.ParseRedirectParams(r.URL.RawQuery)

	result, err := h.Service.Reconcile(r.Context(), tok, params)
	h.writeVerification(w, result, err)
}

// writeVerification always carries one of the three payer-facing views.
func (h *Handler) writeVerification(w http.ResponseWriter, result *models.ReconciliationResult, err error) {
	if err == nil {
		utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Payment verified", VerificationResponse{
			Result: result,
			View:   models.NewVerificationView(result.Outcome),
		}))
		return
	}

	status := http.StatusInternalServerError
	message := "Internal server error"
	switch {
	case errors.Is(err, payment.ErrInvalidToken):
		status, message = http.StatusBadRequest, "Invalid payment token"
	case errors.Is(err, payment.ErrOrderNotFound):
		status, message = http.StatusNotFound, "Order not found"
	default:
		h.Logger.Error("API", "Payment verification failed: "+err.Error())
	}

	resp := utils.ErrorResponse("Payment verification failed", message)
	resp.Data = VerificationResponse{View: models.NewVerificationView(models.OutcomeFailed)}
	utils.WriteJSON(w, status, resp)
}
