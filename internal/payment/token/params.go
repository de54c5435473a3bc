package token

import (
	"math"
	"net/url"
	"strconv"
	"strings"

	"ms-storefront/internal/models"
)

// Query parameter names used by payment providers on redirect.
const (
	ParamPaymentMethod = "paymentMethod"
	ParamTransactionID = "transactionId"
	ParamPaymentAmount = "paymentAmount"
	ParamPaymentFee    = "paymentFee"
	ParamStatus        = "status"
)

// ParseRedirectParams never fails: malformed input yields absent fields and IsValid=false.
func ParseRedirectParams(rawQuery string) models.PaymentRedirectParams {
	values, err := url.ParseQuery(strings.TrimPrefix(rawQuery, "?"))
	if err != nil && values == nil {
		values = url.Values{}
	}
	return FromValues(values)
}

func FromValues(values url.Values) models.PaymentRedirectParams {
	params := models.PaymentRedirectParams{
		PaymentMethod: values.Get(ParamPaymentMethod),
		TransactionID: values.Get(ParamTransactionID),
		PaymentAmount: parseAmount(values.Get(ParamPaymentAmount)),
		PaymentFee:    parseAmount(values.Get(ParamPaymentFee)),
		Status:        values.Get(ParamStatus),
	}
	params.Normalize()
	return params
}

func parseAmount(raw string) *float64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// Query encodes params back into the redirect query format. Absent fields are omitted.
func Query(params models.PaymentRedirectParams) string {
	values := url.Values{}
	if params.PaymentMethod != "" {
		values.Set(ParamPaymentMethod, params.PaymentMethod)
	}
	if params.TransactionID != "" {
		values.Set(ParamTransactionID, params.TransactionID)
	}
	if params.PaymentAmount != nil {
		values.Set(ParamPaymentAmount, strconv.FormatFloat(*params.PaymentAmount, 'f', -1, 64))
	}
	if params.PaymentFee != nil {
		values.Set(ParamPaymentFee, strconv.FormatFloat(*params.PaymentFee, 'f', -1, 64))
	}
	if params.Status != "" {
		values.Set(ParamStatus, params.Status)
	}
	return values.Encode()
}
