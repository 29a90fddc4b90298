package gateway

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	pkgerrors "github.com/angelmondragon/gatewaysync/pkg/errors"
)

// errorBody is the gateway's failure envelope. Every field is optional.
type errorBody struct {
	Object          string `json:"object"`
	Type            string `json:"type"`
	MerchantMessage string `json:"merchant_message"`
	UserMessage     string `json:"user_message"`
	Code            string `json:"code"`
	DeclineCode     string `json:"decline_code"`
	Param           string `json:"param"`
	ChargeID        string `json:"charge_id"`
}

// mapError is the only place an HTTP status becomes an error code. A body
// that fails to parse still yields a typed error keyed by status.
func mapError(status int, body []byte, trackingID string) *pkgerrors.Error {
	var parsed errorBody
	_ = json.Unmarshal(body, &parsed)

	code := codeForStatus(status)
	message := strings.TrimSpace(parsed.MerchantMessage)
	if message == "" {
		message = strings.TrimSpace(parsed.UserMessage)
	}
	if message == "" {
		message = fmt.Sprintf("gateway responded %d %s", status, http.StatusText(status))
	}

	info := pkgerrors.Gateway{
		TrackingID:  trackingID,
		Type:        parsed.Type,
		UserMessage: parsed.UserMessage,
	}
	switch code {
	case pkgerrors.CodePaymentDeclined:
		info.DeclineCode = parsed.DeclineCode
		if info.DeclineCode == "" {
			info.DeclineCode = parsed.Code
		}
		info.ChargeID = parsed.ChargeID
	case pkgerrors.CodeUnprocessable, pkgerrors.CodeInvalidRequest:
		info.Param = parsed.Param
	}

	err := pkgerrors.New(code, message).WithGateway(info)
	if parsed.Code != "" {
		err = err.WithDetails(map[string]any{"gateway_code": parsed.Code, "status": status})
	}
	return err
}

func codeForStatus(status int) pkgerrors.Code {
	switch status {
	case http.StatusBadRequest:
		return pkgerrors.CodeInvalidRequest
	case http.StatusUnauthorized:
		return pkgerrors.CodeAuthMisconfigured
	case http.StatusPaymentRequired:
		return pkgerrors.CodePaymentDeclined
	case http.StatusNotFound:
		return pkgerrors.CodeNotFound
	case http.StatusUnprocessableEntity:
		return pkgerrors.CodeUnprocessable
	case http.StatusTooManyRequests:
		return pkgerrors.CodeRateLimited
	case http.StatusInternalServerError, http.StatusServiceUnavailable:
		return pkgerrors.CodeGatewayUnavailable
	default:
		return pkgerrors.CodeUnknownGateway
	}
}
