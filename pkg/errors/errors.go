package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
)

type Code string

const (
	CodeInvalidRequest     Code = "INVALID_REQUEST"
	CodeNotFound           Code = "NOT_FOUND"
	CodePaymentDeclined    Code = "PAYMENT_DECLINED"
	CodeUnprocessable      Code = "UNPROCESSABLE"
	CodeRateLimited        Code = "RATE_LIMITED"
	CodeGatewayUnavailable Code = "GATEWAY_UNAVAILABLE"
	CodeAuthMisconfigured  Code = "AUTH_MISCONFIGURED"
	CodeUnknownGateway     Code = "UNKNOWN_GATEWAY_ERROR"
	CodeInternal           Code = "INTERNAL_ERROR"
)

type Metadata struct {
	HTTPStatus     int
	Retryable      bool
	PublicMessage  string
	DetailsAllowed bool
	// Alert marks codes that need an operator rather than a caller fix.
	Alert bool
}

var metadataByCode = map[Code]Metadata{
	CodeInvalidRequest: {
		HTTPStatus:     http.StatusBadRequest,
		Retryable:      false,
		PublicMessage:  "invalid request",
		DetailsAllowed: true,
	},
	CodeNotFound: {
		HTTPStatus:     http.StatusNotFound,
		Retryable:      false,
		PublicMessage:  "resource not found",
		DetailsAllowed: false,
	},
	CodePaymentDeclined: {
		HTTPStatus:     http.StatusPaymentRequired,
		Retryable:      false,
		PublicMessage:  "payment declined",
		DetailsAllowed: true,
	},
	CodeUnprocessable: {
		HTTPStatus:     http.StatusUnprocessableEntity,
		Retryable:      false,
		PublicMessage:  "unprocessable field",
		DetailsAllowed: true,
	},
	CodeRateLimited: {
		HTTPStatus:     http.StatusTooManyRequests,
		Retryable:      true,
		PublicMessage:  "rate limit exceeded",
		DetailsAllowed: false,
	},
	CodeGatewayUnavailable: {
		HTTPStatus:     http.StatusServiceUnavailable,
		Retryable:      true,
		PublicMessage:  "payment gateway unavailable",
		DetailsAllowed: true,
	},
	CodeAuthMisconfigured: {
		HTTPStatus:     http.StatusInternalServerError,
		Retryable:      false,
		PublicMessage:  "payment gateway credentials misconfigured",
		DetailsAllowed: false,
		Alert:          true,
	},
	CodeUnknownGateway: {
		HTTPStatus:     http.StatusBadGateway,
		Retryable:      false,
		PublicMessage:  "unexpected payment gateway error",
		DetailsAllowed: true,
	},
	CodeInternal: {
		HTTPStatus:     http.StatusInternalServerError,
		Retryable:      true,
		PublicMessage:  "internal server error",
		DetailsAllowed: false,
	},
}

func MetadataFor(code Code) Metadata {
	if meta, ok := metadataByCode[code]; ok {
		return meta
	}
	return metadataByCode[CodeInternal]
}

// Gateway holds the remote fields attached to a gateway failure.
type Gateway struct {
	TrackingID  string `json:"tracking_id,omitempty"`
	Type        string `json:"type,omitempty"`
	DeclineCode string `json:"decline_code,omitempty"`
	UserMessage string `json:"user_message,omitempty"`
	ChargeID    string `json:"charge_id,omitempty"`
	Param       string `json:"param,omitempty"`
}

type Error struct {
	code    Code
	message string
	details any
	gateway *Gateway
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

func Wrap(code Code, err error, message string) *Error {
	if err == nil {
		return New(code, message)
	}
	return &Error{code: code, message: message, cause: err}
}

func (e *Error) Code() Code {
	if e == nil {
		return CodeInternal
	}
	return e.code
}

func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

func (e *Error) Details() any {
	if e == nil {
		return nil
	}
	return e.details
}

func (e *Error) WithDetails(details any) *Error {
	if e == nil {
		return nil
	}
	e.details = details
	return e
}

// Gateway returns the remote failure fields, or nil for local errors.
func (e *Error) Gateway() *Gateway {
	if e == nil {
		return nil
	}
	return e.gateway
}

func (e *Error) WithGateway(g Gateway) *Error {
	if e == nil {
		return nil
	}
	e.gateway = &g
	return e
}

// TrackingID returns the gateway tracking id, if any.
func (e *Error) TrackingID() string {
	if e == nil || e.gateway == nil {
		return ""
	}
	return e.gateway.TrackingID
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if id := e.TrackingID(); id != "" {
		return fmt.Sprintf("%s: %s (tracking_id=%s)", e.code, e.message, id)
	}
	return fmt.Sprintf("%s: %s", e.code, e.message)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

func As(err error) *Error {
	if err == nil {
		return nil
	}
	var typed *Error
	if stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}

// CodeOf returns the code of a typed error, or CodeInternal for anything else.
func CodeOf(err error) Code {
	if typed := As(err); typed != nil {
		return typed.Code()
	}
	return CodeInternal
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code Code) bool {
	if err == nil {
		return false
	}
	return CodeOf(err) == code
}
