package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
)

func TestMetadataForKnownCodes(t *testing.T) {
	tests := []struct {
		code      Code
		status    int
		publicMsg string
		retryable bool
		detailsOK bool
		alert     bool
	}{
		{code: CodeInvalidRequest, status: http.StatusBadRequest, publicMsg: "invalid request", detailsOK: true},
		{code: CodeNotFound, status: http.StatusNotFound, publicMsg: "resource not found"},
		{code: CodePaymentDeclined, status: http.StatusPaymentRequired, publicMsg: "payment declined", detailsOK: true},
		{code: CodeUnprocessable, status: http.StatusUnprocessableEntity, publicMsg: "unprocessable field", detailsOK: true},
		{code: CodeRateLimited, status: http.StatusTooManyRequests, publicMsg: "rate limit exceeded", retryable: true},
		{code: CodeGatewayUnavailable, status: http.StatusServiceUnavailable, publicMsg: "payment gateway unavailable", retryable: true, detailsOK: true},
		{code: CodeAuthMisconfigured, status: http.StatusInternalServerError, publicMsg: "payment gateway credentials misconfigured", alert: true},
		{code: CodeUnknownGateway, status: http.StatusBadGateway, publicMsg: "unexpected payment gateway error", detailsOK: true},
		{code: CodeInternal, status: http.StatusInternalServerError, publicMsg: "internal server error", retryable: true},
	}

	for _, tt := range tests {
		meta := MetadataFor(tt.code)
		if meta.HTTPStatus != tt.status {
			t.Fatalf("code %s expected status %d got %d", tt.code, tt.status, meta.HTTPStatus)
		}
		if meta.PublicMessage != tt.publicMsg {
			t.Fatalf("code %s expected public message %q got %q", tt.code, tt.publicMsg, meta.PublicMessage)
		}
		if meta.Retryable != tt.retryable {
			t.Fatalf("code %s expected retryable %v got %v", tt.code, tt.retryable, meta.Retryable)
		}
		if meta.DetailsAllowed != tt.detailsOK {
			t.Fatalf("code %s expected details allowed %v got %v", tt.code, tt.detailsOK, meta.DetailsAllowed)
		}
		if meta.Alert != tt.alert {
			t.Fatalf("code %s expected alert %v got %v", tt.code, tt.alert, meta.Alert)
		}
	}
}

func TestMetadataForUnknownCodeDefaultsToInternal(t *testing.T) {
	meta := MetadataFor("SOMETHING_UNKNOWN")
	if meta.HTTPStatus != http.StatusInternalServerError {
		t.Fatalf("expected internal status, got %d", meta.HTTPStatus)
	}
}

func TestErrorConstructors(t *testing.T) {
	base := New(CodeInvalidRequest, "missing foo")
	if base.Code() != CodeInvalidRequest {
		t.Fatalf("expected invalid request code, got %s", base.Code())
	}
	if base.Message() != "missing foo" {
		t.Fatalf("unexpected message %q", base.Message())
	}
	if base.Details() != nil {
		t.Fatalf("details should be nil by default")
	}

	detail := map[string]any{"field": "foo"}
	base.WithDetails(detail)
	if base.Details() == nil {
		t.Fatalf("details should be preserved")
	}

	cause := stdErrors.New("boom")
	wrapped := Wrap(CodeGatewayUnavailable, cause, "ctx")
	if !stdErrors.Is(wrapped, cause) {
		t.Fatalf("Wrap did not preserve cause")
	}
	if wrapped.Code() != CodeGatewayUnavailable {
		t.Fatalf("unexpected code %s", wrapped.Code())
	}
}

func TestGatewayFieldsSurfaceInMessage(t *testing.T) {
	err := New(CodePaymentDeclined, "card declined").WithGateway(Gateway{
		TrackingID:  "trk-1",
		DeclineCode: "insufficient_funds",
		UserMessage: "Your card has insufficient funds.",
	})
	if err.TrackingID() != "trk-1" {
		t.Fatalf("unexpected tracking id %q", err.TrackingID())
	}
	if !strings.Contains(err.Error(), "tracking_id=trk-1") {
		t.Fatalf("expected tracking id in message, got %q", err.Error())
	}
	if err.Gateway().DeclineCode != "insufficient_funds" {
		t.Fatalf("decline code lost")
	}

	dump := Dump(fmt.Errorf("charge: %w", err))
	if dump.Code != CodePaymentDeclined || dump.TrackingID != "trk-1" || dump.DeclineCode != "insufficient_funds" {
		t.Fatalf("unexpected dump %+v", dump)
	}
	if len(dump.Chain) != 2 {
		t.Fatalf("expected two chain entries, got %d", len(dump.Chain))
	}
}

func TestAsReturnsTypedError(t *testing.T) {
	err := New(CodeNotFound, "no entry")
	if got := As(err); got == nil || got.Code() != CodeNotFound {
		t.Fatalf("As failed to return typed error")
	}
	if As(nil) != nil {
		t.Fatalf("As(nil) should return nil")
	}
	if CodeOf(stdErrors.New("plain")) != CodeInternal {
		t.Fatalf("untyped errors should report internal")
	}
	if !IsCode(fmt.Errorf("wrap: %w", err), CodeNotFound) {
		t.Fatalf("IsCode should unwrap")
	}
}
