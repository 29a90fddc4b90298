package tokens

import (
	"context"
	"errors"
	"regexp"
	"strings"

	pkgerrors "github.com/angelmondragon/gatewaysync/pkg/errors"
	"github.com/angelmondragon/gatewaysync/pkg/gateway"
	"github.com/angelmondragon/gatewaysync/pkg/logger"
)

const (
	ReasonNotFound = "not found"
	ReasonUsed     = "token already used"
)

var tokenIDPattern = regexp.MustCompile(`^tkn_(test|live)_[A-Za-z0-9]{16}$`)

// Gateway is the remote lookup used by the validator.
type Gateway interface {
	GetToken(ctx context.Context, id string) (*gateway.Token, error)
}

// Result reports whether a token can be attached to a card or charge.
type Result struct {
	IsValid bool
	Token   *gateway.Token
	Reason  string
}

type Validator struct {
	gateway Gateway
	logg    *logger.Logger
}

func NewValidator(gw Gateway, logg *logger.Logger) (*Validator, error) {
	if gw == nil {
		return nil, errors.New("token gateway required")
	}
	if logg == nil {
		return nil, errors.New("logger required")
	}
	return &Validator{gateway: gw, logg: logg}, nil
}

// WellFormed reports whether id matches the token id format.
func WellFormed(id string) bool {
	return tokenIDPattern.MatchString(id)
}

// Validate checks the id format locally, then asks the gateway whether the
// token still exists and is unused. Absent or used tokens are reported as
// invalid rather than as errors.
func (v *Validator) Validate(ctx context.Context, tokenID string) (*Result, error) {
	tokenID = strings.TrimSpace(tokenID)
	if !WellFormed(tokenID) {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidRequest, "malformed token id").
			WithDetails(map[string]string{"token_id": "must match tkn_(test|live)_ followed by 16 alphanumerics"})
	}

	token, err := v.gateway.GetToken(ctx, tokenID)
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
			v.logg.Info(v.logg.WithResource(ctx, "token", tokenID), "token not found at gateway")
			return &Result{IsValid: false, Reason: ReasonNotFound}, nil
		}
		return nil, err
	}
	if !token.Active {
		return &Result{IsValid: false, Token: token, Reason: ReasonUsed}, nil
	}
	return &Result{IsValid: true, Token: token}, nil
}

// Require validates tokenID and turns an invalid result into INVALID_REQUEST.
func (v *Validator) Require(ctx context.Context, tokenID string) (*gateway.Token, error) {
	res, err := v.Validate(ctx, tokenID)
	if err != nil {
		return nil, err
	}
	if !res.IsValid {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidRequest, "token is not usable: "+res.Reason).
			WithDetails(map[string]string{"token_id": res.Reason})
	}
	return res.Token, nil
}
