package gateway

import (
	"encoding/json"
	"fmt"
	"net/http"

	pkgerrors "github.com/angelmondragon/gatewaysync/pkg/errors"
)

// Outcome tags a CreateResult.
type Outcome int

const (
	OutcomeCreated Outcome = iota + 1
	OutcomeChallenge
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCreated:
		return "created"
	case OutcomeChallenge:
		return "challenge"
	default:
		return "unknown"
	}
}

// Challenge is the 3-D Secure payload returned instead of a resource. Callers
// resubmit the create with an Authentication3DS block.
type Challenge struct {
	UserMessage string `json:"user_message"`
	ActionCode  string `json:"action_code"`
}

// CreateResult is either a created resource or a challenge, never both.
type CreateResult[T any] struct {
	Outcome    Outcome
	Resource   *T
	Challenge  *Challenge
	TrackingID string
}

func (r CreateResult[T]) Created() bool   { return r.Outcome == OutcomeCreated }
func (r CreateResult[T]) Challenged() bool { return r.Outcome == OutcomeChallenge }

// decodeCreate discriminates the creation endpoints that can answer with a
// 3DS challenge: 201 carries the resource, 200 carries the challenge.
func decodeCreate[T any](resp *Response) (CreateResult[T], error) {
	switch resp.Status {
	case http.StatusCreated:
		var resource T
		if err := json.Unmarshal(resp.Data, &resource); err != nil {
			return CreateResult[T]{}, decodeError(err, resp)
		}
		return CreateResult[T]{Outcome: OutcomeCreated, Resource: &resource, TrackingID: resp.TrackingID}, nil
	case http.StatusOK:
		var challenge Challenge
		if err := json.Unmarshal(resp.Data, &challenge); err != nil {
			return CreateResult[T]{}, decodeError(err, resp)
		}
		return CreateResult[T]{Outcome: OutcomeChallenge, Challenge: &challenge, TrackingID: resp.TrackingID}, nil
	default:
		return CreateResult[T]{}, pkgerrors.New(pkgerrors.CodeUnknownGateway,
			fmt.Sprintf("unexpected creation status %d", resp.Status)).
			WithGateway(pkgerrors.Gateway{TrackingID: resp.TrackingID})
	}
}

func decode[T any](resp *Response) (*T, error) {
	var out T
	if err := json.Unmarshal(resp.Data, &out); err != nil {
		return nil, decodeError(err, resp)
	}
	return &out, nil
}

func decodeError(err error, resp *Response) *pkgerrors.Error {
	return pkgerrors.Wrap(pkgerrors.CodeUnknownGateway, err, "decoding gateway response").
		WithGateway(pkgerrors.Gateway{TrackingID: resp.TrackingID})
}
