package gateway

import (
	"context"
	"net/http"
	"net/url"
)

const (
	customersPath     = "/customers"
	cardsPath         = "/cards"
	chargesPath       = "/charges"
	plansPath         = "/recurrent/plans"
	subscriptionsPath = "/recurrent/subscriptions"
	tokensPath        = "/tokens"
)

func itemPath(collection, id string) string {
	return collection + "/" + url.PathEscape(id)
}

func call[T any](ctx context.Context, c *Client, req Request) (*T, error) {
	resp, err := c.Call(ctx, req)
	if err != nil {
		return nil, err
	}
	return decode[T](resp)
}

func create[T any](ctx context.Context, c *Client, req Request) (CreateResult[T], error) {
	resp, err := c.Call(ctx, req)
	if err != nil {
		return CreateResult[T]{}, err
	}
	return decodeCreate[T](resp)
}

// Customer operations
func (c *Client) CreateCustomer(ctx context.Context, params CustomerCreateParams) (*Customer, error) {
	return call[Customer](ctx, c, Request{Method: http.MethodPost, Path: customersPath, Body: params})
}

func (c *Client) GetCustomer(ctx context.Context, id string) (*Customer, error) {
	return call[Customer](ctx, c, Request{Method: http.MethodGet, Path: itemPath(customersPath, id)})
}

func (c *Client) UpdateCustomer(ctx context.Context, id string, params CustomerUpdateParams) (*Customer, error) {
	return call[Customer](ctx, c, Request{Method: http.MethodPatch, Path: itemPath(customersPath, id), Body: params})
}

func (c *Client) DeleteCustomer(ctx context.Context, id string) (*Deleted, error) {
	return call[Deleted](ctx, c, Request{Method: http.MethodDelete, Path: itemPath(customersPath, id)})
}

// Token operations use the public key.
func (c *Client) GetToken(ctx context.Context, id string) (*Token, error) {
	return call[Token](ctx, c, Request{Method: http.MethodGet, Path: itemPath(tokensPath, id), Scope: ScopePublic})
}

// Card operations
func (c *Client) CreateCard(ctx context.Context, params CardCreateParams) (CreateResult[Card], error) {
	return create[Card](ctx, c, Request{Method: http.MethodPost, Path: cardsPath, Body: params})
}

func (c *Client) GetCard(ctx context.Context, id string) (*Card, error) {
	return call[Card](ctx, c, Request{Method: http.MethodGet, Path: itemPath(cardsPath, id)})
}

func (c *Client) UpdateCard(ctx context.Context, id string, params CardUpdateParams) (*Card, error) {
	return call[Card](ctx, c, Request{Method: http.MethodPatch, Path: itemPath(cardsPath, id), Body: params})
}

func (c *Client) DeleteCard(ctx context.Context, id string) (*Deleted, error) {
	return call[Deleted](ctx, c, Request{Method: http.MethodDelete, Path: itemPath(cardsPath, id)})
}

// Charge operations
func (c *Client) CreateCharge(ctx context.Context, params ChargeCreateParams) (CreateResult[Charge], error) {
	return create[Charge](ctx, c, Request{Method: http.MethodPost, Path: chargesPath, Body: params})
}

func (c *Client) GetCharge(ctx context.Context, id string) (*Charge, error) {
	return call[Charge](ctx, c, Request{Method: http.MethodGet, Path: itemPath(chargesPath, id)})
}

func (c *Client) UpdateCharge(ctx context.Context, id string, params ChargeUpdateParams) (*Charge, error) {
	return call[Charge](ctx, c, Request{Method: http.MethodPatch, Path: itemPath(chargesPath, id), Body: params})
}

func (c *Client) CaptureCharge(ctx context.Context, id string) (*Charge, error) {
	return call[Charge](ctx, c, Request{Method: http.MethodPost, Path: itemPath(chargesPath, id) + "/capture"})
}

// Plan operations
func (c *Client) CreatePlan(ctx context.Context, params PlanCreateParams) (*Plan, error) {
	return call[Plan](ctx, c, Request{Method: http.MethodPost, Path: plansPath + "/create", Body: params})
}

func (c *Client) GetPlan(ctx context.Context, id string) (*Plan, error) {
	return call[Plan](ctx, c, Request{Method: http.MethodGet, Path: itemPath(plansPath, id)})
}

func (c *Client) UpdatePlan(ctx context.Context, id string, params PlanUpdateParams) (*Plan, error) {
	return call[Plan](ctx, c, Request{Method: http.MethodPatch, Path: itemPath(plansPath, id), Body: params})
}

func (c *Client) DeletePlan(ctx context.Context, id string) (*Deleted, error) {
	return call[Deleted](ctx, c, Request{Method: http.MethodDelete, Path: itemPath(plansPath, id)})
}

// Subscription operations
func (c *Client) CreateSubscription(ctx context.Context, params SubscriptionCreateParams) (*Subscription, error) {
	return call[Subscription](ctx, c, Request{Method: http.MethodPost, Path: subscriptionsPath + "/create", Body: params})
}

func (c *Client) GetSubscription(ctx context.Context, id string) (*Subscription, error) {
	return call[Subscription](ctx, c, Request{Method: http.MethodGet, Path: itemPath(subscriptionsPath, id)})
}

func (c *Client) UpdateSubscription(ctx context.Context, id string, params SubscriptionUpdateParams) (*Subscription, error) {
	return call[Subscription](ctx, c, Request{Method: http.MethodPatch, Path: itemPath(subscriptionsPath, id), Body: params})
}

func (c *Client) CancelSubscription(ctx context.Context, id string) (*Deleted, error) {
	return call[Deleted](ctx, c, Request{Method: http.MethodDelete, Path: itemPath(subscriptionsPath, id)})
}
