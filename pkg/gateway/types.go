package gateway

import (
	"strconv"
	"time"
)

// UnixTime is a gateway timestamp in unix seconds; zero means unset.
type UnixTime int64

// Time returns the UTC time, or nil when unset.
func (u UnixTime) Time() *time.Time {
	if u <= 0 {
		return nil
	}
	t := time.Unix(int64(u), 0).UTC()
	return &t
}

// UnmarshalJSON accepts numbers, numeric strings and null.
func (u *UnixTime) UnmarshalJSON(b []byte) error {
	s := string(b)
	if s == "null" || s == `""` {
		*u = 0
		return nil
	}
	if len(s) >= 2 && s[0] == '"' {
		s = s[1 : len(s)-1]
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return err
	}
	*u = UnixTime(v)
	return nil
}

// Metadata is the free-form key/value map every resource carries.
type Metadata map[string]any

// Authentication3DS completes a create that previously returned a challenge.
type Authentication3DS struct {
	ECI                          string `json:"eci"`
	XID                          string `json:"xid,omitempty"`
	CAVV                         string `json:"cavv"`
	ProtocolVersion              string `json:"protocolVersion"`
	DirectoryServerTransactionID string `json:"directoryServerTransactionId,omitempty"`
}

// Deleted is the acknowledgement returned by delete endpoints.
type Deleted struct {
	ID              string `json:"id"`
	Deleted         bool   `json:"deleted"`
	MerchantMessage string `json:"merchant_message"`
}

// Customers

type AntifraudDetails struct {
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	Address     string `json:"address"`
	AddressCity string `json:"address_city"`
	CountryCode string `json:"country_code"`
	Phone       string `json:"phone"`
}

type Customer struct {
	Object           string           `json:"object"`
	ID               string           `json:"id"`
	CreationDate     UnixTime         `json:"creation_date"`
	Email            string           `json:"email"`
	AntifraudDetails AntifraudDetails `json:"antifraud_details"`
	Metadata         Metadata         `json:"metadata"`
}

type CustomerCreateParams struct {
	FirstName   string   `json:"first_name"`
	LastName    string   `json:"last_name"`
	Email       string   `json:"email"`
	Address     string   `json:"address"`
	AddressCity string   `json:"address_city"`
	CountryCode string   `json:"country_code"`
	PhoneNumber string   `json:"phone_number"`
	Metadata    Metadata `json:"metadata,omitempty"`
}

type CustomerUpdateParams struct {
	FirstName   *string  `json:"first_name,omitempty"`
	LastName    *string  `json:"last_name,omitempty"`
	Email       *string  `json:"email,omitempty"`
	Address     *string  `json:"address,omitempty"`
	AddressCity *string  `json:"address_city,omitempty"`
	CountryCode *string  `json:"country_code,omitempty"`
	PhoneNumber *string  `json:"phone_number,omitempty"`
	Metadata    Metadata `json:"metadata,omitempty"`
}

// Tokens and cards

type IIN struct {
	Object       string `json:"object"`
	Bin          string `json:"bin"`
	CardBrand    string `json:"card_brand"`
	CardType     string `json:"card_type"`
	CardCategory string `json:"card_category"`
}

type Token struct {
	Object       string   `json:"object"`
	ID           string   `json:"id"`
	Type         string   `json:"type"`
	Email        string   `json:"email"`
	CreationDate UnixTime `json:"creation_date"`
	CardNumber   string   `json:"card_number"`
	LastFour     string   `json:"last_four"`
	Active       bool     `json:"active"`
	IIN          IIN      `json:"iin"`
	Metadata     Metadata `json:"metadata"`
}

type Card struct {
	Object       string   `json:"object"`
	ID           string   `json:"id"`
	CreationDate UnixTime `json:"date"`
	CustomerID   string   `json:"customer_id"`
	Source       Token    `json:"source"`
	Active       bool     `json:"active"`
	Metadata     Metadata `json:"metadata"`
}

type CardCreateParams struct {
	CustomerID        string             `json:"customer_id"`
	TokenID           string             `json:"token_id"`
	Validate          *bool              `json:"validate,omitempty"`
	Authentication3DS *Authentication3DS `json:"authentication_3DS,omitempty"`
	Metadata          Metadata           `json:"metadata,omitempty"`
}

type CardUpdateParams struct {
	TokenID  *string  `json:"token_id,omitempty"`
	Metadata Metadata `json:"metadata,omitempty"`
}

// Charges

type ChargeOutcome struct {
	Type            string `json:"type"`
	Code            string `json:"code"`
	MerchantMessage string `json:"merchant_message"`
	UserMessage     string `json:"user_message"`
}

type Charge struct {
	Object            string        `json:"object"`
	ID                string        `json:"id"`
	CreationDate      UnixTime      `json:"creation_date"`
	Amount            int64         `json:"amount"`
	AmountRefunded    int64         `json:"amount_refunded"`
	CurrentAmount     int64         `json:"current_amount"`
	Installments      int           `json:"installments"`
	CurrencyCode      string        `json:"currency_code"`
	Email             string        `json:"email"`
	Description       string        `json:"description"`
	Source            Token         `json:"source"`
	Outcome           ChargeOutcome `json:"outcome"`
	Capture           bool          `json:"capture"`
	CaptureDate       UnixTime      `json:"capture_date"`
	Paid              bool          `json:"paid"`
	Dispute           bool          `json:"dispute"`
	ReferenceCode     string        `json:"reference_code"`
	AuthorizationCode string        `json:"authorization_code"`
	Metadata          Metadata      `json:"metadata"`
}

type ChargeCreateParams struct {
	Amount            int64              `json:"amount"`
	CurrencyCode      string             `json:"currency_code"`
	Email             string             `json:"email"`
	SourceID          string             `json:"source_id"`
	Capture           bool               `json:"capture"`
	Description       string             `json:"description,omitempty"`
	Installments      int                `json:"installments,omitempty"`
	Authentication3DS *Authentication3DS `json:"authentication_3DS,omitempty"`
	Metadata          Metadata           `json:"metadata,omitempty"`
}

type ChargeUpdateParams struct {
	Metadata Metadata `json:"metadata"`
}

// Plans

type InitialCycles struct {
	Count            int   `json:"count"`
	HasInitialCharge bool  `json:"has_initial_charge"`
	Amount           int64 `json:"amount"`
	IntervalUnitTime int   `json:"interval_unit_time"`
}

type Plan struct {
	Object             string        `json:"object"`
	ID                 string        `json:"id"`
	Name               string        `json:"name"`
	ShortName          string        `json:"short_name"`
	Description        string        `json:"description"`
	Amount             int64         `json:"amount"`
	Currency           string        `json:"currency"`
	IntervalUnitTime   int           `json:"interval_unit_time"`
	IntervalCount      int           `json:"interval_count"`
	Limit              int           `json:"limit"`
	InitialCycles      InitialCycles `json:"initial_cycles"`
	Status             int           `json:"status"`
	TotalSubscriptions int64         `json:"total_subscriptions"`
	CreationDate       UnixTime      `json:"creation_date"`
	Metadata           Metadata      `json:"metadata"`
}

type PlanCreateParams struct {
	Name             string        `json:"name"`
	ShortName        string        `json:"short_name"`
	Description      string        `json:"description"`
	Amount           int64         `json:"amount"`
	Currency         string        `json:"currency"`
	IntervalUnitTime int           `json:"interval_unit_time"`
	IntervalCount    int           `json:"interval_count"`
	Limit            int           `json:"limit"`
	InitialCycles    InitialCycles `json:"initial_cycles"`
	Metadata         Metadata      `json:"metadata,omitempty"`
}

type PlanUpdateParams struct {
	Name        *string  `json:"name,omitempty"`
	ShortName   *string  `json:"short_name,omitempty"`
	Description *string  `json:"description,omitempty"`
	Status      *int     `json:"status,omitempty"`
	Metadata    Metadata `json:"metadata,omitempty"`
}

// Subscriptions

type Subscription struct {
	Object          string   `json:"object"`
	ID              string   `json:"id"`
	CustomerID      string   `json:"customer_id"`
	PlanID          string   `json:"plan_id"`
	CardID          string   `json:"card_id"`
	Status          int      `json:"status"`
	CurrentPeriod   int      `json:"current_period"`
	NextBillingDate UnixTime `json:"next_billing_date"`
	TrialStart      UnixTime `json:"trial_start"`
	TrialEnd        UnixTime `json:"trial_end"`
	CreationDate    UnixTime `json:"creation_date"`
	Metadata        Metadata `json:"metadata"`
}

type SubscriptionCreateParams struct {
	CardID   string   `json:"card_id"`
	PlanID   string   `json:"plan_id"`
	TyC      bool     `json:"tyc"`
	Metadata Metadata `json:"metadata,omitempty"`
}

type SubscriptionUpdateParams struct {
	CardID   *string  `json:"card_id,omitempty"`
	Metadata Metadata `json:"metadata,omitempty"`
}
