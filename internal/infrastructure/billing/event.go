// Package billing adapts the payment provider: webhook signature checks,
// event decoding and customer lookups. The wire format follows Stripe.
package billing

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/flaco-inc/flaco/internal/domain/license"
)

// Event is a provider webhook envelope. Object holds data.object undecoded.
type Event struct {
	ID      string
	Type    string
	Created int64
	Object  json.RawMessage
}

type eventEnvelope struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Created int64  `json:"created"`
	Data    struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

// ParseEvent decodes a webhook body.
func ParseEvent(payload []byte) (*Event, error) {
	var env eventEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", license.ErrMalformedEvent, err)
	}
	if env.ID == "" || env.Type == "" {
		return nil, fmt.Errorf("%w: missing id or type", license.ErrMalformedEvent)
	}
	return &Event{
		ID:      env.ID,
		Type:    env.Type,
		Created: env.Created,
		Object:  env.Data.Object,
	}, nil
}

// ExpandableID accepts either a bare id or an expanded object carrying "id".
type ExpandableID string

func (e *ExpandableID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*e = ""
		return nil
	}
	if len(data) > 0 && data[0] == '{' {
		var obj struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(data, &obj); err != nil {
			return err
		}
		*e = ExpandableID(obj.ID)
		return nil
	}
	var id string
	if err := json.Unmarshal(data, &id); err != nil {
		return err
	}
	*e = ExpandableID(id)
	return nil
}

type CustomerDetails struct {
	Email string `json:"email"`
}

// CheckoutSession is the subset of a completed checkout the license flow reads.
type CheckoutSession struct {
	ID              string            `json:"id"`
	Mode            string            `json:"mode"`
	PaymentStatus   string            `json:"payment_status"`
	Customer        ExpandableID      `json:"customer"`
	CustomerEmail   string            `json:"customer_email"`
	CustomerDetails *CustomerDetails  `json:"customer_details"`
	Subscription    ExpandableID      `json:"subscription"`
	Metadata        map[string]string `json:"metadata"`
}

// DecodeCheckoutSession decodes the event object as a checkout session.
func (e *Event) DecodeCheckoutSession() (*CheckoutSession, error) {
	if len(e.Object) == 0 {
		return nil, fmt.Errorf("%w: event %s has no object", license.ErrMalformedEvent, e.ID)
	}
	var session CheckoutSession
	if err := json.Unmarshal(e.Object, &session); err != nil {
		return nil, fmt.Errorf("%w: %v", license.ErrMalformedEvent, err)
	}
	if session.ID == "" {
		return nil, fmt.Errorf("%w: checkout session without id", license.ErrMalformedEvent)
	}
	return &session, nil
}

// ObjectID returns data.object.id when present, for log lines.
func (e *Event) ObjectID() string {
	var obj struct {
		ID string `json:"id"`
	}
	_ = json.Unmarshal(e.Object, &obj)
	return obj.ID
}
