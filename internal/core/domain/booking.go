package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Booking records a purchased place on a tour.
type Booking struct {
	ID        primitive.ObjectID `json:"_id" bson:"_id,omitempty"`
	Tour      primitive.ObjectID `json:"tour,omitzero" bson:"tour"`
	User      primitive.ObjectID `json:"user,omitzero" bson:"user"`
	Price     float64            `json:"price,omitempty" bson:"price"`
	Paid      bool               `json:"paid" bson:"paid"`
	CreatedAt time.Time          `json:"createdAt,omitzero" bson:"createdAt"`
	Version   int                `json:"-" bson:"__v"`

	// SessionID is the checkout session that paid for the booking. It is
	// unique, so a redelivered webhook cannot book twice.
	SessionID string `json:"-" bson:"sessionId,omitempty"`
}

// BookingPatch carries the editable booking fields.
type BookingPatch struct {
	Price *float64
	Paid  *bool
}

// CheckoutRequest is what the payment provider needs to open a session.
type CheckoutRequest struct {
	TourID        string
	TourName      string
	Description   string
	ImageURL      string
	AmountCents   int64
	Currency      string
	CustomerEmail string
	SuccessURL    string
	CancelURL     string
}

// CheckoutSession is the provider's answer to a CheckoutRequest.
type CheckoutSession struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// CheckoutEventCompleted is the webhook event type that confirms payment.
const CheckoutEventCompleted = "checkout.session.completed"

// CheckoutEvent is a verified webhook notification from the provider.
type CheckoutEvent struct {
	Type              string
	SessionID         string
	ClientReferenceID string
	CustomerEmail     string
	AmountTotal       int64
}

// Email is a message handed to the mail transport.
type Email struct {
	To      string
	Subject string
	HTML    string
	Text    string
}
