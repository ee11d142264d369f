package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Review is a user's rating of a tour. A user reviews a tour at most once.
type Review struct {
	ID        primitive.ObjectID `json:"_id" bson:"_id,omitempty"`
	Review    string             `json:"review,omitempty" bson:"review"`
	Rating    float64            `json:"rating,omitempty" bson:"rating"`
	Tour      primitive.ObjectID `json:"tour,omitzero" bson:"tour"`
	User      primitive.ObjectID `json:"user,omitzero" bson:"user"`
	CreatedAt time.Time          `json:"createdAt,omitzero" bson:"createdAt"`
	Version   int                `json:"-" bson:"__v"`
}

// ReviewPatch carries the editable review fields.
type ReviewPatch struct {
	Review *string
	Rating *float64
}

// RatingStats aggregates the reviews of one tour.
type RatingStats struct {
	Quantity int     `bson:"nRating"`
	Average  float64 `bson:"avgRating"`
}
