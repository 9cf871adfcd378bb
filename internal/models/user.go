package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User represents the application user account. Account issuance lives in the
// auth service; this core only reads users for ownership and charge checks.
type User struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Email         string             `bson:"email" json:"email"`
	EmailVerified bool               `bson:"emailVerified" json:"emailVerified"`
	PasswordHash  string             `bson:"passwordHash" json:"-"`
	Name          string             `bson:"name" json:"name"`
	Phone         string             `bson:"phone,omitempty" json:"phone,omitempty"`
	CreatedAt     time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt     time.Time          `bson:"updatedAt" json:"updatedAt"`
}
