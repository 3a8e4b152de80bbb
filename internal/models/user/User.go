// This file contains the User struct stored in the users collection.
//
// bson tags name the fields in MongoDB and json tags name them in HTTP payloads. Both use the camelCase
// names existing clients of the API already read, including the "_id" identifier.

package user

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User represents a user in the system
type User struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	Name      string             `bson:"name" json:"name"`
	Email     string             `bson:"email,omitempty" json:"email,omitempty"`
	Age       *int               `bson:"age,omitempty" json:"age,omitempty"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// Fields is a partial set of user attributes to apply to a stored document.
// Nil pointers are left untouched. An empty Email removes the e-mail from the document.
type Fields struct {
	Name  *string
	Email *string
	Age   *int
}

// IsEmpty reports whether no field is set.
func (f Fields) IsEmpty() bool {
	return f.Name == nil && f.Email == nil && f.Age == nil
}
