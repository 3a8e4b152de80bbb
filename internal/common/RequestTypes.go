// This file contains the expected structure of incoming requests to the API. These structs are used to
// validate incoming requests, provide a consistent interface for handling requests, and to pass data to the
// appropriate handlers.

// Field names follow the json names of user.User, so a document returned by the API can be sent back as is.
// Unknown fields, including "_id", "createdAt" and "updatedAt", are ignored.

package common

import (
	"github.com/NeRF-or-Nothing/go-user-service/internal/models/user"
)

// CreateUserRequest is a single element of a bulk create body.
type CreateUserRequest struct {
	Name  string `json:"name" validate:"required,min=1,max=100"`
	Email string `json:"email" validate:"omitempty,email"`
	Age   *int   `json:"age" validate:"omitempty,min=0,max=150"`
}

// ToUser converts the request into a user ready to be inserted.
func (r CreateUserRequest) ToUser() user.User {
	return user.User{
		Name:  r.Name,
		Email: r.Email,
		Age:   r.Age,
	}
}

// UpdateUserRequest is a partial user. Omitted fields are left untouched; an empty email removes the stored one.
type UpdateUserRequest struct {
	ID    string  `json:"-" params:"id"`
	Name  *string `json:"name" validate:"omitempty,min=1,max=100"`
	Email *string `json:"email" validate:"omitempty,emailOrEmpty"`
	Age   *int    `json:"age" validate:"omitempty,min=0,max=150"`
}

// ToFields returns the fields supplied in the request.
func (r UpdateUserRequest) ToFields() user.Fields {
	return user.Fields{
		Name:  r.Name,
		Email: r.Email,
		Age:   r.Age,
	}
}

type DeleteUserRequest struct {
	ID string `json:"-" params:"id" validate:"required"`
}
