// Package user contains the implementation of interacting with the MongoDB users collection.
// The UserManager struct is responsible for interacting with the MongoDB users collection. It is CRUD for the user collection.
// The User struct is used to represent a single user record.
// Interaction is primarily by ID, as the ID is assigned by the store and never changes. BSON is used to interact with the database.
package user
