// This file contains the UserManager implementation, which is responsible for interacting with the MongoDB users collection.
// The UserManager struct contains a pointer to the users MongoDB collection and a logger. It provides methods to list, insert,
// update and delete user documents. Interaction with single users is always by ID, as the ID is unique and immutable.

package user

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/NeRF-or-Nothing/go-user-service/internal/log"
)

// CollectionName is the name of the MongoDB collection holding users.
const CollectionName = "users"

var (
	// ErrUserNotFound is returned when a requested user is not found in the database.
	ErrUserNotFound = errors.New("user not found")
	// ErrInvalidUserID is returned when an identifier is not a valid ObjectID hex string.
	ErrInvalidUserID = errors.New("invalid user ID")
)

type UserManager struct {
	collection *mongo.Collection
	logger     *log.Logger
	now        func() time.Time
}

// NewUserManager creates a new instance of UserManager on the users collection of db.
func NewUserManager(db *mongo.Database, logger *log.Logger) *UserManager {
	return &UserManager{
		collection: db.Collection(CollectionName),
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// EnsureIndexes creates the unique e-mail index. Documents without an e-mail are not indexed,
// so any number of users may omit it.
func (um *UserManager) EnsureIndexes(ctx context.Context) error {
	index := mongo.IndexModel{
		Keys: bson.D{{Key: "email", Value: 1}},
		Options: options.Index().
			SetName("email_unique").
			SetUnique(true).
			SetPartialFilterExpression(bson.M{"email": bson.M{"$type": "string"}}),
	}
	name, err := um.collection.Indexes().CreateOne(ctx, index)
	if err != nil {
		return fmt.Errorf("failed to create users index: %w", err)
	}
	um.logger.Debugf("Index %s ensured on %s", name, CollectionName)
	return nil
}

// GetUsers returns every user in the collection, in store order.
// The result is never nil.
func (um *UserManager) GetUsers(ctx context.Context) ([]User, error) {
	cursor, err := um.collection.Find(ctx, bson.D{})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	users := make([]User, 0)
	if err := cursor.All(ctx, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// GetUserByID retrieves a user from the database based on the given hex ID.
func (um *UserManager) GetUserByID(ctx context.Context, id string) (*User, error) {
	userID, err := parseID(id)
	if err != nil {
		return nil, err
	}

	var user User
	err = um.collection.FindOne(ctx, bson.M{"_id": userID}).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// InsertUsers assigns IDs and timestamps to users and inserts them in order.
// Insertion stops at the first document the store rejects; documents before it stay persisted.
// Returns the inserted users on success.
func (um *UserManager) InsertUsers(ctx context.Context, users []User) ([]User, error) {
	if len(users) == 0 {
		return []User{}, nil
	}

	now := um.now()
	docs := make([]interface{}, len(users))
	for i := range users {
		users[i].ID = primitive.NewObjectID()
		users[i].CreatedAt = now
		users[i].UpdatedAt = now
		docs[i] = users[i]
	}

	_, err := um.collection.InsertMany(ctx, docs, options.InsertMany().SetOrdered(true))
	if err != nil {
		var bulkErr mongo.BulkWriteException
		if errors.As(err, &bulkErr) && len(bulkErr.WriteErrors) > 0 {
			// ordered: everything before the first failed index was written
			um.logger.Infof("Ordered insert stopped, %d of %d users persisted", bulkErr.WriteErrors[0].Index, len(users))
		}
		return nil, err
	}
	return users, nil
}

// UpdateUserByID applies fields to the user with the given ID and returns the updated document.
// An empty e-mail removes the e-mail. With no fields set the current document is returned.
func (um *UserManager) UpdateUserByID(ctx context.Context, id string, fields Fields) (*User, error) {
	if fields.IsEmpty() {
		return um.GetUserByID(ctx, id)
	}

	userID, err := parseID(id)
	if err != nil {
		return nil, err
	}

	var user User
	err = um.collection.FindOneAndUpdate(
		ctx,
		bson.M{"_id": userID},
		updateDocument(fields, um.now()),
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// DeleteUserByID removes the user with the given ID and returns the deleted document.
func (um *UserManager) DeleteUserByID(ctx context.Context, id string) (*User, error) {
	userID, err := parseID(id)
	if err != nil {
		return nil, err
	}

	var user User
	err = um.collection.FindOneAndDelete(ctx, bson.M{"_id": userID}).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// updateDocument builds the $set / $unset update for fields.
func updateDocument(fields Fields, now time.Time) bson.M {
	set := bson.M{"updatedAt": now}
	unset := bson.M{}
	if fields.Name != nil {
		set["name"] = *fields.Name
	}
	if fields.Email != nil {
		if *fields.Email == "" {
			unset["email"] = ""
		} else {
			set["email"] = *fields.Email
		}
	}
	if fields.Age != nil {
		set["age"] = *fields.Age
	}

	update := bson.M{"$set": set}
	if len(unset) > 0 {
		update["$unset"] = unset
	}
	return update
}

func parseID(id string) (primitive.ObjectID, error) {
	userID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("%w %q: %v", ErrInvalidUserID, id, err)
	}
	return userID, nil
}
