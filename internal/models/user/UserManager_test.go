package user

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"github.com/NeRF-or-Nothing/go-user-service/internal/log"
)

const ns = "test.users"

func newTestManager(mt *mtest.T) *UserManager {
	um := NewUserManager(mt.DB, log.NewNopLogger())
	um.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }
	return um
}

func userDoc(id primitive.ObjectID, name string) bson.D {
	return bson.D{
		{Key: "_id", Value: id},
		{Key: "name", Value: name},
		{Key: "createdAt", Value: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)},
		{Key: "updatedAt", Value: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)},
	}
}

func TestUserManager_GetUsers(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("returns all users", func(mt *mtest.T) {
		um := newTestManager(mt)
		ann, bob := primitive.NewObjectID(), primitive.NewObjectID()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch,
			userDoc(ann, "Ann"), userDoc(bob, "Bob")))

		users, err := um.GetUsers(context.Background())
		require.NoError(mt, err)
		require.Len(mt, users, 2)
		assert.Equal(mt, ann, users[0].ID)
		assert.Equal(mt, "Bob", users[1].Name)
	})

	mt.Run("empty collection yields empty slice", func(mt *mtest.T) {
		um := newTestManager(mt)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch))

		users, err := um.GetUsers(context.Background())
		require.NoError(mt, err)
		assert.NotNil(mt, users)
		assert.Empty(mt, users)
	})

	mt.Run("store error", func(mt *mtest.T) {
		um := newTestManager(mt)
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{
			Code: 2, Name: "BadValue", Message: "boom",
		}))

		_, err := um.GetUsers(context.Background())
		assert.Error(mt, err)
	})
}

func TestUserManager_InsertUsers(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("assigns ids and timestamps", func(mt *mtest.T) {
		um := newTestManager(mt)
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		users, err := um.InsertUsers(context.Background(), []User{{Name: "Ann"}, {Name: "Bob"}})
		require.NoError(mt, err)
		require.Len(mt, users, 2)
		assert.False(mt, users[0].ID.IsZero())
		assert.False(mt, users[1].ID.IsZero())
		assert.NotEqual(mt, users[0].ID, users[1].ID)
		assert.Equal(mt, um.now(), users[0].CreatedAt)
		assert.Equal(mt, users[0].CreatedAt, users[0].UpdatedAt)
	})

	mt.Run("empty input skips the store", func(mt *mtest.T) {
		um := newTestManager(mt)

		users, err := um.InsertUsers(context.Background(), nil)
		require.NoError(mt, err)
		assert.Empty(mt, users)
	})

	mt.Run("duplicate key stops the insert", func(mt *mtest.T) {
		um := newTestManager(mt)
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{
			Index: 1, Code: 11000, Message: "E11000 duplicate key error collection: test.users index: email_unique",
		}))

		_, err := um.InsertUsers(context.Background(), []User{
			{Name: "Ann", Email: "a@example.com"},
			{Name: "Ann again", Email: "a@example.com"},
		})
		require.Error(mt, err)
		assert.True(mt, mongo.IsDuplicateKeyError(err))
	})
}

func TestUserManager_UpdateUserByID(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("returns updated document", func(mt *mtest.T) {
		um := newTestManager(mt)
		id := primitive.NewObjectID()
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "value", Value: userDoc(id, "Annie")}))

		name := "Annie"
		user, err := um.UpdateUserByID(context.Background(), id.Hex(), Fields{Name: &name})
		require.NoError(mt, err)
		assert.Equal(mt, id, user.ID)
		assert.Equal(mt, "Annie", user.Name)
	})

	mt.Run("missing user", func(mt *mtest.T) {
		um := newTestManager(mt)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "value", Value: nil}))

		name := "Ghost"
		_, err := um.UpdateUserByID(context.Background(), primitive.NewObjectID().Hex(), Fields{Name: &name})
		assert.ErrorIs(mt, err, ErrUserNotFound)
	})

	mt.Run("malformed id", func(mt *mtest.T) {
		um := newTestManager(mt)

		name := "Ann"
		_, err := um.UpdateUserByID(context.Background(), "not-an-id", Fields{Name: &name})
		assert.ErrorIs(mt, err, ErrInvalidUserID)
	})

	mt.Run("no fields returns current document", func(mt *mtest.T) {
		um := newTestManager(mt)
		id := primitive.NewObjectID()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, userDoc(id, "Ann")))

		user, err := um.UpdateUserByID(context.Background(), id.Hex(), Fields{})
		require.NoError(mt, err)
		assert.Equal(mt, "Ann", user.Name)
	})
}

func TestUserManager_DeleteUserByID(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("deletes existing user", func(mt *mtest.T) {
		um := newTestManager(mt)
		id := primitive.NewObjectID()
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "value", Value: userDoc(id, "Bob")}))

		user, err := um.DeleteUserByID(context.Background(), id.Hex())
		require.NoError(mt, err)
		assert.Equal(mt, "Bob", user.Name)
	})

	mt.Run("missing user", func(mt *mtest.T) {
		um := newTestManager(mt)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "value", Value: nil}))

		_, err := um.DeleteUserByID(context.Background(), primitive.NewObjectID().Hex())
		assert.ErrorIs(mt, err, ErrUserNotFound)
	})

	mt.Run("malformed id", func(mt *mtest.T) {
		um := newTestManager(mt)

		_, err := um.DeleteUserByID(context.Background(), "123")
		assert.ErrorIs(mt, err, ErrInvalidUserID)
	})
}

func TestUserManager_GetUserByID(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("missing user", func(mt *mtest.T) {
		um := newTestManager(mt)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch))

		_, err := um.GetUserByID(context.Background(), primitive.NewObjectID().Hex())
		assert.ErrorIs(mt, err, ErrUserNotFound)
	})
}

func TestUserManager_EnsureIndexes(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("creates index", func(mt *mtest.T) {
		um := newTestManager(mt)
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		assert.NoError(mt, um.EnsureIndexes(context.Background()))
	})

	mt.Run("store error", func(mt *mtest.T) {
		um := newTestManager(mt)
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{
			Code: 85, Name: "IndexOptionsConflict", Message: "conflict",
		}))

		assert.Error(mt, um.EnsureIndexes(context.Background()))
	})
}

func TestFields_IsEmpty(t *testing.T) {
	assert.True(t, Fields{}.IsEmpty())
	age := 3
	assert.False(t, Fields{Age: &age}.IsEmpty())
}

func TestUpdateDocument(t *testing.T) {
	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	name, email, empty, age := "Ann", "ann@example.com", "", 30

	tests := []struct {
		name   string
		fields Fields
		want   bson.M
	}{
		{
			name:   "set all",
			fields: Fields{Name: &name, Email: &email, Age: &age},
			want:   bson.M{"$set": bson.M{"updatedAt": now, "name": name, "email": email, "age": age}},
		},
		{
			name:   "empty email unsets",
			fields: Fields{Name: &name, Email: &empty},
			want: bson.M{
				"$set":   bson.M{"updatedAt": now, "name": name},
				"$unset": bson.M{"email": ""},
			},
		},
		{
			name:   "only updatedAt",
			fields: Fields{},
			want:   bson.M{"$set": bson.M{"updatedAt": now}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, updateDocument(tt.fields, now))
		})
	}
}
