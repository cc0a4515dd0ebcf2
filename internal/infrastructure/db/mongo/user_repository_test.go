package mongo

import (
	"context"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/99minutos/identity-service/internal/core/domain"
	"github.com/99minutos/identity-service/internal/core/ports"
)

const ns = "identity.users"

var fixedTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func userDoc(id, email string) bson.D {
	return bson.D{
		{Key: "_id", Value: id},
		{Key: "username", Value: "alice"},
		{Key: "email", Value: email},
		{Key: "password_hash", Value: "$argon2id$hash"},
		{Key: "role", Value: domain.RoleUser},
		{Key: "created_at", Value: fixedTime},
		{Key: "updated_at", Value: fixedTime},
	}
}

func sampleUser() *domain.User {
	return &domain.User{
		ID:           "6c1f4e0e-1b7a-4c1e-9f7e-0d7d2c2f5a10",
		Username:     "alice",
		Email:        "alice@example.com",
		PasswordHash: "$argon2id$hash",
		Role:         domain.RoleUser,
		CreatedAt:    fixedTime,
		UpdatedAt:    fixedTime,
	}
}

func TestUserRepository(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("save", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse())
		repo := NewUserRepository(mt.DB)

		saved, err := repo.Save(context.Background(), sampleUser())
		require.NoError(mt, err)
		assert.Equal(mt, "alice@example.com", saved.Email)
	})

	mt.Run("save duplicate email", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{
			Index: 0, Code: 11000, Message: "E11000 duplicate key error",
		}))
		repo := NewUserRepository(mt.DB)

		_, err := repo.Save(context.Background(), sampleUser())
		assert.ErrorIs(mt, err, domain.ErrUserExists)
	})

	mt.Run("find by id", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, userDoc("u1", "a@example.com")))
		repo := NewUserRepository(mt.DB)

		u, err := repo.FindByID(context.Background(), "u1")
		require.NoError(mt, err)
		assert.Equal(mt, "u1", u.ID)
		assert.Equal(mt, "$argon2id$hash", u.PasswordHash)
		assert.True(mt, u.CreatedAt.Equal(fixedTime))
	})

	mt.Run("find by email absent", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch))
		repo := NewUserRepository(mt.DB)

		_, err := repo.FindByEmail(context.Background(), "ghost@example.com")
		assert.ErrorIs(mt, err, domain.ErrUserNotFound)
	})

	mt.Run("find all", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch,
			userDoc("u2", "b@example.com"),
			userDoc("u1", "a@example.com"),
		))
		repo := NewUserRepository(mt.DB)

		users, err := repo.FindAll(context.Background(), ports.ListUsersParams{Limit: 10})
		require.NoError(mt, err)
		require.Len(mt, users, 2)
		assert.Equal(mt, "u2", users[0].ID)
	})

	mt.Run("count", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, bson.D{{Key: "n", Value: int32(3)}}))
		repo := NewUserRepository(mt.DB)

		n, err := repo.Count(context.Background())
		require.NoError(mt, err)
		assert.EqualValues(mt, 3, n)
	})

	mt.Run("update", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: 1},
			bson.E{Key: "nModified", Value: 1},
		))
		repo := NewUserRepository(mt.DB)

		u := sampleUser()
		u.Email = "new@example.com"
		updated, err := repo.Update(context.Background(), u)
		require.NoError(mt, err)
		assert.Equal(mt, "new@example.com", updated.Email)
	})

	mt.Run("update missing", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: 0},
			bson.E{Key: "nModified", Value: 0},
		))
		repo := NewUserRepository(mt.DB)

		_, err := repo.Update(context.Background(), sampleUser())
		assert.ErrorIs(mt, err, domain.ErrUserNotFound)
	})

	mt.Run("update email clash", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{
			Index: 0, Code: 11000, Message: "E11000 duplicate key error",
		}))
		repo := NewUserRepository(mt.DB)

		_, err := repo.Update(context.Background(), sampleUser())
		assert.ErrorIs(mt, err, domain.ErrUserExists)
	})

	mt.Run("delete", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}))
		repo := NewUserRepository(mt.DB)

		assert.NoError(mt, repo.Delete(context.Background(), "u1"))
	})

	mt.Run("delete missing", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}))
		repo := NewUserRepository(mt.DB)

		assert.ErrorIs(mt, repo.Delete(context.Background(), "u1"), domain.ErrUserNotFound)
	})

	mt.Run("ensure indexes", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse())
		repo := NewUserRepository(mt.DB)

		assert.NoError(mt, repo.EnsureIndexes(context.Background()))
	})

	mt.Run("driver error is wrapped", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{
			Code: 2, Name: "BadValue", Message: "boom",
		}))
		repo := NewUserRepository(mt.DB)

		_, err := repo.FindByID(context.Background(), "u1")
		require.Error(mt, err)
		assert.NotErrorIs(mt, err, domain.ErrUserNotFound)
		assert.Contains(mt, err.Error(), "find user")
	})
}

func TestAuditRepository(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("insert", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse())
		repo := NewAuditRepository(mt.DB)

		err := repo.InsertEvent(context.Background(), &domain.AuditEvent{
			Type:       domain.AuditLoginFailed,
			Email:      "a@example.com",
			IP:         "10.0.0.1",
			OccurredAt: fixedTime,
		})
		assert.NoError(mt, err)
	})

	mt.Run("insert error", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{
			Code: 2, Name: "BadValue", Message: "boom",
		}))
		repo := NewAuditRepository(mt.DB)

		err := repo.InsertEvent(context.Background(), &domain.AuditEvent{Type: domain.AuditUserDeleted})
		assert.ErrorContains(mt, err, "insert audit event")
	})
}
