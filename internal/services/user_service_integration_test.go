//go:build integration
// +build integration

package services

import (
	"context"
	"testing"

	"feedbackapp/internal/models"
	contextutils "feedbackapp/internal/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserService_CreateAndAuthenticate_Integration(t *testing.T) {
	db := SharedTestDBSetup(t)
	defer db.Close()
	service := NewUserService(db, testLogger())
	ctx := context.Background()

	user, err := service.CreateUser(ctx, "reviewer@example.com", "Review Desk", "long-enough-password", models.RoleFounder)
	require.NoError(t, err)
	assert.NotZero(t, user.ID)
	assert.Equal(t, "Review Desk", user.Name)
	assert.Equal(t, models.RoleFounder, user.Role)
	assert.True(t, user.IsActive)

	got, err := service.AuthenticateUser(ctx, "reviewer@example.com", "long-enough-password")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)
	assert.Equal(t, "Review Desk", got.Name)

	_, err = service.AuthenticateUser(ctx, "reviewer@example.com", "wrong-password")
	assert.True(t, contextutils.IsError(err, contextutils.ErrInvalidCredentials))

	_, err = service.AuthenticateUser(ctx, "nobody@example.com", "long-enough-password")
	assert.True(t, contextutils.IsError(err, contextutils.ErrInvalidCredentials))
}

func TestUserService_CreateUser_Validation_Integration(t *testing.T) {
	db := SharedTestDBSetup(t)
	defer db.Close()
	service := NewUserService(db, testLogger())
	ctx := context.Background()

	_, err := service.CreateUser(ctx, "short@example.com", "Shorty", "tiny", models.RoleFounder)
	assert.True(t, contextutils.IsError(err, contextutils.ErrInvalidInput))

	_, err = service.CreateUser(ctx, "noname@example.com", "   ", "long-enough-password", models.RoleFounder)
	assert.True(t, contextutils.IsError(err, contextutils.ErrInvalidInput))

	_, err = service.CreateUser(ctx, "role@example.com", "Roleless", "long-enough-password", "janitor")
	assert.True(t, contextutils.IsError(err, contextutils.ErrInvalidInput))

	_, err = service.CreateUser(ctx, "dup@example.com", "Duplicated", "long-enough-password", models.RoleAdmin)
	require.NoError(t, err)
	_, err = service.CreateUser(ctx, "dup@example.com", "Duplicated", "long-enough-password", models.RoleAdmin)
	assert.True(t, contextutils.IsError(err, contextutils.ErrRecordExists))
}

func TestUserService_SetUserActive_BlocksLogin_Integration(t *testing.T) {
	db := SharedTestDBSetup(t)
	defer db.Close()
	service := NewUserService(db, testLogger())
	ctx := context.Background()

	user, err := service.CreateUser(ctx, "inactive@example.com", "Dormant CEO", "long-enough-password", models.RoleCEO)
	require.NoError(t, err)

	require.NoError(t, service.SetUserActive(ctx, user.ID, false))

	_, err = service.AuthenticateUser(ctx, "inactive@example.com", "long-enough-password")
	assert.True(t, contextutils.IsError(err, contextutils.ErrInvalidCredentials))

	require.NoError(t, service.SetUserActive(ctx, user.ID, true))
	_, err = service.AuthenticateUser(ctx, "inactive@example.com", "long-enough-password")
	assert.NoError(t, err)
}

func TestUserService_UpdateUserPassword_Integration(t *testing.T) {
	db := SharedTestDBSetup(t)
	defer db.Close()
	service := NewUserService(db, testLogger())
	ctx := context.Background()

	user, err := service.CreateUser(ctx, "rotate@example.com", "Rotator", "original-password", models.RoleFounder)
	require.NoError(t, err)

	require.NoError(t, service.UpdateUserPassword(ctx, user.ID, "rotated-password"))

	_, err = service.AuthenticateUser(ctx, "rotate@example.com", "original-password")
	assert.True(t, contextutils.IsError(err, contextutils.ErrInvalidCredentials))
	_, err = service.AuthenticateUser(ctx, "rotate@example.com", "rotated-password")
	assert.NoError(t, err)

	err = service.UpdateUserPassword(ctx, user.ID, "tiny")
	assert.True(t, contextutils.IsError(err, contextutils.ErrInvalidInput))

	err = service.UpdateUserPassword(ctx, 99999, "rotated-password")
	assert.True(t, contextutils.IsError(err, contextutils.ErrRecordNotFound))
}

func TestUserService_DeleteUser_Integration(t *testing.T) {
	db := SharedTestDBSetup(t)
	defer db.Close()
	service := NewUserService(db, testLogger())
	ctx := context.Background()

	user, err := service.CreateUser(ctx, "gone@example.com", "Leaver", "long-enough-password", models.RoleFounder)
	require.NoError(t, err)

	require.NoError(t, service.DeleteUser(ctx, user.ID))

	_, err = service.GetUserByID(ctx, user.ID)
	assert.True(t, contextutils.IsError(err, contextutils.ErrRecordNotFound))

	err = service.DeleteUser(ctx, user.ID)
	assert.True(t, contextutils.IsError(err, contextutils.ErrRecordNotFound))
}

func TestUserService_EnsureDefaultUsers_Integration(t *testing.T) {
	db := SharedTestDBSetup(t)
	defer db.Close()
	service := NewUserService(db, testLogger())
	ctx := context.Background()

	require.NoError(t, service.EnsureDefaultUsers(ctx, "ops.example.com"))

	users, err := service.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, len(models.ValidRoles))

	for _, role := range models.ValidRoles {
		got, err := service.AuthenticateUser(ctx, role+"@ops.example.com", "changeme-"+role)
		require.NoError(t, err)
		assert.Equal(t, role, got.Role)
		assert.NotEmpty(t, got.Name)
	}

	// Seeding is a no-op once any account exists
	require.NoError(t, service.EnsureDefaultUsers(ctx, "other.example.com"))
	users, err = service.ListUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, users, len(models.ValidRoles))
}
