package memory_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"parley/database"
	"parley/database/memory"
)

func TestUserInfo(t *testing.T) {
	t.Run("given new user when upserted then user is created with name", func(t *testing.T) {
		db := memory.New()
		info, err := db.UpsertUserInfo("alice", "Alice")
		assert.NoError(t, err)
		assert.Equal(t, "Alice", info.Name)

		found, err := db.FindUserInfoByID("alice")
		assert.NoError(t, err)
		assert.Equal(t, "Alice", found.Name)
	})

	t.Run("given empty name when upserted then name defaults to id", func(t *testing.T) {
		db := memory.New()
		info, err := db.UpsertUserInfo("alice", "")
		assert.NoError(t, err)
		assert.Equal(t, "alice", info.Name)
	})

	t.Run("given existing user when upserted then name is updated", func(t *testing.T) {
		db := memory.New()
		_, err := db.UpsertUserInfo("alice", "Alice")
		assert.NoError(t, err)
		info, err := db.UpsertUserInfo("alice", "Alice Cooper")
		assert.NoError(t, err)
		assert.Equal(t, "Alice Cooper", info.Name)
	})

	t.Run("given unknown user when found then it returns ErrUserNotFound", func(t *testing.T) {
		db := memory.New()
		_, err := db.FindUserInfoByID("ghost")
		assert.ErrorIs(t, err, database.ErrUserNotFound)
	})
}

func TestDeleteUserInfoIfOrphan(t *testing.T) {
	t.Run("given user with membership when deleted then user is kept", func(t *testing.T) {
		db := memory.New()
		_, err := db.UpsertUserInfo("alice", "Alice")
		assert.NoError(t, err)
		_, err = db.UpsertRoomUser("room", "alice", true, true, false)
		assert.NoError(t, err)

		assert.NoError(t, db.DeleteUserInfoIfOrphan("alice"))
		_, err = db.FindUserInfoByID("alice")
		assert.NoError(t, err)
	})

	t.Run("given user without membership when deleted then user is removed", func(t *testing.T) {
		db := memory.New()
		_, err := db.UpsertUserInfo("alice", "Alice")
		assert.NoError(t, err)

		assert.NoError(t, db.DeleteUserInfoIfOrphan("alice"))
		_, err = db.FindUserInfoByID("alice")
		assert.ErrorIs(t, err, database.ErrUserNotFound)
	})

	t.Run("given unknown user when deleted then deletion is a no-op", func(t *testing.T) {
		db := memory.New()
		assert.NoError(t, db.DeleteUserInfoIfOrphan("ghost"))
	})
}

func TestRoomUser(t *testing.T) {
	t.Run("given new membership when upserted then state is recorded", func(t *testing.T) {
		db := memory.New()
		info, err := db.UpsertRoomUser("room", "alice", true, false, false)
		assert.NoError(t, err)
		assert.True(t, info.MicActive)
		assert.False(t, info.CamActive)
	})

	t.Run("given existing membership when upserted then state is replaced", func(t *testing.T) {
		db := memory.New()
		_, err := db.UpsertRoomUser("room", "alice", true, true, false)
		assert.NoError(t, err)
		_, err = db.UpsertRoomUser("room", "alice", false, true, true)
		assert.NoError(t, err)

		found, err := db.FindRoomUser("room", "alice")
		assert.NoError(t, err)
		assert.False(t, found.MicActive)
		assert.True(t, found.IsShareScreen)
	})

	t.Run("given several memberships when listed then only the room's are returned", func(t *testing.T) {
		db := memory.New()
		_, err := db.UpsertRoomUser("room", "alice", true, true, false)
		assert.NoError(t, err)
		_, err = db.UpsertRoomUser("room", "bob", true, true, false)
		assert.NoError(t, err)
		_, err = db.UpsertRoomUser("other", "carol", true, true, false)
		assert.NoError(t, err)

		users, err := db.FindRoomUsers("room")
		assert.NoError(t, err)
		assert.Len(t, users, 2)
	})

	t.Run("given membership when deleted then it is gone", func(t *testing.T) {
		db := memory.New()
		_, err := db.UpsertRoomUser("room", "alice", true, true, false)
		assert.NoError(t, err)

		assert.NoError(t, db.DeleteRoomUser("room", "alice"))
		_, err = db.FindRoomUser("room", "alice")
		assert.ErrorIs(t, err, database.ErrRoomUserNotFound)
	})

	t.Run("given unknown membership when deleted then it returns ErrRoomUserNotFound", func(t *testing.T) {
		db := memory.New()
		err := db.DeleteRoomUser("room", "ghost")
		assert.ErrorIs(t, err, database.ErrRoomUserNotFound)
	})

	t.Run("given room teardown when memberships are purged then the room is empty", func(t *testing.T) {
		db := memory.New()
		_, err := db.UpsertRoomUser("room", "alice", true, true, false)
		assert.NoError(t, err)
		_, err = db.UpsertRoomUser("room", "bob", true, true, false)
		assert.NoError(t, err)

		assert.NoError(t, db.DeleteRoomUsersByRoom("room"))
		users, err := db.FindRoomUsers("room")
		assert.NoError(t, err)
		assert.Empty(t, users)
	})
}
