// Package memory provides an in-memory roster implementation.
package memory

import (
	"fmt"
	"time"

	"github.com/hashicorp/go-memdb"

	"parley/database"
)

// DB is a memory-backed roster.
type DB struct {
	db *memdb.MemDB
}

// New creates a new memory-backed roster.
func New() *DB {
	db, err := memdb.NewMemDB(schema)
	if err != nil {
		panic(err)
	}
	return &DB{
		db: db,
	}
}

// UpsertUserInfo creates a user if it doesn't exist and updates the name
// otherwise. The name defaults to the user id when empty.
func (d *DB) UpsertUserInfo(userID, name string) (*database.UserInfo, error) {
	if name == "" {
		name = userID
	}
	txn := d.db.Txn(true)
	defer txn.Abort()
	raw, err := txn.First(tblUsers, idxUserID, userID)
	if err != nil {
		return nil, fmt.Errorf("find user by userID: %w", err)
	}
	var info *database.UserInfo
	if raw == nil {
		info = &database.UserInfo{
			ID:        userID,
			Name:      name,
			CreatedAt: time.Now(),
		}
	} else {
		info = raw.(*database.UserInfo).DeepCopy()
		info.UpdateName(name)
	}
	if err := txn.Insert(tblUsers, info); err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	txn.Commit()
	return info.DeepCopy(), nil
}

// FindUserInfoByID finds a user by its ID.
func (d *DB) FindUserInfoByID(userID string) (*database.UserInfo, error) {
	txn := d.db.Txn(false)
	defer txn.Abort()
	raw, err := txn.First(tblUsers, idxUserID, userID)
	if err != nil {
		return nil, fmt.Errorf("find user by userID: %w", err)
	}
	if raw == nil {
		return nil, fmt.Errorf("%s: %w", userID, database.ErrUserNotFound)
	}
	return raw.(*database.UserInfo).DeepCopy(), nil
}

// DeleteUserInfoIfOrphan deletes a user once no room membership references
// it. Deleting an unknown user is not an error.
func (d *DB) DeleteUserInfoIfOrphan(userID string) error {
	txn := d.db.Txn(true)
	defer txn.Abort()
	member, err := txn.First(tblRoomUsers, idxRoomUserUserID, userID)
	if err != nil {
		return fmt.Errorf("find memberships by userID: %w", err)
	}
	if member != nil {
		return nil
	}
	raw, err := txn.First(tblUsers, idxUserID, userID)
	if err != nil {
		return fmt.Errorf("find user by userID: %w", err)
	}
	if raw == nil {
		return nil
	}
	if err := txn.Delete(tblUsers, raw); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	txn.Commit()
	return nil
}

// UpsertRoomUser records one user's state in one room, creating the
// membership if it doesn't exist.
func (d *DB) UpsertRoomUser(roomID, userID string, micActive, camActive, isShareScreen bool) (*database.RoomUser, error) { //nolint:lll
	txn := d.db.Txn(true)
	defer txn.Abort()
	raw, err := txn.First(tblRoomUsers, idxRoomUserID, roomID, userID)
	if err != nil {
		return nil, fmt.Errorf("find room user: %w", err)
	}
	var info *database.RoomUser
	if raw == nil {
		info = &database.RoomUser{
			RoomID: roomID,
			UserID: userID,
		}
	} else {
		info = raw.(*database.RoomUser).DeepCopy()
	}
	info.UpdateState(micActive, camActive, isShareScreen)
	info.UpdateUpdatedAt()
	if err := txn.Insert(tblRoomUsers, info); err != nil {
		return nil, fmt.Errorf("insert room user: %w", err)
	}
	txn.Commit()
	return info.DeepCopy(), nil
}

// FindRoomUser finds one user's state in one room.
func (d *DB) FindRoomUser(roomID, userID string) (*database.RoomUser, error) {
	txn := d.db.Txn(false)
	defer txn.Abort()
	raw, err := txn.First(tblRoomUsers, idxRoomUserID, roomID, userID)
	if err != nil {
		return nil, fmt.Errorf("find room user: %w", err)
	}
	if raw == nil {
		return nil, fmt.Errorf("user %s in room %s: %w", userID, roomID, database.ErrRoomUserNotFound)
	}
	return raw.(*database.RoomUser).DeepCopy(), nil
}

// FindRoomUsers lists every user's state in one room.
func (d *DB) FindRoomUsers(roomID string) ([]*database.RoomUser, error) {
	txn := d.db.Txn(false)
	defer txn.Abort()
	iter, err := txn.Get(tblRoomUsers, idxRoomUserRoomID, roomID)
	if err != nil {
		return nil, fmt.Errorf("find room users by roomID: %w", err)
	}
	var users []*database.RoomUser
	for {
		raw := iter.Next()
		if raw == nil {
			break
		}
		users = append(users, raw.(*database.RoomUser).DeepCopy())
	}
	return users, nil
}

// DeleteRoomUser deletes one user's membership in one room.
func (d *DB) DeleteRoomUser(roomID, userID string) error {
	txn := d.db.Txn(true)
	defer txn.Abort()
	raw, err := txn.First(tblRoomUsers, idxRoomUserID, roomID, userID)
	if err != nil {
		return fmt.Errorf("find room user: %w", err)
	}
	if raw == nil {
		return fmt.Errorf("user %s in room %s: %w", userID, roomID, database.ErrRoomUserNotFound)
	}
	if err := txn.Delete(tblRoomUsers, raw); err != nil {
		return fmt.Errorf("delete room user: %w", err)
	}
	txn.Commit()
	return nil
}

// DeleteRoomUsersByRoom deletes every membership of one room.
func (d *DB) DeleteRoomUsersByRoom(roomID string) error {
	txn := d.db.Txn(true)
	defer txn.Abort()
	if _, err := txn.DeleteAll(tblRoomUsers, idxRoomUserRoomID, roomID); err != nil {
		return fmt.Errorf("delete room users by roomID: %w", err)
	}
	txn.Commit()
	return nil
}
