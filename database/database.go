// Package database provides an interface for roster persistence. The roster
// mirrors per-room user state so it survives the signaling session that wrote
// it and can be queried without holding any room lock.
package database

import (
	"errors"
)

var (
	// ErrUserNotFound is returned when the user is not found.
	ErrUserNotFound = errors.New("user not found")

	// ErrRoomUserNotFound is returned when the room membership is not found.
	ErrRoomUserNotFound = errors.New("room user not found")
)

// Database is an interface for roster operations.
type Database interface {
	UpsertUserInfo(userID, name string) (*UserInfo, error)
	FindUserInfoByID(userID string) (*UserInfo, error)
	DeleteUserInfoIfOrphan(userID string) error

	UpsertRoomUser(roomID, userID string, micActive, camActive, isShareScreen bool) (*RoomUser, error)
	FindRoomUser(roomID, userID string) (*RoomUser, error)
	FindRoomUsers(roomID string) ([]*RoomUser, error)
	DeleteRoomUser(roomID, userID string) error
	DeleteRoomUsersByRoom(roomID string) error
}
