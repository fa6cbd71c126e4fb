package database

import "time"

// UserInfo is a struct for user information shared across rooms.
type UserInfo struct {
	ID        string
	Name      string
	CreatedAt time.Time
}

// UpdateName updates the Name field with the provided value.
func (u *UserInfo) UpdateName(name string) {
	u.Name = name
}

// DeepCopy creates a deep copy of the given UserInfo.
func (u *UserInfo) DeepCopy() *UserInfo {
	return &UserInfo{
		ID:        u.ID,
		Name:      u.Name,
		CreatedAt: u.CreatedAt,
	}
}
