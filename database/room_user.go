package database

import "time"

// RoomUser is a struct for one user's state within one room.
type RoomUser struct {
	RoomID        string
	UserID        string
	MicActive     bool
	CamActive     bool
	IsShareScreen bool
	UpdatedAt     time.Time
}

// UpdateState updates the media flags with the provided values.
func (r *RoomUser) UpdateState(micActive, camActive, isShareScreen bool) {
	r.MicActive = micActive
	r.CamActive = camActive
	r.IsShareScreen = isShareScreen
}

// UpdateUpdatedAt sets the UpdatedAt field to now.
func (r *RoomUser) UpdateUpdatedAt() {
	r.UpdatedAt = time.Now()
}

// DeepCopy creates a deep copy of the given RoomUser.
func (r *RoomUser) DeepCopy() *RoomUser {
	return &RoomUser{
		RoomID:        r.RoomID,
		UserID:        r.UserID,
		MicActive:     r.MicActive,
		CamActive:     r.CamActive,
		IsShareScreen: r.IsShareScreen,
		UpdatedAt:     r.UpdatedAt,
	}
}
