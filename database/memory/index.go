// Package memory provides an in-memory roster implementation.
package memory

import "github.com/hashicorp/go-memdb"

const (
	tblUsers     = "users"
	tblRoomUsers = "room_users"
)

const (
	idxUserID         = "id"
	idxRoomUserID     = "id"
	idxRoomUserRoomID = "room_id"
	idxRoomUserUserID = "user_id"
)

// schema is the schema of the memory database.
var schema = &memdb.DBSchema{
	Tables: map[string]*memdb.TableSchema{
		tblUsers: {
			Name: tblUsers,
			Indexes: map[string]*memdb.IndexSchema{
				idxUserID: {
					Name:    idxUserID,
					Unique:  true,
					Indexer: &memdb.StringFieldIndex{Field: "ID"},
				},
			},
		},
		tblRoomUsers: {
			Name: tblRoomUsers,
			Indexes: map[string]*memdb.IndexSchema{
				idxRoomUserID: {
					Name:   idxRoomUserID,
					Unique: true,
					Indexer: &memdb.CompoundIndex{
						Indexes: []memdb.Indexer{
							&memdb.StringFieldIndex{Field: "RoomID"},
							&memdb.StringFieldIndex{Field: "UserID"},
						},
					},
				},
				idxRoomUserRoomID: {
					Name:    idxRoomUserRoomID,
					Unique:  false,
					Indexer: &memdb.StringFieldIndex{Field: "RoomID"},
				},
				idxRoomUserUserID: {
					Name:    idxRoomUserUserID,
					Unique:  false,
					Indexer: &memdb.StringFieldIndex{Field: "UserID"},
				},
			},
		},
	},
}
