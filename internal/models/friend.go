package models

// Friend is a one-way edge from OwnerID to FriendID. The reverse edge is a
// separate record written when the other user adds back.
type Friend struct {
	ID          string `json:"id" validate:"required"`
	OwnerID     string `json:"userId" validate:"required"`
	FriendID    string `json:"friendId" validate:"required"`
	FriendName  string `json:"friendName"`
	FriendEmail string `json:"friendEmail"`
	CreatedAt   string `json:"createdAt"`
}

// FriendListEvent is pushed to websocket subscribers of a user's friend list.
type FriendListEvent struct {
	Type    string   `json:"type"`
	Friends []Friend `json:"friends"`
}
