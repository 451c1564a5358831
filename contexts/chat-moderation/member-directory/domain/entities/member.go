package entities

import (
	"fmt"
	"time"
)

// User is the locally mirrored profile of a transport user.
type User struct {
	UserID     int64
	Username   string
	FirstName  string
	LastName   string
	LastUpdate time.Time
}

// Link renders the user as a mention: the public @username when one exists,
// otherwise an inline mention carrying the user id.
func (u User) Link() string {
	if u.Username != "" {
		return "@" + u.Username
	}
	return fmt.Sprintf("<a href=tg://user?id=%d>%s</a>", u.UserID, u.FirstName)
}

// Chat is the locally mirrored profile of a group chat. Chat ids are
// negative on the wire; a chat migration changes the id entirely, so a
// migrated chat simply shows up as a new one.
type Chat struct {
	ChatID     int64
	Link       string
	Title      string
	LastUpdate time.Time
}

type Role string

const (
	RoleMember  Role = "member"
	RoleAdmin   Role = "admin"
	RoleCreator Role = "creator"
)

// Participant is a user's membership record in a chat.
type Participant struct {
	ChatID int64
	UserID int64
	Role   Role
}

func (p Participant) IsAdmin() bool {
	return p.Role == RoleAdmin || p.Role == RoleCreator
}
