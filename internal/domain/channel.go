package domain

import "time"

type ChannelKind string

const (
	ChannelPublic  ChannelKind = "public"
	ChannelPrivate ChannelKind = "private"
	ChannelDirect  ChannelKind = "direct"
	ChannelSystem  ChannelKind = "system"
)

func (k ChannelKind) Valid() bool {
	switch k {
	case ChannelPublic, ChannelPrivate, ChannelDirect, ChannelSystem:
		return true
	}
	return false
}

type Channel struct {
	ID          string      `db:"id" json:"id"`
	Name        string      `db:"name" json:"name"`
	Kind        ChannelKind `db:"kind" json:"kind"`
	ContextType *string     `db:"context_type" json:"contextType,omitempty"`
	ContextID   *string     `db:"context_id" json:"contextId,omitempty"`
	Archived    bool        `db:"archived" json:"archived"`
	CreatedBy   string      `db:"created_by" json:"createdBy"`
	CreatedAt   time.Time   `db:"created_at" json:"createdAt"`
}

// IsPublic — публичный канал читает любой аутентифицированный пользователь.
func (c *Channel) IsPublic() bool { return c.Kind == ChannelPublic }

type MemberRole string

const (
	RoleOwner  MemberRole = "owner"
	RoleAdmin  MemberRole = "admin"
	RoleMember MemberRole = "member"
)

// CanModerate reports whether the role may delete other users' content.
func (r MemberRole) CanModerate() bool { return r == RoleOwner || r == RoleAdmin }

type Member struct {
	ChannelID   string     `db:"channel_id" json:"channelId"`
	UserID      string     `db:"user_id" json:"userId"`
	DisplayName string     `db:"display_name" json:"displayName"`
	AvatarURL   *string    `db:"avatar_url" json:"avatarUrl,omitempty"`
	Role        MemberRole `db:"role" json:"role"`
	JoinedAt    time.Time  `db:"joined_at" json:"joinedAt"`
	LastReadAt  *time.Time `db:"last_read_at" json:"lastReadAt,omitempty"`
}
