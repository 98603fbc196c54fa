package domain

// Identity — уже проверенный пользователь, от имени которого пришёл запрос.
type Identity struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Role      string  `json:"role"`
	Email     string  `json:"email,omitempty"`
	AvatarURL *string `json:"avatarUrl,omitempty"`
}

// Contact is what the mention mailer needs to reach a user.
type Contact struct {
	UserID string
	Name   string
	Email  string
}
