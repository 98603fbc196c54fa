// Package memstore — хранилище в памяти процесса с теми же контрактами, что и postgres-репозитории.
// Подходит для локального запуска (store.driver: memory) и тестов; данные не переживают рестарт.
package memstore

import (
	"sync"
	"time"

	"github.com/cwrk-planet/chat-service/internal/domain"
)

type DB struct {
	mu sync.Mutex

	channels      map[string]domain.Channel
	members       map[memberKey]domain.Member
	messages      map[string]domain.Message
	order         []string // id сообщений в порядке вставки
	reactions     []domain.Reaction
	attachments   map[string]domain.Attachment
	notifications []domain.Notification
	users         map[string]domain.Contact

	clock func() time.Time
	last  time.Time
}

type memberKey struct{ channelID, userID string }

func New() *DB {
	return &DB{
		channels:    map[string]domain.Channel{},
		members:     map[memberKey]domain.Member{},
		messages:    map[string]domain.Message{},
		attachments: map[string]domain.Attachment{},
		users:       map[string]domain.Contact{},
		clock:       time.Now,
	}
}

// AddUser заводит пользователя в справочнике контактов.
func (db *DB) AddUser(c domain.Contact) {
	db.mu.Lock()
	db.users[c.UserID] = c
	db.mu.Unlock()
}

func (db *DB) Channels() *ChannelRepository           { return &ChannelRepository{db} }
func (db *DB) Members() *MemberRepository             { return &MemberRepository{db} }
func (db *DB) Messages() *MessageRepository           { return &MessageRepository{db} }
func (db *DB) Reactions() *ReactionRepository         { return &ReactionRepository{db} }
func (db *DB) Attachments() *AttachmentRepository     { return &AttachmentRepository{db} }
func (db *DB) Notifications() *NotificationRepository { return &NotificationRepository{db} }
func (db *DB) Users() *UserRepository                 { return &UserRepository{db} }

// nowLocked отдаёт строго возрастающее время: порядок вставки совпадает с порядком created_at.
func (db *DB) nowLocked() time.Time {
	t := db.clock().UTC()
	if !t.After(db.last) {
		t = db.last.Add(time.Microsecond)
	}
	db.last = t
	return t
}
