package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cwrk-planet/chat-service/internal/domain"
	"github.com/cwrk-planet/chat-service/internal/realtime"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestSendMessage_PersistsAndPublishes(t *testing.T) {
	f := newFixture(t)
	ch := f.channel(t, alice, domain.ChannelPrivate, bob)
	bobConn, _ := f.connect(t, bob, ch)

	msg, err := f.chat.SendMessage(t.Context(), alice, ch, "  hello there  ", nil)
	require.NoError(t, err)
	require.Equal(t, "hello there", msg.Text)
	require.Equal(t, alice.ID, msg.SenderID)
	require.NotNil(t, msg.Reactions)
	require.Empty(t, msg.Reactions)
	require.NotNil(t, msg.Attachments)
	require.Empty(t, msg.Attachments)

	got := bobConn.of(realtime.EventMessageNew)
	require.Len(t, got, 1)
	published := got[0].Payload.(domain.Message)
	require.Equal(t, msg.ID, published.ID)
	require.Equal(t, msg.Text, published.Text)
}

func TestSendMessage_Validation(t *testing.T) {
	f := newFixture(t)
	ch := f.channel(t, alice, domain.ChannelPrivate)
	other := f.channel(t, alice, domain.ChannelPublic)
	otherMsg, err := f.chat.SendMessage(t.Context(), alice, other, "elsewhere", nil)
	require.NoError(t, err)

	tests := []struct {
		name    string
		who     domain.Identity
		channel string
		text    string
		parent  *string
		want    error
	}{
		{"empty", alice, ch, "   ", nil, domain.ErrValidation},
		{"too long", alice, ch, strings.Repeat("я", DefaultMaxMessageLength+1), nil, domain.ErrValidation},
		{"malformed channel", alice, "not-a-uuid", "hi", nil, domain.ErrValidation},
		{"unknown channel", alice, uuid.NewString(), "hi", nil, domain.ErrNotFound},
		{"not a member", bob, ch, "hi", nil, domain.ErrForbidden},
		{"parent elsewhere", alice, ch, "hi", &otherMsg.ID, domain.ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.chat.SendMessage(t.Context(), tt.who, tt.channel, tt.text, tt.parent)
			require.ErrorIs(t, err, tt.want)
		})
	}

	_, err = f.chat.SendMessage(t.Context(), alice, ch, strings.Repeat("я", DefaultMaxMessageLength), nil)
	require.NoError(t, err)
}

func TestSendMessage_PublicChannelWithoutMembership(t *testing.T) {
	f := newFixture(t)
	ch := f.channel(t, alice, domain.ChannelPublic)

	_, err := f.chat.SendMessage(t.Context(), carol, ch, "drive-by", nil)
	require.NoError(t, err)
}

func TestSendMessage_ArchivedChannel(t *testing.T) {
	f := newFixture(t)
	ch := f.channel(t, alice, domain.ChannelPublic)
	require.NoError(t, f.channels.ArchiveChannel(t.Context(), alice, ch))

	_, err := f.chat.SendMessage(t.Context(), alice, ch, "anyone?", nil)
	require.ErrorIs(t, err, domain.ErrForbidden)
}

func TestSendMessage_ThreadReply(t *testing.T) {
	f := newFixture(t)
	ch := f.channel(t, alice, domain.ChannelPublic)
	root, err := f.chat.SendMessage(t.Context(), alice, ch, "root", nil)
	require.NoError(t, err)

	reply, err := f.chat.SendMessage(t.Context(), bob, ch, "reply", &root.ID)
	require.NoError(t, err)
	require.Equal(t, root.ID, *reply.ParentID)

	require.NoError(t, f.chat.DeleteMessage(t.Context(), alice, root.ID))
	_, err = f.chat.SendMessage(t.Context(), bob, ch, "late reply", &root.ID)
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSendMessage_StoreFailure(t *testing.T) {
	f := newFixture(t)
	ch := f.channel(t, alice, domain.ChannelPublic)
	conn, _ := f.connect(t, bob, ch)

	f.outage.set(errors.New("connection refused"))

	_, err := f.chat.SendMessage(t.Context(), alice, ch, "lost", nil)
	require.ErrorIs(t, err, domain.ErrStore)
	require.NotContains(t, err.Error(), "connection refused")
	require.Empty(t, conn.of(realtime.EventMessageNew))
}

func TestSendMessage_StoreTimeout(t *testing.T) {
	f := newFixture(t)
	ch := f.channel(t, alice, domain.ChannelPublic)
	f.chat.timeout = 20 * time.Millisecond

	err := f.chat.call(t.Context(), "slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	require.ErrorIs(t, err, domain.ErrStore)

	_, err = f.chat.SendMessage(t.Context(), alice, ch, "still works", nil)
	require.NoError(t, err)
}

func TestSendMessage_PublishOrderMatchesCommitOrder(t *testing.T) {
	f := newFixture(t)
	ch := f.channel(t, alice, domain.ChannelPublic)
	conn, _ := f.connect(t, bob, ch)

	var wg sync.WaitGroup
	errs := make(chan error, 30)
	for i := 0; i < 30; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.chat.SendMessage(context.Background(), alice, ch, "burst", nil)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	events := conn.of(realtime.EventMessageNew)
	require.Len(t, events, 30)
	history, _, err := f.chat.ListMessages(t.Context(), alice, ch, "", 100)
	require.NoError(t, err)
	require.Len(t, history, 30)
	for i, ev := range events {
		require.Equal(t, history[len(history)-1-i].ID, ev.Payload.(domain.Message).ID)
	}
}

func TestEditMessage(t *testing.T) {
	f := newFixture(t)
	ch := f.channel(t, alice, domain.ChannelPublic, bob)
	conn, _ := f.connect(t, bob, ch)
	msg, err := f.chat.SendMessage(t.Context(), alice, ch, "frist", nil)
	require.NoError(t, err)

	_, err = f.chat.EditMessage(t.Context(), bob, msg.ID, "hijack")
	require.ErrorIs(t, err, domain.ErrForbidden)

	edited, err := f.chat.EditMessage(t.Context(), alice, msg.ID, "first @bob")
	require.NoError(t, err)
	require.Equal(t, "first @bob", edited.Text)
	require.Equal(t, []string{"bob"}, edited.Mentions)
	require.NotNil(t, edited.EditedAt)

	updates := conn.of(realtime.EventMessageUpdated)
	require.Len(t, updates, 1)
	require.Equal(t, "first @bob", updates[0].Payload.(domain.Message).Text)
}

func TestDeleteThenEditFails(t *testing.T) {
	f := newFixture(t)
	ch := f.channel(t, alice, domain.ChannelPublic)
	conn, _ := f.connect(t, bob, ch)
	msg, err := f.chat.SendMessage(t.Context(), alice, ch, "oops", nil)
	require.NoError(t, err)

	require.NoError(t, f.chat.DeleteMessage(t.Context(), alice, msg.ID))

	_, err = f.chat.EditMessage(t.Context(), alice, msg.ID, "fixed")
	require.ErrorIs(t, err, domain.ErrNotFound)
	require.ErrorIs(t, f.chat.DeleteMessage(t.Context(), alice, msg.ID), domain.ErrNotFound)
	_, err = f.chat.AddReaction(t.Context(), alice, msg.ID, "👍")
	require.ErrorIs(t, err, domain.ErrNotFound)

	stored, err := f.chat.GetMessage(t.Context(), alice, msg.ID)
	require.NoError(t, err)
	require.True(t, stored.Deleted)
	require.Equal(t, domain.DeletedPlaceholder, stored.Text)

	deleted := conn.of(realtime.EventMessageDeleted)
	require.Len(t, deleted, 1)
	require.Equal(t, realtime.MessageDeletedPayload{ID: msg.ID, ChannelID: ch}, deleted[0].Payload)
	require.Empty(t, conn.of(realtime.EventMessageUpdated))
}

func TestDeleteMessage_Authorization(t *testing.T) {
	f := newFixture(t)
	ch := f.channel(t, alice, domain.ChannelPublic, bob)
	_, err := f.channels.AddMember(t.Context(), alice, ch, AddMemberInput{UserID: carol.ID, DisplayName: carol.Name, Role: domain.RoleAdmin})
	require.NoError(t, err)

	byBob, err := f.chat.SendMessage(t.Context(), bob, ch, "mine", nil)
	require.NoError(t, err)
	byAlice, err := f.chat.SendMessage(t.Context(), alice, ch, "owner's", nil)
	require.NoError(t, err)

	require.ErrorIs(t, f.chat.DeleteMessage(t.Context(), bob, byAlice.ID), domain.ErrForbidden)

	outsider := domain.Identity{ID: "dave", Name: "Dave"}
	require.ErrorIs(t, f.chat.DeleteMessage(t.Context(), outsider, byBob.ID), domain.ErrForbidden)

	require.NoError(t, f.chat.DeleteMessage(t.Context(), carol, byBob.ID))
	require.NoError(t, f.chat.DeleteMessage(t.Context(), alice, byAlice.ID))
}

func TestReactions_Idempotent(t *testing.T) {
	f := newFixture(t)
	ch := f.channel(t, alice, domain.ChannelPublic)
	conn, _ := f.connect(t, carol, ch)
	msg, err := f.chat.SendMessage(t.Context(), alice, ch, "react to me", nil)
	require.NoError(t, err)

	first, err := f.chat.AddReaction(t.Context(), bob, msg.ID, "👍")
	require.NoError(t, err)
	second, err := f.chat.AddReaction(t.Context(), bob, msg.ID, "👍")
	require.NoError(t, err)
	require.Equal(t, 1, first.Count)
	require.Equal(t, first, second)
	require.Len(t, conn.of(realtime.EventReactionAdded), 1)

	added := conn.of(realtime.EventReactionAdded)[0].Payload.(realtime.ReactionAddedPayload)
	require.Equal(t, bob.ID, added.UserID)
	require.Equal(t, 1, added.Count)

	stored, err := f.chat.GetMessage(t.Context(), bob, msg.ID)
	require.NoError(t, err)
	require.Len(t, stored.Reactions, 1)
	require.Equal(t, 1, stored.Reactions[0].Count)

	require.NoError(t, f.chat.RemoveReaction(t.Context(), bob, msg.ID, "👍"))
	require.NoError(t, f.chat.RemoveReaction(t.Context(), bob, msg.ID, "👍"))
	require.Len(t, conn.of(realtime.EventReactionRemoved), 1)
}

func TestRemoveReaction_NeverAdded(t *testing.T) {
	f := newFixture(t)
	ch := f.channel(t, alice, domain.ChannelPublic)
	conn, _ := f.connect(t, bob, ch)
	msg, err := f.chat.SendMessage(t.Context(), alice, ch, "nothing here", nil)
	require.NoError(t, err)

	require.NoError(t, f.chat.RemoveReaction(t.Context(), bob, msg.ID, "🎉"))
	require.Empty(t, conn.of(realtime.EventReactionRemoved))
}

func TestReaction_BadEmoji(t *testing.T) {
	f := newFixture(t)
	ch := f.channel(t, alice, domain.ChannelPublic)
	msg, err := f.chat.SendMessage(t.Context(), alice, ch, "x", nil)
	require.NoError(t, err)

	_, err = f.chat.AddReaction(t.Context(), alice, msg.ID, " ")
	require.ErrorIs(t, err, domain.ErrValidation)
	_, err = f.chat.AddReaction(t.Context(), alice, msg.ID, strings.Repeat("a", 33))
	require.ErrorIs(t, err, domain.ErrValidation)
}

func TestMentions_NotifyMemberNotSender(t *testing.T) {
	f := newFixture(t)
	ch := f.channel(t, alice, domain.ChannelPrivate, bob)
	bobConn, _ := f.connect(t, bob, "")

	msg, err := f.chat.SendMessage(t.Context(), alice, ch, "hi @bob and @Alice", nil)
	require.NoError(t, err)
	require.Equal(t, []string{"bob", "Alice"}, msg.Mentions)
	f.flush()

	notes := f.notificationsFor(t, bob.ID)
	require.Len(t, notes, 1)
	require.Equal(t, domain.NotificationMention, notes[0].Type)
	require.Equal(t, msg.ID, notes[0].MessageID)
	require.Equal(t, alice.ID, notes[0].ActorID)
	require.Empty(t, f.notificationsFor(t, alice.ID))

	pushed := bobConn.of(realtime.EventNotificationNew)
	require.Len(t, pushed, 1)
	payload := pushed[0].Payload.(NotificationPayload)
	require.Equal(t, "Alice", payload.SenderName)

	emails := f.mailer.emails()
	require.Len(t, emails, 1)
	require.Equal(t, bob.Email, emails[0].RecipientEmail)
	require.Equal(t, "hi @bob and @Alice", emails[0].MessageText)
}

func TestMentions_ZeroMatches(t *testing.T) {
	f := newFixture(t)
	ch := f.channel(t, alice, domain.ChannelPublic, bob)

	_, err := f.chat.SendMessage(t.Context(), alice, ch, "ping @nobody", nil)
	require.NoError(t, err)
	f.flush()

	require.Empty(t, f.notificationsFor(t, bob.ID))
	require.Empty(t, f.notificationsFor(t, alice.ID))
}

func TestMentions_RoleBroadcast(t *testing.T) {
	f := newFixture(t)
	ch := f.channel(t, alice, domain.ChannelPublic, bob)
	_, err := f.channels.AddMember(t.Context(), alice, ch, AddMemberInput{UserID: carol.ID, DisplayName: carol.Name, Role: domain.RoleAdmin})
	require.NoError(t, err)

	_, err = f.chat.SendMessage(t.Context(), bob, ch, "@admin @owner help", nil)
	require.NoError(t, err)
	f.flush()

	require.Len(t, f.notificationsFor(t, carol.ID), 1)
	require.Len(t, f.notificationsFor(t, alice.ID), 1)
	require.Empty(t, f.notificationsFor(t, bob.ID))
}

func TestTyping_BroadcastExcludesRecipient(t *testing.T) {
	f := newFixture(t)
	ch := f.channel(t, alice, domain.ChannelPublic)
	c1, _ := f.connect(t, alice, ch)
	c2, _ := f.connect(t, bob, ch)

	require.NoError(t, f.chat.StartTyping(t.Context(), alice, ch))

	toBob := c2.of(realtime.EventTypingUpdate)
	require.Len(t, toBob, 1)
	require.Equal(t, []string{alice.ID}, typingUsers(t, toBob[0]))

	toAlice := c1.of(realtime.EventTypingUpdate)
	require.Len(t, toAlice, 1)
	require.Empty(t, typingUsers(t, toAlice[0]))

	require.NoError(t, f.chat.StopTyping(t.Context(), alice, ch))
	toBob = c2.of(realtime.EventTypingUpdate)
	require.Len(t, toBob, 2)
	require.Empty(t, typingUsers(t, toBob[1]))
}

func TestTyping_RequiresJoin(t *testing.T) {
	f := newFixture(t)
	ch := f.channel(t, alice, domain.ChannelPublic)

	require.ErrorIs(t, f.chat.StartTyping(t.Context(), bob, ch), domain.ErrForbidden)
	require.ErrorIs(t, f.chat.StartTyping(t.Context(), bob, "bad"), domain.ErrValidation)
}

func TestDisconnectWhileTyping(t *testing.T) {
	f := newFixture(t)
	ch := f.channel(t, alice, domain.ChannelPublic)
	_, aliceHd := f.connect(t, alice, ch)
	bobConn, _ := f.connect(t, bob, ch)

	require.NoError(t, f.chat.StartTyping(t.Context(), alice, ch))
	bobConn.reset()

	f.chat.Disconnect(aliceHd)

	require.Empty(t, f.tracker.Typing(ch))
	updates := bobConn.of(realtime.EventTypingUpdate)
	require.Len(t, updates, 1)
	require.Empty(t, typingUsers(t, updates[0]))

	offline := bobConn.of(realtime.EventUserOffline)
	require.Len(t, offline, 1)
	require.Equal(t, alice.ID, offline[0].Payload.(realtime.PresencePayload).UserID)
	require.False(t, f.tracker.Online(alice.ID))
	require.False(t, f.hub.UserInRoom(alice.ID, domain.ChannelRoom(ch)))
}

func TestPresence_OnlineOncePerUser(t *testing.T) {
	f := newFixture(t)
	ch := f.channel(t, alice, domain.ChannelPublic)
	watcher, _ := f.connect(t, bob, ch)
	watcher.reset()

	_, first := f.connect(t, alice, ch)
	_, second := f.connect(t, alice, ch)
	require.Len(t, watcher.of(realtime.EventUserOnline), 1)

	f.chat.Disconnect(first)
	require.Empty(t, watcher.of(realtime.EventUserOffline))
	f.chat.Disconnect(second)
	require.Len(t, watcher.of(realtime.EventUserOffline), 1)
}

func TestJoinChannel_PrivateRefusedSilently(t *testing.T) {
	f := newFixture(t)
	ch := f.channel(t, alice, domain.ChannelPrivate)
	c := &testConn{id: bob}
	hd := f.chat.Connect(c)

	require.False(t, f.chat.JoinChannel(t.Context(), hd, ch))
	require.False(t, f.chat.JoinChannel(t.Context(), hd, uuid.NewString()))
	require.False(t, f.chat.JoinChannel(t.Context(), hd, "garbage"))
	require.Equal(t, []string{domain.UserRoom(bob.ID)}, f.hub.RoomsOf(hd))
}

func TestLeaveChannel(t *testing.T) {
	f := newFixture(t)
	ch := f.channel(t, alice, domain.ChannelPublic)
	watcher, _ := f.connect(t, bob, ch)
	_, hd := f.connect(t, alice, ch)
	require.NoError(t, f.chat.StartTyping(t.Context(), alice, ch))

	f.chat.LeaveChannel(hd, ch)

	require.Empty(t, f.tracker.Typing(ch))
	require.Len(t, watcher.of(realtime.EventUserOffline), 1)

	_, err := f.chat.SendMessage(t.Context(), bob, ch, "after leave", nil)
	require.NoError(t, err)
	require.Equal(t, []string{domain.UserRoom(alice.ID)}, f.hub.RoomsOf(hd))
}

func TestListMessages_Pages(t *testing.T) {
	f := newFixture(t)
	ch := f.channel(t, alice, domain.ChannelPublic)
	var ids []string
	for i := 0; i < 5; i++ {
		m, err := f.chat.SendMessage(t.Context(), alice, ch, "m", nil)
		require.NoError(t, err)
		ids = append(ids, m.ID)
	}

	page, next, err := f.chat.ListMessages(t.Context(), bob, ch, "", 3)
	require.NoError(t, err)
	require.Len(t, page, 3)
	require.Equal(t, ids[4], page[0].ID)
	require.NotEmpty(t, next)

	rest, next, err := f.chat.ListMessages(t.Context(), bob, ch, next, 3)
	require.NoError(t, err)
	require.Len(t, rest, 2)
	require.Equal(t, ids[0], rest[1].ID)
	require.Empty(t, next)

	_, _, err = f.chat.ListMessages(t.Context(), bob, ch, "%%%", 3)
	require.ErrorIs(t, err, domain.ErrValidation)
}

func TestAttachments(t *testing.T) {
	f := newFixture(t)
	ch := f.channel(t, alice, domain.ChannelPublic, bob)
	conn, _ := f.connect(t, carol, ch)
	msg, err := f.chat.SendMessage(t.Context(), alice, ch, "see file", nil)
	require.NoError(t, err)

	in := AttachmentInput{FileName: "plan.pdf", Size: 1024, MimeType: "application/pdf", StoragePath: "docs/plan.pdf"}
	_, err = f.chat.AddAttachment(t.Context(), bob, msg.ID, in)
	require.ErrorIs(t, err, domain.ErrForbidden)
	_, err = f.chat.AddAttachment(t.Context(), alice, msg.ID, AttachmentInput{FileName: "x"})
	require.ErrorIs(t, err, domain.ErrValidation)

	att, err := f.chat.AddAttachment(t.Context(), alice, msg.ID, in)
	require.NoError(t, err)
	require.Equal(t, alice.ID, att.UploadedBy)

	updates := conn.of(realtime.EventMessageUpdated)
	require.Len(t, updates, 1)
	require.Len(t, updates[0].Payload.(domain.Message).Attachments, 1)

	require.ErrorIs(t, f.chat.DeleteAttachment(t.Context(), bob, att.ID), domain.ErrForbidden)
	require.NoError(t, f.chat.DeleteAttachment(t.Context(), alice, att.ID))
	updates = conn.of(realtime.EventMessageUpdated)
	require.Len(t, updates, 2)
	require.Empty(t, updates[1].Payload.(domain.Message).Attachments)
}

func TestShutdown_WaitsForMentions(t *testing.T) {
	f := newFixture(t)
	ch := f.channel(t, alice, domain.ChannelPublic, bob)

	_, err := f.chat.SendMessage(t.Context(), alice, ch, "@bob last one", nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, f.chat.Shutdown(ctx))
	require.Len(t, f.notificationsFor(t, bob.ID), 1)

	_, err = f.chat.SendMessage(t.Context(), alice, ch, "@bob after shutdown", nil)
	require.NoError(t, err)
	f.flush()
	require.Len(t, f.notificationsFor(t, bob.ID), 1)
}

func TestRestAndLiveShareMessages(t *testing.T) {
	f := newFixture(t)
	ch := f.channel(t, alice, domain.ChannelPublic)
	conn, _ := f.connect(t, bob, ch)

	sent, err := f.chat.SendMessage(t.Context(), alice, ch, "same everywhere", nil)
	require.NoError(t, err)

	live := conn.of(realtime.EventMessageNew)[0].Payload.(domain.Message)
	read, err := f.chat.GetMessage(t.Context(), bob, sent.ID)
	require.NoError(t, err)

	require.Equal(t, live.ID, read.ID)
	require.Equal(t, live.Text, read.Text)
	require.Equal(t, live.SenderID, read.SenderID)
	require.True(t, live.CreatedAt.Equal(read.CreatedAt))
}

func TestRemoveMember_RevokesLiveSubscription(t *testing.T) {
	f := newFixture(t)
	ch := f.channel(t, alice, domain.ChannelPrivate, bob)
	aliceConn, _ := f.connect(t, alice, ch)
	bobPhone, phone := f.connect(t, bob, ch)
	bobLaptop, _ := f.connect(t, bob, ch)
	require.NoError(t, f.chat.StartTyping(t.Context(), bob, ch))
	aliceConn.reset()
	bobPhone.reset()
	bobLaptop.reset()

	require.NoError(t, f.channels.RemoveMember(t.Context(), alice, ch, bob.ID))

	require.False(t, f.hub.UserInRoom(bob.ID, domain.ChannelRoom(ch)))
	require.Equal(t, []string{domain.UserRoom(bob.ID)}, f.hub.RoomsOf(phone))
	require.Empty(t, f.tracker.Typing(ch))

	offline := aliceConn.of(realtime.EventUserOffline)
	require.Len(t, offline, 1)
	require.Equal(t, bob.ID, offline[0].Payload.(realtime.PresencePayload).UserID)
	updates := aliceConn.of(realtime.EventTypingUpdate)
	require.Len(t, updates, 1)
	require.Empty(t, typingUsers(t, updates[0]))

	_, err := f.chat.SendMessage(t.Context(), alice, ch, "bob is gone", nil)
	require.NoError(t, err)
	require.Len(t, aliceConn.of(realtime.EventMessageNew), 1)
	require.Empty(t, bobPhone.of(realtime.EventMessageNew))
	require.Empty(t, bobLaptop.of(realtime.EventMessageNew))

	require.ErrorIs(t, f.chat.StartTyping(t.Context(), bob, ch), domain.ErrForbidden)
	require.False(t, f.chat.JoinChannel(t.Context(), phone, ch))
}

func TestRemoveMember_PublicChannelKeepsSubscription(t *testing.T) {
	f := newFixture(t)
	ch := f.channel(t, alice, domain.ChannelPublic, bob)
	bobConn, _ := f.connect(t, bob, ch)

	require.NoError(t, f.channels.RemoveMember(t.Context(), bob, ch, bob.ID))

	require.True(t, f.hub.UserInRoom(bob.ID, domain.ChannelRoom(ch)))
	_, err := f.chat.SendMessage(t.Context(), alice, ch, "still readable", nil)
	require.NoError(t, err)
	require.Len(t, bobConn.of(realtime.EventMessageNew), 1)
}

func TestTyping_RechecksAccess(t *testing.T) {
	f := newFixture(t)
	ch := f.channel(t, alice, domain.ChannelPrivate, bob)
	f.connect(t, bob, ch)

	// членство пропало мимо сервиса: подписка осталась, доступа нет
	removed, err := f.db.Members().Remove(t.Context(), ch, bob.ID)
	require.NoError(t, err)
	require.True(t, removed)

	require.ErrorIs(t, f.chat.StartTyping(t.Context(), bob, ch), domain.ErrForbidden)
	require.ErrorIs(t, f.chat.StopTyping(t.Context(), bob, ch), domain.ErrForbidden)
	require.Empty(t, f.tracker.Typing(ch))
}

func TestRemoveReaction_PrivateChannelHidden(t *testing.T) {
	f := newFixture(t)
	ch := f.channel(t, alice, domain.ChannelPrivate)
	msg, err := f.chat.SendMessage(t.Context(), alice, ch, "secret", nil)
	require.NoError(t, err)

	require.ErrorIs(t, f.chat.RemoveReaction(t.Context(), carol, msg.ID, "👍"), domain.ErrForbidden)
	require.NoError(t, f.chat.RemoveReaction(t.Context(), alice, msg.ID, "👍"))
}

func TestTyping_LastBroadcastIsLatest(t *testing.T) {
	f := newFixture(t)
	ch := f.channel(t, alice, domain.ChannelPublic)
	watcher, _ := f.connect(t, alice, ch)

	typists := make([]domain.Identity, 20)
	for i := range typists {
		typists[i] = domain.Identity{ID: fmt.Sprintf("typist-%02d", i), Name: "T"}
		f.connect(t, typists[i], ch)
	}
	watcher.reset()

	var wg sync.WaitGroup
	errs := make(chan error, len(typists))
	for _, who := range typists {
		wg.Add(1)
		go func(who domain.Identity) {
			defer wg.Done()
			errs <- f.chat.StartTyping(context.Background(), who, ch)
		}(who)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	updates := watcher.of(realtime.EventTypingUpdate)
	require.Len(t, updates, len(typists))
	require.Len(t, typingUsers(t, updates[len(updates)-1]), len(typists))
}
