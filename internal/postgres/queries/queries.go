package queries

// channels
const (
	QueryCreateChannel = `
		INSERT INTO channels (name, kind, context_type, context_id, created_by)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, archived, created_at;
	`
	QueryGetChannel = `
		SELECT id, name, kind, context_type, context_id, archived, created_by, created_at
		FROM channels
		WHERE id = $1;
	`
	QueryFindChannelByContext = `
		SELECT id, name, kind, context_type, context_id, archived, created_by, created_at
		FROM channels
		WHERE context_type = $1 AND context_id = $2 AND NOT archived;
	`
	QueryListChannelsForUser = `
		SELECT c.id, c.name, c.kind, c.context_type, c.context_id, c.archived, c.created_by, c.created_at
		FROM channels c
		WHERE NOT c.archived
		  AND (c.kind = 'public'
		       OR EXISTS (SELECT 1 FROM channel_members m WHERE m.channel_id = c.id AND m.user_id = $1))
		ORDER BY c.created_at DESC, c.id DESC;
	`
	QueryArchiveChannel = `UPDATE channels SET archived = TRUE WHERE id = $1;`
)

// members
const (
	QueryAddMember = `
		INSERT INTO channel_members (channel_id, user_id, display_name, avatar_url, role)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (channel_id, user_id) DO NOTHING
		RETURNING joined_at;
	`
	QueryGetMember = `
		SELECT channel_id, user_id, display_name, avatar_url, role, joined_at, last_read_at
		FROM channel_members
		WHERE channel_id = $1 AND user_id = $2;
	`
	QueryListMembers = `
		SELECT channel_id, user_id, display_name, avatar_url, role, joined_at, last_read_at
		FROM channel_members
		WHERE channel_id = $1
		ORDER BY joined_at, user_id;
	`
	QueryRemoveMember = `DELETE FROM channel_members WHERE channel_id = $1 AND user_id = $2;`
	QueryMarkRead     = `
		UPDATE channel_members
		SET last_read_at = $3
		WHERE channel_id = $1 AND user_id = $2;
	`
)

// messages
const (
	QueryCreateMessage = `
		INSERT INTO messages (channel_id, parent_id, sender_id, sender_name, sender_avatar, text, mentions)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at;
	`
	QueryGetMessage = `
		SELECT id, channel_id, parent_id, sender_id, sender_name, sender_avatar, text, mentions,
		       created_at, edited_at, deleted
		FROM messages
		WHERE id = $1;
	`
	// (created_at, id) DESC, курсор — последняя строка предыдущей страницы
	QueryListMessages = `
		SELECT id, channel_id, parent_id, sender_id, sender_name, sender_avatar, text, mentions,
		       created_at, edited_at, deleted
		FROM messages
		WHERE channel_id = $1
		  AND (
		    $2::timestamptz IS NULL
		    OR created_at < $2
		    OR (created_at = $2 AND id < $3)
		  )
		ORDER BY created_at DESC, id DESC
		LIMIT $4;
	`
	QueryUpdateMessageText = `
		UPDATE messages
		SET text = $2, mentions = $3, edited_at = $4
		WHERE id = $1 AND NOT deleted;
	`
	QuerySoftDeleteMessage = `
		UPDATE messages
		SET deleted = TRUE, text = $2, mentions = '{}'
		WHERE id = $1 AND NOT deleted;
	`
)

// reactions
const (
	QueryAddReaction = `
		INSERT INTO message_reactions (message_id, emoji, user_id, user_name)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (message_id, emoji, user_id) DO NOTHING;
	`
	QueryRemoveReaction = `
		DELETE FROM message_reactions
		WHERE message_id = $1 AND emoji = $2 AND user_id = $3;
	`
	QueryListReactionsForEmoji = `
		SELECT message_id, emoji, user_id, user_name, created_at
		FROM message_reactions
		WHERE message_id = $1 AND emoji = $2
		ORDER BY created_at, user_id;
	`
	QueryListReactions = `
		SELECT message_id, emoji, user_id, user_name, created_at
		FROM message_reactions
		WHERE message_id = ANY($1)
		ORDER BY created_at, user_id;
	`
)

// attachments
const (
	QueryCreateAttachment = `
		INSERT INTO message_attachments (message_id, file_name, size, mime_type, storage_path, uploaded_by)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at;
	`
	QueryGetAttachment = `
		SELECT id, message_id, file_name, size, mime_type, storage_path, uploaded_by, created_at
		FROM message_attachments
		WHERE id = $1;
	`
	QueryListAttachments = `
		SELECT id, message_id, file_name, size, mime_type, storage_path, uploaded_by, created_at
		FROM message_attachments
		WHERE message_id = ANY($1)
		ORDER BY created_at, id;
	`
	QueryDeleteAttachment = `DELETE FROM message_attachments WHERE id = $1;`
)

// notifications
const (
	QueryCreateNotification = `
		INSERT INTO notifications (user_id, type, channel_id, message_id, actor_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, read, created_at;
	`
	QueryListNotifications = `
		SELECT id, user_id, type, channel_id, message_id, actor_id, read, created_at
		FROM notifications
		WHERE user_id = $1 AND ($2 = FALSE OR NOT read)
		ORDER BY created_at DESC, id DESC
		LIMIT $3;
	`
	QueryMarkNotificationRead = `
		UPDATE notifications
		SET read = TRUE
		WHERE id = $1 AND user_id = $2;
	`
)

// users
const (
	QueryGetContact = `
		SELECT id, display_name, email
		FROM users
		WHERE id = $1;
	`
)
