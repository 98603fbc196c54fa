package domain

import "strings"

const (
	channelRoomPrefix = "channel:"
	userRoomPrefix    = "user:"
)

func ChannelRoom(channelID string) string { return channelRoomPrefix + channelID }

func UserRoom(userID string) string { return userRoomPrefix + userID }

// ChannelFromRoom returns the channel id of a channel room.
func ChannelFromRoom(room string) (string, bool) {
	if !strings.HasPrefix(room, channelRoomPrefix) {
		return "", false
	}
	return strings.TrimPrefix(room, channelRoomPrefix), true
}
