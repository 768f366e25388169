package ws

import "regexp"

// channelNameRegex matches channel names such as "room:AB12"
var channelNameRegex = regexp.MustCompile(`^[A-Za-z0-9:_\-.]{1,128}$`)

// presenceKeyRegex matches presence keys (device ids are UUIDs)
var presenceKeyRegex = regexp.MustCompile(`^[A-Za-z0-9_\-]{1,128}$`)

// IsValidChannelName validates a channel name from the subscribe request
func IsValidChannelName(name string) bool {
	return channelNameRegex.MatchString(name)
}

// IsValidPresenceKey validates a presence key; empty keys are allowed and
// replaced by the connection ref
func IsValidPresenceKey(key string) bool {
	return key == "" || presenceKeyRegex.MatchString(key)
}
