// Package chatplatform wraps the external chat service of record.
package chatplatform

import (
	"context"
	"fmt"
	"regexp"
	"sort"
)

// ChannelTypeMessaging is the channel type used for every channel this
// service creates.
const ChannelTypeMessaging = "messaging"

// maxIDLength is the longest user or channel id the platform accepts.
const maxIDLength = 64

var idPattern = regexp.MustCompile(`^[a-zA-Z0-9@_!-]+$`)

// User is an identity upserted on the platform.
type User struct {
	ID    string
	Name  string
	Image string
}

// Channel is the platform view of a channel after it is ensured.
type Channel struct {
	Type    string
	ID      string
	Members []string
}

// SentMessage identifies a message persisted on the platform.
type SentMessage struct {
	ID string
}

// Platform is the narrow contract the services depend on.
type Platform interface {
	// UpsertUsers creates or updates identities. Safe to repeat.
	UpsertUsers(ctx context.Context, users ...User) error

	// CreateToken issues a client access token for userID.
	CreateToken(userID string) (string, error)

	// EnsureChannel fetches or creates the channel and makes sure every
	// id in members belongs to it. Existing extra members are kept.
	EnsureChannel(ctx context.Context, channelType, channelID, creatorID string, members []string) (*Channel, error)

	// SendMessage posts text into the channel authored by authorID.
	SendMessage(ctx context.Context, channelType, channelID, authorID, text string) (*SentMessage, error)
}

// ValidateID checks a user or channel id against the platform's rules.
func ValidateID(kind, id string) error {
	if id == "" {
		return fmt.Errorf("%s is required", kind)
	}
	if len(id) > maxIDLength {
		return fmt.Errorf("%s exceeds %d characters", kind, maxIDLength)
	}
	if !idPattern.MatchString(id) {
		return fmt.Errorf("%s may only contain letters, digits and @ _ ! -", kind)
	}
	return nil
}

// PairChannelName returns the deterministic channel id for two users: the ids
// sorted lexicographically and joined with an underscore.
func PairChannelName(userA, userB string) (first, second, name string) {
	ids := []string{userA, userB}
	sort.Strings(ids)
	return ids[0], ids[1], ids[0] + "_" + ids[1]
}

// MissingMembers returns the ids in want that are absent from have,
// preserving the order of want.
func MissingMembers(have, want []string) []string {
	present := make(map[string]struct{}, len(have))
	for _, id := range have {
		present[id] = struct{}{}
	}

	var missing []string
	for _, id := range want {
		if _, ok := present[id]; ok {
			continue
		}
		present[id] = struct{}{}
		missing = append(missing, id)
	}
	return missing
}
