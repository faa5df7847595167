// Package identity generates room identifiers and cosmetic user emoji.
// Both generators are pure draws from a pseudo-random source; uniqueness
// against live state is the caller's concern.
package identity

import "math/rand/v2"

const (
	roomIDLength = 6
	base36       = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
)

// emojis is the fixed palette assigned to users at join time.
var emojis = [...]string{"😀", "😎", "🤖", "🦄", "🐱", "🐶", "🦊", "🐼", "🦁", "🐸"}

// RoomID returns a 6-character uppercase base-36 token.
func RoomID() string {
	b := make([]byte, roomIDLength)
	for i := range b {
		b[i] = base36[rand.IntN(len(base36))]
	}
	return string(b)
}

// Emoji returns one glyph chosen uniformly from the palette. Distinctness
// across members of the same room is not guaranteed.
func Emoji() string {
	return emojis[rand.IntN(len(emojis))]
}
