// Package matchid generates sortable identifiers for matches: a 48-bit
// millisecond timestamp followed by random bits, laid out as a UUIDv7 and
// written in lowercase Crockford base32.
package matchid

import (
	"crypto/rand"
	"encoding/base32"
	"fmt"
	"strings"

	"github.com/coder/quartz"
)

const alphabet = "0123456789abcdefghjkmnpqrstvwxyz"

var encoding = base32.NewEncoding(alphabet).WithPadding(base32.NoPadding)

// Length of every id.
const Length = 26

// RandSource supplies the random bits. Tests inject a deterministic one.
type RandSource interface {
	IntN(n int) int
}

type Generator struct {
	clock quartz.Clock
	rand  RandSource
}

// New returns a generator. A nil source uses crypto/rand.
func New(clock quartz.Clock, src RandSource) *Generator {
	return &Generator{clock: clock, rand: src}
}

// Next returns a new id. Ids from the same generator sort by creation time at
// millisecond resolution.
func (g *Generator) Next() string {
	var id [16]byte
	ms := g.clock.Now().UnixMilli()
	for i := 0; i < 6; i++ {
		id[i] = byte(ms >> (40 - 8*i))
	}
	if g.rand != nil {
		for i := 6; i < len(id); i++ {
			id[i] = byte(g.rand.IntN(256))
		}
	} else if _, err := rand.Read(id[6:]); err != nil {
		panic("matchid: " + err.Error())
	}
	id[6] = id[6]&0x0f | 0x70 // version 7
	id[8] = id[8]&0x3f | 0x80 // variant 10
	return encoding.EncodeToString(id[:])
}

// Validate checks id has the shape produced by Next.
func Validate(id string) error {
	if len(id) != Length {
		return fmt.Errorf("match id must be %d characters, got %d", Length, len(id))
	}
	for i, r := range id {
		if !strings.ContainsRune(alphabet, r) {
			return fmt.Errorf("invalid character %q at position %d", r, i)
		}
	}
	return nil
}
