package source

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Position is a zero-based line/character location.
type Position struct {
	Line      int `json:"line" msgpack:"line"`
	Character int `json:"character" msgpack:"character"`
}

// Less orders positions by line, then character.
func (p Position) Less(other Position) bool {
	if p.Line != other.Line {
		return p.Line < other.Line
	}
	return p.Character < other.Character
}

func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line+1, p.Character+1)
}

// Range is a half-open [Start, End) span of positions.
type Range struct {
	Start Position `json:"start" msgpack:"start"`
	End   Position `json:"end" msgpack:"end"`
}

// Digest - фиксированный 256 битный хеш исходника
type Digest [32]byte

// Hash returns the sha256 digest of text.
func Hash(text string) Digest {
	return sha256.Sum256([]byte(text))
}

func (d Digest) String() string {
	return hex.EncodeToString(d[:8])
}
