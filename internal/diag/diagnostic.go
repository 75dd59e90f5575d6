package diag

import (
	"fmt"

	"astrols/internal/source"
)

// Record is one diagnostic as the caller sees it, positioned in the text the
// caller renders. Records are immutable once emitted.
type Record struct {
	Path     string       `json:"path,omitempty" msgpack:"path,omitempty"`
	Range    source.Range `json:"range" msgpack:"range"`
	Severity Severity     `json:"severity" msgpack:"severity"`
	Source   string       `json:"source" msgpack:"source"`
	Message  string       `json:"message" msgpack:"message"`
	Code     Code         `json:"code" msgpack:"code"`
	Tags     []Tag        `json:"tags,omitempty" msgpack:"tags,omitempty"`
}

// HasTag reports whether tag is set on the record.
func (r Record) HasTag(tag Tag) bool {
	for _, t := range r.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

func (r Record) String() string {
	return fmt.Sprintf("%s:%s: %s %s: %s", r.Path, r.Range.Start, r.Severity, r.Code.ID(), r.Message)
}
