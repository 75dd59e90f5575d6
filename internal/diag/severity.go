package diag

// Severity defines the importance of a diagnostic. Values follow the editor
// protocol numbering.
type Severity uint8

const (
	SevError Severity = iota + 1
	SevWarning
	SevInformation
	SevHint
)

func (s Severity) String() string {
	switch s {
	case SevError:
		return "ERROR"
	case SevWarning:
		return "WARNING"
	case SevInformation:
		return "INFO"
	case SevHint:
		return "HINT"
	}
	return "UNKNOWN"
}

// AtLeast reports whether s is as severe as other. Lower values are more severe.
func (s Severity) AtLeast(other Severity) bool {
	return s != 0 && s <= other
}

// Tag marks extra presentation hints on a record.
type Tag uint8

const (
	TagUnnecessary Tag = iota + 1
	TagDeprecated
)

func (t Tag) String() string {
	switch t {
	case TagUnnecessary:
		return "unnecessary"
	case TagDeprecated:
		return "deprecated"
	}
	return "unknown"
}
