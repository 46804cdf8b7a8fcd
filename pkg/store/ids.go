package store

import (
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ID is a record identifier that may have been persisted either as a plain
// string or as a 12-byte ObjectID.
type ID struct {
	raw    string
	oid    primitive.ObjectID
	hasOID bool
}

// ParseID keeps the raw value and, when it is 24 hex characters, the
// ObjectID it encodes.
func ParseID(raw string) ID {
	raw = strings.TrimSpace(raw)
	id := ID{raw: raw}
	if oid, err := primitive.ObjectIDFromHex(raw); err == nil {
		id.oid = oid
		id.hasOID = true
	}
	return id
}

func (id ID) String() string { return id.raw }

func (id ID) IsZero() bool { return id.raw == "" }

func (id ID) ObjectID() (primitive.ObjectID, bool) {
	return id.oid, id.hasOID
}

// Candidates lists every stored value this id may match, for $in filters.
func (id ID) Candidates() []any {
	out := []any{id.raw}
	if id.hasOID {
		out = append(out, id.oid)
	}
	return out
}

// Strings lists the textual forms: the raw value and the lowercase hex form
// of the ObjectID when it differs.
func (id ID) Strings() []string {
	out := []string{id.raw}
	if id.hasOID {
		if hex := id.oid.Hex(); hex != id.raw {
			out = append(out, hex)
		}
	}
	return out
}

// Matches reports whether a stored textual id refers to the same record.
func (id ID) Matches(stored string) bool {
	if id.raw == "" {
		return false
	}
	for _, s := range id.Strings() {
		if s == stored {
			return true
		}
	}
	return false
}

// candidatesOf flattens Candidates for a list of raw ids, skipping blanks.
func candidatesOf(raw []string) []any {
	out := make([]any, 0, len(raw)*2)
	for _, r := range raw {
		id := ParseID(r)
		if id.IsZero() {
			continue
		}
		out = append(out, id.Candidates()...)
	}
	return out
}

func stringsOf(raw []string) []string {
	out := make([]string, 0, len(raw)*2)
	for _, r := range raw {
		id := ParseID(r)
		if id.IsZero() {
			continue
		}
		out = append(out, id.Strings()...)
	}
	return out
}
