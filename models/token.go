package models

// ChangeToken is the opaque, totally-ordered cursor over a zone's change
// feed. The empty token means "from the beginning" and forces a full resync.
//
// A token must only be committed to durable storage after the changes it
// represents have been fully applied locally; committing earlier would make
// a crash mid-apply skip records on the next fetch.
type ChangeToken string

// IsZero reports whether the token is the null cursor.
func (t ChangeToken) IsZero() bool { return t == "" }
