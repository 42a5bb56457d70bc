package session

// Session is the persisted identity of the signed-in user. It never carries the
// account secret.
type Session struct {
	SchemaVersion uint8

	UserID string
	Name   string
	Email  string
	Role   string

	CreatedAt int64
}

// Clone returns a copy of s.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	out := *s
	return &out
}
