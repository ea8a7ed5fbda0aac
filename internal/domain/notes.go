package domain

// Note is a short free-text note owned by a user.
type Note struct {
	ID        NoteID
	UserID    UserID
	Content   string
	CreatedAt Timestamp
}
