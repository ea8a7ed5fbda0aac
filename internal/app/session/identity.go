package session

import (
	"strings"

	"github.com/google/uuid"

	"github.com/PabloGalante/nota-agent/internal/domain"
)

// LocalIdentity derives a stable identity from an email address, so the
// same address always maps to the same user id.
func LocalIdentity(email string) domain.Identity {
	email = strings.ToLower(strings.TrimSpace(email))
	id := uuid.NewSHA1(uuid.NameSpaceURL, []byte("mailto:"+email))
	return domain.Identity{UserID: domain.UserID(id.String()), Email: email}
}
