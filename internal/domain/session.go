package domain

// Identity describes the authenticated user.
type Identity struct {
	UserID    UserID `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Phone     string `json:"phone,omitempty"`
}

// Session is either absent (Identity == nil) or present.
type Session struct {
	Identity *Identity
}

// AbsentSession is the unauthenticated session value.
var AbsentSession = Session{}

// PresentSession builds a session for id.
func PresentSession(id Identity) Session {
	return Session{Identity: &id}
}

func (s Session) Present() bool {
	return s.Identity != nil
}

// AuthEvent names an identity provider state change.
type AuthEvent string

const (
	AuthSignedIn       AuthEvent = "SIGNED_IN"
	AuthSignedOut      AuthEvent = "SIGNED_OUT"
	AuthTokenRefreshed AuthEvent = "TOKEN_REFRESHED"
)
