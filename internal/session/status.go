package session

type Status string

const (
	StatusAnonymous      Status = "anonymous"
	StatusAuthenticating Status = "authenticating"
	StatusAuthenticated  Status = "authenticated"
	// StatusInvalid is transient: the backend rejected the token and the session is being cleared.
	StatusInvalid Status = "invalid"
)

func (s Status) String() string {
	return string(s)
}
