package domain

type Access int

const (
	AccessPublic Access = iota
	// AccessGuestOnly routes (login, password reset) are for signed-out visitors.
	AccessGuestOnly
	AccessAuthRequired
)

func (a Access) String() string {
	switch a {
	case AccessGuestOnly:
		return "guest-only"
	case AccessAuthRequired:
		return "auth-required"
	default:
		return "public"
	}
}

type Route struct {
	Path   string `json:"path"`
	Access Access `json:"access"`
}

// Decision is the outcome of a navigation check. Redirect is set only when Admit is false.
type Decision struct {
	Admit    bool   `json:"admit"`
	Redirect string `json:"redirect,omitempty"`
}
