package domain

// Actor is the authenticated caller of an operation, as resolved by the
// identity layer. An empty Role holds no permissions.
type Actor struct {
	UserID    string   `json:"user_id"`
	UserName  string   `json:"user_name"`
	Role      RoleName `json:"role"`
	IPAddress string   `json:"-"`
	UserAgent string   `json:"-"`
}

// System is the actor recorded for mutations performed by the service itself,
// such as rule evaluation.
var System = Actor{UserID: "system", UserName: "system"}

func (a Actor) Anonymous() bool { return a.UserID == "" }
