package authsession

// AuthState is the session snapshot owned by a Provider
type AuthState struct {
	User      *User    `json:"user"`
	Session   *Session `json:"session"`
	IsLoading bool     `json:"is_loading"`
	IsAdmin   bool     `json:"is_admin"`
}

// Loading is an alias of IsLoading
func (s AuthState) Loading() bool {
	return s.IsLoading
}

// SignedIn reports whether the state carries a session
func (s AuthState) SignedIn() bool {
	return s.Session != nil
}

// UserID returns the current user id or an empty string
func (s AuthState) UserID() string {
	if s.User == nil {
		return ""
	}
	return s.User.ID
}

// initialState is the state before the first resolution
func initialState() AuthState {
	return AuthState{IsLoading: true}
}
