package account

import "crypto/subtle"

// Registry resolves users by name. The roster is fixed at startup, so
// lookups need no lock; per-user state guards itself.
type Registry struct {
	users  []*User
	byName map[string]*User
}

// NewRegistry builds a registry from the seeded roster.
func NewRegistry(users []*User) *Registry {
	r := &Registry{
		users:  users,
		byName: make(map[string]*User, len(users)),
	}
	for _, u := range users {
		r.byName[u.name] = u
	}
	return r
}

// Find resolves a user by name.
func (r *Registry) Find(name string) (*User, error) {
	u, ok := r.byName[name]
	if !ok {
		return nil, ErrUserNotFound
	}
	return u, nil
}

// All returns the roster in seed order.
func (r *Registry) All() []*User {
	return r.users
}

// Authenticate reports whether the credentials match a roster entry.
func (r *Registry) Authenticate(name, passwd string) bool {
	u, ok := r.byName[name]
	if !ok {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(u.passwd), []byte(passwd)) == 1
}
