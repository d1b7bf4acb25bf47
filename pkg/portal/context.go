package portal

import "slices"

// Principal identifies the caller.
type Principal struct {
	Name          string   `json:"name"`
	Roles         []string `json:"roles,omitempty"`
	Authenticated bool     `json:"authenticated"`
}

// IsInRole reports whether the principal carries role.
func (p Principal) IsInRole(role string) bool {
	return slices.Contains(p.Roles, role)
}

// Context is the explicit context passed with every dispatch and handed to
// handlers. Client values travel to the handler only; Global values changed by
// the handler flow back to the caller.
type Context struct {
	Principal Principal         `json:"principal"`
	Client    map[string]string `json:"client,omitempty"`
	Global    map[string]string `json:"global,omitempty"`
}

// Clone returns a copy sharing no maps or slices with c.
func (c Context) Clone() Context {
	out := Context{
		Principal: Principal{
			Name:          c.Principal.Name,
			Roles:         slices.Clone(c.Principal.Roles),
			Authenticated: c.Principal.Authenticated,
		},
		Client: cloneValues(c.Client),
		Global: cloneValues(c.Global),
	}
	return out
}

// SetGlobal stores a global value that is returned to the caller.
func (c *Context) SetGlobal(key, value string) {
	if c.Global == nil {
		c.Global = make(map[string]string)
	}
	c.Global[key] = value
}

// ClientValue returns a client context value.
func (c Context) ClientValue(key string) (string, bool) {
	v, ok := c.Client[key]
	return v, ok
}

func cloneValues(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
