package auth

type contextKey string

// SessionContextKey carries the *store.SessionRecord of the
// authenticated investigator through the request context.
const SessionContextKey contextKey = "truthlink.session"
