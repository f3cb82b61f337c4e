package live

// registry tracks a connection's live sessions and tokens. Only the owning
// goroutine touches it.
type registry struct {
	sessions map[*Session]struct{}
	tokens   map[*Token]struct{}
}

func newRegistry() *registry {
	return &registry{
		sessions: map[*Session]struct{}{},
		tokens:   map[*Token]struct{}{},
	}
}

func (r *registry) addSession(s *Session) {
	r.sessions[s] = struct{}{}
}

func (r *registry) removeSession(s *Session) {
	delete(r.sessions, s)
}

// addToken registers t and drops tokens invalidated from other goroutines
// since the last call.
func (r *registry) addToken(t *Token) {
	for other := range r.tokens {
		if !other.IsValid() {
			delete(r.tokens, other)
		}
	}
	r.tokens[t] = struct{}{}
}

// detachSessions converts every live session to a snapshot and forgets it.
func (r *registry) detachSessions() int {
	n := 0
	for s := range r.sessions {
		s.detach()
		n++
	}
	clear(r.sessions)
	return n
}

// invalidateTokens invalidates and forgets every token. It returns how many
// were still active.
func (r *registry) invalidateTokens() int {
	n := 0
	for t := range r.tokens {
		if t.Invalidate() {
			n++
		}
	}
	clear(r.tokens)
	return n
}

func (r *registry) len() (sessions, tokens int) {
	return len(r.sessions), len(r.tokens)
}
