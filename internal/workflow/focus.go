package workflow

// FocusToken identifies one visit of a screen. Results fetched under a
// token are applied only while that visit is still current.
type FocusToken struct {
	screen string
	gen    uint64
}

// Screen returns the screen the token was issued for.
func (t FocusToken) Screen() string { return t.screen }

// Focus starts a new visit of screen, invalidating earlier tokens for it.
func (m *Machine) Focus(screen string) FocusToken {
	m.focusMu.Lock()
	defer m.focusMu.Unlock()
	m.focus[screen]++
	return FocusToken{screen: screen, gen: m.focus[screen]}
}

// Blur ends the current visit of screen.
func (m *Machine) Blur(screen string) {
	m.focusMu.Lock()
	defer m.focusMu.Unlock()
	m.focus[screen]++
}

// Current reports whether tok still belongs to the active visit.
func (m *Machine) Current(tok FocusToken) bool {
	m.focusMu.Lock()
	defer m.focusMu.Unlock()
	return tok.gen != 0 && m.focus[tok.screen] == tok.gen
}

// Apply runs fn if tok is still current and reports whether it ran.
// Stale results are dropped.
func (m *Machine) Apply(tok FocusToken, fn func()) bool {
	if !m.Current(tok) {
		return false
	}
	fn()
	return true
}
