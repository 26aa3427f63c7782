// context.go builds the ordered message sequence sent to the completion
// backend: the configured system instruction first, the bounded history, the
// new user message last.
package session

// BuildPrompt assembles the completion request messages for one exchange.
// The system instruction is prepended at request time only, so it survives
// any number of history evictions. The new user message is NOT appended to
// the history here; the caller records both sides of the exchange only after
// the completion succeeded.
func (st *Store) BuildPrompt(s *UserSession, userMessage string) []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()

	prompt := make([]Turn, 0, len(s.history)+2)
	prompt = append(prompt, Turn{Role: RoleSystem, Content: st.cfg.SystemPrompt})
	prompt = append(prompt, s.history...)
	prompt = append(prompt, Turn{Role: RoleUser, Content: userMessage})
	return prompt
}
