package llm

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// Generate produces a conversational answer for a user message, keeping a
// per-user chat history so follow-up questions have context. When faq is
// non-nil its content is injected as grounding material for this turn only.
func (s *Service) Generate(ctx context.Context, userID, message string, faq *FAQContext) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	turn := message
	if faq != nil {
		turn = fmt.Sprintf(
			"%s\n\n--- Contexto de la base de conocimiento (solo para fundamentar tu respuesta a esta pregunta) ---\nPregunta: %s\nRespuesta: %s\nCategoría: %s\n--- Fin del contexto ---",
			message, faq.Question, faq.Answer, faq.Category,
		)
	}

	s.mu.Lock()
	history := append([]*genai.Content(nil), s.sessions[userID]...)
	s.mu.Unlock()

	contents := append(history, genai.NewContentFromText(turn, genai.RoleUser))

	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemPrompt, genai.RoleUser),
	}
	resp, err := s.client.Models.GenerateContent(ctx, s.model, contents, cfg)
	if err != nil {
		return "", fmt.Errorf("llm: generate: %w", err)
	}

	answer := responseText(resp)
	if answer == "" {
		return "", fmt.Errorf("llm: generate: empty response")
	}

	// Record the turn. The raw user message is stored, not the augmented
	// one, so stale FAQ context never leaks into later turns.
	s.mu.Lock()
	s.sessions[userID] = append(s.sessions[userID],
		genai.NewContentFromText(message, genai.RoleUser),
		genai.NewContentFromText(answer, genai.RoleModel),
	)
	if n := len(s.sessions[userID]); n > maxHistoryTurns {
		s.sessions[userID] = s.sessions[userID][n-maxHistoryTurns:]
	}
	s.mu.Unlock()

	return answer, nil
}

// Reset clears the chat history for a user. Returns true if there was
// history to clear.
func (s *Service) Reset(userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[userID]; !ok {
		return false
	}
	delete(s.sessions, userID)
	return true
}
