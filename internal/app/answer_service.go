package app

import (
	"context"
	"log/slog"
	"strings"

	"judgment-rag/internal/ai"
)

const (
	NotFoundAnswer = "No relevant information found in the provided documents to answer this specific question."
	FallbackAnswer = "An error occurred while generating the answer. Please try again later."
)

const answerPrompt = `You are a legal research assistant specializing in case law.
Answer the user's question based ONLY on the legal context provided below.

Instructions:
1. Structure the answer with clear headings and bullet points.
2. Do not make up facts. If the answer is not present in the context, state that it was not found in the documents.
3. Keep a professional legal tone.
4. Cite the page number or paragraph when the context provides one.

LEGAL CONTEXT:
{{context}}

USER QUESTION:
{{question}}

YOUR STRUCTURED ANSWER:`

// AnswerSynthesizer writes an answer grounded in retrieved chunks. It never
// returns an error: failures degrade to FallbackAnswer.
type AnswerSynthesizer struct {
	completer ai.Completer
	logger    *slog.Logger
}

func NewAnswerSynthesizer(completer ai.Completer, logger *slog.Logger) *AnswerSynthesizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &AnswerSynthesizer{
		completer: completer,
		logger:    logger.With("component", "answer_synthesizer"),
	}
}

func (s *AnswerSynthesizer) Synthesize(ctx context.Context, question string, chunks []string) string {
	if len(chunks) == 0 {
		return NotFoundAnswer
	}

	prompt := strings.NewReplacer(
		"{{context}}", strings.Join(chunks, "\n\n"),
		"{{question}}", question,
	).Replace(answerPrompt)

	answer, err := s.completer.Complete(ctx, prompt)
	if err != nil {
		s.logger.Error("answer generation failed", "error", err)
		return FallbackAnswer
	}
	answer = strings.TrimSpace(answer)
	if answer == "" {
		s.logger.Warn("completion service returned an empty answer")
		return FallbackAnswer
	}
	return answer
}
