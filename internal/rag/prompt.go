package rag

import (
	"strings"
)

// contextSeparator joins retrieved chunks inside the system prompt.
const contextSeparator = "\n\n---\n\n"

// noContextSentinel is placed in the prompt when retrieval returns nothing,
// so the model knows the knowledge base had no answer instead of seeing an
// empty block.
const noContextSentinel = "No relevant information found in the knowledge base."

// FallbackAnswer is what the assistant should say when the knowledge base
// cannot answer the question.
const FallbackAnswer = "I don't have information about that. Would you like me to connect you with a human agent?"

// DegradedAnswer is delivered when answer generation itself fails after
// retries, so the customer is never left without a reply.
const DegradedAnswer = "I'm sorry, I'm having trouble answering right now. Please try again in a few minutes, or reply \"agent\" to reach a human."

// buildSystemPrompt grounds the model in the tenant's persona and the
// retrieved context. The model is instructed to answer only from that
// context and to fall back rather than guess.
func buildSystemPrompt(persona string, contexts []string) string {
	contextBlock := noContextSentinel
	if len(contexts) > 0 {
		contextBlock = strings.Join(contexts, contextSeparator)
	}

	var sb strings.Builder
	sb.WriteString(persona)
	sb.WriteString("\n\n")
	sb.WriteString("Answer the customer's question using ONLY the knowledge base context below. ")
	sb.WriteString("If the context does not contain the answer, respond exactly with: ")
	sb.WriteString(FallbackAnswer)
	sb.WriteString("\n\nKnowledge base context:\n")
	sb.WriteString(contextBlock)
	return sb.String()
}
