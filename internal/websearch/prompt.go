package websearch

import (
	"strings"
	"time"

	"websearch-agent/internal/domain"
)

const dateTimeLayout = "2006-01-02 15:04:05"

const rewriterSystemPrompt = "You are a helpful assistant that rephrases the user's question to be a standalone question optimized for websearch. " +
	"Use the earlier conversation only to resolve references such as pronouns or omitted subjects. " +
	"Set require_enhancement to true when the question could not be searched as written, otherwise return it unchanged with require_enhancement false."

const answerSystemPromptTemplate = "You are a web research assistant. Answer the user's questions using the numbered search results you are given. " +
	"Cite the results you rely on inline with their number in square brackets, for example [2]. " +
	"Never invent a citation number. If the results do not contain the answer, say that you could not find it.\n\n" +
	"Current date and time: {current_date_and_time}"

const groundedPromptTemplate = "Use the following search results to answer the question.\n\n" +
	"Search results:\n{context}\n" +
	"Question: {question}\n\n" +
	"Answer:"

// CombineContent renders "<label>. <content>\n\n" for every citation in
// ascending label order.
func CombineContent(citations CitationMap) string {
	var b strings.Builder
	for _, c := range citations.entries {
		b.WriteString(c.Label)
		b.WriteString(". ")
		b.WriteString(strings.TrimSpace(*c.Result.Content))
		b.WriteString("\n\n")
	}
	return b.String()
}

// RenderGroundedPrompt substitutes the combined context and the question into
// the grounded answer template.
func RenderGroundedPrompt(combinedContent, question string) string {
	return strings.NewReplacer(
		"{context}", combinedContent,
		"{question}", question,
	).Replace(groundedPromptTemplate)
}

func answerSystemPrompt(now time.Time) string {
	return strings.Replace(answerSystemPromptTemplate, "{current_date_and_time}", now.Format(dateTimeLayout), 1)
}

// BuildGroundedConversation assembles the answer conversation: a system turn
// stamped with now, every prior turn except the most recent one (the raw
// question), and the grounded prompt as the final user turn. The output
// depends only on its arguments.
func BuildGroundedConversation(citations CitationMap, question string, messages []domain.Message, now time.Time) []domain.ChatMessage {
	var prior []domain.Message
	if len(messages) > 1 {
		prior = messages[:len(messages)-1]
	}

	out := make([]domain.ChatMessage, 0, len(prior)+2)
	out = append(out, domain.ChatMessage{Role: domain.RoleSystem, Content: answerSystemPrompt(now)})
	out = append(out, toChatMessages(prior)...)
	out = append(out, domain.ChatMessage{
		Role:    domain.RoleUser,
		Content: RenderGroundedPrompt(CombineContent(citations), question),
	})
	return out
}

func toChatMessages(messages []domain.Message) []domain.ChatMessage {
	out := make([]domain.ChatMessage, 0, len(messages))
	for _, m := range messages {
		out = append(out, domain.ChatMessage{Role: m.Role, Content: m.Content})
	}
	return out
}
