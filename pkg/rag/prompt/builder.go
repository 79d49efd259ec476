package prompt

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"bonfire-agent/pkg/llm"
	"bonfire-agent/pkg/rag"
)

// NoResults is what the assistant turn carries when the store found nothing.
const NoResults = "No results found"

// SubjectBuilder builds the three-role prompt of a subject-scoped assistant.
type SubjectBuilder struct {
	subject string
}

func NewSubjectBuilder(subject string) *SubjectBuilder {
	return &SubjectBuilder{subject: subject}
}

// Build returns the system instruction, the rendered context as an assistant
// turn and the query as the user turn, in that order.
func (b *SubjectBuilder) Build(query string, results rag.RetrievalResult) []llm.Message {
	return []llm.Message{
		{Role: llm.RoleSystem, Content: b.systemInstruction()},
		{Role: llm.RoleAssistant, Content: RenderContext(results)},
		{Role: llm.RoleUser, Content: query},
	}
}

func (b *SubjectBuilder) systemInstruction() string {
	var prompt strings.Builder
	prompt.WriteString(fmt.Sprintf("You are a helpful assistant who only answers questions about %s.\n", b.subject))
	prompt.WriteString("You should use the search results to answer the user's question.\n")
	prompt.WriteString("If the question is not about this subject, say that you can only help with it.")
	return prompt.String()
}

// RenderContext writes one line per record: JSON strings as their value,
// anything else as compact JSON.
func RenderContext(results rag.RetrievalResult) string {
	if len(results) == 0 {
		return NoResults
	}

	lines := make([]string, 0, len(results))
	for _, record := range results {
		var s string
		if err := json.Unmarshal(record, &s); err == nil {
			lines = append(lines, s)
			continue
		}

		var compact bytes.Buffer
		if err := json.Compact(&compact, record); err != nil {
			lines = append(lines, string(record))
			continue
		}
		lines = append(lines, compact.String())
	}
	return strings.Join(lines, "\n")
}
