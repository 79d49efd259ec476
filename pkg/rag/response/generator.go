package response

import (
	"context"

	"bonfire-agent/pkg/llm"
	"bonfire-agent/pkg/rag"
	"bonfire-agent/pkg/rag/prompt"
)

// Generator answers a query from retrieved context with one completion call.
type Generator struct {
	llmProvider llm.LLMProvider
	maxTokens   int
}

func NewGenerator(llmProvider llm.LLMProvider, maxTokens int) *Generator {
	return &Generator{
		llmProvider: llmProvider,
		maxTokens:   maxTokens,
	}
}

// Generate returns the completion text verbatim. Every error it returns is a
// *rag.StageError for the generation stage, including a completion without
// content.
func (g *Generator) Generate(ctx context.Context, query string, results rag.RetrievalResult, subject string) (string, error) {
	messages := prompt.NewSubjectBuilder(subject).Build(query, results)

	var opts []llm.Option
	if g.maxTokens > 0 {
		opts = append(opts, llm.WithMaxTokens(g.maxTokens))
	}

	answer, err := g.llmProvider.Chat(ctx, messages, opts...)
	if err != nil {
		return "", rag.GenerationFailure(err)
	}
	return answer, nil
}
