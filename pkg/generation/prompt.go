package generation

import "strings"

// DefaultPromptTemplate "stuffs" every context chunk into one prompt.
// {context} and {question} are replaced by BuildPrompt.
const DefaultPromptTemplate = `Use the following pieces of context to answer the question at the end. If you don't know the answer, just say that you don't know, don't try to make up an answer.

{context}

Question: {question}
Helpful Answer:`

// BuildPrompt renders template with the chunks joined by blank lines.
// An empty template uses DefaultPromptTemplate.
func BuildPrompt(template, question string, contextChunks []string) string {
	if template == "" {
		template = DefaultPromptTemplate
	}

	r := strings.NewReplacer(
		"{context}", strings.Join(contextChunks, "\n\n"),
		"{question}", question,
	)
	return r.Replace(template)
}
