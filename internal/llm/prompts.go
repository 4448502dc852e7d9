package llm

import (
	"fmt"
	"strings"

	"askmydocs-backend/internal/shared/util"
)

const (
	// MaxPromptChars bounds the document text placed in a prompt.
	MaxPromptChars = 200_000
	// MaxAskDocs bounds the number of documents in a grounded question.
	MaxAskDocs = 10

	SummarizeMaxTokens = 400
	AskMaxTokens       = 500
	DefaultTemperature = float32(0.2)
)

// Doc is a named text passed to AskPrompt.
type Doc struct {
	Name string `json:"name"`
	Text string `json:"text"`
}

// SummarizePrompt builds the bullet-summary prompt for one document.
func SummarizePrompt(name, text string) string {
	title := ""
	if name != "" {
		title = ` titled "` + name + `"`
	}
	return "Summarize the following document" + title + " in 5–7 concise bullets.\n" +
		"Focus on key facts, outcomes, and next steps. Plain text only.\n\n" +
		util.Truncate(text, MaxPromptChars)
}

// AskPrompt builds a prompt that restricts the answer to docs. At most
// MaxAskDocs documents are included and the character budget is split evenly.
func AskPrompt(question string, docs []Doc) string {
	if len(docs) > MaxAskDocs {
		docs = docs[:MaxAskDocs]
	}
	per := MaxPromptChars
	if len(docs) > 0 {
		per = MaxPromptChars / len(docs)
	}
	sections := make([]string, 0, len(docs))
	for i, d := range docs {
		name := d.Name
		if name == "" {
			name = fmt.Sprintf("Doc %d", i+1)
		}
		sections = append(sections, "### "+name+"\n"+util.Truncate(d.Text, per))
	}

	var b strings.Builder
	b.WriteString("You are a helpful assistant. Answer the user's question **using only** the provided documents.\n")
	b.WriteString("If the answer is not present in the documents, say **\"I couldn't find that in the provided documents.\"**.\n")
	b.WriteString("When possible, name the document you used.\n\n")
	b.WriteString("Documents:\n")
	b.WriteString(strings.Join(sections, "\n\n"))
	b.WriteString("\n\nQuestion: ")
	b.WriteString(question)
	b.WriteString("\n\nAnswer:")
	return b.String()
}

// SummarizeRequest wraps SummarizePrompt with its token budget.
func SummarizeRequest(name, text string) Request {
	return Request{Prompt: SummarizePrompt(name, text), MaxOutputTokens: SummarizeMaxTokens, Temperature: DefaultTemperature}
}

// AskRequest wraps AskPrompt with its token budget.
func AskRequest(question string, docs []Doc) Request {
	return Request{Prompt: AskPrompt(question, docs), MaxOutputTokens: AskMaxTokens, Temperature: DefaultTemperature}
}
