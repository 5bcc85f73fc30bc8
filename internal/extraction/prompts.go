package extraction

import (
	"fmt"

	"github.com/ziadkadry99/invoicer/internal/llm"
)

const systemPrompt = "You are an expert invoice data extractor. Always return valid JSON."

const userPromptTemplate = `Extract the following fields from the invoice below, returning only valid JSON matching this schema:
%s

Use null for any field that is not present in the invoice. Numeric fields must be bare numbers without currency symbols or thousands separators. Dates must be formatted as YYYY-MM-DD.

Invoice Text:
%s

JSON Output:`

// buildMessages returns the system and user messages for one document.
func buildMessages(schema, rawText string) []llm.Message {
	return []llm.Message{
		llm.System(systemPrompt),
		llm.User(fmt.Sprintf(userPromptTemplate, schema, rawText)),
	}
}
