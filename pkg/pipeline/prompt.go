package pipeline

import "strings"

// SystemInstruction steers the generative model toward grounded answers.
const SystemInstruction = `You are a knowledge assistant.
Your task is to answer user questions based ONLY on the provided CONTEXT.

RULES:
1. If the answer is not in the CONTEXT, politely state that you do not know.
2. Never use general knowledge outside the CONTEXT.
3. Keep your answers professional, helpful and concise.
4. Cite the source kind (PDF, website, text file) the answer came from.
5. Always detect the language of the user's question and answer in that same language.`

// BuildPrompt assembles the generation prompt from retrieved context and the
// user's question. An empty context is passed through so the model can decline.
func BuildPrompt(context, question string) string {
	var b strings.Builder
	b.WriteString("Context Information:\n")
	b.WriteString(context)
	b.WriteString("\n\nUser Question:\n")
	b.WriteString(question)
	b.WriteString("\n\nTask:\n")
	b.WriteString("Answer the user's question using only the context above. ")
	b.WriteString("If the context does not contain the answer, say that you do not know.\n")
	b.WriteString(`CRITICAL: Regardless of the language of the context, you MUST answer in the same language as the "User Question".`)
	b.WriteString("\n\nAnswer:")
	return b.String()
}
