package usecase

import (
	"fmt"
	"strings"

	"github.com/Team-Lightning-LLC/Scout-v3-Pulse-onward/internal/domain/model"
)

// BuildResearchPrompt renders the ResearchV2 task for a new or follow-up
// request.
func BuildResearchPrompt(p model.JobParams) string {
	var b strings.Builder
	if p.IsFollowUp() {
		fmt.Fprintf(&b, `FOLLOW-UP RESEARCH REQUEST

First, access and thoroughly analyze Document ID: %s from the content object library.
Read through this document to understand the key findings, data, themes, and context it provides.

The user wants to explore the following aspects from that document:
%s

Use insights and context from the parent document to inform and enhance the quality of the research topic we are diving into.
Reference relevant findings from the parent document where appropriate, but create a standalone document that can be read independently.
The singular document you generate MUST contain interactable hyperlinked sources. always include your sources.
If there are no sources in the singular document, the document is useless. Include interactable, complete sources for the document you create.
Hyperlink the sources. You Must use hyperlinks for the sources of this singular document. Remember to only generate 1 document, not 2,3,4 or 5; just a singular complete document.

`, p.ParentDocumentID, p.Context)
	}

	if p.Capability != "" && p.Framework != "" {
		fmt.Fprintf(&b, `
Utilize Web Search to develop a singular document utilizing the following structure as the guide to provide users with a valuable research document:
Analysis Type: %s
Framework: %s (access the relevant framework from the content objects space where document is titled "X: Framework and Methodology")

Utilize this context to gain additional insight into your research topic:
%s
`, p.Capability, p.Framework, p.Context)
	} else {
		b.WriteString("\nUtilize Web Search to develop comprehensive research addressing the user's request above.\n")
	}

	fmt.Fprintf(&b, `
The Research Parameters you must follow for this document are:
- Scope: %s
- Overview Detail: %s
- Analytical Rigor: %s
- Perspective: %s

Always capture the most recent and reliable data. The final output must be a document uploaded to the content object library. Please produce a singular document for this research.
`, p.Modifiers.Scope, p.Modifiers.OverviewDetails, p.Modifiers.AnalyticalRigor, p.Modifiers.Perspective)

	return strings.TrimSpace(b.String())
}

var whiteLabelTokens = map[string]string{
	"1 Page":  "~700 tokens max (No charts or tables, just clear logic)",
	"2 Pages": "~1400 tokens max (allows for charts/tables)",
	"3 Pages": "~2100 tokens max (allows for sophisticated reasoning)",
}

const defaultWhiteLabelLength = "2 Pages"

// WhiteLabelTokenLength maps a page length to the token budget hint.
func WhiteLabelTokenLength(length string) string {
	if t, ok := whiteLabelTokens[length]; ok {
		return t
	}
	return "~4000 tokens (approximately 2 pages)"
}

// BuildWhiteLabelData returns the WhiteLabel interaction payload.
func BuildWhiteLabelData(p model.JobParams) map[string]any {
	length := p.Length
	if length == "" {
		length = defaultWhiteLabelLength
	}
	tokens := WhiteLabelTokenLength(length)
	task := fmt.Sprintf(`Create a professional white label document by synthesizing the following documents:

Document IDs: %s

Justification and Purpose:
%s

Target Length: %s

Requirements:
- Synthesize information from all provided documents
- Create a cohesive narrative that addresses the justification
- Target the specified token length (%s)
- Professional tone suitable for client-facing and official documentation based deliverables
- Include key insights and data from source documents
- Format as a polished, generically branded document

The final output must be a single markdown document uploaded to the content object library with the title prefix "White Label: "`,
		strings.Join(p.DocumentIDs, ", "), p.Justification, tokens, length)

	return map[string]any{
		"task":          task,
		"document_ids":  p.DocumentIDs,
		"justification": p.Justification,
		"length":        length,
		"token_length":  tokens,
	}
}

// BuildLibraryChatPrompt renders a library question with scope and prior turns.
// names and ids describe the selected collections; both empty means unscoped.
func BuildLibraryChatPrompt(question string, prior []model.ChatTurn, names, ids []string) string {
	var b strings.Builder
	if len(ids) > 0 {
		fmt.Fprintf(&b, "IMPORTANT: Only search and reference documents from these collections: %s.\n\n", strings.Join(names, ", "))
		fmt.Fprintf(&b, "Collection IDs to search: %s\n\n", strings.Join(ids, ", "))
	} else {
		b.WriteString("Search across ALL documents in the library.\n\n")
	}
	writePrior(&b, prior)
	b.WriteString("Current question: ")
	b.WriteString(question)
	return b.String()
}

// BuildDocumentChatPrompt renders a question about a single document.
func BuildDocumentChatPrompt(documentID, question string, prior []model.ChatTurn) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Document ID: %s\n\n", documentID)
	writePrior(&b, prior)
	b.WriteString("Current question: ")
	b.WriteString(question)
	return b.String()
}

func writePrior(b *strings.Builder, prior []model.ChatTurn) {
	if len(prior) == 0 {
		return
	}
	b.WriteString("Previous conversation:\n")
	b.WriteString(model.FormatTurns(prior))
	b.WriteString("\n\n")
}
