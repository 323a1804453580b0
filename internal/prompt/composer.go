// Package prompt assembles the text context sent to the completion backend.
//
// Two audiences exist: the idea's owner and everyone else. Context built for a
// non-owner must never contain the private markdown or private QA items. That
// rule is a security boundary and is enforced here, not at the call sites.
package prompt

import (
	"fmt"
	"strings"

	"livingideas/internal/store"
)

const (
	historyWindowOwner  = 5
	historyWindowShared = 3
)

// SystemInstruction is the fixed system message for chat completions.
const SystemInstruction = "You are the caretaker of a living idea document. " +
	"Answer questions about the idea using only the provided context, and " +
	"propose document updates when the question warrants them. Follow the " +
	"requested output format exactly."

// RefinementSystem is the system message for the markdown-refinement path.
const RefinementSystem = "You maintain a living idea document. Fold newly " +
	"answered questions into the document without losing existing content. " +
	"Follow the requested output format exactly."

const chatTemplate = `Respond using exactly this format:
ANSWER:
<your answer>
UPDATED_TITLE:
<new title, or leave empty if unchanged>
UPDATED_PUBLIC_MD:
<full replacement public markdown, or leave empty if unchanged>
UPDATED_PRIVATE_MD:
<full replacement private markdown, or leave empty if unchanged>`

const refinementTemplate = `Respond using exactly this format:
### PUBLIC_MD_START
<full updated public markdown>
### PUBLIC_MD_END
### PRIVATE_MD_START
<full updated private markdown>
### PRIVATE_MD_END`

// ChatInput carries the idea state rendered into one chat prompt. History is
// expected newest-first, as the store returns it; QAItems and Assets are the
// unfiltered child rows of the idea.
type ChatInput struct {
	Idea         store.Idea
	QAItems      []store.RepoItem
	History      []store.QAHistory
	Assets       []store.Asset
	OwnerContext bool
	Question     string
}

// Chat builds the full user prompt for a chat completion.
func Chat(in ChatInput) string {
	var b strings.Builder

	fmt.Fprintf(&b, "IDEA TITLE: %s\n\n", in.Idea.Title)
	fmt.Fprintf(&b, "PUBLIC DOCUMENT:\n%s\n\n", in.Idea.PublicMD)
	if in.OwnerContext {
		fmt.Fprintf(&b, "PRIVATE DOCUMENT:\n%s\n\n", in.Idea.PrivateMD)
	}

	if qa := renderQAItems(in.QAItems, in.OwnerContext); qa != "" {
		b.WriteString("KNOWN FACTS:\n")
		b.WriteString(qa)
		b.WriteString("\n")
	}

	window := historyWindowShared
	if in.OwnerContext {
		window = historyWindowOwner
	}
	if hist := renderHistory(in.History, window); hist != "" {
		b.WriteString("RECENT CONVERSATION:\n")
		b.WriteString(hist)
		b.WriteString("\n")
	}

	if assets := renderAssets(in.Assets); assets != "" {
		b.WriteString("PUBLIC ASSETS:\n")
		b.WriteString(assets)
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "QUESTION:\n%s\n\n", in.Question)
	b.WriteString(chatTemplate)
	return b.String()
}

// Refinement builds the prompt asking the backend to fold one newly answered
// question into the idea's documents. Only used with the owner's documents, so
// the private markdown is always included.
func Refinement(idea store.Idea, question, answer string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "IDEA TITLE: %s\n\n", idea.Title)
	fmt.Fprintf(&b, "CURRENT PUBLIC MARKDOWN:\n%s\n\n", idea.PublicMD)
	fmt.Fprintf(&b, "CURRENT PRIVATE MARKDOWN:\n%s\n\n", idea.PrivateMD)
	fmt.Fprintf(&b, "NEWLY ANSWERED QUESTION:\nQ: %s\nA: %s\n\n", question, answer)
	b.WriteString("Update both documents to incorporate the new answer.\n\n")
	b.WriteString(refinementTemplate)
	return b.String()
}

// ImproveTitle builds a prompt asking for a concise title for a new idea.
func ImproveTitle(title, notes string) string {
	return fmt.Sprintf("Suggest a single concise title (at most 60 characters) "+
		"for this idea. Reply with the title only, no quotes.\n\n"+
		"WORKING TITLE: %s\n\nNOTES:\n%s", title, notes)
}

// Draft builds the prompt generating the initial public and private markdown
// for a new idea from the owner's raw submission.
func Draft(title, notes, links, summary string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Write the initial documents for a new idea.\n\n")
	fmt.Fprintf(&b, "TITLE: %s\n\nNOTES:\n%s\n\n", title, notes)
	if strings.TrimSpace(links) != "" {
		fmt.Fprintf(&b, "LINKS:\n%s\n\n", links)
	}
	if strings.TrimSpace(summary) != "" {
		fmt.Fprintf(&b, "SUMMARY:\n%s\n\n", summary)
	}
	b.WriteString("The public document presents the idea to strangers; the " +
		"private document keeps the owner's working notes.\n\n")
	b.WriteString(refinementTemplate)
	return b.String()
}

// Clarify builds the prompt asking for open questions about a new idea. The
// backend is asked for a JSON array; callers fall back to line splitting.
func Clarify(title, notes string) string {
	return fmt.Sprintf("List 3 to 5 short clarifying questions whose answers "+
		"would most improve this idea. Reply with a JSON array of strings.\n\n"+
		"TITLE: %s\n\nNOTES:\n%s", title, notes)
}

func renderQAItems(items []store.RepoItem, ownerContext bool) string {
	var b strings.Builder
	for _, item := range items {
		if item.Type != store.RepoTypeQA {
			continue
		}
		if !ownerContext && item.Visibility != store.VisibilityPublic {
			continue
		}
		fmt.Fprintf(&b, "%s\n%s\n", item.Name, item.Content)
	}
	return b.String()
}

// renderHistory takes the newest `window` entries and renders them
// oldest-to-newest as alternating Q/A lines.
func renderHistory(history []store.QAHistory, window int) string {
	if len(history) > window {
		history = history[:window]
	}
	var b strings.Builder
	for i := len(history) - 1; i >= 0; i-- {
		fmt.Fprintf(&b, "Q: %s\nA: %s\n", history[i].Question, history[i].Answer)
	}
	return b.String()
}

func renderAssets(assets []store.Asset) string {
	var b strings.Builder
	for _, a := range assets {
		if a.Visibility != store.VisibilityPublic {
			continue
		}
		fmt.Fprintf(&b, "- %s: %s\n", a.Title, a.URL)
	}
	return b.String()
}
