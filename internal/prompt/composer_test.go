package prompt

import (
	"strings"
	"testing"

	"livingideas/internal/store"
)

func testIdea() store.Idea {
	return store.Idea{
		ID:        "idea_1",
		UserID:    "user_1",
		Title:     "Solar Kiln",
		PublicMD:  "A kiln powered by the sun.",
		PrivateMD: "Cost estimate: 400 EUR. Supplier: Janssen.",
	}
}

func TestChatOwnerContextIncludesPrivateDocument(t *testing.T) {
	out := Chat(ChatInput{Idea: testIdea(), OwnerContext: true, Question: "what next?"})
	if !strings.Contains(out, "Cost estimate: 400 EUR") {
		t.Fatalf("owner context should include private markdown")
	}
	if !strings.Contains(out, "ANSWER:") || !strings.Contains(out, "UPDATED_PRIVATE_MD:") {
		t.Fatalf("chat prompt should carry the labeled-section template")
	}
}

func TestChatSharedContextOmitsPrivateMaterial(t *testing.T) {
	in := ChatInput{
		Idea: testIdea(),
		QAItems: []store.RepoItem{
			{Type: store.RepoTypeQA, Name: "Q: Who supplies the parts?", Content: "A: Janssen.", Visibility: store.VisibilityPrivate},
			{Type: store.RepoTypeQA, Name: "Q: What does it dry?", Content: "A: Lumber.", Visibility: store.VisibilityPublic},
			{Type: store.RepoTypeNote, Name: "random note", Content: "secret margin data", Visibility: store.VisibilityPublic},
		},
		OwnerContext: false,
		Question:     "how does it work?",
	}
	out := Chat(in)

	if strings.Contains(out, "Cost estimate") {
		t.Fatalf("shared context leaked private markdown")
	}
	if strings.Contains(out, "Janssen") {
		t.Fatalf("shared context leaked a private QA item")
	}
	if strings.Contains(out, "secret margin data") {
		t.Fatalf("non-qa repo items should not be rendered")
	}
	if !strings.Contains(out, "What does it dry?") {
		t.Fatalf("public QA item missing from shared context")
	}
}

func TestChatHistoryWindowAndOrder(t *testing.T) {
	// Newest first, as the store returns it.
	history := []store.QAHistory{
		{Question: "q6", Answer: "a6"},
		{Question: "q5", Answer: "a5"},
		{Question: "q4", Answer: "a4"},
		{Question: "q3", Answer: "a3"},
		{Question: "q2", Answer: "a2"},
		{Question: "q1", Answer: "a1"},
	}

	owner := Chat(ChatInput{Idea: testIdea(), History: history, OwnerContext: true, Question: "x"})
	if strings.Contains(owner, "q1") {
		t.Fatalf("owner window should keep only the newest 5 entries")
	}
	if !strings.Contains(owner, "q2") {
		t.Fatalf("owner window should include the 5th newest entry")
	}
	if strings.Index(owner, "Q: q2") > strings.Index(owner, "Q: q6") {
		t.Fatalf("history should render oldest to newest")
	}

	shared := Chat(ChatInput{Idea: testIdea(), History: history, OwnerContext: false, Question: "x"})
	if strings.Contains(shared, "q3") {
		t.Fatalf("shared window should keep only the newest 3 entries")
	}
	if !strings.Contains(shared, "q4") {
		t.Fatalf("shared window should include the 3rd newest entry")
	}
}

func TestChatRendersPublicAssetsOnly(t *testing.T) {
	in := ChatInput{
		Idea: testIdea(),
		Assets: []store.Asset{
			{Title: "Sketch", URL: "https://example.com/sketch.png", Visibility: store.VisibilityPublic},
			{Title: "Ledger", URL: "https://example.com/ledger.xlsx", Visibility: store.VisibilityPrivate},
		},
		OwnerContext: true,
		Question:     "x",
	}
	out := Chat(in)
	if !strings.Contains(out, "- Sketch: https://example.com/sketch.png") {
		t.Fatalf("public asset missing, got:\n%s", out)
	}
	if strings.Contains(out, "Ledger") {
		t.Fatalf("private asset should never be rendered")
	}
}

func TestRefinementCarriesBothDocumentsAndTemplate(t *testing.T) {
	out := Refinement(testIdea(), "How big is it?", "Two cubic meters.")
	for _, want := range []string{
		"A kiln powered by the sun.",
		"Cost estimate: 400 EUR",
		"Q: How big is it?",
		"A: Two cubic meters.",
		"### PUBLIC_MD_START",
		"### PRIVATE_MD_END",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("refinement prompt missing %q", want)
		}
	}
}
