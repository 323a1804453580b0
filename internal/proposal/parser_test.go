package proposal

import "testing"

func TestParseFullTemplate(t *testing.T) {
	raw := "ANSWER:\nDone.\nUPDATED_TITLE:\nAcme\nUPDATED_PUBLIC_MD:\n\nUPDATED_PRIVATE_MD:\n"
	p := Parse(raw)

	if p.Answer != "Done." {
		t.Fatalf("answer = %q", p.Answer)
	}
	if p.Title == nil || *p.Title != "Acme" {
		t.Fatalf("title = %v", p.Title)
	}
	if p.PublicMD != nil {
		t.Fatalf("empty section must yield nil, got %q", *p.PublicMD)
	}
	if p.PrivateMD != nil {
		t.Fatalf("empty section must yield nil, got %q", *p.PrivateMD)
	}
}

func TestParseMultilineSections(t *testing.T) {
	raw := "ANSWER:\nHere is an update.\nSecond line.\n" +
		"UPDATED_PUBLIC_MD:\n# Heading\n\nBody text.\n" +
		"UPDATED_PRIVATE_MD:\nnotes"
	p := Parse(raw)

	if p.Answer != "Here is an update.\nSecond line." {
		t.Fatalf("answer = %q", p.Answer)
	}
	if p.PublicMD == nil || *p.PublicMD != "# Heading\n\nBody text." {
		t.Fatalf("public = %v", p.PublicMD)
	}
	if p.PrivateMD == nil || *p.PrivateMD != "notes" {
		t.Fatalf("private = %v", p.PrivateMD)
	}
	if p.Title != nil {
		t.Fatalf("absent title must yield nil")
	}
}

func TestParseInlineHeaderText(t *testing.T) {
	p := Parse("ANSWER: short reply\nUPDATED_TITLE: New Name\n")
	if p.Answer != "short reply" {
		t.Fatalf("answer = %q", p.Answer)
	}
	if p.Title == nil || *p.Title != "New Name" {
		t.Fatalf("title = %v", p.Title)
	}
}

func TestParseWithoutHeadersFallsBackToWholeText(t *testing.T) {
	raw := "The model just chatted freely.\nNo structure at all."
	p := Parse(raw)

	if p.Answer != raw {
		t.Fatalf("answer = %q", p.Answer)
	}
	if p.Title != nil || p.PublicMD != nil || p.PrivateMD != nil {
		t.Fatalf("unstructured text must not produce field updates")
	}
}

func TestParseRefinementExactDelimiters(t *testing.T) {
	raw := "### PUBLIC_MD_START\n# Public\nbody\n### PUBLIC_MD_END\n" +
		"### PRIVATE_MD_START\nsecret notes\n### PRIVATE_MD_END\n"
	r := ParseRefinement(raw)

	if r.PublicMD != "# Public\nbody" {
		t.Fatalf("public = %q", r.PublicMD)
	}
	if r.PrivateMD != "secret notes" {
		t.Fatalf("private = %q", r.PrivateMD)
	}
}

func TestParseRefinementHeuristicDelimiters(t *testing.T) {
	raw := "here is the public part (start):\npublic body\npublic end\n" +
		"now the private start\nprivate body\nprivate end"
	r := ParseRefinement(raw)

	if r.PublicMD != "public body" {
		t.Fatalf("public = %q", r.PublicMD)
	}
	if r.PrivateMD != "private body" {
		t.Fatalf("private = %q", r.PrivateMD)
	}
}

func TestParseRefinementFallsBackToWholeTextAsPublic(t *testing.T) {
	raw := "just a rewritten document with no markers"
	r := ParseRefinement(raw)

	if r.PublicMD != raw {
		t.Fatalf("public = %q", r.PublicMD)
	}
	if r.PrivateMD != "" {
		t.Fatalf("private should stay empty, got %q", r.PrivateMD)
	}
}

func TestIsSemanticFailure(t *testing.T) {
	cases := map[string]bool{
		"I don't know enough to answer that.": true,
		"I DO NOT KNOW":                       true,
		"Sadly I cannot answer this one.":     true,
		"The kiln dries lumber.":              false,
		"":                                    false,
	}
	for answer, want := range cases {
		if got := IsSemanticFailure(answer); got != want {
			t.Errorf("IsSemanticFailure(%q) = %v, want %v", answer, got, want)
		}
	}
}
