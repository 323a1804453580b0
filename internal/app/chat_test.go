package app

import (
	"context"
	"errors"
	"strings"
	"testing"

	"livingideas/internal/ai"
	"livingideas/internal/authpw"
	"livingideas/internal/store"
)

func successAI(text string) *fakeAI {
	return &fakeAI{complete: func(ctx context.Context, system, prompt string) ai.Result {
		return ai.Success(text)
	}}
}

func TestAskIdeaRequiresQuestion(t *testing.T) {
	svc, _, _ := newTestService(&fakeStore{}, nil)

	_, err := svc.AskIdea(context.Background(), "idea-1", "usr-1", "  ")
	var domainErr *DomainError
	if !errors.As(err, &domainErr) || domainErr.Code != "VALIDATION_ERROR" {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestAskIdeaPrivateRejectsBeforeBackend(t *testing.T) {
	idea := ownerIdea()
	idea.Visibility = store.VisibilityPrivate
	st := &fakeStore{
		getIdea: func(ctx context.Context, id string) (store.Idea, error) { return idea, nil },
	}
	client := successAI("should never run")
	svc, _, _ := newTestService(st, client)

	_, err := svc.AskIdea(context.Background(), idea.ID, "usr-other", "What is this?")
	var domainErr *DomainError
	if !errors.As(err, &domainErr) || domainErr.Code != "FORBIDDEN" {
		t.Fatalf("expected FORBIDDEN, got %v", err)
	}
	if client.calls != 0 {
		t.Fatal("completion backend must not be reached for a private idea")
	}
}

func TestAskSharedPasswordGateBeforeBackend(t *testing.T) {
	hash, _ := authpw.HashAny("open sesame")
	idea := ownerIdea()
	idea.Visibility = store.VisibilityPassword
	idea.PasswordHash = hash
	st := &fakeStore{
		getIdeaByShareHash: func(ctx context.Context, h string) (store.Idea, error) { return idea, nil },
	}
	client := successAI("should never run")
	svc, _, _ := newTestService(st, client)

	_, err := svc.AskShared(context.Background(), idea.ShareHash, "", "What is this?")
	var domainErr *DomainError
	if !errors.As(err, &domainErr) || domainErr.Code != "FORBIDDEN" {
		t.Fatalf("expected FORBIDDEN, got %v", err)
	}
	if client.calls != 0 {
		t.Fatal("completion backend must not be reached without the password")
	}
}

func TestAskIdeaBackendDownApologizesAndParksQuestion(t *testing.T) {
	idea := ownerIdea()
	var parked []store.UnansweredQuestion
	var histories []store.QAHistory
	applies := 0
	st := &fakeStore{
		getIdea: func(ctx context.Context, id string) (store.Idea, error) { return idea, nil },
		insertUnanswered: func(ctx context.Context, q store.UnansweredQuestion) error {
			parked = append(parked, q)
			return nil
		},
		insertQAHistory: func(ctx context.Context, h store.QAHistory) error {
			histories = append(histories, h)
			return nil
		},
		applyProposal: func(ctx context.Context, a store.ProposalApply, id string) error {
			applies++
			return nil
		},
	}
	svc, _, _ := newTestService(st, &fakeAI{}) // unavailable

	payload, err := svc.AskIdea(context.Background(), idea.ID, idea.UserID, "What is the budget?")
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	if payload["answer"] != apologyMessage {
		t.Fatalf("expected apology, got %v", payload["answer"])
	}
	if payload["unanswered"] != true {
		t.Fatal("expected unanswered flag")
	}
	if len(parked) != 1 || parked[0].Question != "What is the budget?" {
		t.Fatalf("expected exactly one parked question, got %v", parked)
	}
	if len(histories) != 0 || applies != 0 {
		t.Fatal("a failed completion must not touch QA history or the idea")
	}
}

func TestAskIdeaSemanticFailureParksQuestionAndKeepsHistory(t *testing.T) {
	idea := ownerIdea()
	var parked []store.UnansweredQuestion
	var applied []store.ProposalApply
	st := &fakeStore{
		getIdea: func(ctx context.Context, id string) (store.Idea, error) { return idea, nil },
		insertUnanswered: func(ctx context.Context, q store.UnansweredQuestion) error {
			parked = append(parked, q)
			return nil
		},
		applyProposal: func(ctx context.Context, a store.ProposalApply, id string) error {
			applied = append(applied, a)
			return nil
		},
	}
	svc, _, _ := newTestService(st, successAI("ANSWER:\nI don't know the budget yet.\n"))

	payload, err := svc.AskIdea(context.Background(), idea.ID, idea.UserID, "What is the budget?")
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	if len(parked) != 1 {
		t.Fatalf("semantic failure must park the question, got %v", parked)
	}
	if len(applied) != 1 {
		t.Fatal("the exchange must still be recorded in QA history")
	}
	if applied[0].Title != nil || applied[0].PublicMD != nil || applied[0].PrivateMD != nil {
		t.Fatal("no document changes expected")
	}
	if payload["applied"] != false {
		t.Fatal("nothing was applied")
	}
}

func TestAskIdeaOwnerAppliesTitleProposal(t *testing.T) {
	idea := ownerIdea()
	var applied []store.ProposalApply
	st := &fakeStore{
		getIdea: func(ctx context.Context, id string) (store.Idea, error) { return idea, nil },
		applyProposal: func(ctx context.Context, a store.ProposalApply, id string) error {
			applied = append(applied, a)
			return nil
		},
	}
	svc, hist, idx := newTestService(st, successAI(
		"ANSWER:\nDone.\nUPDATED_TITLE:\nAcme\nUPDATED_PUBLIC_MD:\n\nUPDATED_PRIVATE_MD:\n"))

	payload, err := svc.AskIdea(context.Background(), idea.ID, idea.UserID, "Rename the idea to Acme")
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	if len(applied) != 1 {
		t.Fatalf("expected one proposal application, got %d", len(applied))
	}
	apply := applied[0]
	if apply.Title == nil || *apply.Title != "Acme" {
		t.Fatalf("title not applied: %+v", apply)
	}
	if apply.PublicMD != nil || apply.PrivateMD != nil {
		t.Fatal("empty sections must not overwrite the documents")
	}
	if apply.Question != "Rename the idea to Acme" || apply.Answer != "Done." {
		t.Fatalf("qa history fields wrong: %+v", apply)
	}
	if payload["applied"] != true {
		t.Fatal("expected applied flag")
	}
	if payload["answer"] != "Done." {
		t.Fatalf("answer wrong: %v", payload["answer"])
	}
	if len(hist.commits) != 1 {
		t.Fatalf("expected one history commit, got %v", hist.commits)
	}
	if len(idx.indexed) != 1 || idx.indexed[0].Title != "Acme" {
		t.Fatalf("expected reindex with new title, got %v", idx.indexed)
	}
}

func TestAskIdeaUnchangedTitleNotApplied(t *testing.T) {
	idea := ownerIdea()
	var applied []store.ProposalApply
	st := &fakeStore{
		getIdea: func(ctx context.Context, id string) (store.Idea, error) { return idea, nil },
		applyProposal: func(ctx context.Context, a store.ProposalApply, id string) error {
			applied = append(applied, a)
			return nil
		},
	}
	svc, hist, _ := newTestService(st, successAI(
		"ANSWER:\nNo change needed.\nUPDATED_TITLE:\n"+idea.Title+"\n"))

	payload, err := svc.AskIdea(context.Background(), idea.ID, idea.UserID, "Is the title fine?")
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	if applied[0].Title != nil {
		t.Fatal("identical title must not count as a change")
	}
	if payload["applied"] != false {
		t.Fatal("nothing should be applied")
	}
	if len(hist.commits) != 0 {
		t.Fatal("no history commit without document changes")
	}
}

func TestAskIdeaNonOwnerNeverMutates(t *testing.T) {
	idea := ownerIdea()
	applies := 0
	updates := 0
	var histories []store.QAHistory
	st := &fakeStore{
		getIdea: func(ctx context.Context, id string) (store.Idea, error) { return idea, nil },
		applyProposal: func(ctx context.Context, a store.ProposalApply, id string) error {
			applies++
			return nil
		},
		updateIdea: func(ctx context.Context, i store.Idea) error {
			updates++
			return nil
		},
		insertQAHistory: func(ctx context.Context, h store.QAHistory) error {
			histories = append(histories, h)
			return nil
		},
	}
	svc, hist, _ := newTestService(st, successAI(
		"ANSWER:\nSure, here is a rewrite.\nUPDATED_PUBLIC_MD:\nRewritten document.\n"))

	payload, err := svc.AskIdea(context.Background(), idea.ID, "usr-other", "Rewrite the doc")
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	if applies != 0 || updates != 0 {
		t.Fatal("a non-owner conversation must never mutate the idea")
	}
	if len(histories) != 1 {
		t.Fatal("the exchange is still recorded in QA history")
	}
	if payload["applied"] != false {
		t.Fatal("nothing may be applied for a non-owner")
	}
	if payload["proposedPublicMd"] != "Rewritten document." {
		t.Fatalf("proposal should be previewed, got %v", payload["proposedPublicMd"])
	}
	if len(hist.commits) != 0 {
		t.Fatal("no history commit for non-owner chat")
	}
}

func TestAskSharedUsesPublicContextOnly(t *testing.T) {
	idea := ownerIdea()
	var sawPrompt string
	client := &fakeAI{complete: func(ctx context.Context, system, prompt string) ai.Result {
		sawPrompt = prompt
		return ai.Success("ANSWER:\nIt dries lumber.\n")
	}}
	st := &fakeStore{
		getIdeaByShareHash: func(ctx context.Context, h string) (store.Idea, error) { return idea, nil },
	}
	svc, _, _ := newTestService(st, client)

	if _, err := svc.AskShared(context.Background(), idea.ShareHash, "", "What does it do?"); err != nil {
		t.Fatalf("ask: %v", err)
	}
	if sawPrompt == "" {
		t.Fatal("expected a prompt")
	}
	if strings.Contains(sawPrompt, idea.PrivateMD) {
		t.Fatal("shared prompt leaked the private document")
	}
}

func TestResolveUnansweredHappyPath(t *testing.T) {
	idea := ownerIdea()
	question := store.UnansweredQuestion{ID: "uq-1", IdeaID: idea.ID, Question: "What is the budget?"}
	var resolvedAnswer string
	st := &fakeStore{
		getIdea:       func(ctx context.Context, id string) (store.Idea, error) { return idea, nil },
		getUnanswered: func(ctx context.Context, id string) (store.UnansweredQuestion, error) { return question, nil },
		resolveUnanswered: func(ctx context.Context, q store.UnansweredQuestion, answer, histID, repoID string) (bool, error) {
			resolvedAnswer = answer
			return true, nil
		},
	}
	svc, _, _ := newTestService(st, nil)

	payload, err := svc.ResolveUnanswered(context.Background(), idea.ID, question.ID, idea.UserID, "About $500.")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if payload["resolved"] != true {
		t.Fatal("expected resolved flag")
	}
	if resolvedAnswer != "About $500." {
		t.Fatalf("answer not passed through: %q", resolvedAnswer)
	}
}

func TestResolveUnansweredAlreadyResolved(t *testing.T) {
	idea := ownerIdea()
	question := store.UnansweredQuestion{ID: "uq-1", IdeaID: idea.ID, Question: "What is the budget?"}
	st := &fakeStore{
		getIdea:       func(ctx context.Context, id string) (store.Idea, error) { return idea, nil },
		getUnanswered: func(ctx context.Context, id string) (store.UnansweredQuestion, error) { return question, nil },
		resolveUnanswered: func(ctx context.Context, q store.UnansweredQuestion, answer, histID, repoID string) (bool, error) {
			return false, nil
		},
	}
	svc, _, _ := newTestService(st, nil)

	_, err := svc.ResolveUnanswered(context.Background(), idea.ID, question.ID, idea.UserID, "About $500.")
	var domainErr *DomainError
	if !errors.As(err, &domainErr) || domainErr.Code != "NOT_FOUND" {
		t.Fatalf("expected NOT_FOUND for a second resolution, got %v", err)
	}
}

func TestResolveUnansweredWrongIdea(t *testing.T) {
	idea := ownerIdea()
	question := store.UnansweredQuestion{ID: "uq-1", IdeaID: "idea-other", Question: "?"}
	st := &fakeStore{
		getIdea:       func(ctx context.Context, id string) (store.Idea, error) { return idea, nil },
		getUnanswered: func(ctx context.Context, id string) (store.UnansweredQuestion, error) { return question, nil },
	}
	svc, _, _ := newTestService(st, nil)

	_, err := svc.ResolveUnanswered(context.Background(), idea.ID, question.ID, idea.UserID, "answer")
	var domainErr *DomainError
	if !errors.As(err, &domainErr) || domainErr.Code != "NOT_FOUND" {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
}

func TestResolveSurvivesRefinementFailure(t *testing.T) {
	idea := ownerIdea()
	question := store.UnansweredQuestion{ID: "uq-1", IdeaID: idea.ID, Question: "What is the budget?"}
	updates := 0
	st := &fakeStore{
		getIdea:       func(ctx context.Context, id string) (store.Idea, error) { return idea, nil },
		getUnanswered: func(ctx context.Context, id string) (store.UnansweredQuestion, error) { return question, nil },
		updateIdea: func(ctx context.Context, i store.Idea) error {
			updates++
			return nil
		},
	}
	svc, _, _ := newTestService(st, &fakeAI{}) // refinement backend down

	payload, err := svc.ResolveUnanswered(context.Background(), idea.ID, question.ID, idea.UserID, "About $500.")
	if err != nil {
		t.Fatalf("resolve must not fail on refinement trouble: %v", err)
	}
	if payload["resolved"] != true {
		t.Fatal("expected resolved flag")
	}
	if updates != 0 {
		t.Fatal("no document update when refinement is unavailable")
	}
}

func TestResolveAppliesRefinement(t *testing.T) {
	idea := ownerIdea()
	question := store.UnansweredQuestion{ID: "uq-1", IdeaID: idea.ID, Question: "What is the budget?"}
	var updated store.Idea
	updates := 0
	st := &fakeStore{
		getIdea:       func(ctx context.Context, id string) (store.Idea, error) { return idea, nil },
		getUnanswered: func(ctx context.Context, id string) (store.UnansweredQuestion, error) { return question, nil },
		updateIdea: func(ctx context.Context, i store.Idea) error {
			updates++
			updated = i
			return nil
		},
	}
	svc, hist, idx := newTestService(st, successAI(
		"### PUBLIC_MD_START\nNow with a $500 budget.\n### PUBLIC_MD_END\n"+
			"### PRIVATE_MD_START\nBudget confirmed by owner.\n### PRIVATE_MD_END\n"))

	if _, err := svc.ResolveUnanswered(context.Background(), idea.ID, question.ID, idea.UserID, "About $500."); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if updates != 1 {
		t.Fatalf("expected one document update, got %d", updates)
	}
	if updated.PublicMD != "Now with a $500 budget." {
		t.Fatalf("public doc not refined: %q", updated.PublicMD)
	}
	if updated.PrivateMD != "Budget confirmed by owner." {
		t.Fatalf("private doc not refined: %q", updated.PrivateMD)
	}
	if len(hist.commits) != 1 {
		t.Fatalf("expected one history commit, got %v", hist.commits)
	}
	if len(idx.indexed) != 1 {
		t.Fatal("public idea must be reindexed after refinement")
	}
}

func TestUpdateQAVisibility(t *testing.T) {
	idea := ownerIdea()
	item := store.RepoItem{
		ID:         "repo-1",
		IdeaID:     idea.ID,
		Name:       "Q: What is the budget?",
		Type:       store.RepoTypeQA,
		Content:    "A: About $500.",
		Visibility: store.VisibilityPrivate,
	}
	var savedContent, savedVisibility string
	st := &fakeStore{
		getIdea:     func(ctx context.Context, id string) (store.Idea, error) { return idea, nil },
		getRepoItem: func(ctx context.Context, id string) (store.RepoItem, error) { return item, nil },
		updateRepoItem: func(ctx context.Context, id, content, visibility string) error {
			savedContent = content
			savedVisibility = visibility
			return nil
		},
	}
	svc, _, _ := newTestService(st, nil)

	if _, err := svc.UpdateQA(context.Background(), idea.ID, item.ID, idea.UserID, "", store.VisibilityPublic); err != nil {
		t.Fatalf("update qa: %v", err)
	}
	if savedVisibility != store.VisibilityPublic {
		t.Fatalf("visibility not updated: %q", savedVisibility)
	}
	if savedContent != item.Content {
		t.Fatalf("content must stay put without a new answer: %q", savedContent)
	}

	if _, err := svc.UpdateQA(context.Background(), idea.ID, item.ID, idea.UserID, "About $600.", ""); err != nil {
		t.Fatalf("update qa: %v", err)
	}
	if savedContent != "A: About $600." {
		t.Fatalf("answer not rewritten: %q", savedContent)
	}
}

func TestQAItemFromOtherIdeaIsNotFound(t *testing.T) {
	idea := ownerIdea()
	item := store.RepoItem{ID: "repo-1", IdeaID: "idea-other", Type: store.RepoTypeQA}
	st := &fakeStore{
		getIdea:     func(ctx context.Context, id string) (store.Idea, error) { return idea, nil },
		getRepoItem: func(ctx context.Context, id string) (store.RepoItem, error) { return item, nil },
	}
	svc, _, _ := newTestService(st, nil)

	err := svc.DeleteQA(context.Background(), idea.ID, item.ID, idea.UserID)
	var domainErr *DomainError
	if !errors.As(err, &domainErr) || domainErr.Code != "NOT_FOUND" {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
}
