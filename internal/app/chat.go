package app

import (
	"context"
	"strings"

	"livingideas/internal/prompt"
	"livingideas/internal/proposal"
	"livingideas/internal/store"
	"livingideas/internal/util"
)

// apologyMessage is returned whenever the completion backend could not
// produce an answer. The question is preserved as an unanswered question so
// the owner can address it later.
const apologyMessage = "Sorry, I can't answer that right now. Your question has been saved for the idea's owner."

const (
	historyWindowOwner  = 5
	historyWindowShared = 3
)

// AskIdea handles chat from authenticated callers. Owners get the full
// context and their accepted proposals applied; everyone else gets a
// preview-only conversation over the public context.
func (s *Service) AskIdea(ctx context.Context, ideaID, callerID, question string) (map[string]any, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, errValidation("question is required")
	}

	idea, err := s.store.GetIdea(ctx, ideaID)
	if err != nil {
		return nil, err
	}
	isOwner := idea.UserID == callerID
	if !isOwner && idea.Visibility == store.VisibilityPrivate {
		return nil, errForbidden("idea is private")
	}

	return s.converse(ctx, idea, question, isOwner)
}

// AskShared handles anonymous chat through a share link. Visibility gating
// runs before any context is assembled.
func (s *Service) AskShared(ctx context.Context, shareHash, password, question string) (map[string]any, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, errValidation("question is required")
	}

	idea, err := s.store.GetIdeaByShareHash(ctx, shareHash)
	if err != nil {
		return nil, err
	}
	if gateErr := gateViewable(idea, password); gateErr != nil {
		return nil, gateErr
	}

	return s.converse(ctx, idea, question, false)
}

func (s *Service) converse(ctx context.Context, idea store.Idea, question string, isOwner bool) (map[string]any, error) {
	window := historyWindowShared
	if isOwner {
		window = historyWindowOwner
	}

	qaItems, err := s.store.ListRepoItems(ctx, idea.ID, store.RepoTypeQA)
	if err != nil {
		return nil, err
	}
	recent, err := s.store.RecentQAHistory(ctx, idea.ID, window)
	if err != nil {
		return nil, err
	}
	assets, err := s.store.ListAssets(ctx, idea.ID, true)
	if err != nil {
		return nil, err
	}

	promptText := prompt.Chat(prompt.ChatInput{
		Idea:         idea,
		QAItems:      qaItems,
		History:      recent,
		Assets:       assets,
		OwnerContext: isOwner,
		Question:     question,
	})

	result := s.ai.Complete(ctx, prompt.SystemInstruction, promptText)
	if !result.OK() {
		s.log.Warnw("completion failed", "idea", idea.ID, "detail", result.Sentinel())
		if err := s.store.InsertUnansweredQuestion(ctx, store.UnansweredQuestion{
			ID:       util.NewID("uq"),
			IdeaID:   idea.ID,
			Question: question,
		}); err != nil {
			return nil, err
		}
		return map[string]any{"answer": apologyMessage, "unanswered": true}, nil
	}

	parsed := proposal.Parse(result.Text)

	if proposal.IsSemanticFailure(parsed.Answer) {
		if err := s.store.InsertUnansweredQuestion(ctx, store.UnansweredQuestion{
			ID:       util.NewID("uq"),
			IdeaID:   idea.ID,
			Question: question,
		}); err != nil {
			return nil, err
		}
	}

	applied := false
	if isOwner {
		apply := store.ProposalApply{
			IdeaID:   idea.ID,
			Question: question,
			Answer:   parsed.Answer,
		}
		if parsed.Title != nil && *parsed.Title != idea.Title {
			apply.Title = parsed.Title
		}
		apply.PublicMD = parsed.PublicMD
		apply.PrivateMD = parsed.PrivateMD

		if err := s.store.ApplyProposal(ctx, apply, util.NewID("qah")); err != nil {
			return nil, err
		}

		if apply.Title != nil || apply.PublicMD != nil || apply.PrivateMD != nil {
			applied = true
			if apply.Title != nil {
				idea.Title = *apply.Title
			}
			if apply.PublicMD != nil {
				idea.PublicMD = *apply.PublicMD
			}
			if apply.PrivateMD != nil {
				idea.PrivateMD = *apply.PrivateMD
			}
			ownerName := ""
			if owner, err := s.store.GetUserByID(ctx, idea.UserID); err == nil {
				ownerName = owner.Name
			}
			s.commitHistory(idea, ownerName, "Apply chat proposal")
			if idea.Visibility == store.VisibilityPublic {
				s.search.Index(searchRecord(idea, ownerName))
			}
		}
	} else {
		if err := s.store.InsertQAHistory(ctx, store.QAHistory{
			ID:       util.NewID("qah"),
			IdeaID:   idea.ID,
			Question: question,
			Answer:   parsed.Answer,
		}); err != nil {
			return nil, err
		}
	}

	payload := map[string]any{
		"answer":  parsed.Answer,
		"applied": applied,
	}
	if parsed.Title != nil {
		payload["proposedTitle"] = *parsed.Title
	}
	if parsed.PublicMD != nil {
		payload["proposedPublicMd"] = *parsed.PublicMD
	}
	if parsed.PrivateMD != nil {
		payload["proposedPrivateMd"] = *parsed.PrivateMD
	}
	return payload, nil
}

// ListUnanswered returns the idea's open questions. Owner only.
func (s *Service) ListUnanswered(ctx context.Context, ideaID, callerID string) ([]map[string]any, error) {
	if _, err := s.ownedIdea(ctx, ideaID, callerID); err != nil {
		return nil, err
	}
	questions, err := s.store.ListUnansweredQuestions(ctx, ideaID)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(questions))
	for _, q := range questions {
		items = append(items, map[string]any{
			"id":        q.ID,
			"question":  q.Question,
			"createdAt": q.CreatedAt,
		})
	}
	return items, nil
}

// ResolveUnanswered applies the owner's answer to an open question. The
// durable contract is one transaction: QA history row, private QA repo item,
// question deleted. Resolving an already-resolved question reports not-found.
// A best-effort refinement then folds the new fact into the documents.
func (s *Service) ResolveUnanswered(ctx context.Context, ideaID, questionID, callerID, answer string) (map[string]any, error) {
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return nil, errValidation("answer is required")
	}

	idea, err := s.ownedIdea(ctx, ideaID, callerID)
	if err != nil {
		return nil, err
	}

	question, err := s.store.GetUnansweredQuestion(ctx, questionID)
	if err != nil {
		return nil, err
	}
	if question.IdeaID != ideaID {
		return nil, errNotFound("question not found")
	}

	resolved, err := s.store.ResolveUnansweredQuestion(ctx, question, answer, util.NewID("qah"), util.NewID("repo"))
	if err != nil {
		return nil, err
	}
	if !resolved {
		return nil, errNotFound("question already resolved")
	}

	s.refineAfterResolution(ctx, idea, question.Question, answer)

	return map[string]any{"resolved": true}, nil
}

// refineAfterResolution asks the backend to fold the new answer into the
// idea's documents. Strictly advisory: every failure is logged and swallowed,
// the resolution itself is already durable.
func (s *Service) refineAfterResolution(ctx context.Context, idea store.Idea, question, answer string) {
	result := s.ai.Complete(ctx, prompt.RefinementSystem, prompt.Refinement(idea, question, answer))
	if !result.OK() {
		s.log.Warnw("refinement completion failed", "idea", idea.ID, "detail", result.Sentinel())
		return
	}

	refined := proposal.ParseRefinement(result.Text)
	changed := false
	if strings.TrimSpace(refined.PublicMD) != "" && refined.PublicMD != idea.PublicMD {
		idea.PublicMD = refined.PublicMD
		changed = true
	}
	if strings.TrimSpace(refined.PrivateMD) != "" && refined.PrivateMD != idea.PrivateMD {
		idea.PrivateMD = refined.PrivateMD
		changed = true
	}
	if !changed {
		return
	}

	if err := s.store.UpdateIdea(ctx, idea); err != nil {
		s.log.Warnw("apply refinement", "idea", idea.ID, "error", err)
		return
	}
	ownerName := ""
	if owner, err := s.store.GetUserByID(ctx, idea.UserID); err == nil {
		ownerName = owner.Name
	}
	s.commitHistory(idea, ownerName, "Fold resolved question into documents")
	if idea.Visibility == store.VisibilityPublic {
		s.search.Index(searchRecord(idea, ownerName))
	}
}

// Persistent QA management (owner only)

func (s *Service) ListQA(ctx context.Context, ideaID, callerID string) ([]map[string]any, error) {
	if _, err := s.ownedIdea(ctx, ideaID, callerID); err != nil {
		return nil, err
	}
	items, err := s.store.ListRepoItems(ctx, ideaID, store.RepoTypeQA)
	if err != nil {
		return nil, err
	}
	payload := make([]map[string]any, 0, len(items))
	for _, item := range items {
		payload = append(payload, map[string]any{
			"id":         item.ID,
			"question":   item.Name,
			"answer":     item.Content,
			"visibility": item.Visibility,
			"createdAt":  item.CreatedAt,
		})
	}
	return payload, nil
}

func (s *Service) UpdateQA(ctx context.Context, ideaID, itemID, callerID, answer, visibility string) (map[string]any, error) {
	if _, err := s.ownedIdea(ctx, ideaID, callerID); err != nil {
		return nil, err
	}
	item, err := s.store.GetRepoItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if item.IdeaID != ideaID || item.Type != store.RepoTypeQA {
		return nil, errNotFound("qa item not found")
	}

	content := item.Content
	if strings.TrimSpace(answer) != "" {
		content = "A: " + strings.TrimSpace(answer)
	}
	if visibility == "" {
		visibility = item.Visibility
	}
	if visibility != store.VisibilityPublic && visibility != store.VisibilityPrivate {
		return nil, errValidation("qa visibility must be public or private")
	}
	if err := s.store.UpdateRepoItem(ctx, itemID, content, visibility); err != nil {
		return nil, err
	}
	return map[string]any{
		"id":         itemID,
		"question":   item.Name,
		"answer":     content,
		"visibility": visibility,
	}, nil
}

func (s *Service) DeleteQA(ctx context.Context, ideaID, itemID, callerID string) error {
	if _, err := s.ownedIdea(ctx, ideaID, callerID); err != nil {
		return err
	}
	item, err := s.store.GetRepoItem(ctx, itemID)
	if err != nil {
		return err
	}
	if item.IdeaID != ideaID || item.Type != store.RepoTypeQA {
		return errNotFound("qa item not found")
	}
	return s.store.DeleteRepoItem(ctx, itemID)
}
