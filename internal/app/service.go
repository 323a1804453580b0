package app

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"

	"livingideas/internal/ai"
	"livingideas/internal/auth"
	"livingideas/internal/authpw"
	"livingideas/internal/blob"
	"livingideas/internal/config"
	"livingideas/internal/export"
	"livingideas/internal/history"
	"livingideas/internal/prompt"
	"livingideas/internal/proposal"
	"livingideas/internal/search"
	"livingideas/internal/session"
	"livingideas/internal/store"
	"livingideas/internal/util"
)

const maxTitleLength = 60

type Session struct {
	Token        string
	RefreshToken string
	UserID       string
	UserName     string
	ExpiresAt    time.Time
}

type CreateIdeaInput struct {
	Title      string `json:"title"`
	Notes      string `json:"notes"`
	Links      string `json:"links"`
	Summary    string `json:"summary"`
	Visibility string `json:"visibility"`
	Password   string `json:"password"`
	Clonable   bool   `json:"clonable"`
}

// UpdateIdeaInput patches an idea. Nil means "leave unchanged".
type UpdateIdeaInput struct {
	Title      *string `json:"title"`
	PublicMD   *string `json:"publicMd"`
	PrivateMD  *string `json:"privateMd"`
	Visibility *string `json:"visibility"`
	Password   *string `json:"password"`
	Clonable   *bool   `json:"clonable"`
}

type AssetInput struct {
	Type        string `json:"type"`
	Title       string `json:"title"`
	URL         string `json:"url"`
	Description string `json:"description"`
	Visibility  string `json:"visibility"`
}

var allowedVisibility = map[string]struct{}{
	store.VisibilityPublic:   {},
	store.VisibilityPrivate:  {},
	store.VisibilityPassword: {},
}

var allowedAssetTypes = map[string]struct{}{
	store.RepoTypeLink: {},
	store.RepoTypeNote: {},
	store.RepoTypeFile: {},
}

type dataStore interface {
	CreateUser(context.Context, store.User) error
	GetUserByEmail(context.Context, string) (store.User, error)
	GetUserByID(context.Context, string) (store.User, error)
	UpdateUser(context.Context, string, string, string) error
	DeleteUser(context.Context, string) error
	InsertIdea(context.Context, store.Idea) error
	GetIdea(context.Context, string) (store.Idea, error)
	GetIdeaByShareHash(context.Context, string) (store.Idea, error)
	UpdateIdea(context.Context, store.Idea) error
	DeleteIdea(context.Context, string) error
	ListPublicIdeas(context.Context) ([]store.Idea, error)
	ListIdeasByUser(context.Context, string) ([]store.Idea, error)
	InsertRepoItem(context.Context, store.RepoItem) error
	ListRepoItems(context.Context, string, string) ([]store.RepoItem, error)
	GetRepoItem(context.Context, string) (store.RepoItem, error)
	UpdateRepoItem(context.Context, string, string, string) error
	DeleteRepoItem(context.Context, string) error
	InsertQAHistory(context.Context, store.QAHistory) error
	RecentQAHistory(context.Context, string, int) ([]store.QAHistory, error)
	InsertUnansweredQuestion(context.Context, store.UnansweredQuestion) error
	ListUnansweredQuestions(context.Context, string) ([]store.UnansweredQuestion, error)
	GetUnansweredQuestion(context.Context, string) (store.UnansweredQuestion, error)
	InsertAsset(context.Context, store.Asset) error
	ListAssets(context.Context, string, bool) ([]store.Asset, error)
	GetAsset(context.Context, string) (store.Asset, error)
	DeleteAsset(context.Context, string) error
	ApplyProposal(context.Context, store.ProposalApply, string) error
	ResolveUnansweredQuestion(context.Context, store.UnansweredQuestion, string, string, string) (bool, error)
	Ping(context.Context) error
}

type refreshStore interface {
	Save(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error
	Lookup(ctx context.Context, tokenHash string) (string, error)
	Revoke(ctx context.Context, tokenHash string) error
}

type historyService interface {
	Ensure(ideaID string, initial history.Snapshot, author string) error
	Commit(ideaID string, snapshot history.Snapshot, author, message string) (history.Revision, error)
	History(ideaID string, limit int) ([]history.Revision, error)
	Remove(ideaID string) error
}

type searchService interface {
	Search(q search.Query) search.Response
	Index(rec search.Record)
	Delete(id string)
}

type blobStore interface {
	Upload(ctx context.Context, ideaID, filename, contentType string, body io.Reader, size int64) (string, error)
	Remove(ctx context.Context, url string) error
}

type exporter interface {
	Export(page export.Page) (*export.Result, error)
}

type Service struct {
	cfg      config.Config
	store    dataStore
	ai       ai.Client
	sessions refreshStore
	history  historyService
	search   searchService
	blob     blobStore // nil when uploads are not configured
	exporter exporter
	log      *zap.SugaredLogger
}

func New(
	cfg config.Config,
	dataStore *store.PostgresStore,
	aiClient ai.Client,
	sessions *session.RedisStore,
	historySvc *history.Service,
	searchSvc *search.Service,
	blobStore *blob.Store,
	exportSvc *export.Service,
) *Service {
	s := &Service{
		cfg:      cfg,
		store:    dataStore,
		ai:       aiClient,
		sessions: sessions,
		history:  historySvc,
		search:   searchSvc,
		exporter: exportSvc,
		log:      zap.S(),
	}
	if blobStore != nil {
		s.blob = blobStore
	}
	return s
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// Accounts and sessions

func (s *Service) Signup(ctx context.Context, name, email, password string) (Session, error) {
	name = strings.TrimSpace(name)
	email = strings.ToLower(strings.TrimSpace(email))
	if name == "" || email == "" || !strings.Contains(email, "@") {
		return Session{}, errValidation("name and a valid email are required")
	}

	hash, err := authpw.Hash(password)
	if err != nil {
		if errors.Is(err, authpw.ErrTooShort) {
			return Session{}, errValidation(err.Error())
		}
		return Session{}, err
	}

	if _, err := s.store.GetUserByEmail(ctx, email); err == nil {
		return Session{}, errConflict("email already registered")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return Session{}, err
	}

	user := store.User{
		ID:           util.NewID("usr"),
		Name:         name,
		Email:        email,
		PasswordHash: hash,
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		return Session{}, err
	}
	return s.issueSession(ctx, user)
}

func (s *Service) Login(ctx context.Context, email, password string) (Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	user, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Session{}, errUnauthorized("invalid credentials")
		}
		return Session{}, err
	}
	if !authpw.Verify(password, user.PasswordHash) {
		return Session{}, errUnauthorized("invalid credentials")
	}
	return s.issueSession(ctx, user)
}

func (s *Service) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	tokenHash := auth.HashToken(refreshToken)
	userID, err := s.sessions.Lookup(ctx, tokenHash)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return Session{}, errUnauthorized("refresh token invalid")
		}
		return Session{}, err
	}
	if err := s.sessions.Revoke(ctx, tokenHash); err != nil {
		return Session{}, err
	}
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return Session{}, err
	}
	return s.issueSession(ctx, user)
}

func (s *Service) issueSession(ctx context.Context, user store.User) (Session, error) {
	now := time.Now()
	expiresAt := now.Add(s.cfg.AccessTTL)

	token, err := auth.IssueToken([]byte(s.cfg.JWTSecret), user.ID, user.Name, expiresAt)
	if err != nil {
		return Session{}, err
	}

	refresh := util.NewID("rft") + util.NewID("")
	if err := s.sessions.Save(ctx, auth.HashToken(refresh), user.ID, now.Add(s.cfg.RefreshTTL)); err != nil {
		return Session{}, err
	}

	return Session{
		Token:        token,
		RefreshToken: refresh,
		UserID:       user.ID,
		UserName:     user.Name,
		ExpiresAt:    expiresAt,
	}, nil
}

func (s *Service) SessionFromToken(ctx context.Context, token string) (Session, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.JWTSecret), token)
	if err != nil {
		return Session{}, err
	}
	user, err := s.store.GetUserByID(ctx, claims.Subject)
	if err != nil {
		return Session{}, err
	}
	return Session{
		Token:     token,
		UserID:    user.ID,
		UserName:  user.Name,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	return s.sessions.Revoke(ctx, auth.HashToken(refreshToken))
}

func (s *Service) Me(ctx context.Context, userID string) (map[string]any, error) {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"id":        user.ID,
		"name":      user.Name,
		"email":     user.Email,
		"createdAt": user.CreatedAt,
	}, nil
}

func (s *Service) UpdateMe(ctx context.Context, userID, name, email string) (map[string]any, error) {
	name = strings.TrimSpace(name)
	email = strings.ToLower(strings.TrimSpace(email))
	if name == "" || email == "" || !strings.Contains(email, "@") {
		return nil, errValidation("name and a valid email are required")
	}
	if err := s.store.UpdateUser(ctx, userID, name, email); err != nil {
		return nil, err
	}
	return s.Me(ctx, userID)
}

func (s *Service) DeleteMe(ctx context.Context, userID string) error {
	ideas, err := s.store.ListIdeasByUser(ctx, userID)
	if err != nil {
		return err
	}
	if err := s.store.DeleteUser(ctx, userID); err != nil {
		return err
	}
	for _, idea := range ideas {
		s.search.Delete(idea.ID)
		if err := s.history.Remove(idea.ID); err != nil {
			s.log.Warnw("remove idea history", "idea", idea.ID, "error", err)
		}
	}
	return nil
}

// Ideas

func (s *Service) CreateIdea(ctx context.Context, callerID string, input CreateIdeaInput) (map[string]any, error) {
	owner, err := s.store.GetUserByID(ctx, callerID)
	if err != nil {
		return nil, err
	}

	title := strings.TrimSpace(input.Title)
	notes := strings.TrimSpace(input.Notes)
	if title == "" || notes == "" {
		return nil, errValidation("title and notes are required")
	}

	visibility := input.Visibility
	if visibility == "" {
		visibility = store.VisibilityPublic
	}
	if _, ok := allowedVisibility[visibility]; !ok {
		return nil, errValidation("visibility must be public, private or password")
	}
	passwordHash := ""
	if visibility == store.VisibilityPassword {
		if strings.TrimSpace(input.Password) == "" {
			return nil, errValidation("password is required for password visibility")
		}
		passwordHash, err = authpw.HashAny(input.Password)
		if err != nil {
			return nil, err
		}
	}

	if improved := s.improveTitle(ctx, title, notes); improved != "" {
		title = improved
	}
	publicMD, privateMD := s.draftDocuments(ctx, title, input)

	idea := store.Idea{
		ID:           util.NewID("idea"),
		UserID:       callerID,
		Title:        title,
		PublicMD:     publicMD,
		PrivateMD:    privateMD,
		Visibility:   visibility,
		PasswordHash: passwordHash,
		ShareHash:    util.NewShareHash(),
		Clonable:     input.Clonable,
	}
	if err := s.store.InsertIdea(ctx, idea); err != nil {
		return nil, err
	}

	raw := fmt.Sprintf("NOTES:\n%s", input.Notes)
	if strings.TrimSpace(input.Links) != "" {
		raw += fmt.Sprintf("\n\nLINKS:\n%s", input.Links)
	}
	if strings.TrimSpace(input.Summary) != "" {
		raw += fmt.Sprintf("\n\nSUMMARY:\n%s", input.Summary)
	}
	if err := s.store.InsertRepoItem(ctx, store.RepoItem{
		ID:         util.NewID("repo"),
		IdeaID:     idea.ID,
		Name:       "Raw submission",
		Type:       store.RepoTypeRawSubmission,
		Content:    raw,
		Visibility: store.VisibilityPrivate,
	}); err != nil {
		return nil, err
	}

	s.seedClarifyingQuestions(ctx, idea, notes)

	if err := s.history.Ensure(idea.ID, snapshotOf(idea), owner.Name); err != nil {
		s.log.Warnw("init idea history", "idea", idea.ID, "error", err)
	}
	if idea.Visibility == store.VisibilityPublic {
		s.search.Index(searchRecord(idea, owner.Name))
	}

	return s.ideaPayload(idea, owner.Name, true), nil
}

// improveTitle asks the completion backend for a tighter title. Anything but
// a short successful completion falls back to the submitted title.
func (s *Service) improveTitle(ctx context.Context, title, notes string) string {
	result := s.ai.Complete(ctx, prompt.SystemInstruction, prompt.ImproveTitle(title, notes))
	if !result.OK() {
		return ""
	}
	improved := strings.TrimSpace(strings.Trim(strings.TrimSpace(result.Text), `"`))
	if improved == "" || len(improved) > maxTitleLength || strings.Contains(improved, "\n") {
		return ""
	}
	return improved
}

// draftDocuments asks the backend for the initial public/private markdown.
// Fallbacks keep idea creation working with no backend at all: notes become
// the public document, the summary (or notes again) the private one.
func (s *Service) draftDocuments(ctx context.Context, title string, input CreateIdeaInput) (string, string) {
	publicMD := strings.TrimSpace(input.Notes)
	privateMD := strings.TrimSpace(input.Summary)
	if privateMD == "" {
		privateMD = publicMD
	}

	result := s.ai.Complete(ctx, prompt.RefinementSystem, prompt.Draft(title, input.Notes, input.Links, input.Summary))
	if !result.OK() {
		return publicMD, privateMD
	}
	drafted := proposal.ParseRefinement(result.Text)
	if strings.TrimSpace(drafted.PublicMD) != "" {
		publicMD = drafted.PublicMD
	}
	if strings.TrimSpace(drafted.PrivateMD) != "" {
		privateMD = drafted.PrivateMD
	}
	return publicMD, privateMD
}

// seedClarifyingQuestions records open questions for a new idea. Best effort:
// any failure is logged and creation proceeds.
func (s *Service) seedClarifyingQuestions(ctx context.Context, idea store.Idea, notes string) {
	result := s.ai.Complete(ctx, prompt.SystemInstruction, prompt.Clarify(idea.Title, notes))
	if !result.OK() {
		return
	}
	questions := parseQuestionList(result.Text)
	if len(questions) > 5 {
		questions = questions[:5]
	}
	for _, question := range questions {
		if err := s.store.InsertUnansweredQuestion(ctx, store.UnansweredQuestion{
			ID:       util.NewID("uq"),
			IdeaID:   idea.ID,
			Question: question,
		}); err != nil {
			s.log.Warnw("seed clarifying question", "idea", idea.ID, "error", err)
			return
		}
	}
}

// parseQuestionList accepts a JSON array of strings, falling back to
// splitting lines and stripping list markers.
func parseQuestionList(raw string) []string {
	raw = strings.TrimSpace(raw)

	var parsed []string
	if start := strings.Index(raw, "["); start >= 0 {
		if end := strings.LastIndex(raw, "]"); end > start {
			if err := json.Unmarshal([]byte(raw[start:end+1]), &parsed); err == nil {
				return trimNonEmpty(parsed)
			}
		}
	}

	var questions []string
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimLeft(line, "-*0123456789. )")
		line = strings.TrimSpace(line)
		if strings.Contains(line, "?") {
			questions = append(questions, line)
		}
	}
	return questions
}

func trimNonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func (s *Service) GetIdea(ctx context.Context, ideaID, callerID, password string) (map[string]any, error) {
	idea, err := s.store.GetIdea(ctx, ideaID)
	if err != nil {
		return nil, err
	}
	owner, err := s.store.GetUserByID(ctx, idea.UserID)
	if err != nil {
		return nil, err
	}
	if callerID == idea.UserID {
		return s.ideaPayload(idea, owner.Name, true), nil
	}
	if gateErr := gateViewable(idea, password); gateErr != nil {
		return nil, gateErr
	}
	return s.ideaPayload(idea, owner.Name, false), nil
}

func (s *Service) UpdateIdea(ctx context.Context, ideaID, callerID string, input UpdateIdeaInput) (map[string]any, error) {
	idea, err := s.ownedIdea(ctx, ideaID, callerID)
	if err != nil {
		return nil, err
	}

	docChanged := false
	if input.Title != nil && strings.TrimSpace(*input.Title) != "" && *input.Title != idea.Title {
		idea.Title = strings.TrimSpace(*input.Title)
		docChanged = true
	}
	if input.PublicMD != nil {
		idea.PublicMD = *input.PublicMD
		docChanged = true
	}
	if input.PrivateMD != nil {
		idea.PrivateMD = *input.PrivateMD
		docChanged = true
	}
	if input.Clonable != nil {
		idea.Clonable = *input.Clonable
	}

	wasPublic := idea.Visibility == store.VisibilityPublic
	if input.Visibility != nil {
		if _, ok := allowedVisibility[*input.Visibility]; !ok {
			return nil, errValidation("visibility must be public, private or password")
		}
		idea.Visibility = *input.Visibility
	}
	if input.Password != nil && strings.TrimSpace(*input.Password) != "" {
		hash, err := authpw.HashAny(*input.Password)
		if err != nil {
			return nil, err
		}
		idea.PasswordHash = hash
	}
	if idea.Visibility == store.VisibilityPassword {
		if idea.PasswordHash == "" {
			return nil, errValidation("password is required for password visibility")
		}
	} else {
		idea.PasswordHash = ""
	}

	if err := s.store.UpdateIdea(ctx, idea); err != nil {
		return nil, err
	}

	owner, err := s.store.GetUserByID(ctx, idea.UserID)
	if err != nil {
		return nil, err
	}
	if docChanged {
		s.commitHistory(idea, owner.Name, "Update idea documents")
	}

	isPublic := idea.Visibility == store.VisibilityPublic
	switch {
	case isPublic:
		s.search.Index(searchRecord(idea, owner.Name))
	case wasPublic && !isPublic:
		s.search.Delete(idea.ID)
	}

	return s.ideaPayload(idea, owner.Name, true), nil
}

func (s *Service) DeleteIdea(ctx context.Context, ideaID, callerID string) error {
	if _, err := s.ownedIdea(ctx, ideaID, callerID); err != nil {
		return err
	}
	if err := s.store.DeleteIdea(ctx, ideaID); err != nil {
		return err
	}
	s.search.Delete(ideaID)
	if err := s.history.Remove(ideaID); err != nil {
		s.log.Warnw("remove idea history", "idea", ideaID, "error", err)
	}
	return nil
}

// CloneIdea copies an idea into the caller's account. Non-owners need the
// idea to be viewable and marked clonable, and never receive the private
// document. Clones start private with a fresh share hash.
func (s *Service) CloneIdea(ctx context.Context, ideaID, callerID, password string) (map[string]any, error) {
	source, err := s.store.GetIdea(ctx, ideaID)
	if err != nil {
		return nil, err
	}
	isOwner := source.UserID == callerID
	if !isOwner {
		if gateErr := gateViewable(source, password); gateErr != nil {
			return nil, gateErr
		}
		if !source.Clonable {
			return nil, errForbidden("idea is not clonable")
		}
	}

	caller, err := s.store.GetUserByID(ctx, callerID)
	if err != nil {
		return nil, err
	}

	parentID := source.ID
	clone := store.Idea{
		ID:         util.NewID("idea"),
		UserID:     callerID,
		Title:      source.Title,
		PublicMD:   source.PublicMD,
		Visibility: store.VisibilityPrivate,
		ShareHash:  util.NewShareHash(),
		Clonable:   source.Clonable,
		ParentID:   &parentID,
	}
	if isOwner {
		clone.PrivateMD = source.PrivateMD
	}
	if err := s.store.InsertIdea(ctx, clone); err != nil {
		return nil, err
	}
	if err := s.history.Ensure(clone.ID, snapshotOf(clone), caller.Name); err != nil {
		s.log.Warnw("init clone history", "idea", clone.ID, "error", err)
	}
	return s.ideaPayload(clone, caller.Name, true), nil
}

func (s *Service) Feed(ctx context.Context) ([]map[string]any, error) {
	ideas, err := s.store.ListPublicIdeas(ctx)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(ideas))
	for _, idea := range ideas {
		ownerName := ""
		if owner, err := s.store.GetUserByID(ctx, idea.UserID); err == nil {
			ownerName = owner.Name
		}
		items = append(items, map[string]any{
			"id":        idea.ID,
			"title":     idea.Title,
			"publicMd":  idea.PublicMD,
			"ownerName": ownerName,
			"shareHash": idea.ShareHash,
			"clonable":  idea.Clonable,
			"createdAt": idea.CreatedAt,
		})
	}
	return items, nil
}

func (s *Service) SearchFeed(ctx context.Context, text string, limit, offset int) search.Response {
	return s.search.Search(search.Query{Text: text, Limit: limit, Offset: offset})
}

func (s *Service) GetShared(ctx context.Context, shareHash, password string) (map[string]any, error) {
	idea, err := s.store.GetIdeaByShareHash(ctx, shareHash)
	if err != nil {
		return nil, err
	}
	if gateErr := gateViewable(idea, password); gateErr != nil {
		return nil, gateErr
	}

	ownerName := ""
	if owner, err := s.store.GetUserByID(ctx, idea.UserID); err == nil {
		ownerName = owner.Name
	}
	payload := s.ideaPayload(idea, ownerName, false)

	assets, err := s.store.ListAssets(ctx, idea.ID, true)
	if err != nil {
		return nil, err
	}
	payload["assets"] = assetPayloads(assets)

	items, err := s.store.ListRepoItems(ctx, idea.ID, store.RepoTypeQA)
	if err != nil {
		return nil, err
	}
	qa := make([]map[string]any, 0, len(items))
	for _, item := range items {
		if item.Visibility != store.VisibilityPublic {
			continue
		}
		qa = append(qa, map[string]any{
			"id":       item.ID,
			"question": item.Name,
			"answer":   item.Content,
		})
	}
	payload["qa"] = qa
	return payload, nil
}

func (s *Service) ExportIdea(ctx context.Context, ideaID, callerID, password string) (*export.Result, error) {
	idea, err := s.store.GetIdea(ctx, ideaID)
	if err != nil {
		return nil, err
	}
	if idea.UserID != callerID {
		if gateErr := gateViewable(idea, password); gateErr != nil {
			return nil, gateErr
		}
	}
	ownerName := ""
	if owner, err := s.store.GetUserByID(ctx, idea.UserID); err == nil {
		ownerName = owner.Name
	}
	return s.exporter.Export(export.Page{
		Title:     idea.Title,
		PublicMD:  idea.PublicMD,
		OwnerName: ownerName,
	})
}

func (s *Service) MyIdeas(ctx context.Context, callerID string) ([]map[string]any, error) {
	user, err := s.store.GetUserByID(ctx, callerID)
	if err != nil {
		return nil, err
	}
	ideas, err := s.store.ListIdeasByUser(ctx, callerID)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(ideas))
	for _, idea := range ideas {
		items = append(items, s.ideaPayload(idea, user.Name, true))
	}
	return items, nil
}

// Home is the owner dashboard: ideas with their open-question counts.
func (s *Service) Home(ctx context.Context, callerID string) (map[string]any, error) {
	ideas, err := s.store.ListIdeasByUser(ctx, callerID)
	if err != nil {
		return nil, err
	}

	openQuestions := 0
	items := make([]map[string]any, 0, len(ideas))
	for _, idea := range ideas {
		questions, err := s.store.ListUnansweredQuestions(ctx, idea.ID)
		if err != nil {
			return nil, err
		}
		openQuestions += len(questions)
		items = append(items, map[string]any{
			"id":            idea.ID,
			"title":         idea.Title,
			"visibility":    idea.Visibility,
			"openQuestions": len(questions),
			"createdAt":     idea.CreatedAt,
		})
	}
	return map[string]any{
		"ideas":         items,
		"ideaCount":     len(ideas),
		"openQuestions": openQuestions,
	}, nil
}

func (s *Service) IdeaHistory(ctx context.Context, ideaID, callerID string) ([]map[string]any, error) {
	if _, err := s.ownedIdea(ctx, ideaID, callerID); err != nil {
		return nil, err
	}
	revisions, err := s.history.History(ideaID, 50)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(revisions))
	for _, rev := range revisions {
		items = append(items, map[string]any{
			"hash":      rev.Hash,
			"message":   strings.TrimSpace(rev.Message),
			"author":    rev.Author,
			"createdAt": rev.CreatedAt,
		})
	}
	return items, nil
}

// Assets

func (s *Service) AddAsset(ctx context.Context, ideaID, callerID string, input AssetInput) (map[string]any, error) {
	if _, err := s.ownedIdea(ctx, ideaID, callerID); err != nil {
		return nil, err
	}
	if _, ok := allowedAssetTypes[input.Type]; !ok {
		return nil, errValidation("asset type must be link, note or file")
	}
	visibility := input.Visibility
	if visibility == "" {
		visibility = store.VisibilityPublic
	}
	if visibility != store.VisibilityPublic && visibility != store.VisibilityPrivate {
		return nil, errValidation("asset visibility must be public or private")
	}
	asset := store.Asset{
		ID:          util.NewID("ast"),
		IdeaID:      ideaID,
		Type:        input.Type,
		Title:       strings.TrimSpace(input.Title),
		URL:         strings.TrimSpace(input.URL),
		Description: input.Description,
		Visibility:  visibility,
	}
	if asset.Title == "" {
		return nil, errValidation("asset title is required")
	}
	if err := s.store.InsertAsset(ctx, asset); err != nil {
		return nil, err
	}
	return assetPayload(asset), nil
}

func (s *Service) UploadAsset(ctx context.Context, ideaID, callerID, filename, contentType string, body io.Reader, size int64, input AssetInput) (map[string]any, error) {
	if _, err := s.ownedIdea(ctx, ideaID, callerID); err != nil {
		return nil, err
	}
	if s.blob == nil {
		return nil, domainError(503, "UPLOADS_UNAVAILABLE", "File uploads are not configured", nil)
	}
	url, err := s.blob.Upload(ctx, ideaID, filename, contentType, body, size)
	if err != nil {
		return nil, err
	}
	input.Type = store.RepoTypeFile
	input.URL = url
	if strings.TrimSpace(input.Title) == "" {
		input.Title = filename
	}
	return s.AddAsset(ctx, ideaID, callerID, input)
}

func (s *Service) ListIdeaAssets(ctx context.Context, ideaID, callerID, password string) ([]map[string]any, error) {
	idea, err := s.store.GetIdea(ctx, ideaID)
	if err != nil {
		return nil, err
	}
	publicOnly := idea.UserID != callerID
	if publicOnly {
		if gateErr := gateViewable(idea, password); gateErr != nil {
			return nil, gateErr
		}
	}
	assets, err := s.store.ListAssets(ctx, ideaID, publicOnly)
	if err != nil {
		return nil, err
	}
	return assetPayloads(assets), nil
}

func (s *Service) DeleteAsset(ctx context.Context, ideaID, assetID, callerID string) error {
	if _, err := s.ownedIdea(ctx, ideaID, callerID); err != nil {
		return err
	}
	asset, err := s.store.GetAsset(ctx, assetID)
	if err != nil {
		return err
	}
	if asset.IdeaID != ideaID {
		return errNotFound("asset not found")
	}
	if asset.Type == store.RepoTypeFile && s.blob != nil {
		if err := s.blob.Remove(ctx, asset.URL); err != nil {
			s.log.Warnw("remove asset object", "asset", assetID, "error", err)
		}
	}
	return s.store.DeleteAsset(ctx, assetID)
}

// Helpers

// ownedIdea loads an idea and enforces that the caller owns it.
func (s *Service) ownedIdea(ctx context.Context, ideaID, callerID string) (store.Idea, error) {
	idea, err := s.store.GetIdea(ctx, ideaID)
	if err != nil {
		return store.Idea{}, err
	}
	if idea.UserID != callerID {
		return store.Idea{}, errForbidden("only the idea owner can do that")
	}
	return idea, nil
}

// gateViewable enforces share-link visibility for non-owner callers: private
// always rejects, password visibility requires a matching password.
func gateViewable(idea store.Idea, password string) *DomainError {
	switch idea.Visibility {
	case store.VisibilityPublic:
		return nil
	case store.VisibilityPassword:
		if password == "" || !authpw.Verify(password, idea.PasswordHash) {
			return errForbidden("password required")
		}
		return nil
	default:
		return errForbidden("idea is private")
	}
}

func (s *Service) ideaPayload(idea store.Idea, ownerName string, isOwner bool) map[string]any {
	payload := map[string]any{
		"id":         idea.ID,
		"title":      idea.Title,
		"publicMd":   idea.PublicMD,
		"visibility": idea.Visibility,
		"shareHash":  idea.ShareHash,
		"clonable":   idea.Clonable,
		"ownerName":  ownerName,
		"createdAt":  idea.CreatedAt,
	}
	if isOwner {
		payload["privateMd"] = idea.PrivateMD
		payload["ownerId"] = idea.UserID
		if idea.ParentID != nil {
			payload["parentId"] = *idea.ParentID
		}
	}
	return payload
}

func assetPayload(asset store.Asset) map[string]any {
	return map[string]any{
		"id":          asset.ID,
		"type":        asset.Type,
		"title":       asset.Title,
		"url":         asset.URL,
		"description": asset.Description,
		"visibility":  asset.Visibility,
	}
}

func assetPayloads(assets []store.Asset) []map[string]any {
	items := make([]map[string]any, 0, len(assets))
	for _, asset := range assets {
		items = append(items, assetPayload(asset))
	}
	return items
}

func snapshotOf(idea store.Idea) history.Snapshot {
	return history.Snapshot{
		Title:     idea.Title,
		PublicMD:  idea.PublicMD,
		PrivateMD: idea.PrivateMD,
	}
}

func searchRecord(idea store.Idea, ownerName string) search.Record {
	return search.Record{
		ID:        idea.ID,
		Title:     idea.Title,
		PublicMD:  idea.PublicMD,
		OwnerName: ownerName,
	}
}

// commitHistory records the current documents in the idea's revision repo.
// Advisory: failures are logged, never surfaced.
func (s *Service) commitHistory(idea store.Idea, author, message string) {
	if _, err := s.history.Commit(idea.ID, snapshotOf(idea), author, message); err != nil {
		s.log.Warnw("commit idea history", "idea", idea.ID, "error", err)
	}
}
