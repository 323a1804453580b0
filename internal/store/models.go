package store

import "time"

type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// Idea visibility values. PasswordHash is set iff Visibility == "password".
const (
	VisibilityPublic   = "public"
	VisibilityPrivate  = "private"
	VisibilityPassword = "password"
)

type Idea struct {
	ID           string
	UserID       string
	Title        string
	PublicMD     string
	PrivateMD    string
	Visibility   string
	PasswordHash string
	ShareHash    string
	Clonable     bool
	ParentID     *string
	CreatedAt    time.Time
}

// RepoItem types. QA pairs are encoded as Name "Q: …" / Content "A: …".
const (
	RepoTypeQA            = "qa"
	RepoTypeRawSubmission = "raw_submission"
	RepoTypeLink          = "link"
	RepoTypeNote          = "note"
	RepoTypeFile          = "file"
)

type RepoItem struct {
	ID         string
	IdeaID     string
	Name       string
	Type       string
	URL        string
	Content    string
	Visibility string
	CreatedAt  time.Time
}

type QAHistory struct {
	ID        string
	IdeaID    string
	Question  string
	Answer    string
	CreatedAt time.Time
}

type UnansweredQuestion struct {
	ID        string
	IdeaID    string
	Question  string
	CreatedAt time.Time
}

type Asset struct {
	ID          string
	IdeaID      string
	Type        string
	Title       string
	URL         string
	Description string
	Visibility  string
}

// ProposalApply carries the field updates of one chat proposal. Nil means
// "no change"; the QA history row is written in the same transaction as the
// document updates.
type ProposalApply struct {
	IdeaID    string
	Title     *string
	PublicMD  *string
	PrivateMD *string
	Question  string
	Answer    string
}
