package store

import (
	"context"
	"database/sql"
	"fmt"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// ---- users ----

func (s *PostgresStore) CreateUser(ctx context.Context, user User) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, name, email, password_hash)
		VALUES ($1, $2, $3, $4)
	`, user.ID, user.Name, user.Email, user.PasswordHash)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (User, error) {
	var user User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, email, password_hash, created_at FROM users WHERE email=$1
	`, email).Scan(&user.ID, &user.Name, &user.Email, &user.PasswordHash, &user.CreatedAt)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

func (s *PostgresStore) GetUserByID(ctx context.Context, userID string) (User, error) {
	var user User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, email, password_hash, created_at FROM users WHERE id=$1
	`, userID).Scan(&user.ID, &user.Name, &user.Email, &user.PasswordHash, &user.CreatedAt)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

func (s *PostgresStore) UpdateUser(ctx context.Context, userID, name, email string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE users SET name=$2, email=$3 WHERE id=$1`, userID, name, email)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteUser(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id=$1`, userID)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return nil
}

// ---- ideas ----

const ideaColumns = `id, user_id, title, public_md, private_md, visibility, password_hash, share_hash, clonable, parent_id, created_at`

func scanIdea(row interface{ Scan(...any) error }) (Idea, error) {
	var idea Idea
	err := row.Scan(&idea.ID, &idea.UserID, &idea.Title, &idea.PublicMD, &idea.PrivateMD,
		&idea.Visibility, &idea.PasswordHash, &idea.ShareHash, &idea.Clonable, &idea.ParentID, &idea.CreatedAt)
	return idea, err
}

func (s *PostgresStore) InsertIdea(ctx context.Context, idea Idea) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO ideas (id, user_id, title, public_md, private_md, visibility, password_hash, share_hash, clonable, parent_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, idea.ID, idea.UserID, idea.Title, idea.PublicMD, idea.PrivateMD, idea.Visibility,
		idea.PasswordHash, idea.ShareHash, idea.Clonable, idea.ParentID)
	if err != nil {
		return fmt.Errorf("insert idea: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetIdea(ctx context.Context, ideaID string) (Idea, error) {
	return scanIdea(s.db.QueryRowContext(ctx, `SELECT `+ideaColumns+` FROM ideas WHERE id=$1`, ideaID))
}

func (s *PostgresStore) GetIdeaByShareHash(ctx context.Context, shareHash string) (Idea, error) {
	return scanIdea(s.db.QueryRowContext(ctx, `SELECT `+ideaColumns+` FROM ideas WHERE share_hash=$1`, shareHash))
}

// UpdateIdea rewrites the mutable fields of an idea record.
func (s *PostgresStore) UpdateIdea(ctx context.Context, idea Idea) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE ideas
		SET title=$2, public_md=$3, private_md=$4, visibility=$5, password_hash=$6, clonable=$7
		WHERE id=$1
	`, idea.ID, idea.Title, idea.PublicMD, idea.PrivateMD, idea.Visibility, idea.PasswordHash, idea.Clonable)
	if err != nil {
		return fmt.Errorf("update idea: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteIdea(ctx context.Context, ideaID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM ideas WHERE id=$1`, ideaID)
	if err != nil {
		return fmt.Errorf("delete idea: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListPublicIdeas(ctx context.Context) ([]Idea, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+ideaColumns+` FROM ideas WHERE visibility='public' ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list public ideas: %w", err)
	}
	defer rows.Close()
	return collectIdeas(rows)
}

func (s *PostgresStore) ListIdeasByUser(ctx context.Context, userID string) ([]Idea, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+ideaColumns+` FROM ideas WHERE user_id=$1 ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list ideas by user: %w", err)
	}
	defer rows.Close()
	return collectIdeas(rows)
}

func collectIdeas(rows *sql.Rows) ([]Idea, error) {
	var ideas []Idea
	for rows.Next() {
		idea, err := scanIdea(rows)
		if err != nil {
			return nil, fmt.Errorf("scan idea: %w", err)
		}
		ideas = append(ideas, idea)
	}
	return ideas, rows.Err()
}

// ---- repo items ----

func (s *PostgresStore) InsertRepoItem(ctx context.Context, item RepoItem) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO repo_items (id, idea_id, name, type, url, content, visibility)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, item.ID, item.IdeaID, item.Name, item.Type, item.URL, item.Content, item.Visibility)
	if err != nil {
		return fmt.Errorf("insert repo item: %w", err)
	}
	return nil
}

// ListRepoItems returns an idea's knowledge-base entries, optionally filtered
// by type. An empty itemType matches all types.
func (s *PostgresStore) ListRepoItems(ctx context.Context, ideaID, itemType string) ([]RepoItem, error) {
	query := `
		SELECT id, idea_id, name, type, url, content, visibility, created_at
		FROM repo_items WHERE idea_id=$1`
	args := []any{ideaID}
	if itemType != "" {
		query += ` AND type=$2`
		args = append(args, itemType)
	}
	query += ` ORDER BY created_at ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list repo items: %w", err)
	}
	defer rows.Close()

	var items []RepoItem
	for rows.Next() {
		var item RepoItem
		if err := rows.Scan(&item.ID, &item.IdeaID, &item.Name, &item.Type, &item.URL,
			&item.Content, &item.Visibility, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan repo item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (s *PostgresStore) GetRepoItem(ctx context.Context, itemID string) (RepoItem, error) {
	var item RepoItem
	err := s.db.QueryRowContext(ctx, `
		SELECT id, idea_id, name, type, url, content, visibility, created_at
		FROM repo_items WHERE id=$1
	`, itemID).Scan(&item.ID, &item.IdeaID, &item.Name, &item.Type, &item.URL,
		&item.Content, &item.Visibility, &item.CreatedAt)
	if err != nil {
		return RepoItem{}, err
	}
	return item, nil
}

func (s *PostgresStore) UpdateRepoItem(ctx context.Context, itemID, content, visibility string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE repo_items SET content=$2, visibility=$3 WHERE id=$1
	`, itemID, content, visibility)
	if err != nil {
		return fmt.Errorf("update repo item: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteRepoItem(ctx context.Context, itemID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM repo_items WHERE id=$1`, itemID)
	if err != nil {
		return fmt.Errorf("delete repo item: %w", err)
	}
	return nil
}

// ---- QA history ----

func (s *PostgresStore) InsertQAHistory(ctx context.Context, entry QAHistory) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO qa_history (id, idea_id, question, answer) VALUES ($1, $2, $3, $4)
	`, entry.ID, entry.IdeaID, entry.Question, entry.Answer)
	if err != nil {
		return fmt.Errorf("insert qa history: %w", err)
	}
	return nil
}

// RecentQAHistory returns the newest entries first; callers render them in
// chronological order.
func (s *PostgresStore) RecentQAHistory(ctx context.Context, ideaID string, limit int) ([]QAHistory, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, idea_id, question, answer, created_at
		FROM qa_history WHERE idea_id=$1
		ORDER BY created_at DESC LIMIT $2
	`, ideaID, limit)
	if err != nil {
		return nil, fmt.Errorf("recent qa history: %w", err)
	}
	defer rows.Close()

	var entries []QAHistory
	for rows.Next() {
		var entry QAHistory
		if err := rows.Scan(&entry.ID, &entry.IdeaID, &entry.Question, &entry.Answer, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan qa history: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// ---- unanswered questions ----

func (s *PostgresStore) InsertUnansweredQuestion(ctx context.Context, question UnansweredQuestion) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO unanswered_questions (id, idea_id, question) VALUES ($1, $2, $3)
	`, question.ID, question.IdeaID, question.Question)
	if err != nil {
		return fmt.Errorf("insert unanswered question: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListUnansweredQuestions(ctx context.Context, ideaID string) ([]UnansweredQuestion, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, idea_id, question, created_at
		FROM unanswered_questions WHERE idea_id=$1 ORDER BY created_at ASC
	`, ideaID)
	if err != nil {
		return nil, fmt.Errorf("list unanswered questions: %w", err)
	}
	defer rows.Close()

	var questions []UnansweredQuestion
	for rows.Next() {
		var question UnansweredQuestion
		if err := rows.Scan(&question.ID, &question.IdeaID, &question.Question, &question.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan unanswered question: %w", err)
		}
		questions = append(questions, question)
	}
	return questions, rows.Err()
}

func (s *PostgresStore) GetUnansweredQuestion(ctx context.Context, questionID string) (UnansweredQuestion, error) {
	var question UnansweredQuestion
	err := s.db.QueryRowContext(ctx, `
		SELECT id, idea_id, question, created_at FROM unanswered_questions WHERE id=$1
	`, questionID).Scan(&question.ID, &question.IdeaID, &question.Question, &question.CreatedAt)
	if err != nil {
		return UnansweredQuestion{}, err
	}
	return question, nil
}

// ---- assets ----

func (s *PostgresStore) InsertAsset(ctx context.Context, asset Asset) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO assets (id, idea_id, type, title, url, description, visibility)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, asset.ID, asset.IdeaID, asset.Type, asset.Title, asset.URL, asset.Description, asset.Visibility)
	if err != nil {
		return fmt.Errorf("insert asset: %w", err)
	}
	return nil
}

// ListAssets returns an idea's assets; publicOnly hides private attachments
// from non-owner callers.
func (s *PostgresStore) ListAssets(ctx context.Context, ideaID string, publicOnly bool) ([]Asset, error) {
	query := `SELECT id, idea_id, type, title, url, description, visibility FROM assets WHERE idea_id=$1`
	if publicOnly {
		query += ` AND visibility='public'`
	}
	rows, err := s.db.QueryContext(ctx, query, ideaID)
	if err != nil {
		return nil, fmt.Errorf("list assets: %w", err)
	}
	defer rows.Close()

	var assets []Asset
	for rows.Next() {
		var asset Asset
		if err := rows.Scan(&asset.ID, &asset.IdeaID, &asset.Type, &asset.Title, &asset.URL,
			&asset.Description, &asset.Visibility); err != nil {
			return nil, fmt.Errorf("scan asset: %w", err)
		}
		assets = append(assets, asset)
	}
	return assets, rows.Err()
}

func (s *PostgresStore) GetAsset(ctx context.Context, assetID string) (Asset, error) {
	var asset Asset
	err := s.db.QueryRowContext(ctx, `
		SELECT id, idea_id, type, title, url, description, visibility FROM assets WHERE id=$1
	`, assetID).Scan(&asset.ID, &asset.IdeaID, &asset.Type, &asset.Title, &asset.URL,
		&asset.Description, &asset.Visibility)
	if err != nil {
		return Asset{}, err
	}
	return asset, nil
}

func (s *PostgresStore) DeleteAsset(ctx context.Context, assetID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM assets WHERE id=$1`, assetID)
	if err != nil {
		return fmt.Errorf("delete asset: %w", err)
	}
	return nil
}

// ---- transactional chat operations ----

// ApplyProposal applies a chat proposal's document edits together with its QA
// history row in one transaction: either all of it lands or none of it does.
func (s *PostgresStore) ApplyProposal(ctx context.Context, apply ProposalApply, historyID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin apply tx: %w", err)
	}

	if apply.Title != nil {
		if _, err := tx.ExecContext(ctx, `UPDATE ideas SET title=$2 WHERE id=$1`, apply.IdeaID, *apply.Title); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("apply title: %w", err)
		}
	}
	if apply.PublicMD != nil {
		if _, err := tx.ExecContext(ctx, `UPDATE ideas SET public_md=$2 WHERE id=$1`, apply.IdeaID, *apply.PublicMD); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("apply public markdown: %w", err)
		}
	}
	if apply.PrivateMD != nil {
		if _, err := tx.ExecContext(ctx, `UPDATE ideas SET private_md=$2 WHERE id=$1`, apply.IdeaID, *apply.PrivateMD); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("apply private markdown: %w", err)
		}
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO qa_history (id, idea_id, question, answer) VALUES ($1, $2, $3, $4)
	`, historyID, apply.IdeaID, apply.Question, apply.Answer); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("append qa history: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit apply tx: %w", err)
	}
	return nil
}

// ResolveUnansweredQuestion performs the terminal ledger transition: delete the
// open question and, in the same transaction, append the QA history row and the
// private knowledge-base entry. Returns false when the question was already
// resolved (no row deleted), in which case nothing is written.
func (s *PostgresStore) ResolveUnansweredQuestion(ctx context.Context, question UnansweredQuestion, answer, historyID, repoItemID string) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin resolve tx: %w", err)
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM unanswered_questions WHERE id=$1`, question.ID)
	if err != nil {
		_ = tx.Rollback()
		return false, fmt.Errorf("delete unanswered question: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		_ = tx.Rollback()
		return false, fmt.Errorf("resolve rows affected: %w", err)
	}
	if affected == 0 {
		_ = tx.Rollback()
		return false, nil
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO qa_history (id, idea_id, question, answer) VALUES ($1, $2, $3, $4)
	`, historyID, question.IdeaID, question.Question, answer); err != nil {
		_ = tx.Rollback()
		return false, fmt.Errorf("append qa history: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO repo_items (id, idea_id, name, type, url, content, visibility)
		VALUES ($1, $2, $3, 'qa', '', $4, 'private')
	`, repoItemID, question.IdeaID, "Q: "+question.Question, "A: "+answer); err != nil {
		_ = tx.Rollback()
		return false, fmt.Errorf("append repo item: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit resolve tx: %w", err)
	}
	return true, nil
}
