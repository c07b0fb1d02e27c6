package db

import (
	"context"
	"fmt"

	"jobpilot-edge/internal/identity"
	"jobpilot-edge/internal/models"
)

var _ identity.Store = (*PostgresDB)(nil)

// featureTables are the tables a feature lookup may read. Table names are
// interpolated into SQL, so only these are accepted.
var featureTables = map[string]bool{
	"resume_requests":       true,
	"job_cover_letter":      true,
	"job_analysis":          true,
	"interview_prep":        true,
	"job_linkedin":          true,
	"company_role_analysis": true,
}

func (db *PostgresDB) FeatureRecord(ctx context.Context, table, id string) (*models.FeatureRecord, error) {
	if !featureTables[table] {
		return nil, fmt.Errorf("db: %q is not a feature table", table)
	}

	query := fmt.Sprintf(`
        SELECT id::text, COALESCE(user_id::text, ''), COALESCE(company_name, ''), COALESCE(job_title, ''), created_at
        FROM %s
        WHERE id = $1
    `, table)

	var r models.FeatureRecord
	err := db.pool.QueryRow(ctx, query, id).Scan(&r.ID, &r.UserID, &r.CompanyName, &r.JobTitle, &r.CreatedAt)
	if err != nil {
		if isNoRows(err) {
			return nil, identity.ErrNoRows
		}
		return nil, fmt.Errorf("failed to get %s record: %w", table, err)
	}

	return &r, nil
}

const profileColumns = `id::text, COALESCE(user_id::text, ''), COALESCE(bio, ''), COALESCE(resume_url, ''),
        bot_activated, telegram_chat_id, created_at, updated_at`

func (db *PostgresDB) Profile(ctx context.Context, id string) (*models.UserProfile, error) {
	query := `SELECT ` + profileColumns + ` FROM user_profiles WHERE id = $1`
	return db.scanProfile(ctx, query, id)
}

func (db *PostgresDB) ProfileByTelegramChat(ctx context.Context, chatID int64) (*models.UserProfile, error) {
	query := `SELECT ` + profileColumns + ` FROM user_profiles WHERE telegram_chat_id = $1`
	return db.scanProfile(ctx, query, chatID)
}

func (db *PostgresDB) scanProfile(ctx context.Context, query string, arg interface{}) (*models.UserProfile, error) {
	var (
		p      models.UserProfile
		chatID *int64
	)
	err := db.pool.QueryRow(ctx, query, arg).Scan(
		&p.ID, &p.UserID, &p.Bio, &p.ResumeURL,
		&p.BotActivated, &chatID, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if isNoRows(err) {
			return nil, identity.ErrNoRows
		}
		return nil, fmt.Errorf("failed to get user profile: %w", err)
	}
	p.TelegramChatID = chatID
	return &p, nil
}

const userColumns = `id::text, auth_id, COALESCE(email, ''), COALESCE(display_name, ''), created_at, updated_at`

// User loads an account by internal id.
func (db *PostgresDB) User(ctx context.Context, id string) (*models.User, error) {
	return db.scanUser(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

// UserByAuthID loads an account by its identity-provider subject.
func (db *PostgresDB) UserByAuthID(ctx context.Context, authID string) (*models.User, error) {
	return db.scanUser(ctx, `SELECT `+userColumns+` FROM users WHERE auth_id = $1`, authID)
}

func (db *PostgresDB) scanUser(ctx context.Context, query, arg string) (*models.User, error) {
	var u models.User
	err := db.pool.QueryRow(ctx, query, arg).Scan(&u.ID, &u.AuthID, &u.Email, &u.DisplayName, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if isNoRows(err) {
			return nil, identity.ErrNoRows
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &u, nil
}
