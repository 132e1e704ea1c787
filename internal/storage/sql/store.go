// Package sql provides the durable storage.Storage implementation backed by
// SQLite or PostgreSQL through sqlx.
package sql

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"

	"github.com/Devolutions/devolutions-gateway-sub001/internal/domain"
)

// Each supported driver carries its own migration dialect.
//
//go:embed migrations/sqlite3/*.sql migrations/postgres/*.sql
var embedMigrations embed.FS

// isUniqueViolation checks if an error is a UNIQUE constraint violation.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	// SQLite
	if strings.Contains(errStr, "UNIQUE constraint failed") {
		return true
	}
	// PostgreSQL
	if strings.Contains(errStr, "duplicate key value violates unique constraint") {
		return true
	}
	return false
}

// wrapUniqueError converts UNIQUE violations to domain.ErrAlreadyExists.
func wrapUniqueError(err error) error {
	if isUniqueViolation(err) {
		return domain.ErrAlreadyExists
	}
	return err
}

// Store implements the storage.Storage interface using SQL.
type Store struct {
	db     *sqlx.DB
	driver string
}

// New creates a new SQL store and runs pending migrations.
func New(driver, dsn string) (*Store, error) {
	db, err := sqlx.Connect(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	goose.SetBaseFS(embedMigrations)
	if err := goose.SetDialect(driver); err != nil {
		return nil, fmt.Errorf("setting goose dialect: %w", err)
	}

	if err := goose.Up(db.DB, "migrations/"+driver); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return &Store{db: db, driver: driver}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// inTx runs fn inside a transaction, committing on nil and rolling back on
// error.
func (s *Store) inTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// ============================================
// API Keys
// ============================================

func (s *Store) CreateAPIKey(ctx context.Context, key *domain.APIKey) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO api_keys (id, name, key_hash, key_prefix, created_at, last_used_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		key.ID, key.Name, key.KeyHash, key.KeyPrefix, key.CreatedAt, key.LastUsedAt)
	return wrapUniqueError(err)
}

func (s *Store) GetAPIKeyByHash(ctx context.Context, keyHash string) (*domain.APIKey, error) {
	var key domain.APIKey
	err := s.db.GetContext(ctx, &key,
		`SELECT id, name, key_hash, key_prefix, created_at, last_used_at FROM api_keys WHERE key_hash = $1`, keyHash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return &key, err
}

func (s *Store) ListAPIKeys(ctx context.Context) ([]*domain.APIKey, error) {
	var keys []*domain.APIKey
	err := s.db.SelectContext(ctx, &keys,
		`SELECT id, name, key_hash, key_prefix, created_at, last_used_at FROM api_keys ORDER BY created_at`)
	return keys, err
}

func (s *Store) DeleteAPIKey(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM api_keys WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (s *Store) UpdateAPIKeyLastUsed(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE api_keys SET last_used_at = $1 WHERE id = $2`, time.Now().UTC(), id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (s *Store) CountAPIKeys(ctx context.Context) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM api_keys`)
	return count, err
}

// ============================================
// Rules
// ============================================

// ruleRow is the flat representation of a rule; the filters are stored as
// JSON documents.
type ruleRow struct {
	ID            string    `db:"id"`
	Name          string    `db:"name"`
	ElevationKind string    `db:"elevation_kind"`
	AskerFilter   string    `db:"asker_filter"`
	TargetFilter  string    `db:"target_filter"`
	CreatedAt     time.Time `db:"created_at"`
	UpdatedAt     time.Time `db:"updated_at"`
}

func (r ruleRow) toDomain() (*domain.Rule, error) {
	rule := &domain.Rule{
		ID:            r.ID,
		Name:          r.Name,
		ElevationKind: domain.ElevationKind(r.ElevationKind),
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
	if err := json.Unmarshal([]byte(r.AskerFilter), &rule.Asker); err != nil {
		return nil, fmt.Errorf("decoding asker filter of rule %s: %w", r.ID, err)
	}
	if err := json.Unmarshal([]byte(r.TargetFilter), &rule.Target); err != nil {
		return nil, fmt.Errorf("decoding target filter of rule %s: %w", r.ID, err)
	}
	return rule, nil
}

func encodeRule(rule *domain.Rule) (askerJSON, targetJSON string, err error) {
	asker, err := json.Marshal(rule.Asker)
	if err != nil {
		return "", "", err
	}
	target, err := json.Marshal(rule.Target)
	if err != nil {
		return "", "", err
	}
	return string(asker), string(target), nil
}

func (s *Store) CreateRule(ctx context.Context, rule *domain.Rule) error {
	asker, target, err := encodeRule(rule)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO rules (id, name, elevation_kind, asker_filter, target_filter, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		rule.ID, rule.Name, string(rule.ElevationKind), asker, target, rule.CreatedAt, rule.UpdatedAt)
	return wrapUniqueError(err)
}

func (s *Store) GetRule(ctx context.Context, id string) (*domain.Rule, error) {
	var row ruleRow
	err := s.db.GetContext(ctx, &row,
		`SELECT id, name, elevation_kind, asker_filter, target_filter, created_at, updated_at
		 FROM rules WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return row.toDomain()
}

func (s *Store) ListRules(ctx context.Context) ([]*domain.Rule, error) {
	var rows []ruleRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT id, name, elevation_kind, asker_filter, target_filter, created_at, updated_at
		 FROM rules ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	rules := make([]*domain.Rule, 0, len(rows))
	for _, row := range rows {
		rule, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

func (s *Store) UpdateRule(ctx context.Context, rule *domain.Rule) error {
	asker, target, err := encodeRule(rule)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE rules SET name = $1, elevation_kind = $2, asker_filter = $3, target_filter = $4, updated_at = $5
		 WHERE id = $6`,
		rule.Name, string(rule.ElevationKind), asker, target, rule.UpdatedAt, rule.ID)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (s *Store) DeleteRule(ctx context.Context, id string) error {
	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		var refs int
		if err := tx.GetContext(ctx, &refs, `SELECT COUNT(*) FROM profile_rules WHERE rule_id = $1`, id); err != nil {
			return err
		}
		if refs > 0 {
			return domain.ErrInvalidParameter
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM rules WHERE id = $1`, id)
		if err != nil {
			return err
		}
		return requireAffected(res)
	})
}

// ============================================
// Profiles
// ============================================

type profileRow struct {
	ID                      string    `db:"id"`
	Name                    string    `db:"name"`
	Description             string    `db:"description"`
	DefaultElevationKind    string    `db:"default_elevation_kind"`
	ElevationMethod         string    `db:"elevation_method"`
	TemporaryEnabled        bool      `db:"temporary_enabled"`
	TemporaryMaximumSeconds int64     `db:"temporary_maximum_seconds"`
	SessionEnabled          bool      `db:"session_enabled"`
	PromptSecureDesktop     bool      `db:"prompt_secure_desktop"`
	CreatedAt               time.Time `db:"created_at"`
	UpdatedAt               time.Time `db:"updated_at"`
}

func (r profileRow) toDomain() *domain.Profile {
	return &domain.Profile{
		ID:                   r.ID,
		Name:                 r.Name,
		Description:          r.Description,
		DefaultElevationKind: domain.ElevationKind(r.DefaultElevationKind),
		ElevationMethod:      domain.ElevationMethod(r.ElevationMethod),
		Temporary: domain.TemporaryElevationConfig{
			Enabled:        r.TemporaryEnabled,
			MaximumSeconds: r.TemporaryMaximumSeconds,
		},
		Session:             domain.SessionElevationConfig{Enabled: r.SessionEnabled},
		PromptSecureDesktop: r.PromptSecureDesktop,
		CreatedAt:           r.CreatedAt,
		UpdatedAt:           r.UpdatedAt,
	}
}

const profileColumns = `id, name, description, default_elevation_kind, elevation_method,
	temporary_enabled, temporary_maximum_seconds, session_enabled, prompt_secure_desktop,
	created_at, updated_at`

func (s *Store) CreateProfile(ctx context.Context, profile *domain.Profile) error {
	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO profiles (`+profileColumns+`)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
			profile.ID, profile.Name, profile.Description,
			string(profile.DefaultElevationKind), string(profile.ElevationMethod),
			profile.Temporary.Enabled, profile.Temporary.MaximumSeconds,
			profile.Session.Enabled, profile.PromptSecureDesktop,
			profile.CreatedAt, profile.UpdatedAt)
		if err != nil {
			return wrapUniqueError(err)
		}
		return s.replaceProfileRules(ctx, tx, profile.ID, profile.RuleIDs)
	})
}

func (s *Store) GetProfile(ctx context.Context, id string) (*domain.Profile, error) {
	var row profileRow
	err := s.db.GetContext(ctx, &row, `SELECT `+profileColumns+` FROM profiles WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	profile := row.toDomain()
	if err := s.db.SelectContext(ctx, &profile.RuleIDs,
		`SELECT rule_id FROM profile_rules WHERE profile_id = $1 ORDER BY position`, id); err != nil {
		return nil, err
	}
	return profile, nil
}

func (s *Store) ListProfiles(ctx context.Context) ([]*domain.Profile, error) {
	var rows []profileRow
	if err := s.db.SelectContext(ctx, &rows,
		`SELECT `+profileColumns+` FROM profiles ORDER BY created_at, id`); err != nil {
		return nil, err
	}
	profiles := make([]*domain.Profile, 0, len(rows))
	for _, row := range rows {
		profile := row.toDomain()
		if err := s.db.SelectContext(ctx, &profile.RuleIDs,
			`SELECT rule_id FROM profile_rules WHERE profile_id = $1 ORDER BY position`, profile.ID); err != nil {
			return nil, err
		}
		profiles = append(profiles, profile)
	}
	return profiles, nil
}

func (s *Store) UpdateProfile(ctx context.Context, profile *domain.Profile) error {
	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE profiles SET name = $1, description = $2, default_elevation_kind = $3,
			        elevation_method = $4, temporary_enabled = $5, temporary_maximum_seconds = $6,
			        session_enabled = $7, prompt_secure_desktop = $8, updated_at = $9
			 WHERE id = $10`,
			profile.Name, profile.Description, string(profile.DefaultElevationKind),
			string(profile.ElevationMethod), profile.Temporary.Enabled, profile.Temporary.MaximumSeconds,
			profile.Session.Enabled, profile.PromptSecureDesktop, profile.UpdatedAt, profile.ID)
		if err != nil {
			return err
		}
		if err := requireAffected(res); err != nil {
			return err
		}
		return s.replaceProfileRules(ctx, tx, profile.ID, profile.RuleIDs)
	})
}

func (s *Store) DeleteProfile(ctx context.Context, id string) error {
	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		for _, stmt := range []string{
			`DELETE FROM active_profiles WHERE profile_id = $1`,
			`DELETE FROM assignments WHERE profile_id = $1`,
			`DELETE FROM profile_rules WHERE profile_id = $1`,
		} {
			if _, err := tx.ExecContext(ctx, stmt, id); err != nil {
				return err
			}
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM profiles WHERE id = $1`, id)
		if err != nil {
			return err
		}
		return requireAffected(res)
	})
}

// replaceProfileRules rewrites the ordered rule list of a profile. A rule id
// that does not exist is a dangling reference and rejected.
func (s *Store) replaceProfileRules(ctx context.Context, tx *sqlx.Tx, profileID string, ruleIDs []string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM profile_rules WHERE profile_id = $1`, profileID); err != nil {
		return err
	}
	for position, ruleID := range ruleIDs {
		var exists int
		if err := tx.GetContext(ctx, &exists, `SELECT COUNT(*) FROM rules WHERE id = $1`, ruleID); err != nil {
			return err
		}
		if exists == 0 {
			return domain.ErrInvalidParameter
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO profile_rules (profile_id, rule_id, position) VALUES ($1, $2, $3)`,
			profileID, ruleID, position); err != nil {
			return err
		}
	}
	return nil
}

// ============================================
// Users, assignments and profile selection
// ============================================

// ensureUser upserts the user by SID pair and returns its row id. Names are
// refreshed on every call since accounts can be renamed.
func (s *Store) ensureUser(ctx context.Context, tx *sqlx.Tx, user domain.User) (int64, error) {
	var id int64
	err := tx.GetContext(ctx, &id,
		`SELECT id FROM users WHERE account_sid = $1 AND domain_sid = $2`, user.AccountSID, user.DomainSID)
	if err == nil {
		_, err = tx.ExecContext(ctx,
			`UPDATE users SET account_name = $1, domain_name = $2 WHERE id = $3`,
			user.AccountName, user.DomainName, id)
		return id, err
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, err
	}

	const insert = `INSERT INTO users (account_name, domain_name, account_sid, domain_sid) VALUES ($1, $2, $3, $4)`
	if s.driver == "postgres" {
		err = tx.GetContext(ctx, &id, insert+` RETURNING id`,
			user.AccountName, user.DomainName, user.AccountSID, user.DomainSID)
		return id, err
	}
	res, err := tx.ExecContext(ctx, insert,
		user.AccountName, user.DomainName, user.AccountSID, user.DomainSID)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func userID(ctx context.Context, q sqlx.QueryerContext, user domain.User) (int64, bool, error) {
	var id int64
	err := sqlx.GetContext(ctx, q, &id,
		`SELECT id FROM users WHERE account_sid = $1 AND domain_sid = $2`, user.AccountSID, user.DomainSID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	return id, err == nil, err
}

func (s *Store) GetAssignment(ctx context.Context, profileID string) (*domain.Assignment, error) {
	if _, err := s.GetProfile(ctx, profileID); err != nil {
		return nil, err
	}
	var users []domain.User
	err := s.db.SelectContext(ctx, &users,
		`SELECT u.account_name, u.domain_name, u.account_sid, u.domain_sid
		 FROM assignments a JOIN users u ON u.id = a.user_id
		 WHERE a.profile_id = $1 ORDER BY u.domain_sid, u.account_sid`, profileID)
	if err != nil {
		return nil, err
	}
	return &domain.Assignment{ProfileID: profileID, Users: users}, nil
}

func (s *Store) ListAssignments(ctx context.Context) ([]*domain.Assignment, error) {
	var profileIDs []string
	if err := s.db.SelectContext(ctx, &profileIDs,
		`SELECT DISTINCT p.id FROM profiles p JOIN assignments a ON a.profile_id = p.id
		 ORDER BY p.id`); err != nil {
		return nil, err
	}
	out := make([]*domain.Assignment, 0, len(profileIDs))
	for _, id := range profileIDs {
		assignment, err := s.GetAssignment(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, assignment)
	}
	return out, nil
}

func (s *Store) SetAssignment(ctx context.Context, profileID string, users []domain.User) error {
	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		var exists int
		if err := tx.GetContext(ctx, &exists, `SELECT COUNT(*) FROM profiles WHERE id = $1`, profileID); err != nil {
			return err
		}
		if exists == 0 {
			return domain.ErrNotFound
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM assignments WHERE profile_id = $1`, profileID); err != nil {
			return err
		}
		ids := make([]int64, 0, len(users))
		for _, user := range users {
			id, err := s.ensureUser(ctx, tx, user)
			if err != nil {
				return err
			}
			ids = append(ids, id)
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO assignments (profile_id, user_id) VALUES ($1, $2)`, profileID, id); err != nil {
				return err
			}
		}
		// Drop stale selections of this profile by users no longer assigned.
		query := `DELETE FROM active_profiles WHERE profile_id = $1`
		args := []any{profileID}
		if len(ids) > 0 {
			placeholders := make([]string, len(ids))
			for i, id := range ids {
				placeholders[i] = fmt.Sprintf("$%d", i+2)
				args = append(args, id)
			}
			query += ` AND user_id NOT IN (` + strings.Join(placeholders, ", ") + `)`
		}
		_, err := tx.ExecContext(ctx, query, args...)
		return err
	})
}

func (s *Store) SetActiveProfile(ctx context.Context, user domain.User, profileID string) error {
	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		var exists int
		if err := tx.GetContext(ctx, &exists, `SELECT COUNT(*) FROM profiles WHERE id = $1`, profileID); err != nil {
			return err
		}
		if exists == 0 {
			return domain.ErrNotFound
		}
		uid, found, err := userID(ctx, tx, user)
		if err != nil {
			return err
		}
		if !found {
			return domain.ErrInvalidParameter
		}
		var assigned int
		if err := tx.GetContext(ctx, &assigned,
			`SELECT COUNT(*) FROM assignments WHERE profile_id = $1 AND user_id = $2`, profileID, uid); err != nil {
			return err
		}
		if assigned == 0 {
			return domain.ErrInvalidParameter
		}
		if s.driver == "postgres" {
			_, err = tx.ExecContext(ctx,
				`INSERT INTO active_profiles (user_id, profile_id) VALUES ($1, $2)
				 ON CONFLICT (user_id) DO UPDATE SET profile_id = EXCLUDED.profile_id`, uid, profileID)
		} else {
			_, err = tx.ExecContext(ctx,
				`INSERT OR REPLACE INTO active_profiles (user_id, profile_id) VALUES ($1, $2)`, uid, profileID)
		}
		return err
	})
}

func (s *Store) GetActiveProfileID(ctx context.Context, user domain.User) (string, error) {
	uid, found, err := userID(ctx, s.db, user)
	if err != nil || !found {
		return "", err
	}
	var profileID string
	err = s.db.GetContext(ctx, &profileID,
		`SELECT profile_id FROM active_profiles WHERE user_id = $1`, uid)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return profileID, err
}

func (s *Store) ProfilesForUser(ctx context.Context, user domain.User) ([]*domain.Profile, error) {
	var ids []string
	err := s.db.SelectContext(ctx, &ids,
		`SELECT p.id FROM profiles p
		 JOIN assignments a ON a.profile_id = p.id
		 JOIN users u ON u.id = a.user_id
		 WHERE u.account_sid = $1 AND u.domain_sid = $2
		 ORDER BY p.created_at, p.id`, user.AccountSID, user.DomainSID)
	if err != nil {
		return nil, err
	}
	profiles := make([]*domain.Profile, 0, len(ids))
	for _, id := range ids {
		profile, err := s.GetProfile(ctx, id)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, profile)
	}
	return profiles, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.User, error) {
	var users []domain.User
	err := s.db.SelectContext(ctx, &users,
		`SELECT DISTINCT u.account_name, u.domain_name, u.account_sid, u.domain_sid
		 FROM users u JOIN assignments a ON a.user_id = u.id
		 ORDER BY u.domain_sid, u.account_sid`)
	return users, err
}

func (s *Store) PolicySnapshot(ctx context.Context, user domain.User) (*domain.PolicySnapshot, error) {
	var snapshot *domain.PolicySnapshot
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		uid, found, err := userID(ctx, tx, user)
		if err != nil {
			return err
		}
		if !found {
			return domain.ErrNotFound
		}

		var assigned []string
		if err := tx.SelectContext(ctx, &assigned,
			`SELECT p.id FROM profiles p JOIN assignments a ON a.profile_id = p.id
			 WHERE a.user_id = $1 ORDER BY p.created_at, p.id`, uid); err != nil {
			return err
		}
		if len(assigned) == 0 {
			return domain.ErrNotFound
		}

		activeID := assigned[0]
		var selected string
		err = tx.GetContext(ctx, &selected,
			`SELECT profile_id FROM active_profiles WHERE user_id = $1`, uid)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return err
		}
		for _, id := range assigned {
			if id == selected {
				activeID = id
				break
			}
		}

		var row profileRow
		if err := tx.GetContext(ctx, &row,
			`SELECT `+profileColumns+` FROM profiles WHERE id = $1`, activeID); err != nil {
			return err
		}
		profile := row.toDomain()
		if err := tx.SelectContext(ctx, &profile.RuleIDs,
			`SELECT rule_id FROM profile_rules WHERE profile_id = $1 ORDER BY position`, activeID); err != nil {
			return err
		}

		snapshot = &domain.PolicySnapshot{Profile: *profile}
		var ruleRows []ruleRow
		if err := tx.SelectContext(ctx, &ruleRows,
			`SELECT r.id, r.name, r.elevation_kind, r.asker_filter, r.target_filter, r.created_at, r.updated_at
			 FROM profile_rules pr JOIN rules r ON r.id = pr.rule_id
			 WHERE pr.profile_id = $1 ORDER BY pr.position`, activeID); err != nil {
			return err
		}
		for _, rr := range ruleRows {
			rule, err := rr.toDomain()
			if err != nil {
				return err
			}
			snapshot.Rules = append(snapshot.Rules, *rule)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return snapshot, nil
}

// ============================================
// Audit trail
// ============================================

type auditRow struct {
	ID              int64     `db:"id"`
	Timestamp       time.Time `db:"timestamp"`
	AccountName     string    `db:"account_name"`
	DomainName      string    `db:"domain_name"`
	AccountSID      string    `db:"account_sid"`
	DomainSID       string    `db:"domain_sid"`
	AskerPath       string    `db:"asker_path"`
	TargetPath      string    `db:"target_path"`
	TargetSHA1      string    `db:"target_sha1"`
	TargetSHA256    string    `db:"target_sha256"`
	TargetSignature string    `db:"target_signature"`
	Outcome         string    `db:"outcome"`
	Success         bool      `db:"success"`
}

func (r auditRow) toDomain() domain.AuditEntry {
	return domain.AuditEntry{
		ID:        r.ID,
		Timestamp: r.Timestamp,
		User: domain.User{
			AccountName: r.AccountName,
			DomainName:  r.DomainName,
			AccountSID:  r.AccountSID,
			DomainSID:   r.DomainSID,
		},
		AskerPath:       r.AskerPath,
		TargetPath:      r.TargetPath,
		TargetHash:      domain.Hash{SHA1: r.TargetSHA1, SHA256: r.TargetSHA256},
		TargetSignature: domain.SignatureStatus(r.TargetSignature),
		Outcome:         r.Outcome,
		Success:         r.Success,
	}
}

const auditColumns = `id, timestamp, account_name, domain_name, account_sid, domain_sid,
	asker_path, target_path, target_sha1, target_sha256, target_signature, outcome, success`

func (s *Store) AppendAuditEntry(ctx context.Context, entry *domain.AuditEntry) error {
	args := []any{
		entry.Timestamp,
		entry.User.AccountName, entry.User.DomainName, entry.User.AccountSID, entry.User.DomainSID,
		entry.AskerPath, entry.TargetPath,
		entry.TargetHash.SHA1, entry.TargetHash.SHA256, string(entry.TargetSignature),
		entry.Outcome, entry.Success,
	}
	const insert = `INSERT INTO audit_log
		(timestamp, account_name, domain_name, account_sid, domain_sid,
		 asker_path, target_path, target_sha1, target_sha256, target_signature, outcome, success)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	if s.driver == "postgres" {
		return s.db.GetContext(ctx, &entry.ID, insert+` RETURNING id`, args...)
	}
	res, err := s.db.ExecContext(ctx, insert, args...)
	if err != nil {
		return err
	}
	entry.ID, err = res.LastInsertId()
	return err
}

func (s *Store) GetAuditEntry(ctx context.Context, id int64) (*domain.AuditEntry, error) {
	var row auditRow
	err := s.db.GetContext(ctx, &row, `SELECT `+auditColumns+` FROM audit_log WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	entry := row.toDomain()
	return &entry, nil
}

// auditSortColumns maps query sort columns to SQL columns; anything else
// falls back to timestamp. The direction must apply to every column, so
// multi-column sorts stay as slices.
var auditSortColumns = map[string][]string{
	domain.SortByTimestamp:  {"timestamp"},
	domain.SortByOutcome:    {"outcome"},
	domain.SortByTargetPath: {"target_path"},
	domain.SortByUser:       {"domain_sid", "account_sid"},
}

func (s *Store) QueryAuditEntries(ctx context.Context, q domain.AuditQuery) (*domain.AuditPage, error) {
	if q.PageSize <= 0 {
		q.PageSize = 20
	}
	if q.PageNumber <= 0 {
		q.PageNumber = 1
	}

	where := []string{"timestamp >= $1"}
	args := []any{q.StartTime}
	if !q.EndTime.IsZero() {
		args = append(args, q.EndTime)
		where = append(where, fmt.Sprintf("timestamp <= $%d", len(args)))
	}
	if q.User != nil {
		args = append(args, q.User.AccountSID)
		where = append(where, fmt.Sprintf("account_sid = $%d", len(args)))
		args = append(args, q.User.DomainSID)
		where = append(where, fmt.Sprintf("domain_sid = $%d", len(args)))
	}
	whereSQL := " WHERE " + strings.Join(where, " AND ")

	var total int64
	if err := s.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM audit_log`+whereSQL, args...); err != nil {
		return nil, err
	}
	totalPages := int((total + int64(q.PageSize) - 1) / int64(q.PageSize))

	sortColumns, ok := auditSortColumns[q.SortColumn]
	if !ok {
		sortColumns = []string{"timestamp"}
	}
	order := "ASC"
	if q.SortDescending {
		order = "DESC"
	}
	// The id tiebreak keeps the sort stable across identical column values.
	terms := make([]string, 0, len(sortColumns)+1)
	for _, col := range sortColumns {
		terms = append(terms, col+" "+order)
	}
	terms = append(terms, "id "+order)
	orderSQL := " ORDER BY " + strings.Join(terms, ", ")

	args = append(args, q.PageSize, (q.PageNumber-1)*q.PageSize)
	pageSQL := fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	var rows []auditRow
	if err := s.db.SelectContext(ctx, &rows,
		`SELECT `+auditColumns+` FROM audit_log`+whereSQL+orderSQL+pageSQL, args...); err != nil {
		return nil, err
	}

	page := &domain.AuditPage{TotalRecords: total, TotalPages: totalPages}
	for _, row := range rows {
		page.Entries = append(page.Entries, row.toDomain())
	}
	return page, nil
}

// requireAffected converts a zero-row result to domain.ErrNotFound.
func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}
