package db

import (
	"context"
	"database/sql"
	"time"

	"github.com/uptrace/bun"

	"ms-storefront/internal/models"
)

type DB struct {
	Bun *bun.DB
}

// ---------------- ACCOUNTS ----------------

// FindActiveAdmin → fetch an active account by username, sql.ErrNoRows if none
func (d *DB) FindActiveAdmin(ctx context.Context, username string) (*models.AdminAccount, error) {
	var account models.AdminAccount
	err := d.Bun.NewSelect().
		Model(&account).
		Where("username = ?", username).
		Where("is_active = ?", true).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &account, nil
}

// GetAdminByID → fetch an account by id regardless of is_active
func (d *DB) GetAdminByID(ctx context.Context, id string) (*models.AdminAccount, error) {
	var account models.AdminAccount
	err := d.Bun.NewSelect().
		Model(&account).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &account, nil
}

// CreateAdminIfAbsent inserts the account unless the username is taken, then
// returns whichever row owns the username. The unique constraint on username
// makes concurrent callers converge on one row.
func (d *DB) CreateAdminIfAbsent(ctx context.Context, account models.AdminAccount) (*models.AdminAccount, error) {
	_, err := d.Bun.NewInsert().
		Model(&account).
		On("CONFLICT (username) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return nil, err
	}

	var stored models.AdminAccount
	err = d.Bun.NewSelect().
		Model(&stored).
		Where("username = ?", account.Username).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &stored, nil
}

// UpdatePasswordHash → replace the hash for a username
func (d *DB) UpdatePasswordHash(ctx context.Context, username, hash string) error {
	res, err := d.Bun.NewUpdate().
		Model((*models.AdminAccount)(nil)).
		Set("password_hash = ?", hash).
		Where("username = ?", username).
		Exec(ctx)
	return requireRow(res, err)
}

// TouchLastLogin → stamp last_login
func (d *DB) TouchLastLogin(ctx context.Context, adminID string, at time.Time) error {
	res, err := d.Bun.NewUpdate().
		Model((*models.AdminAccount)(nil)).
		Set("last_login = ?", at).
		Where("id = ?", adminID).
		Exec(ctx)
	return requireRow(res, err)
}

// ---------------- SESSIONS ----------------

func (d *DB) CreateSession(ctx context.Context, session models.AdminSession) error {
	_, err := d.Bun.NewInsert().Model(&session).Exec(ctx)
	return err
}

func (d *DB) GetSession(ctx context.Context, token string) (*models.AdminSession, error) {
	var session models.AdminSession
	err := d.Bun.NewSelect().
		Model(&session).
		Where("session_token = ?", token).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (d *DB) DeleteSession(ctx context.Context, token string) error {
	_, err := d.Bun.NewDelete().
		Model((*models.AdminSession)(nil)).
		Where("session_token = ?", token).
		Exec(ctx)
	return err
}

// DeleteExpiredSessions is housekeeping only; validity never depends on it.
func (d *DB) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	res, err := d.Bun.NewDelete().
		Model((*models.AdminSession)(nil)).
		Where("expires_at < ?", now).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func requireRow(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
