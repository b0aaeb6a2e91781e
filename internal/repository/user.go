package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/bio065/biobot/internal/model"

	"github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// createTimeout bounds the registration transaction. A timeout aborts
// the whole unit; the insert and the referrer credit are never visible
// separately.
const createTimeout = 5 * time.Second

type User struct {
	TelegramID       int64          `db:"telegram_id"`
	Username         string         `db:"username"`
	Handle           sql.NullString `db:"handle"`
	ReferrerID       *int64         `db:"referrer_id"`
	Referrals        int            `db:"referrals"`
	RegistrationDate time.Time      `db:"registration_date"`
}

type userReferral struct {
	TelegramID       int64          `db:"telegram_id"`
	TelegramUsername string         `db:"username"`
	Handle           sql.NullString `db:"handle"`
	ReferralCount    int            `db:"referrals"`
	RegistrationDate time.Time      `db:"registration_date"`
}

type reportRow struct {
	TelegramID  int64          `db:"telegram_id"`
	Username    string         `db:"username"`
	Handle      sql.NullString `db:"handle"`
	Referrals   int            `db:"referrals"`
	ReferredIDs pq.Int64Array  `db:"referred_ids"`
}

// CreateUser admits a user into the registry exactly once. The insert
// and the referrer credit run in a single transaction: either both
// commit or neither does. A concurrent duplicate attempt observes the
// conflict, inserts nothing and credits nothing.
func (r *Repository) CreateUser(ctx context.Context, user *model.User) (*model.RegistrationResult, error) {
	ctx, cancel := context.WithTimeout(ctx, createTimeout)
	defer cancel()

	res := &model.RegistrationResult{}
	err := r.Transaction(ctx, func(tx *sqlx.Tx) error {
		query, args, err := squirrel.
			Insert("users").
			SetMap(map[string]interface{}{
				"telegram_id":       user.TelegramID,
				"username":          user.Username,
				"handle":            nullableHandle(user.Handle),
				"referrer_id":       user.ReferrerID,
				"registration_date": user.RegistrationDate,
				"referrals":         user.Referrals,
			}).
			Suffix("ON CONFLICT (telegram_id) DO NOTHING").
			PlaceholderFormat(squirrel.Dollar).
			ToSql()
		if err != nil {
			return fmt.Errorf("failed to build user insert query: %w", err)
		}

		result, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("failed to insert user: %w", err)
		}

		inserted, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to read insert result: %w", err)
		}
		if inserted == 0 {
			// Already registered: no mutation of any kind.
			return nil
		}
		res.Inserted = true

		if user.ReferrerID != nil {
			updateQuery, updateArgs, err := squirrel.
				Update("users").
				Set("referrals", squirrel.Expr("referrals + 1")).
				Where(squirrel.Eq{"telegram_id": user.ReferrerID}).
				PlaceholderFormat(squirrel.Dollar).
				ToSql()
			if err != nil {
				return fmt.Errorf("failed to build referrer update query: %w", err)
			}

			updateResult, err := tx.ExecContext(ctx, updateQuery, updateArgs...)
			if err != nil {
				return fmt.Errorf("failed to update referrer: %w", err)
			}

			// A dangling referrer pointer is stored but never
			// credited: the row does not exist, nothing changed.
			credited, err := updateResult.RowsAffected()
			if err != nil {
				return fmt.Errorf("failed to read referrer update result: %w", err)
			}
			res.ReferrerCredited = credited > 0
		}

		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (r *Repository) GetUserByTelegramID(ctx context.Context, telegramID int64) (*model.User, error) {
	var user User
	query, args, err := squirrel.
		Select("*").
		From("users").
		Where(squirrel.Eq{"telegram_id": telegramID}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, err
	}

	err = r.db.GetContext(ctx, &user, query, args...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return &model.User{
		TelegramID:       user.TelegramID,
		Username:         user.Username,
		Handle:           user.Handle.String,
		ReferrerID:       user.ReferrerID,
		Referrals:        user.Referrals,
		RegistrationDate: user.RegistrationDate,
	}, nil
}

// UpdateUserProfile refreshes the mutable display metadata. It runs
// outside the registration transaction, is idempotent and never
// touches referrer_id or referrals.
func (r *Repository) UpdateUserProfile(ctx context.Context, telegramID int64, username, handle string) error {
	query, args, err := squirrel.
		Update("users").
		Set("username", username).
		Set("handle", nullableHandle(handle)).
		Where(squirrel.Eq{"telegram_id": telegramID}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build profile update query: %w", err)
	}

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update profile: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) CountUsers(ctx context.Context) (int, error) {
	query, args, err := squirrel.
		Select("COUNT(*)").
		From("users").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return 0, err
	}

	var count int
	err = r.db.GetContext(ctx, &count, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return count, nil
}

func (r *Repository) GetTopUsers(ctx context.Context, limit int) ([]*model.User, error) {
	query, args, err := squirrel.
		Select("telegram_id", "username", "handle", "referrals", "registration_date").
		From("users").
		OrderBy("referrals DESC", "registration_date ASC").
		Limit(uint64(limit)).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, err
	}

	var users []User
	err = r.db.SelectContext(ctx, &users, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get top users: %w", err)
	}

	userList := make([]*model.User, len(users))
	for i, user := range users {
		userList[i] = &model.User{
			TelegramID:       user.TelegramID,
			Username:         user.Username,
			Handle:           user.Handle.String,
			Referrals:        user.Referrals,
			RegistrationDate: user.RegistrationDate,
		}
	}

	return userList, nil
}

func (r *Repository) GetUserReferrals(ctx context.Context, telegramID int64) ([]*model.UserReferral, error) {
	query := squirrel.Select(
		"telegram_id",
		"username",
		"handle",
		"referrals",
		"registration_date",
	).
		From("users").
		Where(squirrel.Eq{"referrer_id": telegramID}).
		OrderBy("registration_date ASC").
		PlaceholderFormat(squirrel.Dollar)

	sqlQuery, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	var referrals []*userReferral
	err = r.db.SelectContext(ctx, &referrals, sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get user referrals: %w", err)
	}

	refs := make([]*model.UserReferral, len(referrals))
	for i, ref := range referrals {
		refs[i] = &model.UserReferral{
			TelegramID:       ref.TelegramID,
			TelegramUsername: ref.TelegramUsername,
			Handle:           ref.Handle.String,
			ReferralCount:    ref.ReferralCount,
			RegistrationDate: ref.RegistrationDate,
		}
	}

	return refs, nil
}

// GetReferralReport returns every user ordered by referral count, each
// with the IDs of the users they referred.
func (r *Repository) GetReferralReport(ctx context.Context) ([]*model.ReportRow, error) {
	query, args, err := squirrel.
		Select(
			"u.telegram_id",
			"u.username",
			"u.handle",
			"u.referrals",
			"COALESCE(ARRAY_AGG(ref.telegram_id) FILTER (WHERE ref.telegram_id IS NOT NULL), '{}') AS referred_ids",
		).
		From("users u").
		LeftJoin("users ref ON ref.referrer_id = u.telegram_id").
		GroupBy("u.telegram_id", "u.username", "u.handle", "u.referrals").
		OrderBy("u.referrals DESC", "u.telegram_id ASC").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build report query: %w", err)
	}

	var rows []*reportRow
	err = r.db.SelectContext(ctx, &rows, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get referral report: %w", err)
	}

	out := make([]*model.ReportRow, len(rows))
	for i, row := range rows {
		out[i] = &model.ReportRow{
			TelegramID:  row.TelegramID,
			Username:    row.Username,
			Handle:      row.Handle.String,
			Referrals:   row.Referrals,
			ReferredIDs: row.ReferredIDs,
		}
	}

	return out, nil
}

func nullableHandle(handle string) interface{} {
	if handle == "" {
		return nil
	}
	return handle
}
