// Package postgres implements store.Store on PostgreSQL via pgx.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"postpurchase/internal/model"
	"postpurchase/internal/store"
)

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

const funnelColumns = "id, shop_domain, name, discount_pct, active, trigger_gid, offer_gid, created_at, updated_at"

func scanFunnel(row interface{ Scan(...any) error }) (*model.Funnel, error) {
	var f model.Funnel
	err := row.Scan(&f.ID, &f.ShopDomain, &f.Name, &f.DiscountPct, &f.Active,
		&f.TriggerGID, &f.OfferGID, &f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func (s *Store) CreateFunnel(ctx context.Context, f model.Funnel) (*model.Funnel, error) {
	if err := store.ValidateFunnel(f); err != nil {
		return nil, err
	}
	if f.ID == "" {
		f.ID = uuid.NewString()
	}

	row := s.db.QueryRowContext(ctx, `
		INSERT INTO funnels (id, shop_domain, name, discount_pct, active, trigger_gid, offer_gid, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,now(),now())
		RETURNING `+funnelColumns+`
	`, f.ID, f.ShopDomain, f.Name, f.DiscountPct, f.Active, f.TriggerGID, f.OfferGID)

	created, err := scanFunnel(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrDuplicateTrigger
		}
		return nil, err
	}
	return created, nil
}

func (s *Store) GetFunnel(ctx context.Context, shop, id string) (*model.Funnel, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+funnelColumns+`
		FROM funnels
		WHERE shop_domain = $1 AND id = $2
	`, shop, id)

	f, err := scanFunnel(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return f, nil
}

func (s *Store) ListFunnels(ctx context.Context, shop, sort string) ([]model.Funnel, error) {
	// Whitelist sort keys; anything else falls back to name order.
	order := "name ASC"
	switch sort {
	case "discount":
		order = "discount_pct DESC"
	case "created":
		order = "created_at DESC"
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+funnelColumns+`
		FROM funnels
		WHERE shop_domain = $1
		ORDER BY `+order, shop)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	funnels := make([]model.Funnel, 0, 16)
	for rows.Next() {
		f, err := scanFunnel(rows)
		if err != nil {
			return nil, err
		}
		funnels = append(funnels, *f)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return funnels, nil
}

func (s *Store) UpdateFunnel(ctx context.Context, f model.Funnel) (*model.Funnel, error) {
	if err := store.ValidateFunnel(f); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, `
		UPDATE funnels
		SET name = $3, discount_pct = $4, active = $5, trigger_gid = $6, offer_gid = $7, updated_at = now()
		WHERE shop_domain = $1 AND id = $2
		RETURNING `+funnelColumns+`
	`, f.ShopDomain, f.ID, f.Name, f.DiscountPct, f.Active, f.TriggerGID, f.OfferGID)

	updated, err := scanFunnel(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		if isUniqueViolation(err) {
			return nil, store.ErrDuplicateTrigger
		}
		return nil, err
	}
	return updated, nil
}

func (s *Store) DeleteFunnel(ctx context.Context, shop, id string) error {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM funnels
		WHERE shop_domain = $1 AND id = $2
	`, shop, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) ActiveFunnelForTriggers(ctx context.Context, shop string, triggers []string) (*model.Funnel, error) {
	if len(triggers) == 0 {
		return nil, store.ErrNotFound
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT `+funnelColumns+`
		FROM funnels
		WHERE shop_domain = $1 AND active AND trigger_gid = ANY($2)
		ORDER BY updated_at DESC
		LIMIT 1
	`, shop, triggers)

	f, err := scanFunnel(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return f, nil
}

func (s *Store) LatestActiveFunnel(ctx context.Context, shop string) (*model.Funnel, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+funnelColumns+`
		FROM funnels
		WHERE shop_domain = $1 AND active
		ORDER BY updated_at DESC
		LIMIT 1
	`, shop)

	f, err := scanFunnel(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return f, nil
}

func (s *Store) OfflineCredential(ctx context.Context, shop string) (*model.OfflineCredential, error) {
	var c model.OfflineCredential
	var scope sql.NullString
	var expires sql.NullTime

	// The install flow writes offline tokens with id "offline_<shop>".
	// Order by id descending to match its most recent row.
	err := s.db.QueryRowContext(ctx, `
		SELECT id, shop, access_token, scope, expires
		FROM sessions
		WHERE shop = $1 AND is_online = FALSE
		ORDER BY id DESC
		LIMIT 1
	`, shop).Scan(&c.ID, &c.Shop, &c.AccessToken, &scope, &expires)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}

	c.Scope = scope.String
	if expires.Valid {
		t := expires.Time
		c.Expires = &t
	}
	return &c, nil
}

// isUniqueViolation reports whether err is a Postgres unique_violation.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
