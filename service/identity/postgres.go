package identity

import (
	"context"
	"errors"

	"PPChat/module/chat/model"
	"PPChat/tools/errs"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const queryUserByID = `SELECT id, name FROM users WHERE id = $1`

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresResolver looks users up in the account database.
type PostgresResolver struct {
	db querier
}

func NewPostgresResolver(db querier) *PostgresResolver {
	return &PostgresResolver{db: db}
}

func (r *PostgresResolver) ResolveUser(ctx context.Context, userID model.UserID) (model.User, error) {
	// users.id 是 uuid 列
	if _, err := uuid.Parse(userID); err != nil {
		return model.User{}, errs.ErrArgs.WrapMsg("user id must be a uuid", "userId", userID)
	}
	var u model.User
	err := r.db.QueryRow(ctx, queryUserByID, userID).Scan(&u.UserID, &u.Name)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.User{}, errs.ErrUserNotFound.WrapMsg("", "userId", userID)
	}
	if err != nil {
		return model.User{}, errs.WrapMsg(err, "query user", "userId", userID)
	}
	return u, nil
}

// OpenPool connects a pgx pool and pings it.
func OpenPool(ctx context.Context, dsn string, maxConns int32) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, errs.Wrap(err, "parse postgres dsn")
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, errs.Wrap(err, "unable to connect to database")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errs.Wrap(err, "postgres ping")
	}
	return pool, nil
}
