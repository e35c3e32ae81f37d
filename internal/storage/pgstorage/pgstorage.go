package pgstorage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"syscall"
	"time"

	"github.com/andymarkow/taskmart/internal/domain/accounts"
	"github.com/andymarkow/taskmart/internal/domain/submissions"
	"github.com/andymarkow/taskmart/internal/domain/tasks"
	"github.com/andymarkow/taskmart/internal/domain/withdrawals"
	"github.com/andymarkow/taskmart/internal/storage"
	"github.com/andymarkow/taskmart/internal/storage/dbmodels"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	// Postgres driver.
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

var _ storage.Storage = (*Storage)(nil)

//go:embed migrations/*.sql
var migrations embed.FS

const (
	accountColumns    = `user_id, balance, referred_by, created_at`
	taskColumns       = `id, text, reward, assigned_user, assigned_at, created_at, expires_at, hold_until`
	submissionColumns = `id, user_id, task_id, proof, status, created_at, reviewed_at`
	withdrawalColumns = `id, user_id, amount, status, created_at, updated_at`
)

type Storage struct {
	db *sql.DB
}

type Config struct {
	maxOpenConns    int
	maxIdleConns    int
	connMaxIdleTime time.Duration
	connMaxLifetime time.Duration
}

type Option func(s *Config)

func WithMaxOpenConns(conns int) Option {
	return func(c *Config) {
		c.maxOpenConns = conns
	}
}

func WithMaxIdleConns(conns int) Option {
	return func(c *Config) {
		c.maxIdleConns = conns
	}
}

func WithConnMaxIdleTime(idleTime time.Duration) Option {
	return func(c *Config) {
		c.connMaxIdleTime = idleTime
	}
}

func WithConnMaxLifetime(lifetime time.Duration) Option {
	return func(c *Config) {
		c.connMaxLifetime = lifetime
	}
}

func NewStorage(connStr string, opts ...Option) (*Storage, error) {
	cfg := &Config{
		maxOpenConns:    10,
		maxIdleConns:    5,
		connMaxIdleTime: 180 * time.Second,
		connMaxLifetime: 3600 * time.Second,
	}

	for _, opt := range opts {
		opt(cfg)
	}

	db, err := sql.Open("pgx", connStr)
	if err != nil {
		return nil, fmt.Errorf("sql.Open: %w", err)
	}

	db.SetMaxOpenConns(cfg.maxOpenConns)
	db.SetMaxIdleConns(cfg.maxIdleConns)
	db.SetConnMaxIdleTime(cfg.connMaxIdleTime)
	db.SetConnMaxLifetime(cfg.connMaxLifetime)

	return FromDB(db), nil
}

// FromDB wraps an already opened database handle.
func FromDB(db *sql.DB) *Storage {
	return &Storage{
		db: db,
	}
}

// Bootstrap applies the embedded schema migrations.
func (s *Storage) Bootstrap(ctx context.Context) error {
	migrationsFS, err := fs.Sub(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("fs.Sub: %w", err)
	}

	provider, err := goose.NewProvider(goose.DialectPostgres, s.db, migrationsFS)
	if err != nil {
		return fmt.Errorf("goose.NewProvider: %w", err)
	}

	_, err = provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("provider.Up: %w", err)
	}

	return nil
}

func (s *Storage) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("db.Close: %w", err)
	}

	return nil
}

// isRetryableError checks if error is retryable.
func isRetryableError(err error) bool {
	// Connection refused error
	if errors.Is(err, syscall.ECONNREFUSED) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// Serialization failures and deadlocks abort the whole transaction,
		// which is safe to run again from the start.
		return pgerrcode.IsConnectionException(pgErr.Code) || pgerrcode.IsTransactionRollback(pgErr.Code)
	}

	return false
}

// WithRetry retries operations in case of retryable errors.
func WithRetry(ctx context.Context, operation func() error) error {
	retryCount := 3

	// Define the interval between retries
	retryWaitInterval := 2

	var err error

	for i := 0; i < retryCount; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if !isRetryableError(err) {
			return fmt.Errorf("%w", err)
		}

		retryWaitTime := time.Duration((i*retryWaitInterval + 1)) * time.Second // 1s, 3s, 5s

		select {
		case <-ctx.Done():
			return fmt.Errorf("retry canceled: %w", errors.Join(ctx.Err(), err))
		case <-time.After(retryWaitTime):
		}
	}

	return fmt.Errorf("retry attempts exceeded: %w", err)
}

// inTx runs fn inside a transaction that is committed only if fn succeeds.
func (s *Storage) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	return WithRetry(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("db.BeginTx: %w", err)
		}
		defer tx.Rollback() //nolint:errcheck

		if err := fn(tx); err != nil {
			return err
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("tx.Commit: %w", err)
		}

		return nil
	})
}

func (s *Storage) Ping(ctx context.Context) error {
	return WithRetry(ctx, func() error {
		if err := s.db.PingContext(ctx); err != nil {
			return fmt.Errorf("db.PingContext: %w", err)
		}

		return nil
	})
}

func (s *Storage) GetOrCreateAccount(
	ctx context.Context, userID int64, referredBy *int64, now time.Time,
) (*accounts.Account, bool, error) {
	candidate, err := accounts.NewAccount(userID, referredBy, now)
	if err != nil {
		return nil, false, fmt.Errorf("accounts.NewAccount: %w", err)
	}

	var referrer sql.NullInt64
	if ref, ok := candidate.ReferredBy(); ok {
		referrer = sql.NullInt64{Int64: ref, Valid: true}
	}

	var (
		acct    *accounts.Account
		created bool
	)

	err = s.inTx(ctx, func(tx *sql.Tx) error {
		// The referrer is kept only if it names an existing account.
		res, err := tx.ExecContext(ctx,
			`INSERT INTO accounts (user_id, balance, referred_by, created_at)`+
				` VALUES ($1, 0, (SELECT user_id FROM accounts WHERE user_id = $2::BIGINT), $3)`+
				` ON CONFLICT (user_id) DO NOTHING`,
			userID, referrer, now,
		)
		if err != nil {
			return fmt.Errorf("tx.ExecContext: %w", err)
		}

		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("res.RowsAffected: %w", err)
		}

		created = affected > 0

		acct, err = getAccount(ctx, tx, userID, false)

		return err
	})
	if err != nil {
		return nil, false, err
	}

	return acct, created, nil
}

func (s *Storage) GetAccount(ctx context.Context, userID int64) (*accounts.Account, error) {
	var acct *accounts.Account

	err := WithRetry(ctx, func() error {
		var err error

		acct, err = getAccount(ctx, s.db, userID, false)

		return err
	})
	if err != nil {
		return nil, err
	}

	return acct, nil
}

func (s *Storage) SumEntries(ctx context.Context, userID int64, kind accounts.EntryKind) (decimal.Decimal, error) {
	sum := decimal.Zero

	err := WithRetry(ctx, func() error {
		query := `SELECT COALESCE(SUM(amount), 0) FROM ledger_entries WHERE user_id = $1 AND kind = $2`

		if err := s.db.QueryRowContext(ctx, query, userID, kind.String()).Scan(&sum); err != nil {
			return fmt.Errorf("db.QueryRowContext: %w", err)
		}

		return nil
	})
	if err != nil {
		return decimal.Zero, err
	}

	return sum, nil
}

func (s *Storage) CountReferrals(ctx context.Context, userID int64) (int64, error) {
	var count int64

	err := WithRetry(ctx, func() error {
		query := `SELECT COUNT(*) FROM accounts WHERE referred_by = $1`

		if err := s.db.QueryRowContext(ctx, query, userID).Scan(&count); err != nil {
			return fmt.Errorf("db.QueryRowContext: %w", err)
		}

		return nil
	})
	if err != nil {
		return 0, err
	}

	return count, nil
}

func (s *Storage) CreateTask(ctx context.Context, task *tasks.Task) error {
	return WithRetry(ctx, func() error {
		var id int64

		if err := s.db.QueryRowContext(ctx,
			`INSERT INTO tasks (text, reward, created_at, expires_at, hold_until)`+
				` VALUES ($1, $2, $3, $4, $5) RETURNING id`,
			task.Text(), task.Reward(), task.CreatedAt(), task.ExpiresAt(), task.HoldUntil(),
		).Scan(&id); err != nil {
			return fmt.Errorf("db.QueryRowContext: %w", err)
		}

		task.SetID(id)

		return nil
	})
}

func (s *Storage) GetTask(ctx context.Context, id int64) (*tasks.Task, error) {
	var task *tasks.Task

	err := WithRetry(ctx, func() error {
		row := s.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id)

		var err error

		task, err = scanTask(row)
		if errors.Is(err, sql.ErrNoRows) {
			return storage.ErrTaskNotFound
		}

		return err
	})
	if err != nil {
		return nil, err
	}

	return task, nil
}

// AssignTask claims the oldest claimable task with a single statement.
// SKIP LOCKED lets concurrent claims pass over a row another transaction is
// already taking instead of queueing behind it.
func (s *Storage) AssignTask(ctx context.Context, userID int64, now time.Time) (*tasks.Task, error) {
	var task *tasks.Task

	err := WithRetry(ctx, func() error {
		query := `UPDATE tasks SET assigned_user = $1, assigned_at = $2` +
			` WHERE id = (` +
			`SELECT id FROM tasks WHERE assigned_user IS NULL AND expires_at > $2` +
			` ORDER BY id LIMIT 1 FOR UPDATE SKIP LOCKED)` +
			` AND assigned_user IS NULL` +
			` RETURNING ` + taskColumns

		var err error

		task, err = scanTask(s.db.QueryRowContext(ctx, query, userID, now))
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return storage.ErrNoTaskAvailable
			}

			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation {
				return storage.ErrAccountNotFound
			}

			return err
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return task, nil
}

func (s *Storage) GetTasksHeldBy(ctx context.Context, userID int64, now time.Time) ([]*tasks.Task, error) {
	held := make([]*tasks.Task, 0)

	err := WithRetry(ctx, func() error {
		query := `SELECT ` + taskColumns + ` FROM tasks` +
			` WHERE assigned_user = $1 AND hold_until > $2 ORDER BY id`

		rows, err := s.db.QueryContext(ctx, query, userID, now)
		if err != nil {
			return fmt.Errorf("db.QueryContext: %w", err)
		}
		defer rows.Close()

		held = held[:0]

		for rows.Next() {
			task, err := scanTask(rows)
			if err != nil {
				return err
			}

			held = append(held, task)
		}

		if err := rows.Err(); err != nil {
			return fmt.Errorf("rows.Err: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return held, nil
}

func (s *Storage) GetTaskStats(ctx context.Context, now time.Time) (tasks.Stats, error) {
	var stats tasks.Stats

	err := WithRetry(ctx, func() error {
		query := `SELECT` +
			` COUNT(*) FILTER (WHERE assigned_user IS NULL AND expires_at > $1),` +
			` COUNT(*) FILTER (WHERE assigned_user IS NULL AND expires_at <= $1),` +
			` COUNT(*) FILTER (WHERE assigned_user IS NOT NULL AND hold_until > $1),` +
			` COUNT(*) FILTER (WHERE assigned_user IS NOT NULL AND hold_until <= $1)` +
			` FROM tasks`

		if err := s.db.QueryRowContext(ctx, query, now).Scan(
			&stats.Open, &stats.ExpiredUnclaimed, &stats.Held, &stats.HoldElapsed,
		); err != nil {
			return fmt.Errorf("db.QueryRowContext: %w", err)
		}

		return nil
	})
	if err != nil {
		return tasks.Stats{}, err
	}

	return stats, nil
}

func (s *Storage) CreateSubmission(ctx context.Context, sub *submissions.Submission) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		var assignedUser sql.NullInt64

		if err := tx.QueryRowContext(ctx,
			`SELECT assigned_user FROM tasks WHERE id = $1`, sub.TaskID(),
		).Scan(&assignedUser); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return storage.ErrTaskNotFound
			}

			return fmt.Errorf("tx.QueryRowContext: %w", err)
		}

		if !assignedUser.Valid || assignedUser.Int64 != sub.UserID() {
			return storage.ErrNotAssigned
		}

		var id int64

		if err := tx.QueryRowContext(ctx,
			`INSERT INTO submissions (user_id, task_id, proof, status, created_at)`+
				` VALUES ($1, $2, $3, $4, $5) RETURNING id`,
			sub.UserID(), sub.TaskID(), sub.Proof(), sub.Status().String(), sub.CreatedAt(),
		).Scan(&id); err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
				return storage.ErrDuplicateSubmission
			}

			return fmt.Errorf("tx.QueryRowContext: %w", err)
		}

		sub.SetID(id)

		return nil
	})
}

func (s *Storage) GetSubmission(ctx context.Context, id int64) (*submissions.Submission, error) {
	var sub *submissions.Submission

	err := WithRetry(ctx, func() error {
		var err error

		sub, err = getSubmission(ctx, s.db, id, false)

		return err
	})
	if err != nil {
		return nil, err
	}

	return sub, nil
}

func (s *Storage) GetSubmissionsByStatus(
	ctx context.Context, statuses ...submissions.Status,
) ([]*submissions.Submission, error) {
	subs := make([]*submissions.Submission, 0)

	filter := make([]string, 0, len(statuses))
	for _, status := range statuses {
		filter = append(filter, status.String())
	}

	err := WithRetry(ctx, func() error {
		query := `SELECT ` + submissionColumns + ` FROM submissions`
		args := make([]any, 0, 1)

		if len(filter) > 0 {
			query += ` WHERE status = ANY($1)`

			args = append(args, pq.Array(filter))
		}

		query += ` ORDER BY id`

		rows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("db.QueryContext: %w", err)
		}
		defer rows.Close()

		subs = subs[:0]

		for rows.Next() {
			sub, err := scanSubmission(rows)
			if err != nil {
				return err
			}

			subs = append(subs, sub)
		}

		if err := rows.Err(); err != nil {
			return fmt.Errorf("rows.Err: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return subs, nil
}

func (s *Storage) ReviewSubmission(
	ctx context.Context, id int64, verdict submissions.Verdict, bonus storage.BonusFunc, now time.Time,
) (*storage.SubmissionReview, error) {
	var review *storage.SubmissionReview

	err := s.inTx(ctx, func(tx *sql.Tx) error {
		sub, err := getSubmission(ctx, tx, id, true)
		if err != nil {
			return err
		}

		if err := sub.Review(verdict, now); err != nil {
			return fmt.Errorf("sub.Review: %w", err)
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE submissions SET status = $1, reviewed_at = $2 WHERE id = $3`,
			sub.Status().String(), now, sub.ID(),
		); err != nil {
			return fmt.Errorf("tx.ExecContext: %w", err)
		}

		review = &storage.SubmissionReview{
			Submission: sub,
			Reward:     decimal.Zero,
			Bonus:      decimal.Zero,
		}

		if sub.Status() != submissions.StatusApproved {
			return nil
		}

		var reward decimal.Decimal

		if err := tx.QueryRowContext(ctx,
			`SELECT reward FROM tasks WHERE id = $1`, sub.TaskID(),
		).Scan(&reward); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return storage.ErrTaskNotFound
			}

			return fmt.Errorf("tx.QueryRowContext: %w", err)
		}

		acct, err := applyEntry(ctx, tx, accounts.NewRewardEntry(sub.UserID(), reward, sub.ID(), now))
		if err != nil {
			return err
		}

		review.Reward = reward
		review.Balance = acct.Balance()

		referrerID, ok := acct.ReferredBy()
		if !ok || bonus == nil {
			return nil
		}

		amount := bonus(reward)
		if !amount.IsPositive() {
			return nil
		}

		if _, err := applyEntry(ctx, tx, accounts.NewReferralBonusEntry(referrerID, amount, sub.ID(), now)); err != nil {
			return err
		}

		review.ReferrerID = &referrerID
		review.Bonus = amount

		return nil
	})
	if err != nil {
		return nil, err
	}

	return review, nil
}

func (s *Storage) CreateWithdrawal(ctx context.Context, withdrawal *withdrawals.Withdrawal) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		acct, err := getAccount(ctx, tx, withdrawal.UserID(), true)
		if err != nil {
			return err
		}

		if acct.Balance().LessThan(withdrawal.Amount()) {
			return accounts.ErrBalanceNotEnough
		}

		var id int64

		if err := tx.QueryRowContext(ctx,
			`INSERT INTO withdrawals (user_id, amount, status, created_at, updated_at)`+
				` VALUES ($1, $2, $3, $4, $5) RETURNING id`,
			withdrawal.UserID(), withdrawal.Amount(), withdrawal.Status().String(),
			withdrawal.CreatedAt(), withdrawal.UpdatedAt(),
		).Scan(&id); err != nil {
			return fmt.Errorf("tx.QueryRowContext: %w", err)
		}

		withdrawal.SetID(id)

		return nil
	})
}

func (s *Storage) GetWithdrawal(ctx context.Context, id int64) (*withdrawals.Withdrawal, error) {
	var withdrawal *withdrawals.Withdrawal

	err := WithRetry(ctx, func() error {
		var err error

		withdrawal, err = getWithdrawal(ctx, s.db, id, false)

		return err
	})
	if err != nil {
		return nil, err
	}

	return withdrawal, nil
}

func (s *Storage) GetWithdrawalsByUser(ctx context.Context, userID int64) ([]*withdrawals.Withdrawal, error) {
	return s.queryWithdrawals(ctx,
		`SELECT `+withdrawalColumns+` FROM withdrawals WHERE user_id = $1 ORDER BY id`, userID)
}

func (s *Storage) GetWithdrawalsByStatus(
	ctx context.Context, statuses ...withdrawals.Status,
) ([]*withdrawals.Withdrawal, error) {
	query := `SELECT ` + withdrawalColumns + ` FROM withdrawals`

	if len(statuses) == 0 {
		return s.queryWithdrawals(ctx, query+` ORDER BY id`)
	}

	filter := make([]string, 0, len(statuses))
	for _, status := range statuses {
		filter = append(filter, status.String())
	}

	return s.queryWithdrawals(ctx, query+` WHERE status = ANY($1) ORDER BY id`, pq.Array(filter))
}

func (s *Storage) ReviewWithdrawal(
	ctx context.Context, id int64, verdict withdrawals.Verdict, now time.Time,
) (*withdrawals.Withdrawal, error) {
	var withdrawal *withdrawals.Withdrawal

	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var err error

		withdrawal, err = getWithdrawal(ctx, tx, id, true)
		if err != nil {
			return err
		}

		if err := withdrawal.Apply(verdict, now); err != nil {
			return fmt.Errorf("withdrawal.Apply: %w", err)
		}

		if withdrawal.Status() == withdrawals.StatusPaid {
			entry := accounts.NewWithdrawalEntry(withdrawal.UserID(), withdrawal.Amount(), withdrawal.ID(), now)

			if _, err := applyEntry(ctx, tx, entry); err != nil {
				return err
			}
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE withdrawals SET status = $1, updated_at = $2 WHERE id = $3`,
			withdrawal.Status().String(), now, withdrawal.ID(),
		); err != nil {
			return fmt.Errorf("tx.ExecContext: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return withdrawal, nil
}

func (s *Storage) queryWithdrawals(ctx context.Context, query string, args ...any) ([]*withdrawals.Withdrawal, error) {
	result := make([]*withdrawals.Withdrawal, 0)

	err := WithRetry(ctx, func() error {
		rows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("db.QueryContext: %w", err)
		}
		defer rows.Close()

		result = result[:0]

		for rows.Next() {
			withdrawal, err := scanWithdrawal(rows)
			if err != nil {
				return err
			}

			result = append(result, withdrawal)
		}

		if err := rows.Err(); err != nil {
			return fmt.Errorf("rows.Err: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// applyEntry locks the entry's account, moves its balance and records the
// entry. The unique ledger indexes reject an entry applied twice.
func applyEntry(ctx context.Context, tx *sql.Tx, entry accounts.Entry) (*accounts.Account, error) {
	acct, err := getAccount(ctx, tx, entry.UserID, true)
	if err != nil {
		return nil, err
	}

	if entry.Amount.IsNegative() {
		err = acct.Debit(entry.Amount.Neg())
	} else {
		err = acct.Credit(entry.Amount)
	}

	if err != nil {
		return nil, fmt.Errorf("apply %s entry: %w", entry.Kind, err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO ledger_entries (user_id, kind, amount, submission_id, withdrawal_id, created_at)`+
			` VALUES ($1, $2, $3, $4, $5, $6)`,
		entry.UserID, entry.Kind.String(), entry.Amount,
		nullID(entry.SubmissionID), nullID(entry.WithdrawalID), entry.CreatedAt,
	); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return nil, storage.ErrEntryAlreadyApplied
		}

		return nil, fmt.Errorf("tx.ExecContext: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE accounts SET balance = $1 WHERE user_id = $2`, acct.Balance(), acct.UserID(),
	); err != nil {
		return nil, fmt.Errorf("tx.ExecContext: %w", err)
	}

	return acct, nil
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type scanner interface {
	Scan(dest ...any) error
}

func lockClause(forUpdate bool) string {
	if forUpdate {
		return ` FOR UPDATE`
	}

	return ``
}

func getAccount(ctx context.Context, q querier, userID int64, forUpdate bool) (*accounts.Account, error) {
	dbAccount := new(dbmodels.Account)

	row := q.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE user_id = $1`+lockClause(forUpdate), userID)

	if err := row.Scan(&dbAccount.UserID, &dbAccount.Balance, &dbAccount.ReferredBy, &dbAccount.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrAccountNotFound
		}

		return nil, fmt.Errorf("row.Scan: %w", err)
	}

	return accounts.RestoreAccount(
		dbAccount.UserID, dbAccount.Balance, int64Ptr(dbAccount.ReferredBy), dbAccount.CreatedAt,
	), nil
}

func getSubmission(ctx context.Context, q querier, id int64, forUpdate bool) (*submissions.Submission, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+submissionColumns+` FROM submissions WHERE id = $1`+lockClause(forUpdate), id)

	sub, err := scanSubmission(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrSubmissionNotFound
	}

	return sub, err
}

func getWithdrawal(ctx context.Context, q querier, id int64, forUpdate bool) (*withdrawals.Withdrawal, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+withdrawalColumns+` FROM withdrawals WHERE id = $1`+lockClause(forUpdate), id)

	withdrawal, err := scanWithdrawal(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrWithdrawalNotFound
	}

	return withdrawal, err
}

func scanTask(row scanner) (*tasks.Task, error) {
	dbTask := new(dbmodels.Task)

	if err := row.Scan(
		&dbTask.ID,
		&dbTask.Text,
		&dbTask.Reward,
		&dbTask.AssignedUser,
		&dbTask.AssignedAt,
		&dbTask.CreatedAt,
		&dbTask.ExpiresAt,
		&dbTask.HoldUntil,
	); err != nil {
		return nil, fmt.Errorf("row.Scan: %w", err)
	}

	return tasks.RestoreTask(
		dbTask.ID,
		dbTask.Text,
		dbTask.Reward,
		int64Ptr(dbTask.AssignedUser),
		timePtr(dbTask.AssignedAt),
		dbTask.CreatedAt,
		dbTask.ExpiresAt,
		dbTask.HoldUntil,
	), nil
}

func scanSubmission(row scanner) (*submissions.Submission, error) {
	dbSub := new(dbmodels.Submission)

	if err := row.Scan(
		&dbSub.ID,
		&dbSub.UserID,
		&dbSub.TaskID,
		&dbSub.Proof,
		&dbSub.Status,
		&dbSub.CreatedAt,
		&dbSub.ReviewedAt,
	); err != nil {
		return nil, fmt.Errorf("row.Scan: %w", err)
	}

	status, err := submissions.ParseStatus(dbSub.Status)
	if err != nil {
		return nil, fmt.Errorf("submissions.ParseStatus: %w", err)
	}

	return submissions.RestoreSubmission(
		dbSub.ID, dbSub.UserID, dbSub.TaskID, dbSub.Proof, status, dbSub.CreatedAt, timePtr(dbSub.ReviewedAt),
	), nil
}

func scanWithdrawal(row scanner) (*withdrawals.Withdrawal, error) {
	dbWithdrawal := new(dbmodels.Withdrawal)

	if err := row.Scan(
		&dbWithdrawal.ID,
		&dbWithdrawal.UserID,
		&dbWithdrawal.Amount,
		&dbWithdrawal.Status,
		&dbWithdrawal.CreatedAt,
		&dbWithdrawal.UpdatedAt,
	); err != nil {
		return nil, fmt.Errorf("row.Scan: %w", err)
	}

	status, err := withdrawals.ParseStatus(dbWithdrawal.Status)
	if err != nil {
		return nil, fmt.Errorf("withdrawals.ParseStatus: %w", err)
	}

	return withdrawals.RestoreWithdrawal(
		dbWithdrawal.ID,
		dbWithdrawal.UserID,
		dbWithdrawal.Amount,
		status,
		dbWithdrawal.CreatedAt,
		dbWithdrawal.UpdatedAt,
	), nil
}

func int64Ptr(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}

	return &v.Int64
}

func timePtr(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}

	return &v.Time
}

func nullID(id *int64) sql.NullInt64 {
	if id == nil {
		return sql.NullInt64{}
	}

	return sql.NullInt64{Int64: *id, Valid: true}
}
