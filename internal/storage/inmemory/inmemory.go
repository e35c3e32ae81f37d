package inmemory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/andymarkow/taskmart/internal/domain/accounts"
	"github.com/andymarkow/taskmart/internal/domain/submissions"
	"github.com/andymarkow/taskmart/internal/domain/tasks"
	"github.com/andymarkow/taskmart/internal/domain/withdrawals"
	"github.com/andymarkow/taskmart/internal/storage"
	"github.com/shopspring/decimal"
)

var _ storage.Storage = (*Storage)(nil)

type AccountStore struct {
	accounts map[int64]*accounts.Account
}

type TaskStore struct {
	// tasks is ordered by id, oldest first.
	tasks  []*tasks.Task
	byID   map[int64]*tasks.Task
	nextID int64
}

type SubmissionStore struct {
	submissions map[int64]*submissions.Submission
	nextID      int64
}

type WithdrawalStore struct {
	withdrawals map[int64]*withdrawals.Withdrawal
	nextID      int64
}

type entryKey struct {
	kind     accounts.EntryKind
	sourceID int64
	isSub    bool
}

type EntryStore struct {
	entries []accounts.Entry
	applied map[entryKey]struct{}
}

// Storage keeps all records in memory. A single mutex serializes every
// operation, which gives each call the atomicity of a database transaction.
type Storage struct {
	mu sync.Mutex

	AccountStore    AccountStore
	TaskStore       TaskStore
	SubmissionStore SubmissionStore
	WithdrawalStore WithdrawalStore
	EntryStore      EntryStore
}

func NewStorage() *Storage {
	return &Storage{
		AccountStore: AccountStore{
			accounts: make(map[int64]*accounts.Account),
		},
		TaskStore: TaskStore{
			byID: make(map[int64]*tasks.Task),
		},
		SubmissionStore: SubmissionStore{
			submissions: make(map[int64]*submissions.Submission),
		},
		WithdrawalStore: WithdrawalStore{
			withdrawals: make(map[int64]*withdrawals.Withdrawal),
		},
		EntryStore: EntryStore{
			applied: make(map[entryKey]struct{}),
		},
	}
}

func (s *Storage) Close() error {
	return nil
}

func (s *Storage) Ping(_ context.Context) error {
	return nil
}

func (s *Storage) GetOrCreateAccount(
	_ context.Context, userID int64, referredBy *int64, now time.Time,
) (*accounts.Account, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if acct, ok := s.AccountStore.accounts[userID]; ok {
		return acct.Clone(), false, nil
	}

	if referredBy != nil {
		if _, ok := s.AccountStore.accounts[*referredBy]; !ok {
			referredBy = nil
		}
	}

	acct, err := accounts.NewAccount(userID, referredBy, now)
	if err != nil {
		return nil, false, err //nolint:wrapcheck
	}

	s.AccountStore.accounts[userID] = acct

	return acct.Clone(), true, nil
}

func (s *Storage) GetAccount(_ context.Context, userID int64) (*accounts.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct, ok := s.AccountStore.accounts[userID]
	if !ok {
		return nil, storage.ErrAccountNotFound
	}

	return acct.Clone(), nil
}

func (s *Storage) SumEntries(_ context.Context, userID int64, kind accounts.EntryKind) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sum := decimal.Zero

	for _, entry := range s.EntryStore.entries {
		if entry.UserID == userID && entry.Kind == kind {
			sum = sum.Add(entry.Amount)
		}
	}

	return sum, nil
}

func (s *Storage) CountReferrals(_ context.Context, userID int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var count int64

	for _, acct := range s.AccountStore.accounts {
		if ref, ok := acct.ReferredBy(); ok && ref == userID {
			count++
		}
	}

	return count, nil
}

func (s *Storage) CreateTask(_ context.Context, task *tasks.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.TaskStore.nextID++
	task.SetID(s.TaskStore.nextID)

	stored := task.Clone()
	s.TaskStore.tasks = append(s.TaskStore.tasks, stored)
	s.TaskStore.byID[stored.ID()] = stored

	return nil
}

func (s *Storage) GetTask(_ context.Context, id int64) (*tasks.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.TaskStore.byID[id]
	if !ok {
		return nil, storage.ErrTaskNotFound
	}

	return task.Clone(), nil
}

func (s *Storage) AssignTask(_ context.Context, userID int64, now time.Time) (*tasks.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.AccountStore.accounts[userID]; !ok {
		return nil, storage.ErrAccountNotFound
	}

	for _, task := range s.TaskStore.tasks {
		if !task.Claimable(now) {
			continue
		}

		if err := task.Assign(userID, now); err != nil {
			return nil, err //nolint:wrapcheck
		}

		return task.Clone(), nil
	}

	return nil, storage.ErrNoTaskAvailable
}

func (s *Storage) GetTasksHeldBy(_ context.Context, userID int64, now time.Time) ([]*tasks.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	held := make([]*tasks.Task, 0)

	for _, task := range s.TaskStore.tasks {
		if task.IsAssignedTo(userID) && task.HeldAt(now) {
			held = append(held, task.Clone())
		}
	}

	return held, nil
}

func (s *Storage) GetTaskStats(_ context.Context, now time.Time) (tasks.Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var stats tasks.Stats

	for _, task := range s.TaskStore.tasks {
		_, assigned := task.AssignedUser()

		switch {
		case task.Claimable(now):
			stats.Open++
		case !assigned:
			stats.ExpiredUnclaimed++
		case task.HeldAt(now):
			stats.Held++
		default:
			stats.HoldElapsed++
		}
	}

	return stats, nil
}

func (s *Storage) CreateSubmission(_ context.Context, sub *submissions.Submission) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.TaskStore.byID[sub.TaskID()]
	if !ok {
		return storage.ErrTaskNotFound
	}

	if !task.IsAssignedTo(sub.UserID()) {
		return storage.ErrNotAssigned
	}

	for _, existing := range s.SubmissionStore.submissions {
		if existing.UserID() == sub.UserID() && existing.TaskID() == sub.TaskID() && existing.BlocksResubmission() {
			return storage.ErrDuplicateSubmission
		}
	}

	s.SubmissionStore.nextID++
	sub.SetID(s.SubmissionStore.nextID)

	s.SubmissionStore.submissions[sub.ID()] = sub.Clone()

	return nil
}

func (s *Storage) GetSubmission(_ context.Context, id int64) (*submissions.Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, ok := s.SubmissionStore.submissions[id]
	if !ok {
		return nil, storage.ErrSubmissionNotFound
	}

	return sub.Clone(), nil
}

func (s *Storage) GetSubmissionsByStatus(
	_ context.Context, statuses ...submissions.Status,
) ([]*submissions.Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	subs := make([]*submissions.Submission, 0)

	for _, sub := range s.SubmissionStore.submissions {
		if len(statuses) == 0 || containsStatus(statuses, sub.Status()) {
			subs = append(subs, sub.Clone())
		}
	}

	sort.Slice(subs, func(i, j int) bool {
		return subs[i].ID() < subs[j].ID()
	})

	return subs, nil
}

func (s *Storage) ReviewSubmission(
	_ context.Context, id int64, verdict submissions.Verdict, bonus storage.BonusFunc, now time.Time,
) (*storage.SubmissionReview, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.SubmissionStore.submissions[id]
	if !ok {
		return nil, storage.ErrSubmissionNotFound
	}

	sub := stored.Clone()
	if err := sub.Review(verdict, now); err != nil {
		return nil, err //nolint:wrapcheck
	}

	review := &storage.SubmissionReview{
		Submission: sub,
		Reward:     decimal.Zero,
		Bonus:      decimal.Zero,
	}

	// Staged changes are applied only after every step succeeded.
	staged := make(map[int64]*accounts.Account)
	entries := make([]accounts.Entry, 0, 2)

	if sub.Status() == submissions.StatusApproved {
		task, ok := s.TaskStore.byID[sub.TaskID()]
		if !ok {
			return nil, storage.ErrTaskNotFound
		}

		reward := accounts.NewRewardEntry(sub.UserID(), task.Reward(), sub.ID(), now)

		acct, err := s.stageEntry(staged, reward)
		if err != nil {
			return nil, err
		}

		entries = append(entries, reward)
		review.Reward = task.Reward()
		review.Balance = acct.Balance()

		if referrerID, ok := acct.ReferredBy(); ok && bonus != nil {
			amount := bonus(task.Reward())
			if amount.IsPositive() {
				entry := accounts.NewReferralBonusEntry(referrerID, amount, sub.ID(), now)
				if _, err := s.stageEntry(staged, entry); err != nil {
					return nil, err
				}

				entries = append(entries, entry)
				review.ReferrerID = &referrerID
				review.Bonus = amount
			}
		}
	}

	for userID, acct := range staged {
		s.AccountStore.accounts[userID] = acct
	}

	s.commitEntries(entries)
	s.SubmissionStore.submissions[id] = sub.Clone()

	return review, nil
}

func (s *Storage) CreateWithdrawal(_ context.Context, withdrawal *withdrawals.Withdrawal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct, ok := s.AccountStore.accounts[withdrawal.UserID()]
	if !ok {
		return storage.ErrAccountNotFound
	}

	if acct.Balance().LessThan(withdrawal.Amount()) {
		return accounts.ErrBalanceNotEnough
	}

	s.WithdrawalStore.nextID++
	withdrawal.SetID(s.WithdrawalStore.nextID)

	s.WithdrawalStore.withdrawals[withdrawal.ID()] = withdrawal.Clone()

	return nil
}

func (s *Storage) GetWithdrawal(_ context.Context, id int64) (*withdrawals.Withdrawal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	withdrawal, ok := s.WithdrawalStore.withdrawals[id]
	if !ok {
		return nil, storage.ErrWithdrawalNotFound
	}

	return withdrawal.Clone(), nil
}

func (s *Storage) GetWithdrawalsByUser(_ context.Context, userID int64) ([]*withdrawals.Withdrawal, error) {
	return s.filterWithdrawals(func(w *withdrawals.Withdrawal) bool {
		return w.UserID() == userID
	}), nil
}

func (s *Storage) GetWithdrawalsByStatus(
	_ context.Context, statuses ...withdrawals.Status,
) ([]*withdrawals.Withdrawal, error) {
	return s.filterWithdrawals(func(w *withdrawals.Withdrawal) bool {
		if len(statuses) == 0 {
			return true
		}

		for _, status := range statuses {
			if w.Status() == status {
				return true
			}
		}

		return false
	}), nil
}

func (s *Storage) ReviewWithdrawal(
	_ context.Context, id int64, verdict withdrawals.Verdict, now time.Time,
) (*withdrawals.Withdrawal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.WithdrawalStore.withdrawals[id]
	if !ok {
		return nil, storage.ErrWithdrawalNotFound
	}

	withdrawal := stored.Clone()
	if err := withdrawal.Apply(verdict, now); err != nil {
		return nil, err //nolint:wrapcheck
	}

	if withdrawal.Status() == withdrawals.StatusPaid {
		staged := make(map[int64]*accounts.Account)
		entry := accounts.NewWithdrawalEntry(withdrawal.UserID(), withdrawal.Amount(), withdrawal.ID(), now)

		if _, err := s.stageEntry(staged, entry); err != nil {
			return nil, err
		}

		for userID, acct := range staged {
			s.AccountStore.accounts[userID] = acct
		}

		s.commitEntries([]accounts.Entry{entry})
	}

	s.WithdrawalStore.withdrawals[id] = withdrawal.Clone()

	return withdrawal, nil
}

// stageEntry applies entry to a staged copy of the account. Callers must hold mu.
func (s *Storage) stageEntry(staged map[int64]*accounts.Account, entry accounts.Entry) (*accounts.Account, error) {
	if _, ok := s.EntryStore.applied[keyOf(entry)]; ok {
		return nil, storage.ErrEntryAlreadyApplied
	}

	acct, ok := staged[entry.UserID]
	if !ok {
		stored, ok := s.AccountStore.accounts[entry.UserID]
		if !ok {
			return nil, storage.ErrAccountNotFound
		}

		acct = stored.Clone()
	}

	var err error
	if entry.Amount.IsNegative() {
		err = acct.Debit(entry.Amount.Neg())
	} else {
		err = acct.Credit(entry.Amount)
	}

	if err != nil {
		return nil, err //nolint:wrapcheck
	}

	staged[entry.UserID] = acct

	return acct, nil
}

func (s *Storage) commitEntries(entries []accounts.Entry) {
	for _, entry := range entries {
		s.EntryStore.entries = append(s.EntryStore.entries, entry)
		s.EntryStore.applied[keyOf(entry)] = struct{}{}
	}
}

func (s *Storage) filterWithdrawals(match func(w *withdrawals.Withdrawal) bool) []*withdrawals.Withdrawal {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make([]*withdrawals.Withdrawal, 0)

	for _, withdrawal := range s.WithdrawalStore.withdrawals {
		if match(withdrawal) {
			result = append(result, withdrawal.Clone())
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].ID() < result[j].ID()
	})

	return result
}

func keyOf(entry accounts.Entry) entryKey {
	if entry.SubmissionID != nil {
		return entryKey{kind: entry.Kind, sourceID: *entry.SubmissionID, isSub: true}
	}

	var sourceID int64
	if entry.WithdrawalID != nil {
		sourceID = *entry.WithdrawalID
	}

	return entryKey{kind: entry.Kind, sourceID: sourceID}
}

func containsStatus(statuses []submissions.Status, status submissions.Status) bool {
	for _, s := range statuses {
		if s == status {
			return true
		}
	}

	return false
}
