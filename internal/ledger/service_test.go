package ledger

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/zenithcode/backend/internal/models"
)

// ---------------------------------------------------------------------------
// In-memory mocks for AccountStore and TransactionLog. These let us test the
// real Service logic without a database.
// ---------------------------------------------------------------------------

type noopTx struct{}

func (noopTx) Begin(context.Context) (pgx.Tx, error) { return noopTx{}, nil }
func (noopTx) Commit(context.Context) error          { return nil }
func (noopTx) Rollback(context.Context) error        { return nil }
func (noopTx) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	return pgconn.NewCommandTag(""), nil
}
func (noopTx) Query(context.Context, string, ...any) (pgx.Rows, error) { return nil, nil }
func (noopTx) QueryRow(context.Context, string, ...any) pgx.Row        { return nil }
func (noopTx) CopyFrom(context.Context, pgx.Identifier, []string, pgx.CopyFromSource) (int64, error) {
	return 0, nil
}
func (noopTx) SendBatch(context.Context, *pgx.Batch) pgx.BatchResults { return nil }
func (noopTx) LargeObjects() pgx.LargeObjects                         { return pgx.LargeObjects{} }
func (noopTx) Prepare(context.Context, string, string) (*pgconn.StatementDescription, error) {
	return nil, nil
}
func (noopTx) Conn() *pgx.Conn { return nil }

type mockPool struct{}

func (mockPool) Begin(context.Context) (pgx.Tx, error) { return noopTx{}, nil }

type mockAccounts struct {
	mu        sync.Mutex
	users     map[uuid.UUID]*models.User
	lockOrder []uuid.UUID
}

func newMockAccounts(users ...*models.User) *mockAccounts {
	m := &mockAccounts{users: make(map[uuid.UUID]*models.User)}
	for _, u := range users {
		cp := *u
		m.users[u.ID] = &cp
	}
	return m
}

func (m *mockAccounts) GetByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *u
	return &cp, nil
}

func (m *mockAccounts) GetByIDForUpdate(_ context.Context, _ pgx.Tx, id uuid.UUID) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	m.lockOrder = append(m.lockOrder, id)
	cp := *u
	return &cp, nil
}

func (m *mockAccounts) AddBalance(_ context.Context, _ pgx.Tx, id uuid.UUID, amount decimal.Decimal) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return decimal.Zero, pgx.ErrNoRows
	}
	u.Balance = u.Balance.Add(amount)
	return u.Balance, nil
}

func (m *mockAccounts) DeductBalance(_ context.Context, _ pgx.Tx, id uuid.UUID, amount decimal.Decimal) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return decimal.Zero, pgx.ErrNoRows
	}
	if u.Balance.LessThan(amount) {
		return decimal.Zero, ErrInsufficientBalance
	}
	u.Balance = u.Balance.Sub(amount)
	return u.Balance, nil
}

func (m *mockAccounts) IncrementEarned(_ context.Context, _ pgx.Tx, id uuid.UUID, amount decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return pgx.ErrNoRows
	}
	u.TotalEarned = u.TotalEarned.Add(amount)
	return nil
}

func (m *mockAccounts) balance(id uuid.UUID) decimal.Decimal {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.users[id].Balance
}

func (m *mockAccounts) earned(id uuid.UUID) decimal.Decimal {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.users[id].TotalEarned
}

type mockTxLog struct {
	mu      sync.Mutex
	records []*models.Transaction
}

func (m *mockTxLog) CreateTx(_ context.Context, _ pgx.Tx, t *models.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *t
	m.records = append(m.records, &cp)
	return nil
}

func (m *mockTxLog) all() []*models.Transaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.Transaction, len(m.records))
	copy(out, m.records)
	return out
}

func user(id uuid.UUID, balance int64) *models.User {
	return &models.User{ID: id, Balance: decimal.NewFromInt(balance)}
}

func dec(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestCredit(t *testing.T) {
	alice := uuid.New()
	accounts := newMockAccounts(user(alice, 0))
	log := &mockTxLog{}
	svc := NewService(mockPool{}, accounts, log)

	ctx := context.Background()
	rec, err := svc.Credit(ctx, alice, dec(50), models.TxReasonPatternReward, "test credit")
	if err != nil {
		t.Fatalf("Credit: %v", err)
	}
	if !accounts.balance(alice).Equal(dec(50)) {
		t.Errorf("balance: got %s, want 50", accounts.balance(alice))
	}
	// EARNED credits also accrue into total_earned.
	if !accounts.earned(alice).Equal(dec(50)) {
		t.Errorf("total_earned: got %s, want 50", accounts.earned(alice))
	}
	if rec.Kind != models.TxKindEarned {
		t.Errorf("kind: got %s, want EARNED", rec.Kind)
	}
	if !rec.Amount.Equal(dec(50)) || !rec.BalanceAfter.Equal(dec(50)) {
		t.Errorf("record amount/balance_after: got %s/%s, want 50/50", rec.Amount, rec.BalanceAfter)
	}

	if _, err := svc.Credit(ctx, alice, dec(0), models.TxReasonPatternReward, ""); err != ErrInvalidAmount {
		t.Errorf("zero credit: expected ErrInvalidAmount, got %v", err)
	}
	if _, err := svc.Credit(ctx, alice, dec(-5), models.TxReasonPatternReward, ""); err != ErrInvalidAmount {
		t.Errorf("negative credit: expected ErrInvalidAmount, got %v", err)
	}
	if _, err := svc.Credit(ctx, uuid.New(), dec(1), models.TxReasonPatternReward, ""); err != ErrAccountNotFound {
		t.Errorf("unknown account: expected ErrAccountNotFound, got %v", err)
	}
}

func TestDebit(t *testing.T) {
	alice := uuid.New()
	accounts := newMockAccounts(user(alice, 100))
	log := &mockTxLog{}
	svc := NewService(mockPool{}, accounts, log)

	ctx := context.Background()
	rec, err := svc.Debit(ctx, alice, dec(30), models.TxReasonJobReservation, "test debit")
	if err != nil {
		t.Fatalf("Debit: %v", err)
	}
	if !accounts.balance(alice).Equal(dec(70)) {
		t.Errorf("balance: got %s, want 70", accounts.balance(alice))
	}
	// Debit records carry a negative signed amount.
	if !rec.Amount.Equal(dec(-30)) {
		t.Errorf("record amount: got %s, want -30", rec.Amount)
	}
	if !rec.BalanceAfter.Equal(dec(70)) {
		t.Errorf("balance_after: got %s, want 70", rec.BalanceAfter)
	}
	// SPENT does not touch total_earned.
	if !accounts.earned(alice).Equal(dec(0)) {
		t.Errorf("total_earned after debit: got %s, want 0", accounts.earned(alice))
	}

	// Overdraft is rejected before any mutation.
	if _, err := svc.Debit(ctx, alice, dec(71), models.TxReasonJobReservation, ""); err != ErrInsufficientBalance {
		t.Errorf("overdraft: expected ErrInsufficientBalance, got %v", err)
	}
	if !accounts.balance(alice).Equal(dec(70)) {
		t.Errorf("balance after failed debit: got %s, want 70", accounts.balance(alice))
	}
	if n := len(log.all()); n != 1 {
		t.Errorf("log entries after failed debit: got %d, want 1", n)
	}

	// Draining to exactly zero is allowed.
	if _, err := svc.Debit(ctx, alice, dec(70), models.TxReasonJobReservation, ""); err != nil {
		t.Fatalf("debit to zero: %v", err)
	}
	if !accounts.balance(alice).IsZero() {
		t.Errorf("balance: got %s, want 0", accounts.balance(alice))
	}
}

func TestTransfer(t *testing.T) {
	alice := uuid.New()
	bob := uuid.New()
	accounts := newMockAccounts(user(alice, 100), user(bob, 0))
	log := &mockTxLog{}
	svc := NewService(mockPool{}, accounts, log)

	ctx := context.Background()
	debitRec, creditRec, err := svc.Transfer(ctx, alice, bob, dec(40))
	if err != nil {
		t.Fatalf("Transfer: %v", err)
	}
	if !accounts.balance(alice).Equal(dec(60)) {
		t.Errorf("sender balance: got %s, want 60", accounts.balance(alice))
	}
	if !accounts.balance(bob).Equal(dec(40)) {
		t.Errorf("receiver balance: got %s, want 40", accounts.balance(bob))
	}

	// Both legs share a transfer id and use the TRANSFERRED kind.
	if debitRec.TransferID == nil || creditRec.TransferID == nil || *debitRec.TransferID != *creditRec.TransferID {
		t.Error("debit and credit legs should share a transfer id")
	}
	if debitRec.Kind != models.TxKindTransferred || creditRec.Kind != models.TxKindTransferred {
		t.Errorf("kinds: got %s/%s, want TRANSFERRED/TRANSFERRED", debitRec.Kind, creditRec.Kind)
	}
	// TRANSFERRED must not bump total_earned for the receiver.
	if !accounts.earned(bob).IsZero() {
		t.Errorf("receiver total_earned: got %s, want 0", accounts.earned(bob))
	}

	// Overdraft transfer fails and moves nothing.
	if _, _, err := svc.Transfer(ctx, alice, bob, dec(1000)); err != ErrInsufficientBalance {
		t.Errorf("overdraft transfer: expected ErrInsufficientBalance, got %v", err)
	}
	if !accounts.balance(alice).Equal(dec(60)) || !accounts.balance(bob).Equal(dec(40)) {
		t.Errorf("balances after failed transfer: got %s/%s, want 60/40",
			accounts.balance(alice), accounts.balance(bob))
	}

	if _, _, err := svc.Transfer(ctx, alice, alice, dec(10)); err != ErrSelfTransfer {
		t.Errorf("self transfer: expected ErrSelfTransfer, got %v", err)
	}
	if _, _, err := svc.Transfer(ctx, alice, bob, dec(0)); err != ErrInvalidAmount {
		t.Errorf("zero transfer: expected ErrInvalidAmount, got %v", err)
	}
	if _, _, err := svc.Transfer(ctx, alice, uuid.New(), dec(1)); err != ErrAccountNotFound {
		t.Errorf("unknown receiver: expected ErrAccountNotFound, got %v", err)
	}
}

// Transfers lock account rows in UUID-string order regardless of direction,
// so two opposing transfers cannot deadlock.
func TestTransferLockOrder(t *testing.T) {
	alice := uuid.New()
	bob := uuid.New()

	lo, hi := alice, bob
	if bob.String() < alice.String() {
		lo, hi = bob, alice
	}

	for _, dir := range []struct {
		name     string
		from, to uuid.UUID
	}{
		{"low to high", lo, hi},
		{"high to low", hi, lo},
	} {
		t.Run(dir.name, func(t *testing.T) {
			accounts := newMockAccounts(user(alice, 100), user(bob, 100))
			svc := NewService(mockPool{}, accounts, &mockTxLog{})

			if _, _, err := svc.Transfer(context.Background(), dir.from, dir.to, dec(10)); err != nil {
				t.Fatalf("Transfer: %v", err)
			}
			// First two locks are the ordered pair; the per-leg re-locks
			// that follow never precede them.
			if len(accounts.lockOrder) < 2 {
				t.Fatalf("lock calls: got %d, want >= 2", len(accounts.lockOrder))
			}
			if accounts.lockOrder[0] != lo || accounts.lockOrder[1] != hi {
				t.Errorf("lock order: got %v then %v, want %v then %v",
					accounts.lockOrder[0], accounts.lockOrder[1], lo, hi)
			}
		})
	}
}

// Full cycle: credits, debits and transfers must conserve total supply minus
// explicit mints (EARNED) plus explicit burns (SPENT), and the log replays to
// the final balances.
func TestLedgerIntegrity(t *testing.T) {
	alice := uuid.New()
	bob := uuid.New()
	accounts := newMockAccounts(user(alice, 100), user(bob, 0))
	log := &mockTxLog{}
	svc := NewService(mockPool{}, accounts, log)

	ctx := context.Background()
	if _, err := svc.Credit(ctx, bob, dec(25), models.TxReasonPatternReward, "reward"); err != nil {
		t.Fatalf("Credit: %v", err)
	}
	if _, _, err := svc.Transfer(ctx, alice, bob, dec(40)); err != nil {
		t.Fatalf("Transfer: %v", err)
	}
	if _, err := svc.Debit(ctx, bob, dec(15), models.TxReasonJobReservation, "job"); err != nil {
		t.Fatalf("Debit: %v", err)
	}

	// Replay the signed log per account.
	deltas := map[uuid.UUID]decimal.Decimal{
		alice: decimal.Zero,
		bob:   decimal.Zero,
	}
	for _, rec := range log.all() {
		deltas[rec.UserID] = deltas[rec.UserID].Add(rec.Amount)
	}
	initials := map[uuid.UUID]decimal.Decimal{
		alice: dec(100),
		bob:   dec(0),
	}
	for id, initial := range initials {
		want := initial.Add(deltas[id])
		if got := accounts.balance(id); !got.Equal(want) {
			t.Errorf("account %s: initial(%s) + log_sum(%s) = %s, but balance is %s",
				id, initial, deltas[id], want, got)
		}
	}

	// 100 initial + 25 minted - 15 burned = 110.
	total := accounts.balance(alice).Add(accounts.balance(bob))
	if !total.Equal(dec(110)) {
		t.Errorf("total supply: got %s, want 110", total)
	}
}
