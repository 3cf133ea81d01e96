package ledger

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/modelmart/backend/internal/audit"
	"github.com/modelmart/backend/internal/models"
)

type account struct {
	mu         sync.Mutex
	balance    int64
	allowances map[string]int64
}

// Ledger is an in-memory fungible token ledger tracking balances,
// allowances, total supply and the single most recent transfer. Balance
// movements take per-account locks in address order so a
// check-balance-then-debit sequence can never interleave with another
// debit against the same account.
type Ledger struct {
	name     string
	symbol   string
	decimals int

	mu          sync.Mutex // guards accounts map and totalSupply
	accounts    map[string]*account
	totalSupply int64

	recentMu  sync.Mutex
	recent    models.TransferRecord
	hasRecent bool

	audit *audit.Logger
}

func New(name, symbol string, decimals int, auditLogger *audit.Logger) *Ledger {
	return &Ledger{
		name:     name,
		symbol:   symbol,
		decimals: decimals,
		accounts: make(map[string]*account),
		audit:    auditLogger,
	}
}

// NormalizeAddress lower-cases an address so case variants map to the same
// logical account. Normalization happens once at the ledger boundary.
func NormalizeAddress(addr string) string {
	return strings.ToLower(strings.TrimSpace(addr))
}

func (l *Ledger) Info() models.TokenInfo {
	l.mu.Lock()
	defer l.mu.Unlock()
	return models.TokenInfo{
		Name:        l.name,
		Symbol:      l.symbol,
		Decimals:    l.decimals,
		TotalSupply: l.totalSupply,
	}
}

func (l *Ledger) TotalSupply() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.totalSupply
}

// BalanceOf never fails; an unknown address holds 0.
func (l *Ledger) BalanceOf(addr string) int64 {
	acc := l.lookup(NormalizeAddress(addr))
	if acc == nil {
		return 0
	}
	acc.mu.Lock()
	defer acc.mu.Unlock()
	return acc.balance
}

// Allowance returns 0 if the owner never approved the spender.
func (l *Ledger) Allowance(owner, spender string) int64 {
	acc := l.lookup(NormalizeAddress(owner))
	if acc == nil {
		return 0
	}
	acc.mu.Lock()
	defer acc.mu.Unlock()
	return acc.allowances[NormalizeAddress(spender)]
}

// Approve overwrites the spender's prior allowance. Allowances are
// independent of balance and only enforced at spend time.
func (l *Ledger) Approve(owner, spender string, amount int64) error {
	owner = NormalizeAddress(owner)
	spender = NormalizeAddress(spender)
	if owner == "" {
		return ErrInvalidApprover
	}
	if spender == "" {
		return ErrInvalidSpender
	}
	if amount < 0 {
		return ErrInvalidAmount
	}

	acc := l.getOrCreate(owner)
	acc.mu.Lock()
	acc.allowances[spender] = amount
	acc.mu.Unlock()

	if l.audit != nil {
		l.audit.LogApproval(owner, spender, amount)
	}
	return nil
}

// Transfer debits the sender and credits the recipient atomically, then
// overwrites the most recent transfer record.
func (l *Ledger) Transfer(ctx context.Context, sender, recipient string, amount int64) error {
	sender = NormalizeAddress(sender)
	recipient = NormalizeAddress(recipient)
	if sender == "" {
		return ErrInvalidSender
	}
	if recipient == "" {
		return ErrInvalidReceiver
	}
	if amount <= 0 {
		return ErrInvalidAmount
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := l.move(sender, recipient, amount, 0, ""); err != nil {
		return err
	}

	l.recordTransfer(sender, recipient, amount)
	return nil
}

// TransferFrom spends the owner's allowance on their behalf. The allowance
// is checked and decremented before the balance movement, so a spender
// cannot drain more than authorized even under concurrent calls.
func (l *Ledger) TransferFrom(ctx context.Context, spender, owner, recipient string, amount int64) error {
	spender = NormalizeAddress(spender)
	owner = NormalizeAddress(owner)
	recipient = NormalizeAddress(recipient)
	if spender == "" {
		return ErrInvalidSpender
	}
	if owner == "" {
		return ErrInvalidSender
	}
	if recipient == "" {
		return ErrInvalidReceiver
	}
	if amount <= 0 {
		return ErrInvalidAmount
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := l.move(owner, recipient, amount, amount, spender); err != nil {
		return err
	}

	l.recordTransfer(owner, recipient, amount)
	return nil
}

// Mint credits new tokens to the recipient and grows the total supply.
// Used at startup to seed the treasury.
func (l *Ledger) Mint(recipient string, amount int64) error {
	recipient = NormalizeAddress(recipient)
	if recipient == "" {
		return ErrInvalidReceiver
	}
	if amount <= 0 {
		return ErrInvalidAmount
	}

	acc := l.getOrCreate(recipient)
	acc.mu.Lock()
	acc.balance += amount
	acc.mu.Unlock()

	l.mu.Lock()
	l.totalSupply += amount
	l.mu.Unlock()
	return nil
}

// RecentTransfer returns the single most recent transfer record. The
// second return value is false before any transfer has occurred.
func (l *Ledger) RecentTransfer() (models.TransferRecord, bool) {
	l.recentMu.Lock()
	defer l.recentMu.Unlock()
	return l.recent, l.hasRecent
}

func (l *Ledger) TransferSender() string {
	rec, _ := l.RecentTransfer()
	return rec.Sender
}

func (l *Ledger) TransferReceiver() string {
	rec, _ := l.RecentTransfer()
	return rec.Receiver
}

func (l *Ledger) TransferTimestamp() time.Time {
	rec, _ := l.RecentTransfer()
	return rec.Timestamp
}

// move performs the locked debit/credit. When spendAllowance > 0 the
// spender's allowance on the from-account is verified and decremented
// while the from-account lock is held, before any balance changes.
func (l *Ledger) move(from, to string, amount, spendAllowance int64, spender string) error {
	fromAcc := l.getOrCreate(from)
	toAcc := l.getOrCreate(to)

	if from == to {
		fromAcc.mu.Lock()
		defer fromAcc.mu.Unlock()
		return l.applyMove(fromAcc, fromAcc, amount, spendAllowance, spender)
	}

	// Lock accounts in consistent order to prevent deadlocks.
	first, second := fromAcc, toAcc
	if from > to {
		first, second = toAcc, fromAcc
	}
	first.mu.Lock()
	defer first.mu.Unlock()
	second.mu.Lock()
	defer second.mu.Unlock()

	return l.applyMove(fromAcc, toAcc, amount, spendAllowance, spender)
}

func (l *Ledger) applyMove(fromAcc, toAcc *account, amount, spendAllowance int64, spender string) error {
	if spendAllowance > 0 {
		if fromAcc.allowances[spender] < spendAllowance {
			return ErrInsufficientAllowance
		}
	}
	if fromAcc.balance < amount {
		return ErrInsufficientBalance
	}
	if spendAllowance > 0 {
		fromAcc.allowances[spender] -= spendAllowance
	}
	fromAcc.balance -= amount
	toAcc.balance += amount
	return nil
}

func (l *Ledger) recordTransfer(from, to string, amount int64) {
	l.recentMu.Lock()
	l.recent = models.TransferRecord{
		Sender:    from,
		Receiver:  to,
		Amount:    amount,
		Timestamp: time.Now(),
	}
	l.hasRecent = true
	l.recentMu.Unlock()

	if l.audit != nil {
		l.audit.LogTransfer("", from, to, amount, "SUCCESS")
	}
}

func (l *Ledger) lookup(addr string) *account {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.accounts[addr]
}

func (l *Ledger) getOrCreate(addr string) *account {
	l.mu.Lock()
	defer l.mu.Unlock()
	acc, ok := l.accounts[addr]
	if !ok {
		acc = &account{allowances: make(map[string]int64)}
		l.accounts[addr] = acc
	}
	return acc
}
