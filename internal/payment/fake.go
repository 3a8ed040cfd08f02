package payment

import (
	"context"
	"fmt"
	"sync"
)

// Fake is an in-memory Gateway for tests and local development. It hands
// out deterministic session ids and lets callers flip payment status and
// script transfer failures per payee.
type Fake struct {
	mu          sync.Mutex
	nextSession int
	nextXfer    int
	sessions    map[string]*Session
	creates     []CreateSessionInput
	transfers   []TransferInput
	failures    map[string][]error
}

func NewFake() *Fake {
	return &Fake{
		sessions: map[string]*Session{},
		failures: map[string][]error{},
	}
}

func (f *Fake) CreateCheckoutSession(_ context.Context, in CreateSessionInput) (*Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextSession++
	f.creates = append(f.creates, in)
	id := fmt.Sprintf("cs_test_%03d", f.nextSession)

	var total int64
	for _, li := range in.LineItems {
		total += li.UnitAmountCents * int64(li.Quantity)
	}
	md := make(map[string]string, len(in.Metadata))
	for k, v := range in.Metadata {
		md[k] = v
	}
	sess := &Session{
		ID:               id,
		RedirectURL:      "https://pay.example.test/c/" + id,
		Status:           StatusUnpaid,
		AmountTotalCents: total,
		Metadata:         md,
	}
	f.sessions[id] = sess
	dup := *sess
	return &dup, nil
}

func (f *Fake) GetSession(_ context.Context, sessionID string) (*Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sess, ok := f.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("no such session %q", sessionID)
	}
	dup := *sess
	return &dup, nil
}

func (f *Fake) Transfer(_ context.Context, in TransferInput) (*Transfer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transfers = append(f.transfers, in)
	if queue := f.failures[in.PayeeID]; len(queue) > 0 {
		err := queue[0]
		f.failures[in.PayeeID] = queue[1:]
		return nil, err
	}
	f.nextXfer++
	return &Transfer{ID: fmt.Sprintf("tr_test_%03d", f.nextXfer)}, nil
}

// MarkPaid flips a session to paid, as the provider would after checkout.
func (f *Fake) MarkPaid(sessionID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if sess, ok := f.sessions[sessionID]; ok {
		sess.Status = StatusPaid
	}
}

// Seed installs a session directly, for settlement tests that skip the
// build step.
func (f *Fake) Seed(sess Session) {
	f.mu.Lock()
	defer f.mu.Unlock()
	dup := sess
	f.sessions[sess.ID] = &dup
}

// FailNextTransfers queues n failures for a payee; subsequent transfers
// succeed again.
func (f *Fake) FailNextTransfers(payeeID string, n int, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := 0; i < n; i++ {
		f.failures[payeeID] = append(f.failures[payeeID], err)
	}
}

// LastCreate returns the input of the most recent session creation.
func (f *Fake) LastCreate() CreateSessionInput {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.creates) == 0 {
		return CreateSessionInput{}
	}
	return f.creates[len(f.creates)-1]
}

// Transfers returns a snapshot of every transfer attempted so far.
func (f *Fake) Transfers() []TransferInput {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]TransferInput, len(f.transfers))
	copy(out, f.transfers)
	return out
}

var _ Gateway = (*Fake)(nil)
