package ledger

import (
	"context"
	"iter"
	"log/slog"
	"slices"
	"time"

	"github.com/billbatista/acasinha-pots/apperrors"
	"github.com/billbatista/acasinha-pots/pot"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Repository interface {
	// Insert stores t with its splits and returns it with Seq set. Insert,
	// Replace and Delete read the pot's WriteState under lock inside the
	// write and abort with guard's error when it rejects the change.
	Insert(ctx context.Context, t Transaction, guard Guard) (Transaction, error)
	Replace(ctx context.Context, t Transaction, guard Guard) error
	Delete(ctx context.Context, potID, id uuid.UUID, guard Guard) error
	Get(ctx context.Context, id uuid.UUID) (Transaction, error)
	ListByPot(ctx context.Context, potID uuid.UUID) ([]Transaction, error)
}

// WriteState is the part of a pot a ledger write depends on: its status and
// the role of every current member.
type WriteState struct {
	Status  pot.Status
	Members map[uuid.UUID]pot.Role
}

// Guard vets a write against the WriteState seen inside it.
type Guard func(WriteState) error

// authorize checks that actorID may change the ledger. needWrite asks for an
// owner or admin.
func (st WriteState) authorize(actorID uuid.UUID, needWrite bool) error {
	role, ok := st.Members[actorID]
	if !ok || !role.Valid() {
		return ErrNotMember
	}
	if needWrite && !pot.CanWrite(role) {
		return ErrNotAllowed
	}
	if st.Status == pot.StatusArchived {
		return ErrPotArchived
	}
	return nil
}

func (st WriteState) memberSet() map[uuid.UUID]bool {
	set := make(map[uuid.UUID]bool, len(st.Members))
	for id := range st.Members {
		set[id] = true
	}
	return set
}

type Pots interface {
	Get(ctx context.Context, potID uuid.UUID) (pot.Pot, error)
}

type Members interface {
	ListMembers(ctx context.Context, potID uuid.UUID) ([]pot.Membership, error)
}

type Service struct {
	repo    Repository
	pots    Pots
	members Members
	now     func() time.Time
	logger  *slog.Logger
}

func NewService(repo Repository, pots Pots, members Members, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, pots: pots, members: members, now: time.Now, logger: logger}
}

type RecordInput struct {
	PotID       uuid.UUID
	ActorID     uuid.UUID
	Amount      decimal.Decimal
	Title       string
	Description string
	Category    string
	Splits      SplitDetails
}

// Patch replaces the editable fields of a transaction. The payer, pot and
// timestamp never change.
type Patch struct {
	Amount      decimal.Decimal
	Title       string
	Description string
	Category    string
	Splits      SplitDetails
}

// Record appends a deposit or an expense to the pot. Any member may record.
func (s *Service) Record(ctx context.Context, in RecordInput) (Transaction, error) {
	p, st, err := s.load(ctx, in.PotID)
	if err != nil {
		return Transaction{}, err
	}
	if err := st.authorize(in.ActorID, false); err != nil {
		return Transaction{}, err
	}

	t, err := NewTransaction(in.PotID, in.ActorID, in.Amount, in.Title, in.Description, in.Category, in.Splits, p.Scale(), s.now())
	if err != nil {
		return Transaction{}, err
	}
	guard := func(st WriteState) error {
		if err := st.authorize(in.ActorID, false); err != nil {
			return err
		}
		if t.IsExpense() {
			return ValidateSplits(t.Amount, t.Splits, st.memberSet(), p.MinorUnit())
		}
		return nil
	}
	if err := guard(st); err != nil {
		return Transaction{}, err
	}

	t, err = s.repo.Insert(ctx, t, guard)
	if err != nil {
		return Transaction{}, apperrors.FromStore("recording transaction", err)
	}

	s.logger.Info("transaction recorded", "pot_id", t.PotID, "transaction_id", t.ID, "amount", t.Amount.String())
	return t, nil
}

// Edit applies patch to a stored transaction. Only the owner or an admin may
// edit. Split keys may name current members or anyone already on the
// transaction, so history involving former members stays editable.
func (s *Service) Edit(ctx context.Context, txID, actorID uuid.UUID, patch Patch) (Transaction, error) {
	old, p, st, err := s.loadForChange(ctx, txID, actorID)
	if err != nil {
		return Transaction{}, err
	}

	t, err := NewTransaction(old.PotID, old.UserID, patch.Amount, patch.Title, patch.Description, patch.Category, patch.Splits, p.Scale(), old.CreatedAt)
	if err != nil {
		return Transaction{}, err
	}
	t.ID = old.ID
	t.Seq = old.Seq

	guard := func(st WriteState) error {
		if err := st.authorize(actorID, true); err != nil {
			return err
		}
		if !t.IsExpense() {
			return nil
		}
		allowed := st.memberSet()
		allowed[old.UserID] = true
		for id := range old.Splits {
			allowed[id] = true
		}
		return ValidateSplits(t.Amount, t.Splits, allowed, p.MinorUnit())
	}
	if err := guard(st); err != nil {
		return Transaction{}, err
	}

	if err := s.repo.Replace(ctx, t, guard); err != nil {
		return Transaction{}, apperrors.FromStore("editing transaction", err)
	}

	s.logger.Info("transaction edited", "pot_id", t.PotID, "transaction_id", t.ID, "actor_id", actorID)
	return t, nil
}

// Delete removes a transaction and its splits. Only the owner or an admin may
// delete.
func (s *Service) Delete(ctx context.Context, txID, actorID uuid.UUID) (Transaction, error) {
	old, _, _, err := s.loadForChange(ctx, txID, actorID)
	if err != nil {
		return Transaction{}, err
	}
	guard := func(st WriteState) error {
		return st.authorize(actorID, true)
	}
	if err := s.repo.Delete(ctx, old.PotID, txID, guard); err != nil {
		return Transaction{}, apperrors.FromStore("deleting transaction", err)
	}

	s.logger.Info("transaction deleted", "pot_id", old.PotID, "transaction_id", old.ID, "actor_id", actorID)
	return old, nil
}

func (s *Service) Get(ctx context.Context, txID uuid.UUID) (Transaction, error) {
	t, err := s.repo.Get(ctx, txID)
	if err != nil {
		return Transaction{}, apperrors.FromStore("loading transaction", err)
	}
	return t, nil
}

// Snapshot returns every transaction of the pot, newest first.
func (s *Service) Snapshot(ctx context.Context, potID uuid.UUID) ([]Transaction, error) {
	txs, err := s.repo.ListByPot(ctx, potID)
	if err != nil {
		return nil, apperrors.FromStore("listing transactions", err)
	}
	return txs, nil
}

// ListForPot is Snapshot as a sequence. The snapshot is taken before the
// sequence is returned, so iterating never touches the store.
func (s *Service) ListForPot(ctx context.Context, potID uuid.UUID) (iter.Seq[Transaction], error) {
	txs, err := s.Snapshot(ctx, potID)
	if err != nil {
		return nil, err
	}
	return slices.Values(txs), nil
}

func (s *Service) loadForChange(ctx context.Context, txID, actorID uuid.UUID) (Transaction, pot.Pot, WriteState, error) {
	old, err := s.Get(ctx, txID)
	if err != nil {
		return Transaction{}, pot.Pot{}, WriteState{}, err
	}
	p, st, err := s.load(ctx, old.PotID)
	if err != nil {
		return Transaction{}, pot.Pot{}, WriteState{}, err
	}
	if err := st.authorize(actorID, true); err != nil {
		return Transaction{}, pot.Pot{}, WriteState{}, err
	}
	return old, p, st, nil
}

// load reads the pot and its members ahead of a write, so bad requests fail
// before the store opens a transaction. The write checks again under lock.
func (s *Service) load(ctx context.Context, potID uuid.UUID) (pot.Pot, WriteState, error) {
	p, err := s.pots.Get(ctx, potID)
	if err != nil {
		return pot.Pot{}, WriteState{}, err
	}
	members, err := s.members.ListMembers(ctx, potID)
	if err != nil {
		return pot.Pot{}, WriteState{}, err
	}
	st := WriteState{Status: p.Status, Members: make(map[uuid.UUID]pot.Role, len(members))}
	for _, m := range members {
		st.Members[m.UserID] = m.Role
	}
	return p, st, nil
}
