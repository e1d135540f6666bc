// Package app is the entry point the transports call. It checks that the
// caller may see a pot, delegates to the pot, membership and ledger services,
// decorates results with profiles and emits domain events.
package app

import (
	"bytes"
	"context"
	"log/slog"
	"slices"

	"github.com/billbatista/acasinha-pots/apperrors"
	"github.com/billbatista/acasinha-pots/eventlogger"
	"github.com/billbatista/acasinha-pots/ledger"
	"github.com/billbatista/acasinha-pots/membership"
	"github.com/billbatista/acasinha-pots/pot"
	"github.com/billbatista/acasinha-pots/user"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrNonPositiveAmount = apperrors.Validation("TX_AMOUNT_NOT_POSITIVE", "amount must be greater than zero")
	ErrAmbiguousSplit    = apperrors.Validation("TX_SPLIT_AMBIGUOUS", "give either split details or members to split among, not both")
	ErrNotMember         = apperrors.Authorization("POT_NOT_MEMBER", "you are not a member of this pot")
	ErrTxNotInPot        = apperrors.NotFound("TX_NOT_IN_POT", "transaction not found in this pot")
)

type ProfileLookup interface {
	Profiles(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]user.Profile, error)
}

type EventLog interface {
	Log(e eventlogger.Event)
}

type Service struct {
	pots     *pot.Registry
	members  *membership.Service
	ledger   *ledger.Service
	profiles ProfileLookup
	events   EventLog
	logger   *slog.Logger
}

// New wires the facade. events may be nil, in which case nothing is emitted.
func New(pots *pot.Registry, members *membership.Service, ledgerSvc *ledger.Service, profiles ProfileLookup, events EventLog, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		pots:     pots,
		members:  members,
		ledger:   ledgerSvc,
		profiles: profiles,
		events:   events,
		logger:   logger,
	}
}

type MemberView struct {
	pot.Membership
	Name      string `json:"name"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

type TransactionView struct {
	ledger.Transaction
	PayerName string `json:"payer_name"`
}

type BalanceView struct {
	UserID  uuid.UUID       `json:"user_id"`
	Name    string          `json:"name"`
	Balance decimal.Decimal `json:"balance"`
	// Member is false for former members who still appear in the history.
	Member bool `json:"member"`
}

type Summary struct {
	Pot          pot.Pot           `json:"pot"`
	Progress     decimal.Decimal   `json:"progress"`
	Members      []MemberView      `json:"members"`
	Transactions []TransactionView `json:"transactions"`
	Balances     []BalanceView     `json:"balances"`
}

func (s *Service) CreatePot(ctx context.Context, actorID uuid.UUID, name string, target decimal.Decimal, currency string) (pot.Pot, error) {
	p, err := s.pots.CreatePot(ctx, pot.CreateInput{
		Name:         name,
		TargetAmount: target,
		Currency:     currency,
		OwnerID:      actorID,
	})
	if err != nil {
		return pot.Pot{}, err
	}
	s.emit(EventPotCreated, p.ID, actorID, map[string]string{
		"name":          p.Name,
		"currency":      p.Currency,
		"target_amount": p.TargetAmount.String(),
	})
	return p, nil
}

// ListPots returns the pots actorID belongs to, newest first.
func (s *Service) ListPots(ctx context.Context, actorID uuid.UUID) ([]pot.Pot, error) {
	return s.pots.ListForUser(ctx, actorID)
}

func (s *Service) GetPot(ctx context.Context, potID, actorID uuid.UUID) (pot.Pot, error) {
	p, _, err := s.authorizeRead(ctx, potID, actorID)
	return p, err
}

func (s *Service) JoinByCode(ctx context.Context, actorID uuid.UUID, code string) (pot.Membership, bool, error) {
	m, joined, err := s.members.JoinByCode(ctx, code, actorID)
	if err != nil {
		return pot.Membership{}, false, err
	}
	if joined {
		s.emit(EventMemberJoined, m.PotID, actorID, map[string]string{"role": string(m.Role)})
	}
	return m, joined, nil
}

func (s *Service) LeavePot(ctx context.Context, potID, actorID uuid.UUID) error {
	if err := s.members.Leave(ctx, potID, actorID); err != nil {
		return err
	}
	s.emit(EventMemberLeft, potID, actorID, nil)
	return nil
}

func (s *Service) SetStatus(ctx context.Context, potID, actorID uuid.UUID, status pot.Status) (pot.Pot, error) {
	p, err := s.pots.SetStatus(ctx, potID, status, actorID)
	if err != nil {
		return pot.Pot{}, err
	}
	s.emit(EventPotStatusChanged, potID, actorID, map[string]string{"status": string(p.Status)})
	return p, nil
}

func (s *Service) UpdatePot(ctx context.Context, potID, actorID uuid.UUID, in pot.UpdateInput) (pot.Pot, error) {
	p, err := s.pots.UpdateDetails(ctx, potID, actorID, in)
	if err != nil {
		return pot.Pot{}, err
	}
	s.emit(EventPotUpdated, potID, actorID, map[string]string{
		"name":          p.Name,
		"target_amount": p.TargetAmount.String(),
	})
	return p, nil
}

func (s *Service) DeletePot(ctx context.Context, potID, actorID uuid.UUID) error {
	if err := s.pots.DeletePot(ctx, potID, actorID); err != nil {
		return err
	}
	s.emit(EventPotDeleted, potID, actorID, nil)
	return nil
}

// Members lists the pot's members in join order with their profiles.
func (s *Service) Members(ctx context.Context, potID, actorID uuid.UUID) ([]MemberView, error) {
	if _, _, err := s.authorizeRead(ctx, potID, actorID); err != nil {
		return nil, err
	}
	members, err := s.members.ListMembers(ctx, potID)
	if err != nil {
		return nil, err
	}
	profiles, err := s.lookupProfiles(ctx, memberIDs(members))
	if err != nil {
		return nil, err
	}
	return memberViews(members, profiles), nil
}

func (s *Service) SetMemberRole(ctx context.Context, potID, actorID, userID uuid.UUID, role pot.Role) (pot.Membership, error) {
	m, err := s.members.SetRole(ctx, potID, actorID, userID, role)
	if err != nil {
		return pot.Membership{}, err
	}
	s.emit(EventMemberRole, potID, actorID, map[string]string{
		"user_id": userID.String(),
		"role":    string(m.Role),
	})
	return m, nil
}

func (s *Service) RemoveMember(ctx context.Context, potID, actorID, userID uuid.UUID) error {
	if err := s.members.Remove(ctx, potID, actorID, userID); err != nil {
		return err
	}
	s.emit(EventMemberRemoved, potID, actorID, map[string]string{"user_id": userID.String()})
	return nil
}

type DepositInput struct {
	PotID       uuid.UUID
	ActorID     uuid.UUID
	Amount      decimal.Decimal
	Title       string
	Description string
	Category    string
}

func (s *Service) Deposit(ctx context.Context, in DepositInput) (ledger.Transaction, error) {
	if !in.Amount.IsPositive() {
		return ledger.Transaction{}, ErrNonPositiveAmount
	}
	t, err := s.ledger.Record(ctx, ledger.RecordInput{
		PotID:       in.PotID,
		ActorID:     in.ActorID,
		Amount:      in.Amount,
		Title:       in.Title,
		Description: in.Description,
		Category:    in.Category,
	})
	if err != nil {
		return ledger.Transaction{}, err
	}
	s.emit(ledger.EventTransactionRecorded, t.PotID, in.ActorID, t.EventData())
	return t, nil
}

// SpendInput describes an expense. Cost is positive. Splits gives explicit
// shares; SplitAmong splits the cost evenly across the listed members. With
// neither, the cost is split evenly across every current member.
type SpendInput struct {
	PotID       uuid.UUID
	ActorID     uuid.UUID
	Cost        decimal.Decimal
	Title       string
	Description string
	Category    string
	Splits      ledger.SplitDetails
	SplitAmong  []uuid.UUID
}

func (s *Service) Spend(ctx context.Context, in SpendInput) (ledger.Transaction, error) {
	if !in.Cost.IsPositive() {
		return ledger.Transaction{}, ErrNonPositiveAmount
	}
	if len(in.Splits) > 0 && len(in.SplitAmong) > 0 {
		return ledger.Transaction{}, ErrAmbiguousSplit
	}

	splits := in.Splits
	if len(splits) == 0 {
		p, _, err := s.authorizeRead(ctx, in.PotID, in.ActorID)
		if err != nil {
			return ledger.Transaction{}, err
		}
		among := in.SplitAmong
		if len(among) == 0 {
			members, err := s.members.ListMembers(ctx, in.PotID)
			if err != nil {
				return ledger.Transaction{}, err
			}
			among = memberIDs(members)
		}
		splits, err = ledger.SplitEvenly(in.Cost, among, p.Scale())
		if err != nil {
			return ledger.Transaction{}, err
		}
	}

	t, err := s.ledger.Record(ctx, ledger.RecordInput{
		PotID:       in.PotID,
		ActorID:     in.ActorID,
		Amount:      in.Cost.Neg(),
		Title:       in.Title,
		Description: in.Description,
		Category:    in.Category,
		Splits:      splits,
	})
	if err != nil {
		return ledger.Transaction{}, err
	}
	s.emit(ledger.EventTransactionRecorded, t.PotID, in.ActorID, t.EventData())
	return t, nil
}

func (s *Service) EditTransaction(ctx context.Context, potID, txID, actorID uuid.UUID, patch ledger.Patch) (ledger.Transaction, error) {
	if err := s.requireTxInPot(ctx, potID, txID, actorID); err != nil {
		return ledger.Transaction{}, err
	}
	t, err := s.ledger.Edit(ctx, txID, actorID, patch)
	if err != nil {
		return ledger.Transaction{}, err
	}
	s.emit(ledger.EventTransactionEdited, t.PotID, actorID, t.EventData())
	return t, nil
}

func (s *Service) DeleteTransaction(ctx context.Context, potID, txID, actorID uuid.UUID) error {
	if err := s.requireTxInPot(ctx, potID, txID, actorID); err != nil {
		return err
	}
	t, err := s.ledger.Delete(ctx, txID, actorID)
	if err != nil {
		return err
	}
	s.emit(ledger.EventTransactionDeleted, t.PotID, actorID, t.EventData())
	return nil
}

// Transactions lists the pot's history newest first with payer names.
func (s *Service) Transactions(ctx context.Context, potID, actorID uuid.UUID) ([]TransactionView, error) {
	if _, _, err := s.authorizeRead(ctx, potID, actorID); err != nil {
		return nil, err
	}
	seq, err := s.ledger.ListForPot(ctx, potID)
	if err != nil {
		return nil, err
	}
	txs := slices.Collect(seq)

	profiles, err := s.lookupProfiles(ctx, payerIDs(txs))
	if err != nil {
		return nil, err
	}
	return transactionViews(txs, profiles), nil
}

func (s *Service) Balances(ctx context.Context, potID, actorID uuid.UUID) ([]BalanceView, error) {
	summary, err := s.Summary(ctx, potID, actorID)
	if err != nil {
		return nil, err
	}
	return summary.Balances, nil
}

// Summary is the pot's dashboard. The current amount, balances and progress
// all come from one transaction snapshot.
func (s *Service) Summary(ctx context.Context, potID, actorID uuid.UUID) (Summary, error) {
	p, _, err := s.authorizeRead(ctx, potID, actorID)
	if err != nil {
		return Summary{}, err
	}
	members, err := s.members.ListMembers(ctx, potID)
	if err != nil {
		return Summary{}, err
	}
	txs, err := s.ledger.Snapshot(ctx, potID)
	if err != nil {
		return Summary{}, err
	}
	p.CurrentAmount = ledger.Total(txs)

	ids := memberIDs(members)
	balances := ledger.CalculateBalances(ids, txs)

	profileIDs := slices.Clone(ids)
	for id := range balances {
		profileIDs = append(profileIDs, id)
	}
	profiles, err := s.lookupProfiles(ctx, profileIDs)
	if err != nil {
		return Summary{}, err
	}

	return Summary{
		Pot:          p,
		Progress:     ledger.Progress(p),
		Members:      memberViews(members, profiles),
		Transactions: transactionViews(txs, profiles),
		Balances:     balanceViews(ids, balances, profiles),
	}, nil
}

func (s *Service) authorizeRead(ctx context.Context, potID, actorID uuid.UUID) (pot.Pot, pot.Role, error) {
	p, err := s.pots.Get(ctx, potID)
	if err != nil {
		return pot.Pot{}, "", err
	}
	role, ok, err := s.members.RoleOf(ctx, potID, actorID)
	if err != nil {
		return pot.Pot{}, "", err
	}
	if !ok {
		return pot.Pot{}, "", ErrNotMember
	}
	return p, role, nil
}

func (s *Service) requireTxInPot(ctx context.Context, potID, txID, actorID uuid.UUID) error {
	if _, _, err := s.authorizeRead(ctx, potID, actorID); err != nil {
		return err
	}
	t, err := s.ledger.Get(ctx, txID)
	if err != nil {
		return err
	}
	if t.PotID != potID {
		return ErrTxNotInPot
	}
	return nil
}

func (s *Service) lookupProfiles(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]user.Profile, error) {
	if s.profiles == nil {
		return map[uuid.UUID]user.Profile{}, nil
	}
	slices.SortFunc(ids, compareIDs)
	profiles, err := s.profiles.Profiles(ctx, slices.Compact(ids))
	if err != nil {
		return nil, apperrors.FromStore("loading profiles", err)
	}
	return profiles, nil
}

func (s *Service) emit(eventType string, potID, actorID uuid.UUID, data map[string]string) {
	if s.events == nil {
		return
	}
	opts := []eventlogger.EventOption{
		eventlogger.WithType(eventType),
		eventlogger.WithPot(potID),
		eventlogger.WithActor(actorID),
	}
	if data != nil {
		opts = append(opts, eventlogger.WithData(data))
	}
	s.events.Log(eventlogger.NewEvent(opts...))
}

func memberIDs(members []pot.Membership) []uuid.UUID {
	ids := make([]uuid.UUID, len(members))
	for i, m := range members {
		ids[i] = m.UserID
	}
	return ids
}

func payerIDs(txs []ledger.Transaction) []uuid.UUID {
	ids := make([]uuid.UUID, len(txs))
	for i, t := range txs {
		ids[i] = t.UserID
	}
	return ids
}

func memberViews(members []pot.Membership, profiles map[uuid.UUID]user.Profile) []MemberView {
	views := make([]MemberView, len(members))
	for i, m := range members {
		profile := profiles[m.UserID]
		views[i] = MemberView{Membership: m, Name: profile.Name, AvatarURL: profile.AvatarURL}
	}
	return views
}

func transactionViews(txs []ledger.Transaction, profiles map[uuid.UUID]user.Profile) []TransactionView {
	views := make([]TransactionView, len(txs))
	for i, t := range txs {
		views[i] = TransactionView{Transaction: t, PayerName: profiles[t.UserID].Name}
	}
	return views
}

// balanceViews lists current members in join order, then anyone else who
// still carries a balance from the history, in id order.
func balanceViews(memberIDs []uuid.UUID, balances map[uuid.UUID]decimal.Decimal, profiles map[uuid.UUID]user.Profile) []BalanceView {
	views := make([]BalanceView, 0, len(balances))
	current := make(map[uuid.UUID]bool, len(memberIDs))
	for _, id := range memberIDs {
		current[id] = true
		views = append(views, BalanceView{UserID: id, Name: profiles[id].Name, Balance: balances[id], Member: true})
	}

	var former []uuid.UUID
	for id := range balances {
		if !current[id] {
			former = append(former, id)
		}
	}
	slices.SortFunc(former, compareIDs)
	for _, id := range former {
		views = append(views, BalanceView{UserID: id, Name: profiles[id].Name, Balance: balances[id]})
	}
	return views
}

func compareIDs(a, b uuid.UUID) int {
	return bytes.Compare(a[:], b[:])
}
