package server

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/alfredjeanlab/drip/internal/events"
	"github.com/alfredjeanlab/drip/internal/idgen"
	"github.com/alfredjeanlab/drip/internal/model"
	"github.com/alfredjeanlab/drip/internal/store"
)

// createAccountInput holds transport-agnostic parameters for creating an
// account.
type createAccountInput struct {
	ID string `json:"id"`
}

// createAccount registers a new account with a zero balance.
func (s *Server) createAccount(ctx context.Context, in createAccountInput) (*model.Account, error) {
	if !model.ValidAccountID(in.ID) {
		return nil, s.failed("create_account", inputError(fmt.Sprintf(
			"invalid account id %q: must be 1-64 chars of [a-z0-9._-]", in.ID)))
	}

	account := &model.Account{ID: in.ID, Status: model.AccountOpen}
	if err := s.store.CreateAccount(ctx, account); err != nil {
		if errors.Is(err, store.ErrAccountExists) {
			return nil, s.failed("create_account", inputError(fmt.Sprintf(
				"account id %q is already taken", in.ID)))
		}
		return nil, s.failed("create_account", err)
	}

	s.metrics.AccountsCreated.Inc()

	s.recordAndPublish(ctx, events.TopicAccountCreated, accountSubject(account.ID), "", events.AccountCreated{
		Account: account,
	})

	return account, nil
}

// creditAccountInput holds parameters for topping up an account from outside.
type creditAccountInput struct {
	Amount int64 `json:"amount"`
}

// creditAccount adds external funds to an account: a transfer with no source
// account. Returns the account with its updated balance.
func (s *Server) creditAccount(ctx context.Context, id string, in creditAccountInput) (*model.Account, error) {
	if in.Amount <= 0 {
		return nil, s.failed("credit", inputError(fmt.Sprintf(
			"amount must be positive, got %d", in.Amount)))
	}

	ref, err := idgen.TransferRef()
	if err != nil {
		return nil, s.failed("credit", fmt.Errorf("generating transfer ref: %w", err))
	}

	var account *model.Account
	err = s.store.RunInTransaction(ctx, func(tx store.Store) error {
		if err := tx.ApplyTransfer(ctx, &model.Transfer{
			Ref:       ref,
			ToAccount: &id,
			Amount:    in.Amount,
			Kind:      model.TransferCredit,
		}); err != nil {
			return err
		}
		var err error
		account, err = tx.GetAccount(ctx, id)
		return err
	})
	if err != nil {
		return nil, s.failed("credit", err)
	}

	s.recordAndPublish(ctx, events.TopicAccountCredited, accountSubject(id), "", events.AccountCredited{
		AccountID: id,
		Amount:    in.Amount,
		Balance:   account.Balance,
		Timestamp: s.clock.Now().UTC(),
	})

	return account, nil
}

// setAccountStatus freezes or unfreezes an account. Frozen accounts can
// neither send nor receive transfers, which makes freezing the live
// transfer-failure path for stop refunds and withdrawals. Repeating the
// current status is a no-op. The escrow account cannot be frozen.
func (s *Server) setAccountStatus(ctx context.Context, id string, status model.AccountStatus) (*model.Account, error) {
	op := "freeze"
	if status == model.AccountOpen {
		op = "unfreeze"
	}

	if status == model.AccountFrozen && id == s.escrow {
		return nil, s.failed(op, stateError("cannot freeze the escrow account"))
	}

	account, err := s.store.SetAccountStatus(ctx, id, status)
	if err != nil {
		return nil, s.failed(op, err)
	}

	now := s.clock.Now().UTC()
	if status == model.AccountFrozen {
		s.recordAndPublish(ctx, events.TopicAccountFrozen, accountSubject(id), "", events.AccountFrozen{
			AccountID: id,
			Timestamp: now,
		})
	} else {
		s.recordAndPublish(ctx, events.TopicAccountUnfrozen, accountSubject(id), "", events.AccountUnfrozen{
			AccountID: id,
			Timestamp: now,
		})
	}

	return account, nil
}

// EnsureEscrow creates the engine's custody account if it does not exist yet.
// Called once at startup.
func (s *Server) EnsureEscrow(ctx context.Context) error {
	err := s.store.CreateAccount(ctx, &model.Account{ID: s.escrow, Status: model.AccountOpen})
	if err != nil && !errors.Is(err, store.ErrAccountExists) {
		return fmt.Errorf("ensuring escrow account %q: %w", s.escrow, err)
	}
	return nil
}

// accountView is an account plus the timestamp the balance was read at.
type accountView struct {
	*model.Account
	AsOf time.Time `json:"as_of"`
}

// getAccount returns the account with its current balance.
func (s *Server) getAccount(ctx context.Context, id string) (*accountView, error) {
	account, err := s.store.GetAccount(ctx, id)
	if err != nil {
		return nil, err
	}
	return &accountView{Account: account, AsOf: s.clock.Now().UTC()}, nil
}
