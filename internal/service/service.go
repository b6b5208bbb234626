// Package service ties the persistence, credential, mailbox and task
// layers together behind the operations the CLI (or any other surface)
// exposes: linking accounts, launching scans and unsubscribe batches,
// and reading back results.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/mdiaz/mailsweep/internal/credential"
	"github.com/mdiaz/mailsweep/internal/mailbox"
	"github.com/mdiaz/mailsweep/internal/model"
	"github.com/mdiaz/mailsweep/internal/scan"
	"github.com/mdiaz/mailsweep/internal/store"
	"github.com/mdiaz/mailsweep/internal/task"
	"github.com/mdiaz/mailsweep/internal/unsubscribe"
)

// ErrAccountInactive is returned when a job is requested for an account
// that has been deactivated.
var ErrAccountInactive = errors.New("account is not active")

// Service exposes the application's operations. All methods check that
// the requested account belongs to the calling user before touching it.
type Service struct {
	store    store.Store
	vault    *credential.Vault
	resolver *mailbox.Resolver
	dialer   mailbox.Dialer
	scanner  *scan.Scanner
	executor *unsubscribe.Executor
	queue    *task.Queue
	logger   *slog.Logger
}

// New wires a Service from its collaborators.
func New(
	st store.Store,
	vault *credential.Vault,
	resolver *mailbox.Resolver,
	dialer mailbox.Dialer,
	scanner *scan.Scanner,
	executor *unsubscribe.Executor,
	queue *task.Queue,
	logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:    st,
		vault:    vault,
		resolver: resolver,
		dialer:   dialer,
		scanner:  scanner,
		executor: executor,
		queue:    queue,
		logger:   logger,
	}
}

// LinkAccount validates and verifies a mailbox credential, then stores
// it encrypted. Verification performs a real login so a typo'd app
// password is rejected at link time rather than at first scan.
func (s *Service) LinkAccount(ctx context.Context, userID, address, password string) (*model.LinkedAccount, error) {
	if err := mailbox.ValidateAddress(address); err != nil {
		return nil, err
	}

	serverAddr, err := s.resolver.ServerFor(address)
	if err != nil {
		return nil, err
	}

	session, err := s.dialer.Dial(ctx, serverAddr, address, password)
	if err != nil {
		return nil, fmt.Errorf("verifying credentials for %s: %w", address, err)
	}
	if err := session.Close(); err != nil {
		s.logger.Warn("closing verification session", "address", address, "err", err)
	}

	encrypted, err := s.vault.Encrypt(password)
	if err != nil {
		return nil, fmt.Errorf("encrypting credential: %w", err)
	}

	acct := model.LinkedAccount{
		ID:       uuid.New().String(),
		UserID:   userID,
		Address:  address,
		Password: encrypted,
		IsActive: true,
	}
	if err := s.store.CreateAccount(ctx, acct); err != nil {
		return nil, err
	}

	s.logger.Info("account linked", "address", address, "account", acct.ID)
	return &acct, nil
}

// Account returns one of the user's linked accounts.
func (s *Service) Account(ctx context.Context, userID, accountID string) (*model.LinkedAccount, error) {
	return s.store.GetAccountForUser(ctx, accountID, userID)
}

// AccountByAddress looks an account up by its mailbox address and
// verifies ownership.
func (s *Service) AccountByAddress(ctx context.Context, userID, address string) (*model.LinkedAccount, error) {
	acct, err := s.store.GetAccountByAddress(ctx, address)
	if err != nil {
		return nil, err
	}
	if acct.UserID != userID {
		return nil, store.ErrNotFound
	}
	return acct, nil
}

// SubmitScan claims the account's scan slot and enqueues a scan job,
// returning the task identifier to poll. A second submission while a
// scan is outstanding fails with store.ErrTaskInProgress.
func (s *Service) SubmitScan(ctx context.Context, userID, accountID string) (string, error) {
	acct, err := s.store.GetAccountForUser(ctx, accountID, userID)
	if err != nil {
		return "", err
	}
	if !acct.IsActive {
		return "", ErrAccountInactive
	}

	serverAddr, err := s.resolver.ServerFor(acct.Address)
	if err != nil {
		return "", err
	}
	password, err := s.vault.Decrypt(acct.Password)
	if err != nil {
		return "", fmt.Errorf("decrypting credential for %s: %w", acct.Address, err)
	}

	taskID := uuid.New().String()
	if err := s.store.ClaimScanTask(ctx, accountID, taskID); err != nil {
		return "", err
	}

	s.queue.SubmitWithID(taskID, func(jobCtx context.Context, r task.Reporter) error {
		// The slot is released no matter how the job ends; otherwise the
		// account could never be scanned again.
		defer func() {
			if err := s.store.ClearScanTask(jobCtx, accountID); err != nil {
				s.logger.Error("clearing scan task slot", "account", accountID, "err", err)
			}
		}()

		_, err := s.scanner.Run(jobCtx, acct, serverAddr, password, r)
		return err
	})

	s.logger.Info("scan submitted", "account", accountID, "task", taskID)
	return taskID, nil
}

// SubmitUnsubscribe claims the account's unsubscribe slot and enqueues
// a batch job over the account's pending links. When senders is
// non-empty the batch is restricted to links from those senders.
func (s *Service) SubmitUnsubscribe(ctx context.Context, userID, accountID string, senders []string) (string, error) {
	acct, err := s.store.GetAccountForUser(ctx, accountID, userID)
	if err != nil {
		return "", err
	}
	if !acct.IsActive {
		return "", ErrAccountInactive
	}

	taskID := uuid.New().String()
	if err := s.store.ClaimUnsubscribeTask(ctx, accountID, taskID); err != nil {
		return "", err
	}

	s.queue.SubmitWithID(taskID, func(jobCtx context.Context, r task.Reporter) error {
		defer func() {
			if err := s.store.ClearUnsubscribeTask(jobCtx, accountID); err != nil {
				s.logger.Error("clearing unsubscribe task slot", "account", accountID, "err", err)
			}
		}()

		batch, err := s.executor.Collect(jobCtx, accountID, senders)
		if err != nil {
			return err
		}
		_, err = s.executor.Run(jobCtx, batch, r)
		return err
	})

	s.logger.Info("unsubscribe submitted", "account", accountID, "task", taskID, "senders", len(senders))
	return taskID, nil
}

// TaskStatus returns the latest known status of a background task.
func (s *Service) TaskStatus(id string) (task.Status, bool) {
	return s.queue.Status(id)
}

// WaitTask blocks until the task reaches a terminal state or ctx expires.
func (s *Service) WaitTask(ctx context.Context, id string) (task.Status, error) {
	return s.queue.Wait(ctx, id)
}

// Messages lists the account's scanned messages.
func (s *Service) Messages(ctx context.Context, userID, accountID string, f store.MessageFilter) ([]store.MessageSummary, error) {
	if _, err := s.store.GetAccountForUser(ctx, accountID, userID); err != nil {
		return nil, err
	}
	return s.store.ListMessages(ctx, accountID, f)
}

// Senders lists the account's scanned messages aggregated by sender.
func (s *Service) Senders(ctx context.Context, userID, accountID string, limit, offset int) ([]store.SenderSummary, error) {
	if _, err := s.store.GetAccountForUser(ctx, accountID, userID); err != nil {
		return nil, err
	}
	return s.store.ListSenders(ctx, accountID, limit, offset)
}

// MessageLinks returns the links extracted from one scanned message.
func (s *Service) MessageLinks(ctx context.Context, userID, accountID, messageID string) ([]model.UnsubscribeLink, error) {
	if _, err := s.store.GetAccountForUser(ctx, accountID, userID); err != nil {
		return nil, err
	}
	return s.store.LinksForMessage(ctx, accountID, messageID)
}

// PendingLinks returns the account's pending links.
func (s *Service) PendingLinks(ctx context.Context, userID, accountID string, senders []string) ([]model.UnsubscribeLink, error) {
	if _, err := s.store.GetAccountForUser(ctx, accountID, userID); err != nil {
		return nil, err
	}
	return s.store.PendingLinks(ctx, accountID, senders)
}

// PurgeHistory deletes the account's scan history and returns the
// number of deleted messages.
func (s *Service) PurgeHistory(ctx context.Context, userID, accountID string) (int64, error) {
	if _, err := s.store.GetAccountForUser(ctx, accountID, userID); err != nil {
		return 0, err
	}
	deleted, err := s.store.DeleteScanHistory(ctx, accountID)
	if err != nil {
		return 0, err
	}
	s.logger.Info("scan history purged", "account", accountID, "messages", deleted)
	return deleted, nil
}
