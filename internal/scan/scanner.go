// Package scan drives the end-to-end mailbox scan: open a session,
// walk the inbox newest-first, decode headers, extract links, and
// persist de-duplicated results while reporting progress.
package scan

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mdiaz/mailsweep/internal/decode"
	"github.com/mdiaz/mailsweep/internal/extract"
	"github.com/mdiaz/mailsweep/internal/mailbox"
	"github.com/mdiaz/mailsweep/internal/model"
	"github.com/mdiaz/mailsweep/internal/store"
	"github.com/mdiaz/mailsweep/internal/task"
)

// Scanner runs scan jobs. One Scanner is shared across jobs; each Run
// call opens its own session, so concurrent jobs never share mail-store
// state.
type Scanner struct {
	store     store.Store
	dialer    mailbox.Dialer
	extractor *extract.Extractor
	logger    *slog.Logger
}

// New creates a Scanner. A nil extractor defaults to the header-only
// fast path, since Run fetches header sections and never bodies.
func New(st store.Store, dialer mailbox.Dialer, extractor *extract.Extractor, logger *slog.Logger) *Scanner {
	if extractor == nil {
		extractor = extract.New(extract.HeaderStrategy{})
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scanner{store: st, dialer: dialer, extractor: extractor, logger: logger}
}

// Run executes one scan job for the account and returns the number of
// newly recorded messages. serverAddr is the resolved IMAP endpoint and
// password the decrypted app password.
//
// Iteration is newest-first: recent spam is the most actionable. A
// header-fetch failure aborts the whole job (broken session); a decode
// or persistence failure only skips that message. The session is
// released on every exit path.
func (s *Scanner) Run(
	ctx context.Context,
	acct *model.LinkedAccount,
	serverAddr, password string,
	r task.Reporter,
) (int, error) {
	session, err := s.dialer.Dial(ctx, serverAddr, acct.Address, password)
	if err != nil {
		if mailbox.IsAuthError(err) {
			return 0, fmt.Errorf("could not log in for %s: %w", acct.Address, err)
		}
		return 0, err
	}
	defer func() {
		if err := session.Close(); err != nil {
			s.logger.Warn("closing mail session", "account", acct.Address, "err", err)
		}
	}()

	total, err := session.SelectInboxReadOnly()
	if err != nil {
		return 0, fmt.Errorf("selecting inbox for %s: %w", acct.Address, err)
	}
	if total == 0 {
		r.Report(task.Progress{Current: 0, Total: 0})
		return 0, nil
	}

	recorded := 0
	processed := 0
	for seq := total; seq >= 1; seq-- {
		raw, err := session.FetchHeader(seq)
		if err != nil {
			return recorded, fmt.Errorf("fetching header of message %d: %w", seq, err)
		}

		added, err := s.scanMessage(ctx, acct.ID, raw)
		if err != nil {
			s.logger.Warn("skipping message", "account", acct.Address, "seq", seq, "err", err)
		} else if added {
			recorded++
		}

		// Report after every message, skipped or not, so progress
		// reaches total by the end.
		processed++
		r.Report(task.Progress{Current: processed, Total: int(total)})
	}

	s.logger.Info("scan finished", "account", acct.Address, "inspected", processed, "recorded", recorded)
	return recorded, nil
}

// scanMessage decodes one header section, checks the dedupe key, and
// persists the message plus its new links in one unit of work. It
// reports whether a new message row was created.
func (s *Scanner) scanMessage(ctx context.Context, accountID string, raw []byte) (bool, error) {
	header, err := decode.ParseHeaders(raw)
	if err != nil {
		return false, err
	}

	sender := decode.HeaderField(header.Get("From"))
	subject := decode.HeaderField(header.Get("Subject"))
	inboxDate, err := decode.Date(header)
	if err != nil {
		return false, err
	}

	exists, err := s.store.HasScannedMessage(ctx, accountID, sender, subject, inboxDate)
	if err != nil {
		return false, err
	}
	if exists {
		// Re-scan of an already recorded message: neither the message
		// nor its links are re-created.
		return false, nil
	}

	msg := model.ScannedMessage{
		AccountID: accountID,
		Sender:    sender,
		Subject:   subject,
		InboxDate: inboxDate,
	}

	var links []model.UnsubscribeLink
	for _, url := range s.extractor.Links(&extract.Message{Header: header}) {
		taken, err := s.store.LinkExists(ctx, accountID, url)
		if err != nil {
			return false, err
		}
		if taken {
			continue
		}
		links = append(links, model.UnsubscribeLink{
			AccountID: accountID,
			URL:       url,
			Status:    model.StatusPending,
		})
	}

	if err := s.store.CreateScanResult(ctx, msg, links); err != nil {
		return false, err
	}
	return true, nil
}
