// Package unsubscribe executes batches of pending unsubscribe links
// over HTTP and records the per-link outcome.
package unsubscribe

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/mdiaz/mailsweep/internal/model"
	"github.com/mdiaz/mailsweep/internal/store"
	"github.com/mdiaz/mailsweep/internal/task"
)

// DefaultTimeout bounds each individual unsubscribe request. Opt-out
// endpoints are frequently slow or dead; a hung request must not stall
// the rest of the batch.
const DefaultTimeout = 5 * time.Second

// Batch is a snapshot of the links one executor run will visit. It is
// taken once, up front, so links recorded by a concurrent scan do not
// grow the batch mid-run and the progress total stays stable.
type Batch struct {
	AccountID string
	Links     []model.UnsubscribeLink
}

// Size returns the number of links in the batch.
func (b *Batch) Size() int { return len(b.Links) }

// Result summarises one executor run.
type Result struct {
	Attempted int
	Succeeded int
	Failed    int
}

// Executor visits each link of a batch sequentially and maps the HTTP
// outcome onto the link's stored status.
type Executor struct {
	store  store.Store
	client *http.Client
	logger *slog.Logger
}

// NewExecutor creates an Executor. A nil client gets a fresh one with
// DefaultTimeout.
func NewExecutor(st store.Store, client *http.Client, logger *slog.Logger) *Executor {
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{store: st, client: client, logger: logger}
}

// Collect snapshots the account's pending links into a batch. When
// senders is non-empty only links from those senders are included.
func (e *Executor) Collect(ctx context.Context, accountID string, senders []string) (*Batch, error) {
	links, err := e.store.PendingLinks(ctx, accountID, senders)
	if err != nil {
		return nil, fmt.Errorf("collecting pending links: %w", err)
	}
	return &Batch{AccountID: accountID, Links: links}, nil
}

// Run visits every link in the batch and commits all resulting status
// changes in one write at the end. A request that fails only marks its
// own link; the batch always runs to completion. Progress is reported
// after every link.
func (e *Executor) Run(ctx context.Context, batch *Batch, r task.Reporter) (*Result, error) {
	total := batch.Size()
	if total == 0 {
		r.Report(task.Progress{Current: 0, Total: 0})
		return &Result{}, nil
	}

	res := &Result{}
	statuses := make(map[string]model.LinkStatus, total)

	for i, link := range batch.Links {
		status := e.visit(ctx, link.URL)
		statuses[link.ID] = status

		res.Attempted++
		if status == model.StatusSuccess {
			res.Succeeded++
		} else {
			res.Failed++
		}

		r.Report(task.Progress{Current: i + 1, Total: total})
	}

	if err := e.store.UpdateLinkStatuses(ctx, statuses); err != nil {
		return res, fmt.Errorf("recording unsubscribe outcomes: %w", err)
	}

	e.logger.Info("unsubscribe batch finished",
		"account", batch.AccountID,
		"attempted", res.Attempted,
		"succeeded", res.Succeeded,
		"failed", res.Failed)
	return res, nil
}

// visit performs one unsubscribe request. Only a clean 200 counts as
// success; every other response, and any transport error, is a failure.
func (e *Executor) visit(ctx context.Context, url string) model.LinkStatus {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		e.logger.Warn("building unsubscribe request", "url", url, "err", err)
		return model.StatusFailure
	}

	resp, err := e.client.Do(req)
	if err != nil {
		e.logger.Warn("unsubscribe request failed", "url", url, "err", err)
		return model.StatusFailure
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		return model.StatusSuccess
	}
	e.logger.Debug("unsubscribe endpoint rejected request", "url", url, "status", resp.StatusCode)
	return model.StatusFailure
}
