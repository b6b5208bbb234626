package unsubscribe_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/mdiaz/mailsweep/internal/model"
	"github.com/mdiaz/mailsweep/internal/store"
	"github.com/mdiaz/mailsweep/internal/task"
	"github.com/mdiaz/mailsweep/internal/unsubscribe"
	"github.com/mdiaz/mailsweep/tests/testutil"
)

type progressRecorder struct {
	mu      sync.Mutex
	reports []task.Progress
}

func (r *progressRecorder) Report(p task.Progress) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reports = append(r.reports, p)
}

func (r *progressRecorder) last(t *testing.T) task.Progress {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.reports) == 0 {
		t.Fatal("no progress reported")
	}
	return r.reports[len(r.reports)-1]
}

func seedLinks(t *testing.T, s interface {
	CreateScanResult(context.Context, model.ScannedMessage, []model.UnsubscribeLink) error
}, accountID string, urls ...string) {
	t.Helper()
	msg := model.ScannedMessage{
		AccountID: accountID,
		Sender:    "news@shop.example",
		Subject:   "Deals",
		InboxDate: time.Now().UTC(),
	}
	var links []model.UnsubscribeLink
	for _, u := range urls {
		links = append(links, model.UnsubscribeLink{AccountID: accountID, URL: u})
	}
	if err := s.CreateScanResult(context.Background(), msg, links); err != nil {
		t.Fatalf("seeding links: %v", err)
	}
}

func TestExecutorMapsResponsesToStatuses(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok":
			w.WriteHeader(http.StatusOK)
		case "/gone":
			w.WriteHeader(http.StatusNotFound)
		case "/slow":
			time.Sleep(300 * time.Millisecond)
			w.WriteHeader(http.StatusOK)
		}
	}))
	defer srv.Close()

	st := testutil.NewTestStore(t)
	acct := testutil.NewTestAccount(t, st, "user-1", "someone@gmail.com")
	seedLinks(t, st, acct.ID, srv.URL+"/ok", srv.URL+"/gone", srv.URL+"/slow")

	client := &http.Client{Timeout: 100 * time.Millisecond}
	ex := unsubscribe.NewExecutor(st, client, nil)

	batch, err := ex.Collect(context.Background(), acct.ID, nil)
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if batch.Size() != 3 {
		t.Fatalf("batch size = %d, want 3", batch.Size())
	}

	rec := &progressRecorder{}
	res, err := ex.Run(context.Background(), batch, rec)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if res.Attempted != 3 || res.Succeeded != 1 || res.Failed != 2 {
		t.Errorf("result = %+v, want 3 attempted, 1 succeeded, 2 failed", res)
	}
	if last := rec.last(t); last.Current != 3 || last.Total != 3 {
		t.Errorf("final progress = %+v, want 3/3", last)
	}

	// All outcomes landed: nothing is pending anymore.
	pending, err := st.PendingLinks(context.Background(), acct.ID, nil)
	if err != nil {
		t.Fatalf("PendingLinks: %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("pending links after run = %d, want 0", len(pending))
	}

	msgs, err := st.ListMessages(context.Background(), acct.ID, store.MessageFilter{})
	if err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("messages = %d, want 1", len(msgs))
	}
	byStatus := map[string]int{}
	for _, s := range msgs[0].Statuses {
		byStatus[s]++
	}
	if byStatus["success"] != 1 || byStatus["failure"] != 2 {
		t.Errorf("statuses = %v, want one success and two failures", msgs[0].Statuses)
	}
}

func TestExecutorEmptyBatch(t *testing.T) {
	st := testutil.NewTestStore(t)
	acct := testutil.NewTestAccount(t, st, "user-1", "someone@gmail.com")

	ex := unsubscribe.NewExecutor(st, nil, nil)
	batch, err := ex.Collect(context.Background(), acct.ID, nil)
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}

	rec := &progressRecorder{}
	res, err := ex.Run(context.Background(), batch, rec)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Attempted != 0 {
		t.Errorf("attempted = %d, want 0", res.Attempted)
	}
	if last := rec.last(t); last.Total != 0 {
		t.Errorf("final progress = %+v, want 0/0", last)
	}
}

func TestExecutorSenderFilter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	st := testutil.NewTestStore(t)
	acct := testutil.NewTestAccount(t, st, "user-1", "someone@gmail.com")

	// Two senders, one link each.
	for i, sender := range []string{"a@shop.example", "b@store.example"} {
		msg := model.ScannedMessage{
			AccountID: acct.ID,
			Sender:    sender,
			Subject:   "Deals",
			InboxDate: time.Now().UTC().Add(time.Duration(i) * time.Minute),
		}
		links := []model.UnsubscribeLink{{AccountID: acct.ID, URL: srv.URL + "/" + sender}}
		if err := st.CreateScanResult(context.Background(), msg, links); err != nil {
			t.Fatalf("seeding: %v", err)
		}
	}

	ex := unsubscribe.NewExecutor(st, nil, nil)
	batch, err := ex.Collect(context.Background(), acct.ID, []string{"a@shop.example"})
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if batch.Size() != 1 {
		t.Fatalf("batch size = %d, want 1", batch.Size())
	}

	if _, err := ex.Run(context.Background(), batch, &progressRecorder{}); err != nil {
		t.Fatalf("Run: %v", err)
	}

	// The other sender's link is still pending.
	pending, err := st.PendingLinks(context.Background(), acct.ID, nil)
	if err != nil {
		t.Fatalf("PendingLinks: %v", err)
	}
	if len(pending) != 1 {
		t.Errorf("pending links = %d, want 1", len(pending))
	}
}

func TestExecutorUnreachableEndpoint(t *testing.T) {
	st := testutil.NewTestStore(t)
	acct := testutil.NewTestAccount(t, st, "user-1", "someone@gmail.com")
	// Reserved TEST-NET address; nothing listens there.
	seedLinks(t, st, acct.ID, "http://192.0.2.1:9/u")

	client := &http.Client{Timeout: 100 * time.Millisecond}
	ex := unsubscribe.NewExecutor(st, client, nil)

	batch, err := ex.Collect(context.Background(), acct.ID, nil)
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}

	res, err := ex.Run(context.Background(), batch, &progressRecorder{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Failed != 1 || res.Succeeded != 0 {
		t.Errorf("result = %+v, want the single link failed", res)
	}
}
