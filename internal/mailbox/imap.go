package mailbox

import (
	"context"
	"crypto/tls"
	"fmt"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
)

// IMAPDialer opens sessions over IMAP with implicit TLS.
type IMAPDialer struct {
	// TLSConfig overrides the default TLS settings when non-nil.
	TLSConfig *tls.Config
}

// Dial connects to serverAddr, authenticates, and returns a Session.
// Malformed usernames fail fast without touching the network.
func (d *IMAPDialer) Dial(
	_ context.Context,
	serverAddr, username, password string,
) (Session, error) {
	if err := ValidateAddress(username); err != nil {
		return nil, err
	}

	options := &imapclient.Options{TLSConfig: d.TLSConfig}
	client, err := imapclient.DialTLS(serverAddr, options)
	if err != nil {
		return nil, &AuthError{
			Address: username,
			Message: fmt.Sprintf("connecting to %s: %v", serverAddr, err),
		}
	}

	if err := client.Login(username, password).Wait(); err != nil {
		_ = client.Logout().Wait()
		_ = client.Close()
		return nil, &AuthError{
			Address: username,
			Message: fmt.Sprintf("login rejected: %v", err),
		}
	}

	return &imapSession{client: client}, nil
}

// imapSession adapts an imapclient connection to the Session contract.
type imapSession struct {
	client *imapclient.Client
}

func (s *imapSession) SelectInboxReadOnly() (uint32, error) {
	data, err := s.client.Select("INBOX", &imap.SelectOptions{ReadOnly: true}).Wait()
	if err != nil {
		return 0, fmt.Errorf("selecting INBOX read-only: %w", err)
	}
	return data.NumMessages, nil
}

func (s *imapSession) FetchHeader(seq uint32) ([]byte, error) {
	section := &imap.FetchItemBodySection{
		Specifier: imap.PartSpecifierHeader,
		Peek:      true,
	}
	fetchCmd := s.client.Fetch(imap.SeqSetNum(seq), &imap.FetchOptions{
		BodySection: []*imap.FetchItemBodySection{section},
	})
	defer fetchCmd.Close()

	msg := fetchCmd.Next()
	if msg == nil {
		return nil, fmt.Errorf("message %d not found", seq)
	}

	buf, err := msg.Collect()
	if err != nil {
		return nil, fmt.Errorf("collecting message %d: %w", seq, err)
	}

	raw := buf.FindBodySection(section)
	if raw == nil {
		return nil, fmt.Errorf("message %d has no header section", seq)
	}

	if err := fetchCmd.Close(); err != nil {
		return nil, fmt.Errorf("fetching header of message %d: %w", seq, err)
	}
	return raw, nil
}

func (s *imapSession) Close() error {
	err := s.client.Logout().Wait()
	_ = s.client.Close()
	return err
}
