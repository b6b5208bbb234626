package mailbox

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// AuthError indicates that login against the remote mail store failed,
// either because the credentials were rejected or because the store was
// unreachable.
type AuthError struct {
	Address string
	Message string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth error (%s): %s", e.Address, e.Message)
}

// IsAuthError reports whether err (or any error in its chain) is an AuthError.
func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}

var (
	// ErrInvalidAddress is returned for input that does not look like a
	// local@domain mailbox address. Checked before any network traffic.
	ErrInvalidAddress = errors.New("mailbox address not in local@domain form")

	// ErrUnsupportedProvider is returned when no IMAP endpoint is known
	// for the address's provider domain.
	ErrUnsupportedProvider = errors.New("unsupported mailbox provider")
)

var addressPattern = regexp.MustCompile(`^[a-zA-Z0-9_.+-]+@[a-zA-Z0-9-]+\.[a-zA-Z0-9-.]+$`)

// ValidateAddress checks the local@domain shape of a mailbox address.
func ValidateAddress(address string) error {
	if !addressPattern.MatchString(address) {
		return fmt.Errorf("%w: %q", ErrInvalidAddress, address)
	}
	return nil
}

// Domain extracts the provider domain label from a mailbox address,
// e.g. "gmail" from "someone@gmail.com".
func Domain(address string) (string, error) {
	at := strings.LastIndex(address, "@")
	if at < 0 || at == len(address)-1 {
		return "", fmt.Errorf("%w: %q", ErrInvalidAddress, address)
	}
	domain := address[at+1:]
	if dot := strings.Index(domain, "."); dot > 0 {
		domain = domain[:dot]
	}
	return strings.ToLower(domain), nil
}

// builtinServers maps known provider domains to their IMAP endpoints.
var builtinServers = map[string]string{
	"yahoo":  "imap.mail.yahoo.com:993",
	"gmail":  "imap.gmail.com:993",
	"google": "imap.gmail.com:993",
}

// Resolver maps a mailbox address to the IMAP server to dial. Entries
// from configuration extend (and may shadow) the built-in provider map.
type Resolver struct {
	servers map[string]string
}

// NewResolver builds a resolver from the built-in provider map merged
// with overrides.
func NewResolver(overrides map[string]string) *Resolver {
	servers := make(map[string]string, len(builtinServers)+len(overrides))
	for k, v := range builtinServers {
		servers[k] = v
	}
	for k, v := range overrides {
		servers[strings.ToLower(k)] = v
	}
	return &Resolver{servers: servers}
}

// ServerFor returns the IMAP endpoint for the address's provider.
func (r *Resolver) ServerFor(address string) (string, error) {
	domain, err := Domain(address)
	if err != nil {
		return "", err
	}
	server, ok := r.servers[domain]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedProvider, domain)
	}
	return server, nil
}

// Session is an authenticated, read-only view of one remote mailbox.
// A session belongs to exactly one job; it is not safe for concurrent
// use and must be closed on every exit path of the job that opened it.
type Session interface {
	// SelectInboxReadOnly selects INBOX without mutating any
	// server-side state and returns the total message count.
	SelectInboxReadOnly() (uint32, error)

	// FetchHeader returns the raw header section of the message at the
	// given 1-based sequence number. The body is never fetched.
	FetchHeader(seq uint32) ([]byte, error)

	// Close logs out and releases the connection.
	Close() error
}

// Dialer opens authenticated sessions against a mailbox server. The
// address shape is validated before the server is contacted; a rejected
// login or unreachable server surfaces as an AuthError.
type Dialer interface {
	Dial(ctx context.Context, serverAddr, username, password string) (Session, error)
}
