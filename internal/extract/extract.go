// Package extract finds candidate unsubscribe URLs in a message.
//
// Extraction is an ordered list of strategies sharing one contract:
// produce candidate links from a message. Strategies run in order until
// one yields a non-empty result, so the cheap header inspection short-
// circuits the expensive body walk.
package extract

import (
	"net/mail"
	"regexp"
)

// Message is the extraction input: parsed headers plus, when available,
// the raw full message for body strategies.
type Message struct {
	Header mail.Header

	// Raw is the full RFC 5322 message. Empty when only the header
	// section was fetched; body strategies then yield nothing.
	Raw []byte
}

// Strategy produces candidate unsubscribe links from a message.
type Strategy interface {
	Name() string
	Extract(msg *Message) []string
}

// urlPattern matches an HTTP or HTTPS URL inside surrounding text.
var urlPattern = regexp.MustCompile(`(?:https?)://[\w/\-?=%~.]+\.[\w/\-&?=%~]+`)

// Extractor tries its strategies in order and returns the first
// non-empty result, de-duplicated and in discovery order.
type Extractor struct {
	strategies []Strategy
}

// New builds an extractor over the given strategies, tried in order.
func New(strategies ...Strategy) *Extractor {
	return &Extractor{strategies: strategies}
}

// Links returns the candidate unsubscribe URLs for the message.
func (e *Extractor) Links(msg *Message) []string {
	for _, s := range e.strategies {
		if links := s.Extract(msg); len(links) > 0 {
			return links
		}
	}
	return nil
}

// appendUnique appends link unless an exact match is already present.
func appendUnique(links []string, link string) []string {
	for _, l := range links {
		if l == link {
			return links
		}
	}
	return append(links, link)
}
