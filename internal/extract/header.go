package extract

import "strings"

const listUnsubscribeHeader = "List-Unsubscribe"

// HeaderStrategy reads the List-Unsubscribe header. This is the fast
// path: it needs no message body at all.
//
// The header may list several mechanisms separated by commas, e.g.
// "<mailto:u@x.example>, <https://x.example/u?id=1>". Each segment
// contributes its first HTTP(S) URL; mailto and other non-HTTP entries
// are silently skipped.
type HeaderStrategy struct{}

func (HeaderStrategy) Name() string { return "list-unsubscribe-header" }

func (HeaderStrategy) Extract(msg *Message) []string {
	raw := msg.Header.Get(listUnsubscribeHeader)
	if raw == "" {
		return nil
	}

	var links []string
	for _, segment := range strings.Split(raw, ",") {
		match := urlPattern.FindString(segment)
		if match == "" {
			continue
		}
		links = appendUnique(links, match)
	}
	return links
}
