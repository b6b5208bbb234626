// Package decode normalizes header text and timestamps from the
// arbitrary encodings found in real-world mail.
package decode

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"net/mail"
	"strings"
	"time"

	"github.com/emersion/go-message/charset"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

// wordDecoder decodes RFC 2047 encoded words. Every word carries its
// own declared charset, so headers mixing charsets decode segment by
// segment and concatenate.
var wordDecoder = &mime.WordDecoder{CharsetReader: charsetReader}

// charsetReader resolves a declared charset to a decoding reader.
// "unknown-8bit" (and any charset the registry cannot resolve) is
// decoded as windows-1252: every byte maps, so decoding never fails.
// This is a known heuristic for malformed mail, not a guarantee of the
// original text.
func charsetReader(cs string, input io.Reader) (io.Reader, error) {
	switch strings.ToLower(cs) {
	case "", "us-ascii", "ascii", "utf-8":
		return input, nil
	case "unknown-8bit", "x-unknown":
		return transform.NewReader(input, charmap.Windows1252.NewDecoder()), nil
	}

	r, err := charset.Reader(cs, input)
	if err != nil {
		return transform.NewReader(input, charmap.Windows1252.NewDecoder()), nil
	}
	return r, nil
}

// HeaderField decodes a raw header value into UTF-8 text. Values with
// no encoded words pass through unchanged; undecodable input is
// returned as-is rather than failing the message.
func HeaderField(raw string) string {
	decoded, err := wordDecoder.DecodeHeader(raw)
	if err != nil {
		return raw
	}
	return decoded
}

// ParseHeaders parses a raw RFC 5322 header section.
func ParseHeaders(raw []byte) (mail.Header, error) {
	// mail.ReadMessage wants the blank line that terminates the header
	// block; header-only IMAP fetches may or may not include it.
	buf := make([]byte, 0, len(raw)+4)
	buf = append(buf, raw...)
	if !bytes.HasSuffix(raw, []byte("\r\n\r\n")) && !bytes.HasSuffix(raw, []byte("\n\n")) {
		buf = append(buf, '\r', '\n')
	}

	msg, err := mail.ReadMessage(bytes.NewReader(buf))
	if err != nil {
		return nil, fmt.Errorf("parsing header section: %w", err)
	}
	return msg.Header, nil
}

// dateLayouts are fallbacks for Date headers that net/mail rejects.
var dateLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	time.RFC822Z,
	time.RFC822,
	time.RFC850,
	time.RFC3339,
}

// Date parses a message's Date header into a timezone-aware instant.
// This value, not the scan time, is the inbox timestamp used in the
// dedupe key, so re-scanning at a later wall-clock time cannot mint
// duplicate rows.
func Date(h mail.Header) (time.Time, error) {
	raw := h.Get("Date")
	if raw == "" {
		return time.Time{}, fmt.Errorf("message has no Date header")
	}

	if t, err := mail.ParseDate(raw); err == nil {
		return t, nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable Date header %q", raw)
}
