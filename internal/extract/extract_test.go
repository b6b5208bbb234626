package extract

import (
	"net/mail"
	"strings"
	"testing"
)

func headerFrom(t *testing.T, lines ...string) mail.Header {
	t.Helper()
	raw := strings.Join(lines, "\r\n") + "\r\n\r\n"
	msg, err := mail.ReadMessage(strings.NewReader(raw))
	if err != nil {
		t.Fatalf("building test header: %v", err)
	}
	return msg.Header
}

func TestHeaderStrategyMultipleURLs(t *testing.T) {
	h := headerFrom(t,
		"From: news@a.example",
		"List-Unsubscribe: <https://a.example/u1>, <https://a.example/u2>",
	)

	got := HeaderStrategy{}.Extract(&Message{Header: h})
	want := []string{"https://a.example/u1", "https://a.example/u2"}
	if len(got) != len(want) {
		t.Fatalf("Extract = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Extract[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestHeaderStrategySkipsMailto(t *testing.T) {
	h := headerFrom(t,
		"From: news@a.example",
		"List-Unsubscribe: <mailto:unsub@a.example>, <https://a.example/u1>",
	)

	got := HeaderStrategy{}.Extract(&Message{Header: h})
	if len(got) != 1 || got[0] != "https://a.example/u1" {
		t.Errorf("Extract = %v, want only the https entry", got)
	}
}

func TestHeaderStrategyDeduplicates(t *testing.T) {
	h := headerFrom(t,
		"From: news@a.example",
		"List-Unsubscribe: <https://a.example/u1>, <https://a.example/u1>",
	)

	got := HeaderStrategy{}.Extract(&Message{Header: h})
	if len(got) != 1 {
		t.Errorf("Extract = %v, want a single deduplicated entry", got)
	}
}

func TestHeaderStrategyAbsentHeader(t *testing.T) {
	h := headerFrom(t, "From: news@a.example")

	if got := (HeaderStrategy{}).Extract(&Message{Header: h}); got != nil {
		t.Errorf("Extract = %v, want nil", got)
	}
}

func TestBodyStrategyPlainText(t *testing.T) {
	raw := strings.Join([]string{
		"From: news@a.example",
		"To: someone@gmail.com",
		"Subject: Deals",
		"Content-Type: text/plain; charset=utf-8",
		"",
		"Hello!",
		"Click here to unsubscribe: https://shop.example/opt-out?id=42",
		"",
	}, "\r\n")

	h := headerFrom(t, "From: news@a.example")
	got := BodyStrategy{}.Extract(&Message{Header: h, Raw: []byte(raw)})
	if len(got) != 1 || got[0] != "https://shop.example/opt-out?id=42" {
		t.Errorf("Extract = %v, want the opt-out URL", got)
	}
}

func TestBodyStrategyPlainTextWrappedURL(t *testing.T) {
	raw := strings.Join([]string{
		"From: news@a.example",
		"Content-Type: text/plain; charset=utf-8",
		"",
		"To opt-out visit https://shop.example/very/",
		"long/path?id=42",
		"",
	}, "\r\n")

	h := headerFrom(t, "From: news@a.example")
	got := BodyStrategy{}.Extract(&Message{Header: h, Raw: []byte(raw)})
	if len(got) == 0 || got[0] != "https://shop.example/very/long/path?id=42" {
		t.Errorf("Extract = %v, want line-break-joined URL", got)
	}
}

func TestBodyStrategyHTMLAnchor(t *testing.T) {
	raw := strings.Join([]string{
		"From: news@a.example",
		"Content-Type: text/html; charset=utf-8",
		"",
		`<html><body><p>Tired of these?</p>`,
		`<a href="https://shop.example/u?id=1">Unsubscribe</a></body></html>`,
		"",
	}, "\r\n")

	h := headerFrom(t, "From: news@a.example")
	got := BodyStrategy{}.Extract(&Message{Header: h, Raw: []byte(raw)})
	if len(got) != 1 || got[0] != "https://shop.example/u?id=1" {
		t.Errorf("Extract = %v, want the anchor destination", got)
	}
}

func TestBodyStrategyMultipart(t *testing.T) {
	raw := strings.Join([]string{
		"From: news@a.example",
		"MIME-Version: 1.0",
		`Content-Type: multipart/alternative; boundary="xyz"`,
		"",
		"--xyz",
		"Content-Type: text/plain; charset=utf-8",
		"",
		"Plain text without any links.",
		"--xyz",
		"Content-Type: text/html; charset=utf-8",
		"",
		`<a href="https://shop.example/u?id=9">unsubscribe</a>`,
		"--xyz--",
		"",
	}, "\r\n")

	h := headerFrom(t, "From: news@a.example")
	got := BodyStrategy{}.Extract(&Message{Header: h, Raw: []byte(raw)})
	if len(got) != 1 || got[0] != "https://shop.example/u?id=9" {
		t.Errorf("Extract = %v, want the html part's anchor", got)
	}
}

func TestBodyStrategyNoRawMessage(t *testing.T) {
	h := headerFrom(t, "From: news@a.example")
	if got := (BodyStrategy{}).Extract(&Message{Header: h}); got != nil {
		t.Errorf("Extract without raw message = %v, want nil", got)
	}
}

func TestExtractorStrategyOrder(t *testing.T) {
	raw := strings.Join([]string{
		"From: news@a.example",
		"Content-Type: text/plain; charset=utf-8",
		"",
		"unsubscribe here: https://body.example/u",
		"",
	}, "\r\n")

	withHeader := headerFrom(t,
		"From: news@a.example",
		"List-Unsubscribe: <https://header.example/u>",
	)
	e := New(HeaderStrategy{}, BodyStrategy{})

	got := e.Links(&Message{Header: withHeader, Raw: []byte(raw)})
	if len(got) != 1 || got[0] != "https://header.example/u" {
		t.Errorf("Links = %v, want the header strategy to short-circuit", got)
	}

	// Without the header the body strategy is consulted.
	withoutHeader := headerFrom(t, "From: news@a.example")
	got = e.Links(&Message{Header: withoutHeader, Raw: []byte(raw)})
	if len(got) != 1 || got[0] != "https://body.example/u" {
		t.Errorf("Links = %v, want the body fallback", got)
	}
}

func TestURLPattern(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"see https://a.example/path?x=1 now", "https://a.example/path?x=1"},
		{"plain http://b.example/u", "http://b.example/u"},
		{"<https://c.example/u>", "https://c.example/u"},
		{"no url here", ""},
		{"ftp://not.http.example/u", ""},
	}
	for _, tc := range cases {
		if got := urlPattern.FindString(tc.in); got != tc.want {
			t.Errorf("FindString(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
