package extract

import (
	"bytes"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
)

// unsubscribeKeywords is the fixed scan list, in priority order. Some
// senders use wording far from "unsubscribe" for their opt-out links.
var unsubscribeKeywords = []string{
	"unsubscribe",
	"[unsubscribe]",
	"exclude",
	"opt-out",
	"opt out",
	"if you no longer wish to receive this email",
	"subscription",
}

// BodyStrategy walks every text/plain and text/html body part of the
// full message looking for URLs near unsubscribe wording. It is the
// legacy fallback for senders that omit List-Unsubscribe; it requires
// the raw message to have been fetched.
type BodyStrategy struct{}

func (BodyStrategy) Name() string { return "body-keywords" }

func (BodyStrategy) Extract(msg *Message) []string {
	if len(msg.Raw) == 0 {
		return nil
	}

	mr, err := mail.CreateReader(bytes.NewReader(msg.Raw))
	if err != nil {
		return nil
	}
	defer mr.Close()

	var links []string
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			break
		}

		header, ok := part.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}
		contentType, _, _ := header.ContentType()

		// The reader already undid the transfer encoding and charset.
		body, err := io.ReadAll(part.Body)
		if err != nil {
			continue
		}

		var found []string
		switch {
		case strings.HasPrefix(contentType, "text/plain"):
			found = plainTextLinks(string(body))
		case strings.HasPrefix(contentType, "text/html"):
			found = htmlLinks(string(body))
		}

		for _, link := range found {
			links = appendUnique(links, link)
		}
	}

	return links
}

// plainTextLinks locates each keyword's first case-insensitive
// occurrence and takes the first URL-shaped substring following it.
// Line breaks are stripped first so a URL wrapped across lines still
// matches.
func plainTextLinks(body string) []string {
	var links []string
	lower := strings.ToLower(body)

	for _, keyword := range unsubscribeKeywords {
		idx := strings.Index(lower, keyword)
		if idx < 0 {
			continue
		}

		trimmed := strings.NewReplacer("\n", "", "\r", "").Replace(body[idx:])
		if match := urlPattern.FindString(trimmed); match != "" {
			links = appendUnique(links, match)
		}
	}
	return links
}

// htmlLinks parses the markup and collects the destination of every
// anchor whose text contains a keyword. Each keyword is also tried in
// its title-cased form to approximate case-insensitive anchor text.
func htmlLinks(body string) []string {
	html := strings.NewReplacer("\n", "", "\r", "").Replace(body)
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}

	var links []string
	for _, keyword := range unsubscribeKeywords {
		for _, variant := range []string{keyword, titleCase(keyword)} {
			doc.Find("a").Each(func(_ int, sel *goquery.Selection) {
				if !strings.Contains(sel.Text(), variant) {
					return
				}
				if href, ok := sel.Attr("href"); ok && href != "" {
					links = appendUnique(links, href)
				}
			})
		}
	}
	return links
}

// titleCase upper-cases the first letter of each space-separated word.
func titleCase(s string) string {
	words := strings.Split(s, " ")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
