package mailsource

import (
	"encoding/base64"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"google.golang.org/api/gmail/v1"
)

// htmlToText drops markup, scripts and styles and collapses whitespace.
func htmlToText(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return html
	}
	doc.Find("script, style, head").Remove()
	doc.Find("br, p, div, tr, li").Each(func(_ int, s *goquery.Selection) {
		s.AppendHtml("\n")
	})
	return collapseWhitespace(doc.Text())
}

func collapseWhitespace(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}

func decodeGmailData(data string) string {
	if data == "" {
		return ""
	}
	if b, err := base64.URLEncoding.DecodeString(data); err == nil {
		return string(b)
	}
	if b, err := base64.RawURLEncoding.DecodeString(data); err == nil {
		return string(b)
	}
	return ""
}

// gmailBody prefers text/plain anywhere in the MIME tree and falls back to
// text/html converted to text.
func gmailBody(p *gmail.MessagePart) string {
	if p == nil {
		return ""
	}
	if plain := findPart(p, "text/plain"); plain != "" {
		return plain
	}
	if html := findPart(p, "text/html"); html != "" {
		return htmlToText(html)
	}
	if p.Body != nil {
		return decodeGmailData(p.Body.Data)
	}
	return ""
}

func findPart(p *gmail.MessagePart, mimeType string) string {
	if strings.EqualFold(p.MimeType, mimeType) && p.Body != nil && p.Body.Data != "" {
		return decodeGmailData(p.Body.Data)
	}
	for _, child := range p.Parts {
		if s := findPart(child, mimeType); s != "" {
			return s
		}
	}
	return ""
}

func gmailHeader(p *gmail.MessagePart, name string) string {
	if p == nil {
		return ""
	}
	for _, h := range p.Headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}
