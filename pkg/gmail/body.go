package gmail

import (
	"bytes"
	"encoding/base64"
	"html"
	"io"
	"mime"
	"regexp"
	"strings"

	emaildomain "email-agent-backend/internal/email/domain"

	"github.com/emersion/go-message/charset"
	"google.golang.org/api/gmail/v1"
)

const noContent = "No content available"

var (
	senderPattern = regexp.MustCompile(`(?:"?([^"]*)"?\s)?(?:<?(.+@[^>]+)>?)`)
	htmlTag       = regexp.MustCompile(`<[^>]*>`)
)

func getHeader(headers []*gmail.MessagePartHeader, name string) string {
	for _, header := range headers {
		if strings.EqualFold(header.Name, name) {
			return header.Value
		}
	}
	return ""
}

// parseSender splits a From header into display name and address.
// A header the pattern cannot read becomes the address verbatim.
func parseSender(from string) emaildomain.Sender {
	m := senderPattern.FindStringSubmatch(from)
	if m == nil {
		return emaildomain.Sender{Email: from}
	}
	sender := emaildomain.Sender{
		Name:  strings.TrimSpace(m[1]),
		Email: strings.TrimSpace(m[2]),
	}
	if sender.Email == "" {
		sender.Email = from
	}
	return sender
}

// extractBody walks the MIME tree depth first. The first text/plain part
// wins, then the first text/html part as plain text, then the top-level body.
func extractBody(payload *gmail.MessagePart) string {
	if payload == nil {
		return noContent
	}

	if plain := findPart(payload, "text/plain"); plain != nil {
		if text, ok := decodePart(plain); ok {
			return text
		}
	}
	if htmlPart := findPart(payload, "text/html"); htmlPart != nil {
		if text, ok := decodePart(htmlPart); ok {
			return stripHTML(text)
		}
	}
	if text, ok := decodePart(payload); ok {
		return text
	}
	return noContent
}

func findPart(part *gmail.MessagePart, mimeType string) *gmail.MessagePart {
	if strings.EqualFold(part.MimeType, mimeType) && part.Body != nil && part.Body.Data != "" {
		return part
	}
	for _, child := range part.Parts {
		if found := findPart(child, mimeType); found != nil {
			return found
		}
	}
	return nil
}

func decodePart(part *gmail.MessagePart) (string, bool) {
	if part.Body == nil || part.Body.Data == "" {
		return "", false
	}
	data, ok := decodeData(part.Body.Data)
	if !ok {
		return "", false
	}
	return toUTF8(data, partCharset(part)), true
}

// decodeData accepts the url-safe alphabet Gmail documents as well as the
// unpadded and standard variants some senders produce
func decodeData(data string) ([]byte, bool) {
	for _, enc := range []*base64.Encoding{base64.URLEncoding, base64.RawURLEncoding, base64.StdEncoding, base64.RawStdEncoding} {
		if decoded, err := enc.DecodeString(data); err == nil {
			return decoded, true
		}
	}
	return nil, false
}

func partCharset(part *gmail.MessagePart) string {
	contentType := getHeader(part.Headers, "Content-Type")
	if contentType == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ""
	}
	return params["charset"]
}

func toUTF8(data []byte, label string) string {
	if label == "" || strings.EqualFold(label, "utf-8") || strings.EqualFold(label, "us-ascii") {
		return string(data)
	}
	r, err := charset.Reader(label, bytes.NewReader(data))
	if err != nil {
		return string(data)
	}
	converted, err := io.ReadAll(r)
	if err != nil {
		return string(data)
	}
	return string(converted)
}

func stripHTML(content string) string {
	text := htmlTag.ReplaceAllString(content, " ")
	text = html.UnescapeString(text)
	return strings.Join(strings.Fields(text), " ")
}
