package imapmail

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
	"github.com/google/uuid"

	"EmailAutomation/internal/domain"
)

// parseMessage converts a raw RFC 822 message into the domain representation.
// Messages without a Message-ID header get a generated one so downstream
// deduplication and approval routing always have a key.
func parseMessage(raw []byte) (domain.EmailMessage, error) {
	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		return domain.EmailMessage{}, fmt.Errorf("read message: %w", err)
	}

	header := mr.Header

	messageID, err := header.MessageID()
	if err != nil || messageID == "" {
		messageID = uuid.NewString()
	}

	subject, _ := header.Subject()
	if subject == "" {
		subject = "No Subject"
	}

	receivedAt, err := header.Date()
	if err != nil || receivedAt.IsZero() {
		receivedAt = time.Now()
	}

	var body, htmlBody string
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			// tolerate malformed trailing parts
			break
		}
		inline, ok := part.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}
		contentType, _, _ := inline.ContentType()
		data, err := io.ReadAll(part.Body)
		if err != nil {
			continue
		}
		switch contentType {
		case "text/plain":
			if body == "" {
				body = string(data)
			}
		case "text/html":
			if htmlBody == "" {
				htmlBody = string(data)
			}
		}
	}

	if body == "" && htmlBody != "" {
		body = htmlToText(htmlBody)
	}

	return domain.EmailMessage{
		MessageID:  messageID,
		Sender:     strings.ToLower(firstAddress(header, "From")),
		Recipient:  strings.ToLower(firstAddress(header, "To")),
		Subject:    subject,
		Body:       strings.TrimSpace(body),
		HTMLBody:   htmlBody,
		ReceivedAt: receivedAt,
	}, nil
}

func firstAddress(header mail.Header, key string) string {
	addrs, err := header.AddressList(key)
	if err != nil || len(addrs) == 0 {
		// keep the raw header value when the address fails to parse
		return strings.TrimSpace(header.Get(key))
	}
	return addrs[0].Address
}

// htmlToText strips markup so HTML-only mail can still be classified.
func htmlToText(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return html
	}
	doc.Find("script,style").Remove()
	return strings.Join(strings.Fields(doc.Text()), " ")
}
