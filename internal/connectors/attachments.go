package connectors

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/jhillyerd/enmime"

	"pendencias/internal"
	"pendencias/internal/pipeline"
)

// Message is a fetched mail message in raw RFC 5322 form.
type Message struct {
	Source     string
	MessageID  string
	Subject    string
	From       string
	ReceivedAt string
	Raw        []byte
}

// SpreadsheetAttachments returns the attachments of a message that one of
// the pipeline decoders can read, one InboundFile each.
func SpreadsheetAttachments(msg Message) ([]internal.InboundFile, error) {
	env, err := enmime.ReadEnvelope(bytes.NewReader(msg.Raw))
	if err != nil {
		return nil, fmt.Errorf("parse message %s: %w", msg.MessageID, err)
	}

	subject := msg.Subject
	if subject == "" {
		subject = env.GetHeader("Subject")
	}

	parts := append([]*enmime.Part{}, env.Attachments...)
	parts = append(parts, env.Inlines...)

	out := []internal.InboundFile{}
	for i, part := range parts {
		name := strings.TrimSpace(part.FileName)
		if name == "" || pipeline.FormatFromName(name) == "" || len(part.Content) == 0 {
			continue
		}
		out = append(out, internal.InboundFile{
			Source:     msg.Source,
			ExternalID: fmt.Sprintf("%s#%d", msg.MessageID, i),
			Name:       name,
			Subject:    subject,
			From:       msg.From,
			ReceivedAt: msg.ReceivedAt,
			Content:    part.Content,
		})
	}
	return out, nil
}
