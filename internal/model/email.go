package model

import "fmt"

// EmailMessage is a raw alert email as returned by the message source.
// Date is the raw header value; its format is untrusted and is only ever
// best-effort parsed downstream.
type EmailMessage struct {
	ID      string `json:"id"`
	Subject string `json:"subject"`
	Date    string `json:"date"`
	Snippet string `json:"snippet"`
}

// ContextText renders the message for inclusion in an LLM prompt.
func (m *EmailMessage) ContextText() string {
	return fmt.Sprintf("Subject: %s\nDate: %s\nContent: %s", m.Subject, m.Date, m.Snippet)
}
