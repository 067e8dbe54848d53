package amqp

import (
	"encoding/json"
	"time"
)

// RecurringProcessMessage asks a worker to materialize one due recurring
// template. AccountID is optional: older trigger payloads did not carry it,
// and the processor falls back to searching the owner's accounts.
type RecurringProcessMessage struct {
	OwnerID    string    `json:"owner_id"`
	TemplateID string    `json:"template_id"`
	AccountID  string    `json:"account_id,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

func NewRecurringProcessMessage(ownerID, templateID, accountID string) *RecurringProcessMessage {
	return &RecurringProcessMessage{
		OwnerID:    ownerID,
		TemplateID: templateID,
		AccountID:  accountID,
		Timestamp:  time.Now(),
	}
}

func (m *RecurringProcessMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func RecurringProcessMessageFromJSON(data []byte) (*RecurringProcessMessage, error) {
	var msg RecurringProcessMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// NotificationMessage is an outbound email handed to the notification
// consumer. Delivery failures are logged there, never retried inline by the
// producer.
type NotificationMessage struct {
	Recipient string    `json:"recipient"`
	Subject   string    `json:"subject"`
	Body      string    `json:"body"`
	Timestamp time.Time `json:"timestamp"`
}

func NewNotificationMessage(recipient, subject, body string) *NotificationMessage {
	return &NotificationMessage{
		Recipient: recipient,
		Subject:   subject,
		Body:      body,
		Timestamp: time.Now(),
	}
}

func (m *NotificationMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func NotificationMessageFromJSON(data []byte) (*NotificationMessage, error) {
	var msg NotificationMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
