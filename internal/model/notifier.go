package model

// Notifier defines a generic interface for delivering alert messages.
type Notifier interface {
	Send(subject, body string) error
}
