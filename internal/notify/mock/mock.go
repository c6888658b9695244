// Package mock provides a recording Notifier for tests.
package mock

import "sync"

// Notification is one captured Notify call.
type Notification struct {
	Title string
	Body  string
}

// Notifier records every notification it receives.
type Notifier struct {
	// Err, when set, is returned from every Notify call.
	Err error

	mu   sync.Mutex
	sent []Notification
}

func (n *Notifier) Notify(title, body string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, Notification{Title: title, Body: body})
	return n.Err
}

// Sent returns a copy of all captured notifications.
func (n *Notifier) Sent() []Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]Notification, len(n.sent))
	copy(out, n.sent)
	return out
}
