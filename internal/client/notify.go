package client

import "github.com/sirupsen/logrus"

type Variant string

const (
	VariantDefault     Variant = "default"
	VariantDestructive Variant = "destructive"
)

// Notification is a user-visible message about an auth operation.
type Notification struct {
	Title       string
	Description string
	Variant     Variant
}

// Notifier surfaces notifications to the user.
type Notifier interface {
	Notify(n Notification)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Notification)

func (f NotifierFunc) Notify(n Notification) { f(n) }

// Navigator moves the user to another view.
type Navigator interface {
	Navigate(path string)
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(string)

func (f NavigatorFunc) Navigate(path string) { f(path) }

// LogNotifier writes notifications to a logger, for terminal clients.
type LogNotifier struct {
	Logger logrus.FieldLogger
}

func (l LogNotifier) Notify(n Notification) {
	msg := n.Description
	if msg == "" {
		msg = n.Title
	}
	entry := l.Logger.WithField("title", n.Title)
	if n.Variant == VariantDestructive {
		entry.Error(msg)
		return
	}
	entry.Info(msg)
}
