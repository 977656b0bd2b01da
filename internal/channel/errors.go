package channel

import "errors"

var (
	// ErrNoChannel is returned when a reply names a channel that was never
	// registered with the Dispatcher.
	ErrNoChannel = errors.New("channel: unknown channel")

	// ErrDuplicateChannel is returned by Register for a name already taken.
	ErrDuplicateChannel = errors.New("channel: duplicate channel name")

	// ErrNoInbox means a message arrived before SetInbox was called.
	ErrNoInbox = errors.New("channel: inbox not set")

	// ErrDenied means the allow-list refused the sender or chat.
	ErrDenied = errors.New("channel: sender not allowed")
)
