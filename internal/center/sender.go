package center

import (
	"context"
	"fmt"
)

type Channel string

const (
	ChannelPush  Channel = "push"
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
)

// Recipient is the channel-neutral address handed to a Sender.
type Recipient struct {
	Name string
	// Ref is the push endpoint or the mailer profile.
	Ref     string
	Address string
}

// Content is one message as seen by a Sender.
type Content struct {
	Title string
	Body  string
	Sound string
	Type  MessageType
	// Confirmable asks the push sender to attach an acknowledgement action.
	Confirmable bool
}

// DeliveryResult classifies one delivery. Diagnostic is for observability only.
type DeliveryResult struct {
	OK         bool
	Diagnostic string
}

func Delivered() DeliveryResult { return DeliveryResult{OK: true} }

func Failed(format string, args ...any) DeliveryResult {
	return DeliveryResult{Diagnostic: fmt.Sprintf(format, args...)}
}

// Sender delivers content to one recipient on one channel.
// Implementations must honor ctx cancellation.
type Sender interface {
	Send(ctx context.Context, to Recipient, c Content) DeliveryResult
}

type SenderFunc func(ctx context.Context, to Recipient, c Content) DeliveryResult

func (f SenderFunc) Send(ctx context.Context, to Recipient, c Content) DeliveryResult {
	return f(ctx, to, c)
}

// Senders groups the channel senders. SMS is keyed by provider name.
type Senders struct {
	Push  Sender
	Email Sender
	SMS   map[string]Sender
}
