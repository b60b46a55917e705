package center

import "strings"

// minAddressLen is the shortest accepted email address or phone number, exclusive.
const minAddressLen = 3

// Types is the per-recipient subscription matrix.
type Types map[MessageType]bool

// TypesOf builds a subscription matrix enabling exactly ts.
func TypesOf(ts ...MessageType) Types {
	out := make(Types, len(ts))
	for _, t := range ts {
		out[t] = true
	}
	return out
}

// Eligible reports whether a recipient receives messages of type t.
// It depends on nothing but its arguments.
func Eligible(enabled bool, types Types, t MessageType) bool {
	return enabled && types[t]
}

type PushTarget struct {
	Name    string
	Enabled bool
	// Ref is the opaque push endpoint handle, e.g. a chat id.
	Ref                  string
	Types                Types
	Sounds               map[MessageType]string
	RequiresConfirmation bool
}

func (p PushTarget) WellFormed() bool { return strings.TrimSpace(p.Ref) != "" }

func (p PushTarget) Eligible(t MessageType) bool {
	return p.WellFormed() && Eligible(p.Enabled, p.Types, t)
}

func (p PushTarget) Sound(t MessageType) string { return p.Sounds[t] }

type EmailRecipient struct {
	Name    string
	Enabled bool
	// Ref names the mailer profile used for delivery.
	Ref     string
	Address string
	Types   Types
}

func (r EmailRecipient) WellFormed() bool {
	return strings.TrimSpace(r.Ref) != "" && len(strings.TrimSpace(r.Address)) > minAddressLen
}

func (r EmailRecipient) Eligible(t MessageType) bool {
	return r.WellFormed() && Eligible(r.Enabled, r.Types, t)
}

type SmsRecipient struct {
	Name    string
	Enabled bool
	Phone   string
	Types   Types
}

func (r SmsRecipient) WellFormed() bool { return len(strings.TrimSpace(r.Phone)) > minAddressLen }

func (r SmsRecipient) Eligible(t MessageType) bool {
	return r.WellFormed() && Eligible(r.Enabled, r.Types, t)
}

// SmsRoute binds recipients to one SMS provider profile.
type SmsRoute struct {
	Provider   string
	Recipients []SmsRecipient
}

// Directory is an immutable snapshot of all recipients.
type Directory struct {
	Push  []PushTarget
	Email []EmailRecipient
	SMS   []SmsRoute
}

func (d Directory) clone() Directory {
	out := Directory{
		Push:  append([]PushTarget(nil), d.Push...),
		Email: append([]EmailRecipient(nil), d.Email...),
		SMS:   make([]SmsRoute, 0, len(d.SMS)),
	}
	for _, r := range d.SMS {
		out.SMS = append(out.SMS, SmsRoute{Provider: r.Provider, Recipients: append([]SmsRecipient(nil), r.Recipients...)})
	}
	return out
}

// ConfirmationTargets counts enabled push targets that require confirmation.
func (d Directory) ConfirmationTargets() int {
	n := 0
	for _, p := range d.Push {
		if p.Eligible(TypeAlert) && p.RequiresConfirmation {
			n++
		}
	}
	return n
}
