package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"notifycenter/internal/center"

	"github.com/go-playground/validator/v10"
)

var ErrInvalid = errors.New("invalid config")

// Status mirrors the instance status codes of the home-automation host.
type Status int

const (
	StatusActive   Status = 102
	StatusInactive Status = 104
	StatusError    Status = 200
)

func (s Status) String() string {
	switch s {
	case StatusActive:
		return "active"
	case StatusInactive:
		return "inactive"
	case StatusError:
		return "error"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Validation is the semantic health of a structurally valid config.
type Validation struct {
	Status Status   `json:"status"`
	Label  string   `json:"label"`
	Issues []string `json:"issues,omitempty"`
}

var structValidator = newStructValidator()

func newStructValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("messagetype", func(fl validator.FieldLevel) bool {
		_, err := center.ParseMessageType(fl.Field().String())
		return err == nil
	})
	return v
}

// Check rejects configs that cannot be loaded at all: schema violations,
// unknown message types and malformed durations.
func Check(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("%w: config is nil", ErrInvalid)
	}
	if err := structValidator.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, describeFieldError(fe))
			}
			return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(msgs, "; "))
		}
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	for _, d := range durationFields(cfg) {
		if _, err := ParseDurationField(d.path, d.raw); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalid, err)
		}
	}
	if p, _ := ParseDurationField("alarm.confirmation_period", cfg.Alarm.ConfirmationPeriod); p > 0 && p < time.Second {
		return fmt.Errorf("%w: alarm.confirmation_period must be at least 1s", ErrInvalid)
	}
	return nil
}

func describeFieldError(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		ns = ns[i+1:]
	}
	if fe.Param() != "" {
		return fmt.Sprintf("%s: failed %s=%s", ns, fe.Tag(), fe.Param())
	}
	return fmt.Sprintf("%s: failed %s", ns, fe.Tag())
}

type durationField struct{ path, raw string }

func durationFields(cfg *Config) []durationField {
	out := []durationField{
		{"alarm.confirmation_period", cfg.Alarm.ConfirmationPeriod},
		{"push.send_timeout", cfg.Push.SendTimeout},
		{"push.telegram.poll_timeout", cfg.Push.Telegram.PollTimeout},
		{"sms.nexxtmobile.timeout", cfg.SMS.NexxtMobile.Timeout},
		{"sms.sipgate.timeout", cfg.SMS.Sipgate.Timeout},
	}
	if cfg.Storage != nil {
		out = append(out, durationField{"storage.busy_timeout", cfg.Storage.BusyTimeout})
	}
	return out
}

const minAddressLen = 3

// Validate reports the instance status and every configuration issue.
// Issues never stop the service; affected recipients are skipped at dispatch.
// Maintenance mode reports inactive even when issues exist.
func Validate(cfg *Config) Validation {
	var issues []string
	add := func(format string, args ...any) { issues = append(issues, fmt.Sprintf(format, args...)) }

	if cfg.Push.Enabled {
		if strings.TrimSpace(cfg.Push.Telegram.Token) == "" {
			add("push: telegram token missing")
		}
		for _, t := range cfg.Push.Targets {
			if t.Use && strings.TrimSpace(t.Ref) == "" {
				add("push target %q: ref missing", t.Name)
			}
		}
	}

	if cfg.Email.Enabled {
		mailers := make(map[string]bool, len(cfg.Email.Mailers))
		for _, m := range cfg.Email.Mailers {
			mailers[m.Name] = true
		}
		for _, r := range cfg.Email.Recipients {
			if !r.Use {
				continue
			}
			if !mailers[r.Mailer] {
				add("email recipient %q: unknown mailer %q", r.Name, r.Mailer)
			}
			if len(strings.TrimSpace(r.Address)) <= minAddressLen {
				add("email recipient %q: address too short", r.Name)
			}
		}
	}

	if cfg.SMS.Enabled {
		nm := cfg.SMS.NexxtMobile
		if nm.Enabled && hasActive(nm.Recipients) {
			if strings.TrimSpace(nm.Token) == "" {
				add("sms nexxtmobile: token missing")
			}
			if strings.TrimSpace(nm.Originator) == "" {
				add("sms nexxtmobile: originator missing")
			}
		}
		if nm.Enabled {
			checkPhones(add, "nexxtmobile", nm.Recipients)
		}
		sg := cfg.SMS.Sipgate
		if sg.Enabled && hasActive(sg.Recipients) {
			if strings.TrimSpace(sg.User) == "" {
				add("sms sipgate: user missing")
			}
			if sg.Password == "" {
				add("sms sipgate: password missing")
			}
		}
		if sg.Enabled {
			checkPhones(add, "sipgate", sg.Recipients)
		}
	}

	v := Validation{Status: StatusActive, Issues: issues}
	switch {
	case cfg.MaintenanceMode:
		v.Status = StatusInactive
	case len(issues) > 0:
		v.Status = StatusError
	}
	v.Label = v.Status.String()
	return v
}

func hasActive(rs []SMSRecipient) bool {
	for _, r := range rs {
		if r.Use {
			return true
		}
	}
	return false
}

func checkPhones(add func(string, ...any), provider string, rs []SMSRecipient) {
	for _, r := range rs {
		if r.Use && len(strings.TrimSpace(r.Phone)) <= minAddressLen {
			add("sms %s recipient %q: phone number too short", provider, r.Name)
		}
	}
}
