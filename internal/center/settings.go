package center

import "time"

const (
	DefaultConfirmationPeriod = 60 * time.Second
	DefaultAlarmAttempts      = 3
	DefaultSendTimeout        = 10 * time.Second

	MaxPushTitle = 32
	MaxSMSText   = 360
)

// Settings is the runtime configuration of a Center.
type Settings struct {
	MaintenanceMode bool

	PushEnabled  bool
	EmailEnabled bool
	SMSEnabled   bool

	ConfirmationPeriod time.Duration
	// AlarmAttempts is the total number of alarm deliveries, the initial one included.
	// Zero is valid and resets the alarm on the first tick.
	AlarmAttempts int
	// SendTimeout bounds every single sender call.
	SendTimeout time.Duration
}

func (s Settings) withDefaults() Settings {
	if s.ConfirmationPeriod <= 0 {
		s.ConfirmationPeriod = DefaultConfirmationPeriod
	}
	if s.AlarmAttempts < 0 {
		s.AlarmAttempts = DefaultAlarmAttempts
	}
	if s.SendTimeout <= 0 {
		s.SendTimeout = DefaultSendTimeout
	}
	return s
}

// truncate cuts s to at most n characters.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
