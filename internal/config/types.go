package config

// Config is the on-disk configuration. Durations are Go duration strings
// (e.g. "500ms", "10s", "1m").
type Config struct {
	// MaintenanceMode suppresses every notification and alarm action.
	MaintenanceMode bool `json:"maintenance_mode"`

	Logging LoggingConfig  `json:"logging"`
	Storage *StorageConfig `json:"storage,omitempty"`
	API     APIConfig      `json:"api"`
	Metrics MetricsConfig  `json:"metrics"`

	Alarm AlarmConfig `json:"alarm"`
	Push  PushConfig  `json:"push"`
	Email EmailConfig `json:"email"`
	SMS   SMSConfig   `json:"sms"`
}

type LoggingConfig struct {
	Level   string      `json:"level" validate:"omitempty,oneof=trace debug info warn warning error"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path" validate:"required_if=Enabled true"`
}

// StorageConfig controls persistence of the alarm state and the delivery log.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./data/notifycenter.db" }
type StorageConfig struct {
	Driver      string `json:"driver" validate:"omitempty,oneof=none memory file sqlite sqlite3"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"`
}

// APIConfig controls the HTTP API used by hosts to trigger notifications.
//
// Prefer binding to localhost; set a token when binding elsewhere.
type APIConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr,omitempty" validate:"omitempty,hostname_port"` // default: "127.0.0.1:8089"
	Token   string `json:"token,omitempty"`                                   // bearer token (do not log)
}

type MetricsConfig struct {
	Enabled bool `json:"enabled"`
	// ProcessMetrics adds go_* and process_* series.
	ProcessMetrics bool `json:"process_metrics,omitempty"`
}

type AlarmConfig struct {
	// ConfirmationPeriod is the repeat interval of an unconfirmed alarm. Default "60s".
	ConfirmationPeriod string `json:"confirmation_period,omitempty"`
	// Attempts counts all alarm deliveries, the first one included. Default 3.
	// Zero is allowed and resets the alarm on the first repeat tick.
	Attempts *int `json:"attempts,omitempty" validate:"omitempty,min=0,max=100"`
}

type PushConfig struct {
	Enabled     bool           `json:"enabled"`
	SendTimeout string         `json:"send_timeout,omitempty"`
	Telegram    TelegramConfig `json:"telegram"`
	Targets     []PushTarget   `json:"targets" validate:"dive"`
}

type TelegramConfig struct {
	Token       string `json:"token"`
	PollTimeout string `json:"poll_timeout,omitempty"`
}

// PushTarget is one push destination. Types lists subscribed message types;
// Sounds maps a message type to a sound name ("silent" mutes).
type PushTarget struct {
	Name                 string            `json:"name" validate:"required"`
	Use                  bool              `json:"use"`
	Ref                  string            `json:"ref"`
	RequiresConfirmation bool              `json:"requires_confirmation,omitempty"`
	Types                []string          `json:"types" validate:"dive,messagetype"`
	Sounds               map[string]string `json:"sounds,omitempty" validate:"dive,keys,messagetype,endkeys,required"`
}

type EmailConfig struct {
	Enabled    bool             `json:"enabled"`
	Mailers    []Mailer         `json:"mailers" validate:"dive"`
	Recipients []EmailRecipient `json:"recipients" validate:"dive"`
}

type Mailer struct {
	Name     string `json:"name" validate:"required"`
	Host     string `json:"host" validate:"required"`
	Port     int    `json:"port,omitempty" validate:"omitempty,min=1,max=65535"` // default 587
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"` // do not log
	From     string `json:"from" validate:"required,email"`
	FromName string `json:"from_name,omitempty"`
	SSL      bool   `json:"ssl,omitempty"`
	NoVerify bool   `json:"no_verify,omitempty"`
}

type EmailRecipient struct {
	Name    string   `json:"name" validate:"required"`
	Use     bool     `json:"use"`
	Mailer  string   `json:"mailer"`
	Address string   `json:"address"`
	Types   []string `json:"types" validate:"dive,messagetype"`
}

type SMSConfig struct {
	Enabled     bool              `json:"enabled"`
	NexxtMobile NexxtMobileConfig `json:"nexxtmobile"`
	Sipgate     SipgateConfig     `json:"sipgate"`
}

type NexxtMobileConfig struct {
	Enabled    bool           `json:"enabled"`
	Token      string         `json:"token,omitempty"` // do not log
	Originator string         `json:"originator,omitempty"`
	Timeout    string         `json:"timeout,omitempty"` // default "5s"
	RatePerSec float64        `json:"rate_per_sec,omitempty" validate:"omitempty,gt=0"`
	BaseURL    string         `json:"base_url,omitempty" validate:"omitempty,url"`
	Recipients []SMSRecipient `json:"recipients" validate:"dive"`
}

type SipgateConfig struct {
	Enabled    bool           `json:"enabled"`
	User       string         `json:"user,omitempty"`
	Password   string         `json:"password,omitempty"` // do not log
	SmsID      string         `json:"sms_id,omitempty"`
	Timeout    string         `json:"timeout,omitempty"` // default "5s"
	RatePerSec float64        `json:"rate_per_sec,omitempty" validate:"omitempty,gt=0"`
	BaseURL    string         `json:"base_url,omitempty" validate:"omitempty,url"`
	Recipients []SMSRecipient `json:"recipients" validate:"dive"`
}

type SMSRecipient struct {
	Name  string   `json:"name" validate:"required"`
	Use   bool     `json:"use"`
	Phone string   `json:"phone"`
	Types []string `json:"types" validate:"dive,messagetype"`
}
