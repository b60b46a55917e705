package config

import (
	"reflect"
	"strings"

	logx "notifycenter/pkg/logx"
)

// SummarizeConfigChange returns the changed top-level sections and safe
// structured attrs for logging. Tokens and passwords are reported only as
// "_set" booleans.
func SummarizeConfigChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 8)
	attrs := make([]logx.Field, 0, 16)

	if oldCfg.MaintenanceMode != newCfg.MaintenanceMode {
		changed = append(changed, "maintenance")
		attrs = append(attrs, logx.Bool("maintenance_mode", newCfg.MaintenanceMode))
	}

	if !reflect.DeepEqual(oldCfg.Logging, newCfg.Logging) {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.console", newCfg.Logging.Console),
			logx.Bool("logging.file_enabled", newCfg.Logging.File.Enabled),
		)
	}

	var oldStore, newStore StorageConfig
	if oldCfg.Storage != nil {
		oldStore = *oldCfg.Storage
	}
	if newCfg.Storage != nil {
		newStore = *newCfg.Storage
	}
	if oldStore != newStore {
		changed = append(changed, "storage")
		attrs = append(attrs, logx.String("storage.driver", newStore.Driver))
	}

	if oldCfg.API != newCfg.API {
		changed = append(changed, "api")
		attrs = append(attrs,
			logx.Bool("api.enabled", newCfg.API.Enabled),
			logx.String("api.addr", newCfg.API.Addr),
			logx.Bool("api.token_set", newCfg.API.Token != ""),
		)
	}

	if oldCfg.Metrics != newCfg.Metrics {
		changed = append(changed, "metrics")
		attrs = append(attrs, logx.Bool("metrics.enabled", newCfg.Metrics.Enabled))
	}

	if oldCfg.Alarm.ConfirmationPeriod != newCfg.Alarm.ConfirmationPeriod || intPtrVal(oldCfg.Alarm.Attempts) != intPtrVal(newCfg.Alarm.Attempts) {
		changed = append(changed, "alarm")
		attrs = append(attrs,
			logx.String("alarm.confirmation_period", newCfg.Alarm.ConfirmationPeriod),
			logx.Int("alarm.attempts", intPtrVal(newCfg.Alarm.Attempts)),
		)
	}

	if !reflect.DeepEqual(oldCfg.Push, newCfg.Push) {
		changed = append(changed, "push")
		attrs = append(attrs,
			logx.Bool("push.enabled", newCfg.Push.Enabled),
			logx.Int("push.targets", len(newCfg.Push.Targets)),
			logx.Bool("push.telegram_token_changed", strings.TrimSpace(oldCfg.Push.Telegram.Token) != strings.TrimSpace(newCfg.Push.Telegram.Token)),
		)
	}

	if !reflect.DeepEqual(oldCfg.Email, newCfg.Email) {
		changed = append(changed, "email")
		attrs = append(attrs,
			logx.Bool("email.enabled", newCfg.Email.Enabled),
			logx.Int("email.mailers", len(newCfg.Email.Mailers)),
			logx.Int("email.recipients", len(newCfg.Email.Recipients)),
		)
	}

	if !reflect.DeepEqual(oldCfg.SMS, newCfg.SMS) {
		changed = append(changed, "sms")
		attrs = append(attrs,
			logx.Bool("sms.enabled", newCfg.SMS.Enabled),
			logx.Bool("sms.nexxtmobile", newCfg.SMS.NexxtMobile.Enabled),
			logx.Bool("sms.nexxtmobile_token_set", newCfg.SMS.NexxtMobile.Token != ""),
			logx.Bool("sms.sipgate", newCfg.SMS.Sipgate.Enabled),
			logx.Bool("sms.sipgate_password_set", newCfg.SMS.Sipgate.Password != ""),
		)
	}

	return changed, attrs
}

func intPtrVal(p *int) int {
	if p == nil {
		return -1
	}
	return *p
}
