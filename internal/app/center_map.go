package app

import (
	"strings"
	"time"

	"notifycenter/internal/center"
	"notifycenter/internal/channels/email"
	"notifycenter/internal/channels/sms"
	"notifycenter/internal/channels/telegram"
	"notifycenter/internal/config"
	"notifycenter/internal/storage"
	logx "notifycenter/pkg/logx"
)

func mapStorageConfig(cfg *config.Config) (storage.Config, error) {
	if cfg == nil || cfg.Storage == nil {
		return storage.Config{Driver: "memory"}, nil
	}
	sc := cfg.Storage
	busy, err := config.ParseDurationOrDefault("storage.busy_timeout", sc.BusyTimeout, time.Second)
	if err != nil {
		return storage.Config{}, err
	}
	return storage.Config{
		Driver:      strings.ToLower(strings.TrimSpace(sc.Driver)),
		Path:        strings.TrimSpace(sc.Path),
		BusyTimeout: busy,
	}, nil
}

func mapLogConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	}
}

func mapSettings(cfg *config.Config) (center.Settings, error) {
	period, err := config.ParseDurationOrDefault("alarm.confirmation_period", cfg.Alarm.ConfirmationPeriod, center.DefaultConfirmationPeriod)
	if err != nil {
		return center.Settings{}, err
	}
	timeout, err := config.ParseDurationOrDefault("push.send_timeout", cfg.Push.SendTimeout, center.DefaultSendTimeout)
	if err != nil {
		return center.Settings{}, err
	}
	attempts := center.DefaultAlarmAttempts
	if cfg.Alarm.Attempts != nil {
		attempts = *cfg.Alarm.Attempts
	}
	return center.Settings{
		MaintenanceMode:    cfg.MaintenanceMode,
		PushEnabled:        cfg.Push.Enabled,
		EmailEnabled:       cfg.Email.Enabled,
		SMSEnabled:         cfg.SMS.Enabled,
		ConfirmationPeriod: period,
		AlarmAttempts:      attempts,
		SendTimeout:        timeout,
	}, nil
}

// mapTypes ignores unknown names; Check has already rejected them.
func mapTypes(names []string) center.Types {
	out := make(center.Types, len(names))
	for _, n := range names {
		if t, err := center.ParseMessageType(n); err == nil {
			out[t] = true
		}
	}
	return out
}

func mapDirectory(cfg *config.Config) center.Directory {
	var d center.Directory
	for _, t := range cfg.Push.Targets {
		sounds := make(map[center.MessageType]string, len(t.Sounds))
		for k, v := range t.Sounds {
			if mt, err := center.ParseMessageType(k); err == nil {
				sounds[mt] = v
			}
		}
		d.Push = append(d.Push, center.PushTarget{
			Name:                 t.Name,
			Enabled:              t.Use,
			Ref:                  strings.TrimSpace(t.Ref),
			Types:                mapTypes(t.Types),
			Sounds:               sounds,
			RequiresConfirmation: t.RequiresConfirmation,
		})
	}
	for _, r := range cfg.Email.Recipients {
		d.Email = append(d.Email, center.EmailRecipient{
			Name:    r.Name,
			Enabled: r.Use,
			Ref:     r.Mailer,
			Address: strings.TrimSpace(r.Address),
			Types:   mapTypes(r.Types),
		})
	}
	smsRoute := func(provider string, enabled bool, rs []config.SMSRecipient) {
		if !enabled {
			return
		}
		route := center.SmsRoute{Provider: provider}
		for _, r := range rs {
			route.Recipients = append(route.Recipients, center.SmsRecipient{
				Name:    r.Name,
				Enabled: r.Use,
				Phone:   strings.TrimSpace(r.Phone),
				Types:   mapTypes(r.Types),
			})
		}
		d.SMS = append(d.SMS, route)
	}
	smsRoute(sms.ProviderNexxtMobile, cfg.SMS.NexxtMobile.Enabled, cfg.SMS.NexxtMobile.Recipients)
	smsRoute(sms.ProviderSipgate, cfg.SMS.Sipgate.Enabled, cfg.SMS.Sipgate.Recipients)
	return d
}

func mapMailers(cfg *config.Config) []email.Mailer {
	out := make([]email.Mailer, 0, len(cfg.Email.Mailers))
	for _, m := range cfg.Email.Mailers {
		out = append(out, email.Mailer{
			Name:     m.Name,
			Host:     m.Host,
			Port:     m.Port,
			Username: m.Username,
			Password: m.Password,
			From:     m.From,
			FromName: m.FromName,
			SSL:      m.SSL,
			NoVerify: m.NoVerify,
		})
	}
	return out
}

func mapTelegramConfig(cfg *config.Config) (telegram.Config, error) {
	poll, err := config.ParseDurationOrDefault("push.telegram.poll_timeout", cfg.Push.Telegram.PollTimeout, 10*time.Second)
	if err != nil {
		return telegram.Config{}, err
	}
	return telegram.Config{Token: strings.TrimSpace(cfg.Push.Telegram.Token), PollTimeout: poll}, nil
}

// mapSMSProviders builds one sender per enabled provider. A provider with
// missing credentials is left out and logged; its recipients count as
// ineligible at dispatch.
func mapSMSProviders(cfg *config.Config, log logx.Logger) map[string]center.Sender {
	out := map[string]center.Sender{}
	if nm := cfg.SMS.NexxtMobile; nm.Enabled {
		timeout, _ := config.ParseDurationOrDefault("sms.nexxtmobile.timeout", nm.Timeout, sms.DefaultTimeout)
		p, err := sms.NewNexxtMobile(sms.NexxtMobileConfig{
			Token:      nm.Token,
			Originator: nm.Originator,
			Timeout:    timeout,
			RatePerSec: nm.RatePerSec,
			BaseURL:    nm.BaseURL,
		})
		if err != nil {
			log.Warn("sms provider disabled", logx.String("provider", sms.ProviderNexxtMobile), logx.Err(err))
		} else {
			out[sms.ProviderNexxtMobile] = p
		}
	}
	if sg := cfg.SMS.Sipgate; sg.Enabled {
		timeout, _ := config.ParseDurationOrDefault("sms.sipgate.timeout", sg.Timeout, sms.DefaultTimeout)
		p, err := sms.NewSipgate(sms.SipgateConfig{
			User:       sg.User,
			Password:   sg.Password,
			SmsID:      sg.SmsID,
			Timeout:    timeout,
			RatePerSec: sg.RatePerSec,
			BaseURL:    sg.BaseURL,
		})
		if err != nil {
			log.Warn("sms provider disabled", logx.String("provider", sms.ProviderSipgate), logx.Err(err))
		} else {
			out[sms.ProviderSipgate] = p
		}
	}
	return out
}

func pushRefs(cfg *config.Config) []string {
	out := make([]string, 0, len(cfg.Push.Targets))
	for _, t := range cfg.Push.Targets {
		if t.Use && strings.TrimSpace(t.Ref) != "" {
			out = append(out, strings.TrimSpace(t.Ref))
		}
	}
	return out
}
