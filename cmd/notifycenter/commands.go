package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"notifycenter/internal/api"
	"notifycenter/internal/app"
	"notifycenter/internal/center"
	"notifycenter/internal/config"

	"github.com/fatih/color"
	"github.com/urfave/cli/v3"
)

var (
	okColor   = color.New(color.FgGreen)
	warnColor = color.New(color.FgYellow)
	errColor  = color.New(color.FgRed)
	dimColor  = color.New(color.FgHiBlack)
)

func newCommand(version string) *cli.Command {
	return &cli.Command{
		Name:    "notifycenter",
		Usage:   "notification hub for push, email and SMS with alarm confirmation",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to config file (json or yaml)",
				Value:   "./config.yaml",
				Sources: cli.EnvVars("NOTIFYCENTER_CONFIG"),
			},
			&cli.StringFlag{
				Name:    "server",
				Usage:   "API base URL for client commands",
				Value:   "http://" + api.DefaultAddr,
				Sources: cli.EnvVars("NOTIFYCENTER_SERVER"),
			},
			&cli.StringFlag{
				Name:    "token",
				Usage:   "API bearer token",
				Sources: cli.EnvVars("NOTIFYCENTER_TOKEN"),
			},
			&cli.BoolFlag{
				Name:  "no-color",
				Usage: "disable colored output",
			},
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			if cmd.Bool("no-color") {
				color.NoColor = true
			}
			return ctx, nil
		},
		Commands: []*cli.Command{
			serveCommand(version),
			validateCommand(),
			sendCommand(),
			alarmCommand("confirm", "confirm the pending alarm", (*api.Client).ConfirmAlarm),
			alarmCommand("repeat", "run one alarm repeat tick now", (*api.Client).RepeatAlarm),
			statusCommand(),
			deliveriesCommand(),
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return runServe(ctx, cmd.String("config"), version)
		},
	}
}

func serveCommand(version string) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "run the notification center",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return runServe(ctx, cmd.String("config"), version)
		},
	}
}

func runServe(ctx context.Context, cfgPath, version string) error {
	a, err := app.NewApp(cfgPath, version)
	if err != nil {
		return err
	}
	if err := a.Start(ctx); err != nil {
		return fmt.Errorf("start: %w", err)
	}

	reason := app.StopSIGTERM
	select {
	case <-ctx.Done():
	case <-a.Done():
		reason = app.StopFatalError
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	_ = a.Stop(stopCtx, reason)
	if reason == app.StopFatalError {
		return a.Err()
	}
	return nil
}

func validateCommand() *cli.Command {
	return &cli.Command{
		Name:  "validate",
		Usage: "check the config file and report the instance status",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			path := cmd.String("config")
			cfg, err := config.NewConfigManager(path).Parse()
			if err != nil {
				fmt.Printf("%s %s\n", errColor.Sprint("INVALID"), path)
				return cli.Exit(err.Error(), 2)
			}
			v := config.Validate(cfg)
			printValidation(os.Stdout, v)
			if v.Status == config.StatusError {
				return cli.Exit("", 1)
			}
			return nil
		},
	}
}

func printValidation(w io.Writer, v config.Validation) {
	label := okColor.Sprint(strings.ToUpper(v.Label))
	switch v.Status {
	case config.StatusInactive:
		label = warnColor.Sprint(strings.ToUpper(v.Label))
	case config.StatusError:
		label = errColor.Sprint(strings.ToUpper(v.Label))
	}
	fmt.Fprintf(w, "status: %s %s\n", label, dimColor.Sprintf("(%d)", int(v.Status)))
	for _, issue := range v.Issues {
		fmt.Fprintf(w, "  %s %s\n", warnColor.Sprint("!"), issue)
	}
}

func client(cmd *cli.Command) *api.Client {
	return api.NewClient(cmd.String("server"), cmd.String("token"))
}

func sendCommand() *cli.Command {
	return &cli.Command{
		Name:  "send",
		Usage: "send a notification through a running instance",
		Description: `Examples:
   notifycenter send --type alert --push-title Alarm --push-text "Motion in hall"
   notifycenter send --type battery --text "Sensor battery low"`,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "type", Aliases: []string{"t"}, Usage: "notification, acknowledgement, alert, sabotage, battery or 0-4", Value: "notification"},
			&cli.StringFlag{Name: "text", Usage: "shorthand for push, email and SMS text"},
			&cli.StringFlag{Name: "title", Usage: "shorthand for push title and email subject"},
			&cli.StringFlag{Name: "push-title"},
			&cli.StringFlag{Name: "push-text"},
			&cli.StringFlag{Name: "email-subject"},
			&cli.StringFlag{Name: "email-text"},
			&cli.StringFlag{Name: "sms-text"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			t, err := center.ParseMessageType(cmd.String("type"))
			if err != nil {
				return cli.Exit(err.Error(), 2)
			}
			n := center.Notification{
				PushTitle:    first(cmd.String("push-title"), cmd.String("title")),
				PushText:     first(cmd.String("push-text"), cmd.String("text")),
				EmailSubject: first(cmd.String("email-subject"), cmd.String("title")),
				EmailText:    first(cmd.String("email-text"), cmd.String("text")),
				SMSText:      first(cmd.String("sms-text"), cmd.String("text")),
				Type:         t,
			}
			rep, err := client(cmd).SendNotification(ctx, n)
			if err != nil {
				return err
			}
			printReport(os.Stdout, rep)
			return nil
		},
	}
}

func first(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func printReport(w io.Writer, rep center.Report) {
	if rep.Suppressed {
		fmt.Fprintf(w, "%s maintenance mode active; nothing sent\n", warnColor.Sprint("SUPPRESSED"))
		return
	}
	line := func(name string, r center.ChannelReport) {
		if r.Disabled {
			fmt.Fprintf(w, "  %-5s %s\n", name, dimColor.Sprint("disabled"))
			return
		}
		failed := fmt.Sprint(r.Failed)
		if r.Failed > 0 {
			failed = errColor.Sprint(r.Failed)
		}
		fmt.Fprintf(w, "  %-5s delivered=%s failed=%s ineligible=%d\n", name, okColor.Sprint(r.Delivered), failed, r.Ineligible)
	}
	fmt.Fprintf(w, "type: %s\n", rep.Type)
	line("push", rep.Push)
	line("email", rep.Email)
	line("sms", rep.SMS)
	if rep.Armed {
		fmt.Fprintf(w, "%s awaiting confirmation\n", warnColor.Sprint("ALARM ARMED"))
	}
}

func alarmCommand(name, usage string, call func(*api.Client, context.Context) (center.AlarmStatus, error)) *cli.Command {
	return &cli.Command{
		Name:  name,
		Usage: usage,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			st, err := call(client(cmd), ctx)
			if err != nil {
				return err
			}
			printAlarm(os.Stdout, st)
			return nil
		},
	}
}

func printAlarm(w io.Writer, st center.AlarmStatus) {
	if !st.Pending {
		fmt.Fprintf(w, "alarm: %s\n", okColor.Sprint("idle"))
		return
	}
	fmt.Fprintf(w, "alarm: %s %q attempt %d/%d every %s\n",
		errColor.Sprint("PENDING"), st.Title, st.Attempt, st.Limit, st.Period)
}

func statusCommand() *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "show instance status and alarm state",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			st, err := client(cmd).Status(ctx)
			if err != nil {
				return err
			}
			if st.Version != "" {
				fmt.Printf("version: %s\n", st.Version)
			}
			if st.Validation != nil {
				printValidation(os.Stdout, *st.Validation)
			}
			printAlarm(os.Stdout, st.Alarm)
			return nil
		},
	}
}

func deliveriesCommand() *cli.Command {
	return &cli.Command{
		Name:  "deliveries",
		Usage: "list recent delivery attempts",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "limit", Aliases: []string{"n"}, Value: 20},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			limit := int(cmd.Int("limit"))
			if limit <= 0 {
				return cli.Exit("limit must be positive", 2)
			}
			recs, err := client(cmd).Deliveries(ctx, limit)
			if err != nil {
				return err
			}
			if len(recs) == 0 {
				fmt.Println(dimColor.Sprint("no deliveries recorded"))
				return nil
			}
			for _, r := range recs {
				mark := okColor.Sprint("ok  ")
				if !r.OK {
					mark = errColor.Sprint("FAIL")
				}
				target := r.Channel
				if r.Provider != "" {
					target += "/" + r.Provider
				}
				fmt.Printf("%s %s %-16s %-15s %s", r.At.Local().Format(time.DateTime), mark, target, r.MessageType, r.Recipient)
				if r.Diagnostic != "" {
					fmt.Printf(" %s", dimColor.Sprint(r.Diagnostic))
				}
				fmt.Println()
			}
			return nil
		},
	}
}
