package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/fatih/color"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/tiiuae/flightplanengine/internal/link"
	"github.com/tiiuae/flightplanengine/internal/log"
	"github.com/tiiuae/flightplanengine/internal/telemetry"
	"github.com/tiiuae/flightplanengine/internal/types"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print the flight plan states and run progress a device publishes",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := loadConfig(true)
		if err != nil {
			return err
		}
		lg := log.New("warn", c.Log.Dir)

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		client, err := link.Dial(ctx, c, lg)
		if err != nil {
			return err
		}
		defer client.Disconnect(250)

		out := cmd.OutOrStdout()
		for _, suffix := range []string{telemetry.TopicFlightPlanState, telemetry.TopicFlightPlanProgress} {
			topic := link.Topic(c.DeviceID, suffix)
			tok := client.Subscribe(topic, c.MQTT.QoS, func(_ mqtt.Client, msg mqtt.Message) {
				if err := printEvent(out, msg.Payload()); err != nil {
					fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				}
			})
			tok.Wait()
			if err := tok.Error(); err != nil {
				return errors.WithMessagef(err, "subscribe %s", topic)
			}
		}

		<-ctx.Done()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

var stateColors = map[string]*color.Color{
	"machineStarted":   color.New(color.FgHiBlack),
	"initialized":      color.New(color.FgHiBlack),
	"editable":         color.New(color.FgGreen),
	"resumable":        color.New(color.FgYellow),
	"startedNotFlying": color.New(color.FgCyan),
	"flying":           color.New(color.FgBlue, color.Bold),
	"end":              color.New(color.FgMagenta),
}

type event struct {
	Timestamp   time.Time       `json:"timestamp"`
	MessageType string          `json:"message_type"`
	Message     json.RawMessage `json:"message"`
}

func printEvent(w io.Writer, payload []byte) error {
	var e event
	if err := json.Unmarshal(payload, &e); err != nil {
		return errors.WithMessage(err, "could not unmarshal event")
	}

	switch e.MessageType {
	case types.MsgMachineStateChanged:
		var s types.MachineStateChanged
		if err := json.Unmarshal(e.Message, &s); err != nil {
			return errors.WithMessage(err, "could not unmarshal state")
		}
		fmt.Fprintln(w, formatState(e.Timestamp, s))
	case types.MsgRunProgress:
		var p types.RunProgress
		if err := json.Unmarshal(e.Message, &p); err != nil {
			return errors.WithMessage(err, "could not unmarshal progress")
		}
		fmt.Fprintln(w, formatProgress(e.Timestamp, p))
	}
	return nil
}

func formatState(ts time.Time, s types.MachineStateChanged) string {
	c, ok := stateColors[s.State]
	if !ok {
		c = color.New(color.Reset)
	}

	line := fmt.Sprintf("%s %s", ts.Format("15:04:05"), c.Sprint(s.State))
	if fp := s.FlightPlan; fp != nil {
		line += fmt.Sprintf(" %q %s", fp.Title, fp.UUID)
	}
	switch {
	case s.StartAvailability != "":
		line += " " + s.StartAvailability
	case s.MavlinkStatus != "":
		line += " " + s.MavlinkStatus
	case s.State == "end":
		line += fmt.Sprintf(" completed=%t", s.Completed)
	}
	return line
}

func formatProgress(ts time.Time, p types.RunProgress) string {
	gray := color.New(color.FgHiBlack).SprintFunc()
	return fmt.Sprintf("%s %s %s item %d after %s", ts.Format("15:04:05"), gray("run"),
		p.RunningState, p.LastMissionItemExecuted,
		(time.Duration(p.RunningTime * float64(time.Second))).Round(time.Second))
}
