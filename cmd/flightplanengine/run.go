package main

import (
	"context"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/tiiuae/flightplanengine/internal/clock"
	"github.com/tiiuae/flightplanengine/internal/commands"
	"github.com/tiiuae/flightplanengine/internal/config"
	"github.com/tiiuae/flightplanengine/internal/engine"
	"github.com/tiiuae/flightplanengine/internal/link"
	"github.com/tiiuae/flightplanengine/internal/log"
	"github.com/tiiuae/flightplanengine/internal/mavlink"
	"github.com/tiiuae/flightplanengine/internal/metrics"
	"github.com/tiiuae/flightplanengine/internal/telemetry"
	"github.com/tiiuae/flightplanengine/internal/types"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the flight plan engine",
	Long: `Connect to the drone and the operator over MQTT and drive flight
plans from edition to the end of their run.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := loadConfig(true)
		if err != nil {
			return err
		}
		return run(cmd.Context(), c)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func run(parent context.Context, c config.Config) error {
	if parent == nil {
		parent = context.Background()
	}
	lg := log.New(c.Log.Level, c.Log.Dir)

	// SIGINT and SIGTERM cancel ctx
	ctx, quitFunc := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer quitFunc()

	mgr, _, closeStore, err := openManager(c, lg)
	if err != nil {
		return err
	}
	defer closeStore()

	mqttClient, err := link.Dial(ctx, c, lg)
	if err != nil {
		return err
	}
	defer mqttClient.Disconnect(1000)

	var fanout telemetry.Publisher
	if c.NATS.URL != "" {
		nc, err := nats.Connect(c.NATS.URL,
			nats.Name("flightplanengine-"+c.DeviceID),
			nats.MaxReconnects(-1),
			nats.ReconnectWait(2*time.Second),
			nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
				lg.Warnf("NATS: disconnected: %v", err)
			}),
			nats.ReconnectHandler(func(nc *nats.Conn) {
				lg.Infof("NATS: reconnected to %s", nc.ConnectedUrl())
			}))
		if err != nil {
			return errors.WithMessage(err, "nats connect")
		}
		defer nc.Drain()
		fanout = nc
	}

	m := metrics.New()
	droneLink := link.New(mqttClient, c.DeviceID, c.MQTT.QoS, lg)
	eng := engine.New(engine.Config{
		DeviceID:           c.DeviceID,
		Manager:            mgr,
		Generator:          mavlink.NewGenerator(c.Mavlink.Dir, lg),
		Sender:             mavlink.NewSender(droneLink, c.Mavlink.UploadTimeout, lg),
		Link:               droneLink,
		Clock:              clock.Real{},
		Metrics:            m,
		Logger:             lg,
		ActivationTimeout:  c.Activation.Timeout,
		ActivationInterval: c.Activation.Interval,
	})

	bus := types.NewMessageBus(make(chan types.Message, 100), lg,
		types.NewLogger(lg),
		droneLink,
		commands.New(mqttClient, c.DeviceID, c.MQTT.QoS, lg),
		eng,
		telemetry.New(mqttClient, fanout, telemetry.Options{
			DeviceID:      c.DeviceID,
			QoS:           c.MQTT.QoS,
			SubjectPrefix: c.NATS.SubjectPrefix,
			ProgressRate:  c.Telemetry.ProgressRate,
		}, lg),
	)

	// wait group will make sure all handlers have time to clean up
	var wg sync.WaitGroup
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		bus.Run(gctx, &wg)
		return nil
	})
	g.Go(func() error {
		return serveMetrics(gctx, c.Metrics.Listen, m, lg)
	})

	err = g.Wait()
	lg.Infof("Waiting for routines to finish..")
	wg.Wait()
	lg.Infof("Signing off - BYE")
	return err
}

func serveMetrics(ctx context.Context, addr string, m *metrics.Metrics, lg *log.Logger) error {
	if addr == "" {
		<-ctx.Done()
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			lg.Warnf("Metrics: shutdown: %v", err)
		}
	}()

	lg.Infof("Metrics: listening on %s", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.WithMessage(err, "metrics server")
	}
	return nil
}
