package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/tiiuae/flightplanengine/internal/clock"
	"github.com/tiiuae/flightplanengine/internal/config"
	"github.com/tiiuae/flightplanengine/internal/log"
	"github.com/tiiuae/flightplanengine/internal/manager"
	"github.com/tiiuae/flightplanengine/internal/storage"
)

var (
	configPath        string
	deviceID          string
	mqttBrokerAddress string
	dbPath            string
	logLevel          string
)

var rootCmd = &cobra.Command{
	Use:          "flightplanengine",
	Short:        "Flight plan state machine for a single drone",
	SilenceUsage: true,
}

func init() {
	f := rootCmd.PersistentFlags()
	f.StringVar(&configPath, "config", "", "YAML configuration file")
	f.StringVar(&deviceID, "device_id", "", "The provisioned device id")
	f.StringVar(&mqttBrokerAddress, "mqtt_broker", "", "MQTT broker protocol, address and port")
	f.StringVar(&dbPath, "db", "", "Flight plan database")
	f.StringVar(&logLevel, "log-level", "", "debug, info, warn or error")
}

// loadConfig applies the command line over the configuration file.
func loadConfig(validate bool) (config.Config, error) {
	c, err := config.Load(configPath)
	if err != nil {
		return c, err
	}
	if deviceID != "" {
		c.DeviceID = deviceID
	}
	if mqttBrokerAddress != "" {
		c.MQTT.Broker = mqttBrokerAddress
	}
	if dbPath != "" {
		c.Storage.Path = dbPath
	}
	if logLevel != "" {
		c.Log.Level = logLevel
	}
	if validate {
		return c, c.Validate()
	}
	return c, nil
}

func openStore(c config.Config) (*storage.SQLite, storage.Store, error) {
	db, err := storage.OpenSQLite(c.Storage.Path)
	if err != nil {
		return nil, nil, err
	}
	store, err := storage.NewCached(db, c.Storage.CacheSize)
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	return db, store, nil
}

func openManager(c config.Config, lg *log.Logger) (*manager.Manager, *storage.SQLite, func(), error) {
	db, store, err := openStore(c)
	if err != nil {
		return nil, nil, nil, err
	}
	closeFn := func() {
		if err := store.Close(); err != nil {
			lg.Warnf("Storage: close: %v", err)
		}
	}
	return manager.New(store, clock.Real{}, lg), db, closeFn, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
