package commands

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/mosaicnetworks/tsae/src/dummy"
	"github.com/mosaicnetworks/tsae/src/replica"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

//NewRunCmd returns the command that starts a TSAE node
func NewRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "run",
		Short:   "Run node",
		PreRunE: loadConfig,
		RunE:    runTSAE,
	}
	AddRunFlags(cmd)
	return cmd
}

/*******************************************************************************
* RUN
*******************************************************************************/

func runTSAE(cmd *cobra.Command, args []string) error {
	// the node replicates a collection of recipes
	_config.Proxy = dummy.NewInmemDummyClient(_config.Logger())

	engine := replica.NewReplica(_config)

	if err := engine.Init(); err != nil {
		_config.Logger().Error("Cannot initialize engine:", err)
		return err
	}

	sigintCh := make(chan os.Signal, 1)
	signal.Notify(sigintCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigintCh
		_config.Logger().Debug("Reacting to SIGINT - SHUTDOWN")
		engine.Shutdown()
	}()

	engine.Run()

	return nil
}

/*******************************************************************************
* CONFIG
*******************************************************************************/

//AddRunFlags adds flags to the Run command
func AddRunFlags(cmd *cobra.Command) {

	cmd.Flags().String("datadir", _config.DataDir, "Top-level directory for configuration and data")
	cmd.Flags().String("log", _config.LogLevel, "debug, info, warn, error, fatal, panic")
	cmd.Flags().String("log-file", _config.LogFile, "Also write logs to this file")
	cmd.Flags().String("moniker", _config.Moniker, "Optional name")

	// Network
	cmd.Flags().StringP("listen", "l", _config.BindAddr, "Listen IP:Port for tsae node")
	cmd.Flags().StringP("advertise", "a", _config.AdvertiseAddr, "Advertise IP:Port for tsae node")
	cmd.Flags().DurationP("timeout", "t", _config.TCPTimeout, "Timeout of every message read or write")
	cmd.Flags().Duration("session-timeout", _config.SessionTimeout, "Timeout of a whole session")

	// Service
	cmd.Flags().Bool("no-service", _config.NoService, "Disable HTTP service")
	cmd.Flags().StringP("service-listen", "s", _config.ServiceAddr, "Listen IP:Port for HTTP service")

	// Store
	cmd.Flags().String("store", _config.Store, "Store backend: inmem, badger or sqlite")
	cmd.Flags().String("db", _config.DatabaseDir, "Dabatabase directory")
	cmd.Flags().Bool("bootstrap", _config.Bootstrap, "Load from database")

	// Node configuration
	cmd.Flags().Duration("heartbeat", _config.HeartbeatTimeout, "Time between rounds of sessions")
	cmd.Flags().Int("partners", _config.NumPartners, "Number of partners per round")
	cmd.Flags().Bool("purge", _config.PurgeLog, "Purge operations acknowledged by every participant")
	cmd.Flags().Int("max-serialization-failures", _config.MaxSerializationFailures, "Consecutive undecodable sessions before suspending the node (0 to disable)")
}

func loadConfig(cmd *cobra.Command, args []string) error {

	err := bindFlagsLoadViper(cmd)
	if err != nil {
		return err
	}

	// If --datadir was explicitely set, but not --db, this will update the
	// default database dir to be inside the new datadir
	_config.SetDataDir(_config.DataDir)

	logFields := logrus.Fields{
		"DataDir":                  _config.DataDir,
		"BindAddr":                 _config.BindAddr,
		"AdvertiseAddr":            _config.AdvertiseAddr,
		"NoService":                _config.NoService,
		"ServiceAddr":              _config.ServiceAddr,
		"Store":                    _config.Store,
		"LogLevel":                 _config.LogLevel,
		"LogFile":                  _config.LogFile,
		"Moniker":                  _config.Moniker,
		"HeartbeatTimeout":         _config.HeartbeatTimeout,
		"TCPTimeout":               _config.TCPTimeout,
		"SessionTimeout":           _config.SessionTimeout,
		"NumPartners":              _config.NumPartners,
		"PurgeLog":                 _config.PurgeLog,
		"MaxSerializationFailures": _config.MaxSerializationFailures,
	}

	if _config.Store != "inmem" {
		logFields["DatabaseDir"] = _config.DatabaseDir
		logFields["Bootstrap"] = _config.Bootstrap
	}

	_config.Logger().WithFields(logFields).Debug("RUN")

	return nil
}

// Bind all flags and read the config into viper
func bindFlagsLoadViper(cmd *cobra.Command) error {
	// Register flags with viper. Include flags from this command and all other
	// persistent flags from the parent
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	// first unmarshal to read from CLI flags
	if err := viper.Unmarshal(_config); err != nil {
		return err
	}

	// look for config file in [datadir]/tsae.toml (.json, .yaml also work)
	viper.SetConfigName("tsae")          // name of config file (without extension)
	viper.AddConfigPath(_config.DataDir) // search root directory

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		_config.Logger().Debugf("Using config file: %s", viper.ConfigFileUsed())
	} else if _, ok := err.(viper.ConfigFileNotFoundError); ok {
		_config.Logger().Debugf("No config file found in: %s", _config.DataDir)
	} else {
		return err
	}

	// second unmarshal to read from config file
	return viper.Unmarshal(_config)
}
