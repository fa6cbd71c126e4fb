// Package cmd parse args to configure application.
package cmd

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"parley/metric"
	"parley/signal"
)

// Run starts the application.
func Run() {
	config, err := SetupConfig(os.Stdout, os.Args[1:])
	if err != nil {
		log.Error().Err(err).Msg("invalid configuration")
		os.Exit(1)
	}

	if config.Debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	s, err := signal.New(config)
	if err != nil {
		log.Error().Err(err).Msg("failed to set up server")
		os.Exit(1)
	}
	if err = s.Start(); err != nil {
		log.Error().Err(err).Msg("server stopped")
		os.Exit(1)
	}
}

// SetupConfig sets up and returns the configuration.
func SetupConfig(w io.Writer, args []string) (signal.Config, error) {
	config, err := Parse(w, args)
	if err != nil {
		return config, err
	}
	if err = config.Validate(); err != nil {
		return config, err
	}
	return config, nil
}

// Parse parses the command line arguments. A config file given with -config
// is loaded first; flags passed explicitly override its values.
func Parse(w io.Writer, args []string) (signal.Config, error) {
	fs := flag.NewFlagSet("parley", flag.ContinueOnError)
	fs.SetOutput(w)

	configFile := fs.String("config", "", "config file path")
	port := fs.Int("port", signal.DefaultPort, "listening port")
	debug := fs.Bool("debug", false, "debug mode")
	keyFile := fs.String("key", "", "key file path")
	certFile := fs.String("cert", "", "cert file path")
	secret := fs.String("secret", "", "shared secret clients must present to join")
	recordingsDir := fs.String("recordings", "", "directory recording files are written to")

	if err := fs.Parse(args); err != nil {
		return signal.Config{}, fmt.Errorf("failed to parse args: %w", err)
	}

	if fs.NArg() != 0 {
		return signal.Config{}, errors.New("some args are not parsed")
	}

	con := signal.Config{}
	if *configFile != "" {
		loaded, err := loadFile(*configFile)
		if err != nil {
			return signal.Config{}, err
		}
		con = loaded
	}

	if con.Port == 0 || isFlagSet(fs, "port") {
		con.Port = *port
	}
	if isFlagSet(fs, "debug") {
		con.Debug = *debug
	}
	if con.KeyFile == "" || isFlagSet(fs, "key") {
		con.KeyFile = *keyFile
	}
	if con.CertFile == "" || isFlagSet(fs, "cert") {
		con.CertFile = *certFile
	}
	if con.Secret == "" || isFlagSet(fs, "secret") {
		con.Secret = *secret
	}
	if con.RecordingsDir == "" || isFlagSet(fs, "recordings") {
		con.RecordingsDir = *recordingsDir
	}

	return con, nil
}

// loadFile reads a YAML config file into a signal.Config.
func loadFile(path string) (signal.Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	v.SetDefault("port", signal.DefaultPort)
	v.SetDefault("recordings_dir", signal.DefaultRecordingsDir)
	v.SetDefault("metric.port", metric.DefaultMetricsPort)
	v.SetDefault("metric.path", metric.DefaultMetricsPath)

	if err := v.ReadInConfig(); err != nil {
		return signal.Config{}, fmt.Errorf("failed to read config file: %w", err)
	}

	var con signal.Config
	if err := v.Unmarshal(&con); err != nil {
		return signal.Config{}, fmt.Errorf("failed to parse config file: %w", err)
	}
	return con, nil
}

func isFlagSet(fs *flag.FlagSet, name string) bool {
	set := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}
