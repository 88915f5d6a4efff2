package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	// Global flags
	cfgFile   string
	brokers   string
	clientID  string
	username  string
	password  string
	caFile    string
	certFile  string
	keyFile   string
	insecure  bool
	timeout   time.Duration
	keepAlive time.Duration

	// Output flags
	verbose     bool
	noColor     bool
	showMetrics bool
)

var rootCmd = &cobra.Command{
	Use:   "mqttc",
	Short: "MQTT v5 command-line client",
	Long: `mqttc publishes and subscribes against MQTT v5 brokers.

The broker list is comma separated and tried in order. A failed broker
is skipped and the client reconnects with exponential backoff.

Supported schemes:
  - mqtt:// tcp://   - Plain TCP connection
  - mqtts:// tls://  - TLS encrypted connection
  - ws:// wss://     - WebSocket connection
  - quic://          - QUIC connection
  - unix://          - Unix domain socket

Examples:
  # Publish a message
  mqttc pub -t "sensor/temp" -m "23.5"

  # Subscribe with failover between two brokers
  mqttc sub -b "broker-a:1883,tls://broker-b:8883" -t "sensor/#"`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		if noColor {
			color.NoColor = true
		}
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	// Connection flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.mqttc.yaml)")
	rootCmd.PersistentFlags().StringVarP(&brokers, "broker", "b", "localhost:1883", "comma separated broker list")
	rootCmd.PersistentFlags().StringVar(&clientID, "client-id", "", "client ID (auto-generated if empty)")
	rootCmd.PersistentFlags().StringVarP(&username, "username", "u", "", "username for authentication")
	rootCmd.PersistentFlags().StringVarP(&password, "password", "P", "", "password for authentication")
	rootCmd.PersistentFlags().StringVar(&caFile, "ca-file", "", "CA certificate file")
	rootCmd.PersistentFlags().StringVar(&certFile, "cert-file", "", "client certificate file")
	rootCmd.PersistentFlags().StringVar(&keyFile, "key-file", "", "client key file")
	rootCmd.PersistentFlags().BoolVar(&insecure, "insecure", false, "skip TLS certificate verification")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second, "operation timeout")
	rootCmd.PersistentFlags().DurationVar(&keepAlive, "keepalive", 60*time.Second, "keep-alive interval")

	// Output flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().BoolVar(&showMetrics, "metrics", false, "print client metrics on exit")

	for _, name := range []string{
		"broker", "client-id", "username", "password", "ca-file", "cert-file", "key-file",
		"insecure", "timeout", "keepalive", "verbose", "no-color", "metrics",
	} {
		cobra.CheckErr(viper.BindPFlag(name, rootCmd.PersistentFlags().Lookup(name)))
	}
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
			viper.AddConfigPath(filepath.Join(home, ".config"))
		}
		viper.SetConfigName(".mqttc")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("MQTTC")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil && viper.GetBool("verbose") {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}

	brokers = viper.GetString("broker")
	clientID = viper.GetString("client-id")
	username = viper.GetString("username")
	password = viper.GetString("password")
	caFile = viper.GetString("ca-file")
	certFile = viper.GetString("cert-file")
	keyFile = viper.GetString("key-file")
	insecure = viper.GetBool("insecure")
	timeout = viper.GetDuration("timeout")
	keepAlive = viper.GetDuration("keepalive")
	verbose = viper.GetBool("verbose")
	noColor = viper.GetBool("no-color")
	showMetrics = viper.GetBool("metrics")
}
