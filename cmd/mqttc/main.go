// mqttc is a command-line MQTT v5 client for publishing and subscribing.
package main

import (
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		printError("%v", err)
		os.Exit(1)
	}
}
