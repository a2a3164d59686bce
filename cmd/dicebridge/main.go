package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "dicebridge",
	Short: "Cross-instance dice roll bridge",
	Long: `dicebridge lets independent tabletop tool instances trigger dice rolls
on each other through a shared broker, with no direct connection between
them. One instance runs 'serve' and executes rolls; any sibling can 'ping'
it for availability or 'roll' against it and await the result.`,
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(pingCmd())
	rootCmd.AddCommand(rollCmd())
	rootCmd.AddCommand(versionCmd())
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("DICEBRIDGE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "path to HuJSON config file")
	rootCmd.PersistentFlags().String("namespace", "", "shared namespace (overrides config)")
	rootCmd.PersistentFlags().String("redis-addr", "", "redis address (overrides config)")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("namespace", rootCmd.PersistentFlags().Lookup("namespace"))
	_ = viper.BindPFlag("redis-addr", rootCmd.PersistentFlags().Lookup("redis-addr"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}
