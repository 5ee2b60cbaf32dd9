package cmd

import (
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/Rorical/streamchat/internal/app"
	"github.com/Rorical/streamchat/internal/config"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "streamchat",
	Short: "Streaming chat relay and terminal client",
	Long: `streamchat relays streaming completions from an OpenAI-compatible provider
over POST /api and ships a terminal client that renders the tokens as they arrive.

Run "streamchat serve" to start the relay and "streamchat" to chat with it.`,
	SilenceUsage: true,
	Run: func(cmd *cobra.Command, args []string) {
		// Default behavior: run the chat application
		cfg, err := loadConfig()
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}

		application, err := app.NewApplication(cfg)
		if err != nil {
			log.Fatalf("Failed to create application: %v", err)
		}
		defer application.Stop()

		if err := application.Start(); err != nil {
			log.Fatalf("Application error: %v", err)
		}
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		log.Printf("Command execution error: %v", err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	if cfgFile != "" {
		return config.LoadConfigFrom(cfgFile)
	}
	return config.LoadConfig()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default $HOME/.streamchat/config.yaml)")

	rootCmd.AddCommand(profileCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(useCmd)
}
