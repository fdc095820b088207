// Команда vio строит таблицу совместимости, обучает модель и выдаёт рекомендации продукции по ZIP-коду.
package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/akozadaev/go_vio_recommender/internal/config"
	"github.com/akozadaev/go_vio_recommender/internal/logging"
)

var (
	configPath string
	logLevel   string
	cfg        *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "vio [command]",
	Short: "VIO product recommender: build compatibility table, train model, recommend products by zip code",
	Long: `Builds the product/fleet compatibility table from equipment and catalogue CSV files,
trains a random forest that predicts compatible vehicles in operation (VIO) per product and zip code,
and ranks the top products for a zip code.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if logLevel != "" {
			c.Log.Level = logLevel
		}
		logging.Init(logging.Config{Level: c.Log.Level, Format: c.Log.Format})
		cfg = c
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config (or CONFIG_PATH env)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level override (trace, debug, info, warn, error)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
