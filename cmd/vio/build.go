package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/akozadaev/go_vio_recommender/internal/logging"
	"github.com/akozadaev/go_vio_recommender/internal/pipeline"
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Normalize input files and write the unified compatibility table",
	RunE: func(cmd *cobra.Command, args []string) error {
		rows, err := pipeline.New(cfg, logging.Named("pipeline")).BuildTable(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d rows to %s\n", len(rows), cfg.Paths.Compatibility)
		return nil
	},
}

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Build the compatibility table, train the model and save artifacts",
	RunE: func(cmd *cobra.Command, args []string) error {
		b, _, err := pipeline.New(cfg, logging.Named("pipeline")).TrainAndSave(cmd.Context())
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Artifact %s: %d trees, %d training rows\n", b.ID, len(b.Forest.Trees), b.TrainRows)
		if b.Scores.N > 0 {
			fmt.Fprintf(out, "Holdout (%d rows): MAE %.3f, RMSE %.3f, R2 %.3f\n", b.Scores.N, b.Scores.MAE, b.Scores.RMSE, b.Scores.R2)
		}
		fmt.Fprintf(out, "Model: %s\nEncoder: %s\n", cfg.Paths.Model, cfg.Paths.Encoder)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(trainCmd)
}
