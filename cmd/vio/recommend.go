package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/akozadaev/go_vio_recommender/internal/logging"
	"github.com/akozadaev/go_vio_recommender/internal/metrics"
	"github.com/akozadaev/go_vio_recommender/internal/models"
	"github.com/akozadaev/go_vio_recommender/internal/pipeline"
	"github.com/akozadaev/go_vio_recommender/internal/recommend"
)

type recommendConfig struct {
	zip        string
	pretrained bool
}

var recCfg recommendConfig

var recommendCmd = &cobra.Command{
	Use:   "recommend",
	Short: "Recommend the top products for a zip code",
	Long: `Trains the model from the input files (or loads saved artifacts with --pretrained)
and prints the top products for a zip code. Without --zip the command prompts repeatedly
until an empty line or end of input.`,
	RunE: runRecommend,
}

func init() {
	rootCmd.AddCommand(recommendCmd)

	recommendCmd.Flags().StringVar(&recCfg.zip, "zip", "", "Zip code; prompt interactively when empty")
	recommendCmd.Flags().BoolVar(&recCfg.pretrained, "pretrained", false, "Load saved model artifacts instead of training")
}

func runRecommend(cmd *cobra.Command, args []string) error {
	p := pipeline.New(cfg, logging.Named("pipeline"))

	var (
		bundle *recommend.Bundle
		err    error
	)
	if recCfg.pretrained {
		bundle, err = p.LoadBundle()
	} else {
		var rows []models.CompatibilityRow
		rows, err = p.BuildTable(cmd.Context())
		if err == nil {
			bundle, err = p.Train(cmd.Context(), rows)
		}
	}
	if err != nil {
		return err
	}

	ranker, err := p.Ranker(bundle)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if recCfg.zip != "" {
		recs, err := rank(ranker, recCfg.zip)
		if err != nil {
			return err
		}
		printRecommendations(out, ranker.TopN(), recs)
		return nil
	}

	return promptLoop(os.Stdin, out, ranker)
}

// promptLoop запрашивает ZIP-коды до пустой строки или конца ввода.
// Ошибка одного запроса печатается, и запрос повторяется с той же моделью.
func promptLoop(in io.Reader, out io.Writer, ranker *recommend.Ranker) error {
	sc := bufio.NewScanner(in)
	for {
		fmt.Fprintf(out, "Enter a zip code to find the top %d products: ", ranker.TopN())
		if !sc.Scan() {
			fmt.Fprintln(out)
			return sc.Err()
		}

		zip := strings.TrimSpace(sc.Text())
		if zip == "" {
			return nil
		}

		recs, err := rank(ranker, zip)
		if err != nil {
			fmt.Fprintf(out, "Error: %v\n", err)
			continue
		}
		printRecommendations(out, ranker.TopN(), recs)
	}
}

func rank(ranker *recommend.Ranker, zip string) ([]models.Recommendation, error) {
	start := time.Now()
	recs, err := ranker.Recommend(zip)
	metrics.RecordRecommend("cli", recommend.Outcome(err), time.Since(start))
	return recs, err
}

func printRecommendations(out io.Writer, topN int, recs []models.Recommendation) {
	fmt.Fprintf(out, "\nTop %d Recommended Products:\n", topN)

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ProductName\tProductId\t2024 Compatible VIOs")
	for _, r := range recs {
		fmt.Fprintf(tw, "%s\t%s\t%.0f\n", r.ProductName, r.ProductID, r.PredictedFleetSize)
	}
	tw.Flush()
	fmt.Fprintln(out)
}
