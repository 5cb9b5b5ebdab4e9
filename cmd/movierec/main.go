// Package main 是 movierec 命令行入口：加载 MovieLens 数据，训练或加载 SVD 模型，
// 并为指定用户输出 Top-N 推荐。
//
//	movierec -config movierec.yaml -user 1 -n 10
//	movierec -retrain -list-users
//	movierec -user 1 -metrics-file metrics.prom
//
// 不指定 -config 时使用内置默认配置（data/ratings.csv、data/movies.csv、data/svd_model.gob）。
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/rushteam/movierec/pkg/logging"
	"github.com/rushteam/movierec/recommend"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		l := logging.Logger()
		l.Error().Err(err).Msg("movierec failed")
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("movierec", flag.ContinueOnError)
	var (
		configPath  = fs.String("config", "", "path to YAML config file")
		userID      = fs.String("user", "", "user id to recommend for")
		n           = fs.Int("n", 0, "number of recommendations (default: recommend.top_n)")
		retrain     = fs.Bool("retrain", false, "ignore the saved model and train from scratch")
		listUsers   = fs.Bool("list-users", false, "print user ids with rating history")
		metricsFile = fs.String("metrics-file", "", "write Prometheus metrics to this file on exit")
		logLevel    = fs.String("log-level", "", "override log.level")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg := recommend.DefaultConfig()
	if *configPath != "" {
		var err error
		if cfg, err = recommend.LoadConfig(*configPath); err != nil {
			return err
		}
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	logging.Init(cfg.Log)
	log := logging.Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())

	app, err := recommend.Open(cfg, reg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := app.Close(); err != nil {
			log.Warn().Err(err).Msg("close persistence backend")
		}
	}()

	if err := app.Start(ctx, *retrain); err != nil {
		// 模型已生效但未能保存，仍然可以推荐
		if !app.Ready() {
			return err
		}
		log.Warn().Err(err).Msg("continuing with unsaved model")
	}

	if *listUsers {
		fmt.Fprintln(out, strings.Join(app.Users(), "\n"))
	}
	if *userID != "" {
		topN := *n
		if topN == 0 {
			topN = cfg.Recommend.TopN
		}
		recs, err := app.Recommend(ctx, *userID, topN)
		if err != nil {
			return fmt.Errorf("recommend for user %s: %w", *userID, err)
		}
		printRecommendations(out, *userID, recs, app.Model().KnowsUser(*userID))
	}

	if *metricsFile != "" {
		if err := prometheus.WriteToTextfile(*metricsFile, reg); err != nil {
			return fmt.Errorf("write metrics: %w", err)
		}
	}
	return nil
}

func printRecommendations(out io.Writer, userID string, recs []recommend.Recommendation, known bool) {
	if !known {
		fmt.Fprintf(out, "user %s has no ratings in the model, ranking by movie bias only\n", userID)
	}
	if len(recs) == 0 {
		fmt.Fprintf(out, "no recommendations for user %s\n", userID)
		return
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "#\tMOVIE\tTITLE\tPREDICTED")
	for i, r := range recs {
		title := r.Title
		if title == "" {
			title = "-"
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%.2f\n", i+1, r.ItemID, title, r.PredictedRating)
	}
	_ = w.Flush()
}
