// Package main provides the convnet CLI.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/born-ml/convnet/config"
	"github.com/born-ml/convnet/dataset"
	"github.com/born-ml/convnet/models"
	"github.com/born-ml/convnet/nn"
	"github.com/born-ml/convnet/runner"
	"github.com/born-ml/convnet/server"
)

const version = "v0.1.0-dev"

func usage() {
	fmt.Println("convnet - convolutional cats-vs-dogs classifiers")
	fmt.Printf("Version: %s\n\n", version)
	fmt.Println("Commands:")
	fmt.Println("  train      Train, evaluate and write Kaggle predictions")
	fmt.Println("  eval       Evaluate the latest checkpoint and write predictions")
	fmt.Println("  predict    Write predictions with the latest checkpoint")
	fmt.Println("  serve      Serve predictions over HTTP")
	fmt.Println("  version    Show version")
	fmt.Println("")
	fmt.Println("Run 'convnet <command> -h' for command flags.")
}

// options are the flags shared by every command.
type options struct {
	fs      *flag.FlagSet
	config  *string
	name    *string
	network *string
	epochs  *int
	lr      *float64
	batch   *int
	data    *string
	logDir  *string
	ckptDir *string
	addr    *string
}

func newOptions(cmd string) *options {
	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	return &options{
		fs:      fs,
		config:  fs.String("config", "", "YAML config file (defaults apply when empty)"),
		name:    fs.String("name", "catsdogs", "Run name used for log, checkpoint and prediction files"),
		network: fs.String("network", "catsdogs", fmt.Sprintf("Network to use %v", models.Names())),
		epochs:  fs.Int("epochs", 10, "Training epochs"),
		lr:      fs.Float64("lr", 0.001, "Learning rate"),
		batch:   fs.Int("batch", 0, "Batch size (overrides config)"),
		data:    fs.String("data", "", "Data directory (overrides config)"),
		logDir:  fs.String("logdir", "", "Log directory (overrides config)"),
		ckptDir: fs.String("ckptdir", "", "Checkpoint directory (overrides config)"),
		addr:    fs.String("addr", ":8080", "Listen address for serve"),
	}
}

// flags loads the config file and applies command-line overrides.
func (o *options) flags() (config.Flags, error) {
	flags := config.Default()
	if *o.config != "" {
		var err error
		if flags, err = config.Load(*o.config); err != nil {
			return flags, err
		}
	}
	if *o.batch > 0 {
		flags.BatchSize = *o.batch
	}
	if *o.data != "" {
		flags.DataDir = *o.data
	}
	if *o.logDir != "" {
		flags.LogDir = *o.logDir
	}
	if *o.ckptDir != "" {
		flags.CheckpointDir = *o.ckptDir
	}
	return flags, flags.Validate()
}

func main() {
	if len(os.Args) < 2 {
		usage()
		return
	}

	cmd := os.Args[1]
	if cmd == "version" {
		fmt.Printf("convnet %s\n", version)
		return
	}

	opts := newOptions(cmd)
	if err := opts.fs.Parse(os.Args[2:]); err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var err error
	switch cmd {
	case "train":
		err = runAll(ctx, opts, true)
	case "eval":
		err = runAll(ctx, opts, false)
	case "predict":
		err = predict(ctx, opts)
	case "serve":
		err = serve(ctx, opts)
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		log.Fatalf("%s: %v", cmd, err)
	}
}

func setup(opts *options) (*runner.Runner, *dataset.Dataset, error) {
	flags, err := opts.flags()
	if err != nil {
		return nil, nil, err
	}
	ds, err := dataset.Open(flags)
	if err != nil {
		return nil, nil, err
	}
	log.Printf("Data: %d train, %d validation, %d test, %d kaggle images",
		len(ds.Examples(dataset.Train)), len(ds.Examples(dataset.Validation)),
		len(ds.Examples(dataset.Test)), len(ds.Examples(dataset.Kaggle)))
	return runner.New(flags), ds, nil
}

func runAll(ctx context.Context, opts *options, doTraining bool) error {
	r, ds, err := setup(opts)
	if err != nil {
		return err
	}
	net, err := models.New(*opts.network, r.Flags)
	if err != nil {
		return err
	}
	log.Printf("Network:\n%s", net)
	return r.RunAll(ctx, net, runner.DatasetInputs(ds), *opts.epochs, float32(*opts.lr), *opts.name, doTraining)
}

func predict(ctx context.Context, opts *options) error {
	flags, err := opts.flags()
	if err != nil {
		return err
	}
	ds, err := dataset.OpenKaggle(flags)
	if err != nil {
		return err
	}
	log.Printf("Data: %d kaggle images", len(ds.Examples(dataset.Kaggle)))
	r := runner.New(flags)
	net, err := models.New(*opts.network, flags)
	if err != nil {
		return err
	}
	if err := r.Setup(*opts.name); err != nil {
		return err
	}
	input, err := ds.Inputs(dataset.Kaggle, 1, true)
	if err != nil {
		return err
	}
	g := nn.NewGraph(nn.WithSeed(r.Flags.Seed), nn.WithWorkers(r.Flags.Workers))
	_, err = r.RunPrediction(ctx, g, g.Logits(net, input, false), *opts.name)
	return err
}

func serve(ctx context.Context, opts *options) error {
	flags, err := opts.flags()
	if err != nil {
		return err
	}
	net, err := models.New(*opts.network, flags)
	if err != nil {
		return err
	}

	s := server.New(flags, net, *opts.name)
	if err := s.Reload(); err != nil {
		log.Printf("No model loaded yet: %v", err)
	}

	srv := &http.Server{
		Addr:              *opts.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Printf("Listening on %s", *opts.addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
