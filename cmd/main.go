// Command blockengine is a harness that loads filter lists into an engine and
// either answers one query or serves the engine over HTTP.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/AdguardTeam/blockengine"
	"github.com/AdguardTeam/blockengine/contentblocking"
	"github.com/AdguardTeam/blockengine/filterlist"
	"github.com/AdguardTeam/blockengine/internal/metrics"
	"github.com/AdguardTeam/blockengine/resources"
	"github.com/AdguardTeam/blockengine/rules"
	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/AdguardTeam/golibs/timeutil"
	goFlags "github.com/jessevdk/go-flags"
	"github.com/prometheus/client_golang/prometheus"
)

// version is the version of the program set by the linker.
var version = "dev"

// Options are the command-line arguments.
type Options struct {
	// ConfigPath is the path to the YAML configuration file.
	ConfigPath string `short:"c" long:"config" description:"Path to the YAML configuration file."`

	// FilterLists are the paths to additional filter lists.
	FilterLists []string `short:"f" long:"filter" description:"Path to a filter list. Can be specified multiple times."`

	// ResourcesPath is the path to the resources JSON file.
	ResourcesPath string `short:"r" long:"resources" description:"Path to the redirect and scriptlet resources JSON."`

	// CheckURL is the URL of the request to check.
	CheckURL string `long:"check" description:"Check the request with this URL, print the result, and exit."`

	// SourceHostname is the hostname of the page that sends the request.
	SourceHostname string `long:"source" description:"Hostname of the page for --check." default:""`

	// RequestType is the type of the request.
	RequestType string `long:"type" description:"Request type for --check." default:"other"`

	// CosmeticURL is the URL of the page to get the cosmetic resources for.
	CosmeticURL string `long:"cosmetic" description:"Print the cosmetic resources for the page with this URL and exit."`

	// ConvertPath is the path to write the content-blocker list to.
	ConvertPath string `long:"convert" description:"Convert the filter lists into a content-blocker JSON file and exit. Use - for stdout."`

	// Verbose enables debug-level logging.
	Verbose bool `short:"v" long:"verbose" description:"Verbose output (optional)." optional:"yes" optional-value:"true"`
}

func main() {
	var options Options
	parser := goFlags.NewParser(&options, goFlags.Default)
	_, err := parser.Parse()
	if err != nil {
		if flagsErr, ok := err.(*goFlags.Error); ok && flagsErr.Type == goFlags.ErrHelp {
			os.Exit(0)
		}

		os.Exit(1)
	}

	err = run(&options)
	if err != nil {
		fmt.Fprintf(os.Stderr, "blockengine: %s\n", err)

		os.Exit(1)
	}
}

// newLogger returns the logger of the harness.
func newLogger(verbose bool) (l *slog.Logger) {
	lvl := slog.LevelInfo
	if verbose {
		lvl = slog.LevelDebug
	}

	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

// run loads the engine and runs the mode chosen by options.
func run(options *Options) (err error) {
	conf, err := readConfiguration(options.ConfigPath)
	if err != nil {
		return err
	}

	envVerbose, err := conf.applyEnvironment()
	if err != nil {
		return err
	}

	for _, path := range options.FilterLists {
		conf.Filters = append(conf.Filters, &filterConfig{Path: path})
	}

	if options.ResourcesPath != "" {
		conf.Resources = options.ResourcesPath
	}

	err = conf.validate()
	if err != nil {
		return fmt.Errorf("configuration: %w", err)
	}

	logger := newLogger(options.Verbose || envVerbose)
	ctx := context.Background()

	if options.ConvertPath != "" {
		return convert(ctx, logger, conf, options.ConvertPath)
	}

	cacheMetrics, err := metrics.NewPatternCache(metrics.Namespace, prometheus.DefaultRegisterer)
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	e, err := newEngine(ctx, logger, conf, cacheMetrics)
	if err != nil {
		return err
	}

	switch {
	case options.CheckURL != "":
		return printJSON(os.Stdout, newCheckResponse(e.Check(&blockengine.CheckParams{
			URL:            options.CheckURL,
			SourceHostname: options.SourceHostname,
			RequestType:    options.RequestType,
			ThirdParty:     options.SourceHostname != "",
		})))
	case options.CosmeticURL != "":
		return printJSON(os.Stdout, e.URLCosmeticResources(options.CosmeticURL))
	default:
		return serve(ctx, logger, conf, e)
	}
}

// loadFilterSet reads the filter lists from conf into a new filter set.
func loadFilterSet(logger *slog.Logger, conf *configuration) (set *filterlist.FilterSet, err error) {
	set = filterlist.NewFilterSet(logger)
	for _, f := range conf.Filters {
		var text string
		text, err = readLimited(f.Path, int64(conf.MaxListSize.Bytes()))
		if err != nil {
			return nil, fmt.Errorf("filter %q: %w", f.Path, err)
		}

		var md *filterlist.Metadata
		md, err = set.AddList(text, f.parseOptions())
		if err != nil {
			return nil, fmt.Errorf("filter %q: %w", f.Path, err)
		}

		logger.Info(
			"loaded filter list",
			"path", f.Path,
			"title", md.Title,
			"rules", md.RulesCount,
			"invalid", md.InvalidCount,
			"expires", md.Expires,
		)
	}

	return set, nil
}

// newEngine creates the engine from conf.
func newEngine(
	ctx context.Context,
	logger *slog.Logger,
	conf *configuration,
	cacheMetrics *metrics.PatternCache,
) (e *blockengine.Engine, err error) {
	set, err := loadFilterSet(logger, conf)
	if err != nil {
		return nil, err
	}

	res := resources.NewShared(nil)
	if conf.Resources != "" {
		var data string
		data, err = readLimited(conf.Resources, int64(conf.MaxListSize.Bytes()))
		if err != nil {
			return nil, fmt.Errorf("resources: %w", err)
		}

		err = res.UseJSON([]byte(data))
		if err != nil {
			return nil, fmt.Errorf("resources: %w", err)
		}
	}

	e, err = blockengine.New(ctx, &blockengine.Config{
		Logger:        logger.With(slogutil.KeyPrefix, "engine"),
		Clock:         timeutil.SystemClock{},
		CacheMetrics:  cacheMetrics,
		Resources:     res,
		DiscardPolicy: conf.DiscardPolicy.toInternal(),
	}, set)
	if err != nil {
		return nil, fmt.Errorf("creating engine: %w", err)
	}

	for _, t := range conf.EnabledTags {
		e.EnableTag(t)
	}

	return e, nil
}

// convert writes the content-blocker form of the network rules from conf to
// path.
func convert(ctx context.Context, logger *slog.Logger, conf *configuration, path string) (err error) {
	cv, err := contentblocking.New(&contentblocking.Config{
		Logger:   logger.With(slogutil.KeyPrefix, "contentblocking"),
		MaxRules: conf.MaxContentBlockingRules,
	})
	if err != nil {
		return fmt.Errorf("creating converter: %w", err)
	}

	set, err := loadFilterSet(logger, conf)
	if err != nil {
		return err
	}

	storage, err := set.NewRuleStorage(ctx)
	if err != nil {
		return fmt.Errorf("creating rule storage: %w", err)
	}

	var nrs []*rules.NetworkRule
	for sc := storage.NewRuleStorageScanner(); sc.Scan(); {
		r, _ := sc.Rule()
		if nr, ok := r.(*rules.NetworkRule); ok {
			nrs = append(nrs, nr)
		}
	}

	res := cv.Convert(ctx, nrs)
	logger.Info("converted", "rules", len(res.Rules), "skipped", res.Skipped, "truncated", res.Truncated)

	data, err := res.JSON()
	if err != nil {
		return fmt.Errorf("encoding rules: %w", err)
	}

	if path == "-" {
		_, err = os.Stdout.Write(data)

		return err
	}

	return os.WriteFile(path, data, 0o644)
}

// readLimited reads at most limit bytes from the file at path.  It returns an
// error if the file is larger.
func readLimited(path string, limit int64) (text string, err error) {
	// #nosec G304 -- Trust the paths given by the operator.
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer func() { err = errors.WithDeferred(err, f.Close()) }()

	data, err := io.ReadAll(io.LimitReader(f, limit+1))
	if err != nil {
		return "", err
	}

	if int64(len(data)) > limit {
		return "", fmt.Errorf("file is larger than %d bytes", limit)
	}

	return string(data), nil
}

// printJSON writes v to w as indented JSON.
func printJSON(w io.Writer, v any) (err error) {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	return enc.Encode(v)
}

// waitForSignal blocks until the process receives an interrupt or a
// termination signal.
func waitForSignal() {
	signalChannel := make(chan os.Signal, 1)
	signal.Notify(signalChannel, syscall.SIGINT, syscall.SIGTERM)
	<-signalChannel
}
