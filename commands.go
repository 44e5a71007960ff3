package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.uber.org/zap"

	"github.com/sandeepkandula/archivesync/auth"
	"github.com/sandeepkandula/archivesync/config"
	"github.com/sandeepkandula/archivesync/graph"
	"github.com/sandeepkandula/archivesync/logging"
	"github.com/sandeepkandula/archivesync/metrics"
	"github.com/sandeepkandula/archivesync/sync"
	"github.com/sandeepkandula/archivesync/vcenter"
)

func runSync(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("sync", flag.ContinueOnError)
	cfgPath := fs.String("config", "", "YAML config file")
	root := fs.String("root", "", "remote folder to walk (overrides sync.rootPath)")
	dest := fs.String("dest", "", "local destination directory (overrides sync.localDir)")
	dryRun := fs.Bool("dry-run", false, "print actions without writing files")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		return err
	}
	if *root != "" {
		cfg.Sync.RootPath = *root
	}
	if *dest != "" {
		cfg.Sync.LocalDir = *dest
	}
	if err := cfg.ValidateSync(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	req, err := cfg.Request()
	if err != nil {
		return err
	}

	log, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	defer log.Sync()

	lister, sink, cred, err := buildSync(ctx, cfg, log, *dryRun)
	if err != nil {
		return err
	}

	start := time.Now()
	out := sync.NewEngine(lister, sink, sync.WithLogger(log.Named("sync"))).Sync(ctx, cred, req)
	printOutcome(stdout, req, out)

	if cfg.Metrics.Textfile != "" {
		rec := metrics.New()
		rec.Observe(out, time.Since(start), time.Now())
		if err := rec.WriteTextfile(cfg.Metrics.Textfile); err != nil {
			log.Warn("write metrics textfile", zap.Error(err))
		}
	}

	if out.Canceled {
		return errors.New("sync canceled")
	}
	if len(out.Failures) > 0 {
		return fmt.Errorf("%d entries failed", len(out.Failures))
	}
	return nil
}

// buildSync wires the lister and sink selected by cfg and acquires the
// credential they share.
func buildSync(ctx context.Context, cfg *config.Config, log *zap.Logger, dryRun bool) (sync.Lister, sync.Sink, auth.Credential, error) {
	var (
		s3Client *s3.Client
		lister   sync.Lister
		sink     sync.Sink
		cred     auth.Credential
	)
	if cfg.Sync.Source == "s3" || cfg.Sync.Destination == "s3" {
		c, err := newS3Client(ctx, cfg.S3)
		if err != nil {
			return nil, nil, cred, err
		}
		s3Client = c
	}

	switch cfg.Sync.Source {
	case "graph":
		provider, err := tokenProvider(cfg, "graph")
		if err != nil {
			return nil, nil, cred, err
		}
		log.Info("authenticating to Microsoft Graph")
		if cred, err = provider.Token(ctx); err != nil {
			return nil, nil, cred, fmt.Errorf("authenticate: %w", err)
		}
		l, err := graphLister(ctx, cfg, provider, cred, log)
		if err != nil {
			return nil, nil, cred, err
		}
		lister = l
	case "s3":
		lister = sync.NewS3Lister(s3Client, cfg.S3.Bucket, cfg.S3.Prefix)
	}

	switch {
	case dryRun:
		sink = sync.NewDryRunSink(log.Named("dry-run"))
	case cfg.Sync.Destination == "s3":
		sink = sync.NewS3UploadSink(s3Client, nil, cfg.S3.Bucket, cfg.S3.Prefix, types.StorageClass(cfg.S3.StorageClass))
	case cfg.Sync.Source == "s3":
		sink = sync.NewS3DownloadSink(s3Client, cfg.S3.Bucket)
	default:
		sink = sync.NewHTTPSink(nil)
	}
	return lister, sink, cred, nil
}

func runLinks(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("links", flag.ContinueOnError)
	cfgPath := fs.String("config", "", "YAML config file")
	folder := fs.String("folder", "", "remote folder to list (overrides links.folder)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		return err
	}
	if *folder != "" {
		cfg.Links.Folder = *folder
	}
	if err := cfg.ValidateLinks(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	log, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	defer log.Sync()

	provider, err := tokenProvider(cfg, "graph")
	if err != nil {
		return err
	}
	cred, err := provider.Token(ctx)
	if err != nil {
		return fmt.Errorf("authenticate: %w", err)
	}
	lister, err := graphLister(ctx, cfg, provider, cred, log)
	if err != nil {
		return err
	}

	links, err := sync.Links(ctx, lister, cred, cfg.Links.Folder, sync.InSet(cfg.Links.Names...))
	if err != nil {
		return err
	}
	for _, l := range links {
		fmt.Fprintf(stdout, "%s → %s\n", l.Name, l.Locator)
	}
	return nil
}

func runUpdates(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("updates", flag.ContinueOnError)
	cfgPath := fs.String("config", "", "YAML config file")
	interval := fs.Duration("interval", -1, "poll repeatedly at this interval; 0 polls once (overrides vcenter.interval)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		return err
	}
	if *interval >= 0 {
		cfg.VCenter.Interval = *interval
	}
	if err := cfg.ValidateUpdates(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	log, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	defer log.Sync()

	provider, err := tokenProvider(cfg, "vcenter")
	if err != nil {
		return err
	}
	httpClient := vcenter.NewHTTPClient(cfg.VCenter.Insecure, cfg.VCenter.Timeout)
	client := vcenter.NewClient(cfg.VCenter.Host, httpClient, log.Named("vcenter"))

	poller := vcenter.NewPoller(provider, client, cfg.VCenter.Interval, log.Named("poller"))
	return poller.Run(ctx, func(updates []vcenter.Update) {
		printUpdates(stdout, updates)
	})
}

// tokenProvider returns the provider for an identity system.
func tokenProvider(cfg *config.Config, system string) (auth.TokenProvider, error) {
	switch system {
	case "graph":
		return graph.NewTokenProvider(graph.TokenConfig{
			TenantID:     cfg.Graph.TenantID,
			ClientID:     cfg.Graph.ClientID,
			ClientSecret: cfg.Graph.ClientSecret,
			Authority:    cfg.Graph.Authority,
		}, nil), nil
	case "vcenter":
		httpClient := vcenter.NewHTTPClient(cfg.VCenter.Insecure, cfg.VCenter.Timeout)
		return vcenter.NewSessionProvider(cfg.VCenter.Host, cfg.VCenter.Username, cfg.VCenter.Password, httpClient), nil
	}
	return nil, fmt.Errorf("unknown identity system %q", system)
}

// graphLister resolves the configured drive. Requests made with an expired
// cred fetch a fresh one from tokens.
func graphLister(ctx context.Context, cfg *config.Config, tokens auth.TokenProvider, cred auth.Credential, log *zap.Logger) (*graph.Lister, error) {
	gc := graph.NewClient(cfg.Graph.BaseURL, &http.Client{Timeout: time.Minute}, log.Named("graph")).WithTokens(tokens)

	log.Info("resolving site", zap.String("site", cfg.Graph.Site))
	siteID, err := gc.SiteID(ctx, cred, cfg.Graph.Site)
	if err != nil {
		return nil, err
	}
	log.Info("resolving drive", zap.String("library", cfg.Graph.Library))
	driveID, err := gc.DriveID(ctx, cred, siteID, cfg.Graph.Library)
	if err != nil {
		return nil, err
	}
	return gc.Lister(siteID, driveID), nil
}

func newS3Client(ctx context.Context, c config.S3) (*s3.Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(c.Region))
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if c.Endpoint != "" {
			o.BaseEndpoint = aws.String(c.Endpoint)
		}
		o.UsePathStyle = c.UsePathStyle
	}), nil
}

func printOutcome(w io.Writer, req sync.Request, out sync.Outcome) {
	fmt.Fprintf(w, "folders entered: %d\n", out.FoldersEntered)
	fmt.Fprintf(w, "files fetched:   %d\n", out.FilesFetched)
	fmt.Fprintf(w, "files skipped:   %d\n", out.FilesSkipped)
	if out.Overwritten > 0 {
		fmt.Fprintf(w, "overwritten:     %d\n", out.Overwritten)
	}
	for _, f := range out.Failures {
		fmt.Fprintf(w, "failed %s\n", f)
	}
	switch {
	case out.Canceled:
		fmt.Fprintf(w, "canceled while syncing %q\n", sync.NormalizePath(req.RootPath))
	case len(out.Failures) == 0:
		fmt.Fprintf(w, "download completed for %q\n", sync.NormalizePath(req.RootPath))
	}
}

func printUpdates(w io.Writer, updates []vcenter.Update) {
	if len(updates) == 0 {
		fmt.Fprintln(w, "no pending updates")
		return
	}
	for _, u := range updates {
		reboot := ""
		if u.RebootRequired {
			reboot = ", reboot required"
		}
		fmt.Fprintf(w, "%s %s [%s/%s%s] %s\n", u.Version, u.Name, u.UpdateType, u.Severity, reboot, u.Description.DefaultMessage)
	}
}
