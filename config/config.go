// Package config loads archivesync settings from a YAML file and the
// environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sandeepkandula/archivesync/sync"
)

type Config struct {
	Log     Log     `yaml:"log"`
	Graph   Graph   `yaml:"graph"`
	S3      S3      `yaml:"s3"`
	Sync    Sync    `yaml:"sync"`
	Links   Links   `yaml:"links"`
	VCenter VCenter `yaml:"vcenter"`
	Metrics Metrics `yaml:"metrics"`
}

type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // console or json
}

// Graph identifies the app registration and the document library.
type Graph struct {
	TenantID     string `yaml:"tenantId"`
	ClientID     string `yaml:"clientId"`
	ClientSecret string `yaml:"clientSecret"`
	Authority    string `yaml:"authority"`
	BaseURL      string `yaml:"baseUrl"`
	Site         string `yaml:"site"`    // e.g. contoso.sharepoint.com:/sites/images
	Library      string `yaml:"library"` // drive name, "Documents" by default
}

type S3 struct {
	Region       string `yaml:"region"`
	Bucket       string `yaml:"bucket"`
	Prefix       string `yaml:"prefix"`
	Endpoint     string `yaml:"endpoint"`
	UsePathStyle bool   `yaml:"usePathStyle"`
	StorageClass string `yaml:"storageClass"`
}

// Sync configures the tree walk. Source is "graph" or "s3"; Destination is
// "local" or "s3".
type Sync struct {
	Source      string   `yaml:"source"`
	Destination string   `yaml:"destination"`
	RootPath    string   `yaml:"rootPath"`
	LocalDir    string   `yaml:"localDir"`
	Suffixes    []string `yaml:"suffixes"`
	Names       []string `yaml:"names"`
	Globs       []string `yaml:"globs"`
	Collision   string   `yaml:"collision"`
	MaxDepth    int      `yaml:"maxDepth"`
}

type Links struct {
	Folder string   `yaml:"folder"`
	Names  []string `yaml:"names"`
}

type VCenter struct {
	Host     string        `yaml:"host"`
	Username string        `yaml:"username"`
	Password string        `yaml:"password"`
	Insecure bool          `yaml:"insecure"`
	Interval time.Duration `yaml:"interval"`
	Timeout  time.Duration `yaml:"timeout"`
}

type Metrics struct {
	Textfile string `yaml:"textfile"`
}

// DefaultSuffix selects archives when no selection rule is configured.
const DefaultSuffix = ".zip"

// Default returns the settings used when a file or variable leaves a field
// unset.
func Default() *Config {
	return &Config{
		Log:   Log{Level: "info", Format: "console"},
		Graph: Graph{Library: "Documents"},
		S3:    S3{Region: "us-east-1", StorageClass: "GLACIER_IR"},
		Sync: Sync{
			Source:      "graph",
			Destination: "local",
			Collision:   "overwrite",
			MaxDepth:    sync.DefaultMaxDepth,
		},
		VCenter: VCenter{Timeout: 30 * time.Second},
	}
}

// Load reads path (if not empty) over the defaults, then applies
// environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	for name, dst := range map[string]*string{
		"TENANT_ID":             &c.Graph.TenantID,
		"CLIENT_ID":             &c.Graph.ClientID,
		"CLIENT_SECRET":         &c.Graph.ClientSecret,
		"VCENTER_HOST":          &c.VCenter.Host,
		"VCENTER_USERNAME":      &c.VCenter.Username,
		"VCENTER_PASSWORD":      &c.VCenter.Password,
		"ARCHIVESYNC_LOG_LEVEL": &c.Log.Level,
	} {
		if v, ok := os.LookupEnv(name); ok && v != "" {
			*dst = v
		}
	}
}

// ValidateSync checks the settings the sync command needs.
func (c *Config) ValidateSync() error {
	var errs []error
	switch c.Sync.Source {
	case "graph":
		errs = append(errs, c.validateGraph())
	case "s3":
		errs = append(errs, c.validateBucket())
	default:
		errs = append(errs, fmt.Errorf("sync.source must be graph or s3, got %q", c.Sync.Source))
	}
	switch c.Sync.Destination {
	case "local":
		if c.Sync.LocalDir == "" {
			errs = append(errs, errors.New("sync.localDir is required"))
		}
	case "s3":
		if c.Sync.Source == "s3" {
			errs = append(errs, errors.New("sync.destination s3 requires sync.source graph"))
		} else {
			errs = append(errs, c.validateBucket())
		}
	default:
		errs = append(errs, fmt.Errorf("sync.destination must be local or s3, got %q", c.Sync.Destination))
	}
	if _, err := sync.ParseCollisionPolicy(c.Sync.Collision); err != nil {
		errs = append(errs, fmt.Errorf("sync.collision: %w", err))
	}
	if _, err := c.Selection(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// ValidateLinks checks the settings the links command needs.
func (c *Config) ValidateLinks() error {
	errs := []error{c.validateGraph()}
	if len(c.Links.Names) == 0 {
		errs = append(errs, errors.New("links.names is required"))
	}
	return errors.Join(errs...)
}

// ValidateUpdates checks the settings the updates command needs.
func (c *Config) ValidateUpdates() error {
	var errs []error
	if c.VCenter.Host == "" {
		errs = append(errs, errors.New("vcenter.host is required"))
	}
	if c.VCenter.Username == "" || c.VCenter.Password == "" {
		errs = append(errs, errors.New("vcenter.username and vcenter.password are required"))
	}
	if c.VCenter.Interval < 0 {
		errs = append(errs, errors.New("vcenter.interval must not be negative"))
	}
	return errors.Join(errs...)
}

func (c *Config) validateGraph() error {
	var errs []error
	if c.Graph.TenantID == "" || c.Graph.ClientID == "" || c.Graph.ClientSecret == "" {
		errs = append(errs, errors.New("graph.tenantId, graph.clientId and graph.clientSecret are required"))
	}
	if c.Graph.Site == "" {
		errs = append(errs, errors.New("graph.site is required"))
	}
	return errors.Join(errs...)
}

func (c *Config) validateBucket() error {
	if c.S3.Bucket == "" {
		return errors.New("s3.bucket is required")
	}
	return nil
}

// Selection builds the file predicate: a file is selected when it matches any
// configured suffix, name or glob. With none configured only DefaultSuffix
// files match; use the glob "*" to select everything.
func (c *Config) Selection() (sync.Predicate, error) {
	s := c.Sync
	if len(s.Suffixes) == 0 && len(s.Names) == 0 && len(s.Globs) == 0 {
		return sync.HasSuffix(DefaultSuffix), nil
	}
	var ps []sync.Predicate
	if len(s.Suffixes) > 0 {
		ps = append(ps, sync.HasSuffix(s.Suffixes...))
	}
	if len(s.Names) > 0 {
		ps = append(ps, sync.InSet(s.Names...))
	}
	if len(s.Globs) > 0 {
		g, err := sync.MatchGlob(s.Globs...)
		if err != nil {
			return nil, fmt.Errorf("sync.globs: %w", err)
		}
		ps = append(ps, g)
	}
	return sync.Any(ps...), nil
}

// Request turns the sync section into an engine request.
func (c *Config) Request() (sync.Request, error) {
	sel, err := c.Selection()
	if err != nil {
		return sync.Request{}, err
	}
	policy, err := sync.ParseCollisionPolicy(c.Sync.Collision)
	if err != nil {
		return sync.Request{}, err
	}
	dest := c.Sync.LocalDir
	if c.Sync.Destination == "s3" {
		dest = ""
	}
	return sync.Request{
		RootPath:    c.Sync.RootPath,
		Destination: dest,
		Select:      sel,
		Collision:   policy,
		MaxDepth:    c.Sync.MaxDepth,
	}, nil
}
