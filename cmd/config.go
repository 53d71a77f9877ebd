package main

import (
	"fmt"
	"os"
	"time"

	"github.com/AdguardTeam/blockengine/contentblocking"
	"github.com/AdguardTeam/blockengine/filterlist"
	"github.com/AdguardTeam/blockengine/patterncache"
	"github.com/AdguardTeam/blockengine/rules"
	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/validate"
	"github.com/c2h5oh/datasize"
	"github.com/caarlos0/env/v7"
	"gopkg.in/yaml.v2"
)

// configuration is the on-disk configuration of the harness.
type configuration struct {
	// ListenAddr is the address of the HTTP API.
	ListenAddr string `yaml:"listen_addr"`

	// Resources is the path to the resources JSON file.  It is optional.
	Resources string `yaml:"resources"`

	// Filters are the filter lists to load.
	Filters []*filterConfig `yaml:"filters"`

	// EnabledTags are the tags enabled at the start.
	EnabledTags []string `yaml:"enabled_tags"`

	// DiscardPolicy is the policy of evicting unused compiled patterns.
	DiscardPolicy *discardPolicyConfig `yaml:"discard_policy"`

	// MaxListSize is the maximum size of a single filter list file.
	MaxListSize datasize.ByteSize `yaml:"max_list_size"`

	// MaxContentBlockingRules is the maximum number of rules in a converted
	// content-blocker list.
	MaxContentBlockingRules int `yaml:"max_content_blocking_rules"`
}

// filterConfig is the configuration of a single filter list.
type filterConfig struct {
	// Path is the path to the filter list file.
	Path string `yaml:"path"`

	// RuleTypes is the kind of rules to load: "all", "network", or "cosmetic".
	RuleTypes string `yaml:"rule_types"`

	// Permission is the permission mask of the rules of the list.
	Permission uint8 `yaml:"permission"`
}

// discardPolicyConfig is the configuration of the pattern cache eviction.
type discardPolicyConfig struct {
	// CleanupInterval is the interval between the cleanups.  Zero disables
	// the background cleanup.
	CleanupInterval time.Duration `yaml:"cleanup_interval"`

	// DiscardUnusedAfter is the time after which an unused pattern is
	// discarded.
	DiscardUnusedAfter time.Duration `yaml:"discard_unused_after"`
}

// environment are the settings from the environment that override the
// configuration file.
type environment struct {
	ListenAddr string `env:"BLOCKENGINE_LISTEN_ADDR"`
	LogVerbose bool   `env:"VERBOSE" envDefault:"false"`
}

// defaultConfiguration returns the configuration used when no file is given.
func defaultConfiguration() (c *configuration) {
	return &configuration{
		ListenAddr: "127.0.0.1:8080",
		DiscardPolicy: &discardPolicyConfig{
			CleanupInterval:    1 * time.Minute,
			DiscardUnusedAfter: 10 * time.Minute,
		},
		MaxListSize:             32 * datasize.MB,
		MaxContentBlockingRules: contentblocking.DefaultMaxRules,
	}
}

// readConfiguration reads the configuration from the YAML file at path.  If
// path is empty, the default configuration is returned.
func readConfiguration(path string) (c *configuration, err error) {
	c = defaultConfiguration()
	if path == "" {
		return c, nil
	}

	defer func() { err = errors.Annotate(err, "reading config %q: %w", path) }()

	// #nosec G304 -- Trust the path to the configuration file given by the
	// operator.
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	err = yaml.Unmarshal(data, c)
	if err != nil {
		return nil, err
	}

	return c, nil
}

// applyEnvironment overrides the parts of c set in the environment.  It
// returns true if verbose logging is requested.
func (c *configuration) applyEnvironment() (verbose bool, err error) {
	envs := &environment{}
	err = env.Parse(envs)
	if err != nil {
		return false, fmt.Errorf("parsing environment: %w", err)
	}

	if envs.ListenAddr != "" {
		c.ListenAddr = envs.ListenAddr
	}

	return envs.LogVerbose, nil
}

// validate returns an error if c is invalid.
func (c *configuration) validate() (err error) {
	errs := []error{
		validate.NotEmpty("listen_addr", c.ListenAddr),
		validate.Positive("max_list_size", c.MaxListSize),
		validate.Positive("max_content_blocking_rules", c.MaxContentBlockingRules),
	}

	if c.DiscardPolicy == nil {
		errs = append(errs, fmt.Errorf("discard_policy: %w", errors.ErrNoValue))
	}

	for i, f := range c.Filters {
		errs = append(errs, f.validate(i))
	}

	return errors.Join(errs...)
}

// validate returns an error if f is invalid.  i is the index of f.
func (f *filterConfig) validate(i int) (err error) {
	if f == nil {
		return fmt.Errorf("filters: at index %d: %w", i, errors.ErrNoValue)
	}

	_, err = f.ruleTypes()
	if err != nil {
		return fmt.Errorf("filters: at index %d: %w", i, err)
	}

	return validate.NotEmpty(fmt.Sprintf("filters[%d].path", i), f.Path)
}

// ruleTypes converts the rule_types value.
func (f *filterConfig) ruleTypes() (t filterlist.RuleTypes, err error) {
	switch f.RuleTypes {
	case "", "all":
		return filterlist.RuleTypesAll, nil
	case "network":
		return filterlist.RuleTypesNetworkOnly, nil
	case "cosmetic":
		return filterlist.RuleTypesCosmeticOnly, nil
	default:
		return 0, fmt.Errorf("rule_types: %w: %q", errors.ErrBadEnumValue, f.RuleTypes)
	}
}

// parseOptions returns the options for loading the list.
func (f *filterConfig) parseOptions() (opts *filterlist.ParseOptions) {
	t, _ := f.ruleTypes()

	return &filterlist.ParseOptions{
		RuleTypes:  t,
		Permission: rules.PermissionMask(f.Permission),
	}
}

// toInternal converts the discard policy configuration.
func (c *discardPolicyConfig) toInternal() (p patterncache.DiscardPolicy) {
	return patterncache.DiscardPolicy{
		CleanupInterval:    c.CleanupInterval,
		DiscardUnusedAfter: c.DiscardUnusedAfter,
	}
}
