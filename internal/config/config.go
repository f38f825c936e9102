package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"time"
)

// Config holds every tunable this module's processes (CrawlerWorker,
// IndexerWorker, Optimizer, Rebooster, DeltaMerge, LockService) read at
// start. Fields are unexported; access is through the With* builder and
// accessor methods below.
type Config struct {
	//===============
	// Crawl scope
	//===============
	// Seed URLs used to bootstrap the working collection on first run.
	seedURLs []url.URL

	//===============
	// Index collections
	//===============
	// Replica endpoint URLs for the working collection (frontier state plus
	// freshly crawled content pending promotion).
	workingCollectionURLs []string
	// Replica endpoint URLs for the main collection (served, boost-annotated
	// content).
	mainCollectionURLs []string

	//===============
	// Frontier / claim protocol
	//===============
	// Rows requested per claimBatch call. Spec default 20.
	claimBatchSize int
	// Cool-down window before a published URL becomes re-claimable.
	// Spec default 7 days (604800s).
	cooldownDuration time.Duration

	//===============
	// Public-suffix list
	//===============
	suffixListSourceURL string
	suffixListCacheDir  string

	//===============
	// LockService
	//===============
	lockServiceHost string
	lockServicePort int
	authKey         string

	//===============
	// Process topology
	//===============
	// Number of worker goroutines a pool spawns (--processes/-p).
	processCount int

	//===============
	// Fetch
	//===============
	timeout   time.Duration
	userAgent string

	//===============
	// Reconnect backoff (IndexClient replicas, LockService) — never crawl
	// politeness, which is scoped to the claim cool-down only.
	//===============
	baseDelay              time.Duration
	jitter                 time.Duration
	randomSeed             int64
	maxAttempt             int
	backoffInitialDuration time.Duration
	backoffMultiplier      float64
	backoffMaxDuration     time.Duration

	//===============
	// Observability
	//===============
	// Whether RecordError appends attribute traces to each log line.
	verboseTrace bool
	// Whether the program simulates its actions without performing any
	// side-effecting index writes.
	dryRun bool

	//===============
	// Optional image sink
	//===============
	imageSinkEnabled bool
	imageSinkDir     string

	//===============
	// IndexerWorker cached-page source
	//===============
	// cachedPageSourceDSN is the Postgres connection string IndexerWorker
	// dials to read compressed page bodies (the original's GET_CACHED_PAGE
	// stored-procedure call). Empty for every other mode.
	cachedPageSourceDSN string
}

type configDTO struct {
	SeedURLs              []url.URL `json:"seedUrls"`
	WorkingCollectionURLs []string  `json:"workingCollectionUrls,omitempty"`
	MainCollectionURLs    []string  `json:"mainCollectionUrls,omitempty"`

	ClaimBatchSize   int           `json:"claimBatchSize,omitempty"`
	CooldownDuration time.Duration `json:"cooldownDuration,omitempty"`

	SuffixListSourceURL string `json:"suffixListSourceUrl,omitempty"`
	SuffixListCacheDir  string `json:"suffixListCacheDir,omitempty"`

	LockServiceHost string `json:"lockServiceHost,omitempty"`
	LockServicePort int    `json:"lockServicePort,omitempty"`
	AuthKey         string `json:"authKey,omitempty"`

	ProcessCount int `json:"processCount,omitempty"`

	Timeout   time.Duration `json:"timeout,omitempty"`
	UserAgent string        `json:"userAgent,omitempty"`

	BaseDelay              time.Duration `json:"baseDelay,omitempty"`
	Jitter                 time.Duration `json:"jitter,omitempty"`
	RandomSeed             int64         `json:"randomSeed,omitempty"`
	MaxAttempt             int           `json:"maxAttempt,omitempty"`
	BackoffInitialDuration time.Duration `json:"backoffInitialDuration,omitempty"`
	BackoffMultiplier      float64       `json:"backoffMultiplier,omitempty"`
	BackoffMaxDuration     time.Duration `json:"backoffMaxDuration,omitempty"`

	VerboseTrace bool `json:"verboseTrace,omitempty"`
	DryRun       bool `json:"dryRun,omitempty"`

	ImageSinkEnabled bool   `json:"imageSinkEnabled,omitempty"`
	ImageSinkDir     string `json:"imageSinkDir,omitempty"`

	CachedPageSourceDSN string `json:"cachedPageSourceDsn,omitempty"`
}

func newConfigFromDTO(dto configDTO) (Config, error) {
	cfg, err := WithDefault(dto.SeedURLs).Build()
	if err != nil {
		return Config{}, err
	}

	if len(dto.WorkingCollectionURLs) > 0 {
		cfg.workingCollectionURLs = dto.WorkingCollectionURLs
	}
	if len(dto.MainCollectionURLs) > 0 {
		cfg.mainCollectionURLs = dto.MainCollectionURLs
	}
	if dto.ClaimBatchSize != 0 {
		cfg.claimBatchSize = dto.ClaimBatchSize
	}
	if dto.CooldownDuration != 0 {
		cfg.cooldownDuration = dto.CooldownDuration
	}
	if dto.SuffixListSourceURL != "" {
		cfg.suffixListSourceURL = dto.SuffixListSourceURL
	}
	if dto.SuffixListCacheDir != "" {
		cfg.suffixListCacheDir = dto.SuffixListCacheDir
	}
	if dto.LockServiceHost != "" {
		cfg.lockServiceHost = dto.LockServiceHost
	}
	if dto.LockServicePort != 0 {
		cfg.lockServicePort = dto.LockServicePort
	}
	if dto.AuthKey != "" {
		cfg.authKey = dto.AuthKey
	}
	if dto.ProcessCount != 0 {
		cfg.processCount = dto.ProcessCount
	}
	if dto.Timeout != 0 {
		cfg.timeout = dto.Timeout
	}
	if dto.UserAgent != "" {
		cfg.userAgent = dto.UserAgent
	}
	if dto.BaseDelay != 0 {
		cfg.baseDelay = dto.BaseDelay
	}
	if dto.Jitter != 0 {
		cfg.jitter = dto.Jitter
	}
	if dto.RandomSeed != 0 {
		cfg.randomSeed = dto.RandomSeed
	}
	if dto.MaxAttempt != 0 {
		cfg.maxAttempt = dto.MaxAttempt
	}
	if dto.BackoffInitialDuration != 0 {
		cfg.backoffInitialDuration = dto.BackoffInitialDuration
	}
	if dto.BackoffMultiplier != 0 {
		cfg.backoffMultiplier = dto.BackoffMultiplier
	}
	if dto.BackoffMaxDuration != 0 {
		cfg.backoffMaxDuration = dto.BackoffMaxDuration
	}
	cfg.verboseTrace = dto.VerboseTrace
	cfg.dryRun = dto.DryRun
	cfg.imageSinkEnabled = dto.ImageSinkEnabled
	if dto.ImageSinkDir != "" {
		cfg.imageSinkDir = dto.ImageSinkDir
	}
	if dto.CachedPageSourceDSN != "" {
		cfg.cachedPageSourceDSN = dto.CachedPageSourceDSN
	}

	return cfg, nil
}

func WithConfigFile(path string) (Config, error) {
	_, err := os.Stat(path)
	if err != nil {
		return Config{}, fmt.Errorf("%w: %s", ErrFileDoesNotExist, err.Error())
	}
	configContent, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("%w: %s", ErrReadConfigFail, err.Error())
	}
	cfgDTO := configDTO{}

	err = json.Unmarshal(configContent, &cfgDTO)
	if err != nil {
		return Config{}, fmt.Errorf("%w: %s", ErrConfigParsingFail, err.Error())
	}

	cfg, err := newConfigFromDTO(cfgDTO)
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// WithDefault creates a new Config with the provided seed URLs and default
// values for everything else. seedUrls may be empty for non-crawler
// processes (optimizer, rebooster, deltamerge) that never bootstrap a
// frontier.
func WithDefault(seedUrls []url.URL) *Config {
	defaultConfig := Config{
		seedURLs: seedUrls,

		workingCollectionURLs: []string{"http://localhost:8983/solr/working"},
		mainCollectionURLs:    []string{"http://localhost:8983/solr/main"},

		claimBatchSize:   20,
		cooldownDuration: 7 * 24 * time.Hour,

		suffixListSourceURL: "https://publicsuffix.org/list/effective_tld_names.dat",
		suffixListCacheDir:  "data/suffixlist",

		lockServiceHost: "127.0.0.1",
		lockServicePort: 4643,
		authKey:         "a",

		processCount: 10,

		timeout:   10 * time.Second,
		userAgent: "OS-SEARCH-ENGINE-CRAWLER",

		baseDelay:              time.Second,
		jitter:                 500 * time.Millisecond,
		randomSeed:             time.Now().UnixNano(),
		maxAttempt:             5,
		backoffInitialDuration: 1 * time.Second,
		backoffMultiplier:      2.0,
		backoffMaxDuration:     30 * time.Second,

		verboseTrace: false,
		dryRun:       false,

		imageSinkEnabled: false,
		imageSinkDir:     "data/assets",

		cachedPageSourceDSN: "",
	}
	return &defaultConfig
}

func (c *Config) WithSeedUrls(urls []url.URL) *Config {
	c.seedURLs = urls
	return c
}

func (c *Config) WithWorkingCollectionURLs(urls []string) *Config {
	c.workingCollectionURLs = urls
	return c
}

func (c *Config) WithMainCollectionURLs(urls []string) *Config {
	c.mainCollectionURLs = urls
	return c
}

func (c *Config) WithClaimBatchSize(size int) *Config {
	c.claimBatchSize = size
	return c
}

func (c *Config) WithCooldownDuration(d time.Duration) *Config {
	c.cooldownDuration = d
	return c
}

func (c *Config) WithSuffixListSourceURL(sourceURL string) *Config {
	c.suffixListSourceURL = sourceURL
	return c
}

func (c *Config) WithSuffixListCacheDir(dir string) *Config {
	c.suffixListCacheDir = dir
	return c
}

func (c *Config) WithLockServiceHost(host string) *Config {
	c.lockServiceHost = host
	return c
}

func (c *Config) WithLockServicePort(port int) *Config {
	c.lockServicePort = port
	return c
}

func (c *Config) WithAuthKey(key string) *Config {
	c.authKey = key
	return c
}

func (c *Config) WithProcessCount(count int) *Config {
	c.processCount = count
	return c
}

func (c *Config) WithTimeout(timeout time.Duration) *Config {
	c.timeout = timeout
	return c
}

func (c *Config) WithUserAgent(agent string) *Config {
	c.userAgent = agent
	return c
}

func (c *Config) WithBaseDelay(delay time.Duration) *Config {
	c.baseDelay = delay
	return c
}

func (c *Config) WithJitter(jitter time.Duration) *Config {
	c.jitter = jitter
	return c
}

func (c *Config) WithRandomSeed(seed int64) *Config {
	c.randomSeed = seed
	return c
}

func (c *Config) WithMaxAttempt(attempts int) *Config {
	c.maxAttempt = attempts
	return c
}

func (c *Config) WithBackoffInitialDuration(duration time.Duration) *Config {
	c.backoffInitialDuration = duration
	return c
}

func (c *Config) WithBackoffMultiplier(multiplier float64) *Config {
	c.backoffMultiplier = multiplier
	return c
}

func (c *Config) WithBackoffMaxDuration(duration time.Duration) *Config {
	c.backoffMaxDuration = duration
	return c
}

func (c *Config) WithVerboseTrace(verbose bool) *Config {
	c.verboseTrace = verbose
	return c
}

func (c *Config) WithDryRun(dryRun bool) *Config {
	c.dryRun = dryRun
	return c
}

func (c *Config) WithImageSinkEnabled(enabled bool) *Config {
	c.imageSinkEnabled = enabled
	return c
}

func (c *Config) WithImageSinkDir(dir string) *Config {
	c.imageSinkDir = dir
	return c
}

func (c *Config) WithCachedPageSourceDSN(dsn string) *Config {
	c.cachedPageSourceDSN = dsn
	return c
}

func (c *Config) Build() (Config, error) {
	if c.processCount < 1 {
		return Config{}, fmt.Errorf("%w: processCount must be at least 1", ErrInvalidConfig)
	}
	if len(c.workingCollectionURLs) == 0 {
		return Config{}, fmt.Errorf("%w: workingCollectionUrls cannot be empty", ErrInvalidConfig)
	}
	if len(c.mainCollectionURLs) == 0 {
		return Config{}, fmt.Errorf("%w: mainCollectionUrls cannot be empty", ErrInvalidConfig)
	}
	if c.authKey == "" {
		return Config{}, fmt.Errorf("%w: authKey cannot be empty", ErrInvalidConfig)
	}

	return *c, nil
}

func (c Config) SeedURLs() []url.URL {
	urls := make([]url.URL, len(c.seedURLs))
	copy(urls, c.seedURLs)
	return urls
}

func (c Config) WorkingCollectionURLs() []string {
	urls := make([]string, len(c.workingCollectionURLs))
	copy(urls, c.workingCollectionURLs)
	return urls
}

func (c Config) MainCollectionURLs() []string {
	urls := make([]string, len(c.mainCollectionURLs))
	copy(urls, c.mainCollectionURLs)
	return urls
}

func (c Config) ClaimBatchSize() int {
	return c.claimBatchSize
}

func (c Config) CooldownDuration() time.Duration {
	return c.cooldownDuration
}

func (c Config) SuffixListSourceURL() string {
	return c.suffixListSourceURL
}

func (c Config) SuffixListCacheDir() string {
	return c.suffixListCacheDir
}

func (c Config) LockServiceHost() string {
	return c.lockServiceHost
}

func (c Config) LockServicePort() int {
	return c.lockServicePort
}

func (c Config) AuthKey() string {
	return c.authKey
}

func (c Config) ProcessCount() int {
	return c.processCount
}

func (c Config) Timeout() time.Duration {
	return c.timeout
}

func (c Config) UserAgent() string {
	return c.userAgent
}

func (c Config) BaseDelay() time.Duration {
	return c.baseDelay
}

func (c Config) Jitter() time.Duration {
	return c.jitter
}

func (c Config) RandomSeed() int64 {
	return c.randomSeed
}

func (c Config) MaxAttempt() int {
	return c.maxAttempt
}

func (c Config) BackoffInitialDuration() time.Duration {
	return c.backoffInitialDuration
}

func (c Config) BackoffMultiplier() float64 {
	return c.backoffMultiplier
}

func (c Config) BackoffMaxDuration() time.Duration {
	return c.backoffMaxDuration
}

func (c Config) VerboseTrace() bool {
	return c.verboseTrace
}

func (c Config) DryRun() bool {
	return c.dryRun
}

func (c Config) ImageSinkEnabled() bool {
	return c.imageSinkEnabled
}

func (c Config) ImageSinkDir() string {
	return c.imageSinkDir
}

func (c Config) CachedPageSourceDSN() string {
	return c.cachedPageSourceDSN
}
