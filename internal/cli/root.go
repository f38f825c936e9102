// Package cmd implements the single-executable, mutually-exclusive-mode CLI
// surface: one process, one flag selects which role
// it plays (crawler worker pool, indexer worker, optimizer, rebooster,
// delta-merge, or the legacy scanner/exploit stubs), and --processes,
// --host, --port, --authkey configure it.
package cmd

import (
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/edmiester777/search-engine/internal/config"
	"github.com/spf13/cobra"
)

// Mode names the role this process invocation plays. Exactly one of the
// mode flags below must be set.
type Mode string

const (
	ModeNone               Mode = ""
	ModeWebCrawler         Mode = "webcrawler"
	ModeIndexer            Mode = "indexer"
	ModeScanner            Mode = "scanner"
	ModeExploit            Mode = "exploit"
	ModeOptimizer          Mode = "optimizer"
	ModeRebooster          Mode = "rebooster"
	ModeDeltaMerge         Mode = "deltamerge"
	ModeWebCrawlerManager  Mode = "webcrawlermanager"
)

var (
	cfgFile string

	flagWebCrawler        bool
	flagIndexer           bool
	flagScanner           bool
	flagExploit           bool
	flagOptimizer         bool
	flagRebooster         bool
	flagDeltaMerge        bool
	flagWebCrawlerManager bool

	seedURLs              []string
	workingCollectionURLs []string
	mainCollectionURLs    []string

	processes int
	host      string
	port      int
	authkey   string

	claimBatchSize   int
	cooldownDuration time.Duration

	userAgent    string
	timeout      time.Duration
	dryRun       bool
	verboseTrace bool

	imageSinkEnabled bool
	imageSinkDir     string

	cachedPageSourceDSN string
)

// parseSeedURLs converts a string slice of URLs to []url.URL. Unlike the
// crawler-scoped teacher command, an empty slice is valid here: only
// ModeWebCrawler consults seed URLs.
func parseSeedURLs(urlStrings []string) ([]url.URL, error) {
	var urls []url.URL
	for _, urlStr := range urlStrings {
		parsedURL, err := url.Parse(urlStr)
		if err != nil {
			return nil, fmt.Errorf("error parsing seed URL %s: %w", urlStr, err)
		}
		urls = append(urls, *parsedURL)
	}
	return urls, nil
}

// SelectedMode inspects the mode flags and returns the single selected
// Mode, or an error if zero or more than one were set.
func SelectedMode() (Mode, error) {
	selected := make([]Mode, 0, 8)
	if flagWebCrawler {
		selected = append(selected, ModeWebCrawler)
	}
	if flagIndexer {
		selected = append(selected, ModeIndexer)
	}
	if flagScanner {
		selected = append(selected, ModeScanner)
	}
	if flagExploit {
		selected = append(selected, ModeExploit)
	}
	if flagOptimizer {
		selected = append(selected, ModeOptimizer)
	}
	if flagRebooster {
		selected = append(selected, ModeRebooster)
	}
	if flagDeltaMerge {
		selected = append(selected, ModeDeltaMerge)
	}
	if flagWebCrawlerManager {
		selected = append(selected, ModeWebCrawlerManager)
	}

	if len(selected) == 0 {
		return ModeNone, fmt.Errorf("exactly one mode flag is required (--webcrawler, --indexer, --scanner, --exploit, --optimizer, --rebooster, --deltamerge, --webcrawlermanager)")
	}
	if len(selected) > 1 {
		return ModeNone, fmt.Errorf("mode flags are mutually exclusive, got %v", selected)
	}
	return selected[0], nil
}

var rootCmd = &cobra.Command{
	Use:   "search-engine",
	Short: "Crawler, indexer, and index-maintenance processes for the search backend.",
	Long: `search-engine is a single executable that plays one of several roles
per invocation, selected by a mutually-exclusive mode flag: a web-crawler
worker pool that claims and fetches frontier URLs, an indexer worker that
re-tokenizes cached page bodies, an optimizer that periodically commits and
optimizes the main collection, a rebooster that rewrites boost weights, and
a delta-merge that promotes working content into main.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		mode, err := SelectedMode()
		if err != nil {
			return err
		}

		cfg, err := InitConfigWithError()
		if err != nil {
			return err
		}

		return Dispatch(mode, cfg)
	},
}

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config-file", "", "config file path (e.g., /home/myuser/config.json)")

	rootCmd.PersistentFlags().BoolVarP(&flagWebCrawler, "webcrawler", "w", false, "run as a web-crawler worker pool")
	rootCmd.PersistentFlags().BoolVarP(&flagIndexer, "indexer", "i", false, "run as an indexer worker")
	rootCmd.PersistentFlags().BoolVarP(&flagScanner, "scanner", "s", false, "run as the legacy scanner (stub)")
	rootCmd.PersistentFlags().BoolVarP(&flagExploit, "exploit", "e", false, "run as the legacy exploit probe (stub)")
	rootCmd.PersistentFlags().BoolVarP(&flagOptimizer, "optimizer", "o", false, "run the main-collection optimizer loop")
	// pflag shorthands are restricted to a single rune, so the two-letter
	// short forms (-rb, -dm, -wm) one might expect are exposed as long
	// flags only; --rebooster/--deltamerge/--webcrawlermanager are the
	// only spellings accepted for these three modes.
	rootCmd.PersistentFlags().BoolVar(&flagRebooster, "rebooster", false, "run a one-shot boost-rewrite pass over the main collection")
	rootCmd.PersistentFlags().BoolVar(&flagDeltaMerge, "deltamerge", false, "run a one-shot delta-merge from working to main")
	rootCmd.PersistentFlags().BoolVar(&flagWebCrawlerManager, "webcrawlermanager", false, "run as the web-crawler manager/supervisor")

	rootCmd.PersistentFlags().StringArrayVar(&seedURLs, "seed-url", []string{}, "one or more starting URLs to bootstrap the working collection (can be repeated)")
	rootCmd.PersistentFlags().StringArrayVar(&workingCollectionURLs, "working-collection-url", []string{}, "replica endpoint URL for the working collection (can be repeated)")
	rootCmd.PersistentFlags().StringArrayVar(&mainCollectionURLs, "main-collection-url", []string{}, "replica endpoint URL for the main collection (can be repeated)")

	rootCmd.PersistentFlags().IntVarP(&processes, "processes", "p", 10, "number of worker goroutines this process spawns")
	rootCmd.PersistentFlags().StringVar(&host, "host", "127.0.0.1", "LockService bind/dial host")
	rootCmd.PersistentFlags().IntVar(&port, "port", 4643, "LockService bind/dial port")
	rootCmd.PersistentFlags().StringVar(&authkey, "authkey", "a", "shared LockService authentication key")

	rootCmd.PersistentFlags().IntVar(&claimBatchSize, "claim-batch-size", 0, "rows requested per claimBatch call (0 uses the default)")
	rootCmd.PersistentFlags().DurationVar(&cooldownDuration, "cooldown", 0, "claim cool-down window (0 uses the default of 7 days)")

	rootCmd.PersistentFlags().StringVar(&userAgent, "user-agent", "", "user agent string for crawler HTTP requests")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 0, "timeout for HTTP requests")
	rootCmd.PersistentFlags().BoolVar(&dryRun, "dry-run", false, "simulate index writes without performing them")
	rootCmd.PersistentFlags().BoolVar(&verboseTrace, "verbose-trace", false, "append attribute traces to error log lines")

	rootCmd.PersistentFlags().BoolVar(&imageSinkEnabled, "image-sink", false, "enable the optional image-download sink")
	rootCmd.PersistentFlags().StringVar(&imageSinkDir, "image-sink-dir", "", "directory the image sink writes downloaded assets to")

	rootCmd.PersistentFlags().StringVar(&cachedPageSourceDSN, "cached-page-source-dsn", "", "Postgres DSN IndexerWorker reads compressed page bodies from")
}

// InitConfig reads in config file and CLI flags, exiting the process on
// error.
func InitConfig() config.Config {
	cfg, err := InitConfigWithError()
	if err != nil {
		fmt.Printf("Error: %s\n", err)
		os.Exit(1)
	}
	return cfg
}

// InitConfigWithError reads in config file and CLI flags, returning any
// errors rather than exiting, so it can be exercised from tests.
func InitConfigWithError() (config.Config, error) {
	parsedSeeds, err := parseSeedURLs(seedURLs)
	if err != nil {
		return config.Config{}, err
	}

	if cfgFile != "" {
		cfg, err := config.WithConfigFile(cfgFile)
		if err != nil {
			return cfg, fmt.Errorf("error initializing config from file: %w", err)
		}
		return cfg, nil
	}

	configBuilder := config.WithDefault(parsedSeeds)

	if len(workingCollectionURLs) > 0 {
		configBuilder = configBuilder.WithWorkingCollectionURLs(workingCollectionURLs)
	}
	if len(mainCollectionURLs) > 0 {
		configBuilder = configBuilder.WithMainCollectionURLs(mainCollectionURLs)
	}
	if claimBatchSize > 0 {
		configBuilder = configBuilder.WithClaimBatchSize(claimBatchSize)
	}
	if cooldownDuration > 0 {
		configBuilder = configBuilder.WithCooldownDuration(cooldownDuration)
	}
	if processes > 0 {
		configBuilder = configBuilder.WithProcessCount(processes)
	}
	if host != "" {
		configBuilder = configBuilder.WithLockServiceHost(host)
	}
	if port > 0 {
		configBuilder = configBuilder.WithLockServicePort(port)
	}
	if authkey != "" {
		configBuilder = configBuilder.WithAuthKey(authkey)
	}
	if userAgent != "" {
		configBuilder = configBuilder.WithUserAgent(userAgent)
	}
	if timeout > 0 {
		configBuilder = configBuilder.WithTimeout(timeout)
	}
	if dryRun {
		configBuilder = configBuilder.WithDryRun(dryRun)
	}
	if verboseTrace {
		configBuilder = configBuilder.WithVerboseTrace(verboseTrace)
	}
	if imageSinkEnabled {
		configBuilder = configBuilder.WithImageSinkEnabled(imageSinkEnabled)
	}
	if imageSinkDir != "" {
		configBuilder = configBuilder.WithImageSinkDir(imageSinkDir)
	}
	if cachedPageSourceDSN != "" {
		configBuilder = configBuilder.WithCachedPageSourceDSN(cachedPageSourceDSN)
	}

	cfg, err := configBuilder.Build()
	if err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// ResetFlags restores every package-level flag variable to its zero value.
// Tests call this between cases since cobra flags are process-global.
func ResetFlags() {
	cfgFile = ""
	flagWebCrawler = false
	flagIndexer = false
	flagScanner = false
	flagExploit = false
	flagOptimizer = false
	flagRebooster = false
	flagDeltaMerge = false
	flagWebCrawlerManager = false
	seedURLs = []string{}
	workingCollectionURLs = []string{}
	mainCollectionURLs = []string{}
	processes = 0
	host = ""
	port = 0
	authkey = ""
	claimBatchSize = 0
	cooldownDuration = 0
	userAgent = ""
	timeout = 0
	dryRun = false
	verboseTrace = false
	imageSinkEnabled = false
	imageSinkDir = ""
	cachedPageSourceDSN = ""
}

// Test helper functions to set flag values from tests.
func SetConfigFileForTest(path string)        { cfgFile = path }
func SetSeedURLsForTest(urls []string)        { seedURLs = urls }
func SetModeForTest(mode Mode) {
	flagWebCrawler = mode == ModeWebCrawler
	flagIndexer = mode == ModeIndexer
	flagScanner = mode == ModeScanner
	flagExploit = mode == ModeExploit
	flagOptimizer = mode == ModeOptimizer
	flagRebooster = mode == ModeRebooster
	flagDeltaMerge = mode == ModeDeltaMerge
	flagWebCrawlerManager = mode == ModeWebCrawlerManager
}
func SetProcessesForTest(n int)               { processes = n }
func SetHostForTest(h string)                 { host = h }
func SetPortForTest(p int)                    { port = p }
func SetAuthkeyForTest(k string)              { authkey = k }
func SetUserAgentForTest(agent string)        { userAgent = agent }
func SetTimeoutForTest(t time.Duration)       { timeout = t }
func SetDryRunForTest(dry bool)               { dryRun = dry }
