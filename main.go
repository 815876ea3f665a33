// locasset is an editor for localized content assets with AI translation support.
package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/minios-linux/locasset/asset"
	"github.com/minios-linux/locasset/config"
	"github.com/minios-linux/locasset/i18n"
	"github.com/minios-linux/locasset/langmeta"
	"github.com/minios-linux/locasset/lockfile"
	"github.com/minios-linux/locasset/session"
	"github.com/minios-linux/locasset/settings"
	"github.com/minios-linux/locasset/store"
	"github.com/minios-linux/locasset/store/sqlitestore"
	"github.com/minios-linux/locasset/store/yamlstore"
	"github.com/minios-linux/locasset/translate"
	"github.com/minios-linux/locasset/tree"
)

// Version information (set via -ldflags during build)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func logInfo(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "%s %s\n", color.BlueString("[INFO]"), fmt.Sprintf(format, args...))
}

func logSuccess(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "%s %s\n", color.GreenString("[OK]"), fmt.Sprintf(format, args...))
}

func logWarning(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "%s %s\n", color.YellowString("[WARN]"), fmt.Sprintf(format, args...))
}

func logError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "%s %s\n", color.RedString("[ERROR]"), fmt.Sprintf(format, args...))
}

// ---------------------------------------------------------------------------
// Global flags
// ---------------------------------------------------------------------------

var (
	rootDir string
	verbose bool
)

// ---------------------------------------------------------------------------
// Root command
// ---------------------------------------------------------------------------

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "locasset",
		Short: "Editor for localized content assets with AI translation",
		Long: `locasset is an editor for localized content assets.

Each asset holds one entry per language; the first entry is the default
locale that translations are made from. Assets are stored as YAML files
or in a SQLite database, configured by .locasset.yaml in the project root.

Commands:
  list           Show assets and their locales (filterable)
  create         Create a new asset
  add-locale     Add a locale to an asset
  remove-locale  Remove a locale from an asset
  promote        Make a locale the asset's default
  rename         Rename an asset
  set            Set the value of one locale
  translate      Fill empty locales by machine translation
  status         Show translation coverage
  auth           Manage provider API keys`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			i18n.Init("")
		},
	}

	root.PersistentFlags().StringVar(&rootDir, "root", ".", "Project root directory")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	root.AddCommand(
		newListCmd(),
		newCreateCmd(),
		newAddLocaleCmd(),
		newRemoveLocaleCmd(),
		newPromoteCmd(),
		newRenameCmd(),
		newSetCmd(),
		newTranslateCmd(),
		newStatusCmd(),
		newAuthCmd(),
		newVersionCmd(),
	)

	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		logError("%v", err)
		os.Exit(1)
	}
}

// ---------------------------------------------------------------------------
// Environment
// ---------------------------------------------------------------------------

func newLogger() *zap.Logger {
	if !verbose {
		return zap.NewNop()
	}
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	cfg.OutputPaths = []string{"stderr"}
	log, err := cfg.Build()
	if err != nil {
		logWarning("Cannot build logger: %v", err)
		return zap.NewNop()
	}
	return log
}

func openStore(cfg *config.ProjectFile, log *zap.Logger) (store.Store, error) {
	switch cfg.Store.Backend {
	case config.BackendSQLite:
		return sqlitestore.Open(cfg.AbsStorePath(), log.Named("sqlitestore"))
	default:
		return yamlstore.Open(cfg.AbsStoreDir(), log.Named("yamlstore"))
	}
}

// env is what every command works with.
type env struct {
	cfg  *config.ProjectFile
	log  *zap.Logger
	lock *lockfile.LockFile
	s    *session.Session
}

func openEnv(ctx context.Context, opts session.Options) (*env, error) {
	cfg, err := config.Load(rootDir)
	if err != nil {
		return nil, err
	}
	log := newLogger()
	lock, err := lockfile.Load(cfg.Root())
	if err != nil {
		return nil, err
	}
	st, err := openStore(cfg, log)
	if err != nil {
		return nil, err
	}
	opts.Lock = lock
	opts.Logger = log
	s, err := session.New(st, opts)
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	if err := s.Load(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return &env{cfg: cfg, log: log, lock: lock, s: s}, nil
}

func (e *env) close() {
	if err := e.s.Close(); err != nil {
		logWarning("Closing store: %v", err)
	}
	_ = e.log.Sync()
}

// withEnv runs fn inside an opened environment and flushes afterwards.
func withEnv(cmd *cobra.Command, fn func(ctx context.Context, e *env) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	e, err := openEnv(ctx, session.Options{})
	if err != nil {
		return err
	}
	defer e.close()
	if err := fn(ctx, e); err != nil {
		return err
	}
	return e.s.Flush(ctx)
}

// canonicalLang validates a language given on the command line.
func canonicalLang(lang string) (string, error) {
	m, ok := langmeta.Lookup(lang)
	if !ok {
		return "", errors.Wrapf(asset.ErrInvariantViolation, "unknown language %q", lang)
	}
	return m.Code, nil
}

// findItem resolves a language argument to one of a's items.
func findItem(a *asset.Asset, lang string) (*asset.LocaleItem, error) {
	if it, ok := a.Items.ByLanguage(lang); ok {
		return it, nil
	}
	if code, err := canonicalLang(lang); err == nil {
		if it, ok := a.Items.ByLanguage(code); ok {
			return it, nil
		}
	}
	return nil, errors.Wrapf(asset.ErrNotFound, "asset %q has no %s locale", a.Name, lang)
}

// ---------------------------------------------------------------------------
// version
// ---------------------------------------------------------------------------

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "locasset version %s\n", version)
			fmt.Fprintf(w, "  commit:    %s\n", commit)
			fmt.Fprintf(w, "  built:     %s\n", date)
		},
	}
}

// ---------------------------------------------------------------------------
// list
// ---------------------------------------------------------------------------

func newListCmd() *cobra.Command {
	var search string
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "Show assets and their locales",
		Long: `Show the asset → locale hierarchy.

--search filters case-insensitively by asset name or by language (code,
English or native name). Assets matching by name show all locales; assets
matching only by language show just the matching locales.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd, func(ctx context.Context, e *env) error {
				if err := e.s.SetSearch(ctx, search); err != nil {
					return err
				}
				nodes := e.s.Projection()
				if len(nodes) == 0 {
					logInfo("%s", i18n.T("No assets found"))
					return nil
				}
				renderTree(cmd.OutOrStdout(), nodes)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&search, "search", "s", "", "Filter by asset name or language")
	return cmd
}

func renderTree(w io.Writer, nodes []*tree.AssetNode) {
	for _, n := range nodes {
		a := n.Asset
		fmt.Fprintf(w, "%s  %s\n", color.New(color.Bold).Sprint(a.Name),
			color.HiBlackString("(%s, %d locales, id %s)", a.Type, a.Items.Len(), a.ID))
		for _, ln := range n.Locales {
			marker := " "
			if ln.IsDefault() {
				marker = "*"
			}
			lang := ln.Item.Language
			name := ""
			if lang == "" {
				lang = "?"
				name = "(unset)"
			} else {
				name = langmeta.Resolve(lang).English
			}
			value := ln.Item.Value
			if value == "" {
				value = color.RedString("(%s)", i18n.T("missing"))
			}
			fmt.Fprintf(w, "  %s %-6s %-22s %s\n", marker, lang, name, value)
		}
	}
}

// ---------------------------------------------------------------------------
// create
// ---------------------------------------------------------------------------

func newCreateCmd() *cobra.Command {
	var (
		typ   string
		langs []string
	)
	cmd := &cobra.Command{
		Use:   "create NAME",
		Short: "Create a new asset",
		Long: `Create a new asset with one empty locale per language.

Without --lang the asset gets source_lang and languages from .locasset.yaml.
The first language becomes the default locale.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			vt, ok := asset.ParseValueType(typ)
			if !ok {
				return errors.Errorf("unknown asset type %q (valid: text, sprite, audio, other)", typ)
			}
			return withEnv(cmd, func(ctx context.Context, e *env) error {
				codes := langs
				if len(codes) == 0 {
					codes = e.cfg.InitialLanguages()
				}
				resolved := make([]string, 0, len(codes))
				for _, l := range codes {
					code, err := canonicalLang(l)
					if err != nil {
						return err
					}
					resolved = append(resolved, code)
				}
				a, err := e.s.Create(ctx, args[0], vt, resolved...)
				if err != nil {
					return err
				}
				logSuccess(i18n.T("Created asset %s"), a.Name)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&typ, "type", "t", string(asset.TypeText), "Asset type: text, sprite, audio, other")
	cmd.Flags().StringSliceVarP(&langs, "lang", "l", nil, "Languages (default locale first)")
	return cmd
}

// ---------------------------------------------------------------------------
// add-locale / remove-locale / promote / rename / set
// ---------------------------------------------------------------------------

func newAddLocaleCmd() *cobra.Command {
	var lang string
	cmd := &cobra.Command{
		Use:   "add-locale ASSET",
		Short: "Add a locale to an asset",
		Long: `Append an empty locale to an asset. With --lang the new locale gets
that language; without it the locale is an unset placeholder.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd, func(ctx context.Context, e *env) error {
				a, err := e.s.Resolve(ctx, args[0])
				if err != nil {
					return err
				}
				code := ""
				if lang != "" {
					if code, err = canonicalLang(lang); err != nil {
						return err
					}
					if _, exists := a.Items.ByLanguage(code); exists {
						return errors.Wrapf(asset.ErrInvariantViolation, "asset %q already has %s", a.Name, code)
					}
				}
				it, err := e.s.AddLocale(ctx, a)
				if err != nil {
					return err
				}
				if code != "" {
					if err := e.s.SetLanguage(ctx, a, it.ID, code); err != nil {
						return err
					}
				} else {
					code = "?"
				}
				logSuccess(i18n.T("Added locale %s to %s"), code, a.Name)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&lang, "lang", "l", "", "Language of the new locale")
	return cmd
}

func newRemoveLocaleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove-locale ASSET LANG",
		Short: "Remove a locale from an asset",
		Long:  `Remove one locale. The last remaining locale cannot be removed.`,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd, func(ctx context.Context, e *env) error {
				a, err := e.s.Resolve(ctx, args[0])
				if err != nil {
					return err
				}
				it, err := findItem(a, args[1])
				if err != nil {
					return err
				}
				lang := it.Language
				if err := e.s.RemoveLocale(ctx, a, it.ID); err != nil {
					return err
				}
				logSuccess(i18n.T("Removed locale %s from %s"), lang, a.Name)
				return nil
			})
		},
	}
}

func newPromoteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "promote ASSET LANG",
		Short: "Make a locale the asset's default",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd, func(ctx context.Context, e *env) error {
				a, err := e.s.Resolve(ctx, args[0])
				if err != nil {
					return err
				}
				it, err := findItem(a, args[1])
				if err != nil {
					return err
				}
				if err := e.s.Promote(ctx, a, it.ID); err != nil {
					return err
				}
				logSuccess(i18n.T("%s is now the default locale of %s"), it.Language, a.Name)
				return nil
			})
		},
	}
}

func newRenameCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rename ASSET NEW_NAME",
		Short: "Rename an asset",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd, func(ctx context.Context, e *env) error {
				a, err := e.s.Resolve(ctx, args[0])
				if err != nil {
					return err
				}
				old := a.Name
				if err := e.s.Rename(ctx, a, args[1]); err != nil {
					return err
				}
				logSuccess(i18n.T("Renamed %s to %s"), old, a.Name)
				return nil
			})
		},
	}
}

func newSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set ASSET LANG VALUE",
		Short: "Set the value of one locale",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd, func(ctx context.Context, e *env) error {
				a, err := e.s.Resolve(ctx, args[0])
				if err != nil {
					return err
				}
				it, err := findItem(a, args[1])
				if err != nil {
					return err
				}
				if err := e.s.SetValue(ctx, a, it.ID, args[2]); err != nil {
					return err
				}
				logSuccess(i18n.T("Updated %s [%s]"), a.Name, it.Language)
				return nil
			})
		},
	}
}

// ---------------------------------------------------------------------------
// translate
// ---------------------------------------------------------------------------

type translateArgs struct {
	source                              string
	provider, apiKey, model, baseURL    string
	proxy, prompt, metricsAddr          string
	timeout, requestTimeout             time.Duration
	maxConcurrent, maxRetries           int
	timeoutSet, concurrentSet, retrySet bool
}

func newTranslateCmd() *cobra.Command {
	var a translateArgs
	cmd := &cobra.Command{
		Use:   "translate ASSET",
		Short: "Fill empty locales by machine translation",
		Long: `Translate the default locale (or --source) of a text asset into every
locale that has a language but no value. Locales that fail are reported
and left empty; the rest are saved.

Provider settings come from .locasset.yaml and can be overridden by flags.
API keys are looked up in --api-key, then LOCASSET_API_KEY, then the
store managed by 'locasset auth'.

Examples:
  locasset translate Greeting
  locasset translate Greeting --provider ollama --model llama3.2
  locasset translate Greeting --source fr --request-timeout 30s`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a.timeoutSet = cmd.Flags().Changed("request-timeout")
			a.concurrentSet = cmd.Flags().Changed("max-concurrent")
			a.retrySet = cmd.Flags().Changed("max-retries")
			return runTranslate(cmd, args[0], a)
		},
	}

	cmd.Flags().StringVar(&a.source, "source", "", "Source language (default: the asset's default locale)")
	cmd.Flags().StringVar(&a.provider, "provider", "", "AI provider: google, groq, openai, custom-openai, ollama")
	cmd.Flags().StringVar(&a.model, "model", "", "Model name")
	cmd.Flags().StringVar(&a.apiKey, "api-key", "", "API key (or "+settings.EnvAPIKey+" env var)")
	cmd.Flags().StringVar(&a.baseURL, "base-url", "", "Custom API base URL")
	cmd.Flags().StringVar(&a.proxy, "proxy", "", "HTTP/HTTPS proxy URL")
	cmd.Flags().StringVar(&a.prompt, "prompt", "", "Custom system prompt ({{sourceLang}}, {{targetLang}} placeholders)")
	cmd.Flags().DurationVar(&a.timeout, "timeout", 0, "HTTP client timeout (0 = provider default)")
	cmd.Flags().DurationVar(&a.requestTimeout, "request-timeout", 0, "Give up on a single translation after this long (0 = wait indefinitely)")
	cmd.Flags().IntVar(&a.maxConcurrent, "max-concurrent", 3, "Maximum concurrent requests")
	cmd.Flags().IntVar(&a.maxRetries, "max-retries", 3, "Maximum retries on rate limit (429) and server errors")
	cmd.Flags().StringVar(&a.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address while translating")

	_ = cmd.RegisterFlagCompletionFunc("provider", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		var out []string
		for id, p := range translate.DefaultProviders() {
			out = append(out, id+"\t"+p.Name)
		}
		sort.Strings(out)
		return out, cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

func runTranslate(cmd *cobra.Command, ref string, a translateArgs) error {
	cfg, err := config.Load(rootDir)
	if err != nil {
		return err
	}
	tc := cfg.Translate
	if a.provider != "" {
		tc.Provider = a.provider
	}
	if a.model != "" {
		tc.Model = a.model
	}
	if a.baseURL != "" {
		tc.BaseURL = a.baseURL
	}
	if a.proxy != "" {
		tc.Proxy = a.proxy
	}
	if a.prompt != "" {
		tc.Prompt = a.prompt
	}
	if a.timeoutSet {
		tc.RequestTimeout = config.Duration(a.requestTimeout)
	}
	if a.concurrentSet {
		tc.MaxConcurrent = a.maxConcurrent
	}
	if a.retrySet {
		tc.MaxRetries = a.maxRetries
	}

	prov := resolveProvider(tc, settings.ResolveAPIKey(tc.Provider, a.apiKey), a.timeout)
	log := newLogger()
	svc, err := translate.NewHTTPService(prov, translate.ServiceOptions{
		SystemPrompt: tc.Prompt,
		MaxRetries:   tc.MaxRetries,
		Logger:       log.Named("provider"),
	})
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	if a.metricsAddr != "" {
		stop := serveMetrics(a.metricsAddr, reg)
		defer stop()
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	e, err := openEnv(ctx, session.Options{
		Service: svc,
		Engine: translate.Options{
			MaxConcurrent:  tc.MaxConcurrent,
			RequestTimeout: time.Duration(tc.RequestTimeout),
			Registerer:     reg,
		},
		OnApplied: func(as *asset.Asset, it *asset.LocaleItem) {
			logSuccess(i18n.T("Translated %s [%s]"), as.Name, it.Language)
		},
		OnFailure: func(err error, c translate.Completion) {
			logWarning(i18n.T("Translation failed: %v"), err)
		},
	})
	if err != nil {
		return err
	}
	defer e.close()

	as, err := e.s.Resolve(ctx, ref)
	if err != nil {
		return err
	}
	source := as.Items.Default()
	if a.source != "" {
		if source, err = findItem(as, a.source); err != nil {
			return err
		}
	}

	logInfo("Provider: %s (%s), Model: %s", prov.Name, prov.ID, prov.Model)
	b, err := e.s.Translate(ctx, as, source.ID)
	if err != nil {
		return err
	}
	n := len(b.Targets())
	if n == 0 {
		logSuccess("%s", i18n.T("Nothing to translate"))
		return nil
	}
	logInfo(i18n.N("Translating %d locale of %s", "Translating %d locales of %s", n), n, as.Name)

	waitErr := e.s.Wait(ctx, b)
	if waitErr != nil {
		logWarning("Translation interrupted, saving partial progress")
	}
	// Save whatever was applied, even after an interrupt.
	if err := e.s.Flush(context.Background()); err != nil {
		return err
	}
	if waitErr != nil {
		return waitErr
	}

	logInfo(i18n.T("Done: %d succeeded, %d failed"), b.Succeeded(), b.Failed())
	if b.Failed() > 0 {
		return errors.Errorf("%d of %d translations failed", b.Failed(), n)
	}
	return nil
}

func resolveProvider(tc config.TranslateConfig, apiKey string, timeout time.Duration) translate.Provider {
	defaults := translate.DefaultProviders()

	prov, ok := defaults[strings.ToLower(tc.Provider)]
	if !ok {
		// An unknown provider name is taken as the URL of an
		// OpenAI-compatible endpoint.
		prov = defaults[translate.ProviderCustomOpenAI]
		prov.Name = tc.Provider
		prov.BaseURL = tc.Provider
	}

	if tc.BaseURL != "" {
		prov.BaseURL = tc.BaseURL
	} else if prov.ID == translate.ProviderCustomOpenAI && prov.BaseURL == "" {
		prov.BaseURL = settings.GetBaseURL(prov.ID)
	}
	if apiKey != "" {
		prov.APIKey = apiKey
	}
	if tc.Model != "" {
		prov.Model = tc.Model
	}
	if tc.Proxy != "" {
		prov.Proxy = tc.Proxy
	}
	if timeout > 0 {
		prov.Timeout = timeout
	}
	return prov
}

func serveMetrics(addr string, reg *prometheus.Registry) (stop func()) {
	srv := &http.Server{
		Addr:              addr,
		Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logWarning("Metrics server: %v", err)
		}
	}()
	logInfo("Serving metrics on http://%s/metrics", addr)
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

// ---------------------------------------------------------------------------
// status
// ---------------------------------------------------------------------------

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show translation coverage",
		Long: `Show per-asset translation coverage: translated locales, missing
values, and machine translations whose source text changed since
(stale, tracked in locasset.lock). Does not modify any files.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			e, err := openEnv(ctx, session.Options{})
			if err != nil {
				return err
			}
			defer e.close()

			statuses, err := e.s.Status(ctx)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "%s  %s\n", color.New(color.Bold).Sprint("locasset"),
				fmt.Sprintf(i18n.N("%d asset", "%d assets", len(statuses)), len(statuses)))
			fmt.Fprintf(w, "  store: %s\n", describeStore(e.cfg))
			fmt.Fprintf(w, "  lock:  %s\n\n", e.lock.Summary())
			showStatusTable(w, statuses)
			return nil
		},
	}
}

func describeStore(cfg *config.ProjectFile) string {
	if cfg.Store.Backend == config.BackendSQLite {
		return "sqlite " + cfg.AbsStorePath()
	}
	return "yaml " + cfg.AbsStoreDir()
}

func showStatusTable(w io.Writer, statuses []session.AssetStatus) {
	width := 5
	for _, st := range statuses {
		width = max(width, len(st.Asset.Name))
	}
	for _, st := range statuses {
		percent := 0
		if st.Total > 0 {
			percent = st.Translated * 100 / st.Total
		}
		fmt.Fprintf(w, "  %-*s %s  %d/%d", width, st.Asset.Name, progressBar(percent, 20), st.Translated, st.Total)
		if len(st.Missing) > 0 {
			fmt.Fprintf(w, "  %s: %s", i18n.T("missing"), strings.Join(st.Missing, ","))
		}
		if len(st.Stale) > 0 {
			fmt.Fprintf(w, "  %s: %s", color.YellowString(i18n.T("stale")), strings.Join(st.Stale, ","))
		}
		if st.Unset > 0 {
			fmt.Fprintf(w, "  unset: %d", st.Unset)
		}
		fmt.Fprintln(w)
	}
}

// progressBar renders percent as a colored bar followed by the number.
func progressBar(percent, width int) string {
	percent = min(max(percent, 0), 100)
	filled := percent * width / 100
	bar := strings.Repeat("█", filled) + strings.Repeat("░", width-filled)

	paint := color.GreenString
	switch {
	case percent < 50:
		paint = color.RedString
	case percent < 100:
		paint = color.YellowString
	}
	return fmt.Sprintf("%s %3d%%", paint("%s", bar), percent)
}

// ---------------------------------------------------------------------------
// auth
// ---------------------------------------------------------------------------

func newAuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage provider API keys",
		Long: `Store, remove and list API keys for translation providers.

Keys are kept in ` + "$XDG_DATA_HOME/locasset/auth.json" + ` with 0600 permissions.`,
	}
	cmd.AddCommand(newAuthSetCmd(), newAuthRemoveCmd(), newAuthListCmd())
	return cmd
}

func newAuthSetCmd() *cobra.Command {
	var baseURL string
	cmd := &cobra.Command{
		Use:   "set PROVIDER KEY",
		Short: "Store an API key for a provider",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, ok := translate.DefaultProviders()[args[0]]; !ok {
				return errors.Errorf("unknown provider %q", args[0])
			}
			if err := settings.SetAPIKey(args[0], args[1], baseURL); err != nil {
				return err
			}
			logSuccess("Stored key for %s in %s", args[0], settings.FilePath())
			return nil
		},
	}
	cmd.Flags().StringVar(&baseURL, "base-url", "", "Endpoint URL (custom-openai)")
	return cmd
}

func newAuthRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "remove PROVIDER",
		Aliases: []string{"rm"},
		Short:   "Remove the stored key of a provider",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := settings.Remove(args[0]); err != nil {
				return err
			}
			logSuccess("Removed credentials for %s", args[0])
			return nil
		},
	}
}

func newAuthListCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "Show stored keys",
		Args:    cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			w := cmd.OutOrStdout()
			stored := settings.Load()
			ids := make([]string, 0, len(translate.DefaultProviders()))
			for id := range translate.DefaultProviders() {
				ids = append(ids, id)
			}
			sort.Strings(ids)
			for _, id := range ids {
				info := stored[id]
				switch {
				case info != nil && info.Key != "":
					status := color.GreenString("configured") + " (key: " + settings.MaskKey(info.Key) + ")"
					if info.BaseURL != "" {
						status += " endpoint: " + info.BaseURL
					}
					fmt.Fprintf(w, "  %-14s %s\n", id, status)
				default:
					fmt.Fprintf(w, "  %-14s %s\n", id, color.RedString("not configured"))
				}
			}
			if k := os.Getenv(settings.EnvAPIKey); k != "" {
				fmt.Fprintf(w, "  %s: %s (overrides stored keys)\n", settings.EnvAPIKey, settings.MaskKey(k))
			}
		},
	}
}
