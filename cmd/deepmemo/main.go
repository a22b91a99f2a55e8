package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/a-marczewski/deepmemo/internal/config"
	"github.com/a-marczewski/deepmemo/internal/doctor"
	"github.com/a-marczewski/deepmemo/internal/logging"
	"github.com/a-marczewski/deepmemo/internal/memory"
	"github.com/a-marczewski/deepmemo/internal/retrieval"
	"github.com/a-marczewski/deepmemo/internal/semgroup"
	"github.com/a-marczewski/deepmemo/internal/storage"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const appVersion = "0.1.0"

var rootCmd = &cobra.Command{
	Use:   "deepmemo",
	Short: "deepmemo - Deep memory retrieval for AI assistants",
	Long:  `deepmemo turns a raw text query into a ranked set of long-term memory entries using multi-phase search, reranking, clustering, and semantic grouping.`,
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(timelineCmd)
	rootCmd.AddCommand(relationsCmd)
	rootCmd.AddCommand(groupsCmd)
	rootCmd.AddCommand(identifyCmd)
	rootCmd.AddCommand(classifyCmd)
	rootCmd.AddCommand(rememberCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(doctorCmd)
	rootCmd.AddCommand(completionCmd)
}

// app bundles the wired services a command needs.
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	db       *storage.DB
	store    *storage.Store
	engine   *retrieval.Engine
	searcher *semgroup.Searcher
}

func newApp() (*app, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := logging.NewLogger(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	db, err := storage.NewDB(cfg)
	if err != nil {
		logger.Error("Failed to initialize database", zap.Error(err))
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	store := storage.NewStore(db)
	weights := retrieval.DefaultWeights()
	weights.RecencyDecayDays = cfg.RecencyDecayDays
	weights.FocusOriginal = cfg.FocusOriginal
	weights.FocusLexical = cfg.FocusLexical
	weights.FrequencyDamping = cfg.FrequencyDamping

	return &app{
		cfg:      cfg,
		logger:   logger,
		db:       db,
		store:    store,
		engine:   retrieval.NewEngine(store, logger, weights),
		searcher: semgroup.NewSearcher(store, semgroup.NewRegistry(), logger),
	}, nil
}

func (a *app) close() {
	if a.db != nil {
		a.db.Close()
	}
	if a.logger != nil {
		a.logger.Sync()
	}
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the deepmemo version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("deepmemo %s\n", appVersion)
	},
}

var completionCmd = &cobra.Command{
	Use:                   "completion [bash|zsh|fish|powershell]",
	Short:                 "Generate the autocompletion script for the specified shell",
	DisableFlagsInUseLine: true,
	ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
	Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		switch args[0] {
		case "bash":
			return rootCmd.GenBashCompletion(os.Stdout)
		case "zsh":
			return rootCmd.GenZshCompletion(os.Stdout)
		case "fish":
			return rootCmd.GenFishCompletion(os.Stdout, true)
		case "powershell":
			return rootCmd.GenPowerShellCompletionWithDesc(os.Stdout)
		}
		return nil
	},
}

var (
	searchTopK        int
	searchFirstStageK int
	searchThreshold   float64
	searchCluster     bool
	searchGroups      []string
	searchRelated     bool
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Run a deep search over stored memories",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		ctx := cmd.Context()
		query := strings.Join(args, " ")

		var result retrieval.Result
		if len(searchGroups) > 0 {
			result = a.searcher.Search(ctx, semgroup.SearchOptions{
				Groups:               searchGroups,
				Query:                query,
				PerGroupLimit:        a.cfg.PerGroupLimit,
				TotalLimit:           a.cfg.TotalLimit,
				MinConfidence:        a.cfg.MinConfidence,
				IncludeRelatedGroups: searchRelated,
			})
		} else {
			opts := retrieval.Options{
				TopK:             searchTopK,
				FirstStageK:      searchFirstStageK,
				Threshold:        searchThreshold,
				EnableClustering: searchCluster || a.cfg.EnableClustering,
				ClusterCount:     a.cfg.ClusterCount,
			}
			if opts.TopK == 0 {
				opts.TopK = a.cfg.TopK
			}
			if opts.FirstStageK == 0 {
				opts.FirstStageK = a.cfg.FirstStageK
			}
			if opts.Threshold == 0 {
				opts.Threshold = a.cfg.Threshold
			}
			result = a.engine.Search(ctx, query, opts)
		}

		printResult(result)
		recordAccess(ctx, a, result.Entries)
		return nil
	},
}

var (
	timelineFrom string
	timelineTo   string
)

var timelineCmd = &cobra.Command{
	Use:   "timeline <topic>",
	Short: "Show memories about a topic grouped by day",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		tr, err := parseTimeRange(timelineFrom, timelineTo)
		if err != nil {
			return err
		}

		result, err := a.engine.SearchTimeline(cmd.Context(), strings.Join(args, " "), tr)
		if err != nil {
			return err
		}

		fmt.Printf("Timeline for %q: %d entries over %d days (%s .. %s)\n",
			result.Topic, result.TotalEntries, result.Span.DurationDays,
			result.Span.Start.Format("2006-01-02"), result.Span.End.Format("2006-01-02"))
		for _, day := range result.Days {
			fmt.Printf("\n%s\n", day.Date)
			for _, entry := range day.Entries {
				fmt.Printf("  [%s] %s\n", entry.Type, firstLine(entry.Content))
			}
		}
		return nil
	},
}

var relationsCmd = &cobra.Command{
	Use:   "relations <entry-id>",
	Short: "Discover relations for a memory entry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		discovery, err := a.engine.DiscoverRelations(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		fmt.Printf("%d relations, %d related entries\n", len(discovery.Relations), len(discovery.RelatedEntries))
		for _, rel := range discovery.Relations {
			fmt.Printf("  %s -> %s (%s, weight %.2f)\n", rel.SourceID, rel.TargetID, rel.RelationType, rel.Weight)
		}
		for _, related := range discovery.RelatedEntries {
			fmt.Printf("  [%.2f] %s: %s\n", related.Weight, related.Entry.ID, firstLine(related.Entry.Content))
		}
		return nil
	},
}

var groupsCmd = &cobra.Command{
	Use:   "groups [id]",
	Short: "List semantic groups, or show one group and its neighbors",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		registry := semgroup.NewRegistry()
		if len(args) == 1 {
			group, ok := registry.Group(args[0])
			if !ok {
				return fmt.Errorf("unknown group: %s", args[0])
			}
			fmt.Printf("%s (%s), priority %d\n", group.Name, group.ID, group.Priority)
			fmt.Printf("  keywords: %s\n", strings.Join(group.Keywords, ", "))
			fmt.Printf("  types: %s\n", joinTypes(group.Types))
			var related []string
			for _, r := range registry.RelatedGroups(group.ID) {
				related = append(related, r.ID)
			}
			fmt.Printf("  related: %s\n", strings.Join(related, ", "))
			return nil
		}
		for _, group := range registry.Groups() {
			fmt.Printf("%-12s priority %d  %s\n", group.ID, group.Priority, strings.Join(group.Keywords, ", "))
		}
		return nil
	},
}

var identifyCmd = &cobra.Command{
	Use:   "identify <text>",
	Short: "Identify which semantic groups a text belongs to",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		registry := semgroup.NewRegistry()
		matches := registry.IdentifyGroups(strings.Join(args, " "))
		if len(matches) == 0 {
			fmt.Println("no matching groups")
			return nil
		}
		for _, match := range matches {
			fmt.Printf("%-12s %.2f  %s\n", match.GroupID, match.Confidence, strings.Join(match.MatchedKeywords, ", "))
		}
		return nil
	},
}

var classifyCmd = &cobra.Command{
	Use:   "classify <entry-id>",
	Short: "Classify a stored entry into semantic groups",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		entry, err := a.store.GetByID(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if entry == nil {
			return fmt.Errorf("entry not found: %s", args[0])
		}

		matches := a.searcher.Registry().ClassifyEntry(entry)
		if len(matches) == 0 {
			fmt.Println(semgroup.UncategorizedGroup)
			return nil
		}
		for _, match := range matches {
			fmt.Printf("%-12s %.2f  %s\n", match.GroupID, match.Confidence, strings.Join(match.MatchedKeywords, ", "))
		}
		return nil
	},
}

var (
	rememberType       string
	rememberTags       []string
	rememberImportance int
	rememberConfidence float64
	rememberSource     string
)

var rememberCmd = &cobra.Command{
	Use:   "remember <content>",
	Short: "Store a new memory entry",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		entry := &memory.Entry{
			Content: strings.Join(args, " "),
			Type:    memory.Type(rememberType),
			Metadata: memory.Metadata{
				Source:     rememberSource,
				Confidence: rememberConfidence,
				Tags:       rememberTags,
				Importance: rememberImportance,
			},
		}
		if err := a.store.Create(cmd.Context(), entry); err != nil {
			return err
		}
		fmt.Printf("stored %s\n", entry.ID)
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show store statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		count, err := a.store.Count(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("entries: %d\n", count)
		fmt.Printf("database: %s\n", a.cfg.DBPath)
		return nil
	},
}

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Run diagnostics on the local installation",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		diagnostics := doctor.NewRunner(a.cfg, a.db).RunAll()
		diagnostics.PrintReport()
		if diagnostics.Status != "healthy" {
			os.Exit(1)
		}
		return nil
	},
}

func printResult(result retrieval.Result) {
	if result.Metadata.Error != "" {
		fmt.Printf("search failed: %s\n", result.Metadata.Error)
		return
	}
	fmt.Printf("%d results (%d found, %dms, strategy %s)\n",
		len(result.Entries), result.Metadata.TotalFound,
		result.Metadata.TimeElapsedMs, result.Metadata.Strategy)
	if len(result.Metadata.Expansions) > 0 {
		fmt.Printf("expanded with: %s\n", strings.Join(result.Metadata.Expansions, ", "))
	}
	for _, entry := range result.Entries {
		fmt.Printf("  [%.3f] %s (%s) %s\n", entry.Score, firstLine(entry.Content), entry.Type, entry.MatchReason)
	}
	for _, cluster := range result.Clusters {
		fmt.Printf("cluster %q: %d entries - %s\n", cluster.Topic, len(cluster.Entries), cluster.Summary)
	}
}

func recordAccess(ctx context.Context, a *app, entries []memory.ScoredEntry) {
	if len(entries) == 0 {
		return
	}
	ids := make([]string, len(entries))
	for i, entry := range entries {
		ids[i] = entry.ID
	}
	if err := a.store.RecordAccess(ctx, ids); err != nil {
		a.logger.Warn("Failed to record access", zap.Error(err))
	}
}

func parseTimeRange(from, to string) (memory.TimeRange, error) {
	now := time.Now()
	tr := memory.TimeRange{Start: now.AddDate(0, 0, -30), End: now}
	if from != "" {
		start, err := parseDay(from)
		if err != nil {
			return tr, fmt.Errorf("invalid --from: %w", err)
		}
		tr.Start = start
	}
	if to != "" {
		end, err := parseDay(to)
		if err != nil {
			return tr, fmt.Errorf("invalid --to: %w", err)
		}
		// Make the end date inclusive.
		tr.End = end.AddDate(0, 0, 1).Add(-time.Nanosecond)
	}
	return tr, nil
}

func parseDay(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if len([]rune(s)) > 80 {
		s = string([]rune(s)[:80]) + "..."
	}
	return s
}

func joinTypes(types []memory.Type) string {
	parts := make([]string, len(types))
	for i, t := range types {
		parts[i] = string(t)
	}
	return strings.Join(parts, ", ")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	searchCmd.Flags().IntVar(&searchTopK, "top-k", 0, "maximum results to return")
	searchCmd.Flags().IntVar(&searchFirstStageK, "first-stage-k", 0, "first-stage candidate count")
	searchCmd.Flags().Float64Var(&searchThreshold, "threshold", 0, "first-stage score threshold")
	searchCmd.Flags().BoolVar(&searchCluster, "cluster", false, "cluster results by topic")
	searchCmd.Flags().StringSliceVar(&searchGroups, "groups", nil, "restrict to semantic groups")
	searchCmd.Flags().BoolVar(&searchRelated, "related", false, "also search groups related to the targets")

	timelineCmd.Flags().StringVar(&timelineFrom, "from", "", "range start (YYYY-MM-DD, default 30 days ago)")
	timelineCmd.Flags().StringVar(&timelineTo, "to", "", "range end (YYYY-MM-DD, default now)")

	rememberCmd.Flags().StringVar(&rememberType, "type", "fact", "memory type")
	rememberCmd.Flags().StringSliceVar(&rememberTags, "tags", nil, "tags for the entry")
	rememberCmd.Flags().IntVar(&rememberImportance, "importance", 5, "importance (1-10)")
	rememberCmd.Flags().Float64Var(&rememberConfidence, "confidence", 0.8, "confidence (0-1)")
	rememberCmd.Flags().StringVar(&rememberSource, "source", "cli", "entry source")
}
