// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/citegraph/internal/bridge"
	"github.com/pdiddy/citegraph/internal/categorize"
	"github.com/pdiddy/citegraph/internal/fetch"
	"github.com/pdiddy/citegraph/internal/pipeline"
	"github.com/pdiddy/citegraph/internal/store"
	"github.com/pdiddy/citegraph/pkg/types"
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build the citation graph around a master paper",
	Long: `Build selects a master paper by free-text query or identifier, runs the
seed, enrich, and extend phases to completion, and prints the
relationship-degree breakdown of the resulting graph.`,
	RunE: runBuild,
}

func init() {
	buildCmd.Flags().String("query", "", "free-text search; the top result becomes the master paper")
	buildCmd.Flags().String("id", "", "master paper identifier (DOI or Semantic Scholar id)")
	buildCmd.Flags().Int("max-citations", 0, "reject master papers cited more often than this")
	buildCmd.Flags().Int("max-seed", 0, "maximum direct citations fetched in the seed phase")
	buildCmd.Flags().Int("fanout-threshold", 0, "skip second-degree expansion of citers above this citation count")
	buildCmd.Flags().Int("concurrency", 0, "bounded fetch worker count")
	buildCmd.Flags().String("cache", "", "SQLite session fetch cache path (empty disables)")
	buildCmd.Flags().String("dump", "", "write the final graph snapshot to this YAML file")
	buildCmd.Flags().String("api-key", "", "Semantic Scholar API key")
	buildCmd.Flags().String("email", "", "OpenAlex polite-pool email")

	rootCmd.AddCommand(buildCmd)
}

func runBuild(cmd *cobra.Command, args []string) error {
	query, _ := cmd.Flags().GetString("query")
	identifier, _ := cmd.Flags().GetString("id")
	if query == "" && identifier == "" {
		return fmt.Errorf("provide --query or --id to select a master paper")
	}

	cfg := buildConfig(cmd)
	log, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	defer log.Sync()

	httpClient := &http.Client{Timeout: cfg.Fetch.Timeout}
	var client fetch.Client = &fetch.SemanticClient{Client: httpClient, Cfg: cfg.Fetch}
	if cfg.Fetch.CachePath != "" {
		cached, err := fetch.NewCachedClient(client, cfg.Fetch.CachePath, log)
		if err != nil {
			return err
		}
		defer cached.Close()
		client = cached
	}
	enricher := &fetch.OpenAlexClient{Client: httpClient, Cfg: cfg.Fetch}

	ctx := cmd.Context()
	master, err := selectMaster(ctx, client, query, identifier)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "master: %s (%d citations)\n", master.Title, master.CitedByCount)

	st := store.New(log)
	msgCh := make(chan []types.Message, 64)

	pipe, err := pipeline.New(client, enricher, cfg, msgCh, st.Snapshot, log)
	if err != nil {
		return err
	}

	br := bridge.New(st, log)
	br.OnEnrichComplete(func() {
		if err := pipe.StartExtend(ctx); err != nil {
			log.Warn("extend not started", zap.Error(err))
		}
	})

	var consumers sync.WaitGroup
	consumers.Add(1)
	go func() {
		defer consumers.Done()
		br.Run(msgCh)
	}()

	if err := pipe.Start(ctx, master); err != nil {
		close(msgCh)
		consumers.Wait()
		return err
	}

	<-pipe.Done()
	close(msgCh)
	consumers.Wait()

	snap := st.Snapshot()
	if snap.Status.State == types.StateError {
		return fmt.Errorf("build failed: %s", snap.Status.Message)
	}

	printSummary(snap, pipe.MasterID())

	if dumpPath, _ := cmd.Flags().GetString("dump"); dumpPath != "" {
		if err := dumpSnapshot(snap, dumpPath); err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "snapshot written to %s\n", dumpPath)
	}
	return nil
}

// buildConfig merges viper config, flags, and secrets into the graph
// configuration. Flags win over the config file.
func buildConfig(cmd *cobra.Command) types.GraphConfig {
	var cfg types.GraphConfig
	cfg.MaxMasterCitedBy = viper.GetInt("graph.max_master_cited_by")
	cfg.MaxSeedResults = viper.GetInt("graph.max_seed_results")
	cfg.StubFanoutThreshold = viper.GetInt("graph.stub_fanout_threshold")
	cfg.FetchConcurrency = viper.GetInt("graph.fetch_concurrency")
	for _, ns := range viper.GetStringSlice("graph.namespace_priority") {
		cfg.NamespacePriority = append(cfg.NamespacePriority, types.Namespace(ns))
	}
	if viper.IsSet("graph.progress") {
		cfg.Progress = types.ProgressConfig{
			SeedWeight:          viper.GetInt("graph.progress.seed_weight"),
			EnrichWeight:        viper.GetInt("graph.progress.enrich_weight"),
			ExtendWeight:        viper.GetInt("graph.progress.extend_weight"),
			ExtendFetchWeight:   viper.GetInt("graph.progress.extend_fetch_weight"),
			ExtendHydrateWeight: viper.GetInt("graph.progress.extend_hydrate_weight"),
		}
	}
	cfg.Fetch.Timeout = viper.GetDuration("fetch.timeout")
	cfg.Fetch.UserAgent = viper.GetString("fetch.user_agent")

	if v, _ := cmd.Flags().GetInt("max-citations"); v > 0 {
		cfg.MaxMasterCitedBy = v
	}
	if v, _ := cmd.Flags().GetInt("max-seed"); v > 0 {
		cfg.MaxSeedResults = v
	}
	if v, _ := cmd.Flags().GetInt("fanout-threshold"); v > 0 {
		cfg.StubFanoutThreshold = v
	}
	if v, _ := cmd.Flags().GetInt("concurrency"); v > 0 {
		cfg.FetchConcurrency = v
	}
	if v, _ := cmd.Flags().GetString("cache"); v != "" {
		cfg.Fetch.CachePath = v
	}

	apiKey, _ := cmd.Flags().GetString("api-key")
	cfg.Fetch.SemanticScholarAPIKey = secretDefault("semantic-scholar-api-key", apiKey)
	email, _ := cmd.Flags().GetString("email")
	cfg.Fetch.OpenAlexEmail = secretDefault("openalex-email", email)

	return cfg.WithDefaults()
}

// doiPattern matches DOIs: "10.1145/1234567.1234568".
var doiPattern = regexp.MustCompile(`^10\.\d{4,9}/[^\s]+$`)

// semanticIDPattern matches Semantic Scholar paper ids (40 hex chars).
var semanticIDPattern = regexp.MustCompile(`^[0-9a-f]{40}$`)

// classifyIdentifier maps a bare identifier to its namespace.
func classifyIdentifier(identifier string) (types.NamespacedID, error) {
	identifier = strings.TrimSpace(identifier)
	switch {
	case doiPattern.MatchString(types.NormalizeDOI(identifier)):
		return types.NamespacedID{Namespace: types.NSDOI, Value: types.NormalizeDOI(identifier)}, nil
	case semanticIDPattern.MatchString(strings.ToLower(identifier)):
		return types.NamespacedID{Namespace: types.NSSemantic, Value: strings.ToLower(identifier)}, nil
	default:
		return types.NamespacedID{}, fmt.Errorf("unrecognized identifier format: %q", identifier)
	}
}

func selectMaster(ctx context.Context, client fetch.Client, query, identifier string) (*fetch.RawRecord, error) {
	if identifier != "" {
		id, err := classifyIdentifier(identifier)
		if err != nil {
			return nil, err
		}
		rec, err := client.FetchByIdentifiers(ctx, []types.NamespacedID{id})
		if err != nil {
			return nil, fmt.Errorf("looking up %s: %w", identifier, err)
		}
		return rec, nil
	}

	results, err := client.FetchByQuery(ctx, query, 1)
	if err != nil {
		return nil, fmt.Errorf("searching for master paper: %w", err)
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("no papers match %q", query)
	}
	return &results[0], nil
}

func printSummary(snap *store.Snapshot, masterID string) {
	stats := snap.Stats()
	fmt.Printf("graph: %d papers (%d stubs), %d authors, %d institutions, %d authorships, %d relationships\n",
		stats.Papers, stats.Stubs, stats.Authors, stats.Institutions, stats.Authorships, stats.Relationships)

	result := categorize.Categorize(snap.Papers, snap.Relationships, masterID)
	printBucket(snap, "direct citations", result.Direct)
	printBucket(snap, "second-degree citations", result.SecondDegree)
	printBucket(snap, "co-cited papers", result.CoCited)
}

func printBucket(snap *store.Snapshot, label string, ids []string) {
	fmt.Printf("%s: %d\n", label, len(ids))
	const maxShown = 10
	for i, id := range ids {
		if i == maxShown {
			fmt.Printf("  ... and %d more\n", len(ids)-maxShown)
			return
		}
		fmt.Printf("  - %s\n", snap.Papers[id].Title)
	}
}

// dumpSnapshot writes the graph as YAML for inspection. This is a
// debugging aid, not persistence: nothing ever reads it back.
func dumpSnapshot(snap *store.Snapshot, path string) error {
	type snapshotDump struct {
		Stats         store.Stats                  `yaml:"stats"`
		Status        types.AppStatus              `yaml:"status"`
		Papers        map[string]types.Paper       `yaml:"papers"`
		Authors       map[string]types.Author      `yaml:"authors"`
		Institutions  map[string]types.Institution `yaml:"institutions"`
		Authorships   []types.Authorship           `yaml:"authorships"`
		Relationships []types.Relationship         `yaml:"relationships"`
		GeneratedAt   time.Time                    `yaml:"generated_at"`
	}

	dump := snapshotDump{
		Stats:        snap.Stats(),
		Status:       snap.Status,
		Papers:       snap.Papers,
		Authors:      snap.Authors,
		Institutions: snap.Institutions,
		GeneratedAt:  time.Now().UTC(),
	}
	for _, a := range snap.Authorships {
		dump.Authorships = append(dump.Authorships, a)
	}
	for _, r := range snap.Relationships {
		dump.Relationships = append(dump.Relationships, r)
	}

	data, err := yaml.Marshal(dump)
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing snapshot: %w", err)
	}
	return nil
}
