// Package config implements the ambient configuration layer: the
// `DATA_DIR` environment override and `NOTEFORGE_*` prefixed
// environment variables of spec §6 ("Environment"), plus the
// analyzer-dictionary/synonyms-path configuration spec §4.7 calls out.
//
// Grounded on steveyegge-beads/cmd/bd/config.go's validateSyncConfig
// (viper.New, SetConfigType("yaml"), SetConfigFile, ReadInConfig) and
// its sibling internal/config/yaml_config.go for the project's general
// preference for YAML configuration files.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/noteforge/noteforge/internal/searchindex"
)

// Config is the resolved runtime configuration for one noteforge
// process.
type Config struct {
	// DataDir is the base directory under which note/, db/, and
	// index/ are rooted (spec §6 "Persisted state layout").
	DataDir string

	// HTTPAddr is the address the HTTP surface listens on.
	HTTPAddr string

	// MergeOnConflict selects the richer Save behavior of spec §4.1
	// step 3 (attempt a three-way merge before surfacing a conflict).
	MergeOnConflict bool

	// ReconcileDebounceMillis bounds, in milliseconds, how long the on-demand Reconciler
	// watcher waits after the last filesystem event before running.
	ReconcileDebounceMillis int

	// Synonyms is the SI analyzer's synonym expansion table.
	Synonyms searchindex.Synonyms

	// FTSLimit bounds how many titles Search asks the Search Index for
	// before handing them to the Metadata Store (spec §4.3 step 2).
	FTSLimit int
}

// NoteDir, DBPath, and IndexPath derive the three persisted-state
// roots of spec §6 from DataDir.
func (c Config) NoteDir() string   { return filepath.Join(c.DataDir, "note") }
func (c Config) DBPath() string    { return filepath.Join(c.DataDir, "db", "noteforge.db") }
func (c Config) IndexPath() string { return filepath.Join(c.DataDir, "index") }

// Load builds a Config from an optional YAML file (configPath, may be
// empty) overlaid with `NOTEFORGE_*` environment variables and
// `DATA_DIR`, following viper's documented precedence (explicit set >
// flag > env > config file > default).
func Load(configPath string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("NOTEFORGE")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))

	v.SetDefault("data_dir", "./data")
	v.SetDefault("http_addr", ":8080")
	v.SetDefault("merge_on_conflict", false)
	v.SetDefault("reconcile_debounce_ms", 500)
	v.SetDefault("search.fts_limit", 100)

	if configPath != "" {
		v.SetConfigType("yaml")
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file %s: %w", configPath, err)
		}
	}

	dataDir := v.GetString("data_dir")
	// DATA_DIR (spec §6 "Environment") is a bare, unprefixed override,
	// unlike the rest of this process's NOTEFORGE_* environment
	// variables.
	if override := os.Getenv("DATA_DIR"); override != "" {
		dataDir = override
	}

	syn, err := loadSynonyms(v)
	if err != nil {
		return Config{}, err
	}

	return Config{
		DataDir:                 dataDir,
		HTTPAddr:                v.GetString("http_addr"),
		MergeOnConflict:         v.GetBool("merge_on_conflict"),
		ReconcileDebounceMillis: v.GetInt("reconcile_debounce_ms"),
		Synonyms:                syn,
		FTSLimit:                v.GetInt("search.fts_limit"),
	}, nil
}

// loadSynonyms reads the `synonyms_path` key, if set, as a YAML
// {term: [synonyms]} map; otherwise falls back to
// searchindex.DefaultSynonyms (spec §4.7: "the analyzer, synonyms
// table, and index path are configuration").
func loadSynonyms(v *viper.Viper) (searchindex.Synonyms, error) {
	path := v.GetString("synonyms_path")
	if path == "" {
		return searchindex.DefaultSynonyms(), nil
	}

	sv := viper.New()
	sv.SetConfigType("yaml")
	sv.SetConfigFile(path)
	if err := sv.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read synonyms file %s: %w", path, err)
	}

	var syn searchindex.Synonyms
	if err := sv.Unmarshal(&syn); err != nil {
		return nil, fmt.Errorf("parse synonyms file %s: %w", path, err)
	}
	return syn, nil
}
