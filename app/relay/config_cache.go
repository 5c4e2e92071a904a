package relay

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Defaults are the environment-level settings every source starts from.
type Defaults struct {
	Subreddits []string
	Flairs     []string
	Type       string
	Limit      int
}

// ConfigCache holds the resolved source list: the configured subreddits, each
// optionally overridden by <sourcesDir>/<subreddit>.yml, plus YAML-only sources.
type ConfigCache struct {
	sourcesDir string
	defaults   Defaults
	cache      map[string]*SourceConfig
	order      []string
	mu         sync.RWMutex
}

func NewConfigCache(sourcesDir string, defaults Defaults) *ConfigCache {
	return &ConfigCache{
		sourcesDir: sourcesDir,
		defaults:   defaults,
		cache:      make(map[string]*SourceConfig),
	}
}

func (cc *ConfigCache) Run() error {
	cache := make(map[string]*SourceConfig)
	var order []string

	for _, name := range cc.defaults.Subreddits {
		if _, ok := cache[name]; ok {
			continue
		}
		cache[name] = cc.defaultConfig(name)
		order = append(order, name)
	}

	files, err := cc.configFiles()
	if err != nil {
		return err
	}

	var extra []string
	for _, file := range files {
		fileName := filepath.Base(file)
		name := strings.TrimSuffix(fileName, filepath.Ext(fileName))

		base, ok := cache[name]
		if !ok {
			base = cc.defaultConfig(name)
			extra = append(extra, name)
		}

		sourceConfig, err := cc.parseConfig(file, *base)
		if err != nil {
			return fmt.Errorf("error loading %s: %w", file, err)
		}
		cache[name] = sourceConfig

		slog.Debug("Configuration loaded", "subreddit", name, "enabled", sourceConfig.Enabled, "type", sourceConfig.Type, "flairs", len(sourceConfig.Flairs))
	}

	sort.Strings(extra)
	order = append(order, extra...)

	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.cache = cache
	cc.order = order

	return nil
}

func (cc *ConfigCache) GetConfig(name string) (*SourceConfig, error) {
	cc.mu.RLock()
	defer cc.mu.RUnlock()

	sourceConfig, ok := cc.cache[name]
	if !ok {
		return nil, fmt.Errorf("source config with name '%s' not found", name)
	}
	copied := *sourceConfig
	return &copied, nil
}

// GetConfigs returns every source in resolution order.
func (cc *ConfigCache) GetConfigs() []SourceConfig {
	cc.mu.RLock()
	defer cc.mu.RUnlock()

	configs := make([]SourceConfig, 0, len(cc.order))
	for _, name := range cc.order {
		configs = append(configs, *cc.cache[name])
	}
	return configs
}

func (cc *ConfigCache) GetEnabledConfigs() []SourceConfig {
	configs := cc.GetConfigs()
	return slices.DeleteFunc(configs, func(c SourceConfig) bool { return !c.Enabled })
}

func (cc *ConfigCache) GetConfigCount() int {
	cc.mu.RLock()
	defer cc.mu.RUnlock()
	return len(cc.order)
}

func (cc *ConfigCache) defaultConfig(name string) *SourceConfig {
	sourceType := cc.defaults.Type
	if sourceType == "" {
		sourceType = SourceTypeAPI
	}

	return &SourceConfig{
		Name:    name,
		Type:    sourceType,
		Flairs:  slices.Clone(cc.defaults.Flairs),
		Limit:   cc.defaults.Limit,
		Enabled: true,
	}
}

func (cc *ConfigCache) configFiles() ([]string, error) {
	if cc.sourcesDir == "" {
		return nil, nil
	}
	if _, err := os.Stat(cc.sourcesDir); os.IsNotExist(err) {
		return nil, nil
	}

	files, err := filepath.Glob(filepath.Join(cc.sourcesDir, "*.yml"))
	if err != nil {
		return nil, fmt.Errorf("failed to find YML files: %w", err)
	}
	sort.Strings(files)
	return files, nil
}

// parseConfig overlays the YAML file on base; keys absent from the file keep base values.
func (cc *ConfigCache) parseConfig(configFile string, base SourceConfig) (*SourceConfig, error) {
	data, err := os.ReadFile(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	sourceConfig := base
	if err := yaml.Unmarshal(data, &sourceConfig); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	sourceConfig.Name = base.Name
	sourceConfig.Flairs = cleanFlairs(sourceConfig.Flairs)

	if err := cc.validateConfig(&sourceConfig); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", configFile, err)
	}

	return &sourceConfig, nil
}

func (cc *ConfigCache) validateConfig(sourceConfig *SourceConfig) error {
	if sourceConfig.Limit < 0 {
		return fmt.Errorf("limit must be non-negative")
	}

	switch sourceConfig.Type {
	case SourceTypeAPI, SourceTypeRSS:
	default:
		return fmt.Errorf("invalid source type: %s", sourceConfig.Type)
	}

	return nil
}

func cleanFlairs(flairs []string) []string {
	cleaned := make([]string, 0, len(flairs))
	for _, flair := range flairs {
		if flair = strings.TrimSpace(flair); flair != "" {
			cleaned = append(cleaned, flair)
		}
	}
	return cleaned
}
