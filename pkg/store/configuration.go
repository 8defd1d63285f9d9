package store

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/open-feature/assignd/pkg/model"
)

// Configuration is an immutable snapshot of flag and bandit definitions.
// Refreshing means building a new Configuration and swapping it in.
type Configuration struct {
	fetchedAt time.Time
	flags     model.UniversalFlagConfig
	bandits   *model.BanditResponse

	entries map[string]*model.TryParse[model.Flag]

	// flag key -> variation value -> bandit variation
	flagToBandit map[string]map[string]model.BanditVariation
}

// FromServerResponse builds a Configuration. It never fails: flags that did not
// parse are kept in their failed state and logged once here.
func FromServerResponse(flags model.UniversalFlagConfig, bandits *model.BanditResponse, logger log.FieldLogger) *Configuration {
	if logger == nil {
		logger = log.StandardLogger()
	}
	if flags.Flags == nil {
		flags.Flags = map[string]model.TryParse[model.Flag]{}
	}

	entries := make(map[string]*model.TryParse[model.Flag], len(flags.Flags))
	for _, key := range sortedKeys(flags.Flags) {
		entry := flags.Flags[key]
		entries[key] = &entry
		if !entry.Ok() {
			logger.WithFields(log.Fields{
				"flag":  key,
				"error": entry.Err,
			}).Warn("flag failed to parse, evaluations will report FLAG_PARSE_FAILED")
		}
	}

	index := map[string]map[string]model.BanditVariation{}
	for _, variations := range flags.Bandits {
		for _, bv := range variations {
			byValue, ok := index[bv.FlagKey]
			if !ok {
				byValue = map[string]model.BanditVariation{}
				index[bv.FlagKey] = byValue
			}
			byValue[bv.VariationValue] = bv
		}
	}

	return &Configuration{
		fetchedAt:    time.Now(),
		flags:        flags,
		bandits:      bandits,
		entries:      entries,
		flagToBandit: index,
	}
}

// ParseUniversalFlagConfig decodes a flag document. Only a malformed envelope
// is an error; individual flags are tagged with their own parse result.
func ParseUniversalFlagConfig(data []byte) (model.UniversalFlagConfig, error) {
	var ufc model.UniversalFlagConfig
	if err := json.Unmarshal(data, &ufc); err != nil {
		return model.UniversalFlagConfig{}, fmt.Errorf("unable to decode flag configuration: %w", err)
	}
	return ufc, nil
}

func ParseBanditResponse(data []byte) (*model.BanditResponse, error) {
	var br model.BanditResponse
	if err := json.Unmarshal(data, &br); err != nil {
		return nil, fmt.Errorf("unable to decode bandit configuration: %w", err)
	}
	return &br, nil
}

func (c *Configuration) FetchedAt() time.Time { return c.fetchedAt }

// GetFlag returns the flag entry, which may be in a parse-failed state.
func (c *Configuration) GetFlag(flagKey string) (*model.TryParse[model.Flag], bool) {
	f, ok := c.entries[flagKey]
	return f, ok
}

func (c *Configuration) GetBanditKey(flagKey, variationValue string) (string, bool) {
	bv, ok := c.flagToBandit[flagKey][variationValue]
	if !ok {
		return "", false
	}
	return bv.Key, true
}

func (c *Configuration) GetBandit(banditKey string) (*model.BanditConfiguration, bool) {
	if c.bandits == nil {
		return nil, false
	}
	b, ok := c.bandits.Bandits[banditKey]
	if !ok {
		return nil, false
	}
	return &b, true
}

// FlagKeys returns all flag keys in sorted order.
func (c *Configuration) FlagKeys() []string {
	return sortedKeys(c.flags.Flags)
}

type Metadata struct {
	FetchedAt   time.Time `json:"fetchedAt"`
	CreatedAt   time.Time `json:"createdAt"`
	Environment string    `json:"environment"`
	Flags       int       `json:"flags"`
	FailedFlags []string  `json:"failedFlags,omitempty"`
	Bandits     int       `json:"bandits"`
}

func (c *Configuration) Metadata() Metadata {
	m := Metadata{
		FetchedAt:   c.fetchedAt,
		CreatedAt:   c.flags.CreatedAt,
		Environment: c.flags.Environment.Name,
		Flags:       len(c.flags.Flags),
	}
	for _, key := range sortedKeys(c.flags.Flags) {
		if !c.flags.Flags[key].Ok() {
			m.FailedFlags = append(m.FailedFlags, key)
		}
	}
	if c.bandits != nil {
		m.Bandits = len(c.bandits.Bandits)
	}
	return m
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
