package coordcache

import (
	"fmt"
	"strings"
)

// InvalidationRule declares one related-cache eviction applied after a key in
// the source cache is invalidated. Exactly one of Key or Pattern must be set;
// both may reference the invalidated key through the "{key}" placeholder.
//
// Example (YAML):
//
//	invalidation_rules:
//	  places:
//	    - cache: place-nearby
//	      pattern: "{key}*"
//	    - cache: place-category
//	      pattern: "*"
//	  users:
//	    - cache: user-sessions
//	      key: "{key}"
//
// Adding a relationship is a data change, not a code change. Related
// evictions do not cascade into further rules, so rule tables cannot loop.
type InvalidationRule struct {
	Cache   string `yaml:"cache"`
	Key     string `yaml:"key,omitempty"`
	Pattern string `yaml:"pattern,omitempty"`
}

const keyPlaceholder = "{key}"

func (r InvalidationRule) validate(source string) error {
	if r.Cache == "" {
		return fmt.Errorf("invalidation rule for %q: cache is required", source)
	}
	if (r.Key == "") == (r.Pattern == "") {
		return fmt.Errorf("invalidation rule %q -> %q: exactly one of key or pattern must be set", source, r.Cache)
	}
	return nil
}

func (r InvalidationRule) expand(key string) (target string, isPattern bool) {
	if r.Pattern != "" {
		return strings.ReplaceAll(r.Pattern, keyPlaceholder, key), true
	}
	return strings.ReplaceAll(r.Key, keyPlaceholder, key), false
}

func validateRules(rules map[string][]InvalidationRule) error {
	for source, rs := range rules {
		for _, r := range rs {
			if err := r.validate(source); err != nil {
				return err
			}
		}
	}
	return nil
}
