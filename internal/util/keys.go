package util

import "strings"

// EntryKey builds the storage key for a cache entry:
//
//	<ns>:<cacheName>:<key>
func EntryKey(ns, cacheName, key string) string {
	return ns + ":" + cacheName + ":" + key
}

// EntryPattern builds a SCAN pattern scoped to one namespace and cache name.
// keyPattern may contain glob metacharacters ("seoul*"); ns and cacheName are
// literal prefixes, which keeps the scan from crossing into sibling caches.
func EntryPattern(ns, cacheName, keyPattern string) string {
	return ns + ":" + cacheName + ":" + keyPattern
}

// StatsKey builds the hash key holding hit/miss/eviction counters.
func StatsKey(ns, cacheName string) string {
	return ns + ":cache:stats:" + cacheName
}

// ExtractKey returns the caller key portion of a full storage key, or
// ("", false) when the key does not carry the expected <ns>:<cache>:<key>
// shape. The caller key itself may contain colons.
func ExtractKey(ns, cacheName, storageKey string) (string, bool) {
	prefix := ns + ":" + cacheName + ":"
	if !strings.HasPrefix(storageKey, prefix) {
		return "", false
	}
	return storageKey[len(prefix):], true
}
