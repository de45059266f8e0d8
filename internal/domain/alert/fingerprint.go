package alert

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
)

// Labels that change between scrapes of the same underlying alert and must
// not participate in identity.
var volatileLabels = map[string]bool{
	"__alert_rule_uid__": true,
	"grafana_folder":     true,
	"alertstate":         true,
	"ref_id":             true,
}

// Fingerprint derives the stable deduplication key for an alert: a hash over
// the source name and the sorted identity labels. Two alerts with the same
// fingerprint are the same underlying alert, across scrape runs. Annotations
// and timestamps never participate.
func (a Alert) Fingerprint() string {
	keys := make([]string, 0, len(a.Labels))
	for k := range a.Labels {
		if volatileLabels[k] {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(a.Source)
	for _, k := range keys {
		b.WriteByte('\n')
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(a.Labels[k])
	}

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:8])
}
