package projector

import (
	"sort"
	"strings"
	"unicode"

	"github.com/dyike/TradeLens/internal/models"
)

// ClusterLabeler names cluster keys.
//
// The service identifies clusters by index ("0", "1", ...). Index order is
// not stable across service versions, so names come from, in order: the
// clusterLabels map in the result, the configured Fallback map, and
// finally "Cluster {key}".
type ClusterLabeler struct {
	Fallback map[string]string
}

// DefaultClusterLabels is the mapping assumed when neither the service nor
// the configuration names the clusters.
func DefaultClusterLabels() map[string]string {
	return map[string]string{
		"0": "Long Term",
		"1": "Short Term",
	}
}

func (l ClusterLabeler) Label(patterns *models.TradePatterns, key string) string {
	if patterns != nil {
		if name := strings.TrimSpace(patterns.ClusterLabels[key]); name != "" {
			return name
		}
	}
	if name := strings.TrimSpace(l.Fallback[key]); name != "" {
		return name
	}
	return "Cluster " + key
}

var pieColors = []string{
	"#3B82F6", "#F59E0B", "#10B981", "#EF4444", "#8B5CF6", "#EC4899",
}

// ClusterPies returns one pie per cluster statistic, sorted by statistic
// name, with slices sorted by cluster key. Statistics without any value
// are skipped.
func ClusterPies(result *models.AnalysisResult, labels ClusterLabeler) []*models.ChartSeries {
	if result == nil || result.TradePatterns == nil || result.TradePatterns.Clusters == nil {
		return nil
	}
	patterns := result.TradePatterns

	stats := make([]string, 0, len(patterns.Clusters))
	for stat := range patterns.Clusters {
		stats = append(stats, stat)
	}
	sort.Strings(stats)

	pies := make([]*models.ChartSeries, 0, len(stats))
	for _, stat := range stats {
		byCluster := patterns.Clusters[stat]
		if len(byCluster) == 0 {
			continue
		}
		keys := make([]string, 0, len(byCluster))
		for key := range byCluster {
			keys = append(keys, key)
		}
		SortClusterKeys(keys)

		names := make([]string, len(keys))
		values := make([]float64, len(keys))
		colors := make([]string, len(keys))
		for i, key := range keys {
			names[i] = labels.Label(patterns, key)
			values[i] = byCluster[key]
			colors[i] = pieColors[i%len(pieColors)]
		}

		title := StatTitle(stat)
		pies = append(pies, &models.ChartSeries{
			Title:  title + " by Cluster",
			Kind:   models.ChartPie,
			Labels: names,
			Datasets: []models.Dataset{{
				Label:  title,
				Values: values,
				Style:  models.StyleHints{Fill: colors},
			}},
		})
	}
	if len(pies) == 0 {
		return nil
	}
	return pies
}

// SortClusterKeys orders numeric keys numerically ("2" before "10") and
// everything else lexically after them.
func SortClusterKeys(keys []string) {
	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		an, bn := isDigits(a), isDigits(b)
		switch {
		case an && bn:
			if len(a) != len(b) {
				return len(a) < len(b)
			}
			return a < b
		case an != bn:
			return an
		default:
			return a < b
		}
	})
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// StatTitle turns "mean_duration" or "tradeCount" into "Mean Duration" and
// "Trade Count".
func StatTitle(stat string) string {
	var words []string
	var cur []rune
	flush := func() {
		if len(cur) > 0 {
			words = append(words, string(cur))
			cur = cur[:0]
		}
	}
	prevLower := false
	for _, r := range stat {
		switch {
		case r == '_' || r == '-' || r == ' ' || r == '.':
			flush()
			prevLower = false
			continue
		case unicode.IsUpper(r) && prevLower:
			flush()
		}
		cur = append(cur, r)
		prevLower = unicode.IsLower(r) || unicode.IsDigit(r)
	}
	flush()

	for i, w := range words {
		runes := []rune(strings.ToLower(w))
		runes[0] = unicode.ToUpper(runes[0])
		words[i] = string(runes)
	}
	if len(words) == 0 {
		return stat
	}
	return strings.Join(words, " ")
}
