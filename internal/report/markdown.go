package report

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dyike/TradeLens/internal/models"
	"github.com/dyike/TradeLens/internal/presenter"
	"github.com/dyike/TradeLens/internal/projector"
)

// Markdown renders a saved run as a markdown report. Advice is re-emitted
// from its parsed spans so only bold survives.
func Markdown(result *models.AnalysisResult, s Summary, currency string) string {
	var b strings.Builder

	b.WriteString("# Trade Pattern Analysis\n\n")
	fmt.Fprintf(&b, "**Run:** %s  \n", s.ID)
	fmt.Fprintf(&b, "**Generated:** %s  \n", s.CreatedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "**Trades:** %d  \n", s.Trades)
	if len(s.Symbols) > 0 {
		fmt.Fprintf(&b, "**Instruments:** %s  \n", strings.Join(s.Symbols, ", "))
	}
	fmt.Fprintf(&b, "**Net Profit:** %s\n\n", presenter.FormatMoney(s.NetProfit, currency))

	b.WriteString("## Trades\n\n")
	var trades []models.TradeRecord
	if result.TradePatterns != nil {
		trades = result.TradePatterns.TradeData
	}
	if len(trades) == 0 {
		b.WriteString("_No trades._\n\n")
	} else {
		p := presenter.New(presenter.Options{Currency: currency})
		p.SetResult(result)
		p.SetExpanded(true)
		b.WriteString("| Trade | Symbol | Actions | Buy Date | Sell Date | Duration (days) | Profit |\n")
		b.WriteString("|---|---|---|---|---|---|---|\n")
		for _, r := range p.Rows() {
			fmt.Fprintf(&b, "| %s | %s | %s | %s | %s | %s | %s |\n",
				cell(r.ID), cell(r.Symbol), cell(r.Actions), cell(r.BuyDate), cell(r.SellDate), r.Duration, r.Profit)
		}
		b.WriteString("\n")
	}

	if profit := projector.ProfitByInstrument(result); profit != nil {
		b.WriteString("## Profit by Instrument\n\n")
		for i, sym := range profit.Labels {
			fmt.Fprintf(&b, "- %s: %.2f\n", sym, profit.Datasets[0].Values[i])
		}
		b.WriteString("\n")
	}

	if result.TradePatterns != nil && len(result.TradePatterns.Clusters) > 0 {
		b.WriteString("## Clusters\n\n")
		labels := projector.ClusterLabeler{Fallback: projector.DefaultClusterLabels()}
		stats := make([]string, 0, len(result.TradePatterns.Clusters))
		for stat := range result.TradePatterns.Clusters {
			stats = append(stats, stat)
		}
		sort.Strings(stats)
		for _, stat := range stats {
			fmt.Fprintf(&b, "### %s\n\n", projector.StatTitle(stat))
			byCluster := result.TradePatterns.Clusters[stat]
			keys := make([]string, 0, len(byCluster))
			for k := range byCluster {
				keys = append(keys, k)
			}
			projector.SortClusterKeys(keys)
			for _, k := range keys {
				fmt.Fprintf(&b, "- %s: %g\n", labels.Label(result.TradePatterns, k), byCluster[k])
			}
			b.WriteString("\n")
		}
	}

	b.WriteString("## Advice\n\n")
	spans := presenter.ParseAdvice(result.PersonalizedAdvice)
	if len(spans) == 0 {
		b.WriteString("_No advice._\n")
	}
	for _, sp := range spans {
		text := escapeMarkdown(sp.Text)
		if sp.Strong {
			text = "**" + text + "**"
		}
		b.WriteString(text)
	}
	b.WriteString("\n")
	return b.String()
}

func cell(s string) string {
	return strings.ReplaceAll(escapeMarkdown(s), "\n", " ")
}

var markdownEscaper = strings.NewReplacer(
	`\`, `\\`, "*", `\*`, "_", `\_`, "`", "\\`", "<", "&lt;", ">", "&gt;", "|", `\|`, "[", `\[`, "]", `\]`,
)

func escapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}
