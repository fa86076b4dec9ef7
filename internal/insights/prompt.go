package insights

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/gmsas95/medtrack/internal/analytics"
	"github.com/gmsas95/medtrack/internal/security"
)

const maxTips = 3

const systemPrompt = `You are a friendly, encouraging health assistant helping patients improve their medication adherence.

Based on the user's medication adherence data below, provide 3 SHORT, ACTIONABLE insights.

RULES:
1. Be encouraging, not judgmental
2. Each insight should be 1-2 sentences MAX
3. Focus on specific, actionable tips
4. Reference their actual data (numbers, times, medications)
5. Use simple language, avoid medical jargon
6. Add an emoji at the start of each insight

Format your response as a JSON array of strings like:
["💡 Insight 1 here", "⏰ Insight 2 here", "🎯 Insight 3 here"]

ONLY return the JSON array, nothing else.`

type summaryInput struct {
	adherence  *analytics.AdherenceReport
	timeOfDay  *analytics.TimeOfDayReport
	streak     *analytics.Streak
	comparison *analytics.Comparison
}

// buildSummary renders the numbers the summarizer gets to see.
func buildSummary(in summaryInput) string {
	var b strings.Builder
	line := func(format string, args ...any) {
		fmt.Fprintf(&b, format, args...)
		b.WriteByte('\n')
	}

	if a := in.adherence; a != nil {
		line("Overall Adherence: %.1f%%", a.Summary.AdherencePercentage)
		line("Total Doses: %d (Taken: %d, Missed: %d)", a.Summary.Total, a.Summary.Taken, a.Summary.Missed)
	}
	if s := in.streak; s != nil {
		line("Current Streak: %d days", s.Current)
		line("Best Streak Ever: %d days", s.Best)
	}
	if c := in.comparison; c != nil {
		sign := ""
		if c.Change > 0 {
			sign = "+"
		}
		line("Week Trend: %s (%s%.1f%% from last week)", c.Trend, sign, c.Change)
	}
	if t := in.timeOfDay; t != nil && t.Worst != "" {
		for _, bucket := range t.Buckets {
			if bucket.Bucket == t.Worst {
				line("Problem Time: %s (%.1f%% missed)", bucket.Bucket, bucket.MissRate)
			}
		}
	}
	if a := in.adherence; a != nil && len(a.ByMedication) > 0 {
		line("By Medication:")
		for _, m := range a.ByMedication {
			line("  - %s: %.1f%%", security.PromptSafe(m.MedicationName), m.AdherencePercentage)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func userPrompt(in summaryInput) string {
	return "USER'S MEDICATION ADHERENCE DATA:\n" + buildSummary(in) + "\n\nGenerate 3 personalized insights for this user."
}

// ParseTips extracts up to three tips from a model reply: a JSON array,
// a JSON array embedded in prose, or failing both, the substantial lines.
func ParseTips(reply string) []string {
	reply = strings.TrimSpace(reply)

	if tips := decodeTips(reply); len(tips) > 0 {
		return tips
	}
	if start, end := strings.Index(reply, "["), strings.LastIndex(reply, "]"); start >= 0 && end > start {
		if tips := decodeTips(reply[start : end+1]); len(tips) > 0 {
			return tips
		}
	}

	var tips []string
	for _, l := range strings.Split(reply, "\n") {
		l = strings.TrimLeft(strings.TrimSpace(l), "0123456789.-) ")
		if len(l) <= 10 {
			continue
		}
		tips = append(tips, l)
		if len(tips) == maxTips {
			break
		}
	}
	if len(tips) > 0 {
		return tips
	}
	return FallbackTips()
}

func decodeTips(s string) []string {
	var tips []string
	if err := json.Unmarshal([]byte(s), &tips); err != nil {
		return nil
	}
	out := tips[:0]
	for _, t := range tips {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	if len(out) > maxTips {
		out = out[:maxTips]
	}
	return out
}

// FallbackTips are served when no summarizer reply is available.
func FallbackTips() []string {
	return []string{
		"💡 Try setting phone alarms for each medication time to build a consistent habit.",
		"⏰ Take your medications at the same time every day - consistency is key!",
		"🎯 Keep medications visible - out of sight often means out of mind.",
	}
}
