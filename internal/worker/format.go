package worker

import (
	"slices"

	"github.com/mattjoyce/eslint-node/internal/config"
	"github.com/mattjoyce/eslint-node/internal/engine"
	"github.com/mattjoyce/eslint-node/internal/protocol"
)

var severities = []string{"info", "warning", "error"}

type formatOptions struct {
	key              string
	isModified       bool
	isFixJob         bool
	lintMessageCount int
}

func severityName(level int) string {
	if level >= 0 && level < len(severities) {
		return severities[level]
	}
	return "error"
}

func messagePosition(m engine.Message) protocol.Position {
	if m.Fatal {
		// parse errors carry a single point; span from the line start to it
		return protocol.Position{
			{m.Line - 1, 0},
			{m.Line - 1, max(m.Column-1, 0)},
		}
	}
	endLine, endColumn := m.EndLine, m.EndColumn
	if endLine == 0 {
		endLine, endColumn = m.Line, m.Column
	}
	return protocol.Position{
		{m.Line - 1, m.Column - 1},
		{endLine - 1, endColumn - 1},
	}
}

// formatResults turns engine results into the reply for a lint or fix job.
func formatResults(results []engine.Result, rules map[string]protocol.RuleMeta, opts config.Options, fo formatOptions) *protocol.Result {
	suppress := fo.isModified && !fo.isFixJob
	messages := make([]protocol.Message, 0)

	for _, r := range results {
		for _, m := range r.Messages {
			if suppress && opts.Autofix.IgnoreFixableRulesWhileTyping && m.Fix != nil {
				continue
			}
			if suppress && m.RuleID != "" && slices.Contains(opts.Disabling.RulesToSilenceWhileTyping, m.RuleID) {
				continue
			}

			excerpt := m.Message
			if opts.Advanced.ShowRuleIDInMessage {
				if m.Fatal {
					excerpt += " (Fatal)"
				} else if m.RuleID != "" {
					excerpt += " (" + m.RuleID + ")"
				}
			}

			out := protocol.Message{
				Severity: severityName(m.Severity),
				Location: protocol.Location{File: r.FilePath, Position: messagePosition(m)},
				Fix:      m.Fix,
				Excerpt:  excerpt,
				RuleID:   m.RuleID,
			}
			if meta, ok := rules[m.RuleID]; ok {
				out.URL = meta.Docs.URL
			}
			messages = append(messages, out)
		}
	}

	if rules == nil {
		rules = map[string]protocol.RuleMeta{}
	}
	res := &protocol.Result{Key: fo.key, Results: messages, Rules: rules}
	if fo.isFixJob {
		n := 0
		if fo.lintMessageCount > 0 {
			n = fo.lintMessageCount - len(messages)
		}
		res.FixCount = &n
	}
	return res
}
