package linter

import (
	"context"
	"strings"
	"unicode/utf16"

	"github.com/mattjoyce/eslint-node/internal/config"
	"github.com/mattjoyce/eslint-node/internal/engine"
	"github.com/mattjoyce/eslint-node/internal/protocol"
)

// Fixed excerpts shown in place of engine results.
const (
	RemoteFileExcerpt     = "Remote file open; eslint-node is disabled for this file."
	ConfigNotFoundExcerpt = "Error while running ESLint: No ESLint configuration found."
)

// Reasons a LintReport carries no fresh results.
const (
	SkipInactive = "inactive"
	SkipNoPath   = "no-path"
	SkipStale    = "stale"
)

// Solution is one edit that resolves a message.
type Solution struct {
	Position    protocol.Position `json:"position"`
	ReplaceWith string            `json:"replaceWith"`
}

// Message is a diagnostic in the shape editors consume.
type Message struct {
	Severity  string            `json:"severity"`
	Excerpt   string            `json:"excerpt"`
	URL       string            `json:"url,omitempty"`
	RuleID    string            `json:"ruleId,omitempty"`
	Location  protocol.Location `json:"location"`
	Solutions []Solution        `json:"solutions,omitempty"`
}

// LintReport is the answer to a lint request. When Skipped is set, Messages
// is nil and earlier results for the file should be left as they are.
type LintReport struct {
	FilePath string    `json:"filePath"`
	Messages []Message `json:"messages"`
	Skipped  string    `json:"skipped,omitempty"`
}

// Lint runs a lint job for req. Failures the error policy handles come back
// as a report; only failures it cannot place are returned as errors.
func (s *Service) Lint(ctx context.Context, req Request) (*LintReport, error) {
	report := &LintReport{FilePath: req.FilePath}
	if s.Inactive() {
		s.logger.Debug("inactive; skipping lint", "file", req.FilePath)
		report.Skipped = SkipInactive
		return report, nil
	}
	if req.FilePath == "" {
		report.Skipped = SkipNoPath
		return report, nil
	}
	if strings.Contains(req.FilePath, "://") {
		var text string
		if req.Contents != nil {
			text = *req.Contents
		}
		report.Messages = []Message{{
			Severity: "warning",
			Excerpt:  RemoteFileExcerpt,
			Location: protocol.Location{File: req.FilePath, Position: firstLineRange(text)},
		}}
		return report, nil
	}

	text, err := req.text()
	if err != nil {
		return nil, err
	}
	opts := s.Options(req.ProjectPath)

	resp, err := s.send(ctx, protocol.JobLint, req, &opts, &text)
	if err != nil {
		msgs, herr := s.HandleError(err, protocol.JobLint, req, text)
		if msgs == nil {
			report.Skipped = skipReason(err)
		}
		report.Messages = msgs
		return report, herr
	}

	if req.CurrentContents != nil && req.CurrentContents() != text {
		report.Skipped = SkipStale
		return report, nil
	}

	report.Messages = s.convert(resp.Results, text, s.shouldAutoFix(req, opts))
	return report, nil
}

// shouldAutoFix reports whether a fix-on-save job is about to run for req.
func (s *Service) shouldAutoFix(req Request, opts config.Options) bool {
	if s.Inactive() || req.IsModified {
		return false
	}
	return opts.Autofix.FixOnSave
}

// convert turns worker messages into editor messages. Fixable messages are
// dropped when a fix-on-save job will take care of them.
func (s *Service) convert(results []protocol.Message, text string, willAutoFix bool) []Message {
	out := make([]Message, 0, len(results))
	var offsets *engine.Offsets
	for _, m := range results {
		msg := Message{
			Severity: m.Severity,
			Excerpt:  m.Excerpt,
			URL:      m.URL,
			RuleID:   m.RuleID,
			Location: m.Location,
		}
		if m.Fix != nil {
			if willAutoFix {
				continue
			}
			if offsets == nil {
				offsets = engine.NewOffsets(text)
			}
			msg.Solutions = solutionsForFix(*m.Fix, offsets)
		}
		out = append(out, msg)
	}
	return out
}

func solutionsForFix(fix protocol.Fix, offsets *engine.Offsets) []Solution {
	startRow, startCol := offsets.Position(fix.Range[0])
	endRow, endCol := offsets.Position(fix.Range[1])
	return []Solution{{
		Position:    protocol.Position{{startRow, startCol}, {endRow, endCol}},
		ReplaceWith: fix.Text,
	}}
}

// firstLineRange spans the first line of text, in UTF-16 columns.
func firstLineRange(text string) protocol.Position {
	line, _, _ := strings.Cut(text, "\n")
	line = strings.TrimSuffix(line, "\r")
	return protocol.Position{{0, 0}, {0, len(utf16.Encode([]rune(line)))}}
}
