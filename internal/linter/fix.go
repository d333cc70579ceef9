package linter

import (
	"context"
	"fmt"

	"github.com/mattjoyce/eslint-node/internal/protocol"
)

// FixReport is the answer to a fix request.
type FixReport struct {
	FilePath string `json:"filePath"`
	FixCount int    `json:"fixCount"`
	Message  string `json:"message,omitempty"`
	Skipped  string `json:"skipped,omitempty"`
}

// Fix applies every available fix to the file on disk. An explicit fix wakes
// a sleeping service for its duration; a fix on save does not.
func (s *Service) Fix(ctx context.Context, req Request) (*FixReport, error) {
	report := &FixReport{FilePath: req.FilePath}
	opts := s.Options(req.ProjectPath)

	if req.OnSave {
		if !s.shouldAutoFix(req, opts) {
			report.Skipped = "fix-on-save"
			return report, nil
		}
	} else if s.Wake() {
		defer s.sleep("fix finished while inactive")
	}

	if req.IsModified {
		s.notify(LevelError, "eslint-node: Please save before fixing.", "")
		return nil, ErrModified
	}

	text, err := req.text()
	if err != nil {
		return nil, err
	}
	if len(text) == 0 {
		report.Skipped = "empty"
		return report, nil
	}

	resp, err := s.send(ctx, protocol.JobFix, req, &opts, &text)
	if err != nil {
		_, _ = s.HandleError(err, protocol.JobFix, req, text)
		return nil, err
	}

	if resp.FixCount != nil {
		report.FixCount = *resp.FixCount
	}
	report.Message = fixMessage(report.FixCount)
	if !req.OnSave {
		s.notify(LevelSuccess, report.Message, "")
	}
	return report, nil
}

func fixMessage(n int) string {
	switch {
	case n == 1:
		return "Applied 1 fix."
	case n > 1:
		return fmt.Sprintf("Applied %d fixes.", n)
	default:
		return "Nothing to fix."
	}
}
