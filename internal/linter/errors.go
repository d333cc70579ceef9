package linter

import (
	"errors"
	"fmt"

	"github.com/mattjoyce/eslint-node/internal/jobmanager"
	"github.com/mattjoyce/eslint-node/internal/protocol"
)

// HandleError applies the failure policy for a job of jobType run for req
// over text. It returns the messages to show in place of results (nil means
// leave earlier results alone) and err itself when the policy has no place
// for it.
//
//   - invalid worker: notify once per session and sleep
//   - config-not-found: sleep when disableWhenNoEslintConfig is set; otherwise
//     a notification for fixes and a single lint message for lints
//   - no-project, version-overlap: sleep
//   - incompatible-version: sleep, and warn once unless the legacy package is
//     present or warnAboutOldEslint is off
//   - anything else: error notification
func (s *Service) HandleError(err error, jobType protocol.JobType, req Request, text string) ([]Message, error) {
	if errors.Is(err, jobmanager.ErrInvalidWorker) {
		s.notifyInvalidNodeBin()
		s.sleep("invalid-worker")
		return nil, nil
	}

	je, ok := jobmanager.AsJobError(err)
	if !ok {
		s.notify(LevelError, "eslint-node Error", err.Error())
		return nil, err
	}

	switch je.Kind {
	case jobmanager.KindConfigNotFound:
		if s.Options(req.ProjectPath).Disabling.DisableWhenNoEslintConfig {
			s.sleep(je.Kind.String())
			return []Message{}, nil
		}
		if jobType == protocol.JobFix {
			s.notify(LevelError, "eslint-node: No .eslintrc found", je.Message)
			return nil, nil
		}
		return []Message{{
			Severity: "error",
			Excerpt:  ConfigNotFoundExcerpt,
			Location: protocol.Location{File: req.FilePath, Position: firstLineRange(text)},
		}}, nil

	case jobmanager.KindNoProject, jobmanager.KindVersionOverlap:
		s.sleep(je.Kind.String())
		return nil, nil

	case jobmanager.KindIncompatibleVersion:
		s.sleep(je.Kind.String())
		warn := s.Options(req.ProjectPath).WarnAboutOldEslint

		s.mu.Lock()
		didNotify := s.notified.incompatibleVersion
		if !req.LegacyPackagePresent && !didNotify && warn {
			s.notified.incompatibleVersion = true
		} else {
			warn = false
		}
		s.mu.Unlock()

		if warn {
			s.notify(LevelWarning, "eslint-node: Incompatible ESLint", fmt.Sprintf(
				"The ESLint module in this project is of version %s; eslint-node requires a version of 7.0.0 or greater. "+
					"You can install the legacy %s package if you don't want to upgrade ESLint.\n\n"+
					"You can disable this message in settings.", je.Version, LegacyPackageName))
		}
		return nil, nil
	}

	s.notify(LevelError, "eslint-node Error", je.Message)
	return nil, err
}

func skipReason(err error) string {
	if errors.Is(err, jobmanager.ErrInvalidWorker) {
		return "invalid-worker"
	}
	if je, ok := jobmanager.AsJobError(err); ok {
		return je.Kind.String()
	}
	return "error"
}
