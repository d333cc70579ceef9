package linter

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/eslint-node/internal/config"
	"github.com/mattjoyce/eslint-node/internal/jobmanager"
	"github.com/mattjoyce/eslint-node/internal/protocol"
)

func jobErr(kind jobmanager.Kind, msg, version string) error {
	return &jobmanager.JobError{Kind: kind, Message: msg, Version: version, Key: "k"}
}

func TestHandleError(t *testing.T) {
	tests := []struct {
		name    string
		opts    func(o *config.Options)
		err     error
		jobType protocol.JobType
		req     Request
		checkFn func(t *testing.T, f *fixture, msgs []Message, err error)
	}{
		{
			name:    "invalid worker sleeps and notifies",
			err:     fmt.Errorf("%w: exec: not found", jobmanager.ErrInvalidWorker),
			jobType: protocol.JobLint,
			checkFn: func(t *testing.T, f *fixture, msgs []Message, err error) {
				assert.NoError(t, err)
				assert.Nil(t, msgs)
				assert.True(t, f.svc.Inactive())
				notes := f.notifier.all()
				require.Len(t, notes, 1)
				assert.Equal(t, LevelError, notes[0].Level)
			},
		},
		{
			name:    "config not found while disabled sleeps with empty results",
			err:     jobErr(jobmanager.KindConfigNotFound, "No ESLint configuration found.", ""),
			jobType: protocol.JobLint,
			checkFn: func(t *testing.T, f *fixture, msgs []Message, err error) {
				assert.NoError(t, err)
				require.NotNil(t, msgs)
				assert.Empty(t, msgs)
				assert.True(t, f.svc.Inactive())
			},
		},
		{
			name:    "config not found on lint becomes a message",
			opts:    func(o *config.Options) { o.Disabling.DisableWhenNoEslintConfig = false },
			err:     jobErr(jobmanager.KindConfigNotFound, "No ESLint configuration found.", ""),
			jobType: protocol.JobLint,
			checkFn: func(t *testing.T, f *fixture, msgs []Message, err error) {
				assert.NoError(t, err)
				require.Len(t, msgs, 1)
				assert.Equal(t, "error", msgs[0].Severity)
				assert.Equal(t, ConfigNotFoundExcerpt, msgs[0].Excerpt)
				assert.Equal(t, "/p/a.js", msgs[0].Location.File)
				assert.Equal(t, protocol.Position{{0, 0}, {0, 4}}, msgs[0].Location.Position)
				assert.False(t, f.svc.Inactive())
				assert.Empty(t, f.notifier.all())
			},
		},
		{
			name:    "config not found on fix notifies",
			opts:    func(o *config.Options) { o.Disabling.DisableWhenNoEslintConfig = false },
			err:     jobErr(jobmanager.KindConfigNotFound, "No ESLint configuration found.", ""),
			jobType: protocol.JobFix,
			checkFn: func(t *testing.T, f *fixture, msgs []Message, err error) {
				assert.NoError(t, err)
				assert.Nil(t, msgs)
				notes := f.notifier.all()
				require.Len(t, notes, 1)
				assert.Equal(t, "eslint-node: No .eslintrc found", notes[0].Title)
				assert.Equal(t, "No ESLint configuration found.", notes[0].Description)
			},
		},
		{
			name:    "no project sleeps",
			err:     jobErr(jobmanager.KindNoProject, "no project", ""),
			jobType: protocol.JobLint,
			checkFn: func(t *testing.T, f *fixture, msgs []Message, err error) {
				assert.NoError(t, err)
				assert.Nil(t, msgs)
				assert.True(t, f.svc.Inactive())
				assert.Empty(t, f.notifier.all())
			},
		},
		{
			name:    "version overlap sleeps",
			err:     jobErr(jobmanager.KindVersionOverlap, "overlap", "7.32.0"),
			jobType: protocol.JobLint,
			checkFn: func(t *testing.T, f *fixture, msgs []Message, err error) {
				assert.NoError(t, err)
				assert.True(t, f.svc.Inactive())
				assert.Empty(t, f.notifier.all())
			},
		},
		{
			name:    "incompatible version warns",
			err:     jobErr(jobmanager.KindIncompatibleVersion, "too old", "6.9.9"),
			jobType: protocol.JobLint,
			checkFn: func(t *testing.T, f *fixture, msgs []Message, err error) {
				assert.NoError(t, err)
				assert.True(t, f.svc.Inactive())
				notes := f.notifier.all()
				require.Len(t, notes, 1)
				assert.Equal(t, LevelWarning, notes[0].Level)
				assert.Contains(t, notes[0].Description, "6.9.9")
			},
		},
		{
			name:    "incompatible version silent with legacy package",
			err:     jobErr(jobmanager.KindIncompatibleVersion, "too old", "6.9.9"),
			jobType: protocol.JobLint,
			req:     Request{LegacyPackagePresent: true},
			checkFn: func(t *testing.T, f *fixture, msgs []Message, err error) {
				assert.True(t, f.svc.Inactive())
				assert.Empty(t, f.notifier.all())
			},
		},
		{
			name:    "incompatible version silent when warning disabled",
			opts:    func(o *config.Options) { o.WarnAboutOldEslint = false },
			err:     jobErr(jobmanager.KindIncompatibleVersion, "too old", "6.9.9"),
			jobType: protocol.JobLint,
			checkFn: func(t *testing.T, f *fixture, msgs []Message, err error) {
				assert.Empty(t, f.notifier.all())
			},
		},
		{
			name:    "unknown job error is returned",
			err:     jobErr(jobmanager.KindUnknown, "engine exploded", ""),
			jobType: protocol.JobLint,
			checkFn: func(t *testing.T, f *fixture, msgs []Message, err error) {
				assert.Error(t, err)
				assert.Nil(t, msgs)
				assert.False(t, f.svc.Inactive())
				notes := f.notifier.all()
				require.Len(t, notes, 1)
				assert.Equal(t, "engine exploded", notes[0].Description)
			},
		},
		{
			name:    "worker killed is returned",
			err:     jobmanager.ErrWorkerKilled,
			jobType: protocol.JobLint,
			checkFn: func(t *testing.T, f *fixture, msgs []Message, err error) {
				assert.ErrorIs(t, err, jobmanager.ErrWorkerKilled)
				assert.False(t, f.svc.Inactive())
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.opts)
			req := tt.req
			if req.FilePath == "" {
				req.FilePath = "/p/a.js"
				req.ProjectPath = "/p"
			}
			msgs, err := f.svc.HandleError(tt.err, tt.jobType, req, "foo;\nbar;\n")
			tt.checkFn(t, f, msgs, err)
		})
	}
}

func TestHandleError_NotifiesOncePerSession(t *testing.T) {
	f := newFixture(t, nil)
	req := Request{FilePath: "/p/a.js", ProjectPath: "/p"}

	for i := 0; i < 3; i++ {
		_, _ = f.svc.HandleError(jobErr(jobmanager.KindIncompatibleVersion, "too old", "6.0.0"), protocol.JobLint, req, "")
		_, _ = f.svc.HandleError(jobmanager.ErrInvalidWorker, protocol.JobLint, req, "")
	}
	assert.Len(t, f.notifier.all(), 2)
}

func TestHandleError_NodeChangeRearmsInvalidNotice(t *testing.T) {
	f := newFixture(t, nil)
	req := Request{FilePath: "/p/a.js", ProjectPath: "/p"}

	_, _ = f.svc.HandleError(jobmanager.ErrInvalidWorker, protocol.JobLint, req, "")
	require.Len(t, f.notifier.all(), 1)

	prev := config.DefaultOptions()
	cur := prev
	cur.NodeBin = "/opt/node"
	f.svc.OnConfigChange(t.Context(), prev, cur)

	_, _ = f.svc.HandleError(jobmanager.ErrInvalidWorker, protocol.JobLint, req, "")
	assert.Len(t, f.notifier.all(), 2)
}

func TestSkipReason(t *testing.T) {
	assert.Equal(t, "invalid-worker", skipReason(jobmanager.ErrInvalidWorker))
	assert.Equal(t, protocol.ErrTypeNoProject, skipReason(jobErr(jobmanager.KindNoProject, "", "")))
	assert.Equal(t, "error", skipReason(errors.New("x")))
}
