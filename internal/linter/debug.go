package linter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"runtime"
	"time"

	"github.com/mattjoyce/eslint-node/internal/config"
	"github.com/mattjoyce/eslint-node/internal/jobmanager"
	"github.com/mattjoyce/eslint-node/internal/nodebin"
	"github.com/mattjoyce/eslint-node/internal/protocol"
)

const unknown = "(unknown)"

// DebugReport collects what a person needs to work out why linting behaves
// the way it does.
type DebugReport struct {
	PackageVersion       string         `json:"packageVersion"`
	Config               config.Options `json:"packageConfig"`
	FilePath             string         `json:"filePath"`
	EslintPath           string         `json:"eslintPath"`
	EslintVersion        string         `json:"eslintVersion"`
	IsIncompatible       bool           `json:"isIncompatible"`
	IsOverlap            bool           `json:"isOverlap"`
	IsBuiltIn            bool           `json:"isBuiltIn"`
	NodePath             string         `json:"nodePath"`
	NodeVersion          string         `json:"nodeVersion"`
	WorkerPid            int            `json:"workerPid,omitempty"`
	WhichPackageWillLint string         `json:"whichPackageWillLint"`
	HoursSinceRestart    float64        `json:"hoursSinceRestart"`
	Platform             string         `json:"platform"`
}

// Debug asks the worker which ESLint it would use for req and reports it
// alongside the host's own view. A worker that cannot start yields
// placeholder engine values rather than an error.
func (s *Service) Debug(ctx context.Context, req Request) (*DebugReport, error) {
	if s.Wake() {
		defer s.sleep("debug finished while inactive")
	}
	opts := s.Options(req.ProjectPath)

	resp, err := s.send(ctx, protocol.JobDebug, req, &opts, nil)
	if err != nil {
		if !errors.Is(err, jobmanager.ErrInvalidWorker) {
			s.notify(LevelError, err.Error(), "")
			return nil, err
		}
		resp = &protocol.Response{EslintPath: unknown, EslintVersion: unknown}
	}

	nodePath := opts.NodeBin
	if nodePath == "node" {
		if resolved, err := nodebin.ResolveAbsolutePath(nodePath); err == nil {
			nodePath = resolved
		}
	}
	nodeVersion := unknown
	if v, err := s.validator.Validate(ctx, opts.NodeBin); err == nil {
		nodeVersion = v
	}

	r := &DebugReport{
		PackageVersion:    s.version,
		Config:            opts,
		FilePath:          req.FilePath,
		EslintPath:        resp.EslintPath,
		EslintVersion:     resp.EslintVersion,
		IsIncompatible:    resp.IsIncompatible,
		IsOverlap:         resp.IsOverlap && req.LegacyPackagePresent,
		IsBuiltIn:         resp.IsBuiltIn,
		NodePath:          nodePath,
		NodeVersion:       nodeVersion,
		WorkerPid:         resp.WorkerPid,
		HoursSinceRestart: math.Round(time.Since(s.started).Hours()*10) / 10,
		Platform:          runtime.GOOS,
	}
	r.WhichPackageWillLint = whichPackageWillLint(r.IsIncompatible, r.IsOverlap, req.LegacyPackagePresent)
	return r, nil
}

func whichPackageWillLint(incompatible, overlap, legacyPresent bool) string {
	switch {
	case incompatible && legacyPresent:
		return LegacyPackageName
	case incompatible:
		return NothingWillLint
	case overlap && legacyPresent:
		return LegacyPackageName
	default:
		return PackageName
	}
}

// Lines renders the report as plain text, one fact per line.
func (r *DebugReport) Lines() []string {
	pid := unknown
	if r.WorkerPid != 0 {
		pid = fmt.Sprint(r.WorkerPid)
	}
	cfg, _ := json.MarshalIndent(r.Config, "", "  ")
	return []string{
		fmt.Sprintf("%s version: %s", PackageName, r.PackageVersion),
		fmt.Sprintf("Worker using Node at path: %s", r.NodePath),
		fmt.Sprintf("Worker Node version: %s", r.NodeVersion),
		fmt.Sprintf("Worker PID: %s", pid),
		fmt.Sprintf("ESLint version: %s", r.EslintVersion),
		fmt.Sprintf("ESLint location: %s", r.EslintPath),
		fmt.Sprintf("ESLint is built in: %t", r.IsBuiltIn),
		fmt.Sprintf("Linting in this project performed by: %s", r.WhichPackageWillLint),
		fmt.Sprintf("Hours since last restart: %v", r.HoursSinceRestart),
		fmt.Sprintf("Platform: %s", r.Platform),
		fmt.Sprintf("Current file: %s", r.FilePath),
		fmt.Sprintf("%s configuration: %s", PackageName, cfg),
	}
}
