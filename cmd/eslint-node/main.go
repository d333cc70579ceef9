package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"runtime/debug"
	"strings"
	"time"
)

var (
	version   = "0.1.0-dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	os.Exit(runCLI(os.Args[1:]))
}

func runCLI(cliArgs []string) int {
	if len(cliArgs) < 1 {
		printUsage()
		return 1
	}

	cmd := cliArgs[0]
	args := cliArgs[1:]

	if cmd == "--version" {
		return runVersion(args)
	}

	switch cmd {
	// --- NOUNS ---
	case "daemon":
		return runDaemonNoun(args)
	case "cache":
		return runCacheNoun(args)

	// --- VERBS ---
	case "lint":
		if hasHelpFlag(args) {
			printLintHelp()
			return 0
		}
		return runLint(args)
	case "fix":
		if hasHelpFlag(args) {
			printFixHelp()
			return 0
		}
		return runFix(args)
	case "debug":
		if hasHelpFlag(args) {
			printDebugHelp()
			return 0
		}
		return runDebug(args)
	case "history":
		if hasHelpFlag(args) {
			printHistoryHelp()
			return 0
		}
		return runHistory(args)
	case "events":
		if hasHelpFlag(args) {
			printEventsHelp()
			return 0
		}
		return runEvents(args)
	case "monitor":
		if hasHelpFlag(args) {
			printMonitorHelp()
			return 0
		}
		return runMonitor(args)
	case "doctor":
		if hasHelpFlag(args) {
			printDoctorHelp()
			return 0
		}
		return runDoctor(args)
	case "worker":
		if hasHelpFlag(args) {
			printWorkerHelp()
			return 0
		}
		return runWorker(args)

	// --- ROOT ALIASES ---
	case "start":
		return runDaemonStart(args)
	case "version":
		return runVersion(args)
	case "help", "--help", "-h":
		printUsage()
		return 0

	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		printUsage()
		return 1
	}
}

type versionInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
}

func runVersion(args []string) int {
	fs := flag.NewFlagSet("version", flag.ContinueOnError)
	jsonOut := fs.Bool("json", false, "Output version metadata as JSON")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}
	if fs.NArg() > 0 {
		fmt.Fprintln(os.Stderr, "Usage: eslint-node version [--json]")
		return 1
	}

	info := currentVersionInfo()

	if *jsonOut {
		data, err := json.MarshalIndent(info, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to render version JSON: %v\n", err)
			return 1
		}
		fmt.Println(string(data))
		return 0
	}

	fmt.Printf("eslint-node %s\n", info.Version)
	fmt.Printf("commit: %s\n", info.Commit)
	fmt.Printf("built_at: %s\n", info.BuildTime)
	return 0
}

func currentVersionInfo() versionInfo {
	info := versionInfo{
		Version:   strings.TrimSpace(version),
		Commit:    "unknown",
		BuildTime: "unknown",
	}

	if info.Version == "" {
		info.Version = "0.0.0-dev"
	}

	resolvedCommit := strings.TrimSpace(gitCommit)
	if resolvedCommit == "" || resolvedCommit == "unknown" {
		resolvedCommit = strings.TrimSpace(readBuildSetting("vcs.revision"))
	}
	if resolvedCommit != "" {
		info.Commit = shortenCommit(resolvedCommit)
	}

	resolvedBuildTime := strings.TrimSpace(buildDate)
	if resolvedBuildTime == "" || resolvedBuildTime == "unknown" {
		resolvedBuildTime = strings.TrimSpace(readBuildSetting("vcs.time"))
	}
	if normalizedBuildTime, ok := normalizeBuildTimeUTC(resolvedBuildTime); ok {
		info.BuildTime = normalizedBuildTime
	}

	return info
}

func shortenCommit(commit string) string {
	if len(commit) <= 12 {
		return commit
	}
	return commit[:12]
}

func normalizeBuildTimeUTC(raw string) (string, bool) {
	if raw == "" || raw == "unknown" {
		return "", false
	}

	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return "", false
	}

	return t.UTC().Format(time.RFC3339), true
}

func readBuildSetting(key string) string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	for _, setting := range info.Settings {
		if setting.Key == key {
			return setting.Value
		}
	}
	return ""
}

func printUsage() {
	fmt.Print(`eslint-node - ESLint for editors, run out of process

Usage:
  eslint-node <command> [flags]
  eslint-node <noun> <action> [flags]

Daemon Commands:
  daemon start      Run the lint daemon in the foreground
  daemon status     Show the running daemon's health

Lint Commands:
  lint <file>       Lint a file through the daemon
  fix <file>        Fix a file in place through the daemon
  debug <file>      Show which ESLint would lint a file and how
  cache clear       Drop the worker's cached ESLint instances
  history           Show recently completed jobs

Tools:
  doctor            Check config, node and ESLint resolution
  monitor           Live view of the daemon's jobs and worker
  events            Print the daemon's event stream
  worker            Run a worker on stdin/stdout (started by the daemon)

General:
  --version         Show version information
  version           Show version information
  help              Show this help message

Use 'eslint-node <command> --help' for command-specific flags.
`)
}

// --- NOUN DISPATCHERS ---

func runDaemonNoun(args []string) int {
	if len(args) < 1 {
		printDaemonNounHelp(os.Stderr)
		return 1
	}
	if isHelpToken(args[0]) {
		printDaemonNounHelp(os.Stdout)
		return 0
	}

	action := args[0]
	actionArgs := args[1:]

	switch action {
	case "start":
		if hasHelpFlag(actionArgs) {
			printDaemonStartHelp()
			return 0
		}
		return runDaemonStart(actionArgs)
	case "status":
		if hasHelpFlag(actionArgs) {
			printDaemonStatusHelp()
			return 0
		}
		return runDaemonStatus(actionArgs)
	default:
		fmt.Fprintf(os.Stderr, "Unknown daemon action: %s\n", action)
		return 1
	}
}

func runCacheNoun(args []string) int {
	if len(args) < 1 {
		printCacheNounHelp(os.Stderr)
		return 1
	}
	if isHelpToken(args[0]) {
		printCacheNounHelp(os.Stdout)
		return 0
	}

	action := args[0]
	actionArgs := args[1:]

	switch action {
	case "clear":
		if hasHelpFlag(actionArgs) {
			printCacheClearHelp()
			return 0
		}
		return runCacheClear(actionArgs)
	default:
		fmt.Fprintf(os.Stderr, "Unknown cache action: %s\n", action)
		return 1
	}
}

func isHelpToken(token string) bool {
	return token == "help" || token == "--help" || token == "-h"
}

func hasHelpFlag(args []string) bool {
	for _, arg := range args {
		if arg == "--help" || arg == "-h" {
			return true
		}
	}
	return false
}

// stringList is a repeatable string flag.
type stringList []string

func (s *stringList) String() string { return strings.Join(*s, ",") }

func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}

func printDaemonNounHelp(w *os.File) {
	fmt.Fprintln(w, "Usage: eslint-node daemon <action>")
	fmt.Fprintln(w, "Actions: start, status")
}

func printCacheNounHelp(w *os.File) {
	fmt.Fprintln(w, "Usage: eslint-node cache <action>")
	fmt.Fprintln(w, "Actions: clear")
}

func printDaemonStartHelp() {
	fmt.Println("Usage: eslint-node daemon start [--config PATH] [--project DIR]...")
	fmt.Println("Run the lint daemon in the foreground. Each --project is watched for")
	fmt.Println("ESLint configuration changes. SIGHUP reloads the lint options.")
}

func printDaemonStatusHelp() {
	fmt.Println("Usage: eslint-node daemon status [--addr HOST:PORT] [--json]")
	fmt.Println("Show the running daemon's health.")
	fmt.Println("")
	fmt.Println("Exit codes:")
	fmt.Println("  0  Daemon is reachable")
	fmt.Println("  1  Daemon is not running or not reachable")
}

func printLintHelp() {
	fmt.Println("Usage: eslint-node lint <file> [--project DIR] [--stdin] [--json] [--addr HOST:PORT]")
	fmt.Println("Lint a file. With --stdin the buffer is read from standard input.")
	fmt.Println("")
	fmt.Println("Exit codes:")
	fmt.Println("  0  No errors")
	fmt.Println("  1  Lint errors were reported, or the command failed")
}

func printFixHelp() {
	fmt.Println("Usage: eslint-node fix <file> [--project DIR] [--on-save] [--json] [--addr HOST:PORT]")
	fmt.Println("Apply ESLint fixes to a file on disk.")
}

func printDebugHelp() {
	fmt.Println("Usage: eslint-node debug <file> [--project DIR] [--json] [--addr HOST:PORT]")
	fmt.Println("Show which ESLint would lint a file, and with which options.")
}

func printCacheClearHelp() {
	fmt.Println("Usage: eslint-node cache clear [--addr HOST:PORT]")
	fmt.Println("Tell the worker to drop its cached ESLint instances.")
}

func printHistoryHelp() {
	fmt.Println("Usage: eslint-node history [--limit N] [--json] [--addr HOST:PORT]")
	fmt.Println("Show recently completed jobs from the daemon's journal.")
}

func printMonitorHelp() {
	fmt.Println("Usage: eslint-node monitor [--addr HOST:PORT] [--token TOKEN]")
	fmt.Println("Live view of the daemon's worker, jobs and event stream.")
	fmt.Println()
	fmt.Println("Keybindings:")
	fmt.Println("  q, Ctrl+C        Quit")
}

func printEventsHelp() {
	fmt.Println("Usage: eslint-node events [--types job,worker] [--since ID] [--json] [--addr HOST:PORT]")
	fmt.Println("Print the daemon's job and worker events as they happen, until interrupted.")
}

func printDoctorHelp() {
	fmt.Println("Usage: eslint-node doctor [--config PATH] [--project DIR]... [--json]")
	fmt.Println("Check the configuration, the node binary and the ESLint each project resolves to.")
	fmt.Println("")
	fmt.Println("Exit codes:")
	fmt.Println("  0  eslint-node can lint")
	fmt.Println("  1  One or more checks failed")
}

func printWorkerHelp() {
	fmt.Println("Usage: eslint-node worker [--builtin PATH] [--max-fix-passes N] [--log-level LEVEL]")
	fmt.Println("Serve lint jobs as newline-delimited JSON on stdin/stdout.")
	fmt.Println("The daemon starts this itself; run it by hand only to debug the protocol.")
}
