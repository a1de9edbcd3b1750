package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"strings"

	"github.com/orizon-lang/refinement/internal/facts"
	"github.com/orizon-lang/refinement/internal/proof"
)

// Version information for the prover tools
const (
	Version   = "0.1.0"
	BuildDate = "2026-10-18"
)

// CommitSHA is set at build time with -ldflags.
var CommitSHA = "unknown"

// VersionInfo contains version and build information
type VersionInfo struct {
	Version   string `json:"version"`
	BuildDate string `json:"build_date"`
	CommitSHA string `json:"commit_sha"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
	Arch      string `json:"arch"`
}

// GetVersionInfo returns structured version information
func GetVersionInfo() *VersionInfo {
	return &VersionInfo{
		Version:   Version,
		BuildDate: BuildDate,
		CommitSHA: CommitSHA,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}

// PrintVersion prints version information in a consistent format
func PrintVersion(w io.Writer, toolName string, jsonOutput bool) {
	info := GetVersionInfo()

	if jsonOutput {
		data, err := json.MarshalIndent(map[string]interface{}{
			"tool":         toolName,
			"version_info": info,
		}, "", "  ")
		if err == nil {
			fmt.Fprintln(w, string(data))
			return
		}
		fmt.Fprintf(os.Stderr, "Error: Failed to marshal version info to JSON: %v\n", err)
	}

	fmt.Fprintf(w, "%s v%s\n", toolName, info.Version)
	fmt.Fprintf(w, "Build Date: %s\n", info.BuildDate)
	if info.CommitSHA != "unknown" && info.CommitSHA != "" {
		fmt.Fprintf(w, "Commit: %s\n", info.CommitSHA)
	}
	fmt.Fprintf(w, "Go Version: %s\n", info.GoVersion)
	fmt.Fprintf(w, "Platform: %s/%s\n", info.Platform, info.Arch)
}

// ParseLevel maps a level name to a slog level.
func ParseLevel(level string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", level)
	}
	return l, nil
}

// NewLogger creates a text logger writing to w at level.
func NewLogger(w io.Writer, level string) (*slog.Logger, error) {
	l, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: l})), nil
}

// ParseFact parses "variable: predicate". Without a colon the whole text is
// the predicate and the variable is left empty.
func ParseFact(text string) (facts.Fact, error) {
	variable, predicate, found := strings.Cut(text, ":")
	if !found {
		predicate, variable = variable, ""
	}
	variable, predicate = strings.TrimSpace(variable), strings.TrimSpace(predicate)
	if predicate == "" {
		return facts.Fact{}, fmt.Errorf("fact %q has no predicate", text)
	}
	return facts.New(variable, predicate), nil
}

// ParseFacts parses each argument with ParseFact.
func ParseFacts(args []string) ([]facts.Fact, error) {
	out := make([]facts.Fact, 0, len(args))
	for _, a := range args {
		f, err := ParseFact(a)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

// PrintResult writes r either as indented JSON or as a certificate tree.
func PrintResult(w io.Writer, r proof.Result, jsonOutput bool) error {
	if jsonOutput {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	}

	fmt.Fprintln(w, r.String())
	if r.Step != nil {
		printStep(w, r.Step, 1)
	}
	return nil
}

func printStep(w io.Writer, s *proof.Step, depth int) {
	indent := strings.Repeat("  ", depth)
	fmt.Fprintf(w, "%s%s: %s\n", indent, s.Rule, s.Description)
	if s.Justification != "" {
		fmt.Fprintf(w, "%s  because %s\n", indent, s.Justification)
	}
	for _, f := range s.UsedFacts {
		fmt.Fprintf(w, "%s  using %s\n", indent, f)
	}
	for _, sub := range s.Subgoals {
		if sub.Step != nil {
			printStep(w, sub.Step, depth+1)
		}
	}
}
