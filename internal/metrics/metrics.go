package metrics

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/efebarandurmaz/protoforge/internal/build"
)

// BuildMetrics collects statistics for one build run.
type BuildMetrics struct {
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at,omitempty"`
	Duration   time.Duration   `json:"-"`
	DurationMS int64           `json:"duration_ms"`
	Mode       string          `json:"mode"` // "local" or "remote"
	Toolchain  ToolchainInfo   `json:"toolchain"`
	Targets    []TargetMetrics `json:"targets"`
	Tasks      []TaskMetrics   `json:"tasks"`
	Outputs    OutputMetrics   `json:"outputs"`
	Errors     []string        `json:"errors,omitempty"`
}

type ToolchainInfo struct {
	Executable string `json:"executable"`
	Cached     bool   `json:"cached"`
}

type TargetMetrics struct {
	Name            string `json:"name"`
	TaskCount       int    `json:"task_count"`
	CompiledSources int    `json:"compiled_sources"`
}

type TaskMetrics struct {
	Target     string        `json:"target"`
	Input      string        `json:"input"`
	State      build.State   `json:"state"`
	ExitCode   int           `json:"exit_code"`
	Duration   time.Duration `json:"-"`
	DurationMS int64         `json:"duration_ms"`
}

type OutputMetrics struct {
	Declared   int `json:"declared"`
	Present    int `json:"present"`
	TotalBytes int `json:"total_bytes"`
}

// New starts tracking a build run.
func New(mode string) *BuildMetrics {
	return &BuildMetrics{StartedAt: time.Now(), Mode: mode}
}

// CollectPlan records the targets of a planned build.
func (m *BuildMetrics) CollectPlan(b *build.Build) {
	for _, g := range b.TaskGens() {
		m.Targets = append(m.Targets, TargetMetrics{
			Name:            g.Target.Name,
			TaskCount:       len(g.Tasks()),
			CompiledSources: len(g.CompiledSources()),
		})
	}
}

// CollectTasks records each task's outcome and the generated files on disk.
func (m *BuildMetrics) CollectTasks(tasks []*build.Task) {
	for _, t := range tasks {
		m.Tasks = append(m.Tasks, TaskMetrics{
			Target:     t.Target,
			Input:      t.Input().Path(),
			State:      t.State,
			ExitCode:   t.ExitCode,
			Duration:   t.Duration,
			DurationMS: t.Duration.Milliseconds(),
		})
		for _, o := range t.Outputs {
			m.Outputs.Declared++
			if info, err := os.Stat(o.Path()); err == nil {
				m.Outputs.Present++
				m.Outputs.TotalBytes += int(info.Size())
			}
		}
	}
}

// Finish marks the build as complete.
func (m *BuildMetrics) Finish(err error) {
	m.FinishedAt = time.Now()
	m.Duration = m.FinishedAt.Sub(m.StartedAt)
	m.DurationMS = m.Duration.Milliseconds()
	if err != nil {
		m.Errors = append(m.Errors, err.Error())
	}
}

// Counts returns how many tasks succeeded, failed and never ran.
func (m *BuildMetrics) Counts() (succeeded, failed, skipped int) {
	for _, t := range m.Tasks {
		switch t.State {
		case build.StateSucceeded:
			succeeded++
		case build.StateFailed:
			failed++
		default:
			skipped++
		}
	}
	return succeeded, failed, skipped
}

// PrintSummary writes a human-readable summary.
func (m *BuildMetrics) PrintSummary(w io.Writer) {
	ok, failed, skipped := m.Counts()
	fmt.Fprintf(w, "\n╔══════════════════════════════════════╗\n")
	fmt.Fprintf(w, "║        PROTOFORGE BUILD REPORT       ║\n")
	fmt.Fprintf(w, "╠══════════════════════════════════════╣\n")
	fmt.Fprintf(w, "║ Duration:    %-23s║\n", m.Duration.Round(time.Millisecond))
	fmt.Fprintf(w, "║ Mode:        %-23s║\n", m.Mode)
	fmt.Fprintf(w, "║ Tasks:       %-23s║\n", fmt.Sprintf("%d ok, %d failed, %d skipped", ok, failed, skipped))
	fmt.Fprintf(w, "╠══════════════════════════════════════╣\n")
	fmt.Fprintf(w, "║ TOOLCHAIN\n")
	fmt.Fprintf(w, "║   Executable:  %s\n", m.Toolchain.Executable)
	fmt.Fprintf(w, "║   Cached:      %t\n", m.Toolchain.Cached)
	fmt.Fprintf(w, "╠══════════════════════════════════════╣\n")
	fmt.Fprintf(w, "║ TARGETS\n")
	for _, t := range m.Targets {
		fmt.Fprintf(w, "║   %-14s %3d tasks  %3d compiled\n", t.Name, t.TaskCount, t.CompiledSources)
	}
	fmt.Fprintf(w, "╠══════════════════════════════════════╣\n")
	fmt.Fprintf(w, "║ OUTPUTS\n")
	fmt.Fprintf(w, "║   Present:     %d/%d\n", m.Outputs.Present, m.Outputs.Declared)
	fmt.Fprintf(w, "║   Total Size:  %s\n", formatBytes(m.Outputs.TotalBytes))
	if failed > 0 {
		fmt.Fprintf(w, "╠══════════════════════════════════════╣\n")
		fmt.Fprintf(w, "║ FAILED TASKS\n")
		for _, t := range m.Tasks {
			if t.State == build.StateFailed {
				fmt.Fprintf(w, "║   %-14s %s (exit %d)\n", t.Target, t.Input, t.ExitCode)
			}
		}
	}
	if len(m.Errors) > 0 {
		fmt.Fprintf(w, "╠══════════════════════════════════════╣\n")
		fmt.Fprintf(w, "║ ERRORS\n")
		for _, e := range m.Errors {
			fmt.Fprintf(w, "║   • %s\n", e)
		}
	}
	fmt.Fprintf(w, "╚══════════════════════════════════════╝\n")
}

// JSON returns the metrics as formatted JSON.
func (m *BuildMetrics) JSON() ([]byte, error) {
	return json.MarshalIndent(m, "", "  ")
}

func formatBytes(b int) string {
	switch {
	case b >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(b)/float64(1<<20))
	case b >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(b)/float64(1<<10))
	default:
		return fmt.Sprintf("%d B", b)
	}
}
