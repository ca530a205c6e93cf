package render

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/runningman84/replica-monitor/pkg/config"
	"github.com/runningman84/replica-monitor/pkg/models"
	"gopkg.in/yaml.v3"
)

// Renderer writes a snapshot of one dashboard
type Renderer interface {
	Render(w io.Writer, target string, snapshot *models.ReplicaSnapshot) error
}

// Options tune the renderers
type Options struct {
	// WebserverPort enables the HTTP endpoint line for canisters exporting http_request
	WebserverPort string
}

// NewRenderer returns the renderer for an output format
func NewRenderer(format string, opts Options) (Renderer, error) {
	switch format {
	case config.FormatText:
		return &TextRenderer{opts: opts}, nil
	case config.FormatJSON:
		return &JSONRenderer{}, nil
	case config.FormatYAML:
		return &YAMLRenderer{}, nil
	default:
		return nil, fmt.Errorf("unknown output format: %q", format)
	}
}

// document is the serialized form of one refresh
type document struct {
	Target   string                  `json:"target" yaml:"target"`
	Snapshot *models.ReplicaSnapshot `json:"snapshot" yaml:"snapshot"`
}

// JSONRenderer writes one JSON document per line
type JSONRenderer struct{}

func (r *JSONRenderer) Render(w io.Writer, target string, snapshot *models.ReplicaSnapshot) error {
	if err := json.NewEncoder(w).Encode(document{Target: target, Snapshot: snapshot}); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}

// YAMLRenderer writes one YAML document per refresh
type YAMLRenderer struct{}

func (r *YAMLRenderer) Render(w io.Writer, target string, snapshot *models.ReplicaSnapshot) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(document{Target: target, Snapshot: snapshot}); err != nil {
		return fmt.Errorf("failed to encode YAML: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("failed to encode YAML: %w", err)
	}
	return nil
}

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	bulletStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// TextRenderer writes the human readable panel
type TextRenderer struct {
	opts Options
}

type line struct {
	label string
	value string
}

func (r *TextRenderer) Render(w io.Writer, target string, snapshot *models.ReplicaSnapshot) error {
	var sb strings.Builder

	writeBlock(&sb, "Replica dashboard: ", target, []line{
		{"Replica version: ", snapshot.ReplicaVersion},
		{"Subnet type: ", snapshot.SubnetType},
		{"Total compute allocation: ", snapshot.TotalComputeAllocation},
		{"HTTP server config: ", snapshot.HTTPServerConfig},
	})

	if len(snapshot.Canisters) == 0 {
		sb.WriteString("No canisters found, try deploying some first.\n")
	}

	for _, c := range snapshot.Canisters {
		lines := []line{{"Status: ", c.Status}}
		if endpoint := r.httpEndpoint(c); endpoint != "" {
			lines = append(lines, line{"HTTP Endpoint: ", endpoint})
		}
		lines = append(lines,
			line{"Memory Allocation: ", c.MemoryAllocation},
			line{"Last Execution Round: ", c.LastExecutionRound},
			line{"Controllers: ", c.Controllers},
			line{"Certified Data Length: ", c.CertifiedDataLength},
			line{"Canister History Memory Usage: ", c.CanisterHistoryMemoryUsage},
			line{"Execution State: ", c.ExecutionState},
			line{"Last Full Execution Round: ", c.LastFullExecutionRound},
			line{"Compute Allocation: ", c.ComputeAllocation},
			line{"Freeze Threshold: ", c.FreezeThreshold},
			line{"Memory Usage: ", c.MemoryUsage},
			line{"Accumulated Priority: ", c.AccumulatedPriority},
			line{"Cycles Balance: ", c.CyclesBalance},
		)
		if len(c.Exports.QueryFunctions) > 0 {
			lines = append(lines, line{"Exported Query functions: ", strings.Join(c.Exports.QueryFunctions, ", ")})
		}
		if len(c.Exports.UpdateFunctions) > 0 {
			lines = append(lines, line{"Exported Update functions: ", strings.Join(c.Exports.UpdateFunctions, ", ")})
		}
		if len(c.Exports.SystemFunctions) > 0 {
			lines = append(lines, line{"Exported System functions: ", strings.Join(c.Exports.SystemFunctions, ", ")})
		}
		lines = append(lines,
			line{"Exports heartbeat: ", strconv.FormatBool(c.Exports.ExportsHeartbeat)},
			line{"Exports global timer: ", strconv.FormatBool(c.Exports.ExportsGlobalTimer)},
		)

		writeBlock(&sb, "Canister ID: ", c.ID, lines)
	}

	if _, err := io.WriteString(w, sb.String()); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

// httpEndpoint returns the gateway URL of canisters serving HTTP
func (r *TextRenderer) httpEndpoint(c models.CanisterRecord) string {
	if r.opts.WebserverPort == "" || !c.Exports.HasQuery("http_request") {
		return ""
	}
	return fmt.Sprintf("http://%s.localhost:%s", c.ID, r.opts.WebserverPort)
}

func writeBlock(sb *strings.Builder, title, value string, lines []line) {
	sb.WriteString(headerStyle.Render(title) + value + "\n")
	for i, l := range lines {
		bullet := "  ├ "
		if i == len(lines)-1 {
			bullet = "  └ "
		}
		sb.WriteString(bulletStyle.Render(bullet) + labelStyle.Render(l.label) + l.value + "\n")
	}
}
