package parser

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/runningman84/replica-monitor/pkg/models"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"k8s.io/klog/v2"
)

// ErrMalformedDocument is matched by every DocumentError
var ErrMalformedDocument = errors.New("malformed dashboard document")

// DocumentError reports that the dashboard could not be parsed as HTML at all
type DocumentError struct {
	Err error
}

func (e *DocumentError) Error() string {
	return fmt.Sprintf("failed to parse dashboard HTML: %v", e.Err)
}

func (e *DocumentError) Unwrap() error {
	return e.Err
}

func (e *DocumentError) Is(target error) bool {
	return target == ErrMalformedDocument
}

// Keys of the canister detail tables, exactly as the replica prints them
const (
	keyControllers                = "controllers"
	keyCertifiedDataLength        = "certified_data length"
	keyCanisterHistoryMemoryUsage = "canister_history_memory_usage"
	keyExecutionState             = "execution_state"
	keyExports                    = "exports"
	keyLastFullExecutionRound     = "last_full_execution_round"
	keyComputeAllocation          = "compute_allocation"
	keyFreezeThreshold            = "freeze_threshold (seconds)"
	keyMemoryUsage                = "memory_usage"
	keyAccumulatedPriority        = "accumulated_priority"
	keyCyclesBalance              = "Cycles balance"
)

// debugClass marks the header value cells and the config block container
const debugClass = "debug"

// ParseDashboard parses the replica dashboard HTML page
func ParseDashboard(data []byte) (*models.ReplicaSnapshot, error) {
	return ParseDashboardReader(bytes.NewReader(data))
}

// ParseDashboardReader parses the replica dashboard HTML page from r.
// Missing or malformed fields degrade to empty values; only a failure to
// build a document at all is returned, as a *DocumentError.
func ParseDashboardReader(r io.Reader) (*models.ReplicaSnapshot, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, &DocumentError{Err: err}
	}

	snapshot := &models.ReplicaSnapshot{}

	// Header values carry no key of their own, they are identified by order
	header := findAll(doc, byTagClass(atom.Td, debugClass))
	snapshot.ReplicaVersion = nthText(header, 0)
	snapshot.SubnetType = nthText(header, 1)
	snapshot.TotalComputeAllocation = nthText(header, 2)

	if pre := findFirst(doc, childOf(byTagClass(atom.Div, debugClass), byTag(atom.Pre))); pre != nil {
		snapshot.HTTPServerConfig = textOf(pre)
	}

	for _, summary := range findAll(doc, byTag(atom.Summary)) {
		canister, ok := parseCanister(summary)
		if !ok {
			continue
		}
		snapshot.Canisters = append(snapshot.Canisters, canister)
	}

	return snapshot, nil
}

// parseCanister builds the record for one <summary> and its surrounding <details>
func parseCanister(summary *html.Node) (models.CanisterRecord, bool) {
	id := textOf(summary)
	if id == "" {
		return models.CanisterRecord{}, false
	}

	canister := models.CanisterRecord{ID: id}

	details := summary.Parent
	if details == nil || details.Type != html.ElementNode {
		return canister, true
	}

	canister.Status, canister.MemoryAllocation, canister.LastExecutionRound = positionalColumns(details)

	fields := detailFields(findAll(details, byTag(atom.Tr)))
	canister.Controllers = fields[keyControllers]
	canister.CertifiedDataLength = fields[keyCertifiedDataLength]
	canister.CanisterHistoryMemoryUsage = fields[keyCanisterHistoryMemoryUsage]
	canister.ExecutionState = fields[keyExecutionState]
	canister.LastFullExecutionRound = fields[keyLastFullExecutionRound]
	canister.ComputeAllocation = fields[keyComputeAllocation]
	canister.FreezeThreshold = fields[keyFreezeThreshold]
	canister.MemoryUsage = fields[keyMemoryUsage]
	canister.AccumulatedPriority = fields[keyAccumulatedPriority]
	canister.CyclesBalance = fields[keyCyclesBalance]

	if raw, ok := fields[keyExports]; ok {
		exports, err := ParseExports(raw)
		if err != nil {
			klog.V(1).Infof("Ignoring exports of canister %s: %v", id, err)
		} else {
			canister.Exports = exports
		}
	}

	return canister, true
}

// positionalColumns reads status, memory allocation and last execution round
// from the last three columns of the canister's table row. The details element
// sits in the first cell of that row: details -> td -> tr -> tbody.
// Only the row's own direct cells are read: taking the last three cells of the
// whole tbody would hand every canister the values of the last row.
func positionalColumns(details *html.Node) (status, memoryAllocation, lastExecutionRound string) {
	levels, ok := ancestors(details, 3)
	if !ok {
		return "", "", ""
	}

	columns, ok := lastCells(cellTexts(levels[1]), 3)
	if !ok {
		return "", "", ""
	}

	return columns[0], columns[1], columns[2]
}

// detailFields folds key/value rows into a map. A later row wins over an earlier one with the same key.
func detailFields(rows []*html.Node) map[string]string {
	fields := make(map[string]string, len(rows))
	for _, row := range rows {
		cells := findAll(row, byTag(atom.Td))
		if len(cells) < 2 {
			continue
		}
		fields[textOf(cells[0])] = textOf(cells[1])
	}
	return fields
}

func nthText(nodes []*html.Node, i int) string {
	if i >= len(nodes) {
		return ""
	}
	return textOf(nodes[i])
}
