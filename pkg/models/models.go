package models

// ReplicaSnapshot represents one parse of a replica status dashboard
type ReplicaSnapshot struct {
	ReplicaVersion         string           `json:"replica_version" yaml:"replica_version"`
	SubnetType             string           `json:"subnet_type" yaml:"subnet_type"`
	TotalComputeAllocation string           `json:"total_compute_allocation" yaml:"total_compute_allocation"`
	HTTPServerConfig       string           `json:"http_server_config" yaml:"http_server_config"`
	Canisters              []CanisterRecord `json:"canisters" yaml:"canisters"`
}

// Canister returns the record with the given id
func (s *ReplicaSnapshot) Canister(id string) (CanisterRecord, bool) {
	for _, c := range s.Canisters {
		if c.ID == id {
			return c, true
		}
	}
	return CanisterRecord{}, false
}

// CanisterRecord represents the reported state of one canister
type CanisterRecord struct {
	ID string `json:"id" yaml:"id"`

	// Positional columns of the canister table row
	Status             string `json:"status" yaml:"status"`
	MemoryAllocation   string `json:"memory_allocation" yaml:"memory_allocation"`
	LastExecutionRound string `json:"last_execution_round" yaml:"last_execution_round"`

	// System state
	Controllers                string `json:"controllers" yaml:"controllers"`
	CertifiedDataLength        string `json:"certified_data_length" yaml:"certified_data_length"`
	CanisterHistoryMemoryUsage string `json:"canister_history_memory_usage" yaml:"canister_history_memory_usage"`

	// Execution state
	ExecutionState string            `json:"execution_state" yaml:"execution_state"`
	Exports        ExportsDescriptor `json:"exports" yaml:"exports"`

	// Scheduler state
	LastFullExecutionRound string `json:"last_full_execution_round" yaml:"last_full_execution_round"`
	ComputeAllocation      string `json:"compute_allocation" yaml:"compute_allocation"`
	FreezeThreshold        string `json:"freeze_threshold" yaml:"freeze_threshold"` // seconds
	MemoryUsage            string `json:"memory_usage" yaml:"memory_usage"`
	AccumulatedPriority    string `json:"accumulated_priority" yaml:"accumulated_priority"`
	CyclesBalance          string `json:"cycles_balance" yaml:"cycles_balance"`
}

// ExportsDescriptor represents the functions a canister module exports
type ExportsDescriptor struct {
	QueryFunctions     []string `json:"query_functions" yaml:"query_functions"`
	UpdateFunctions    []string `json:"update_functions" yaml:"update_functions"`
	SystemFunctions    []string `json:"system_functions" yaml:"system_functions"`
	ExportsHeartbeat   bool     `json:"exports_heartbeat" yaml:"exports_heartbeat"`
	ExportsGlobalTimer bool     `json:"exports_global_timer" yaml:"exports_global_timer"`
}

// IsZero reports whether nothing was decoded into the descriptor
func (e ExportsDescriptor) IsZero() bool {
	return len(e.QueryFunctions) == 0 &&
		len(e.UpdateFunctions) == 0 &&
		len(e.SystemFunctions) == 0 &&
		!e.ExportsHeartbeat &&
		!e.ExportsGlobalTimer
}

// HasQuery checks if a query function with the given name is exported
func (e ExportsDescriptor) HasQuery(name string) bool {
	for _, q := range e.QueryFunctions {
		if q == name {
			return true
		}
	}
	return false
}
