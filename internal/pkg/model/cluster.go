package model

import (
	"encoding/json"
	"strings"

	"hpcdash/internal/pkg/numfmt"
)

// Number is a finite float decoded leniently: numbers, numeric strings with
// thousands separators, "-" and null are all accepted. Anything else is 0.
type Number float64

func (n *Number) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		*n = 0
		return nil
	}
	*n = Number(numfmt.ToNumber(v))
	return nil
}

// Float returns n as float64.
func (n Number) Float() float64 { return float64(n) }

// Count is a Number floored at zero, used for queue and node counters.
type Count float64

func (c *Count) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		*c = 0
		return nil
	}
	*c = Count(numfmt.NonNegative(v))
	return nil
}

// Float returns c as float64.
func (c Count) Float() float64 { return float64(c) }

// Clusters is the cluster usage snapshot: an ordered sequence of records.
type Clusters []ClusterRecord

// UnmarshalJSON accepts either a bare array or an object wrapping the array
// under "clusters".
func (cs *Clusters) UnmarshalJSON(b []byte) error {
	var list []ClusterRecord
	if err := json.Unmarshal(b, &list); err == nil {
		*cs = list
		return nil
	}
	var wrapped struct {
		Clusters []ClusterRecord `json:"clusters"`
	}
	if err := json.Unmarshal(b, &wrapped); err != nil {
		return err
	}
	*cs = wrapped.Clusters
	return nil
}

type ClusterRecord struct {
	Metadata  ClusterMetadata `json:"cluster_metadata"`
	QueueData QueueData       `json:"queue_data"`
	UsageData UsageData       `json:"usage_data"`
}

// ID identifies a cluster across snapshots: uri, falling back to name.
func (c ClusterRecord) ID() string {
	if uri := strings.TrimSpace(c.Metadata.URI); uri != "" {
		return uri
	}
	return strings.TrimSpace(c.Metadata.Name)
}

// DisplayName returns name, falling back to the last uri segment.
func (c ClusterRecord) DisplayName() string {
	if name := strings.TrimSpace(c.Metadata.Name); name != "" {
		return name
	}
	uri := strings.TrimRight(c.Metadata.URI, "/")
	if i := strings.LastIndex(uri, "/"); i >= 0 {
		return uri[i+1:]
	}
	return uri
}

type ClusterMetadata struct {
	Name      string `json:"name"`
	URI       string `json:"uri"`
	Status    string `json:"status"`
	Type      string `json:"type"`
	Timestamp string `json:"timestamp"`
}

type QueueData struct {
	Queues []QueueRecord `json:"queues"`
	Nodes  []NodeRecord  `json:"nodes"`
}

type QueueRecord struct {
	QueueName    string `json:"queue_name"`
	QueueType    string `json:"queue_type"`
	JobsRunning  Count  `json:"jobs_running"`
	JobsPending  Count  `json:"jobs_pending"`
	CoresRunning Count  `json:"cores_running"`
	CoresPending Count  `json:"cores_pending"`
	MaxWalltime  string `json:"max_walltime"`
}

type NodeRecord struct {
	NodeType       string `json:"node_type"`
	NodesAvailable Count  `json:"nodes_available"`
	CoresPerNode   Count  `json:"cores_per_node"`
	CoresAvailable Count  `json:"cores_available"`
	CoresRunning   Count  `json:"cores_running"`
	CoresFree      Count  `json:"cores_free"`
}

// IsAggregate reports whether the row is the "Nodes" placeholder/total row.
func (n NodeRecord) IsAggregate() bool {
	return strings.EqualFold(strings.TrimSpace(n.NodeType), "nodes")
}

type UsageData struct {
	Header         string        `json:"header,omitempty"`
	FiscalYearInfo string        `json:"fiscal_year_info,omitempty"`
	Systems        []UsageRecord `json:"systems"`
}

type UsageRecord struct {
	System           string `json:"system"`
	Subproject       string `json:"subproject"`
	HoursAllocated   Number `json:"hours_allocated"`
	HoursUsed        Number `json:"hours_used"`
	HoursRemaining   Number `json:"hours_remaining"`
	PercentRemaining Number `json:"percent_remaining"`
}

// HasAllocation is false for zero-allocation rows, which carry no usage data.
func (u UsageRecord) HasAllocation() bool {
	return u.HoursAllocated.Float() > 0
}
