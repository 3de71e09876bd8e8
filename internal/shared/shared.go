package shared

// Stats is the summary of one completed probe session against a target
type Stats struct {
	Target     string  `json:"target"`               // Peer endpoint (IP:port)
	TargetPTR  string  `json:"target_ptr,omitempty"` // PTR record for the peer IP
	Source     string  `json:"source,omitempty"`     // Local endpoint the probes were sent from
	EpochMs    int64   `json:"epoch_ms"`             // Wall clock start of the session
	DurationMs float64 `json:"duration_ms"`          // Time since session start, taken at aggregation
	Sent       uint64  `json:"sent"`                 // Echo Requests successfully written
	Received   uint64  `json:"received"`             // Echo Responses received, duplicates included
	Duplicates uint64  `json:"duplicates"`           // Responses beyond the first for a sequence slot
	Refused    uint64  `json:"refused"`              // Probes that hit a closed port
	TimedOut   uint64  `json:"timed_out"`            // Probes without a usable response
	LossPct    float64 `json:"loss_pct"`             // (sent - received) / sent * 100
	Samples    int     `json:"samples"`              // Number of RTT samples behind min/avg/max/mdev
	Min        float64 `json:"min_ms"`               // RTT in milliseconds
	Avg        float64 `json:"avg_ms"`               // RTT in milliseconds
	Max        float64 `json:"max_ms"`               // RTT in milliseconds
	Mdev       float64 `json:"mdev_ms"`              // RTT population standard deviation in milliseconds
	Error      string  `json:"error,omitempty"`      // Set when the session could not be started
}

// Failed reports whether the session for this target never ran
func (s Stats) Failed() bool {
	return s.Error != ""
}
