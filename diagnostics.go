package ringnet

// diagnostics.go gathers the engine's state into a single exportable record,
// and analyzes it for warning signs.

// NodeStatus is the exported view of one node
type NodeStatus struct {
	Name    string  `json:"name" yaml:"name"`
	Address string  `json:"address" yaml:"address"`
	Live    bool    `json:"live" yaml:"live"`
	Traffic Traffic `json:"traffic" yaml:"traffic"`
}

// DiagConfig is the part of the configuration an operator can change at run time
type DiagConfig struct {
	NodeCount    int     `json:"nodecount" yaml:"nodecount"`
	Latency      float64 `json:"latency" yaml:"latency"`
	PacketSize   int     `json:"packetsize" yaml:"packetsize"`
	Collisions   bool    `json:"collisions" yaml:"collisions"`
	TransitSlots int     `json:"transitslots" yaml:"transitslots"`
}

// Diagnostics is a snapshot of everything the engine can report
type Diagnostics struct {
	Name            string            `json:"name" yaml:"name"`
	Time            float64           `json:"time" yaml:"time"`
	Health          HealthReport      `json:"health" yaml:"health"`
	RingMetrics     RingMetrics       `json:"ringmetrics" yaml:"ringmetrics"`
	LoadTestMetrics LoadTestMetrics   `json:"loadtestmetrics" yaml:"loadtestmetrics"`
	Benchmark       []BenchmarkResult `json:"benchmark,omitempty" yaml:"benchmark,omitempty"`
	Token           TokenState        `json:"token" yaml:"token"`
	Nodes           []NodeStatus      `json:"nodes" yaml:"nodes"`
	Config          DiagConfig        `json:"config" yaml:"config"`
}

// Diagnostics takes a snapshot of the engine
func (re *RingEngine) Diagnostics() Diagnostics {
	diag := Diagnostics{Name: re.desc.Name, Time: re.now(), Health: re.Health(),
		RingMetrics: re.Metrics(), LoadTestMetrics: re.LoadTestMetrics(),
		Benchmark: re.BenchmarkResults(), Token: re.TokenState()}
	diag.Nodes = make([]NodeStatus, 0, re.ring.Size())
	for idx := 0; idx < re.ring.Size(); idx++ {
		diag.Nodes = append(diag.Nodes, NodeStatus{Name: NodeName(idx), Address: re.ring.Address(idx),
			Live: re.ring.IsLive(idx), Traffic: re.ring.Traffic(idx)})
	}
	diag.Config = DiagConfig{NodeCount: re.ring.Size(), Latency: re.desc.Latency, PacketSize: re.desc.PacketSize,
		Collisions: re.desc.Collisions, TransitSlots: re.desc.TransitSlots}
	return diag
}

// WriteToFile stores the Diagnostics struct to the file whose name is given.
// Serialization to json or to yaml is selected based on the extension of this name.
func (diag *Diagnostics) WriteToFile(filename string) error {
	return writeSerialized(filename, diag)
}

// Analysis is the result of examining a Diagnostics snapshot
type Analysis struct {
	Intact          bool     `json:"intact" yaml:"intact"`
	PacketsSent     int      `json:"packetssent" yaml:"packetssent"`
	PacketsReceived int      `json:"packetsreceived" yaml:"packetsreceived"`
	SuccessRate     float64  `json:"successrate" yaml:"successrate"`
	ReachablePairs  int      `json:"reachablepairs" yaml:"reachablepairs"`
	Pairs           int      `json:"pairs" yaml:"pairs"`
	Warnings        []string `json:"warnings" yaml:"warnings"`
	Recommendations []string `json:"recommendations" yaml:"recommendations"`
}

// thresholds for analysis warnings
const (
	lowSuccessRate     = 90.0
	highCollisions     = 10
	collisionsAdvice   = 5
	frequentRingBreaks = 3
)

// Analyze examines the engine state for signs of trouble.  The success rate
// compares packets delivered with packets lost; reachability counts the
// ordered pairs of distinct live nodes the live part of the ring connects
func (re *RingEngine) Analyze() Analysis {
	an := Analysis{Intact: re.ring.IsIntact(), Warnings: []string{}, Recommendations: []string{}}
	for idx := 0; idx < re.ring.Size(); idx++ {
		tr := re.ring.Traffic(idx)
		an.PacketsSent += tr.Sent
		an.PacketsReceived += tr.Received
	}

	an.SuccessRate = 100.0
	if finished := re.metrics.Delivered + re.metrics.Lost; finished > 0 {
		an.SuccessRate = 100.0 * float64(re.metrics.Delivered) / float64(finished)
	}

	live := re.ring.LiveNodes()
	for _, src := range live {
		for _, dst := range live {
			if src == dst {
				continue
			}
			an.Pairs += 1
			if re.router.LiveRoute(src, dst) != nil {
				an.ReachablePairs += 1
			}
		}
	}

	if !an.Intact {
		an.Warnings = append(an.Warnings, "ring topology broken")
		an.Recommendations = append(an.Recommendations, "run a health check and heal the ring")
	}
	if an.SuccessRate < lowSuccessRate {
		an.Warnings = append(an.Warnings, "low delivery success rate")
	}
	if re.metrics.Collisions > highCollisions {
		an.Warnings = append(an.Warnings, "high collision count")
	}
	if re.metrics.RingBreaks > frequentRingBreaks {
		an.Warnings = append(an.Warnings, "multiple ring breaks")
	}
	if re.metrics.Collisions > collisionsAdvice {
		an.Recommendations = append(an.Recommendations, "increase latency to reduce collisions")
	}
	if an.ReachablePairs < an.Pairs {
		an.Recommendations = append(an.Recommendations, "reactivate nodes to reconnect isolated segments")
	}

	for _, w := range an.Warnings {
		re.logger.Warnf("analysis: %s", w)
	}
	for _, r := range an.Recommendations {
		re.logger.Infof("analysis: recommend %s", r)
	}
	return an
}
