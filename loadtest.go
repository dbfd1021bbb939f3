package ringnet

// loadtest.go generates bulk traffic and measures how the ring carries it.
// A load test draws random source/target pairs among the live nodes and
// releases one packet per arrival, with inter-arrival times either constant
// or exponentially distributed.  A benchmark sends a fixed pattern of packets
// at each of a list of payload sizes, one size at a time.  Auto-simulation
// injects a random packet every few seconds while the ring is quiet.

import (
	"fmt"
	"github.com/iti/evt/evtm"
	"github.com/iti/evt/vrtime"
	"github.com/iti/rngstream"
	"math"
)

// DefaultBenchmarkSizes are the payload sizes a benchmark steps through when none are given
var DefaultBenchmarkSizes = []int{64, 256, 512, 1024, 1500}

// DefaultBenchmarkPerSize is the number of packets a benchmark sends at each size
const DefaultBenchmarkPerSize = 10

// LoadTestMetrics describes the most recent load test
type LoadTestMetrics struct {
	Requested        int       `json:"requested" yaml:"requested"`
	PacketsSent      int       `json:"packetssent" yaml:"packetssent"`
	PacketsDelivered int       `json:"packetsdelivered" yaml:"packetsdelivered"`
	PacketsLost      int       `json:"packetslost" yaml:"packetslost"`
	Cancelled        int       `json:"cancelled" yaml:"cancelled"`
	Collisions       int       `json:"collisions" yaml:"collisions"`
	DeliveryTimes    []float64 `json:"deliverytimes" yaml:"deliverytimes"`
	StartTime        float64   `json:"starttime" yaml:"starttime"`
	EndTime          float64   `json:"endtime" yaml:"endtime"`
}

// SuccessRate is the percentage of packets sent that were delivered
func (ltm LoadTestMetrics) SuccessRate() float64 {
	if ltm.PacketsSent == 0 {
		return 0.0
	}
	return 100.0 * float64(ltm.PacketsDelivered) / float64(ltm.PacketsSent)
}

// AvgDeliveryTime is the mean of the recorded delivery times, in seconds
func (ltm LoadTestMetrics) AvgDeliveryTime() float64 {
	return mean(ltm.DeliveryTimes)
}

func mean(vals []float64) float64 {
	if len(vals) == 0 {
		return 0.0
	}
	sum := 0.0
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}

// loadTest is the state of the load test harness
type loadTest struct {
	active  bool
	run     int // tags the arrivals of one test
	pending int // arrivals not yet released
	members map[*Packet]bool
	metrics LoadTestMetrics
}

func createLoadTest() *loadTest {
	lt := new(loadTest)
	lt.members = make(map[*Packet]bool)
	lt.metrics.DeliveryTimes = []float64{}
	return lt
}

// arrival is what a scheduled load-test arrival carries
type arrival struct {
	run      int
	src, dst int
}

// RunLoadTest releases count packets between random distinct pairs of live nodes
func (re *RingEngine) RunLoadTest(count int) error {
	lt := re.loadtest
	if lt.active || re.bench.active {
		return ErrLoadTestActive
	}
	if count < 1 {
		return fmt.Errorf("%w: load test of %d packets", ErrBadParameter, count)
	}
	if !re.ring.IsIntact() {
		return ErrRingBroken
	}
	live := re.ring.LiveNodes()
	if len(live) < 2 {
		return ErrInsufficientNodes
	}

	lt.active = true
	lt.run += 1
	lt.pending = count
	lt.members = make(map[*Packet]bool)
	lt.metrics = LoadTestMetrics{Requested: count, DeliveryTimes: []float64{}, StartTime: re.now()}
	re.metrics.Collisions = 0

	offset := 0.0
	for idx := 0; idx < count; idx++ {
		src, dst := re.samplePair(live)
		re.evtMgr.Schedule(re, arrival{run: lt.run, src: src, dst: dst}, loadArrival, vrtime.SecondsToTime(offset))
		offset += re.sampleGap()
	}
	re.logger.Infof("load test of %d packets started", count)
	return nil
}

// samplePair draws two distinct members of live
func (re *RingEngine) samplePair(live []int) (int, int) {
	src := live[re.sampleIndex(len(live))]
	dst := src
	for dst == src {
		dst = live[re.sampleIndex(len(live))]
	}
	return src, dst
}

// sampleIndex draws uniformly from 0..n-1
func (re *RingEngine) sampleIndex(n int) int {
	idx := int(re.rng.RandU01() * float64(n))
	return min(idx, n-1)
}

// sampleGap draws the time between two load-test arrivals
func (re *RingEngine) sampleGap() float64 {
	meanGap := re.desc.ArrivalGap + re.desc.Latency/2.0
	switch re.desc.Arrivals {
	case "exponential", "exp", "expon":
		return roundFloat(expRV(re.rng.RandU01(), 1.0/meanGap), 6)
	default:
		return meanGap
	}
}

func roundFloat(val float64, precision uint) float64 {
	ratio := math.Pow(10, float64(precision))
	return math.Round(val*ratio) / ratio
}

func expRV(u01, rate float64) float64 {
	return -math.Log(1.0-u01) / rate
}

// loadArrival is the event handler releasing one load-test packet
func loadArrival(evtMgr *evtm.EventManager, context any, data any) any {
	re := context.(*RingEngine)
	lt := re.loadtest
	arr := data.(arrival)
	if !lt.active || arr.run != lt.run {
		return nil
	}
	lt.pending -= 1
	lt.metrics.PacketsSent += 1

	// membership must be set before submit, which may finish the packet at once
	pckt, err := createPacket(UnicastPacket, arr.src, arr.dst, re.desc.PacketSize, re.now())
	if err == nil {
		err = re.canTransmit(arr.src, arr.dst)
	}
	if err != nil {
		lt.metrics.PacketsLost += 1
		re.logger.Warnf("load test packet %s->%s not sent: %v", NodeName(arr.src), NodeName(arr.dst), err)
		re.checkLoadTestDone()
		return nil
	}
	lt.members[pckt] = true
	re.submit(pckt)
	return nil
}

// record accounts for a packet leaving the system during a load test
func (lt *loadTest) record(pckt *Packet, latency float64) {
	if !lt.active || !lt.members[pckt] {
		return
	}
	delete(lt.members, pckt)
	if pckt.State == Delivered {
		lt.metrics.PacketsDelivered += 1
		lt.metrics.DeliveryTimes = append(lt.metrics.DeliveryTimes, latency)
		return
	}
	lt.metrics.PacketsLost += 1
}

// checkLoadTestDone ends the load test once every packet has been released
// and nothing remains queued or in transit
func (re *RingEngine) checkLoadTestDone() {
	lt := re.loadtest
	if !lt.active || lt.pending > 0 || !re.queue.idle() {
		return
	}
	lt.active = false
	lt.metrics.EndTime = re.now()
	re.emit(nodeEvent(LoadTestComplete, -1))
	re.logger.Infof("load test complete: %d/%d delivered (%.1f%%), %d collisions, mean delivery %.3fs",
		lt.metrics.PacketsDelivered, lt.metrics.PacketsSent, lt.metrics.SuccessRate(),
		lt.metrics.Collisions, lt.metrics.AvgDeliveryTime())
}

// StopLoadTest cancels the packets still waiting, leaves any packet in transit
// to finish, and freezes the metrics.  It returns the number of packets cancelled
func (re *RingEngine) StopLoadTest() (int, error) {
	lt := re.loadtest
	if !lt.active {
		return 0, ErrLoadTestIdle
	}
	lt.active = false
	lt.run += 1
	lt.pending = 0

	cancelled := 0
	for _, pckt := range re.queue.drain() {
		pckt.State = Cancelled
		cancelled += 1
	}
	lt.metrics.Cancelled = cancelled
	lt.metrics.EndTime = re.now()
	re.logger.Infof("load test stopped, %d queued packets cancelled", cancelled)
	return cancelled, nil
}

// LoadTestActive is true while a load test runs
func (re *RingEngine) LoadTestActive() bool {
	return re.loadtest.active
}

// LoadTestMetrics returns a copy of the metrics of the current or last load test
func (re *RingEngine) LoadTestMetrics() LoadTestMetrics {
	ltm := re.loadtest.metrics
	ltm.DeliveryTimes = append([]float64{}, ltm.DeliveryTimes...)
	return ltm
}

// BenchmarkResult summarizes the packets of one payload size
type BenchmarkResult struct {
	Size            int     `json:"size" yaml:"size"`
	Sent            int     `json:"sent" yaml:"sent"`
	Delivered       int     `json:"delivered" yaml:"delivered"`
	AvgDeliveryTime float64 `json:"avgdeliverytime" yaml:"avgdeliverytime"`
	SuccessRate     float64 `json:"successrate" yaml:"successrate"`
}

type benchmark struct {
	active      bool
	sizes       []int
	perSize     int
	stage       int
	outstanding map[*Packet]bool
	current     BenchmarkResult
	times       []float64
	results     []BenchmarkResult
}

func createBenchmark() *benchmark {
	bm := new(benchmark)
	bm.outstanding = make(map[*Packet]bool)
	return bm
}

// RunBenchmark measures delivery at each payload size in turn.  At each size
// perSize packets go from node i mod N to node (i+2) mod N
func (re *RingEngine) RunBenchmark(sizes []int, perSize int) error {
	bm := re.bench
	if bm.active || re.loadtest.active {
		return ErrLoadTestActive
	}
	if len(sizes) == 0 {
		sizes = DefaultBenchmarkSizes
	}
	if perSize < 1 {
		perSize = DefaultBenchmarkPerSize
	}
	for _, size := range sizes {
		if size <= 0 || size > MaxPacketSize {
			return fmt.Errorf("%w: benchmark size %d", ErrBadParameter, size)
		}
	}
	if !re.ring.IsIntact() {
		return ErrRingBroken
	}

	bm.active = true
	bm.sizes = append([]int{}, sizes...)
	bm.perSize = perSize
	bm.stage = 0
	bm.results = []BenchmarkResult{}
	re.logger.Infof("benchmark started over sizes %v", bm.sizes)
	re.startBenchStage()
	return nil
}

// startBenchStage sends the packets for the current size
func (re *RingEngine) startBenchStage() {
	bm := re.bench
	size := bm.sizes[bm.stage]
	bm.current = BenchmarkResult{Size: size}
	bm.times = []float64{}
	bm.outstanding = make(map[*Packet]bool)

	n := re.ring.Size()
	for idx := 0; idx < bm.perSize; idx++ {
		bm.current.Sent += 1
		src, dst := idx%n, (idx+2)%n
		pckt, err := createPacket(UnicastPacket, src, dst, size, re.now())
		if err == nil {
			err = re.canTransmit(src, dst)
		}
		if err != nil {
			re.logger.Warnf("benchmark packet %s->%s not sent: %v", NodeName(src), NodeName(dst), err)
			continue
		}
		bm.outstanding[pckt] = true
		re.submit(pckt)
	}
	if len(bm.outstanding) == 0 {
		re.endBenchStage()
	}
}

// record accounts for a benchmark packet leaving the system
func (bm *benchmark) record(re *RingEngine, pckt *Packet, latency float64) {
	if !bm.active || !bm.outstanding[pckt] {
		return
	}
	delete(bm.outstanding, pckt)
	if pckt.State == Delivered {
		bm.current.Delivered += 1
		bm.times = append(bm.times, latency)
	}
	if len(bm.outstanding) == 0 {
		re.evtMgr.Schedule(re, re.epoch, benchStageDone, vrtime.SecondsToTime(0.0))
	}
}

// benchStageDone is the event handler closing one size of a benchmark
func benchStageDone(evtMgr *evtm.EventManager, context any, data any) any {
	re := context.(*RingEngine)
	if data.(int) != re.epoch || !re.bench.active {
		return nil
	}
	re.endBenchStage()
	return nil
}

func (re *RingEngine) endBenchStage() {
	bm := re.bench
	bm.current.AvgDeliveryTime = mean(bm.times)
	if bm.current.Sent > 0 {
		bm.current.SuccessRate = 100.0 * float64(bm.current.Delivered) / float64(bm.current.Sent)
	}
	bm.results = append(bm.results, bm.current)
	re.logger.Infof("benchmark %d bytes: %d/%d delivered, mean delivery %.3fs",
		bm.current.Size, bm.current.Delivered, bm.current.Sent, bm.current.AvgDeliveryTime)

	bm.stage += 1
	if bm.stage < len(bm.sizes) {
		re.startBenchStage()
		return
	}
	bm.active = false
	re.emit(nodeEvent(BenchmarkComplete, -1))
}

// BenchmarkResults returns the results of the current or last benchmark
func (re *RingEngine) BenchmarkResults() []BenchmarkResult {
	return append([]BenchmarkResult{}, re.bench.results...)
}

// BenchmarkActive is true while a benchmark runs
func (re *RingEngine) BenchmarkActive() bool {
	return re.bench.active
}

type autoSim struct {
	running bool
	gen     int
	rng     *rngstream.RngStream
}

// autoPeriod is the time between auto-simulation attempts
func (re *RingEngine) autoPeriod() float64 {
	return 2.0*re.desc.PacketSpeed + 1.5*re.desc.Latency
}

// StartAutoSimulation injects random traffic periodically until stopped
func (re *RingEngine) StartAutoSimulation() {
	if re.auto.running {
		return
	}
	re.auto.running = true
	re.auto.gen += 1
	re.evtMgr.Schedule(re, re.auto.gen, autoTick, vrtime.SecondsToTime(re.autoPeriod()))
	re.logger.Infof("auto simulation started")
}

// StopAutoSimulation ends auto-simulation
func (re *RingEngine) StopAutoSimulation() {
	if !re.auto.running {
		return
	}
	re.auto.running = false
	re.auto.gen += 1
	re.logger.Infof("auto simulation stopped")
}

// autoTick is the event handler for one auto-simulation period.  A packet is
// injected only when the ring is intact and no packet is queued or moving
func autoTick(evtMgr *evtm.EventManager, context any, data any) any {
	re := context.(*RingEngine)
	if !re.auto.running || data.(int) != re.auto.gen {
		return nil
	}
	live := re.ring.LiveNodes()
	if re.ring.IsIntact() && re.queue.idle() && len(live) >= 2 {
		var err error
		if re.auto.rng.RandU01() < 0.25 {
			_, err = re.Broadcast(live[re.sampleIndex(len(live))])
		} else {
			src, dst := re.samplePair(live)
			_, err = re.SendPacket(src, dst)
		}
		if err != nil {
			re.logger.Debugf("auto simulation send failed: %v", err)
		}
	}
	evtMgr.Schedule(re, re.auto.gen, autoTick, vrtime.SecondsToTime(re.autoPeriod()))
	return nil
}
