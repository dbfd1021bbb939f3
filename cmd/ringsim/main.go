package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/iti/evt/evtm"
	"github.com/iti/evt/vrtime"
	"github.com/iti/ringnet"
)

// failNode is an event handler taking a node down part-way through the run
func failNode(evtMgr *evtm.EventManager, context any, data any) any {
	re := context.(*ringnet.RingEngine)
	if err := re.FailNode(data.(int)); err != nil {
		ringnet.GetLogger().Errorf("%v", err)
	}
	return nil
}

// startBenchmark is an event handler running the payload-size benchmark
func startBenchmark(evtMgr *evtm.EventManager, context any, data any) any {
	re := context.(*ringnet.RingEngine)
	if err := re.RunBenchmark(nil, 0); err != nil {
		ringnet.GetLogger().Errorf("benchmark not started: %v", err)
	}
	return nil
}

func main() {
	var configFile = flag.String("config", "", "Ring description file (.yaml or .json); built-in defaults if empty")
	var writeConfig = flag.String("writeconfig", "", "Write the ring description in use to this file and exit")
	var loadTest = flag.Int("loadtest", 20, "Number of load-test packets to release (0 for none)")
	var benchmark = flag.Bool("benchmark", false, "Run the payload-size benchmark after the load test")
	var auto = flag.Bool("auto", false, "Inject random traffic for the whole run")
	var fail = flag.String("fail", "", "Name of a node to fail part-way through the run, e.g. node4")
	var until = flag.Float64("until", 120.0, "Simulation time limit, in seconds")
	var traceFile = flag.String("trace", "", "Write an event trace to this file (.yaml or .json)")
	var diagFile = flag.String("diag", "", "Write diagnostics to this file (.yaml or .json)")
	var logLevel = flag.String("loglevel", "info", "Log level: debug, info, warn, error")
	flag.Parse()

	logger := ringnet.NewLogger(os.Stdout, ringnet.ParseLogLevel(*logLevel), "[RING] ")
	ringnet.SetLogger(logger)

	if ok, err := ringnet.CheckFiles([]string{*traceFile, *diagFile, *writeConfig}, false); !ok {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	desc := ringnet.CreateRingDesc("ringsim")
	if len(*configFile) > 0 {
		var err error
		if desc, err = ringnet.LoadRingDesc(*configFile); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}
	desc.Trace = desc.Trace || len(*traceFile) > 0

	if len(*writeConfig) > 0 {
		if err := desc.WriteToFile(*writeConfig); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	evtMgr := evtm.New()
	re, err := ringnet.CreateRingEngine(evtMgr, desc)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	re.Subscribe(func(evt ringnet.RingEvent) {
		switch evt.Type {
		case ringnet.LoadTestComplete:
			// runs outside the listener, once the engine has finished the load test
			if *benchmark {
				evtMgr.Schedule(re, nil, startBenchmark, vrtime.SecondsToTime(0.0))
			}
		case ringnet.BenchmarkComplete:
			for _, res := range re.BenchmarkResults() {
				logger.Infof("%5d bytes: %.0f%% delivered, mean %.3fs", res.Size, res.SuccessRate, res.AvgDeliveryTime)
			}
		}
	})

	if *loadTest > 0 {
		if lerr := re.RunLoadTest(*loadTest); lerr != nil {
			logger.Errorf("load test not started: %v", lerr)
		}
	} else if *benchmark {
		evtMgr.Schedule(re, nil, startBenchmark, vrtime.SecondsToTime(0.0))
	}
	if *auto {
		re.StartAutoSimulation()
	}
	if len(*fail) > 0 {
		idx, nerr := ringnet.NodeIndex(*fail)
		if nerr != nil {
			fmt.Fprintln(os.Stderr, nerr)
			os.Exit(1)
		}
		evtMgr.Schedule(re, idx, failNode, vrtime.SecondsToTime(*until/3.0))
	}

	evtMgr.Run(*until)

	hr, healthy, problems := re.CheckHealth()
	fmt.Printf("%d/%d nodes live, intact %v, healthy %v\n", hr.Active, hr.Total, hr.RingIntact, healthy)
	for _, p := range problems {
		fmt.Printf("  %s\n", p)
	}
	ltm := re.LoadTestMetrics()
	fmt.Printf("load test: %d sent, %d delivered (%.1f%%), %d collisions, mean delivery %.3fs\n",
		ltm.PacketsSent, ltm.PacketsDelivered, ltm.SuccessRate(), ltm.Collisions, ltm.AvgDeliveryTime())
	re.Analyze()

	if len(*traceFile) > 0 {
		if _, terr := re.Trace().WriteToFile(*traceFile); terr != nil {
			fmt.Fprintln(os.Stderr, terr)
		}
	}
	if len(*diagFile) > 0 {
		diag := re.Diagnostics()
		if derr := diag.WriteToFile(*diagFile); derr != nil {
			fmt.Fprintln(os.Stderr, derr)
		}
	}
}
