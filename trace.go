package ringnet

// trace.go gathers a record of the events of a simulation run for post-run
// analysis.  Each record is serialized as it is taken, and the whole trace
// can be written out as yaml or json.

import (
	"encoding/json"
	"fmt"
	"gopkg.in/yaml.v3"
	"os"
	"path"
	"strconv"
)

type TraceInst struct {
	TraceTime string `json:"tracetime" yaml:"tracetime"`
	TraceType string `json:"tracetype" yaml:"tracetype"`
	TraceStr  string `json:"tracestr" yaml:"tracestr"`
}

// TraceManager gathers trace records about an execution of the ring model
type TraceManager struct {
	// experiment uses trace
	InUse bool `json:"inuse" yaml:"inuse"`

	// name of experiment
	ExpName string `json:"expname" yaml:"expname"`

	// text name associated with each node index
	NameByID map[int]string `json:"namebyid" yaml:"namebyid"`

	// all trace records for this experiment, in the order taken
	Traces []TraceInst `json:"traces" yaml:"traces"`
}

// CreateTraceManager is a constructor.  It saves the name of the experiment
// and a flag indicating whether the trace manager is active.  Calls to its
// methods can then be embedded everywhere and do nothing when it is not
func CreateTraceManager(expName string, active bool) *TraceManager {
	tm := new(TraceManager)
	tm.InUse = active
	tm.ExpName = expName
	tm.NameByID = make(map[int]string)
	tm.Traces = make([]TraceInst, 0)
	return tm
}

// Active tells the caller whether the Trace Manager is actively being used
func (tm *TraceManager) Active() bool {
	return tm != nil && tm.InUse
}

// AddName is used to add an element to the index -> name dictionary for the trace file
func (tm *TraceManager) AddName(id int, name string) {
	if tm.Active() {
		tm.NameByID[id] = name
	}
}

// EventTrace is the serialized form of a RingEvent
type EventTrace struct {
	Time     float64 `json:"time" yaml:"time"`
	Op       string  `json:"op" yaml:"op"`
	Node     int     `json:"node" yaml:"node"`
	Peer     int     `json:"peer" yaml:"peer"`
	Live     bool    `json:"live,omitempty" yaml:"live,omitempty"`
	PacketID string  `json:"packetid,omitempty" yaml:"packetid,omitempty"`
	OtherID  string  `json:"otherid,omitempty" yaml:"otherid,omitempty"`
	Duration float64 `json:"duration,omitempty" yaml:"duration,omitempty"`
	Err      string  `json:"err,omitempty" yaml:"err,omitempty"`
}

func (etr *EventTrace) Serialize() string {
	bytes, merr := yaml.Marshal(*etr)
	if merr != nil {
		panic(merr)
	}
	return string(bytes[:])
}

// AddEvent creates a record of the event and stores it
func (tm *TraceManager) AddEvent(evt RingEvent) {
	if !tm.Active() {
		return
	}
	etr := EventTrace{Time: evt.Time, Op: evt.Type.String(), Node: evt.Node, Peer: evt.Peer,
		Live: evt.Live, PacketID: evt.PacketID, OtherID: evt.OtherID, Duration: evt.Duration}
	if evt.Err != nil {
		etr.Err = evt.Err.Error()
	}
	traceTime := strconv.FormatFloat(evt.Time, 'f', -1, 64)
	tm.Traces = append(tm.Traces, TraceInst{TraceTime: traceTime, TraceType: "ring", TraceStr: etr.Serialize()})
}

// WriteToFile stores the TraceManager struct to the file whose name is given.
// Serialization to json or to yaml is selected based on the extension of this name.
// Nothing is written, and false returned, when the trace manager is not in use
func (tm *TraceManager) WriteToFile(filename string) (bool, error) {
	if !tm.Active() {
		return false, nil
	}
	if err := writeSerialized(filename, tm); err != nil {
		return false, err
	}
	return true, nil
}

// writeSerialized writes obj to filename as yaml or json, by the file extension
func writeSerialized(filename string, obj any) error {
	var bytes []byte
	var merr error

	switch path.Ext(filename) {
	case ".yaml", ".YAML", ".yml":
		bytes, merr = yaml.Marshal(obj)
	case ".json", ".JSON":
		bytes, merr = json.MarshalIndent(obj, "", "\t")
	default:
		return fmt.Errorf("%w: %s needs a .yaml, .yml, or .json extension", ErrBadParameter, filename)
	}
	if merr != nil {
		return merr
	}

	f, cerr := os.Create(filename)
	if cerr != nil {
		return cerr
	}
	_, werr := f.Write(bytes)
	if cerr = f.Close(); werr == nil {
		werr = cerr
	}
	return werr
}
