package ringnet

// ring-desc.go holds the description of a ring experiment that is read from
// (and written to) a configuration file, and the checks made on it before a
// RingEngine is built from it.  Serialization is yaml or json, selected by
// the file name's extension.

import (
	"encoding/json"
	"fmt"
	"gopkg.in/yaml.v3"
	"os"
	"path"
	"path/filepath"
)

// NodeDesc carries per-node settings.  Entries beyond the ring size are ignored
type NodeDesc struct {
	// node name, e.g. "node3"
	Name string `json:"name" yaml:"name"`

	// address assigned to the node; empty means the default
	Address string `json:"address,omitempty" yaml:"address,omitempty"`

	// node starts out failed
	Inactive bool `json:"inactive,omitempty" yaml:"inactive,omitempty"`
}

// RingDesc describes a ring and the timing of the traffic it carries.
// Times are in seconds
type RingDesc struct {
	// name of the experiment
	Name string `json:"name" yaml:"name"`

	// number of nodes, in [MinRingSize, MaxRingSize]
	Size int `json:"size" yaml:"size"`

	// +1 for clockwise token and broadcast movement, -1 for counter-clockwise
	Direction int `json:"direction" yaml:"direction"`

	// base time for one hop of a packet of BasePacketSize bytes
	PacketSpeed float64 `json:"packetspeed" yaml:"packetspeed"`

	// time between token ticks
	TokenPeriod float64 `json:"tokenperiod" yaml:"tokenperiod"`

	// added to every hop, and to the gap between hops
	Latency float64 `json:"latency" yaml:"latency"`

	// payload of packets sent without an explicit size, in bytes
	PacketSize int `json:"packetsize" yaml:"packetsize"`

	// whether packets in transit can collide
	Collisions bool `json:"collisions" yaml:"collisions"`

	// distance in the layout plane below which two packets collide
	CollisionRadius float64 `json:"collisionradius" yaml:"collisionradius"`

	// number of parts a hop is divided into for collision checks
	CollisionProbes int `json:"collisionprobes" yaml:"collisionprobes"`

	// number of packets allowed in transit at once
	TransitSlots int `json:"transitslots" yaml:"transitslots"`

	// pause between the hops of a packet, before latency is added
	HopGap float64 `json:"hopgap" yaml:"hopgap"`

	// pause after a delivery before the next queued packet starts
	QueueGap float64 `json:"queuegap" yaml:"queuegap"`

	// pause after a collision or abort before the next queued packet starts
	CollisionGap float64 `json:"collisiongap" yaml:"collisiongap"`

	// spacing of load-test arrivals, before half the latency is added
	ArrivalGap float64 `json:"arrivalgap" yaml:"arrivalgap"`

	// load-test inter-arrival distribution, "constant" or "exponential"
	Arrivals string `json:"arrivals" yaml:"arrivals"`

	// radius of the circle the nodes are placed on
	LayoutRadius float64 `json:"layoutradius" yaml:"layoutradius"`

	// start the token circulating when the engine is built
	StartToken bool `json:"starttoken" yaml:"starttoken"`

	// name of the random number stream used for traffic generation
	RngName string `json:"rngname" yaml:"rngname"`

	// record a trace of engine events
	Trace bool `json:"trace" yaml:"trace"`

	// per-node settings
	Nodes []NodeDesc `json:"nodes,omitempty" yaml:"nodes,omitempty"`

	// parameters applied over the values above, most general first
	Parameters []ExpParameter `json:"parameters,omitempty" yaml:"parameters,omitempty"`
}

// CreateRingDesc is a constructor, filling in the default ring
func CreateRingDesc(name string) *RingDesc {
	rd := new(RingDesc)
	rd.Name = name
	rd.Size = DefaultRingSize
	rd.Direction = 1
	rd.PacketSpeed = 0.8
	rd.TokenPeriod = 0.6
	rd.Latency = 0.05
	rd.PacketSize = BasePacketSize
	rd.Collisions = true
	rd.CollisionRadius = 30.0
	rd.CollisionProbes = 4
	rd.TransitSlots = 1
	rd.HopGap = 0.05
	rd.QueueGap = 0.2
	rd.CollisionGap = 0.1
	rd.ArrivalGap = 0.1
	rd.Arrivals = "constant"
	rd.LayoutRadius = 200.0
	rd.StartToken = true
	rd.RngName = "ringnet"
	rd.Nodes = []NodeDesc{}
	rd.Parameters = []ExpParameter{}
	return rd
}

// Validate gathers every problem with the description into one error
func (rd *RingDesc) Validate() error {
	errs := []error{}
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrBadParameter}, args...)...))
		}
	}
	check(rd.Size >= MinRingSize && rd.Size <= MaxRingSize, "size %d outside [%d,%d]", rd.Size, MinRingSize, MaxRingSize)
	check(rd.Direction == 1 || rd.Direction == -1, "direction %d is not 1 or -1", rd.Direction)
	check(rd.PacketSpeed > 0, "packet speed %g", rd.PacketSpeed)
	check(rd.TokenPeriod > 0, "token period %g", rd.TokenPeriod)
	check(rd.Latency >= 0, "latency %g", rd.Latency)
	check(rd.PacketSize > 0 && rd.PacketSize <= MaxPacketSize, "packet size %d outside (0,%d]", rd.PacketSize, MaxPacketSize)
	check(rd.CollisionRadius >= 0, "collision radius %g", rd.CollisionRadius)
	check(rd.CollisionProbes >= 2, "collision probes %d below 2", rd.CollisionProbes)
	check(rd.TransitSlots >= 1, "transit slots %d below 1", rd.TransitSlots)
	check(rd.HopGap >= 0 && rd.QueueGap >= 0 && rd.CollisionGap >= 0 && rd.ArrivalGap >= 0, "negative gap")
	check(rd.Arrivals == "constant" || rd.Arrivals == "const" || rd.Arrivals == "exponential" ||
		rd.Arrivals == "exp" || rd.Arrivals == "expon", "arrival distribution %q", rd.Arrivals)
	check(rd.LayoutRadius > 0, "layout radius %g", rd.LayoutRadius)

	addrs := make(map[string]string)
	for _, nd := range rd.Nodes {
		idx, err := NodeIndex(nd.Name)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if idx >= rd.Size || len(nd.Address) == 0 {
			continue
		}
		if other, present := addrs[nd.Address]; present {
			check(false, "address %s given to both %s and %s", nd.Address, other, nd.Name)
		}
		addrs[nd.Address] = nd.Name
	}
	for _, param := range rd.Parameters {
		if err := ValidateParameter(param.ParamObj, param.Attribute, param.Param); err != nil {
			errs = append(errs, err)
		}
	}
	return ReportErrs(errs)
}

// nodeDesc returns the settings for node idx, creating an entry if needed
func (rd *RingDesc) nodeDesc(idx int) *NodeDesc {
	name := NodeName(idx)
	for jdx := range rd.Nodes {
		if rd.Nodes[jdx].Name == name {
			return &rd.Nodes[jdx]
		}
	}
	rd.Nodes = append(rd.Nodes, NodeDesc{Name: name})
	return &rd.Nodes[len(rd.Nodes)-1]
}

// WriteToFile stores the RingDesc struct to the file whose name is given.
// Serialization to json or to yaml is selected based on the extension of this name.
func (rd *RingDesc) WriteToFile(filename string) error {
	return writeSerialized(filename, rd)
}

// ReadRingDesc deserializes a byte slice holding a representation of a RingDesc struct.
// If the input argument of dict (those bytes) is empty, the file whose name is given is read
// to acquire them.  Fields the representation leaves out keep their default values
func ReadRingDesc(filename string, useYAML bool, dict []byte) (*RingDesc, error) {
	var err error

	// read from the file only if the byte slice is empty
	if len(dict) == 0 {
		fileInfo, serr := os.Stat(filename)
		if serr != nil || fileInfo.IsDir() {
			return nil, fmt.Errorf("ring description %s does not exist or cannot be read", filename)
		}
		dict, err = os.ReadFile(filename)
		if err != nil {
			return nil, err
		}
	}

	rd := CreateRingDesc("")
	if useYAML {
		err = yaml.Unmarshal(dict, rd)
	} else {
		err = json.Unmarshal(dict, rd)
	}
	if err != nil {
		return nil, err
	}
	return rd, nil
}

// LoadRingDesc reads a RingDesc from a file, picking the decoder from the extension
func LoadRingDesc(filename string) (*RingDesc, error) {
	switch path.Ext(filename) {
	case ".yaml", ".YAML", ".yml":
		return ReadRingDesc(filename, true, nil)
	case ".json", ".JSON":
		return ReadRingDesc(filename, false, nil)
	}
	return nil, fmt.Errorf("%w: %s needs a .yaml, .yml, or .json extension", ErrBadParameter, filename)
}

// CheckReadableFiles checks that every named file exists
func CheckReadableFiles(names []string) (bool, error) {
	return CheckFiles(names, true)
}

// CheckFiles checks that the directory of every named file exists and, if
// checkExistence is set, that the file does too
func CheckFiles(names []string, checkExistence bool) (bool, error) {
	errs := make([]error, 0)

	for _, name := range names {
		// skip empty names
		if len(name) == 0 {
			continue
		}

		directory, _ := filepath.Split(name)
		if len(directory) == 0 {
			directory = "."
		}
		if _, err := os.Stat(directory); err != nil {
			errs = append(errs, err)
		}
		if checkExistence {
			if _, err := os.Stat(name); err != nil {
				errs = append(errs, err)
			}
		}
	}

	if len(errs) == 0 {
		return true, nil
	}
	return false, ReportErrs(errs)
}
