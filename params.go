package ringnet

// params.go applies experiment parameters to a RingDesc.  A parameter names
// the kind of object it configures (the ring, or its nodes), an attribute that
// selects which objects of that kind it applies to, the parameter, and a value.
// Parameters are applied most general first: wildcards, then group attributes,
// then parameters naming a single object, so that the more specific setting wins.

import (
	"fmt"
	"golang.org/x/exp/slices"
	"sort"
	"strconv"
	"strings"
)

// An ExpParameter describes one run-time configuration input
//   - ParamObj is the kind of thing configured, "Ring" or "Node"
//   - Attribute selects among things of that kind.  It is "*", or "name%%xx"
//     where xx is the object's name, or a comma-separated list of group
//     attributes ("even", "odd", "index%%n")
type ExpParameter struct {
	// Type of thing being configured
	ParamObj string `json:"paramObj" yaml:"paramObj"`

	// attribute identifier for this parameter
	Attribute string `json:"attribute" yaml:"attribute"`

	// parameter type, e.g. "latency", "address"
	Param string `json:"param" yaml:"param"`

	// string-encoded value associated with type
	Value string `json:"value" yaml:"value"`
}

// CreateExpParameter is a constructor.  Completely fills in the struct with the [ExpParameter] attributes.
func CreateExpParameter(paramObj, attribute, param, value string) *ExpParameter {
	return &ExpParameter{ParamObj: paramObj, Attribute: attribute, Param: param, Value: value}
}

var ExpParamObjs []string = []string{"Ring", "Node"}

var ExpAttributes map[string][]string = map[string][]string{
	"Ring": {"*"},
	"Node": {"even", "odd", "index", "*"},
}

var ExpParams map[string][]string = map[string][]string{
	"Ring": {"size", "direction", "speed", "tokenperiod", "latency", "packetsize", "collisions",
		"collisionradius", "probes", "slots", "arrivals", "trace"},
	"Node": {"address", "inactive"},
}

// splitAttrb separates "key%%value" into its parts; other attributes have an empty value
func splitAttrb(attrb string) (string, string) {
	name, value, found := strings.Cut(attrb, "%%")
	if !found {
		return attrb, ""
	}
	return name, value
}

// ValidateParameter returns an error if the paramObj, attribute, and param values don't
// make sense taken together within an ExpParameter.
func ValidateParameter(paramObj, attribute, param string) error {
	if !slices.Contains(ExpParamObjs, paramObj) {
		return fmt.Errorf("%w: paramObj %s is not recognized", ErrBadParameter, paramObj)
	}
	if !slices.Contains(ExpParams[paramObj], param) {
		return fmt.Errorf("%w: parameter %s is not recognized for paramObj %s", ErrBadParameter, param, paramObj)
	}

	attrbList := strings.Split(attribute, ",")
	for _, attrb := range attrbList {
		name, value := splitAttrb(attrb)

		// "*" and a name each have to stand alone
		if name == "*" || name == "name" {
			if len(attrbList) != 1 {
				return fmt.Errorf("%w: attribute %s of paramObj %s is combined with others", ErrBadParameter, attrb, paramObj)
			}
			return nil
		}
		if !slices.Contains(ExpAttributes[paramObj], name) {
			return fmt.Errorf("%w: attribute %s is not recognized for paramObj %s", ErrBadParameter, attrb, paramObj)
		}
		if name == "index" {
			if _, err := strconv.Atoi(value); err != nil {
				return fmt.Errorf("%w: attribute %s needs an integer index", ErrBadParameter, attrb)
			}
		}
	}
	return nil
}

// AddParameter accepts the four values in an ExpParameter, creates one, and adds to the RingDesc's list.
// Returns an error if the parameters are not validated.
func (rd *RingDesc) AddParameter(paramObj, attribute, param, value string) error {
	if err := ValidateParameter(paramObj, attribute, param); err != nil {
		return err
	}
	rd.Parameters = append(rd.Parameters, *CreateExpParameter(paramObj, attribute, param, value))
	return nil
}

// A valueStruct type holds the different types a value might have,
// typically only one of these is used, and which one is known by context.
// stringValue always keeps the text the value was parsed from
type valueStruct struct {
	intValue    int
	floatValue  float64
	stringValue string
	boolValue   bool
}

// stringToValueStruct takes a string (used in the run-time configuration phase)
// and determines whether it is an integer, floating point, boolean, or a string
func stringToValueStruct(v string) valueStruct {
	vs := valueStruct{stringValue: v}

	// try conversion to int
	if ivalue, ierr := strconv.Atoi(v); ierr == nil {
		vs.intValue = ivalue
		vs.floatValue = float64(ivalue)
		return vs
	}

	// failing that, try conversion to float
	if fvalue, ferr := strconv.ParseFloat(v, 64); ferr == nil {
		vs.floatValue = fvalue
		return vs
	}

	// left with it being a string.  See if true, True
	if v == "true" || v == "True" {
		vs.boolValue = true
	}
	return vs
}

// attrbRank orders parameters from the broadest attribute (0, wildcard) through
// group attributes (1) to a single named object (2)
func attrbRank(param ExpParameter) int {
	for _, attrb := range strings.Split(param.Attribute, ",") {
		name, _ := splitAttrb(attrb)
		if name == "*" {
			return 0
		}
		if name == "name" {
			return 2
		}
	}
	return 1
}

// reorderExpParams puts the parameters in an order such that the earlier elements have
// a broader range of application than later ones that apply to the same object.
// Within a rank the order given is kept, and exact duplicates are removed
func reorderExpParams(pL []ExpParameter) []ExpParameter {
	ordered := append([]ExpParameter{}, pL...)
	sort.SliceStable(ordered, func(i, j int) bool { return attrbRank(ordered[i]) < attrbRank(ordered[j]) })

	rtn := []ExpParameter{}
	for _, param := range ordered {
		if !slices.Contains(rtn, param) {
			rtn = append(rtn, param)
		}
	}
	return rtn
}

// paramObj is implemented by the things an ExpParameter can configure
type paramObj interface {
	matchParam(attrbName, attrbValue string) bool
	setParam(param string, vs valueStruct) error
	paramObjName() string
}

// ringParamObj configures the ring as a whole
type ringParamObj struct {
	rd *RingDesc
}

func (rpo *ringParamObj) paramObjName() string {
	return rpo.rd.Name
}

func (rpo *ringParamObj) matchParam(attrbName, attrbValue string) bool {
	return attrbName == "name" && attrbValue == rpo.rd.Name
}

func (rpo *ringParamObj) setParam(param string, vs valueStruct) error {
	rd := rpo.rd
	switch param {
	case "size":
		rd.Size = vs.intValue
	case "direction":
		rd.Direction = vs.intValue
	case "speed":
		rd.PacketSpeed = vs.floatValue
	case "tokenperiod":
		rd.TokenPeriod = vs.floatValue
	case "latency":
		rd.Latency = vs.floatValue
	case "packetsize":
		rd.PacketSize = vs.intValue
	case "collisions":
		rd.Collisions = vs.boolValue
	case "collisionradius":
		rd.CollisionRadius = vs.floatValue
	case "probes":
		rd.CollisionProbes = vs.intValue
	case "slots":
		rd.TransitSlots = vs.intValue
	case "arrivals":
		rd.Arrivals = vs.stringValue
	case "trace":
		rd.Trace = vs.boolValue
	default:
		return fmt.Errorf("%w: ring parameter %s", ErrBadParameter, param)
	}
	return nil
}

// nodeParamObj configures one node of the ring
type nodeParamObj struct {
	rd  *RingDesc
	idx int
}

func (npo *nodeParamObj) paramObjName() string {
	return NodeName(npo.idx)
}

func (npo *nodeParamObj) matchParam(attrbName, attrbValue string) bool {
	switch attrbName {
	case "name":
		return attrbValue == npo.paramObjName()
	case "index":
		return attrbValue == strconv.Itoa(npo.idx)
	case "even":
		return npo.idx%2 == 0
	case "odd":
		return npo.idx%2 == 1
	}
	return false
}

func (npo *nodeParamObj) setParam(param string, vs valueStruct) error {
	nd := npo.rd.nodeDesc(npo.idx)
	switch param {
	case "address":
		nd.Address = vs.stringValue
	case "inactive":
		nd.Inactive = vs.boolValue
	default:
		return fmt.Errorf("%w: node parameter %s", ErrBadParameter, param)
	}
	return nil
}

// ApplyParameters folds the description's parameter list into its fields.
// Ring parameters are applied first, since the ring size determines which
// nodes exist for the node parameters to match
func (rd *RingDesc) ApplyParameters() error {
	errs := []error{}
	ordered := reorderExpParams(rd.Parameters)

	ringObjs := []paramObj{&ringParamObj{rd: rd}}
	errs = append(errs, applyToObjs(ordered, "Ring", ringObjs)...)

	nodeObjs := []paramObj{}
	for idx := 0; idx < min(max(rd.Size, 0), MaxRingSize); idx++ {
		nodeObjs = append(nodeObjs, &nodeParamObj{rd: rd, idx: idx})
	}
	errs = append(errs, applyToObjs(ordered, "Node", nodeObjs)...)
	return ReportErrs(errs)
}

// applyToObjs applies every parameter for kind objKind to each object it matches
func applyToObjs(params []ExpParameter, objKind string, objs []paramObj) []error {
	errs := []error{}
	for _, param := range params {
		if param.ParamObj != objKind {
			continue
		}
		if err := ValidateParameter(param.ParamObj, param.Attribute, param.Param); err != nil {
			errs = append(errs, err)
			continue
		}
		vs := stringToValueStruct(param.Value)
		for _, testObj := range objs {
			if !paramMatches(testObj, param.Attribute) {
				continue
			}
			if err := testObj.setParam(param.Param, vs); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errs
}

// paramMatches is true when every attribute in the comma-separated list
// matches the object, or the list is the wildcard
func paramMatches(testObj paramObj, attribute string) bool {
	for _, attrb := range strings.Split(attribute, ",") {
		name, value := splitAttrb(attrb)
		if name == "*" {
			return true
		}
		if !testObj.matchParam(name, value) {
			return false
		}
	}
	return true
}
