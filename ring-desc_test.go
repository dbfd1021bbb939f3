package ringnet

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestRingDescRoundTrip(t *testing.T) {
	rd := CreateRingDesc("roundtrip")
	rd.Size = 9
	rd.Latency = 0.25
	rd.Arrivals = "exponential"
	rd.Nodes = append(rd.Nodes, NodeDesc{Name: "node2", Address: "10.0.0.2", Inactive: true})
	rd.AddParameter("Node", "even", "inactive", "true")

	dir := t.TempDir()
	for _, name := range []string{"ring.yaml", "ring.json"} {
		filename := filepath.Join(dir, name)
		if err := rd.WriteToFile(filename); err != nil {
			t.Fatal(err)
		}
		got, err := LoadRingDesc(filename)
		if err != nil {
			t.Fatal(err)
		}
		if !reflect.DeepEqual(got, rd) {
			t.Errorf("%s: read back %+v, want %+v", name, got, rd)
		}
	}
}

func TestPartialDescKeepsDefaults(t *testing.T) {
	dict := []byte("name: partial\nsize: 8\nlatency: 0.1\n")
	rd, err := ReadRingDesc("", true, dict)
	if err != nil {
		t.Fatal(err)
	}
	def := CreateRingDesc("partial")
	def.Size = 8
	def.Latency = 0.1
	if !reflect.DeepEqual(rd, def) {
		t.Errorf("partial description %+v, want %+v", rd, def)
	}

	rd, err = ReadRingDesc("", false, []byte(`{"name": "j", "transitslots": 3}`))
	if err != nil || rd.TransitSlots != 3 || rd.PacketSpeed != 0.8 {
		t.Errorf("json description %+v, %v", rd, err)
	}
}

func TestLoadRingDescErrors(t *testing.T) {
	dir := t.TempDir()
	if _, err := LoadRingDesc(filepath.Join(dir, "ring.toml")); !errors.Is(err, ErrBadParameter) {
		t.Errorf("unknown extension = %v", err)
	}
	if _, err := LoadRingDesc(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("missing file accepted")
	}
	bad := filepath.Join(dir, "bad.yaml")
	os.WriteFile(bad, []byte("size: [1, 2"), 0o644)
	if _, err := LoadRingDesc(bad); err == nil {
		t.Error("malformed yaml accepted")
	}
	if err := CreateRingDesc("x").WriteToFile(filepath.Join(dir, "ring.txt")); !errors.Is(err, ErrBadParameter) {
		t.Errorf("write with unknown extension = %v", err)
	}
}

func TestBuildRingEngine(t *testing.T) {
	rd := CreateRingDesc("built")
	rd.Size = 4
	rd.StartToken = false
	filename := filepath.Join(t.TempDir(), "built.yml")
	if err := rd.WriteToFile(filename); err != nil {
		t.Fatal(err)
	}
	evtMgr, re, err := BuildRingEngine(filename)
	if err != nil {
		t.Fatal(err)
	}
	if evtMgr == nil || re.Size() != 4 {
		t.Errorf("built engine of size %d", re.Size())
	}
}

func TestCheckFiles(t *testing.T) {
	dir := t.TempDir()
	present := filepath.Join(dir, "present.yaml")
	os.WriteFile(present, []byte("size: 5\n"), 0o644)

	if ok, err := CheckReadableFiles([]string{present, ""}); !ok || err != nil {
		t.Errorf("CheckReadableFiles(present) = %v, %v", ok, err)
	}
	absent := filepath.Join(dir, "absent.yaml")
	if ok, _ := CheckReadableFiles([]string{absent}); ok {
		t.Error("absent file reported readable")
	}
	if ok, err := CheckFiles([]string{absent}, false); !ok || err != nil {
		t.Errorf("output file in existing directory = %v, %v", ok, err)
	}
	if ok, _ := CheckFiles([]string{filepath.Join(dir, "nodir", "out.yaml")}, false); ok {
		t.Error("file in missing directory accepted")
	}
}
