package semver

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		input   string
		want    Version
		wantErr bool
	}{
		{input: "1.2.3", want: Version{1, 2, 3}},
		{input: "v0.0.1", want: Version{0, 0, 1}},
		{input: " 10.20.30 ", want: Version{10, 20, 30}},
		{input: "1.2", wantErr: true},
		{input: "1.2.3.4", wantErr: true},
		{input: "1.2.x", wantErr: true},
		{input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := Parse(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("Parse(%q) expected error, got %v", tt.input, got)
				}
				if !errors.Is(err, ErrInvalidVersion) {
					t.Errorf("Parse(%q) error = %v, want ErrInvalidVersion", tt.input, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse(%q) error = %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("Parse(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestCompare(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"1.0.0", "1.0.0", 0},
		{"1.0.0", "2.0.0", -1},
		{"1.10.0", "1.9.0", 1},
		{"1.0.9", "1.0.10", -1},
		{"2.0.0", "1.99.99", 1},
	}

	for _, tt := range tests {
		got := MustParse(tt.a).Compare(MustParse(tt.b))
		if got != tt.want {
			t.Errorf("Compare(%s, %s) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestParseConstraint(t *testing.T) {
	tests := []struct {
		input string
		op    Op
		ver   string
	}{
		{"1.2.3", OpExact, "1.2.3"},
		{"=1.2.3", OpExact, "1.2.3"},
		{">=0.9.0", OpAtLeast, "0.9.0"},
	}

	for _, tt := range tests {
		c, err := ParseConstraint(tt.input)
		if err != nil {
			t.Fatalf("ParseConstraint(%q) error = %v", tt.input, err)
		}
		if c.Op != tt.op || c.Version != MustParse(tt.ver) {
			t.Errorf("ParseConstraint(%q) = %+v", tt.input, c)
		}
	}

	if _, err := ParseConstraint("~1.0.0"); !errors.Is(err, ErrInvalidConstraint) {
		t.Errorf("ParseConstraint(~1.0.0) error = %v, want ErrInvalidConstraint", err)
	}
}

func TestConstraintAllows(t *testing.T) {
	exact := Exact(MustParse("1.2.3"))
	if !exact.Allows(MustParse("1.2.3")) {
		t.Error("exact constraint should allow its own version")
	}
	if exact.Allows(MustParse("1.2.4")) {
		t.Error("exact constraint should not allow a newer version")
	}

	min := AtLeast(MustParse("1.2.3"))
	if !min.Allows(MustParse("2.0.0")) {
		t.Error("minimum constraint should allow newer versions")
	}
	if min.Allows(MustParse("1.2.2")) {
		t.Error("minimum constraint should not allow older versions")
	}

	if !Any().Allows(Version{}) {
		t.Error("Any() should allow 0.0.0")
	}
}

func TestHighest(t *testing.T) {
	candidates := []Version{MustParse("1.0.0"), MustParse("1.4.0"), MustParse("2.1.0"), MustParse("0.9.0")}

	got, ok := Highest(AtLeast(MustParse("1.0.0")), candidates)
	if !ok || got != MustParse("2.1.0") {
		t.Errorf("Highest(>=1.0.0) = %v, %v; want 2.1.0", got, ok)
	}

	got, ok = Highest(Exact(MustParse("1.4.0")), candidates)
	if !ok || got != MustParse("1.4.0") {
		t.Errorf("Highest(=1.4.0) = %v, %v; want 1.4.0", got, ok)
	}

	if _, ok := Highest(Exact(MustParse("3.0.0")), candidates); ok {
		t.Error("Highest(=3.0.0) should find nothing")
	}
}

func TestVersionJSON(t *testing.T) {
	type record struct {
		Version Version `json:"version"`
	}

	data, err := json.Marshal(record{Version: MustParse("5.4.2202")})
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if string(data) != `{"version":"5.4.2202"}` {
		t.Errorf("Marshal = %s", data)
	}

	var back record
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if back.Version != MustParse("5.4.2202") {
		t.Errorf("Unmarshal = %v", back.Version)
	}
}

func TestSortDescending(t *testing.T) {
	versions := []Version{MustParse("1.0.0"), MustParse("3.0.0"), MustParse("2.0.0")}
	SortDescending(versions)
	want := []string{"3.0.0", "2.0.0", "1.0.0"}
	for i, v := range versions {
		if v.String() != want[i] {
			t.Errorf("versions[%d] = %s, want %s", i, v, want[i])
		}
	}
}

func TestConstraintText(t *testing.T) {
	text, err := AtLeast(MustParse("1.2.3")).MarshalText()
	if err != nil {
		t.Fatalf("MarshalText failed: %v", err)
	}
	if string(text) != ">=1.2.3" {
		t.Errorf("MarshalText = %s", text)
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(map[string]Constraint{"c": AtLeast(MustParse("1.2.3"))}); err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	data := bytes.TrimSpace(buf.Bytes())
	if string(data) != `{"c":">=1.2.3"}` {
		t.Errorf("Encode = %s", data)
	}

	// The default encoder escapes '>' but still round-trips.
	escaped, err := json.Marshal(map[string]Constraint{"c": AtLeast(MustParse("1.2.3"))})
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var back map[string]Constraint
	if err := json.Unmarshal(escaped, &back); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if back["c"] != AtLeast(MustParse("1.2.3")) {
		t.Errorf("Unmarshal = %+v", back["c"])
	}
}
