package diagfmt

import (
	"bytes"
	"testing"

	"github.com/goccy/go-json"

	"astrols/internal/diag"
)

func TestJSONOutput(t *testing.T) {
	unused := record("/p/src/a.ts", 2, 6, 7, diag.SevHint, diag.DeclaredButNeverRead, "'y' is declared but its value is never read.")
	unused.Tags = []diag.Tag{diag.TagUnnecessary}
	bag := bagOf(
		record("/p/src/a.ts", 0, 4, 5, diag.SevError, diag.CannotFindName, "Cannot find name 'x'."),
		unused,
	)

	var buf bytes.Buffer
	if err := JSON(&buf, bag, JSONOpts{PathMode: PathModeRelative, BaseDir: "/p"}); err != nil {
		t.Fatalf("JSON: %v", err)
	}
	var out DiagnosticsOutput
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("unmarshal: %v\n%s", err, buf.String())
	}
	if out.Count != 2 || len(out.Diagnostics) != 2 {
		t.Fatalf("count = %d, diagnostics = %d", out.Count, len(out.Diagnostics))
	}
	first := out.Diagnostics[0]
	if first.File != "src/a.ts" || first.Code != "TS2304" || first.Number != 2304 || first.Severity != "ERROR" {
		t.Errorf("unexpected first diagnostic: %+v", first)
	}
	if first.Range.Start.Character != 4 || first.Source != "ts" {
		t.Errorf("unexpected range or source: %+v", first)
	}
	if got := out.Diagnostics[1].Tags; len(got) != 1 || got[0] != "unnecessary" {
		t.Errorf("tags = %v", got)
	}
}

func TestJSONMax(t *testing.T) {
	bag := bagOf(
		record("/p/a.ts", 0, 0, 1, diag.SevError, 2304, "a"),
		record("/p/a.ts", 1, 0, 1, diag.SevError, 2304, "b"),
		record("/p/a.ts", 2, 0, 1, diag.SevError, 2304, "c"),
	)
	out := BuildDiagnosticsOutput(bag, JSONOpts{Max: 2})
	if out.Count != 2 || out.Diagnostics[1].Message != "b" {
		t.Errorf("max not applied: %+v", out)
	}
}

func TestSarifOutput(t *testing.T) {
	bag := bagOf(
		record("/p/src/index.astro", 1, 20, 37, diag.SevError, diag.CannotFindModule, "Cannot find module './Missing.astro'."),
		record("/p/src/index.astro", 3, 0, 2, diag.SevHint, diag.DeclaredButNeverRead, "unused"),
		record("/p/src/other.astro", 0, 0, 1, diag.SevError, diag.CannotFindModule, "again"),
	)
	var buf bytes.Buffer
	err := Sarif(&buf, bag, SarifRunMeta{ToolName: "astrols", ToolVersion: "0.1.0", BaseDir: "/p", InvocationArgs: []string{"check"}})
	if err != nil {
		t.Fatalf("Sarif: %v", err)
	}

	var log struct {
		Version string `json:"version"`
		Runs    []struct {
			Tool struct {
				Driver struct {
					Name  string `json:"name"`
					Rules []struct {
						ID string `json:"id"`
					} `json:"rules"`
				} `json:"driver"`
			} `json:"tool"`
			Invocations []struct {
				ExecutionSuccessful bool `json:"executionSuccessful"`
			} `json:"invocations"`
			Results []struct {
				RuleID    string `json:"ruleId"`
				Level     string `json:"level"`
				Locations []struct {
					PhysicalLocation struct {
						ArtifactLocation struct {
							URI string `json:"uri"`
						} `json:"artifactLocation"`
						Region struct {
							StartLine   int `json:"startLine"`
							StartColumn int `json:"startColumn"`
						} `json:"region"`
					} `json:"physicalLocation"`
				} `json:"locations"`
			} `json:"results"`
		} `json:"runs"`
	}
	if err := json.Unmarshal(buf.Bytes(), &log); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if log.Version != "2.1.0" || len(log.Runs) != 1 {
		t.Fatalf("bad envelope: %+v", log)
	}
	run := log.Runs[0]
	if run.Tool.Driver.Name != "astrols" || len(run.Tool.Driver.Rules) != 2 {
		t.Errorf("rules should be deduplicated: %+v", run.Tool.Driver)
	}
	if run.Tool.Driver.Rules[0].ID != "TS2307" {
		t.Errorf("rules sorted by code, got %s first", run.Tool.Driver.Rules[0].ID)
	}
	if len(run.Invocations) != 1 || run.Invocations[0].ExecutionSuccessful {
		t.Errorf("errors present, invocation must not be successful: %+v", run.Invocations)
	}
	res := run.Results[0]
	loc := res.Locations[0].PhysicalLocation
	if res.Level != "error" || loc.ArtifactLocation.URI != "src/index.astro" || loc.Region.StartLine != 2 || loc.Region.StartColumn != 21 {
		t.Errorf("unexpected result: %+v", res)
	}
	if run.Results[1].Level != "note" {
		t.Errorf("hint level = %q", run.Results[1].Level)
	}
}

func TestMsgpackPayload(t *testing.T) {
	rec := record("/p/a.astro", 4, 2, 9, diag.SevWarning, diag.CannotFindName, "w")
	rec.Tags = []diag.Tag{diag.TagDeprecated}
	var buf bytes.Buffer
	if err := Msgpack(&buf, bagOf(rec)); err != nil {
		t.Fatalf("Msgpack: %v", err)
	}
	bag, err := ReadMsgpack(&buf)
	if err != nil {
		t.Fatalf("ReadMsgpack: %v", err)
	}
	if bag.Len() != 1 {
		t.Fatalf("len = %d", bag.Len())
	}
	got := bag.Items()[0]
	if got.Path != rec.Path || got.Range != rec.Range || got.Code != rec.Code || !got.HasTag(diag.TagDeprecated) {
		t.Errorf("payload changed records: %+v", got)
	}
}
