package codebook

import "testing"

func testCodebook() *Codebook {
	return &Codebook{
		FileDescription: FileDescription{
			Filename:  "extract.dat",
			Structure: StructureRectangular,
			Encoding:  "iso-8859-1",
		},
		Variables: []VariableDescription{
			{ID: "YEAR", Name: "YEAR", Start: 0, End: 4, Type: DeclaredNumeric},
			{ID: "INCTOT", Name: "INCTOT", Start: 4, End: 10, Type: DeclaredNumeric, DecimalShift: 2},
			{ID: "NAME", Name: "NAME", Start: 10, End: 14, Type: DeclaredCharacter},
		},
	}
}

func TestVariableKind(t *testing.T) {
	cb := testCodebook()
	cases := map[string]Kind{"YEAR": KindInt, "INCTOT": KindFloat, "NAME": KindString}
	for name, want := range cases {
		vd, err := cb.VariableInfo(name)
		if err != nil {
			t.Fatalf("VariableInfo(%s) failed: %v", name, err)
		}
		if vd.Kind() != want {
			t.Errorf("%s kind = %s, want %s", name, vd.Kind(), want)
		}
	}
}

func TestVariableWidth(t *testing.T) {
	vd := VariableDescription{Start: 4, End: 10}
	if vd.Width() != 6 {
		t.Errorf("Width() = %d, want 6", vd.Width())
	}
}

func TestVariableInfoCaseInsensitive(t *testing.T) {
	cb := testCodebook()
	vd, err := cb.VariableInfo("inctot")
	if err != nil {
		t.Fatalf("VariableInfo(inctot) failed: %v", err)
	}
	if vd.Name != "INCTOT" {
		t.Errorf("got %s", vd.Name)
	}

	if _, err := cb.VariableInfo("NOPE"); err == nil {
		t.Error("VariableInfo on a missing name should fail")
	}
}

func TestColumnKinds(t *testing.T) {
	kinds := testCodebook().ColumnKinds()
	if len(kinds) != 3 {
		t.Fatalf("got %d kinds", len(kinds))
	}
	if kinds["YEAR"] != KindInt || kinds["INCTOT"] != KindFloat || kinds["NAME"] != KindString {
		t.Errorf("kinds = %v", kinds)
	}
}

func TestVariableCommon(t *testing.T) {
	rts := []string{"H", "P"}

	untagged := VariableDescription{Name: "SERIAL"}
	if !untagged.Common(rts) {
		t.Error("untagged variable should be common")
	}

	all := VariableDescription{Name: "RECTYPE", RecordTypes: []string{"P", "H"}}
	if !all.Common(rts) {
		t.Error("variable tagged with every record type should be common")
	}

	owned := VariableDescription{Name: "AGE", RecordTypes: []string{"P"}}
	if owned.Common(rts) {
		t.Error("P-only variable should not be common")
	}

	drifted := VariableDescription{Name: "X", RecordTypes: []string{"H", "Q"}}
	if drifted.Common(rts) {
		t.Error("variable with a drifted tag should not be common")
	}
}
