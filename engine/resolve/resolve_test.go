package resolve

import (
	"errors"
	"testing"

	"github.com/nathoo/parley/engine/state"
	"github.com/nathoo/parley/types"
)

func testDefs() *state.Defs {
	defs := state.NewDefs()
	defs.NPCDefs["innkeeper"] = types.NPCDef{ID: "innkeeper", Name: "Innkeeper Marta"}
	defs.NPCDefs["old_smith"] = types.NPCDef{ID: "old_smith", Name: "Old Smith"}
	defs.NPCDefs["guard_captain"] = types.NPCDef{ID: "guard_captain", Name: "Captain Hale"}
	defs.NPCDefs["guard_recruit"] = types.NPCDef{ID: "guard_recruit", Name: "Recruit Hale"}
	return defs
}

func TestNPC_ExactID(t *testing.T) {
	id, err := NPC(testDefs(), "innkeeper")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "innkeeper" {
		t.Errorf("expected innkeeper, got %q", id)
	}
}

func TestNPC_ByName_CaseInsensitive(t *testing.T) {
	id, err := NPC(testDefs(), "OLD SMITH")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "old_smith" {
		t.Errorf("expected old_smith, got %q", id)
	}
}

func TestNPC_PartialNameMatch(t *testing.T) {
	id, err := NPC(testDefs(), "marta")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "innkeeper" {
		t.Errorf("expected innkeeper, got %q", id)
	}
}

func TestNPC_PartialNameMatch_Ambiguity(t *testing.T) {
	_, err := NPC(testDefs(), "hale")
	var ambig *AmbiguityError
	if !errors.As(err, &ambig) {
		t.Fatalf("expected AmbiguityError, got %v", err)
	}
	if len(ambig.Candidates) != 2 {
		t.Errorf("expected 2 candidates, got %v", ambig.Candidates)
	}
	// NPCs() is sorted by ID, so candidates are too.
	if ambig.Candidates[0] != "guard_captain" || ambig.Candidates[1] != "guard_recruit" {
		t.Errorf("unexpected candidates %v", ambig.Candidates)
	}
}

func TestNPC_UnderscoreNormalization(t *testing.T) {
	id, err := NPC(testDefs(), "guard captain")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "guard_captain" {
		t.Errorf("expected guard_captain, got %q", id)
	}
}

func TestNPC_FuzzyMisspelling(t *testing.T) {
	id, err := NPC(testDefs(), "inkeeper")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "innkeeper" {
		t.Errorf("expected innkeeper, got %q", id)
	}
}

func TestNPC_NotFound(t *testing.T) {
	for _, name := range []string{"dragon", "", "   "} {
		_, err := NPC(testDefs(), name)
		var nf *NotFoundError
		if !errors.As(err, &nf) {
			t.Errorf("%q: expected NotFoundError, got %v", name, err)
		}
	}
}
