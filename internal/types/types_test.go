package types

import "testing"

func testHierarchy() *Hierarchy {
	supers := map[string][]string{
		"app.B":     {"app.A"},
		"app.C":     {"app.B", "app.I"},
		"app.Loop1": {"app.Loop2"},
		"app.Loop2": {"app.Loop1"},
	}
	return NewHierarchy("lang.Any", "lang.Nothing", func(name string) []string {
		return supers[name]
	})
}

func expectSubtype(t *testing.T, h *Hierarchy, sub, super Type, want bool) {
	t.Helper()
	if got := h.IsSubtype(sub, super); got != want {
		t.Errorf("IsSubtype(%s, %s) = %v, want %v", sub, super, got, want)
	}
}

func TestHierarchy_IsSubtype(t *testing.T) {
	h := testHierarchy()
	a, b, c, i := Named("app.A"), Named("app.B"), Named("app.C"), Named("app.I")

	expectSubtype(t, h, c, a, true)
	expectSubtype(t, h, c, i, true)
	expectSubtype(t, h, b, c, false)
	expectSubtype(t, h, a, a, true)
	expectSubtype(t, h, a, Named("lang.Any"), true)
	expectSubtype(t, h, Named("lang.Nothing"), c, true)
}

func TestHierarchy_Nullability(t *testing.T) {
	h := testHierarchy()
	a, b := Named("app.A"), Named("app.B")

	expectSubtype(t, h, b, a.OrNull(), true)
	expectSubtype(t, h, b.OrNull(), a, false)
	expectSubtype(t, h, Named("lang.Nothing").OrNull(), a.OrNull(), true)
	expectSubtype(t, h, Named("lang.Nothing").OrNull(), a, false)
}

func TestHierarchy_ErrorConforms(t *testing.T) {
	h := testHierarchy()
	expectSubtype(t, h, Error, Named("app.A"), true)
	expectSubtype(t, h, Named("app.A"), Error, true)
}

func TestHierarchy_SupertypesCycle(t *testing.T) {
	h := testHierarchy()
	got := h.Supertypes("app.Loop1")
	if len(got) != 2 || got[0] != "app.Loop1" || got[1] != "app.Loop2" {
		t.Errorf("Supertypes(app.Loop1) = %v", got)
	}
	expectSubtype(t, h, Named("app.Loop1"), Named("app.A"), false)
}

func TestHierarchy_SupertypesOrder(t *testing.T) {
	h := testHierarchy()
	got := h.Supertypes("app.C")
	want := []string{"app.C", "app.B", "app.I", "app.A"}
	if len(got) != len(want) {
		t.Fatalf("Supertypes(app.C) = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Supertypes(app.C)[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}
