package policy

import "testing"

func TestNewRegistry_HasFigma(t *testing.T) {
	r := NewRegistry()

	p, ok := r.Get("figma")
	if !ok {
		t.Fatal("default registry should contain figma")
	}
	if p.Name() != "Figma" {
		t.Errorf("Name() = %q", p.Name())
	}
}

func TestRegistry_Lookup(t *testing.T) {
	r := NewRegistry()

	p, err := r.Lookup("")
	if err != nil {
		t.Fatalf("Lookup(\"\") error: %v", err)
	}
	if p.ID() != DefaultProfileID {
		t.Errorf("Lookup(\"\") = %q, want default", p.ID())
	}

	if _, err := r.Lookup("sketch"); err == nil {
		t.Error("Lookup of an unknown profile should fail")
	}
}

func TestRegistry_List(t *testing.T) {
	r := NewRegistryWithProfiles(NewFigmaProfile())

	ids := r.List()
	if len(ids) != 1 || ids[0] != "figma" {
		t.Errorf("List() = %v", ids)
	}
}
