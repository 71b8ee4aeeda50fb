package incremental

import (
	"reflect"
	"sort"
	"testing"
)

func TestDependencyGraph_Impacted(t *testing.T) {
	g := NewDependencyGraph()
	// x imports y imports z imports w; v imports z; cycle z <-> u
	g.Set("x", []string{"y"})
	g.Set("y", []string{"z"})
	g.Set("z", []string{"w", "u"})
	g.Set("u", []string{"z"})
	g.Set("v", []string{"z"})

	tests := []struct {
		name    string
		changed []string
		hops    int
		want    []string
	}{
		{"one hop", []string{"w"}, 1, []string{"z"}},
		{"two hops", []string{"w"}, 2, []string{"u", "v", "y", "z"}},
		{"three hops", []string{"w"}, 3, []string{"u", "v", "x", "y", "z"}},
		{"changed excluded", []string{"z", "y"}, 2, []string{"u", "v", "x"}},
		{"leaf", []string{"x"}, 2, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := g.Impacted(tt.changed, tt.hops)
			sort.Strings(got)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Impacted(%v, %d) = %v, want %v", tt.changed, tt.hops, got, tt.want)
			}
		})
	}
}

func TestDependencyGraph_SetRemove(t *testing.T) {
	g := NewDependencyGraph()
	g.Set("a", []string{"b", "c"})
	g.Set("d", []string{"b"})

	if g.EdgeCount() != 3 {
		t.Errorf("EdgeCount = %d, want 3", g.EdgeCount())
	}
	if got := g.Dependents("b"); !reflect.DeepEqual(got, []string{"a", "d"}) {
		t.Errorf("Dependents(b) = %v", got)
	}

	g.Set("a", nil)
	g.Remove("d")
	if g.EdgeCount() != 0 {
		t.Errorf("EdgeCount after removal = %d, want 0", g.EdgeCount())
	}
}
