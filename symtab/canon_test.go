package symtab

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCanonicalName(t *testing.T) {
	testcases := []struct {
		raw      string
		expected string
		ok       bool
	}{
		// plain C and Go names pass through
		{"main", "main", true},
		{"memcpy", "memcpy", true},
		{"github.com/grafana/declsite.ForEachFunction", "github.com/grafana/declsite.ForEachFunction", true},
		{"main.main.func1.2", "main.main.func1.2", true},

		// dynamic symbol versioning
		{"malloc@@GLIBC_2.2.5", "malloc", true},
		{"pthread_create@GLIBC_2.34", "pthread_create", true},

		// C++ mangling, name only
		{"_ZN3foo3barEv", "foo::bar", true},
		{"_ZNSt6vectorIiSaIiEE9push_backEOi", "std::vector::push_back", true},

		// Rust legacy mangling: hash token must not survive
		{"_ZN4core3ptr13drop_in_place17h0123456789abcdefE", "core::ptr::drop_in_place", true},

		// optimization clone suffixes vary between builds
		{"frame_dummy.constprop.0", "frame_dummy", true},
		{"do_lookup_x.isra.4", "do_lookup_x", true},
		{"gc_sweep.part.12", "gc_sweep", true},
		{"abort_with_error.cold", "abort_with_error", true},
		{"callback.llvm.11602779721107965", "callback", true},

		// no stable canonical form
		{"", "", false},
		{"$x.17", "", false},
		{".L.str.4", "", false},
		{"@plt", "", false},
		{"OUTLINED_FUNCTION_12", "", false},
	}
	for _, c := range testcases {
		name, ok := CanonicalName(c.raw)
		require.Equal(t, c.ok, ok, "raw %q", c.raw)
		if c.ok {
			require.Equal(t, c.expected, name, "raw %q", c.raw)
		}
	}
}

func TestCanonicalNameStableAcrossBuilds(t *testing.T) {
	// Two builds of the same source differ only in the uniquification
	// token; the canonical names must collide.
	a, ok := CanonicalName("_ZN4core3fmt5write17h0123456789abcdefE")
	require.True(t, ok)
	b, ok := CanonicalName("_ZN4core3fmt5write17hfedcba9876543210E")
	require.True(t, ok)
	require.Equal(t, a, b)
}
