package k8sdns

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSortUniqueIPs(t *testing.T) {
	t.Parallel()

	in := []net.IP{
		net.ParseIP("10.0.0.5"),
		net.ParseIP("10.0.0.1"),
		net.ParseIP("10.0.0.5"), // duplicate
		net.ParseIP("10.0.0.3"),
	}

	got := sortUniqueIPs(in)
	assert.Equal(t, []string{"10.0.0.1", "10.0.0.3", "10.0.0.5"}, got)
}

func TestSortUniqueIPs_Empty(t *testing.T) {
	t.Parallel()

	got := sortUniqueIPs(nil)
	assert.Empty(t, got)
}

func TestAddrsEqual(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		a, b []string
		want bool
	}{
		{"both empty", nil, nil, true},
		{"same order", []string{"10.0.0.1", "10.0.0.2"}, []string{"10.0.0.1", "10.0.0.2"}, true},
		{"different length", []string{"10.0.0.1"}, []string{"10.0.0.1", "10.0.0.2"}, false},
		{"different order", []string{"10.0.0.1", "10.0.0.2"}, []string{"10.0.0.2", "10.0.0.1"}, false},
		{"disjoint", []string{"10.0.0.1"}, []string{"10.0.0.2"}, false},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, addrsEqual(tc.a, tc.b))
		})
	}
}
