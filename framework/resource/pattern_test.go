package resource

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestMatch(t *testing.T) {
	tests := []struct {
		pattern, name string
		want          bool
	}{
		{"app.cfg", "app.cfg", true},
		{"*.cfg", "app.cfg", true},
		{"*.cfg", "conf/app.cfg", false},
		{"**/*.cfg", "app.cfg", true},
		{"**/*.cfg", "a/b/c/app.cfg", true},
		{"**/*.cfg", "a/b/app.yaml", false},
		{"conf/**", "conf", true},
		{"conf/**", "conf/a/b", true},
		{"conf/**/x.cfg", "conf/x.cfg", true},
		{"conf/**/x.cfg", "conf/a/b/x.cfg", true},
		{"conf/**/x.cfg", "other/x.cfg", false},
		{"conf/?.cfg", "conf/a.cfg", true},
		{"conf/?.cfg", "conf/ab.cfg", false},
		{"/conf/*.cfg", "conf/a.cfg", true},
		{"conf/[a-c].cfg", "conf/b.cfg", true},
		{"conf/[.cfg", "conf/[.cfg", false},
	}
	for _, tt := range tests {
		t.Run(tt.pattern+"~"+tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Match(tt.pattern, tt.name))
		})
	}
}

func TestStaticPrefix(t *testing.T) {
	assert.Equal(t, "conf/app", staticPrefix("conf/app/**/*.cfg"))
	assert.Equal(t, "", staticPrefix("**/*.cfg"))
	assert.Equal(t, "a/b.cfg", staticPrefix("/a/b.cfg"))
}

func TestValidatePattern(t *testing.T) {
	assert.NoError(t, ValidatePattern("conf/**/*.cfg"))
	assert.Error(t, ValidatePattern("conf/[.cfg"))
}

var segment = rapid.StringMatching(`[a-z]{1,6}`)

func TestMatchLiteralPathMatchesItself(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		name := strings.Join(rapid.SliceOfN(segment, 1, 6).Draw(t, "segs"), "/")
		if !Match(name, name) {
			t.Fatalf("%q does not match itself", name)
		}
		if !Match("**", name) {
			t.Fatalf("** does not match %q", name)
		}
	})
}

func TestMatchDoubleStarSuffix(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		dirs := rapid.SliceOfN(segment, 0, 5).Draw(t, "dirs")
		base := segment.Draw(t, "base")
		ext := rapid.SampledFrom([]string{"cfg", "yaml"}).Draw(t, "ext")
		name := strings.Join(append(dirs, base+"."+ext), "/")

		got := Match("**/*.cfg", name)
		if got != (ext == "cfg") {
			t.Fatalf("Match(**/*.cfg, %q) = %v", name, got)
		}
	})
}
