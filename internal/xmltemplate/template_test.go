package xmltemplate

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/cptkit/cptconv/internal/errors"
)

const gmlNS = "http://www.opengis.net/gml/3.2"

const testSkeleton = `<?xml version="1.0" encoding="UTF-8"?>
<doc xmlns:gml="http://www.opengis.net/gml/3.2">
  <zeta>z</zeta>
  <alpha>a</alpha>
  <location>
    <gml:Point gml:id="p1" srsName="urn:ogc:def:crs:EPSG::28992">
      <gml:pos>0 0</gml:pos>
    </gml:Point>
  </location>
  <middle/>
</doc>`

func loadTest(t *testing.T) *Node {
	t.Helper()
	n, err := LoadSkeleton([]byte(testSkeleton))
	require.NoError(t, err)
	return n
}

func TestLoadSkeleton(t *testing.T) {
	root := loadTest(t)

	assert.Equal(t, "{"+DefaultNamespace+"}doc", root.Tag)
	assert.Equal(t, map[string]string{"": DefaultNamespace, "gml": gmlNS}, root.Namespaces)

	children, ok := root.Value.(*Children)
	require.True(t, ok)
	var locals []string
	for _, tag := range children.Tags() {
		locals = append(locals, localName(tag))
	}
	assert.Equal(t, []string{"zeta", "alpha", "location", "middle"}, locals)

	point, ok := root.Child("location")
	require.True(t, ok)
	point, ok = point.Child("Point")
	require.True(t, ok)
	assert.Equal(t, "{"+gmlNS+"}Point", point.Tag)
	assert.Empty(t, point.Namespaces, "gml is inherited, not redeclared")
	assert.Equal(t, []Attr{
		{Name: "{" + gmlNS + "}id", Value: "p1"},
		{Name: "srsName", Value: "urn:ogc:def:crs:EPSG::28992"},
	}, point.Attrs)

	zeta, _ := root.Child("zeta")
	assert.Equal(t, "z", zeta.DefaultText)
	assert.Equal(t, Leaf{Text: "z"}, zeta.Value)
}

func TestLoadSkeleton_Malformed(t *testing.T) {
	tests := map[string]string{
		"unclosed":       `<doc><a></doc>`,
		"empty":          ``,
		"text only":      `just text`,
		"unbound prefix": `<doc><x:a/></doc>`,
	}
	for name, src := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := LoadSkeleton([]byte(src))
			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.ErrTemplateLoad), "got %v", err)
		})
	}
}

func TestLoadSkeletonFile_Missing(t *testing.T) {
	_, err := LoadSkeletonFile(filepath.Join(t.TempDir(), "nope.xml"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrTemplateLoad))
}

func TestLoadSkeletonFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "skeleton.xml")
	require.NoError(t, os.WriteFile(path, []byte(testSkeleton), 0600))

	n, err := LoadSkeletonFile(path)
	require.NoError(t, err)
	assert.Equal(t, "doc", n.Local())
}

func TestFill(t *testing.T) {
	tmpl := loadTest(t)

	filled, skipped := Fill(tmpl, Data{
		"alpha":  1.5,
		"zeta":   nil,
		"middle": "m",
		"location": Data{
			"Point": map[string]any{"pos": "1000 2000"},
		},
	}, nil)
	assert.Empty(t, skipped)

	alpha, _ := filled.Child("alpha")
	assert.Equal(t, "1.5", alpha.Text())
	zeta, _ := filled.Child("zeta")
	assert.Equal(t, Leaf{Null: true}, zeta.Value)

	loc, _ := filled.Child("location")
	pt, _ := loc.Child("Point")
	pos, _ := pt.Child("pos")
	assert.Equal(t, "1000 2000", pos.Text())

	// The template itself is untouched.
	orig, _ := tmpl.Child("alpha")
	assert.Equal(t, "a", orig.Text())
}

const wrappedSkeleton = `<?xml version="1.0" encoding="UTF-8"?>
<dispatch>
  <OBJ>
    <id></id>
    <survey>
      <values></values>
    </survey>
  </OBJ>
</dispatch>`

func TestFill_WrappedObject(t *testing.T) {
	tmpl, err := LoadSkeleton([]byte(wrappedSkeleton))
	require.NoError(t, err)

	// Keys start below the root, so the object element must be named.
	_, skipped := Fill(tmpl, Data{"id": "x"}, nil)
	assert.Equal(t, []string{"id"}, skipped)

	filled, skipped := Fill(tmpl, Data{
		"OBJ": Data{
			"id":     "CPT-1",
			"survey": Data{"values": "1,2;"},
		},
	}, nil)
	assert.Empty(t, skipped)

	obj, ok := filled.Child("OBJ")
	require.True(t, ok)
	id, _ := obj.Child("id")
	assert.Equal(t, "CPT-1", id.Text())
	survey, _ := obj.Child("survey")
	values, _ := survey.Child("values")
	assert.Equal(t, "1,2;", values.Text())
}

func TestFill_NilPointerIsNull(t *testing.T) {
	var missing *float64
	present := 2.5

	filled, skipped := Fill(loadTest(t), Data{"alpha": missing, "zeta": &present}, nil)
	assert.Empty(t, skipped)

	alpha, _ := filled.Child("alpha")
	assert.Equal(t, Leaf{Null: true}, alpha.Value)
	zeta, _ := filled.Child("zeta")
	assert.Equal(t, Leaf{Text: "2.5"}, zeta.Value)
}

func TestFill_UnmatchedKeysLogged(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	logger := zap.New(core)

	_, skipped := Fill(loadTest(t), Data{
		"alpha":    "x",
		"bogus":    "y",
		"location": Data{"nothere": 1},
		"zeta":     Data{"deeper": 1},
	}, logger)

	assert.Equal(t, []string{"bogus", "location.nothere", "zeta"}, skipped)
	require.Equal(t, 3, logs.Len())
	assert.Equal(t, "bogus", logs.All()[0].ContextMap()["path"])
}

func TestBuild(t *testing.T) {
	filled, _ := Fill(loadTest(t), Data{
		"alpha":    "a & b",
		"location": Data{"Point": Data{"pos": "1 2"}},
	}, nil)

	out, err := Build(filled)
	require.NoError(t, err)
	s := string(out)

	assert.True(t, strings.HasPrefix(s, `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>`), s)
	assert.Contains(t, s, `<doc xmlns="`+DefaultNamespace+`" xmlns:gml="`+gmlNS+`">`)
	assert.Contains(t, s, `<gml:Point gml:id="p1" srsName="urn:ogc:def:crs:EPSG::28992">`)
	assert.Contains(t, s, `<gml:pos>1 2</gml:pos>`)
	assert.Contains(t, s, `<alpha>a &amp; b</alpha>`)
	assert.Equal(t, 1, strings.Count(s, "xmlns:gml="), "prefix declared once")
	assert.Contains(t, s, "\n  <zeta>z</zeta>", "two-space indent")

	// Element order follows the skeleton, not the data.
	assert.Less(t, strings.Index(s, "<zeta>"), strings.Index(s, "<alpha>"))
	assert.Less(t, strings.Index(s, "<alpha>"), strings.Index(s, "<location>"))
}

func TestBuild_RoundTrip(t *testing.T) {
	first := loadTest(t)
	out, err := Build(first)
	require.NoError(t, err)

	second, err := LoadSkeleton(out)
	require.NoError(t, err)
	out2, err := Build(second)
	require.NoError(t, err)
	assert.Equal(t, string(out), string(out2))
}

func TestBuild_UndeclaredNamespace(t *testing.T) {
	n := &Node{
		Tag:        "{urn:a}root",
		Namespaces: map[string]string{},
		Value:      newChildren(),
	}
	n.Value.(*Children).Set("{urn:b}child", &Node{Tag: "{urn:b}child", Value: Leaf{Text: "v"}})

	out, err := Build(n)
	require.NoError(t, err)
	assert.Contains(t, string(out), `<ns0:root xmlns:ns0="urn:a">`)
	assert.Contains(t, string(out), `<ns1:child xmlns:ns1="urn:b">v</ns1:child>`)
}

func TestFormatScalar(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{nil, ""},
		{"ja", "ja"},
		{true, "true"},
		{3, "3"},
		{0.001, "0.001"},
		{2.0, "2"},
		{(*float64)(nil), ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatScalar(tt.in))
	}
}
