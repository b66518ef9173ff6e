package ops

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/cptkit/cptconv/internal/config"
	"github.com/cptkit/cptconv/internal/convert"
	"github.com/cptkit/cptconv/internal/errors"
)

const testGEF = `#GEFID= 1, 1, 0
#FILEDATE= 2024, 1, 2
#TESTID= CPT-1
#ZID= 31000, 1.25
#XYID= 31000, 155000, 463000
#COLUMNINFO= 1, m, penetration length, 1
#COLUMNINFO= 2, MPa, cone resistance, 2
#COLUMNINFO= 3, MPa, local friction, 3
#COLUMNSEPARATOR= ;
#RECORDSEPARATOR= !
#EOH=
0.00;1.0;0.01;!
0.01;1.5;0.03;!
0.02;2.0;0.04;!
`

func newTestConverter(t *testing.T) *convert.Converter {
	t.Helper()
	conv, err := convert.New(convert.Options{
		Now: func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC) },
	})
	if err != nil {
		t.Fatalf("convert.New failed: %v", err)
	}
	return conv
}

func writeTestFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	return path
}

func TestReadDocument(t *testing.T) {
	tmpDir := t.TempDir()
	path := writeTestFile(t, tmpDir, "a.gef", testGEF)

	data, err := readDocument(path, config.DefaultConfig())
	if err != nil {
		t.Fatalf("readDocument failed: %v", err)
	}
	if string(data) != testGEF {
		t.Errorf("readDocument returned %d bytes, want %d", len(data), len(testGEF))
	}

	_, err = readDocument(filepath.Join(tmpDir, "missing.gef"), config.DefaultConfig())
	if !errors.Is(err, errors.ErrFileNotFound) {
		t.Errorf("expected ErrFileNotFound, got: %v", err)
	}
}

func TestWriteFileAtomic(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "nested", "out.xml")

	if err := writeFileAtomic(path, []byte("<a/>"), config.DefaultConfig()); err != nil {
		t.Fatalf("writeFileAtomic failed: %v", err)
	}
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(got) != "<a/>" {
		t.Errorf("content = %q, want %q", got, "<a/>")
	}

	// Overwrite replaces the content and leaves no temp files behind
	if err := writeFileAtomic(path, []byte("<b/>"), config.DefaultConfig()); err != nil {
		t.Fatalf("second writeFileAtomic failed: %v", err)
	}
	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("directory has %d entries, want 1", len(entries))
	}
}

func TestWriteFileAtomic_RejectsBadExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.txt")
	err := writeFileAtomic(path, []byte("x"), config.DefaultConfig())
	if !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("expected ErrInvalidRequest, got: %v", err)
	}
	if _, statErr := os.Stat(path); !os.IsNotExist(statErr) {
		t.Errorf("expected no file to be written")
	}
}

func TestWriteFileAtomic_SymlinkDestination(t *testing.T) {
	tmpDir := t.TempDir()
	target := writeTestFile(t, tmpDir, "target.xml", "original")
	link := filepath.Join(tmpDir, "link.xml")
	if err := os.Symlink(target, link); err != nil {
		t.Skipf("cannot create symlink: %v", err)
	}

	if err := writeFileAtomic(link, []byte("evil"), config.DefaultConfig()); err == nil {
		t.Fatal("expected error writing through a symlink")
	}
	got, _ := os.ReadFile(target)
	if string(got) != "original" {
		t.Errorf("target modified: %q", got)
	}
}

func TestOutputPath(t *testing.T) {
	tests := []struct {
		in     string
		outDir string
		target convert.Format
		want   string
	}{
		{"/data/CPT-1.gef", "", convert.FormatXML, "/data/CPT-1.xml"},
		{"/data/CPT-1.xml", "/out", convert.FormatGEF, "/out/CPT-1.gef"},
		{"/data/a..b.gef", "", convert.FormatXML, "/data/a-b.xml"},
	}
	for _, tc := range tests {
		got := outputPath(filepath.FromSlash(tc.in), filepath.FromSlash(tc.outDir), tc.target)
		if got != filepath.FromSlash(tc.want) {
			t.Errorf("outputPath(%q, %q) = %q, want %q", tc.in, tc.outDir, got, tc.want)
		}
	}
}

func TestResolveFormat(t *testing.T) {
	if f, err := resolveFormat("", "survey.GEF"); err != nil || f != convert.FormatGEF {
		t.Errorf("resolveFormat(survey.GEF) = %q, %v", f, err)
	}
	if f, err := resolveFormat("xml", "survey.gef"); err != nil || f != convert.FormatXML {
		t.Errorf("named format should win, got %q, %v", f, err)
	}
	if _, err := resolveFormat("", "survey.md"); !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("expected ErrInvalidRequest, got: %v", err)
	}
	if _, err := resolveFormat("csv", "survey.gef"); !errors.Is(err, errors.ErrUnsupportedConversion) {
		t.Errorf("expected ErrUnsupportedConversion, got: %v", err)
	}
}

func TestMarshalReport(t *testing.T) {
	v := map[string]any{"name": "CPT-1", "samples": 3}

	js, err := MarshalReport(v, EncodingJSON)
	if err != nil {
		t.Fatalf("MarshalReport json failed: %v", err)
	}
	if !strings.Contains(string(js), `"name": "CPT-1"`) {
		t.Errorf("json = %s", js)
	}

	ym, err := MarshalReport(v, EncodingYAML)
	if err != nil {
		t.Fatalf("MarshalReport yaml failed: %v", err)
	}
	if !strings.Contains(string(ym), "name: CPT-1") {
		t.Errorf("yaml = %s", ym)
	}

	if _, err := MarshalReport(v, "toml"); !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("expected ErrInvalidRequest, got: %v", err)
	}
}

func TestRenderHTML_Table(t *testing.T) {
	html, err := RenderHTML("# CPT x\n\n| Field | Value |\n|---|---|\n| a | b |\n")
	if err != nil {
		t.Fatalf("RenderHTML failed: %v", err)
	}
	for _, want := range []string{"<h1>CPT x</h1>", "<table>", "<td>b</td>"} {
		if !strings.Contains(html, want) {
			t.Errorf("html missing %q:\n%s", want, html)
		}
	}
}

func TestConvert_HappyPath(t *testing.T) {
	tmpDir := t.TempDir()
	conv := newTestConverter(t)
	in := writeTestFile(t, tmpDir, "CPT-1.gef", testGEF)

	out, err := Convert(context.Background(), conv, config.DefaultConfig(), ConvertInput{Path: in})
	if err != nil {
		t.Fatalf("Convert failed: %v", err)
	}
	if out.Source != "gef" || out.Target != "xml" {
		t.Errorf("formats = %s -> %s, want gef -> xml", out.Source, out.Target)
	}
	if out.Output != filepath.Join(tmpDir, "CPT-1.xml") {
		t.Errorf("Output = %q", out.Output)
	}
	if len(out.ID) != 26 {
		t.Errorf("ID = %q, want a ULID", out.ID)
	}
	xml, err := os.ReadFile(out.Output)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if len(xml) != out.BytesWritten {
		t.Errorf("BytesWritten = %d, file has %d", out.BytesWritten, len(xml))
	}
	if !strings.Contains(string(xml), "CPT-1") {
		t.Errorf("output does not mention the survey name")
	}

	// And back again to a named output
	back := filepath.Join(tmpDir, "roundtrip.gef")
	out2, err := Convert(context.Background(), conv, config.DefaultConfig(), ConvertInput{Path: out.Output, Output: back})
	if err != nil {
		t.Fatalf("Convert back failed: %v", err)
	}
	gef, _ := os.ReadFile(out2.Output)
	if !strings.Contains(string(gef), "#LASTSCAN= 3") {
		t.Errorf("GEF output missing LASTSCAN:\n%s", gef)
	}
}

func TestConvert_Errors(t *testing.T) {
	tmpDir := t.TempDir()
	conv := newTestConverter(t)
	gef := writeTestFile(t, tmpDir, "a.gef", testGEF)
	bad := writeTestFile(t, tmpDir, "bad.gef", "no header\n")

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()

	tests := []struct {
		name  string
		ctx   context.Context
		input ConvertInput
		code  errors.ErrorCode
	}{
		{"missing path", context.Background(), ConvertInput{}, errors.ErrInvalidRequest},
		{"unknown target", context.Background(), ConvertInput{Path: gef, Target: "pdf"}, errors.ErrUnsupportedConversion},
		{"output equals input", context.Background(), ConvertInput{Path: gef, Target: "gef"}, errors.ErrInvalidRequest},
		{"missing file", context.Background(), ConvertInput{Path: filepath.Join(tmpDir, "none.gef")}, errors.ErrFileNotFound},
		{"syntax error", context.Background(), ConvertInput{Path: bad}, errors.ErrGEFSyntax},
		{"cancelled", cancelled, ConvertInput{Path: gef}, errors.ErrCancelled},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Convert(tc.ctx, conv, config.DefaultConfig(), tc.input)
			if !errors.Is(err, tc.code) {
				t.Errorf("expected %s, got: %v", tc.code, err)
			}
		})
	}

	if _, err := os.Stat(filepath.Join(tmpDir, "bad.xml")); !os.IsNotExist(err) {
		t.Errorf("failed conversion left output behind")
	}
}

func TestInspect(t *testing.T) {
	tmpDir := t.TempDir()
	conv := newTestConverter(t)
	in := writeTestFile(t, tmpDir, "CPT-1.gef", testGEF)

	out, err := Inspect(context.Background(), conv, config.DefaultConfig(), InspectInput{Path: in})
	if err != nil {
		t.Fatalf("Inspect failed: %v", err)
	}
	if out.Summary.Name != "CPT-1" || out.Summary.Samples != 3 {
		t.Errorf("Summary = %+v", out.Summary)
	}
	if !out.Lint.Valid {
		t.Errorf("Lint = %+v, want valid", out.Lint)
	}
	if out.Record != nil {
		t.Errorf("Record included without IncludeData")
	}

	withData, err := Inspect(context.Background(), conv, config.DefaultConfig(), InspectInput{Path: in, IncludeData: true})
	if err != nil {
		t.Fatalf("Inspect with data failed: %v", err)
	}
	if withData.Record == nil || withData.Record.Len() != 3 {
		t.Errorf("Record = %+v", withData.Record)
	}
}

func TestInspect_ReportFile(t *testing.T) {
	tmpDir := t.TempDir()
	conv := newTestConverter(t)
	in := writeTestFile(t, tmpDir, "CPT-1.gef", testGEF)
	report := filepath.Join(tmpDir, "report.yaml")

	out, err := Inspect(context.Background(), conv, config.DefaultConfig(), InspectInput{Path: in, Output: report})
	if err != nil {
		t.Fatalf("Inspect failed: %v", err)
	}
	if out.Output != report {
		t.Errorf("Output = %q, want %q", out.Output, report)
	}
	data, err := os.ReadFile(report)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if !strings.Contains(string(data), "name: CPT-1") {
		t.Errorf("report:\n%s", data)
	}

	_, err = Inspect(context.Background(), conv, config.DefaultConfig(), InspectInput{Path: in, Output: filepath.Join(tmpDir, "r.md")})
	if !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("expected ErrInvalidRequest for .md report, got: %v", err)
	}
}

func TestSummary(t *testing.T) {
	tmpDir := t.TempDir()
	conv := newTestConverter(t)
	in := writeTestFile(t, tmpDir, "CPT-1.gef", testGEF)

	md, err := Summary(context.Background(), conv, config.DefaultConfig(), SummaryInput{Path: in})
	if err != nil {
		t.Fatalf("Summary failed: %v", err)
	}
	if md.Format != "markdown" || !strings.HasPrefix(md.Content, "# CPT CPT-1") {
		t.Errorf("markdown summary = %+v", md)
	}

	htmlPath := filepath.Join(tmpDir, "CPT-1.html")
	html, err := Summary(context.Background(), conv, config.DefaultConfig(), SummaryInput{Path: in, Output: htmlPath})
	if err != nil {
		t.Fatalf("Summary html failed: %v", err)
	}
	if html.Format != "html" || !strings.Contains(html.Content, "<table>") {
		t.Errorf("html summary = %+v", html)
	}
	written, _ := os.ReadFile(htmlPath)
	if string(written) != html.Content {
		t.Errorf("written file differs from content")
	}

	_, err = Summary(context.Background(), conv, config.DefaultConfig(), SummaryInput{Path: in, HTML: true, Output: filepath.Join(tmpDir, "x.md")})
	if !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("expected ErrInvalidRequest, got: %v", err)
	}
}
