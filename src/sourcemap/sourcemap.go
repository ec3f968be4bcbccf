// Package sourcemap models revision 3 source maps as produced and consumed
// by the build stages: identity maps for freshly read files, merged maps
// for concatenated bundles, and inline/external emission.
package sourcemap

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// Map is a revision 3 source map.
type Map struct {
	Version        int      `json:"version"`
	File           string   `json:"file,omitempty"`
	SourceRoot     string   `json:"sourceRoot,omitempty"`
	Sources        []string `json:"sources"`
	SourcesContent []string `json:"sourcesContent,omitempty"`
	Names          []string `json:"names"`
	Mappings       string   `json:"mappings"`
}

// Segment is one decoded mapping. Source is -1 for unmapped segments.
type Segment struct {
	GenCol   int
	Source   int
	OrigLine int
	OrigCol  int
	Name     int
}

// Parse decodes a JSON source map.
func Parse(data []byte) (*Map, error) {
	var m Map
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing source map: %w", err)
	}
	if m.Version != 3 {
		return nil, fmt.Errorf("unsupported source map version %d", m.Version)
	}
	return &m, nil
}

// JSON encodes the map.
func (m *Map) JSON() ([]byte, error) {
	if m.Sources == nil {
		m.Sources = []string{}
	}
	if m.Names == nil {
		m.Names = []string{}
	}
	return json.Marshal(m)
}

// Identity maps every line of content to the same line of source.
func Identity(source string, content []byte) *Map {
	lines := bytes.Count(content, []byte("\n")) + 1
	decoded := make([][]Segment, lines)
	for i := range decoded {
		decoded[i] = []Segment{{GenCol: 0, Source: 0, OrigLine: i, OrigCol: 0, Name: -1}}
	}
	return &Map{
		Version:        3,
		Sources:        []string{source},
		SourcesContent: []string{string(content)},
		Names:          []string{},
		Mappings:       encodeMappings(decoded),
	}
}

// Part is one input to Concat: its map and generated content.
type Part struct {
	Map     *Map
	Content []byte
}

// Concat merges the maps of parts joined by sep into one map for the bundle.
// Parts without a map contribute unmapped lines.
func Concat(file string, parts []Part, sep string) (*Map, error) {
	out := &Map{Version: 3, File: file, Sources: []string{}, Names: []string{}}
	sourceIdx := make(map[string]int)
	nameIdx := make(map[string]int)

	var merged [][]Segment
	line := 0
	sepLines := strings.Count(sep, "\n")
	for pi, part := range parts {
		partLines := bytes.Count(part.Content, []byte("\n"))
		if part.Map != nil {
			decoded, err := part.Map.Decode()
			if err != nil {
				return nil, fmt.Errorf("part %d: %w", pi, err)
			}
			for li, segs := range decoded {
				target := line + li
				for len(merged) <= target {
					merged = append(merged, nil)
				}
				for _, seg := range segs {
					if seg.Source >= 0 {
						src := part.Map.Sources[seg.Source]
						idx, ok := sourceIdx[src]
						if !ok {
							idx = len(out.Sources)
							sourceIdx[src] = idx
							out.Sources = append(out.Sources, src)
							content := ""
							if seg.Source < len(part.Map.SourcesContent) {
								content = part.Map.SourcesContent[seg.Source]
							}
							out.SourcesContent = append(out.SourcesContent, content)
						}
						seg.Source = idx
					}
					if seg.Name >= 0 {
						name := part.Map.Names[seg.Name]
						idx, ok := nameIdx[name]
						if !ok {
							idx = len(out.Names)
							nameIdx[name] = idx
							out.Names = append(out.Names, name)
						}
						seg.Name = idx
					}
					merged[target] = append(merged[target], seg)
				}
			}
		}
		line += partLines
		if pi < len(parts)-1 {
			line += sepLines
		}
	}
	for len(merged) <= line {
		merged = append(merged, nil)
	}
	out.Mappings = encodeMappings(merged)
	return out, nil
}

// Lookup returns the original source and zero-based line of the first
// mapped segment on a zero-based generated line.
func (m *Map) Lookup(genLine int) (source string, origLine int, ok bool) {
	decoded, err := m.Decode()
	if err != nil || genLine < 0 || genLine >= len(decoded) {
		return "", 0, false
	}
	for _, seg := range decoded[genLine] {
		if seg.Source >= 0 && seg.Source < len(m.Sources) {
			return m.Sources[seg.Source], seg.OrigLine, true
		}
	}
	return "", 0, false
}

// Decode expands Mappings into per-line segments with absolute values.
func (m *Map) Decode() ([][]Segment, error) {
	var lines [][]Segment
	var current []Segment
	var source, origLine, origCol, name int
	s := m.Mappings
	genCol := 0
	for i := 0; i < len(s); {
		switch s[i] {
		case ';':
			lines = append(lines, current)
			current = nil
			genCol = 0
			i++
			continue
		case ',':
			i++
			continue
		}

		var fields []int
		for i < len(s) && s[i] != ',' && s[i] != ';' {
			v, next, err := readVLQ(s, i)
			if err != nil {
				return nil, err
			}
			fields = append(fields, v)
			i = next
		}

		seg := Segment{Source: -1, Name: -1}
		genCol += fields[0]
		seg.GenCol = genCol
		if len(fields) >= 4 {
			source += fields[1]
			origLine += fields[2]
			origCol += fields[3]
			seg.Source, seg.OrigLine, seg.OrigCol = source, origLine, origCol
		}
		if len(fields) >= 5 {
			name += fields[4]
			seg.Name = name
		}
		current = append(current, seg)
	}
	lines = append(lines, current)
	return lines, nil
}

func encodeMappings(lines [][]Segment) string {
	var buf []byte
	var source, origLine, origCol, name int
	for li, segs := range lines {
		if li > 0 {
			buf = append(buf, ';')
		}
		genCol := 0
		for si, seg := range segs {
			if si > 0 {
				buf = append(buf, ',')
			}
			buf = appendVLQ(buf, seg.GenCol-genCol)
			genCol = seg.GenCol
			if seg.Source < 0 {
				continue
			}
			buf = appendVLQ(buf, seg.Source-source)
			buf = appendVLQ(buf, seg.OrigLine-origLine)
			buf = appendVLQ(buf, seg.OrigCol-origCol)
			source, origLine, origCol = seg.Source, seg.OrigLine, seg.OrigCol
			if seg.Name >= 0 {
				buf = appendVLQ(buf, seg.Name-name)
				name = seg.Name
			}
		}
	}
	return string(buf)
}

// Comment returns the sourceMappingURL comment for url in CSS or JS syntax.
func Comment(url string, css bool) string {
	if css {
		return "/*# sourceMappingURL=" + url + " */"
	}
	return "//# sourceMappingURL=" + url
}

// Inline appends m to content as a base64 data URL comment.
func Inline(content []byte, m *Map, css bool) ([]byte, error) {
	data, err := m.JSON()
	if err != nil {
		return nil, err
	}
	url := "data:application/json;charset=utf-8;base64," + base64.StdEncoding.EncodeToString(data)
	return AppendComment(content, Comment(url, css)), nil
}

// AppendComment appends a comment on its own line.
func AppendComment(content []byte, comment string) []byte {
	out := make([]byte, 0, len(content)+len(comment)+2)
	out = append(out, content...)
	if len(out) > 0 && out[len(out)-1] != '\n' {
		out = append(out, '\n')
	}
	out = append(out, comment...)
	out = append(out, '\n')
	return out
}

var commentRe = regexp.MustCompile(`(?m)(?:/\*|//)[#@] sourceMappingURL=(\S+?)(?:\s*\*/)?\s*$`)

// ExtractInline removes a trailing sourceMappingURL comment from content.
// If the comment carries a base64 data URL the decoded map is returned;
// otherwise the map is nil.
func ExtractInline(content []byte) ([]byte, *Map, error) {
	locs := commentRe.FindAllSubmatchIndex(content, -1)
	if len(locs) == 0 {
		return content, nil, nil
	}
	last := locs[len(locs)-1]
	url := string(content[last[2]:last[3]])
	stripped := append(bytes.TrimRight(bytes.Clone(content[:last[0]]), "\n"), '\n')

	const marker = "base64,"
	if !strings.HasPrefix(url, "data:") {
		return stripped, nil, nil
	}
	i := strings.Index(url, marker)
	if i < 0 {
		return stripped, nil, nil
	}
	raw, err := base64.StdEncoding.DecodeString(url[i+len(marker):])
	if err != nil {
		return nil, nil, fmt.Errorf("decoding inline source map: %w", err)
	}
	m, err := Parse(raw)
	if err != nil {
		return nil, nil, err
	}
	return stripped, m, nil
}
