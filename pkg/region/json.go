package region

import (
	"encoding/json"
	"log/slog"
	"strconv"
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"
	tsjson "github.com/tree-sitter/tree-sitter-json/bindings/go"
)

// ExtractJSON finds every string reachable under a "HED" key: a direct string
// value or each string value of an object. Offsets come from the parse tree,
// so each region points at the exact bytes of its value.
func ExtractJSON(text string, m PositionMapper) []Region {
	content := []byte(text)

	parser := sitter.NewParser()
	defer parser.Close()
	if err := parser.SetLanguage(sitter.NewLanguage(tsjson.Language())); err != nil {
		slog.Error("json grammar unavailable", "error", err)
		return nil
	}

	tree := parser.Parse(content, nil)
	if tree == nil {
		return nil
	}
	defer tree.Close()

	root := tree.RootNode()
	if root == nil || root.HasError() {
		return nil
	}

	w := &jsonWalker{content: content, mapper: m}
	for i := uint(0); i < root.NamedChildCount(); i++ {
		w.value(root.NamedChild(i), nil)
	}
	return w.regions
}

type jsonWalker struct {
	content []byte
	mapper  PositionMapper
	regions []Region
}

func (w *jsonWalker) value(n *sitter.Node, path []string) {
	if n == nil {
		return
	}
	switch n.Kind() {
	case "object":
		for i := uint(0); i < n.NamedChildCount(); i++ {
			pair := n.NamedChild(i)
			if pair.Kind() != "pair" {
				continue
			}
			key := w.key(pair.ChildByFieldName("key"))
			val := pair.ChildByFieldName("value")
			childPath := append(append([]string(nil), path...), key)
			if key == HEDKey {
				w.hed(val, childPath)
				continue
			}
			w.value(val, childPath)
		}
	case "array":
		for i := uint(0); i < n.NamedChildCount(); i++ {
			childPath := append([]string(nil), path...)
			if len(childPath) > 0 {
				childPath[len(childPath)-1] += "[" + strconv.Itoa(int(i)) + "]"
			} else {
				childPath = append(childPath, "["+strconv.Itoa(int(i))+"]")
			}
			w.value(n.NamedChild(i), childPath)
		}
	}
}

func (w *jsonWalker) hed(n *sitter.Node, path []string) {
	if n == nil {
		return
	}
	switch n.Kind() {
	case "string":
		w.emit(n, path)
	case "object":
		for i := uint(0); i < n.NamedChildCount(); i++ {
			pair := n.NamedChild(i)
			if pair.Kind() != "pair" {
				continue
			}
			val := pair.ChildByFieldName("value")
			if val == nil || val.Kind() != "string" {
				continue
			}
			key := w.key(pair.ChildByFieldName("key"))
			w.emit(val, append(append([]string(nil), path...), key))
		}
	}
}

func (w *jsonWalker) emit(n *sitter.Node, path []string) {
	start, end := int(n.StartByte()), int(n.EndByte())
	if end-start < 2 {
		return
	}
	w.regions = append(w.regions, Region{
		Content:       string(w.content[start+1 : end-1]),
		Range:         Range{Start: w.mapper.PositionAt(start), End: w.mapper.PositionAt(end)},
		Path:          strings.Join(path, "."),
		ContentOffset: start + 1,
	})
}

func (w *jsonWalker) key(n *sitter.Node) string {
	if n == nil {
		return ""
	}
	raw := n.Utf8Text(w.content)
	var s string
	if err := json.Unmarshal([]byte(raw), &s); err == nil {
		return s
	}
	return strings.Trim(raw, `"`)
}
