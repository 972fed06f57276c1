package workflow

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"

	"golang.org/x/text/cases"
)

// Node is a single processing step of the workflow graph.
type Node struct {
	// ID is the node's key in the graph; it is not part of the wire form.
	ID        string
	ClassType string
	Title     string
	Inputs    map[string]any
}

type nodeMeta struct {
	Title string `json:"title"`
}

type nodeJSON struct {
	Inputs    map[string]any `json:"inputs"`
	ClassType string         `json:"class_type"`
	Meta      *nodeMeta      `json:"_meta,omitempty"`
}

// MarshalJSON renders the node in the server's API format.
func (n *Node) MarshalJSON() ([]byte, error) {
	wire := nodeJSON{Inputs: n.Inputs, ClassType: n.ClassType}
	if wire.Inputs == nil {
		wire.Inputs = map[string]any{}
	}
	if n.Title != "" {
		wire.Meta = &nodeMeta{Title: n.Title}
	}
	return json.Marshal(wire)
}

// Input returns the named input value.
func (n *Node) Input(name string) (any, bool) {
	if n == nil {
		return nil, false
	}
	v, ok := n.Inputs[name]
	return v, ok
}

// Set assigns the named input value.
func (n *Node) Set(name string, value any) {
	if n.Inputs == nil {
		n.Inputs = make(map[string]any)
	}
	n.Inputs[name] = value
}

// Graph is a workflow template keyed by node identifier. Node order is only
// relevant for display and title lookup, where keys are visited in
// numeric-aware ascending order.
type Graph struct {
	nodes   map[string]*Node
	order   []string
	byTitle map[string]string
}

// Load reads and parses the persisted template at path.
func Load(path string) (*Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &TemplateLoadError{Path: path, Err: err}
	}
	graph, err := Parse(data)
	if err != nil {
		var loadErr *TemplateLoadError
		if errors.As(err, &loadErr) {
			loadErr.Path = path
		}
		return nil, err
	}
	return graph, nil
}

// Parse decodes an API-format workflow. Numbers are kept as json.Number so
// 64-bit seeds and other integers survive unchanged.
func Parse(data []byte) (*Graph, error) {
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()

	var wire map[string]nodeJSON
	if err := decoder.Decode(&wire); err != nil {
		return nil, &TemplateLoadError{Err: fmt.Errorf("decode: %w", err)}
	}
	if len(wire) == 0 {
		return nil, &TemplateLoadError{Err: errors.New("template contains no nodes")}
	}

	nodes := make(map[string]*Node, len(wire))
	for id, raw := range wire {
		if raw.ClassType == "" {
			return nil, &TemplateLoadError{Err: fmt.Errorf("node %s has no class_type", id)}
		}
		node := &Node{ClassType: raw.ClassType, Inputs: raw.Inputs}
		if node.Inputs == nil {
			node.Inputs = make(map[string]any)
		}
		if raw.Meta != nil {
			node.Title = raw.Meta.Title
		}
		nodes[id] = node
	}
	return newGraph(nodes), nil
}

func newGraph(nodes map[string]*Node) *Graph {
	g := &Graph{nodes: nodes}
	g.order = make([]string, 0, len(nodes))
	for id := range nodes {
		g.order = append(g.order, id)
	}
	sort.Slice(g.order, func(i, j int) bool { return lessNodeID(g.order[i], g.order[j]) })

	g.byTitle = make(map[string]string, len(nodes))
	for _, id := range g.order {
		nodes[id].ID = id
		key := foldTitle(nodes[id].Title)
		if _, exists := g.byTitle[key]; !exists {
			g.byTitle[key] = id
		}
	}
	return g
}

// lessNodeID orders numeric identifiers numerically and places them before
// non-numeric identifiers, which sort lexically.
func lessNodeID(a, b string) bool {
	an, aErr := strconv.ParseUint(a, 10, 64)
	bn, bErr := strconv.ParseUint(b, 10, 64)
	switch {
	case aErr == nil && bErr == nil:
		if an != bn {
			return an < bn
		}
		return a < b
	case aErr == nil:
		return true
	case bErr == nil:
		return false
	default:
		return a < b
	}
}

func foldTitle(title string) string {
	return cases.Fold().String(title)
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	if g == nil {
		return 0
	}
	return len(g.nodes)
}

// IDs returns node identifiers in lookup order.
func (g *Graph) IDs() []string {
	if g == nil {
		return nil
	}
	return append([]string(nil), g.order...)
}

// Node returns the node with the given identifier.
func (g *Graph) Node(id string) (*Node, bool) {
	if g == nil {
		return nil, false
	}
	node, ok := g.nodes[id]
	return node, ok
}

// FindNodeByTitle performs a case-insensitive exact title match. When several
// nodes share a title the first in key order wins. Absence is reported with
// ok=false; callers decide whether that is worth a warning.
func (g *Graph) FindNodeByTitle(title string) (*Node, bool) {
	if g == nil {
		return nil, false
	}
	id, ok := g.byTitle[foldTitle(title)]
	if !ok {
		return nil, false
	}
	return g.nodes[id], true
}

// ClassOf resolves a node identifier to its class name, or "" when unknown.
func (g *Graph) ClassOf(nodeID string) string {
	if node, ok := g.Node(nodeID); ok {
		return node.ClassType
	}
	return ""
}

// Clone returns a deep copy whose inputs can be mutated independently.
func (g *Graph) Clone() *Graph {
	if g == nil {
		return nil
	}
	nodes := make(map[string]*Node, len(g.nodes))
	for id, node := range g.nodes {
		inputs := make(map[string]any, len(node.Inputs))
		for key, value := range node.Inputs {
			inputs[key] = cloneValue(value)
		}
		nodes[id] = &Node{ClassType: node.ClassType, Title: node.Title, Inputs: inputs}
	}
	return newGraph(nodes)
}

func cloneValue(value any) any {
	switch v := value.(type) {
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = cloneValue(item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, item := range v {
			out[key] = cloneValue(item)
		}
		return out
	default:
		return v
	}
}

// MarshalJSON renders the graph as the server expects it in a prompt body.
func (g *Graph) MarshalJSON() ([]byte, error) {
	if g == nil {
		return []byte("null"), nil
	}
	return json.Marshal(g.nodes)
}
