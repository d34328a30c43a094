package expr

import (
	"encoding/json"
	"time"

	"github.com/paulmach/orb/geojson"
)

// wireNode is the JSON form of a graph vertex, an operation tree the remote
// service evaluates. Shared subexpressions are inlined; argument nodes mark
// the per-scene placeholder inside mapped transforms.
type wireNode struct {
	Op     Op                `json:"op"`
	Args   []*wireNode       `json:"args,omitempty"`
	Name   string            `json:"name,omitempty"`
	Value  *float64          `json:"value,omitempty"`
	Filter *Filter           `json:"filter,omitempty"`
	Geom   *geojson.Geometry `json:"geometry,omitempty"`
	Start  string            `json:"start,omitempty"`
	End    string            `json:"end,omitempty"`
}

func toWire(n *Node) *wireNode {
	w := &wireNode{
		Op:     n.Op,
		Name:   n.Name,
		Filter: n.Filter,
	}
	switch n.Op {
	case OpGt, OpLt, OpNeq, OpDirectionalDist, OpReproject, OpFocalMin, OpFocalMax, OpNumber:
		v := n.Value
		w.Value = &v
	}
	if n.Geom != nil {
		w.Geom = geojson.NewGeometry(n.Geom)
	}
	if !n.Start.IsZero() || !n.End.IsZero() {
		w.Start = n.Start.Format(time.RFC3339)
		w.End = n.End.Format(time.RFC3339)
	}
	for _, a := range n.Args {
		w.Args = append(w.Args, toWire(a))
	}
	return w
}

// Encode serializes an expression graph rooted at n to its wire form.
func Encode(n *Node) ([]byte, error) {
	return json.Marshal(toWire(n))
}

// EncodeImage serializes an image expression to its wire form.
func EncodeImage(i *Image) ([]byte, error) {
	return Encode(i.Node())
}
