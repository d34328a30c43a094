// Package expr builds deferred expression graphs over remote image
// collections. Nothing here touches the network: components assemble a
// description of the work, and a materializer (the remote session or the
// local interpreter) forces evaluation at explicit points.
package expr

import (
	"time"

	"github.com/paulmach/orb"
)

// Op identifies an expression graph operation.
type Op string

const (
	OpCollection      Op = "collection"
	OpFilterBounds    Op = "filterBounds"
	OpFilterDate      Op = "filterDate"
	OpFilterMetadata  Op = "filterMetadata"
	OpJoinSaveFirst   Op = "joinSaveFirst"
	OpMap             Op = "map"
	OpMosaic          Op = "mosaic"
	OpArgument        Op = "argument"
	OpSelect          Op = "select"
	OpGt              Op = "gt"
	OpLt              Op = "lt"
	OpNeq             Op = "neq"
	OpAdd             Op = "add"
	OpMultiply        Op = "multiply"
	OpRename          Op = "rename"
	OpAddBands        Op = "addBands"
	OpLinked          Op = "linked"
	OpDirectionalDist Op = "directionalDistanceTransform"
	OpReproject       Op = "reproject"
	OpMask            Op = "mask"
	OpSelfMask        Op = "selfMask"
	OpUpdateMask      Op = "updateMask"
	OpFocalMin        Op = "focalMin"
	OpFocalMax        Op = "focalMax"
	OpNumber          Op = "number"
	OpProperty        Op = "property"
	OpSubtract        Op = "subtract"
)

// Node is one vertex of an expression graph. Nodes are immutable once
// built; every operation returns a new node referencing its inputs.
type Node struct {
	Op   Op
	Args []*Node

	// Name is the band, collection, property or join-slot name, depending
	// on the operation.
	Name string

	// Value is the numeric operand for threshold, scale and constant ops.
	Value float64

	// Filter is the metadata predicate for OpFilterMetadata.
	Filter *Filter

	// Geom is the spatial bound for OpFilterBounds.
	Geom orb.Geometry

	// Start and End delimit the half-open date interval for OpFilterDate.
	Start, End time.Time
}

// Image is a deferred single- or multi-band image expression.
type Image struct {
	n *Node
}

// Collection is a deferred image collection expression.
type Collection struct {
	n *Node
}

// Number is a deferred scalar expression.
type Number struct {
	n *Node
}

// Node exposes the underlying graph vertex.
func (i *Image) Node() *Node { return i.n }

// Node exposes the underlying graph vertex.
func (c *Collection) Node() *Node { return c.n }

// Node exposes the underlying graph vertex.
func (n *Number) Node() *Node { return n.n }

// ImageCollection references a named remote image collection.
func ImageCollection(id string) *Collection {
	return &Collection{n: &Node{Op: OpCollection, Name: id}}
}

// FilterBounds keeps scenes whose footprint intersects the geometry.
func (c *Collection) FilterBounds(g orb.Geometry) *Collection {
	return &Collection{n: &Node{Op: OpFilterBounds, Args: []*Node{c.n}, Geom: g}}
}

// FilterDate keeps scenes observed within [start, end).
func (c *Collection) FilterDate(start, end time.Time) *Collection {
	return &Collection{n: &Node{Op: OpFilterDate, Args: []*Node{c.n}, Start: start, End: end}}
}

// Filter keeps scenes whose metadata satisfies the predicate.
func (c *Collection) Filter(f Filter) *Collection {
	ff := f
	return &Collection{n: &Node{Op: OpFilterMetadata, Args: []*Node{c.n}, Filter: &ff}}
}

// SaveFirstJoin joins two collections on equal values of the given scene
// property, attaching the first secondary match to each primary scene under
// slot. Primaries without a match and unmatched secondaries are dropped.
func SaveFirstJoin(primary, secondary *Collection, slot, property string) *Collection {
	return &Collection{n: &Node{
		Op:   OpJoinSaveFirst,
		Args: []*Node{primary.n, secondary.n},
		Name: slot + "/" + property,
	}}
}

// Map applies a per-scene image transform across the collection. The
// closure runs immediately against a placeholder argument so the transform
// is captured in the graph, not executed.
func (c *Collection) Map(fn func(*Image) *Image) *Collection {
	arg := &Image{n: &Node{Op: OpArgument}}
	body := fn(arg)
	return &Collection{n: &Node{Op: OpMap, Args: []*Node{c.n, body.n, arg.n}}}
}

// Mosaic composites the collection into one image, first valid pixel wins.
func (c *Collection) Mosaic() *Image {
	return &Image{n: &Node{Op: OpMosaic, Args: []*Node{c.n}}}
}

// Select extracts a single named band.
func (i *Image) Select(band string) *Image {
	return &Image{n: &Node{Op: OpSelect, Args: []*Node{i.n}, Name: band}}
}

// Gt thresholds the image strictly above v, producing a 0/1 band.
func (i *Image) Gt(v float64) *Image {
	return &Image{n: &Node{Op: OpGt, Args: []*Node{i.n}, Value: v}}
}

// Lt thresholds the image strictly below v, producing a 0/1 band.
func (i *Image) Lt(v float64) *Image {
	return &Image{n: &Node{Op: OpLt, Args: []*Node{i.n}, Value: v}}
}

// Neq produces a 0/1 band marking pixels not equal to v.
func (i *Image) Neq(v float64) *Image {
	return &Image{n: &Node{Op: OpNeq, Args: []*Node{i.n}, Value: v}}
}

// Add sums two images pixel-wise.
func (i *Image) Add(o *Image) *Image {
	return &Image{n: &Node{Op: OpAdd, Args: []*Node{i.n, o.n}}}
}

// Multiply multiplies two images pixel-wise; on 0/1 bands this is AND.
func (i *Image) Multiply(o *Image) *Image {
	return &Image{n: &Node{Op: OpMultiply, Args: []*Node{i.n, o.n}}}
}

// Rename renames the image's band.
func (i *Image) Rename(name string) *Image {
	return &Image{n: &Node{Op: OpRename, Args: []*Node{i.n}, Name: name}}
}

// AddBands appends the bands of the given images to this image.
func (i *Image) AddBands(imgs ...*Image) *Image {
	args := []*Node{i.n}
	for _, o := range imgs {
		args = append(args, o.n)
	}
	return &Image{n: &Node{Op: OpAddBands, Args: args}}
}

// Linked dereferences the image attached to a join slot by SaveFirstJoin.
func (i *Image) Linked(slot string) *Image {
	return &Image{n: &Node{Op: OpLinked, Args: []*Node{i.n}, Name: slot}}
}

// Property reads a numeric scene metadata value.
func (i *Image) Property(name string) *Number {
	return &Number{n: &Node{Op: OpProperty, Args: []*Node{i.n}, Name: name}}
}

// DirectionalDistanceTransform computes per-pixel distance to the nearest
// nonzero pixel along the given direction, up to maxDist units.
func (i *Image) DirectionalDistanceTransform(angle *Number, maxDist float64) *Image {
	return &Image{n: &Node{Op: OpDirectionalDist, Args: []*Node{i.n, angle.n}, Value: maxDist}}
}

// Reproject resamples the image to the given scale in the scene's native
// linear units.
func (i *Image) Reproject(scale float64) *Image {
	return &Image{n: &Node{Op: OpReproject, Args: []*Node{i.n}, Value: scale}}
}

// Mask returns the image's validity mask as a 0/1 band.
func (i *Image) Mask() *Image {
	return &Image{n: &Node{Op: OpMask, Args: []*Node{i.n}}}
}

// SelfMask invalidates zero-valued pixels.
func (i *Image) SelfMask() *Image {
	return &Image{n: &Node{Op: OpSelfMask, Args: []*Node{i.n}}}
}

// UpdateMask invalidates pixels where the mask image is invalid or zero.
func (i *Image) UpdateMask(mask *Image) *Image {
	return &Image{n: &Node{Op: OpUpdateMask, Args: []*Node{i.n, mask.n}}}
}

// FocalMin erodes the image with a circular kernel of the given radius.
func (i *Image) FocalMin(radius float64) *Image {
	return &Image{n: &Node{Op: OpFocalMin, Args: []*Node{i.n}, Value: radius}}
}

// FocalMax dilates the image with a circular kernel of the given radius.
func (i *Image) FocalMax(radius float64) *Image {
	return &Image{n: &Node{Op: OpFocalMax, Args: []*Node{i.n}, Value: radius}}
}

// Placeholder returns an argument image for building a standalone per-scene
// transform outside Collection.Map. A materializer binds it to a concrete
// scene at evaluation time.
func Placeholder() *Image {
	return &Image{n: &Node{Op: OpArgument}}
}

// Num creates a constant scalar expression.
func Num(v float64) *Number {
	return &Number{n: &Node{Op: OpNumber, Value: v}}
}

// Sub subtracts o from the number.
func (n *Number) Sub(o *Number) *Number {
	return &Number{n: &Node{Op: OpSubtract, Args: []*Node{n.n, o.n}}}
}

// JoinSlot splits a save-first join node name into its slot and property.
func (n *Node) JoinSlot() (slot, property string) {
	for i := 0; i < len(n.Name); i++ {
		if n.Name[i] == '/' {
			return n.Name[:i], n.Name[i+1:]
		}
	}
	return n.Name, ""
}
