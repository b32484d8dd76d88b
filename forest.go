package syntax

import (
	"cmp"
	"encoding/binary"
	"errors"
	"fmt"
	"runtime"
	"slices"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	"go.uber.org/zap"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/sync/errgroup"

	"go.gopad.dev/go-tree-sitter-syntax/internal/ranges"
	"go.gopad.dev/go-tree-sitter-syntax/query"
)

// Option configures a [Forest].
type Option func(*options)

type options struct {
	logger            *zap.Logger
	injectionCallback InjectionCallback
	matchLimit        uint
	parallelism       int
}

// WithLogger sets the logger used for layer lifecycle messages.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithInjectionCallback sets the function resolving injected languages.
// Without it injections are ignored.
func WithInjectionCallback(callback InjectionCallback) Option {
	return func(o *options) {
		o.injectionCallback = callback
	}
}

// WithMatchLimit sets the match limit of every query cursor the forest creates.
func WithMatchLimit(limit uint) Option {
	return func(o *options) {
		o.matchLimit = limit
	}
}

// WithParallelism bounds the number of layers parsed concurrently.
func WithParallelism(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.parallelism = n
		}
	}
}

type slot struct {
	layer   *Layer
	version uint32
}

// Forest is the set of syntax trees of one document: a root layer for the
// document grammar and one layer per injected region, nested by containment.
//
// A Forest is not safe for concurrent use. Iterators borrow its trees and must
// be closed before the next call to [Forest.ApplyEdits].
type Forest struct {
	log     *zap.Logger
	opts    options
	text    []byte
	slots   []slot
	free    []uint32
	root    LayerID
	parsers parserPool
}

// Open parses text with grammar and discovers its injections.
func Open(text []byte, grammar *Grammar, opts ...Option) (*Forest, error) {
	o := options{
		logger:      zap.NewNop(),
		matchLimit:  query.DefaultMatchLimit,
		parallelism: runtime.GOMAXPROCS(0),
	}
	for _, opt := range opts {
		opt(&o)
	}

	f := &Forest{
		log:  o.logger,
		opts: o,
		text: slices.Clone(text),
	}
	root := f.insert(&Layer{
		grammar: grammar,
		ranges:  []tree_sitter.Range{documentRange(f.text)},
		state:   LayerStale,
	})
	f.root = root.id

	if err := f.reparse(); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}

// ApplyEdits updates the forest to text, the document after applying edits
// in order. Layers touched by an edit are reparsed incrementally and their
// injections reconciled.
func (f *Forest) ApplyEdits(text []byte, edits ...Edit) error {
	inputs, err := inputEdits(f.text, text, edits)
	if err != nil {
		return err
	}

	for i := range inputs {
		edit := &inputs[i]
		for _, l := range f.layers() {
			if l.tree != nil {
				l.tree.Edit(edit)
			}
			if !l.hasParent {
				continue
			}
			rs, moved, modified := ranges.Translate(l.ranges, *edit)
			l.ranges = rs
			if moved || modified {
				l.state = LayerStale
			}
		}
	}

	f.text = slices.Clone(text)
	root := f.Root()
	root.ranges = []tree_sitter.Range{documentRange(f.text)}
	root.state = LayerStale

	for _, l := range f.layers() {
		if l.hasParent && len(l.ranges) == 0 && f.Layer(l.id) != nil {
			f.remove(l.id)
		}
	}

	return f.reparse()
}

type parseResult struct {
	layer       *Layer
	tree        *tree_sitter.Tree
	err         error
	fingerprint [32]byte
	requeried   bool
	injections  []injectionItem
	locals      *locals
}

// reparse walks the forest one depth level at a time. Stale layers of a level
// are parsed concurrently; their children are only visited once every layer of
// the level has reconciled its injections.
func (f *Forest) reparse() error {
	level := []LayerID{f.root}
	for len(level) > 0 {
		var layers []*Layer
		for _, id := range level {
			if l := f.Layer(id); l != nil {
				layers = append(layers, l)
			}
		}

		for _, res := range f.parseLevel(layers) {
			if err := f.applyParse(res); err != nil {
				return err
			}
		}

		var next []LayerID
		for _, l := range layers {
			if f.Layer(l.id) != nil {
				next = append(next, l.children...)
			}
		}
		level = next
	}
	return nil
}

func (f *Forest) parseLevel(layers []*Layer) []*parseResult {
	var g errgroup.Group
	g.SetLimit(f.opts.parallelism)

	var results []*parseResult
	for _, l := range layers {
		if l.state != LayerStale {
			continue
		}
		l.state = LayerReparsing

		res := &parseResult{layer: l}
		results = append(results, res)
		parentName := f.parentName(l)

		g.Go(func() error {
			res.tree, res.err = f.parse(l)
			if res.err != nil {
				return nil
			}
			res.locals = f.buildLocals(l, res.tree)
			res.fingerprint = fingerprint(f.text, l.ranges)
			if !l.injected || res.fingerprint != l.fingerprint {
				res.requeried = true
				res.injections = f.injections(l, res.tree, parentName)
			}
			return nil
		})
	}
	// layer failures are reported per result
	_ = g.Wait()

	return results
}

func (f *Forest) parse(l *Layer) (*tree_sitter.Tree, error) {
	parser := f.parsers.pop()
	defer f.parsers.push(parser)

	if err := parser.SetLanguage(l.grammar.language); err != nil {
		return nil, fmt.Errorf("error setting language: %w", err)
	}

	included := l.ranges
	if !l.hasParent {
		included = []tree_sitter.Range{{
			StartByte:  0,
			StartPoint: tree_sitter.NewPoint(0, 0),
			EndByte:    ranges.Max,
			EndPoint:   tree_sitter.NewPoint(ranges.Max, ranges.Max),
		}}
	}
	if err := parser.SetIncludedRanges(included); err != nil {
		return nil, fmt.Errorf("error setting included ranges: %w", err)
	}

	text := f.text
	tree := parser.ParseWithOptions(func(i int, _ tree_sitter.Point) []byte {
		if i >= len(text) {
			return nil
		}
		return text[i:]
	}, l.tree, nil)
	if tree == nil {
		return nil, errors.New("parser returned no tree")
	}
	return tree, nil
}

func (f *Forest) applyParse(res *parseResult) error {
	l := res.layer
	if res.err != nil {
		if !l.hasParent {
			f.log.Warn("root layer parse failed", zap.String("language", l.grammar.name), zap.Error(res.err))
			for _, child := range l.children {
				f.drop(child)
			}
			l.children = nil
			if l.tree != nil {
				l.tree.Close()
				l.tree = nil
			}
			l.locals = nil
			l.injected = false
			l.state = LayerStale
			return fmt.Errorf("%w: %s: %w", ErrParse, l.grammar.name, res.err)
		}

		f.log.Warn("layer parse failed", zap.Stringer("layer", l), zap.Error(res.err))
		f.remove(l.id)
		return nil
	}

	if l.tree != nil {
		l.tree.Close()
	}
	l.tree = res.tree
	l.locals = res.locals
	l.generation++
	l.state = LayerFresh
	f.log.Debug("layer parsed", zap.Stringer("layer", l), zap.Uint64("generation", l.generation))

	if res.requeried {
		l.fingerprint = res.fingerprint
		l.injected = true
		f.reconcile(l, res.injections)
	}
	return nil
}

func (f *Forest) parentName(l *Layer) string {
	if parent := f.parent(l); parent != nil {
		return parent.grammar.name
	}
	return l.grammar.name
}

// fingerprint hashes the content of rs together with the length of every
// range, so content moving across a range boundary changes it.
func fingerprint(text []byte, rs []tree_sitter.Range) [32]byte {
	h, _ := blake2b.New256(nil)
	var length [8]byte
	for _, r := range rs {
		end := min(r.EndByte, uint(len(text)))
		start := min(r.StartByte, end)
		binary.LittleEndian.PutUint64(length[:], uint64(end-start))
		h.Write(length[:])
		h.Write(text[start:end])
	}

	var sum [32]byte
	h.Sum(sum[:0])
	return sum
}

func (f *Forest) insert(l *Layer) *Layer {
	var index uint32
	if len(f.free) > 0 {
		index = f.free[len(f.free)-1]
		f.free = f.free[:len(f.free)-1]
	} else {
		index = uint32(len(f.slots))
		f.slots = append(f.slots, slot{version: 1})
	}

	l.id = LayerID{index: index, version: f.slots[index].version}
	f.slots[index].layer = l
	return l
}

// remove invalidates a layer and its subtree and detaches it from its parent.
func (f *Forest) remove(id LayerID) {
	l := f.Layer(id)
	if l == nil {
		return
	}
	if parent := f.parent(l); parent != nil {
		parent.children = slices.DeleteFunc(parent.children, func(child LayerID) bool {
			return child == id
		})
	}
	f.drop(id)
}

func (f *Forest) drop(id LayerID) {
	l := f.Layer(id)
	if l == nil {
		return
	}
	for _, child := range l.children {
		f.drop(child)
	}

	f.log.Debug("layer removed", zap.Stringer("layer", l))
	if l.tree != nil {
		l.tree.Close()
		l.tree = nil
	}
	l.locals = nil
	l.children = nil
	l.state = LayerInvalidated

	f.slots[id.index] = slot{version: f.slots[id.index].version + 1}
	f.free = append(f.free, id.index)
}

func (f *Forest) parent(l *Layer) *Layer {
	if !l.hasParent {
		return nil
	}
	return f.Layer(l.parent)
}

// Layer resolves a handle. It returns nil for removed layers.
func (f *Forest) Layer(id LayerID) *Layer {
	if int(id.index) >= len(f.slots) {
		return nil
	}
	s := f.slots[id.index]
	if s.layer == nil || s.version != id.version {
		return nil
	}
	return s.layer
}

// Root returns the layer of the document grammar.
func (f *Forest) Root() *Layer {
	return f.Layer(f.root)
}

// walk visits layers in pre-order. Children are only visited when visit
// returns true.
func (f *Forest) walk(id LayerID, visit func(*Layer) bool) {
	l := f.Layer(id)
	if l == nil || !visit(l) {
		return
	}
	for _, child := range l.children {
		f.walk(child, visit)
	}
}

func (f *Forest) layers() []*Layer {
	var result []*Layer
	f.walk(f.root, func(l *Layer) bool {
		result = append(result, l)
		return true
	})
	return result
}

// LayersInRange returns the layers intersecting [start, end) in pre-order,
// root first. The root layer is always included.
func (f *Forest) LayersInRange(start, end uint) []*Layer {
	var result []*Layer
	f.walk(f.root, func(l *Layer) bool {
		if l.hasParent && !l.intersects(start, end) {
			return false
		}
		result = append(result, l)
		return true
	})
	return result
}

// LayerForByteRange returns the innermost layer with a single range
// containing [start, end].
func (f *Forest) LayerForByteRange(start, end uint) *Layer {
	l := f.Root()
	for {
		next := l
		for _, id := range l.children {
			if child := f.Layer(id); child != nil && child.contains(start, end) {
				next = child
				break
			}
		}
		if next == l {
			return l
		}
		l = next
	}
}

// NamedDescendantForByteRange returns the smallest named node spanning
// [start, end] in the innermost layer containing the range.
func (f *Forest) NamedDescendantForByteRange(start, end uint) *tree_sitter.Node {
	l := f.LayerForByteRange(start, end)
	if l.tree == nil {
		return nil
	}
	return l.tree.RootNode().NamedDescendantForByteRange(start, end)
}

// Segment is a piece of the document whose innermost layer is Layer.
type Segment struct {
	Start uint
	End   uint
	Layer LayerID
}

type layerRange struct {
	r     tree_sitter.Range
	layer *Layer
}

// Partition splits [start, end) into contiguous segments, each owned by the
// innermost layer covering it.
func (f *Forest) Partition(start, end uint) []Segment {
	end = min(end, uint(len(f.text)))
	if start >= end {
		return nil
	}

	var segments []Segment
	f.partition(f.Root(), start, end, &segments)
	return segments
}

func (f *Forest) partition(l *Layer, start, end uint, segments *[]Segment) {
	var owned []layerRange
	for _, id := range l.children {
		child := f.Layer(id)
		if child == nil {
			continue
		}
		for _, r := range child.ranges {
			if r.EndByte > start && r.StartByte < end {
				owned = append(owned, layerRange{r: r, layer: child})
			}
		}
	}
	slices.SortStableFunc(owned, func(a, b layerRange) int {
		return cmp.Compare(a.r.StartByte, b.r.StartByte)
	})

	pos := start
	for _, o := range owned {
		s := max(o.r.StartByte, pos)
		e := min(o.r.EndByte, end)
		if s >= e {
			continue
		}
		if pos < s {
			appendSegment(segments, Segment{Start: pos, End: s, Layer: l.id})
		}
		f.partition(o.layer, s, e, segments)
		pos = e
	}
	if pos < end {
		appendSegment(segments, Segment{Start: pos, End: end, Layer: l.id})
	}
}

func appendSegment(segments *[]Segment, s Segment) {
	if n := len(*segments); n > 0 {
		last := &(*segments)[n-1]
		if last.Layer == s.Layer && last.End == s.Start {
			last.End = s.End
			return
		}
	}
	*segments = append(*segments, s)
}

// Text returns the current document. It must not be modified.
func (f *Forest) Text() []byte {
	return f.text
}

func (f *Forest) Len() uint {
	return uint(len(f.text))
}

// Close releases every tree and parser of the forest.
func (f *Forest) Close() {
	f.drop(f.root)
	f.parsers.close()
}
