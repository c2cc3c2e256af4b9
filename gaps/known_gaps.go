package gaps

import (
	"sort"

	"github.com/bsaid97/go-nogaps/utils"
	"github.com/twpayne/go-geos"
)

// indexCellsPerSide sets the granularity of the pending gap index relative to
// the run box.
const indexCellsPerSide = 64

// knownGap is a pending gap fragment, possibly merged from candidates of
// several subtiles.
type knownGap struct {
	id   int
	geom *geos.Geom
	box  Box
	// touches the run box boundary
	atRunBoundary bool
	// exceeded the maximum area, will never be reported
	oversized bool
}

// KnownGaps accumulates gap fragments across tiles and releases each gap
// once no unprocessed tile can extend it any more.
//
// Tiles must be visited row by row from south to north and from west to east
// within a row, and subtiles must span the full height of their tile.
type KnownGaps struct {
	kernel                 Kernel
	tolerance              float64
	allBox                 Box
	maxArea                float64
	excludeRunBoundaryGaps bool

	gaps   map[int]*knownGap
	index  *utils.SpatialIndex
	nextID int
}

type KnownGapsOptions struct {
	Tolerance              float64
	AllBox                 Box
	MaxArea                float64
	ExcludeRunBoundaryGaps bool
	Kernel                 Kernel
}

func NewKnownGaps(opts KnownGapsOptions) *KnownGaps {
	kernel := opts.Kernel
	if kernel == nil {
		kernel = GEOSKernel{}
	}
	cellSize := max(opts.AllBox.Width(), opts.AllBox.Height()) / indexCellsPerSide
	if cellSize < opts.Tolerance*100 {
		cellSize = opts.Tolerance * 100
	}
	return &KnownGaps{
		kernel:                 kernel,
		tolerance:              opts.Tolerance,
		allBox:                 opts.AllBox,
		maxArea:                opts.MaxArea,
		excludeRunBoundaryGaps: opts.ExcludeRunBoundaryGaps,
		gaps:                   make(map[int]*knownGap),
		index:                  utils.NewSpatialIndex(cellSize),
	}
}

func (k *KnownGaps) Tolerance() float64 { return k.tolerance }

// Pending returns the number of gaps not yet completed.
func (k *KnownGaps) Pending() int { return len(k.gaps) }

// Ingest takes ownership of the candidates of one subtile and returns the
// gaps that are completed after processing it. The caller owns the returned
// geometries. subtile is the unbuffered envelope the candidates belong to.
func (k *KnownGaps) Ingest(candidates []*geos.Geom, subtile Box) []*geos.Geom {
	k.merge(candidates)
	return k.completed(subtile, false)
}

// Flush completes every pending gap. Used after the final tile.
func (k *KnownGaps) Flush() []*geos.Geom {
	return k.completed(Box{}, true)
}

// Release destroys all pending gaps.
func (k *KnownGaps) Release() {
	for id, gap := range k.gaps {
		gap.geom.Destroy()
		k.index.Remove(id)
	}
	clear(k.gaps)
}

// merge adds the candidates and unions every group of gaps connected by
// spatial contact into one known gap.
func (k *KnownGaps) merge(candidates []*geos.Geom) {
	added := make([]*knownGap, 0, len(candidates))
	for _, candidate := range candidates {
		if candidate == nil || candidate.IsEmpty() {
			if candidate != nil {
				candidate.Destroy()
			}
			continue
		}
		added = append(added, &knownGap{
			id:   k.newID(),
			geom: candidate,
			box:  k.kernel.Envelope(candidate),
		})
	}

	sets := newDisjointSet()
	for _, gap := range added {
		sets.add(gap.id)
		for _, id := range k.index.Query(gap.box.Expand(k.tolerance).Box2D()) {
			pending := k.gaps[id]
			if pending.geom.Intersects(gap.geom) {
				sets.add(id)
				sets.union(gap.id, id)
			}
		}
	}
	for _, gap := range added {
		k.put(gap)
	}

	for _, ids := range sets.groups() {
		if len(ids) > 1 {
			k.mergeGroup(ids)
		}
	}
}

func (k *KnownGaps) mergeGroup(ids []int) {
	parts := make([]*geos.Geom, 0, len(ids))
	merged := &knownGap{id: k.newID()}
	for _, id := range ids {
		gap := k.gaps[id]
		parts = append(parts, gap.geom)
		merged.atRunBoundary = merged.atRunBoundary || gap.atRunBoundary
		merged.oversized = merged.oversized || gap.oversized
		k.remove(id)
	}

	merged.geom = k.kernel.Union(parts)
	destroyAll(parts)
	merged.box = k.kernel.Envelope(merged.geom)
	k.put(merged)
}

// completed removes and returns the gaps no future subtile can extend.
func (k *KnownGaps) completed(subtile Box, force bool) []*geos.Geom {
	ids := make([]int, 0, len(k.gaps))
	for id := range k.gaps {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	var result []*geos.Geom
	for _, id := range ids {
		gap := k.gaps[id]
		k.classify(gap)

		if gap.oversized && !force {
			k.trimToFrontier(gap, subtile)
		}

		if !force && !gap.geom.IsEmpty() && k.isOpen(gap.box, subtile) {
			continue
		}

		k.remove(id)
		if gap.oversized || gap.geom.IsEmpty() || (k.excludeRunBoundaryGaps && gap.atRunBoundary) {
			gap.geom.Destroy()
			continue
		}
		result = append(result, gap.geom)
	}
	return result
}

func (k *KnownGaps) classify(gap *knownGap) {
	if !gap.atRunBoundary {
		gap.atRunBoundary = gap.box.XMin() <= k.allBox.XMin()+k.tolerance ||
			gap.box.YMin() <= k.allBox.YMin()+k.tolerance ||
			gap.box.XMax() >= k.allBox.XMax()-k.tolerance ||
			gap.box.YMax() >= k.allBox.YMax()-k.tolerance
	}
	if !gap.oversized && k.maxArea > 0 {
		gap.oversized = k.kernel.Area(gap.geom) > k.maxArea
	}
}

// isOpen reports whether a tile still to be processed can touch the box:
// the rest of the current row east of the subtile, or any row further north.
func (k *KnownGaps) isOpen(box, subtile Box) bool {
	eps := k.tolerance

	openEast := subtile.XMax() < k.allBox.XMax()-eps &&
		box.XMax() >= subtile.XMax()-eps &&
		box.YMax() >= subtile.YMin()-eps

	openNorth := subtile.YMax() < k.allBox.YMax()-eps &&
		box.YMax() >= subtile.YMax()-eps

	return openEast || openNorth
}

// trimToFrontier cuts an oversized gap down to the territory later clip
// envelopes can still reach. Only contact matters for such a gap.
func (k *KnownGaps) trimToFrontier(gap *knownGap, subtile Box) {
	reach := k.tolerance * (clipOffsetFactor + 1)

	east := NewBox(subtile.XMax()-reach, subtile.YMin()-reach, k.allBox.XMax()+reach, k.allBox.YMax()+reach)
	north := NewBox(k.allBox.XMin()-reach, subtile.YMax()-reach, k.allBox.XMax()+reach, k.allBox.YMax()+reach)
	frontier := east.Union(north)
	if frontier.Contains(gap.box) {
		return
	}

	eastPart := k.kernel.Clip(gap.geom, east)
	northPart := k.kernel.Clip(gap.geom, north)
	trimmed := k.kernel.Union([]*geos.Geom{eastPart, northPart})
	eastPart.Destroy()
	northPart.Destroy()

	k.remove(gap.id)
	gap.geom.Destroy()
	gap.geom = trimmed
	gap.box = k.kernel.Envelope(trimmed)
	k.put(gap)
}

func (k *KnownGaps) put(gap *knownGap) {
	k.gaps[gap.id] = gap
	if !gap.box.IsEmpty() {
		k.index.Insert(gap.id, gap.box.Box2D())
	}
}

func (k *KnownGaps) remove(id int) {
	delete(k.gaps, id)
	k.index.Remove(id)
}

func (k *KnownGaps) newID() int {
	k.nextID++
	return k.nextID
}

// disjointSet is a union-find over gap ids.
type disjointSet struct {
	parent map[int]int
	order  []int
}

func newDisjointSet() *disjointSet {
	return &disjointSet{parent: make(map[int]int)}
}

func (d *disjointSet) add(id int) {
	if _, ok := d.parent[id]; !ok {
		d.parent[id] = id
		d.order = append(d.order, id)
	}
}

func (d *disjointSet) find(id int) int {
	for d.parent[id] != id {
		d.parent[id] = d.parent[d.parent[id]]
		id = d.parent[id]
	}
	return id
}

func (d *disjointSet) union(a, b int) {
	ra, rb := d.find(a), d.find(b)
	if ra != rb {
		d.parent[rb] = ra
	}
}

// groups returns the members of every set in insertion order.
func (d *disjointSet) groups() [][]int {
	byRoot := make(map[int][]int)
	var roots []int
	for _, id := range d.order {
		root := d.find(id)
		if _, ok := byRoot[root]; !ok {
			roots = append(roots, root)
		}
		byRoot[root] = append(byRoot[root], id)
	}
	result := make([][]int, 0, len(roots))
	for _, root := range roots {
		result = append(result, byRoot[root])
	}
	return result
}
