package geo

import (
	"github.com/golang/geo/r1"
	"github.com/golang/geo/r3"
	"github.com/golang/geo/s1"
	"github.com/golang/geo/s2"

	"waterlog/models"
)

const (
	// expectedCells is roughly how many cells cover a viewport at the base level.
	expectedCells = 16
	minLevel      = 2
	maxLevel      = 18
	// maxSingles is the largest group still drawn as individual reports.
	maxSingles = 10
	// Children this many times lighter than the heaviest sibling do not move the pin.
	outlierRatio = 8
)

// CellBaseLevel finds the s2 level at which the viewport is covered by about
// expectedCells cells.
func CellBaseLevel(vp models.ViewPort) int {
	lo := s2.LatLngFromDegrees(vp.LatMin, vp.LngMin)
	hi := s2.LatLngFromDegrees(vp.LatMax, vp.LngMax)
	area := s2.Rect{
		Lat: r1.Interval{Lo: lo.Lat.Radians(), Hi: hi.Lat.Radians()},
		Lng: s1.Interval{Lo: lo.Lng.Radians(), Hi: hi.Lng.Radians()},
	}.Area()

	center := s2.CellIDFromLatLng(s2.LatLngFromDegrees((vp.LatMin+vp.LatMax)/2, (vp.LngMin+vp.LngMax)/2))
	for lv := maxLevel; lv > minLevel; lv-- {
		if area/s2.CellFromCellID(center.Parent(lv)).ApproxArea() < expectedCells {
			return lv
		}
	}
	return minLevel
}

// group is the set of reports inside one cell.
type group struct {
	count    int64
	active   int64
	severity models.Severity
	pin      s2.Point
	// members is dropped once the group is too big to draw report by report.
	members []models.MapPoint
}

func (g *group) absorb(o *group) {
	g.count += o.count
	g.active += o.active
	g.severity = g.severity.Worse(o.severity)
	if g.count <= maxSingles {
		g.members = append(g.members, o.members...)
	} else {
		g.members = nil
	}
}

// Clusterer groups the reports in a viewport by s2 cell. A cell with more
// than maxSingles reports becomes one pin carrying the report count, the
// number still unresolved and the worst severity; smaller cells keep their
// reports.
type Clusterer struct {
	level  int
	groups map[s2.CellID]*group
}

func NewClusterer(vp models.ViewPort) *Clusterer {
	return &Clusterer{
		level:  CellBaseLevel(vp),
		groups: make(map[s2.CellID]*group),
	}
}

func (c *Clusterer) AddPoint(p models.MapPoint) {
	cell := s2.CellIDFromLatLng(s2.LatLngFromDegrees(p.Lat, p.Lng)).Parent(maxLevel)
	g, ok := c.groups[cell]
	if !ok {
		g = &group{pin: s2.PointFromLatLng(cell.LatLng())}
		c.groups[cell] = g
	}
	count := max(p.Count, 1)
	var active int64
	if models.Status(p.Status).Active() {
		active = count
	}
	g.absorb(&group{
		count:    count,
		active:   active,
		severity: models.Severity(p.Severity),
		members:  []models.MapPoint{p},
	})
}

// Points merges cells level by level up to the viewport's base level and
// returns single reports and clusters.
func (c *Clusterer) Points() []models.MapPoint {
	groups := c.groups
	for lv := maxLevel - 1; lv >= c.level; lv-- {
		groups = mergeUp(groups, lv)
	}

	out := make([]models.MapPoint, 0, len(groups))
	for _, g := range groups {
		if g.members != nil {
			out = append(out, g.members...)
			continue
		}
		ll := s2.LatLngFromPoint(g.pin)
		out = append(out, models.MapPoint{
			Lat:      ll.Lat.Degrees(),
			Lng:      ll.Lng.Degrees(),
			Count:    g.count,
			Active:   g.active,
			Severity: string(g.severity),
		})
	}
	return out
}

func mergeUp(children map[s2.CellID]*group, level int) map[s2.CellID]*group {
	byParent := make(map[s2.CellID][]*group)
	for cell, g := range children {
		parent := cell.Parent(level)
		byParent[parent] = append(byParent[parent], g)
	}

	parents := make(map[s2.CellID]*group, len(byParent))
	for cell, kids := range byParent {
		merged := &group{pin: pinOf(kids)}
		for _, k := range kids {
			merged.absorb(k)
		}
		parents[cell] = merged
	}
	return parents
}

// pinOf places a pin at the count-weighted centre of the children, ignoring
// outliers much lighter than the heaviest child.
func pinOf(kids []*group) s2.Point {
	if len(kids) == 1 {
		return kids[0].pin
	}
	var heaviest int64
	for _, k := range kids {
		heaviest = max(heaviest, k.count)
	}
	var sum r3.Vector
	for _, k := range kids {
		if heaviest/k.count < outlierRatio {
			sum = sum.Add(k.pin.Vector.Mul(float64(k.count)))
		}
	}
	return s2.Point{Vector: sum.Normalize()}
}
