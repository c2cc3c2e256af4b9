package gaps

import (
	"math"
	"strconv"
	"strings"

	"github.com/twpayne/go-geos"
)

// GapValidator applies the area and sliver limits to completed gaps. A zero
// limit is disabled.
type GapValidator struct {
	MaxArea     float64
	SliverLimit float64
	Kernel      Kernel
}

// GapIssue is the finding produced for an accepted gap.
type GapIssue struct {
	Description string
	Code        IssueCode
	Area        float64
	// SliverRatio is perimeter²/area, only set when the sliver limit is active
	SliverRatio float64
}

// Validate returns the issue for a completed gap, or false when the gap is
// degenerate, too large or not a sliver.
func (v GapValidator) Validate(gap *geos.Geom) (GapIssue, bool) {
	kernel := v.Kernel
	if kernel == nil {
		kernel = GEOSKernel{}
	}

	area := math.Abs(kernel.Area(gap))
	if area < minimumGapArea {
		return GapIssue{}, false
	}

	if v.MaxArea > 0 && area > v.MaxArea {
		// large uncovered region, not a gap
		return GapIssue{}, false
	}

	issue := GapIssue{Area: area, Code: v.issueCode()}

	var sliverMsg string
	if v.SliverLimit > 0 {
		perimeter := kernel.Perimeter(gap)
		ratio := perimeter * perimeter / area
		if ratio <= v.SliverLimit {
			return GapIssue{}, false
		}
		issue.SliverRatio = ratio
		sliverMsg = "; sliver ratio " + formatComparison(ratio, ">", v.SliverLimit) +
			", perimeter: " + formatNumber(perimeter)
	}

	var sb strings.Builder
	sb.WriteString("Gap found (")
	if v.MaxArea > 0 {
		sb.WriteString("area " + formatComparison(area, "<=", v.MaxArea))
	} else {
		sb.WriteString("area: " + formatNumber(area))
	}
	sb.WriteString(sliverMsg)
	sb.WriteString(")")
	issue.Description = sb.String()

	return issue, true
}

func (v GapValidator) issueCode() IssueCode {
	switch {
	case v.SliverLimit > 0 && v.MaxArea > 0:
		return IssueCodeGapAreaTooSmallAndSliverRatioTooLarge
	case v.SliverLimit > 0:
		return IssueCodeGapSliverRatioTooLarge
	case v.MaxArea > 0:
		return IssueCodeGapAreaTooSmall
	default:
		return IssueCodeGap
	}
}

func formatComparison(value float64, op string, limit float64) string {
	return formatNumber(value) + " " + op + " " + formatNumber(limit)
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'g', 6, 64)
}
