package gaps

import "github.com/twpayne/go-geos"

// IssueCode identifies the kind of finding reported for a gap.
type IssueCode string

const (
	IssueCodeGap                                   IssueCode = "Gap"
	IssueCodeGapAreaTooSmall                       IssueCode = "Gap.AreaTooSmall"
	IssueCodeGapSliverRatioTooLarge                IssueCode = "Gap.SliverRatioTooLarge"
	IssueCodeGapAreaTooSmallAndSliverRatioTooLarge IssueCode = "Gap.AreaTooSmallAndSliverRatioTooLarge"
)

// ErrorSink receives the findings of the rule. Report takes ownership of the
// geometry and returns the number of errors it recorded.
type ErrorSink interface {
	Report(description string, geometry *geos.Geom, code IssueCode, affectedField string) int
}

// ErrorSinkFunc adapts a function to the ErrorSink interface.
type ErrorSinkFunc func(description string, geometry *geos.Geom, code IssueCode, affectedField string) int

func (f ErrorSinkFunc) Report(description string, geometry *geos.Geom, code IssueCode, affectedField string) int {
	return f(description, geometry, code, affectedField)
}
