// Package merge implements the line-based three-way merge the Apply/Merge
// Engine falls back to when a workspace file has diverged from both its
// base (last-applied) version and the composite layers' winning version.
// No ecosystem diff3-merge library exists in the corpus this module draws
// from (sergi/go-diff, pulled in transitively via go-git, computes text
// diffs but not three-way reconciliation), so the merge itself is a direct
// line-based implementation.
package merge

import (
	"sort"
	"strings"
)

// Result is the outcome of a three-way merge.
type Result struct {
	// Content is the merged text. If Conflict is true, it contains
	// standard <<<<<<</=======/>>>>>>> markers around every region the two
	// sides changed differently.
	Content  []byte
	Conflict bool
}

// ThreeWay merges ours and theirs against their common ancestor base.
// Changes each side made relative to base are computed independently via
// an LCS-based line diff, then reconciled range by range: disjoint
// changes from the two sides are both kept, identical changes are applied
// once, and overlapping, disagreeing changes become a conflict block.
func ThreeWay(base, ours, theirs []byte) Result {
	baseLines := splitLines(base)

	ourOps := diffOps(baseLines, splitLines(ours))
	theirOps := diffOps(baseLines, splitLines(theirs))

	clusters := cluster(baseLines, ourOps, theirOps)

	var out []string
	conflict := false
	pos := 0
	for _, c := range clusters {
		out = append(out, baseLines[pos:c.baseStart]...)

		switch {
		case c.ourSet && !c.theirSet:
			out = append(out, c.ours...)
		case !c.ourSet && c.theirSet:
			out = append(out, c.theirs...)
		case linesEqual(c.ours, c.theirs):
			out = append(out, c.ours...)
		default:
			conflict = true
			out = append(out, "<<<<<<< ours")
			out = append(out, c.ours...)
			out = append(out, "=======")
			out = append(out, c.theirs...)
			out = append(out, ">>>>>>> theirs")
		}
		pos = c.baseEnd
	}
	out = append(out, baseLines[pos:]...)

	return Result{Content: []byte(strings.Join(out, "\n")), Conflict: conflict}
}

// op describes one contiguous base range a side's content replaces.
// Unchanged base regions between ops are implicit.
type op struct {
	baseStart, baseEnd int
	lines              []string
}

// diffOps computes the minimal edit script turning base into side, one op
// per contiguous changed range.
func diffOps(base, side []string) []op {
	matches := lcsMatches(base, side)

	var ops []op
	prevBase, prevSide := 0, 0
	for _, m := range matches {
		bi, sj := m[0], m[1]
		if bi > prevBase || sj > prevSide {
			ops = append(ops, op{
				baseStart: prevBase,
				baseEnd:   bi,
				lines:     append([]string(nil), side[prevSide:sj]...),
			})
		}
		prevBase, prevSide = bi+1, sj+1
	}
	if prevBase < len(base) || prevSide < len(side) {
		ops = append(ops, op{
			baseStart: prevBase,
			baseEnd:   len(base),
			lines:     append([]string(nil), side[prevSide:]...),
		})
	}
	return ops
}

// lcsMatches returns the matched (base-index, side-index) pairs of the
// longest common subsequence of a and b, in ascending order.
func lcsMatches(a, b []string) [][2]int {
	n, m := len(a), len(b)
	dp := make([][]int, n+1)
	for i := range dp {
		dp[i] = make([]int, m+1)
	}
	for i := n - 1; i >= 0; i-- {
		for j := m - 1; j >= 0; j-- {
			switch {
			case a[i] == b[j]:
				dp[i][j] = dp[i+1][j+1] + 1
			case dp[i+1][j] >= dp[i][j+1]:
				dp[i][j] = dp[i+1][j]
			default:
				dp[i][j] = dp[i][j+1]
			}
		}
	}

	var matches [][2]int
	i, j := 0, 0
	for i < n && j < m {
		switch {
		case a[i] == b[j]:
			matches = append(matches, [2]int{i, j})
			i++
			j++
		case dp[i+1][j] >= dp[i][j+1]:
			i++
		default:
			j++
		}
	}
	return matches
}

// clusterRegion is one reconciled span of the merge, covering [baseStart,
// baseEnd) of base and recording each side's replacement content, if any.
type clusterRegion struct {
	baseStart, baseEnd int
	ours               []string
	ourSet             bool
	theirs             []string
	theirSet           bool
}

type taggedOp struct {
	op
	ours bool
}

// cluster merges ourOps and theirOps, which each independently partition
// base into changed ranges, into a single sequence of regions: ranges
// touched by only one side pass through untouched by the other; ranges
// touched by both (even partially overlapping) are grouped into one
// region so the caller can compare the two sides' full replacement text.
func cluster(base []string, ourOps, theirOps []op) []clusterRegion {
	tagged := make([]taggedOp, 0, len(ourOps)+len(theirOps))
	for _, o := range ourOps {
		tagged = append(tagged, taggedOp{op: o, ours: true})
	}
	for _, o := range theirOps {
		tagged = append(tagged, taggedOp{op: o, ours: false})
	}
	sort.Slice(tagged, func(i, j int) bool {
		if tagged[i].baseStart != tagged[j].baseStart {
			return tagged[i].baseStart < tagged[j].baseStart
		}
		return tagged[i].baseEnd < tagged[j].baseEnd
	})

	var regions []clusterRegion
	i := 0
	for i < len(tagged) {
		start, end := tagged[i].baseStart, tagged[i].baseEnd
		group := []taggedOp{tagged[i]}
		i++
		// Ops starting at the same base position overlap even when one of
		// them is a zero-width insertion.
		for i < len(tagged) && (tagged[i].baseStart < end || tagged[i].baseStart == start) {
			if tagged[i].baseEnd > end {
				end = tagged[i].baseEnd
			}
			group = append(group, tagged[i])
			i++
		}

		r := clusterRegion{baseStart: start, baseEnd: end}
		ourPos, theirPos := start, start
		for _, g := range group {
			if g.ours {
				r.ourSet = true
				r.ours = append(r.ours, base[ourPos:g.baseStart]...)
				r.ours = append(r.ours, g.lines...)
				ourPos = g.baseEnd
			} else {
				r.theirSet = true
				r.theirs = append(r.theirs, base[theirPos:g.baseStart]...)
				r.theirs = append(r.theirs, g.lines...)
				theirPos = g.baseEnd
			}
		}
		if r.ourSet {
			r.ours = append(r.ours, base[ourPos:end]...)
		}
		if r.theirSet {
			r.theirs = append(r.theirs, base[theirPos:end]...)
		}
		regions = append(regions, r)
	}
	return regions
}

func linesEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// splitLines splits data on '\n', preserving a trailing empty element when
// data ends in a newline so joining with "\n" round-trips exactly.
func splitLines(data []byte) []string {
	if len(data) == 0 {
		return nil
	}
	return strings.Split(string(data), "\n")
}
