// Package interval provides time-interval algebra for the silence-removal
// pipeline: expanding detected silence by a margin, merging overlaps, and
// inverting the merged set into the intervals that survive into the output.
// Everything here is pure; no I/O and no ffmpeg.
package interval

import "sort"

// Interval is a time range in seconds within a media stream.
// When Unbounded is true the interval runs to the end of the media and End
// is meaningless; callers must resolve it against a known duration before
// doing arithmetic with it.
type Interval struct {
	Start     float64
	End       float64
	Unbounded bool
}

// Bounded returns an interval with both ends known.
func Bounded(start, end float64) Interval {
	return Interval{Start: start, End: end}
}

// ToEnd returns an interval that runs from start to the end of the media.
func ToEnd(start float64) Interval {
	return Interval{Start: start, Unbounded: true}
}

// EndOr returns the interval's end, substituting duration when the end is
// unbounded.
func (iv Interval) EndOr(duration float64) float64 {
	if iv.Unbounded {
		return duration
	}
	return iv.End
}

// Length returns the interval's length given the media duration.
func (iv Interval) Length(duration float64) float64 {
	return iv.EndOr(duration) - iv.Start
}

// expand widens each silence interval by margin on both sides, clamping to
// [0, duration]. An unbounded end stays unbounded.
func expand(silences []Interval, margin, duration float64) []Interval {
	out := make([]Interval, 0, len(silences))
	for _, s := range silences {
		e := Interval{Start: max(0, s.Start-margin), Unbounded: s.Unbounded}
		if !s.Unbounded {
			e.End = min(duration, s.End+margin)
		}
		out = append(out, e)
	}
	return out
}

// Merge coalesces overlapping or touching intervals. Input order does not
// matter; the result is sorted by start. For the overlap test an unbounded
// end counts as duration, but the unbounded marker itself survives the merge:
// once an interval is unbounded nothing after it can extend it further.
// Merging an already-merged set returns the same set.
func Merge(intervals []Interval, duration float64) []Interval {
	if len(intervals) == 0 {
		return nil
	}

	sorted := make([]Interval, len(intervals))
	copy(sorted, intervals)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })

	merged := []Interval{sorted[0]}
	for _, cur := range sorted[1:] {
		prev := &merged[len(merged)-1]
		if cur.Start <= prev.EndOr(duration) {
			if prev.Unbounded || cur.Unbounded {
				prev.Unbounded = true
				prev.End = 0
			} else {
				prev.End = max(prev.End, cur.End)
			}
		} else {
			merged = append(merged, cur)
		}
	}
	return merged
}

// Invert converts silence intervals into the ordered set of kept (non-silent)
// intervals within [0, duration]. Each silence is first expanded by margin,
// then the expanded set is merged, and the gaps between merged silences become
// kept intervals. Gaps shorter than minKeep are dropped; zero-length gaps are
// never emitted. A merged silence with an unbounded end swallows the rest of
// the stream, so it produces no trailing kept interval.
//
// When duration is unknown (<= 0) the margin and length constraints cannot be
// applied meaningfully; the result degrades to a single unbounded interval
// starting at zero.
func Invert(duration float64, silences []Interval, margin, minKeep float64) []Interval {
	if duration <= 0 {
		return []Interval{ToEnd(0)}
	}

	merged := Merge(expand(silences, margin, duration), duration)

	var kept []Interval
	cur := 0.0
	for _, s := range merged {
		if gap := s.Start - cur; gap > 0 && gap >= minKeep {
			kept = append(kept, Bounded(cur, s.Start))
		}
		if s.Unbounded {
			return kept
		}
		cur = s.End
	}
	if gap := duration - cur; gap > 0 && gap >= minKeep {
		kept = append(kept, Bounded(cur, duration))
	}
	return kept
}
