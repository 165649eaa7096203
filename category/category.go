// Package category implements the three-axis problem taxonomy used to key
// experience notes.
//
// A tag is three tokens joined by "_":
//
//	<task multiplicity>_<robot multiplicity>_<time awareness>
//
// for example "multi-task_single-robot_time-aware". Distance between two tags
// weights a time-awareness mismatch three times as heavily as the other axes.
package category

import (
	"errors"
	"fmt"
	"strings"
)

// Separator joins the three axis tokens of a tag.
const Separator = "_"

// MaxDistance is the largest possible distance, also returned for malformed tags.
const MaxDistance = 5

// Axis weights.
const (
	taskWeight  = 1
	robotWeight = 1
	timeWeight  = 3
)

// ErrMalformed is returned for tags that do not split into exactly three tokens.
var ErrMalformed = errors.New("malformed category tag")

// Axis 1: task multiplicity.
const (
	SingleTask = "single-task"
	MultiTask  = "multi-task"
)

// Axis 2: robot multiplicity.
const (
	SingleRobot = "single-robot"
	MultiRobot  = "multi-robot"
)

// Axis 3: time awareness.
const (
	TimeAgnostic = "time-agnostic"
	TimeAware    = "time-aware"
)

var axes = [3][]string{
	{SingleTask, MultiTask},
	{SingleRobot, MultiRobot},
	{TimeAgnostic, TimeAware},
}

// abbreviations used by the benchmark datasets (e.g. "MT_MR_TA").
var abbreviations = [3]map[string]string{
	{"ST": SingleTask, "MT": MultiTask},
	{"SR": SingleRobot, "MR": MultiRobot},
	{"IA": TimeAgnostic, "TA": TimeAware},
}

// Parse splits a tag into its three axis tokens.
func Parse(tag string) ([3]string, error) {
	var out [3]string
	parts := strings.Split(tag, Separator)
	if len(parts) != 3 {
		return out, fmt.Errorf("%w: %q has %d tokens", ErrMalformed, tag, len(parts))
	}
	copy(out[:], parts)
	return out, nil
}

// Distance returns the weighted axis mismatch between a and b, in [0, MaxDistance].
// If either tag is malformed the result is MaxDistance.
func Distance(a, b string) int {
	pa, err := Parse(a)
	if err != nil {
		return MaxDistance
	}
	pb, err := Parse(b)
	if err != nil {
		return MaxDistance
	}

	d := 0
	if pa[0] != pb[0] {
		d += taskWeight
	}
	if pa[1] != pb[1] {
		d += robotWeight
	}
	if pa[2] != pb[2] {
		d += timeWeight
	}
	return d
}

// Validate checks that tag is well formed and that every token belongs to its
// axis enumeration. Distance only requires the first condition.
func Validate(tag string) error {
	parts, err := Parse(tag)
	if err != nil {
		return err
	}
	for i, tok := range parts {
		if !contains(axes[i], tok) {
			return fmt.Errorf("category %q: token %q is not one of %v", tag, tok, axes[i])
		}
	}
	return nil
}

// Normalize maps dataset abbreviations to the long form, so "MT_SR_TA"
// becomes "multi-task_single-robot_time-aware". Tokens that are already in long
// form are kept, unknown tokens are left untouched. Malformed tags are returned
// unchanged.
func Normalize(tag string) string {
	parts, err := Parse(strings.TrimSpace(tag))
	if err != nil {
		return tag
	}
	for i, tok := range parts {
		if long, ok := abbreviations[i][strings.ToUpper(tok)]; ok {
			parts[i] = long
			continue
		}
		parts[i] = strings.ToLower(tok)
	}
	return strings.Join(parts[:], Separator)
}

// New builds a tag from its three axis tokens.
func New(task, robot, time string) string {
	return strings.Join([]string{task, robot, time}, Separator)
}

// All returns the eight well-formed tags in axis order.
func All() []string {
	var tags []string
	for _, task := range axes[0] {
		for _, robot := range axes[1] {
			for _, t := range axes[2] {
				tags = append(tags, New(task, robot, t))
			}
		}
	}
	return tags
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
