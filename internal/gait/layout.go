package gait

import (
	"errors"
	"fmt"
)

// Layout partitions legs into groups and pairs each leg with at most one partner.
type Layout struct {
	Groups   [][]int
	Partners []int // leg index -> partner leg index, -1 for none
	groupOf  []int
}

var ErrInvalidLayout = errors.New("invalid gait layout")

func NewLayout(legCount int, groups [][]int, partners []int) (Layout, error) {
	if legCount <= 0 {
		return Layout{}, fmt.Errorf("%w: no legs", ErrInvalidLayout)
	}
	if len(groups) == 0 {
		return Layout{}, fmt.Errorf("%w: no groups", ErrInvalidLayout)
	}

	groupOf := make([]int, legCount)
	for i := range groupOf {
		groupOf[i] = -1
	}
	for g, members := range groups {
		if len(members) == 0 {
			return Layout{}, fmt.Errorf("%w: group %d is empty", ErrInvalidLayout, g)
		}
		for _, leg := range members {
			if leg < 0 || leg >= legCount {
				return Layout{}, fmt.Errorf("%w: group %d references leg %d of %d", ErrInvalidLayout, g, leg, legCount)
			}
			if groupOf[leg] != -1 {
				return Layout{}, fmt.Errorf("%w: leg %d is in groups %d and %d", ErrInvalidLayout, leg, groupOf[leg], g)
			}
			groupOf[leg] = g
		}
	}
	for leg, g := range groupOf {
		if g == -1 {
			return Layout{}, fmt.Errorf("%w: leg %d has no group", ErrInvalidLayout, leg)
		}
	}

	table := make([]int, legCount)
	for i := range table {
		table[i] = -1
	}
	if partners != nil {
		if len(partners) != legCount {
			return Layout{}, fmt.Errorf("%w: partner table has %d entries for %d legs", ErrInvalidLayout, len(partners), legCount)
		}
		for leg, p := range partners {
			if p == -1 {
				continue
			}
			if p < 0 || p >= legCount || p == leg {
				return Layout{}, fmt.Errorf("%w: leg %d has partner %d", ErrInvalidLayout, leg, p)
			}
			table[leg] = p
		}
	}

	copied := make([][]int, len(groups))
	for g, members := range groups {
		copied[g] = append([]int(nil), members...)
	}
	return Layout{Groups: copied, Partners: table, groupOf: groupOf}, nil
}

func (l Layout) LegCount() int {
	return len(l.groupOf)
}

func (l Layout) GroupOf(leg int) int {
	if leg < 0 || leg >= len(l.groupOf) {
		return -1
	}
	return l.groupOf[leg]
}

func (l Layout) PartnerOf(leg int) int {
	if leg < 0 || leg >= len(l.Partners) {
		return -1
	}
	return l.Partners[leg]
}

// DefaultLayout is the eight-leg alternating tetrapod. Legs are ordered L1 R1 L2 R2 L3 R3 L4 R4;
// group 0 holds L1 R2 L3 R4, group 1 holds R1 L2 R3 L4, and each leg is partnered with its
// mirror on the other side.
func DefaultLayout() Layout {
	layout, err := NewLayout(8,
		[][]int{{0, 3, 4, 7}, {1, 2, 5, 6}},
		[]int{1, 0, 3, 2, 5, 4, 7, 6},
	)
	if err != nil {
		panic(err)
	}
	return layout
}
