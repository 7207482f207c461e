package rig

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/Versifine/strider/internal/gait"
)

// LegSpec places one leg on the body. Attachment is in body-local coordinates
// (right=+X, up=+Y, forward=+Z). Partner names another leg, or is empty.
type LegSpec struct {
	Name       string     `yaml:"name" json:"name"`
	Attachment [3]float64 `yaml:"attachment" json:"attachment"`
	Group      int        `yaml:"group" json:"group"`
	Partner    string     `yaml:"partner" json:"partner"`
}

func (s LegSpec) Offset() mgl64.Vec3 {
	return mgl64.Vec3{s.Attachment[0], s.Attachment[1], s.Attachment[2]}
}

// DefaultLegs is the eight-leg body: left 1+3 with right 2+4 swing together, then the rest.
func DefaultLegs() []LegSpec {
	rows := []float64{0.6, 0.2, -0.2, -0.6}
	specs := make([]LegSpec, 0, 2*len(rows))
	for i, z := range rows {
		n := i + 1
		left := LegSpec{Name: fmt.Sprintf("L%d", n), Attachment: [3]float64{-0.5, 0, z}, Group: i % 2, Partner: fmt.Sprintf("R%d", n)}
		right := LegSpec{Name: fmt.Sprintf("R%d", n), Attachment: [3]float64{0.5, 0, z}, Group: (i + 1) % 2, Partner: fmt.Sprintf("L%d", n)}
		specs = append(specs, left, right)
	}
	return specs
}

// BuildLayout resolves group numbers and partner names into a gait layout.
func BuildLayout(specs []LegSpec) (gait.Layout, error) {
	if len(specs) == 0 {
		return gait.Layout{}, fmt.Errorf("%w: no legs configured", gait.ErrInvalidLayout)
	}

	index := make(map[string]int, len(specs))
	maxGroup := 0
	for i, s := range specs {
		if s.Name == "" {
			return gait.Layout{}, fmt.Errorf("%w: leg %d has no name", gait.ErrInvalidLayout, i)
		}
		if _, dup := index[s.Name]; dup {
			return gait.Layout{}, fmt.Errorf("%w: duplicate leg name %q", gait.ErrInvalidLayout, s.Name)
		}
		if s.Group < 0 {
			return gait.Layout{}, fmt.Errorf("%w: leg %q has negative group %d", gait.ErrInvalidLayout, s.Name, s.Group)
		}
		index[s.Name] = i
		if s.Group > maxGroup {
			maxGroup = s.Group
		}
	}

	groups := make([][]int, maxGroup+1)
	partners := make([]int, len(specs))
	for i, s := range specs {
		groups[s.Group] = append(groups[s.Group], i)
		partners[i] = -1
		if s.Partner == "" {
			continue
		}
		p, ok := index[s.Partner]
		if !ok {
			return gait.Layout{}, fmt.Errorf("%w: leg %q has unknown partner %q", gait.ErrInvalidLayout, s.Name, s.Partner)
		}
		partners[i] = p
	}
	return gait.NewLayout(len(specs), groups, partners)
}
