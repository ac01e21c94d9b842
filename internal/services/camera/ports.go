package camera

import (
	"github.com/samber/lo"

	"kepler-fleet/internal/models"
)

// Allocate returns the smallest port >= base not in existing.
func Allocate(existing []int, base int) int {
	used := lo.SliceToMap(existing, func(p int) (int, struct{}) { return p, struct{}{} })
	port := base
	for {
		if _, taken := used[port]; !taken {
			return port
		}
		port++
	}
}

// UsedPorts lists the stream ports of cams.
func UsedPorts(cams []models.Camera) []int {
	return lo.Map(cams, func(c models.Camera, _ int) int { return c.Port })
}
