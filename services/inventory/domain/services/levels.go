package services

import (
	"github.com/ghuser/retailstock/services/inventory/domain/models"
)

// EligibleLevel returns the active level with the highest points threshold
// not exceeding points, preferring higher priority on ties. Nil when none.
func EligibleLevel(levels []*models.MemberLevel, points int) *models.MemberLevel {
	var best *models.MemberLevel
	for _, l := range levels {
		if !l.IsActive || l.PointsThreshold > points {
			continue
		}
		if best == nil ||
			l.PointsThreshold > best.PointsThreshold ||
			(l.PointsThreshold == best.PointsThreshold && l.Priority > best.Priority) {
			best = l
		}
	}
	return best
}

// ShouldUpgrade reports whether candidate ranks above current.
func ShouldUpgrade(current, candidate *models.MemberLevel) bool {
	if candidate == nil || (current != nil && candidate.ID == current.ID) {
		return false
	}
	if current == nil || !current.IsActive {
		return true
	}
	return candidate.PointsThreshold > current.PointsThreshold
}

// DefaultLevel returns the active default level, falling back to the
// active level with the lowest threshold.
func DefaultLevel(levels []*models.MemberLevel) *models.MemberLevel {
	var lowest *models.MemberLevel
	for _, l := range levels {
		if !l.IsActive {
			continue
		}
		if l.IsDefault {
			return l
		}
		if lowest == nil || l.PointsThreshold < lowest.PointsThreshold {
			lowest = l
		}
	}
	return lowest
}
