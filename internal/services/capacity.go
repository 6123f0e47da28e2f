package services

// Capacity policy for managed groups. Pure functions over the participant
// count and the per-group limits inherited from the series.

// Occupancy returns the occupancy percentage of a group.
// A non-positive maximum reads as 100% so a misconfigured group provisions
// a successor instead of silently overflowing.
func Occupancy(count, maxParticipants int) float64 {
	if maxParticipants <= 0 {
		return 100
	}
	return float64(count) / float64(maxParticipants) * 100
}

// IsFull reports whether the group reached its participant limit
func IsFull(count, maxParticipants int) bool {
	if maxParticipants <= 0 {
		return true
	}
	return count >= maxParticipants
}

// IsNearCapacity reports whether occupancy crossed the threshold while the
// group still has room
func IsNearCapacity(count, maxParticipants, thresholdPercentage int) bool {
	return Occupancy(count, maxParticipants) >= float64(thresholdPercentage) && !IsFull(count, maxParticipants)
}

// ShouldCreateNext reports whether a successor group is due: the group is
// either full or past its capacity threshold
func ShouldCreateNext(count, maxParticipants, thresholdPercentage int) bool {
	return IsFull(count, maxParticipants) || Occupancy(count, maxParticipants) >= float64(thresholdPercentage)
}
