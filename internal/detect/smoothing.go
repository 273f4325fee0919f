package detect

// SmoothVolume averages the current volume with up to windowSize-1 of the
// most recent previous volumes. It exists to damp single-reading noise for
// display; the classifier operates on raw corrected volumes so that real
// refills and leaks are not averaged away.
func SmoothVolume(current float64, previous []float64, windowSize int) float64 {
	if windowSize < 1 {
		windowSize = 1
	}
	all := append(append([]float64{}, previous...), current)
	if len(all) > windowSize {
		all = all[len(all)-windowSize:]
	}
	var sum float64
	for _, v := range all {
		sum += v
	}
	return sum / float64(len(all))
}
