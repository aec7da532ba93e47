package quality

// FilterParams holds the noise-filter thresholds.
type FilterParams struct {
	VelocityLikesThreshold int     // likes needed before velocity is suspicious
	VelocityWindowMinutes  float64 // window in which that velocity is suspicious
	QualitySuppressBelow   float64 // quality floor that rescues fast content
}

// DefaultFilterParams returns the production suppression thresholds.
func DefaultFilterParams() FilterParams {
	return FilterParams{
		VelocityLikesThreshold: 100,
		VelocityWindowMinutes:  10,
		QualitySuppressBelow:   0.5,
	}
}

// ShouldSuppress flags content that is both high-velocity (many likes while
// very young) and confirmed low-quality. Content that has never been scored
// is fail-open: an absent score is not a low score, so scored=false never
// suppresses.
func (f FilterParams) ShouldSuppress(likesCount int, ageMinutes float64, qualityScore float64, scored bool) bool {
	if !scored {
		return false
	}
	highVelocity := likesCount > f.VelocityLikesThreshold && ageMinutes < f.VelocityWindowMinutes
	return highVelocity && qualityScore < f.QualitySuppressBelow
}
