package awards

// ValidationResult captures the outcome of photo validation for a submission.
type ValidationResult struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	Passed     bool    `json:"passed"`
}

// perfectConfidenceFloor marks the confidence above which a validation counts
// as perfect for the perfectionist badge.
const perfectConfidenceFloor = 0.9

// IsPerfect reports whether the validation counts toward perfect-validation badges.
func (v ValidationResult) IsPerfect() bool {
	return v.Passed && v.Confidence > perfectConfidenceFloor
}
