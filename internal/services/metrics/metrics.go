// Package metrics computes binary classification metrics for model evaluation.
package metrics

// Counts holds the confusion matrix for a binary classification pass.
type Counts struct {
	TruePositives  int
	FalsePositives int
	TrueNegatives  int
	FalseNegatives int
}

// Tally builds a confusion matrix from predicted and actual labels.
// Slices must be the same length; labels are 0 or 1.
func Tally(predicted, actual []int) Counts {
	var counts Counts
	for i := range predicted {
		if i >= len(actual) {
			break
		}
		switch {
		case predicted[i] == 1 && actual[i] == 1:
			counts.TruePositives++
		case predicted[i] == 1 && actual[i] == 0:
			counts.FalsePositives++
		case predicted[i] == 0 && actual[i] == 0:
			counts.TrueNegatives++
		default:
			counts.FalseNegatives++
		}
	}
	return counts
}

// Calculate derives precision, recall, f1 and accuracy from the confusion
// matrix. Undefined ratios (zero denominators) yield 0.
func Calculate(counts Counts) map[string]float64 {
	precision := 0.0
	if counts.TruePositives+counts.FalsePositives > 0 {
		precision = float64(counts.TruePositives) / float64(counts.TruePositives+counts.FalsePositives)
	}

	recall := 0.0
	if counts.TruePositives+counts.FalseNegatives > 0 {
		recall = float64(counts.TruePositives) / float64(counts.TruePositives+counts.FalseNegatives)
	}

	f1 := 0.0
	if precision+recall > 0 {
		f1 = 2 * precision * recall / (precision + recall)
	}

	total := counts.TruePositives + counts.FalsePositives + counts.TrueNegatives + counts.FalseNegatives
	accuracy := 0.0
	if total > 0 {
		accuracy = float64(counts.TruePositives+counts.TrueNegatives) / float64(total)
	}

	return map[string]float64{
		"precision": precision,
		"recall":    recall,
		"f1":        f1,
		"accuracy":  accuracy,
	}
}
