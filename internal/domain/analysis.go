package domain

// FraudAnalysis is the outcome of scoring one transaction.
type FraudAnalysis struct {
	RiskLevel       RiskLevel `json:"riskLevel"`
	RiskScore       int       `json:"riskScore"`
	Explanation     string    `json:"explanation"`
	Confidence      int       `json:"confidence"`
	RedFlags        []string  `json:"redFlags"`
	Recommendations []string  `json:"recommendations"`
	SimilarPatterns []string  `json:"similarPatterns"`
	Source          string    `json:"source"`
}

type SimilarTransaction struct {
	ID          string    `json:"id"`
	Amount      float64   `json:"amount"`
	Description string    `json:"description"`
	RiskLevel   RiskLevel `json:"riskLevel"`
	Similarity  float64   `json:"similarity"`
}

func ClampScore(v int) int {
	return max(0, min(v, 100))
}
