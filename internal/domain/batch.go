package domain

// Candidate is one miner under evaluation in a batch, identified by its
// subnet uid and the agent artifact it submitted.
type Candidate struct {
	UID int `json:"uid"`
	// ArtifactSHA256 addresses the staged agent.py content under
	// {state_dir}/platform_agents/{sha256_hex}/agent.py.
	ArtifactSHA256 string `json:"artifact_sha256"`
}

// Batch groups the candidates and claims evaluated together in one
// scheduler run.
type Batch struct {
	BatchID    string      `json:"batch_id"`
	Candidates []Candidate `json:"candidates"`
	Claims     []Claim     `json:"claims"`
}
