package ai

import "context"

// Request is everything the classifier sees about one candidate and one job.
type Request struct {
	CandidateID   string
	CandidateName string
	Opportunity   string
	Requirements  []string
	Extra         []string
	ResumeText    string
}

// Assessment is the classifier verdict: a 0-100 fit score and a one sentence justification.
type Assessment struct {
	Score         int
	Justification string
	Raw           string
}

// Classifier scores a resume against job requirements.
type Classifier interface {
	Classify(ctx context.Context, req *Request) (*Assessment, error)
}

// ClassifierFunc adapts a function to the Classifier interface.
type ClassifierFunc func(ctx context.Context, req *Request) (*Assessment, error)

func (f ClassifierFunc) Classify(ctx context.Context, req *Request) (*Assessment, error) {
	return f(ctx, req)
}
