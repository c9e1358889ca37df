package service

import (
	"context"

	"github.com/xxxsen/textstat/internal/model"
)

type JobRunner interface {
	Submit(ctx context.Context, fileID string) (string, error)
	Status(ctx context.Context, jobID string) (*model.Job, error)
}

type AnalysisReader interface {
	GetAnalysisRecordByFileID(ctx context.Context, fileID string) (*model.AnalysisRecord, error)
}

type AnalysisService struct {
	jobs    JobRunner
	results AnalysisReader
}

func NewAnalysisService(jobs JobRunner, results AnalysisReader) *AnalysisService {
	return &AnalysisService{jobs: jobs, results: results}
}

// Submit queues an analysis of fileID. A job id is returned even when the
// queue rejects the job so the caller can inspect its failed state.
func (s *AnalysisService) Submit(ctx context.Context, fileID string) (*model.Job, error) {
	jobID, err := s.jobs.Submit(ctx, fileID)
	if jobID == "" {
		return nil, err
	}
	job, getErr := s.jobs.Status(ctx, jobID)
	if getErr != nil {
		return nil, getErr
	}
	return job, err
}

func (s *AnalysisService) Status(ctx context.Context, jobID string) (*model.Job, error) {
	return s.jobs.Status(ctx, jobID)
}

func (s *AnalysisService) Result(ctx context.Context, fileID string) (*model.AnalysisRecord, error) {
	return s.results.GetAnalysisRecordByFileID(ctx, fileID)
}
