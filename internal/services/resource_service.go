package services

import (
	"context"

	"github.com/google/uuid"

	"github.com/prudhvinik1/numberwatch/internal/repositories"
)

// ResourceService lets operators stop or resume monitoring of one phone number.
// A disabled number is skipped by every sync before its detail is fetched.
type ResourceService struct {
	resources repositories.ResourceRepository
}

func NewResourceService(resources repositories.ResourceRepository) *ResourceService {
	return &ResourceService{resources: resources}
}

func (s *ResourceService) SetMonitoring(ctx context.Context, resourceID uuid.UUID, enabled bool) error {
	return s.resources.SetMonitoring(ctx, resourceID, enabled)
}
