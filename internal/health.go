package internal

import (
	"context"
	"fmt"
	"log/slog"

	"connectrpc.com/grpchealth"

	"github.com/ultrona/mantlog/pkg/cerr"
	"github.com/ultrona/mantlog/pkg/storage"
)

// HealthServiceName is the service name reported by the gRPC health check in
// addition to the empty (whole server) name.
const HealthServiceName = "mantlog.v1.MaintenanceLog"

// StorageChecker serves grpc.health.v1 checks. The log is serving while its
// storage answers a lookup of the primary file.
type StorageChecker struct {
	storage storage.Storage
	path    string
}

var _ grpchealth.Checker = (*StorageChecker)(nil)

func NewStorageChecker(s storage.Storage, path string) *StorageChecker {
	return &StorageChecker{storage: s, path: path}
}

func (c *StorageChecker) Check(ctx context.Context, req *grpchealth.CheckRequest) (*grpchealth.CheckResponse, error) {
	if req.Service != "" && req.Service != HealthServiceName {
		return nil, cerr.NewError(cerr.NotFound, fmt.Sprintf("unknown service %q", req.Service), nil)
	}
	if _, err := c.storage.Exists(ctx, c.path); err != nil {
		slog.WarnContext(ctx, "storage health check failed", "path", c.path, "error", err)
		return &grpchealth.CheckResponse{Status: grpchealth.StatusNotServing}, nil
	}
	return &grpchealth.CheckResponse{Status: grpchealth.StatusServing}, nil
}
