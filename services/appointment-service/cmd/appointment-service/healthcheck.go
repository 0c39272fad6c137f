package main

import (
	"context"
	"fmt"
	"time"

	"github.com/md-rashed-zaman/apptbook/libs/grpcx"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// probe asks the local gRPC health service whether the process is serving.
// It backs the `appointment-service healthcheck` container probe.
func probe(ctx context.Context, addr, service string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	conn, err := grpcx.Dial(ctx, addr, grpcx.DialOptions{Timeout: timeout})
	if err != nil {
		return err
	}
	defer conn.Close()

	resp, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{Service: service})
	if err != nil {
		return err
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		return fmt.Errorf("%s is %s", service, resp.GetStatus())
	}
	return nil
}
