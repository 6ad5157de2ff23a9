package main

import (
	"context"
	"fmt"
	"time"

	"github.com/banshee-data/current.report/internal/grpcserver"
)

func (a *app) health(args []string) error {
	fs := a.newFlagSet("health")
	addr := fs.String("addr", "localhost:9090", "gRPC address of a running pd0 serve")
	service := fs.String("service", grpcserver.ServiceName, "Service to check (empty for the whole server)")
	timeout := fs.Duration("timeout", 5*time.Second, "Check timeout")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(a.ctx, *timeout)
	defer cancel()

	resp, err := grpcserver.Check(ctx, *addr, *service)
	if err != nil {
		return err
	}
	out, err := grpcserver.FormatResponse(resp)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.stdout, out)
	return nil
}
